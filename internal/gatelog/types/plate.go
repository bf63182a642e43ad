package types

import "strings"

// NormalizePlate maps a recognized plate string to its canonical ledger
// form: trimmed, upper-cased. The plate is the business identity key, so
// every path into the ledger must agree on this form.
func NormalizePlate(plate string) string {
	return strings.ToUpper(strings.TrimSpace(plate))
}

// ValidPlate reports whether a normalized plate is plausible enough to
// track: at least three alphanumeric characters once separators are
// stripped. Recognizers occasionally emit fragments; those are rejected
// before they can open a ledger entry.
func ValidPlate(plate string) bool {
	cleaned := strings.NewReplacer(" ", "", "-", "").Replace(plate)
	if len(cleaned) < 3 {
		return false
	}
	for _, r := range cleaned {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'A' && r <= 'Z':
		case r >= 'a' && r <= 'z':
		default:
			return false
		}
	}
	return true
}
