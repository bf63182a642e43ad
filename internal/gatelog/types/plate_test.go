package types_test

import (
	"testing"

	"gatelog/internal/gatelog/types"
)

func TestNormalizePlate(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"ka01ab1234", "KA01AB1234"},
		{"  KA01AB1234  ", "KA01AB1234"},
		{"Ka 01 Ab 1234", "KA 01 AB 1234"},
		{"", ""},
	}
	for _, c := range cases {
		if got := types.NormalizePlate(c.in); got != c.want {
			t.Errorf("NormalizePlate(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestValidPlate(t *testing.T) {
	valid := []string{"KA01AB1234", "KA-01-AB-1234", "KA 01 AB 1234", "ABC"}
	for _, p := range valid {
		if !types.ValidPlate(p) {
			t.Errorf("expected %q to be valid", p)
		}
	}

	invalid := []string{"", "  ", "??", "AB", "--- ---"}
	for _, p := range invalid {
		if types.ValidPlate(p) {
			t.Errorf("expected %q to be invalid", p)
		}
	}
}
