package store

import (
	"context"
	"time"
)

// EntryRecord is one row of the presence ledger: a single IN/OUT lifecycle
// of a vehicle visit. VehicleNo, InTime and ImagePath are write-once;
// the visitor fields and OutTime are the only mutable columns, and only on
// the entry the ledger currently recognizes as open for that vehicle.
type EntryRecord struct {
	ID          string // uuid; empty for rows from the CSV ledger (the v1 file layout has no id column)
	VehicleNo   string // normalized upper-case plate
	VisitorName string
	Phone       string
	Purpose     string
	InTime      time.Time
	OutTime     *time.Time // nil marks the entry open
	ImagePath   string
}

// Open reports whether the entry has no recorded exit.
func (r EntryRecord) Open() bool { return r.OutTime == nil }

// LedgerStats are the aggregate counts over the full ledger.
type LedgerStats struct {
	TotalEntries   int
	OpenEntries    int
	ClosedEntries  int
	UniqueVehicles int
}

// EntryStore is the durable, append-ordered presence ledger.
//
// Append performs no open-entry uniqueness check; callers must have already
// established that no open entry exists (the presence resolver serializes
// its find→append cycle for exactly this reason). CloseEntry and
// UpdateVisitor resolve the open entry themselves and return false when
// there is nothing to act on — an expected business outcome, not an error.
//
// Implementations must serialize mutating operations against each other and
// give read operations a consistent snapshot of the ledger.
type EntryStore interface {
	Append(ctx context.Context, rec EntryRecord) error

	// FindLastOpen returns the most recent entry for vehicleNo with no
	// exit recorded, or nil when the vehicle is not inside.
	FindLastOpen(ctx context.Context, vehicleNo string) (*EntryRecord, error)

	// CloseEntry stamps outTime on the open entry for vehicleNo.
	// Returns false when no open entry exists.
	CloseEntry(ctx context.Context, vehicleNo string, outTime time.Time) (bool, error)

	// UpdateVisitor overwrites the visitor fields of the open entry for
	// vehicleNo. Returns false when no open entry exists.
	UpdateVisitor(ctx context.Context, vehicleNo, name, phone, purpose string) (bool, error)

	// ListEntries returns the full ledger in insertion order.
	ListEntries(ctx context.Context) ([]EntryRecord, error)

	// ListByVehicle returns all entries for one plate in insertion order.
	ListByVehicle(ctx context.Context, vehicleNo string) ([]EntryRecord, error)

	Stats(ctx context.Context) (LedgerStats, error)
}
