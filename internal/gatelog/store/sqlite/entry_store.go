package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	dbpkg "gatelog/internal/db"
	"gatelog/internal/gatelog/store"
)

// EntryStore keeps the presence ledger in SQLite. Reads go straight to the
// connection; every mutation runs as a transaction on the single-writer
// worker, so a close can never race a visitor update into a lost write.
type EntryStore struct {
	db     *sql.DB
	writer *dbpkg.Worker
}

func NewEntryStore(db *sql.DB, writer *dbpkg.Worker) *EntryStore {
	return &EntryStore{db: db, writer: writer}
}

const entryColumns = `id, vehicle_no, visitor_name, phone, purpose, in_time_ms, out_time_ms, image_path`

func (s *EntryStore) Append(ctx context.Context, rec store.EntryRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.InTime.IsZero() {
		rec.InTime = time.Now().UTC()
	}

	inMs := rec.InTime.UTC().UnixMilli()
	nowMs := time.Now().UTC().UnixMilli()

	var outMs any
	if rec.OutTime != nil {
		outMs = rec.OutTime.UTC().UnixMilli()
	}

	return s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO entries(
  id, vehicle_no, visitor_name, phone, purpose,
  in_time_ms, out_time_ms, image_path, created_at_ms, updated_at_ms
) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`,
			rec.ID, rec.VehicleNo, rec.VisitorName, rec.Phone, rec.Purpose,
			inMs, outMs, rec.ImagePath, nowMs, nowMs,
		); err != nil {
			return fmt.Errorf("Append insert: %w", err)
		}
		return nil
	})
}

func (s *EntryStore) FindLastOpen(ctx context.Context, vehicleNo string) (*store.EntryRecord, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+entryColumns+`
FROM entries
WHERE vehicle_no = ? AND out_time_ms IS NULL
ORDER BY in_time_ms DESC, rowid DESC
LIMIT 1;
`, vehicleNo)

	rec, err := scanEntry(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindLastOpen query: %w", err)
	}
	return &rec, nil
}

func (s *EntryStore) CloseEntry(ctx context.Context, vehicleNo string, outTime time.Time) (bool, error) {
	outMs := outTime.UTC().UnixMilli()
	nowMs := time.Now().UTC().UnixMilli()

	found := false
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		id, err := lastOpenID(ctx, tx, vehicleNo)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE entries
SET out_time_ms = ?, updated_at_ms = ?
WHERE id = ?;
`, outMs, nowMs, id); err != nil {
			return fmt.Errorf("CloseEntry update: %w", err)
		}
		found = true
		return nil
	})
	return found, err
}

func (s *EntryStore) UpdateVisitor(ctx context.Context, vehicleNo, name, phone, purpose string) (bool, error) {
	nowMs := time.Now().UTC().UnixMilli()

	found := false
	err := s.writer.Do(ctx, func(ctx context.Context, tx *sql.Tx) error {
		id, err := lastOpenID(ctx, tx, vehicleNo)
		if err != nil {
			return err
		}
		if id == "" {
			return nil
		}

		if _, err := tx.ExecContext(ctx, `
UPDATE entries
SET visitor_name = ?, phone = ?, purpose = ?, updated_at_ms = ?
WHERE id = ?;
`, name, phone, purpose, nowMs, id); err != nil {
			return fmt.Errorf("UpdateVisitor update: %w", err)
		}
		found = true
		return nil
	})
	return found, err
}

func (s *EntryStore) ListEntries(ctx context.Context) ([]store.EntryRecord, error) {
	return s.list(ctx, `
SELECT `+entryColumns+`
FROM entries
ORDER BY rowid;
`)
}

func (s *EntryStore) ListByVehicle(ctx context.Context, vehicleNo string) ([]store.EntryRecord, error) {
	return s.list(ctx, `
SELECT `+entryColumns+`
FROM entries
WHERE vehicle_no = ?
ORDER BY rowid;
`, vehicleNo)
}

func (s *EntryStore) Stats(ctx context.Context) (store.LedgerStats, error) {
	var stats store.LedgerStats
	err := s.db.QueryRowContext(ctx, `
SELECT
  COUNT(*),
  COALESCE(SUM(CASE WHEN out_time_ms IS NULL THEN 1 ELSE 0 END), 0),
  COALESCE(SUM(CASE WHEN out_time_ms IS NOT NULL THEN 1 ELSE 0 END), 0),
  COUNT(DISTINCT vehicle_no)
FROM entries;
`).Scan(&stats.TotalEntries, &stats.OpenEntries, &stats.ClosedEntries, &stats.UniqueVehicles)
	if err != nil {
		return store.LedgerStats{}, fmt.Errorf("Stats query: %w", err)
	}
	return stats, nil
}

func (s *EntryStore) list(ctx context.Context, query string, args ...any) ([]store.EntryRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list query: %w", err)
	}
	defer rows.Close()

	var out []store.EntryRecord
	for rows.Next() {
		rec, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("list scan: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list rows: %w", err)
	}
	return out, nil
}

// lastOpenID resolves the open entry for vehicleNo inside the current
// transaction. Returns "" when the vehicle has no open entry.
func lastOpenID(ctx context.Context, tx *sql.Tx, vehicleNo string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `
SELECT id FROM entries
WHERE vehicle_no = ? AND out_time_ms IS NULL
ORDER BY in_time_ms DESC, rowid DESC
LIMIT 1;
`, vehicleNo).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve open entry: %w", err)
	}
	return id, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (store.EntryRecord, error) {
	var (
		rec   store.EntryRecord
		inMs  int64
		outMs sql.NullInt64
	)
	if err := row.Scan(
		&rec.ID, &rec.VehicleNo, &rec.VisitorName, &rec.Phone, &rec.Purpose,
		&inMs, &outMs, &rec.ImagePath,
	); err != nil {
		return store.EntryRecord{}, err
	}
	rec.InTime = time.UnixMilli(inMs).UTC()
	if outMs.Valid {
		t := time.UnixMilli(outMs.Int64).UTC()
		rec.OutTime = &t
	}
	return rec, nil
}
