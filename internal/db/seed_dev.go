package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

type SeedDevOptions struct {
	// Optional: plates to pre-create closed sample visits for, so the
	// dashboard has something to show in dev.
	SamplePlates []string
}

// SeedDev inserts a few finished sample visits. It never creates open
// entries — a seeded "vehicle inside" would flip the resolver's very first
// real detection into a close.
func SeedDev(ctx context.Context, db *sql.DB, opt SeedDevOptions) error {
	plates := opt.SamplePlates
	if len(plates) == 0 {
		plates = []string{"KA01AB1234"}
	}

	now := time.Now().UTC()
	for i, plate := range plates {
		id := fmt.Sprintf("seed-%04d", i)
		inMs := now.Add(-time.Duration(i+1) * 24 * time.Hour).UnixMilli()
		outMs := now.Add(-time.Duration(i+1)*24*time.Hour + 8*time.Hour).UnixMilli()

		if _, err := db.ExecContext(ctx, `
INSERT OR IGNORE INTO entries(
  id, vehicle_no, visitor_name, phone, purpose,
  in_time_ms, out_time_ms, image_path, created_at_ms, updated_at_ms
) VALUES (?, ?, 'Sample Visitor', '0000000000', 'Delivery', ?, ?, '', ?, ?);
`, id, plate, inMs, outMs, inMs, outMs); err != nil {
			return fmt.Errorf("seed entry %s: %w", plate, err)
		}
	}

	return nil
}
