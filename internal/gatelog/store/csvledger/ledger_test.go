package csvledger_test

import (
	"context"
	"encoding/csv"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/store/csvledger"
)

func newTestLedger(t *testing.T) *csvledger.Ledger {
	t.Helper()

	path := filepath.Join(t.TempDir(), "visitors.csv")
	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}
	return l
}

func mustAppend(t *testing.T, l *csvledger.Ledger, rec store.EntryRecord) {
	t.Helper()
	if err := l.Append(context.Background(), rec); err != nil {
		t.Fatalf("append: %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Open — file creation
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_Open_CreatesFileWithHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "visitors.csv")
	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	f, err := os.Open(l.Path())
	if err != nil {
		t.Fatalf("open backing file: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read backing file: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected header row only, got %d rows", len(rows))
	}
	want := []string{"Vehicle_No", "Visitor_Name", "Phone", "Purpose", "In_Time", "Out_Time", "Image_Path"}
	if len(rows[0]) != len(want) {
		t.Fatalf("expected %d header columns, got %d", len(want), len(rows[0]))
	}
	for i, col := range want {
		if rows[0][i] != col {
			t.Errorf("header column %d: expected %q, got %q", i, col, rows[0][i])
		}
	}
}

func TestLedger_Open_KeepsExistingRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.csv")
	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	mustAppend(t, l, store.EntryRecord{
		VehicleNo: "KA01AB1234",
		InTime:    time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	})

	// Re-opening the same path must not truncate.
	l2, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	records, err := l2.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after reopen, got %d", len(records))
	}
}

func TestLedger_Open_RefusesForeignHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "other.csv")
	if err := os.WriteFile(path, []byte("plate,owner,since\nKA01AB1234,a,b\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	_, err = l.ListEntries(context.Background())
	if !errors.Is(err, csvledger.ErrHeaderMismatch) {
		t.Fatalf("expected ErrHeaderMismatch, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Append / FindLastOpen
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_FindLastOpen_ReturnsNilWhenAbsent(t *testing.T) {
	l := newTestLedger(t)

	rec, err := l.FindLastOpen(context.Background(), "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil for an empty ledger, got %+v", rec)
	}
}

func TestLedger_FindLastOpen_ReturnsOpenEntry(t *testing.T) {
	l := newTestLedger(t)
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in, ImagePath: "photos/a.jpg"})

	rec, err := l.FindLastOpen(context.Background(), "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil {
		t.Fatal("expected an open entry")
	}
	if rec.VehicleNo != "KA01AB1234" {
		t.Errorf("expected vehicle KA01AB1234, got %q", rec.VehicleNo)
	}
	if !rec.InTime.Equal(in) {
		t.Errorf("expected in_time %v, got %v", in, rec.InTime)
	}
	if rec.ImagePath != "photos/a.jpg" {
		t.Errorf("expected image path preserved, got %q", rec.ImagePath)
	}
	if !rec.Open() {
		t.Error("expected entry to be open")
	}
}

func TestLedger_FindLastOpen_SkipsClosedEntries(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in, OutTime: &out})

	rec, err := l.FindLastOpen(ctx, "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected nil when all entries are closed, got %+v", rec)
	}
}

func TestLedger_FindLastOpen_PicksMostRecent(t *testing.T) {
	l := newTestLedger(t)
	in1 := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out1 := in1.Add(time.Hour)
	in2 := in1.Add(3 * time.Hour)

	// One completed visit, then a second arrival.
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in1, OutTime: &out1})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in2})

	rec, err := l.FindLastOpen(context.Background(), "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil {
		t.Fatal("expected the second visit to be open")
	}
	if !rec.InTime.Equal(in2) {
		t.Errorf("expected open entry from %v, got %v", in2, rec.InTime)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// CloseEntry
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_CloseEntry_StampsOutTime(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(2 * time.Hour)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in})

	closed, err := l.CloseEntry(ctx, "KA01AB1234", out)
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Fatal("expected closed=true")
	}

	// The vehicle is no longer inside.
	rec, err := l.FindLastOpen(ctx, "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec != nil {
		t.Fatalf("expected no open entry after close, got %+v", rec)
	}

	records, err := l.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record, got %d", len(records))
	}
	if records[0].OutTime == nil || !records[0].OutTime.Equal(out) {
		t.Errorf("expected out_time %v, got %v", out, records[0].OutTime)
	}
	// Append-only: closing must never add rows.
}

func TestLedger_CloseEntry_NoOpenEntry(t *testing.T) {
	l := newTestLedger(t)

	closed, err := l.CloseEntry(context.Background(), "KA01AB1234", time.Now().UTC())
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if closed {
		t.Fatal("expected closed=false for an absent vehicle")
	}
}

func TestLedger_CloseEntry_OnlyTouchesTargetVehicle(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "MH12XY9999", InTime: in.Add(time.Minute)})

	if _, err := l.CloseEntry(ctx, "KA01AB1234", in.Add(time.Hour)); err != nil {
		t.Fatalf("close: %v", err)
	}

	rec, err := l.FindLastOpen(ctx, "MH12XY9999")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil {
		t.Fatal("expected the other vehicle to still be open")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// UpdateVisitor
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_UpdateVisitor_FillsOpenEntry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in})

	updated, err := l.UpdateVisitor(ctx, "KA01AB1234", "Ravi Kumar", "9876543210", "Delivery")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated {
		t.Fatal("expected updated=true")
	}

	rec, err := l.FindLastOpen(ctx, "KA01AB1234")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if rec == nil {
		t.Fatal("expected entry to stay open after a detail update")
	}
	if rec.VisitorName != "Ravi Kumar" || rec.Phone != "9876543210" || rec.Purpose != "Delivery" {
		t.Errorf("visitor fields not persisted: %+v", rec)
	}
	if !rec.InTime.Equal(in) {
		t.Errorf("in_time must not change on update, got %v", rec.InTime)
	}
}

func TestLedger_UpdateVisitor_Idempotent(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: time.Now().UTC()})

	for i := 0; i < 2; i++ {
		updated, err := l.UpdateVisitor(ctx, "KA01AB1234", "Ravi", "123", "Meeting")
		if err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
		if !updated {
			t.Fatalf("update %d: expected updated=true", i)
		}
	}

	records, err := l.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected 1 record after repeated updates, got %d", len(records))
	}
}

func TestLedger_UpdateVisitor_NoOpenEntry(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	in := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	out := in.Add(time.Hour)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: in, OutTime: &out})

	updated, err := l.UpdateVisitor(ctx, "KA01AB1234", "Ravi", "123", "Meeting")
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated {
		t.Fatal("expected updated=false when the only entry is closed")
	}

	// The closed entry must be untouched.
	records, err := l.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if records[0].VisitorName != "" {
		t.Errorf("closed entry was modified: %+v", records[0])
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Listing and stats
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_ListByVehicle_InsertionOrder(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	out1 := base.Add(time.Hour)
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: base, OutTime: &out1})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "MH12XY9999", InTime: base.Add(time.Minute)})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: base.Add(2 * time.Hour)})

	records, err := l.ListByVehicle(ctx, "KA01AB1234")
	if err != nil {
		t.Fatalf("list by vehicle: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 entries for KA01AB1234, got %d", len(records))
	}
	if !records[0].InTime.Equal(base) || !records[1].InTime.Equal(base.Add(2*time.Hour)) {
		t.Errorf("entries out of insertion order: %+v", records)
	}
}

func TestLedger_Stats_TwoVisitsOneOpen(t *testing.T) {
	l := newTestLedger(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	// One completed visit and one open visit across two vehicles.
	out := base.Add(time.Hour)
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: base, OutTime: &out})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: base.Add(2 * time.Hour)})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "MH12XY9999", InTime: base.Add(time.Minute)})

	stats, err := l.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.TotalEntries != 3 {
		t.Errorf("expected 3 total, got %d", stats.TotalEntries)
	}
	if stats.OpenEntries != 2 {
		t.Errorf("expected 2 open, got %d", stats.OpenEntries)
	}
	if stats.ClosedEntries != 1 {
		t.Errorf("expected 1 closed, got %d", stats.ClosedEntries)
	}
	if stats.UniqueVehicles != 2 {
		t.Errorf("expected 2 unique vehicles, got %d", stats.UniqueVehicles)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Malformed rows
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_Load_SkipsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.csv")
	content := "Vehicle_No,Visitor_Name,Phone,Purpose,In_Time,Out_Time,Image_Path\n" +
		"KA01AB1234,Ravi,123,Meeting,2026-03-01 09:00:00,,photos/a.jpg\n" +
		"SHORTROW,only,three\n" +
		"MH12XY9999,,,Delivery,not-a-timestamp,,\n" +
		"MH12XY9999,,,Delivery,2026-03-01 10:00:00,2026-03-01 11:00:00,\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	records, err := l.ListEntries(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 well-formed records, got %d", len(records))
	}
	if records[0].VehicleNo != "KA01AB1234" || records[1].VehicleNo != "MH12XY9999" {
		t.Errorf("unexpected records: %+v", records)
	}
}

func TestLedger_Rewrite_DropsMalformedRows(t *testing.T) {
	path := filepath.Join(t.TempDir(), "visitors.csv")
	content := "Vehicle_No,Visitor_Name,Phone,Purpose,In_Time,Out_Time,Image_Path\n" +
		"KA01AB1234,,,,2026-03-01 09:00:00,,\n" +
		"BADROW,x,y\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}

	l, err := csvledger.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	ctx := context.Background()

	// Any mutation rewrites the file from the parsed records, quietly
	// dropping whatever could not be parsed.
	if _, err := l.CloseEntry(ctx, "KA01AB1234", time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)); err != nil {
		t.Fatalf("close: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	if strings.Contains(string(raw), "BADROW") {
		t.Errorf("expected malformed row to be dropped on rewrite, file:\n%s", raw)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Concurrency — mutations must not lose each other's writes
// ═══════════════════════════════════════════════════════════════════════════

func TestLedger_ConcurrentUpdates_NoLostWrites(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	mustAppend(t, l, store.EntryRecord{VehicleNo: "KA01AB1234", InTime: base})
	mustAppend(t, l, store.EntryRecord{VehicleNo: "MH12XY9999", InTime: base})

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		if _, err := l.UpdateVisitor(ctx, "KA01AB1234", "Ravi", "111", "Meeting"); err != nil {
			t.Errorf("update KA01AB1234: %v", err)
		}
	}()
	go func() {
		defer wg.Done()
		if _, err := l.UpdateVisitor(ctx, "MH12XY9999", "Priya", "222", "Delivery"); err != nil {
			t.Errorf("update MH12XY9999: %v", err)
		}
	}()
	wg.Wait()

	records, err := l.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	byVehicle := make(map[string]store.EntryRecord)
	for _, rec := range records {
		byVehicle[rec.VehicleNo] = rec
	}
	if byVehicle["KA01AB1234"].VisitorName != "Ravi" {
		t.Errorf("lost update for KA01AB1234: %+v", byVehicle["KA01AB1234"])
	}
	if byVehicle["MH12XY9999"].VisitorName != "Priya" {
		t.Errorf("lost update for MH12XY9999: %+v", byVehicle["MH12XY9999"])
	}
}

func TestLedger_ConcurrentAppends_AllPersist(t *testing.T) {
	l := newTestLedger(t)
	ctx := context.Background()

	const n = 20
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(i int) {
			defer wg.Done()
			rec := store.EntryRecord{
				VehicleNo: "KA01AB1234",
				InTime:    time.Date(2026, 3, 1, 9, 0, i, 0, time.UTC),
			}
			if err := l.Append(ctx, rec); err != nil {
				t.Errorf("append %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	records, err := l.ListEntries(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != n {
		t.Fatalf("expected %d records, got %d", n, len(records))
	}
}
