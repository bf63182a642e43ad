package csvledger

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/types"
)

// header identifies the v1 column layout of the ledger file. A file whose
// header row differs is refused rather than guessed at.
var header = []string{"Vehicle_No", "Visitor_Name", "Phone", "Purpose", "In_Time", "Out_Time", "Image_Path"}

// ErrHeaderMismatch is returned when the ledger file exists but its header
// row does not match the v1 layout.
var ErrHeaderMismatch = errors.New("ledger header does not match the v1 layout")

// Ledger is the CSV-backed entry store. The backing medium has no in-place
// update primitive, so every mutation is a full read → mutate → rewrite
// cycle. The mutex is held across that entire cycle, and the rewrite lands
// via write-temp-then-rename so a crash mid-write cannot corrupt
// already-persisted rows. Read operations share an RLock so they observe a
// complete file, never a partially-written one.
type Ledger struct {
	mu   sync.RWMutex
	path string
}

// Open returns a Ledger backed by the file at path, creating the file with
// its header row (and any parent directories) if it does not exist yet.
func Open(path string) (*Ledger, error) {
	l := &Ledger{path: path}
	l.mu.Lock()
	defer l.mu.Unlock()
	if err := l.ensure(); err != nil {
		return nil, err
	}
	return l, nil
}

// Path returns the location of the backing file.
func (l *Ledger) Path() string { return l.path }

func (l *Ledger) ensure() error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("mkdir ledger dir: %w", err)
	}
	if _, err := os.Stat(l.path); err == nil {
		return nil
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat ledger: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil // lost a create race, file is there now
		}
		return fmt.Errorf("create ledger: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		f.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write ledger header: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

// load reads the entire ledger. Rows with fewer than six fields, or with
// unparseable timestamps, are skipped: they are partial writes or foreign
// rows, and tolerating them beats refusing the whole file. The caller must
// hold at least a read lock.
func (l *Ledger) load() ([]store.EntryRecord, error) {
	if err := l.ensure(); err != nil {
		return nil, err
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	first, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}
	if !headerMatches(first) {
		return nil, fmt.Errorf("%s: %w", l.path, ErrHeaderMismatch)
	}

	var records []store.EntryRecord
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read ledger row: %w", err)
		}
		rec, ok := parseRow(row)
		if !ok {
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// rewrite replaces the whole ledger file atomically. The caller must hold
// the write lock.
func (l *Ledger) rewrite(records []store.EntryRecord) error {
	dir := filepath.Dir(l.path)
	tmp, err := os.CreateTemp(dir, ".ledger-*.csv")
	if err != nil {
		return fmt.Errorf("create temp ledger: %w", err)
	}
	tmpName := tmp.Name()

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write header: %w", err)
	}
	for _, rec := range records {
		if err := w.Write(formatRow(rec)); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("write row: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("flush temp ledger: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp ledger: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp ledger: %w", err)
	}
	if err := os.Rename(tmpName, l.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replace ledger: %w", err)
	}
	return nil
}

func (l *Ledger) Append(_ context.Context, rec store.EntryRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if err := l.ensure(); err != nil {
		return err
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open ledger for append: %w", err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(formatRow(rec)); err != nil {
		f.Close()
		return fmt.Errorf("append row: %w", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("append row: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close ledger: %w", err)
	}
	return nil
}

func (l *Ledger) FindLastOpen(_ context.Context, vehicleNo string) (*store.EntryRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	if i := lastOpenIndex(records, vehicleNo); i >= 0 {
		rec := records[i]
		return &rec, nil
	}
	return nil, nil
}

func (l *Ledger) CloseEntry(_ context.Context, vehicleNo string, outTime time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return false, err
	}
	i := lastOpenIndex(records, vehicleNo)
	if i < 0 {
		return false, nil
	}
	t := outTime
	records[i].OutTime = &t
	if err := l.rewrite(records); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) UpdateVisitor(_ context.Context, vehicleNo, name, phone, purpose string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records, err := l.load()
	if err != nil {
		return false, err
	}
	i := lastOpenIndex(records, vehicleNo)
	if i < 0 {
		return false, nil
	}
	records[i].VisitorName = name
	records[i].Phone = phone
	records[i].Purpose = purpose
	if err := l.rewrite(records); err != nil {
		return false, err
	}
	return true, nil
}

func (l *Ledger) ListEntries(_ context.Context) ([]store.EntryRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.load()
}

func (l *Ledger) ListByVehicle(_ context.Context, vehicleNo string) ([]store.EntryRecord, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.load()
	if err != nil {
		return nil, err
	}
	var out []store.EntryRecord
	for _, rec := range records {
		if rec.VehicleNo == vehicleNo {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (l *Ledger) Stats(_ context.Context) (store.LedgerStats, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	records, err := l.load()
	if err != nil {
		return store.LedgerStats{}, err
	}

	stats := store.LedgerStats{TotalEntries: len(records)}
	vehicles := make(map[string]struct{})
	for _, rec := range records {
		vehicles[rec.VehicleNo] = struct{}{}
		if rec.Open() {
			stats.OpenEntries++
		} else {
			stats.ClosedEntries++
		}
	}
	stats.UniqueVehicles = len(vehicles)
	return stats, nil
}

// lastOpenIndex scans from most recent to oldest and returns the index of
// the first open entry for vehicleNo, or -1. Insertion order defines which
// entry is "the" open one.
func lastOpenIndex(records []store.EntryRecord, vehicleNo string) int {
	for i := len(records) - 1; i >= 0; i-- {
		if records[i].VehicleNo == vehicleNo && records[i].Open() {
			return i
		}
	}
	return -1
}

func headerMatches(row []string) bool {
	if len(row) != len(header) {
		return false
	}
	for i, col := range header {
		if row[i] != col {
			return false
		}
	}
	return true
}

const (
	colVehicleNo = iota
	colVisitorName
	colPhone
	colPurpose
	colInTime
	colOutTime
	colImagePath
)

func parseRow(row []string) (store.EntryRecord, bool) {
	if len(row) < 6 {
		return store.EntryRecord{}, false
	}

	inTime, err := time.Parse(types.TimeLayout, row[colInTime])
	if err != nil {
		return store.EntryRecord{}, false
	}

	rec := store.EntryRecord{
		VehicleNo:   row[colVehicleNo],
		VisitorName: row[colVisitorName],
		Phone:       row[colPhone],
		Purpose:     row[colPurpose],
		InTime:      inTime,
	}
	if row[colOutTime] != "" {
		outTime, err := time.Parse(types.TimeLayout, row[colOutTime])
		if err != nil {
			return store.EntryRecord{}, false
		}
		rec.OutTime = &outTime
	}
	if len(row) > colImagePath {
		rec.ImagePath = row[colImagePath]
	}
	return rec, true
}

func formatRow(rec store.EntryRecord) []string {
	outTime := ""
	if rec.OutTime != nil {
		outTime = rec.OutTime.Format(types.TimeLayout)
	}
	return []string{
		rec.VehicleNo,
		rec.VisitorName,
		rec.Phone,
		rec.Purpose,
		rec.InTime.Format(types.TimeLayout),
		outTime,
		rec.ImagePath,
	}
}
