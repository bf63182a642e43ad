package memory

import (
	"context"
	"sync"
	"time"

	"gatelog/internal/gatelog/store"
)

// EntryStore is an in-memory ledger with the same semantics as the durable
// backends. It is intended for tests and dev environments.
type EntryStore struct {
	mu      sync.RWMutex
	entries []store.EntryRecord
}

func NewEntryStore() *EntryStore {
	return &EntryStore{}
}

func (s *EntryStore) Append(_ context.Context, rec store.EntryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, rec)
	return nil
}

func (s *EntryStore) FindLastOpen(_ context.Context, vehicleNo string) (*store.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.lastOpenIndex(vehicleNo); i >= 0 {
		rec := s.entries[i]
		return &rec, nil
	}
	return nil, nil
}

func (s *EntryStore) CloseEntry(_ context.Context, vehicleNo string, outTime time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lastOpenIndex(vehicleNo)
	if i < 0 {
		return false, nil
	}
	t := outTime
	s.entries[i].OutTime = &t
	return true, nil
}

func (s *EntryStore) UpdateVisitor(_ context.Context, vehicleNo, name, phone, purpose string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.lastOpenIndex(vehicleNo)
	if i < 0 {
		return false, nil
	}
	s.entries[i].VisitorName = name
	s.entries[i].Phone = phone
	s.entries[i].Purpose = purpose
	return true, nil
}

func (s *EntryStore) ListEntries(_ context.Context) ([]store.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]store.EntryRecord, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *EntryStore) ListByVehicle(_ context.Context, vehicleNo string) ([]store.EntryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.EntryRecord
	for _, rec := range s.entries {
		if rec.VehicleNo == vehicleNo {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *EntryStore) Stats(_ context.Context) (store.LedgerStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := store.LedgerStats{TotalEntries: len(s.entries)}
	vehicles := make(map[string]struct{})
	for _, rec := range s.entries {
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

func (s *EntryStore) lastOpenIndex(vehicleNo string) int {
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].VehicleNo == vehicleNo && s.entries[i].Open() {
			return i
		}
	}
	return -1
}
