package service

import (
	"context"
	"errors"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/types"
)

// ErrNoEntries is returned by ByVehicle when a plate has never been logged.
var ErrNoEntries = errors.New("no entries for vehicle")

// ReportService serves the read-only views of the ledger: listings, per
// vehicle history, aggregate stats, and the raw records behind exports.
type ReportService struct {
	entries store.EntryStore
}

func NewReportService(entries store.EntryStore) *ReportService {
	return &ReportService{entries: entries}
}

func (s *ReportService) List(ctx context.Context) (types.VehicleListResponse, error) {
	records, err := s.entries.ListEntries(ctx)
	if err != nil {
		return types.VehicleListResponse{}, err
	}

	vehicles := make([]types.Entry, 0, len(records))
	for _, rec := range records {
		vehicles = append(vehicles, entryToWire(rec))
	}
	return types.VehicleListResponse{
		Status:   types.StatusSuccess,
		Count:    len(vehicles),
		Vehicles: vehicles,
	}, nil
}

func (s *ReportService) ByVehicle(ctx context.Context, rawVehicleNo string) (types.VehicleEntriesResponse, error) {
	vehicleNo, err := normalizeVehicleNo(rawVehicleNo)
	if err != nil {
		return types.VehicleEntriesResponse{}, err
	}

	records, err := s.entries.ListByVehicle(ctx, vehicleNo)
	if err != nil {
		return types.VehicleEntriesResponse{}, err
	}
	if len(records) == 0 {
		return types.VehicleEntriesResponse{}, ErrNoEntries
	}

	entries := make([]types.Entry, 0, len(records))
	for _, rec := range records {
		entries = append(entries, entryToWire(rec))
	}
	return types.VehicleEntriesResponse{
		Status:    types.StatusSuccess,
		VehicleNo: vehicleNo,
		Count:     len(entries),
		Entries:   entries,
	}, nil
}

func (s *ReportService) Stats(ctx context.Context) (types.StatsResponse, error) {
	stats, err := s.entries.Stats(ctx)
	if err != nil {
		return types.StatsResponse{}, err
	}
	return types.StatsResponse{
		Status: types.StatusSuccess,
		Statistics: types.Stats{
			TotalEntries:   stats.TotalEntries,
			OpenEntries:    stats.OpenEntries,
			ClosedEntries:  stats.ClosedEntries,
			UniqueVehicles: stats.UniqueVehicles,
		},
	}, nil
}

// Records exposes the raw ledger for export writers.
func (s *ReportService) Records(ctx context.Context) ([]store.EntryRecord, error) {
	return s.entries.ListEntries(ctx)
}
