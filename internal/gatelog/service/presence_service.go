package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/types"
)

var (
	ErrInvalidVehicleNo = errors.New("vehicle_no is required")

	// ErrNoOpenEntry is returned by close/update paths when the vehicle has
	// no open entry. Expected business outcome — callers surface it as
	// not-found, never as a server fault.
	ErrNoOpenEntry = errors.New("no open entry for vehicle")
)

// PresenceService decides, for each detected plate, whether the vehicle is
// arriving or leaving. The state machine is a strict two-state toggle per
// vehicle, derived entirely from the ledger: an open entry means INSIDE,
// none means OUTSIDE.
//
// Policy for the two write paths (the original system diverged here, this
// one does not): Resolve is the only operation that toggles. Open only ever
// attempts an arrival and reports already-inside as a warning; Close only
// ever records a departure.
//
// The mutex covers each full find→append / find→close cycle. The stores
// serialize individual operations, but the decision spans two of them, and
// two concurrent detections of the same plate must not both open.
type PresenceService struct {
	mu      sync.Mutex
	entries store.EntryStore
}

func NewPresenceService(entries store.EntryStore) *PresenceService {
	return &PresenceService{entries: entries}
}

// Resolve applies the toggle for one detection event.
func (s *PresenceService) Resolve(ctx context.Context, req types.DetectionRequest) (types.DetectionResponse, error) {
	vehicleNo, err := normalizeVehicleNo(req.VehicleNo)
	if err != nil {
		return types.DetectionResponse{}, err
	}

	at := time.Now().UTC()
	if t := parseOptionalTimestamp(req.DetectedAt); t != nil {
		at = *t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	open, err := s.entries.FindLastOpen(ctx, vehicleNo)
	if err != nil {
		return types.DetectionResponse{}, err
	}

	resp := types.DetectionResponse{
		OK:         true,
		VehicleNo:  vehicleNo,
		EventID:    uuid.NewString(),
		ServerTime: at.Format(types.TimeLayout),
	}

	if open == nil {
		// OUTSIDE -> INSIDE
		if err := s.entries.Append(ctx, store.EntryRecord{
			VehicleNo: vehicleNo,
			InTime:    at,
			ImagePath: req.ImagePath,
		}); err != nil {
			return types.DetectionResponse{}, err
		}
		resp.Decision = types.DecisionOpen
		return resp, nil
	}

	// INSIDE -> OUTSIDE
	closed, err := s.entries.CloseEntry(ctx, vehicleNo, at)
	if err != nil {
		return types.DetectionResponse{}, err
	}
	if !closed {
		// The entry vanished between find and close; nothing else mutates
		// under this mutex, so treat it as a store fault.
		return types.DetectionResponse{}, fmt.Errorf("close after find for %s: entry disappeared", vehicleNo)
	}
	resp.Decision = types.DecisionClose
	return resp, nil
}

// Open records an arrival without ever toggling. If the vehicle already has
// an open entry the response is a warning and the ledger is left untouched.
func (s *PresenceService) Open(ctx context.Context, req types.NewEntryRequest) (types.NewEntryResponse, error) {
	vehicleNo, err := normalizeVehicleNo(req.VehicleNo)
	if err != nil {
		return types.NewEntryResponse{}, err
	}

	inTime := time.Now().UTC()
	if t := parseOptionalTimestamp(req.InTime); t != nil {
		inTime = *t
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.entries.FindLastOpen(ctx, vehicleNo)
	if err != nil {
		return types.NewEntryResponse{}, err
	}
	if existing != nil {
		e := entryToWire(*existing)
		return types.NewEntryResponse{
			Status:    types.StatusWarning,
			Message:   fmt.Sprintf("Vehicle %s already has an open entry", vehicleNo),
			VehicleNo: vehicleNo,
			Existing:  &e,
		}, nil
	}

	if err := s.entries.Append(ctx, store.EntryRecord{
		VehicleNo:   vehicleNo,
		VisitorName: req.Name,
		Phone:       req.Phone,
		Purpose:     req.Purpose,
		InTime:      inTime,
		ImagePath:   req.ImagePath,
	}); err != nil {
		return types.NewEntryResponse{}, err
	}

	return types.NewEntryResponse{
		Status:    types.StatusSuccess,
		Message:   fmt.Sprintf("New entry created for vehicle %s", vehicleNo),
		VehicleNo: vehicleNo,
		InTime:    inTime.Format(types.TimeLayout),
	}, nil
}

// Close records a departure. Returns ErrNoOpenEntry when the vehicle is not
// inside.
func (s *PresenceService) Close(ctx context.Context, req types.UpdateExitRequest) (types.UpdateExitResponse, error) {
	vehicleNo, err := normalizeVehicleNo(req.VehicleNo)
	if err != nil {
		return types.UpdateExitResponse{}, err
	}

	outTime := time.Now().UTC()
	if t := parseOptionalTimestamp(req.OutTime); t != nil {
		outTime = *t
	}

	closed, err := s.entries.CloseEntry(ctx, vehicleNo, outTime)
	if err != nil {
		return types.UpdateExitResponse{}, err
	}
	if !closed {
		return types.UpdateExitResponse{}, fmt.Errorf("%w: %s", ErrNoOpenEntry, vehicleNo)
	}

	return types.UpdateExitResponse{
		Status:    types.StatusSuccess,
		Message:   fmt.Sprintf("Exit time updated for vehicle %s", vehicleNo),
		VehicleNo: vehicleNo,
		OutTime:   outTime.Format(types.TimeLayout),
	}, nil
}

func normalizeVehicleNo(raw string) (string, error) {
	vehicleNo := types.NormalizePlate(raw)
	if vehicleNo == "" || !types.ValidPlate(vehicleNo) {
		return "", ErrInvalidVehicleNo
	}
	return vehicleNo, nil
}

// parseOptionalTimestamp parses a caller-supplied timestamp. Returns nil if
// the string is empty or unparseable, in which case server time applies.
func parseOptionalTimestamp(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	// Interchange layout first (what the agent and the ledger file use).
	if t, err := time.Parse(types.TimeLayout, s); err == nil {
		u := t.UTC()
		return &u
	}
	// RFC3339 as a fallback for well-behaved HTTP clients.
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		u := t.UTC()
		return &u
	}
	return nil
}

// entryToWire converts a ledger record to its API form.
func entryToWire(rec store.EntryRecord) types.Entry {
	outTime := ""
	if rec.OutTime != nil {
		outTime = rec.OutTime.Format(types.TimeLayout)
	}
	return types.Entry{
		ID:          rec.ID,
		VehicleNo:   rec.VehicleNo,
		VisitorName: rec.VisitorName,
		Phone:       rec.Phone,
		Purpose:     rec.Purpose,
		InTime:      rec.InTime.Format(types.TimeLayout),
		OutTime:     outTime,
		ImagePath:   rec.ImagePath,
	}
}
