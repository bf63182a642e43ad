package service

import (
	"context"
	"fmt"

	"gatelog/internal/gatelog/store"
	"gatelog/internal/gatelog/types"
)

// VisitorService attaches visitor details to the entry currently open for a
// vehicle. This path is orthogonal to the open/close toggle: it never
// creates an entry and never touches out_time. A submission that arrives
// after the vehicle has already left finds no open entry and fails with
// ErrNoOpenEntry.
type VisitorService struct {
	entries store.EntryStore
}

func NewVisitorService(entries store.EntryStore) *VisitorService {
	return &VisitorService{entries: entries}
}

func (s *VisitorService) Update(ctx context.Context, req types.UpdateDetailsRequest) (types.UpdateDetailsResponse, error) {
	vehicleNo, err := normalizeVehicleNo(req.VehicleNo)
	if err != nil {
		return types.UpdateDetailsResponse{}, err
	}

	updated, err := s.entries.UpdateVisitor(ctx, vehicleNo, req.Name, req.Phone, req.Purpose)
	if err != nil {
		return types.UpdateDetailsResponse{}, err
	}
	if !updated {
		return types.UpdateDetailsResponse{}, fmt.Errorf("%w: %s", ErrNoOpenEntry, vehicleNo)
	}

	return types.UpdateDetailsResponse{
		Status:    types.StatusSuccess,
		Message:   fmt.Sprintf("Visitor details updated for vehicle %s", vehicleNo),
		VehicleNo: vehicleNo,
	}, nil
}
