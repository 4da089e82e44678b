package boats

import (
	"context"
	"fmt"
	"strings"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/pkg/cache"

	"github.com/google/uuid"
)

type Service interface {
	CreateBoat(ctx context.Context, ownerID uuid.UUID, req CreateBoatRequest) (*Boat, error)
	GetBoat(ctx context.Context, id uuid.UUID) (*Boat, error)
	ListBoats(ctx context.Context, ownerID uuid.UUID) ([]Boat, error)
	GetLayout(ctx context.Context, boatID uuid.UUID) (*Layout, error)
}

type service struct {
	repo  Repository
	cache cache.Service
}

// NewService creates the boat service. cacheService may be nil.
func NewService(repo Repository, cacheService cache.Service) Service {
	return &service{repo: repo, cache: cacheService}
}

func (s *service) CreateBoat(ctx context.Context, ownerID uuid.UUID, req CreateBoatRequest) (*Boat, error) {
	boat := &Boat{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(req.Name),
		SeatingType: SeatingType(req.SeatingType),
		Rows:        req.Rows,
		SeatsPerRow: req.SeatsPerRow,
		IsActive:    true,
	}
	if boat.SeatingType == "" {
		boat.SeatingType = SeatingChart
	}

	switch boat.SeatingType {
	case SeatingTotal:
		if req.TotalSeats <= 0 {
			return nil, apperrors.Validation("total_seats", "required for TOTAL seating")
		}
		boat.TotalSeats = req.TotalSeats
		boat.Rows, boat.SeatsPerRow = 0, 0
	case SeatingChart:
		if req.Rows <= 0 || req.SeatsPerRow <= 0 {
			return nil, apperrors.Validation("rows", "rows and seats_per_row are required for CHART seating")
		}
		boat.Excluded = req.Excluded
		boat.TotalSeats = len(boat.SeatNumbers())
		if boat.TotalSeats == 0 {
			return nil, apperrors.Validation("excluded", "layout has no seats left")
		}
	}

	if err := s.repo.Create(ctx, boat); err != nil {
		return nil, fmt.Errorf("failed to create boat: %w", err)
	}
	return boat, nil
}

func (s *service) GetBoat(ctx context.Context, id uuid.UUID) (*Boat, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *service) ListBoats(ctx context.Context, ownerID uuid.UUID) ([]Boat, error) {
	return s.repo.ListByOwner(ctx, ownerID)
}

// GetLayout is cached; layouts never change once a boat is created.
func (s *service) GetLayout(ctx context.Context, boatID uuid.UUID) (*Layout, error) {
	fetch := func() (interface{}, error) {
		boat, err := s.repo.GetByID(ctx, boatID)
		if err != nil {
			return nil, err
		}
		layout := boat.Layout()
		return &layout, nil
	}

	if s.cache == nil {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		return v.(*Layout), nil
	}

	var layout Layout
	if err := s.cache.GetOrSet(ctx, constants.BuildBoatLayoutKey(boatID.String()), constants.TTL_BOAT_LAYOUT, fetch, &layout); err != nil {
		return nil, err
	}
	return &layout, nil
}
