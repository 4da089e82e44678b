package cancellation

import (
	"context"
	"fmt"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Service interface {
	Record(ctx context.Context, tx *gorm.DB, record *Record) error
	List(ctx context.Context, actor middleware.Actor, query ListQuery) ([]Record, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

// Record writes the audit row inside the cancelling transaction.
func (s *service) Record(ctx context.Context, tx *gorm.DB, record *Record) error {
	if err := s.repo.Create(ctx, tx, record); err != nil {
		return fmt.Errorf("failed to record cancellation: %w", err)
	}
	return nil
}

// List returns cancellations for the actor's owner, or any owner for admins.
func (s *service) List(ctx context.Context, actor middleware.Actor, query ListQuery) ([]Record, error) {
	filter := Filter{Limit: query.Limit}
	switch {
	case actor.IsAdmin():
	case actor.IsOwnerSide():
		filter.OwnerID = actor.OwnerID
	default:
		return nil, apperrors.Forbidden("cancellations are visible to owners only")
	}

	if query.ScheduleID != "" {
		id, err := uuid.Parse(query.ScheduleID)
		if err != nil {
			return nil, apperrors.Validation("schedule_id", "must be a uuid")
		}
		filter.ScheduleID = &id
	}
	if query.BookingID != "" {
		id, err := uuid.Parse(query.BookingID)
		if err != nil {
			return nil, apperrors.Validation("booking_id", "must be a uuid")
		}
		filter.BookingID = &id
	}
	return s.repo.List(ctx, filter)
}
