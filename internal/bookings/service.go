package bookings

import (
	"context"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"

	"github.com/google/uuid"
)

// ScheduleOwners resolves the owner of a schedule.
type ScheduleOwners interface {
	OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error)
}

// Service answers booking queries. Mutations belong to the orchestrator.
type Service interface {
	Get(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	ListForSchedule(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, query ListQuery) (*PaginatedBookings, error)
	ListMine(ctx context.Context, actor middleware.Actor, query ListQuery) (*PaginatedBookings, error)
}

type service struct {
	repo      Repository
	schedules ScheduleOwners
}

func NewService(repo Repository, schedules ScheduleOwners) Service {
	return &service{repo: repo, schedules: schedules}
}

// CanView reports whether the actor may read the booking: admins, the
// owning side, the selling agent and the buyer who created it.
func CanView(actor middleware.Actor, b *Booking) bool {
	switch {
	case actor.IsAdmin():
		return true
	case actor.IsOwnerSide():
		return *actor.OwnerID == b.OwnerID
	case !actor.Authenticated:
		return false
	case actor.IsAgent():
		return b.AgentID != nil && *b.AgentID == actor.UserID
	default:
		return b.CreatedBy != nil && *b.CreatedBy == actor.UserID
	}
}

func (s *service) Get(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*Booking, error) {
	booking, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if !CanView(actor, booking) {
		return nil, apperrors.NotFound("booking", id.String())
	}
	return booking, nil
}

func (s *service) GetByCode(ctx context.Context, code string) (*Booking, error) {
	if len(code) != CodeLength {
		return nil, apperrors.Validation("code", "must be 6 characters")
	}
	return s.repo.GetByCode(ctx, code)
}

func (s *service) ListForSchedule(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, query ListQuery) (*PaginatedBookings, error) {
	filter, err := filterFromQuery(query)
	if err != nil {
		return nil, err
	}
	filter.ScheduleID = &scheduleID

	switch {
	case actor.IsAdmin():
	case actor.IsOwnerSide():
		ownerID, err := s.schedules.OwnerOf(ctx, scheduleID)
		if err != nil {
			return nil, err
		}
		if ownerID != *actor.OwnerID {
			return nil, apperrors.Forbidden("schedule belongs to another owner")
		}
	case actor.IsAgent():
		agentID := actor.UserID
		filter.AgentID = &agentID
	default:
		return nil, apperrors.Forbidden("schedule bookings are not visible to this actor")
	}
	return s.list(ctx, filter)
}

// ListMine lists what the actor sold or bought, depending on role.
func (s *service) ListMine(ctx context.Context, actor middleware.Actor, query ListQuery) (*PaginatedBookings, error) {
	filter, err := filterFromQuery(query)
	if err != nil {
		return nil, err
	}

	userID := actor.UserID
	switch {
	case !actor.Authenticated:
		return nil, apperrors.Forbidden("authentication required")
	case actor.IsAdmin():
	case actor.IsOwnerSide():
		filter.OwnerID = actor.OwnerID
	case actor.IsAgent():
		filter.AgentID = &userID
	default:
		filter.CreatedBy = &userID
	}
	return s.list(ctx, filter)
}

func (s *service) list(ctx context.Context, filter ListFilter) (*PaginatedBookings, error) {
	list, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	page, limit := filter.Page, filter.Limit
	if page <= 0 {
		page = 1
	}
	if limit <= 0 {
		limit = 20
	}
	return &PaginatedBookings{
		Bookings:   list,
		TotalCount: total,
		Page:       page,
		Limit:      limit,
		TotalPages: CalculateTotalPages(total, limit),
	}, nil
}

func filterFromQuery(q ListQuery) (ListFilter, error) {
	filter := ListFilter{
		Channel:     Channel(q.Channel),
		Payment:     PaymentStatus(q.Payment),
		Fulfillment: FulfillmentStatus(q.Fulfillment),
		Page:        q.Page,
		Limit:       q.Limit,
	}
	if q.AgentID != "" {
		id, err := uuid.Parse(q.AgentID)
		if err != nil {
			return filter, apperrors.Validation("agent_id", "must be a uuid")
		}
		filter.AgentID = &id
	}
	return filter, nil
}
