package drafts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ferryline/internal/bookings"
	"ferryline/internal/orchestrator"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/internal/shared/middleware"
	"ferryline/pkg/cache"
	"ferryline/pkg/logger"

	"github.com/google/uuid"
)

// BookingCreator is the part of the orchestrator a draft submits to.
type BookingCreator interface {
	CreateBooking(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req orchestrator.CreateBookingRequest) (*bookings.Booking, error)
}

type Service interface {
	Create(ctx context.Context, actor middleware.Actor, req CreateDraftRequest) (*Draft, error)
	Get(ctx context.Context, actor middleware.Actor, id string) (*Draft, error)
	Update(ctx context.Context, actor middleware.Actor, id string, req UpdateDraftRequest) (*Draft, error)
	Submit(ctx context.Context, actor middleware.Actor, id string) (*bookings.Booking, error)
	Discard(ctx context.Context, actor middleware.Actor, id string) error
}

type service struct {
	cache   cache.Service
	creator BookingCreator
	ttl     time.Duration
	now     func() time.Time
	log     *logger.Logger
}

func NewService(cacheService cache.Service, creator BookingCreator, ttl time.Duration) Service {
	return &service{cache: cacheService, creator: creator, ttl: ttl, now: time.Now, log: logger.GetDefault()}
}

// owner is how a draft remembers who started it. Anonymous drafts are
// reachable by anyone holding the id.
func owner(actor middleware.Actor) string {
	if !actor.Authenticated {
		return ""
	}
	return actor.UserID.String()
}

func (s *service) save(ctx context.Context, d *Draft) error {
	d.UpdatedAt = s.now().UTC()
	d.ExpiresAt = d.UpdatedAt.Add(s.ttl)
	if err := s.cache.Set(ctx, constants.BuildDraftKey(d.ID), d, s.ttl); err != nil {
		return fmt.Errorf("failed to store draft: %w", err)
	}
	return nil
}

func (s *service) Create(ctx context.Context, actor middleware.Actor, req CreateDraftRequest) (*Draft, error) {
	scheduleID, err := uuid.Parse(req.ScheduleID)
	if err != nil {
		return nil, apperrors.Validation("schedule_id", "must be a UUID")
	}

	d := &Draft{
		ID:                   uuid.NewString(),
		ScheduleID:           scheduleID,
		CreatedBy:            owner(actor),
		Buyer:                req.Buyer,
		PickupDestinationID:  req.PickupDestinationID,
		DropoffDestinationID: req.DropoffDestinationID,
		Tickets:              req.Tickets,
		HoldID:               req.HoldID,
		Meta:                 req.Meta,
		CreatedAt:            s.now().UTC(),
	}
	if d.Tickets == nil {
		d.Tickets = []bookings.TicketRequest{}
	}
	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *service) Get(ctx context.Context, actor middleware.Actor, id string) (*Draft, error) {
	var d Draft
	if err := s.cache.Get(ctx, constants.BuildDraftKey(id), &d); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, apperrors.NotFound("draft", id)
		}
		return nil, err
	}
	if d.CreatedBy != "" && d.CreatedBy != owner(actor) {
		return nil, apperrors.NotFound("draft", id)
	}
	return &d, nil
}

func (s *service) Update(ctx context.Context, actor middleware.Actor, id string, req UpdateDraftRequest) (*Draft, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	if req.Buyer != nil {
		d.Buyer = req.Buyer
	}
	if req.PickupDestinationID != nil {
		d.PickupDestinationID = *req.PickupDestinationID
	}
	if req.DropoffDestinationID != nil {
		d.DropoffDestinationID = *req.DropoffDestinationID
	}
	if req.Tickets != nil {
		d.Tickets = *req.Tickets
	}
	if req.HoldID != nil {
		d.HoldID = *req.HoldID
	}
	for k, v := range req.Meta {
		if d.Meta == nil {
			d.Meta = map[string]interface{}{}
		}
		d.Meta[k] = v
	}

	if err := s.save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Submit turns the draft into a booking. The draft is removed only when the
// booking was created, so a seat conflict can be fixed and resubmitted.
func (s *service) Submit(ctx context.Context, actor middleware.Actor, id string) (*bookings.Booking, error) {
	d, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if missing := d.Missing(); len(missing) > 0 {
		return nil, apperrors.Validation(missing[0], "draft is incomplete: missing "+strings.Join(missing, ", "))
	}

	booking, err := s.creator.CreateBooking(ctx, actor, d.ScheduleID, orchestrator.CreateBookingRequest{
		Buyer:                *d.Buyer,
		PickupDestinationID:  d.PickupDestinationID,
		DropoffDestinationID: d.DropoffDestinationID,
		Tickets:              d.Tickets,
		HoldID:               d.HoldID,
		Meta:                 d.Meta,
		DraftID:              d.ID,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Delete(ctx, constants.BuildDraftKey(d.ID)); err != nil {
		s.log.Warn("failed to delete submitted draft", "draft_id", d.ID, "error", err)
	}
	return booking, nil
}

func (s *service) Discard(ctx context.Context, actor middleware.Actor, id string) error {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return err
	}
	return s.cache.Delete(ctx, constants.BuildDraftKey(id))
}
