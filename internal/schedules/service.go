package schedules

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"ferryline/internal/boats"
	"ferryline/internal/catalog"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/internal/shared/middleware"
	"ferryline/pkg/cache"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var timeOfDay = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)

// ValidTimeOfDay reports whether s is an HH:MM 24h time.
func ValidTimeOfDay(s string) bool {
	return timeOfDay.MatchString(s)
}

// ConnectedOwners lists the owners an agent may sell for.
type ConnectedOwners interface {
	ApprovedOwnerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error)
}

// Sellables prices what a channel can buy on a schedule.
type Sellables interface {
	ListSellable(ctx context.Context, scheduleID uuid.UUID, channel string) ([]catalog.SellableTicketType, error)
}

type Detail struct {
	Summary
	TaxProfileID        *uuid.UUID                   `json:"tax_profile_id,omitempty"`
	DefaultBoardingTime string                       `json:"default_boarding_time,omitempty"`
	IsPublic            bool                         `json:"is_public"`
	TicketTypes         []catalog.SellableTicketType `json:"ticket_types"`
}

type Service interface {
	CreateSchedule(ctx context.Context, ownerID, createdBy uuid.UUID, req CreateScheduleRequest) (*Schedule, error)
	GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error)
	GetDetail(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*Detail, error)
	Browse(ctx context.Context, actor middleware.Actor, query ListQuery) (*PaginatedSchedules, error)
	UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status Status) (*Schedule, error)
	OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error)
	InvalidateListings(ctx context.Context)
}

type service struct {
	repo      Repository
	boats     boats.Service
	agents    ConnectedOwners
	sellables Sellables
	cache     cache.Service
	location  *time.Location
}

// NewService creates the schedule service. sellables and cacheService may be nil.
func NewService(repo Repository, boatService boats.Service, agents ConnectedOwners, sellables Sellables, cacheService cache.Service, location *time.Location) Service {
	if location == nil {
		location = time.UTC
	}
	return &service{
		repo:      repo,
		boats:     boatService,
		agents:    agents,
		sellables: sellables,
		cache:     cacheService,
		location:  location,
	}
}

func (s *service) CreateSchedule(ctx context.Context, ownerID, createdBy uuid.UUID, req CreateScheduleRequest) (*Schedule, error) {
	boatID, err := uuid.Parse(req.BoatID)
	if err != nil {
		return nil, apperrors.Validation("boat_id", "must be a UUID")
	}
	boat, err := s.boats.GetBoat(ctx, boatID)
	if err != nil {
		return nil, err
	}
	if boat.OwnerID != ownerID {
		return nil, apperrors.Forbidden("boat belongs to another owner")
	}

	date, err := time.ParseInLocation("2006-01-02", req.Date, s.location)
	if err != nil {
		return nil, apperrors.Validation("date", "must be YYYY-MM-DD")
	}
	if req.DefaultBoardingTime != "" && !ValidTimeOfDay(req.DefaultBoardingTime) {
		return nil, apperrors.Validation("default_boarding_time", "must be HH:MM")
	}

	destinations, err := buildDestinations(req.Destinations)
	if err != nil {
		return nil, err
	}

	layout := boat.Layout()
	blocked := make([]BlockedSeat, 0, len(req.BlockedSeats))
	seen := map[string]bool{}
	for _, seat := range req.BlockedSeats {
		seat = strings.ToUpper(strings.TrimSpace(seat))
		if !layout.HasSeat(seat) {
			return nil, apperrors.Validation("blocked_seats", fmt.Sprintf("seat %s is not on this boat", seat))
		}
		if seen[seat] {
			continue
		}
		seen[seat] = true
		blocked = append(blocked, BlockedSeat{SeatNo: seat, Reason: "blocked at creation", BlockedBy: &createdBy})
	}

	schedule := &Schedule{
		OwnerID:             ownerID,
		BoatID:              boat.ID,
		Name:                strings.TrimSpace(req.Name),
		Date:                date,
		TotalSeats:          boat.TotalSeats,
		AvailableSeats:      boat.TotalSeats - len(blocked),
		Confirmation:        ConfirmImmediate,
		IsPublic:            true,
		Status:              StatusDraft,
		DefaultBoardingTime: req.DefaultBoardingTime,
		CreatedBy:           createdBy,
		Destinations:        destinations,
	}
	if req.Confirmation != "" {
		schedule.Confirmation = Confirmation(req.Confirmation)
	}
	if req.IsPublic != nil {
		schedule.IsPublic = *req.IsPublic
	}
	if req.TaxProfileID != "" {
		id, err := uuid.Parse(req.TaxProfileID)
		if err != nil {
			return nil, apperrors.Validation("tax_profile_id", "must be a UUID")
		}
		schedule.TaxProfileID = &id
	}

	if err := s.repo.Create(ctx, schedule, blocked); err != nil {
		return nil, fmt.Errorf("failed to create schedule: %w", err)
	}
	s.InvalidateListings(ctx)
	return schedule, nil
}

func buildDestinations(reqs []DestinationRequest) ([]ScheduleDestination, error) {
	out := make([]ScheduleDestination, 0, len(reqs))
	sequences := map[int]bool{}
	for i, d := range reqs {
		field := fmt.Sprintf("destinations[%d]", i)
		if sequences[d.Sequence] {
			return nil, apperrors.Validation(field, "duplicate sequence")
		}
		sequences[d.Sequence] = true

		dest := ScheduleDestination{
			Sequence:   d.Sequence,
			IslandName: strings.TrimSpace(d.IslandName),
			IsPickup:   true,
			IsDropoff:  true,
		}
		if d.IsPickup != nil {
			dest.IsPickup = *d.IsPickup
		}
		if d.IsDropoff != nil {
			dest.IsDropoff = *d.IsDropoff
		}
		if d.DepartureTime != "" {
			if !ValidTimeOfDay(d.DepartureTime) {
				return nil, apperrors.Validation(field+".departure_time", "must be HH:MM")
			}
			t := d.DepartureTime
			dest.DepartureTime = &t
		}
		if d.ArrivalTime != "" {
			if !ValidTimeOfDay(d.ArrivalTime) {
				return nil, apperrors.Validation(field+".arrival_time", "must be HH:MM")
			}
			t := d.ArrivalTime
			dest.ArrivalTime = &t
		}
		out = append(out, dest)
	}
	return out, nil
}

func (s *service) GetSchedule(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	return s.repo.GetByID(ctx, nil, id)
}

func (s *service) OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	return s.repo.OwnerOf(ctx, scheduleID)
}

// GetDetail hides unpublished and private schedules from buyers who may
// not book them.
func (s *service) GetDetail(ctx context.Context, actor middleware.Actor, id uuid.UUID) (*Detail, error) {
	schedule, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}

	if !actor.ActsFor(schedule.OwnerID) {
		visible, err := s.visibleTo(ctx, actor, schedule)
		if err != nil {
			return nil, err
		}
		if !visible {
			return nil, apperrors.NotFound("schedule", id.String())
		}
	}

	detail := &Detail{
		Summary:             schedule.ToSummary(),
		TaxProfileID:        schedule.TaxProfileID,
		DefaultBoardingTime: schedule.DefaultBoardingTime,
		IsPublic:            schedule.IsPublic,
		TicketTypes:         []catalog.SellableTicketType{},
	}
	if s.sellables != nil {
		types, err := s.sellables.ListSellable(ctx, id, actor.Channel())
		if err != nil {
			return nil, err
		}
		detail.TicketTypes = types
		detail.MinPrice = minPrice(types)
	}
	return detail, nil
}

func (s *service) visibleTo(ctx context.Context, actor middleware.Actor, schedule *Schedule) (bool, error) {
	if schedule.Status != StatusPublished {
		return false, nil
	}
	if !actor.IsAgent() {
		return schedule.IsPublic, nil
	}
	owners, err := s.agents.ApprovedOwnerIDs(ctx, actor.UserID)
	if err != nil {
		return false, err
	}
	for _, id := range owners {
		if id == schedule.OwnerID {
			return true, nil
		}
	}
	return false, nil
}

// Browse lists schedules the actor can see: public buyers see published
// public sailings, agents the published sailings of owners they are
// approved with, owners everything of their own.
func (s *service) Browse(ctx context.Context, actor middleware.Actor, query ListQuery) (*PaginatedSchedules, error) {
	filter := ListFilter{Page: query.Page, Limit: query.Limit}
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = 20
	}

	if query.Date != "" {
		query.From, query.To = query.Date, query.Date
	}
	if query.From != "" {
		from, err := time.ParseInLocation("2006-01-02", query.From, s.location)
		if err != nil {
			return nil, apperrors.Validation("from", "must be YYYY-MM-DD")
		}
		filter.From = &from
	}
	if query.To != "" {
		to, err := time.ParseInLocation("2006-01-02", query.To, s.location)
		if err != nil {
			return nil, apperrors.Validation("to", "must be YYYY-MM-DD")
		}
		filter.To = &to
	}

	ownerKey := "public"
	switch {
	case actor.IsOwnerSide():
		filter.RestrictOwner = true
		filter.OwnerIDs = []uuid.UUID{*actor.OwnerID}
		ownerKey = actor.OwnerID.String()
	case actor.IsAdmin():
		if query.OwnerID != "" {
			id, err := uuid.Parse(query.OwnerID)
			if err != nil {
				return nil, apperrors.Validation("owner_id", "must be a UUID")
			}
			filter.RestrictOwner = true
			filter.OwnerIDs = []uuid.UUID{id}
			ownerKey = id.String()
		} else {
			ownerKey = "all"
		}
	case actor.IsAgent():
		owners, err := s.agents.ApprovedOwnerIDs(ctx, actor.UserID)
		if err != nil {
			return nil, err
		}
		filter.RestrictOwner = true
		filter.OwnerIDs = owners
		filter.Statuses = []Status{StatusPublished}
		ownerKey = "agent:" + actor.UserID.String()
	default:
		filter.Statuses = []Status{StatusPublished}
		filter.PublicOnly = true
	}

	build := func() (interface{}, error) {
		list, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return nil, err
		}
		out := &PaginatedSchedules{
			Schedules:  make([]Summary, 0, len(list)),
			TotalCount: total,
			Page:       filter.Page,
			Limit:      filter.Limit,
			TotalPages: int(math.Ceil(float64(total) / float64(filter.Limit))),
		}
		for i := range list {
			summary := list[i].ToSummary()
			if s.sellables != nil {
				if types, err := s.sellables.ListSellable(ctx, list[i].ID, actor.Channel()); err == nil {
					summary.MinPrice = minPrice(types)
				}
			}
			out.Schedules = append(out.Schedules, summary)
		}
		return out, nil
	}

	if s.cache == nil {
		v, err := build()
		if err != nil {
			return nil, err
		}
		return v.(*PaginatedSchedules), nil
	}

	key := constants.BuildScheduleListKey(query.From+"_"+query.To, ownerKey, filter.Page, filter.Limit)
	var result PaginatedSchedules
	if err := s.cache.GetOrSet(ctx, key, constants.TTL_SCHEDULE_LIST, build, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func minPrice(types []catalog.SellableTicketType) *decimal.Decimal {
	var min *decimal.Decimal
	for i := range types {
		if min == nil || types[i].UnitPrice.LessThan(*min) {
			p := types[i].UnitPrice
			min = &p
		}
	}
	return min
}

func (s *service) UpdateStatus(ctx context.Context, ownerID, id uuid.UUID, status Status) (*Schedule, error) {
	schedule, err := s.repo.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if schedule.OwnerID != ownerID {
		return nil, apperrors.Forbidden("schedule belongs to another owner")
	}
	if schedule.Status == status {
		return schedule, nil
	}
	if !CanTransition(schedule.Status, status) {
		return nil, apperrors.StateConflict(fmt.Sprintf("schedule cannot move from %s to %s", schedule.Status, status))
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		return nil, fmt.Errorf("failed to update schedule status: %w", err)
	}
	schedule.Status = status
	s.InvalidateListings(ctx)
	return schedule, nil
}

func (s *service) InvalidateListings(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeletePattern(ctx, constants.PATTERN_SCHEDULE_LISTINGS)
}
