package catalog

import (
	"context"
	"fmt"
	"strings"

	"ferryline/internal/pricing"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/pkg/cache"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// ScheduleOwners resolves which owner a schedule belongs to.
type ScheduleOwners interface {
	OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error)
}

type Service interface {
	CreateTicketType(ctx context.Context, ownerID uuid.UUID, req CreateTicketTypeRequest) (*TicketType, error)
	ListTicketTypes(ctx context.Context, ownerID uuid.UUID) ([]TicketType, error)
	UpdateTicketType(ctx context.Context, ownerID, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketType, error)

	CreateTaxProfile(ctx context.Context, ownerID uuid.UUID, req CreateTaxProfileRequest) (*TaxProfile, error)
	ListTaxProfiles(ctx context.Context, ownerID uuid.UUID) ([]TaxProfile, error)
	GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*TaxProfile, error)

	EnableTicketType(ctx context.Context, ownerID, scheduleID uuid.UUID, req EnableTicketTypeRequest) (*ScheduleTicketType, error)
	ListSellable(ctx context.Context, scheduleID uuid.UUID, channel string) ([]SellableTicketType, error)
	GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*ScheduleTicketType, error)
}

type service struct {
	repo      Repository
	schedules ScheduleOwners
	cache     cache.Service
	currency  string
}

// NewService creates the catalog service. cacheService may be nil.
func NewService(repo Repository, schedules ScheduleOwners, cacheService cache.Service, currency string) Service {
	if currency == "" {
		currency = "MVR"
	}
	return &service{repo: repo, schedules: schedules, cache: cacheService, currency: currency}
}

func (s *service) CreateTicketType(ctx context.Context, ownerID uuid.UUID, req CreateTicketTypeRequest) (*TicketType, error) {
	if req.BasePrice.IsNegative() {
		return nil, apperrors.Validation("base_price", "must not be negative")
	}

	tt := &TicketType{
		OwnerID:      ownerID,
		Name:         strings.TrimSpace(req.Name),
		Code:         strings.ToUpper(strings.TrimSpace(req.Code)),
		BasePrice:    pricing.Money(req.BasePrice),
		Currency:     strings.ToUpper(req.Currency),
		Refundable:   true,
		BaggageRules: req.BaggageRules,
		Active:       true,
	}
	if tt.Currency == "" {
		tt.Currency = s.currency
	}
	if req.Refundable != nil {
		tt.Refundable = *req.Refundable
	}

	if err := s.repo.CreateTicketType(ctx, tt); err != nil {
		return nil, fmt.Errorf("failed to create ticket type: %w", err)
	}
	return tt, nil
}

func (s *service) ListTicketTypes(ctx context.Context, ownerID uuid.UUID) ([]TicketType, error) {
	return s.repo.ListTicketTypes(ctx, ownerID)
}

// UpdateTicketType changes a ticket type nobody has bought yet.
func (s *service) UpdateTicketType(ctx context.Context, ownerID, id uuid.UUID, req UpdateTicketTypeRequest) (*TicketType, error) {
	tt, err := s.repo.GetTicketType(ctx, id)
	if err != nil {
		return nil, err
	}
	if tt.OwnerID != ownerID {
		return nil, apperrors.Forbidden("ticket type belongs to another owner")
	}

	referenced, err := s.repo.IsTicketTypeReferenced(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to check ticket type usage: %w", err)
	}
	if referenced {
		return nil, apperrors.StateConflict("ticket type is referenced by bookings and cannot be changed")
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		updates["name"] = strings.TrimSpace(*req.Name)
	}
	if req.BasePrice != nil {
		if req.BasePrice.IsNegative() {
			return nil, apperrors.Validation("base_price", "must not be negative")
		}
		updates["base_price"] = pricing.Money(*req.BasePrice)
	}
	if req.Refundable != nil {
		updates["refundable"] = *req.Refundable
	}
	if req.Active != nil {
		updates["active"] = *req.Active
	}
	if len(updates) == 0 {
		return tt, nil
	}

	updated, err := s.repo.UpdateTicketType(ctx, id, updates)
	if err != nil {
		return nil, fmt.Errorf("failed to update ticket type: %w", err)
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *service) CreateTaxProfile(ctx context.Context, ownerID uuid.UUID, req CreateTaxProfileRequest) (*TaxProfile, error) {
	for i, line := range req.Lines {
		if err := validateLine(line); err != nil {
			return nil, apperrors.Validation(fmt.Sprintf("lines[%d]", i), err.Error())
		}
	}

	rounding := pricing.Rounding(req.Rounding)
	if rounding == "" {
		rounding = pricing.RoundUp
	}

	p := &TaxProfile{
		OwnerID:  ownerID,
		Name:     strings.TrimSpace(req.Name),
		Lines:    req.Lines,
		Rounding: rounding,
		Active:   true,
	}
	if err := s.repo.CreateTaxProfile(ctx, p); err != nil {
		return nil, fmt.Errorf("failed to create tax profile: %w", err)
	}
	return p, nil
}

func validateLine(line pricing.TaxLine) error {
	switch line.Type {
	case pricing.LineTypePercent, pricing.LineTypeFixed:
	default:
		return fmt.Errorf("unknown line type %q", line.Type)
	}
	switch line.AppliesTo {
	case pricing.AppliesToFare, pricing.AppliesToTotal, "":
	default:
		return fmt.Errorf("unknown applies_to %q", line.AppliesTo)
	}
	if line.Value.IsNegative() {
		return fmt.Errorf("value must not be negative")
	}
	if line.Type == pricing.LineTypePercent && line.Value.GreaterThan(decimal.NewFromInt(100)) {
		return fmt.Errorf("percentage must not exceed 100")
	}
	return nil
}

func (s *service) ListTaxProfiles(ctx context.Context, ownerID uuid.UUID) ([]TaxProfile, error) {
	return s.repo.ListTaxProfiles(ctx, ownerID)
}

func (s *service) GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*TaxProfile, error) {
	return s.repo.GetTaxProfile(ctx, tx, id)
}

func (s *service) EnableTicketType(ctx context.Context, ownerID, scheduleID uuid.UUID, req EnableTicketTypeRequest) (*ScheduleTicketType, error) {
	scheduleOwner, err := s.schedules.OwnerOf(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if scheduleOwner != ownerID {
		return nil, apperrors.Forbidden("schedule belongs to another owner")
	}

	ticketTypeID, err := uuid.Parse(req.TicketTypeID)
	if err != nil {
		return nil, apperrors.Validation("ticket_type_id", "must be a UUID")
	}
	tt, err := s.repo.GetTicketType(ctx, ticketTypeID)
	if err != nil {
		return nil, err
	}
	if tt.OwnerID != ownerID {
		return nil, apperrors.Forbidden("ticket type belongs to another owner")
	}
	if _, err := pricing.UnitPrice(tt.BasePrice, req.Surcharge, req.Discount); err != nil {
		return nil, err
	}

	channel := ChannelScope(req.Channel)
	if channel == "" {
		channel = ScopePublic
	}
	stt := &ScheduleTicketType{
		ScheduleID:   scheduleID,
		TicketTypeID: ticketTypeID,
		Surcharge:    pricing.Money(req.Surcharge),
		Discount:     pricing.Money(req.Discount),
		Channel:      channel,
		Active:       true,
	}
	if err := s.repo.UpsertScheduleTicketType(ctx, stt); err != nil {
		return nil, fmt.Errorf("failed to enable ticket type: %w", err)
	}
	s.invalidateSchedule(ctx, scheduleID)

	return s.repo.GetScheduleTicketType(ctx, nil, scheduleID, ticketTypeID)
}

// ListSellable returns the ticket types a channel may buy on a schedule.
func (s *service) ListSellable(ctx context.Context, scheduleID uuid.UUID, channel string) ([]SellableTicketType, error) {
	var all []SellableTicketType
	fetch := func() (interface{}, error) {
		list, err := s.repo.ListScheduleTicketTypes(ctx, nil, scheduleID, true)
		if err != nil {
			return nil, err
		}
		out := make([]SellableTicketType, 0, len(list))
		for i := range list {
			stt := &list[i]
			if !stt.TicketType.Active {
				continue
			}
			unit, err := stt.UnitPrice()
			if err != nil {
				continue
			}
			out = append(out, SellableTicketType{
				TicketTypeID: stt.TicketTypeID.String(),
				Name:         stt.TicketType.Name,
				Code:         stt.TicketType.Code,
				Channel:      stt.Channel,
				UnitPrice:    pricing.Money(unit),
				Currency:     stt.TicketType.Currency,
				Refundable:   stt.TicketType.Refundable,
			})
		}
		return out, nil
	}

	if s.cache == nil {
		v, err := fetch()
		if err != nil {
			return nil, err
		}
		all = v.([]SellableTicketType)
	} else if err := s.cache.GetOrSet(ctx, constants.BuildTicketTypesKey(scheduleID.String()), constants.TTL_TICKET_TYPES, fetch, &all); err != nil {
		return nil, err
	}

	if channel == "" {
		return all, nil
	}
	filtered := make([]SellableTicketType, 0, len(all))
	for _, t := range all {
		if t.Channel.Allows(channel) {
			filtered = append(filtered, t)
		}
	}
	return filtered, nil
}

// GetScheduleTicketType is read inside the booking transaction so the fare
// snapshot matches what was committed.
func (s *service) GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*ScheduleTicketType, error) {
	return s.repo.GetScheduleTicketType(ctx, tx, scheduleID, ticketTypeID)
}

func (s *service) invalidateSchedule(ctx context.Context, scheduleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, constants.BuildTicketTypesKey(scheduleID.String()))
}

func (s *service) invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	_ = s.cache.DeletePattern(ctx, constants.PATTERN_TICKET_TYPES_ALL)
}
