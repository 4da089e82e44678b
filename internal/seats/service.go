package seats

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"ferryline/internal/boats"
	"ferryline/internal/schedules"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/pkg/cache"
	"ferryline/pkg/logger"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Service is the seat inventory ledger. Every mutating call runs inside the
// caller's transaction and locks the schedule row first.
type Service interface {
	ListOccupied(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) (blocked, booked []string, err error)
	SeatMap(ctx context.Context, scheduleID uuid.UUID) (*SeatMap, error)
	Reserve(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, claims []Claim, holdID string) error
	Allocate(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, n int, taken []string, holdID string) ([]string, error)
	Release(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNos []string) (int, error)
	Recount(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) error
	MarkTravelled(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, actor *uuid.UUID) (*SeatAssignment, error)
	AssignmentsFor(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]SeatAssignment, error)

	Block(ctx context.Context, ownerID, scheduleID uuid.UUID, actor *uuid.UUID, req BlockSeatsRequest) (*SeatMap, error)
	Unblock(ctx context.Context, ownerID, scheduleID uuid.UUID, seatNo string) (*SeatMap, error)

	HoldSeats(ctx context.Context, scheduleID uuid.UUID, actorID string, seatNos []string) (*Hold, error)
	ReleaseHold(ctx context.Context, holdID string) (int, error)
	InvalidateSeatMap(ctx context.Context, scheduleID uuid.UUID)
}

type service struct {
	db        *gorm.DB
	repo      Repository
	schedules schedules.Repository
	boats     boats.Service
	holds     HoldStore
	cache     cache.Service
	holdTTL   time.Duration
}

// NewService creates the seat inventory. holds and cacheService may be nil;
// holds are then unsupported and seat maps uncached.
func NewService(db *gorm.DB, repo Repository, scheduleRepo schedules.Repository, boatService boats.Service, holds HoldStore, cacheService cache.Service, holdTTL time.Duration) Service {
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	return &service{
		db:        db,
		repo:      repo,
		schedules: scheduleRepo,
		boats:     boatService,
		holds:     holds,
		cache:     cacheService,
		holdTTL:   holdTTL,
	}
}

// NormalizeSeat upper-cases and trims a seat number.
func NormalizeSeat(seat string) string {
	return strings.ToUpper(strings.TrimSpace(seat))
}

func (s *service) ListOccupied(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]string, []string, error) {
	blockedRows, err := s.schedules.ListBlocked(ctx, tx, scheduleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list blocked seats: %w", err)
	}
	occupying, err := s.repo.ListOccupying(ctx, tx, scheduleID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list booked seats: %w", err)
	}

	booked := make([]string, 0, len(occupying))
	bookedSet := make(map[string]bool, len(occupying))
	for _, a := range occupying {
		if !bookedSet[a.SeatNo] {
			bookedSet[a.SeatNo] = true
			booked = append(booked, a.SeatNo)
		}
	}
	blocked := make([]string, 0, len(blockedRows))
	for _, b := range blockedRows {
		if !bookedSet[b.SeatNo] {
			blocked = append(blocked, b.SeatNo)
		}
	}
	sort.Strings(blocked)
	sort.Strings(booked)
	return blocked, booked, nil
}

func (s *service) SeatMap(ctx context.Context, scheduleID uuid.UUID) (*SeatMap, error) {
	build := func() (interface{}, error) {
		schedule, err := s.schedules.GetByID(ctx, nil, scheduleID)
		if err != nil {
			return nil, err
		}
		blocked, booked, err := s.ListOccupied(ctx, nil, scheduleID)
		if err != nil {
			return nil, err
		}
		return &SeatMap{
			ScheduleID: scheduleID.String(),
			Blocked:    blocked,
			Booked:     booked,
			Total:      schedule.TotalSeats,
			Available:  schedule.AvailableSeats,
		}, nil
	}

	var seatMap *SeatMap
	if s.cache == nil {
		v, err := build()
		if err != nil {
			return nil, err
		}
		seatMap = v.(*SeatMap)
	} else {
		seatMap = &SeatMap{}
		if err := s.cache.GetOrSet(ctx, constants.BuildSeatMapKey(scheduleID.String()), constants.TTL_SEAT_MAP, build, seatMap); err != nil {
			return nil, err
		}
	}

	if s.holds != nil {
		if held, err := s.heldSeats(ctx, scheduleID, seatMap); err == nil {
			seatMap.Held = held
		}
	}
	return seatMap, nil
}

// heldSeats lists free seats that currently carry a hold.
func (s *service) heldSeats(ctx context.Context, scheduleID uuid.UUID, seatMap *SeatMap) ([]string, error) {
	schedule, err := s.schedules.GetByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}
	layout, err := s.boats.GetLayout(ctx, schedule.BoatID)
	if err != nil {
		return nil, err
	}
	occupied := make(map[string]bool, len(seatMap.Blocked)+len(seatMap.Booked))
	for _, seat := range seatMap.Blocked {
		occupied[seat] = true
	}
	for _, seat := range seatMap.Booked {
		occupied[seat] = true
	}
	free := make([]string, 0, len(layout.Seats))
	for _, seat := range layout.Seats {
		if !occupied[seat] {
			free = append(free, seat)
		}
	}
	heldBy, err := s.holds.HeldBy(ctx, scheduleID.String(), free)
	if err != nil {
		return nil, err
	}
	held := make([]string, 0, len(heldBy))
	for seat := range heldBy {
		held = append(held, seat)
	}
	sort.Strings(held)
	return held, nil
}

// Reserve claims every requested seat or none of them.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, claims []Claim, holdID string) error {
	if len(claims) == 0 {
		return nil
	}

	schedule, err := s.schedules.GetForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return err
	}
	layout, err := s.boats.GetLayout(ctx, schedule.BoatID)
	if err != nil {
		return err
	}

	requested := make([]string, 0, len(claims))
	seen := make(map[string]bool, len(claims))
	for i := range claims {
		claims[i].SeatNo = NormalizeSeat(claims[i].SeatNo)
		seat := claims[i].SeatNo
		if !layout.HasSeat(seat) {
			return apperrors.Validation("seat_no", fmt.Sprintf("seat %s is not on this boat", seat))
		}
		if seen[seat] {
			return apperrors.Validation("seat_no", fmt.Sprintf("seat %s requested twice", seat))
		}
		seen[seat] = true
		requested = append(requested, seat)
	}

	blocked, booked, err := s.ListOccupied(ctx, tx, scheduleID)
	if err != nil {
		return err
	}
	taken := make(map[string]bool, len(blocked)+len(booked))
	for _, seat := range blocked {
		taken[seat] = true
	}
	for _, seat := range booked {
		taken[seat] = true
	}
	var conflicts []string
	for _, seat := range requested {
		if taken[seat] {
			conflicts = append(conflicts, seat)
		}
	}

	if len(conflicts) == 0 && s.holds != nil {
		heldBy, err := s.holds.HeldBy(ctx, scheduleID.String(), requested)
		if err != nil {
			logger.GetDefault().WithError(err).Warn("seat hold lookup failed, continuing without holds")
		}
		for seat, owner := range heldBy {
			if owner != holdID {
				conflicts = append(conflicts, seat)
			}
		}
	}

	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		logger.GetDefault().LogSeatConflict(ctx, scheduleID.String(), conflicts)
		return apperrors.SeatConflict(conflicts...)
	}

	assignments := make([]SeatAssignment, 0, len(claims))
	for _, c := range claims {
		assignments = append(assignments, SeatAssignment{
			ScheduleID:   scheduleID,
			BookingID:    c.BookingID,
			TicketID:     c.TicketID,
			SeatNo:       c.SeatNo,
			TravelStatus: TravelActive,
		})
	}
	if err := s.repo.Create(ctx, tx, assignments); err != nil {
		if apperrors.IsSeatConflict(err) {
			logger.GetDefault().LogSeatConflict(ctx, scheduleID.String(), requested)
		}
		return err
	}

	available := schedule.AvailableSeats - len(claims)
	if available < 0 {
		return apperrors.LedgerInvariant("schedule %s would have %d available seats", scheduleID, available)
	}
	if err := s.schedules.SetAvailableSeats(ctx, tx, scheduleID, available); err != nil {
		return fmt.Errorf("failed to update available seats: %w", err)
	}
	return s.Recount(ctx, tx, scheduleID)
}

// Allocate picks n free seats in layout order for tickets that named none.
// Seats in taken, seats held under another hold and occupied seats are
// skipped. Fewer than n free seats is a state conflict.
func (s *service) Allocate(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, n int, taken []string, holdID string) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}
	schedule, err := s.schedules.GetForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return nil, err
	}
	layout, err := s.boats.GetLayout(ctx, schedule.BoatID)
	if err != nil {
		return nil, err
	}
	blocked, booked, err := s.ListOccupied(ctx, tx, scheduleID)
	if err != nil {
		return nil, err
	}

	skip := make(map[string]bool, len(taken)+len(blocked)+len(booked))
	for _, group := range [][]string{blocked, booked} {
		for _, seat := range group {
			skip[seat] = true
		}
	}
	for _, seat := range taken {
		skip[NormalizeSeat(seat)] = true
	}
	free := make([]string, 0, len(layout.Seats))
	for _, seat := range layout.Seats {
		if !skip[seat] {
			free = append(free, seat)
		}
	}

	if s.holds != nil && len(free) > 0 {
		heldBy, err := s.holds.HeldBy(ctx, scheduleID.String(), free)
		if err != nil {
			logger.GetDefault().WithError(err).Warn("seat hold lookup failed, continuing without holds")
		}
		kept := free[:0]
		for _, seat := range free {
			if owner, ok := heldBy[seat]; ok && owner != holdID {
				continue
			}
			kept = append(kept, seat)
		}
		free = kept
	}

	if len(free) < n {
		return nil, apperrors.StateConflict(fmt.Sprintf("only %d seats left, %d requested", len(free), n))
	}
	return free[:n], nil
}

// Release frees seats and gives them back to the schedule's availability.
func (s *service) Release(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNos []string) (int, error) {
	if len(seatNos) == 0 {
		return 0, nil
	}
	schedule, err := s.schedules.GetForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return 0, err
	}

	normalized := make([]string, 0, len(seatNos))
	for _, seat := range seatNos {
		normalized = append(normalized, NormalizeSeat(seat))
	}

	released, err := s.repo.DeleteActive(ctx, tx, scheduleID, normalized)
	if err != nil {
		return 0, fmt.Errorf("failed to release seats: %w", err)
	}

	available := schedule.AvailableSeats + int(released)
	if available > schedule.TotalSeats {
		available = schedule.TotalSeats
	}
	if err := s.schedules.SetAvailableSeats(ctx, tx, scheduleID, available); err != nil {
		return 0, fmt.Errorf("failed to update available seats: %w", err)
	}
	return int(released), s.Recount(ctx, tx, scheduleID)
}

// Recount checks available == total - |blocked ∪ booked|.
func (s *service) Recount(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) error {
	schedule, err := s.schedules.GetByID(ctx, tx, scheduleID)
	if err != nil {
		return err
	}
	blocked, booked, err := s.ListOccupied(ctx, tx, scheduleID)
	if err != nil {
		return err
	}
	want := schedule.TotalSeats - len(blocked) - len(booked)
	if schedule.AvailableSeats != want {
		err := apperrors.LedgerInvariant("schedule %s has %d available seats, expected %d (total %d, blocked %d, booked %d)",
			scheduleID, schedule.AvailableSeats, want, schedule.TotalSeats, len(blocked), len(booked))
		logger.GetDefault().LogInvariantViolation(ctx, err, map[string]interface{}{
			"schedule_id": scheduleID.String(),
			"available":   schedule.AvailableSeats,
			"expected":    want,
		})
		return err
	}
	return nil
}

func (s *service) MarkTravelled(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID, actor *uuid.UUID) (*SeatAssignment, error) {
	a, err := s.repo.GetByTicketForUpdate(ctx, tx, ticketID)
	if err != nil {
		return nil, err
	}
	if a.TravelStatus != TravelActive {
		return nil, apperrors.StateConflict(fmt.Sprintf("seat %s is %s, not ACTIVE", a.SeatNo, a.TravelStatus))
	}

	now := time.Now().UTC()
	if err := s.repo.MarkTravelled(ctx, tx, a.ID, actor, now); err != nil {
		return nil, fmt.Errorf("failed to mark travelled: %w", err)
	}
	a.TravelStatus = TravelTravelled
	a.TravelledAt = &now
	a.TravelledBy = actor
	return a, nil
}

func (s *service) AssignmentsFor(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]SeatAssignment, error) {
	return s.repo.ListByBooking(ctx, tx, bookingID)
}

// Block withholds free seats from sale. Booked seats cannot be blocked.
func (s *service) Block(ctx context.Context, ownerID, scheduleID uuid.UUID, actor *uuid.UUID, req BlockSeatsRequest) (*SeatMap, error) {
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		schedule, err := s.schedules.GetForUpdate(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if schedule.OwnerID != ownerID {
			return apperrors.Forbidden("schedule belongs to another owner")
		}
		layout, err := s.boats.GetLayout(ctx, schedule.BoatID)
		if err != nil {
			return err
		}

		blocked, booked, err := s.ListOccupied(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		already := map[string]bool{}
		for _, seat := range blocked {
			already[seat] = true
		}
		bookedSet := map[string]bool{}
		for _, seat := range booked {
			bookedSet[seat] = true
		}

		var rows []schedules.BlockedSeat
		var conflicts []string
		for _, raw := range req.Seats {
			seat := NormalizeSeat(raw)
			if !layout.HasSeat(seat) {
				return apperrors.Validation("seats", fmt.Sprintf("seat %s is not on this boat", seat))
			}
			if bookedSet[seat] {
				conflicts = append(conflicts, seat)
				continue
			}
			if already[seat] {
				continue
			}
			already[seat] = true
			rows = append(rows, schedules.BlockedSeat{ScheduleID: scheduleID, SeatNo: seat, Reason: req.Reason, BlockedBy: actor})
		}
		if len(conflicts) > 0 {
			sort.Strings(conflicts)
			return apperrors.SeatConflict(conflicts...)
		}
		if err := s.schedules.AddBlocked(ctx, tx, rows); err != nil {
			return fmt.Errorf("failed to block seats: %w", err)
		}
		if err := s.schedules.SetAvailableSeats(ctx, tx, scheduleID, schedule.AvailableSeats-len(rows)); err != nil {
			return fmt.Errorf("failed to update available seats: %w", err)
		}
		return s.Recount(ctx, tx, scheduleID)
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateSeatMap(ctx, scheduleID)
	return s.SeatMap(ctx, scheduleID)
}

func (s *service) Unblock(ctx context.Context, ownerID, scheduleID uuid.UUID, seatNo string) (*SeatMap, error) {
	seatNo = NormalizeSeat(seatNo)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		schedule, err := s.schedules.GetForUpdate(ctx, tx, scheduleID)
		if err != nil {
			return err
		}
		if schedule.OwnerID != ownerID {
			return apperrors.Forbidden("schedule belongs to another owner")
		}
		removed, err := s.schedules.RemoveBlocked(ctx, tx, scheduleID, seatNo)
		if err != nil {
			return fmt.Errorf("failed to unblock seat: %w", err)
		}
		if removed == 0 {
			return apperrors.NotFound("blocked seat", seatNo)
		}
		if err := s.schedules.SetAvailableSeats(ctx, tx, scheduleID, schedule.AvailableSeats+int(removed)); err != nil {
			return fmt.Errorf("failed to update available seats: %w", err)
		}
		return s.Recount(ctx, tx, scheduleID)
	})
	if err != nil {
		return nil, err
	}
	s.InvalidateSeatMap(ctx, scheduleID)
	return s.SeatMap(ctx, scheduleID)
}

func (s *service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

// HoldSeats places an advisory hold on free seats.
func (s *service) HoldSeats(ctx context.Context, scheduleID uuid.UUID, actorID string, seatNos []string) (*Hold, error) {
	if s.holds == nil {
		return nil, apperrors.StateConflict("seat holds are not available")
	}

	schedule, err := s.schedules.GetByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}
	layout, err := s.boats.GetLayout(ctx, schedule.BoatID)
	if err != nil {
		return nil, err
	}
	blocked, booked, err := s.ListOccupied(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}
	taken := map[string]bool{}
	for _, seat := range append(blocked, booked...) {
		taken[seat] = true
	}

	seats := make([]string, 0, len(seatNos))
	var conflicts []string
	for _, raw := range seatNos {
		seat := NormalizeSeat(raw)
		if !layout.HasSeat(seat) {
			return nil, apperrors.Validation("seats", fmt.Sprintf("seat %s is not on this boat", seat))
		}
		if taken[seat] {
			conflicts = append(conflicts, seat)
		}
		seats = append(seats, seat)
	}
	if len(conflicts) > 0 {
		sort.Strings(conflicts)
		return nil, apperrors.SeatConflict(conflicts...)
	}

	holdID := uuid.New().String()
	if err := s.holds.Hold(ctx, holdID, scheduleID.String(), actorID, seats, s.holdTTL); err != nil {
		return nil, err
	}
	return &Hold{
		HoldID:     holdID,
		ScheduleID: scheduleID.String(),
		Seats:      seats,
		ExpiresAt:  time.Now().Add(s.holdTTL),
	}, nil
}

func (s *service) ReleaseHold(ctx context.Context, holdID string) (int, error) {
	if s.holds == nil {
		return 0, apperrors.StateConflict("seat holds are not available")
	}
	released, err := s.holds.Release(ctx, holdID)
	if errors.Is(err, ErrHoldNotFound) {
		return 0, apperrors.NotFound("hold", holdID)
	}
	return released, err
}

func (s *service) InvalidateSeatMap(ctx context.Context, scheduleID uuid.UUID) {
	if s.cache == nil {
		return
	}
	_ = s.cache.Delete(ctx, constants.BuildSeatMapKey(scheduleID.String()))
}
