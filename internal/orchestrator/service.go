package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"ferryline/internal/agents"
	"ferryline/internal/bookings"
	"ferryline/internal/cancellation"
	"ferryline/internal/catalog"
	"ferryline/internal/gateway"
	"ferryline/internal/ledger"
	"ferryline/internal/notifications"
	"ferryline/internal/pricing"
	"ferryline/internal/schedules"
	"ferryline/internal/seats"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/transferverify"
	"ferryline/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const createAttempts = 3

// Service runs every booking mutation. Each operation is one database
// transaction; cache invalidation and notifications happen after commit.
type Service interface {
	CreateBooking(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req CreateBookingRequest) (*bookings.Booking, error)
	CancelBooking(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req CancelRequest) (*CancelResult, error)
	IssueTicket(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req IssueRequest) (*IssueResult, error)
	MarkTravelled(ctx context.Context, actor middleware.Actor, ticketID uuid.UUID) (*seats.SeatAssignment, error)
	GetSeatMap(ctx context.Context, scheduleID uuid.UUID) (*seats.SeatMap, error)
	Quote(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req QuoteRequest) (*pricing.Quote, error)
	PaymentLink(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID) (*PaymentLink, error)
	VerifyTransfer(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, image []byte) (*TransferCheck, error)
}

// ListingCache drops cached schedule listings after availability changes.
type ListingCache interface {
	InvalidateListings(ctx context.Context)
}

type TransferVerifier interface {
	Verify(ctx context.Context, image []byte, expectedAmount decimal.Decimal, expectedCurrency string) (bool, *transferverify.Details, error)
}

type Options struct {
	Currency            string
	DefaultBoardingTime string
	OwnerDiscountRate   decimal.Decimal
	Location            *time.Location
}

type Dependencies struct {
	DB            *gorm.DB
	Bookings      bookings.Repository
	Schedules     schedules.Repository
	Listings      ListingCache
	Catalog       catalog.Service
	Seats         seats.Service
	Ledger        ledger.Service
	Agents        agents.Service
	Cancellations cancellation.Service
	Notifier      notifications.Notifier
	Gateway       gateway.PaymentGateway
	Transfers     TransferVerifier
}

type service struct {
	Dependencies
	opts Options
	log  *logger.Logger
	// runTx opens the unit of work; tests swap it for one without a database.
	runTx func(ctx context.Context, fn func(tx *gorm.DB) error) error
}

func NewService(deps Dependencies, opts Options) Service {
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	s := &service{Dependencies: deps, opts: opts, log: logger.GetDefault()}
	s.runTx = func(ctx context.Context, fn func(tx *gorm.DB) error) error {
		return s.DB.WithContext(ctx).Transaction(fn)
	}
	return s
}

func (s *service) transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.runTx(ctx, fn)
}

// fail logs ledger invariant breaches loudly and passes the error through.
func (s *service) fail(ctx context.Context, op string, err error, fields map[string]interface{}) error {
	if apperrors.IsInvariantViolation(err) {
		if fields == nil {
			fields = map[string]interface{}{}
		}
		fields["operation"] = op
		s.log.LogInvariantViolation(ctx, err, fields)
	}
	return err
}

func (s *service) CreateBooking(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req CreateBookingRequest) (*bookings.Booking, error) {
	pickupID, err := uuid.Parse(req.PickupDestinationID)
	if err != nil {
		return nil, apperrors.Validation("pickup_destination_id", "must be a UUID")
	}
	dropoffID, err := uuid.Parse(req.DropoffDestinationID)
	if err != nil {
		return nil, apperrors.Validation("dropoff_destination_id", "must be a UUID")
	}
	if len(req.Tickets) == 0 {
		return nil, apperrors.Validation("tickets", "at least one ticket is required")
	}
	if strings.TrimSpace(req.Buyer.Name) == "" || strings.TrimSpace(req.Buyer.Phone) == "" {
		return nil, apperrors.Validation("buyer", "name and phone are required")
	}

	var (
		booking  *bookings.Booking
		schedule *schedules.Schedule
	)
	for attempt := 1; ; attempt++ {
		err = s.transaction(ctx, func(tx *gorm.DB) error {
			var txErr error
			booking, schedule, txErr = s.createInTx(ctx, tx, actor, scheduleID, pickupID, dropoffID, req)
			return txErr
		})
		if errors.Is(err, bookings.ErrDuplicateCode) && attempt < createAttempts {
			continue
		}
		break
	}
	if err != nil {
		if apperrors.IsSeatConflict(err) {
			s.log.LogSeatConflict(ctx, scheduleID.String(), apperrors.ConflictingSeats(err))
		}
		return nil, s.fail(ctx, "create_booking", err, map[string]interface{}{"schedule_id": scheduleID.String()})
	}

	s.afterSeatChange(ctx, scheduleID)
	if req.HoldID != "" {
		if _, err := s.Seats.ReleaseHold(ctx, req.HoldID); err != nil {
			s.log.Warn("failed to release seat hold", "hold_id", req.HoldID, "error", err)
		}
	}

	s.log.LogBookingCreated(ctx, booking.ID.String(), booking.Code, scheduleID.String(), string(booking.Channel), len(booking.Seats()))
	departure := booking.DepartureAt
	s.notify(ctx, notifications.NewEventBuilder(notifications.EventBookingCreated).
		WithBooking(booking.ID, booking.Code, scheduleID, string(booking.Channel)).
		WithBuyer(booking.BuyerName, booking.BuyerPhone).
		WithSchedule(schedule.Name, &departure).
		WithSeats(booking.Seats()).
		WithTotal(booking.GrandTotal, booking.Currency).
		Build())

	return booking, nil
}

func (s *service) createInTx(ctx context.Context, tx *gorm.DB, actor middleware.Actor, scheduleID, pickupID, dropoffID uuid.UUID, req CreateBookingRequest) (*bookings.Booking, *schedules.Schedule, error) {
	schedule, err := s.Schedules.GetForUpdate(ctx, tx, scheduleID)
	if err != nil {
		return nil, nil, err
	}

	channel := actor.Channel()
	if err := s.authorizeSale(ctx, tx, actor, channel, schedule); err != nil {
		return nil, nil, err
	}
	if !schedule.Sellable(channel) {
		return nil, nil, apperrors.StateConflict(fmt.Sprintf("schedule is not open for %s sales", strings.ToLower(channel)))
	}

	pickup, _, err := ValidateRoute(schedule, pickupID, dropoffID)
	if err != nil {
		return nil, nil, err
	}
	departure, err := DepartureAt(schedule.Date, pickup, schedule.DefaultBoardingTime, s.opts.DefaultBoardingTime, s.opts.Location)
	if err != nil {
		return nil, nil, err
	}

	priced, err := s.priceTickets(ctx, tx, schedule, channel, req.Tickets)
	if err != nil {
		return nil, nil, err
	}
	quote, err := pricing.NewQuote(pricing.Request{
		Items:             priced.items,
		Profile:           priced.profile,
		Currency:          s.opts.Currency,
		OwnerDiscountRate: s.opts.OwnerDiscountRate,
		OwnerChannel:      channel == string(bookings.ChannelOwner),
	})
	if err != nil {
		return nil, nil, err
	}

	code, err := bookings.UniqueCode(ctx, func(ctx context.Context, code string) (bool, error) {
		return s.Bookings.CodeExists(ctx, tx, code)
	})
	if err != nil {
		return nil, nil, err
	}

	booking := &bookings.Booking{
		ID:                   uuid.New(),
		Code:                 code,
		ScheduleID:           schedule.ID,
		OwnerID:              schedule.OwnerID,
		Channel:              bookings.Channel(channel),
		CreatedBy:            actor.UserIDPtr(),
		BuyerName:            strings.TrimSpace(req.Buyer.Name),
		BuyerPhone:           strings.TrimSpace(req.Buyer.Phone),
		BuyerNationalID:      strings.TrimSpace(req.Buyer.NationalID),
		PickupDestinationID:  pickupID,
		DropoffDestinationID: dropoffID,
		DepartureAt:          departure,
		Currency:             quote.Currency,
		Subtotal:             quote.Subtotal,
		TaxTotal:             quote.TaxTotal,
		DiscountTotal:        quote.DiscountTotal,
		GrandTotal:           quote.GrandTotal,
		TaxSnapshot:          datatypes.NewJSONType(priced.profile),
		PaymentStatus:        bookings.PaymentPending,
		FulfillmentStatus:    bookings.FulfillmentUnconfirmed,
		FinanceStatus:        bookings.FinanceUnposted,
		Tickets:              priced.tickets,
	}
	if channel == string(bookings.ChannelOwner) {
		booking.DiscountRate = s.opts.OwnerDiscountRate
	}
	if channel == string(bookings.ChannelAgent) {
		booking.AgentID = actor.UserIDPtr()
	}
	for k, v := range req.Meta {
		booking.SetMeta(k, v)
	}
	if req.HoldID != "" {
		booking.SetMeta(bookings.MetaHoldID, req.HoldID)
	}
	if req.DraftID != "" {
		booking.SetMeta(bookings.MetaDraftID, req.DraftID)
	}
	if err := booking.CheckTotals(); err != nil {
		return nil, nil, err
	}

	if err := s.allocateSeats(ctx, tx, schedule.ID, booking.Tickets, req.HoldID); err != nil {
		return nil, nil, err
	}
	claims := make([]seats.Claim, 0, len(booking.Tickets))
	for i := range booking.Tickets {
		booking.Tickets[i].ID = uuid.New()
		booking.Tickets[i].BookingID = booking.ID
		if booking.Tickets[i].SeatNo != "" {
			claims = append(claims, seats.Claim{SeatNo: booking.Tickets[i].SeatNo, BookingID: booking.ID, TicketID: booking.Tickets[i].ID})
		}
	}

	if err := s.Bookings.Create(ctx, tx, booking); err != nil {
		return nil, nil, err
	}
	if len(claims) > 0 {
		if err := s.Seats.Reserve(ctx, tx, schedule.ID, claims, req.HoldID); err != nil {
			return nil, nil, err
		}
	}
	return booking, schedule, nil
}

// allocateSeats gives every ticket without a seat the next free one, so
// seatless sales count against capacity like any other.
func (s *service) allocateSeats(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, tickets []bookings.BookingTicket, holdID string) error {
	var chosen []string
	open := 0
	for _, t := range tickets {
		if t.SeatNo == "" {
			open++
		} else {
			chosen = append(chosen, t.SeatNo)
		}
	}
	if open == 0 {
		return nil
	}
	picked, err := s.Seats.Allocate(ctx, tx, scheduleID, open, chosen, holdID)
	if err != nil {
		return err
	}
	for i := range tickets {
		if tickets[i].SeatNo == "" {
			tickets[i].SeatNo, picked = picked[0], picked[1:]
		}
	}
	return nil
}

// authorizeSale checks that the actor may sell on this schedule through
// its channel.
func (s *service) authorizeSale(ctx context.Context, tx *gorm.DB, actor middleware.Actor, channel string, schedule *schedules.Schedule) error {
	switch channel {
	case string(bookings.ChannelOwner):
		if !actor.ActsFor(schedule.OwnerID) {
			return apperrors.Forbidden("only the schedule owner may sell on the owner channel")
		}
	case string(bookings.ChannelAgent):
		if _, err := s.Agents.RequireApproved(ctx, tx, schedule.OwnerID, actor.UserID); err != nil {
			return err
		}
	}
	return nil
}

type pricedTickets struct {
	items   []pricing.Item
	tickets []bookings.BookingTicket
	profile *pricing.TaxProfile
}

// priceTickets resolves every requested ticket type against the schedule,
// snapshots the unit fare on each ticket and groups quantities per type.
func (s *service) priceTickets(ctx context.Context, tx *gorm.DB, schedule *schedules.Schedule, channel string, reqs []bookings.TicketRequest) (*pricedTickets, error) {
	out := &pricedTickets{}
	index := map[uuid.UUID]int{}
	seen := map[string]bool{}

	for _, r := range reqs {
		typeID, err := uuid.Parse(r.TicketTypeID)
		if err != nil {
			return nil, apperrors.InvalidTicketType(r.TicketTypeID)
		}
		seat := seats.NormalizeSeat(r.SeatNo)
		if seat != "" {
			if seen[seat] {
				return nil, apperrors.Validation("tickets", fmt.Sprintf("seat %s requested twice", seat))
			}
			seen[seat] = true
		}

		if i, ok := index[typeID]; ok {
			out.items[i].Quantity++
			unit, _ := pricing.UnitPrice(out.items[i].BasePrice, out.items[i].Surcharge, out.items[i].Discount)
			out.tickets = append(out.tickets, newTicket(typeID, r, seat, unit))
			continue
		}

		stt, err := s.Catalog.GetScheduleTicketType(ctx, tx, schedule.ID, typeID)
		if err != nil {
			return nil, err
		}
		if !stt.Active || !stt.TicketType.Active || !stt.Channel.Allows(channel) {
			return nil, apperrors.InvalidTicketType(r.TicketTypeID)
		}
		unit, err := stt.UnitPrice()
		if err != nil {
			return nil, err
		}
		index[typeID] = len(out.items)
		out.items = append(out.items, pricing.Item{
			TicketTypeID: typeID.String(),
			Name:         stt.TicketType.Name,
			BasePrice:    stt.TicketType.BasePrice,
			Surcharge:    stt.Surcharge,
			Discount:     stt.Discount,
			Quantity:     1,
		})
		out.tickets = append(out.tickets, newTicket(typeID, r, seat, unit))
	}

	if schedule.TaxProfileID != nil {
		profile, err := s.Catalog.GetTaxProfile(ctx, tx, *schedule.TaxProfileID)
		if err != nil {
			return nil, err
		}
		out.profile = profile.Profile()
	}
	return out, nil
}

func newTicket(typeID uuid.UUID, r bookings.TicketRequest, seat string, unit decimal.Decimal) bookings.BookingTicket {
	return bookings.BookingTicket{
		TicketTypeID:   typeID,
		PassengerName:  strings.TrimSpace(r.PassengerName),
		PassengerPhone: strings.TrimSpace(r.PassengerPhone),
		UnitPrice:      unit,
		SeatNo:         seat,
	}
}

// canManage is true for the owning side, admins and the agent who sold the
// booking.
func canManage(actor middleware.Actor, b *bookings.Booking) bool {
	if actor.ActsFor(b.OwnerID) {
		return true
	}
	return actor.IsAgent() && b.AgentID != nil && *b.AgentID == actor.UserID
}

func (s *service) CancelBooking(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req CancelRequest) (*CancelResult, error) {
	var (
		result   *CancelResult
		snapshot bookings.Booking
	)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		b, err := s.Bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !canManage(actor, b) {
			return apperrors.NotFound("booking", bookingID.String())
		}
		if b.FulfillmentStatus == bookings.FulfillmentBoarded || b.FulfillmentStatus == bookings.FulfillmentCancelled {
			return apperrors.StateConflict(fmt.Sprintf("booking is %s", strings.ToLower(string(b.FulfillmentStatus))))
		}

		removed, err := selectTickets(b, req.Seats)
		if err != nil {
			return err
		}
		ticketCount := len(b.Tickets)
		full := len(removed) == ticketCount

		assignments, err := s.Seats.AssignmentsFor(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		if err := checkNotTravelled(assignments, removed); err != nil {
			return err
		}

		result = &CancelResult{BookingID: b.ID, Full: full, SeatsFreed: []string{}}
		oldTotal := b.GrandTotal

		seatNos := make([]string, 0, len(removed))
		ticketIDs := make([]uuid.UUID, 0, len(removed))
		for _, t := range removed {
			ticketIDs = append(ticketIDs, t.ID)
			if t.SeatNo != "" {
				seatNos = append(seatNos, t.SeatNo)
			}
		}
		if len(seatNos) > 0 {
			if _, err := s.Seats.Release(ctx, tx, b.ScheduleID, seatNos); err != nil {
				return err
			}
		}
		result.SeatsFreed = seatNos

		remaining := decimal.Zero
		if !full {
			b.Tickets = keepTickets(b.Tickets, ticketIDs)
			if err := b.Reprice(); err != nil {
				return err
			}
			remaining = b.GrandTotal
		}

		// reversals follow the repriced total, which is not linear in seats
		// once fixed tax lines or rounding apply
		if b.FinanceStatus == bookings.FinancePosted || b.FinanceStatus == bookings.FinanceAdjusted {
			ratio := decimal.NewFromInt(int64(len(removed))).Div(decimal.NewFromInt(int64(ticketCount)))
			if _, err := s.Ledger.Reverse(ctx, tx, ledger.Reversal{
				BookingID: b.ID,
				Ratio:     ratio,
				Removed:   oldTotal.Sub(remaining),
				Reason:    req.Reason,
			}); err != nil {
				return err
			}
			result.ReversalPosted = true
		}

		if full {
			if err := s.Bookings.Delete(ctx, tx, b.ID); err != nil {
				return err
			}
		} else {
			if err := s.Bookings.DeleteTickets(ctx, tx, b.ID, ticketIDs); err != nil {
				return err
			}
			if result.ReversalPosted {
				if err := b.SetFinance(bookings.FinanceAdjusted); err != nil {
					return err
				}
			}
			b.SetMeta(bookings.MetaCancelledSeats, appendCancelled(b.Meta[bookings.MetaCancelledSeats], seatNos))
			if err := s.Bookings.Save(ctx, tx, b); err != nil {
				return err
			}
			result.Remaining = b
		}

		snapshot = *b
		return s.Cancellations.Record(ctx, tx, &cancellation.Record{
			BookingID:      b.ID,
			BookingCode:    b.Code,
			ScheduleID:     b.ScheduleID,
			OwnerID:        b.OwnerID,
			SeatsFreed:     datatypes.JSONSlice[string](seatNos),
			Full:           full,
			ReversalPosted: result.ReversalPosted,
			AmountRemoved:  oldTotal.Sub(remaining),
			RemainingTotal: remaining,
			Reason:         req.Reason,
			CancelledBy:    actor.UserIDPtr(),
		})
	})
	if err != nil {
		return nil, s.fail(ctx, "cancel_booking", err, map[string]interface{}{"booking_id": bookingID.String()})
	}

	s.afterSeatChange(ctx, snapshot.ScheduleID)
	s.log.LogBookingCancelled(ctx, snapshot.ID.String(), snapshot.ScheduleID.String(), result.SeatsFreed, result.Full)
	s.notify(ctx, notifications.NewEventBuilder(notifications.EventBookingCancelled).
		WithBooking(snapshot.ID, snapshot.Code, snapshot.ScheduleID, string(snapshot.Channel)).
		WithBuyer(snapshot.BuyerName, snapshot.BuyerPhone).
		WithSeats(result.SeatsFreed).
		WithTotal(snapshot.GrandTotal, snapshot.Currency).
		WithCancellation(result.Full).
		Build())

	return result, nil
}

// selectTickets picks the tickets to cancel. No seats means all of them.
func selectTickets(b *bookings.Booking, seatNos []string) ([]bookings.BookingTicket, error) {
	if len(b.Tickets) == 0 {
		return nil, apperrors.StateConflict("booking has no tickets")
	}
	if len(seatNos) == 0 {
		return b.Tickets, nil
	}

	bySeat := make(map[string]bookings.BookingTicket, len(b.Tickets))
	for _, t := range b.Tickets {
		if t.SeatNo != "" {
			bySeat[t.SeatNo] = t
		}
	}
	picked := make([]bookings.BookingTicket, 0, len(seatNos))
	seen := map[string]bool{}
	for _, raw := range seatNos {
		seat := seats.NormalizeSeat(raw)
		if seen[seat] {
			continue
		}
		seen[seat] = true
		t, ok := bySeat[seat]
		if !ok {
			return nil, apperrors.Validation("seats", fmt.Sprintf("seat %s is not on this booking", seat))
		}
		picked = append(picked, t)
	}
	return picked, nil
}

func checkNotTravelled(assignments []seats.SeatAssignment, removed []bookings.BookingTicket) error {
	ids := make(map[uuid.UUID]bool, len(removed))
	for _, t := range removed {
		ids[t.ID] = true
	}
	for _, a := range assignments {
		if ids[a.TicketID] && a.TravelStatus == seats.TravelTravelled {
			return apperrors.StateConflict(fmt.Sprintf("seat %s has already travelled", a.SeatNo))
		}
	}
	return nil
}

func keepTickets(tickets []bookings.BookingTicket, drop []uuid.UUID) []bookings.BookingTicket {
	gone := make(map[uuid.UUID]bool, len(drop))
	for _, id := range drop {
		gone[id] = true
	}
	kept := make([]bookings.BookingTicket, 0, len(tickets))
	for _, t := range tickets {
		if !gone[t.ID] {
			kept = append(kept, t)
		}
	}
	return kept
}

// appendCancelled merges newly freed seats into the meta list. Meta read
// back from jsonb holds []interface{}.
func appendCancelled(existing interface{}, seatNos []string) []string {
	var out []string
	switch v := existing.(type) {
	case []string:
		out = append(out, v...)
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
	}
	return append(out, seatNos...)
}

func (s *service) IssueTicket(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, req IssueRequest) (*IssueResult, error) {
	method := ledger.PaymentMethod(req.PaymentMethod)
	if !method.IsValid() {
		return nil, apperrors.Validation("payment_method", "must be cash or bank_transfer")
	}

	var (
		booking *bookings.Booking
		posted  *ledger.IssueResult
	)
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		b, err := s.Bookings.GetForUpdate(ctx, tx, bookingID)
		if err != nil {
			return err
		}
		if !canManage(actor, b) {
			return apperrors.NotFound("booking", bookingID.String())
		}
		switch b.PaymentStatus {
		case bookings.PaymentPending, bookings.PaymentPartial:
		case bookings.PaymentPaid:
			return apperrors.StateConflictWrap(apperrors.ErrAlreadyIssued)
		default:
			return apperrors.StateConflict(fmt.Sprintf("cannot issue a booking with payment %s", b.PaymentStatus))
		}

		assignments, err := s.Seats.AssignmentsFor(ctx, tx, b.ID)
		if err != nil {
			return err
		}
		active := 0
		for _, a := range assignments {
			if a.TravelStatus != seats.TravelCancelled {
				active++
			}
		}
		if active == 0 {
			return apperrors.StateConflictWrap(apperrors.ErrNoSeatsAssigned)
		}

		in := ledger.IssueInput{
			BookingID:         b.ID,
			BookingCode:       b.Code,
			ScheduleID:        b.ScheduleID,
			OwnerID:           b.OwnerID,
			Currency:          b.Currency,
			GrandTotal:        b.GrandTotal,
			Method:            method,
			ExternalReference: req.Reference,
			Notes:             req.Notes,
			ProcessedBy:       actor.UserIDPtr(),
		}
		if b.Channel == bookings.ChannelAgent && b.AgentID != nil {
			conn, err := s.Agents.RequireApproved(ctx, tx, b.OwnerID, *b.AgentID)
			if err != nil {
				return err
			}
			in.Agent = &ledger.AgentPosting{AgentID: *b.AgentID, ConnectionID: conn.ID}
		}

		posted, err = s.Ledger.PostIssue(ctx, tx, in)
		if err != nil {
			return err
		}

		if err := b.SetPayment(bookings.PaymentPaid); err != nil {
			return err
		}
		if err := b.SetFulfillment(bookings.FulfillmentConfirmed); err != nil {
			return err
		}
		if err := b.SetFinance(bookings.FinancePosted); err != nil {
			return err
		}
		b.SetMeta(bookings.MetaTicketIssuedAt, time.Now().UTC().Format(time.RFC3339))
		b.SetMeta(bookings.MetaPaymentTransactionID, posted.TransactionID.String())
		booking = b
		return s.Bookings.Save(ctx, tx, b)
	})
	if err != nil {
		return nil, s.fail(ctx, "issue_ticket", err, map[string]interface{}{"booking_id": bookingID.String()})
	}

	s.log.LogTicketIssued(ctx, booking.ID.String(), posted.TransactionID.String(), string(method), posted.CommissionAmount.StringFixed(2))
	departure := booking.DepartureAt
	s.notify(ctx, notifications.NewEventBuilder(notifications.EventTicketIssued).
		WithBooking(booking.ID, booking.Code, booking.ScheduleID, string(booking.Channel)).
		WithBuyer(booking.BuyerName, booking.BuyerPhone).
		WithSchedule("", &departure).
		WithSeats(booking.Seats()).
		WithTotal(booking.GrandTotal, booking.Currency).
		WithTransaction(posted.Reference).
		Build())

	return &IssueResult{
		BookingID:        booking.ID,
		TransactionID:    posted.TransactionID,
		Reference:        posted.Reference,
		CommissionAmount: posted.CommissionAmount,
		OwnerAmount:      posted.OwnerAmount,
	}, nil
}

func (s *service) MarkTravelled(ctx context.Context, actor middleware.Actor, ticketID uuid.UUID) (*seats.SeatAssignment, error) {
	var assignment *seats.SeatAssignment
	err := s.transaction(ctx, func(tx *gorm.DB) error {
		ticket, err := s.Bookings.GetTicket(ctx, tx, ticketID)
		if err != nil {
			return err
		}
		b, err := s.Bookings.GetByID(ctx, tx, ticket.BookingID)
		if err != nil {
			return err
		}
		if !actor.ActsFor(b.OwnerID) {
			return apperrors.Forbidden("only the owner's staff may check passengers in")
		}
		assignment, err = s.Seats.MarkTravelled(ctx, tx, ticketID, actor.UserIDPtr())
		return err
	})
	if err != nil {
		return nil, err
	}
	s.Seats.InvalidateSeatMap(ctx, assignment.ScheduleID)
	return assignment, nil
}

func (s *service) GetSeatMap(ctx context.Context, scheduleID uuid.UUID) (*seats.SeatMap, error) {
	return s.Seats.SeatMap(ctx, scheduleID)
}

// Quote prices a selection without creating anything.
func (s *service) Quote(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req QuoteRequest) (*pricing.Quote, error) {
	schedule, err := s.Schedules.GetByID(ctx, nil, scheduleID)
	if err != nil {
		return nil, err
	}
	channel := actor.Channel()
	if !schedule.Sellable(channel) {
		return nil, apperrors.StateConflict(fmt.Sprintf("schedule is not open for %s sales", strings.ToLower(channel)))
	}

	tickets := make([]bookings.TicketRequest, 0, len(req.Tickets))
	for _, t := range req.Tickets {
		for i := 0; i < t.Quantity; i++ {
			tickets = append(tickets, bookings.TicketRequest{TicketTypeID: t.TicketTypeID})
		}
	}
	priced, err := s.priceTickets(ctx, nil, schedule, channel, tickets)
	if err != nil {
		return nil, err
	}
	quote, err := pricing.NewQuote(pricing.Request{
		Items:             priced.items,
		Profile:           priced.profile,
		Currency:          s.opts.Currency,
		OwnerDiscountRate: s.opts.OwnerDiscountRate,
		OwnerChannel:      channel == string(bookings.ChannelOwner),
	})
	if err != nil {
		return nil, err
	}
	return &quote, nil
}

func (s *service) payable(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID) (*bookings.Booking, error) {
	b, err := s.Bookings.GetByID(ctx, nil, bookingID)
	if err != nil {
		return nil, err
	}
	if !bookings.CanView(actor, b) {
		return nil, apperrors.NotFound("booking", bookingID.String())
	}
	if b.PaymentStatus != bookings.PaymentPending && b.PaymentStatus != bookings.PaymentPartial {
		return nil, apperrors.StateConflict(fmt.Sprintf("booking payment is %s", b.PaymentStatus))
	}
	return b, nil
}

// PaymentLink opens a card payment for the booking's grand total.
func (s *service) PaymentLink(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID) (*PaymentLink, error) {
	b, err := s.payable(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	cents := gateway.ToCents(b.GrandTotal)
	ok, payload, err := s.Gateway.CreateTransaction(ctx, cents, b.Currency, b.Code)
	if err != nil {
		s.log.ErrorWithContext(ctx, "payment gateway unreachable", err, map[string]interface{}{"booking_id": b.ID.String()})
		return nil, err
	}
	return &PaymentLink{BookingCode: b.Code, AmountCents: cents, Currency: b.Currency, Created: ok, Gateway: payload}, nil
}

// VerifyTransfer reads a bank transfer receipt and checks it against the
// booking total. It never changes the booking.
func (s *service) VerifyTransfer(ctx context.Context, actor middleware.Actor, bookingID uuid.UUID, image []byte) (*TransferCheck, error) {
	b, err := s.payable(ctx, actor, bookingID)
	if err != nil {
		return nil, err
	}
	valid, details, err := s.Transfers.Verify(ctx, image, b.GrandTotal, b.Currency)
	if err != nil {
		return nil, err
	}
	return &TransferCheck{BookingCode: b.Code, Expected: b.GrandTotal, Currency: b.Currency, Valid: valid, Details: details}, nil
}

func (s *service) afterSeatChange(ctx context.Context, scheduleID uuid.UUID) {
	s.Seats.InvalidateSeatMap(ctx, scheduleID)
	if s.Listings != nil {
		s.Listings.InvalidateListings(ctx)
	}
}

func (s *service) notify(ctx context.Context, event *notifications.BookingEvent) {
	if s.Notifier == nil {
		return
	}
	s.Notifier.Notify(ctx, event)
}
