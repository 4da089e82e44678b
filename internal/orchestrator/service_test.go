package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"

	"ferryline/internal/bookings"
	"ferryline/internal/catalog"
	"ferryline/internal/schedules"
	"ferryline/internal/seats"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/transferverify"
	"ferryline/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeSchedules struct {
	schedules.Repository
	schedule *schedules.Schedule
}

func (f *fakeSchedules) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*schedules.Schedule, error) {
	if f.schedule == nil || f.schedule.ID != id {
		return nil, apperrors.NotFound("schedule", id.String())
	}
	return f.schedule, nil
}

type fakeCatalog struct {
	catalog.Service
	types map[uuid.UUID]*catalog.ScheduleTicketType
}

func (f *fakeCatalog) GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*catalog.ScheduleTicketType, error) {
	if stt, ok := f.types[ticketTypeID]; ok {
		return stt, nil
	}
	return nil, apperrors.InvalidTicketType(ticketTypeID.String())
}

type fakeBookings struct {
	bookings.Repository
	byID map[uuid.UUID]*bookings.Booking
}

func (f *fakeBookings) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*bookings.Booking, error) {
	if b, ok := f.byID[id]; ok {
		return b, nil
	}
	return nil, apperrors.NotFound("booking", id.String())
}

type fakeGateway struct {
	cents     int64
	reference string
	ok        bool
	err       error
}

func (f *fakeGateway) CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (bool, map[string]interface{}, error) {
	f.cents, f.reference = amountCents, reference
	return f.ok, map[string]interface{}{"url": "https://pay.example/1"}, f.err
}

func (f *fakeGateway) GetTransaction(ctx context.Context, id string) (bool, map[string]interface{}, error) {
	return f.ok, nil, f.err
}

type fakeTransfers struct {
	expected decimal.Decimal
}

func (f *fakeTransfers) Verify(ctx context.Context, image []byte, amount decimal.Decimal, currency string) (bool, *transferverify.Details, error) {
	f.expected = amount
	if len(image) == 0 {
		return false, nil, transferverify.ErrEmptyImage
	}
	return true, &transferverify.Details{Valid: true}, nil
}

var (
	ownerID = uuid.New()
	adult   = uuid.New()
	child   = uuid.New()
	crew    = uuid.New()
)

func quoteFixture(status schedules.Status, public bool) (*fakeSchedules, *fakeCatalog) {
	s := &schedules.Schedule{ID: uuid.New(), OwnerID: ownerID, Status: status, IsPublic: public}
	cat := &fakeCatalog{types: map[uuid.UUID]*catalog.ScheduleTicketType{
		adult: {TicketTypeID: adult, Active: true, Channel: catalog.ScopeBoth,
			TicketType: catalog.TicketType{Name: "Adult", BasePrice: decimal.NewFromInt(100), Active: true}},
		child: {TicketTypeID: child, Active: true, Channel: catalog.ScopePublic, Discount: decimal.NewFromInt(40),
			TicketType: catalog.TicketType{Name: "Child", BasePrice: decimal.NewFromInt(100), Active: true}},
		crew: {TicketTypeID: crew, Active: true, Channel: catalog.ScopeAgent,
			TicketType: catalog.TicketType{Name: "Crew", BasePrice: decimal.NewFromInt(10), Active: false}},
	}}
	return &fakeSchedules{schedule: s}, cat
}

func ownerActor() middleware.Actor {
	id := ownerID
	return middleware.Actor{UserID: uuid.New(), Role: users.RoleOwner, OwnerID: &id, Authenticated: true}
}

func TestQuote_PublicChannel(t *testing.T) {
	scheds, cat := quoteFixture(schedules.StatusPublished, true)
	svc := NewService(Dependencies{Schedules: scheds, Catalog: cat}, Options{Currency: "MVR", OwnerDiscountRate: decimal.RequireFromString("0.10")})

	quote, err := svc.Quote(context.Background(), middleware.Anonymous, scheds.schedule.ID, QuoteRequest{Tickets: []QuoteTicket{
		{TicketTypeID: adult.String(), Quantity: 2},
		{TicketTypeID: child.String(), Quantity: 1},
	}})
	require.NoError(t, err)
	require.Len(t, quote.Lines, 2)
	assert.Equal(t, 2, quote.Lines[0].Quantity)
	assert.True(t, quote.Lines[1].UnitPrice.Equal(decimal.NewFromInt(60)))
	assert.True(t, quote.Subtotal.Equal(decimal.NewFromInt(260)))
	assert.True(t, quote.DiscountTotal.IsZero())
	assert.True(t, quote.GrandTotal.Equal(decimal.NewFromInt(260)))
	assert.Equal(t, "MVR", quote.Currency)
}

func TestQuote_OwnerDiscount(t *testing.T) {
	scheds, cat := quoteFixture(schedules.StatusDraft, false)
	svc := NewService(Dependencies{Schedules: scheds, Catalog: cat}, Options{Currency: "MVR", OwnerDiscountRate: decimal.RequireFromString("0.10")})

	quote, err := svc.Quote(context.Background(), ownerActor(), scheds.schedule.ID, QuoteRequest{Tickets: []QuoteTicket{
		{TicketTypeID: adult.String(), Quantity: 3},
	}})
	require.NoError(t, err)
	assert.True(t, quote.DiscountTotal.Equal(decimal.NewFromInt(30)))
	assert.True(t, quote.GrandTotal.Equal(decimal.NewFromInt(270)))
}

func TestQuote_Rejections(t *testing.T) {
	scheds, cat := quoteFixture(schedules.StatusPublished, false)
	svc := NewService(Dependencies{Schedules: scheds, Catalog: cat}, Options{Currency: "MVR"})

	_, err := svc.Quote(context.Background(), middleware.Anonymous, scheds.schedule.ID, QuoteRequest{Tickets: []QuoteTicket{{TicketTypeID: adult.String(), Quantity: 1}}})
	assert.True(t, apperrors.IsConflict(err), "private schedule is closed to the public")

	scheds.schedule.IsPublic = true
	_, err = svc.Quote(context.Background(), middleware.Anonymous, scheds.schedule.ID, QuoteRequest{Tickets: []QuoteTicket{{TicketTypeID: crew.String(), Quantity: 1}}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTicketType)

	_, err = svc.Quote(context.Background(), middleware.Anonymous, scheds.schedule.ID, QuoteRequest{Tickets: []QuoteTicket{{TicketTypeID: uuid.NewString(), Quantity: 1}}})
	assert.ErrorIs(t, err, apperrors.ErrInvalidTicketType)

	_, err = svc.Quote(context.Background(), middleware.Anonymous, uuid.New(), QuoteRequest{})
	assert.True(t, apperrors.IsNotFound(err))
}

func pendingBooking() *bookings.Booking {
	return &bookings.Booking{
		ID:            uuid.New(),
		Code:          "K7QX2M",
		OwnerID:       ownerID,
		Currency:      "MVR",
		GrandTotal:    decimal.RequireFromString("108.005"),
		PaymentStatus: bookings.PaymentPending,
	}
}

func TestPaymentLink(t *testing.T) {
	b := pendingBooking()
	gw := &fakeGateway{ok: true}
	svc := NewService(Dependencies{Bookings: &fakeBookings{byID: map[uuid.UUID]*bookings.Booking{b.ID: b}}, Gateway: gw}, Options{})

	link, err := svc.PaymentLink(context.Background(), ownerActor(), b.ID)
	require.NoError(t, err)
	assert.True(t, link.Created)
	assert.Equal(t, int64(10801), link.AmountCents)
	assert.Equal(t, "K7QX2M", gw.reference)

	_, err = svc.PaymentLink(context.Background(), middleware.Anonymous, b.ID)
	assert.True(t, apperrors.IsNotFound(err))

	b.PaymentStatus = bookings.PaymentPaid
	_, err = svc.PaymentLink(context.Background(), ownerActor(), b.ID)
	assert.True(t, apperrors.IsConflict(err))
}

func TestPaymentLink_GatewayDown(t *testing.T) {
	b := pendingBooking()
	svc := NewService(Dependencies{
		Bookings: &fakeBookings{byID: map[uuid.UUID]*bookings.Booking{b.ID: b}},
		Gateway:  &fakeGateway{err: errors.New("dial tcp: refused")},
	}, Options{})

	_, err := svc.PaymentLink(context.Background(), ownerActor(), b.ID)
	assert.EqualError(t, err, "dial tcp: refused")
}

func TestVerifyTransfer(t *testing.T) {
	b := pendingBooking()
	transfers := &fakeTransfers{}
	svc := NewService(Dependencies{Bookings: &fakeBookings{byID: map[uuid.UUID]*bookings.Booking{b.ID: b}}, Transfers: transfers}, Options{})

	check, err := svc.VerifyTransfer(context.Background(), ownerActor(), b.ID, []byte("img"))
	require.NoError(t, err)
	assert.True(t, check.Valid)
	assert.True(t, transfers.expected.Equal(b.GrandTotal))

	_, err = svc.VerifyTransfer(context.Background(), ownerActor(), b.ID, nil)
	assert.ErrorIs(t, err, transferverify.ErrEmptyImage)
}

func ticketsFor(seatNos ...string) []bookings.BookingTicket {
	out := make([]bookings.BookingTicket, len(seatNos))
	for i, s := range seatNos {
		out[i] = bookings.BookingTicket{ID: uuid.New(), SeatNo: s, UnitPrice: decimal.NewFromInt(100)}
	}
	return out
}

func TestSelectTickets(t *testing.T) {
	b := &bookings.Booking{Tickets: ticketsFor("A1", "A2", "B1")}

	all, err := selectTickets(b, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	some, err := selectTickets(b, []string{" a2", "A2", "b1"})
	require.NoError(t, err)
	require.Len(t, some, 2)
	assert.Equal(t, "A2", some[0].SeatNo)

	_, err = selectTickets(b, []string{"C9"})
	var validationErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)

	_, err = selectTickets(&bookings.Booking{}, nil)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCheckNotTravelled(t *testing.T) {
	tickets := ticketsFor("A1", "A2")
	assignments := []seats.SeatAssignment{
		{TicketID: tickets[0].ID, SeatNo: "A1", TravelStatus: seats.TravelTravelled},
		{TicketID: tickets[1].ID, SeatNo: "A2", TravelStatus: seats.TravelActive},
	}

	assert.NoError(t, checkNotTravelled(assignments, tickets[1:]))
	err := checkNotTravelled(assignments, tickets)
	assert.True(t, apperrors.IsConflict(err))
	assert.Contains(t, err.Error(), "A1")
}

func TestKeepTicketsAndReprice(t *testing.T) {
	b := &bookings.Booking{Tickets: ticketsFor("A1", "A2", "A3"), DiscountRate: decimal.RequireFromString("0.10")}
	b.Tickets = keepTickets(b.Tickets, []uuid.UUID{b.Tickets[1].ID})
	require.Len(t, b.Tickets, 2)
	require.NoError(t, b.Reprice())
	assert.True(t, b.Subtotal.Equal(decimal.NewFromInt(200)))
	assert.True(t, b.GrandTotal.Equal(decimal.NewFromInt(180)))
}

func TestAppendCancelled(t *testing.T) {
	assert.Equal(t, []string{"A1"}, appendCancelled(nil, []string{"A1"}))
	assert.Equal(t, []string{"A1", "A2"}, appendCancelled([]interface{}{"A1"}, []string{"A2"}))
	assert.Equal(t, []string{"A1", "A2"}, appendCancelled([]string{"A1"}, []string{"A2"}))
}

func TestCanManage(t *testing.T) {
	agentID := uuid.New()
	b := &bookings.Booking{OwnerID: ownerID, AgentID: &agentID}

	assert.True(t, canManage(ownerActor(), b))
	assert.True(t, canManage(middleware.Actor{UserID: uuid.New(), Role: users.RoleAdmin, Authenticated: true}, b))
	assert.True(t, canManage(middleware.Actor{UserID: agentID, Role: users.RoleAgent, Authenticated: true}, b))
	assert.False(t, canManage(middleware.Actor{UserID: uuid.New(), Role: users.RoleAgent, Authenticated: true}, b))
	assert.False(t, canManage(middleware.Anonymous, b))

	other := uuid.New()
	assert.False(t, canManage(middleware.Actor{UserID: uuid.New(), Role: users.RoleStaff, OwnerID: &other, Authenticated: true}, b))
}

func TestNewService_DefaultsToUTC(t *testing.T) {
	svc := NewService(Dependencies{}, Options{}).(*service)
	assert.Equal(t, time.UTC, svc.opts.Location)
}
