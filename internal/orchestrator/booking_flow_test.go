package orchestrator

import (
	"context"
	"testing"
	"time"

	"ferryline/internal/agents"
	"ferryline/internal/boats"
	"ferryline/internal/bookings"
	"ferryline/internal/cancellation"
	"ferryline/internal/catalog"
	"ferryline/internal/ledger"
	"ferryline/internal/pricing"
	"ferryline/internal/schedules"
	"ferryline/internal/seats"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// In-memory collaborators. The seat inventory and the ledger are the real
// services running over these.

type memSchedules struct {
	schedules.Repository
	schedule *schedules.Schedule
}

func (m *memSchedules) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*schedules.Schedule, error) {
	if m.schedule.ID != id {
		return nil, apperrors.NotFound("schedule", id.String())
	}
	copied := *m.schedule
	return &copied, nil
}

func (m *memSchedules) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*schedules.Schedule, error) {
	return m.GetByID(ctx, tx, id)
}

func (m *memSchedules) SetAvailableSeats(ctx context.Context, tx *gorm.DB, id uuid.UUID, available int) error {
	m.schedule.AvailableSeats = available
	return nil
}

func (m *memSchedules) ListBlocked(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]schedules.BlockedSeat, error) {
	return nil, nil
}

type memSeatRows struct {
	rows []seats.SeatAssignment
}

func (m *memSeatRows) ListOccupying(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]seats.SeatAssignment, error) {
	var out []seats.SeatAssignment
	for _, r := range m.rows {
		if r.ScheduleID == scheduleID && r.TravelStatus.Occupies() {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSeatRows) ListByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]seats.SeatAssignment, error) {
	var out []seats.SeatAssignment
	for _, r := range m.rows {
		if r.BookingID == bookingID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSeatRows) Create(ctx context.Context, tx *gorm.DB, assignments []seats.SeatAssignment) error {
	for _, a := range assignments {
		a.ID = uuid.New()
		m.rows = append(m.rows, a)
	}
	return nil
}

func (m *memSeatRows) DeleteActive(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNos []string) (int64, error) {
	drop := map[string]bool{}
	for _, s := range seatNos {
		drop[s] = true
	}
	kept := m.rows[:0]
	var n int64
	for _, r := range m.rows {
		if r.ScheduleID == scheduleID && drop[r.SeatNo] && r.TravelStatus == seats.TravelActive {
			n++
			continue
		}
		kept = append(kept, r)
	}
	m.rows = kept
	return n, nil
}

func (m *memSeatRows) GetByTicketForUpdate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*seats.SeatAssignment, error) {
	for i := range m.rows {
		if m.rows[i].TicketID == ticketID {
			copied := m.rows[i]
			return &copied, nil
		}
	}
	return nil, apperrors.NotFound("seat assignment", ticketID.String())
}

func (m *memSeatRows) MarkTravelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, by *uuid.UUID, at time.Time) error {
	for i := range m.rows {
		if m.rows[i].ID == id {
			m.rows[i].TravelStatus = seats.TravelTravelled
		}
	}
	return nil
}

type memBoats struct {
	boats.Service
	boat boats.Boat
}

func (m *memBoats) GetLayout(ctx context.Context, boatID uuid.UUID) (*boats.Layout, error) {
	layout := m.boat.Layout()
	return &layout, nil
}

type memBookings struct {
	bookings.Repository
	byID map[uuid.UUID]*bookings.Booking
}

func cloneBooking(b *bookings.Booking) *bookings.Booking {
	c := *b
	c.Tickets = append([]bookings.BookingTicket(nil), b.Tickets...)
	if b.Meta != nil {
		c.Meta = make(map[string]interface{}, len(b.Meta))
		for k, v := range b.Meta {
			c.Meta[k] = v
		}
	}
	return &c
}

func (m *memBookings) Create(ctx context.Context, tx *gorm.DB, b *bookings.Booking) error {
	m.byID[b.ID] = cloneBooking(b)
	return nil
}

func (m *memBookings) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	for _, b := range m.byID {
		if b.Code == code {
			return true, nil
		}
	}
	return false, nil
}

func (m *memBookings) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*bookings.Booking, error) {
	b, ok := m.byID[id]
	if !ok {
		return nil, apperrors.NotFound("booking", id.String())
	}
	return cloneBooking(b), nil
}

func (m *memBookings) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*bookings.Booking, error) {
	return m.GetByID(ctx, tx, id)
}

func (m *memBookings) GetTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*bookings.BookingTicket, error) {
	for _, b := range m.byID {
		for _, t := range b.Tickets {
			if t.ID == ticketID {
				copied := t
				return &copied, nil
			}
		}
	}
	return nil, apperrors.NotFound("ticket", ticketID.String())
}

func (m *memBookings) Save(ctx context.Context, tx *gorm.DB, b *bookings.Booking) error {
	m.byID[b.ID] = cloneBooking(b)
	return nil
}

func (m *memBookings) DeleteTickets(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, ticketIDs []uuid.UUID) error {
	if b, ok := m.byID[bookingID]; ok {
		c := cloneBooking(b)
		c.Tickets = keepTickets(c.Tickets, ticketIDs)
		m.byID[bookingID] = c
	}
	return nil
}

func (m *memBookings) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	delete(m.byID, id)
	return nil
}

type memCatalog struct {
	catalog.Service
	types   map[uuid.UUID]*catalog.ScheduleTicketType
	profile *catalog.TaxProfile
}

func (m *memCatalog) GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*catalog.ScheduleTicketType, error) {
	if stt, ok := m.types[ticketTypeID]; ok {
		return stt, nil
	}
	return nil, apperrors.InvalidTicketType(ticketTypeID.String())
}

func (m *memCatalog) GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*catalog.TaxProfile, error) {
	if m.profile == nil || m.profile.ID != id {
		return nil, apperrors.NotFound("tax profile", id.String())
	}
	return m.profile, nil
}

type memLedger struct {
	ledger.Repository
	settings ledger.PlatformSettings
	entries  []ledger.CommissionEntry
}

func (m *memLedger) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *ledger.PaymentTransaction) error {
	txn.ID = uuid.New()
	return nil
}

func (m *memLedger) LockParty(ctx context.Context, tx *gorm.DB, party ledger.Party, partyID *uuid.UUID) error {
	return nil
}

func (m *memLedger) LastBalance(ctx context.Context, tx *gorm.DB, party ledger.Party, partyID *uuid.UUID) (decimal.Decimal, error) {
	for i := len(m.entries) - 1; i >= 0; i-- {
		e := m.entries[i]
		if e.Party != party {
			continue
		}
		if (e.PartyID == nil && partyID == nil) || (e.PartyID != nil && partyID != nil && *e.PartyID == *partyID) {
			return e.RunningBalance, nil
		}
	}
	return decimal.Zero, nil
}

func (m *memLedger) Append(ctx context.Context, tx *gorm.DB, entry *ledger.CommissionEntry) error {
	entry.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *entry)
	return nil
}

func (m *memLedger) EntriesForBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]ledger.CommissionEntry, error) {
	var out []ledger.CommissionEntry
	for _, e := range m.entries {
		if e.BookingID == bookingID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memLedger) ActiveSettings(ctx context.Context, tx *gorm.DB) (*ledger.PlatformSettings, error) {
	s := m.settings
	return &s, nil
}

type memAgents struct {
	agents.Service
	conn agents.Connection
}

func (m *memAgents) RequireApproved(ctx context.Context, tx *gorm.DB, ownerID, agentID uuid.UUID) (*agents.Connection, error) {
	if m.conn.OwnerID != ownerID || m.conn.AgentID != agentID || m.conn.Status != agents.StatusApproved {
		return nil, apperrors.Forbidden("agent is not approved for this owner")
	}
	copied := m.conn
	return &copied, nil
}

func (m *memAgents) AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	m.conn.CurrentBalance = m.conn.CurrentBalance.Add(delta)
	return m.conn.CurrentBalance, nil
}

type memCancellations struct {
	cancellation.Service
	records []cancellation.Record
}

func (m *memCancellations) Record(ctx context.Context, tx *gorm.DB, r *cancellation.Record) error {
	m.records = append(m.records, *r)
	return nil
}

type flow struct {
	svc      Service
	schedule *memSchedules
	bookings *memBookings
	rows     *memSeatRows
	ledger   *memLedger
	agents   *memAgents
	cancels  *memCancellations
	pickup   uuid.UUID
	dropoff  uuid.UUID
	fare     uuid.UUID
	agentID  uuid.UUID
}

// newFlow builds a published public schedule on the given boat with a 100.00
// fare and, when lines are given, a tax profile made of them.
func newFlow(t *testing.T, boat boats.Boat, lines ...pricing.TaxLine) *flow {
	t.Helper()
	f := &flow{
		pickup:  uuid.New(),
		dropoff: uuid.New(),
		fare:    uuid.New(),
		agentID: uuid.New(),
	}
	boat.ID = uuid.New()
	capacity := len(boat.SeatNumbers())

	schedule := &schedules.Schedule{
		ID:                  uuid.New(),
		OwnerID:             ownerID,
		BoatID:              boat.ID,
		Name:                "Male - Maafushi",
		Date:                time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC),
		TotalSeats:          capacity,
		AvailableSeats:      capacity,
		IsPublic:            true,
		Status:              schedules.StatusPublished,
		DefaultBoardingTime: "08:00",
		Destinations: []schedules.ScheduleDestination{
			{ID: f.pickup, Sequence: 1, IslandName: "Male", IsPickup: true},
			{ID: f.dropoff, Sequence: 2, IslandName: "Maafushi", IsDropoff: true},
		},
	}
	cat := &memCatalog{types: map[uuid.UUID]*catalog.ScheduleTicketType{
		f.fare: {TicketTypeID: f.fare, Active: true, Channel: catalog.ScopeBoth,
			TicketType: catalog.TicketType{Name: "Adult", BasePrice: decimal.NewFromInt(100), Active: true}},
	}}
	if len(lines) > 0 {
		cat.profile = &catalog.TaxProfile{ID: uuid.New(), OwnerID: ownerID, Lines: lines, Rounding: pricing.RoundNearest, Active: true}
		schedule.TaxProfileID = &cat.profile.ID
	}

	f.schedule = &memSchedules{schedule: schedule}
	f.bookings = &memBookings{byID: map[uuid.UUID]*bookings.Booking{}}
	f.rows = &memSeatRows{}
	f.ledger = &memLedger{settings: ledger.PlatformSettings{
		CommissionPerBooking: decimal.NewFromInt(5),
		Currency:             "MVR",
		RetainFeeOnRefund:    true,
		Active:               true,
	}}
	f.agents = &memAgents{conn: agents.Connection{
		ID:             uuid.New(),
		OwnerID:        ownerID,
		AgentID:        f.agentID,
		Currency:       "MVR",
		CurrentBalance: decimal.Zero,
		Status:         agents.StatusApproved,
	}}
	f.cancels = &memCancellations{}

	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	svc := NewService(Dependencies{
		Bookings:      f.bookings,
		Schedules:     f.schedule,
		Catalog:       cat,
		Seats:         seats.NewService(nil, f.rows, f.schedule, &memBoats{boat: boat}, nil, nil, time.Minute),
		Ledger:        ledger.NewService(f.ledger, f.agents, node),
		Agents:        f.agents,
		Cancellations: f.cancels,
	}, Options{Currency: "MVR", DefaultBoardingTime: "07:00"}).(*service)
	svc.runTx = func(ctx context.Context, fn func(tx *gorm.DB) error) error {
		saved := f.save()
		if err := fn(nil); err != nil {
			f.rollback(saved)
			return err
		}
		return nil
	}
	f.svc = svc
	return f
}

type flowState struct {
	bookings  map[uuid.UUID]*bookings.Booking
	rows      []seats.SeatAssignment
	available int
	entries   []ledger.CommissionEntry
	conn      agents.Connection
	records   []cancellation.Record
}

// save and rollback stand in for the database transaction.
func (f *flow) save() flowState {
	st := flowState{
		bookings:  make(map[uuid.UUID]*bookings.Booking, len(f.bookings.byID)),
		rows:      append([]seats.SeatAssignment(nil), f.rows.rows...),
		available: f.schedule.schedule.AvailableSeats,
		entries:   append([]ledger.CommissionEntry(nil), f.ledger.entries...),
		conn:      f.agents.conn,
		records:   append([]cancellation.Record(nil), f.cancels.records...),
	}
	for id, b := range f.bookings.byID {
		st.bookings[id] = b
	}
	return st
}

func (f *flow) rollback(st flowState) {
	f.bookings.byID = st.bookings
	f.rows.rows = st.rows
	f.schedule.schedule.AvailableSeats = st.available
	f.ledger.entries = st.entries
	f.agents.conn = st.conn
	f.cancels.records = st.records
}

func chartBoat() boats.Boat {
	return boats.Boat{SeatingType: boats.SeatingChart, Rows: 2, SeatsPerRow: 5, TotalSeats: 10}
}

func (f *flow) request(seatNos ...string) CreateBookingRequest {
	req := CreateBookingRequest{
		Buyer:                bookings.BuyerRequest{Name: "Aishath Ali", Phone: "+9607771234"},
		PickupDestinationID:  f.pickup.String(),
		DropoffDestinationID: f.dropoff.String(),
	}
	for _, seat := range seatNos {
		req.Tickets = append(req.Tickets, bookings.TicketRequest{TicketTypeID: f.fare.String(), PassengerName: "Passenger " + seat, SeatNo: seat})
	}
	return req
}

func (f *flow) agent() middleware.Actor {
	return middleware.Actor{UserID: f.agentID, Role: users.RoleAgent, Authenticated: true}
}

func (f *flow) available() int {
	return f.schedule.schedule.AvailableSeats
}

func ticketFor(t *testing.T, b *bookings.Booking, seat string) uuid.UUID {
	t.Helper()
	for _, tk := range b.Tickets {
		if tk.SeatNo == seat {
			return tk.ID
		}
	}
	t.Fatalf("booking %s has no ticket on seat %s", b.Code, seat)
	return uuid.Nil
}

func TestCreateBooking_ReservesSeats(t *testing.T) {
	f := newFlow(t, chartBoat())
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, middleware.Anonymous, f.schedule.schedule.ID, f.request("a1", "A2"))
	require.NoError(t, err)

	assert.Equal(t, bookings.ChannelPublic, b.Channel)
	assert.Equal(t, []string{"A1", "A2"}, b.Seats())
	assert.True(t, decimal.NewFromInt(200).Equal(b.GrandTotal))
	assert.Equal(t, time.Date(2026, 11, 2, 8, 0, 0, 0, time.UTC), b.DepartureAt)
	assert.Equal(t, 8, f.available())
	assert.Len(t, f.rows.rows, 2)

	_, err = f.svc.CreateBooking(ctx, middleware.Anonymous, f.schedule.schedule.ID, f.request("A3", "A2"))
	require.True(t, apperrors.IsSeatConflict(err))
	assert.Equal(t, []string{"A2"}, apperrors.ConflictingSeats(err))
	assert.Equal(t, 8, f.available())
	assert.Len(t, f.bookings.byID, 1)
}

func TestCreateBooking_AfterCheckInKeepsTravelledSeat(t *testing.T) {
	f := newFlow(t, chartBoat())
	ctx := context.Background()
	scheduleID := f.schedule.schedule.ID

	first, err := f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request("B1"))
	require.NoError(t, err)

	assignment, err := f.svc.MarkTravelled(ctx, ownerActor(), ticketFor(t, first, "B1"))
	require.NoError(t, err)
	assert.Equal(t, seats.TravelTravelled, assignment.TravelStatus)

	second, err := f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request("A1"))
	require.NoError(t, err)
	assert.Equal(t, []string{"A1"}, second.Seats())
	assert.Equal(t, 8, f.available())

	_, err = f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request("B1"))
	require.True(t, apperrors.IsSeatConflict(err))
	assert.Equal(t, []string{"B1"}, apperrors.ConflictingSeats(err))

	_, err = f.svc.CancelBooking(ctx, ownerActor(), first.ID, CancelRequest{})
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 8, f.available())

	seatMap, err := f.svc.GetSeatMap(ctx, scheduleID)
	require.NoError(t, err)
	assert.Equal(t, []string{"A1", "B1"}, seatMap.Booked)
	assert.Equal(t, 8, seatMap.Available)
}

func TestCreateBooking_SeatlessTicketsCountAgainstCapacity(t *testing.T) {
	f := newFlow(t, boats.Boat{SeatingType: boats.SeatingTotal, TotalSeats: 3})
	ctx := context.Background()
	scheduleID := f.schedule.schedule.ID

	b, err := f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request("", "1"))
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"1", "2"}, b.Seats())
	assert.Equal(t, 1, f.available())

	_, err = f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request("", ""))
	assert.True(t, apperrors.IsConflict(err))
	assert.Equal(t, 1, f.available())

	last, err := f.svc.CreateBooking(ctx, middleware.Anonymous, scheduleID, f.request(""))
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, last.Seats())
	assert.Equal(t, 0, f.available())
}

func TestCreateBooking_AgentNeedsApproval(t *testing.T) {
	f := newFlow(t, chartBoat())
	f.agents.conn.Status = agents.StatusPending

	_, err := f.svc.CreateBooking(context.Background(), f.agent(), f.schedule.schedule.ID, f.request("A1"))
	var forbidden *apperrors.ForbiddenError
	assert.ErrorAs(t, err, &forbidden)
	assert.Equal(t, 10, f.available())
	assert.Empty(t, f.rows.rows)
}

func TestIssueTicket_PostsOnceAndConfirms(t *testing.T) {
	f := newFlow(t, chartBoat())
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.agent(), f.schedule.schedule.ID, f.request("A1", "A2"))
	require.NoError(t, err)

	res, err := f.svc.IssueTicket(ctx, f.agent(), b.ID, IssueRequest{PaymentMethod: "cash"})
	require.NoError(t, err)
	assert.Equal(t, "5.00", res.CommissionAmount.StringFixed(2))
	assert.Equal(t, "195.00", res.OwnerAmount.StringFixed(2))
	assert.Len(t, f.ledger.entries, 3)
	assert.Equal(t, "200.00", f.agents.conn.CurrentBalance.StringFixed(2))

	stored := f.bookings.byID[b.ID]
	assert.Equal(t, bookings.PaymentPaid, stored.PaymentStatus)
	assert.Equal(t, bookings.FulfillmentConfirmed, stored.FulfillmentStatus)
	assert.Equal(t, bookings.FinancePosted, stored.FinanceStatus)

	_, err = f.svc.IssueTicket(ctx, f.agent(), b.ID, IssueRequest{PaymentMethod: "cash"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadyIssued)
	assert.Len(t, f.ledger.entries, 3)
}

func TestCancelBooking_AgentPartialUnderFixedTax(t *testing.T) {
	f := newFlow(t, chartBoat(), pricing.TaxLine{
		Name: "Port fee", Type: pricing.LineTypeFixed, Value: decimal.NewFromInt(10), AppliesTo: pricing.AppliesToFare, Active: true,
	})
	ctx := context.Background()

	b, err := f.svc.CreateBooking(ctx, f.agent(), f.schedule.schedule.ID, f.request("A1", "A2"))
	require.NoError(t, err)
	assert.Equal(t, "210.00", b.GrandTotal.StringFixed(2))

	_, err = f.svc.IssueTicket(ctx, f.agent(), b.ID, IssueRequest{PaymentMethod: "bank_transfer", Reference: "BML-1"})
	require.NoError(t, err)
	assert.Equal(t, "210.00", f.agents.conn.CurrentBalance.StringFixed(2))

	res, err := f.svc.CancelBooking(ctx, f.agent(), b.ID, CancelRequest{Seats: []string{"a2"}, Reason: "passenger no-show"})
	require.NoError(t, err)
	assert.False(t, res.Full)
	assert.True(t, res.ReversalPosted)
	assert.Equal(t, []string{"A2"}, res.SeatsFreed)
	require.NotNil(t, res.Remaining)
	assert.Equal(t, "110.00", res.Remaining.GrandTotal.StringFixed(2))

	// the payable tracks what the agent still owes for the remaining seat
	assert.Equal(t, "110.00", f.agents.conn.CurrentBalance.StringFixed(2))
	stored := f.bookings.byID[b.ID]
	assert.Equal(t, bookings.FinanceAdjusted, stored.FinanceStatus)
	assert.Equal(t, []string{"A1"}, stored.Seats())
	assert.Equal(t, 9, f.available())

	require.Len(t, f.cancels.records, 1)
	assert.Equal(t, "100.00", f.cancels.records[0].AmountRemoved.StringFixed(2))
	assert.Equal(t, "110.00", f.cancels.records[0].RemainingTotal.StringFixed(2))

	full, err := f.svc.CancelBooking(ctx, f.agent(), b.ID, CancelRequest{Reason: "trip called off"})
	require.NoError(t, err)
	assert.True(t, full.Full)
	assert.True(t, f.agents.conn.CurrentBalance.IsZero())
	assert.NotContains(t, f.bookings.byID, b.ID)
	assert.Equal(t, 10, f.available())
}
