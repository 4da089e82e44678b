package bookings

import (
	"context"
	"testing"

	"ferryline/internal/pricing"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func ticket(price, seat string) BookingTicket {
	return BookingTicket{ID: uuid.New(), UnitPrice: dec(price), SeatNo: seat}
}

func TestReprice_WithTaxAndDiscount(t *testing.T) {
	profile := &pricing.TaxProfile{
		Lines: []pricing.TaxLine{
			{Name: "GST", Type: pricing.LineTypePercent, Value: dec("8"), AppliesTo: pricing.AppliesToFare, Active: true},
		},
		Rounding: pricing.RoundNearest,
	}
	b := &Booking{
		Tickets:      []BookingTicket{ticket("100", "A1"), ticket("100", "A2"), ticket("50", "A3")},
		DiscountRate: dec("0.10"),
		TaxSnapshot:  datatypes.NewJSONType(profile),
	}

	require.NoError(t, b.Reprice())
	assert.Equal(t, "250.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "20.00", b.TaxTotal.StringFixed(2))
	assert.Equal(t, "25.00", b.DiscountTotal.StringFixed(2))
	assert.Equal(t, "245.00", b.GrandTotal.StringFixed(2))

	// drop one ticket and reprice from the remaining snapshots
	b.Tickets = b.Tickets[:2]
	require.NoError(t, b.Reprice())
	assert.Equal(t, "200.00", b.Subtotal.StringFixed(2))
	assert.Equal(t, "196.00", b.GrandTotal.StringFixed(2))
	assert.NoError(t, b.CheckTotals())
}

func TestReprice_NoTaxSnapshot(t *testing.T) {
	b := &Booking{Tickets: []BookingTicket{ticket("100", "A1"), ticket("100", "A2")}}
	require.NoError(t, b.Reprice())
	assert.Equal(t, "200.00", b.GrandTotal.StringFixed(2))
	assert.True(t, b.TaxTotal.IsZero())
}

func TestCheckTotals_DetectsDrift(t *testing.T) {
	b := &Booking{Subtotal: dec("200"), TaxTotal: dec("0"), DiscountTotal: dec("0"), GrandTotal: dec("199.99")}
	err := b.CheckTotals()
	require.Error(t, err)
	assert.True(t, apperrors.IsInvariantViolation(err))
}

func TestSeatsAndMeta(t *testing.T) {
	b := &Booking{Tickets: []BookingTicket{ticket("1", "B2"), ticket("1", ""), ticket("1", "A1")}}
	assert.Equal(t, []string{"B2", "A1"}, b.Seats())

	b.SetMeta(MetaTicketIssuedAt, "2026-01-01T00:00:00Z")
	assert.Equal(t, "2026-01-01T00:00:00Z", b.Meta[MetaTicketIssuedAt])
}

func TestCanView(t *testing.T) {
	ownerID, otherOwner := uuid.New(), uuid.New()
	agentID, buyerID := uuid.New(), uuid.New()
	b := &Booking{OwnerID: ownerID, AgentID: &agentID, CreatedBy: &buyerID}

	cases := []struct {
		name  string
		actor middleware.Actor
		ok    bool
	}{
		{"admin", middleware.Actor{Role: users.RoleAdmin, Authenticated: true}, true},
		{"owner", middleware.Actor{Role: users.RoleOwner, OwnerID: &ownerID, Authenticated: true}, true},
		{"staff of owner", middleware.Actor{Role: users.RoleStaff, OwnerID: &ownerID, Authenticated: true}, true},
		{"other owner", middleware.Actor{Role: users.RoleOwner, OwnerID: &otherOwner, Authenticated: true}, false},
		{"selling agent", middleware.Actor{UserID: agentID, Role: users.RoleAgent, Authenticated: true}, true},
		{"other agent", middleware.Actor{UserID: uuid.New(), Role: users.RoleAgent, Authenticated: true}, false},
		{"buyer", middleware.Actor{UserID: buyerID, Role: users.RolePublic, Authenticated: true}, true},
		{"anonymous", middleware.Anonymous, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.ok, CanView(tc.actor, b))
		})
	}
}

type fakeRepo struct {
	Repository
	bookings   map[uuid.UUID]*Booking
	lastFilter ListFilter
}

func (f *fakeRepo) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error) {
	if b, ok := f.bookings[id]; ok {
		return b, nil
	}
	return nil, apperrors.NotFound("booking", id.String())
}

func (f *fakeRepo) List(ctx context.Context, filter ListFilter) ([]Booking, int64, error) {
	f.lastFilter = filter
	return []Booking{{}}, 41, nil
}

type fixedOwner uuid.UUID

func (o fixedOwner) OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	return uuid.UUID(o), nil
}

func TestService_GetHidesOtherBookings(t *testing.T) {
	id := uuid.New()
	repo := &fakeRepo{bookings: map[uuid.UUID]*Booking{id: {ID: id, OwnerID: uuid.New()}}}
	svc := NewService(repo, fixedOwner(uuid.New()))

	_, err := svc.Get(context.Background(), middleware.Actor{UserID: uuid.New(), Role: users.RolePublic, Authenticated: true}, id)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestService_ListMineScopesByRole(t *testing.T) {
	repo := &fakeRepo{}
	svc := NewService(repo, fixedOwner(uuid.New()))
	agent := middleware.Actor{UserID: uuid.New(), Role: users.RoleAgent, Authenticated: true}

	result, err := svc.ListMine(context.Background(), agent, ListQuery{Limit: 20})
	require.NoError(t, err)
	require.NotNil(t, repo.lastFilter.AgentID)
	assert.Equal(t, agent.UserID, *repo.lastFilter.AgentID)
	assert.Equal(t, 3, result.TotalPages)

	_, err = svc.ListMine(context.Background(), middleware.Anonymous, ListQuery{})
	assert.Equal(t, 403, apperrors.HTTPStatus(err))
}

func TestService_ListForScheduleChecksOwner(t *testing.T) {
	ownerID := uuid.New()
	repo := &fakeRepo{}
	svc := NewService(repo, fixedOwner(ownerID))

	other := uuid.New()
	_, err := svc.ListForSchedule(context.Background(), middleware.Actor{Role: users.RoleOwner, OwnerID: &other, Authenticated: true}, uuid.New(), ListQuery{})
	assert.Equal(t, 403, apperrors.HTTPStatus(err))

	_, err = svc.ListForSchedule(context.Background(), middleware.Actor{Role: users.RoleOwner, OwnerID: &ownerID, Authenticated: true}, uuid.New(), ListQuery{Channel: "AGENT"})
	require.NoError(t, err)
	assert.Equal(t, ChannelAgent, repo.lastFilter.Channel)
}
