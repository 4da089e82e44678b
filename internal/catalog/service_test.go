package catalog

import (
	"context"
	"testing"

	"ferryline/internal/pricing"
	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockRepo struct {
	ticketTypes map[uuid.UUID]*TicketType
	referenced  map[uuid.UUID]bool
	enabled     []ScheduleTicketType
	updates     map[string]interface{}
}

func newMockRepo() *mockRepo {
	return &mockRepo{ticketTypes: map[uuid.UUID]*TicketType{}, referenced: map[uuid.UUID]bool{}}
}

func (m *mockRepo) CreateTicketType(ctx context.Context, tt *TicketType) error {
	tt.ID = uuid.New()
	m.ticketTypes[tt.ID] = tt
	return nil
}
func (m *mockRepo) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	if tt, ok := m.ticketTypes[id]; ok {
		return tt, nil
	}
	return nil, apperrors.NotFound("ticket type", id.String())
}
func (m *mockRepo) ListTicketTypes(ctx context.Context, ownerID uuid.UUID) ([]TicketType, error) {
	return nil, nil
}
func (m *mockRepo) UpdateTicketType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*TicketType, error) {
	m.updates = updates
	return m.ticketTypes[id], nil
}
func (m *mockRepo) IsTicketTypeReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	return m.referenced[id], nil
}
func (m *mockRepo) CreateTaxProfile(ctx context.Context, p *TaxProfile) error {
	p.ID = uuid.New()
	return nil
}
func (m *mockRepo) GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*TaxProfile, error) {
	return nil, apperrors.NotFound("tax profile", id.String())
}
func (m *mockRepo) ListTaxProfiles(ctx context.Context, ownerID uuid.UUID) ([]TaxProfile, error) {
	return nil, nil
}
func (m *mockRepo) UpsertScheduleTicketType(ctx context.Context, stt *ScheduleTicketType) error {
	stt.TicketType = *m.ticketTypes[stt.TicketTypeID]
	m.enabled = append(m.enabled, *stt)
	return nil
}
func (m *mockRepo) ListScheduleTicketTypes(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, activeOnly bool) ([]ScheduleTicketType, error) {
	return m.enabled, nil
}
func (m *mockRepo) GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*ScheduleTicketType, error) {
	for i := range m.enabled {
		if m.enabled[i].TicketTypeID == ticketTypeID {
			return &m.enabled[i], nil
		}
	}
	return nil, apperrors.InvalidTicketType(ticketTypeID.String())
}

type fixedOwner struct{ owner uuid.UUID }

func (f fixedOwner) OwnerOf(ctx context.Context, scheduleID uuid.UUID) (uuid.UUID, error) {
	return f.owner, nil
}

func TestUpdateTicketType_RejectsReferenced(t *testing.T) {
	repo := newMockRepo()
	owner := uuid.New()
	svc := NewService(repo, fixedOwner{owner}, nil, "MVR")

	tt, err := svc.CreateTicketType(context.Background(), owner, CreateTicketTypeRequest{Name: "Adult", Code: "adt", BasePrice: decimal.NewFromInt(100)})
	require.NoError(t, err)
	assert.Equal(t, "ADT", tt.Code)
	assert.Equal(t, "MVR", tt.Currency)

	repo.referenced[tt.ID] = true
	name := "Adult Plus"
	_, err = svc.UpdateTicketType(context.Background(), owner, tt.ID, UpdateTicketTypeRequest{Name: &name})

	var conflict *apperrors.StateConflictError
	assert.ErrorAs(t, err, &conflict)
	assert.Nil(t, repo.updates)
}

func TestUpdateTicketType_OtherOwnerForbidden(t *testing.T) {
	repo := newMockRepo()
	owner := uuid.New()
	svc := NewService(repo, fixedOwner{owner}, nil, "MVR")

	tt, err := svc.CreateTicketType(context.Background(), owner, CreateTicketTypeRequest{Name: "Adult", Code: "ADT", BasePrice: decimal.NewFromInt(100)})
	require.NoError(t, err)

	active := false
	_, err = svc.UpdateTicketType(context.Background(), uuid.New(), tt.ID, UpdateTicketTypeRequest{Active: &active})
	assert.Equal(t, 403, apperrors.HTTPStatus(err))
}

func TestCreateTaxProfile_ValidatesLines(t *testing.T) {
	svc := NewService(newMockRepo(), fixedOwner{}, nil, "MVR")

	_, err := svc.CreateTaxProfile(context.Background(), uuid.New(), CreateTaxProfileRequest{
		Name:  "Bad",
		Lines: []pricing.TaxLine{{Name: "GST", Type: pricing.LineTypePercent, Value: decimal.NewFromInt(120), Active: true}},
	})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "lines[0]", verr.Field)

	p, err := svc.CreateTaxProfile(context.Background(), uuid.New(), CreateTaxProfileRequest{
		Name:  "GST",
		Lines: []pricing.TaxLine{{Name: "GST", Type: pricing.LineTypePercent, Value: decimal.NewFromInt(8), AppliesTo: pricing.AppliesToFare, Active: true}},
	})
	require.NoError(t, err)
	assert.Equal(t, pricing.RoundUp, p.Rounding)
}

func TestEnableTicketType_AndListSellableByChannel(t *testing.T) {
	repo := newMockRepo()
	owner := uuid.New()
	schedule := uuid.New()
	svc := NewService(repo, fixedOwner{owner}, nil, "MVR")
	ctx := context.Background()

	adult, err := svc.CreateTicketType(ctx, owner, CreateTicketTypeRequest{Name: "Adult", Code: "ADT", BasePrice: decimal.NewFromInt(100)})
	require.NoError(t, err)
	agentOnly, err := svc.CreateTicketType(ctx, owner, CreateTicketTypeRequest{Name: "Tour", Code: "TOUR", BasePrice: decimal.NewFromInt(80)})
	require.NoError(t, err)

	_, err = svc.EnableTicketType(ctx, owner, schedule, EnableTicketTypeRequest{
		TicketTypeID: adult.ID.String(), Surcharge: decimal.NewFromInt(5), Channel: "BOTH",
	})
	require.NoError(t, err)
	_, err = svc.EnableTicketType(ctx, owner, schedule, EnableTicketTypeRequest{
		TicketTypeID: agentOnly.ID.String(), Discount: decimal.NewFromInt(10), Channel: "AGENT",
	})
	require.NoError(t, err)

	public, err := svc.ListSellable(ctx, schedule, "PUBLIC")
	require.NoError(t, err)
	require.Len(t, public, 1)
	assert.Equal(t, "ADT", public[0].Code)
	assert.Equal(t, "105", public[0].UnitPrice.String())

	agent, err := svc.ListSellable(ctx, schedule, "AGENT")
	require.NoError(t, err)
	assert.Len(t, agent, 2)

	ownerSide, err := svc.ListSellable(ctx, schedule, "OWNER")
	require.NoError(t, err)
	assert.Len(t, ownerSide, 2)
}

func TestEnableTicketType_RejectsNegativeUnitPrice(t *testing.T) {
	repo := newMockRepo()
	owner := uuid.New()
	svc := NewService(repo, fixedOwner{owner}, nil, "MVR")

	tt, err := svc.CreateTicketType(context.Background(), owner, CreateTicketTypeRequest{Name: "Child", Code: "CHD", BasePrice: decimal.NewFromInt(20)})
	require.NoError(t, err)

	_, err = svc.EnableTicketType(context.Background(), owner, uuid.New(), EnableTicketTypeRequest{
		TicketTypeID: tt.ID.String(), Discount: decimal.NewFromInt(25),
	})
	var verr *apperrors.ValidationError
	assert.ErrorAs(t, err, &verr)
	assert.Empty(t, repo.enabled)
}

func TestChannelScopeAllows(t *testing.T) {
	assert.True(t, ScopePublic.Allows("PUBLIC"))
	assert.False(t, ScopePublic.Allows("AGENT"))
	assert.True(t, ScopeAgent.Allows("AGENT"))
	assert.True(t, ScopeBoth.Allows("PUBLIC"))
	assert.True(t, ScopeAgent.Allows("OWNER"))
	assert.False(t, ScopeBoth.Allows("WALKIN"))
}
