package drafts

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"ferryline/internal/bookings"
	"ferryline/internal/orchestrator"
	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"
	"ferryline/pkg/cache"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCache struct {
	cache.Service
	data map[string][]byte
	ttls map[string]time.Duration
}

func newMemCache() *memCache {
	return &memCache{data: map[string][]byte{}, ttls: map[string]time.Duration{}}
}

func (m *memCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return cache.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.ttls[key] = ttl
	return nil
}

func (m *memCache) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

type recordingCreator struct {
	calls []orchestrator.CreateBookingRequest
	err   error
}

func (r *recordingCreator) CreateBooking(ctx context.Context, actor middleware.Actor, scheduleID uuid.UUID, req orchestrator.CreateBookingRequest) (*bookings.Booking, error) {
	r.calls = append(r.calls, req)
	if r.err != nil {
		return nil, r.err
	}
	return &bookings.Booking{ID: uuid.New(), ScheduleID: scheduleID, Code: "K7QX2M"}, nil
}

func agent() middleware.Actor {
	return middleware.Actor{UserID: uuid.New(), Role: users.RoleAgent, Authenticated: true}
}

func TestDraftLifecycle(t *testing.T) {
	store := newMemCache()
	creator := &recordingCreator{}
	svc := NewService(store, creator, 30*time.Minute)
	ctx := context.Background()
	actor := agent()
	scheduleID := uuid.New()

	d, err := svc.Create(ctx, actor, CreateDraftRequest{ScheduleID: scheduleID.String()})
	require.NoError(t, err)
	assert.Equal(t, 30*time.Minute, store.ttls[constants.BuildDraftKey(d.ID)])
	assert.ElementsMatch(t, []string{"buyer", "pickup_destination_id", "dropoff_destination_id", "tickets"}, d.Missing())

	pickup, dropoff := uuid.NewString(), uuid.NewString()
	tickets := []bookings.TicketRequest{{TicketTypeID: uuid.NewString(), PassengerName: "Aisha", SeatNo: "A1"}}
	d, err = svc.Update(ctx, actor, d.ID, UpdateDraftRequest{
		Buyer:                &bookings.BuyerRequest{Name: "Aisha Ibrahim", Phone: "7771234"},
		PickupDestinationID:  &pickup,
		DropoffDestinationID: &dropoff,
		Tickets:              &tickets,
		Meta:                 map[string]interface{}{"source": "kiosk"},
	})
	require.NoError(t, err)
	assert.Empty(t, d.Missing())

	booking, err := svc.Submit(ctx, actor, d.ID)
	require.NoError(t, err)
	assert.Equal(t, scheduleID, booking.ScheduleID)

	require.Len(t, creator.calls, 1)
	assert.Equal(t, d.ID, creator.calls[0].DraftID)
	assert.Equal(t, "kiosk", creator.calls[0].Meta["source"])
	assert.Equal(t, pickup, creator.calls[0].PickupDestinationID)

	_, err = svc.Get(ctx, actor, d.ID)
	assert.True(t, apperrors.IsNotFound(err), "submitted draft is gone")
}

func TestSubmit_IncompleteDraft(t *testing.T) {
	creator := &recordingCreator{}
	svc := NewService(newMemCache(), creator, time.Minute)
	actor := agent()

	d, err := svc.Create(context.Background(), actor, CreateDraftRequest{
		ScheduleID: uuid.NewString(),
		Buyer:      &bookings.BuyerRequest{Name: "Aisha", Phone: "7771234"},
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), actor, d.ID)
	var validationErr *apperrors.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.True(t, strings.Contains(err.Error(), "tickets"))
	assert.Empty(t, creator.calls)
}

func TestSubmit_ConflictKeepsDraft(t *testing.T) {
	creator := &recordingCreator{err: apperrors.SeatConflict("A1")}
	svc := NewService(newMemCache(), creator, time.Minute)
	actor := agent()

	d, err := svc.Create(context.Background(), actor, CreateDraftRequest{
		ScheduleID:           uuid.NewString(),
		Buyer:                &bookings.BuyerRequest{Name: "Aisha", Phone: "7771234"},
		PickupDestinationID:  uuid.NewString(),
		DropoffDestinationID: uuid.NewString(),
		Tickets:              []bookings.TicketRequest{{TicketTypeID: uuid.NewString(), PassengerName: "Aisha", SeatNo: "A1"}},
	})
	require.NoError(t, err)

	_, err = svc.Submit(context.Background(), actor, d.ID)
	assert.True(t, apperrors.IsSeatConflict(err))

	_, err = svc.Get(context.Background(), actor, d.ID)
	assert.NoError(t, err)
}

func TestDraftsArePrivateToTheirCreator(t *testing.T) {
	svc := NewService(newMemCache(), &recordingCreator{}, time.Minute)
	ctx := context.Background()

	d, err := svc.Create(ctx, agent(), CreateDraftRequest{ScheduleID: uuid.NewString()})
	require.NoError(t, err)
	_, err = svc.Get(ctx, agent(), d.ID)
	assert.True(t, apperrors.IsNotFound(err))
	_, err = svc.Get(ctx, middleware.Anonymous, d.ID)
	assert.True(t, apperrors.IsNotFound(err))

	anon, err := svc.Create(ctx, middleware.Anonymous, CreateDraftRequest{ScheduleID: uuid.NewString()})
	require.NoError(t, err)
	_, err = svc.Get(ctx, middleware.Anonymous, anon.ID)
	assert.NoError(t, err)
}

func TestDiscard(t *testing.T) {
	svc := NewService(newMemCache(), &recordingCreator{}, time.Minute)
	ctx := context.Background()
	actor := agent()

	d, err := svc.Create(ctx, actor, CreateDraftRequest{ScheduleID: uuid.NewString()})
	require.NoError(t, err)
	require.NoError(t, svc.Discard(ctx, actor, d.ID))
	assert.True(t, apperrors.IsNotFound(svc.Discard(ctx, actor, d.ID)))
}

func TestCreate_RejectsBadSchedule(t *testing.T) {
	svc := NewService(newMemCache(), &recordingCreator{}, time.Minute)
	_, err := svc.Create(context.Background(), agent(), CreateDraftRequest{ScheduleID: "nope"})
	var validationErr *apperrors.ValidationError
	assert.ErrorAs(t, err, &validationErr)
}
