package cancellation

import (
	"context"
	"testing"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type mockRepo struct {
	CreateFunc func(ctx context.Context, tx *gorm.DB, record *Record) error
	ListFunc   func(ctx context.Context, filter Filter) ([]Record, error)
}

func (m *mockRepo) Create(ctx context.Context, tx *gorm.DB, record *Record) error {
	return m.CreateFunc(ctx, tx, record)
}

func (m *mockRepo) List(ctx context.Context, filter Filter) ([]Record, error) {
	return m.ListFunc(ctx, filter)
}

func TestList_ScopesOwner(t *testing.T) {
	ownerID := uuid.New()
	scheduleID := uuid.New()
	var got Filter
	svc := NewService(&mockRepo{ListFunc: func(ctx context.Context, filter Filter) ([]Record, error) {
		got = filter
		return []Record{{ScheduleID: scheduleID}}, nil
	}})

	actor := middleware.Actor{Role: users.RoleStaff, OwnerID: &ownerID, Authenticated: true}
	records, err := svc.List(context.Background(), actor, ListQuery{ScheduleID: scheduleID.String()})
	require.NoError(t, err)
	assert.Len(t, records, 1)
	require.NotNil(t, got.OwnerID)
	assert.Equal(t, ownerID, *got.OwnerID)
	assert.Equal(t, scheduleID, *got.ScheduleID)
}

func TestList_RejectsAgents(t *testing.T) {
	svc := NewService(&mockRepo{})
	_, err := svc.List(context.Background(), middleware.Actor{Role: users.RoleAgent, Authenticated: true}, ListQuery{})
	assert.Error(t, err)
}

func TestRecord_WrapsError(t *testing.T) {
	svc := NewService(&mockRepo{CreateFunc: func(ctx context.Context, tx *gorm.DB, record *Record) error {
		return gorm.ErrInvalidTransaction
	}})
	err := svc.Record(context.Background(), nil, &Record{})
	assert.ErrorIs(t, err, gorm.ErrInvalidTransaction)
}
