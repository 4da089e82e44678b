package schedules

import (
	"testing"

	"ferryline/internal/shared/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSellable(t *testing.T) {
	tests := []struct {
		name    string
		status  Status
		public  bool
		channel string
		want    bool
	}{
		{"published public", StatusPublished, true, "PUBLIC", true},
		{"published private to public", StatusPublished, false, "PUBLIC", false},
		{"published private to agent", StatusPublished, false, "AGENT", true},
		{"draft to owner", StatusDraft, true, "OWNER", true},
		{"draft to public", StatusDraft, true, "PUBLIC", false},
		{"cancelled to owner", StatusCancelled, true, "OWNER", false},
		{"completed to agent", StatusCompleted, true, "AGENT", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Schedule{Status: tt.status, IsPublic: tt.public}
			assert.Equal(t, tt.want, s.Sellable(tt.channel))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(StatusDraft, StatusPublished))
	assert.True(t, CanTransition(StatusPublished, StatusCompleted))
	assert.False(t, CanTransition(StatusPublished, StatusDraft))
	assert.False(t, CanTransition(StatusCancelled, StatusPublished))
}

func TestValidTimeOfDay(t *testing.T) {
	for _, ok := range []string{"00:00", "07:30", "23:59"} {
		assert.True(t, ValidTimeOfDay(ok), ok)
	}
	for _, bad := range []string{"24:00", "7:30", "07:60", "0730", ""} {
		assert.False(t, ValidTimeOfDay(bad), bad)
	}
}

func TestBuildDestinations(t *testing.T) {
	no := false
	dests, err := buildDestinations([]DestinationRequest{
		{Sequence: 1, IslandName: "Male", DepartureTime: "08:00", IsDropoff: &no},
		{Sequence: 2, IslandName: "Maafushi", ArrivalTime: "09:15"},
	})
	require.NoError(t, err)
	require.Len(t, dests, 2)
	assert.True(t, dests[0].IsPickup)
	assert.False(t, dests[0].IsDropoff)
	assert.Equal(t, "08:00", *dests[0].DepartureTime)
	assert.Nil(t, dests[1].DepartureTime)

	_, err = buildDestinations([]DestinationRequest{
		{Sequence: 1, IslandName: "Male"},
		{Sequence: 1, IslandName: "Guraidhoo"},
	})
	var verr *apperrors.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "destinations[1]", verr.Field)

	_, err = buildDestinations([]DestinationRequest{{Sequence: 1, IslandName: "Male", DepartureTime: "25:00"}})
	assert.ErrorAs(t, err, &verr)
}
