package orchestrator

import (
	"fmt"
	"time"

	"ferryline/internal/schedules"
	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
)

// ValidateRoute checks that the pickup comes before the dropoff on the
// schedule and that both stops allow it.
func ValidateRoute(schedule *schedules.Schedule, pickupID, dropoffID uuid.UUID) (*schedules.ScheduleDestination, *schedules.ScheduleDestination, error) {
	pickup, ok := schedule.Destination(pickupID)
	if !ok {
		return nil, nil, apperrors.InvalidRoute("pickup destination is not on this schedule")
	}
	dropoff, ok := schedule.Destination(dropoffID)
	if !ok {
		return nil, nil, apperrors.InvalidRoute("dropoff destination is not on this schedule")
	}
	if !pickup.IsPickup {
		return nil, nil, apperrors.InvalidRoute(fmt.Sprintf("%s is not a pickup stop", pickup.IslandName))
	}
	if !dropoff.IsDropoff {
		return nil, nil, apperrors.InvalidRoute(fmt.Sprintf("%s is not a dropoff stop", dropoff.IslandName))
	}
	if pickup.Sequence >= dropoff.Sequence {
		return nil, nil, apperrors.InvalidRoute("pickup must come before dropoff")
	}
	return pickup, dropoff, nil
}

// DepartureAt is the schedule date at the pickup's departure time, else the
// schedule's default boarding time, else the engine default. Times are
// local to loc.
func DepartureAt(date time.Time, pickup *schedules.ScheduleDestination, scheduleDefault, engineDefault string, loc *time.Location) (time.Time, error) {
	clock := engineDefault
	switch {
	case pickup != nil && pickup.DepartureTime != nil && *pickup.DepartureTime != "":
		clock = *pickup.DepartureTime
	case scheduleDefault != "":
		clock = scheduleDefault
	}

	t, err := time.Parse("15:04", clock)
	if err != nil {
		return time.Time{}, apperrors.Validation("departure_time", fmt.Sprintf("%q is not HH:MM", clock))
	}
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := date.Date()
	return time.Date(y, m, d, t.Hour(), t.Minute(), 0, 0, loc), nil
}
