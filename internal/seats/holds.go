package seats

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

// HoldStore keeps advisory seat holds in Redis. Holding and releasing are
// single Lua scripts so a hold is all-or-nothing.
type HoldStore interface {
	Hold(ctx context.Context, holdID, scheduleID, actorID string, seats []string, ttl time.Duration) error
	Release(ctx context.Context, holdID string) (int, error)
	HeldBy(ctx context.Context, scheduleID string, seats []string) (map[string]string, error)
	Get(ctx context.Context, holdID string) (*Hold, error)
}

var ErrHoldNotFound = errors.New("hold not found")

// KEYS[1] = hold hash, KEYS[2] = hold seat set, KEYS[3..N] = per-seat keys
// ARGV[1] = hold id, ARGV[2] = schedule id, ARGV[3] = ttl seconds,
// ARGV[4] = actor, ARGV[5..N] = seat numbers in KEYS order
var holdScript = redis.NewScript(`
local hold_id = ARGV[1]
local ttl = tonumber(ARGV[3])

for i = 3, #KEYS do
    local owner = redis.call("GET", KEYS[i])
    if owner and owner ~= hold_id then
        return {0, ARGV[i + 2]}
    end
end

redis.call("HSET", KEYS[1],
    "schedule_id", ARGV[2],
    "actor", ARGV[4],
    "created_at", redis.call("TIME")[1]
)
redis.call("EXPIRE", KEYS[1], ttl)

for i = 3, #KEYS do
    redis.call("SET", KEYS[i], hold_id, "EX", ttl)
    redis.call("SADD", KEYS[2], ARGV[i + 2])
end
redis.call("EXPIRE", KEYS[2], ttl)

return {1, #KEYS - 2}
`)

// KEYS[1] = hold hash, KEYS[2] = hold seat set
// ARGV[1] = hold id, ARGV[2] = per-seat key prefix
var releaseScript = redis.NewScript(`
local schedule_id = redis.call("HGET", KEYS[1], "schedule_id")
if not schedule_id then
    return {0, "hold_not_found"}
end

local seats = redis.call("SMEMBERS", KEYS[2])
local released = 0
for i = 1, #seats do
    local seat_key = ARGV[2] .. schedule_id .. ":" .. seats[i]
    if redis.call("GET", seat_key) == ARGV[1] then
        redis.call("DEL", seat_key)
        released = released + 1
    end
end

redis.call("DEL", KEYS[1], KEYS[2])
return {1, released}
`)

type redisHoldStore struct {
	redis *redis.Client
}

func NewHoldStore(client *redis.Client) HoldStore {
	return &redisHoldStore{redis: client}
}

func (h *redisHoldStore) Hold(ctx context.Context, holdID, scheduleID, actorID string, seats []string, ttl time.Duration) error {
	keys := []string{constants.BuildHoldKey(holdID), constants.BuildHoldSeatsKey(holdID)}
	args := []interface{}{holdID, scheduleID, strconv.Itoa(int(ttl.Seconds())), actorID}
	for _, seat := range seats {
		keys = append(keys, constants.BuildSeatHoldKey(scheduleID, seat))
		args = append(args, seat)
	}

	result, err := holdScript.Run(ctx, h.redis, keys, args...).Slice()
	if err != nil {
		return fmt.Errorf("failed to execute seat hold: %w", err)
	}
	if len(result) != 2 {
		return fmt.Errorf("unexpected seat hold result")
	}
	if ok, _ := result[0].(int64); ok == 0 {
		seat, _ := result[1].(string)
		return apperrors.SeatConflict(seat)
	}
	return nil
}

func (h *redisHoldStore) Release(ctx context.Context, holdID string) (int, error) {
	keys := []string{constants.BuildHoldKey(holdID), constants.BuildHoldSeatsKey(holdID)}
	result, err := releaseScript.Run(ctx, h.redis, keys, holdID, constants.HOLD_SEAT_KEY_PREFIX).Slice()
	if err != nil {
		return 0, fmt.Errorf("failed to execute hold release: %w", err)
	}
	if len(result) != 2 {
		return 0, fmt.Errorf("unexpected hold release result")
	}
	if ok, _ := result[0].(int64); ok == 0 {
		return 0, ErrHoldNotFound
	}
	released, _ := result[1].(int64)
	return int(released), nil
}

// HeldBy maps each currently held seat to the hold id holding it.
func (h *redisHoldStore) HeldBy(ctx context.Context, scheduleID string, seats []string) (map[string]string, error) {
	held := map[string]string{}
	if len(seats) == 0 {
		return held, nil
	}
	keys := make([]string, len(seats))
	for i, seat := range seats {
		keys[i] = constants.BuildSeatHoldKey(scheduleID, seat)
	}
	values, err := h.redis.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read seat holds: %w", err)
	}
	for i, v := range values {
		if holdID, ok := v.(string); ok && holdID != "" {
			held[seats[i]] = holdID
		}
	}
	return held, nil
}

func (h *redisHoldStore) Get(ctx context.Context, holdID string) (*Hold, error) {
	pipe := h.redis.Pipeline()
	meta := pipe.HGetAll(ctx, constants.BuildHoldKey(holdID))
	members := pipe.SMembers(ctx, constants.BuildHoldSeatsKey(holdID))
	ttl := pipe.TTL(ctx, constants.BuildHoldKey(holdID))
	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return nil, fmt.Errorf("failed to read hold: %w", err)
	}

	fields := meta.Val()
	if len(fields) == 0 {
		return nil, ErrHoldNotFound
	}
	return &Hold{
		HoldID:     holdID,
		ScheduleID: fields["schedule_id"],
		Seats:      members.Val(),
		ExpiresAt:  time.Now().Add(ttl.Val()),
	}, nil
}
