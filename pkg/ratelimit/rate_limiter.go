package ratelimit

import (
	"context"
	"fmt"
	"time"

	"ferryline/internal/shared/config"
	"ferryline/internal/shared/constants"

	"github.com/redis/go-redis/v9"
)

type RateLimitType string

const (
	RateLimitTypeDefault         RateLimitType = "default"
	RateLimitTypePublic          RateLimitType = "public"
	RateLimitTypeAuth            RateLimitType = "auth"
	RateLimitTypeBooking         RateLimitType = "booking"
	RateLimitTypeBookingCritical RateLimitType = "booking_critical"
	RateLimitTypeAdmin           RateLimitType = "admin"
	RateLimitTypeLedger          RateLimitType = "ledger"
	RateLimitTypeHealth          RateLimitType = "health"
)

type Config struct {
	Enabled                 bool
	WindowDuration          time.Duration
	DefaultRequests         int
	PublicRequests          int
	AuthRequests            int
	BookingRequests         int
	BookingCriticalRequests int
	AdminRequests           int
	LedgerRequests          int
	HealthRequests          int
	WhitelistedIPs          []string
}

// ConfigFrom copies the rate limit section of the app config.
func ConfigFrom(cfg config.RateLimitConfig) *Config {
	return &Config{
		Enabled:                 cfg.Enabled,
		WindowDuration:          cfg.WindowDuration,
		DefaultRequests:         cfg.DefaultRequests,
		PublicRequests:          cfg.PublicRequests,
		AuthRequests:            cfg.AuthRequests,
		BookingRequests:         cfg.BookingRequests,
		BookingCriticalRequests: cfg.BookingCriticalRequests,
		AdminRequests:           cfg.AdminRequests,
		LedgerRequests:          cfg.LedgerRequests,
		HealthRequests:          cfg.HealthRequests,
		WhitelistedIPs:          cfg.WhitelistedIPs,
	}
}

type Result struct {
	Allowed   bool  `json:"allowed"`
	Limit     int   `json:"limit"`
	Remaining int   `json:"remaining"`
	ResetTime int64 `json:"reset_time"`
}

// RateLimiter keeps a sliding window per client IP and route class in Redis.
type RateLimiter struct {
	client    *redis.Client
	config    *Config
	whitelist map[string]bool
}

func NewRateLimiter(client *redis.Client, cfg *Config) *RateLimiter {
	whitelist := make(map[string]bool, len(cfg.WhitelistedIPs))
	for _, ip := range cfg.WhitelistedIPs {
		whitelist[ip] = true
	}
	return &RateLimiter{client: client, config: cfg, whitelist: whitelist}
}

// sliding window: drop old members, count, then admit with a unique member
var slidingWindow = redis.NewScript(`
	local key = KEYS[1]
	local window_start = tonumber(ARGV[1])
	local now = tonumber(ARGV[2])
	local limit = tonumber(ARGV[3])
	local ttl = tonumber(ARGV[4])
	local member = ARGV[5]

	redis.call('ZREMRANGEBYSCORE', key, '-inf', window_start)
	local count = redis.call('ZCARD', key)
	if count >= limit then
		redis.call('EXPIRE', key, ttl)
		return {0, 0}
	end

	redis.call('ZADD', key, now, member)
	redis.call('EXPIRE', key, ttl)
	return {1, limit - count - 1}
`)

func (r *RateLimiter) IsAllowed(ctx context.Context, clientIP string, limitType RateLimitType) (*Result, error) {
	limit := r.getLimit(limitType)
	reset := time.Now().Add(r.config.WindowDuration).Unix()
	if !r.config.Enabled || r.whitelist[clientIP] {
		return &Result{Allowed: true, Limit: limit, Remaining: limit, ResetTime: reset}, nil
	}

	now := time.Now()
	key := fmt.Sprintf("%s%s:%s", constants.RATE_LIMIT_PREFIX, limitType, clientIP)
	ttl := int(r.config.WindowDuration.Seconds())
	if ttl < 1 {
		ttl = 1
	}

	values, err := slidingWindow.Run(ctx, r.client, []string{key},
		now.Add(-r.config.WindowDuration).UnixMilli(),
		now.UnixMilli(),
		limit,
		ttl,
		now.UnixNano(),
	).Int64Slice()
	if err != nil {
		return nil, fmt.Errorf("redis eval failed: %w", err)
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected redis response")
	}

	return &Result{
		Allowed:   values[0] == 1,
		Limit:     limit,
		Remaining: int(values[1]),
		ResetTime: reset,
	}, nil
}

func (r *RateLimiter) getLimit(limitType RateLimitType) int {
	switch limitType {
	case RateLimitTypePublic:
		return r.config.PublicRequests
	case RateLimitTypeAuth:
		return r.config.AuthRequests
	case RateLimitTypeBooking:
		return r.config.BookingRequests
	case RateLimitTypeBookingCritical:
		return r.config.BookingCriticalRequests
	case RateLimitTypeAdmin:
		return r.config.AdminRequests
	case RateLimitTypeLedger:
		return r.config.LedgerRequests
	case RateLimitTypeHealth:
		return r.config.HealthRequests
	default:
		return r.config.DefaultRequests
	}
}
