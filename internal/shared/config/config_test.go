package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"PORT", "API_PREFIX", "API_VERSION", "BOOKING_TIMEZONE", "BOOKING_CURRENCY",
		"OWNER_DISCOUNT_RATE", "REDIS_SEAT_HOLD_TTL", "NOTIFY_TRANSPORT", "DB_HOST", "REDIS_HOST"} {
		t.Setenv(key, "")
	}

	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "/api/v1", cfg.GetAPIBasePath())
	assert.Equal(t, ":8080", cfg.GetServerAddress())
	assert.Equal(t, "Indian/Maldives", cfg.Booking.Timezone)
	assert.Equal(t, "MVR", cfg.Booking.Currency)
	assert.Equal(t, "0.10", cfg.Booking.OwnerDiscountRate)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SeatHoldTTL)
	assert.Equal(t, "none", cfg.Notifications.Transport)
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
	assert.Contains(t, cfg.Database.DSN, "host=localhost")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("NOTIFY_TRANSPORT", "Kafka")
	t.Setenv("JWT_EXPIRES_IN", "120")
	t.Setenv("REDIS_DRAFT_TTL", "5m")
	t.Setenv("RATE_LIMIT_ENABLED", "false")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("SNOWFLAKE_NODE", "7")

	cfg := Load()

	assert.Equal(t, ":9090", cfg.GetServerAddress())
	assert.Equal(t, "kafka", cfg.Notifications.Transport)
	assert.Equal(t, 2*time.Minute, cfg.JWT.JWTExpiresIn)
	assert.Equal(t, 5*time.Minute, cfg.Redis.DraftTTL)
	assert.False(t, cfg.RateLimit.Enabled)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, int64(7), cfg.Booking.SnowflakeNode)
}

func TestLoad_MalformedValuesFallBack(t *testing.T) {
	t.Setenv("MAX_HEADER_BYTES", "lots")
	t.Setenv("REDIS_SEAT_HOLD_TTL", "ten minutes")
	t.Setenv("SESSION_COOKIE_SECURE", "maybe")

	cfg := Load()

	assert.Equal(t, 1<<20, cfg.MaxHeaderBytes)
	assert.Equal(t, 10*time.Minute, cfg.Redis.SeatHoldTTL)
	assert.False(t, cfg.Session.Secure)
}

func TestConfig_Mode(t *testing.T) {
	assert.True(t, (&Config{GinMode: "release"}).IsProduction())
	assert.True(t, (&Config{GinMode: "debug"}).IsDevelopment())
	assert.False(t, (&Config{GinMode: "test"}).IsDevelopment())
}
