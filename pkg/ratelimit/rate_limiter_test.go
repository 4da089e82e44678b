package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetRateLimitType(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   RateLimitType
	}{
		{http.MethodGet, "/health", RateLimitTypeHealth},
		{http.MethodGet, "/ping", RateLimitTypeHealth},
		{http.MethodPost, "/api/v1/auth/login", RateLimitTypeAuth},
		{http.MethodGet, "/api/v1/ledger/summary", RateLimitTypeLedger},
		{http.MethodPost, "/api/v1/schedules/:id/bookings", RateLimitTypeBookingCritical},
		{http.MethodPost, "/api/v1/schedules/:id/holds", RateLimitTypeBookingCritical},
		{http.MethodPost, "/api/v1/bookings/:id/cancel", RateLimitTypeBookingCritical},
		{http.MethodPost, "/api/v1/bookings/:id/issue-ticket", RateLimitTypeBookingCritical},
		{http.MethodPost, "/web/drafts/:id/submit", RateLimitTypeBookingCritical},
		{http.MethodGet, "/api/v1/bookings/:id", RateLimitTypeBooking},
		{http.MethodPatch, "/api/v1/drafts/:id", RateLimitTypeBooking},
		{http.MethodGet, "/public/schedules/:id/seat-map", RateLimitTypePublic},
		{http.MethodGet, "/api/v1/boats", RateLimitTypeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, getRateLimitType(tt.method, tt.path))
		})
	}
}

func TestIsAllowed_DisabledSkipsRedis(t *testing.T) {
	// nil client: any Redis call would panic
	limiter := NewRateLimiter(nil, &Config{
		Enabled:         false,
		WindowDuration:  time.Minute,
		DefaultRequests: 10,
	})

	result, err := limiter.IsAllowed(context.Background(), "10.0.0.1", RateLimitTypeDefault)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 10, result.Limit)
}

func TestIsAllowed_WhitelistedIP(t *testing.T) {
	limiter := NewRateLimiter(nil, &Config{
		Enabled:                 true,
		WindowDuration:          time.Minute,
		BookingCriticalRequests: 3,
		WhitelistedIPs:          []string{"127.0.0.1"},
	})

	result, err := limiter.IsAllowed(context.Background(), "127.0.0.1", RateLimitTypeBookingCritical)

	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 3, result.Limit)
}

func TestGetClientIP(t *testing.T) {
	gin.SetMode(gin.TestMode)

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
	c.Request.RemoteAddr = "192.168.1.5:4000"
	assert.Equal(t, "192.168.1.5", getClientIP(c))

	c.Request.Header.Set("X-Real-IP", "10.1.1.1")
	assert.Equal(t, "10.1.1.1", getClientIP(c))

	c.Request.Header.Set("X-Forwarded-For", "203.0.113.9, 10.1.1.1")
	assert.Equal(t, "203.0.113.9", getClientIP(c))
}
