package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"ferryline/internal/shared/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"7771234", "+9607771234", false},
		{"777-1234", "+9607771234", false},
		{"+960 777 1234", "+9607771234", false},
		{"9607771234", "+9607771234", false},
		{"12345", "", true},
		{"77a1234", "", true},
		{"", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := NormalizePhone(tc.in)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestHTTPSender_Send(t *testing.T) {
	var got sendRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "Bearer key-1", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sender := NewHTTPSender(config.SMSConfig{BaseURL: srv.URL + "/", APIKey: "key-1", SenderID: "FERRY", Timeout: time.Second})
	require.NoError(t, sender.Send(context.Background(), "7771234", "hello"))

	assert.Equal(t, "+9607771234", got.To)
	assert.Equal(t, "FERRY", got.From)
	assert.Equal(t, "hello", got.Message)
}

func TestHTTPSender_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	sender := NewHTTPSender(config.SMSConfig{BaseURL: srv.URL, Timeout: time.Second})
	err := sender.Send(context.Background(), "7771234", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestNewSender_FallsBackToConsole(t *testing.T) {
	_, ok := NewSender(config.SMSConfig{Provider: "http"}).(*ConsoleSender)
	assert.True(t, ok)

	_, ok = NewSender(config.SMSConfig{Provider: "HTTP", BaseURL: "http://sms.local"}).(*HTTPSender)
	assert.True(t, ok)

	assert.NoError(t, NewConsoleSender().Send(context.Background(), "7771234", "hi"))
}
