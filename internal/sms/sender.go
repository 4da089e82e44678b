package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode"

	"ferryline/internal/shared/config"
	"ferryline/pkg/logger"
)

var ErrInvalidPhone = errors.New("sms: invalid phone number")

// Sender delivers a text message to one phone number.
type Sender interface {
	Send(ctx context.Context, phone, message string) error
}

// NewSender picks the provider named in the config. An http provider without
// a base URL falls back to the console.
func NewSender(cfg config.SMSConfig) Sender {
	log := logger.GetDefault()
	switch strings.ToLower(cfg.Provider) {
	case "http":
		if cfg.BaseURL == "" {
			log.Warn("SMS_PROVIDER=http without SMS_BASE_URL, using console sender")
			return NewConsoleSender()
		}
		return NewHTTPSender(cfg)
	default:
		return NewConsoleSender()
	}
}

// NormalizePhone strips separators and prefixes local seven digit numbers
// with the Maldives country code.
func NormalizePhone(phone string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(phone) {
		switch {
		case r == '+' && i == 0:
			b.WriteRune(r)
		case unicode.IsDigit(r):
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", ErrInvalidPhone
		}
	}
	out := b.String()
	digits := strings.TrimPrefix(out, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", ErrInvalidPhone
	}
	if !strings.HasPrefix(out, "+") {
		if len(digits) == 7 {
			return "+960" + digits, nil
		}
		return "+" + digits, nil
	}
	return out, nil
}

type HTTPSender struct {
	baseURL  string
	apiKey   string
	senderID string
	client   *http.Client
}

func NewHTTPSender(cfg config.SMSConfig) *HTTPSender {
	return &HTTPSender{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		senderID: cfg.SenderID,
		client:   &http.Client{Timeout: cfg.Timeout},
	}
}

type sendRequest struct {
	To      string `json:"to"`
	From    string `json:"from"`
	Message string `json:"message"`
}

func (s *HTTPSender) Send(ctx context.Context, phone, message string) error {
	to, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sendRequest{To: to, From: s.senderID, Message: message})
	if err != nil {
		return fmt.Errorf("failed to marshal sms request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/messages", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if s.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms provider returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}
	return nil
}

// ConsoleSender only logs. Used in development and when no provider is configured.
type ConsoleSender struct {
	log *logger.Logger
}

func NewConsoleSender() *ConsoleSender {
	return &ConsoleSender{log: logger.GetDefault()}
}

func (s *ConsoleSender) Send(ctx context.Context, phone, message string) error {
	to, err := NormalizePhone(phone)
	if err != nil {
		return err
	}
	s.log.InfoWithContext(ctx, "SMS sent to console", map[string]interface{}{
		"phone":   to,
		"message": message,
	})
	return nil
}
