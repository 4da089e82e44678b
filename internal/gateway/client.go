package gateway

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"

	"ferryline/internal/shared/config"

	"github.com/shopspring/decimal"
)

const (
	appVersion = "ferryline-1.0"
	apiVersion = "2.0"
	provider   = "bml_epos"
)

// PaymentGateway creates hosted payment links. It never changes booking state.
type PaymentGateway interface {
	CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (bool, map[string]interface{}, error)
	GetTransaction(ctx context.Context, transactionID string) (bool, map[string]interface{}, error)
}

type Client struct {
	baseURL     string
	apiKey      string
	clientID    string
	redirectURL string
	http        *http.Client
}

func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:      cfg.APIKey,
		clientID:    cfg.ClientID,
		redirectURL: cfg.RedirectURL,
		http:        &http.Client{Timeout: cfg.Timeout},
	}
}

// ToCents converts a decimal amount to minor units, rounding half away from zero.
func ToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// Sign builds the sha1 signature: params sorted by key, joined as k=v with
// '&', followed by the api key.
func Sign(params map[string]interface{}, apiKey string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, params[k]))
	}
	parts = append(parts, "apiKey="+apiKey)

	sum := sha1.Sum([]byte(strings.Join(parts, "&")))
	return hex.EncodeToString(sum[:])
}

// VerifySignature checks a webhook payload against its signature field.
func (c *Client) VerifySignature(payload map[string]interface{}) bool {
	sig, _ := payload["signature"].(string)
	return sig != "" && sig == Sign(payload, c.apiKey)
}

func (c *Client) CreateTransaction(ctx context.Context, amountCents int64, currency, reference string) (bool, map[string]interface{}, error) {
	if amountCents <= 0 {
		return false, nil, fmt.Errorf("amount must be positive, got %d", amountCents)
	}
	params := map[string]interface{}{
		"amount":     amountCents,
		"currency":   currency,
		"deviceId":   c.clientID,
		"appVersion": appVersion,
		"apiVersion": apiVersion,
		"signMethod": "sha1",
		"provider":   provider,
	}
	if reference != "" {
		params["localId"] = reference
		params["customerReference"] = reference
	}
	if c.redirectURL != "" {
		params["redirectUrl"] = c.redirectURL
	}
	params["signature"] = Sign(params, c.apiKey)

	return c.do(ctx, http.MethodPost, "/transactions", params)
}

func (c *Client) GetTransaction(ctx context.Context, transactionID string) (bool, map[string]interface{}, error) {
	return c.do(ctx, http.MethodGet, "/transactions/"+transactionID, nil)
}

// do reports transport failures as errors. A non-2xx answer is ok=false with
// the provider's status and body in the payload.
func (c *Client) do(ctx context.Context, method, path string, body map[string]interface{}) (bool, map[string]interface{}, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return false, nil, fmt.Errorf("failed to marshal gateway request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return false, nil, fmt.Errorf("failed to build gateway request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return false, nil, fmt.Errorf("payment gateway unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return false, nil, fmt.Errorf("failed to read gateway response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, map[string]interface{}{
			"error":   fmt.Sprintf("gateway returned %d", resp.StatusCode),
			"details": strings.TrimSpace(string(raw)),
		}, nil
	}

	payload := map[string]interface{}{}
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &payload); err != nil {
			return false, nil, fmt.Errorf("failed to decode gateway response: %w", err)
		}
	}
	return true, payload, nil
}
