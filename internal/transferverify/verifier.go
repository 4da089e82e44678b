package transferverify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"ferryline/internal/shared/config"

	"github.com/shopspring/decimal"
)

var ErrEmptyImage = errors.New("transferverify: empty receipt image")

// TextExtractor turns a receipt screenshot into text.
type TextExtractor interface {
	ExtractText(ctx context.Context, image []byte) (string, error)
}

// Receipt is what could be read off a bank transfer screenshot. Missing
// fields stay empty.
type Receipt struct {
	Amount    *decimal.Decimal `json:"amount,omitempty"`
	Currency  string           `json:"currency,omitempty"`
	Reference string           `json:"reference,omitempty"`
	Date      string           `json:"date,omitempty"`
	From      string           `json:"from_account,omitempty"`
	To        string           `json:"to_account,omitempty"`
	Status    string           `json:"status,omitempty"`
}

type Details struct {
	Valid    bool            `json:"is_valid"`
	Receipt  Receipt         `json:"transfer_details"`
	Checks   map[string]bool `json:"verification_checks"`
	Problems []string        `json:"errors"`
}

type Verifier struct {
	ocr       TextExtractor
	tolerance decimal.Decimal
}

func NewVerifier(ocr TextExtractor, tolerance decimal.Decimal) *Verifier {
	return &Verifier{ocr: ocr, tolerance: tolerance}
}

// NewFromConfig builds a verifier backed by the OCR HTTP service.
func NewFromConfig(cfg config.TransferConfig) *Verifier {
	tolerance, err := decimal.NewFromString(cfg.AmountTolerance)
	if err != nil {
		tolerance = decimal.RequireFromString("0.01")
	}
	return NewVerifier(NewOCRClient(cfg), tolerance)
}

func (v *Verifier) Verify(ctx context.Context, image []byte, expectedAmount decimal.Decimal, expectedCurrency string) (bool, *Details, error) {
	return v.VerifyForAccount(ctx, image, expectedAmount, expectedCurrency, "")
}

// VerifyForAccount also requires the recipient on the receipt to contain
// the expected account name.
func (v *Verifier) VerifyForAccount(ctx context.Context, image []byte, expectedAmount decimal.Decimal, expectedCurrency, expectedAccount string) (bool, *Details, error) {
	if len(image) == 0 {
		return false, nil, ErrEmptyImage
	}
	text, err := v.ocr.ExtractText(ctx, image)
	if err != nil {
		return false, nil, err
	}
	details := Check(ParseReceipt(text), expectedAmount, expectedCurrency, expectedAccount, v.tolerance)
	return details.Valid, details, nil
}

var (
	amountPattern    = regexp.MustCompile(`(\d+(?:,\d{3})*(?:\.\d{2})?)\s*(MVR|USD)`)
	referencePattern = regexp.MustCompile(`[A-Z]{4}\d{12}`)
	datePattern      = regexp.MustCompile(`(\d{2}/\d{2}/\d{4})\s*(\d{2}:\d{2})`)
	fromPattern      = regexp.MustCompile(`From:\s*([A-Z ]+)`)
	toPattern        = regexp.MustCompile(`To:\s*([A-Z ]+)`)
)

// ParseReceipt reads a BML transfer receipt.
func ParseReceipt(text string) Receipt {
	var r Receipt
	if m := amountPattern.FindStringSubmatch(text); m != nil {
		if amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", "")); err == nil {
			r.Amount = &amount
		}
		r.Currency = m[2]
	}
	r.Reference = referencePattern.FindString(text)
	if m := datePattern.FindStringSubmatch(text); m != nil {
		r.Date = m[1] + " " + m[2]
	}
	if m := fromPattern.FindStringSubmatch(text); m != nil {
		r.From = strings.TrimSpace(m[1])
	}
	if m := toPattern.FindStringSubmatch(text); m != nil {
		r.To = strings.TrimSpace(m[1])
	}

	upper := strings.ToUpper(text)
	switch {
	case strings.Contains(upper, "SUCCESS"):
		r.Status = "SUCCESS"
	case strings.Contains(upper, "FAILED"):
		r.Status = "FAILED"
	case strings.Contains(upper, "PENDING"):
		r.Status = "PENDING"
	}
	return r
}

// Check applies the amount, currency, account and status checks. The
// account check only runs when an account is expected.
func Check(r Receipt, expectedAmount decimal.Decimal, expectedCurrency, expectedAccount string, tolerance decimal.Decimal) *Details {
	d := &Details{Receipt: r, Checks: map[string]bool{}, Problems: []string{}}

	if r.Amount != nil {
		ok := r.Amount.Sub(expectedAmount).Abs().LessThan(tolerance)
		d.Checks["amount"] = ok
		if !ok {
			d.Problems = append(d.Problems, fmt.Sprintf("Amount mismatch: expected %s %s, found %s %s",
				expectedAmount.StringFixed(2), expectedCurrency, r.Amount.StringFixed(2), r.Currency))
		}
	} else {
		d.Checks["amount"] = false
		d.Problems = append(d.Problems, "Could not extract amount from receipt")
	}

	if r.Currency != "" {
		ok := r.Currency == expectedCurrency
		d.Checks["currency"] = ok
		if !ok {
			d.Problems = append(d.Problems, fmt.Sprintf("Currency mismatch: expected %s, found %s", expectedCurrency, r.Currency))
		}
	} else {
		d.Checks["currency"] = false
		d.Problems = append(d.Problems, "Could not extract currency from receipt")
	}

	if expectedAccount != "" {
		switch {
		case r.To == "":
			d.Checks["account"] = false
			d.Problems = append(d.Problems, "Could not extract recipient account from receipt")
		case strings.Contains(strings.ToUpper(r.To), strings.ToUpper(expectedAccount)):
			d.Checks["account"] = true
		default:
			d.Checks["account"] = false
			d.Problems = append(d.Problems, fmt.Sprintf("Account mismatch: expected %s, found %s", expectedAccount, r.To))
		}
	}

	switch r.Status {
	case "SUCCESS":
		d.Checks["status"] = true
	case "":
		d.Checks["status"] = false
		d.Problems = append(d.Problems, "Could not extract transfer status from receipt")
	default:
		d.Checks["status"] = false
		d.Problems = append(d.Problems, fmt.Sprintf("Transfer status is %s, expected SUCCESS", r.Status))
	}

	d.Valid = true
	for _, ok := range d.Checks {
		d.Valid = d.Valid && ok
	}
	return d
}

// OCRClient posts the raw image to the OCR service and reads {"text": "..."}.
type OCRClient struct {
	url    string
	apiKey string
	http   *http.Client
}

func NewOCRClient(cfg config.TransferConfig) *OCRClient {
	return &OCRClient{url: cfg.OCRURL, apiKey: cfg.OCRAPIKey, http: &http.Client{Timeout: cfg.Timeout}}
}

func (c *OCRClient) ExtractText(ctx context.Context, image []byte) (string, error) {
	if c.url == "" {
		return "", errors.New("transferverify: OCR_URL is not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(image))
	if err != nil {
		return "", fmt.Errorf("failed to build ocr request: %w", err)
	}
	req.Header.Set("Content-Type", http.DetectContentType(image))
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("ocr service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("ocr service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	var out struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode ocr response: %w", err)
	}
	return out.Text, nil
}
