package bookings

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
)

// CodeAlphabet has no O, I, 0 or 1 so codes survive being read over the phone.
const CodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const (
	CodeLength      = 6
	maxCodeAttempts = 20
)

// NewCode returns a random booking code.
func NewCode() (string, error) {
	code := make([]byte, CodeLength)
	max := big.NewInt(int64(len(CodeAlphabet)))
	for i := range code {
		num, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		code[i] = CodeAlphabet[num.Int64()]
	}
	return string(code), nil
}

// UniqueCode draws codes until exists reports a free one.
func UniqueCode(ctx context.Context, exists func(ctx context.Context, code string) (bool, error)) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := NewCode()
		if err != nil {
			return "", fmt.Errorf("failed to generate booking code: %w", err)
		}
		taken, err := exists(ctx, code)
		if err != nil {
			return "", fmt.Errorf("failed to check booking code: %w", err)
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("no free booking code after %d attempts", maxCodeAttempts)
}
