package bookings

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCode_UniqueAndUnambiguous(t *testing.T) {
	seen := make(map[string]struct{}, 10000)
	for i := 0; i < 10000; i++ {
		code, err := NewCode()
		require.NoError(t, err)
		require.Len(t, code, CodeLength)
		require.False(t, strings.ContainsAny(code, "OI01"), code)
		for _, r := range code {
			require.True(t, strings.ContainsRune(CodeAlphabet, r), code)
		}
		seen[code] = struct{}{}
	}
	// 32^6 codes; a collision in 10k draws is vanishingly unlikely
	assert.Len(t, seen, 10000)
}

func TestCodeAlphabet(t *testing.T) {
	assert.Len(t, CodeAlphabet, 32)
}

func TestUniqueCode_RetriesTakenCodes(t *testing.T) {
	calls := 0
	code, err := UniqueCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		calls++
		return calls < 3, nil
	})
	require.NoError(t, err)
	assert.Len(t, code, CodeLength)
	assert.Equal(t, 3, calls)
}

func TestUniqueCode_GivesUp(t *testing.T) {
	_, err := UniqueCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return true, nil
	})
	assert.Error(t, err)
}

func TestUniqueCode_LookupError(t *testing.T) {
	boom := errors.New("db down")
	_, err := UniqueCode(context.Background(), func(ctx context.Context, code string) (bool, error) {
		return false, boom
	})
	assert.ErrorIs(t, err, boom)
}
