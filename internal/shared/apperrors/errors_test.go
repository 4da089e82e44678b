package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", Validation("buyer.phone", "required"), http.StatusBadRequest},
		{"invalid ticket type", InvalidTicketType("tt-1"), http.StatusBadRequest},
		{"route", InvalidRoute("pickup after dropoff"), http.StatusUnprocessableEntity},
		{"not found", NotFound("booking", "b-1"), http.StatusNotFound},
		{"forbidden", Forbidden("not your booking"), http.StatusForbidden},
		{"seat conflict", SeatConflict("A1"), http.StatusConflict},
		{"already issued", StateConflictWrap(ErrAlreadyIssued), http.StatusConflict},
		{"wrapped seat conflict", fmt.Errorf("reserve: %w", SeatConflict("A2")), http.StatusConflict},
		{"invariant", LedgerInvariant("available %d != %d", 7, 8), http.StatusInternalServerError},
		{"unknown", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, HTTPStatus(tt.err))
		})
	}
}

func TestKindsSurviveWrapping(t *testing.T) {
	err := fmt.Errorf("issue ticket: %w", StateConflictWrap(ErrAlreadyIssued))
	assert.True(t, errors.Is(err, ErrAlreadyIssued))
	assert.True(t, IsConflict(err))
	assert.False(t, IsRetryable(err))

	err = fmt.Errorf("create: %w", InvalidTicketType("tt-9"))
	assert.True(t, errors.Is(err, ErrInvalidTicketType))

	var v *ValidationError
	assert.True(t, errors.As(err, &v))
	assert.Equal(t, "ticket_type_id", v.Field)
}

func TestSeatConflictListsSeatsSorted(t *testing.T) {
	err := fmt.Errorf("reserve: %w", SeatConflict("B2", "A1"))

	assert.True(t, IsRetryable(err))
	assert.ElementsMatch(t, []string{"A1", "B2"}, ConflictingSeats(err))
	assert.Equal(t, "reserve: seats not available: A1, B2", err.Error())
	assert.Nil(t, ConflictingSeats(errors.New("other")))
}

func TestIsInvariantViolation(t *testing.T) {
	assert.True(t, IsInvariantViolation(fmt.Errorf("recount: %w", LedgerInvariant("drift"))))
	assert.False(t, IsInvariantViolation(NotFound("schedule", "s-1")))
	assert.True(t, IsNotFound(fmt.Errorf("x: %w", NotFound("schedule", "s-1"))))
}
