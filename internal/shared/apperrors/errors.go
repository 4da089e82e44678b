// Package apperrors holds the error taxonomy shared by the booking engine.
// Controllers translate these into HTTP responses; services and repositories
// return them wrapped with fmt.Errorf so errors.As keeps working.
package apperrors

import (
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

var (
	// ErrInvalidTicketType is returned when a ticket type is inactive or not
	// enabled for the schedule and channel.
	ErrInvalidTicketType = errors.New("invalid ticket type for this schedule")

	// ErrNoSeatsAssigned is returned when a ticket is issued for a booking
	// that holds no seat assignments.
	ErrNoSeatsAssigned = errors.New("no seats assigned to this booking")

	// ErrAlreadyIssued is returned when a ticket is issued twice.
	ErrAlreadyIssued = errors.New("ticket already issued for this booking")
)

// ValidationError reports missing or malformed input.
type ValidationError struct {
	Field   string
	Message string
	Cause   error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Message
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return e.Cause }

// NotFoundError reports an unknown id.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return e.Resource + " not found"
	}
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

// SeatConflictError reports seats that are already taken or blocked.
type SeatConflictError struct {
	Seats []string
}

func (e *SeatConflictError) Error() string {
	seats := append([]string(nil), e.Seats...)
	sort.Strings(seats)
	return "seats not available: " + strings.Join(seats, ", ")
}

// InvalidRouteError reports a bad pickup/dropoff combination.
type InvalidRouteError struct {
	Reason string
}

func (e *InvalidRouteError) Error() string {
	return "invalid route: " + e.Reason
}

// StateConflictError reports a transition the current state does not allow.
type StateConflictError struct {
	Reason string
	Cause  error
}

func (e *StateConflictError) Error() string {
	return "state conflict: " + e.Reason
}

func (e *StateConflictError) Unwrap() error { return e.Cause }

// ForbiddenError reports an actor acting outside their channel or owner scope.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return "forbidden: " + e.Reason
}

// LedgerInvariantError reports totals or counters that do not reconcile.
// It is never user-correctable.
type LedgerInvariantError struct {
	Detail string
}

func (e *LedgerInvariantError) Error() string {
	return "ledger invariant violated: " + e.Detail
}

// Constructors

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

func InvalidTicketType(ticketTypeID string) error {
	return &ValidationError{Field: "ticket_type_id", Message: ticketTypeID + " is not sellable on this schedule", Cause: ErrInvalidTicketType}
}

func NotFound(resource, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func SeatConflict(seats ...string) error {
	return &SeatConflictError{Seats: seats}
}

func InvalidRoute(reason string) error {
	return &InvalidRouteError{Reason: reason}
}

func StateConflict(reason string) error {
	return &StateConflictError{Reason: reason}
}

func StateConflictWrap(cause error) error {
	return &StateConflictError{Reason: cause.Error(), Cause: cause}
}

func Forbidden(reason string) error {
	return &ForbiddenError{Reason: reason}
}

func LedgerInvariant(format string, args ...any) error {
	return &LedgerInvariantError{Detail: fmt.Sprintf(format, args...)}
}

// Helpers

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

func IsSeatConflict(err error) bool {
	var target *SeatConflictError
	return errors.As(err, &target)
}

// IsConflict reports seat and state conflicts alike.
func IsConflict(err error) bool {
	var target *StateConflictError
	return IsSeatConflict(err) || errors.As(err, &target)
}

// IsRetryable reports whether the caller may retry with different input.
func IsRetryable(err error) bool {
	return IsSeatConflict(err)
}

func IsInvariantViolation(err error) bool {
	var target *LedgerInvariantError
	return errors.As(err, &target)
}

// ConflictingSeats returns the seats carried by a SeatConflictError, if any.
func ConflictingSeats(err error) []string {
	var target *SeatConflictError
	if errors.As(err, &target) {
		return target.Seats
	}
	return nil
}

// HTTPStatus maps an error to the status code the API answers with.
func HTTPStatus(err error) int {
	var (
		validation *ValidationError
		notFound   *NotFoundError
		seat       *SeatConflictError
		route      *InvalidRouteError
		state      *StateConflictError
		forbidden  *ForbiddenError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &route):
		return http.StatusUnprocessableEntity
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &seat), errors.As(err, &state):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
