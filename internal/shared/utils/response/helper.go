package response

import (
	"errors"
	"net/http"

	"ferryline/internal/shared/apperrors"

	"github.com/gin-gonic/gin"
)

func RespondJSON(c *gin.Context, status string, code int, message string, data interface{}, errors interface{}) {
	c.JSON(code, StandardApiResponse{
		Status:     status,
		StatusCode: code,
		Message:    message,
		Data:       data,
		Errors:     errors,
	})
}

// RespondError maps a domain error onto the standard envelope.
// Invariant violations and unknown errors are reported as an opaque 500.
func RespondError(c *gin.Context, err error) {
	code := apperrors.HTTPStatus(err)
	if code == http.StatusInternalServerError {
		RespondJSON(c, "error", code, "Internal server error", nil, nil)
		return
	}

	var details interface{}
	var seatErr *apperrors.SeatConflictError
	var validationErr *apperrors.ValidationError
	switch {
	case errors.As(err, &seatErr):
		details = gin.H{"seats": seatErr.Seats}
	case errors.As(err, &validationErr):
		details = gin.H{"field": validationErr.Field}
	}

	RespondJSON(c, "error", code, err.Error(), nil, details)
}
