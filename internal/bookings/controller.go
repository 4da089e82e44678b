package bookings

import (
	"net/http"
	"strings"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	GetBooking(c *gin.Context)
	GetBookingByCode(c *gin.Context)
	ListBookings(c *gin.Context)
	ListScheduleBookings(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// GetBooking handles GET /bookings/:id
func (ctrl *controller) GetBooking(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid booking ID", nil, nil)
		return
	}

	booking, err := ctrl.service.Get(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// GetBookingByCode handles GET /bookings/code/:code. Anyone holding the
// code may look the booking up.
func (ctrl *controller) GetBookingByCode(c *gin.Context) {
	booking, err := ctrl.service.GetByCode(c.Request.Context(), strings.ToUpper(c.Param("code")))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Booking retrieved successfully", booking, nil)
}

// ListBookings handles GET /bookings
func (ctrl *controller) ListBookings(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := ctrl.service.ListMine(c.Request.Context(), middleware.ActorFrom(c), query)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}

// ListScheduleBookings handles GET /schedules/:id/bookings
func (ctrl *controller) ListScheduleBookings(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := ctrl.service.ListForSchedule(c.Request.Context(), middleware.ActorFrom(c), scheduleID, query)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Bookings retrieved successfully", result, nil)
}
