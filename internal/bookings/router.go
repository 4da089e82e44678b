package bookings

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBookingRoutes mounts the read side. Create, cancel and issue live
// with the orchestrator.
func SetupBookingRoutes(router *gin.RouterGroup, controller Controller) {
	router.GET("/bookings/code/:code", controller.GetBookingByCode)

	authed := router.Group("")
	authed.Use(middleware.RequireAuth())
	{
		authed.GET("/bookings", controller.ListBookings)
		authed.GET("/bookings/:id", controller.GetBooking)
		authed.GET("/schedules/:id/bookings", controller.ListScheduleBookings)
	}
}
