package orchestrator

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSaleRoutes mounts what every caller, signed in or not, may do.
func SetupSaleRoutes(router *gin.RouterGroup, controller Controller) {
	router.GET("/schedules/:id/seat-map", controller.GetSeatMap)
	router.POST("/schedules/:id/quote", controller.Quote)
	router.POST("/schedules/:id/bookings", controller.CreateBooking)
}

// SetupBookingEngineRoutes mounts the sale routes plus the authenticated
// booking lifecycle.
func SetupBookingEngineRoutes(router *gin.RouterGroup, controller Controller) {
	SetupSaleRoutes(router, controller)

	authed := router.Group("")
	authed.Use(middleware.RequireAuth())
	{
		authed.POST("/bookings/:id/cancel", controller.CancelBooking)
		authed.POST("/bookings/:id/issue-ticket", controller.IssueTicket)
		authed.POST("/bookings/:id/payment-link", controller.PaymentLink)
		authed.POST("/bookings/:id/verify-transfer", controller.VerifyTransfer)
	}

	staff := router.Group("")
	staff.Use(middleware.RequireOwnerSide())
	{
		staff.POST("/tickets/:ticketId/travelled", controller.MarkTravelled)
	}
}
