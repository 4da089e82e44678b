package catalog

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupCatalogRoutes mounts owner catalog management and the per-schedule
// ticket type listing.
func SetupCatalogRoutes(router *gin.RouterGroup, controller Controller) {
	router.GET("/schedules/:id/ticket-types", controller.ListScheduleTicketTypes)

	owner := router.Group("")
	owner.Use(middleware.RequireOwnerSide())
	{
		owner.GET("/ticket-types", controller.ListTicketTypes)
		owner.POST("/ticket-types", controller.CreateTicketType)
		owner.PATCH("/ticket-types/:id", controller.UpdateTicketType)
		owner.GET("/tax-profiles", controller.ListTaxProfiles)
		owner.POST("/tax-profiles", controller.CreateTaxProfile)
		owner.POST("/schedules/:id/ticket-types", controller.EnableTicketType)
	}
}
