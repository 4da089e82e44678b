package schedules

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupScheduleRoutes mounts browsing for every actor and management for owners.
func SetupScheduleRoutes(router *gin.RouterGroup, controller Controller) {
	schedules := router.Group("/schedules")
	{
		schedules.GET("", controller.ListSchedules)
		schedules.GET("/:id", controller.GetSchedule)

		owner := schedules.Group("")
		owner.Use(middleware.RequireOwnerSide())
		{
			owner.POST("", controller.CreateSchedule)
			owner.PATCH("/:id/status", controller.UpdateStatus)
		}
	}
}
