package seats

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupSeatRoutes mounts holds for every actor and blocking for owners.
func SetupSeatRoutes(router *gin.RouterGroup, controller Controller) {
	router.POST("/schedules/:id/holds", controller.HoldSeats)
	router.DELETE("/holds/:holdId", controller.ReleaseHold)

	owner := router.Group("/schedules/:id/blocked-seats")
	owner.Use(middleware.RequireOwnerSide())
	{
		owner.POST("", controller.BlockSeats)
		owner.DELETE("/:seat", controller.UnblockSeat)
	}
}
