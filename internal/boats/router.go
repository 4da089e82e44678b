package boats

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

// SetupBoatRoutes mounts fleet management. The group must already carry an
// authenticating adapter.
func SetupBoatRoutes(router *gin.RouterGroup, controller Controller) {
	fleet := router.Group("/boats")
	fleet.Use(middleware.RequireOwnerSide())
	{
		fleet.GET("", controller.ListBoats)
		fleet.POST("", controller.CreateBoat)
	}
}
