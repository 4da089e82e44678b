package cancellation

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupCancellationRoutes(rg *gin.RouterGroup, controller *Controller) {
	cancellations := rg.Group("/cancellations")
	cancellations.Use(middleware.RequireOwnerSide())
	{
		cancellations.GET("", controller.ListCancellations)
	}
}
