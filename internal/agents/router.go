package agents

import (
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"

	"github.com/gin-gonic/gin"
)

func SetupConnectionRoutes(router *gin.RouterGroup, controller Controller) {
	connections := router.Group("/connections")
	connections.Use(middleware.RequireRoles(users.RoleAgent, users.RoleOwner, users.RoleStaff, users.RoleAdmin))
	{
		connections.GET("", controller.List)
		connections.POST("", controller.Connect)
		connections.PATCH("/:id", middleware.RequireOwnerSide(), controller.Decide)
	}
}
