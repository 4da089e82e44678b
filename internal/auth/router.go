package auth

import (
	"github.com/gin-gonic/gin"
)

// Router handles auth-related routes
type Router struct {
	controller *Controller
}

// NewRouter creates a new auth router
func NewRouter(controller *Controller) *Router {
	return &Router{controller: controller}
}

// SetupRoutes registers all auth routes. protect is the adapter middleware
// that resolves the actor for /me and /change-password.
func (authRouter *Router) SetupRoutes(rg *gin.RouterGroup, protect gin.HandlerFunc) {
	auth := rg.Group("/auth")
	{
		auth.POST("/register", authRouter.controller.Register)
		auth.POST("/login", authRouter.controller.Login)
		auth.POST("/refresh", authRouter.controller.RefreshToken)
		auth.POST("/session", authRouter.controller.OpenSession)
		auth.DELETE("/session", authRouter.controller.CloseSession)

		protected := auth.Group("")
		protected.Use(protect)
		{
			protected.PUT("/change-password", authRouter.controller.ChangePassword)
			protected.GET("/me", authRouter.controller.GetMe)
		}
	}
}
