package ledger

import (
	"ferryline/internal/shared/middleware"

	"github.com/gin-gonic/gin"
)

func SetupLedgerRoutes(router *gin.RouterGroup, controller Controller) {
	ledger := router.Group("/ledger")
	ledger.Use(middleware.RequireAuth())
	{
		ledger.GET("/balances", controller.GetBalance)
		ledger.GET("/entries", controller.ListEntries)
		ledger.GET("/statement", controller.GetStatement)

		admin := ledger.Group("/settings")
		admin.Use(middleware.RequireAdmin())
		{
			admin.GET("", controller.GetSettings)
			admin.PUT("", controller.UpdateSettings)
		}
	}
}
