package drafts

import "github.com/gin-gonic/gin"

func SetupDraftRoutes(router *gin.RouterGroup, controller Controller) {
	drafts := router.Group("/drafts")
	{
		drafts.POST("", controller.CreateDraft)
		drafts.GET("/:id", controller.GetDraft)
		drafts.PATCH("/:id", controller.UpdateDraft)
		drafts.DELETE("/:id", controller.DiscardDraft)
		drafts.POST("/:id/submit", controller.SubmitDraft)
	}
}
