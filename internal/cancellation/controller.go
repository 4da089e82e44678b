package cancellation

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller struct {
	service Service
}

func NewController(service Service) *Controller {
	return &Controller{service: service}
}

// ListCancellations handles GET /cancellations?schedule_id=
func (c *Controller) ListCancellations(ctx *gin.Context) {
	var query ListQuery
	if err := ctx.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(ctx, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	records, err := c.service.List(ctx.Request.Context(), middleware.ActorFrom(ctx), query)
	if err != nil {
		response.RespondError(ctx, err)
		return
	}
	response.RespondJSON(ctx, "success", http.StatusOK, "Cancellations retrieved successfully", records, nil)
}
