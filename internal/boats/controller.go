package boats

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	CreateBoat(c *gin.Context)
	ListBoats(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateBoat(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	var req CreateBoatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	boat, err := ctrl.service.CreateBoat(c.Request.Context(), ownerID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusCreated, "Boat created successfully", boat.Layout(), nil)
}

func (ctrl *controller) ListBoats(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	boats, err := ctrl.service.ListBoats(c.Request.Context(), ownerID)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	response.RespondJSON(c, "success", http.StatusOK, "Boats retrieved successfully", boats, nil)
}
