package agents

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	Connect(c *gin.Context)
	Decide(c *gin.Context)
	List(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	conn, err := ctrl.service.Connect(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Connection created", conn, nil)
}

func (ctrl *controller) Decide(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid connection ID", nil, nil)
		return
	}

	var req DecideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	conn, err := ctrl.service.Decide(c.Request.Context(), ownerID, id, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Connection updated", conn, nil)
}

func (ctrl *controller) List(c *gin.Context) {
	list, err := ctrl.service.List(c.Request.Context(), middleware.ActorFrom(c))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Connections retrieved successfully", list, nil)
}
