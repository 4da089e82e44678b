package schedules

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateSchedule(c *gin.Context)
	ListSchedules(c *gin.Context)
	GetSchedule(c *gin.Context)
	UpdateStatus(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateSchedule(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	var req CreateScheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	schedule, err := ctrl.service.CreateSchedule(c.Request.Context(), ownerID, middleware.ActorFrom(c).UserID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Schedule created successfully", schedule, nil)
}

func (ctrl *controller) ListSchedules(c *gin.Context) {
	var query ListQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}

	result, err := ctrl.service.Browse(c.Request.Context(), middleware.ActorFrom(c), query)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Schedules retrieved successfully", result, nil)
}

func (ctrl *controller) GetSchedule(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	detail, err := ctrl.service.GetDetail(c.Request.Context(), middleware.ActorFrom(c), id)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Schedule retrieved successfully", detail, nil)
}

func (ctrl *controller) UpdateStatus(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	schedule, err := ctrl.service.UpdateStatus(c.Request.Context(), ownerID, id, Status(req.Status))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Schedule status updated", schedule, nil)
}
