package catalog

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	CreateTicketType(c *gin.Context)
	ListTicketTypes(c *gin.Context)
	UpdateTicketType(c *gin.Context)
	CreateTaxProfile(c *gin.Context)
	ListTaxProfiles(c *gin.Context)
	EnableTicketType(c *gin.Context)
	ListScheduleTicketTypes(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateTicketType(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	var req CreateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	tt, err := ctrl.service.CreateTicketType(c.Request.Context(), ownerID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Ticket type created successfully", tt, nil)
}

func (ctrl *controller) ListTicketTypes(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	list, err := ctrl.service.ListTicketTypes(c.Request.Context(), ownerID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket types retrieved successfully", list, nil)
}

func (ctrl *controller) UpdateTicketType(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid ticket type ID", nil, nil)
		return
	}

	var req UpdateTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	tt, err := ctrl.service.UpdateTicketType(c.Request.Context(), ownerID, id, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket type updated successfully", tt, nil)
}

func (ctrl *controller) CreateTaxProfile(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	var req CreateTaxProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	p, err := ctrl.service.CreateTaxProfile(c.Request.Context(), ownerID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Tax profile created successfully", p, nil)
}

func (ctrl *controller) ListTaxProfiles(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}

	list, err := ctrl.service.ListTaxProfiles(c.Request.Context(), ownerID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Tax profiles retrieved successfully", list, nil)
}

func (ctrl *controller) EnableTicketType(c *gin.Context) {
	ownerID, ok := middleware.OwnerScope(c)
	if !ok {
		response.RespondJSON(c, "error", http.StatusForbidden, "Owner scope required", nil, nil)
		return
	}
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	var req EnableTicketTypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	stt, err := ctrl.service.EnableTicketType(c.Request.Context(), ownerID, scheduleID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket type enabled on schedule", stt, nil)
}

// ListScheduleTicketTypes shows what the caller's channel can buy.
func (ctrl *controller) ListScheduleTicketTypes(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	list, err := ctrl.service.ListSellable(c.Request.Context(), scheduleID, middleware.ActorFrom(c).Channel())
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket types retrieved successfully", list, nil)
}
