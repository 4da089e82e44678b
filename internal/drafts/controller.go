package drafts

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
)

type Controller interface {
	CreateDraft(c *gin.Context)
	GetDraft(c *gin.Context)
	UpdateDraft(c *gin.Context)
	SubmitDraft(c *gin.Context)
	DiscardDraft(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) CreateDraft(c *gin.Context) {
	var req CreateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	draft, err := ctrl.service.Create(c.Request.Context(), middleware.ActorFrom(c), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Draft created", draft, nil)
}

func (ctrl *controller) GetDraft(c *gin.Context) {
	draft, err := ctrl.service.Get(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Draft retrieved successfully", draft, nil)
}

func (ctrl *controller) UpdateDraft(c *gin.Context) {
	var req UpdateDraftRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	draft, err := ctrl.service.Update(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Draft updated", draft, nil)
}

// SubmitDraft handles POST /drafts/:id/submit
func (ctrl *controller) SubmitDraft(c *gin.Context) {
	booking, err := ctrl.service.Submit(c.Request.Context(), middleware.ActorFrom(c), c.Param("id"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Booking created successfully", booking, nil)
}

func (ctrl *controller) DiscardDraft(c *gin.Context) {
	if err := ctrl.service.Discard(c.Request.Context(), middleware.ActorFrom(c), c.Param("id")); err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Draft discarded", nil, nil)
}
