package seats

import (
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	BlockSeats(c *gin.Context)
	UnblockSeat(c *gin.Context)
	HoldSeats(c *gin.Context)
	ReleaseHold(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func (ctrl *controller) BlockSeats(c *gin.Context) {
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

	var req BlockSeatsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	seatMap, err := ctrl.service.Block(c.Request.Context(), ownerID, scheduleID, middleware.ActorFrom(c).UserIDPtr(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Seats blocked", seatMap, nil)
}

func (ctrl *controller) UnblockSeat(c *gin.Context) {
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

	seatMap, err := ctrl.service.Unblock(c.Request.Context(), ownerID, scheduleID, c.Param("seat"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Seat unblocked", seatMap, nil)
}

func (ctrl *controller) HoldSeats(c *gin.Context) {
	scheduleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid schedule ID", nil, nil)
		return
	}

	var req HoldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	actorID := "anonymous"
	if actor := middleware.ActorFrom(c); actor.Authenticated {
		actorID = actor.UserID.String()
	}

	hold, err := ctrl.service.HoldSeats(c.Request.Context(), scheduleID, actorID, req.Seats)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Seats held", hold, nil)
}

func (ctrl *controller) ReleaseHold(c *gin.Context) {
	released, err := ctrl.service.ReleaseHold(c.Request.Context(), c.Param("holdId"))
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Hold released", gin.H{"released": released}, nil)
}
