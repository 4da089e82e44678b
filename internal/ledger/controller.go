package ledger

import (
	"net/http"
	"time"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type Controller interface {
	GetBalance(c *gin.Context)
	ListEntries(c *gin.Context)
	GetStatement(c *gin.Context)
	GetSettings(c *gin.Context)
	UpdateSettings(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

// ResolveParty pins non-admin actors to their own ledger: owners read the
// BOAT_OWNER account, agents their AGENT account.
func ResolveParty(actor middleware.Actor, q PartyQuery) (Party, *uuid.UUID, error) {
	switch {
	case actor.IsAdmin():
		party := Party(q.Party)
		if party == "" {
			party = PartyAppOwner
		}
		if q.PartyID == "" {
			return party, nil, nil
		}
		id, err := uuid.Parse(q.PartyID)
		if err != nil {
			return "", nil, apperrors.Validation("party_id", "must be a uuid")
		}
		return party, &id, nil
	case actor.IsOwnerSide():
		if q.Party != "" && Party(q.Party) != PartyBoatOwner {
			return "", nil, apperrors.Forbidden("owners can only read their own ledger")
		}
		id := *actor.OwnerID
		return PartyBoatOwner, &id, nil
	case actor.IsAgent():
		if q.Party != "" && Party(q.Party) != PartyAgent {
			return "", nil, apperrors.Forbidden("agents can only read their own ledger")
		}
		id := actor.UserID
		return PartyAgent, &id, nil
	}
	return "", nil, apperrors.Forbidden("ledger is not visible to this actor")
}

func parseDate(field, value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, value); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return nil, apperrors.Validation(field, "must be YYYY-MM-DD or RFC3339")
	}
	return &t, nil
}

func (ctrl *controller) GetBalance(c *gin.Context) {
	var q PartyQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	party, partyID, err := ResolveParty(middleware.ActorFrom(c), q)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	balance, err := ctrl.service.Balance(c.Request.Context(), party, partyID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Balance retrieved successfully", balance, nil)
}

func (ctrl *controller) ListEntries(c *gin.Context) {
	var q EntriesQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	actor := middleware.ActorFrom(c)

	filter := EntryFilter{Page: q.Page, Limit: q.Limit}
	// admins may list across all parties
	if !actor.IsAdmin() || q.Party != "" {
		party, partyID, err := ResolveParty(actor, q.PartyQuery)
		if err != nil {
			response.RespondError(c, err)
			return
		}
		filter.Party, filter.PartyID = party, partyID
	}
	if q.BookingID != "" {
		id, _ := uuid.Parse(q.BookingID)
		filter.BookingID = &id
	}
	var err error
	if filter.From, err = parseDate("from", q.From); err != nil {
		response.RespondError(c, err)
		return
	}
	if filter.To, err = parseDate("to", q.To); err != nil {
		response.RespondError(c, err)
		return
	}

	result, err := ctrl.service.Entries(c.Request.Context(), filter)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Entries retrieved successfully", result, nil)
}

func (ctrl *controller) GetStatement(c *gin.Context) {
	var q StatementQuery
	if err := c.ShouldBindQuery(&q); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid query parameters", nil, err.Error())
		return
	}
	party, partyID, err := ResolveParty(middleware.ActorFrom(c), q.PartyQuery)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	from, err := parseDate("from", q.From)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	to, err := parseDate("to", q.To)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if from == nil || to == nil {
		response.RespondError(c, apperrors.Validation("from", "from and to are required"))
		return
	}

	statement, err := ctrl.service.Statement(c.Request.Context(), party, partyID, *from, *to)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Statement generated", statement, nil)
}

func (ctrl *controller) GetSettings(c *gin.Context) {
	settings, err := ctrl.service.ActiveSettings(c.Request.Context(), nil)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Settings retrieved successfully", settings, nil)
}

func (ctrl *controller) UpdateSettings(c *gin.Context) {
	var req UpdateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}
	settings, err := ctrl.service.UpdateSettings(c.Request.Context(), req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Settings updated", settings, nil)
}
