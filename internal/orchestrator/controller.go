package orchestrator

import (
	"errors"
	"io"
	"net/http"

	"ferryline/internal/shared/middleware"
	"ferryline/internal/shared/utils/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const maxReceiptBytes = 8 << 20

type Controller interface {
	CreateBooking(c *gin.Context)
	CancelBooking(c *gin.Context)
	IssueTicket(c *gin.Context)
	MarkTravelled(c *gin.Context)
	GetSeatMap(c *gin.Context)
	Quote(c *gin.Context)
	PaymentLink(c *gin.Context)
	VerifyTransfer(c *gin.Context)
}

type controller struct {
	service Service
}

func NewController(service Service) Controller {
	return &controller{service: service}
}

func parseID(c *gin.Context, param, label string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid "+label+" ID", nil, nil)
		return uuid.Nil, false
	}
	return id, true
}

// CreateBooking handles POST /schedules/:id/bookings. The channel follows
// the caller: owner side, approved agent or public.
func (ctrl *controller) CreateBooking(c *gin.Context) {
	scheduleID, ok := parseID(c, "id", "schedule")
	if !ok {
		return
	}

	var req CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	booking, err := ctrl.service.CreateBooking(c.Request.Context(), middleware.ActorFrom(c), scheduleID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusCreated, "Booking created successfully", booking, nil)
}

// CancelBooking handles POST /bookings/:id/cancel
func (ctrl *controller) CancelBooking(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	var req CancelRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
			response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
			return
		}
	}

	result, err := ctrl.service.CancelBooking(c.Request.Context(), middleware.ActorFrom(c), bookingID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}

	msg := "Seats cancelled"
	if result.Full {
		msg = "Booking cancelled"
	}
	response.RespondJSON(c, "success", http.StatusOK, msg, result, nil)
}

// IssueTicket handles POST /bookings/:id/issue-ticket
func (ctrl *controller) IssueTicket(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	var req IssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	result, err := ctrl.service.IssueTicket(c.Request.Context(), middleware.ActorFrom(c), bookingID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Ticket issued", result, nil)
}

// MarkTravelled handles POST /tickets/:ticketId/travelled
func (ctrl *controller) MarkTravelled(c *gin.Context) {
	ticketID, ok := parseID(c, "ticketId", "ticket")
	if !ok {
		return
	}

	assignment, err := ctrl.service.MarkTravelled(c.Request.Context(), middleware.ActorFrom(c), ticketID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Passenger marked as travelled", assignment, nil)
}

func (ctrl *controller) GetSeatMap(c *gin.Context) {
	scheduleID, ok := parseID(c, "id", "schedule")
	if !ok {
		return
	}

	seatMap, err := ctrl.service.GetSeatMap(c.Request.Context(), scheduleID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Seat map retrieved successfully", seatMap, nil)
}

func (ctrl *controller) Quote(c *gin.Context) {
	scheduleID, ok := parseID(c, "id", "schedule")
	if !ok {
		return
	}

	var req QuoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Invalid request body", nil, err.Error())
		return
	}

	quote, err := ctrl.service.Quote(c.Request.Context(), middleware.ActorFrom(c), scheduleID, req)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Quote calculated", quote, nil)
}

func (ctrl *controller) PaymentLink(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	link, err := ctrl.service.PaymentLink(c.Request.Context(), middleware.ActorFrom(c), bookingID)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	if !link.Created {
		response.RespondJSON(c, "error", http.StatusBadGateway, "Payment gateway rejected the request", link, nil)
		return
	}
	response.RespondJSON(c, "success", http.StatusOK, "Payment link created", link, nil)
}

// VerifyTransfer handles POST /bookings/:id/verify-transfer with a
// multipart "receipt" image.
func (ctrl *controller) VerifyTransfer(c *gin.Context) {
	bookingID, ok := parseID(c, "id", "booking")
	if !ok {
		return
	}

	file, err := c.FormFile("receipt")
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Receipt image is required", nil, err.Error())
		return
	}
	if file.Size > maxReceiptBytes {
		response.RespondJSON(c, "error", http.StatusRequestEntityTooLarge, "Receipt image is too large", nil, nil)
		return
	}
	f, err := file.Open()
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Could not read receipt image", nil, err.Error())
		return
	}
	defer f.Close()
	image, err := io.ReadAll(io.LimitReader(f, maxReceiptBytes))
	if err != nil {
		response.RespondJSON(c, "error", http.StatusBadRequest, "Could not read receipt image", nil, err.Error())
		return
	}

	check, err := ctrl.service.VerifyTransfer(c.Request.Context(), middleware.ActorFrom(c), bookingID, image)
	if err != nil {
		response.RespondError(c, err)
		return
	}
	msg := "Transfer verified"
	if !check.Valid {
		msg = "Transfer could not be verified"
	}
	response.RespondJSON(c, "success", http.StatusOK, msg, check, nil)
}
