package orchestrator

import (
	"ferryline/internal/bookings"
	"ferryline/internal/transferverify"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type CreateBookingRequest struct {
	Buyer                bookings.BuyerRequest    `json:"buyer" binding:"required"`
	PickupDestinationID  string                   `json:"pickup_destination_id" binding:"required,uuid"`
	DropoffDestinationID string                   `json:"dropoff_destination_id" binding:"required,uuid"`
	Tickets              []bookings.TicketRequest `json:"tickets" binding:"required,min=1,max=50,dive"`
	HoldID               string                   `json:"hold_id" binding:"omitempty,uuid"`
	Meta                 map[string]interface{}   `json:"meta"`

	// set by the drafts flow, never bound from the body
	DraftID string `json:"-"`
}

type CancelRequest struct {
	// Seats names the seats to remove. Empty cancels the whole booking.
	Seats  []string `json:"seats" binding:"max=50"`
	Reason string   `json:"reason" binding:"max=500"`
}

type CancelResult struct {
	BookingID      uuid.UUID         `json:"booking_id"`
	Full           bool              `json:"full"`
	SeatsFreed     []string          `json:"seats_freed"`
	ReversalPosted bool              `json:"reversal_posted"`
	Remaining      *bookings.Booking `json:"remaining,omitempty"`
}

type IssueRequest struct {
	PaymentMethod string `json:"payment_method" binding:"required,oneof=cash bank_transfer"`
	Reference     string `json:"reference" binding:"max=120"`
	Notes         string `json:"notes" binding:"max=1000"`
}

type IssueResult struct {
	BookingID        uuid.UUID       `json:"booking_id"`
	TransactionID    uuid.UUID       `json:"transaction_id"`
	Reference        string          `json:"reference"`
	CommissionAmount decimal.Decimal `json:"commission_amount"`
	OwnerAmount      decimal.Decimal `json:"owner_amount"`
}

type QuoteTicket struct {
	TicketTypeID string `json:"ticket_type_id" binding:"required,uuid"`
	Quantity     int    `json:"quantity" binding:"required,min=1,max=50"`
}

type QuoteRequest struct {
	Tickets []QuoteTicket `json:"tickets" binding:"required,min=1,dive"`
}

type PaymentLink struct {
	BookingCode string                 `json:"booking_code"`
	AmountCents int64                  `json:"amount_cents"`
	Currency    string                 `json:"currency"`
	Created     bool                   `json:"created"`
	Gateway     map[string]interface{} `json:"gateway"`
}

type TransferCheck struct {
	BookingCode string                  `json:"booking_code"`
	Expected    decimal.Decimal         `json:"expected_amount"`
	Currency    string                  `json:"currency"`
	Valid       bool                    `json:"valid"`
	Details     *transferverify.Details `json:"details"`
}
