package drafts

import (
	"time"

	"ferryline/internal/bookings"

	"github.com/google/uuid"
)

// Draft is a booking being assembled over several requests. It lives in
// Redis only and disappears when its TTL runs out or it is submitted.
type Draft struct {
	ID                   string                   `json:"id"`
	ScheduleID           uuid.UUID                `json:"schedule_id"`
	CreatedBy            string                   `json:"created_by,omitempty"`
	Buyer                *bookings.BuyerRequest   `json:"buyer,omitempty"`
	PickupDestinationID  string                   `json:"pickup_destination_id,omitempty"`
	DropoffDestinationID string                   `json:"dropoff_destination_id,omitempty"`
	Tickets              []bookings.TicketRequest `json:"tickets"`
	HoldID               string                   `json:"hold_id,omitempty"`
	Meta                 map[string]interface{}   `json:"meta,omitempty"`
	CreatedAt            time.Time                `json:"created_at"`
	UpdatedAt            time.Time                `json:"updated_at"`
	ExpiresAt            time.Time                `json:"expires_at"`
}

// Missing lists what still has to be filled in before submitting.
func (d *Draft) Missing() []string {
	var missing []string
	if d.Buyer == nil || d.Buyer.Name == "" || d.Buyer.Phone == "" {
		missing = append(missing, "buyer")
	}
	if d.PickupDestinationID == "" {
		missing = append(missing, "pickup_destination_id")
	}
	if d.DropoffDestinationID == "" {
		missing = append(missing, "dropoff_destination_id")
	}
	if len(d.Tickets) == 0 {
		missing = append(missing, "tickets")
	}
	return missing
}

type CreateDraftRequest struct {
	ScheduleID           string                   `json:"schedule_id" binding:"required,uuid"`
	Buyer                *bookings.BuyerRequest   `json:"buyer"`
	PickupDestinationID  string                   `json:"pickup_destination_id" binding:"omitempty,uuid"`
	DropoffDestinationID string                   `json:"dropoff_destination_id" binding:"omitempty,uuid"`
	Tickets              []bookings.TicketRequest `json:"tickets" binding:"max=50,dive"`
	HoldID               string                   `json:"hold_id" binding:"omitempty,uuid"`
	Meta                 map[string]interface{}   `json:"meta"`
}

// UpdateDraftRequest replaces only the fields that are present. A tickets
// list replaces the whole list.
type UpdateDraftRequest struct {
	Buyer                *bookings.BuyerRequest    `json:"buyer"`
	PickupDestinationID  *string                   `json:"pickup_destination_id" binding:"omitempty,uuid"`
	DropoffDestinationID *string                   `json:"dropoff_destination_id" binding:"omitempty,uuid"`
	Tickets              *[]bookings.TicketRequest `json:"tickets" binding:"omitempty,max=50,dive"`
	HoldID               *string                   `json:"hold_id" binding:"omitempty,uuid"`
	Meta                 map[string]interface{}    `json:"meta"`
}
