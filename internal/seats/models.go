package seats

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type TravelStatus string

const (
	TravelActive    TravelStatus = "ACTIVE"
	TravelTravelled TravelStatus = "TRAVELLED"
	TravelCancelled TravelStatus = "CANCELLED"
)

// Occupies reports whether the seat is still taken. A passenger who has
// boarded keeps the seat until the sailing ends.
func (s TravelStatus) Occupies() bool {
	return s == TravelActive || s == TravelTravelled
}

// SeatAssignment binds one booking ticket to one seat on a schedule. At most
// one ACTIVE or TRAVELLED assignment exists per (schedule, seat); a partial
// unique index enforces it.
type SeatAssignment struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ScheduleID   uuid.UUID         `json:"schedule_id" gorm:"type:uuid;not null;index"`
	BookingID    uuid.UUID         `json:"booking_id" gorm:"type:uuid;not null;index"`
	TicketID     uuid.UUID         `json:"ticket_id" gorm:"type:uuid;not null;uniqueIndex"`
	SeatNo       string            `json:"seat_no" gorm:"not null;size:10"`
	TravelStatus TravelStatus      `json:"travel_status" gorm:"type:varchar(20);not null;default:'ACTIVE'"`
	TravelledAt  *time.Time        `json:"travelled_at,omitempty"`
	TravelledBy  *uuid.UUID        `json:"travelled_by,omitempty" gorm:"type:uuid"`
	Meta         datatypes.JSONMap `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (SeatAssignment) TableName() string { return "seat_assignments" }

// Claim asks for one seat on behalf of one ticket.
type Claim struct {
	SeatNo    string
	BookingID uuid.UUID
	TicketID  uuid.UUID
}

// SeatMap is what a schedule's seats look like right now. A seat that is
// both blocked and booked is reported as booked only.
type SeatMap struct {
	ScheduleID string   `json:"schedule_id"`
	Blocked    []string `json:"blocked"`
	Booked     []string `json:"booked"`
	Held       []string `json:"held,omitempty"`
	Total      int      `json:"total_seats"`
	Available  int      `json:"available_seats"`
}

// Hold is an advisory pre-sale hold on some seats, kept in Redis.
type Hold struct {
	HoldID     string    `json:"hold_id"`
	ScheduleID string    `json:"schedule_id"`
	Seats      []string  `json:"seats"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type HoldRequest struct {
	Seats []string `json:"seats" binding:"required,min=1,max=50"`
}

type BlockSeatsRequest struct {
	Seats  []string `json:"seats" binding:"required,min=1"`
	Reason string   `json:"reason" binding:"max=255"`
}
