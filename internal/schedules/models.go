package schedules

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusDraft     Status = "DRAFT"
	StatusPublished Status = "PUBLISHED"
	StatusCancelled Status = "CANCELLED"
	StatusCompleted Status = "COMPLETED"
)

type Confirmation string

const (
	ConfirmImmediate Confirmation = "IMMEDIATE"
	ConfirmManual    Confirmation = "MANUAL"
)

// Schedule is one sailing of a boat on a date. AvailableSeats is maintained
// by the seat inventory and always equals total - blocked - active bookings.
type Schedule struct {
	ID                  uuid.UUID    `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID             uuid.UUID    `json:"owner_id" gorm:"type:uuid;not null;index"`
	BoatID              uuid.UUID    `json:"boat_id" gorm:"type:uuid;not null;index"`
	Name                string       `json:"name" gorm:"size:255"`
	Date                time.Time    `json:"date" gorm:"type:date;not null;index"`
	TotalSeats          int          `json:"total_seats" gorm:"not null;check:total_seats > 0"`
	AvailableSeats      int          `json:"available_seats" gorm:"not null;check:available_seats >= 0"`
	Confirmation        Confirmation `json:"confirmation" gorm:"type:varchar(20);default:'IMMEDIATE'"`
	IsPublic            bool         `json:"is_public" gorm:"not null"`
	Status              Status       `json:"status" gorm:"type:varchar(20);default:'DRAFT';index"`
	TaxProfileID        *uuid.UUID   `json:"tax_profile_id,omitempty" gorm:"type:uuid"`
	DefaultBoardingTime string       `json:"default_boarding_time,omitempty" gorm:"size:5"`
	CreatedBy           uuid.UUID    `json:"created_by" gorm:"type:uuid;not null"`
	CreatedAt           time.Time    `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt           time.Time    `json:"updated_at" gorm:"autoUpdateTime"`

	Destinations []ScheduleDestination `json:"destinations,omitempty" gorm:"foreignKey:ScheduleID;constraint:OnDelete:CASCADE"`
}

func (Schedule) TableName() string { return "schedules" }

// ScheduleDestination is a stop on the schedule's route, in sailing order.
type ScheduleDestination struct {
	ID            uuid.UUID `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ScheduleID    uuid.UUID `json:"schedule_id" gorm:"type:uuid;not null;uniqueIndex:idx_schedule_sequence"`
	Sequence      int       `json:"sequence" gorm:"not null;uniqueIndex:idx_schedule_sequence"`
	IslandName    string    `json:"island_name" gorm:"not null;size:100"`
	DepartureTime *string   `json:"departure_time,omitempty" gorm:"size:5"`
	ArrivalTime   *string   `json:"arrival_time,omitempty" gorm:"size:5"`
	IsPickup      bool      `json:"is_pickup" gorm:"not null"`
	IsDropoff     bool      `json:"is_dropoff" gorm:"not null"`
}

func (ScheduleDestination) TableName() string { return "schedule_destinations" }

// BlockedSeat is withheld from sale by the owner.
type BlockedSeat struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ScheduleID uuid.UUID  `json:"schedule_id" gorm:"type:uuid;not null;uniqueIndex:idx_blocked_schedule_seat"`
	SeatNo     string     `json:"seat_no" gorm:"not null;size:10;uniqueIndex:idx_blocked_schedule_seat"`
	Reason     string     `json:"reason" gorm:"size:255"`
	BlockedBy  *uuid.UUID `json:"blocked_by,omitempty" gorm:"type:uuid"`
	CreatedAt  time.Time  `json:"created_at" gorm:"autoCreateTime"`
}

func (BlockedSeat) TableName() string { return "blocked_seats" }

// Sellable reports whether a channel may book on this schedule right now.
// Owners may sell on a draft schedule before publishing it; private
// schedules are closed to the public channel.
func (s *Schedule) Sellable(channel string) bool {
	switch s.Status {
	case StatusPublished:
		return channel != "PUBLIC" || s.IsPublic
	case StatusDraft:
		return channel == "OWNER"
	default:
		return false
	}
}

// Destination finds a stop by id.
func (s *Schedule) Destination(id uuid.UUID) (*ScheduleDestination, bool) {
	for i := range s.Destinations {
		if s.Destinations[i].ID == id {
			return &s.Destinations[i], true
		}
	}
	return nil, false
}

var statusTransitions = map[Status][]Status{
	StatusDraft:     {StatusPublished, StatusCancelled},
	StatusPublished: {StatusCancelled, StatusCompleted},
}

// CanTransition reports whether a schedule may move from one status to another.
func CanTransition(from, to Status) bool {
	for _, s := range statusTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Request / response DTOs

type DestinationRequest struct {
	Sequence      int    `json:"sequence" binding:"min=0"`
	IslandName    string `json:"island_name" binding:"required,min=2,max=100"`
	DepartureTime string `json:"departure_time" binding:"omitempty,len=5"`
	ArrivalTime   string `json:"arrival_time" binding:"omitempty,len=5"`
	IsPickup      *bool  `json:"is_pickup"`
	IsDropoff     *bool  `json:"is_dropoff"`
}

type CreateScheduleRequest struct {
	BoatID              string               `json:"boat_id" binding:"required,uuid"`
	Name                string               `json:"name" binding:"max=255"`
	Date                string               `json:"date" binding:"required"`
	Confirmation        string               `json:"confirmation" binding:"omitempty,oneof=IMMEDIATE MANUAL"`
	IsPublic            *bool                `json:"is_public"`
	TaxProfileID        string               `json:"tax_profile_id" binding:"omitempty,uuid"`
	DefaultBoardingTime string               `json:"default_boarding_time" binding:"omitempty,len=5"`
	Destinations        []DestinationRequest `json:"destinations" binding:"required,min=2,dive"`
	BlockedSeats        []string             `json:"blocked_seats"`
}

type UpdateStatusRequest struct {
	Status string `json:"status" binding:"required,oneof=DRAFT PUBLISHED CANCELLED COMPLETED"`
}

type ListQuery struct {
	Page    int    `form:"page" binding:"omitempty,min=1"`
	Limit   int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Date    string `form:"date"`
	OwnerID string `form:"owner_id" binding:"omitempty,uuid"`
	From    string `form:"from"`
	To      string `form:"to"`
}

// Summary is a schedule as shown in listings.
type Summary struct {
	ID             string                `json:"id"`
	OwnerID        string                `json:"owner_id"`
	BoatID         string                `json:"boat_id"`
	Name           string                `json:"name"`
	Date           string                `json:"date"`
	Status         Status                `json:"status"`
	TotalSeats     int                   `json:"total_seats"`
	AvailableSeats int                   `json:"available_seats"`
	Confirmation   Confirmation          `json:"confirmation"`
	Destinations   []ScheduleDestination `json:"destinations"`
	MinPrice       *decimal.Decimal      `json:"min_price,omitempty"`
}

type PaginatedSchedules struct {
	Schedules  []Summary `json:"schedules"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}

func (s *Schedule) ToSummary() Summary {
	return Summary{
		ID:             s.ID.String(),
		OwnerID:        s.OwnerID.String(),
		BoatID:         s.BoatID.String(),
		Name:           s.Name,
		Date:           s.Date.Format("2006-01-02"),
		Status:         s.Status,
		TotalSeats:     s.TotalSeats,
		AvailableSeats: s.AvailableSeats,
		Confirmation:   s.Confirmation,
		Destinations:   s.Destinations,
	}
}
