package catalog

import (
	"time"

	"ferryline/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// ChannelScope says which sales channels may sell a ticket type on a schedule.
type ChannelScope string

const (
	ScopePublic ChannelScope = "PUBLIC"
	ScopeAgent  ChannelScope = "AGENT"
	ScopeBoth   ChannelScope = "BOTH"
)

// TicketType is an owner-defined fare class. Once a booking ticket refers to
// it, it is immutable.
type TicketType struct {
	ID           uuid.UUID         `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID      uuid.UUID         `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name         string            `json:"name" gorm:"not null;size:100"`
	Code         string            `json:"code" gorm:"not null;size:10;uniqueIndex"`
	BasePrice    decimal.Decimal   `json:"base_price" gorm:"type:decimal(18,4);not null"`
	Currency     string            `json:"currency" gorm:"size:3;default:'MVR'"`
	Refundable   bool              `json:"refundable" gorm:"not null"`
	BaggageRules datatypes.JSONMap `json:"baggage_rules,omitempty" gorm:"type:jsonb"`
	Active       bool              `json:"active" gorm:"default:true"`
	CreatedAt    time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt    time.Time         `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TicketType) TableName() string { return "ticket_types" }

// TaxProfile is an ordered list of tax lines with one rounding rule.
type TaxProfile struct {
	ID        uuid.UUID                            `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID   uuid.UUID                            `json:"owner_id" gorm:"type:uuid;not null;index"`
	Name      string                               `json:"name" gorm:"not null;size:100"`
	Lines     datatypes.JSONSlice[pricing.TaxLine] `json:"lines" gorm:"type:jsonb;not null"`
	Rounding  pricing.Rounding                     `json:"rounding" gorm:"type:varchar(20);default:'ROUND_UP'"`
	Active    bool                                 `json:"active" gorm:"default:true"`
	CreatedAt time.Time                            `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time                            `json:"updated_at" gorm:"autoUpdateTime"`
}

func (TaxProfile) TableName() string { return "tax_profiles" }

// Profile converts the stored profile into the pricing engine's form.
func (p *TaxProfile) Profile() *pricing.TaxProfile {
	if p == nil {
		return nil
	}
	return &pricing.TaxProfile{Lines: []pricing.TaxLine(p.Lines), Rounding: p.Rounding}
}

// ScheduleTicketType enables a ticket type on a schedule for some channels,
// with schedule-level price modifiers.
type ScheduleTicketType struct {
	ID           uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	ScheduleID   uuid.UUID       `json:"schedule_id" gorm:"type:uuid;not null;uniqueIndex:idx_schedule_ticket_type"`
	TicketTypeID uuid.UUID       `json:"ticket_type_id" gorm:"type:uuid;not null;uniqueIndex:idx_schedule_ticket_type"`
	Surcharge    decimal.Decimal `json:"surcharge" gorm:"type:decimal(18,4);default:0"`
	Discount     decimal.Decimal `json:"discount" gorm:"type:decimal(18,4);default:0"`
	Channel      ChannelScope    `json:"channel" gorm:"type:varchar(10);default:'PUBLIC'"`
	Active       bool            `json:"active" gorm:"default:true"`
	CreatedAt    time.Time       `json:"created_at" gorm:"autoCreateTime"`

	TicketType TicketType `json:"ticket_type" gorm:"foreignKey:TicketTypeID"`
}

func (ScheduleTicketType) TableName() string { return "schedule_ticket_types" }

// Allows reports whether the scope admits a channel. OWNER sales may use any
// ticket type enabled on the schedule.
func (s ChannelScope) Allows(channel string) bool {
	switch channel {
	case "OWNER":
		return true
	case "PUBLIC":
		return s == ScopePublic || s == ScopeBoth
	case "AGENT":
		return s == ScopeAgent || s == ScopeBoth
	default:
		return false
	}
}

// UnitPrice applies the schedule modifiers to the ticket type's base price.
func (s *ScheduleTicketType) UnitPrice() (decimal.Decimal, error) {
	return pricing.UnitPrice(s.TicketType.BasePrice, s.Surcharge, s.Discount)
}

// Request / response DTOs

type CreateTicketTypeRequest struct {
	Name         string                 `json:"name" binding:"required,min=2,max=100"`
	Code         string                 `json:"code" binding:"required,min=2,max=10"`
	BasePrice    decimal.Decimal        `json:"base_price"`
	Currency     string                 `json:"currency" binding:"omitempty,len=3"`
	Refundable   *bool                  `json:"refundable"`
	BaggageRules map[string]interface{} `json:"baggage_rules"`
}

type UpdateTicketTypeRequest struct {
	Name       *string          `json:"name" binding:"omitempty,min=2,max=100"`
	BasePrice  *decimal.Decimal `json:"base_price"`
	Refundable *bool            `json:"refundable"`
	Active     *bool            `json:"active"`
}

type CreateTaxProfileRequest struct {
	Name     string            `json:"name" binding:"required,min=2,max=100"`
	Lines    []pricing.TaxLine `json:"lines" binding:"required,min=1,dive"`
	Rounding string            `json:"rounding" binding:"omitempty,oneof=ROUND_UP ROUND_DOWN ROUND_NEAREST"`
}

type EnableTicketTypeRequest struct {
	TicketTypeID string          `json:"ticket_type_id" binding:"required,uuid"`
	Surcharge    decimal.Decimal `json:"surcharge"`
	Discount     decimal.Decimal `json:"discount"`
	Channel      string          `json:"channel" binding:"omitempty,oneof=PUBLIC AGENT BOTH"`
}

// SellableTicketType is a ticket type as offered on one schedule.
type SellableTicketType struct {
	TicketTypeID string          `json:"ticket_type_id"`
	Name         string          `json:"name"`
	Code         string          `json:"code"`
	Channel      ChannelScope    `json:"channel"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	Currency     string          `json:"currency"`
	Refundable   bool            `json:"refundable"`
}
