package bookings

import (
	"time"

	"ferryline/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Booking is one purchase on one schedule leg. grand_total always equals
// subtotal + tax_total - discount_total.
type Booking struct {
	ID         uuid.UUID  `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	Code       string     `json:"code" gorm:"size:6;not null;uniqueIndex"`
	ScheduleID uuid.UUID  `json:"schedule_id" gorm:"type:uuid;not null;index"`
	OwnerID    uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	Channel    Channel    `json:"channel" gorm:"type:varchar(10);not null;index"`
	AgentID    *uuid.UUID `json:"agent_id,omitempty" gorm:"type:uuid;index"`
	CreatedBy  *uuid.UUID `json:"created_by,omitempty" gorm:"type:uuid;index"`

	BuyerName       string `json:"buyer_name" gorm:"not null;size:255"`
	BuyerPhone      string `json:"buyer_phone" gorm:"not null;size:30"`
	BuyerNationalID string `json:"buyer_national_id,omitempty" gorm:"size:50"`

	PickupDestinationID  uuid.UUID `json:"pickup_destination_id" gorm:"type:uuid;not null"`
	DropoffDestinationID uuid.UUID `json:"dropoff_destination_id" gorm:"type:uuid;not null"`
	DepartureAt          time.Time `json:"departure_at" gorm:"not null"`

	Currency      string          `json:"currency" gorm:"size:3;not null"`
	Subtotal      decimal.Decimal `json:"subtotal" gorm:"type:decimal(18,4);not null"`
	TaxTotal      decimal.Decimal `json:"tax_total" gorm:"type:decimal(18,4);not null"`
	DiscountTotal decimal.Decimal `json:"discount_total" gorm:"type:decimal(18,4);not null"`
	GrandTotal    decimal.Decimal `json:"grand_total" gorm:"type:decimal(18,4);not null"`
	DiscountRate  decimal.Decimal `json:"-" gorm:"type:decimal(9,6);not null;default:0"`

	// TaxSnapshot is the tax profile the booking was priced with, so later
	// repricing does not depend on the schedule's current profile.
	TaxSnapshot datatypes.JSONType[*pricing.TaxProfile] `json:"-" gorm:"type:jsonb"`

	PaymentStatus     PaymentStatus     `json:"payment_status" gorm:"type:varchar(20);not null;default:'PENDING';index"`
	FulfillmentStatus FulfillmentStatus `json:"fulfillment_status" gorm:"type:varchar(20);not null;default:'UNCONFIRMED';index"`
	FinanceStatus     FinanceStatus     `json:"finance_status" gorm:"type:varchar(20);not null;default:'UNPOSTED'"`

	Meta      datatypes.JSONMap `json:"meta,omitempty" gorm:"type:jsonb"`
	CreatedAt time.Time         `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time         `json:"updated_at" gorm:"autoUpdateTime"`

	Tickets []BookingTicket `json:"tickets,omitempty" gorm:"foreignKey:BookingID;constraint:OnDelete:CASCADE"`
}

func (Booking) TableName() string { return "bookings" }

// BookingTicket is one passenger. UnitPrice is the fare at the time of sale.
type BookingTicket struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BookingID      uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;index"`
	TicketTypeID   uuid.UUID       `json:"ticket_type_id" gorm:"type:uuid;not null;index"`
	PassengerName  string          `json:"passenger_name" gorm:"not null;size:255"`
	PassengerPhone string          `json:"passenger_phone,omitempty" gorm:"size:30"`
	UnitPrice      decimal.Decimal `json:"unit_price" gorm:"type:decimal(18,4);not null"`
	SeatNo         string          `json:"seat_no,omitempty" gorm:"size:10"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (BookingTicket) TableName() string { return "booking_tickets" }

// Meta keys written by the engine.
const (
	MetaTicketIssuedAt       = "ticket_issued_at"
	MetaPaymentTransactionID = "payment_transaction_id"
	MetaCancelledSeats       = "cancelled_seats"
	MetaDraftID              = "draft_id"
	MetaHoldID               = "hold_id"
)

// Seats lists the seat numbers bound to the booking's tickets.
func (b *Booking) Seats() []string {
	seats := make([]string, 0, len(b.Tickets))
	for _, t := range b.Tickets {
		if t.SeatNo != "" {
			seats = append(seats, t.SeatNo)
		}
	}
	return seats
}

// Reprice recomputes totals from the tickets' fare snapshots using the tax
// profile and discount rate the booking was sold with.
func (b *Booking) Reprice() error {
	subtotal := decimal.Zero
	for _, t := range b.Tickets {
		subtotal = subtotal.Add(t.UnitPrice)
	}
	subtotal = pricing.Money(subtotal)

	tax := decimal.Zero
	if profile := b.TaxSnapshot.Data(); profile != nil {
		tax = profile.Tax(subtotal)
	}
	discount := decimal.Zero
	if b.DiscountRate.IsPositive() {
		discount = pricing.Money(subtotal.Mul(b.DiscountRate))
	}

	b.Subtotal = subtotal
	b.TaxTotal = tax
	b.DiscountTotal = discount
	b.GrandTotal = pricing.GrandTotal(subtotal, tax, discount)
	return b.CheckTotals()
}

// CheckTotals verifies grand_total == subtotal + tax_total - discount_total.
func (b *Booking) CheckTotals() error {
	return pricing.CheckTotals(b.Subtotal, b.TaxTotal, b.DiscountTotal, b.GrandTotal)
}

// SetMeta writes one meta key, allocating the map if needed.
func (b *Booking) SetMeta(key string, value interface{}) {
	if b.Meta == nil {
		b.Meta = datatypes.JSONMap{}
	}
	b.Meta[key] = value
}

// Request / response DTOs

type BuyerRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=255"`
	Phone      string `json:"phone" binding:"required,min=5,max=30"`
	NationalID string `json:"national_id" binding:"max=50"`
}

type TicketRequest struct {
	TicketTypeID   string `json:"ticket_type_id" binding:"required,uuid"`
	PassengerName  string `json:"passenger_name" binding:"required,min=2,max=255"`
	PassengerPhone string `json:"passenger_phone" binding:"max=30"`
	SeatNo         string `json:"seat_no" binding:"max=10"`
}

type ListQuery struct {
	Page        int    `form:"page" binding:"omitempty,min=1"`
	Limit       int    `form:"limit" binding:"omitempty,min=1,max=100"`
	Channel     string `form:"channel" binding:"omitempty,oneof=PUBLIC AGENT OWNER"`
	Payment     string `form:"payment_status" binding:"omitempty,oneof=PENDING PARTIAL PAID FAILED REFUNDED"`
	Fulfillment string `form:"fulfillment_status" binding:"omitempty,oneof=UNCONFIRMED CONFIRMED CHECKED_IN BOARDED CANCELLED"`
	AgentID     string `form:"agent_id" binding:"omitempty,uuid"`
}

type PaginatedBookings struct {
	Bookings   []Booking `json:"bookings"`
	TotalCount int64     `json:"total_count"`
	Page       int       `json:"page"`
	Limit      int       `json:"limit"`
	TotalPages int       `json:"total_pages"`
}
