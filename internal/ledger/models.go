package ledger

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	MethodCash         PaymentMethod = "cash"
	MethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) IsValid() bool {
	return m == MethodCash || m == MethodBankTransfer
}

type Party string

const (
	PartyAppOwner  Party = "APP_OWNER"
	PartyBoatOwner Party = "BOAT_OWNER"
	PartyAgent     Party = "AGENT"
)

func (p Party) IsValid() bool {
	switch p {
	case PartyAppOwner, PartyBoatOwner, PartyAgent:
		return true
	}
	return false
}

type EntryType string

const (
	EntryCredit EntryType = "CREDIT"
	EntryDebit  EntryType = "DEBIT"
)

// Signed returns amount for credits and -amount for debits.
func (t EntryType) Signed(amount decimal.Decimal) decimal.Decimal {
	if t == EntryDebit {
		return amount.Neg()
	}
	return amount
}

func (t EntryType) Opposite() EntryType {
	if t == EntryDebit {
		return EntryCredit
	}
	return EntryDebit
}

// PaymentTransaction records money taken for a booking when its ticket is
// issued. BookingID is not a foreign key: the ledger outlives deleted bookings.
type PaymentTransaction struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	BookingID         uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;index"`
	BookingCode       string          `json:"booking_code" gorm:"size:6;not null"`
	ScheduleID        uuid.UUID       `json:"schedule_id" gorm:"type:uuid;not null;index"`
	OwnerID           uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;index"`
	Amount            decimal.Decimal `json:"amount" gorm:"type:decimal(18,4);not null"`
	Currency          string          `json:"currency" gorm:"size:3;not null"`
	Method            PaymentMethod   `json:"method" gorm:"type:varchar(20);not null"`
	Status            string          `json:"status" gorm:"type:varchar(20);not null;default:'COMPLETED'"`
	Reference         string          `json:"reference" gorm:"size:40;not null;uniqueIndex"`
	ExternalReference string          `json:"external_reference,omitempty" gorm:"size:120"`
	Notes             string          `json:"notes,omitempty" gorm:"type:text"`
	ProcessedBy       *uuid.UUID      `json:"processed_by,omitempty" gorm:"type:uuid"`
	CreatedAt         time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (PaymentTransaction) TableName() string { return "payment_transactions" }

// CommissionEntry is one append-only ledger line. Rows are never updated or
// deleted; corrections are new rows pointing back through ReversesID.
type CommissionEntry struct {
	ID             int64           `json:"id" gorm:"primaryKey;autoIncrement"`
	TransactionID  *uuid.UUID      `json:"transaction_id,omitempty" gorm:"type:uuid;index"`
	BookingID      uuid.UUID       `json:"booking_id" gorm:"type:uuid;not null;index"`
	Party          Party           `json:"party" gorm:"type:varchar(16);not null;index:idx_party_lookback,priority:1"`
	PartyID        *uuid.UUID      `json:"party_id,omitempty" gorm:"type:uuid;index:idx_party_lookback,priority:2"`
	ConnectionID   *uuid.UUID      `json:"connection_id,omitempty" gorm:"type:uuid"`
	FromOwnerID    *uuid.UUID      `json:"from_owner_id,omitempty" gorm:"type:uuid"`
	ToAppOwner     bool            `json:"to_app_owner" gorm:"not null"`
	EntryType      EntryType       `json:"entry_type" gorm:"type:varchar(8);not null"`
	Amount         decimal.Decimal `json:"amount" gorm:"type:decimal(18,4);not null"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	Description    string          `json:"description" gorm:"size:255"`
	RunningBalance decimal.Decimal `json:"running_balance" gorm:"type:decimal(18,4);not null"`
	EntryDate      time.Time       `json:"entry_date" gorm:"not null;index"`
	ReversesID     *int64          `json:"reverses_id,omitempty" gorm:"index"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
}

func (CommissionEntry) TableName() string { return "commission_entries" }

// PlatformSettings is the single active commission configuration.
type PlatformSettings struct {
	ID                   uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	CommissionPerBooking decimal.Decimal `json:"commission_per_booking" gorm:"type:decimal(18,4);not null"`
	Currency             string          `json:"currency" gorm:"size:3;not null"`
	RetainFeeOnRefund    bool            `json:"retain_fee_on_refund" gorm:"not null"`
	Active               bool            `json:"active" gorm:"not null;index"`
	CreatedAt            time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt            time.Time       `json:"updated_at" gorm:"autoUpdateTime"`
}

func (PlatformSettings) TableName() string { return "platform_settings" }

// IssueInput carries what PostIssue needs from the booking being issued.
type IssueInput struct {
	BookingID         uuid.UUID
	BookingCode       string
	ScheduleID        uuid.UUID
	OwnerID           uuid.UUID
	Currency          string
	GrandTotal        decimal.Decimal
	Method            PaymentMethod
	ExternalReference string
	Notes             string
	ProcessedBy       *uuid.UUID

	// Agent is set for AGENT channel bookings only.
	Agent *AgentPosting
}

type AgentPosting struct {
	AgentID      uuid.UUID
	ConnectionID uuid.UUID
}

// Reversal describes a cancellation to offset. Ratio is the share of the
// booking's tickets being cancelled and scales the flat commission lines.
// Removed is the drop in the booking's grand total; it comes off the agent
// payable so the connection balance tracks the repriced booking.
type Reversal struct {
	BookingID uuid.UUID
	Ratio     decimal.Decimal
	Removed   decimal.Decimal
	Reason    string
}

type IssueResult struct {
	TransactionID    uuid.UUID         `json:"transaction_id"`
	Reference        string            `json:"reference"`
	CommissionAmount decimal.Decimal   `json:"commission_amount"`
	OwnerAmount      decimal.Decimal   `json:"owner_amount"`
	Entries          []CommissionEntry `json:"entries"`
}

type EntryFilter struct {
	Party     Party
	PartyID   *uuid.UUID
	BookingID *uuid.UUID
	From      *time.Time
	To        *time.Time
	Page      int
	Limit     int
}

type Statement struct {
	Party          Party           `json:"party"`
	PartyID        *uuid.UUID      `json:"party_id,omitempty"`
	From           time.Time       `json:"from"`
	To             time.Time       `json:"to"`
	OpeningBalance decimal.Decimal `json:"opening_balance"`
	Credits        decimal.Decimal `json:"credits"`
	Debits         decimal.Decimal `json:"debits"`
	ClosingBalance decimal.Decimal `json:"closing_balance"`
	EntryCount     int64           `json:"entry_count"`
}

type PartyBalance struct {
	Party   Party           `json:"party"`
	PartyID *uuid.UUID      `json:"party_id,omitempty"`
	Balance decimal.Decimal `json:"balance"`
}

// Query / request DTOs

type PartyQuery struct {
	Party   string `form:"party" binding:"omitempty,oneof=APP_OWNER BOAT_OWNER AGENT"`
	PartyID string `form:"party_id" binding:"omitempty,uuid"`
}

type EntriesQuery struct {
	PartyQuery
	BookingID string `form:"booking_id" binding:"omitempty,uuid"`
	From      string `form:"from"`
	To        string `form:"to"`
	Page      int    `form:"page" binding:"omitempty,min=1"`
	Limit     int    `form:"limit" binding:"omitempty,min=1,max=200"`
}

type StatementQuery struct {
	PartyQuery
	From string `form:"from" binding:"required"`
	To   string `form:"to" binding:"required"`
}

type UpdateSettingsRequest struct {
	CommissionPerBooking decimal.Decimal `json:"commission_per_booking"`
	Currency             string          `json:"currency" binding:"omitempty,len=3"`
	RetainFeeOnRefund    bool            `json:"retain_fee_on_refund"`
}

type PaginatedEntries struct {
	Entries    []CommissionEntry `json:"entries"`
	TotalCount int64             `json:"total_count"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
}
