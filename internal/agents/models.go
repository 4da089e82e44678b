package agents

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending  Status = "PENDING"
	StatusApproved Status = "APPROVED"
	StatusRejected Status = "REJECTED"
)

// Connection lets an agent sell an owner's schedules. CurrentBalance is what
// the agent owes the owner and only moves through ledger postings.
type Connection struct {
	ID             uuid.UUID       `json:"id" gorm:"type:uuid;default:uuid_generate_v4();primaryKey"`
	OwnerID        uuid.UUID       `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_owner_agent"`
	AgentID        uuid.UUID       `json:"agent_id" gorm:"type:uuid;not null;uniqueIndex:idx_owner_agent;index"`
	Currency       string          `json:"currency" gorm:"size:3;not null"`
	CreditLimit    decimal.Decimal `json:"credit_limit" gorm:"type:decimal(18,4);not null;default:0"`
	CurrentBalance decimal.Decimal `json:"current_balance" gorm:"type:decimal(18,4);not null;default:0"`
	Status         Status          `json:"status" gorm:"type:varchar(16);not null;default:'PENDING';index"`
	RequestedBy    uuid.UUID       `json:"requested_by" gorm:"type:uuid;not null"`
	DecidedAt      *time.Time      `json:"decided_at,omitempty"`
	CreatedAt      time.Time       `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt      time.Time       `json:"updated_at" gorm:"autoUpdateTime"`

	OwnerName  string `json:"owner_name,omitempty" gorm:"-"`
	AgentName  string `json:"agent_name,omitempty" gorm:"-"`
	AgentPhone string `json:"agent_phone,omitempty" gorm:"-"`
}

func (Connection) TableName() string { return "owner_agent_connections" }

func (c *Connection) IsApproved() bool { return c.Status == StatusApproved }

// CanDecide reports whether an owner may move the connection to status.
// Approved connections can still be rejected to revoke the agent.
func (c *Connection) CanDecide(to Status) bool {
	switch c.Status {
	case StatusPending:
		return to == StatusApproved || to == StatusRejected
	case StatusApproved:
		return to == StatusRejected
	case StatusRejected:
		return to == StatusApproved
	}
	return false
}

// ConnectRequest is sent by an agent (naming an owner) or by an owner
// (naming an agent by phone). Owner-created connections start approved.
type ConnectRequest struct {
	OwnerID     string          `json:"owner_id" binding:"omitempty,uuid"`
	AgentPhone  string          `json:"agent_phone" binding:"omitempty,min=5,max=32"`
	Currency    string          `json:"currency" binding:"omitempty,len=3"`
	CreditLimit decimal.Decimal `json:"credit_limit"`
}

type DecideRequest struct {
	Status      Status           `json:"status" binding:"required,oneof=APPROVED REJECTED"`
	CreditLimit *decimal.Decimal `json:"credit_limit"`
}
