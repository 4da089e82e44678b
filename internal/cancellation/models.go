package cancellation

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Record is the audit row written for every cancel. It survives the booking,
// which a full cancel deletes.
type Record struct {
	ID             uuid.UUID                   `gorm:"type:uuid;default:uuid_generate_v4();primaryKey" json:"id"`
	BookingID      uuid.UUID                   `gorm:"type:uuid;not null;index" json:"booking_id"`
	BookingCode    string                      `gorm:"size:6;not null;index" json:"booking_code"`
	ScheduleID     uuid.UUID                   `gorm:"type:uuid;not null;index" json:"schedule_id"`
	OwnerID        uuid.UUID                   `gorm:"type:uuid;not null;index" json:"owner_id"`
	SeatsFreed     datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"seats_freed"`
	Full           bool                        `gorm:"not null" json:"full"`
	ReversalPosted bool                        `gorm:"not null" json:"reversal_posted"`
	AmountRemoved  decimal.Decimal             `gorm:"type:decimal(18,4);not null" json:"amount_removed"`
	RemainingTotal decimal.Decimal             `gorm:"type:decimal(18,4);not null" json:"remaining_total"`
	Reason         string                      `gorm:"type:text" json:"reason,omitempty"`
	CancelledBy    *uuid.UUID                  `gorm:"type:uuid" json:"cancelled_by,omitempty"`
	CreatedAt      time.Time                   `json:"created_at"`
}

func (Record) TableName() string {
	return "cancellation_records"
}

type ListQuery struct {
	ScheduleID string `form:"schedule_id" binding:"omitempty,uuid"`
	BookingID  string `form:"booking_id" binding:"omitempty,uuid"`
	Limit      int    `form:"limit" binding:"omitempty,min=1,max=200"`
}
