package users

import (
	"time"

	"github.com/google/uuid"
)

type Role string

const (
	RolePublic Role = "PUBLIC"
	RoleAgent  Role = "AGENT"
	RoleOwner  Role = "OWNER"
	RoleStaff  Role = "STAFF"
	RoleAdmin  Role = "ADMIN"
)

type User struct {
	ID       uuid.UUID `json:"id" gorm:"primaryKey;type:uuid;default:uuid_generate_v4()"`
	Name     string    `json:"name" gorm:"not null;size:150"`
	Phone    string    `json:"phone" gorm:"uniqueIndex;not null;size:32"`
	Email    string    `json:"email,omitempty" gorm:"size:255"`
	Password string    `json:"-" gorm:"not null"` // hide in json
	Role     Role      `json:"role" gorm:"type:varchar(16);not null;default:'PUBLIC'"`

	// OwnerID is set for STAFF users and names the boat owner they work for.
	OwnerID *uuid.UUID `json:"owner_id,omitempty" gorm:"type:uuid;index"`

	// AgencyName is shown to owners reviewing agent connection requests.
	AgencyName string `json:"agency_name,omitempty" gorm:"size:150"`

	IsActive  bool      `json:"is_active" gorm:"default:true"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

func IsValidRole(role string) bool {
	switch Role(role) {
	case RolePublic, RoleAgent, RoleOwner, RoleStaff, RoleAdmin:
		return true
	default:
		return false
	}
}

// SelfRegisterable lists the roles a user may pick at sign-up.
func SelfRegisterable(role Role) bool {
	return role == RolePublic || role == RoleAgent || role == RoleOwner
}

// EffectiveOwnerID is the owner a user acts for: owners act for themselves,
// staff for the owner that employs them.
func (u *User) EffectiveOwnerID() *uuid.UUID {
	switch u.Role {
	case RoleOwner:
		id := u.ID
		return &id
	case RoleStaff:
		return u.OwnerID
	default:
		return nil
	}
}
