package auth

import (
	"time"

	"ferryline/internal/users"

	"github.com/golang-jwt/jwt/v4"
)

// LoginRequest represents the login request payload
type LoginRequest struct {
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	Password string `json:"password" validate:"required,min=6"`
}

// RegisterRequest represents the registration request payload
type RegisterRequest struct {
	Name       string `json:"name" validate:"required,min=2,max=150"`
	Phone      string `json:"phone" validate:"required,min=7,max=20"`
	Email      string `json:"email" validate:"omitempty,email"`
	Password   string `json:"password" validate:"required,min=6"`
	Role       string `json:"role,omitempty" validate:"omitempty,oneof=PUBLIC AGENT OWNER public agent owner"`
	AgencyName string `json:"agency_name,omitempty" validate:"omitempty,max=150"`
}

// AuthResponse represents the authentication response
type AuthResponse struct {
	User         UserResponse `json:"user"`
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
}

// SessionResponse is returned when a cookie session is opened.
type SessionResponse struct {
	User      UserResponse `json:"user"`
	ExpiresIn int64        `json:"expires_in"`
}

// UserResponse represents user data in responses (without sensitive info)
type UserResponse struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	Email      string    `json:"email,omitempty"`
	Role       string    `json:"role"`
	OwnerID    string    `json:"owner_id,omitempty"`
	AgencyName string    `json:"agency_name,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// RefreshTokenRequest represents refresh token request
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// ChangePasswordRequest represents change password request
type ChangePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}

// JWTClaims represents JWT token claims
type JWTClaims struct {
	UserID  string `json:"user_id"`
	Phone   string `json:"phone"`
	Role    string `json:"role"`
	OwnerID string `json:"owner_id,omitempty"`
	Type    string `json:"type"` // "access" or "refresh"
	jwt.RegisteredClaims
}

// TokenPair represents access and refresh tokens
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// session is what the Redis session store keeps per session id.
type session struct {
	UserID    string    `json:"user_id"`
	Role      string    `json:"role"`
	OwnerID   string    `json:"owner_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserResponse(u *users.User) UserResponse {
	resp := UserResponse{
		ID:         u.ID.String(),
		Name:       u.Name,
		Phone:      u.Phone,
		Email:      u.Email,
		Role:       string(u.Role),
		AgencyName: u.AgencyName,
		CreatedAt:  u.CreatedAt,
	}
	if owner := u.EffectiveOwnerID(); owner != nil {
		resp.OwnerID = owner.String()
	}
	return resp
}
