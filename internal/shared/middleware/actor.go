package middleware

import (
	"ferryline/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const actorKey = "actor"

// Actor is who a request acts as. Every transport adapter (JWT, session,
// public) resolves one and the controllers only ever read this.
type Actor struct {
	UserID        uuid.UUID  `json:"user_id"`
	Role          users.Role `json:"role"`
	OwnerID       *uuid.UUID `json:"owner_id,omitempty"`
	Authenticated bool       `json:"authenticated"`
}

// Anonymous is the actor used by the public adapter.
var Anonymous = Actor{Role: users.RolePublic}

func (a Actor) IsAdmin() bool { return a.Role == users.RoleAdmin }

func (a Actor) IsAgent() bool { return a.Role == users.RoleAgent }

// IsOwnerSide reports owner or staff acting for an owner.
func (a Actor) IsOwnerSide() bool {
	return (a.Role == users.RoleOwner || a.Role == users.RoleStaff) && a.OwnerID != nil
}

// ActsFor reports whether the actor may manage data belonging to ownerID.
func (a Actor) ActsFor(ownerID uuid.UUID) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsOwnerSide() && *a.OwnerID == ownerID
}

// UserIDPtr returns nil for anonymous actors.
func (a Actor) UserIDPtr() *uuid.UUID {
	if !a.Authenticated {
		return nil
	}
	id := a.UserID
	return &id
}

// SetActor stores the actor and mirrors the legacy user_id/user_role keys.
func SetActor(c *gin.Context, a Actor) {
	c.Set(actorKey, a)
	if a.Authenticated {
		c.Set("user_id", a.UserID.String())
		c.Set("user_role", string(a.Role))
	}
}

// ActorFrom returns the actor resolved by the adapter, or Anonymous.
func ActorFrom(c *gin.Context) Actor {
	if v, ok := c.Get(actorKey); ok {
		if a, ok := v.(Actor); ok {
			return a
		}
	}
	return Anonymous
}

// ActorFromUser builds an actor for a stored user.
func ActorFromUser(u *users.User) Actor {
	return Actor{
		UserID:        u.ID,
		Role:          u.Role,
		OwnerID:       u.EffectiveOwnerID(),
		Authenticated: true,
	}
}

// OwnerScope resolves the owner a management request acts for. Admins
// name the owner with ?owner_id=.
func OwnerScope(c *gin.Context) (uuid.UUID, bool) {
	actor := ActorFrom(c)
	if actor.IsOwnerSide() {
		return *actor.OwnerID, true
	}
	if actor.IsAdmin() {
		if id, err := uuid.Parse(c.Query("owner_id")); err == nil {
			return id, true
		}
	}
	return uuid.Nil, false
}

// Channel is the sales channel the actor buys through.
func (a Actor) Channel() string {
	switch {
	case a.IsAgent():
		return "AGENT"
	case a.IsOwnerSide() || a.IsAdmin():
		return "OWNER"
	default:
		return "PUBLIC"
	}
}
