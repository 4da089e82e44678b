package middleware

import (
	"context"
	"net/http"
	"strings"

	"ferryline/internal/shared/config"
	"ferryline/internal/shared/utils/response"
	"ferryline/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// SessionResolver looks up the actor behind a web session id.
type SessionResolver interface {
	ResolveSession(ctx context.Context, sessionID string) (*Actor, error)
}

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		actor, ok := actorFromBearer(cfg, authHeader)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "invalid or expired token", nil, nil)
			c.Abort()
			return
		}

		SetActor(c, actor)
		c.Next()
	}
}

// OptionalAuthWithConfig validates a bearer token if present but doesn't require it
func OptionalAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authHeader := c.GetHeader("Authorization"); authHeader != "" {
			if actor, ok := actorFromBearer(cfg, authHeader); ok {
				SetActor(c, actor)
			}
		}
		c.Next()
	}
}

// SessionAuth resolves the actor from the session cookie.
func SessionAuth(cookieName string, resolver SessionResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		sid, err := c.Cookie(cookieName)
		if err != nil || sid == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "session required", nil, nil)
			c.Abort()
			return
		}

		actor, err := resolver.ResolveSession(c.Request.Context(), sid)
		if err != nil || actor == nil {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "session expired", nil, nil)
			c.Abort()
			return
		}

		SetActor(c, *actor)
		c.Next()
	}
}

// PublicAccess pins the request to the anonymous public actor.
func PublicAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		SetActor(c, Anonymous)
		c.Next()
	}
}

func actorFromBearer(cfg *config.Config, authHeader string) (Actor, bool) {
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return Actor{}, false
	}

	token, err := jwt.Parse(parts[1], func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(cfg.JWT.Secret), nil
	})
	if err != nil || !token.Valid {
		return Actor{}, false
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Actor{}, false
	}
	if tokenType, ok := claims["type"].(string); !ok || tokenType != "access" {
		return Actor{}, false
	}

	userID, err := uuid.Parse(claimString(claims, "user_id"))
	if err != nil {
		return Actor{}, false
	}
	actor := Actor{
		UserID:        userID,
		Role:          users.Role(claimString(claims, "role")),
		Authenticated: true,
	}
	if ownerID, err := uuid.Parse(claimString(claims, "owner_id")); err == nil {
		actor.OwnerID = &ownerID
	}
	return actor, true
}

func claimString(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return s
}

// RequireAuth rejects anonymous actors.
func RequireAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !ActorFrom(c).Authenticated {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authentication required", nil, nil)
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...users.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		actor := ActorFrom(c)
		if !actor.Authenticated {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		for _, role := range requiredRoles {
			if actor.Role == role {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}

// RequireOwnerSide admits owners, their staff and admins.
func RequireOwnerSide() gin.HandlerFunc {
	return RequireRoles(users.RoleOwner, users.RoleStaff, users.RoleAdmin)
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(users.RoleAdmin)
}
