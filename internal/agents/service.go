package agents

import (
	"context"
	"fmt"
	"strings"
	"time"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/users"
	"ferryline/pkg/logger"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Service interface {
	Connect(ctx context.Context, actor middleware.Actor, req ConnectRequest) (*Connection, error)
	Decide(ctx context.Context, ownerID, id uuid.UUID, req DecideRequest) (*Connection, error)
	List(ctx context.Context, actor middleware.Actor) ([]Connection, error)
	ApprovedOwnerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error)
	RequireApproved(ctx context.Context, tx *gorm.DB, ownerID, agentID uuid.UUID) (*Connection, error)
	AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
}

type service struct {
	repo     Repository
	currency string
	log      *logger.Logger
}

func NewService(repo Repository, currency string) Service {
	return &service{repo: repo, currency: currency, log: logger.GetDefault()}
}

// Connect creates a connection. Agents ask an owner and wait for approval;
// owners add an agent by phone and the connection is approved at once.
func (s *service) Connect(ctx context.Context, actor middleware.Actor, req ConnectRequest) (*Connection, error) {
	if req.CreditLimit.IsNegative() {
		return nil, apperrors.Validation("credit_limit", "must not be negative")
	}
	currency := strings.ToUpper(req.Currency)
	if currency == "" {
		currency = s.currency
	}

	conn := &Connection{
		Currency:    currency,
		CreditLimit: req.CreditLimit,
		RequestedBy: actor.UserID,
	}

	switch {
	case actor.IsAgent():
		ownerID, err := uuid.Parse(req.OwnerID)
		if err != nil {
			return nil, apperrors.Validation("owner_id", "is required")
		}
		owner, err := s.repo.GetUser(ctx, ownerID)
		if err != nil {
			return nil, err
		}
		if owner.Role != users.RoleOwner {
			return nil, apperrors.Validation("owner_id", "is not a boat owner")
		}
		conn.OwnerID = ownerID
		conn.AgentID = actor.UserID
		conn.Status = StatusPending
	case actor.IsOwnerSide():
		if req.AgentPhone == "" {
			return nil, apperrors.Validation("agent_phone", "is required")
		}
		agent, err := s.repo.FindUser(ctx, strings.TrimSpace(req.AgentPhone), users.RoleAgent)
		if err != nil {
			return nil, err
		}
		now := time.Now()
		conn.OwnerID = *actor.OwnerID
		conn.AgentID = agent.ID
		conn.Status = StatusApproved
		conn.DecidedAt = &now
	default:
		return nil, apperrors.Forbidden("only agents and owners can create connections")
	}

	if err := s.repo.Create(ctx, conn); err != nil {
		return nil, err
	}
	s.log.InfoWithContext(ctx, "Agent connection created", map[string]interface{}{
		"connection_id": conn.ID.String(),
		"owner_id":      conn.OwnerID.String(),
		"agent_id":      conn.AgentID.String(),
		"status":        conn.Status,
	})
	return conn, nil
}

func (s *service) Decide(ctx context.Context, ownerID, id uuid.UUID, req DecideRequest) (*Connection, error) {
	conn, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if conn.OwnerID != ownerID {
		return nil, apperrors.Forbidden("connection belongs to another owner")
	}
	if !conn.CanDecide(req.Status) {
		return nil, apperrors.StateConflict(fmt.Sprintf("connection cannot move from %s to %s", conn.Status, req.Status))
	}

	now := time.Now()
	updates := map[string]interface{}{
		"status":     req.Status,
		"decided_at": now,
	}
	if req.CreditLimit != nil {
		if req.CreditLimit.IsNegative() {
			return nil, apperrors.Validation("credit_limit", "must not be negative")
		}
		updates["credit_limit"] = *req.CreditLimit
		conn.CreditLimit = *req.CreditLimit
	}
	if err := s.repo.Update(ctx, id, updates); err != nil {
		return nil, fmt.Errorf("failed to update connection: %w", err)
	}

	conn.Status = req.Status
	conn.DecidedAt = &now
	return conn, nil
}

func (s *service) List(ctx context.Context, actor middleware.Actor) ([]Connection, error) {
	switch {
	case actor.IsAdmin():
		return s.repo.List(ctx, nil, nil)
	case actor.IsOwnerSide():
		return s.repo.List(ctx, actor.OwnerID, nil)
	case actor.IsAgent():
		agentID := actor.UserID
		return s.repo.List(ctx, nil, &agentID)
	}
	return nil, apperrors.Forbidden("connections are visible to owners and agents only")
}

func (s *service) ApprovedOwnerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error) {
	return s.repo.ApprovedOwnerIDs(ctx, agentID)
}

// RequireApproved returns the locked approved connection or a ForbiddenError.
func (s *service) RequireApproved(ctx context.Context, tx *gorm.DB, ownerID, agentID uuid.UUID) (*Connection, error) {
	return s.repo.GetApprovedForUpdate(ctx, tx, ownerID, agentID)
}

func (s *service) AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	balance, err := s.repo.AddBalance(ctx, tx, id, delta)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to update connection balance: %w", err)
	}
	return balance, nil
}
