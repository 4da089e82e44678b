package agents

import (
	"context"
	"errors"

	"ferryline/internal/shared/apperrors"
	"ferryline/internal/users"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, conn *Connection) error
	GetByID(ctx context.Context, id uuid.UUID) (*Connection, error)
	GetApprovedForUpdate(ctx context.Context, tx *gorm.DB, ownerID, agentID uuid.UUID) (*Connection, error)
	List(ctx context.Context, ownerID, agentID *uuid.UUID) ([]Connection, error)
	ApprovedOwnerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error
	AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error)
	FindUser(ctx context.Context, phone string, role users.Role) (*users.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*users.User, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func (r *repository) Create(ctx context.Context, conn *Connection) error {
	err := r.db.WithContext(ctx).Create(conn).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return apperrors.StateConflict("a connection between this owner and agent already exists")
	}
	return err
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Connection, error) {
	var c Connection
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("connection", id.String())
		}
		return nil, err
	}
	return &c, nil
}

// GetApprovedForUpdate locks the approved connection so the balance can be
// moved in the caller's transaction.
func (r *repository) GetApprovedForUpdate(ctx context.Context, tx *gorm.DB, ownerID, agentID uuid.UUID) (*Connection, error) {
	var c Connection
	err := r.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("owner_id = ? AND agent_id = ? AND status = ?", ownerID, agentID, StatusApproved).
		First(&c).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.Forbidden("agent has no approved connection with this owner")
		}
		return nil, err
	}
	return &c, nil
}

func (r *repository) List(ctx context.Context, ownerID, agentID *uuid.UUID) ([]Connection, error) {
	var list []Connection
	query := r.db.WithContext(ctx).Model(&Connection{})
	if ownerID != nil {
		query = query.Where("owner_id = ?", *ownerID)
	}
	if agentID != nil {
		query = query.Where("agent_id = ?", *agentID)
	}
	if err := query.Order("created_at DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, r.attachNames(ctx, list)
}

// attachNames fills the display fields from users in one query.
func (r *repository) attachNames(ctx context.Context, list []Connection) error {
	if len(list) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(list)*2)
	for _, c := range list {
		ids = append(ids, c.OwnerID, c.AgentID)
	}
	var people []users.User
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&people).Error; err != nil {
		return err
	}
	byID := make(map[uuid.UUID]users.User, len(people))
	for _, u := range people {
		byID[u.ID] = u
	}
	for i := range list {
		if u, ok := byID[list[i].OwnerID]; ok {
			list[i].OwnerName = u.Name
		}
		if u, ok := byID[list[i].AgentID]; ok {
			list[i].AgentName = u.Name
			list[i].AgentPhone = u.Phone
		}
	}
	return nil
}

func (r *repository) ApprovedOwnerIDs(ctx context.Context, agentID uuid.UUID) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.db.WithContext(ctx).
		Model(&Connection{}).
		Where("agent_id = ? AND status = ?", agentID, StatusApproved).
		Pluck("owner_id", &ids).Error
	return ids, err
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]interface{}) error {
	return r.db.WithContext(ctx).Model(&Connection{}).Where("id = ?", id).Updates(updates).Error
}

// AddBalance moves current_balance by delta and returns the new balance.
func (r *repository) AddBalance(ctx context.Context, tx *gorm.DB, id uuid.UUID, delta decimal.Decimal) (decimal.Decimal, error) {
	var c Connection
	err := r.conn(ctx, tx).
		Model(&c).
		Clauses(clause.Returning{Columns: []clause.Column{{Name: "current_balance"}}}).
		Where("id = ?", id).
		Update("current_balance", gorm.Expr("current_balance + ?", delta)).Error
	if err != nil {
		return decimal.Zero, err
	}
	return c.CurrentBalance, nil
}

func (r *repository) FindUser(ctx context.Context, phone string, role users.Role) (*users.User, error) {
	var u users.User
	err := r.db.WithContext(ctx).Where("phone = ? AND role = ? AND is_active = ?", phone, role, true).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound(string(role), phone)
		}
		return nil, err
	}
	return &u, nil
}

func (r *repository) GetUser(ctx context.Context, id uuid.UUID) (*users.User, error) {
	var u users.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("user", id.String())
		}
		return nil, err
	}
	return &u, nil
}
