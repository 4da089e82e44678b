package boats

import (
	"context"
	"errors"

	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, boat *Boat) error
	GetByID(ctx context.Context, id uuid.UUID) (*Boat, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Boat, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, boat *Boat) error {
	return r.db.WithContext(ctx).Create(boat).Error
}

func (r *repository) GetByID(ctx context.Context, id uuid.UUID) (*Boat, error) {
	var boat Boat
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&boat).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("boat", id.String())
		}
		return nil, err
	}
	return &boat, nil
}

func (r *repository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]Boat, error) {
	var boats []Boat
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND is_active = ?", ownerID, true).
		Order("name ASC").
		Find(&boats).Error
	return boats, err
}
