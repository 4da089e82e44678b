package catalog

import (
	"context"
	"errors"

	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	CreateTicketType(ctx context.Context, tt *TicketType) error
	GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error)
	ListTicketTypes(ctx context.Context, ownerID uuid.UUID) ([]TicketType, error)
	UpdateTicketType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*TicketType, error)
	IsTicketTypeReferenced(ctx context.Context, id uuid.UUID) (bool, error)

	CreateTaxProfile(ctx context.Context, p *TaxProfile) error
	GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*TaxProfile, error)
	ListTaxProfiles(ctx context.Context, ownerID uuid.UUID) ([]TaxProfile, error)

	UpsertScheduleTicketType(ctx context.Context, stt *ScheduleTicketType) error
	ListScheduleTicketTypes(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, activeOnly bool) ([]ScheduleTicketType, error)
	GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*ScheduleTicketType, error)
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

func (r *repository) CreateTicketType(ctx context.Context, tt *TicketType) error {
	return r.db.WithContext(ctx).Create(tt).Error
}

func (r *repository) GetTicketType(ctx context.Context, id uuid.UUID) (*TicketType, error) {
	var tt TicketType
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&tt).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ticket type", id.String())
		}
		return nil, err
	}
	return &tt, nil
}

func (r *repository) ListTicketTypes(ctx context.Context, ownerID uuid.UUID) ([]TicketType, error) {
	var list []TicketType
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("code ASC").Find(&list).Error
	return list, err
}

func (r *repository) UpdateTicketType(ctx context.Context, id uuid.UUID, updates map[string]interface{}) (*TicketType, error) {
	if err := r.db.WithContext(ctx).Model(&TicketType{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return r.GetTicketType(ctx, id)
}

func (r *repository) IsTicketTypeReferenced(ctx context.Context, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Table("booking_tickets").Where("ticket_type_id = ?", id).Count(&count).Error
	return count > 0, err
}

func (r *repository) CreateTaxProfile(ctx context.Context, p *TaxProfile) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *repository) GetTaxProfile(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*TaxProfile, error) {
	var p TaxProfile
	if err := r.conn(ctx, tx).Where("id = ?", id).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("tax profile", id.String())
		}
		return nil, err
	}
	return &p, nil
}

func (r *repository) ListTaxProfiles(ctx context.Context, ownerID uuid.UUID) ([]TaxProfile, error) {
	var list []TaxProfile
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("name ASC").Find(&list).Error
	return list, err
}

// UpsertScheduleTicketType enables a ticket type on a schedule or updates its modifiers.
func (r *repository) UpsertScheduleTicketType(ctx context.Context, stt *ScheduleTicketType) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "schedule_id"}, {Name: "ticket_type_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"surcharge", "discount", "channel", "active"}),
	}).Create(stt).Error
}

func (r *repository) ListScheduleTicketTypes(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, activeOnly bool) ([]ScheduleTicketType, error) {
	q := r.conn(ctx, tx).Preload("TicketType").Where("schedule_id = ?", scheduleID)
	if activeOnly {
		q = q.Where("active = ?", true)
	}
	var list []ScheduleTicketType
	err := q.Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *repository) GetScheduleTicketType(ctx context.Context, tx *gorm.DB, scheduleID, ticketTypeID uuid.UUID) (*ScheduleTicketType, error) {
	var stt ScheduleTicketType
	err := r.conn(ctx, tx).Preload("TicketType").
		Where("schedule_id = ? AND ticket_type_id = ?", scheduleID, ticketTypeID).
		First(&stt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.InvalidTicketType(ticketTypeID.String())
		}
		return nil, err
	}
	return &stt, nil
}
