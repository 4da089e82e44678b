package cancellation

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, record *Record) error
	List(ctx context.Context, filter Filter) ([]Record, error)
}

type Filter struct {
	OwnerID    *uuid.UUID
	ScheduleID *uuid.UUID
	BookingID  *uuid.UUID
	Limit      int
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Create(ctx context.Context, tx *gorm.DB, record *Record) error {
	db := r.db
	if tx != nil {
		db = tx
	}
	return db.WithContext(ctx).Create(record).Error
}

func (r *repository) List(ctx context.Context, filter Filter) ([]Record, error) {
	var records []Record
	query := r.db.WithContext(ctx).Model(&Record{})
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.BookingID != nil {
		query = query.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	err := query.Order("created_at DESC").Limit(filter.Limit).Find(&records).Error
	return records, err
}
