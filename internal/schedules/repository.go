package schedules

import (
	"context"
	"errors"
	"time"

	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repository interface {
	Create(ctx context.Context, schedule *Schedule, blocked []BlockedSeat) error
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Schedule, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Schedule, error)
	OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
	List(ctx context.Context, filter ListFilter) ([]Schedule, int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	SetAvailableSeats(ctx context.Context, tx *gorm.DB, id uuid.UUID, available int) error

	ListBlocked(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]BlockedSeat, error)
	AddBlocked(ctx context.Context, tx *gorm.DB, seats []BlockedSeat) error
	RemoveBlocked(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNo string) (int64, error)
}

// ListFilter narrows schedule listings. Empty OwnerIDs means any owner;
// a non-nil empty slice means none.
type ListFilter struct {
	OwnerIDs      []uuid.UUID
	RestrictOwner bool
	Statuses      []Status
	PublicOnly    bool
	From          *time.Time
	To            *time.Time
	Page          int
	Limit         int
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

func orderedDestinations(db *gorm.DB) *gorm.DB {
	return db.Order("sequence ASC")
}

func (r *repository) Create(ctx context.Context, schedule *Schedule, blocked []BlockedSeat) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(schedule).Error; err != nil {
			return err
		}
		for i := range blocked {
			blocked[i].ScheduleID = schedule.ID
		}
		if len(blocked) > 0 {
			if err := tx.Create(&blocked).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *repository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Schedule, error) {
	var schedule Schedule
	err := r.conn(ctx, tx).Preload("Destinations", orderedDestinations).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("schedule", id.String())
		}
		return nil, err
	}
	return &schedule, nil
}

// GetForUpdate locks the schedule row for the rest of tx. Every seat
// mutation on the schedule serializes on this lock.
func (r *repository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Schedule, error) {
	var schedule Schedule
	err := tx.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("schedule", id.String())
		}
		return nil, err
	}
	if err := tx.WithContext(ctx).Where("schedule_id = ?", id).Order("sequence ASC").Find(&schedule.Destinations).Error; err != nil {
		return nil, err
	}
	return &schedule, nil
}

func (r *repository) OwnerOf(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var schedule Schedule
	err := r.db.WithContext(ctx).Select("id", "owner_id").Where("id = ?", id).First(&schedule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return uuid.Nil, apperrors.NotFound("schedule", id.String())
		}
		return uuid.Nil, err
	}
	return schedule.OwnerID, nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Schedule, int64, error) {
	var (
		list  []Schedule
		total int64
	)

	db := r.db.WithContext(ctx).Model(&Schedule{})
	if filter.RestrictOwner {
		if len(filter.OwnerIDs) == 0 {
			return []Schedule{}, 0, nil
		}
		db = db.Where("owner_id IN ?", filter.OwnerIDs)
	}
	if len(filter.Statuses) > 0 {
		db = db.Where("status IN ?", filter.Statuses)
	}
	if filter.PublicOnly {
		db = db.Where("is_public = ?", true)
	}
	if filter.From != nil {
		db = db.Where("date >= ?", *filter.From)
	}
	if filter.To != nil {
		db = db.Where("date <= ?", *filter.To)
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = 20
	}
	offset := (filter.Page - 1) * filter.Limit

	err := db.Preload("Destinations", orderedDestinations).
		Order("date ASC, created_at ASC").
		Offset(offset).
		Limit(filter.Limit).
		Find(&list).Error
	return list, total, err
}

func (r *repository) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	res := r.db.WithContext(ctx).Model(&Schedule{}).Where("id = ?", id).Update("status", status)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("schedule", id.String())
	}
	return nil
}

func (r *repository) SetAvailableSeats(ctx context.Context, tx *gorm.DB, id uuid.UUID, available int) error {
	return r.conn(ctx, tx).Model(&Schedule{}).Where("id = ?", id).Update("available_seats", available).Error
}

func (r *repository) ListBlocked(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]BlockedSeat, error) {
	var list []BlockedSeat
	err := r.conn(ctx, tx).Where("schedule_id = ?", scheduleID).Order("seat_no ASC").Find(&list).Error
	return list, err
}

func (r *repository) AddBlocked(ctx context.Context, tx *gorm.DB, seats []BlockedSeat) error {
	if len(seats) == 0 {
		return nil
	}
	return r.conn(ctx, tx).Create(&seats).Error
}

func (r *repository) RemoveBlocked(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNo string) (int64, error) {
	res := r.conn(ctx, tx).Where("schedule_id = ? AND seat_no = ?", scheduleID, seatNo).Delete(&BlockedSeat{})
	return res.RowsAffected, res.Error
}
