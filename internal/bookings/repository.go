package bookings

import (
	"context"
	"errors"
	"fmt"
	"math"

	"ferryline/internal/shared/apperrors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ErrDuplicateCode is returned when the code unique index rejects an insert.
var ErrDuplicateCode = errors.New("booking code already taken")

type Repository interface {
	Create(ctx context.Context, tx *gorm.DB, booking *Booking) error
	CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
	GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error)
	GetByCode(ctx context.Context, code string) (*Booking, error)
	GetTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*BookingTicket, error)
	Save(ctx context.Context, tx *gorm.DB, booking *Booking) error
	DeleteTickets(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, ticketIDs []uuid.UUID) error
	Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	List(ctx context.Context, filter ListFilter) ([]Booking, int64, error)
}

// ListFilter narrows a booking listing. Zero values mean "any".
type ListFilter struct {
	ScheduleID  *uuid.UUID
	OwnerID     *uuid.UUID
	AgentID     *uuid.UUID
	CreatedBy   *uuid.UUID
	Channel     Channel
	Payment     PaymentStatus
	Fulfillment FulfillmentStatus
	Page        int
	Limit       int
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

func (r *repository) Create(ctx context.Context, tx *gorm.DB, booking *Booking) error {
	err := r.conn(ctx, tx).Create(booking).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateCode
	}
	return err
}

func (r *repository) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
	var count int64
	err := r.conn(ctx, tx).Model(&Booking{}).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *repository) GetByID(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.conn(ctx, tx).
		Preload("Tickets", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, seat_no ASC") }).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("booking", id.String())
		}
		return nil, err
	}
	return &booking, nil
}

// GetForUpdate locks the booking row for the rest of the transaction.
func (r *repository) GetForUpdate(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*Booking, error) {
	var booking Booking
	err := r.conn(ctx, tx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("booking", id.String())
		}
		return nil, err
	}
	if err := r.conn(ctx, tx).Where("booking_id = ?", id).Order("created_at ASC, seat_no ASC").Find(&booking.Tickets).Error; err != nil {
		return nil, fmt.Errorf("failed to load tickets: %w", err)
	}
	return &booking, nil
}

func (r *repository) GetByCode(ctx context.Context, code string) (*Booking, error) {
	var booking Booking
	err := r.db.WithContext(ctx).Preload("Tickets").Where("code = ?", code).First(&booking).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("booking", code)
		}
		return nil, err
	}
	return &booking, nil
}

func (r *repository) GetTicket(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*BookingTicket, error) {
	var ticket BookingTicket
	if err := r.conn(ctx, tx).Where("id = ?", ticketID).First(&ticket).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("ticket", ticketID.String())
		}
		return nil, err
	}
	return &ticket, nil
}

// Save writes totals, statuses and meta. Tickets are not touched.
func (r *repository) Save(ctx context.Context, tx *gorm.DB, booking *Booking) error {
	if err := booking.CheckTotals(); err != nil {
		return err
	}
	return r.conn(ctx, tx).
		Model(booking).
		Select("subtotal", "tax_total", "discount_total", "grand_total",
			"payment_status", "fulfillment_status", "finance_status", "meta", "updated_at").
		Updates(booking).Error
}

func (r *repository) DeleteTickets(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID, ticketIDs []uuid.UUID) error {
	if len(ticketIDs) == 0 {
		return nil
	}
	return r.conn(ctx, tx).
		Where("booking_id = ? AND id IN ?", bookingID, ticketIDs).
		Delete(&BookingTicket{}).Error
}

// Delete removes the booking. Tickets and seat assignments go with it via
// ON DELETE CASCADE.
func (r *repository) Delete(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	res := r.conn(ctx, tx).Where("id = ?", id).Delete(&Booking{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return apperrors.NotFound("booking", id.String())
	}
	return nil
}

func (r *repository) List(ctx context.Context, filter ListFilter) ([]Booking, int64, error) {
	var (
		list  []Booking
		total int64
	)

	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 20
	}

	query := r.db.WithContext(ctx).Model(&Booking{})
	if filter.ScheduleID != nil {
		query = query.Where("schedule_id = ?", *filter.ScheduleID)
	}
	if filter.OwnerID != nil {
		query = query.Where("owner_id = ?", *filter.OwnerID)
	}
	if filter.AgentID != nil {
		query = query.Where("agent_id = ?", *filter.AgentID)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.Channel != "" {
		query = query.Where("channel = ?", filter.Channel)
	}
	if filter.Payment != "" {
		query = query.Where("payment_status = ?", filter.Payment)
	}
	if filter.Fulfillment != "" {
		query = query.Where("fulfillment_status = ?", filter.Fulfillment)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	err := query.
		Preload("Tickets").
		Order("created_at DESC").
		Offset((filter.Page - 1) * filter.Limit).
		Limit(filter.Limit).
		Find(&list).Error
	return list, total, err
}

func CalculateTotalPages(totalCount int64, limit int) int {
	if limit <= 0 {
		return 0
	}
	return int(math.Ceil(float64(totalCount) / float64(limit)))
}
