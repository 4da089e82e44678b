package seats

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
	ListOccupying(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]SeatAssignment, error)
	ListByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]SeatAssignment, error)
	Create(ctx context.Context, tx *gorm.DB, assignments []SeatAssignment) error
	DeleteActive(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNos []string) (int64, error)
	GetByTicketForUpdate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*SeatAssignment, error)
	MarkTravelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, by *uuid.UUID, at time.Time) error
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

// ListOccupying returns the assignments that hold a seat: ACTIVE and
// TRAVELLED.
func (r *repository) ListOccupying(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID) ([]SeatAssignment, error) {
	var list []SeatAssignment
	err := r.conn(ctx, tx).
		Where("schedule_id = ? AND travel_status IN ?", scheduleID, []TravelStatus{TravelActive, TravelTravelled}).
		Order("seat_no ASC").
		Find(&list).Error
	return list, err
}

func (r *repository) ListByBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]SeatAssignment, error) {
	var list []SeatAssignment
	err := r.conn(ctx, tx).Where("booking_id = ?", bookingID).Order("seat_no ASC").Find(&list).Error
	return list, err
}

// Create inserts the assignments. Losing a race on the partial unique index
// comes back as a SeatConflict naming the requested seats.
func (r *repository) Create(ctx context.Context, tx *gorm.DB, assignments []SeatAssignment) error {
	if len(assignments) == 0 {
		return nil
	}
	err := r.conn(ctx, tx).Create(&assignments).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		seats := make([]string, 0, len(assignments))
		for _, a := range assignments {
			seats = append(seats, a.SeatNo)
		}
		return apperrors.SeatConflict(seats...)
	}
	return err
}

func (r *repository) DeleteActive(ctx context.Context, tx *gorm.DB, scheduleID uuid.UUID, seatNos []string) (int64, error) {
	if len(seatNos) == 0 {
		return 0, nil
	}
	res := r.conn(ctx, tx).
		Where("schedule_id = ? AND seat_no IN ? AND travel_status = ?", scheduleID, seatNos, TravelActive).
		Delete(&SeatAssignment{})
	return res.RowsAffected, res.Error
}

func (r *repository) GetByTicketForUpdate(ctx context.Context, tx *gorm.DB, ticketID uuid.UUID) (*SeatAssignment, error) {
	var a SeatAssignment
	err := r.conn(ctx, tx).Clauses(clause.Locking{Strength: "UPDATE"}).Where("ticket_id = ?", ticketID).First(&a).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.NotFound("seat assignment", ticketID.String())
		}
		return nil, err
	}
	return &a, nil
}

func (r *repository) MarkTravelled(ctx context.Context, tx *gorm.DB, id uuid.UUID, by *uuid.UUID, at time.Time) error {
	return r.conn(ctx, tx).Model(&SeatAssignment{}).
		Where("id = ? AND travel_status = ?", id, TravelActive).
		Updates(map[string]interface{}{
			"travel_status": TravelTravelled,
			"travelled_at":  at,
			"travelled_by":  by,
		}).Error
}
