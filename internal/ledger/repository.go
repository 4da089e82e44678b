package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Repository interface {
	CreateTransaction(ctx context.Context, tx *gorm.DB, txn *PaymentTransaction) error
	LockParty(ctx context.Context, tx *gorm.DB, party Party, partyID *uuid.UUID) error
	LastBalance(ctx context.Context, tx *gorm.DB, party Party, partyID *uuid.UUID) (decimal.Decimal, error)
	Append(ctx context.Context, tx *gorm.DB, entry *CommissionEntry) error
	EntriesForBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]CommissionEntry, error)
	ActiveSettings(ctx context.Context, tx *gorm.DB) (*PlatformSettings, error)
	ReplaceSettings(ctx context.Context, settings *PlatformSettings) error
	ListEntries(ctx context.Context, filter EntryFilter) ([]CommissionEntry, int64, error)
	NetBefore(ctx context.Context, party Party, partyID *uuid.UUID, before *time.Time) (decimal.Decimal, error)
	Totals(ctx context.Context, party Party, partyID *uuid.UUID, from, to time.Time) (credits, debits decimal.Decimal, count int64, err error)
}

type repository struct {
	db       *gorm.DB
	defaults PlatformSettings
}

// NewRepository takes the settings used when no active record exists yet.
func NewRepository(db *gorm.DB, defaults PlatformSettings) Repository {
	return &repository{db: db, defaults: defaults}
}

func (r *repository) conn(ctx context.Context, tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx.WithContext(ctx)
	}
	return r.db.WithContext(ctx)
}

func partyScope(db *gorm.DB, party Party, partyID *uuid.UUID) *gorm.DB {
	db = db.Where("party = ?", party)
	if partyID == nil {
		return db.Where("party_id IS NULL")
	}
	return db.Where("party_id = ?", *partyID)
}

func (r *repository) CreateTransaction(ctx context.Context, tx *gorm.DB, txn *PaymentTransaction) error {
	return r.conn(ctx, tx).Create(txn).Error
}

// LockParty takes a transaction-scoped advisory lock so lookback and append
// for one party never interleave.
func (r *repository) LockParty(ctx context.Context, tx *gorm.DB, party Party, partyID *uuid.UUID) error {
	return r.conn(ctx, tx).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", lockKey(party, partyID)).Error
}

func lockKey(party Party, partyID *uuid.UUID) string {
	if partyID == nil {
		return "ledger:" + string(party)
	}
	return "ledger:" + string(party) + ":" + partyID.String()
}

// LastBalance is the running balance of the newest entry for the party, or zero.
func (r *repository) LastBalance(ctx context.Context, tx *gorm.DB, party Party, partyID *uuid.UUID) (decimal.Decimal, error) {
	var last CommissionEntry
	err := partyScope(r.conn(ctx, tx).Model(&CommissionEntry{}), party, partyID).
		Order("id DESC").
		Limit(1).
		Take(&last).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, err
	}
	return last.RunningBalance, nil
}

func (r *repository) Append(ctx context.Context, tx *gorm.DB, entry *CommissionEntry) error {
	return r.conn(ctx, tx).Create(entry).Error
}

func (r *repository) EntriesForBooking(ctx context.Context, tx *gorm.DB, bookingID uuid.UUID) ([]CommissionEntry, error) {
	var list []CommissionEntry
	err := r.conn(ctx, tx).Where("booking_id = ?", bookingID).Order("id ASC").Find(&list).Error
	return list, err
}

// ActiveSettings returns the active record, creating one from the defaults
// the first time it is asked for.
func (r *repository) ActiveSettings(ctx context.Context, tx *gorm.DB) (*PlatformSettings, error) {
	db := r.conn(ctx, tx)
	var settings PlatformSettings
	err := db.Where("active = ?", true).Order("created_at DESC").Take(&settings).Error
	if err == nil {
		return &settings, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	if err := db.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", "ledger:settings").Error; err != nil {
		return nil, err
	}
	// another transaction may have created it while we waited
	if err := db.Where("active = ?", true).Take(&settings).Error; err == nil {
		return &settings, nil
	}

	settings = r.defaults
	settings.ID = uuid.Nil
	settings.Active = true
	if err := db.Create(&settings).Error; err != nil {
		return nil, err
	}
	return &settings, nil
}

// ReplaceSettings deactivates the current record and inserts a new one.
func (r *repository) ReplaceSettings(ctx context.Context, settings *PlatformSettings) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&PlatformSettings{}).Where("active = ?", true).Update("active", false).Error; err != nil {
			return err
		}
		settings.Active = true
		return tx.Create(settings).Error
	})
}

func (r *repository) ListEntries(ctx context.Context, filter EntryFilter) ([]CommissionEntry, int64, error) {
	var (
		list  []CommissionEntry
		total int64
	)
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.Limit <= 0 {
		filter.Limit = 50
	}

	query := r.db.WithContext(ctx).Model(&CommissionEntry{})
	if filter.Party != "" {
		query = partyScope(query, filter.Party, filter.PartyID)
	}
	if filter.BookingID != nil {
		query = query.Where("booking_id = ?", *filter.BookingID)
	}
	if filter.From != nil {
		query = query.Where("entry_date >= ?", *filter.From)
	}
	if filter.To != nil {
		query = query.Where("entry_date < ?", *filter.To)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := query.Order("id DESC").Offset((filter.Page - 1) * filter.Limit).Limit(filter.Limit).Find(&list).Error
	return list, total, err
}

// NetBefore sums credits minus debits for the party, optionally only for
// entries dated before the given time.
func (r *repository) NetBefore(ctx context.Context, party Party, partyID *uuid.UUID, before *time.Time) (decimal.Decimal, error) {
	var net decimal.NullDecimal
	query := partyScope(r.db.WithContext(ctx).Model(&CommissionEntry{}), party, partyID)
	if before != nil {
		query = query.Where("entry_date < ?", *before)
	}
	err := query.
		Select("COALESCE(SUM(CASE WHEN entry_type = ? THEN amount ELSE -amount END), 0)", EntryCredit).
		Scan(&net).Error
	if err != nil {
		return decimal.Zero, err
	}
	return net.Decimal, nil
}

func (r *repository) Totals(ctx context.Context, party Party, partyID *uuid.UUID, from, to time.Time) (decimal.Decimal, decimal.Decimal, int64, error) {
	var row struct {
		Credits decimal.NullDecimal
		Debits  decimal.NullDecimal
		Count   int64
	}
	err := partyScope(r.db.WithContext(ctx).Model(&CommissionEntry{}), party, partyID).
		Where("entry_date >= ? AND entry_date < ?", from, to).
		Select(
			"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount END), 0) AS credits, "+
				"COALESCE(SUM(CASE WHEN entry_type = ? THEN amount END), 0) AS debits, "+
				"COUNT(*) AS count",
			EntryCredit, EntryDebit).
		Scan(&row).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, 0, err
	}
	return row.Credits.Decimal, row.Debits.Decimal, row.Count, nil
}
