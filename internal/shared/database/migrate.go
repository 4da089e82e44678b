package database

import (
	"fmt"

	"ferryline/internal/agents"
	"ferryline/internal/boats"
	"ferryline/internal/bookings"
	"ferryline/internal/cancellation"
	"ferryline/internal/catalog"
	"ferryline/internal/ledger"
	"ferryline/internal/schedules"
	"ferryline/internal/seats"
	"ferryline/internal/users"

	"gorm.io/gorm"
)

// Models lists every table in creation order.
func Models() []interface{} {
	return []interface{}{
		&users.User{},
		&boats.Boat{},
		&schedules.Schedule{},
		&schedules.ScheduleDestination{},
		&schedules.BlockedSeat{},
		&catalog.TicketType{},
		&catalog.TaxProfile{},
		&catalog.ScheduleTicketType{},
		&agents.Connection{},
		&bookings.Booking{},
		&bookings.BookingTicket{},
		&seats.SeatAssignment{},
		&ledger.PlatformSettings{},
		&ledger.PaymentTransaction{},
		&ledger.CommissionEntry{},
		&cancellation.Record{},
	}
}

func Migrate(db *gorm.DB) error {
	if err := db.Exec(`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`).Error; err != nil {
		return fmt.Errorf("failed to enable uuid-ossp: %w", err)
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return err
	}
	return MigrateConstraints(db)
}
