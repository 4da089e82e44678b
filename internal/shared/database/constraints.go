package database

import (
	"fmt"

	"gorm.io/gorm"
)

var constraints = []struct {
	name string
	sql  string
}{
	{
		// superseded by uniq_occupied_seat_per_schedule
		name: "seat_assignments drop active-only index",
		sql:  `DROP INDEX IF EXISTS uniq_active_seat_per_schedule`,
	},
	{
		// one passenger per seat per schedule, boarded or not; cancelled
		// rows stay for history
		name: "seat_assignments occupied seat",
		sql: `CREATE UNIQUE INDEX IF NOT EXISTS uniq_occupied_seat_per_schedule
			ON seat_assignments (schedule_id, seat_no)
			WHERE travel_status <> 'CANCELLED'`,
	},
	{
		name: "seat_assignments ticket cascade",
		sql: `DO $$ BEGIN
			ALTER TABLE seat_assignments ADD CONSTRAINT fk_seat_assignments_ticket
				FOREIGN KEY (ticket_id) REFERENCES booking_tickets(id) ON DELETE CASCADE;
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	},
	{
		name: "seat_assignments booking cascade",
		sql: `DO $$ BEGIN
			ALTER TABLE seat_assignments ADD CONSTRAINT fk_seat_assignments_booking
				FOREIGN KEY (booking_id) REFERENCES bookings(id) ON DELETE CASCADE;
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	},
	{
		name: "bookings totals",
		sql: `DO $$ BEGIN
			ALTER TABLE bookings ADD CONSTRAINT chk_bookings_totals
				CHECK (grand_total = subtotal + tax_total - discount_total);
		EXCEPTION WHEN duplicate_object THEN NULL; END $$`,
	},
	{
		name: "commission entries by booking",
		sql: `CREATE INDEX IF NOT EXISTS idx_commission_entries_booking_party
			ON commission_entries (booking_id, party)`,
	},
}

// MigrateConstraints adds what AutoMigrate cannot express. Every statement
// is idempotent.
func MigrateConstraints(db *gorm.DB) error {
	for _, c := range constraints {
		if err := db.Exec(c.sql).Error; err != nil {
			return fmt.Errorf("constraint %q: %w", c.name, err)
		}
	}
	return nil
}
