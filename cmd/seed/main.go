package main

import (
	"context"
	"fmt"
	"log"
	"time"

	"ferryline/internal/agents"
	"ferryline/internal/boats"
	"ferryline/internal/catalog"
	"ferryline/internal/ledger"
	"ferryline/internal/pricing"
	"ferryline/internal/schedules"
	"ferryline/internal/shared/config"
	"ferryline/internal/shared/database"
	"ferryline/internal/users"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Seeder struct {
	db  *database.DB
	cfg *config.Config
}

func main() {
	fmt.Println("Starting Ferryline database seeder...")
	_ = godotenv.Load()

	cfg := config.Load()

	db, err := database.InitDB(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer db.Close()

	seeder := &Seeder{db: db, cfg: cfg}

	fmt.Println("\nCleaning database...")
	if err := seeder.CleanDatabase(); err != nil {
		log.Fatalf("Failed to clean database: %v", err)
	}

	fmt.Println("\nSeeding database...")
	if err := seeder.SeedAll(); err != nil {
		log.Fatalf("Failed to seed database: %v", err)
	}

	fmt.Println("\nSeeding completed. Demo password for every account: qwerty")
}

// CleanDatabase truncates every table, dependents first.
func (s *Seeder) CleanDatabase() error {
	models := database.Models()
	stmt := &gorm.Statement{DB: s.db.PostgreSQL}

	return s.db.PostgreSQL.Transaction(func(tx *gorm.DB) error {
		for i := len(models) - 1; i >= 0; i-- {
			if err := stmt.Parse(models[i]); err != nil {
				return fmt.Errorf("failed to parse model: %w", err)
			}
			table := stmt.Schema.Table
			fmt.Printf("  Truncating table: %s\n", table)
			if err := tx.Exec(fmt.Sprintf("TRUNCATE TABLE %s RESTART IDENTITY CASCADE", table)).Error; err != nil {
				return fmt.Errorf("failed to truncate table %s: %w", table, err)
			}
		}
		return nil
	})
}

// SeedAll creates one owner with a published two-stop schedule, an approved
// agent, a staff member, an admin and the platform settings row.
func (s *Seeder) SeedAll() error {
	ctx := context.Background()

	userIDs, err := s.SeedUsers()
	if err != nil {
		return fmt.Errorf("failed to seed users: %w", err)
	}

	if err := s.SeedPlatformSettings(); err != nil {
		return fmt.Errorf("failed to seed platform settings: %w", err)
	}

	boatID, err := s.SeedBoat(userIDs["owner"])
	if err != nil {
		return fmt.Errorf("failed to seed boat: %w", err)
	}

	taxProfileID, err := s.SeedTaxProfile(userIDs["owner"])
	if err != nil {
		return fmt.Errorf("failed to seed tax profile: %w", err)
	}

	scheduleIDs, err := s.SeedSchedules(userIDs["owner"], boatID, taxProfileID)
	if err != nil {
		return fmt.Errorf("failed to seed schedules: %w", err)
	}

	if err := s.SeedCatalog(userIDs["owner"], scheduleIDs); err != nil {
		return fmt.Errorf("failed to seed catalog: %w", err)
	}

	if err := s.SeedConnection(userIDs["owner"], userIDs["agent"]); err != nil {
		return fmt.Errorf("failed to seed agent connection: %w", err)
	}

	if err := s.db.Redis.FlushDB(ctx).Err(); err != nil {
		log.Printf("Warning: Failed to clear Redis cache: %v", err)
	}
	return nil
}

func (s *Seeder) SeedUsers() (map[string]uuid.UUID, error) {
	fmt.Println("  Seeding users...")

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("qwerty"), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	ownerID := uuid.New()
	usersData := []struct {
		key    string
		id     uuid.UUID
		name   string
		phone  string
		role   users.Role
		owner  *uuid.UUID
		agency string
	}{
		{"admin", uuid.New(), "Platform Admin", "+9607000001", users.RoleAdmin, nil, ""},
		{"owner", ownerID, "Atoll Express", "+9607000002", users.RoleOwner, nil, ""},
		{"staff", uuid.New(), "Harbour Desk", "+9607000003", users.RoleStaff, &ownerID, ""},
		{"agent", uuid.New(), "Reef Travels", "+9607000004", users.RoleAgent, nil, "Reef Travels Pvt Ltd"},
		{"public", uuid.New(), "Aishath Ali", "+9607000005", users.RolePublic, nil, ""},
	}

	userIDs := make(map[string]uuid.UUID, len(usersData))
	for _, u := range usersData {
		user := users.User{
			ID:         u.id,
			Name:       u.name,
			Phone:      u.phone,
			Password:   string(hashedPassword),
			Role:       u.role,
			OwnerID:    u.owner,
			AgencyName: u.agency,
			IsActive:   true,
		}
		if err := s.db.PostgreSQL.Create(&user).Error; err != nil {
			return nil, fmt.Errorf("failed to create user %s: %w", u.phone, err)
		}
		userIDs[u.key] = user.ID
		fmt.Printf("    Created user: %s (%s)\n", user.Phone, user.Role)
	}
	return userIDs, nil
}

func (s *Seeder) SeedPlatformSettings() error {
	fmt.Println("  Seeding platform settings...")

	commission, err := decimal.NewFromString(s.cfg.Booking.DefaultCommission)
	if err != nil {
		return fmt.Errorf("invalid default commission: %w", err)
	}
	settings := ledger.PlatformSettings{
		CommissionPerBooking: commission,
		Currency:             s.cfg.Booking.Currency,
		RetainFeeOnRefund:    true,
		Active:               true,
	}
	return s.db.PostgreSQL.Create(&settings).Error
}

func (s *Seeder) SeedBoat(ownerID uuid.UUID) (uuid.UUID, error) {
	fmt.Println("  Seeding boat...")

	boat := boats.Boat{
		OwnerID:     ownerID,
		Name:        "Blue Marlin",
		SeatingType: boats.SeatingChart,
		Rows:        6,
		SeatsPerRow: 4,
		TotalSeats:  22,
		Excluded:    datatypes.JSONSlice[string]{"A1", "A4"},
		IsActive:    true,
	}
	if err := s.db.PostgreSQL.Create(&boat).Error; err != nil {
		return uuid.Nil, err
	}
	return boat.ID, nil
}

func (s *Seeder) SeedTaxProfile(ownerID uuid.UUID) (uuid.UUID, error) {
	fmt.Println("  Seeding tax profile...")

	profile := catalog.TaxProfile{
		OwnerID: ownerID,
		Name:    "GST 8%",
		Lines: datatypes.JSONSlice[pricing.TaxLine]{{
			Name:      "GST",
			Type:      pricing.LineTypePercent,
			Value:     decimal.NewFromInt(8),
			AppliesTo: pricing.AppliesToFare,
			Active:    true,
		}},
		Rounding: pricing.RoundUp,
		Active:   true,
	}
	if err := s.db.PostgreSQL.Create(&profile).Error; err != nil {
		return uuid.Nil, err
	}
	return profile.ID, nil
}

func (s *Seeder) SeedSchedules(ownerID, boatID, taxProfileID uuid.UUID) ([]uuid.UUID, error) {
	fmt.Println("  Seeding schedules...")

	location, err := time.LoadLocation(s.cfg.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone: %w", err)
	}
	today := time.Now().In(location)

	var ids []uuid.UUID
	for day := 1; day <= 3; day++ {
		date := time.Date(today.Year(), today.Month(), today.Day()+day, 0, 0, 0, 0, time.UTC)
		schedule := schedules.Schedule{
			OwnerID:             ownerID,
			BoatID:              boatID,
			Name:                fmt.Sprintf("Male - Maafushi %s", date.Format("02 Jan")),
			Date:                date,
			TotalSeats:          22,
			AvailableSeats:      22,
			Confirmation:        schedules.ConfirmImmediate,
			IsPublic:            true,
			Status:              schedules.StatusPublished,
			TaxProfileID:        &taxProfileID,
			DefaultBoardingTime: "07:30",
			CreatedBy:           ownerID,
			Destinations: []schedules.ScheduleDestination{
				{Sequence: 1, IslandName: "Male", DepartureTime: strPtr("08:00"), IsPickup: true},
				{Sequence: 2, IslandName: "Gulhi", DepartureTime: strPtr("09:00"), ArrivalTime: strPtr("08:50"), IsPickup: true, IsDropoff: true},
				{Sequence: 3, IslandName: "Maafushi", ArrivalTime: strPtr("09:30"), IsDropoff: true},
			},
		}
		if err := s.db.PostgreSQL.Create(&schedule).Error; err != nil {
			return nil, err
		}
		ids = append(ids, schedule.ID)
		fmt.Printf("    Created schedule: %s\n", schedule.Name)
	}
	return ids, nil
}

func (s *Seeder) SeedCatalog(ownerID uuid.UUID, scheduleIDs []uuid.UUID) error {
	fmt.Println("  Seeding ticket types...")

	types := []struct {
		ticket catalog.TicketType
		scope  catalog.ChannelScope
	}{
		{catalog.TicketType{OwnerID: ownerID, Name: "Adult", Code: "ADT", BasePrice: decimal.NewFromInt(100), Currency: s.cfg.Booking.Currency, Refundable: true, Active: true}, catalog.ScopeBoth},
		{catalog.TicketType{OwnerID: ownerID, Name: "Child", Code: "CHD", BasePrice: decimal.NewFromInt(50), Currency: s.cfg.Booking.Currency, Refundable: true, Active: true}, catalog.ScopeBoth},
		{catalog.TicketType{OwnerID: ownerID, Name: "Agent Net", Code: "NET", BasePrice: decimal.NewFromInt(85), Currency: s.cfg.Booking.Currency, Active: true}, catalog.ScopeAgent},
	}

	for _, t := range types {
		ticket := t.ticket
		if err := s.db.PostgreSQL.Create(&ticket).Error; err != nil {
			return fmt.Errorf("failed to create ticket type %s: %w", ticket.Code, err)
		}
		for _, scheduleID := range scheduleIDs {
			link := catalog.ScheduleTicketType{
				ScheduleID:   scheduleID,
				TicketTypeID: ticket.ID,
				Surcharge:    decimal.Zero,
				Discount:     decimal.Zero,
				Channel:      t.scope,
				Active:       true,
			}
			if err := s.db.PostgreSQL.Create(&link).Error; err != nil {
				return fmt.Errorf("failed to enable ticket type %s: %w", ticket.Code, err)
			}
		}
	}
	return nil
}

func (s *Seeder) SeedConnection(ownerID, agentID uuid.UUID) error {
	fmt.Println("  Seeding agent connection...")

	now := time.Now()
	conn := agents.Connection{
		OwnerID:        ownerID,
		AgentID:        agentID,
		Currency:       s.cfg.Booking.Currency,
		CreditLimit:    decimal.NewFromInt(5000),
		CurrentBalance: decimal.Zero,
		Status:         agents.StatusApproved,
		RequestedBy:    ownerID,
		DecidedAt:      &now,
	}
	return s.db.PostgreSQL.Create(&conn).Error
}

func strPtr(s string) *string { return &s }
