// api/routes/router.go
package routes

import (
	"fmt"
	"net/http"
	"time"

	"ferryline/internal/agents"
	"ferryline/internal/auth"
	"ferryline/internal/boats"
	"ferryline/internal/bookings"
	"ferryline/internal/cancellation"
	"ferryline/internal/catalog"
	"ferryline/internal/drafts"
	"ferryline/internal/gateway"
	"ferryline/internal/ledger"
	"ferryline/internal/notifications"
	"ferryline/internal/orchestrator"
	"ferryline/internal/schedules"
	"ferryline/internal/seats"
	"ferryline/internal/shared/config"
	"ferryline/internal/shared/database"
	"ferryline/internal/shared/middleware"
	"ferryline/internal/transferverify"
	"ferryline/pkg/cache"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
)

// Router holds all route dependencies
type Router struct {
	config   *config.Config
	db       *database.DB
	notifier notifications.Notifier

	auth         *auth.Controller
	authResolver middleware.SessionResolver
	boats        boats.Controller
	schedules    schedules.Controller
	catalog      catalog.Controller
	seats        seats.Controller
	bookings     bookings.Controller
	agents       agents.Controller
	ledger       ledger.Controller
	cancellation *cancellation.Controller
	engine       orchestrator.Controller
	drafts       drafts.Controller
}

// NewRouter builds every module once. The three adapters share the same
// services and differ only in how they resolve the actor.
func NewRouter(cfg *config.Config, db *database.DB, notifier notifications.Notifier) (*Router, error) {
	r := &Router{config: cfg, db: db, notifier: notifier}
	if err := r.build(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Router) build() error {
	cfg := r.config
	pg := r.db.PostgreSQL
	cacheService := cache.NewService(r.db.Redis)

	location, err := time.LoadLocation(cfg.Booking.Timezone)
	if err != nil {
		return fmt.Errorf("invalid booking timezone %q: %w", cfg.Booking.Timezone, err)
	}
	commission, err := decimal.NewFromString(cfg.Booking.DefaultCommission)
	if err != nil {
		return fmt.Errorf("invalid default commission %q: %w", cfg.Booking.DefaultCommission, err)
	}
	discount, err := decimal.NewFromString(cfg.Booking.OwnerDiscountRate)
	if err != nil {
		return fmt.Errorf("invalid owner discount rate %q: %w", cfg.Booking.OwnerDiscountRate, err)
	}
	node, err := snowflake.NewNode(cfg.Booking.SnowflakeNode)
	if err != nil {
		return fmt.Errorf("failed to create snowflake node: %w", err)
	}

	// Auth
	authService := auth.NewService(auth.NewRepository(pg), cfg, cacheService)
	r.auth = auth.NewController(authService, cfg.Session)
	r.authResolver = authService

	// Fleet and agent links
	boatService := boats.NewService(boats.NewRepository(pg), cacheService)
	agentService := agents.NewService(agents.NewRepository(pg), cfg.Booking.Currency)

	// Schedules and catalog; catalog only needs schedule ownership, which
	// the repository answers without the schedule service.
	scheduleRepo := schedules.NewRepository(pg)
	catalogService := catalog.NewService(catalog.NewRepository(pg), scheduleRepo, cacheService, cfg.Booking.Currency)
	scheduleService := schedules.NewService(scheduleRepo, boatService, agentService, catalogService, cacheService, location)

	// Seats
	seatService := seats.NewService(pg, seats.NewRepository(pg), scheduleRepo, boatService,
		seats.NewHoldStore(r.db.Redis), cacheService, cfg.Redis.SeatHoldTTL)

	// Bookings read side
	bookingRepo := bookings.NewRepository(pg)
	bookingService := bookings.NewService(bookingRepo, scheduleRepo)

	// Ledger
	ledgerService := ledger.NewService(ledger.NewRepository(pg, ledger.PlatformSettings{
		CommissionPerBooking: commission,
		Currency:             cfg.Booking.Currency,
		RetainFeeOnRefund:    true,
		Active:               true,
	}), agentService, node)

	cancellationService := cancellation.NewService(cancellation.NewRepository(pg))

	// Booking engine
	engineService := orchestrator.NewService(orchestrator.Dependencies{
		DB:            pg,
		Bookings:      bookingRepo,
		Schedules:     scheduleRepo,
		Listings:      scheduleService,
		Catalog:       catalogService,
		Seats:         seatService,
		Ledger:        ledgerService,
		Agents:        agentService,
		Cancellations: cancellationService,
		Notifier:      r.notifier,
		Gateway:       gateway.NewClient(cfg.Gateway),
		Transfers:     transferverify.NewFromConfig(cfg.Transfer),
	}, orchestrator.Options{
		Currency:            cfg.Booking.Currency,
		DefaultBoardingTime: cfg.Booking.DefaultBoardingTime,
		OwnerDiscountRate:   discount,
		Location:            location,
	})

	r.boats = boats.NewController(boatService)
	r.schedules = schedules.NewController(scheduleService)
	r.catalog = catalog.NewController(catalogService)
	r.seats = seats.NewController(seatService)
	r.bookings = bookings.NewController(bookingService)
	r.agents = agents.NewController(agentService)
	r.ledger = ledger.NewController(ledgerService)
	r.cancellation = cancellation.NewController(cancellationService)
	r.engine = orchestrator.NewController(engineService)
	r.drafts = drafts.NewController(drafts.NewService(cacheService, engineService, cfg.Redis.DraftTTL))
	return nil
}

// SetupRoutes configures all application routes
func (r *Router) SetupRoutes(engine *gin.Engine) {
	r.setupHealthRoutes(engine)

	// Bearer tokens: agents, owners and staff tooling
	api := engine.Group(r.config.GetAPIBasePath())
	auth.NewRouter(r.auth).SetupRoutes(api, middleware.JWTAuthWithConfig(r.config))
	api.Use(middleware.OptionalAuthWithConfig(r.config))
	r.mountAll(api)

	// Cookie sessions: the browser booking flow
	web := engine.Group("/web")
	auth.NewRouter(r.auth).SetupRoutes(web, middleware.SessionAuth(r.config.Session.CookieName, r.authResolver))
	web.Use(middleware.SessionAuth(r.config.Session.CookieName, r.authResolver))
	r.mountAll(web)

	// Anonymous sale surface
	public := engine.Group("/public")
	public.Use(middleware.PublicAccess())
	{
		schedules.SetupScheduleRoutes(public, r.schedules)
		r.publicCatalogRoutes(public)
		orchestrator.SetupSaleRoutes(public, r.engine)
		public.POST("/schedules/:id/holds", r.seats.HoldSeats)
		public.DELETE("/holds/:holdId", r.seats.ReleaseHold)
		public.GET("/bookings/code/:code", r.bookings.GetBookingByCode)
	}
}

// mountAll registers every module on an authenticated adapter group.
func (r *Router) mountAll(rg *gin.RouterGroup) {
	boats.SetupBoatRoutes(rg, r.boats)
	schedules.SetupScheduleRoutes(rg, r.schedules)
	catalog.SetupCatalogRoutes(rg, r.catalog)
	seats.SetupSeatRoutes(rg, r.seats)
	bookings.SetupBookingRoutes(rg, r.bookings)
	orchestrator.SetupBookingEngineRoutes(rg, r.engine)
	drafts.SetupDraftRoutes(rg, r.drafts)
	agents.SetupConnectionRoutes(rg, r.agents)
	ledger.SetupLedgerRoutes(rg, r.ledger)
	cancellation.SetupCancellationRoutes(rg, r.cancellation)
}

func (r *Router) publicCatalogRoutes(rg *gin.RouterGroup) {
	rg.GET("/schedules/:id/ticket-types", r.catalog.ListScheduleTicketTypes)
}

// setupHealthRoutes sets up health check and system status routes
func (r *Router) setupHealthRoutes(engine *gin.Engine) {
	engine.GET("/health", func(c *gin.Context) {
		if err := r.db.HealthCheck(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status":    "unhealthy",
				"error":     err.Error(),
				"timestamp": time.Now(),
				"service":   "ferryline",
			})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"timestamp": time.Now(),
			"service":   "ferryline",
		})
	})

	engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
			"version": r.config.APIVersion,
		})
	})

	engine.GET("/status", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":      "operational",
			"api_version": r.config.APIVersion,
			"timezone":    r.config.Booking.Timezone,
			"timestamp":   time.Now(),
		})
	})
}
