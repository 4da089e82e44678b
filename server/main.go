package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"ferryline/api/routes"
	"ferryline/internal/notifications"
	"ferryline/internal/shared/config"
	"ferryline/internal/shared/database"
	"ferryline/internal/sms"
	"ferryline/pkg/logger"
	"ferryline/pkg/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	appLogger := logger.GetDefault()

	if err := godotenv.Load(); err != nil {
		if os.Getenv("GIN_MODE") == "release" || os.Getenv("DOCKER_CONTAINER") == "true" {
			appLogger.Info("Production environment: using container environment variables")
		} else {
			appLogger.Info("No .env file found, using system environment variables")
		}
	} else {
		appLogger.Info("Development environment: loaded .env file")
	}

	cfg := config.Load()
	gin.SetMode(cfg.GinMode)

	db, err := database.InitDB(cfg)
	if err != nil {
		appLogger.Error("failed to connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer db.Close()

	rateLimiter := ratelimit.NewRateLimiter(db.Redis, ratelimit.ConfigFrom(cfg.RateLimit))
	appLogger.Info("Rate limiter initialized",
		slog.Bool("enabled", cfg.RateLimit.Enabled),
		slog.Duration("window", cfg.RateLimit.WindowDuration),
		slog.Int("booking_critical_requests", cfg.RateLimit.BookingCriticalRequests),
	)

	// Booking events. A broken transport downgrades to log-only delivery
	// rather than blocking sales.
	notificationCtx, notificationCancel := context.WithCancel(context.Background())
	defer notificationCancel()

	notificationService, err := notifications.NewService(cfg, sms.NewSender(cfg.SMS))
	if err != nil {
		appLogger.Error("Failed to initialize notification service", slog.Any("error", err))
		notificationService = notifications.NewServiceWithPublisher(notifications.NoopPublisher{})
	}
	if err := notificationService.Start(notificationCtx); err != nil {
		appLogger.Error("Failed to start notification consumers", slog.Any("error", err))
	} else {
		appLogger.Info("Notification service started",
			slog.String("transport", cfg.Notifications.Transport),
			slog.Int("workers", cfg.Notifications.NumWorkers),
		)
	}

	router, err := setupRouter(cfg, db, rateLimiter, notificationService)
	if err != nil {
		appLogger.Error("Failed to build router", slog.Any("error", err))
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:           cfg.GetServerAddress(),
		Handler:        router,
		ReadTimeout:    cfg.ReadTimeout,
		WriteTimeout:   cfg.WriteTimeout,
		IdleTimeout:    cfg.IdleTimeout,
		MaxHeaderBytes: cfg.MaxHeaderBytes,
	}

	go func() {
		appLogger.Info("Server running",
			slog.String("address", cfg.GetServerAddress()),
			slog.String("health_check", fmt.Sprintf("http://localhost:%s/health", cfg.Port)),
			slog.String("api_base", cfg.GetAPIBasePath()),
			slog.String("version", Version),
			slog.String("commit", GitCommit),
			slog.Bool("rate_limiting", cfg.RateLimit.Enabled),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed", slog.Any("error", err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	appLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Forced shutdown", slog.Any("error", err))
	}

	// after the HTTP server so in-flight bookings still get their events out
	appLogger.Info("Stopping notification service...")
	if err := notificationService.Stop(); err != nil {
		appLogger.Error("Error stopping notification service", slog.Any("error", err))
	}

	appLogger.Info("Server exited gracefully")
}

func setupRouter(cfg *config.Config, db *database.DB, rateLimiter *ratelimit.RateLimiter, notifier notifications.Notifier) (*gin.Engine, error) {
	engine := gin.New()
	appLogger := logger.GetDefault()

	engine.Use(RequestLoggerMiddleware(appLogger), gin.Recovery())

	engine.Use(cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Length", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-RateLimit-Reset"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	engine.Use(ratelimit.Middleware(rateLimiter))

	appRouter, err := routes.NewRouter(cfg, db, notifier)
	if err != nil {
		return nil, err
	}
	appRouter.SetupRoutes(engine)

	return engine, nil
}

func RequestLoggerMiddleware(l *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		l.LogHTTPRequest(c, time.Since(start))
	}
}
