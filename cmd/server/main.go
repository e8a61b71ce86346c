package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/cleanmatch/service-booking/internal/application"
	"github.com/cleanmatch/service-booking/internal/config"
	bookingEvents "github.com/cleanmatch/service-booking/internal/events"
	"github.com/cleanmatch/service-booking/internal/gateway"
	"github.com/cleanmatch/service-booking/internal/handler"
	"github.com/cleanmatch/service-booking/internal/platform/auth"
	"github.com/cleanmatch/service-booking/internal/platform/database"
	"github.com/cleanmatch/service-booking/internal/platform/health"
	"github.com/cleanmatch/service-booking/internal/platform/kafka"
	"github.com/cleanmatch/service-booking/internal/platform/lock"
	"github.com/cleanmatch/service-booking/internal/platform/logger"
	"github.com/cleanmatch/service-booking/internal/platform/middleware"
	"github.com/cleanmatch/service-booking/internal/repository"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log, err := logger.NewNamed(cfg.AppEnv, "service-booking")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log.Info("starting service-booking",
		zap.String("port", cfg.Port),
		zap.String("rating_strategy", cfg.RatingStrategy),
	)

	// Connect to database
	dbConfig := database.PostgresConfig{
		Host:     cfg.DBConfig.Host,
		Port:     cfg.DBConfig.Port,
		User:     cfg.DBConfig.User,
		Password: cfg.DBConfig.Password,
		DBName:   cfg.DBConfig.DBName,
		SSLMode:  cfg.DBConfig.SSLMode,
	}
	db, err := database.Connect(dbConfig, log)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}

	// Run database migrations
	if cfg.AppEnv == "development" {
		if err := db.AutoMigrate(
			&repository.BookingModel{},
			&repository.HostModel{},
			&repository.CleanerModel{},
			&repository.ListingModel{},
			&repository.ListingApplicationModel{},
			&repository.CommitmentModel{},
			&repository.InvoiceModel{},
			&repository.PhotoModel{},
		); err != nil {
			log.Fatal("failed to run auto-migration", zap.Error(err))
		}
		log.Info("database migration completed (dev auto-migrate)")
	} else {
		if err := database.RunMigrations(dbConfig.DatabaseURL(), cfg.MigrationsDir, log); err != nil {
			log.Fatal("failed to run migrations", zap.Error(err))
		}
	}

	// Connect to Redis for per-booking locks
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.Addr,
		Password: cfg.RedisConfig.Password,
		DB:       cfg.RedisConfig.DB,
	})
	defer func() { _ = redisClient.Close() }()
	locker := lock.NewRedisLocker(redisClient)

	// Initialize JWT manager
	jwtManager := auth.NewJWTManager(
		cfg.JWTConfig.Secret,
		15*time.Minute,
		7*24*time.Hour,
	)

	// Initialize Kafka producer
	kafkaProducer := kafka.NewProducer(cfg.KafkaConfig.Brokers, log)
	defer func() { _ = kafkaProducer.Close() }()

	// Initialize repositories
	bookingRepo := repository.NewGormBookingRepository(db)
	listingRepo := repository.NewGormListingRepository(db)
	profileRepo := repository.NewGormProfileRepository(db)
	invoiceRepo := repository.NewGormInvoiceRepository(db)
	photoRepo := repository.NewGormPhotoRepository(db)
	ledger := repository.NewGormAvailabilityLedger(db)

	ratings, err := application.NewRatingAggregator(cfg.RatingStrategy, bookingRepo, profileRepo)
	if err != nil {
		log.Fatal("invalid rating strategy", zap.Error(err))
	}

	// Initialize application services
	bookingService := application.NewBookingService(application.BookingServiceDeps{
		Bookings: bookingRepo,
		Listings: listingRepo,
		Profiles: profileRepo,
		Invoices: invoiceRepo,
		Photos:   photoRepo,
		Ledger:   ledger,
		Payments: gateway.NewPaymentClient(cfg.PaymentConfig, log.Named("payment")),
		Notifier: bookingEvents.NewNotificationPublisher(kafkaProducer, log),
		Ratings:  ratings,
		Tx:       database.NewGormTransactor(db),
		Locker:   locker,
		LockTTL:  cfg.LockTTL,
		Logger:   log,
	})
	profileService := application.NewProfileService(profileRepo, log)
	photoService := application.NewPhotoService(photoRepo, bookingRepo, log)
	invoiceService := application.NewInvoiceService(invoiceRepo, bookingRepo, log)

	// Initialize and start payment event consumer in a goroutine
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	groupID := cfg.KafkaConfig.GroupPrefix + "booking-service"
	paymentConsumer := bookingEvents.NewPaymentEventConsumer(
		cfg.KafkaConfig.Brokers,
		groupID,
		bookingService,
		log,
	)
	defer func() { _ = paymentConsumer.Close() }()

	go func() {
		log.Info("starting payment event consumer")
		if err := paymentConsumer.Start(ctx); err != nil && err != context.Canceled {
			log.Error("payment event consumer error", zap.Error(err))
		}
	}()

	// Setup Gin router
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// Apply global middleware
	router.Use(middleware.RecoveryMiddleware(log))
	router.Use(middleware.LoggerMiddleware(log))
	router.Use(middleware.RequestIDMiddleware())
	router.Use(middleware.CORSMiddleware())
	router.Use(middleware.SecurityHeadersMiddleware())

	// Register health check routes
	healthHandler := health.NewHandler(db, "service-booking", map[string]health.Pinger{
		"redis": locker,
	})
	healthHandler.RegisterRoutes(router)

	// Register routes
	api := &router.RouterGroup
	handler.NewBookingHandler(bookingService).RegisterRoutes(api, jwtManager)
	handler.NewAdminBookingHandler(bookingService).RegisterRoutes(api, jwtManager)
	handler.NewPhotoHandler(photoService).RegisterRoutes(api, jwtManager)
	handler.NewInvoiceHandler(invoiceService).RegisterRoutes(api, jwtManager)
	handler.NewProfileHandler(profileService).RegisterRoutes(api, jwtManager)

	// Create HTTP server
	srv := &http.Server{
		Addr:         cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		log.Info("HTTP server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("HTTP server error", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down service-booking...")

	// Cancel the consumer context
	cancel()

	// Shutdown HTTP server with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("HTTP server forced shutdown", zap.Error(err))
	}

	log.Info("service-booking stopped")
}
