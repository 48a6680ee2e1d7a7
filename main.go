// Package main provides the main entry point for the Susanoo delivery service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Susanoo/app/handlers"
	"github.com/amirphl/Susanoo/app/poller"
	"github.com/amirphl/Susanoo/app/queue"
	"github.com/amirphl/Susanoo/app/router"
	"github.com/amirphl/Susanoo/app/scheduler"
	"github.com/amirphl/Susanoo/app/services"
	businessflow "github.com/amirphl/Susanoo/business_flow"
	"github.com/amirphl/Susanoo/config"
	"github.com/amirphl/Susanoo/models"
	"github.com/amirphl/Susanoo/repository"
	"github.com/gofiber/fiber/v3"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// Application represents the main application structure
type Application struct {
	router    *router.FiberRouter
	config    *config.ProductionConfig
	server    *fiber.App
	stopFuncs []func()
}

func main() {
	log.Println("Starting Susanoo application...")

	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	setupLogging(cfg.Logging)

	// Initialize application
	app, err := initializeApplication(cfg)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	// Setup routes
	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	// Start server in goroutine
	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		log.Printf("Server starting on %s", address)

		if err := app.server.Listen(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Println("Shutting down gracefully...")

	// Stop background workers. The queue workers drain their in-flight
	// sends before returning, so messages are never half-delivered.
	for _, fn := range app.stopFuncs {
		fn()
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := app.server.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	log.Println("Server stopped")
}

// setupLogging directs the standard logger at the configured sink
func setupLogging(cfg config.LoggingConfig) {
	if cfg.Output == "stdout" || cfg.FilePath == "" {
		return
	}

	fileSink := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	switch cfg.Output {
	case "file":
		log.SetOutput(fileSink)
	case "both":
		log.SetOutput(io.MultiWriter(os.Stdout, fileSink))
	}
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// Configure connection pooling
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := repository.EnsureSchema(db); err != nil {
		return nil, err
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Redis client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB and password if provided in config
	opt.DB = cfg.RedisDB
	if cfg.RedisPassword != "" {
		opt.Password = cfg.RedisPassword
	}

	rc := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rc.Ping(ctx).Err(); err != nil {
		_ = rc.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	log.Printf("Redis connection established (db=%d)", cfg.RedisDB)
	return rc, nil
}

// initializeDeliveryClients builds the primary and fallback backend clients.
// A gateway URL of "mock" yields an in-process client, used for local runs.
func initializeDeliveryClients(cfg config.WhatsAppConfig) (primary, fallback services.WhatsAppClient) {
	if cfg.Primary.BaseURL == "mock" {
		primary = services.NewMockWhatsAppClient(models.DeliveryMethodPrimary)
	} else {
		primary = services.NewPrimaryClient(cfg.Primary)
	}

	if cfg.Fallback.BaseURL == "mock" {
		fallback = services.NewMockWhatsAppClient(models.DeliveryMethodFallback)
	} else {
		fallback = services.NewFallbackClient(cfg.Fallback)
	}

	return primary, fallback
}

// initializeApplication initializes the main application components
func initializeApplication(cfg *config.ProductionConfig) (*Application, error) {
	var stopFuncs []func()

	// Initialize database
	db, err := initializeDatabase(cfg.Database)
	if err != nil {
		return nil, err
	}

	rc, err := initializeCache(cfg.Cache)
	if err != nil {
		return nil, err
	}

	// Initialize repositories
	campaignRepo := repository.NewCampaignRepository(db)
	contactRepo := repository.NewContactRepository(db)
	messageRepo := repository.NewMessageRepository(db)
	deadLetterRepo := repository.NewDeadLetterRepository(db)
	sessionRepo := repository.NewWhatsAppSessionRepository(db)

	// Initialize delivery backends
	primaryClient, fallbackClient := initializeDeliveryClients(cfg.WhatsApp)
	sessionRegistry := services.NewSessionRegistry(sessionRepo, primaryClient, fallbackClient)

	// Initialize the delivery queue
	store := queue.NewRedisStore(rc, cfg.Queue.KeyPrefix)
	orchestrator := queue.NewOrchestrator(
		store,
		db,
		campaignRepo,
		contactRepo,
		messageRepo,
		deadLetterRepo,
		sessionRegistry,
		log.Default(),
		queue.Options{
			MessageWorkers:  cfg.Queue.MessageWorkers,
			CampaignWorkers: cfg.Queue.CampaignWorkers,
			PollInterval:    cfg.Queue.PollInterval,
			RetryBaseDelay:  cfg.Queue.RetryBaseDelay,
			StuckClaimAge:   cfg.Queue.StuckClaimAge,
		},
		primaryClient,
		fallbackClient,
	)
	stopWorkers := orchestrator.Start(context.Background())
	stopFuncs = append(stopFuncs, stopWorkers)

	// Initialize the campaign scheduler with its maintenance sweeps
	campaignScheduler := scheduler.NewCampaignScheduler(
		campaignRepo,
		messageRepo,
		orchestrator,
		log.Default(),
		cfg.Scheduler,
	)
	stopScheduler, err := campaignScheduler.Start(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to start campaign scheduler: %w", err)
	}
	stopFuncs = append(stopFuncs, stopScheduler)

	// Initialize delivery confirmation
	reconciler := poller.NewReconciler(messageRepo, campaignRepo, log.Default())
	if cfg.Poller.Enabled {
		deliveryPoller := poller.NewDeliveryPoller(messageRepo, campaignRepo, log.Default(), cfg.Poller)
		stopPoller := deliveryPoller.Start(context.Background())
		stopFuncs = append(stopFuncs, stopPoller)
	}

	// Initialize flows
	campaignFlow := businessflow.NewCampaignFlow(campaignRepo, db)
	contactImportFlow := businessflow.NewContactImportFlow(campaignRepo, contactRepo, db)

	// Initialize handlers
	queueHandler := handlers.NewQueueHandler(orchestrator)
	campaignHandler := handlers.NewCampaignHandler(campaignFlow, campaignScheduler)
	contactHandler := handlers.NewContactHandler(contactImportFlow)
	webhookHandler := handlers.NewWebhookHandler(reconciler, cfg.Webhook)
	sessionHandler := handlers.NewSessionHandler(sessionRegistry)

	// Initialize router
	appRouter := router.NewFiberRouter(
		cfg,
		queueHandler,
		campaignHandler,
		contactHandler,
		webhookHandler,
		sessionHandler,
	)

	// Create application struct from FiberRouter
	fiberRouter := appRouter.(*router.FiberRouter)
	application := &Application{
		router:    fiberRouter,
		config:    cfg,
		server:    fiberRouter.GetApp(),
		stopFuncs: stopFuncs,
	}

	return application, nil
}
