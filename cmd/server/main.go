package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/niaga-platform/service-returns/internal/clients"
	"github.com/niaga-platform/service-returns/internal/config"
	"github.com/niaga-platform/service-returns/internal/courier/borzo"
	"github.com/niaga-platform/service-returns/internal/database"
	"github.com/niaga-platform/service-returns/internal/events"
	"github.com/niaga-platform/service-returns/internal/gateway"
	"github.com/niaga-platform/service-returns/internal/geocode"
	"github.com/niaga-platform/service-returns/internal/handlers"
	applogger "github.com/niaga-platform/service-returns/internal/logger"
	"github.com/niaga-platform/service-returns/internal/repository"
	"github.com/niaga-platform/service-returns/internal/routes"
	"github.com/niaga-platform/service-returns/internal/services"
)

func main() {
	// Load .env file in development
	if os.Getenv("APP_ENV") != "production" {
		_ = godotenv.Load()
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger, err := applogger.New(cfg.App.Env)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Initialize Sentry for error tracking
	sentryEnabled := cfg.Sentry.DSN != ""
	if sentryEnabled {
		err = sentry.Init(sentry.ClientOptions{
			Dsn:              cfg.Sentry.DSN,
			Environment:      cfg.Sentry.Environment,
			Release:          cfg.Sentry.Release,
			TracesSampleRate: 0.1,
		})
		if err != nil {
			logger.Warn("Failed to initialize Sentry", zap.Error(err))
			sentryEnabled = false
		} else {
			defer sentry.Flush(2 * time.Second)
		}
	}

	// Connect to database
	db, err := database.Connect(cfg.Database)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	sqlDB, _ := db.DB()
	defer sqlDB.Close()

	if err := database.Migrate(db); err != nil {
		logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	// Initialize repositories
	returnRepo := repository.NewReturnRepository(db)
	orderRepo := repository.NewOrderRepository(db)

	// Initialize sibling-service clients
	catalogClient := clients.NewCatalogClient(cfg.Services.CatalogURL, logger)
	userClient := clients.NewUserClient(cfg.Services.UserURL, logger)

	// Initialize courier client and geocoder
	courierClient := borzo.NewClient(&borzo.ClientConfig{
		AuthToken: cfg.Borzo.AuthToken,
		IsSandbox: cfg.Borzo.IsSandbox,
		Logger:    logger,
	})
	geocoder := geocode.NewClient(cfg.Geocode.BaseURL, cfg.Geocode.UserAgent, logger)

	// Initialize refund gateway
	refundGateway := gateway.NewRazorpayGateway(cfg.Razorpay.Key, cfg.Razorpay.Secret, logger)

	// Connect to Redis (optional - stats caching degrades gracefully)
	var redisClient *redis.Client
	if cfg.Redis.Host != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Host + ":" + cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			logger.Warn("Failed to connect to Redis, stats caching disabled", zap.Error(err))
			redisClient = nil
		} else {
			logger.Info("Connected to Redis")
		}
	}
	statsCache := services.NewStatsCacheService(redisClient, 5*time.Minute, logger)

	// Connect to NATS (optional - notifications degrade gracefully)
	var natsConn *nats.Conn
	var eventPublisher *events.Publisher
	if cfg.NATS.URL != "" {
		natsConn, err = nats.Connect(cfg.NATS.URL)
		if err != nil {
			logger.Warn("Failed to connect to NATS, notifications disabled", zap.Error(err))
		} else {
			logger.Info("Connected to NATS", zap.String("url", cfg.NATS.URL))
			eventPublisher = events.NewPublisher(natsConn, logger)
			defer natsConn.Close()
		}
	}

	// Initialize the lifecycle service
	var notifier services.Notifier
	if eventPublisher != nil {
		notifier = eventPublisher
	}
	lifecycleService := services.NewReturnLifecycleService(
		returnRepo,
		orderRepo,
		catalogClient,
		userClient,
		courierClient,
		geocoder,
		refundGateway,
		notifier,
		statsCache,
		services.LifecycleConfig{
			ReturnWindowDays: cfg.Returns.WindowDays,
			DefaultWeightKg:  cfg.Returns.DefaultWeightKg,
			CourierMatter:    cfg.Borzo.Matter,
			FallbackPickup: geocode.Coordinates{
				Latitude:  cfg.Geocode.FallbackPickupLat,
				Longitude: cfg.Geocode.FallbackPickupLon,
			},
			FallbackDrop: geocode.Coordinates{
				Latitude:  cfg.Geocode.FallbackDropLat,
				Longitude: cfg.Geocode.FallbackDropLon,
			},
		},
		logger,
	)

	// Start NATS subscriber for courier tracking updates
	if natsConn != nil {
		eventSubscriber := events.NewSubscriber(natsConn, lifecycleService, logger)
		if err := eventSubscriber.Start(); err != nil {
			logger.Warn("Failed to start event subscriber", zap.Error(err))
		} else {
			defer eventSubscriber.Stop()
		}
	}

	// Initialize handlers
	returnHandler := handlers.NewReturnHandler(lifecycleService, logger)

	// Set Gin mode
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize router
	router := gin.New()
	router.Use(gin.Recovery())
	if sentryEnabled {
		router.Use(sentrygin.New(sentrygin.Options{Repanic: true}))
	}

	routes.SetupRoutes(router, &routes.RouteConfig{
		ReturnHandler: returnHandler,
		JWTSecret:     cfg.JWT.Secret,
	})

	// Create server
	srv := &http.Server{
		Addr:         ":" + cfg.App.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Info("🚀 Returns service starting on port " + cfg.App.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}
