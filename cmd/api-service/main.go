package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cuongbtq/catalog-bridge/internal/api/dispatch"
	"github.com/cuongbtq/catalog-bridge/internal/api/handler"
	"github.com/cuongbtq/catalog-bridge/internal/api/router"
	"github.com/cuongbtq/catalog-bridge/internal/api/validation"
	"github.com/cuongbtq/catalog-bridge/internal/config"
	"github.com/cuongbtq/catalog-bridge/internal/pricing"
	"github.com/cuongbtq/catalog-bridge/internal/queue"
	"github.com/cuongbtq/catalog-bridge/internal/storage"
	"github.com/cuongbtq/catalog-bridge/shared/logger"
	"github.com/cuongbtq/catalog-bridge/shared/postgresql"
	"github.com/cuongbtq/catalog-bridge/shared/rabbitmq"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables or flags")
	}

	// Parse command-line flags
	defaultConfigPath := os.Getenv("API_SERVICE_CONFIG_PATH")
	if defaultConfigPath == "" {
		defaultConfigPath = "configs/api-service/config.yaml"
	}
	configPath := flag.String("config", defaultConfigPath, "Path to configuration file")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load(*configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := cfg.ValidateAPIConfig(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	// Initialize logger
	appLogger, err := initLogger(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	appLogger.Info("Starting API service",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version),
		slog.String("environment", cfg.App.Environment),
		slog.Bool("queue_enabled", cfg.Queue.Enabled),
	)

	// Initialize PostgreSQL client
	dbClient, err := initPostgreSQL(&cfg.Database, cfg.App.Name, appLogger.Logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}

	appLogger.Info("Database connection established")

	jobStorage := storage.NewStorage(dbClient.GetDB(), appLogger.Logger)

	// The broker is dialed on first submission, so a RabbitMQ outage only
	// affects dispatch routes.
	broker := queue.NewBroker(cfg.Queue.Queues, func() (queue.Publisher, error) {
		client, err := initRabbitMQ(&cfg.RabbitMQ, appLogger.Logger)
		if err != nil {
			return nil, err
		}
		return client, nil
	}, jobStorage, appLogger.Logger)
	registry := queue.NewRegistry(cfg.Queue.Enabled, broker, appLogger.Logger)

	resyncPolicy, err := dispatch.ParseIdentityPolicy(cfg.Dispatch.ProductResyncIdentity)
	if err != nil {
		return fmt.Errorf("invalid dispatch config: %w", err)
	}

	dispatcher := dispatch.New(registry, dispatch.Config{
		SubmitTimeout: cfg.Dispatch.SubmitTimeout,
		ProductResync: resyncPolicy,
	}, appLogger.Logger)

	converter, err := pricing.NewConverter(cfg.Pricing)
	if err != nil {
		return fmt.Errorf("invalid pricing config: %w", err)
	}

	// Initialize router
	r, err := initRouter(cfg, &handler.Dependencies{
		Logger:     appLogger.Logger,
		Dispatcher: dispatcher,
		Jobs:       jobStorage,
		Gate:       validation.NewGate(),
		Pricing:    converter,
		Database:   dbClient,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize router: %w", err)
	}

	// Create HTTP server
	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	appLogger.Info("Starting HTTP server",
		slog.String("address", addr),
		slog.Duration("read_timeout", cfg.Server.ReadTimeout),
		slog.Duration("write_timeout", cfg.Server.WriteTimeout),
	)

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			appLogger.Error("Server failed to start",
				slog.Any("error", err),
			)
			os.Exit(1)
		}
	}()

	appLogger.Info("API service is running",
		slog.String("address", addr),
	)

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	appLogger.Info("Shutting down server...")

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)

	// Cleanup function to close all resources
	cleanup := func() {
		cancel()
		if err := broker.Close(); err != nil {
			appLogger.Warn("Failed to close broker", slog.Any("error", err))
		}
		if dbClient != nil {
			dbClient.Close()
		}
	}
	defer cleanup()

	if err := srv.Shutdown(ctx); err != nil {
		appLogger.Error("Server forced to shutdown",
			slog.Any("error", err),
		)
		return err
	}

	appLogger.Info("Server shutdown complete")
	return nil
}

// initLogger initializes and configures the application logger
func initLogger(cfg *config.LoggingConfig) (*logger.Logger, error) {
	loggerCfg := &logger.Config{
		Level:        cfg.Level,
		Format:       cfg.Format,
		Output:       cfg.Output,
		EnableSource: cfg.EnableCaller,
		TimeFormat:   time.RFC3339,
	}

	return logger.New(loggerCfg)
}

// initPostgreSQL initializes the PostgreSQL database client
func initPostgreSQL(cfg *config.DatabaseConfig, appName string, logger *slog.Logger) (*postgresql.Client, error) {
	dbConfig := &postgresql.Config{
		Host:            cfg.Host,
		Port:            cfg.Port,
		User:            cfg.User,
		Password:        cfg.Password,
		Database:        cfg.Database,
		SSLMode:         cfg.SSLMode,
		MaxOpenConns:    cfg.MaxOpenConns,
		MaxIdleConns:    cfg.MaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime,
		ConnMaxIdleTime: cfg.ConnMaxIdleTime,
		ApplicationName: appName,
	}

	return postgresql.NewClient(dbConfig, logger)
}

// initRabbitMQ initializes the RabbitMQ client
func initRabbitMQ(cfg *config.RabbitMQConfig, logger *slog.Logger) (*rabbitmq.Client, error) {
	rabbitConfig := &rabbitmq.Config{
		Host:               cfg.Host,
		Port:               cfg.Port,
		User:               cfg.User,
		Password:           cfg.Password,
		VHost:              cfg.VHost,
		ExchangeName:       cfg.Exchange.Name,
		ExchangeType:       cfg.Exchange.Type,
		ExchangeDurable:    cfg.Exchange.Durable,
		ExchangeAutoDelete: cfg.Exchange.AutoDelete,
		QueueDurable:       cfg.Queue.Durable,
		QueueAutoDelete:    cfg.Queue.AutoDelete,
		RetryAttempts:      cfg.Connection.RetryAttempts,
		RetryInterval:      cfg.Connection.RetryInterval,
		Heartbeat:          cfg.Connection.Heartbeat,
		ConnectionTimeout:  cfg.Connection.ConnectionTimeout,
	}

	return rabbitmq.NewClient(rabbitConfig, logger)
}

// initRouter initializes the Gin router with all routes and middleware
func initRouter(cfg *config.Config, deps *handler.Dependencies) (*gin.Engine, error) {
	// Set Gin mode based on environment
	if cfg.App.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	return router.SetupRouter(deps, router.Options{
		ServiceName:     cfg.App.Name,
		InternalAPIKey:  cfg.Security.InternalAPIKey,
		KeyHeader:       cfg.Security.InternalKeyHeader,
		HMACSecret:      []byte(cfg.Security.HMACSecret),
		SignatureMaxAge: cfg.Security.SignatureMaxAge,
		TrustedProxies:  cfg.Server.TrustedProxies,
	})
}
