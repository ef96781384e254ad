// Package main provides the main entry point for the audience sync service
package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/amirphl/Orochi-Audience-Sync/app/handlers"
	"github.com/amirphl/Orochi-Audience-Sync/app/middleware"
	"github.com/amirphl/Orochi-Audience-Sync/app/router"
	"github.com/amirphl/Orochi-Audience-Sync/app/services"
	businessflow "github.com/amirphl/Orochi-Audience-Sync/business_flow"
	"github.com/amirphl/Orochi-Audience-Sync/config"
	"github.com/amirphl/Orochi-Audience-Sync/models"
	"github.com/amirphl/Orochi-Audience-Sync/repository"
	"github.com/redis/go-redis/v9"
	"gopkg.in/natefinch/lumberjack.v2"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Application represents the main application structure
type Application struct {
	router    router.Router
	config    *config.ProductionConfig
	stopFuncs []func()
}

func main() {
	// Load production configuration
	cfg, err := config.LoadProductionConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logOutput, closeLog := initializeLogging(cfg.Logging)
	defer closeLog()
	log.Printf("Starting audience sync service %s (%s)...", cfg.Deployment.Version, cfg.Deployment.Environment)

	// Initialize application
	app, err := initializeApplication(cfg, logOutput)
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	app.router.SetupRoutes()

	// Handle shutdown signals
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		address := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
		if err := app.router.Start(address); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-sigChan
	log.Println("Shutting down gracefully...")

	if err := app.router.Shutdown(); err != nil {
		log.Printf("Error during shutdown: %v", err)
	}

	for _, fn := range app.stopFuncs {
		fn()
	}

	log.Println("Server stopped")
}

// initializeLogging points the standard logger at stdout, a rotating file, or both
func initializeLogging(cfg config.LoggingConfig) (io.Writer, func()) {
	log.SetFlags(log.LstdFlags | log.LUTC)

	if cfg.Output != "file" && cfg.Output != "both" {
		log.SetOutput(os.Stdout)
		return os.Stdout, func() {}
	}

	rotating := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    cfg.MaxSize,
		MaxBackups: cfg.MaxBackups,
		MaxAge:     cfg.MaxAge,
		Compress:   cfg.Compress,
	}

	var out io.Writer = rotating
	if cfg.Output == "both" {
		out = io.MultiWriter(os.Stdout, rotating)
	}
	log.SetOutput(out)
	return out, func() { _ = rotating.Close() }
}

// initializeDatabase initializes the database connection with connection pooling
func initializeDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Name, cfg.SSLMode)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Get underlying sql.DB for connection pooling configuration
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if cfg.AutoMigrate {
		if err := db.AutoMigrate(&models.SyncAuditLog{}); err != nil {
			return nil, fmt.Errorf("failed to migrate sync audit log: %w", err)
		}
	}

	log.Printf("Database connection established with %d max open connections, %d max idle connections",
		cfg.MaxOpenConns, cfg.MaxIdleConns)

	return db, nil
}

// initializeCache initializes the Cache client and verifies connectivity
func initializeCache(cfg config.CacheConfig) (*redis.Client, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	// Override DB if provided in config
	opt.DB = cfg.RedisDB

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

// startCacheHealthMonitor periodically pings Redis. The returned cancel function stops the monitor.
func startCacheHealthMonitor(parent context.Context, client *redis.Client, interval time.Duration) func() {
	monitorCtx, cancel := context.WithCancel(parent)
	if interval <= 0 {
		interval = 30 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-monitorCtx.Done():
				return
			case <-ticker.C:
				ctx, c := context.WithTimeout(context.Background(), 3*time.Second)
				if err := client.Ping(ctx).Err(); err != nil {
					log.Printf("Redis healthcheck failed: %v", err)
				}
				c()
			}
		}
	}()
	return cancel
}

func initializeApplication(cfg *config.ProductionConfig, logOutput io.Writer) (*Application, error) {
	app := &Application{config: cfg}

	var auditRepo repository.SyncAuditLogRepository
	if cfg.Database.Enabled {
		db, err := initializeDatabase(cfg.Database)
		if err != nil {
			return nil, err
		}
		auditRepo = repository.NewSyncAuditLogRepository(db)
		app.stopFuncs = append(app.stopFuncs, func() {
			if sqlDB, err := db.DB(); err == nil {
				_ = sqlDB.Close()
			}
		})
	}

	var reviewQueue services.ReviewQueue
	if cfg.Cache.Enabled {
		rc, err := initializeCache(cfg.Cache)
		if err != nil {
			return nil, err
		}
		stopMonitor := startCacheHealthMonitor(context.Background(), rc, cfg.Cache.HealthInterval)
		app.stopFuncs = append(app.stopFuncs, stopMonitor, func() { _ = rc.Close() })
		if cfg.ReviewQueue.Enabled {
			reviewQueue = services.NewRedisReviewQueue(rc, cfg.Cache.RedisPrefix, cfg.ReviewQueue.MaxLength)
		}
	}

	httpClient := &http.Client{Timeout: cfg.Platform.Timeout}
	credentials := services.NewOAuth2CredentialCache(cfg.Platform.TokenURL, httpClient)
	platformClient := services.NewPlatformClient(cfg.Platform, httpClient, credentials)
	catalog := services.NewAudienceCatalog(platformClient)
	provisioner := services.NewAudienceProvisioner(platformClient, catalog)
	patcher := services.NewMembershipPatcher(platformClient)

	resolver := businessflow.NewAudienceResolver(catalog, provisioner)
	syncFlow := businessflow.NewAudienceSyncFlow(cfg.Platform, credentials, services.NewIdentifierHasher(), resolver, patcher, auditRepo, reviewQueue)
	auditFlow := businessflow.NewSyncAuditFlow(auditRepo, reviewQueue)

	tokenService, err := services.NewTokenService(cfg.JWT.AccessTokenTTL, cfg.JWT.Issuer, cfg.JWT.Audience, cfg.JWT.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize token service: %w", err)
	}

	syncHandler := handlers.NewAudienceSyncHandler(syncFlow, cfg.Server.SyncTimeout, cfg.Server.RetryAfter)
	adminHandler := handlers.NewSyncAdminHandler(auditFlow)
	authMiddleware := middleware.NewAuthMiddleware(tokenService)

	app.router = router.NewFiberRouter(cfg, logOutput, syncHandler, adminHandler, authMiddleware)
	return app, nil
}
