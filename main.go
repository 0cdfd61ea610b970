package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/di"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/middleware"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/config"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/database"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/kafka"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	pkgmiddleware "github.com/thainvbka/sports-booking-platform-sub000/pkg/middleware"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/redis"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Init(&logger.Config{
		Level:       "info",
		ServiceName: cfg.App.Name,
		Development: cfg.IsDevelopment(),
	}); err != nil {
		return fmt.Errorf("failed to init logger: %w", err)
	}
	defer logger.Sync()
	log := logger.Get()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tel, err := telemetry.Init(ctx, &telemetry.Config{
		Enabled:        cfg.OTel.Enabled,
		ServiceName:    cfg.App.Name,
		ServiceVersion: cfg.App.Version,
		Environment:    cfg.App.Environment,
		CollectorAddr:  cfg.OTel.CollectorAddr,
	})
	if err != nil {
		return fmt.Errorf("failed to init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = tel.Shutdown(shutdownCtx)
	}()

	db, err := database.NewPostgres(ctx, &database.PostgresConfig{
		Host:            cfg.Database.Host,
		Port:            cfg.Database.Port,
		User:            cfg.Database.User,
		Password:        cfg.Database.Password,
		Database:        cfg.Database.DBName,
		SSLMode:         cfg.Database.SSLMode,
		MaxConns:        cfg.Database.MaxConns,
		MinConns:        cfg.Database.MinConns,
		MaxConnLifetime: cfg.Database.ConnMaxLifetime,
		MaxConnIdleTime: cfg.Database.ConnMaxIdleTime,
		ConnectTimeout:  10 * time.Second,
		MaxRetries:      5,
		RetryInterval:   2 * time.Second,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	// Redis is optional: without it the idempotency guard is skipped.
	cache, err := redis.NewClient(ctx, &redis.Config{
		Host:          cfg.Redis.Host,
		Port:          cfg.Redis.Port,
		Password:      cfg.Redis.Password,
		DB:            cfg.Redis.DB,
		PoolSize:      cfg.Redis.PoolSize,
		MaxRetries:    3,
		RetryInterval: time.Second,
	})
	if err != nil {
		log.Warnf("Redis unavailable, idempotency guard disabled: %v", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	// Kafka is optional too: lifecycle events are dropped without it.
	var producer *kafka.Producer
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err = kafka.NewProducer(ctx, &kafka.ProducerConfig{
			Brokers:  cfg.Kafka.Brokers,
			ClientID: cfg.Kafka.ClientID,
		})
		if err != nil {
			log.Warnf("Kafka unavailable, lifecycle events disabled: %v", err)
			producer = nil
		} else {
			defer producer.Close()
		}
	}

	container, err := di.NewContainer(ctx, cfg, db, cache, producer)
	if err != nil {
		return fmt.Errorf("failed to build container: %w", err)
	}

	if err := container.Reaper.Start(ctx); err != nil {
		return fmt.Errorf("failed to start expiry reaper: %w", err)
	}
	defer container.Reaper.Stop()

	router := buildRouter(cfg, cache, container)

	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("HTTP server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server failed: %w", err)
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func buildRouter(cfg *config.Config, cache *redis.Client, c *di.Container) *gin.Engine {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/health/live", c.HealthHandler.Live)
	router.GET("/health/ready", c.HealthHandler.Ready)
	router.GET("/health/reaper", c.HealthHandler.ReaperStats)

	// Webhooks authenticate with the gateway signature, not a bearer token.
	router.POST("/webhooks/stripe", c.WebhookHandler.HandleStripeWebhook)

	api := router.Group("/api/v1")
	api.Use(middleware.Auth(&middleware.AuthConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
	}))
	if cache != nil {
		api.Use(pkgmiddleware.Idempotency(pkgmiddleware.DefaultIdempotencyConfig(cache.Client())))
	}

	api.POST("/bookings", c.BookingHandler.Create)
	api.GET("/bookings", c.BookingHandler.ListMine)
	api.GET("/bookings/:id", c.BookingHandler.Get)
	api.POST("/bookings/:id/review", c.BookingHandler.Review)
	api.POST("/bookings/:id/cancel", c.BookingHandler.Cancel)

	api.POST("/recurring-bookings", c.RecurringHandler.Create)
	api.GET("/recurring-bookings/:id", c.RecurringHandler.Get)
	api.POST("/recurring-bookings/:id/review", c.RecurringHandler.Review)
	api.POST("/recurring-bookings/:id/cancel", c.RecurringHandler.Cancel)

	owner := api.Group("", middleware.RequireRole(middleware.RoleOwner))
	owner.POST("/bookings/:id/confirm", c.BookingHandler.Confirm)
	owner.GET("/owner/bookings", c.BookingHandler.Search)

	return router
}
