package di

import (
	"context"
	"fmt"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/events"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/gateway"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/handler"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/metrics"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/pricing"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/service"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/timeslot"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/worker"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/clock"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/config"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/database"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/kafka"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/redis"
)

// Container wires the reservation engine's dependency graph.
type Container struct {
	// Infrastructure
	DB       *database.PostgresDB
	Redis    *redis.Client
	Producer *kafka.Producer

	// Domain plumbing
	Normalizer *timeslot.Normalizer
	Gateway    gateway.PaymentGateway
	Publisher  events.Publisher
	Metrics    *metrics.BookingMetrics

	// Repositories
	BookingRepo   repository.BookingRepository
	RuleRepo      repository.PricingRuleRepository
	SubFieldRepo  repository.SubFieldRepository
	RecurringRepo repository.RecurringBookingRepository
	PaymentRepo   repository.PaymentRepository

	// Services
	ReservationService *service.ReservationService
	RecurringService   *service.RecurringService
	PaymentService     *service.PaymentService

	// Workers
	Reaper *worker.ExpiryReaper

	// Handlers
	BookingHandler   *handler.BookingHandler
	RecurringHandler *handler.RecurringHandler
	WebhookHandler   *handler.WebhookHandler
	HealthHandler    *handler.HealthHandler
}

// NewContainer builds the full graph from loaded configuration and shared
// infrastructure clients. Redis and Kafka are optional; the engine degrades
// to unguarded requests and dropped events without them.
func NewContainer(ctx context.Context, cfg *config.Config, db *database.PostgresDB, cache *redis.Client, producer *kafka.Producer) (*Container, error) {
	c := &Container{DB: db, Redis: cache, Producer: producer}

	normalizer, err := timeslot.NewNormalizer(cfg.Booking.Timezone)
	if err != nil {
		return nil, fmt.Errorf("failed to build time normalizer: %w", err)
	}
	c.Normalizer = normalizer

	if cfg.Stripe.SecretKey != "" {
		gw, err := gateway.NewStripeGateway(&gateway.StripeGatewayConfig{
			SecretKey:       cfg.Stripe.SecretKey,
			WebhookSecret:   cfg.Stripe.WebhookSecret,
			PlatformFeeRate: cfg.Stripe.PlatformFeeRate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to build stripe gateway: %w", err)
		}
		c.Gateway = gw
	} else {
		logger.Get().Warn("No Stripe secret configured; using mock payment gateway")
		c.Gateway = gateway.NewMockGateway()
	}

	if producer != nil {
		c.Publisher = events.NewKafkaPublisher(producer, events.TopicName(cfg.Kafka.Topic, cfg.App.Environment))
	} else {
		c.Publisher = events.NoOpPublisher{}
	}

	c.Metrics = metrics.NewBookingMetrics()

	pool := db.Pool()
	c.BookingRepo = repository.NewPostgresBookingRepository(pool)
	c.RuleRepo = repository.NewPostgresPricingRuleRepository(pool)
	c.SubFieldRepo = repository.NewPostgresSubFieldRepository(pool)
	c.RecurringRepo = repository.NewPostgresRecurringRepository(pool)
	c.PaymentRepo = repository.NewPostgresPaymentRepository(pool)

	resolver := pricing.NewResolver(c.RuleRepo)
	clk := clock.NewSystem()
	policy := service.HoldPolicy{
		InitialHoldWindow:   cfg.Booking.InitialHoldWindow,
		RecurringHoldWindow: cfg.Booking.RecurringHoldWindow,
		PaymentHoldWindow:   cfg.Booking.PaymentHoldWindow,
		RetryGraceWindow:    cfg.Booking.RetryGraceWindow,
		Currency:            cfg.Booking.Currency,
	}

	c.ReservationService = service.NewReservationService(
		c.BookingRepo, c.RecurringRepo, c.SubFieldRepo, resolver, normalizer,
		c.Gateway, c.Publisher, c.Metrics, clk, policy,
	)
	c.RecurringService = service.NewRecurringService(
		c.RecurringRepo, c.BookingRepo, c.SubFieldRepo, resolver, normalizer,
		c.Gateway, c.Publisher, c.Metrics, clk, policy,
	)
	c.PaymentService = service.NewPaymentService(
		c.PaymentRepo, c.BookingRepo, c.Publisher, c.Metrics, clk,
	)

	c.Reaper = worker.NewExpiryReaper(c.BookingRepo, c.RecurringRepo, c.Metrics, clk, &worker.ExpiryReaperConfig{
		SweepInterval:           cfg.Booking.SweepInterval,
		CompletionSweepInterval: cfg.Booking.CompletionSweepInterval,
		BatchSize:               cfg.Booking.SweepBatchSize,
	})

	c.BookingHandler = handler.NewBookingHandler(c.ReservationService)
	c.RecurringHandler = handler.NewRecurringHandler(c.RecurringService)
	c.WebhookHandler = handler.NewWebhookHandler(c.PaymentService, cfg.Stripe.WebhookSecret)
	c.HealthHandler = handler.NewHealthHandler(db, cache, c.Reaper)

	return c, nil
}
