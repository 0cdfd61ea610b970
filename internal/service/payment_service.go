package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/events"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/metrics"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/clock"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/retry"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// Settlement is the distilled content of a gateway success event.
type Settlement struct {
	GatewayEventID   string
	GatewayPaymentID string
	Amount           float64
	Currency         string
	BookingIDs       []string
}

// PaymentService reconciles asynchronous gateway events with booking state.
type PaymentService struct {
	payments  repository.PaymentRepository
	bookings  repository.BookingRepository
	publisher events.Publisher
	metrics   *metrics.BookingMetrics
	clock     clock.Clock
	retryCfg  *retry.Config
}

// NewPaymentService wires the payment reconciler.
func NewPaymentService(
	payments repository.PaymentRepository,
	bookings repository.BookingRepository,
	publisher events.Publisher,
	m *metrics.BookingMetrics,
	clk clock.Clock,
) *PaymentService {
	return &PaymentService{
		payments:  payments,
		bookings:  bookings,
		publisher: publisher,
		metrics:   m,
		clock:     clk,
		retryCfg: &retry.Config{
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     2 * time.Second,
			Multiplier:      2.0,
			JitterFactor:    0.1,
		},
	}
}

// Settle applies a gateway success event: the referenced pending bookings
// move to completed. Replayed events settle zero bookings and succeed, so
// the webhook can always be acknowledged. Transient storage failures are
// retried; the gateway redelivers on a returned error anyway, but a local
// retry usually spares the round trip.
func (s *PaymentService) Settle(ctx context.Context, stl *Settlement) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.settle")
	defer span.End()

	span.SetAttributes(
		attribute.String("gateway_event_id", stl.GatewayEventID),
		attribute.Int("booking_ids", len(stl.BookingIDs)),
	)

	if stl.GatewayEventID == "" || len(stl.BookingIDs) == 0 {
		span.SetStatus(codes.Error, "malformed settlement")
		return 0, domain.ErrInvalidBookingID
	}

	now := s.clock.Now()
	payment := &domain.Payment{
		ID:               uuid.New().String(),
		GatewayEventID:   stl.GatewayEventID,
		GatewayPaymentID: stl.GatewayPaymentID,
		Amount:           stl.Amount,
		Currency:         stl.Currency,
		Status:           domain.PaymentStatusSucceeded,
		BookingIDs:       stl.BookingIDs,
		CreatedAt:        now,
	}

	var moved int
	err := retry.Do(ctx, s.retryCfg, func(ctx context.Context) error {
		var err error
		moved, err = s.payments.Settle(ctx, payment, now)
		return err
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, err
	}

	log := logger.Get().With(
		zap.String("gateway_event_id", stl.GatewayEventID),
		zap.Int("moved", moved),
	)
	if moved == 0 {
		s.metrics.SettlementReplays.Add(ctx, 1)
		log.Info("settlement replay ignored")
		span.SetStatus(codes.Ok, "replay")
		return 0, nil
	}

	s.metrics.Settlements.Add(ctx, 1)
	s.metrics.BookingsPaid.Add(ctx, int64(moved))
	log.Info("settlement applied")

	for _, id := range stl.BookingIDs {
		booking, err := s.bookings.GetByID(ctx, id)
		if err != nil {
			logger.Get().Warnf("settled booking %s not loadable for event publish: %v", id, err)
			continue
		}
		if booking.IsCompleted() {
			s.publisher.PublishBookingEvent(ctx, events.TypeBookingPaid, booking, "")
		}
	}

	span.SetAttributes(attribute.Int("moved", moved))
	span.SetStatus(codes.Ok, "")
	return moved, nil
}

// HandleFailure records a failed gateway payment. The holds stay pending:
// the player keeps their remaining window to retry, and the reaper releases
// the slot if they never do.
func (s *PaymentService) HandleFailure(ctx context.Context, gatewayEventID string, bookingIDs []string, reason string) {
	ctx, span := telemetry.StartSpan(ctx, "service.payment.handle_failure")
	defer span.End()

	span.SetAttributes(attribute.String("gateway_event_id", gatewayEventID))

	logger.Get().With(
		zap.String("gateway_event_id", gatewayEventID),
		zap.Strings("booking_ids", bookingIDs),
		zap.String("reason", reason),
	).Warn("payment failed")
	span.SetStatus(codes.Ok, "")
}
