package events

import (
	"context"
	"fmt"
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/kafka"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
)

// Event types emitted on the booking topic.
const (
	TypeBookingHeld      = "booking.held"
	TypeBookingPaid      = "booking.paid"
	TypeBookingConfirmed = "booking.confirmed"
	TypeBookingCanceled  = "booking.canceled"
	TypeHoldExpired      = "booking.hold_expired"
)

// BookingEvent is the envelope published for every lifecycle transition.
// Downstream consumers (notifications, analytics) key on BookingID.
type BookingEvent struct {
	EventType  string    `json:"event_type"`
	BookingID  string    `json:"booking_id"`
	SubFieldID string    `json:"sub_field_id"`
	PlayerID   string    `json:"player_id"`
	Status     string    `json:"status"`
	Reason     string    `json:"reason,omitempty"`
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	Timestamp  time.Time `json:"timestamp"`
}

// Publisher emits booking lifecycle events. Publishing is best-effort: the
// booking transition has already committed when an event goes out, so
// failures are logged, never propagated.
type Publisher interface {
	PublishBookingEvent(ctx context.Context, eventType string, booking *domain.Booking, reason string)
}

// KafkaPublisher publishes booking events to one Kafka topic.
type KafkaPublisher struct {
	producer *kafka.Producer
	topic    string
}

// NewKafkaPublisher creates a publisher over an existing producer.
func NewKafkaPublisher(producer *kafka.Producer, topic string) *KafkaPublisher {
	return &KafkaPublisher{producer: producer, topic: topic}
}

func (p *KafkaPublisher) PublishBookingEvent(ctx context.Context, eventType string, booking *domain.Booking, reason string) {
	event := &BookingEvent{
		EventType:  eventType,
		BookingID:  booking.ID,
		SubFieldID: booking.SubFieldID,
		PlayerID:   booking.PlayerID,
		Status:     booking.Status.String(),
		Reason:     reason,
		StartTime:  booking.StartTime,
		EndTime:    booking.EndTime,
		Timestamp:  time.Now().UTC(),
	}

	if err := p.producer.ProduceJSON(ctx, p.topic, booking.ID, event); err != nil {
		logger.Get().Warnf("failed to publish %s for booking %s: %v", eventType, booking.ID, err)
	}
}

var _ Publisher = (*KafkaPublisher)(nil)

// NoOpPublisher drops events. Used when Kafka is not configured and in tests.
type NoOpPublisher struct{}

func (NoOpPublisher) PublishBookingEvent(ctx context.Context, eventType string, booking *domain.Booking, reason string) {
}

var _ Publisher = (*NoOpPublisher)(nil)

// TopicName derives a per-environment topic when none is configured.
func TopicName(configured, environment string) string {
	if configured != "" {
		return configured
	}
	return fmt.Sprintf("booking-events.%s", environment)
}
