package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// PostgresPaymentRepository implements PaymentRepository using pgxpool
type PostgresPaymentRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPaymentRepository creates a new PostgresPaymentRepository
func NewPostgresPaymentRepository(pool *pgxpool.Pool) *PostgresPaymentRepository {
	return &PostgresPaymentRepository{pool: pool}
}

// Settle records the payment and moves the referenced pending bookings to
// completed in one transaction. Recurring parents whose last pending child
// just settled are promoted to completed in the same transaction, keeping
// the parent in step with its children. The unique index on gateway_event_id
// makes webhook replays a no-op: the insert is skipped and no booking moves
// twice.
func (r *PostgresPaymentRepository) Settle(ctx context.Context, payment *domain.Payment, now time.Time) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.payment.settle")
	defer span.End()

	span.SetAttributes(
		attribute.String("payment_id", payment.ID),
		attribute.String("gateway_event_id", payment.GatewayEventID),
		attribute.Int("booking_ids", len(payment.BookingIDs)),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insertQuery := `
		INSERT INTO payments (
			id, gateway_event_id, gateway_payment_id, amount, currency,
			status, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (gateway_event_id) DO NOTHING
	`
	result, err := tx.Exec(ctx, insertQuery,
		payment.ID,
		payment.GatewayEventID,
		payment.GatewayPaymentID,
		payment.Amount,
		payment.Currency,
		string(payment.Status),
		payment.CreatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to record payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Replayed gateway event; the first delivery already settled.
		span.SetAttributes(attribute.Bool("replay", true))
		span.SetStatus(codes.Ok, "")
		return 0, tx.Commit(ctx)
	}

	updateQuery := `
		UPDATE bookings SET
			status = 'completed',
			payment_id = $2,
			paid_at = $3,
			updated_at = $3
		WHERE id = ANY($1) AND status = 'pending'
	`
	updated, err := tx.Exec(ctx, updateQuery, payment.BookingIDs, payment.ID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to mark bookings paid: %w", err)
	}

	promoteQuery := `
		UPDATE recurring_bookings rb SET
			status = 'completed',
			updated_at = $2
		WHERE rb.status = 'pending'
			AND rb.id IN (
				SELECT DISTINCT b.recurring_booking_id FROM bookings b
				WHERE b.id = ANY($1) AND b.recurring_booking_id IS NOT NULL
			)
			AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.recurring_booking_id = rb.id AND b.status = 'pending'
			)
	`
	if _, err := tx.Exec(ctx, promoteQuery, payment.BookingIDs, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to promote recurring parents: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to commit settlement: %w", err)
	}

	moved := int(updated.RowsAffected())
	span.SetAttributes(attribute.Int("moved", moved))
	span.SetStatus(codes.Ok, "")
	return moved, nil
}

var _ PaymentRepository = (*PostgresPaymentRepository)(nil)
