package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

const recurringColumns = `
	id, player_id, sub_field_id, recurrence_type, start_date, end_date,
	status, total_price, currency, created_at, updated_at
`

// PostgresRecurringRepository implements RecurringBookingRepository using
// pgxpool. Parent and children always move together inside one transaction.
type PostgresRecurringRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRecurringRepository creates a new PostgresRecurringRepository
func NewPostgresRecurringRepository(pool *pgxpool.Pool) *PostgresRecurringRepository {
	return &PostgresRecurringRepository{pool: pool}
}

// CreateWithChildren inserts the parent and every child booking in one
// transaction. An overlap violation on any child rolls the whole aggregate
// back and surfaces as domain.ErrSlotTaken.
func (r *PostgresRecurringRepository) CreateWithChildren(ctx context.Context, parent *domain.RecurringBooking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.create_with_children")
	defer span.End()

	span.SetAttributes(
		attribute.String("recurring_booking_id", parent.ID),
		attribute.Int("children", len(parent.Children)),
	)

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	parentQuery := `
		INSERT INTO recurring_bookings (
			id, player_id, sub_field_id, recurrence_type, start_date, end_date,
			status, total_price, currency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, parentQuery,
		parent.ID,
		parent.PlayerID,
		parent.SubFieldID,
		parent.RecurrenceType.String(),
		parent.StartDate,
		parent.EndDate,
		parent.Status.String(),
		parent.TotalPrice,
		parent.Currency,
		parent.CreatedAt,
		parent.UpdatedAt,
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create recurring booking: %w", err)
	}

	childQuery := `
		INSERT INTO bookings (
			id, sub_field_id, player_id, start_time, end_time,
			total_price, currency, status, expires_at,
			recurring_booking_id, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	for _, child := range parent.Children {
		_, err = tx.Exec(ctx, childQuery,
			child.ID,
			child.SubFieldID,
			child.PlayerID,
			child.StartTime,
			child.EndTime,
			child.TotalPrice,
			child.Currency,
			child.Status.String(),
			child.ExpiresAt,
			parent.ID,
			child.CreatedAt,
			child.UpdatedAt,
		)
		if err != nil {
			if isOverlapViolation(err) {
				span.SetStatus(codes.Error, "slot taken")
				return domain.ErrSlotTaken
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to create child booking: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit recurring booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID loads the parent with its children hydrated.
func (r *PostgresRecurringRepository) GetByID(ctx context.Context, id string) (*domain.RecurringBooking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("recurring_booking_id", id))

	row := r.pool.QueryRow(ctx, `SELECT `+recurringColumns+` FROM recurring_bookings WHERE id = $1`, id)
	parent, err := scanRecurring(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrRecurringNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get recurring booking: %w", err)
	}

	childQuery := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE recurring_booking_id = $1
		ORDER BY start_time
	`
	rows, err := r.pool.Query(ctx, childQuery, id)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to load children: %w", err)
	}
	defer rows.Close()

	children, err := collectBookings(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	parent.Children = children

	span.SetAttributes(attribute.Int("children", len(children)))
	span.SetStatus(codes.Ok, "")
	return parent, nil
}

// FindIdentical returns a non-canceled parent with the same player,
// sub-field, cadence and date range, or nil. Used to make identical retries
// idempotent instead of double-booking the series.
func (r *PostgresRecurringRepository) FindIdentical(ctx context.Context, playerID, subFieldID string, recurrenceType domain.RecurrenceType, startDate, endDate time.Time) (*domain.RecurringBooking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.find_identical")
	defer span.End()

	query := `SELECT ` + recurringColumns + `
		FROM recurring_bookings
		WHERE player_id = $1
			AND sub_field_id = $2
			AND recurrence_type = $3
			AND start_date = $4
			AND end_date = $5
			AND status <> 'canceled'
		ORDER BY created_at DESC
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, playerID, subFieldID, recurrenceType.String(), startDate, endDate)
	parent, err := scanRecurring(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "none")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to find identical recurring booking: %w", err)
	}

	span.SetAttributes(attribute.String("recurring_booking_id", parent.ID))
	span.SetStatus(codes.Ok, "")
	return parent, nil
}

// ExtendChildrenHold pushes the shared hold deadline of all pending children.
func (r *PostgresRecurringRepository) ExtendChildrenHold(ctx context.Context, parentID string, expiresAt time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.extend_children_hold")
	defer span.End()

	span.SetAttributes(attribute.String("recurring_booking_id", parentID))

	query := `
		UPDATE bookings SET
			expires_at = $2,
			updated_at = $3
		WHERE recurring_booking_id = $1 AND status = 'pending'
	`

	if _, err := r.pool.Exec(ctx, query, parentID, expiresAt, time.Now()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to extend children holds: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CancelAggregate cancels the parent and all non-canceled children in one
// transaction. Re-cancelling is a no-op.
func (r *PostgresRecurringRepository) CancelAggregate(ctx context.Context, parentID string, reason string, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.cancel_aggregate")
	defer span.End()

	span.SetAttributes(attribute.String("recurring_booking_id", parentID))

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	parentQuery := `
		UPDATE recurring_bookings SET
			status = 'canceled',
			updated_at = $2
		WHERE id = $1 AND status <> 'canceled'
	`
	result, err := tx.Exec(ctx, parentQuery, parentID, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel recurring booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM recurring_bookings WHERE id = $1)`, parentID).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check recurring booking existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrRecurringNotFound
		}
		// Already canceled; children are too.
		span.SetStatus(codes.Ok, "")
		return tx.Commit(ctx)
	}

	childQuery := `
		UPDATE bookings SET
			status = 'canceled',
			status_reason = $2,
			canceled_at = $3,
			updated_at = $3
		WHERE recurring_booking_id = $1 AND status <> 'canceled'
	`
	if _, err := tx.Exec(ctx, childQuery, parentID, reason, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel child bookings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to commit aggregate cancel: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// SetStatus updates the parent status only.
func (r *PostgresRecurringRepository) SetStatus(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.set_status")
	defer span.End()

	span.SetAttributes(
		attribute.String("recurring_booking_id", parentID),
		attribute.String("status", status.String()),
	)

	query := `UPDATE recurring_bookings SET status = $2, updated_at = $3 WHERE id = $1`

	result, err := r.pool.Exec(ctx, query, parentID, status.String(), now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to update recurring booking status: %w", err)
	}
	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not found")
		return domain.ErrRecurringNotFound
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ListExpiredPending returns pending parents with no live child left: every
// child is canceled or is a pending hold past its deadline.
func (r *PostgresRecurringRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringBooking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.list_expired_pending")
	defer span.End()

	query := `SELECT ` + recurringColumns + `
		FROM recurring_bookings rb
		WHERE rb.status = 'pending'
			AND NOT EXISTS (
				SELECT 1 FROM bookings b
				WHERE b.recurring_booking_id = rb.id
					AND (
						b.status IN ('completed', 'confirmed')
						OR (b.status = 'pending' AND b.expires_at >= $1)
					)
			)
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list expired recurring bookings: %w", err)
	}
	defer rows.Close()

	var parents []*domain.RecurringBooking
	for rows.Next() {
		parent, err := scanRecurring(rows)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan recurring booking: %w", err)
		}
		parents = append(parents, parent)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating recurring bookings: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(parents)))
	span.SetStatus(codes.Ok, "")
	return parents, nil
}

// CompleteElapsed moves confirmed parents whose series has fully elapsed to
// completed.
func (r *PostgresRecurringRepository) CompleteElapsed(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.recurring.complete_elapsed")
	defer span.End()

	query := `
		UPDATE recurring_bookings SET
			status = 'completed',
			updated_at = $1
		WHERE id IN (
			SELECT id FROM recurring_bookings
			WHERE status = 'confirmed' AND end_date < $1
			LIMIT $2
		)
	`

	result, err := r.pool.Exec(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to complete elapsed recurring bookings: %w", err)
	}

	count := int(result.RowsAffected())
	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

func scanRecurring(row pgx.Row) (*domain.RecurringBooking, error) {
	parent := &domain.RecurringBooking{}
	var (
		recurrenceType string
		status         string
	)

	err := row.Scan(
		&parent.ID,
		&parent.PlayerID,
		&parent.SubFieldID,
		&recurrenceType,
		&parent.StartDate,
		&parent.EndDate,
		&status,
		&parent.TotalPrice,
		&parent.Currency,
		&parent.CreatedAt,
		&parent.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	parent.RecurrenceType = domain.RecurrenceType(recurrenceType)
	parent.Status = domain.BookingStatus(status)
	return parent, nil
}

var _ RecurringBookingRepository = (*PostgresRecurringRepository)(nil)
