package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

const bookingColumns = `
	id, sub_field_id, player_id, start_time, end_time,
	total_price, currency, status, status_reason, expires_at,
	recurring_booking_id, payment_id, paid_at, canceled_at,
	created_at, updated_at
`

// PostgresBookingRepository implements BookingRepository using pgxpool
type PostgresBookingRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresBookingRepository creates a new PostgresBookingRepository
func NewPostgresBookingRepository(pool *pgxpool.Pool) *PostgresBookingRepository {
	return &PostgresBookingRepository{pool: pool}
}

// Create inserts a pending hold. The bookings_no_overlap exclusion
// constraint is the last line of defense against concurrent writers; its
// violation comes back as domain.ErrSlotTaken.
func (r *PostgresBookingRepository) Create(ctx context.Context, booking *domain.Booking) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("booking_id", booking.ID),
		attribute.String("sub_field_id", booking.SubFieldID),
	)

	query := `
		INSERT INTO bookings (
			id, sub_field_id, player_id, start_time, end_time,
			total_price, currency, status, status_reason, expires_at,
			recurring_booking_id, payment_id, paid_at, canceled_at,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9, $10,
			$11, $12, $13, $14,
			$15, $16
		)
	`

	_, err := r.pool.Exec(ctx, query,
		booking.ID,
		booking.SubFieldID,
		booking.PlayerID,
		booking.StartTime,
		booking.EndTime,
		booking.TotalPrice,
		booking.Currency,
		booking.Status.String(),
		nullString(booking.StatusReason),
		booking.ExpiresAt,
		nullString(booking.RecurringBookingID),
		nullString(booking.PaymentID),
		booking.PaidAt,
		booking.CanceledAt,
		booking.CreatedAt,
		booking.UpdatedAt,
	)
	if err != nil {
		if isOverlapViolation(err) {
			span.SetStatus(codes.Error, "slot taken")
			return domain.ErrSlotTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to create booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// GetByID retrieves a booking by its ID
func (r *PostgresBookingRepository) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	row := r.pool.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE id = $1`, id)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrBookingNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// GetBlockingOverlap returns one booking blocking [start, end) on the
// sub-field, or nil. Half-open semantics: back-to-back bookings touch but
// do not overlap.
func (r *PostgresBookingRepository) GetBlockingOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string, now time.Time) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.get_blocking_overlap")
	defer span.End()

	span.SetAttributes(attribute.String("sub_field_id", subFieldID))

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE sub_field_id = $1
			AND start_time < $3 AND end_time > $2
			AND ($4::uuid IS NULL OR id <> $4::uuid)
			AND (
				status IN ('confirmed', 'completed')
				OR (status = 'pending' AND expires_at > $5)
			)
		LIMIT 1
	`

	row := r.pool.QueryRow(ctx, query, subFieldID, start, end, nullString(excludeID), now)
	booking, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Ok, "free")
			return nil, nil
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to check overlap: %w", err)
	}

	span.SetAttributes(attribute.String("blocking_booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// HasConfirmedOverlap reports whether a confirmed booking overlaps the interval.
func (r *PostgresBookingRepository) HasConfirmedOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string) (bool, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.has_confirmed_overlap")
	defer span.End()

	query := `
		SELECT EXISTS(
			SELECT 1 FROM bookings
			WHERE sub_field_id = $1
				AND start_time < $3 AND end_time > $2
				AND ($4::uuid IS NULL OR id <> $4::uuid)
				AND status = 'confirmed'
		)
	`

	var exists bool
	if err := r.pool.QueryRow(ctx, query, subFieldID, start, end, nullString(excludeID)).Scan(&exists); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return false, fmt.Errorf("failed to check confirmed overlap: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return exists, nil
}

// CancelExpiredOverlapping clears expired pending holds in the way of a new
// insert. Without this, the exclusion constraint would reject a slot the
// engine considers free until the next reaper pass.
func (r *PostgresBookingRepository) CancelExpiredOverlapping(ctx context.Context, subFieldID string, start, end time.Time, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.cancel_expired_overlapping")
	defer span.End()

	query := `
		UPDATE bookings SET
			status = 'canceled',
			status_reason = 'hold expired',
			canceled_at = $4,
			updated_at = $4
		WHERE sub_field_id = $1
			AND start_time < $3 AND end_time > $2
			AND status = 'pending'
			AND expires_at <= $4
	`

	if _, err := r.pool.Exec(ctx, query, subFieldID, start, end, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel expired holds: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// ExtendHold pushes a pending hold's deadline.
func (r *PostgresBookingRepository) ExtendHold(ctx context.Context, id string, expiresAt time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.extend_hold")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `
		UPDATE bookings SET
			expires_at = $2,
			updated_at = $3
		WHERE id = $1 AND status = 'pending'
	`

	result, err := r.pool.Exec(ctx, query, id, expiresAt, time.Now())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to extend hold: %w", err)
	}
	if result.RowsAffected() == 0 {
		span.SetStatus(codes.Error, "not pending")
		return domain.ErrInvalidStatus
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Cancel moves a booking to canceled. Already-canceled rows are a no-op.
func (r *PostgresBookingRepository) Cancel(ctx context.Context, id string, reason string, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `
		UPDATE bookings SET
			status = 'canceled',
			status_reason = $2,
			canceled_at = $3,
			updated_at = $3
		WHERE id = $1 AND status <> 'canceled'
	`

	result, err := r.pool.Exec(ctx, query, id, reason, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to cancel booking: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Distinguish "no such booking" from an idempotent re-cancel.
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check booking existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrBookingNotFound
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// Confirm moves a completed (paid) booking to confirmed.
func (r *PostgresBookingRepository) Confirm(ctx context.Context, id string, now time.Time) error {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", id))

	query := `
		UPDATE bookings SET
			status = 'confirmed',
			updated_at = $2
		WHERE id = $1 AND status = 'completed'
	`

	result, err := r.pool.Exec(ctx, query, id, now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("failed to confirm booking: %w", err)
	}
	if result.RowsAffected() == 0 {
		var exists bool
		if err := r.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM bookings WHERE id = $1)`, id).Scan(&exists); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return fmt.Errorf("failed to check booking existence: %w", err)
		}
		if !exists {
			span.SetStatus(codes.Error, "not found")
			return domain.ErrBookingNotFound
		}
		span.SetStatus(codes.Error, "not paid")
		return domain.ErrNotPaid
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

// CancelExpired bulk-cancels pending holds past their deadline.
func (r *PostgresBookingRepository) CancelExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.cancel_expired")
	defer span.End()

	query := `
		UPDATE bookings SET
			status = 'canceled',
			status_reason = 'hold expired',
			canceled_at = $1,
			updated_at = $1
		WHERE id IN (
			SELECT id FROM bookings
			WHERE status = 'pending' AND expires_at < $1
			LIMIT $2
		)
	`

	result, err := r.pool.Exec(ctx, query, now, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return 0, fmt.Errorf("failed to cancel expired holds: %w", err)
	}

	count := int(result.RowsAffected())
	span.SetAttributes(attribute.Int("count", count))
	span.SetStatus(codes.Ok, "")
	return count, nil
}

// ListByPlayer retrieves a player's bookings, newest first.
func (r *PostgresBookingRepository) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.list_by_player")
	defer span.End()

	span.SetAttributes(attribute.String("player_id", playerID))

	query := `SELECT ` + bookingColumns + `
		FROM bookings
		WHERE player_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.pool.Query(ctx, query, playerID, limit, offset)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	bookings, err := collectBookings(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// Search runs the owner-side booking search. The query is assembled
// deterministically from the filter's set fields.
func (r *PostgresBookingRepository) Search(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.booking.search")
	defer span.End()

	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if filter.SubFieldID != "" {
		add("sub_field_id = $%d", filter.SubFieldID)
	}
	if filter.PlayerID != "" {
		add("player_id = $%d", filter.PlayerID)
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = s.String()
		}
		add("status = ANY($%d)", statuses)
	}
	if filter.From != nil {
		add("start_time >= $%d", *filter.From)
	}
	if filter.To != nil {
		add("start_time < $%d", *filter.To)
	}

	query := `SELECT ` + bookingColumns + ` FROM bookings`
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY start_time DESC"

	limit := filter.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))
	args = append(args, filter.Offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to search bookings: %w", err)
	}
	defer rows.Close()

	bookings, err := collectBookings(rows)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("count", len(bookings)))
	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// scanBooking scans one row in bookingColumns order.
func scanBooking(row pgx.Row) (*domain.Booking, error) {
	booking := &domain.Booking{}
	var (
		status       string
		statusReason *string
		recurringID  *string
		paymentID    *string
	)

	err := row.Scan(
		&booking.ID,
		&booking.SubFieldID,
		&booking.PlayerID,
		&booking.StartTime,
		&booking.EndTime,
		&booking.TotalPrice,
		&booking.Currency,
		&status,
		&statusReason,
		&booking.ExpiresAt,
		&recurringID,
		&paymentID,
		&booking.PaidAt,
		&booking.CanceledAt,
		&booking.CreatedAt,
		&booking.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	booking.Status = domain.BookingStatus(status)
	if statusReason != nil {
		booking.StatusReason = *statusReason
	}
	if recurringID != nil {
		booking.RecurringBookingID = *recurringID
	}
	if paymentID != nil {
		booking.PaymentID = *paymentID
	}
	return booking, nil
}

func collectBookings(rows pgx.Rows) ([]*domain.Booking, error) {
	var bookings []*domain.Booking
	for rows.Next() {
		booking, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bookings: %w", err)
	}
	return bookings, nil
}

// isOverlapViolation matches the bookings_no_overlap exclusion constraint
// (SQLSTATE 23P01) and unique violations (23505).
func isOverlapViolation(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23P01" || pgErr.Code == "23505"
}

// nullString converts an empty string to a NULL parameter.
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ BookingRepository = (*PostgresBookingRepository)(nil)
