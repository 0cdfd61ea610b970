package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// PostgresPricingRuleRepository implements PricingRuleRepository using pgxpool
type PostgresPricingRuleRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresPricingRuleRepository creates a new PostgresPricingRuleRepository
func NewPostgresPricingRuleRepository(pool *pgxpool.Pool) *PostgresPricingRuleRepository {
	return &PostgresPricingRuleRepository{pool: pool}
}

// ListBySubFieldAndDay returns the rules of one sub-field for one weekday,
// ordered by start time.
func (r *PostgresPricingRuleRepository) ListBySubFieldAndDay(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.pricing_rule.list_by_sub_field_and_day")
	defer span.End()

	span.SetAttributes(
		attribute.String("sub_field_id", subFieldID),
		attribute.Int("day_of_week", dayOfWeek),
	)

	query := `
		SELECT id, sub_field_id, day_of_week, start_time, end_time, base_price, created_at, updated_at
		FROM pricing_rules
		WHERE sub_field_id = $1 AND day_of_week = $2
		ORDER BY start_time
	`

	rows, err := r.pool.Query(ctx, query, subFieldID, dayOfWeek)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to list pricing rules: %w", err)
	}
	defer rows.Close()

	var rules []*domain.PricingRule
	for rows.Next() {
		rule := &domain.PricingRule{}
		if err := rows.Scan(
			&rule.ID,
			&rule.SubFieldID,
			&rule.DayOfWeek,
			&rule.StartTime,
			&rule.EndTime,
			&rule.BasePrice,
			&rule.CreatedAt,
			&rule.UpdatedAt,
		); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("failed to scan pricing rule: %w", err)
		}
		rules = append(rules, rule)
	}
	if err := rows.Err(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("error iterating pricing rules: %w", err)
	}

	span.SetAttributes(attribute.Int("count", len(rules)))
	span.SetStatus(codes.Ok, "")
	return rules, nil
}

var _ PricingRuleRepository = (*PostgresPricingRuleRepository)(nil)

// PostgresSubFieldRepository implements SubFieldRepository using pgxpool
type PostgresSubFieldRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresSubFieldRepository creates a new PostgresSubFieldRepository
func NewPostgresSubFieldRepository(pool *pgxpool.Pool) *PostgresSubFieldRepository {
	return &PostgresSubFieldRepository{pool: pool}
}

// GetByID retrieves a sub-field by its ID
func (r *PostgresSubFieldRepository) GetByID(ctx context.Context, id string) (*domain.SubField, error) {
	ctx, span := telemetry.StartSpan(ctx, "repo.sub_field.get_by_id")
	defer span.End()

	span.SetAttributes(attribute.String("sub_field_id", id))

	query := `
		SELECT id, complex_id, owner_id, name, created_at
		FROM sub_fields
		WHERE id = $1
	`

	subField := &domain.SubField{}
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&subField.ID,
		&subField.ComplexID,
		&subField.OwnerID,
		&subField.Name,
		&subField.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			span.SetStatus(codes.Error, "not found")
			return nil, domain.ErrSubFieldNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to get sub-field: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return subField, nil
}

var _ SubFieldRepository = (*PostgresSubFieldRepository)(nil)
