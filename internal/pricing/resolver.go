package pricing

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/timeslot"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// RuleSource provides the pricing rules of one sub-field for one weekday.
type RuleSource interface {
	ListBySubFieldAndDay(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error)
}

// Resolver finds the single pricing rule that fully contains a requested
// interval. Partial overlap is rejected rather than split-priced; a request
// spanning two rules fails with ErrOutOfOperatingHours.
type Resolver struct {
	rules RuleSource
}

// NewResolver creates a pricing resolver over the given rule source.
func NewResolver(rules RuleSource) *Resolver {
	return &Resolver{rules: rules}
}

// Resolve returns the rule containing [startMinute, endMinute) on the given
// weekday, ErrNoPricingForDay when the sub-field has no rules that day, or
// ErrOutOfOperatingHours when no single rule contains the interval.
func (r *Resolver) Resolve(ctx context.Context, subFieldID string, weekday, startMinute, endMinute int) (*domain.PricingRule, error) {
	ctx, span := telemetry.StartSpan(ctx, "pricing.resolve")
	defer span.End()

	span.SetAttributes(
		attribute.String("sub_field_id", subFieldID),
		attribute.Int("weekday", weekday),
		attribute.Int("start_minute", startMinute),
		attribute.Int("end_minute", endMinute),
	)

	if startMinute >= endMinute || startMinute < 0 || endMinute > timeslot.MinutesPerDay {
		span.SetStatus(codes.Error, "invalid interval")
		return nil, domain.ErrInvalidInterval
	}

	rules, err := r.rules.ListBySubFieldAndDay(ctx, subFieldID, weekday)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if len(rules) == 0 {
		span.SetStatus(codes.Error, "no pricing for day")
		return nil, domain.ErrNoPricingForDay
	}

	for _, rule := range rules {
		rs, re := ruleMinutes(rule)
		if startMinute >= rs && endMinute <= re {
			span.SetAttributes(attribute.String("rule_id", rule.ID))
			span.SetStatus(codes.Ok, "")
			return rule, nil
		}
	}

	span.SetStatus(codes.Error, "out of operating hours")
	return nil, domain.ErrOutOfOperatingHours
}

// Quote computes the cost of [startMinute, endMinute) under a rule.
// BasePrice is hourly; partial hours are billed pro rata.
func Quote(rule *domain.PricingRule, startMinute, endMinute int) float64 {
	return rule.BasePrice * float64(endMinute-startMinute) / 60
}

// ruleMinutes reads a rule's window as raw wall-clock minutes. A stored end
// of 00:00 means the rule runs until midnight.
func ruleMinutes(rule *domain.PricingRule) (int, int) {
	rs := timeslot.RawMinuteOfDay(rule.StartTime)
	re := timeslot.RawMinuteOfDay(rule.EndTime)
	if re == 0 {
		re = timeslot.MinutesPerDay
	}
	return rs, re
}
