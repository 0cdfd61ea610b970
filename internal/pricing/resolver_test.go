package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
)

// mockRuleSource returns canned rules per (subField, weekday)
type mockRuleSource struct {
	ListBySubFieldAndDayFunc func(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error)
}

func (m *mockRuleSource) ListBySubFieldAndDay(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
	if m.ListBySubFieldAndDayFunc != nil {
		return m.ListBySubFieldAndDayFunc(ctx, subFieldID, dayOfWeek)
	}
	return nil, nil
}

func ruleAt(id string, startHour, endHour int, price float64) *domain.PricingRule {
	return &domain.PricingRule{
		ID:         id,
		SubFieldID: "field-1",
		DayOfWeek:  4,
		StartTime:  time.Date(2000, 1, 1, startHour, 0, 0, 0, time.UTC),
		EndTime:    time.Date(2000, 1, 1, endHour%24, 0, 0, 0, time.UTC),
		BasePrice:  price,
	}
}

func TestResolver_Resolve(t *testing.T) {
	rules := []*domain.PricingRule{
		ruleAt("rule-day", 17, 21, 100),
		ruleAt("rule-night", 21, 23, 150),
	}

	src := &mockRuleSource{
		ListBySubFieldAndDayFunc: func(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
			if dayOfWeek == 4 {
				return rules, nil
			}
			return nil, nil
		},
	}
	r := NewResolver(src)

	tests := []struct {
		name        string
		weekday     int
		startMinute int
		endMinute   int
		wantRule    string
		wantErr     error
	}{
		{
			name:        "fully contained in one rule",
			weekday:     4,
			startMinute: 18 * 60,
			endMinute:   20 * 60,
			wantRule:    "rule-day",
		},
		{
			name:        "exactly matches rule bounds",
			weekday:     4,
			startMinute: 21 * 60,
			endMinute:   23 * 60,
			wantRule:    "rule-night",
		},
		{
			name:        "spans two adjacent rules",
			weekday:     4,
			startMinute: 20 * 60,
			endMinute:   22 * 60,
			wantErr:     domain.ErrOutOfOperatingHours,
		},
		{
			name:        "before opening",
			weekday:     4,
			startMinute: 8 * 60,
			endMinute:   9 * 60,
			wantErr:     domain.ErrOutOfOperatingHours,
		},
		{
			name:        "no rules for weekday",
			weekday:     1,
			startMinute: 18 * 60,
			endMinute:   19 * 60,
			wantErr:     domain.ErrNoPricingForDay,
		},
		{
			name:        "inverted interval",
			weekday:     4,
			startMinute: 20 * 60,
			endMinute:   18 * 60,
			wantErr:     domain.ErrInvalidInterval,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, err := r.Resolve(context.Background(), "field-1", tt.weekday, tt.startMinute, tt.endMinute)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantRule, rule.ID)
		})
	}
}

func TestResolver_MidnightEnd(t *testing.T) {
	// A rule ending at 00:00 runs until midnight.
	src := &mockRuleSource{
		ListBySubFieldAndDayFunc: func(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
			return []*domain.PricingRule{ruleAt("rule-late", 22, 24, 180)}, nil
		},
	}
	r := NewResolver(src)

	rule, err := r.Resolve(context.Background(), "field-1", 4, 22*60, 24*60)
	require.NoError(t, err)
	assert.Equal(t, "rule-late", rule.ID)
}

func TestQuote(t *testing.T) {
	rule := ruleAt("rule-day", 17, 21, 100)

	// Two hours at 100/h.
	assert.InDelta(t, 200, Quote(rule, 18*60, 20*60), 1e-9)
	// 90 minutes is billed pro rata.
	assert.InDelta(t, 150, Quote(rule, 18*60, 19*60+30), 1e-9)
}
