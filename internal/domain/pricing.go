package domain

import "time"

// PricingRule prices one (weekday, time-of-day range) window of a sub-field.
// StartTime and EndTime are wall-clock labels: only their hour and minute are
// meaningful, the date component is ignored and they are never re-interpreted
// through a time zone. Rules for the same (sub-field, weekday) never overlap;
// owner-side writes enforce that before a rule reaches this engine.
type PricingRule struct {
	ID         string    `json:"id"`
	SubFieldID string    `json:"sub_field_id"`
	DayOfWeek  int       `json:"day_of_week"` // 0=Sunday .. 6=Saturday
	StartTime  time.Time `json:"start_time"`
	EndTime    time.Time `json:"end_time"`
	BasePrice  float64   `json:"base_price"` // per hour
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// SubField is a single bookable playing surface within a complex.
type SubField struct {
	ID        string    `json:"id"`
	ComplexID string    `json:"complex_id"`
	OwnerID   string    `json:"owner_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
