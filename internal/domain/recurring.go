package domain

import (
	"strings"
	"time"
)

// RecurrenceType is the cadence of a recurring booking
type RecurrenceType string

const (
	RecurrenceWeekly  RecurrenceType = "weekly"
	RecurrenceMonthly RecurrenceType = "monthly"
)

// IsValid checks if the recurrence type is known
func (t RecurrenceType) IsValid() bool {
	return t == RecurrenceWeekly || t == RecurrenceMonthly
}

func (t RecurrenceType) String() string {
	return string(t)
}

// RecurringBooking groups the child bookings generated from one recurrence
// request. All children are created in the same transaction and share one
// hold deadline; the parent status mirrors the aggregate state.
type RecurringBooking struct {
	ID             string         `json:"id"`
	PlayerID       string         `json:"player_id"`
	SubFieldID     string         `json:"sub_field_id"`
	RecurrenceType RecurrenceType `json:"recurrence_type"`
	StartDate      time.Time      `json:"start_date"`
	EndDate        time.Time      `json:"end_date"`
	Status         BookingStatus  `json:"status"`
	TotalPrice     float64        `json:"total_price"`
	Currency       string         `json:"currency"`
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`

	// Children are loaded on demand; not every query hydrates them.
	Children []*Booking `json:"children,omitempty"`
}

// Validate checks the fields a new recurring booking must carry.
func (r *RecurringBooking) Validate() error {
	if strings.TrimSpace(r.SubFieldID) == "" {
		return ErrInvalidSubFieldID
	}
	if strings.TrimSpace(r.PlayerID) == "" {
		return ErrInvalidPlayerID
	}
	if !r.RecurrenceType.IsValid() {
		return ErrInvalidRecurrence
	}
	if r.EndDate.Before(r.StartDate) {
		return ErrInvalidInterval
	}
	return nil
}

// HasSettledChild reports whether any child has been paid or confirmed.
// Duplicate checks judge the children as well as the parent row, so a
// snapshot taken before settlement promoted the parent cannot hide a paid
// series.
func (r *RecurringBooking) HasSettledChild() bool {
	for _, c := range r.Children {
		if c.IsCompleted() || c.IsConfirmed() {
			return true
		}
	}
	return false
}

// AllChildrenConfirmed reports whether every surviving child is confirmed.
// Canceled children do not count against the series; an all-canceled series
// reports false.
func (r *RecurringBooking) AllChildrenConfirmed() bool {
	confirmed := 0
	for _, c := range r.Children {
		if c.IsCanceled() {
			continue
		}
		if !c.IsConfirmed() {
			return false
		}
		confirmed++
	}
	return confirmed > 0
}

// FirstChild returns the earliest child booking. Children share one hold
// deadline, so the first child is enough to decide aggregate expiry.
func (r *RecurringBooking) FirstChild() *Booking {
	if len(r.Children) == 0 {
		return nil
	}
	first := r.Children[0]
	for _, c := range r.Children[1:] {
		if c.StartTime.Before(first.StartTime) {
			first = c
		}
	}
	return first
}
