package domain

import (
	"strings"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	// BookingStatusPending is a hold: the slot is reserved until ExpiresAt.
	BookingStatusPending BookingStatus = "pending"
	// BookingStatusCompleted means payment settled; awaiting owner confirmation.
	BookingStatusCompleted BookingStatus = "completed"
	// BookingStatusConfirmed means the owner confirmed a paid booking.
	BookingStatusConfirmed BookingStatus = "confirmed"
	// BookingStatusCanceled is terminal: explicit cancel or hold expiry.
	BookingStatusCanceled BookingStatus = "canceled"
)

// IsValid checks if the status is a known BookingStatus
func (s BookingStatus) IsValid() bool {
	switch s {
	case BookingStatusPending, BookingStatusCompleted, BookingStatusConfirmed, BookingStatusCanceled:
		return true
	}
	return false
}

// String returns the string representation of BookingStatus
func (s BookingStatus) String() string {
	return string(s)
}

// Booking reserves one [StartTime, EndTime) interval on one sub-field.
// Bookings are never hard-deleted; the status moves instead.
type Booking struct {
	ID                 string        `json:"id"`
	SubFieldID         string        `json:"sub_field_id"`
	PlayerID           string        `json:"player_id"`
	StartTime          time.Time     `json:"start_time"`
	EndTime            time.Time     `json:"end_time"`
	TotalPrice         float64       `json:"total_price"`
	Currency           string        `json:"currency"`
	Status             BookingStatus `json:"status"`
	StatusReason       string        `json:"status_reason,omitempty"`
	ExpiresAt          time.Time     `json:"expires_at"`
	RecurringBookingID string        `json:"recurring_booking_id,omitempty"`
	PaymentID          string        `json:"payment_id,omitempty"`
	PaidAt             *time.Time    `json:"paid_at,omitempty"`
	CanceledAt         *time.Time    `json:"canceled_at,omitempty"`
	CreatedAt          time.Time     `json:"created_at"`
	UpdatedAt          time.Time     `json:"updated_at"`
}

// Validate checks the fields a new booking must carry.
func (b *Booking) Validate() error {
	if strings.TrimSpace(b.SubFieldID) == "" {
		return ErrInvalidSubFieldID
	}
	if strings.TrimSpace(b.PlayerID) == "" {
		return ErrInvalidPlayerID
	}
	if !b.StartTime.Before(b.EndTime) {
		return ErrInvalidInterval
	}
	if b.TotalPrice < 0 {
		return ErrInvalidTotalPrice
	}
	return nil
}

// BelongsToPlayer checks ownership.
func (b *Booking) BelongsToPlayer(playerID string) bool {
	return b.PlayerID == playerID
}

func (b *Booking) IsPending() bool   { return b.Status == BookingStatusPending }
func (b *Booking) IsCompleted() bool { return b.Status == BookingStatusCompleted }
func (b *Booking) IsConfirmed() bool { return b.Status == BookingStatusConfirmed }
func (b *Booking) IsCanceled() bool  { return b.Status == BookingStatusCanceled }

// HoldExpired reports whether a pending hold has passed its deadline.
// Only meaningful while the booking is pending.
func (b *Booking) HoldExpired(now time.Time) bool {
	return b.IsPending() && now.After(b.ExpiresAt)
}

// Blocks reports whether this booking excludes other bookings from its slot
// as of now: confirmed or completed bookings always block, pending holds block
// until their deadline.
func (b *Booking) Blocks(now time.Time) bool {
	switch b.Status {
	case BookingStatusConfirmed, BookingStatusCompleted:
		return true
	case BookingStatusPending:
		return b.ExpiresAt.After(now)
	}
	return false
}

// Overlaps applies the half-open interval overlap test against [start, end).
func (b *Booking) Overlaps(start, end time.Time) bool {
	return b.StartTime.Before(end) && b.EndTime.After(start)
}
