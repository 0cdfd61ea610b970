package dto

import (
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
)

// CreateBookingRequest is the payload to hold one slot.
type CreateBookingRequest struct {
	SubFieldID string    `json:"sub_field_id" binding:"required,uuid"`
	StartTime  time.Time `json:"start_time" binding:"required"`
	EndTime    time.Time `json:"end_time" binding:"required"`
}

// CancelBookingRequest carries an optional cancellation reason.
type CancelBookingRequest struct {
	Reason string `json:"reason" binding:"max=500"`
}

// BookingResponse is the booking representation returned by the API.
type BookingResponse struct {
	ID                 string     `json:"id"`
	SubFieldID         string     `json:"sub_field_id"`
	PlayerID           string     `json:"player_id"`
	StartTime          time.Time  `json:"start_time"`
	EndTime            time.Time  `json:"end_time"`
	TotalPrice         float64    `json:"total_price"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	StatusReason       string     `json:"status_reason,omitempty"`
	ExpiresAt          *time.Time `json:"expires_at,omitempty"`
	RecurringBookingID string     `json:"recurring_booking_id,omitempty"`
	PaidAt             *time.Time `json:"paid_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
}

// BookingFromDomain converts a domain booking to its API shape. The hold
// deadline is only exposed while it still means something.
func BookingFromDomain(b *domain.Booking) *BookingResponse {
	resp := &BookingResponse{
		ID:                 b.ID,
		SubFieldID:         b.SubFieldID,
		PlayerID:           b.PlayerID,
		StartTime:          b.StartTime,
		EndTime:            b.EndTime,
		TotalPrice:         b.TotalPrice,
		Currency:           b.Currency,
		Status:             b.Status.String(),
		StatusReason:       b.StatusReason,
		RecurringBookingID: b.RecurringBookingID,
		PaidAt:             b.PaidAt,
		CreatedAt:          b.CreatedAt,
	}
	if b.IsPending() {
		expires := b.ExpiresAt
		resp.ExpiresAt = &expires
	}
	return resp
}

// BookingsFromDomain converts a slice of domain bookings.
func BookingsFromDomain(bookings []*domain.Booking) []*BookingResponse {
	out := make([]*BookingResponse, len(bookings))
	for i, b := range bookings {
		out[i] = BookingFromDomain(b)
	}
	return out
}

// ReviewBookingResponse is the pre-payment review: the booking plus the
// checkout the player should be sent to.
type ReviewBookingResponse struct {
	Booking     *BookingResponse `json:"booking"`
	CheckoutURL string           `json:"checkout_url,omitempty"`
	PaymentRef  string           `json:"payment_ref,omitempty"`
}

// SearchBookingsRequest is the owner-side search filter, bound from query
// parameters.
type SearchBookingsRequest struct {
	SubFieldID string     `form:"sub_field_id" binding:"omitempty,uuid"`
	PlayerID   string     `form:"player_id" binding:"omitempty,uuid"`
	Status     []string   `form:"status" binding:"omitempty,dive,oneof=pending completed confirmed canceled"`
	From       *time.Time `form:"from" time_format:"2006-01-02T15:04:05Z07:00"`
	To         *time.Time `form:"to" time_format:"2006-01-02T15:04:05Z07:00"`
	Limit      int        `form:"limit" binding:"omitempty,min=1,max=100"`
	Offset     int        `form:"offset" binding:"omitempty,min=0"`
}
