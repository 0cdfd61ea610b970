package dto

import (
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
)

// CreateRecurringBookingRequest asks for a series of holds on one sub-field.
// StartDate and EndDate are calendar dates (time-of-day ignored); TimeOfDay
// and Duration fix the slot on each occurrence.
type CreateRecurringBookingRequest struct {
	SubFieldID     string    `json:"sub_field_id" binding:"required,uuid"`
	RecurrenceType string    `json:"recurrence_type" binding:"required,oneof=weekly monthly"`
	StartDate      time.Time `json:"start_date" binding:"required"`
	EndDate        time.Time `json:"end_date" binding:"required"`
	TimeOfDay      string    `json:"time_of_day" binding:"required"` // "19:00"
	DurationMin    int       `json:"duration_min" binding:"required,min=30,max=720"`
}

// RecurringBookingResponse is the parent plus its child bookings.
type RecurringBookingResponse struct {
	ID             string             `json:"id"`
	PlayerID       string             `json:"player_id"`
	SubFieldID     string             `json:"sub_field_id"`
	RecurrenceType string             `json:"recurrence_type"`
	StartDate      time.Time          `json:"start_date"`
	EndDate        time.Time          `json:"end_date"`
	Status         string             `json:"status"`
	TotalPrice     float64            `json:"total_price"`
	Currency       string             `json:"currency"`
	CreatedAt      time.Time          `json:"created_at"`
	Children       []*BookingResponse `json:"children,omitempty"`
}

// RecurringFromDomain converts a domain recurring booking to its API shape.
func RecurringFromDomain(r *domain.RecurringBooking) *RecurringBookingResponse {
	resp := &RecurringBookingResponse{
		ID:             r.ID,
		PlayerID:       r.PlayerID,
		SubFieldID:     r.SubFieldID,
		RecurrenceType: r.RecurrenceType.String(),
		StartDate:      r.StartDate,
		EndDate:        r.EndDate,
		Status:         r.Status.String(),
		TotalPrice:     r.TotalPrice,
		Currency:       r.Currency,
		CreatedAt:      r.CreatedAt,
	}
	if len(r.Children) > 0 {
		resp.Children = BookingsFromDomain(r.Children)
	}
	return resp
}

// SlotConflictResponse pinpoints the occurrence that collided in a
// recurring request.
type SlotConflictResponse struct {
	SlotIndex int       `json:"slot_index"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time"`
}
