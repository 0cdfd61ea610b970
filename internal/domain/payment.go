package domain

import "time"

// PaymentStatus represents the state of a payment record
type PaymentStatus string

const (
	PaymentStatusSucceeded PaymentStatus = "succeeded"
	PaymentStatusFailed    PaymentStatus = "failed"
)

// Payment is the settlement record created when the gateway reports funds
// captured for one or more bookings. GatewayEventID makes replayed webhook
// deliveries idempotent.
type Payment struct {
	ID               string        `json:"id"`
	GatewayEventID   string        `json:"gateway_event_id"`
	GatewayPaymentID string        `json:"gateway_payment_id"`
	Amount           float64       `json:"amount"`
	Currency         string        `json:"currency"`
	Status           PaymentStatus `json:"status"`
	BookingIDs       []string      `json:"booking_ids"`
	CreatedAt        time.Time     `json:"created_at"`
}
