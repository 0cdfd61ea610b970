package gateway

import "context"

// PaymentIntentRequest asks the gateway to open a payment for one or more
// bookings. BookingIDs travel in the intent metadata and come back with the
// settlement webhook, so the reconciler knows which holds to complete.
type PaymentIntentRequest struct {
	Amount      float64
	Currency    string
	BookingIDs  []string
	PlayerID    string
	Description string
}

// PaymentIntentResponse carries the gateway's side of an opened payment.
type PaymentIntentResponse struct {
	PaymentIntentID string
	ClientSecret    string
	Status          string
	Amount          float64
	Currency        string
}

// PaymentGateway is the payment provider abstraction. The engine only opens
// intents; settlement arrives asynchronously through the webhook.
type PaymentGateway interface {
	// CreatePaymentIntent opens a payment the client completes out of band.
	CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error)

	// CancelPaymentIntent voids an open intent, e.g. when the hold behind it
	// is canceled before payment.
	CancelPaymentIntent(ctx context.Context, paymentIntentID string) error

	// Name identifies the gateway in logs and payment records.
	Name() string
}
