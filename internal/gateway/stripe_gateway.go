package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/paymentintent"
)

// metadata keys shared with the webhook side.
const (
	MetadataBookingIDs  = "booking_ids"
	MetadataPlayerID    = "player_id"
	MetadataPlatformFee = "platform_fee"
)

// StripeGateway implements PaymentGateway using Stripe
type StripeGateway struct {
	config *StripeGatewayConfig
}

// StripeGatewayConfig holds configuration for the Stripe gateway
type StripeGatewayConfig struct {
	SecretKey     string
	WebhookSecret string
	// PlatformFeeRate is the marketplace cut, 0..1. Recorded on the intent
	// for payout reporting; the transfer itself happens at payout time.
	PlatformFeeRate float64
}

// NewStripeGateway creates a new Stripe gateway
func NewStripeGateway(config *StripeGatewayConfig) (*StripeGateway, error) {
	if config == nil {
		return nil, fmt.Errorf("stripe config is required")
	}
	if config.SecretKey == "" {
		return nil, fmt.Errorf("stripe secret key is required")
	}

	stripe.Key = config.SecretKey

	return &StripeGateway{config: config}, nil
}

// CreatePaymentIntent opens a Stripe PaymentIntent carrying the booking ids
// in its metadata.
func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("payment intent request is required")
	}
	if len(req.BookingIDs) == 0 {
		return nil, fmt.Errorf("at least one booking id is required")
	}

	// Stripe expects the smallest currency unit.
	amountInSmallestUnit := int64(req.Amount * 100)
	platformFee := int64(float64(amountInSmallestUnit) * g.config.PlatformFeeRate)

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountInSmallestUnit),
		Currency: stripe.String(req.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{
			MetadataBookingIDs:  strings.Join(req.BookingIDs, ","),
			MetadataPlayerID:    req.PlayerID,
			MetadataPlatformFee: strconv.FormatInt(platformFee, 10),
		},
	}
	if req.Description != "" {
		params.Description = stripe.String(req.Description)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create payment intent: %w", err)
	}

	return &PaymentIntentResponse{
		PaymentIntentID: pi.ID,
		ClientSecret:    pi.ClientSecret,
		Status:          string(pi.Status),
		Amount:          req.Amount,
		Currency:        req.Currency,
	}, nil
}

// CancelPaymentIntent voids an open intent. Intents that already settled
// cannot be canceled and return an error from Stripe.
func (g *StripeGateway) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		return fmt.Errorf("payment intent ID is required")
	}

	if _, err := paymentintent.Cancel(paymentIntentID, nil); err != nil {
		return fmt.Errorf("failed to cancel payment intent: %w", err)
	}
	return nil
}

// Name returns the gateway name
func (g *StripeGateway) Name() string {
	return "stripe"
}

var _ PaymentGateway = (*StripeGateway)(nil)
