package gateway

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
)

const alphanumericChars = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func randomAlphanumeric(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = alphanumericChars[rand.Intn(len(alphanumericChars))]
	}
	return string(b)
}

// MockGateway implements PaymentGateway in memory for local development and
// load testing. Intents are held in a map so cancel can find them.
type MockGateway struct {
	mu      sync.Mutex
	intents map[string]*PaymentIntentResponse
}

// NewMockGateway creates a new mock gateway
func NewMockGateway() *MockGateway {
	return &MockGateway{intents: make(map[string]*PaymentIntentResponse)}
}

// CreatePaymentIntent fabricates a Stripe-shaped intent.
func (g *MockGateway) CreatePaymentIntent(ctx context.Context, req *PaymentIntentRequest) (*PaymentIntentResponse, error) {
	if req == nil {
		return nil, fmt.Errorf("payment intent request is required")
	}

	resp := &PaymentIntentResponse{
		PaymentIntentID: "pi_mock_" + randomAlphanumeric(24),
		ClientSecret:    "pi_mock_secret_" + randomAlphanumeric(24),
		Status:          "requires_payment_method",
		Amount:          req.Amount,
		Currency:        req.Currency,
	}

	g.mu.Lock()
	g.intents[resp.PaymentIntentID] = resp
	g.mu.Unlock()

	return resp, nil
}

// CancelPaymentIntent voids a previously created mock intent.
func (g *MockGateway) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	intent, ok := g.intents[paymentIntentID]
	if !ok {
		return fmt.Errorf("payment intent not found: %s", paymentIntentID)
	}
	intent.Status = "canceled"
	return nil
}

// Name returns the gateway name
func (g *MockGateway) Name() string {
	return "mock"
}

var _ PaymentGateway = (*MockGateway)(nil)
