package handler

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/gateway"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/service"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
)

// WebhookHandler receives asynchronous settlement events from Stripe
type WebhookHandler struct {
	payments      *service.PaymentService
	webhookSecret string
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(payments *service.PaymentService, webhookSecret string) *WebhookHandler {
	return &WebhookHandler{payments: payments, webhookSecret: webhookSecret}
}

// HandleStripeWebhook handles POST /webhooks/stripe. The response contract
// is Stripe's: 2xx acknowledges, anything else triggers redelivery.
func (h *WebhookHandler) HandleStripeWebhook(c *gin.Context) {
	log := logger.Get()

	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		log.Errorf("Failed to read webhook body: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to read request body"})
		return
	}

	sigHeader := c.GetHeader("Stripe-Signature")
	if sigHeader == "" {
		log.Warn("Missing Stripe-Signature header")
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing Stripe-Signature header"})
		return
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, h.webhookSecret)
	if err != nil {
		log.Errorf("Failed to verify webhook signature: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid signature"})
		return
	}

	switch event.Type {
	case "payment_intent.succeeded":
		h.handlePaymentIntentSucceeded(c, event)
	case "checkout.session.completed":
		h.handleCheckoutSessionCompleted(c, event)
	case "payment_intent.payment_failed":
		h.handlePaymentIntentFailed(c, event)
	default:
		log.Infof("Unhandled event type: %s", event.Type)
		c.JSON(http.StatusOK, gin.H{"received": true, "message": "Event type not handled"})
	}
}

func (h *WebhookHandler) handlePaymentIntentSucceeded(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		log.Errorf("Failed to parse payment_intent.succeeded: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return
	}

	bookingIDs := splitBookingIDs(paymentIntent.Metadata[gateway.MetadataBookingIDs])
	if len(bookingIDs) == 0 {
		// Not a booking payment; acknowledge and move on.
		log.Warnf("payment_intent.succeeded %s carries no booking ids", paymentIntent.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	moved, err := h.payments.Settle(c.Request.Context(), &service.Settlement{
		GatewayEventID:   event.ID,
		GatewayPaymentID: paymentIntent.ID,
		Amount:           float64(paymentIntent.Amount) / 100,
		Currency:         string(paymentIntent.Currency),
		BookingIDs:       bookingIDs,
	})
	if err != nil {
		log.Errorf("Failed to settle event %s: %v", event.ID, err)
		// Non-2xx so Stripe redelivers.
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		return
	}

	log.Infof("Settled event %s: %d bookings completed", event.ID, moved)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

// handleCheckoutSessionCompleted settles hosted-checkout payments. The
// session carries the same booking-id metadata as a direct intent.
func (h *WebhookHandler) handleCheckoutSessionCompleted(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		log.Errorf("Failed to parse checkout.session.completed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return
	}

	bookingIDs := splitBookingIDs(session.Metadata[gateway.MetadataBookingIDs])
	if len(bookingIDs) == 0 {
		log.Warnf("checkout.session.completed %s carries no booking ids", session.ID)
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	gatewayPaymentID := session.ID
	if session.PaymentIntent != nil {
		gatewayPaymentID = session.PaymentIntent.ID
	}

	moved, err := h.payments.Settle(c.Request.Context(), &service.Settlement{
		GatewayEventID:   event.ID,
		GatewayPaymentID: gatewayPaymentID,
		Amount:           float64(session.AmountTotal) / 100,
		Currency:         string(session.Currency),
		BookingIDs:       bookingIDs,
	})
	if err != nil {
		log.Errorf("Failed to settle event %s: %v", event.ID, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "settlement failed"})
		return
	}

	log.Infof("Settled event %s: %d bookings completed", event.ID, moved)
	c.JSON(http.StatusOK, gin.H{"received": true})
}

func (h *WebhookHandler) handlePaymentIntentFailed(c *gin.Context, event stripe.Event) {
	log := logger.Get()

	var paymentIntent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &paymentIntent); err != nil {
		log.Errorf("Failed to parse payment_intent.payment_failed: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": "Failed to parse event data"})
		return
	}

	reason := "payment failed"
	if paymentIntent.LastPaymentError != nil && paymentIntent.LastPaymentError.Msg != "" {
		reason = paymentIntent.LastPaymentError.Msg
	}

	bookingIDs := splitBookingIDs(paymentIntent.Metadata[gateway.MetadataBookingIDs])
	h.payments.HandleFailure(c.Request.Context(), event.ID, bookingIDs, reason)

	c.JSON(http.StatusOK, gin.H{"received": true})
}

func splitBookingIDs(raw string) []string {
	if raw == "" {
		return nil
	}
	var out []string
	for _, id := range strings.Split(raw, ",") {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
