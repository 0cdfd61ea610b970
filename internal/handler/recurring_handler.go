package handler

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/dto"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/middleware"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/service"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/response"
)

// RecurringHandler exposes recurring booking aggregates over HTTP
type RecurringHandler struct {
	recurring *service.RecurringService
}

// NewRecurringHandler creates a new RecurringHandler
func NewRecurringHandler(recurring *service.RecurringService) *RecurringHandler {
	return &RecurringHandler{recurring: recurring}
}

// Create handles POST /api/v1/recurring-bookings
func (h *RecurringHandler) Create(c *gin.Context) {
	var req dto.CreateRecurringBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	timeOfDay, err := time.Parse("15:04", req.TimeOfDay)
	if err != nil {
		response.BadRequest(c, "time_of_day must be HH:MM")
		return
	}

	parent, err := h.recurring.Generate(c.Request.Context(), &service.RecurringRequest{
		PlayerID:       middleware.UserID(c),
		SubFieldID:     req.SubFieldID,
		RecurrenceType: domain.RecurrenceType(req.RecurrenceType),
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		TimeOfDay:      timeOfDay,
		Duration:       time.Duration(req.DurationMin) * time.Minute,
	})
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.Created(c, dto.RecurringFromDomain(parent))
}

// Get handles GET /api/v1/recurring-bookings/:id
func (h *RecurringHandler) Get(c *gin.Context) {
	parent, err := h.recurring.GetRecurring(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.RecurringFromDomain(parent))
}

// Review handles POST /api/v1/recurring-bookings/:id/review
func (h *RecurringHandler) Review(c *gin.Context) {
	parent, intent, err := h.recurring.Review(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.Success(c, gin.H{
		"recurring_booking": dto.RecurringFromDomain(parent),
		"payment_ref":       intent.PaymentIntentID,
		"client_secret":     intent.ClientSecret,
	})
}

// Cancel handles POST /api/v1/recurring-bookings/:id/cancel
func (h *RecurringHandler) Cancel(c *gin.Context) {
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	if err := h.recurring.Cancel(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Reason); err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, gin.H{"canceled": true})
}
