package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/dto"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/middleware"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/service"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/response"
)

// BookingHandler exposes the single-booking lifecycle over HTTP
type BookingHandler struct {
	reservations *service.ReservationService
}

// NewBookingHandler creates a new BookingHandler
func NewBookingHandler(reservations *service.ReservationService) *BookingHandler {
	return &BookingHandler{reservations: reservations}
}

// Create handles POST /api/v1/bookings
func (h *BookingHandler) Create(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	booking, err := h.reservations.CreateBooking(c.Request.Context(), middleware.UserID(c), req.SubFieldID, req.StartTime, req.EndTime)
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.Created(c, dto.BookingFromDomain(booking))
}

// Get handles GET /api/v1/bookings/:id
func (h *BookingHandler) Get(c *gin.Context) {
	booking, err := h.reservations.GetBooking(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.BookingFromDomain(booking))
}

// Review handles POST /api/v1/bookings/:id/review
func (h *BookingHandler) Review(c *gin.Context) {
	result, err := h.reservations.ReviewBooking(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}

	response.Success(c, dto.ReviewBookingResponse{
		Booking:     dto.BookingFromDomain(result.Booking),
		PaymentRef:  result.PaymentRef,
		CheckoutURL: result.ClientSecret,
	})
}

// Cancel handles POST /api/v1/bookings/:id/cancel
func (h *BookingHandler) Cancel(c *gin.Context) {
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		response.BadRequest(c, err.Error())
		return
	}

	booking, err := h.reservations.CancelBooking(c.Request.Context(), middleware.UserID(c), c.Param("id"), req.Reason)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.BookingFromDomain(booking))
}

// Confirm handles POST /api/v1/bookings/:id/confirm (owner only)
func (h *BookingHandler) Confirm(c *gin.Context) {
	booking, err := h.reservations.ConfirmBooking(c.Request.Context(), middleware.UserID(c), c.Param("id"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.BookingFromDomain(booking))
}

// ListMine handles GET /api/v1/bookings
func (h *BookingHandler) ListMine(c *gin.Context) {
	var req struct {
		Limit  int `form:"limit" binding:"omitempty,min=1,max=100"`
		Offset int `form:"offset" binding:"omitempty,min=0"`
	}
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	bookings, err := h.reservations.ListPlayerBookings(c.Request.Context(), middleware.UserID(c), req.Limit, req.Offset)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.BookingsFromDomain(bookings))
}

// Search handles GET /api/v1/owner/bookings (owner only)
func (h *BookingHandler) Search(c *gin.Context) {
	var req dto.SearchBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	filter := repository.BookingFilter{
		SubFieldID: req.SubFieldID,
		PlayerID:   req.PlayerID,
		From:       req.From,
		To:         req.To,
		Limit:      req.Limit,
		Offset:     req.Offset,
	}
	for _, s := range req.Status {
		filter.Statuses = append(filter.Statuses, domain.BookingStatus(s))
	}

	bookings, err := h.reservations.SearchBookings(c.Request.Context(), middleware.UserID(c), filter)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	response.Success(c, dto.BookingsFromDomain(bookings))
}
