package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/response"
)

// respondDomainError maps a domain error onto the HTTP surface. Anything not
// in the domain taxonomy is an internal failure and gets logged.
func respondDomainError(c *gin.Context, err error) {
	switch {
	case domain.IsValidationError(err):
		response.Error(c, http.StatusUnprocessableEntity, "VALIDATION_FAILED", err.Error(), "")
	case domain.IsNotFoundError(err):
		response.NotFound(c, err.Error())
	case domain.IsConflictError(err):
		var slotErr *domain.SlotConflictError
		if errors.As(err, &slotErr) {
			c.JSON(http.StatusConflict, response.Response{
				Success: false,
				Error: &response.ErrorData{
					Code:    "SLOT_TAKEN",
					Message: err.Error(),
				},
				Meta: gin.H{
					"slot_index": slotErr.SlotIndex,
					"start_time": slotErr.Start,
					"end_time":   slotErr.End,
				},
			})
			return
		}
		response.Conflict(c, "SLOT_TAKEN", err.Error())
	case domain.IsPricingError(err):
		response.UnprocessableEntity(c, "NOT_PRICEABLE", err.Error())
	case domain.IsExpiredError(err):
		response.Gone(c, "HOLD_EXPIRED", err.Error())
	case domain.IsForbiddenError(err):
		response.Forbidden(c, err.Error())
	default:
		logger.Get().Errorf("unhandled error: %v", err)
		response.InternalError(c, err)
	}
}
