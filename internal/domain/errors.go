package domain

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors. All of these are expected, user-facing outcomes: handlers
// translate them into responses and nothing logs them as failures.
var (
	// Validation errors
	ErrInvalidSubFieldID = errors.New("invalid sub-field id")
	ErrInvalidPlayerID   = errors.New("invalid player id")
	ErrInvalidBookingID  = errors.New("invalid booking id")
	ErrInvalidInterval   = errors.New("start time must be before end time")
	ErrStartInPast       = errors.New("start time is in the past")
	ErrInvalidRecurrence = errors.New("invalid recurrence type")
	ErrInvalidTimeOfDay  = errors.New("invalid time of day")
	ErrInvalidTotalPrice = errors.New("total price cannot be negative")

	// Not-found errors
	ErrBookingNotFound   = errors.New("booking not found")
	ErrSubFieldNotFound  = errors.New("sub-field not found")
	ErrRecurringNotFound = errors.New("recurring booking not found")

	// Conflict errors
	ErrSlotTaken     = errors.New("slot is already taken")
	ErrAlreadyBooked = errors.New("an identical recurring booking already exists")

	// Pricing errors
	ErrNoPricingForDay     = errors.New("no pricing rule for that day")
	ErrOutOfOperatingHours = errors.New("interval is outside operating hours")

	// Expiry errors
	ErrHoldExpired = errors.New("booking hold has expired")

	// Forbidden errors
	ErrForbidden = errors.New("actor has no rights over this booking")

	// Lifecycle errors
	ErrStartTimePassed = errors.New("booking has already started")
	ErrInvalidStatus   = errors.New("booking is not in a state that allows this transition")
	ErrNotPaid         = errors.New("booking has no settled payment")
)

// SlotConflictError reports which generated slot collided so the caller can
// show the offending occurrence in a recurring request.
type SlotConflictError struct {
	SlotIndex int
	Start     time.Time
	End       time.Time
}

func (e *SlotConflictError) Error() string {
	return fmt.Sprintf("slot %d (%s - %s): %v",
		e.SlotIndex, e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339), ErrSlotTaken)
}

func (e *SlotConflictError) Unwrap() error { return ErrSlotTaken }

// IsValidationError checks if the error is a validation error
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidSubFieldID) ||
		errors.Is(err, ErrInvalidPlayerID) ||
		errors.Is(err, ErrInvalidBookingID) ||
		errors.Is(err, ErrInvalidInterval) ||
		errors.Is(err, ErrStartInPast) ||
		errors.Is(err, ErrInvalidRecurrence) ||
		errors.Is(err, ErrInvalidTimeOfDay) ||
		errors.Is(err, ErrInvalidTotalPrice) ||
		errors.Is(err, ErrStartTimePassed) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrNotPaid)
}

// IsNotFoundError checks if the error is a not-found error
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrSubFieldNotFound) ||
		errors.Is(err, ErrRecurringNotFound)
}

// IsConflictError checks if the error is a conflict error
func IsConflictError(err error) bool {
	return errors.Is(err, ErrSlotTaken) ||
		errors.Is(err, ErrAlreadyBooked)
}

// IsPricingError checks if the error is a pricing error
func IsPricingError(err error) bool {
	return errors.Is(err, ErrNoPricingForDay) ||
		errors.Is(err, ErrOutOfOperatingHours)
}

// IsExpiredError checks if the error is an expiry error
func IsExpiredError(err error) bool {
	return errors.Is(err, ErrHoldExpired)
}

// IsForbiddenError checks if the error is a permission error
func IsForbiddenError(err error) bool {
	return errors.Is(err, ErrForbidden)
}
