package repository

import (
	"context"
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
)

// BookingFilter is the typed search filter for owner-side booking queries.
// Every field is optional; the query is built deterministically from the
// fields that are set.
type BookingFilter struct {
	SubFieldID string
	PlayerID   string
	Statuses   []domain.BookingStatus
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// BookingRepository persists bookings and answers the overlap queries the
// conflict detector needs.
type BookingRepository interface {
	// Create inserts a pending hold. A storage-level overlap constraint
	// violation is returned as domain.ErrSlotTaken.
	Create(ctx context.Context, booking *domain.Booking) error

	GetByID(ctx context.Context, id string) (*domain.Booking, error)

	// GetBlockingOverlap returns one existing booking on the sub-field that
	// blocks [start, end) as of now: confirmed, completed, or an unexpired
	// pending hold. excludeID (may be empty) is skipped. Returns nil when
	// the slot is free.
	GetBlockingOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string, now time.Time) (*domain.Booking, error)

	// HasConfirmedOverlap reports whether a confirmed booking overlaps
	// [start, end), excluding excludeID. Used by the pre-payment review.
	HasConfirmedOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string) (bool, error)

	// CancelExpiredOverlapping lazily cancels pending holds on the sub-field
	// that overlap [start, end) and are past their deadline, clearing the
	// way for the storage-level no-overlap constraint.
	CancelExpiredOverlapping(ctx context.Context, subFieldID string, start, end time.Time, now time.Time) error

	// ExtendHold pushes a pending hold's deadline to expiresAt.
	ExtendHold(ctx context.Context, id string, expiresAt time.Time) error

	// Cancel moves a booking to canceled. Cancelling an already canceled
	// booking is a no-op.
	Cancel(ctx context.Context, id string, reason string, now time.Time) error

	// Confirm moves a completed (paid) booking to confirmed.
	Confirm(ctx context.Context, id string, now time.Time) error

	// CancelExpired bulk-cancels pending holds past their deadline and
	// returns how many rows moved.
	CancelExpired(ctx context.Context, now time.Time, limit int) (int, error)

	ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Booking, error)
	Search(ctx context.Context, filter BookingFilter) ([]*domain.Booking, error)
}

// PricingRuleRepository reads the owner-managed price schedule. The
// reservation engine never writes rules.
type PricingRuleRepository interface {
	ListBySubFieldAndDay(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error)
}

// SubFieldRepository reads sub-field metadata for ownership checks.
type SubFieldRepository interface {
	GetByID(ctx context.Context, id string) (*domain.SubField, error)
}

// RecurringBookingRepository persists the parent/children aggregate. Every
// operation that touches both parent and children runs in one transaction.
type RecurringBookingRepository interface {
	// CreateWithChildren inserts the parent and all child bookings
	// atomically. A storage-level overlap violation on any child is
	// returned as domain.ErrSlotTaken and nothing is persisted.
	CreateWithChildren(ctx context.Context, parent *domain.RecurringBooking) error

	// GetByID loads the parent with its children.
	GetByID(ctx context.Context, id string) (*domain.RecurringBooking, error)

	// FindIdentical looks up a parent with the same player, sub-field,
	// recurrence type and date range, in any non-canceled state. Returns
	// nil when none exists.
	FindIdentical(ctx context.Context, playerID, subFieldID string, recurrenceType domain.RecurrenceType, startDate, endDate time.Time) (*domain.RecurringBooking, error)

	// ExtendChildrenHold pushes the shared hold deadline of all pending
	// children to expiresAt.
	ExtendChildrenHold(ctx context.Context, parentID string, expiresAt time.Time) error

	// CancelAggregate cancels the parent and all its non-canceled children
	// in one transaction. A no-op when already canceled.
	CancelAggregate(ctx context.Context, parentID string, reason string, now time.Time) error

	// SetStatus updates the parent status only.
	SetStatus(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error

	// ListExpiredPending returns pending parents whose children are all
	// canceled or expired holds as of now.
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringBooking, error)

	// CompleteElapsed moves confirmed parents whose end date has passed to
	// completed and returns how many rows moved.
	CompleteElapsed(ctx context.Context, now time.Time, limit int) (int, error)
}

// PaymentRepository records settlements.
type PaymentRepository interface {
	// Settle atomically inserts the payment record and moves the referenced
	// pending bookings to completed, stamping payment id and paid-at. A
	// recurring parent whose last pending child settles moves to completed
	// in the same transaction. Replays of the same gateway event are a
	// no-op; bookings already out of pending are left untouched. Returns
	// the number of bookings moved.
	Settle(ctx context.Context, payment *domain.Payment, now time.Time) (int, error)
}
