package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/events"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/gateway"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/metrics"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/pricing"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/timeslot"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/clock"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// HoldPolicy carries the reservation engine's timing policy.
type HoldPolicy struct {
	// InitialHoldWindow is how long a fresh hold reserves the slot.
	InitialHoldWindow time.Duration
	// RecurringHoldWindow is the shared window for recurring children.
	RecurringHoldWindow time.Duration
	// PaymentHoldWindow replaces the remaining window once the player
	// enters checkout.
	PaymentHoldWindow time.Duration
	// RetryGraceWindow is the minimum runway granted when the same player
	// re-submits an identical request near the deadline.
	RetryGraceWindow time.Duration
	// Currency is the ISO code applied to every quote.
	Currency string
}

// ReviewResult is the outcome of the pre-payment review step.
type ReviewResult struct {
	Booking      *domain.Booking
	PaymentRef   string
	ClientSecret string
}

// ReservationService drives the single-booking lifecycle: quote, hold,
// review, cancel, confirm.
type ReservationService struct {
	bookings   repository.BookingRepository
	recurring  repository.RecurringBookingRepository
	subFields  repository.SubFieldRepository
	resolver   *pricing.Resolver
	normalizer *timeslot.Normalizer
	gw         gateway.PaymentGateway
	publisher  events.Publisher
	metrics    *metrics.BookingMetrics
	clock      clock.Clock
	policy     HoldPolicy
}

// NewReservationService wires the reservation service.
func NewReservationService(
	bookings repository.BookingRepository,
	recurring repository.RecurringBookingRepository,
	subFields repository.SubFieldRepository,
	resolver *pricing.Resolver,
	normalizer *timeslot.Normalizer,
	gw gateway.PaymentGateway,
	publisher events.Publisher,
	m *metrics.BookingMetrics,
	clk clock.Clock,
	policy HoldPolicy,
) *ReservationService {
	return &ReservationService{
		bookings:   bookings,
		recurring:  recurring,
		subFields:  subFields,
		resolver:   resolver,
		normalizer: normalizer,
		gw:         gw,
		publisher:  publisher,
		metrics:    m,
		clock:      clk,
		policy:     policy,
	}
}

// CreateBooking quotes and holds one slot. A repeated identical request from
// the same player does not fail: the existing hold's deadline is extended
// instead, so a flaky client cannot lock itself out of its own slot.
func (s *ReservationService) CreateBooking(ctx context.Context, playerID, subFieldID string, start, end time.Time) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.create")
	defer span.End()

	span.SetAttributes(
		attribute.String("player_id", playerID),
		attribute.String("sub_field_id", subFieldID),
	)

	began := s.clock.Now()
	defer func() {
		s.metrics.QuoteLatency.Record(ctx, s.clock.Now().Sub(began).Seconds())
	}()

	if strings.TrimSpace(playerID) == "" {
		return nil, domain.ErrInvalidPlayerID
	}
	if strings.TrimSpace(subFieldID) == "" {
		return nil, domain.ErrInvalidSubFieldID
	}
	if !start.Before(end) {
		return nil, domain.ErrInvalidInterval
	}
	// Slots are priced per minute; sub-minute boundaries are noise.
	if !start.Equal(start.Truncate(time.Minute)) || !end.Equal(end.Truncate(time.Minute)) {
		return nil, domain.ErrInvalidInterval
	}

	now := s.clock.Now()
	if !start.After(now) {
		return nil, domain.ErrStartInPast
	}

	if _, err := s.subFields.GetByID(ctx, subFieldID); err != nil {
		return nil, err
	}

	price, err := s.quote(ctx, subFieldID, start, end)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Expired holds still occupy the storage-level no-overlap constraint
	// until a sweep clears them; clear the path first.
	if err := s.bookings.CancelExpiredOverlapping(ctx, subFieldID, start, end, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	blocking, err := s.bookings.GetBlockingOverlap(ctx, subFieldID, start, end, "", now)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if blocking != nil {
		if blocking.IsPending() && blocking.BelongsToPlayer(playerID) &&
			blocking.StartTime.Equal(start) && blocking.EndTime.Equal(end) {
			return s.extendOwnHold(ctx, blocking, now)
		}
		s.metrics.SlotConflicts.Add(ctx, 1)
		span.SetStatus(codes.Error, "slot taken")
		return nil, domain.ErrSlotTaken
	}

	booking := &domain.Booking{
		ID:         uuid.New().String(),
		SubFieldID: subFieldID,
		PlayerID:   playerID,
		StartTime:  start,
		EndTime:    end,
		TotalPrice: price,
		Currency:   s.policy.Currency,
		Status:     domain.BookingStatusPending,
		ExpiresAt:  now.Add(s.policy.InitialHoldWindow),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := booking.Validate(); err != nil {
		return nil, err
	}

	if err := s.bookings.Create(ctx, booking); err != nil {
		if domain.IsConflictError(err) {
			// A concurrent writer won the slot between the check and the
			// insert; the constraint is the arbiter.
			s.metrics.SlotConflicts.Add(ctx, 1)
			span.SetStatus(codes.Error, "slot taken")
			return nil, domain.ErrSlotTaken
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.HoldsCreated.Add(ctx, 1)
	s.publisher.PublishBookingEvent(ctx, events.TypeBookingHeld, booking, "")
	logger.Get().With(
		zap.String("booking_id", booking.ID),
		zap.String("sub_field_id", subFieldID),
	).Info("hold created")

	span.SetAttributes(attribute.String("booking_id", booking.ID))
	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// extendOwnHold handles the same-player identical re-submit: the deadline
// moves to at least now + RetryGraceWindow but never shrinks.
func (s *ReservationService) extendOwnHold(ctx context.Context, booking *domain.Booking, now time.Time) (*domain.Booking, error) {
	deadline := now.Add(s.policy.RetryGraceWindow)
	if booking.ExpiresAt.After(deadline) {
		return booking, nil
	}
	if err := s.bookings.ExtendHold(ctx, booking.ID, deadline); err != nil {
		return nil, err
	}
	booking.ExpiresAt = deadline
	s.metrics.HoldsExtended.Add(ctx, 1)
	return booking, nil
}

// GetBooking fetches one booking visible to the actor: the player who holds
// it or the owner of its sub-field.
func (s *ReservationService) GetBooking(ctx context.Context, actorID, bookingID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.get")
	defer span.End()

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !booking.BelongsToPlayer(actorID) {
		subField, err := s.subFields.GetByID(ctx, booking.SubFieldID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if subField.OwnerID != actorID {
			span.SetStatus(codes.Error, "forbidden")
			return nil, domain.ErrForbidden
		}
	}

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// ReviewBooking is the pre-payment gate. It re-validates the hold, re-checks
// the slot against confirmed bookings, stretches the hold to cover checkout,
// and opens a payment intent.
func (s *ReservationService) ReviewBooking(ctx context.Context, playerID, bookingID string) (*ReviewResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.review")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if !booking.BelongsToPlayer(playerID) {
		span.SetStatus(codes.Error, "forbidden")
		return nil, domain.ErrForbidden
	}
	if !booking.IsPending() {
		span.SetStatus(codes.Error, "not pending")
		return nil, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	if booking.HoldExpired(now) {
		// Lazy expiry: the reaper has not swept this row yet, but the hold
		// is dead. Release it on the spot.
		if err := s.bookings.Cancel(ctx, booking.ID, "hold expired", now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.metrics.HoldsExpired.Add(ctx, 1)
		booking.Status = domain.BookingStatusCanceled
		s.publisher.PublishBookingEvent(ctx, events.TypeHoldExpired, booking, "hold expired")
		span.SetStatus(codes.Error, "hold expired")
		return nil, domain.ErrHoldExpired
	}

	// An owner may have confirmed a manual booking over this slot since the
	// hold was placed. Pending and completed competitors lost the race when
	// this hold was inserted, so only confirmed ones are re-checked.
	taken, err := s.bookings.HasConfirmedOverlap(ctx, booking.SubFieldID, booking.StartTime, booking.EndTime, booking.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if taken {
		if err := s.bookings.Cancel(ctx, booking.ID, "slot taken before payment", now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.metrics.SlotConflicts.Add(ctx, 1)
		booking.Status = domain.BookingStatusCanceled
		s.publisher.PublishBookingEvent(ctx, events.TypeBookingCanceled, booking, "slot taken before payment")
		span.SetStatus(codes.Error, "slot taken")
		return nil, domain.ErrSlotTaken
	}

	deadline := now.Add(s.policy.PaymentHoldWindow)
	if deadline.After(booking.ExpiresAt) {
		if err := s.bookings.ExtendHold(ctx, booking.ID, deadline); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		booking.ExpiresAt = deadline
		s.metrics.HoldsExtended.Add(ctx, 1)
	}

	intent, err := s.gw.CreatePaymentIntent(ctx, &gateway.PaymentIntentRequest{
		Amount:      booking.TotalPrice,
		Currency:    booking.Currency,
		BookingIDs:  []string{booking.ID},
		PlayerID:    playerID,
		Description: fmt.Sprintf("booking %s", booking.ID),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to open payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return &ReviewResult{
		Booking:      booking,
		PaymentRef:   intent.PaymentIntentID,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// CancelBooking cancels on behalf of the player holding the booking or the
// owner of its sub-field. Players can only cancel before the booking starts;
// the owner may cancel any booking of their facility, started or not.
func (s *ReservationService) CancelBooking(ctx context.Context, actorID, bookingID, reason string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	actorIsPlayer := booking.BelongsToPlayer(actorID)
	if !actorIsPlayer {
		subField, err := s.subFields.GetByID(ctx, booking.SubFieldID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if subField.OwnerID != actorID {
			span.SetStatus(codes.Error, "forbidden")
			return nil, domain.ErrForbidden
		}
	}

	if booking.IsCanceled() {
		// Idempotent: re-cancelling reports the current state.
		span.SetStatus(codes.Ok, "")
		return booking, nil
	}

	now := s.clock.Now()
	if actorIsPlayer && !booking.StartTime.After(now) {
		span.SetStatus(codes.Error, "already started")
		return nil, domain.ErrStartTimePassed
	}

	if reason == "" {
		reason = "canceled by user"
	}
	if err := s.bookings.Cancel(ctx, booking.ID, reason, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	booking.Status = domain.BookingStatusCanceled
	booking.StatusReason = reason
	booking.CanceledAt = &now

	s.metrics.BookingsCanceled.Add(ctx, 1)
	s.publisher.PublishBookingEvent(ctx, events.TypeBookingCanceled, booking, reason)

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// ConfirmBooking is the owner's acceptance of a paid booking.
func (s *ReservationService) ConfirmBooking(ctx context.Context, ownerID, bookingID string) (*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.confirm")
	defer span.End()

	span.SetAttributes(attribute.String("booking_id", bookingID))

	booking, err := s.bookings.GetByID(ctx, bookingID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	subField, err := s.subFields.GetByID(ctx, booking.SubFieldID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if subField.OwnerID != ownerID {
		span.SetStatus(codes.Error, "forbidden")
		return nil, domain.ErrForbidden
	}

	if booking.IsConfirmed() {
		span.SetStatus(codes.Ok, "")
		return booking, nil
	}
	if !booking.IsCompleted() {
		span.SetStatus(codes.Error, "not paid")
		return nil, domain.ErrNotPaid
	}

	now := s.clock.Now()
	if err := s.bookings.Confirm(ctx, booking.ID, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	booking.Status = domain.BookingStatusConfirmed
	booking.UpdatedAt = now

	if booking.RecurringBookingID != "" {
		s.syncConfirmedParent(ctx, booking.RecurringBookingID, now)
	}

	s.metrics.BookingsConfirmed.Add(ctx, 1)
	s.publisher.PublishBookingEvent(ctx, events.TypeBookingConfirmed, booking, "")

	span.SetStatus(codes.Ok, "")
	return booking, nil
}

// syncConfirmedParent moves a recurring parent to confirmed once the owner
// has confirmed its last surviving child. The child confirm has already
// committed, so failures only log; the next sibling confirm retries the sync.
func (s *ReservationService) syncConfirmedParent(ctx context.Context, parentID string, now time.Time) {
	parent, err := s.recurring.GetByID(ctx, parentID)
	if err != nil {
		logger.Get().Warnf("recurring parent %s not loadable after child confirm: %v", parentID, err)
		return
	}
	if parent.Status == domain.BookingStatusConfirmed || parent.Status == domain.BookingStatusCanceled {
		return
	}
	if !parent.AllChildrenConfirmed() {
		return
	}
	if err := s.recurring.SetStatus(ctx, parentID, domain.BookingStatusConfirmed, now); err != nil {
		logger.Get().Warnf("failed to confirm recurring parent %s: %v", parentID, err)
	}
}

// ListPlayerBookings returns the player's booking history, newest first.
func (s *ReservationService) ListPlayerBookings(ctx context.Context, playerID string, limit, offset int) ([]*domain.Booking, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}
	return s.bookings.ListByPlayer(ctx, playerID, limit, offset)
}

// SearchBookings runs the owner-side search. The filter must name a
// sub-field, and it must belong to the requesting owner.
func (s *ReservationService) SearchBookings(ctx context.Context, ownerID string, filter repository.BookingFilter) ([]*domain.Booking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.reservation.search")
	defer span.End()

	if filter.SubFieldID == "" {
		return nil, domain.ErrInvalidSubFieldID
	}
	subField, err := s.subFields.GetByID(ctx, filter.SubFieldID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if subField.OwnerID != ownerID {
		span.SetStatus(codes.Error, "forbidden")
		return nil, domain.ErrForbidden
	}

	bookings, err := s.bookings.Search(ctx, filter)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetStatus(codes.Ok, "")
	return bookings, nil
}

// quote prices [start, end) on the sub-field. The interval must sit inside a
// single pricing rule of the business-local weekday.
func (s *ReservationService) quote(ctx context.Context, subFieldID string, start, end time.Time) (float64, error) {
	weekday, startMin, endMin := s.normalizer.Interval(start, end)
	if endMin > timeslot.MinutesPerDay {
		// Crosses local midnight; no single-day rule can contain it.
		return 0, domain.ErrOutOfOperatingHours
	}
	rule, err := s.resolver.Resolve(ctx, subFieldID, weekday, startMin, endMin)
	if err != nil {
		return 0, err
	}
	return pricing.Quote(rule, startMin, endMin), nil
}
