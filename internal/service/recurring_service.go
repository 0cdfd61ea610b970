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

// RecurringRequest describes a series of slots on one sub-field: every week
// or every month between StartDate and EndDate, at TimeOfDay for Duration.
type RecurringRequest struct {
	PlayerID       string
	SubFieldID     string
	RecurrenceType domain.RecurrenceType
	StartDate      time.Time
	EndDate        time.Time
	TimeOfDay      time.Time // wall-clock label; date component ignored
	Duration       time.Duration
}

// RecurringService generates and manages recurring booking aggregates. Child
// bookings share one hold deadline and live or die together until payment.
type RecurringService struct {
	recurring  repository.RecurringBookingRepository
	bookings   repository.BookingRepository
	subFields  repository.SubFieldRepository
	resolver   *pricing.Resolver
	normalizer *timeslot.Normalizer
	gw         gateway.PaymentGateway
	publisher  events.Publisher
	metrics    *metrics.BookingMetrics
	clock      clock.Clock
	policy     HoldPolicy
}

// NewRecurringService wires the recurring booking service.
func NewRecurringService(
	recurring repository.RecurringBookingRepository,
	bookings repository.BookingRepository,
	subFields repository.SubFieldRepository,
	resolver *pricing.Resolver,
	normalizer *timeslot.Normalizer,
	gw gateway.PaymentGateway,
	publisher events.Publisher,
	m *metrics.BookingMetrics,
	clk clock.Clock,
	policy HoldPolicy,
) *RecurringService {
	return &RecurringService{
		recurring:  recurring,
		bookings:   bookings,
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

// Generate expands the request into concrete slots, prices and
// conflict-checks each one, and persists the whole aggregate atomically. One
// conflicting slot aborts the series with a SlotConflictError naming the
// occurrence; nothing is persisted.
//
// An identical retry from the same player does not re-generate: the existing
// aggregate gets its children's shared deadline extended and is returned.
func (s *RecurringService) Generate(ctx context.Context, req *RecurringRequest) (*domain.RecurringBooking, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recurring.generate")
	defer span.End()

	span.SetAttributes(
		attribute.String("player_id", req.PlayerID),
		attribute.String("sub_field_id", req.SubFieldID),
		attribute.String("recurrence_type", req.RecurrenceType.String()),
	)

	if err := s.validate(req); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	if _, err := s.subFields.GetByID(ctx, req.SubFieldID); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	now := s.clock.Now()

	existing, err := s.recurring.FindIdentical(ctx, req.PlayerID, req.SubFieldID, req.RecurrenceType, req.StartDate, req.EndDate)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	if existing != nil {
		if existing.Status != domain.BookingStatusPending {
			// Same series already paid or confirmed; this is a duplicate,
			// not a retry.
			span.SetStatus(codes.Error, "already booked")
			return nil, domain.ErrAlreadyBooked
		}
		agg, err := s.recurring.GetByID(ctx, existing.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		// The children settle before the parent row moves; a paid child
		// means this is a duplicate even if the parent still reads pending.
		if agg.Status != domain.BookingStatusPending || agg.HasSettledChild() {
			span.SetStatus(codes.Error, "already booked")
			return nil, domain.ErrAlreadyBooked
		}
		deadline := now.Add(s.policy.RetryGraceWindow)
		if err := s.recurring.ExtendChildrenHold(ctx, agg.ID, deadline); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		s.metrics.HoldsExtended.Add(ctx, 1)
		span.SetStatus(codes.Ok, "identical retry")
		return s.recurring.GetByID(ctx, agg.ID)
	}

	slots := s.expand(req)
	if len(slots) == 0 {
		span.SetStatus(codes.Error, "empty series")
		return nil, domain.ErrInvalidInterval
	}

	parent := &domain.RecurringBooking{
		ID:             uuid.New().String(),
		PlayerID:       req.PlayerID,
		SubFieldID:     req.SubFieldID,
		RecurrenceType: req.RecurrenceType,
		StartDate:      req.StartDate,
		EndDate:        req.EndDate,
		Status:         domain.BookingStatusPending,
		Currency:       s.policy.Currency,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := parent.Validate(); err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	deadline := now.Add(s.policy.RecurringHoldWindow)
	var total float64

	for i, slot := range slots {
		if !slot.start.After(now) {
			// Occurrences in the past are skipped, not errors: a series
			// starting "this Wednesday" may begin after today's slot.
			continue
		}

		price, err := s.quoteSlot(ctx, req.SubFieldID, slot.start, slot.end)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}

		if err := s.bookings.CancelExpiredOverlapping(ctx, req.SubFieldID, slot.start, slot.end, now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		blocking, err := s.bookings.GetBlockingOverlap(ctx, req.SubFieldID, slot.start, slot.end, "", now)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if blocking != nil {
			s.metrics.SlotConflicts.Add(ctx, 1)
			span.SetStatus(codes.Error, "slot taken")
			return nil, &domain.SlotConflictError{SlotIndex: i, Start: slot.start, End: slot.end}
		}

		child := &domain.Booking{
			ID:                 uuid.New().String(),
			SubFieldID:         req.SubFieldID,
			PlayerID:           req.PlayerID,
			StartTime:          slot.start,
			EndTime:            slot.end,
			TotalPrice:         price,
			Currency:           s.policy.Currency,
			Status:             domain.BookingStatusPending,
			ExpiresAt:          deadline,
			RecurringBookingID: parent.ID,
			CreatedAt:          now,
			UpdatedAt:          now,
		}
		parent.Children = append(parent.Children, child)
		total += price
	}

	if len(parent.Children) == 0 {
		span.SetStatus(codes.Error, "no future occurrences")
		return nil, domain.ErrStartInPast
	}
	parent.TotalPrice = total

	if err := s.recurring.CreateWithChildren(ctx, parent); err != nil {
		if domain.IsConflictError(err) {
			s.metrics.SlotConflicts.Add(ctx, 1)
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	s.metrics.HoldsCreated.Add(ctx, int64(len(parent.Children)))
	for _, child := range parent.Children {
		s.publisher.PublishBookingEvent(ctx, events.TypeBookingHeld, child, "recurring")
	}
	logger.Get().With(
		zap.String("recurring_booking_id", parent.ID),
		zap.Int("children", len(parent.Children)),
	).Info("recurring series held")

	span.SetAttributes(
		attribute.String("recurring_booking_id", parent.ID),
		attribute.Int("children", len(parent.Children)),
	)
	span.SetStatus(codes.Ok, "")
	return parent, nil
}

// GetRecurring loads an aggregate visible to the player who owns it or the
// sub-field owner.
func (s *RecurringService) GetRecurring(ctx context.Context, actorID, parentID string) (*domain.RecurringBooking, error) {
	parent, err := s.recurring.GetByID(ctx, parentID)
	if err != nil {
		return nil, err
	}
	if parent.PlayerID != actorID {
		subField, err := s.subFields.GetByID(ctx, parent.SubFieldID)
		if err != nil {
			return nil, err
		}
		if subField.OwnerID != actorID {
			return nil, domain.ErrForbidden
		}
	}
	return parent, nil
}

// Review re-validates every pending child and opens one payment intent for
// the whole series.
func (s *RecurringService) Review(ctx context.Context, playerID, parentID string) (*domain.RecurringBooking, *gateway.PaymentIntentResponse, error) {
	ctx, span := telemetry.StartSpan(ctx, "service.recurring.review")
	defer span.End()

	span.SetAttributes(attribute.String("recurring_booking_id", parentID))

	parent, err := s.recurring.GetByID(ctx, parentID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, err
	}
	if parent.PlayerID != playerID {
		span.SetStatus(codes.Error, "forbidden")
		return nil, nil, domain.ErrForbidden
	}
	if parent.Status != domain.BookingStatusPending {
		span.SetStatus(codes.Error, "not pending")
		return nil, nil, domain.ErrInvalidStatus
	}

	now := s.clock.Now()
	first := parent.FirstChild()
	if first == nil || first.HoldExpired(now) {
		// Children share one deadline, so the first child speaks for all.
		if err := s.recurring.CancelAggregate(ctx, parent.ID, "hold expired", now); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, nil, err
		}
		s.metrics.HoldsExpired.Add(ctx, int64(len(parent.Children)))
		span.SetStatus(codes.Error, "hold expired")
		return nil, nil, domain.ErrHoldExpired
	}

	var (
		bookingIDs []string
		total      float64
	)
	for _, child := range parent.Children {
		if !child.IsPending() {
			continue
		}
		taken, err := s.bookings.HasConfirmedOverlap(ctx, child.SubFieldID, child.StartTime, child.EndTime, child.ID)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, nil, err
		}
		if taken {
			if err := s.recurring.CancelAggregate(ctx, parent.ID, "slot taken before payment", now); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, nil, err
			}
			s.metrics.SlotConflicts.Add(ctx, 1)
			span.SetStatus(codes.Error, "slot taken")
			return nil, nil, domain.ErrSlotTaken
		}
		bookingIDs = append(bookingIDs, child.ID)
		total += child.TotalPrice
	}
	if len(bookingIDs) == 0 {
		span.SetStatus(codes.Error, "no pending children")
		return nil, nil, domain.ErrInvalidStatus
	}

	// Children share one deadline; it moves forward to cover checkout but
	// never shrinks.
	deadline := now.Add(s.policy.PaymentHoldWindow)
	if deadline.After(first.ExpiresAt) {
		if err := s.recurring.ExtendChildrenHold(ctx, parent.ID, deadline); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, nil, err
		}
		s.metrics.HoldsExtended.Add(ctx, int64(len(bookingIDs)))
	}

	intent, err := s.gw.CreatePaymentIntent(ctx, &gateway.PaymentIntentRequest{
		Amount:      total,
		Currency:    parent.Currency,
		BookingIDs:  bookingIDs,
		PlayerID:    playerID,
		Description: fmt.Sprintf("recurring booking %s (%d slots)", parent.ID, len(bookingIDs)),
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, nil, fmt.Errorf("failed to open payment: %w", err)
	}

	span.SetStatus(codes.Ok, "")
	return parent, intent, nil
}

// Cancel cancels the whole aggregate on behalf of its player or the
// sub-field owner.
func (s *RecurringService) Cancel(ctx context.Context, actorID, parentID, reason string) error {
	ctx, span := telemetry.StartSpan(ctx, "service.recurring.cancel")
	defer span.End()

	span.SetAttributes(attribute.String("recurring_booking_id", parentID))

	parent, err := s.recurring.GetByID(ctx, parentID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return err
	}
	if parent.PlayerID != actorID {
		subField, err := s.subFields.GetByID(ctx, parent.SubFieldID)
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return err
		}
		if subField.OwnerID != actorID {
			span.SetStatus(codes.Error, "forbidden")
			return domain.ErrForbidden
		}
	}

	if reason == "" {
		reason = "canceled by user"
	}
	now := s.clock.Now()
	if err := s.recurring.CancelAggregate(ctx, parentID, reason, now); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	s.metrics.BookingsCanceled.Add(ctx, int64(len(parent.Children)))
	for _, child := range parent.Children {
		if !child.IsCanceled() {
			s.publisher.PublishBookingEvent(ctx, events.TypeBookingCanceled, child, reason)
		}
	}

	span.SetStatus(codes.Ok, "")
	return nil
}

type slot struct {
	start time.Time
	end   time.Time
}

// expand walks the date range producing one slot per occurrence. Weekly steps
// 7 days; monthly steps one calendar month via AddDate, which normalizes
// Jan 31 + 1 month to Mar 2/3. Month-end series get the normalized date
// rather than an error.
func (s *RecurringService) expand(req *RecurringRequest) []slot {
	var out []slot
	for date := req.StartDate; !date.After(req.EndDate); {
		start := s.normalizer.At(date, req.TimeOfDay)
		out = append(out, slot{start: start, end: start.Add(req.Duration)})

		switch req.RecurrenceType {
		case domain.RecurrenceWeekly:
			date = date.AddDate(0, 0, 7)
		case domain.RecurrenceMonthly:
			date = date.AddDate(0, 1, 0)
		default:
			return out
		}
	}
	return out
}

func (s *RecurringService) validate(req *RecurringRequest) error {
	if strings.TrimSpace(req.PlayerID) == "" {
		return domain.ErrInvalidPlayerID
	}
	if strings.TrimSpace(req.SubFieldID) == "" {
		return domain.ErrInvalidSubFieldID
	}
	if !req.RecurrenceType.IsValid() {
		return domain.ErrInvalidRecurrence
	}
	if req.EndDate.Before(req.StartDate) {
		return domain.ErrInvalidInterval
	}
	if req.Duration <= 0 {
		return domain.ErrInvalidInterval
	}
	return nil
}

func (s *RecurringService) quoteSlot(ctx context.Context, subFieldID string, start, end time.Time) (float64, error) {
	weekday, startMin, endMin := s.normalizer.Interval(start, end)
	if endMin > timeslot.MinutesPerDay {
		return 0, domain.ErrOutOfOperatingHours
	}
	rule, err := s.resolver.Resolve(ctx, subFieldID, weekday, startMin, endMin)
	if err != nil {
		return 0, err
	}
	return pricing.Quote(rule, startMin, endMin), nil
}
