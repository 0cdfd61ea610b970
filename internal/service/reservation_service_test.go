package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/events"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/metrics"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/pricing"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/timeslot"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/clock"
)

var testPolicy = HoldPolicy{
	InitialHoldWindow:   15 * time.Minute,
	RecurringHoldWindow: 30 * time.Minute,
	PaymentHoldWindow:   30 * time.Minute,
	RetryGraceWindow:    5 * time.Minute,
	Currency:            "vnd",
}

// eveningRules prices every weekday 17:00-23:00 at 100/h.
func eveningRules() *mockRuleRepo {
	return &mockRuleRepo{
		ListBySubFieldAndDayFunc: func(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
			return []*domain.PricingRule{{
				ID:         "rule-evening",
				SubFieldID: subFieldID,
				DayOfWeek:  dayOfWeek,
				StartTime:  time.Date(2000, 1, 1, 17, 0, 0, 0, time.UTC),
				EndTime:    time.Date(2000, 1, 1, 23, 0, 0, 0, time.UTC),
				BasePrice:  100,
			}}, nil
		},
	}
}

func newTestReservationService(t *testing.T, bookings *mockBookingRepo, rules *mockRuleRepo, clk clock.Clock) *ReservationService {
	t.Helper()
	return newTestReservationServiceWithRecurring(t, bookings, &mockRecurringRepo{}, rules, clk)
}

func newTestReservationServiceWithRecurring(t *testing.T, bookings *mockBookingRepo, recurring *mockRecurringRepo, rules *mockRuleRepo, clk clock.Clock) *ReservationService {
	t.Helper()
	normalizer, err := timeslot.NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return NewReservationService(
		bookings,
		recurring,
		&mockSubFieldRepo{},
		pricing.NewResolver(rules),
		normalizer,
		&mockGateway{},
		events.NoOpPublisher{},
		metrics.NewBookingMetrics(),
		clk,
		testPolicy,
	)
}

// bizTime builds an instant at the given local wall-clock in the business zone.
func bizTime(t *testing.T, year int, month time.Month, day, hour, min int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return time.Date(year, month, day, hour, min, 0, 0, loc)
}

func TestCreateBooking_HoldsSlotWithQuote(t *testing.T) {
	var created *domain.Booking
	bookings := &mockBookingRepo{
		CreateFunc: func(ctx context.Context, b *domain.Booking) error {
			created = b
			return nil
		},
	}
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 19, 0)
	booking, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(2*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, created)

	assert.Equal(t, domain.BookingStatusPending, booking.Status)
	assert.InDelta(t, 200, booking.TotalPrice, 1e-9) // 2h at 100/h
	assert.Equal(t, "vnd", booking.Currency)
	assert.Equal(t, clk.Now().Add(testPolicy.InitialHoldWindow), booking.ExpiresAt)
}

func TestCreateBooking_RejectsPastStart(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 20, 0))
	svc := newTestReservationService(t, &mockBookingRepo{}, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 19, 0)
	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrStartInPast)
}

func TestCreateBooking_RejectsInvertedInterval(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	svc := newTestReservationService(t, &mockBookingRepo{}, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 20, 0)
	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(-time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestCreateBooking_RejectsSubMinuteBoundaries(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	svc := newTestReservationService(t, &mockBookingRepo{}, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 19, 0).Add(30 * time.Second)
	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestCreateBooking_SlotTakenByOtherPlayer(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	bookings := &mockBookingRepo{
		GetBlockingOverlapFunc: func(ctx context.Context, subFieldID string, s, e time.Time, excludeID string, now time.Time) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        "other",
				PlayerID:  "player-2",
				Status:    domain.BookingStatusPending,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				ExpiresAt: now.Add(10 * time.Minute),
			}, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrSlotTaken)
}

func TestCreateBooking_SamePlayerRetryExtendsHold(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)
	end := start.Add(time.Hour)

	nearDeadline := clk.Now().Add(time.Minute)
	var extendedTo time.Time
	bookings := &mockBookingRepo{
		GetBlockingOverlapFunc: func(ctx context.Context, subFieldID string, s, e time.Time, excludeID string, now time.Time) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        "mine",
				PlayerID:  "player-1",
				Status:    domain.BookingStatusPending,
				StartTime: start,
				EndTime:   end,
				ExpiresAt: nearDeadline,
			}, nil
		},
		ExtendHoldFunc: func(ctx context.Context, id string, expiresAt time.Time) error {
			extendedTo = expiresAt
			return nil
		},
		CreateFunc: func(ctx context.Context, b *domain.Booking) error {
			t.Fatal("retry must not create a second hold")
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	booking, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, end)
	require.NoError(t, err)
	assert.Equal(t, "mine", booking.ID)
	assert.Equal(t, clk.Now().Add(testPolicy.RetryGraceWindow), extendedTo)
}

func TestCreateBooking_ConstraintRaceSurfacesAsSlotTaken(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	bookings := &mockBookingRepo{
		CreateFunc: func(ctx context.Context, b *domain.Booking) error {
			return domain.ErrSlotTaken
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 19, 0)
	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrSlotTaken)
}

func TestCreateBooking_OutsideOperatingHours(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 5, 0))
	svc := newTestReservationService(t, &mockBookingRepo{}, eveningRules(), clk)

	start := bizTime(t, 2024, time.March, 6, 8, 0)
	_, err := svc.CreateBooking(context.Background(), "player-1", "field-1", start, start.Add(time.Hour))
	assert.ErrorIs(t, err, domain.ErrOutOfOperatingHours)
}

func TestReviewBooking_ExpiredHoldIsLazilyReleased(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	var canceled bool
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        id,
				PlayerID:  "player-1",
				Status:    domain.BookingStatusPending,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				ExpiresAt: clk.Now().Add(-time.Minute),
			}, nil
		},
		CancelFunc: func(ctx context.Context, id string, reason string, now time.Time) error {
			canceled = true
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.ReviewBooking(context.Background(), "player-1", "b-1")
	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	assert.True(t, canceled)
}

func TestReviewBooking_ConfirmedCompetitorCancelsHold(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        id,
				PlayerID:  "player-1",
				Status:    domain.BookingStatusPending,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				ExpiresAt: clk.Now().Add(10 * time.Minute),
			}, nil
		},
		HasConfirmedOverlapFunc: func(ctx context.Context, subFieldID string, s, e time.Time, excludeID string) (bool, error) {
			return true, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.ReviewBooking(context.Background(), "player-1", "b-1")
	assert.ErrorIs(t, err, domain.ErrSlotTaken)
}

func TestReviewBooking_ExtendsHoldAndOpensPayment(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	var extendedTo time.Time
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:         id,
				PlayerID:   "player-1",
				Status:     domain.BookingStatusPending,
				StartTime:  start,
				EndTime:    start.Add(time.Hour),
				TotalPrice: 100,
				Currency:   "vnd",
				ExpiresAt:  clk.Now().Add(5 * time.Minute),
			}, nil
		},
		ExtendHoldFunc: func(ctx context.Context, id string, expiresAt time.Time) error {
			extendedTo = expiresAt
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	result, err := svc.ReviewBooking(context.Background(), "player-1", "b-1")
	require.NoError(t, err)
	assert.Equal(t, clk.Now().Add(testPolicy.PaymentHoldWindow), extendedTo)
	assert.Equal(t, "pi_test_1", result.PaymentRef)
	assert.NotEmpty(t, result.ClientSecret)
}

func TestReviewBooking_ForbiddenForOtherPlayer(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{ID: id, PlayerID: "player-2", Status: domain.BookingStatusPending}, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.ReviewBooking(context.Background(), "player-1", "b-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}

func TestCancelBooking_PlayerCancelsOwnHold(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	var gotReason string
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        id,
				PlayerID:  "player-1",
				Status:    domain.BookingStatusPending,
				StartTime: start,
				EndTime:   start.Add(time.Hour),
				ExpiresAt: clk.Now().Add(10 * time.Minute),
			}, nil
		},
		CancelFunc: func(ctx context.Context, id string, reason string, now time.Time) error {
			gotReason = reason
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	booking, err := svc.CancelBooking(context.Background(), "player-1", "b-1", "change of plans")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCanceled, booking.Status)
	assert.Equal(t, "change of plans", gotReason)
}

func TestCancelBooking_PlayerCannotCancelStarted(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 20, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:        id,
				PlayerID:  "player-1",
				Status:    domain.BookingStatusConfirmed,
				StartTime: start,
				EndTime:   start.Add(2 * time.Hour),
			}, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.CancelBooking(context.Background(), "player-1", "b-1", "")
	assert.ErrorIs(t, err, domain.ErrStartTimePassed)
}

func TestCancelBooking_OwnerCancelsStartedBooking(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 20, 0))
	start := bizTime(t, 2024, time.March, 6, 19, 0)

	var canceled bool
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID:         id,
				PlayerID:   "player-1",
				SubFieldID: "field-1",
				Status:     domain.BookingStatusConfirmed,
				StartTime:  start,
				EndTime:    start.Add(2 * time.Hour),
			}, nil
		},
		CancelFunc: func(ctx context.Context, id string, reason string, now time.Time) error {
			canceled = true
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	// The started-booking restriction applies to players only.
	booking, err := svc.CancelBooking(context.Background(), "owner-1", "b-1", "field flooded")
	require.NoError(t, err)
	assert.True(t, canceled)
	assert.Equal(t, domain.BookingStatusCanceled, booking.Status)
}

func TestCancelBooking_RecancelIsIdempotent(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{ID: id, PlayerID: "player-1", Status: domain.BookingStatusCanceled}, nil
		},
		CancelFunc: func(ctx context.Context, id string, reason string, now time.Time) error {
			t.Fatal("re-cancel must not hit storage")
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	booking, err := svc.CancelBooking(context.Background(), "player-1", "b-1", "")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCanceled, booking.Status)
}

func TestConfirmBooking_RequiresPayment(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{ID: id, PlayerID: "player-1", SubFieldID: "field-1", Status: domain.BookingStatusPending}, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.ConfirmBooking(context.Background(), "owner-1", "b-1")
	assert.ErrorIs(t, err, domain.ErrNotPaid)
}

func TestConfirmBooking_OwnerConfirmsPaidBooking(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	var confirmed bool
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{ID: id, PlayerID: "player-1", SubFieldID: "field-1", Status: domain.BookingStatusCompleted}, nil
		},
		ConfirmFunc: func(ctx context.Context, id string, now time.Time) error {
			confirmed = true
			return nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	booking, err := svc.ConfirmBooking(context.Background(), "owner-1", "b-1")
	require.NoError(t, err)
	assert.True(t, confirmed)
	assert.Equal(t, domain.BookingStatusConfirmed, booking.Status)
}

func TestConfirmBooking_LastChildConfirmsSeries(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID: id, PlayerID: "player-1", SubFieldID: "field-1",
				Status: domain.BookingStatusCompleted, RecurringBookingID: "rec-1",
			}, nil
		},
	}
	var gotStatus domain.BookingStatus
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID: id, PlayerID: "player-1", Status: domain.BookingStatusCompleted,
				Children: []*domain.Booking{
					{ID: "c-1", Status: domain.BookingStatusConfirmed},
					{ID: "c-2", Status: domain.BookingStatusConfirmed},
				},
			}, nil
		},
		SetStatusFunc: func(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error {
			gotStatus = status
			return nil
		},
	}
	svc := newTestReservationServiceWithRecurring(t, bookings, recurring, eveningRules(), clk)

	_, err := svc.ConfirmBooking(context.Background(), "owner-1", "c-2")
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusConfirmed, gotStatus)
}

func TestConfirmBooking_PendingSiblingLeavesSeriesAlone(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{
				ID: id, PlayerID: "player-1", SubFieldID: "field-1",
				Status: domain.BookingStatusCompleted, RecurringBookingID: "rec-1",
			}, nil
		},
	}
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID: id, PlayerID: "player-1", Status: domain.BookingStatusCompleted,
				Children: []*domain.Booking{
					{ID: "c-1", Status: domain.BookingStatusConfirmed},
					{ID: "c-2", Status: domain.BookingStatusCompleted},
				},
			}, nil
		},
		SetStatusFunc: func(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error {
			t.Fatal("parent must not move while a sibling is unconfirmed")
			return nil
		},
	}
	svc := newTestReservationServiceWithRecurring(t, bookings, recurring, eveningRules(), clk)

	_, err := svc.ConfirmBooking(context.Background(), "owner-1", "c-1")
	require.NoError(t, err)
}

func TestConfirmBooking_NotTheOwner(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))
	bookings := &mockBookingRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.Booking, error) {
			return &domain.Booking{ID: id, PlayerID: "player-1", SubFieldID: "field-1", Status: domain.BookingStatusCompleted}, nil
		},
	}
	svc := newTestReservationService(t, bookings, eveningRules(), clk)

	_, err := svc.ConfirmBooking(context.Background(), "owner-9", "b-1")
	assert.ErrorIs(t, err, domain.ErrForbidden)
}
