package service

import (
	"context"
	"errors"
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

func newTestRecurringService(t *testing.T, recurring *mockRecurringRepo, bookings *mockBookingRepo, clk clock.Clock) *RecurringService {
	t.Helper()
	normalizer, err := timeslot.NewNormalizer("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return NewRecurringService(
		recurring,
		bookings,
		&mockSubFieldRepo{},
		pricing.NewResolver(eveningRules()),
		normalizer,
		&mockGateway{},
		events.NoOpPublisher{},
		metrics.NewBookingMetrics(),
		clk,
		testPolicy,
	)
}

func weeklyRequest(t *testing.T) *RecurringRequest {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Ho_Chi_Minh")
	require.NoError(t, err)
	return &RecurringRequest{
		PlayerID:       "player-1",
		SubFieldID:     "field-1",
		RecurrenceType: domain.RecurrenceWeekly,
		StartDate:      time.Date(2024, 3, 6, 0, 0, 0, 0, loc),
		EndDate:        time.Date(2024, 3, 27, 0, 0, 0, 0, loc),
		TimeOfDay:      time.Date(2000, 1, 1, 19, 0, 0, 0, time.UTC),
		Duration:       2 * time.Hour,
	}
}

func TestGenerate_WeeklySeries(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))

	var created *domain.RecurringBooking
	recurring := &mockRecurringRepo{
		CreateWithChildrenFunc: func(ctx context.Context, parent *domain.RecurringBooking) error {
			created = parent
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	parent, err := svc.Generate(context.Background(), weeklyRequest(t))
	require.NoError(t, err)
	require.NotNil(t, created)

	// Mar 6, 13, 20, 27: four Wednesdays.
	require.Len(t, parent.Children, 4)
	assert.InDelta(t, 800, parent.TotalPrice, 1e-9) // 4 slots, 2h at 100/h

	deadline := clk.Now().Add(testPolicy.RecurringHoldWindow)
	for i, child := range parent.Children {
		assert.Equal(t, domain.BookingStatusPending, child.Status)
		assert.Equal(t, deadline, child.ExpiresAt, "children share one deadline")
		assert.Equal(t, parent.ID, child.RecurringBookingID)
		assert.Equal(t, 19, child.StartTime.In(child.StartTime.Location()).Hour())
		if i > 0 {
			assert.Equal(t, 7*24*time.Hour, child.StartTime.Sub(parent.Children[i-1].StartTime))
		}
	}
}

func TestGenerate_MonthlySeriesStepsByCalendarMonth(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.February, 20, 12, 0))

	recurring := &mockRecurringRepo{
		CreateWithChildrenFunc: func(ctx context.Context, parent *domain.RecurringBooking) error { return nil },
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	req := weeklyRequest(t)
	req.RecurrenceType = domain.RecurrenceMonthly
	req.StartDate = bizTime(t, 2024, time.March, 6, 0, 0)
	req.EndDate = bizTime(t, 2024, time.May, 6, 0, 0)

	parent, err := svc.Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, parent.Children, 3)
	assert.Equal(t, time.March, parent.Children[0].StartTime.Month())
	assert.Equal(t, time.April, parent.Children[1].StartTime.Month())
	assert.Equal(t, time.May, parent.Children[2].StartTime.Month())
}

func TestGenerate_ConflictAbortsWholeSeries(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))

	secondSlot := bizTime(t, 2024, time.March, 13, 19, 0)
	bookings := &mockBookingRepo{
		GetBlockingOverlapFunc: func(ctx context.Context, subFieldID string, start, end time.Time, excludeID string, now time.Time) (*domain.Booking, error) {
			if start.Equal(secondSlot) {
				return &domain.Booking{ID: "other", Status: domain.BookingStatusConfirmed}, nil
			}
			return nil, nil
		},
	}
	recurring := &mockRecurringRepo{
		CreateWithChildrenFunc: func(ctx context.Context, parent *domain.RecurringBooking) error {
			t.Fatal("conflicting series must not be persisted")
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, bookings, clk)

	_, err := svc.Generate(context.Background(), weeklyRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrSlotTaken)

	var slotErr *domain.SlotConflictError
	require.True(t, errors.As(err, &slotErr))
	assert.Equal(t, 1, slotErr.SlotIndex)
	assert.Equal(t, secondSlot, slotErr.Start)
}

func TestGenerate_IdenticalRetryExtendsChildren(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))

	existing := &domain.RecurringBooking{
		ID:       "rec-1",
		PlayerID: "player-1",
		Status:   domain.BookingStatusPending,
	}
	var extendedTo time.Time
	recurring := &mockRecurringRepo{
		FindIdenticalFunc: func(ctx context.Context, playerID, subFieldID string, rt domain.RecurrenceType, sd, ed time.Time) (*domain.RecurringBooking, error) {
			return existing, nil
		},
		ExtendChildrenHoldFunc: func(ctx context.Context, parentID string, expiresAt time.Time) error {
			extendedTo = expiresAt
			return nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return existing, nil
		},
		CreateWithChildrenFunc: func(ctx context.Context, parent *domain.RecurringBooking) error {
			t.Fatal("retry must not create a second series")
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	parent, err := svc.Generate(context.Background(), weeklyRequest(t))
	require.NoError(t, err)
	assert.Equal(t, "rec-1", parent.ID)
	assert.Equal(t, clk.Now().Add(testPolicy.RetryGraceWindow), extendedTo)
}

func TestGenerate_DuplicatePaidSeriesRejected(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))

	recurring := &mockRecurringRepo{
		FindIdenticalFunc: func(ctx context.Context, playerID, subFieldID string, rt domain.RecurrenceType, sd, ed time.Time) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{ID: "rec-1", Status: domain.BookingStatusConfirmed}, nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	_, err := svc.Generate(context.Background(), weeklyRequest(t))
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)
}

func TestGenerate_SettledSeriesRetryRejected(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))

	// Settlement moves the children before the parent row catches up; a
	// stale pending parent with paid children is still a duplicate.
	paidAt := clk.Now().Add(-time.Hour)
	recurring := &mockRecurringRepo{
		FindIdenticalFunc: func(ctx context.Context, playerID, subFieldID string, rt domain.RecurrenceType, sd, ed time.Time) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{ID: "rec-1", PlayerID: "player-1", Status: domain.BookingStatusPending}, nil
		},
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID: id, PlayerID: "player-1", Status: domain.BookingStatusPending,
				Children: []*domain.Booking{
					{ID: "c-1", Status: domain.BookingStatusCompleted, PaymentID: "pay-1", PaidAt: &paidAt},
					{ID: "c-2", Status: domain.BookingStatusCompleted, PaymentID: "pay-1", PaidAt: &paidAt},
				},
			}, nil
		},
		ExtendChildrenHoldFunc: func(ctx context.Context, parentID string, expiresAt time.Time) error {
			t.Fatal("paid series must not have its holds re-extended")
			return nil
		},
		CreateWithChildrenFunc: func(ctx context.Context, parent *domain.RecurringBooking) error {
			t.Fatal("duplicate must not create a second series")
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	_, err := svc.Generate(context.Background(), weeklyRequest(t))
	assert.ErrorIs(t, err, domain.ErrAlreadyBooked)
}

func TestGenerate_InvalidRecurrenceType(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 1, 12, 0))
	svc := newTestRecurringService(t, &mockRecurringRepo{}, &mockBookingRepo{}, clk)

	req := weeklyRequest(t)
	req.RecurrenceType = domain.RecurrenceType("daily")
	_, err := svc.Generate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInvalidRecurrence)
}

func TestReview_ExpiredChildrenCancelAggregate(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	var canceled bool
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID:       id,
				PlayerID: "player-1",
				Status:   domain.BookingStatusPending,
				Children: []*domain.Booking{{
					ID:        "c-1",
					Status:    domain.BookingStatusPending,
					StartTime: bizTime(t, 2024, time.March, 13, 19, 0),
					ExpiresAt: clk.Now().Add(-time.Minute),
				}},
			}, nil
		},
		CancelAggregateFunc: func(ctx context.Context, parentID string, reason string, now time.Time) error {
			canceled = true
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	_, _, err := svc.Review(context.Background(), "player-1", "rec-1")
	assert.ErrorIs(t, err, domain.ErrHoldExpired)
	assert.True(t, canceled)
}

func TestReview_OpensOnePaymentForAllChildren(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	children := []*domain.Booking{
		{ID: "c-1", SubFieldID: "field-1", Status: domain.BookingStatusPending, TotalPrice: 200,
			StartTime: bizTime(t, 2024, time.March, 13, 19, 0), ExpiresAt: clk.Now().Add(10 * time.Minute)},
		{ID: "c-2", SubFieldID: "field-1", Status: domain.BookingStatusPending, TotalPrice: 200,
			StartTime: bizTime(t, 2024, time.March, 20, 19, 0), ExpiresAt: clk.Now().Add(10 * time.Minute)},
	}
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID: id, PlayerID: "player-1", Status: domain.BookingStatusPending,
				Currency: "vnd", Children: children,
			}, nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	_, intent, err := svc.Review(context.Background(), "player-1", "rec-1")
	require.NoError(t, err)
	assert.InDelta(t, 400, intent.Amount, 1e-9)
}

func TestReview_KeepsLaterDeadline(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	// The shared deadline already reaches past the checkout window; review
	// must not pull it back.
	laterDeadline := clk.Now().Add(2 * testPolicy.PaymentHoldWindow)
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{
				ID: id, PlayerID: "player-1", Status: domain.BookingStatusPending,
				Currency: "vnd", Children: []*domain.Booking{{
					ID: "c-1", SubFieldID: "field-1", Status: domain.BookingStatusPending,
					TotalPrice: 200, StartTime: bizTime(t, 2024, time.March, 13, 19, 0),
					ExpiresAt: laterDeadline,
				}},
			}, nil
		},
		ExtendChildrenHoldFunc: func(ctx context.Context, parentID string, expiresAt time.Time) error {
			t.Fatal("a later deadline must not shrink")
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	_, intent, err := svc.Review(context.Background(), "player-1", "rec-1")
	require.NoError(t, err)
	assert.InDelta(t, 200, intent.Amount, 1e-9)
}

func TestCancel_CancelsAggregate(t *testing.T) {
	clk := clock.NewFake(bizTime(t, 2024, time.March, 6, 12, 0))

	var gotParent string
	recurring := &mockRecurringRepo{
		GetByIDFunc: func(ctx context.Context, id string) (*domain.RecurringBooking, error) {
			return &domain.RecurringBooking{ID: id, PlayerID: "player-1", Status: domain.BookingStatusPending}, nil
		},
		CancelAggregateFunc: func(ctx context.Context, parentID string, reason string, now time.Time) error {
			gotParent = parentID
			return nil
		},
	}
	svc := newTestRecurringService(t, recurring, &mockBookingRepo{}, clk)

	err := svc.Cancel(context.Background(), "player-1", "rec-1", "")
	require.NoError(t, err)
	assert.Equal(t, "rec-1", gotParent)
}
