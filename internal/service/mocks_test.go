package service

import (
	"context"
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/domain"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/gateway"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
)

// Func-field mocks: each test overrides only the calls it cares about.

type mockBookingRepo struct {
	CreateFunc                   func(ctx context.Context, booking *domain.Booking) error
	GetByIDFunc                  func(ctx context.Context, id string) (*domain.Booking, error)
	GetBlockingOverlapFunc       func(ctx context.Context, subFieldID string, start, end time.Time, excludeID string, now time.Time) (*domain.Booking, error)
	HasConfirmedOverlapFunc      func(ctx context.Context, subFieldID string, start, end time.Time, excludeID string) (bool, error)
	CancelExpiredOverlappingFunc func(ctx context.Context, subFieldID string, start, end time.Time, now time.Time) error
	ExtendHoldFunc               func(ctx context.Context, id string, expiresAt time.Time) error
	CancelFunc                   func(ctx context.Context, id string, reason string, now time.Time) error
	ConfirmFunc                  func(ctx context.Context, id string, now time.Time) error
	CancelExpiredFunc            func(ctx context.Context, now time.Time, limit int) (int, error)
	ListByPlayerFunc             func(ctx context.Context, playerID string, limit, offset int) ([]*domain.Booking, error)
	SearchFunc                   func(ctx context.Context, filter repository.BookingFilter) ([]*domain.Booking, error)
}

func (m *mockBookingRepo) Create(ctx context.Context, booking *domain.Booking) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, booking)
	}
	return nil
}

func (m *mockBookingRepo) GetByID(ctx context.Context, id string) (*domain.Booking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrBookingNotFound
}

func (m *mockBookingRepo) GetBlockingOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string, now time.Time) (*domain.Booking, error) {
	if m.GetBlockingOverlapFunc != nil {
		return m.GetBlockingOverlapFunc(ctx, subFieldID, start, end, excludeID, now)
	}
	return nil, nil
}

func (m *mockBookingRepo) HasConfirmedOverlap(ctx context.Context, subFieldID string, start, end time.Time, excludeID string) (bool, error) {
	if m.HasConfirmedOverlapFunc != nil {
		return m.HasConfirmedOverlapFunc(ctx, subFieldID, start, end, excludeID)
	}
	return false, nil
}

func (m *mockBookingRepo) CancelExpiredOverlapping(ctx context.Context, subFieldID string, start, end time.Time, now time.Time) error {
	if m.CancelExpiredOverlappingFunc != nil {
		return m.CancelExpiredOverlappingFunc(ctx, subFieldID, start, end, now)
	}
	return nil
}

func (m *mockBookingRepo) ExtendHold(ctx context.Context, id string, expiresAt time.Time) error {
	if m.ExtendHoldFunc != nil {
		return m.ExtendHoldFunc(ctx, id, expiresAt)
	}
	return nil
}

func (m *mockBookingRepo) Cancel(ctx context.Context, id string, reason string, now time.Time) error {
	if m.CancelFunc != nil {
		return m.CancelFunc(ctx, id, reason, now)
	}
	return nil
}

func (m *mockBookingRepo) Confirm(ctx context.Context, id string, now time.Time) error {
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, id, now)
	}
	return nil
}

func (m *mockBookingRepo) CancelExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if m.CancelExpiredFunc != nil {
		return m.CancelExpiredFunc(ctx, now, limit)
	}
	return 0, nil
}

func (m *mockBookingRepo) ListByPlayer(ctx context.Context, playerID string, limit, offset int) ([]*domain.Booking, error) {
	if m.ListByPlayerFunc != nil {
		return m.ListByPlayerFunc(ctx, playerID, limit, offset)
	}
	return nil, nil
}

func (m *mockBookingRepo) Search(ctx context.Context, filter repository.BookingFilter) ([]*domain.Booking, error) {
	if m.SearchFunc != nil {
		return m.SearchFunc(ctx, filter)
	}
	return nil, nil
}

type mockSubFieldRepo struct {
	GetByIDFunc func(ctx context.Context, id string) (*domain.SubField, error)
}

func (m *mockSubFieldRepo) GetByID(ctx context.Context, id string) (*domain.SubField, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return &domain.SubField{ID: id, OwnerID: "owner-1"}, nil
}

type mockRuleRepo struct {
	ListBySubFieldAndDayFunc func(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error)
}

func (m *mockRuleRepo) ListBySubFieldAndDay(ctx context.Context, subFieldID string, dayOfWeek int) ([]*domain.PricingRule, error) {
	if m.ListBySubFieldAndDayFunc != nil {
		return m.ListBySubFieldAndDayFunc(ctx, subFieldID, dayOfWeek)
	}
	return nil, nil
}

type mockRecurringRepo struct {
	CreateWithChildrenFunc func(ctx context.Context, parent *domain.RecurringBooking) error
	GetByIDFunc            func(ctx context.Context, id string) (*domain.RecurringBooking, error)
	FindIdenticalFunc      func(ctx context.Context, playerID, subFieldID string, recurrenceType domain.RecurrenceType, startDate, endDate time.Time) (*domain.RecurringBooking, error)
	ExtendChildrenHoldFunc func(ctx context.Context, parentID string, expiresAt time.Time) error
	CancelAggregateFunc    func(ctx context.Context, parentID string, reason string, now time.Time) error
	SetStatusFunc          func(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error
	ListExpiredPendingFunc func(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringBooking, error)
	CompleteElapsedFunc    func(ctx context.Context, now time.Time, limit int) (int, error)
}

func (m *mockRecurringRepo) CreateWithChildren(ctx context.Context, parent *domain.RecurringBooking) error {
	if m.CreateWithChildrenFunc != nil {
		return m.CreateWithChildrenFunc(ctx, parent)
	}
	return nil
}

func (m *mockRecurringRepo) GetByID(ctx context.Context, id string) (*domain.RecurringBooking, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, domain.ErrRecurringNotFound
}

func (m *mockRecurringRepo) FindIdentical(ctx context.Context, playerID, subFieldID string, recurrenceType domain.RecurrenceType, startDate, endDate time.Time) (*domain.RecurringBooking, error) {
	if m.FindIdenticalFunc != nil {
		return m.FindIdenticalFunc(ctx, playerID, subFieldID, recurrenceType, startDate, endDate)
	}
	return nil, nil
}

func (m *mockRecurringRepo) ExtendChildrenHold(ctx context.Context, parentID string, expiresAt time.Time) error {
	if m.ExtendChildrenHoldFunc != nil {
		return m.ExtendChildrenHoldFunc(ctx, parentID, expiresAt)
	}
	return nil
}

func (m *mockRecurringRepo) CancelAggregate(ctx context.Context, parentID string, reason string, now time.Time) error {
	if m.CancelAggregateFunc != nil {
		return m.CancelAggregateFunc(ctx, parentID, reason, now)
	}
	return nil
}

func (m *mockRecurringRepo) SetStatus(ctx context.Context, parentID string, status domain.BookingStatus, now time.Time) error {
	if m.SetStatusFunc != nil {
		return m.SetStatusFunc(ctx, parentID, status, now)
	}
	return nil
}

func (m *mockRecurringRepo) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]*domain.RecurringBooking, error) {
	if m.ListExpiredPendingFunc != nil {
		return m.ListExpiredPendingFunc(ctx, now, limit)
	}
	return nil, nil
}

func (m *mockRecurringRepo) CompleteElapsed(ctx context.Context, now time.Time, limit int) (int, error) {
	if m.CompleteElapsedFunc != nil {
		return m.CompleteElapsedFunc(ctx, now, limit)
	}
	return 0, nil
}

type mockPaymentRepo struct {
	SettleFunc func(ctx context.Context, payment *domain.Payment, now time.Time) (int, error)
}

func (m *mockPaymentRepo) Settle(ctx context.Context, payment *domain.Payment, now time.Time) (int, error) {
	if m.SettleFunc != nil {
		return m.SettleFunc(ctx, payment, now)
	}
	return len(payment.BookingIDs), nil
}

type mockGateway struct {
	CreatePaymentIntentFunc func(ctx context.Context, req *gateway.PaymentIntentRequest) (*gateway.PaymentIntentResponse, error)
	CancelPaymentIntentFunc func(ctx context.Context, paymentIntentID string) error
}

func (m *mockGateway) CreatePaymentIntent(ctx context.Context, req *gateway.PaymentIntentRequest) (*gateway.PaymentIntentResponse, error) {
	if m.CreatePaymentIntentFunc != nil {
		return m.CreatePaymentIntentFunc(ctx, req)
	}
	return &gateway.PaymentIntentResponse{
		PaymentIntentID: "pi_test_1",
		ClientSecret:    "pi_test_1_secret",
		Status:          "requires_payment_method",
		Amount:          req.Amount,
		Currency:        req.Currency,
	}, nil
}

func (m *mockGateway) CancelPaymentIntent(ctx context.Context, paymentIntentID string) error {
	if m.CancelPaymentIntentFunc != nil {
		return m.CancelPaymentIntentFunc(ctx, paymentIntentID)
	}
	return nil
}

func (m *mockGateway) Name() string { return "mock" }
