package metrics

import (
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/telemetry"
)

// BookingMetrics bundles the reservation engine's counters. Instrument
// creation failures are logged and leave a nil instrument, which records
// nothing.
type BookingMetrics struct {
	HoldsCreated      *telemetry.Counter
	HoldsExtended     *telemetry.Counter
	HoldsExpired      *telemetry.Counter
	BookingsPaid      *telemetry.Counter
	BookingsConfirmed *telemetry.Counter
	BookingsCanceled  *telemetry.Counter
	SlotConflicts     *telemetry.Counter
	Settlements       *telemetry.Counter
	SettlementReplays *telemetry.Counter
	ReaperSweeps      *telemetry.Counter
	QuoteLatency      *telemetry.Histogram
}

// NewBookingMetrics creates all instruments from the global meter provider.
func NewBookingMetrics() *BookingMetrics {
	m := &BookingMetrics{}
	m.HoldsCreated = counter("booking_holds_created_total", "Holds placed on slots")
	m.HoldsExtended = counter("booking_holds_extended_total", "Hold deadlines extended on retry or payment")
	m.HoldsExpired = counter("booking_holds_expired_total", "Holds released by expiry")
	m.BookingsPaid = counter("bookings_paid_total", "Bookings moved to completed by settlement")
	m.BookingsConfirmed = counter("bookings_confirmed_total", "Paid bookings confirmed by owners")
	m.BookingsCanceled = counter("bookings_canceled_total", "Bookings explicitly canceled")
	m.SlotConflicts = counter("booking_slot_conflicts_total", "Booking attempts rejected by an overlapping slot")
	m.Settlements = counter("payment_settlements_total", "Gateway settlements applied")
	m.SettlementReplays = counter("payment_settlement_replays_total", "Duplicate gateway events ignored")
	m.ReaperSweeps = counter("expiry_reaper_sweeps_total", "Expiry reaper sweep iterations")

	h, err := telemetry.NewHistogram(telemetry.MetricOpts{
		Name:        "booking_quote_duration_seconds",
		Description: "Time to price and conflict-check a booking request",
		Unit:        "s",
	})
	if err != nil {
		logger.Get().Warnf("failed to create histogram booking_quote_duration_seconds: %v", err)
	}
	m.QuoteLatency = h

	return m
}

func counter(name, description string) *telemetry.Counter {
	c, err := telemetry.NewCounter(telemetry.MetricOpts{
		Name:        name,
		Description: description,
		Unit:        "1",
	})
	if err != nil {
		logger.Get().Warnf("failed to create counter %s: %v", name, err)
		return nil
	}
	return c
}
