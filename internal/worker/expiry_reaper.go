package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/thainvbka/sports-booking-platform-sub000/internal/metrics"
	"github.com/thainvbka/sports-booking-platform-sub000/internal/repository"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/clock"
	"github.com/thainvbka/sports-booking-platform-sub000/pkg/logger"
)

// ExpiryReaperConfig contains configuration for the expiry reaper
type ExpiryReaperConfig struct {
	// SweepInterval is the pause between hold-expiry sweeps.
	SweepInterval time.Duration
	// CompletionSweepInterval is the low-frequency pass that completes
	// confirmed recurring series whose end date has passed.
	CompletionSweepInterval time.Duration
	// BatchSize caps how many rows one sweep processes.
	BatchSize int
}

// DefaultExpiryReaperConfig returns default configuration
func DefaultExpiryReaperConfig() *ExpiryReaperConfig {
	return &ExpiryReaperConfig{
		SweepInterval:           time.Minute,
		CompletionSweepInterval: 24 * time.Hour,
		BatchSize:               200,
	}
}

// ExpiryReaper is the eager half of hold expiry: the lazy check in the
// booking path already hides expired holds, the reaper actually releases
// them. It also cascades expiry to recurring parents and completes elapsed
// recurring series.
type ExpiryReaper struct {
	bookings  repository.BookingRepository
	recurring repository.RecurringBookingRepository
	metrics   *metrics.BookingMetrics
	clock     clock.Clock
	config    *ExpiryReaperConfig
	log       *logger.Logger
	stopCh    chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	running   bool

	// Stats
	totalExpired    int64
	totalCascaded   int64
	totalCompleted  int64
	lastSweepTime   time.Time
	lastExpiredSeen int
}

// NewExpiryReaper creates a new expiry reaper
func NewExpiryReaper(
	bookings repository.BookingRepository,
	recurring repository.RecurringBookingRepository,
	m *metrics.BookingMetrics,
	clk clock.Clock,
	config *ExpiryReaperConfig,
) *ExpiryReaper {
	if config == nil {
		config = DefaultExpiryReaperConfig()
	}
	return &ExpiryReaper{
		bookings:  bookings,
		recurring: recurring,
		metrics:   m,
		clock:     clk,
		config:    config,
		log:       logger.Get(),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the sweep goroutines.
func (w *ExpiryReaper) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return fmt.Errorf("expiry reaper already running")
	}
	w.running = true
	w.mu.Unlock()

	w.log.Info("Starting expiry reaper")

	w.wg.Add(2)
	go w.sweepLoop(ctx)
	go w.completionLoop(ctx)

	return nil
}

// Stop stops the reaper and waits for in-flight sweeps.
func (w *ExpiryReaper) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	w.log.Info("Stopping expiry reaper")
	close(w.stopCh)
	w.wg.Wait()
	w.log.Info("Expiry reaper stopped")
}

func (w *ExpiryReaper) sweepLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.SweepInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

func (w *ExpiryReaper) completionLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.config.CompletionSweepInterval)
	defer ticker.Stop()

	w.CompleteElapsed(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case <-ticker.C:
			w.CompleteElapsed(ctx)
		}
	}
}

// Sweep runs one expiry pass: bulk-cancel expired holds, then cascade to
// recurring parents left with no live children. Exported so tests and
// operational endpoints can trigger a pass without waiting for the ticker.
func (w *ExpiryReaper) Sweep(ctx context.Context) {
	now := w.clock.Now()

	w.mu.Lock()
	w.lastSweepTime = now
	w.mu.Unlock()

	expired, err := w.bookings.CancelExpired(ctx, now, w.config.BatchSize)
	if err != nil {
		w.log.Errorf("Failed to cancel expired holds: %v", err)
		return
	}

	w.metrics.ReaperSweeps.Add(ctx, 1)

	w.mu.Lock()
	w.lastExpiredSeen = expired
	w.totalExpired += int64(expired)
	w.mu.Unlock()

	if expired > 0 {
		w.metrics.HoldsExpired.Add(ctx, int64(expired))
		w.log.Infof("Expired %d stale holds", expired)
	}

	w.cascadeRecurring(ctx, now)
}

// cascadeRecurring cancels pending recurring parents whose children have all
// expired or been canceled. Per-parent failures are logged and skipped so one
// bad aggregate cannot stall the sweep.
func (w *ExpiryReaper) cascadeRecurring(ctx context.Context, now time.Time) {
	parents, err := w.recurring.ListExpiredPending(ctx, now, w.config.BatchSize)
	if err != nil {
		w.log.Errorf("Failed to list expired recurring bookings: %v", err)
		return
	}

	for _, parent := range parents {
		if err := w.recurring.CancelAggregate(ctx, parent.ID, "hold expired", now); err != nil {
			w.log.Errorf("Failed to cascade expiry to recurring booking %s: %v", parent.ID, err)
			continue
		}

		w.mu.Lock()
		w.totalCascaded++
		w.mu.Unlock()

		w.log.Infof("Cascaded expiry to recurring booking %s", parent.ID)
	}
}

// CompleteElapsed moves confirmed recurring series whose end date has passed
// to completed.
func (w *ExpiryReaper) CompleteElapsed(ctx context.Context) {
	now := w.clock.Now()

	completed, err := w.recurring.CompleteElapsed(ctx, now, w.config.BatchSize)
	if err != nil {
		w.log.Errorf("Failed to complete elapsed recurring bookings: %v", err)
		return
	}

	if completed > 0 {
		w.mu.Lock()
		w.totalCompleted += int64(completed)
		w.mu.Unlock()
		w.log.Infof("Completed %d elapsed recurring bookings", completed)
	}
}

// GetStats returns reaper statistics
func (w *ExpiryReaper) GetStats() *ExpiryReaperStats {
	w.mu.Lock()
	defer w.mu.Unlock()

	return &ExpiryReaperStats{
		IsRunning:       w.running,
		TotalExpired:    w.totalExpired,
		TotalCascaded:   w.totalCascaded,
		TotalCompleted:  w.totalCompleted,
		LastSweepTime:   w.lastSweepTime,
		LastExpiredSeen: w.lastExpiredSeen,
	}
}

// ExpiryReaperStats contains reaper statistics
type ExpiryReaperStats struct {
	IsRunning       bool      `json:"is_running"`
	TotalExpired    int64     `json:"total_expired"`
	TotalCascaded   int64     `json:"total_cascaded"`
	TotalCompleted  int64     `json:"total_completed"`
	LastSweepTime   time.Time `json:"last_sweep_time"`
	LastExpiredSeen int       `json:"last_expired_seen"`
}
