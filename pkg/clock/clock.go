package clock

import (
	"sync"
	"time"
)

// Clock is the single source of "now" for the reservation engine. Every
// expiry check and past-start validation goes through it so tests can drive
// time explicitly instead of sleeping.
type Clock interface {
	Now() time.Time
}

// System is a Clock backed by the real system clock.
type System struct{}

func NewSystem() *System { return &System{} }

func (*System) Now() time.Time { return time.Now() }

// Fake is a controllable Clock for tests.
type Fake struct {
	mu      sync.Mutex
	current time.Time
}

// NewFake returns a fake clock initialised to start.
func NewFake(start time.Time) *Fake {
	return &Fake{current: start}
}

func (c *Fake) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Set moves the clock to the given instant.
func (c *Fake) Set(t time.Time) {
	c.mu.Lock()
	c.current = t
	c.mu.Unlock()
}

// Advance moves the clock forward by d and returns the updated time.
func (c *Fake) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	c.current = c.current.Add(d)
	t := c.current
	c.mu.Unlock()
	return t
}
