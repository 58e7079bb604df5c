package clock

import (
	"context"
	"time"
)

// Clock abstracts waiting and reading the time so retry and bookkeeping code can be tested without real delays.
type Clock interface {
	// Sleep blocks for at least d, or until ctx is done, in which case the context error is returned.
	// A negative or zero duration returns immediately.
	Sleep(ctx context.Context, d time.Duration) error
	// Now returns the current time.
	Now() time.Time
	// NewTicker returns a ticker that fires every d. d must be positive.
	NewTicker(d time.Duration) Ticker
}

// Ticker delivers ticks on C until it is stopped.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type clock struct{}

type ticker struct {
	t *time.Ticker
}

// New creates a wall clock.
func New() Clock {
	return clock{}
}

func (clock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (clock) Now() time.Time {
	return time.Now()
}

func (clock) NewTicker(d time.Duration) Ticker {
	return ticker{t: time.NewTicker(d)}
}

func (t ticker) C() <-chan time.Time {
	return t.t.C
}

func (t ticker) Stop() {
	t.t.Stop()
}
