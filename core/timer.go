package core

import (
	"context"
	"time"
)

// Clock abstracts time for every wait in the core (pulse holds, tick cadence,
// homing retries) so tests can run the loops without real delays.
type Clock interface {
	Now() time.Time

	// Sleep blocks for d or until ctx is done, returning ctx.Err() in that case
	Sleep(ctx context.Context, d time.Duration) error
}

// SystemClock is the wall-clock implementation
type SystemClock struct{}

func (SystemClock) Now() time.Time {
	return time.Now()
}

func (SystemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
