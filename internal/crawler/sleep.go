package crawler

import (
	"context"
	"fmt"
	"time"
)

// TimerSleeper implements Sleeper with a real timer.
type TimerSleeper struct{}

// Sleep blocks for d, returning early with the context error if ctx ends first.
func (TimerSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return fmt.Errorf("sleep interrupted: %w", ctx.Err())
	case <-timer.C:
		return nil
	}
}
