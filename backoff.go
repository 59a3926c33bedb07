package pianista

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// BackoffPolicy describes the retry schedule of a poll session.
//
// BackoffPolicy is pure configuration: it holds no state and maps an attempt
// number to a delay. Delays grow geometrically from Initial by Multiplier and
// are capped at Max.
type BackoffPolicy struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// Interval returns the delay to wait after the given pending attempt.
//
// Attempt is 1-based: attempt 1 waits Initial, attempt 2 waits
// Initial*Multiplier, and so on, never exceeding Max. Values below 1 are
// treated as 1. The result is truncated to whole milliseconds.
func (b BackoffPolicy) Interval(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	next := float64(b.Initial) * math.Pow(b.Multiplier, float64(attempt-1))
	if next > float64(b.Max) || math.IsInf(next, 0) || math.IsNaN(next) {
		next = float64(b.Max)
	}
	return time.Duration(next).Truncate(time.Millisecond)
}

// WallClockBound returns the total time spent waiting if every attempt up to
// MaxAttempts comes back pending. Request latency is not included.
//
// For the plan defaults (5s initial, 60s cap, x1.5, 25 attempts) this is
// roughly 21 minutes; the worst case is always bounded by MaxAttempts*Max.
func (b BackoffPolicy) WallClockBound() time.Duration {
	var total time.Duration
	for i := 1; i <= b.MaxAttempts; i++ {
		total += b.Interval(i)
	}
	return total
}

// Validate checks that the policy can produce a sane schedule.
func (b BackoffPolicy) Validate() error {
	if b.Initial <= 0 {
		return errors.New("initial interval must be positive")
	}
	if b.Max < b.Initial {
		return fmt.Errorf("max interval (%s) must not be less than initial interval (%s)", b.Max, b.Initial)
	}
	if b.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be at least 1, got %g", b.Multiplier)
	}
	if b.MaxAttempts < 1 {
		return fmt.Errorf("max attempts must be at least 1, got %d", b.MaxAttempts)
	}
	return nil
}

// ceilSeconds converts a delay to whole seconds, rounding up.
func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int((d + time.Second - 1) / time.Second)
}
