package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// Policy controls retries with exponential backoff and jitter.
type Policy struct {
	// Attempts is the total number of tries including the first.
	Attempts int
	// Initial is the delay before the first retry.
	Initial time.Duration
	// Max caps any single delay.
	Max time.Duration
	// Jitter is the +/- fraction applied to each delay.
	Jitter float64
	// Retryable decides whether an error is worth another attempt.
	// IsTransient is used when nil.
	Retryable func(error) bool
}

// DefaultPolicy returns 3 attempts starting at 500ms, capped at 10s.
func DefaultPolicy() Policy {
	return Policy{
		Attempts: 3,
		Initial:  500 * time.Millisecond,
		Max:      10 * time.Second,
		Jitter:   0.25,
	}
}

func (p Policy) normalized() Policy {
	d := DefaultPolicy()
	if p.Attempts <= 0 {
		p.Attempts = d.Attempts
	}
	if p.Initial <= 0 {
		p.Initial = d.Initial
	}
	if p.Max <= 0 {
		p.Max = d.Max
	}
	if p.Jitter < 0 {
		p.Jitter = 0
	}
	if p.Retryable == nil {
		p.Retryable = IsTransient
	}
	return p
}

// backoff returns the delay after the given zero-based attempt.
func (p Policy) backoff(attempt int) time.Duration {
	delay := float64(p.Initial) * math.Pow(2, float64(attempt))
	if delay > float64(p.Max) {
		delay = float64(p.Max)
	}
	if p.Jitter > 0 {
		delay += (rand.Float64()*2 - 1) * delay * p.Jitter
	}
	return time.Duration(max(delay, 0))
}

// Retry calls fn until it succeeds, returns a non-retryable error, the
// attempts run out or ctx is done. The last error is returned.
func Retry[T any](ctx context.Context, p Policy, op string, fn func(ctx context.Context) (T, error)) (T, error) {
	p = p.normalized()

	var (
		zero T
		err  error
	)
	for attempt := 0; attempt < p.Attempts; attempt++ {
		var v T
		v, err = fn(ctx)
		if err == nil {
			return v, nil
		}
		if ctx.Err() != nil || !p.Retryable(err) || attempt == p.Attempts-1 {
			break
		}

		delay := p.backoff(attempt)
		zap.L().Warn("resilience: retrying",
			zap.String("operation", op),
			zap.Int("attempt", attempt+1),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return zero, err
		case <-timer.C:
		}
	}
	return zero, err
}
