package resilience

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastPolicy(attempts int) Policy {
	return Policy{Attempts: attempts, Initial: time.Millisecond, Max: 2 * time.Millisecond}
}

func TestRetry_SucceedsAfterTransient(t *testing.T) {
	calls := 0
	v, err := Retry(context.Background(), fastPolicy(3), "op", func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", Transient(errBoom, 503)
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if v != "ok" || calls != 3 {
		t.Errorf("got (%q, %d calls), want (ok, 3)", v, calls)
	}
}

func TestRetry_StopsOnPermanent(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(5), "op", func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want errBoom", err)
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestRetry_ExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := Retry(context.Background(), fastPolicy(4), "op", func(context.Context) (int, error) {
		calls++
		return 0, Transient(errBoom, 0)
	})
	if !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want errBoom", err)
	}
	if calls != 4 {
		t.Errorf("calls = %d, want 4", calls)
	}
}

func TestRetry_CustomRetryable(t *testing.T) {
	calls := 0
	p := fastPolicy(3)
	p.Retryable = func(err error) bool { return errors.Is(err, errBoom) }
	_, _ = Retry(context.Background(), p, "op", func(context.Context) (int, error) {
		calls++
		return 0, errBoom
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestRetry_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	p := Policy{Attempts: 5, Initial: time.Hour, Max: time.Hour}
	_, err := Retry(ctx, p, "op", func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, Transient(errBoom, 0)
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestPolicy_Backoff(t *testing.T) {
	p := Policy{Attempts: 5, Initial: 100 * time.Millisecond, Max: 300 * time.Millisecond}.normalized()
	want := []time.Duration{100 * time.Millisecond, 200 * time.Millisecond, 300 * time.Millisecond, 300 * time.Millisecond}
	for i, w := range want {
		if got := p.backoff(i); got != w {
			t.Errorf("backoff(%d) = %s, want %s", i, got, w)
		}
	}
}

func TestPolicy_BackoffJitterBounds(t *testing.T) {
	p := Policy{Initial: 100 * time.Millisecond, Max: time.Second, Jitter: 0.5}.normalized()
	for i := 0; i < 50; i++ {
		d := p.backoff(0)
		if d < 50*time.Millisecond || d > 150*time.Millisecond {
			t.Fatalf("backoff out of range: %s", d)
		}
	}
}
