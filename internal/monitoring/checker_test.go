package monitoring

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/config"
	"github.com/sells-group/market-match/internal/matching"
)

func TestChecker_RunStopsOnCancel(t *testing.T) {
	collector := NewCollector(&fakeStats{}, fakePinger{}, nil)
	cfg := config.MonitoringConfig{CheckIntervalSecs: 1, FailureRateThreshold: 0.10}
	checker := NewChecker(collector, NewAlerter(cfg), cfg)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		checker.Run(ctx)
		close(done)
	}()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Checker.Run did not stop after context cancellation")
	}
}

func TestChecker_CheckSendsAlerts(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	src := &fakeStats{stats: matching.DispatcherStats{Submitted: 20, Completed: 10, Failed: 10, Panics: 1}}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, FailureRateThreshold: 0.2, DropRateThreshold: 0.05}
	checker := NewChecker(NewCollector(src, fakePinger{}, nil), NewAlerter(cfg), cfg)

	sent := checker.check(context.Background(), zap.NewNop())
	assert.Equal(t, 2, sent)
	assert.Equal(t, int32(2), received.Load())

	// Nothing new happened since the last check.
	assert.Zero(t, checker.check(context.Background(), zap.NewNop()))
}

func TestChecker_Defaults(t *testing.T) {
	checker := NewChecker(NewCollector(&fakeStats{}, nil, nil), NewAlerter(config.MonitoringConfig{}), config.MonitoringConfig{})
	assert.Equal(t, 5*time.Minute, checker.interval)
	assert.Equal(t, time.Hour, checker.repeat)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	checker.Run(ctx)
}

// switchPinger fails while err is set.
type switchPinger struct{ err error }

func (p *switchPinger) Ping(context.Context) error { return p.err }

func TestChecker_RepeatWindow(t *testing.T) {
	var received atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		received.Add(1)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	pinger := &switchPinger{err: errors.New("connection refused")}
	cfg := config.MonitoringConfig{WebhookURL: ts.URL, RepeatAfterSecs: 600}
	checker := NewChecker(NewCollector(&fakeStats{}, pinger, nil), NewAlerter(cfg), cfg)
	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	checker.now = func() time.Time { return clock }
	log := zap.NewNop()
	ctx := context.Background()

	assert.Equal(t, 1, checker.check(ctx, log), "first occurrence is sent")

	clock = clock.Add(5 * time.Minute)
	assert.Zero(t, checker.check(ctx, log), "still firing inside the repeat window")

	clock = clock.Add(6 * time.Minute)
	assert.Equal(t, 1, checker.check(ctx, log), "re-sent once the window has passed")

	pinger.err = nil
	clock = clock.Add(time.Minute)
	assert.Zero(t, checker.check(ctx, log))
	assert.Empty(t, checker.firing, "cleared conditions are forgotten")

	pinger.err = errors.New("connection refused")
	clock = clock.Add(time.Minute)
	assert.Equal(t, 1, checker.check(ctx, log), "a new occurrence is sent immediately")

	assert.Equal(t, int32(3), received.Load())
}

func TestChecker_FailedDeliveryRetriesNextTick(t *testing.T) {
	var calls atomic.Int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	cfg := config.MonitoringConfig{WebhookURL: ts.URL}
	checker := NewChecker(NewCollector(&fakeStats{}, &switchPinger{err: errors.New("down")}, nil), NewAlerter(cfg), cfg)

	assert.Zero(t, checker.check(context.Background(), zap.NewNop()))
	assert.Equal(t, 1, checker.check(context.Background(), zap.NewNop()))
}
