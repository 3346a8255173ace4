package monitoring

import (
	"context"
	"sync"
	"time"

	"github.com/sells-group/market-match/internal/matching"
	"github.com/sells-group/market-match/internal/resilience"
)

// MetricsSnapshot holds a point-in-time view of matching health. Job counts
// cover the interval since the previous snapshot.
type MetricsSnapshot struct {
	// Dispatcher activity since the previous collection.
	Submitted int64   `json:"submitted"`
	Dropped   int64   `json:"dropped"`
	Completed int64   `json:"completed"`
	Failed    int64   `json:"failed"`
	Panics    int64   `json:"panics"`
	Inserted  int64   `json:"inserted"`
	FailRate  float64 `json:"fail_rate"`
	DropRate  float64 `json:"drop_rate"`

	// Current queue state.
	Queued   int `json:"queued"`
	Capacity int `json:"capacity"`

	StoreHealthy bool   `json:"store_healthy"`
	StoreError   string `json:"store_error,omitempty"`
	BreakerState string `json:"breaker_state,omitempty"`

	Window      time.Duration `json:"window"`
	CollectedAt time.Time     `json:"collected_at"`
}

// StatsSource reports cumulative dispatcher counters.
type StatsSource interface {
	Stats() matching.DispatcherStats
}

// Pinger checks store connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerSource reports the extraction circuit breaker state.
type BreakerSource interface {
	State() resilience.State
}

// Collector turns cumulative counters into per-interval snapshots.
type Collector struct {
	stats   StatsSource
	store   Pinger
	breaker BreakerSource

	mu   sync.Mutex
	prev matching.DispatcherStats
	last time.Time
	now  func() time.Time
}

// NewCollector creates a metrics collector. breaker may be nil.
func NewCollector(stats StatsSource, store Pinger, breaker BreakerSource) *Collector {
	c := &Collector{stats: stats, store: store, breaker: breaker, now: time.Now}
	c.last = c.now().UTC()
	return c
}

// Collect gathers a snapshot covering the time since the last call.
func (c *Collector) Collect(ctx context.Context) (*MetricsSnapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now().UTC()
	cur := c.stats.Stats()
	snap := &MetricsSnapshot{
		Submitted:   cur.Submitted - c.prev.Submitted,
		Dropped:     cur.Dropped - c.prev.Dropped,
		Completed:   cur.Completed - c.prev.Completed,
		Failed:      cur.Failed - c.prev.Failed,
		Panics:      cur.Panics - c.prev.Panics,
		Inserted:    cur.Inserted - c.prev.Inserted,
		Queued:      cur.Queued,
		Capacity:    cur.Capacity,
		Window:      now.Sub(c.last),
		CollectedAt: now,
	}
	if finished := snap.Completed + snap.Failed; finished > 0 {
		snap.FailRate = float64(snap.Failed) / float64(finished)
	}
	if offered := snap.Submitted + snap.Dropped; offered > 0 {
		snap.DropRate = float64(snap.Dropped) / float64(offered)
	}

	snap.StoreHealthy = true
	if c.store != nil {
		if err := c.store.Ping(ctx); err != nil {
			snap.StoreHealthy = false
			snap.StoreError = err.Error()
		}
	}
	if c.breaker != nil {
		snap.BreakerState = c.breaker.State().String()
	}

	c.prev, c.last = cur, now
	return snap, nil
}
