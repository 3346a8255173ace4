package monitoring

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-match/internal/matching"
	"github.com/sells-group/market-match/internal/resilience"
)

func TestCollector_Deltas(t *testing.T) {
	clock := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	src := &fakeStats{stats: matching.DispatcherStats{
		Submitted: 10, Dropped: 0, Completed: 8, Failed: 2, Inserted: 30, Queued: 1, Capacity: 16,
	}}
	c := NewCollector(src, fakePinger{}, fakeBreaker{state: resilience.Closed})
	c.now = func() time.Time { return clock }
	c.last = clock

	clock = clock.Add(5 * time.Minute)
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(10), snap.Submitted)
	assert.Equal(t, int64(2), snap.Failed)
	assert.InDelta(t, 0.2, snap.FailRate, 0.001)
	assert.Zero(t, snap.DropRate)
	assert.Equal(t, 5*time.Minute, snap.Window)
	assert.True(t, snap.StoreHealthy)
	assert.Equal(t, "closed", snap.BreakerState)

	// Second collection only sees what happened since the first.
	src.stats = matching.DispatcherStats{
		Submitted: 13, Dropped: 1, Completed: 11, Failed: 2, Inserted: 31, Queued: 0, Capacity: 16,
	}
	clock = clock.Add(time.Minute)
	snap, err = c.Collect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(3), snap.Submitted)
	assert.Equal(t, int64(1), snap.Dropped)
	assert.Equal(t, int64(3), snap.Completed)
	assert.Zero(t, snap.Failed)
	assert.Zero(t, snap.FailRate)
	assert.InDelta(t, 0.25, snap.DropRate, 0.001)
	assert.Equal(t, int64(1), snap.Inserted)
	assert.Equal(t, time.Minute, snap.Window)
}

func TestCollector_StoreDown(t *testing.T) {
	c := NewCollector(&fakeStats{}, fakePinger{err: errors.New("connection refused")}, nil)
	snap, err := c.Collect(context.Background())
	require.NoError(t, err)
	assert.False(t, snap.StoreHealthy)
	assert.Equal(t, "connection refused", snap.StoreError)
	assert.Empty(t, snap.BreakerState)
}
