package matching

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProcessor struct {
	mu      sync.Mutex
	seen    []string
	started chan string
	release chan struct{}
	fn      func(id string) (*Report, error)
}

func (f *fakeProcessor) ProcessListingID(_ context.Context, id string) (*Report, error) {
	if f.started != nil {
		f.started <- id
	}
	if f.release != nil {
		<-f.release
	}
	f.mu.Lock()
	f.seen = append(f.seen, id)
	f.mu.Unlock()
	if f.fn != nil {
		return f.fn(id)
	}
	return &Report{ListingID: id, Inserted: 1}, nil
}

func (f *fakeProcessor) processed() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.seen...)
}

func TestDispatcher_CloseDrains(t *testing.T) {
	proc := &fakeProcessor{}
	d := NewDispatcher(proc, 2, 10)

	for _, id := range []string{"a", "b", "c", "d"} {
		require.True(t, d.Submit(id))
	}
	d.Close()

	assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, proc.processed())
	stats := d.Stats()
	assert.Equal(t, int64(4), stats.Submitted)
	assert.Equal(t, int64(4), stats.Completed)
	assert.Equal(t, int64(4), stats.Inserted)
	assert.Zero(t, stats.Queued)
}

func TestDispatcher_FullQueueDrops(t *testing.T) {
	proc := &fakeProcessor{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	d := NewDispatcher(proc, 1, 1)

	require.True(t, d.Submit("a"))
	select {
	case id := <-proc.started:
		assert.Equal(t, "a", id)
	case <-time.After(5 * time.Second):
		t.Fatal("worker never picked up the first job")
	}

	assert.True(t, d.Submit("b"), "one slot is free while a runs")
	assert.False(t, d.Submit("c"), "queue is full")
	assert.Equal(t, int64(1), d.Stats().Dropped)

	close(proc.release)
	d.Close()
	assert.ElementsMatch(t, []string{"a", "b"}, proc.processed())
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d := NewDispatcher(&fakeProcessor{}, 1, 1)
	d.Close()
	d.Close()
	assert.False(t, d.Submit("late"))
}

func TestDispatcher_FailuresAndPanicsAreContained(t *testing.T) {
	proc := &fakeProcessor{fn: func(id string) (*Report, error) {
		switch id {
		case "boom":
			panic("nil listing")
		case "bad":
			return nil, errors.New("db down")
		}
		return &Report{ListingID: id}, nil
	}}
	d := NewDispatcher(proc, 1, 10)

	require.True(t, d.Submit("boom"))
	require.True(t, d.Submit("bad"))
	require.True(t, d.Submit("ok"))
	d.Close()

	assert.ElementsMatch(t, []string{"boom", "bad", "ok"}, proc.processed())
	stats := d.Stats()
	assert.Equal(t, int64(1), stats.Panics)
	assert.Equal(t, int64(2), stats.Failed)
	assert.Equal(t, int64(1), stats.Completed)
}

func TestDispatcher_SubmitWait(t *testing.T) {
	proc := &fakeProcessor{
		started: make(chan string, 4),
		release: make(chan struct{}),
	}
	d := NewDispatcher(proc, 1, 1)
	ctx := context.Background()

	require.NoError(t, d.SubmitWait(ctx, "a"))
	<-proc.started
	require.NoError(t, d.SubmitWait(ctx, "b"))

	// Queue is full: a bounded wait gives up without dropping anything.
	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	err := d.SubmitWait(short, "c")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Zero(t, d.Stats().Dropped)

	close(proc.release)
	d.Close()
	assert.True(t, errors.Is(d.SubmitWait(ctx, "late"), ErrDispatcherClosed))
	assert.ElementsMatch(t, []string{"a", "b"}, proc.processed())
}
