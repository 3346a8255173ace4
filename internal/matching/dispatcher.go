package matching

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// ErrDispatcherClosed is returned by SubmitWait after Close.
var ErrDispatcherClosed = eris.New("dispatcher closed")

// DefaultJobTimeout bounds a single background orchestrator run.
const DefaultJobTimeout = 2 * time.Minute

// Processor runs matching for one listing id.
type Processor interface {
	ProcessListingID(ctx context.Context, listingID string) (*Report, error)
}

// DispatcherStats is a point-in-time view of the dispatcher counters.
type DispatcherStats struct {
	Submitted int64 `json:"submitted"`
	Dropped   int64 `json:"dropped"`
	Completed int64 `json:"completed"`
	Failed    int64 `json:"failed"`
	Panics    int64 `json:"panics"`
	Inserted  int64 `json:"inserted"`
	Queued    int   `json:"queued"`
	Capacity  int   `json:"capacity"`
}

// Dispatcher runs orchestrator jobs on a fixed pool of workers fed by a
// bounded queue. Callers never block on or observe a job's outcome.
type Dispatcher struct {
	proc    Processor
	queue   chan string
	timeout time.Duration
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	submitted atomic.Int64
	dropped   atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
	panics    atomic.Int64
	inserted  atomic.Int64
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize.
func NewDispatcher(proc Processor, workers, queueSize int) *Dispatcher {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}
	d := &Dispatcher{
		proc:    proc,
		queue:   make(chan string, queueSize),
		timeout: DefaultJobTimeout,
	}
	for i := 0; i < workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit enqueues a listing for matching. It returns false without blocking
// when the dispatcher is closed or the queue is full.
func (d *Dispatcher) Submit(listingID string) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return false
	}
	select {
	case d.queue <- listingID:
		d.submitted.Add(1)
		return true
	default:
		d.dropped.Add(1)
		zap.L().Warn("matching: queue full, dropping listing",
			zap.String("component", "dispatcher"),
			zap.String("listing_id", listingID),
			zap.Int("capacity", cap(d.queue)),
		)
		return false
	}
}

// SubmitWait enqueues a listing, blocking while the queue is full. Event
// consumers use it to apply backpressure instead of dropping work.
func (d *Dispatcher) SubmitWait(ctx context.Context, listingID string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- listingID:
		d.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return eris.Wrapf(ctx.Err(), "matching: submit %s", listingID)
	}
}

// Close stops intake and waits for queued and in-flight jobs to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
}

// Stats returns the current counters.
func (d *Dispatcher) Stats() DispatcherStats {
	return DispatcherStats{
		Submitted: d.submitted.Load(),
		Dropped:   d.dropped.Load(),
		Completed: d.completed.Load(),
		Failed:    d.failed.Load(),
		Panics:    d.panics.Load(),
		Inserted:  d.inserted.Load(),
		Queued:    len(d.queue),
		Capacity:  cap(d.queue),
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for id := range d.queue {
		d.run(id)
	}
}

func (d *Dispatcher) run(listingID string) {
	log := zap.L().With(zap.String("component", "dispatcher"), zap.String("listing_id", listingID))
	defer func() {
		if r := recover(); r != nil {
			d.panics.Add(1)
			d.failed.Add(1)
			log.Error("matching: job panicked", zap.String("panic", fmt.Sprint(r)))
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()

	report, err := d.proc.ProcessListingID(ctx, listingID)
	if err != nil {
		d.failed.Add(1)
		log.Error("matching: job failed", zap.Error(err))
		return
	}
	d.completed.Add(1)
	if report != nil {
		d.inserted.Add(int64(report.Inserted))
	}
}
