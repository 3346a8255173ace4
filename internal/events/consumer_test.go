package events

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/resilience"
)

// fakeReader serves queued messages, then returns io.EOF.
type fakeReader struct {
	mu        sync.Mutex
	msgs      []kafka.Message
	committed []int64
	closed    bool
}

func (r *fakeReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return kafka.Message{}, err
	}
	if len(r.msgs) == 0 {
		return kafka.Message{}, io.EOF
	}
	m := r.msgs[0]
	r.msgs = r.msgs[1:]
	return m, nil
}

func (r *fakeReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	return nil
}

func (r *fakeReader) Close() error {
	r.closed = true
	return nil
}

type fakeDispatcher struct {
	ids []string
	err error
}

func (d *fakeDispatcher) SubmitWait(_ context.Context, id string) error {
	if d.err != nil {
		return d.err
	}
	d.ids = append(d.ids, id)
	return nil
}

type syncCall struct {
	id     string
	status model.ListingStatus
	reason string
}

type fakeSync struct {
	calls []syncCall
	err   error
}

func (s *fakeSync) SyncListingStatus(_ context.Context, id string, status model.ListingStatus, reason string) (int, error) {
	s.calls = append(s.calls, syncCall{id, status, reason})
	return 1, s.err
}

func messages(values ...string) []kafka.Message {
	out := make([]kafka.Message, len(values))
	for i, v := range values {
		out[i] = kafka.Message{Offset: int64(i), Value: []byte(v)}
	}
	return out
}

func TestConsumer_RoutesEvents(t *testing.T) {
	r := &fakeReader{msgs: messages(
		`{"type": "listing.created", "listing_id": "l-1"}`,
		`{"type": "listing.status_changed", "listing_id": "l-2", "status": "SOLD", "reason": "paid"}`,
		`not json`,
		`{"type": "listing.created"}`,
		`{"type": "listing.status_changed", "listing_id": "l-3", "status": "archived"}`,
		`{"type": "listing.viewed", "listing_id": "l-4"}`,
	)}
	d, s := &fakeDispatcher{}, &fakeSync{}

	err := NewConsumer(r, d, s).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF))

	assert.Equal(t, []string{"l-1"}, d.ids)
	assert.Equal(t, []syncCall{{"l-2", model.ListingSold, "paid"}}, s.calls)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5}, r.committed, "malformed and ignored messages are committed")
}

func TestConsumer_SyncErrorDoesNotStop(t *testing.T) {
	r := &fakeReader{msgs: messages(
		`{"type": "listing.status_changed", "listing_id": "l-1", "status": "sold"}`,
		`{"type": "listing.created", "listing_id": "l-2"}`,
	)}
	d, s := &fakeDispatcher{}, &fakeSync{err: errors.New("db down")}

	err := NewConsumer(r, d, s).Run(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, io.EOF), "only the reader ends the run")

	assert.Len(t, s.calls, 1, "non-transient errors are not retried")
	assert.Equal(t, []string{"l-2"}, d.ids)
	assert.Equal(t, []int64{0, 1}, r.committed)
}

func TestConsumer_SyncRetriesTransientErrors(t *testing.T) {
	r := &fakeReader{msgs: messages(
		`{"type": "listing.status_changed", "listing_id": "l-1", "status": "expired"}`,
	)}
	s := &fakeSync{err: resilience.Transient(errors.New("connection reset by peer"), 0)}

	c := NewConsumer(r, &fakeDispatcher{}, s)
	c.retry = resilience.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond}

	err := c.Run(context.Background())
	assert.True(t, errors.Is(err, io.EOF))
	assert.Len(t, s.calls, 3)
	assert.Equal(t, []int64{0}, r.committed)
}

func TestConsumer_DispatcherErrorStopsWithoutCommit(t *testing.T) {
	r := &fakeReader{msgs: messages(
		`{"type": "listing.created", "listing_id": "l-1"}`,
		`{"type": "listing.created", "listing_id": "l-2"}`,
	)}
	d := &fakeDispatcher{err: errors.New("dispatcher closed")}

	err := NewConsumer(r, d, &fakeSync{}).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "dispatcher closed")
	assert.Empty(t, r.committed)
}

func TestConsumer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	r := &fakeReader{msgs: messages(`{"type": "listing.created", "listing_id": "l-1"}`)}

	c := NewConsumer(r, &fakeDispatcher{}, &fakeSync{})
	assert.NoError(t, c.Run(ctx))
	require.NoError(t, c.Close())
	assert.True(t, r.closed)
}
