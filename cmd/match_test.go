package main

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-match/internal/matching"
)

type fakeProcessor struct {
	calls atomic.Int32
	fail  map[string]bool
}

func (f *fakeProcessor) ProcessListingID(_ context.Context, id string) (*matching.Report, error) {
	f.calls.Add(1)
	if f.fail[id] {
		return nil, errors.New("boom")
	}
	return &matching.Report{ListingID: id, Inserted: 1}, nil
}

func TestRunMatches_KeepsOrder(t *testing.T) {
	proc := &fakeProcessor{}
	ids := []string{"l1", "l2", "l3", "l4", "l5"}

	reports, failed := runMatches(context.Background(), proc, ids, 2)

	assert.Zero(t, failed)
	require.Len(t, reports, len(ids))
	for i, r := range reports {
		require.NotNil(t, r)
		assert.Equal(t, ids[i], r.ListingID)
	}
	assert.Equal(t, int32(5), proc.calls.Load())
}

func TestRunMatches_FailureDoesNotStopBatch(t *testing.T) {
	proc := &fakeProcessor{fail: map[string]bool{"l2": true}}

	reports, failed := runMatches(context.Background(), proc, []string{"l1", "l2", "l3"}, 0)

	assert.Equal(t, 1, failed)
	assert.NotNil(t, reports[0])
	assert.Nil(t, reports[1])
	assert.NotNil(t, reports[2])
	assert.Equal(t, int32(3), proc.calls.Load())
}
