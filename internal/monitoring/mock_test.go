package monitoring

import (
	"context"

	"github.com/sells-group/market-match/internal/matching"
	"github.com/sells-group/market-match/internal/resilience"
)

type fakeStats struct {
	stats matching.DispatcherStats
}

func (f *fakeStats) Stats() matching.DispatcherStats { return f.stats }

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fakeBreaker struct{ state resilience.State }

func (b fakeBreaker) State() resilience.State { return b.state }
