// Package matching turns a new listing into persisted buyer matches and runs
// that work in the background.
package matching

import (
	"context"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/market-match/internal/candidate"
	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/scorer"
)

// Store is the persistence the orchestrator needs.
type Store interface {
	SellerLookup
	FindCandidates(ctx context.Context, c candidate.Criteria) ([]model.BuyerPreference, error)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	CreateMatch(ctx context.Context, m *model.Match) (bool, error)
}

// Report summarizes one orchestrator run.
type Report struct {
	ListingID      string        `json:"listing_id"`
	Candidates     int           `json:"candidates"`
	AboveThreshold int           `json:"above_threshold"`
	Inserted       int           `json:"inserted"`
	Duplicates     int           `json:"duplicates"`
	Failed         int           `json:"failed"`
	Skipped        bool          `json:"skipped,omitempty"`
	Duration       time.Duration `json:"duration"`
}

// Orchestrator runs filter, score, snapshot and insert for a listing.
type Orchestrator struct {
	store   Store
	limiter *rate.Limiter
	now     func() time.Time
}

// NewOrchestrator creates an Orchestrator that paces match inserts at
// insertsPerSecond. A non-positive rate disables pacing.
func NewOrchestrator(st Store, insertsPerSecond float64) *Orchestrator {
	limit := rate.Inf
	if insertsPerSecond > 0 {
		limit = rate.Limit(insertsPerSecond)
	}
	return &Orchestrator{
		store:   st,
		limiter: rate.NewLimiter(limit, 1),
		now:     func() time.Time { return time.Now().UTC() },
	}
}

type scored struct {
	pref   *model.BuyerPreference
	result scorer.Result
}

// ProcessListingID loads the listing and processes it.
func (o *Orchestrator) ProcessListingID(ctx context.Context, listingID string) (*Report, error) {
	l, err := o.store.GetListing(ctx, listingID)
	if err != nil {
		return nil, eris.Wrapf(err, "matching: load listing %s", listingID)
	}
	return o.Process(ctx, l)
}

// Process matches a listing against active buyer preferences. Re-running it
// for the same listing inserts nothing new. Per-candidate failures are
// logged and counted; only a failed candidate query or a cancelled context
// is returned as an error.
func (o *Orchestrator) Process(ctx context.Context, l *model.Listing) (*Report, error) {
	start := time.Now()
	report := &Report{ListingID: l.ID}
	log := zap.L().With(zap.String("component", "matching"), zap.String("listing_id", l.ID))

	if l.Status != "" && l.Status != model.ListingActive {
		report.Skipped = true
		log.Debug("matching: listing not active, skipping", zap.String("status", string(l.Status)))
		return report, nil
	}

	criteria, err := candidate.ForListing(l)
	if err != nil {
		return nil, eris.Wrap(err, "matching: build criteria")
	}
	prefs, err := o.store.FindCandidates(ctx, criteria)
	if err != nil {
		return nil, eris.Wrapf(err, "matching: find candidates for %s", l.ID)
	}
	report.Candidates = len(prefs)

	var kept []scored
	for i := range prefs {
		r := scorer.Score(&prefs[i], l)
		if r.Passes() {
			kept = append(kept, scored{pref: &prefs[i], result: r})
		}
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].result.Score > kept[j].result.Score
	})
	report.AboveThreshold = len(kept)

	for _, c := range kept {
		if err := o.limiter.Wait(ctx); err != nil {
			report.Duration = time.Since(start)
			return report, eris.Wrap(err, "matching: wait for insert slot")
		}

		inserted, err := o.persist(ctx, l, c)
		switch {
		case err != nil:
			report.Failed++
			log.Warn("matching: candidate failed",
				zap.String("preference_id", c.pref.ID),
				zap.Int("score", c.result.Score),
				zap.Error(err),
			)
		case inserted:
			report.Inserted++
		default:
			report.Duplicates++
		}
	}

	report.Duration = time.Since(start)
	log.Info("matching: listing processed",
		zap.Int("candidates", report.Candidates),
		zap.Int("above_threshold", report.AboveThreshold),
		zap.Int("inserted", report.Inserted),
		zap.Int("duplicates", report.Duplicates),
		zap.Int("failed", report.Failed),
		zap.Duration("duration", report.Duration),
	)
	return report, nil
}

func (o *Orchestrator) persist(ctx context.Context, l *model.Listing, c scored) (bool, error) {
	now := o.now()
	snap, err := BuildSnapshot(ctx, o.store, l, now)
	if err != nil {
		return false, err
	}
	m := &model.Match{
		PreferenceID:  c.pref.ID,
		BuyerID:       c.pref.BuyerID,
		ListingID:     l.ID,
		Score:         c.result.Score,
		Reason:        c.result.Summary,
		Snapshot:      *snap,
		ListingStatus: model.ListingActive,
		MatchedAt:     now,
	}
	inserted, err := o.store.CreateMatch(ctx, m)
	if err != nil {
		return false, eris.Wrapf(err, "matching: insert match for preference %s", c.pref.ID)
	}
	return inserted, nil
}
