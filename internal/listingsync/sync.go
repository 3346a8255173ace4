// Package listingsync keeps the listing status mirrored on matches in step
// with the live listing lifecycle.
package listingsync

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/model"
)

// Store is the persistence the synchronizer needs.
type Store interface {
	UpdateMatchListingStatus(ctx context.Context, listingID string, status model.ListingStatus, at time.Time) (int, error)
	ExpireListings(ctx context.Context, now time.Time) ([]model.ListingRef, error)
	ReconcileListingStatus(ctx context.Context, at time.Time) (map[model.ListingStatus]int, error)
}

// Synchronizer propagates listing status changes into matches.
type Synchronizer struct {
	store Store
	now   func() time.Time
}

// New creates a Synchronizer.
func New(st Store) *Synchronizer {
	return &Synchronizer{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// SweepReport summarizes an expiry sweep.
type SweepReport struct {
	Expired        []model.ListingRef `json:"expired"`
	MatchesUpdated int                `json:"matches_updated"`
	Failed         int                `json:"failed"`
}

// ReconcileReport summarizes a reconciliation pass.
type ReconcileReport struct {
	Corrected int                         `json:"corrected"`
	ByStatus  map[model.ListingStatus]int `json:"by_status"`
}

// SyncListingStatus sets the mirror of every match on listingID whose mirror
// differs from status and returns how many matches changed.
func (s *Synchronizer) SyncListingStatus(ctx context.Context, listingID string, status model.ListingStatus, reason string) (int, error) {
	if listingID == "" {
		return 0, eris.New("listingsync: listing id is required")
	}
	if _, err := model.ParseListingStatus(string(status)); err != nil {
		return 0, err
	}

	n, err := s.store.UpdateMatchListingStatus(ctx, listingID, status, s.now())
	if err != nil {
		return 0, eris.Wrapf(err, "listingsync: sync listing %s", listingID)
	}

	zap.L().Info("listingsync: listing status propagated",
		zap.String("listing_id", listingID),
		zap.String("status", string(status)),
		zap.String("reason", reason),
		zap.Int("matches_updated", n),
	)
	return n, nil
}

// SweepExpired expires active listings past their expiry time and propagates
// the change to their matches. Listings already expired are not revisited.
func (s *Synchronizer) SweepExpired(ctx context.Context) (*SweepReport, error) {
	expired, err := s.store.ExpireListings(ctx, s.now())
	if err != nil {
		return nil, eris.Wrap(err, "listingsync: expire listings")
	}

	report := &SweepReport{Expired: expired}
	for _, l := range expired {
		n, err := s.SyncListingStatus(ctx, l.ID, model.ListingExpired, "expired")
		if err != nil {
			report.Failed++
			zap.L().Warn("listingsync: failed to propagate expiry",
				zap.String("listing_id", l.ID), zap.Error(err))
			continue
		}
		report.MatchesUpdated += n
	}

	zap.L().Info("listingsync: expiry sweep complete",
		zap.Int("listings_expired", len(expired)),
		zap.Int("matches_updated", report.MatchesUpdated),
		zap.Int("failed", report.Failed),
	)
	return report, nil
}

// Reconcile corrects every match mirror that disagrees with its live listing.
func (s *Synchronizer) Reconcile(ctx context.Context) (*ReconcileReport, error) {
	fixed, err := s.store.ReconcileListingStatus(ctx, s.now())
	if err != nil {
		return nil, eris.Wrap(err, "listingsync: reconcile")
	}
	report := &ReconcileReport{ByStatus: fixed}
	for _, n := range fixed {
		report.Corrected += n
	}
	if report.Corrected > 0 {
		zap.L().Warn("listingsync: corrected drifted match mirrors",
			zap.Int("corrected", report.Corrected),
			zap.Any("by_status", fixed),
		)
	}
	return report, nil
}
