// Package matches serves a buyer's view of their matches: listing, workflow
// status updates and aggregate statistics.
package matches

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-match/internal/listingsync"
	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/store"
)

// Store is the persistence the match service needs.
type Store interface {
	GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	ListMatches(ctx context.Context, filter store.MatchFilter) ([]model.MatchView, int, error)
	UpdateMatchStatus(ctx context.Context, id string, status model.MatchStatus, markViewed bool, at time.Time) (*model.Match, error)
	MatchStats(ctx context.Context, buyerID string, now time.Time) (*model.MatchStats, error)
}

// Page is one page of a buyer's matches.
type Page struct {
	Matches    []model.MatchView `json:"matches"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	Limit      int               `json:"limit"`
	TotalPages int               `json:"total_pages"`
}

// Service implements the buyer-facing match operations.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService creates a Service.
func NewService(st Store) *Service {
	return &Service{
		store: st,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// List returns a page of the buyer's matches with availability guidance.
func (s *Service) List(ctx context.Context, filter store.MatchFilter) (*Page, error) {
	if filter.BuyerID == "" {
		return nil, eris.Wrap(store.ErrForbidden, "matches: buyer is required")
	}
	filter.Page = filter.Page.Normalize()

	views, total, err := s.store.ListMatches(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "matches: list")
	}
	for i := range views {
		views[i].Availability = listingsync.Availability(views[i].ListingStatus)
	}
	if views == nil {
		views = []model.MatchView{}
	}
	return &Page{
		Matches:    views,
		Total:      total,
		Page:       filter.Page.Page,
		Limit:      filter.Page.Limit,
		TotalPages: filter.Page.TotalPages(total),
	}, nil
}

// ForPreference returns the matches of one preference, best score first.
// Another buyer's preference is reported as not found.
func (s *Service) ForPreference(ctx context.Context, buyerID, preferenceID string, page store.Page) (*Page, error) {
	p, err := s.store.GetPreference(ctx, preferenceID)
	if err != nil {
		return nil, err
	}
	if p.BuyerID != buyerID {
		return nil, eris.Wrapf(store.ErrNotFound, "preference %s", preferenceID)
	}
	return s.List(ctx, store.MatchFilter{
		BuyerID:      buyerID,
		PreferenceID: preferenceID,
		Sort:         store.SortScore,
		Page:         page,
	})
}

// Get returns one of the buyer's matches. Availability here reflects the
// mirrored listing status.
func (s *Service) Get(ctx context.Context, buyerID, matchID string) (*model.MatchView, error) {
	m, err := s.owned(ctx, buyerID, matchID)
	if err != nil {
		return nil, err
	}
	view := &model.MatchView{
		Match:              *m,
		IsListingAvailable: m.ListingStatus == model.ListingActive,
		Availability:       listingsync.Availability(m.ListingStatus),
	}
	p, err := s.store.GetPreference(ctx, m.PreferenceID)
	switch {
	case err == nil:
		view.PreferenceText = p.Text
	case !errors.Is(err, store.ErrNotFound):
		return nil, err
	}
	return view, nil
}

// UpdateStatus moves a match along the buyer workflow. The first move to
// viewed records viewed_at; later ones leave it untouched.
func (s *Service) UpdateStatus(ctx context.Context, buyerID, matchID, target string) (*model.Match, error) {
	to, err := model.ParseMatchTarget(target)
	if err != nil {
		return nil, err
	}
	m, err := s.owned(ctx, buyerID, matchID)
	if err != nil {
		return nil, err
	}
	next, err := m.Status.Advance(to)
	if err != nil {
		return nil, eris.Wrapf(err, "match %s", matchID)
	}
	updated, err := s.store.UpdateMatchStatus(ctx, matchID, next, to == model.MatchViewed, s.now())
	if err != nil {
		return nil, eris.Wrapf(err, "matches: update %s", matchID)
	}
	return updated, nil
}

// Stats aggregates the buyer's matches.
func (s *Service) Stats(ctx context.Context, buyerID string) (*model.MatchStats, error) {
	stats, err := s.store.MatchStats(ctx, buyerID, s.now())
	if err != nil {
		return nil, eris.Wrap(err, "matches: stats")
	}
	return stats, nil
}

func (s *Service) owned(ctx context.Context, buyerID, matchID string) (*model.Match, error) {
	m, err := s.store.GetMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.BuyerID != buyerID {
		return nil, eris.Wrapf(store.ErrForbidden, "match %s", matchID)
	}
	return m, nil
}
