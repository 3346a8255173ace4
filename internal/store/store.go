package store

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-match/internal/candidate"
	"github.com/sells-group/market-match/internal/model"
)

var (
	// ErrNotFound is returned when a row does not exist or is not visible to
	// the caller.
	ErrNotFound = eris.New("not found")
	// ErrForbidden is returned when a row exists but belongs to another buyer.
	ErrForbidden = eris.New("forbidden")
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is a 1-based page request.
type Page struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
}

// Normalize clamps the page into a valid range.
func (p Page) Normalize() Page {
	if p.Page < 1 {
		p.Page = 1
	}
	if p.Limit <= 0 {
		p.Limit = defaultPageSize
	}
	if p.Limit > maxPageSize {
		p.Limit = maxPageSize
	}
	return p
}

// Offset returns the row offset of a normalized page.
func (p Page) Offset() int {
	return (p.Page - 1) * p.Limit
}

// TotalPages returns how many pages of p.Limit hold total rows.
func (p Page) TotalPages(total int) int {
	if p.Limit <= 0 {
		return 0
	}
	return (total + p.Limit - 1) / p.Limit
}

// PreferenceFilter selects a buyer's preferences.
type PreferenceFilter struct {
	BuyerID string                 `json:"buyer_id"`
	Status  model.PreferenceStatus `json:"status,omitempty"`
	Page
}

// MatchSort orders match listings.
type MatchSort string

const (
	SortNewest MatchSort = "newest"
	SortScore  MatchSort = "score"
	SortOldest MatchSort = "oldest"
)

// ParseMatchSort maps a raw sort key to a MatchSort, defaulting to newest.
func ParseMatchSort(s string) MatchSort {
	switch MatchSort(strings.ToLower(strings.TrimSpace(s))) {
	case SortScore:
		return SortScore
	case SortOldest:
		return SortOldest
	default:
		return SortNewest
	}
}

func (s MatchSort) orderBy() string {
	switch s {
	case SortScore:
		return "m.match_score DESC, m.matched_at DESC"
	case SortOldest:
		return "m.matched_at ASC"
	default:
		return "m.matched_at DESC"
	}
}

// MatchFilter selects a buyer's matches.
type MatchFilter struct {
	BuyerID      string            `json:"buyer_id"`
	PreferenceID string            `json:"preference_id,omitempty"`
	Status       model.MatchStatus `json:"status,omitempty"`
	Sort         MatchSort         `json:"sort,omitempty"`
	Page
}

// Store is the persistence contract of the matching service.
type Store interface {
	// Preferences
	CreatePreference(ctx context.Context, p *model.BuyerPreference) error
	GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error)
	ListPreferences(ctx context.Context, filter PreferenceFilter) ([]model.BuyerPreference, int, error)
	UpdatePreference(ctx context.Context, p *model.BuyerPreference) error
	DeletePreference(ctx context.Context, id, buyerID string) error
	FindCandidates(ctx context.Context, c candidate.Criteria) ([]model.BuyerPreference, error)

	// Listings (read-only)
	GetListing(ctx context.Context, id string) (*model.Listing, error)
	GetSeller(ctx context.Context, id string) (*model.Seller, error)

	// Matches
	CreateMatch(ctx context.Context, m *model.Match) (bool, error)
	GetMatch(ctx context.Context, id string) (*model.Match, error)
	ListMatches(ctx context.Context, filter MatchFilter) ([]model.MatchView, int, error)
	UpdateMatchStatus(ctx context.Context, id string, status model.MatchStatus, markViewed bool, at time.Time) (*model.Match, error)
	MatchStats(ctx context.Context, buyerID string, now time.Time) (*model.MatchStats, error)

	// Listing status mirror
	UpdateMatchListingStatus(ctx context.Context, listingID string, status model.ListingStatus, at time.Time) (int, error)
	ExpireListings(ctx context.Context, now time.Time) ([]model.ListingRef, error)
	ReconcileListingStatus(ctx context.Context, at time.Time) (map[model.ListingStatus]int, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

func nonNil(ss []string) []string {
	if ss == nil {
		return []string{}
	}
	return ss
}

type scannable interface {
	Scan(dest ...any) error
}

func encodeLocation(loc *model.Location) ([]byte, *float64, *float64, error) {
	if loc == nil {
		return nil, nil, nil, nil
	}
	data, err := json.Marshal(loc)
	if err != nil {
		return nil, nil, nil, err
	}
	lat, lng := loc.Latitude, loc.Longitude
	return data, &lat, &lng, nil
}

func decodeLocation(data []byte) (*model.Location, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var loc model.Location
	if err := json.Unmarshal(data, &loc); err != nil {
		return nil, err
	}
	return &loc, nil
}

func addBucket(stats *model.MatchStats, kind, key string, n int) {
	switch kind {
	case "status":
		stats.ByStatus[model.MatchStatus(key)] += n
	case "listing_status":
		stats.ByListingStatus[model.ListingStatus(key)] += n
	}
}
