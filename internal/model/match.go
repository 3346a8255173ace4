package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidTransition is returned when a buyer tries to move a match
// backwards in its workflow.
var ErrInvalidTransition = eris.New("invalid match status transition")

// MatchStatus is the buyer-facing workflow state of a match.
//
//	new ──► viewed ──► interested ──► contacted
//	 │        │            │              │
//	 └────────┴────────────┴──────────────┴──► dismissed
type MatchStatus string

const (
	MatchNew        MatchStatus = "new"
	MatchViewed     MatchStatus = "viewed"
	MatchInterested MatchStatus = "interested"
	MatchContacted  MatchStatus = "contacted"
	MatchDismissed  MatchStatus = "dismissed"
)

// MatchStatuses lists every workflow state in rank order.
var MatchStatuses = []MatchStatus{MatchNew, MatchViewed, MatchInterested, MatchContacted, MatchDismissed}

var matchRank = map[MatchStatus]int{
	MatchNew:        0,
	MatchViewed:     1,
	MatchInterested: 2,
	MatchContacted:  3,
	MatchDismissed:  4,
}

// ParseMatchTarget validates a status a buyer may request. "new" is only ever
// an initial state.
func ParseMatchTarget(s string) (MatchStatus, error) {
	st := MatchStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case MatchViewed, MatchInterested, MatchContacted, MatchDismissed:
		return st, nil
	}
	return "", eris.Wrapf(ErrInvalidStatus, "match status %q", s)
}

// ParseMatchStatus validates any stored workflow status.
func ParseMatchStatus(s string) (MatchStatus, error) {
	st := MatchStatus(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := matchRank[st]; ok {
		return st, nil
	}
	return "", eris.Wrapf(ErrInvalidStatus, "match status %q", s)
}

// Advance returns the status a match ends up in when the buyer requests to.
// Moving forward or staying put is allowed. Re-viewing a match that is already
// further along keeps its current status. Any other backward move fails.
func (s MatchStatus) Advance(to MatchStatus) (MatchStatus, error) {
	from, ok := matchRank[s]
	if !ok {
		return "", eris.Wrapf(ErrInvalidStatus, "match status %q", s)
	}
	target, ok := matchRank[to]
	if !ok || to == MatchNew {
		return "", eris.Wrapf(ErrInvalidStatus, "match status %q", to)
	}
	if target >= from {
		return to, nil
	}
	if to == MatchViewed && s != MatchDismissed {
		return s, nil
	}
	return "", eris.Wrapf(ErrInvalidTransition, "%s -> %s", s, to)
}

// Match is a persisted association between one preference and one listing.
// Score, Reason and Snapshot are fixed at insert time.
type Match struct {
	ID                     string        `json:"id"`
	PreferenceID           string        `json:"preference_id"`
	BuyerID                string        `json:"buyer_id"`
	ListingID              string        `json:"listing_id"`
	Score                  int           `json:"match_score"`
	Reason                 string        `json:"match_reason"`
	Snapshot               Snapshot      `json:"listing_snapshot"`
	Status                 MatchStatus   `json:"status"`
	ListingStatus          ListingStatus `json:"listing_status"`
	ListingStatusUpdatedAt time.Time     `json:"listing_status_updated_at"`
	MatchedAt              time.Time     `json:"matched_at"`
	ViewedAt               *time.Time    `json:"viewed_at,omitempty"`
	UpdatedAt              time.Time     `json:"updated_at"`
}

// Snapshot is the immutable copy of listing and seller state taken when a
// match is created.
type Snapshot struct {
	ListingID      string        `json:"listing_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Price          string        `json:"price"`
	Currency       string        `json:"currency"`
	Category       string        `json:"category"`
	Subcategory    string        `json:"subcategory,omitempty"`
	SubSubcategory string        `json:"sub_subcategory,omitempty"`
	Condition      string        `json:"condition"`
	ListingType    ListingType   `json:"listing_type"`
	EnrichedTags   []string      `json:"enriched_tags"`
	IsNegotiable   bool          `json:"is_negotiable"`
	Status         ListingStatus `json:"status"`
	Seller         SellerInfo    `json:"seller_info"`
	Location       *Location     `json:"location_info,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
	CapturedAt     time.Time     `json:"captured_at"`
}

// SellerInfo is the seller contact block of a snapshot.
type SellerInfo struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// Availability is buyer-facing guidance derived from a match's listing
// status mirror.
type Availability struct {
	Status             ListingStatus `json:"status"`
	Message            string        `json:"message"`
	AlternativeActions []string      `json:"alternative_actions"`
}

// MatchView is a match as returned to its buyer.
type MatchView struct {
	Match
	PreferenceText     string       `json:"preference_text"`
	IsListingAvailable bool         `json:"is_listing_available"`
	Availability       Availability `json:"availability"`
}

// MatchStats aggregates a buyer's matches.
type MatchStats struct {
	Total           int                   `json:"total"`
	ByStatus        map[MatchStatus]int   `json:"by_status"`
	ByListingStatus map[ListingStatus]int `json:"by_listing_status"`
	AverageScore    float64               `json:"average_score"`
	BestScore       int                   `json:"best_score"`
	LastWeek        int                   `json:"matches_this_week"`
	LastMonth       int                   `json:"matches_this_month"`
}

// NewMatchStats returns stats with every status bucket present and zeroed.
func NewMatchStats() *MatchStats {
	s := &MatchStats{
		ByStatus:        make(map[MatchStatus]int, len(MatchStatuses)),
		ByListingStatus: make(map[ListingStatus]int, len(ListingStatuses)),
	}
	for _, st := range MatchStatuses {
		s.ByStatus[st] = 0
	}
	for _, st := range ListingStatuses {
		s.ByListingStatus[st] = 0
	}
	return s
}
