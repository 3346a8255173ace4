package model

import (
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingActive  ListingStatus = "active"
	ListingSold    ListingStatus = "sold"
	ListingExpired ListingStatus = "expired"
	ListingRemoved ListingStatus = "removed"
)

// ListingStatuses lists every listing status in display order.
var ListingStatuses = []ListingStatus{ListingActive, ListingSold, ListingExpired, ListingRemoved}

// ParseListingStatus validates a raw listing status.
func ParseListingStatus(s string) (ListingStatus, error) {
	st := ListingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case ListingActive, ListingSold, ListingExpired, ListingRemoved:
		return st, nil
	}
	return "", eris.Wrapf(ErrInvalidStatus, "listing status %q", s)
}

// Listing is a seller's offering. The matching engine only reads listings.
type Listing struct {
	ID             string        `json:"id"`
	SellerID       string        `json:"seller_id"`
	Title          string        `json:"title"`
	Description    string        `json:"description"`
	Price          string        `json:"price"`
	Currency       string        `json:"currency"`
	Category       string        `json:"category"`
	Subcategory    string        `json:"subcategory"`
	SubSubcategory string        `json:"sub_subcategory"`
	Condition      string        `json:"condition"`
	ListingType    ListingType   `json:"listing_type"`
	Tags           []string      `json:"tags"`
	EnrichedTags   []string      `json:"enriched_tags"`
	IsNegotiable   bool          `json:"is_negotiable"`
	Location       *Location     `json:"location,omitempty"`
	Status         ListingStatus `json:"status"`
	CreatedAt      time.Time     `json:"created_at"`
	ExpiresAt      *time.Time    `json:"expires_at,omitempty"`
}

// PriceValue parses the decimal price.
func (l *Listing) PriceValue() (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(l.Price), 64)
	if err != nil {
		return 0, eris.Wrapf(err, "listing %s: parse price %q", l.ID, l.Price)
	}
	return v, nil
}

// Seller holds the contact fields copied into match snapshots.
type Seller struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

// ListingRef identifies a listing touched by a batch operation.
type ListingRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}
