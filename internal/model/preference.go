// Package model defines the domain types shared by the matching engine, the
// stores and the API layer.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// ErrInvalidStatus is returned when a status string is not recognised.
var ErrInvalidStatus = eris.New("invalid status")

// PreferenceStatus is the lifecycle state of a buyer preference.
type PreferenceStatus string

const (
	PreferenceActive   PreferenceStatus = "active"
	PreferenceInactive PreferenceStatus = "inactive"
	PreferencePaused   PreferenceStatus = "paused"
)

// ParsePreferenceStatus validates a raw preference status.
func ParsePreferenceStatus(s string) (PreferenceStatus, error) {
	st := PreferenceStatus(strings.ToLower(strings.TrimSpace(s)))
	switch st {
	case PreferenceActive, PreferenceInactive, PreferencePaused:
		return st, nil
	}
	return "", eris.Wrapf(ErrInvalidStatus, "preference status %q", s)
}

// ListingType distinguishes physical goods from services.
type ListingType string

const (
	ListingTypeProduct ListingType = "product"
	ListingTypeService ListingType = "service"
)

// ParseListingType validates a raw listing type.
func ParseListingType(s string) (ListingType, error) {
	lt := ListingType(strings.ToLower(strings.TrimSpace(s)))
	switch lt {
	case ListingTypeProduct, ListingTypeService:
		return lt, nil
	}
	return "", eris.Errorf("invalid listing type %q", s)
}

// Location is a geocoded point with optional display fields.
type Location struct {
	Latitude    float64 `json:"latitude"`
	Longitude   float64 `json:"longitude"`
	PlaceName   string  `json:"place_name,omitempty"`
	District    string  `json:"district,omitempty"`
	Region      string  `json:"region,omitempty"`
	Country     string  `json:"country,omitempty"`
	FullAddress string  `json:"full_address,omitempty"`
}

// BuyerPreference is a buyer's standing, free-text description of what they
// want, plus the structured fields extracted from it.
type BuyerPreference struct {
	ID             string           `json:"id"`
	BuyerID        string           `json:"buyer_id"`
	Text           string           `json:"preference_text"`
	Keywords       []string         `json:"keywords"`
	Category       string           `json:"category,omitempty"`
	Subcategory    string           `json:"subcategory,omitempty"`
	SubSubcategory string           `json:"sub_subcategory,omitempty"`
	MinPrice       *float64         `json:"min_price,omitempty"`
	MaxPrice       *float64         `json:"max_price,omitempty"`
	Currency       string           `json:"currency"`
	ListingType    ListingType      `json:"listing_type,omitempty"`
	Location       *Location        `json:"location,omitempty"`
	Status         PreferenceStatus `json:"status"`
	MatchCount     int              `json:"match_count"`
	LastMatchedAt  *time.Time       `json:"last_matched_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

// Apply copies extracted fields onto the preference, replacing any earlier
// extraction.
func (p *BuyerPreference) Apply(e *Extraction) {
	p.Keywords = e.Keywords
	p.Category = e.Category
	p.Subcategory = e.Subcategory
	p.SubSubcategory = e.SubSubcategory
	p.MinPrice = e.MinPrice
	p.MaxPrice = e.MaxPrice
	p.Currency = e.Currency
	p.ListingType = e.ListingType
}

// Extraction is the structured output of natural-language preference parsing.
type Extraction struct {
	Keywords       []string    `json:"keywords"`
	Category       string      `json:"category,omitempty"`
	Subcategory    string      `json:"subcategory,omitempty"`
	SubSubcategory string      `json:"sub_subcategory,omitempty"`
	MinPrice       *float64    `json:"min_price,omitempty"`
	MaxPrice       *float64    `json:"max_price,omitempty"`
	Currency       string      `json:"currency"`
	ListingType    ListingType `json:"listing_type,omitempty"`
	Features       []string    `json:"features,omitempty"`
}
