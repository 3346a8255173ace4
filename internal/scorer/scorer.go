// Package scorer computes the 0-100 fit between a buyer preference and a
// listing that already passed the candidate pre-filter.
//
// Points are awarded for how specific the preference is, not re-checked for
// equality: the pre-filter guarantees that every set category level and the
// listing type already agree with the listing.
package scorer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/sells-group/market-match/internal/geo"
	"github.com/sells-group/market-match/internal/model"
)

// Threshold is the minimum score for a pair to become a persisted match.
const Threshold = 60

// Rubric weights.
const (
	listingTypePoints    = 20
	categoryPoints       = 20
	subcategoryPoints    = 15
	subSubcategoryPoints = 5
	noCategoryPoints     = 15

	excellentValuePoints = 10
	withinBudgetPoints   = 5
	aboveMinimumPoints   = 5
	noPricePoints        = 3

	noKeywordPoints  = 10
	noLocationPoints = 5

	maxScore = 100
)

// Result is the score of one (preference, listing) pair.
type Result struct {
	Score           int      `json:"score"`
	Reasons         []string `json:"reasons"`
	Summary         string   `json:"summary"`
	MatchedKeywords []string `json:"matched_keywords,omitempty"`
	DistanceKM      *float64 `json:"distance_km,omitempty"`
}

// Passes reports whether the result clears Threshold.
func (r Result) Passes() bool {
	return r.Score >= Threshold
}

// Score applies the rubric. It performs no I/O.
func Score(p *model.BuyerPreference, l *model.Listing) Result {
	var (
		total   int
		reasons []string
	)

	total += listingTypePoints
	if l.ListingType != "" {
		reasons = append(reasons, fmt.Sprintf("Listing type: %s", l.ListingType))
	} else {
		reasons = append(reasons, "Listing type: any")
	}

	catPts, catReason := scoreCategory(p)
	total += catPts
	reasons = append(reasons, catReason)

	price, priceErr := l.PriceValue()
	pricePts, priceReason := scorePrice(p, price, priceErr == nil)
	total += pricePts
	reasons = append(reasons, priceReason)

	matched := matchKeywords(p.Keywords, l.EnrichedTags)
	kwPts, kwReason := scoreKeywords(len(cleanKeywords(p.Keywords)), matched)
	total += kwPts
	reasons = append(reasons, kwReason)

	dist := distanceKM(p.Location, l.Location)
	locPts, locReason := scoreLocation(p.Location, dist)
	total += locPts
	reasons = append(reasons, locReason)

	res := Result{
		Score:           clamp(total, 0, maxScore),
		Reasons:         reasons,
		MatchedKeywords: matched,
		DistanceKM:      dist,
	}
	res.Summary = summarize(p, l, price, priceErr == nil, matched, dist)
	return res
}

func scoreCategory(p *model.BuyerPreference) (int, string) {
	if p.Category == "" {
		return noCategoryPoints, "Category: any"
	}
	pts := categoryPoints
	label := p.Category
	if p.Subcategory != "" {
		pts += subcategoryPoints
		label += " > " + p.Subcategory
		if p.SubSubcategory != "" {
			pts += subSubcategoryPoints
			label += " > " + p.SubSubcategory
		}
	}
	return pts, "Category: " + label
}

func scorePrice(p *model.BuyerPreference, price float64, ok bool) (int, string) {
	hasMax := p.MaxPrice != nil && *p.MaxPrice > 0
	hasMin := p.MinPrice != nil && *p.MinPrice > 0

	switch {
	case !ok:
		return 0, "Price: unreadable"
	case hasMax && price/(*p.MaxPrice) <= 0.8:
		return excellentValuePoints, "Price: excellent value"
	case hasMax && price/(*p.MaxPrice) <= 1.0:
		return withinBudgetPoints, "Price: within budget"
	case hasMin && price >= *p.MinPrice:
		return aboveMinimumPoints, "Price: above minimum"
	case !hasMax && !hasMin:
		return noPricePoints, "Price: no constraint"
	default:
		return 0, "Price: outside range"
	}
}

func scoreKeywords(total int, matched []string) (int, string) {
	if total == 0 {
		return noKeywordPoints, "Keywords: none specified"
	}
	frac := float64(len(matched)) / float64(total)
	var pts int
	switch {
	case frac >= 0.8:
		pts = 30
	case frac >= 0.6:
		pts = 25
	case frac >= 0.4:
		pts = 20
	case frac >= 0.2:
		pts = 15
	case frac > 0:
		pts = 10
	}
	return pts, fmt.Sprintf("Keywords: %d/%d matched", len(matched), total)
}

func scoreLocation(pref *model.Location, dist *float64) (int, string) {
	if pref == nil {
		return noLocationPoints, "Location: any"
	}
	if dist == nil {
		return 0, "Location: listing has no coordinates"
	}
	d := *dist
	label := fmt.Sprintf("Location: %.1f km", d)
	switch {
	case d <= 1:
		return 10, label
	case d <= 3:
		return 8, label
	case d <= 5:
		return 6, label
	default:
		return 3, label
	}
}

// matchKeywords returns the preference keywords that case-insensitively
// contain, or are contained in, at least one tag.
func matchKeywords(keywords, tags []string) []string {
	var lowered []string
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t != "" {
			lowered = append(lowered, t)
		}
	}

	var matched []string
	for _, kw := range cleanKeywords(keywords) {
		k := strings.ToLower(kw)
		for _, t := range lowered {
			if strings.Contains(t, k) || strings.Contains(k, t) {
				matched = append(matched, kw)
				break
			}
		}
	}
	return matched
}

func cleanKeywords(keywords []string) []string {
	out := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		if kw = strings.TrimSpace(kw); kw != "" {
			out = append(out, kw)
		}
	}
	return out
}

func distanceKM(pref, listing *model.Location) *float64 {
	if pref == nil || listing == nil {
		return nil
	}
	d := geo.HaversineKM(
		geo.Point{Lat: pref.Latitude, Lng: pref.Longitude},
		geo.Point{Lat: listing.Latitude, Lng: listing.Longitude},
	)
	return &d
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func formatPrice(currency string, v float64) string {
	s := strconv.FormatFloat(v, 'f', -1, 64)
	if currency == "" {
		return s
	}
	return currency + " " + s
}
