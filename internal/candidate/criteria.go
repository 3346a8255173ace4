// Package candidate builds the relational pre-filter that narrows active
// buyer preferences down to those a new listing could plausibly satisfy.
//
// Every optional preference field is treated as a wildcard: a preference with
// no listing type, category, price bound or location passes that predicate.
package candidate

import (
	"strconv"
	"strings"

	"github.com/sells-group/market-match/internal/geo"
	"github.com/sells-group/market-match/internal/model"
)

// Limit caps the number of candidates considered per listing.
const Limit = 50

// Criteria holds the listing-side values the pre-filter compares against.
type Criteria struct {
	ListingType    model.ListingType
	Category       string
	Subcategory    string
	SubSubcategory string
	Price          float64
	Box            *geo.Box
	Limit          int
}

// ForListing derives filter criteria from a listing.
func ForListing(l *model.Listing) (Criteria, error) {
	price, err := l.PriceValue()
	if err != nil {
		return Criteria{}, err
	}
	c := Criteria{
		ListingType:    l.ListingType,
		Category:       strings.TrimSpace(l.Category),
		Subcategory:    strings.TrimSpace(l.Subcategory),
		SubSubcategory: strings.TrimSpace(l.SubSubcategory),
		Price:          price,
		Limit:          Limit,
	}
	if l.Location != nil {
		box := geo.BoxAround(geo.Point{Lat: l.Location.Latitude, Lng: l.Location.Longitude}, geo.BoxDegrees)
		c.Box = &box
	}
	return c, nil
}

// Predicate is one SQL condition with "?" markers and its bound values.
type Predicate struct {
	SQL  string
	Args []any
}

// Predicates returns the filter conditions for c, in evaluation order.
func (c Criteria) Predicates() []Predicate {
	preds := []Predicate{
		{SQL: "status = ?", Args: []any{string(model.PreferenceActive)}},
	}
	if c.ListingType != "" {
		preds = append(preds, Predicate{
			SQL:  "(listing_type IS NULL OR listing_type = '' OR listing_type = ?)",
			Args: []any{string(c.ListingType)},
		})
	}
	for _, lvl := range []struct {
		column string
		value  string
	}{
		{"category", c.Category},
		{"subcategory", c.Subcategory},
		{"sub_subcategory", c.SubSubcategory},
	} {
		if lvl.value == "" {
			continue
		}
		preds = append(preds, Predicate{
			SQL:  "(" + lvl.column + " IS NULL OR " + lvl.column + " = '' OR " + lvl.column + " = ?)",
			Args: []any{lvl.value},
		})
	}
	preds = append(preds,
		Predicate{SQL: "(max_price IS NULL OR max_price >= ?)", Args: []any{c.Price}},
		Predicate{SQL: "(min_price IS NULL OR min_price <= ?)", Args: []any{c.Price}},
	)
	if c.Box != nil {
		preds = append(preds, Predicate{
			SQL: "(latitude IS NULL OR longitude IS NULL OR (latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?))",
			Args: []any{
				c.Box.MinLat(), c.Box.MaxLat(),
				c.Box.MinLng(), c.Box.MaxLng(),
			},
		})
	}
	return preds
}

// Placeholder renders the n-th (1-based) bind parameter.
type Placeholder func(n int) string

// Dollar renders Postgres-style $n parameters.
func Dollar(n int) string { return "$" + strconv.Itoa(n) }

// Question renders SQLite-style ? parameters.
func Question(int) string { return "?" }

// Build joins predicates with AND and numbers their parameters starting at
// offset+1. It returns the WHERE body and the flattened args.
func Build(preds []Predicate, ph Placeholder, offset int) (string, []any) {
	var (
		b    strings.Builder
		args []any
		n    = offset
	)
	for i, p := range preds {
		if i > 0 {
			b.WriteString(" AND ")
		}
		for _, r := range p.SQL {
			if r != '?' {
				b.WriteRune(r)
				continue
			}
			n++
			b.WriteString(ph(n))
		}
		args = append(args, p.Args...)
	}
	return b.String(), args
}
