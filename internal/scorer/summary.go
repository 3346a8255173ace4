package scorer

import (
	"fmt"
	"math"
	"strings"

	"github.com/sells-group/market-match/internal/model"
)

const (
	summarySeparator   = " · "
	summaryKeywords    = 2
	proximityNoteMaxKM = 3.0
)

var conditionLabels = map[string]string{
	"used":     "Used",
	"like_new": "Like new",
	"good":     "Good condition",
	"fair":     "Fair condition",
	"poor":     "Poor condition",
}

// summarize builds the short display string stored as the match reason.
func summarize(p *model.BuyerPreference, l *model.Listing, price float64, priceOK bool, matched []string, dist *float64) string {
	var parts []string

	if priceOK {
		parts = append(parts, priceFraming(p, l.Currency, price))
	}

	if label := finestCategory(l); label != "" {
		parts = append(parts, label)
	}

	if l.ListingType == model.ListingTypeProduct && l.Condition != "" && l.Condition != "new" {
		parts = append(parts, conditionLabel(l.Condition))
	}

	if len(matched) > 0 {
		n := min(len(matched), summaryKeywords)
		parts = append(parts, "Matches: "+strings.Join(matched[:n], ", "))
	}

	if dist != nil && *dist <= proximityNoteMaxKM {
		parts = append(parts, fmt.Sprintf("%.1f km away", *dist))
	}

	return strings.Join(parts, summarySeparator)
}

func priceFraming(p *model.BuyerPreference, currency string, price float64) string {
	at := formatPrice(currency, price)
	if p.MaxPrice != nil && *p.MaxPrice > 0 {
		ratio := price / *p.MaxPrice
		switch {
		case ratio <= 0.8:
			under := int(math.Round((1 - ratio) * 100))
			return fmt.Sprintf("Great deal at %s (%d%% under budget)", at, under)
		case ratio <= 1.0:
			return "Within budget at " + at
		}
	}
	return "Priced at " + at
}

func finestCategory(l *model.Listing) string {
	for _, c := range []string{l.SubSubcategory, l.Subcategory, l.Category} {
		if c = strings.TrimSpace(c); c != "" {
			return c
		}
	}
	return ""
}

func conditionLabel(c string) string {
	if label, ok := conditionLabels[strings.ToLower(c)]; ok {
		return label
	}
	return strings.ReplaceAll(c, "_", " ")
}
