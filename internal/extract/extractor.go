// Package extract turns a buyer's free-text preference into structured
// matching fields.
package extract

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/model"
)

// ErrUnavailable is returned when extraction could not produce a result.
var ErrUnavailable = eris.New("extraction unavailable")

const (
	// DefaultCurrency is assumed when the text names none.
	DefaultCurrency = "NPR"
	// MaxKeywords caps the keywords kept from a model response.
	MaxKeywords = 10
	// FallbackKeywords caps the keywords kept by the heuristic.
	FallbackKeywords = 5
)

// Extractor produces structured fields from preference text.
type Extractor interface {
	Extract(ctx context.Context, text string) (*model.Extraction, error)
}

// Heuristic splits text into lower-cased words longer than two characters
// and keeps the first limit of them.
func Heuristic(text string, limit int, currency string) *model.Extraction {
	if limit <= 0 {
		limit = FallbackKeywords
	}
	if currency == "" {
		currency = DefaultCurrency
	}
	keywords := make([]string, 0, limit)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if len(w) <= 2 {
			continue
		}
		keywords = append(keywords, w)
		if len(keywords) == limit {
			break
		}
	}
	return &model.Extraction{Keywords: keywords, Currency: currency}
}

// FallbackExtractor degrades to Heuristic when the primary extractor fails,
// so a preference always ends up with keywords.
type FallbackExtractor struct {
	primary  Extractor
	limit    int
	currency string
}

// NewFallback wraps primary. A nil primary always uses the heuristic.
func NewFallback(primary Extractor, limit int, currency string) *FallbackExtractor {
	return &FallbackExtractor{primary: primary, limit: limit, currency: currency}
}

// Extract implements Extractor. It only fails when ctx is done.
func (f *FallbackExtractor) Extract(ctx context.Context, text string) (*model.Extraction, error) {
	if f.primary != nil {
		e, err := f.primary.Extract(ctx, text)
		if err == nil {
			return e, nil
		}
		if ctx.Err() != nil {
			return nil, eris.Wrap(ctx.Err(), "extract: cancelled")
		}
		zap.L().Warn("extract: falling back to keyword heuristic", zap.Error(err))
	}
	return Heuristic(text, f.limit, f.currency), nil
}
