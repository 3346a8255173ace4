package extract

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/resilience"
	"github.com/sells-group/market-match/pkg/anthropic"
)

const systemPrompt = `You extract matching criteria from a marketplace buyer's preference. The buyer describes what they want to buy or a service they need.

Category taxonomy (category, then subcategory: leaf types):
%TAXONOMY%
Return a JSON object with these fields, omitting any you cannot identify:
- listing_type: "product" for physical items (phones, cars, real estate) or "service" for someone providing a service (tutor, photographer)
- keywords: 5-10 relevant search terms
- category: a category from the taxonomy
- subcategory: a subcategory of that category
- subsubcategory: a leaf type of that subcategory
- min_price: minimum price as a number
- max_price: maximum price as a number
- currency: ISO currency code such as NPR or USD
- features: specific features or requirements mentioned

Examples:
"Need a wedding photographer in Kathmandu for December"
{"listing_type": "service", "keywords": ["wedding", "photographer", "photography"], "category": "Services", "subcategory": "Photography", "features": ["wedding", "december"]}

"Looking for iPhone 15 under 150000 NPR"
{"listing_type": "product", "keywords": ["iphone", "iphone 15", "apple", "smartphone"], "category": "Electronics", "subcategory": "CellPhone & Accessories", "subsubcategory": "Cell Phone", "max_price": 150000, "currency": "NPR", "features": ["iphone 15"]}

Respond with ONLY valid JSON, no other text.`

// Options configures an AnthropicExtractor.
type Options struct {
	Model           string
	MaxTokens       int64
	DefaultCurrency string
	MaxKeywords     int
	Retry           resilience.Policy
	Breaker         *resilience.Breaker
	Taxonomy        *Taxonomy
}

// AnthropicExtractor extracts preference fields with a Claude model.
type AnthropicExtractor struct {
	client anthropic.Client
	opts   Options
	system []anthropic.SystemBlock
}

// NewAnthropic creates an extractor. Zero options take package defaults.
func NewAnthropic(client anthropic.Client, opts Options) *AnthropicExtractor {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 500
	}
	if opts.DefaultCurrency == "" {
		opts.DefaultCurrency = DefaultCurrency
	}
	if opts.MaxKeywords <= 0 {
		opts.MaxKeywords = MaxKeywords
	}
	if opts.Breaker == nil {
		opts.Breaker = resilience.NewBreaker("anthropic", 0, 0)
	}
	if opts.Taxonomy == nil {
		opts.Taxonomy = DefaultTaxonomy()
	}
	prompt := strings.Replace(systemPrompt, "%TAXONOMY%", opts.Taxonomy.Describe(), 1)
	return &AnthropicExtractor{
		client: client,
		opts:   opts,
		system: anthropic.CachedSystem(prompt),
	}
}

// rawExtraction mirrors the model's JSON.
type rawExtraction struct {
	ListingType    string   `json:"listing_type"`
	Keywords       []string `json:"keywords"`
	Category       string   `json:"category"`
	Subcategory    string   `json:"subcategory"`
	SubSubcategory string   `json:"subsubcategory"`
	MinPrice       *float64 `json:"min_price"`
	MaxPrice       *float64 `json:"max_price"`
	Currency       string   `json:"currency"`
	Features       []string `json:"features"`
}

// Extract implements Extractor.
func (a *AnthropicExtractor) Extract(ctx context.Context, text string) (*model.Extraction, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, eris.Wrap(ErrUnavailable, "extract: empty text")
	}

	raw, err := resilience.Retry(ctx, a.opts.Retry, "extract.preference", func(ctx context.Context) (string, error) {
		return resilience.Call(ctx, a.opts.Breaker, func(ctx context.Context) (string, error) {
			return a.complete(ctx, text)
		})
	})
	if err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "extract: %v", err)
	}

	body, ok := jsonObject(raw)
	if !ok {
		return nil, eris.Wrap(ErrUnavailable, "extract: no json object in response")
	}
	var r rawExtraction
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return nil, eris.Wrapf(ErrUnavailable, "extract: parse response: %v", err)
	}
	return a.normalize(&r), nil
}

func (a *AnthropicExtractor) complete(ctx context.Context, text string) (string, error) {
	temp := 0.3
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		System:      a.system,
		Messages:    []anthropic.Message{{Role: "user", Content: "Buyer preference: " + text}},
		Temperature: &temp,
	})
	if err != nil {
		if code := anthropic.StatusCode(err); resilience.IsTransientStatus(code) {
			return "", resilience.Transient(err, code)
		}
		return "", err
	}
	resp.Usage.Log(resp.Model, "extract")
	return resp.Text(), nil
}

func (a *AnthropicExtractor) normalize(r *rawExtraction) *model.Extraction {
	e := &model.Extraction{
		Keywords: cleanList(r.Keywords, true, a.opts.MaxKeywords),
		Features: cleanList(r.Features, false, 0),
		Currency: strings.ToUpper(strings.TrimSpace(r.Currency)),
	}
	if e.Currency == "" {
		e.Currency = a.opts.DefaultCurrency
	}
	e.Category, e.Subcategory, e.SubSubcategory = a.opts.Taxonomy.Normalize(r.Category, r.Subcategory, r.SubSubcategory)
	if lt, err := model.ParseListingType(r.ListingType); err == nil {
		e.ListingType = lt
	}
	e.MinPrice = positive(r.MinPrice)
	e.MaxPrice = positive(r.MaxPrice)
	return e
}

// jsonObject returns the text between the first '{' and the last '}'.
func jsonObject(s string) (string, bool) {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

func cleanList(in []string, lower bool, limit int) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if lower {
			s = strings.ToLower(s)
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

func positive(v *float64) *float64 {
	if v == nil || *v <= 0 {
		return nil
	}
	return v
}
