package extract

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/resilience"
)

func testOptions() Options {
	return Options{
		Model: "claude-haiku-4-5-20251001",
		Retry: resilience.Policy{Attempts: 3, Initial: time.Millisecond, Max: time.Millisecond},
	}
}

func TestAnthropic_Extract(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "Here you go:\n```json\n" +
		`{"listing_type": "Product", "keywords": ["iPhone", "apple", "iphone", " smartphone "],` +
		` "category": "electronics", "subcategory": "CellPhone & Accessories", "subsubcategory": "Cell Phone",` +
		` "min_price": 0, "max_price": 150000, "features": ["128GB"]}` + "\n```"}}}

	e, err := NewAnthropic(client, testOptions()).Extract(context.Background(), "Looking for iPhone under 150000")
	require.NoError(t, err)

	assert.Equal(t, []string{"iphone", "apple", "smartphone"}, e.Keywords)
	assert.Equal(t, model.ListingTypeProduct, e.ListingType)
	assert.Equal(t, "Electronics", e.Category)
	assert.Equal(t, "CellPhone & Accessories", e.Subcategory)
	assert.Equal(t, "Cell Phone", e.SubSubcategory)
	assert.Nil(t, e.MinPrice, "zero price is dropped")
	require.NotNil(t, e.MaxPrice)
	assert.Equal(t, 150000.0, *e.MaxPrice)
	assert.Equal(t, "NPR", e.Currency)
	assert.Equal(t, []string{"128GB"}, e.Features)

	require.Equal(t, 1, client.calls())
	req := client.requests[0]
	assert.Equal(t, "claude-haiku-4-5-20251001", req.Model)
	require.Len(t, req.System, 1)
	assert.NotNil(t, req.System[0].CacheControl)
	assert.Contains(t, req.System[0].Text, "ForRent: House | Apartment | Land | Office")
	assert.Contains(t, req.Messages[0].Content, "Looking for iPhone under 150000")
}

func TestAnthropic_KeywordCapAndCurrency(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: `{"keywords": ["a1","a2","a3","a4","a5","a6"], "currency": "usd", "listing_type": "rental"}`}}}
	opts := testOptions()
	opts.MaxKeywords = 4

	e, err := NewAnthropic(client, opts).Extract(context.Background(), "anything")
	require.NoError(t, err)
	assert.Equal(t, []string{"a1", "a2", "a3", "a4"}, e.Keywords)
	assert.Equal(t, "USD", e.Currency)
	assert.Empty(t, e.ListingType)
}

func TestAnthropic_RetriesTransient(t *testing.T) {
	client := &scriptedClient{replies: []reply{
		{err: resilience.Transient(errors.New("overloaded"), 529)},
		{text: `{"keywords": ["bike"]}`},
	}}

	e, err := NewAnthropic(client, testOptions()).Extract(context.Background(), "bike")
	require.NoError(t, err)
	assert.Equal(t, []string{"bike"}, e.Keywords)
	assert.Equal(t, 2, client.calls())
}

func TestAnthropic_PermanentErrorNotRetried(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errors.New("invalid api key")}}}

	_, err := NewAnthropic(client, testOptions()).Extract(context.Background(), "bike")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 1, client.calls())
}

func TestAnthropic_MalformedResponse(t *testing.T) {
	for _, text := range []string{"no json here", `{"keywords": "bike"}`, "} {"} {
		client := &scriptedClient{replies: []reply{{text: text}}}
		_, err := NewAnthropic(client, testOptions()).Extract(context.Background(), "bike")
		assert.True(t, errors.Is(err, ErrUnavailable), text)
	}
}

func TestAnthropic_EmptyText(t *testing.T) {
	client := &scriptedClient{replies: []reply{{text: "{}"}}}
	_, err := NewAnthropic(client, testOptions()).Extract(context.Background(), "   ")
	assert.True(t, errors.Is(err, ErrUnavailable))
	assert.Equal(t, 0, client.calls())
}

func TestAnthropic_BreakerOpens(t *testing.T) {
	client := &scriptedClient{replies: []reply{{err: errors.New("boom")}}}
	opts := testOptions()
	opts.Breaker = resilience.NewBreaker("test", 2, time.Hour)
	x := NewAnthropic(client, opts)

	for i := 0; i < 3; i++ {
		_, err := x.Extract(context.Background(), "bike")
		assert.True(t, errors.Is(err, ErrUnavailable))
	}
	assert.Equal(t, 2, client.calls(), "third call is rejected by the open breaker")
	assert.Equal(t, resilience.Open, opts.Breaker.State())
}

func TestJSONObject(t *testing.T) {
	body, ok := jsonObject("prefix {\"a\": {\"b\": 1}} suffix")
	assert.True(t, ok)
	assert.Equal(t, `{"a": {"b": 1}}`, body)

	_, ok = jsonObject("nothing")
	assert.False(t, ok)
}
