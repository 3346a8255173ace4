package extract

import (
	"context"
	"sync"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/pkg/anthropic"
)

type reply struct {
	text string
	err  error
}

// scriptedClient implements anthropic.Client, answering calls in order and
// repeating the last reply once the script runs out.
type scriptedClient struct {
	mu       sync.Mutex
	replies  []reply
	requests []anthropic.MessageRequest
}

func (c *scriptedClient) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	idx := len(c.requests)
	if idx >= len(c.replies) {
		idx = len(c.replies) - 1
	}
	c.requests = append(c.requests, req)
	r := c.replies[idx]
	if r.err != nil {
		return nil, r.err
	}
	return &anthropic.MessageResponse{
		Model:   req.Model,
		Content: []anthropic.ContentBlock{{Type: "text", Text: r.text}},
	}, nil
}

func (c *scriptedClient) calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}

type stubExtractor struct {
	e   *model.Extraction
	err error
	n   int
}

func (s *stubExtractor) Extract(context.Context, string) (*model.Extraction, error) {
	s.n++
	return s.e, s.err
}
