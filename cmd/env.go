package main

import (
	"context"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/config"
	"github.com/sells-group/market-match/internal/extract"
	"github.com/sells-group/market-match/internal/listingsync"
	"github.com/sells-group/market-match/internal/matches"
	"github.com/sells-group/market-match/internal/matching"
	"github.com/sells-group/market-match/internal/preference"
	"github.com/sells-group/market-match/internal/resilience"
	"github.com/sells-group/market-match/internal/store"
	"github.com/sells-group/market-match/pkg/anthropic"
)

// initStore opens the configured store.
func initStore(ctx context.Context, sc config.StoreConfig) (store.Store, error) {
	switch sc.Driver {
	case "sqlite":
		dsn := sc.DatabaseURL
		if dsn == "" {
			dsn = "market.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, sc.DatabaseURL, &store.PoolConfig{
			MaxConns: sc.MaxConns,
			MinConns: sc.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", sc.Driver)
	}
}

// env bundles the services shared by the commands.
type env struct {
	Store        store.Store
	Orchestrator *matching.Orchestrator
	Synchronizer *listingsync.Synchronizer
	Matches      *matches.Service
	Preferences  *preference.Service
	Breaker      *resilience.Breaker
}

func (e *env) Close() {
	if err := e.Store.Close(); err != nil {
		zap.L().Warn("close store", zap.Error(err))
	}
}

// initEnv validates the config for mode and wires the services.
func initEnv(ctx context.Context, mode string) (*env, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}
	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, eris.Wrap(err, "init store")
	}

	ex, breaker := initExtractor(cfg)
	return &env{
		Store:        st,
		Orchestrator: matching.NewOrchestrator(st, cfg.Matching.InsertsPerSecond),
		Synchronizer: listingsync.New(st),
		Matches:      matches.NewService(st),
		Preferences:  preference.NewService(st, ex),
		Breaker:      breaker,
	}, nil
}

// initExtractor builds the extraction chain. Without an API key every
// preference uses the keyword heuristic.
func initExtractor(c *config.Config) (extract.Extractor, *resilience.Breaker) {
	ec := c.Extract
	if strings.TrimSpace(c.Anthropic.Key) == "" {
		zap.L().Warn("anthropic key not set, preferences will use keyword extraction")
		return extract.NewFallback(nil, ec.FallbackKeywords, ec.DefaultCurrency), nil
	}

	breaker := resilience.NewBreaker("anthropic", ec.BreakerThreshold, time.Duration(ec.BreakerResetSecs)*time.Second)
	client := anthropic.NewClient(c.Anthropic.Key,
		option.WithMaxRetries(0),
		option.WithRequestTimeout(time.Duration(ec.RequestTimeoutSec)*time.Second),
	)
	primary := extract.NewAnthropic(client, extract.Options{
		Model:           c.Anthropic.Model,
		MaxTokens:       c.Anthropic.MaxTokens,
		DefaultCurrency: ec.DefaultCurrency,
		MaxKeywords:     ec.MaxKeywords,
		Retry: resilience.Policy{
			Attempts: ec.MaxAttempts,
			Initial:  time.Duration(ec.InitialBackoffMS) * time.Millisecond,
			Max:      10 * time.Second,
			Jitter:   0.25,
		},
		Breaker: breaker,
	})
	return extract.NewFallback(primary, ec.FallbackKeywords, ec.DefaultCurrency), breaker
}

// splitIDs parses a comma-separated id list, dropping blanks and duplicates.
func splitIDs(raw []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range raw {
		for _, id := range strings.Split(r, ",") {
			id = strings.TrimSpace(id)
			if id == "" || seen[id] {
				continue
			}
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
