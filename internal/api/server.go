// Package api exposes preferences, matches and listing lifecycle hooks over
// HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/matches"
	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/preference"
	"github.com/sells-group/market-match/internal/store"
)

// BuyerHeader carries the authenticated buyer id, set by the gateway.
const BuyerHeader = "X-Buyer-ID"

// Preferences is the preference service used by the API.
type Preferences interface {
	Create(ctx context.Context, buyerID, text string, loc *model.Location) (*model.BuyerPreference, error)
	Get(ctx context.Context, buyerID, id string) (*model.BuyerPreference, error)
	List(ctx context.Context, buyerID, status string, page store.Page) (*preference.Page, error)
	Update(ctx context.Context, buyerID, id string, u preference.Update) (*model.BuyerPreference, error)
	Delete(ctx context.Context, buyerID, id string) error
}

// Matches is the match service used by the API.
type Matches interface {
	List(ctx context.Context, filter store.MatchFilter) (*matches.Page, error)
	ForPreference(ctx context.Context, buyerID, preferenceID string, page store.Page) (*matches.Page, error)
	Get(ctx context.Context, buyerID, matchID string) (*model.MatchView, error)
	UpdateStatus(ctx context.Context, buyerID, matchID, target string) (*model.Match, error)
	Stats(ctx context.Context, buyerID string) (*model.MatchStats, error)
}

// Dispatcher queues listings for matching.
type Dispatcher interface {
	Submit(listingID string) bool
}

// Synchronizer propagates listing status changes to matches.
type Synchronizer interface {
	SyncListingStatus(ctx context.Context, listingID string, status model.ListingStatus, reason string) (int, error)
}

// Pinger reports store health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps are the collaborators behind the routes.
type Deps struct {
	Preferences  Preferences
	Matches      Matches
	Dispatcher   Dispatcher
	Synchronizer Synchronizer
	Health       Pinger
	CORSOrigins  []string
}

// Server holds the HTTP handlers.
type Server struct {
	deps Deps
}

// NewServer creates a Server.
func NewServer(deps Deps) *Server {
	return &Server{deps: deps}
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)

	origins := s.deps.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", BuyerHeader},
		MaxAge:         300,
	}))

	r.Get("/health", s.health)

	r.Group(func(r chi.Router) {
		r.Use(requireBuyer)

		r.Route("/preferences", func(r chi.Router) {
			r.Post("/", s.createPreference)
			r.Get("/", s.listPreferences)
			r.Get("/{id}", s.getPreference)
			r.Put("/{id}", s.updatePreference)
			r.Delete("/{id}", s.deletePreference)
		})

		r.Route("/matches", func(r chi.Router) {
			r.Get("/", s.listMatches)
			r.Get("/stats", s.matchStats)
			r.Get("/preference/{id}", s.preferenceMatches)
			r.Get("/{id}", s.getMatch)
			r.Put("/{id}", s.updateMatch)
		})
	})

	r.Route("/listings/{id}", func(r chi.Router) {
		r.Post("/match", s.matchListing)
		r.Put("/status", s.listingStatus)
	})

	return r
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	if s.deps.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Health.Ping(ctx); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type buyerKey struct{}

func requireBuyer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(BuyerHeader)
		if id == "" {
			writeMessage(w, http.StatusUnauthorized, "missing "+BuyerHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), buyerKey{}, id)))
	})
}

func buyerID(r *http.Request) string {
	id, _ := r.Context().Value(buyerKey{}).(string)
	return id
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		zap.L().Debug("api: request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("elapsed", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
