// Package preference manages buyers' standing preferences and keeps their
// extracted matching fields in step with the preference text.
package preference

import (
	"context"
	"math"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/market-match/internal/extract"
	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/store"
)

// ErrInvalidInput is returned for requests that can never succeed as sent.
var ErrInvalidInput = eris.New("invalid input")

// Store is the persistence the preference service needs.
type Store interface {
	CreatePreference(ctx context.Context, p *model.BuyerPreference) error
	GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error)
	ListPreferences(ctx context.Context, filter store.PreferenceFilter) ([]model.BuyerPreference, int, error)
	UpdatePreference(ctx context.Context, p *model.BuyerPreference) error
	DeletePreference(ctx context.Context, id, buyerID string) error
}

// Update describes a partial preference change. Nil fields are left alone.
type Update struct {
	Text          *string
	Location      *model.Location
	ClearLocation bool
	Status        *string
}

func (u Update) empty() bool {
	return u.Text == nil && u.Location == nil && !u.ClearLocation && u.Status == nil
}

// Page is one page of a buyer's preferences.
type Page struct {
	Preferences []model.BuyerPreference `json:"preferences"`
	Total       int                     `json:"total"`
	Page        int                     `json:"page"`
	Limit       int                     `json:"limit"`
	TotalPages  int                     `json:"total_pages"`
}

// Service implements preference CRUD for a buyer.
type Service struct {
	store     Store
	extractor extract.Extractor
}

// NewService creates a Service.
func NewService(st Store, ex extract.Extractor) *Service {
	return &Service{store: st, extractor: ex}
}

// Create extracts fields from text and stores a new active preference.
func (s *Service) Create(ctx context.Context, buyerID, text string, loc *model.Location) (*model.BuyerPreference, error) {
	text = strings.TrimSpace(text)
	if buyerID == "" {
		return nil, eris.Wrap(ErrInvalidInput, "preference: buyer is required")
	}
	if text == "" {
		return nil, eris.Wrap(ErrInvalidInput, "preference: text is required")
	}
	if err := validateLocation(loc); err != nil {
		return nil, err
	}

	ex, err := s.extractor.Extract(ctx, text)
	if err != nil {
		return nil, eris.Wrap(err, "preference: extract")
	}

	p := &model.BuyerPreference{
		BuyerID:  buyerID,
		Text:     text,
		Location: loc,
		Status:   model.PreferenceActive,
	}
	p.Apply(ex)
	if err := s.store.CreatePreference(ctx, p); err != nil {
		return nil, eris.Wrap(err, "preference: create")
	}

	zap.L().Info("preference: created",
		zap.String("preference_id", p.ID),
		zap.String("buyer_id", buyerID),
		zap.Int("keywords", len(p.Keywords)),
		zap.String("category", p.Category),
	)
	return p, nil
}

// Get returns one of the buyer's preferences. Another buyer's preference
// is reported as not found.
func (s *Service) Get(ctx context.Context, buyerID, id string) (*model.BuyerPreference, error) {
	p, err := s.store.GetPreference(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.BuyerID != buyerID {
		return nil, eris.Wrapf(store.ErrNotFound, "preference %s", id)
	}
	return p, nil
}

// List returns a page of the buyer's preferences, newest first, optionally
// filtered by a raw status.
func (s *Service) List(ctx context.Context, buyerID, status string, page store.Page) (*Page, error) {
	filter := store.PreferenceFilter{BuyerID: buyerID, Page: page.Normalize()}
	if status != "" {
		st, err := model.ParsePreferenceStatus(status)
		if err != nil {
			return nil, eris.Wrap(ErrInvalidInput, err.Error())
		}
		filter.Status = st
	}

	prefs, total, err := s.store.ListPreferences(ctx, filter)
	if err != nil {
		return nil, eris.Wrap(err, "preference: list")
	}
	if prefs == nil {
		prefs = []model.BuyerPreference{}
	}
	return &Page{
		Preferences: prefs,
		Total:       total,
		Page:        filter.Page.Page,
		Limit:       filter.Page.Limit,
		TotalPages:  filter.Page.TotalPages(total),
	}, nil
}

// Update applies u to one of the buyer's preferences. Changing the text
// re-runs extraction and replaces every extracted field.
func (s *Service) Update(ctx context.Context, buyerID, id string, u Update) (*model.BuyerPreference, error) {
	if u.empty() {
		return nil, eris.Wrap(ErrInvalidInput, "preference: no fields to update")
	}
	if err := validateLocation(u.Location); err != nil {
		return nil, err
	}
	var status model.PreferenceStatus
	if u.Status != nil {
		st, err := model.ParsePreferenceStatus(*u.Status)
		if err != nil {
			return nil, eris.Wrap(ErrInvalidInput, err.Error())
		}
		status = st
	}

	p, err := s.Get(ctx, buyerID, id)
	if err != nil {
		return nil, err
	}

	if u.Text != nil {
		text := strings.TrimSpace(*u.Text)
		if text == "" {
			return nil, eris.Wrap(ErrInvalidInput, "preference: text cannot be empty")
		}
		if text != p.Text {
			ex, err := s.extractor.Extract(ctx, text)
			if err != nil {
				return nil, eris.Wrap(err, "preference: re-extract")
			}
			p.Text = text
			p.Apply(ex)
			zap.L().Debug("preference: re-extracted", zap.String("preference_id", id))
		}
	}
	switch {
	case u.ClearLocation:
		p.Location = nil
	case u.Location != nil:
		p.Location = u.Location
	}
	if status != "" {
		p.Status = status
	}

	if err := s.store.UpdatePreference(ctx, p); err != nil {
		return nil, eris.Wrap(err, "preference: update")
	}
	return p, nil
}

// Delete removes one of the buyer's preferences and its matches.
func (s *Service) Delete(ctx context.Context, buyerID, id string) error {
	if err := s.store.DeletePreference(ctx, id, buyerID); err != nil {
		return eris.Wrap(err, "preference: delete")
	}
	zap.L().Info("preference: deleted", zap.String("preference_id", id), zap.String("buyer_id", buyerID))
	return nil
}

func validateLocation(loc *model.Location) error {
	if loc == nil {
		return nil
	}
	if math.IsNaN(loc.Latitude) || math.IsNaN(loc.Longitude) ||
		loc.Latitude < -90 || loc.Latitude > 90 || loc.Longitude < -180 || loc.Longitude > 180 {
		return eris.Wrapf(ErrInvalidInput, "preference: location %.5f,%.5f out of range", loc.Latitude, loc.Longitude)
	}
	return nil
}
