package api

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/market-match/internal/matches"
	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/preference"
	"github.com/sells-group/market-match/internal/store"
)

type mockPreferences struct {
	mock.Mock
}

func (m *mockPreferences) Create(ctx context.Context, buyerID, text string, loc *model.Location) (*model.BuyerPreference, error) {
	args := m.Called(ctx, buyerID, text, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuyerPreference), args.Error(1)
}

func (m *mockPreferences) Get(ctx context.Context, buyerID, id string) (*model.BuyerPreference, error) {
	args := m.Called(ctx, buyerID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuyerPreference), args.Error(1)
}

func (m *mockPreferences) List(ctx context.Context, buyerID, status string, page store.Page) (*preference.Page, error) {
	args := m.Called(ctx, buyerID, status, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*preference.Page), args.Error(1)
}

func (m *mockPreferences) Update(ctx context.Context, buyerID, id string, u preference.Update) (*model.BuyerPreference, error) {
	args := m.Called(ctx, buyerID, id, u)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuyerPreference), args.Error(1)
}

func (m *mockPreferences) Delete(ctx context.Context, buyerID, id string) error {
	return m.Called(ctx, buyerID, id).Error(0)
}

type mockMatches struct {
	mock.Mock
}

func (m *mockMatches) List(ctx context.Context, filter store.MatchFilter) (*matches.Page, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matches.Page), args.Error(1)
}

func (m *mockMatches) ForPreference(ctx context.Context, buyerID, preferenceID string, page store.Page) (*matches.Page, error) {
	args := m.Called(ctx, buyerID, preferenceID, page)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*matches.Page), args.Error(1)
}

func (m *mockMatches) Get(ctx context.Context, buyerID, matchID string) (*model.MatchView, error) {
	args := m.Called(ctx, buyerID, matchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MatchView), args.Error(1)
}

func (m *mockMatches) UpdateStatus(ctx context.Context, buyerID, matchID, target string) (*model.Match, error) {
	args := m.Called(ctx, buyerID, matchID, target)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Match), args.Error(1)
}

func (m *mockMatches) Stats(ctx context.Context, buyerID string) (*model.MatchStats, error) {
	args := m.Called(ctx, buyerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.MatchStats), args.Error(1)
}

type fakeDispatcher struct {
	accept    bool
	submitted []string
}

func (d *fakeDispatcher) Submit(id string) bool {
	d.submitted = append(d.submitted, id)
	return d.accept
}

type mockSynchronizer struct {
	mock.Mock
}

func (m *mockSynchronizer) SyncListingStatus(ctx context.Context, listingID string, status model.ListingStatus, reason string) (int, error) {
	args := m.Called(ctx, listingID, status, reason)
	return args.Int(0), args.Error(1)
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }
