package matching

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/market-match/internal/candidate"
	"github.com/sells-group/market-match/internal/model"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) FindCandidates(ctx context.Context, c candidate.Criteria) ([]model.BuyerPreference, error) {
	args := m.Called(ctx, c)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.BuyerPreference), args.Error(1)
}

func (m *mockStore) GetListing(ctx context.Context, id string) (*model.Listing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Listing), args.Error(1)
}

func (m *mockStore) GetSeller(ctx context.Context, id string) (*model.Seller, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Seller), args.Error(1)
}

func (m *mockStore) CreateMatch(ctx context.Context, match *model.Match) (bool, error) {
	args := m.Called(ctx, match)
	return args.Bool(0), args.Error(1)
}
