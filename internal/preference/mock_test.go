package preference

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/store"
)

type mockStore struct {
	mock.Mock
}

func (m *mockStore) CreatePreference(ctx context.Context, p *model.BuyerPreference) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockStore) GetPreference(ctx context.Context, id string) (*model.BuyerPreference, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.BuyerPreference), args.Error(1)
}

func (m *mockStore) ListPreferences(ctx context.Context, filter store.PreferenceFilter) ([]model.BuyerPreference, int, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]model.BuyerPreference), args.Int(1), args.Error(2)
}

func (m *mockStore) UpdatePreference(ctx context.Context, p *model.BuyerPreference) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *mockStore) DeletePreference(ctx context.Context, id, buyerID string) error {
	args := m.Called(ctx, id, buyerID)
	return args.Error(0)
}

type mockExtractor struct {
	mock.Mock
}

func (m *mockExtractor) Extract(ctx context.Context, text string) (*model.Extraction, error) {
	args := m.Called(ctx, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Extraction), args.Error(1)
}
