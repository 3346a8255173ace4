package matching

import (
	"context"
	"errors"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/market-match/internal/model"
	"github.com/sells-group/market-match/internal/store"
)

// ErrSellerNotFound is returned when a listing's seller cannot be resolved.
var ErrSellerNotFound = eris.New("seller not found")

// SellerLookup resolves seller contact details.
type SellerLookup interface {
	GetSeller(ctx context.Context, id string) (*model.Seller, error)
}

// BuildSnapshot captures the listing and its seller as they are at now.
// A seller that cannot be resolved aborts the snapshot.
func BuildSnapshot(ctx context.Context, sellers SellerLookup, l *model.Listing, now time.Time) (*model.Snapshot, error) {
	seller, err := sellers.GetSeller(ctx, l.SellerID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, eris.Wrapf(ErrSellerNotFound, "listing %s seller %s", l.ID, l.SellerID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "matching: lookup seller %s", l.SellerID)
	}

	snap := &model.Snapshot{
		ListingID:      l.ID,
		Title:          l.Title,
		Description:    l.Description,
		Price:          l.Price,
		Currency:       l.Currency,
		Category:       l.Category,
		Subcategory:    l.Subcategory,
		SubSubcategory: l.SubSubcategory,
		Condition:      l.Condition,
		ListingType:    l.ListingType,
		EnrichedTags:   append([]string(nil), l.EnrichedTags...),
		IsNegotiable:   l.IsNegotiable,
		Status:         l.Status,
		Seller: model.SellerInfo{
			ID:    seller.ID,
			Name:  seller.Name,
			Email: seller.Email,
			Phone: seller.Phone,
		},
		CreatedAt:  l.CreatedAt,
		ExpiresAt:  l.ExpiresAt,
		CapturedAt: now,
	}
	if snap.EnrichedTags == nil {
		snap.EnrichedTags = []string{}
	}
	if l.Location != nil {
		loc := *l.Location
		snap.Location = &loc
	}
	return snap, nil
}
