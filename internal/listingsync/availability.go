package listingsync

import "github.com/sells-group/market-match/internal/model"

// Availability maps a match's mirrored listing status to buyer guidance.
func Availability(status model.ListingStatus) model.Availability {
	switch status {
	case model.ListingSold:
		return model.Availability{
			Status:  status,
			Message: "This item has been sold",
			AlternativeActions: []string{
				"Contact seller for similar items",
				"Find similar products",
				"Save search for future matches",
			},
		}
	case model.ListingExpired:
		return model.Availability{
			Status:  status,
			Message: "This listing has expired",
			AlternativeActions: []string{
				"Contact seller to renew listing",
				"Find similar active products",
				"Set up saved search",
			},
		}
	case model.ListingRemoved:
		return model.Availability{
			Status:  status,
			Message: "This item was removed by the seller",
			AlternativeActions: []string{
				"Find similar products",
				"Browse other sellers",
				"Adjust your preferences",
			},
		}
	default:
		return model.Availability{
			Status:  model.ListingActive,
			Message: "This item is still available",
			AlternativeActions: []string{
				"Contact seller",
				"View product details",
			},
		}
	}
}
