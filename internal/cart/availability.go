package cart

import "bakery/storefront/internal/domain"

// IsAvailable is the availability gate: the item must be flagged available
// and carry a positive price.
func IsAvailable(item domain.CatalogItem) bool {
	return item.IsAvailable && item.Price != nil && item.Price.IsPositive()
}
