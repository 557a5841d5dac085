package menu

import (
	"slices"
	"strings"

	"bakery/storefront/internal/domain"

	"github.com/shopspring/decimal"
	"golang.org/x/text/cases"
)

func fold(s string) string {
	return cases.Fold().String(s)
}

// MatchesSearch is a case-insensitive substring match on the item name.
// An empty search matches everything.
func MatchesSearch(item domain.CatalogItem, search string) bool {
	if search == "" {
		return true
	}
	return strings.Contains(fold(item.Name), fold(search))
}

// MatchesCategories requires at least one shared category when any are selected
func MatchesCategories(item domain.CatalogItem, categories []string) bool {
	if len(categories) == 0 {
		return true
	}
	for _, c := range item.Categories {
		if slices.Contains(categories, c.ID) {
			return true
		}
	}
	return false
}

// ExcludesAllergens fails the item if it carries any of the excluded tags
func ExcludesAllergens(item domain.CatalogItem, excluded []domain.Allergen) bool {
	for _, a := range item.Allergens {
		if slices.Contains(excluded, a) {
			return false
		}
	}
	return true
}

// WithinPrice requires a defined price inside the inclusive bounds
func WithinPrice(item domain.CatalogItem, minPrice, maxPrice int) bool {
	if item.Price == nil {
		return false
	}
	return item.Price.GreaterThanOrEqual(decimal.NewFromInt(int64(minPrice))) &&
		item.Price.LessThanOrEqual(decimal.NewFromInt(int64(maxPrice)))
}

func matches(item domain.CatalogItem, sel domain.FilterSelection) bool {
	return MatchesSearch(item, sel.Search) &&
		MatchesCategories(item, sel.Categories) &&
		ExcludesAllergens(item, sel.Allergens) &&
		WithinPrice(item, sel.MinPrice, sel.MaxPrice)
}

// Filter keeps the matching items in their original order
func Filter(items []domain.CatalogItem, sel domain.FilterSelection) []domain.CatalogItem {
	result := make([]domain.CatalogItem, 0, len(items))
	for _, item := range items {
		if matches(item, sel) {
			result = append(result, item)
		}
	}
	return result
}

// PriceRange holds inclusive integer price bounds
type PriceRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// PriceBounds returns the smallest range containing every priced item. The
// minimum is floored and the maximum ceiled.
func PriceBounds(items []domain.CatalogItem) PriceRange {
	var lo, hi *decimal.Decimal
	for _, item := range items {
		if item.Price == nil {
			continue
		}
		if lo == nil || item.Price.LessThan(*lo) {
			lo = item.Price
		}
		if hi == nil || item.Price.GreaterThan(*hi) {
			hi = item.Price
		}
	}
	if lo == nil {
		return PriceRange{}
	}
	return PriceRange{
		Min: int(lo.Floor().IntPart()),
		Max: int(hi.Ceil().IntPart()),
	}
}
