package domain

import "slices"

// FilterSelection is the user's current menu narrowing
type FilterSelection struct {
	Search     string     `json:"search"`
	Categories []string   `json:"categories"` // category identifiers
	Allergens  []Allergen `json:"allergens"`  // excluded tags
	MinPrice   int        `json:"min_price"`
	MaxPrice   int        `json:"max_price"`
}

func (s FilterSelection) Clone() FilterSelection {
	s.Categories = slices.Clone(s.Categories)
	s.Allergens = slices.Clone(s.Allergens)
	return s
}

// Equal compares two selections treating category and allergen lists as sets
func (s FilterSelection) Equal(other FilterSelection) bool {
	return s.Search == other.Search &&
		s.MinPrice == other.MinPrice &&
		s.MaxPrice == other.MaxPrice &&
		SameSet(s.Categories, other.Categories) &&
		SameSet(s.Allergens, other.Allergens)
}

// SameSet compares two slices as sets, ignoring order and duplicates
func SameSet[T comparable](a, b []T) bool {
	seen := make(map[T]struct{}, len(a))
	for _, v := range a {
		seen[v] = struct{}{}
	}
	other := make(map[T]struct{}, len(b))
	for _, v := range b {
		if _, ok := seen[v]; !ok {
			return false
		}
		other[v] = struct{}{}
	}
	return len(seen) == len(other)
}
