package menu

import (
	"slices"

	"bakery/storefront/internal/domain"
)

// Engine narrows a fixed catalog by a FilterSelection. Each field of the
// selection has its own default; in locked mode one category is always part
// of the selection. An Engine is not safe for concurrent use.
type Engine struct {
	items  []domain.CatalogItem
	index  *CategoryIndex
	bounds PriceRange
	locked string

	selection domain.FilterSelection

	memoValid     bool
	memoSelection domain.FilterSelection
	memoResult    []domain.CatalogItem
}

type Option func(*Engine)

// WithLockedCategory pins a category identifier into every selection
func WithLockedCategory(id string) Option {
	return func(e *Engine) {
		e.locked = id
	}
}

func NewEngine(items []domain.CatalogItem, categories []domain.CategoryRef, bounds PriceRange, opts ...Option) *Engine {
	e := &Engine{
		items:  items,
		index:  NewCategoryIndex(categories),
		bounds: bounds,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.selection = e.Defaults()
	return e
}

// Defaults is the selection of an untouched filter UI
func (e *Engine) Defaults() domain.FilterSelection {
	sel := domain.FilterSelection{
		Categories: []string{},
		Allergens:  []domain.Allergen{},
		MinPrice:   e.bounds.Min,
		MaxPrice:   e.bounds.Max,
	}
	if e.locked != "" {
		sel.Categories = []string{e.locked}
	}
	return sel
}

func (e *Engine) Selection() domain.FilterSelection {
	return e.selection.Clone()
}

func (e *Engine) LockedCategory() string {
	return e.locked
}

func (e *Engine) Bounds() PriceRange {
	return e.bounds
}

func (e *Engine) Index() *CategoryIndex {
	return e.index
}

// SetCategories rebuilds the id/slug mapping after reference data changed
func (e *Engine) SetCategories(categories []domain.CategoryRef) {
	e.index = NewCategoryIndex(categories)
}

// Apply replaces the whole selection
func (e *Engine) Apply(sel domain.FilterSelection) {
	sel = sel.Clone()
	sel.Categories = e.withLocked(sel.Categories)
	sel.Allergens = dedupe(sel.Allergens)
	sel.MinPrice, sel.MaxPrice = ordered(sel.MinPrice, sel.MaxPrice)
	e.selection = sel
}

func (e *Engine) UpdateSearch(search string) {
	e.selection.Search = search
}

func (e *Engine) UpdateCategories(ids []string) {
	e.selection.Categories = e.withLocked(slices.Clone(ids))
}

// ToggleCategory adds or removes one category. The locked category stays.
func (e *Engine) ToggleCategory(id string) {
	if i := slices.Index(e.selection.Categories, id); i >= 0 {
		e.UpdateCategories(slices.Delete(slices.Clone(e.selection.Categories), i, i+1))
		return
	}
	e.UpdateCategories(append(slices.Clone(e.selection.Categories), id))
}

func (e *Engine) UpdateAllergens(allergens []domain.Allergen) {
	e.selection.Allergens = dedupe(slices.Clone(allergens))
}

func (e *Engine) ToggleAllergen(a domain.Allergen) {
	if i := slices.Index(e.selection.Allergens, a); i >= 0 {
		e.selection.Allergens = slices.Delete(slices.Clone(e.selection.Allergens), i, i+1)
		return
	}
	e.selection.Allergens = append(slices.Clone(e.selection.Allergens), a)
}

func (e *Engine) UpdatePriceRange(minPrice, maxPrice int) {
	e.selection.MinPrice, e.selection.MaxPrice = ordered(minPrice, maxPrice)
}

// ClearFilters resets every field, keeping the locked category
func (e *Engine) ClearFilters() {
	e.selection = e.Defaults()
}

// HasActiveFilters reports whether any field moved away from its default
func (e *Engine) HasActiveFilters() bool {
	defaults := e.Defaults()
	sel := e.selection

	return sel.Search != "" ||
		!domain.SameSet(sel.Categories, defaults.Categories) ||
		len(sel.Allergens) > 0 ||
		sel.MinPrice > defaults.MinPrice ||
		sel.MaxPrice < defaults.MaxPrice
}

// Filtered returns the items passing the current selection in catalog order.
// The result is reused until the selection changes.
func (e *Engine) Filtered() []domain.CatalogItem {
	if e.memoValid && e.memoSelection.Equal(e.selection) {
		return e.memoResult
	}

	e.memoResult = Filter(e.items, e.selection)
	e.memoSelection = e.selection.Clone()
	e.memoValid = true
	return e.memoResult
}

func (e *Engine) withLocked(ids []string) []string {
	ids = dedupe(ids)
	if e.locked != "" && !slices.Contains(ids, e.locked) {
		ids = append([]string{e.locked}, ids...)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids
}

func dedupe[T comparable](values []T) []T {
	out := values[:0:0]
	for _, v := range values {
		if !slices.Contains(out, v) {
			out = append(out, v)
		}
	}
	return out
}

func ordered(lo, hi int) (int, int) {
	if lo > hi {
		return hi, lo
	}
	return lo, hi
}
