package menu

import "bakery/storefront/internal/domain"

// CategoryIndex maps category identifiers to URL slugs and back
type CategoryIndex struct {
	categories []domain.CategoryRef
	idToSlug   map[string]string
	slugToID   map[string]string
}

func NewCategoryIndex(categories []domain.CategoryRef) *CategoryIndex {
	idx := &CategoryIndex{
		categories: make([]domain.CategoryRef, 0, len(categories)),
		idToSlug:   make(map[string]string, len(categories)),
		slugToID:   make(map[string]string, len(categories)),
	}
	for _, c := range categories {
		if c.ID == "" || c.Slug == "" {
			continue
		}
		if _, dup := idx.slugToID[c.Slug]; dup {
			continue
		}
		idx.categories = append(idx.categories, c)
		idx.idToSlug[c.ID] = c.Slug
		idx.slugToID[c.Slug] = c.ID
	}
	return idx
}

func (idx *CategoryIndex) SlugOf(id string) (string, bool) {
	slug, ok := idx.idToSlug[id]
	return slug, ok
}

func (idx *CategoryIndex) IDOf(slug string) (string, bool) {
	id, ok := idx.slugToID[slug]
	return id, ok
}

// Categories lists the indexed categories in their reference order
func (idx *CategoryIndex) Categories() []domain.CategoryRef {
	return idx.categories
}
