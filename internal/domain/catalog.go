package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type Allergen string

func (a Allergen) String() string {
	return string(a)
}

const (
	AllergenGluten  Allergen = "gluten"
	AllergenDairy   Allergen = "dairy"
	AllergenEggs    Allergen = "eggs"
	AllergenNuts    Allergen = "nuts"
	AllergenPeanuts Allergen = "peanuts"
	AllergenSoy     Allergen = "soy"
	AllergenSesame  Allergen = "sesame"
)

var Allergens = []Allergen{
	AllergenGluten,
	AllergenDairy,
	AllergenEggs,
	AllergenNuts,
	AllergenPeanuts,
	AllergenSoy,
	AllergenSesame,
}

// IsKnownAllergen reports whether a is one of the enumerated allergen tags
func IsKnownAllergen(a Allergen) bool {
	for _, known := range Allergens {
		if known == a {
			return true
		}
	}
	return false
}

// CategoryRef is a menu category as referenced by catalog items
type CategoryRef struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

// ComboItemRef points at a constituent of a combo item
type ComboItemRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// CatalogItem is a product as published in the CMS
type CatalogItem struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug,omitempty"`
	Description string           `json:"description,omitempty"`
	ImageURL    string           `json:"image_url,omitempty"`
	Price       *decimal.Decimal `json:"price,omitempty"` // nil means not purchasable
	IsAvailable bool             `json:"is_available"`
	Categories  []CategoryRef    `json:"categories,omitempty"`
	Allergens   []Allergen       `json:"allergens,omitempty"`
	IsCombo     bool             `json:"is_combo,omitempty"`
	ComboItems  []ComboItemRef   `json:"combo_items,omitempty"`
}

func (i CatalogItem) CategoryIDs() []string {
	ids := make([]string, 0, len(i.Categories))
	for _, c := range i.Categories {
		ids = append(ids, c.ID)
	}
	return ids
}

// Catalog is an immutable snapshot of the menu
type Catalog struct {
	Items      []CatalogItem `json:"items"`
	Categories []CategoryRef `json:"categories"`
	FetchedAt  time.Time     `json:"fetched_at"`
}

// Item looks an item up by identifier
func (c *Catalog) Item(id string) (CatalogItem, bool) {
	for _, item := range c.Items {
		if item.ID == id {
			return item, true
		}
	}
	return CatalogItem{}, false
}

// Category looks a category up by slug
func (c *Catalog) Category(slug string) (CategoryRef, bool) {
	for _, category := range c.Categories {
		if category.Slug == slug {
			return category, true
		}
	}
	return CategoryRef{}, false
}

// PriceOf returns a pointer to a copy of d, for building items in place
func PriceOf(d decimal.Decimal) *decimal.Decimal {
	return &d
}
