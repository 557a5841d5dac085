package client

import (
	"encoding/json"
	"fmt"
	"strings"

	"bakery/storefront/internal/domain"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// queryResponse is the envelope of every CMS query result
type queryResponse[T any] struct {
	Result T   `json:"result"`
	Ms     int `json:"ms"`
}

type rawCategory struct {
	ID    string `json:"_id"`
	Title string `json:"title"`
	Slug  string `json:"slug"`
}

type rawComboItem struct {
	ID      string `json:"_id"`
	Name    string `json:"name"`
	IsCombo bool   `json:"isCombo"`
}

type rawMenuItem struct {
	ID          string           `json:"_id"`
	Name        string           `json:"name"`
	Slug        string           `json:"slug"`
	Description string           `json:"description"` // HTML
	Image       string           `json:"image"`
	Price       *decimal.Decimal `json:"price"`
	IsAvailable *bool            `json:"isAvailable"`
	Categories  []rawCategory    `json:"categories"`
	Allergens   []string         `json:"allergens"`
	IsCombo     bool             `json:"isCombo"`
	ComboItems  []rawComboItem   `json:"comboItems"`
}

type contentParser struct{}

func newContentParser() *contentParser {
	return &contentParser{}
}

func (p *contentParser) ParseCategories(body []byte) ([]domain.CategoryRef, error) {
	var resp queryResponse[[]rawCategory]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode categories: %w", err)
	}

	categories := make([]domain.CategoryRef, 0, len(resp.Result))
	for _, raw := range resp.Result {
		if raw.ID == "" || raw.Slug == "" {
			log.Warnf("Skipping category without id or slug: %+v", raw)
			continue
		}
		categories = append(categories, domain.CategoryRef{
			ID:    raw.ID,
			Title: raw.Title,
			Slug:  raw.Slug,
		})
	}

	log.Debugf("Parsed %d categories (query took %dms)", len(categories), resp.Ms)
	return categories, nil
}

func (p *contentParser) ParseMenuItems(body []byte) ([]domain.CatalogItem, error) {
	var resp queryResponse[[]rawMenuItem]
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode menu items: %w", err)
	}

	items := make([]domain.CatalogItem, 0, len(resp.Result))
	for _, raw := range resp.Result {
		if raw.ID == "" {
			log.Warnf("Skipping menu item without id: %q", raw.Name)
			continue
		}
		items = append(items, p.toCatalogItem(raw))
	}

	log.Debugf("Parsed %d menu items (query took %dms)", len(items), resp.Ms)
	return items, nil
}

func (p *contentParser) toCatalogItem(raw rawMenuItem) domain.CatalogItem {
	item := domain.CatalogItem{
		ID:          raw.ID,
		Name:        strings.TrimSpace(raw.Name),
		Slug:        raw.Slug,
		Description: p.PlainText(raw.Description),
		ImageURL:    raw.Image,
		Price:       raw.Price,
		IsAvailable: raw.IsAvailable != nil && *raw.IsAvailable,
		IsCombo:     raw.IsCombo,
	}

	for _, c := range raw.Categories {
		if c.ID == "" {
			continue
		}
		item.Categories = append(item.Categories, domain.CategoryRef{ID: c.ID, Title: c.Title, Slug: c.Slug})
	}

	for _, tag := range raw.Allergens {
		a := domain.Allergen(strings.ToLower(strings.TrimSpace(tag)))
		if !domain.IsKnownAllergen(a) {
			log.Debugf("Ignoring unknown allergen %q on %s", tag, raw.ID)
			continue
		}
		item.Allergens = append(item.Allergens, a)
	}

	if raw.IsCombo {
		for _, constituent := range raw.ComboItems {
			// Combos do not nest
			if constituent.IsCombo || constituent.ID == raw.ID {
				log.Warnf("Dropping nested combo %s from combo %s", constituent.ID, raw.ID)
				continue
			}
			item.ComboItems = append(item.ComboItems, domain.ComboItemRef{ID: constituent.ID, Name: constituent.Name})
		}
	}

	return item
}

// PlainText reduces an HTML fragment to whitespace-normalized text
func (p *contentParser) PlainText(html string) string {
	if strings.TrimSpace(html) == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Debugf("Failed to parse description HTML, using it verbatim: %v", err)
		return strings.TrimSpace(html)
	}

	doc.Find("script, style").Remove()

	// Keep block boundaries as word boundaries
	doc.Find("p, br, li, h1, h2, h3, h4").Each(func(i int, s *goquery.Selection) {
		s.AppendHtml(" ")
	})

	return strings.Join(strings.Fields(doc.Text()), " ")
}
