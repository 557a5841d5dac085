package server

import (
	"net/http"
	"net/url"

	"bakery/storefront/internal/cart"
	"bakery/storefront/internal/domain"
	"bakery/storefront/internal/menu"
	"bakery/storefront/internal/querystate"

	"github.com/gin-gonic/gin"
)

type itemView struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Slug        string            `json:"slug,omitempty"`
	Description string            `json:"description,omitempty"`
	ImageURL    string            `json:"image_url,omitempty"`
	Price       string            `json:"price,omitempty"`
	Available   bool              `json:"available"`
	Categories  []string          `json:"categories"`
	Allergens   []domain.Allergen `json:"allergens"`
	ComboItems  []string          `json:"combo_items,omitempty"`
}

type categoryView struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Active bool   `json:"active"`
	Locked bool   `json:"locked"`
}

type menuView struct {
	Title            string                 `json:"title"`
	Items            []itemView             `json:"items"`
	Categories       []categoryView         `json:"categories"`
	Allergens        []domain.Allergen      `json:"allergen_options"`
	Selection        domain.FilterSelection `json:"selection"`
	Bounds           menu.PriceRange        `json:"bounds"`
	HasActiveFilters bool                   `json:"has_active_filters"`
	Query            string                 `json:"query"`
	Total            int                    `json:"total"`
}

// buildMenu applies the URL filter state to a fresh engine over the snapshot
func (s *Server) buildMenu(catalog *domain.Catalog, values url.Values, opts ...menu.Option) menuView {
	engine := menu.NewEngine(catalog.Items, catalog.Categories, menu.PriceBounds(catalog.Items), opts...)
	engine.Apply(querystate.Decode(values, engine.Index(), engine.Defaults()))

	sel := engine.Selection()
	active := make(map[string]bool, len(sel.Categories))
	for _, id := range sel.Categories {
		active[id] = true
	}

	view := menuView{
		Title:            "Menu",
		Allergens:        domain.Allergens,
		Selection:        sel,
		Bounds:           engine.Bounds(),
		HasActiveFilters: engine.HasActiveFilters(),
		Query:            querystate.Encode(sel, engine.Index(), engine.Defaults()).Encode(),
	}

	for _, c := range engine.Index().Categories() {
		view.Categories = append(view.Categories, categoryView{
			ID:     c.ID,
			Title:  c.Title,
			Slug:   c.Slug,
			Active: active[c.ID],
			Locked: c.ID == engine.LockedCategory(),
		})
	}

	filtered := engine.Filtered()
	view.Items = make([]itemView, 0, len(filtered))
	for _, item := range filtered {
		view.Items = append(view.Items, s.itemView(item))
	}
	view.Total = len(view.Items)

	return view
}

func (s *Server) itemView(item domain.CatalogItem) itemView {
	v := itemView{
		ID:          item.ID,
		Name:        item.Name,
		Slug:        item.Slug,
		Description: item.Description,
		ImageURL:    item.ImageURL,
		Available:   cart.IsAvailable(item),
		Categories:  item.CategoryIDs(),
		Allergens:   item.Allergens,
	}
	if item.Price != nil {
		v.Price = s.money.Format(*item.Price)
	}
	for _, c := range item.ComboItems {
		v.ComboItems = append(v.ComboItems, c.Name)
	}
	return v
}

func (s *Server) snapshot(c *gin.Context) (*domain.Catalog, bool) {
	catalog, err := s.storefront.Snapshot(c.Request.Context())
	if err != nil {
		abortInternal(c, "Failed to load catalog", err)
		return nil, false
	}
	return catalog, true
}

func (s *Server) menuJSON(c *gin.Context) {
	catalog, ok := s.snapshot(c)
	if !ok {
		return
	}

	var opts []menu.Option
	if slug := c.Query("locked"); slug != "" {
		category, found := catalog.Category(slug)
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown category"})
			return
		}
		opts = append(opts, menu.WithLockedCategory(category.ID))
	}

	view := s.buildMenu(catalog, c.Request.URL.Query(), opts...)
	c.JSON(http.StatusOK, view)
}

func (s *Server) menuPage(c *gin.Context) {
	catalog, ok := s.snapshot(c)
	if !ok {
		return
	}

	view := s.buildMenu(catalog, c.Request.URL.Query())
	c.HTML(http.StatusOK, "menu.html", s.page(c, view))
}

func (s *Server) categoryPage(c *gin.Context) {
	catalog, ok := s.snapshot(c)
	if !ok {
		return
	}

	category, found := catalog.Category(c.Param("slug"))
	if !found {
		c.HTML(http.StatusNotFound, "not_found.html", s.page(c, nil))
		return
	}

	view := s.buildMenu(catalog, c.Request.URL.Query(), menu.WithLockedCategory(category.ID))
	view.Title = category.Title
	c.HTML(http.StatusOK, "menu.html", s.page(c, view))
}

func (s *Server) homePage(c *gin.Context) {
	catalog, ok := s.snapshot(c)
	if !ok {
		return
	}

	featured := make([]itemView, 0, 6)
	for _, item := range catalog.Items {
		if len(featured) == cap(featured) {
			break
		}
		if cart.IsAvailable(item) {
			featured = append(featured, s.itemView(item))
		}
	}

	c.HTML(http.StatusOK, "home.html", s.page(c, gin.H{
		"Featured":   featured,
		"Categories": catalog.Categories,
	}))
}
