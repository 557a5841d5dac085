package server

import (
	"html/template"
	"net/url"
	"slices"

	"bakery/storefront/internal/domain"
)

var templateFuncs = template.FuncMap{
	"hasAllergen": func(sel domain.FilterSelection, a domain.Allergen) bool {
		return slices.Contains(sel.Allergens, a)
	},
	"menuLink": func(slug, rawQuery string) string {
		u := url.URL{Path: "/menu", RawQuery: rawQuery}
		if slug != "" {
			u.Path += "/" + url.PathEscape(slug)
		}
		return u.String()
	},
}
