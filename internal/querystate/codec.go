// Package querystate converts filter selections to and from URL query
// parameters. Categories travel as slugs, everything else as plain values.
package querystate

import (
	"net/url"
	"slices"
	"strconv"
	"strings"

	"bakery/storefront/internal/domain"
)

const (
	ParamSearch   = "q"
	ParamCategory = "category"
	ParamAllergen = "allergen"
	ParamMinPrice = "minPrice"
	ParamMaxPrice = "maxPrice"
)

// SlugMapper translates category identifiers to slugs and back
type SlugMapper interface {
	SlugOf(id string) (string, bool)
	IDOf(slug string) (string, bool)
}

// Decode reads a selection from query values. A missing or malformed field
// takes its value from defaults; unknown slugs and allergens are dropped.
func Decode(values url.Values, slugs SlugMapper, defaults domain.FilterSelection) domain.FilterSelection {
	sel := defaults.Clone()

	if values.Has(ParamSearch) {
		sel.Search = strings.TrimSpace(values.Get(ParamSearch))
	}

	if raw := listValues(values, ParamCategory); raw != nil {
		sel.Categories = make([]string, 0, len(raw))
		for _, slug := range raw {
			if id, ok := slugs.IDOf(slug); ok && !slices.Contains(sel.Categories, id) {
				sel.Categories = append(sel.Categories, id)
			}
		}
	}

	if raw := listValues(values, ParamAllergen); raw != nil {
		sel.Allergens = make([]domain.Allergen, 0, len(raw))
		for _, v := range raw {
			a := domain.Allergen(strings.ToLower(v))
			if domain.IsKnownAllergen(a) && !slices.Contains(sel.Allergens, a) {
				sel.Allergens = append(sel.Allergens, a)
			}
		}
	}

	if v, ok := intValue(values, ParamMinPrice); ok {
		sel.MinPrice = v
	}
	if v, ok := intValue(values, ParamMaxPrice); ok {
		sel.MaxPrice = v
	}

	return sel
}

// Encode writes the fields of sel that differ from defaults. Lists are
// sorted so equal selections always produce the same URL.
func Encode(sel domain.FilterSelection, slugs SlugMapper, defaults domain.FilterSelection) url.Values {
	values := url.Values{}

	if sel.Search != "" {
		values.Set(ParamSearch, sel.Search)
	}

	if !domain.SameSet(sel.Categories, defaults.Categories) {
		out := make([]string, 0, len(sel.Categories))
		for _, id := range sel.Categories {
			if slug, ok := slugs.SlugOf(id); ok {
				out = append(out, slug)
			}
		}
		if len(out) > 0 {
			slices.Sort(out)
			values[ParamCategory] = slices.Compact(out)
		}
	}

	if !domain.SameSet(sel.Allergens, defaults.Allergens) {
		out := make([]string, 0, len(sel.Allergens))
		for _, a := range sel.Allergens {
			out = append(out, a.String())
		}
		if len(out) > 0 {
			slices.Sort(out)
			values[ParamAllergen] = slices.Compact(out)
		}
	}

	if sel.MinPrice != defaults.MinPrice {
		values.Set(ParamMinPrice, strconv.Itoa(sel.MinPrice))
	}
	if sel.MaxPrice != defaults.MaxPrice {
		values.Set(ParamMaxPrice, strconv.Itoa(sel.MaxPrice))
	}

	return values
}

// listValues accepts both repeated parameters and comma separated lists.
// It returns nil when the parameter is absent.
func listValues(values url.Values, key string) []string {
	raw, ok := values[key]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func intValue(values url.Values, key string) (int, bool) {
	if !values.Has(key) {
		return 0, false
	}
	v, err := strconv.Atoi(strings.TrimSpace(values.Get(key)))
	if err != nil {
		return 0, false
	}
	return v, true
}
