// Package search filters the catalog for the list and sidebar views.
package search

import (
	"strings"

	"golang.org/x/text/cases"

	"github.com/joeblew999/plat-topo/internal/catalog"
)

// Filter returns the regions matching query and regionFilter, in input order.
//
// A region matches when query, case-folded, is a substring of its name,
// localized name or id, and, if regionFilter is non-empty, its administrative
// region equals regionFilter exactly. The result is never nil.
func Filter(regions []catalog.Region, query, regionFilter string) []catalog.Region {
	out := make([]catalog.Region, 0, len(regions))
	if query == "" && regionFilter == "" {
		return append(out, regions...)
	}

	fold := cases.Fold()
	q := fold.String(query)
	for _, r := range regions {
		if regionFilter != "" && r.Region != regionFilter {
			continue
		}
		if q == "" || matches(fold, r, q) {
			out = append(out, r)
		}
	}
	return out
}

func matches(fold cases.Caser, r catalog.Region, q string) bool {
	for _, field := range [...]string{r.Name, r.LocalizedName, r.ID} {
		if field != "" && strings.Contains(fold.String(field), q) {
			return true
		}
	}
	return false
}

// OnlyFavorites keeps the regions for which isFavorite returns true.
func OnlyFavorites(regions []catalog.Region, isFavorite func(id string) bool) []catalog.Region {
	out := make([]catalog.Region, 0, len(regions))
	for _, r := range regions {
		if isFavorite(r.ID) {
			out = append(out, r)
		}
	}
	return out
}
