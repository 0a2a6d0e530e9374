// Package service contains the business logic of the plat-topo viewer:
// per-visitor preferences and the in-memory viewer sessions.
package service

import (
	"errors"
	"slices"
)

var (
	// ErrUnknownRegion is returned when an id is not in the catalog.
	ErrUnknownRegion = errors.New("unknown map sheet")
	// ErrInvalidPreference is returned for values outside a preference's enum.
	ErrInvalidPreference = errors.New("invalid preference value")
)

// View modes.
const (
	ViewMap  = "map"
	ViewList = "list"
)

// Languages and themes.
const (
	LangFrench = "fr"
	LangArabic = "ar"
	ThemeLight = "light"
	ThemeDark  = "dark"
)

// Preferences is everything remembered about one visitor.
// Huma reads the tags for OpenAPI and validation; signal names the Datastar
// signal a field is bound to on the viewer page.
type Preferences struct {
	Favorites      []string       `json:"favorites" doc:"Favorited sheet ids in the order they were added"`
	ViewMode       string         `json:"viewMode" enum:"map,list" default:"list" signal:"mode" doc:"Main view"`
	ShowBackground bool           `json:"showBackground" default:"true" signal:"bg" doc:"Show the reference image under the overlay"`
	Language       string         `json:"language" enum:"fr,ar" default:"fr" signal:"lang" doc:"Label language"`
	Theme          string         `json:"theme" enum:"light,dark" default:"light" signal:"theme" doc:"Color theme"`
	Downloads      map[string]int `json:"downloads,omitempty" doc:"Download count per sheet id"`
}

// Defaults returns the preferences of a first visit.
func Defaults() Preferences {
	return Preferences{
		Favorites:      []string{},
		ViewMode:       ViewList,
		ShowBackground: true,
		Language:       LangFrench,
		Theme:          ThemeLight,
	}
}

// IsFavorite reports whether id is in the favorite set.
func (p Preferences) IsFavorite(id string) bool {
	return slices.Contains(p.Favorites, id)
}

// Clone deep-copies p.
func (p Preferences) Clone() Preferences {
	c := p
	c.Favorites = slices.Clone(p.Favorites)
	if c.Favorites == nil {
		c.Favorites = []string{}
	}
	if p.Downloads != nil {
		c.Downloads = make(map[string]int, len(p.Downloads))
		for k, v := range p.Downloads {
			c.Downloads[k] = v
		}
	}
	return c
}

// normalize repairs values read from storage so a hand-edited or older
// document never breaks the viewer.
func (p Preferences) normalize() Preferences {
	d := Defaults()
	if p.ViewMode != ViewMap && p.ViewMode != ViewList {
		p.ViewMode = d.ViewMode
	}
	if p.Language != LangFrench && p.Language != LangArabic {
		p.Language = d.Language
	}
	if p.Theme != ThemeLight && p.Theme != ThemeDark {
		p.Theme = d.Theme
	}
	seen := make(map[string]bool, len(p.Favorites))
	favs := make([]string, 0, len(p.Favorites))
	for _, id := range p.Favorites {
		if id != "" && !seen[id] {
			seen[id] = true
			favs = append(favs, id)
		}
	}
	p.Favorites = favs
	return p
}

// PrefsPatch is a partial update; nil fields are left alone.
type PrefsPatch struct {
	ViewMode       *string `json:"viewMode,omitempty" enum:"map,list" doc:"Main view"`
	ShowBackground *bool   `json:"showBackground,omitempty" doc:"Show the reference image"`
	Language       *string `json:"language,omitempty" enum:"fr,ar" doc:"Label language"`
	Theme          *string `json:"theme,omitempty" enum:"light,dark" doc:"Color theme"`
}
