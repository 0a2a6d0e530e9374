// Package catalog holds the immutable index of map sheets shown by the viewer.
//
// Every region's geometry is expressed in the pixel space of the reference
// index image at its natural resolution, so the overlay can be drawn once in
// that space and transformed together with the raster.
package catalog

import (
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// ErrDuplicateID is returned when two records share an identifier.
var ErrDuplicateID = errors.New("duplicate region id")

// Region is one map sheet of the index.
type Region struct {
	ID            string
	Name          string
	LocalizedName string
	Shape         Shape
	DownloadURL   string
	Region        string
	Province      string
}

// Title is the display label used in tooltips: "<id> : <name>".
func (r Region) Title() string {
	name := r.Name
	if name == "" {
		name = r.LocalizedName
	}
	return r.ID + " : " + name
}

// Image describes the reference raster. Width and Height are optional hints;
// when both are set the natural size is treated as already known.
type Image struct {
	URL    string `yaml:"url" json:"url"`
	Width  int    `yaml:"width,omitempty" json:"width,omitempty"`
	Height int    `yaml:"height,omitempty" json:"height,omitempty"`
}

// HasSize reports whether both size hints are present.
func (i Image) HasSize() bool {
	return i.Width > 0 && i.Height > 0
}

// Catalog is an ordered, read-only list of regions.
type Catalog struct {
	regions []Region
	byID    map[string]int
	image   Image
}

// New validates and sorts regions into a catalog.
func New(image Image, regions []Region) (*Catalog, error) {
	sorted := slices.Clone(regions)
	byID := make(map[string]int, len(sorted))
	for _, r := range sorted {
		if err := validate(r); err != nil {
			return nil, err
		}
		if _, dup := byID[r.ID]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateID, r.ID)
		}
		byID[r.ID] = 0
	}

	slices.SortStableFunc(sorted, func(a, b Region) int {
		return CompareIDs(a.ID, b.ID)
	})
	for i, r := range sorted {
		byID[r.ID] = i
	}

	return &Catalog{regions: sorted, byID: byID, image: image}, nil
}

func validate(r Region) error {
	if r.ID == "" {
		return errors.New("region id is required")
	}
	if r.Name == "" && r.LocalizedName == "" {
		return fmt.Errorf("region %q: a name is required", r.ID)
	}
	if r.Shape == nil {
		return fmt.Errorf("region %q: %w: missing", r.ID, ErrInvalidShape)
	}
	return nil
}

// Len returns the number of regions.
func (c *Catalog) Len() int { return len(c.regions) }

// All returns the regions in catalog order. The slice is a copy.
func (c *Catalog) All() []Region {
	return slices.Clone(c.regions)
}

// Get looks up a region by id.
func (c *Catalog) Get(id string) (Region, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Region{}, false
	}
	return c.regions[i], true
}

// Position returns the catalog index of id, or -1.
func (c *Catalog) Position(id string) int {
	if i, ok := c.byID[id]; ok {
		return i
	}
	return -1
}

// Image returns the reference raster metadata.
func (c *Catalog) Image() Image { return c.image }

// AdminRegions returns the distinct administrative regions in order of
// first appearance.
func (c *Catalog) AdminRegions() []string {
	seen := make(map[string]bool)
	var out []string
	for _, r := range c.regions {
		if r.Region == "" || seen[r.Region] {
			continue
		}
		seen[r.Region] = true
		out = append(out, r.Region)
	}
	return out
}

// CompareIDs orders sheet identifiers by numeric prefix, then by suffix.
// Identifiers without a numeric prefix sort after all numbered ones.
func CompareIDs(a, b string) int {
	na, sa, oka := splitID(a)
	nb, sb, okb := splitID(b)
	switch {
	case oka && !okb:
		return -1
	case !oka && okb:
		return 1
	case !oka && !okb:
		return strings.Compare(a, b)
	}
	if na != nb {
		if na < nb {
			return -1
		}
		return 1
	}
	return strings.Compare(sa, sb)
}

func splitID(id string) (num uint64, suffix string, ok bool) {
	end := 0
	for end < len(id) && id[end] >= '0' && id[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0, id, false
	}
	n, err := strconv.ParseUint(id[:end], 10, 64)
	if err != nil {
		return 0, id, false
	}
	return n, id[end:], true
}
