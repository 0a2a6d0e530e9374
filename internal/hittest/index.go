// Package hittest resolves image-space points to catalog regions and tells
// drag gestures apart from clicks.
package hittest

import (
	"math"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
)

// searchTolerance is the side of the query box around a point, in image pixels.
const searchTolerance = 1e-6

// entry is a region's bounding box stored in the R-tree.
type entry struct {
	pos  int
	rect rtreego.Rect
}

// Bounds implements rtreego.Spatial.
func (e entry) Bounds() rtreego.Rect { return e.rect }

// Index answers "which region is under this image point".
//
// Candidates come from an R-tree over region bounds; the exact test is
// point-in-rectangle or ray casting, and overlapping matches are resolved in
// favor of the earliest region in catalog order.
type Index struct {
	regions []catalog.Region
	tree    *rtreego.Rtree
	linear  []int // regions whose bounds could not be indexed
}

// NewIndex builds an index over regions, which must be in catalog order.
func NewIndex(regions []catalog.Region) *Index {
	idx := &Index{
		regions: regions,
		tree:    rtreego.NewTree(2, 25, 50),
	}
	for i, r := range regions {
		b := r.Shape.Bound()
		rect, err := rtreego.NewRect(
			rtreego.Point{b.Min[0], b.Min[1]},
			[]float64{math.Max(b.Max[0]-b.Min[0], searchTolerance), math.Max(b.Max[1]-b.Min[1], searchTolerance)},
		)
		if err != nil {
			idx.linear = append(idx.linear, i)
			continue
		}
		idx.tree.Insert(entry{pos: i, rect: rect})
	}
	return idx
}

// At returns the first region in catalog order containing p.
func (idx *Index) At(p orb.Point) (catalog.Region, bool) {
	best := -1
	consider := func(i int) {
		if (best == -1 || i < best) && idx.regions[i].Shape.Contains(p) {
			best = i
		}
	}

	for _, s := range idx.tree.SearchIntersect(rtreego.Point{p[0], p[1]}.ToRect(searchTolerance)) {
		consider(s.(entry).pos)
	}
	for _, i := range idx.linear {
		consider(i)
	}

	if best == -1 {
		return catalog.Region{}, false
	}
	return idx.regions[best], true
}

// Len returns the number of indexed regions.
func (idx *Index) Len() int { return len(idx.regions) }
