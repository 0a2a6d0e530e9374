package catalog

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// ErrInvalidShape is returned when a shape kind or coordinate list does not
// satisfy the rect/poly contract.
var ErrInvalidShape = errors.New("invalid shape")

// Shape kinds as they appear in catalog files.
const (
	KindRect = "rect"
	KindPoly = "poly"
)

// Shape is the geometry of a region in image-pixel space.
// The set of implementations is closed: Rect and Polygon.
type Shape interface {
	Kind() string
	Centroid() orb.Point
	Contains(p orb.Point) bool
	Bound() orb.Bound
	Coordinates() []float64

	isShape()
}

// Rect is an axis-aligned rectangle given by two corners.
type Rect struct {
	Min, Max orb.Point
}

// NewRect builds a rectangle from [x1,y1,x2,y2].
func NewRect(x1, y1, x2, y2 float64) Rect {
	return Rect{Min: orb.Point{x1, y1}, Max: orb.Point{x2, y2}}
}

func (Rect) Kind() string { return KindRect }

// Centroid is the midpoint of the two corners.
func (r Rect) Centroid() orb.Point {
	return orb.Point{(r.Min[0] + r.Max[0]) / 2, (r.Min[1] + r.Max[1]) / 2}
}

// Contains reports whether p lies inside or on the edge of the rectangle.
func (r Rect) Contains(p orb.Point) bool {
	return r.Bound().Contains(p)
}

func (r Rect) Bound() orb.Bound { return orb.Bound{Min: r.Min, Max: r.Max} }

func (r Rect) Coordinates() []float64 {
	return []float64{r.Min[0], r.Min[1], r.Max[0], r.Max[1]}
}

func (Rect) isShape() {}

// Polygon is a simple polygon. Ring holds the vertices without repeating
// the first one at the end.
type Polygon struct {
	Ring orb.Ring
}

func (Polygon) Kind() string { return KindPoly }

// Centroid is the arithmetic mean of the vertices.
func (p Polygon) Centroid() orb.Point {
	if len(p.Ring) == 0 {
		return orb.Point{}
	}
	var sx, sy float64
	for _, v := range p.Ring {
		sx += v[0]
		sy += v[1]
	}
	n := float64(len(p.Ring))
	return orb.Point{sx / n, sy / n}
}

// Contains uses ray casting; points on an edge count as inside.
func (p Polygon) Contains(pt orb.Point) bool {
	if len(p.Ring) < 3 {
		return false
	}
	return planar.RingContains(p.Ring, pt)
}

func (p Polygon) Bound() orb.Bound { return p.Ring.Bound() }

func (p Polygon) Coordinates() []float64 {
	out := make([]float64, 0, len(p.Ring)*2)
	for _, v := range p.Ring {
		out = append(out, v[0], v[1])
	}
	return out
}

// Closed returns a copy of the ring with the first vertex repeated at the
// end, as GeoJSON expects.
func (p Polygon) Closed() orb.Ring {
	ring := make(orb.Ring, len(p.Ring), len(p.Ring)+1)
	copy(ring, p.Ring)
	if len(ring) > 0 && !ring.Closed() {
		ring = append(ring, ring[0])
	}
	return ring
}

func (Polygon) isShape() {}

// ParseShape interprets a flat coordinate list according to kind.
func ParseShape(kind string, coords []float64) (Shape, error) {
	switch kind {
	case KindRect:
		if len(coords) != 4 {
			return nil, fmt.Errorf("%w: rect needs 4 coordinates, got %d", ErrInvalidShape, len(coords))
		}
		x1, y1, x2, y2 := coords[0], coords[1], coords[2], coords[3]
		if !(x1 < x2) || !(y1 < y2) {
			return nil, fmt.Errorf("%w: rect corners out of order [%g,%g,%g,%g]", ErrInvalidShape, x1, y1, x2, y2)
		}
		return NewRect(x1, y1, x2, y2), nil
	case KindPoly:
		if len(coords) < 6 || len(coords)%2 != 0 {
			return nil, fmt.Errorf("%w: poly needs an even count of at least 6 coordinates, got %d", ErrInvalidShape, len(coords))
		}
		ring := make(orb.Ring, 0, len(coords)/2)
		for i := 0; i < len(coords); i += 2 {
			ring = append(ring, orb.Point{coords[i], coords[i+1]})
		}
		// Drop an explicit closing vertex so the centroid is not biased.
		if len(ring) > 3 && ring[0].Equal(ring[len(ring)-1]) {
			ring = ring[:len(ring)-1]
		}
		return Polygon{Ring: ring}, nil
	default:
		return nil, fmt.Errorf("%w: unknown kind %q", ErrInvalidShape, kind)
	}
}
