package hittest

import (
	"math"

	"github.com/paulmach/orb"
)

// DefaultDragThreshold is the displacement, in screen pixels, from the
// pointer-down position at which a press becomes a drag.
const DefaultDragThreshold = 1.0

// Gesture tracks one pointer's press/move/release sequence.
type Gesture struct {
	Threshold float64

	dragging bool
	dragged  bool
	swallow  bool
	start    orb.Point
	last     orb.Point
}

// NewGesture returns a tracker using DefaultDragThreshold.
func NewGesture() *Gesture {
	return &Gesture{Threshold: DefaultDragThreshold}
}

// Down starts a press at p.
func (g *Gesture) Down(p orb.Point) {
	g.dragging = true
	g.dragged = false
	g.swallow = false
	g.start = p
	g.last = p
}

// Move reports the pan delta since the previous move event. ok is false when
// no press is active.
func (g *Gesture) Move(p orb.Point) (delta orb.Point, ok bool) {
	if !g.dragging {
		return orb.Point{}, false
	}
	delta = orb.Point{p[0] - g.last[0], p[1] - g.last[1]}
	g.last = p
	if !g.dragged && math.Hypot(p[0]-g.start[0], p[1]-g.start[1]) >= g.threshold() {
		g.dragged = true
	}
	return delta, true
}

// Up ends the press. It reports whether the sequence was a click, meaning a
// press was active and the pointer never moved far enough to become a drag.
func (g *Gesture) Up(p orb.Point) (click bool) {
	if !g.dragging {
		return false
	}
	if math.Hypot(p[0]-g.start[0], p[1]-g.start[1]) >= g.threshold() {
		g.dragged = true
	}
	click = !g.dragged
	g.swallow = g.dragged
	g.dragging = false
	g.dragged = false
	return click
}

// Leave cancels the press without producing a click.
func (g *Gesture) Leave() {
	if g.dragging && g.dragged {
		g.swallow = true
	}
	g.dragging = false
	g.dragged = false
}

// Dragging reports whether a press is active.
func (g *Gesture) Dragging() bool { return g.dragging }

// Dragged reports whether the active press has become a drag.
func (g *Gesture) Dragged() bool { return g.dragging && g.dragged }

// ClickAllowed gates a shape's own click handler. It is false during a drag
// and false once for the click event a browser synthesizes after a drag.
func (g *Gesture) ClickAllowed() bool {
	if g.dragging && g.dragged {
		return false
	}
	if g.swallow {
		g.swallow = false
		return false
	}
	return true
}

func (g *Gesture) threshold() float64 {
	if g.Threshold > 0 {
		return g.Threshold
	}
	return DefaultDragThreshold
}
