// Package viewport owns the pan/zoom transform that maps image space onto
// the screen.
//
// One convention is used throughout: the image layer is centered in its
// container, its transform-origin is the image center, and the rendered
// transform is "translate(pan) scale(s)". A point therefore maps as
//
//	screen = containerCenter + pan + s*(image - imageCenter)
//
// with screen coordinates relative to the container's top-left corner.
package viewport

import (
	"math"

	"github.com/paulmach/orb"
)

// ResetMode selects what Reset returns to.
type ResetMode string

const (
	// ResetFit restores the last fit-to-container scale, or identity if no
	// fit has been computed yet.
	ResetFit ResetMode = "fit"
	// ResetIdentity always restores scale 1.
	ResetIdentity ResetMode = "identity"
)

// Config holds the engine's tuning constants.
type Config struct {
	MinScale   float64   `yaml:"min_scale" json:"minScale"`
	MaxScale   float64   `yaml:"max_scale" json:"maxScale"`
	FocusScale float64   `yaml:"focus_scale" json:"focusScale"`
	FitMargin  float64   `yaml:"fit_margin" json:"fitMargin"`
	Reset      ResetMode `yaml:"reset" json:"reset"`
}

// DefaultConfig returns the standard viewer tuning.
func DefaultConfig() Config {
	return Config{
		MinScale:   0.1,
		MaxScale:   10,
		FocusScale: 2.5,
		FitMargin:  0.95,
		Reset:      ResetFit,
	}
}

// Normalize fills zero fields from DefaultConfig and repairs inconsistent
// values instead of rejecting them.
func (c Config) Normalize() Config {
	d := DefaultConfig()
	if !(c.MinScale > 0) || math.IsInf(c.MinScale, 0) {
		c.MinScale = d.MinScale
	}
	if !(c.MaxScale > 0) || math.IsInf(c.MaxScale, 0) {
		c.MaxScale = d.MaxScale
	}
	if c.MaxScale < c.MinScale {
		c.MinScale, c.MaxScale = c.MaxScale, c.MinScale
	}
	if !(c.FocusScale > 0) {
		c.FocusScale = d.FocusScale
	}
	c.FocusScale = clamp(c.FocusScale, c.MinScale, c.MaxScale)
	if !(c.FitMargin > 0) || c.FitMargin > 1 {
		c.FitMargin = d.FitMargin
	}
	if c.Reset != ResetIdentity {
		c.Reset = ResetFit
	}
	return c
}

// Size is a width/height pair in pixels. The zero Size means unknown.
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Known reports whether both dimensions are positive.
func (s Size) Known() bool {
	return s.W > 0 && s.H > 0 && !math.IsInf(s.W, 0) && !math.IsInf(s.H, 0)
}

// Center returns the midpoint of a box of this size anchored at the origin.
func (s Size) Center() orb.Point {
	return orb.Point{s.W / 2, s.H / 2}
}

// State is the session-scoped view state.
type State struct {
	Pan        orb.Point `json:"pan"`
	Scale      float64   `json:"scale"`
	SelectedID string    `json:"selectedId,omitempty"`
}

// Identity is the untransformed state.
func Identity() State {
	return State{Scale: 1}
}

// Focusable is anything with a centroid in image space.
type Focusable interface {
	Centroid() orb.Point
}

// Engine applies pan/zoom operations to a State.
type Engine struct {
	cfg       Config
	state     State
	natural   Size
	container Size
	fitScale  float64
}

// New returns an engine in the identity state.
func New(cfg Config) *Engine {
	return &Engine{cfg: cfg.Normalize(), state: Identity()}
}

// Config returns the normalized configuration.
func (e *Engine) Config() Config { return e.cfg }

// State returns a copy of the current state.
func (e *Engine) State() State { return e.state }

// Natural returns the natural image size passed to Load or FitToContainer.
func (e *Engine) Natural() Size { return e.natural }

// Container returns the container size last passed to FitToContainer or Resize.
func (e *Engine) Container() Size { return e.container }

// FitScale returns the last computed fit-to-container scale, or 0.
func (e *Engine) FitScale() float64 { return e.fitScale }

// ZoomBy adds delta to the scale, clamped to [MinScale, MaxScale].
func (e *Engine) ZoomBy(delta float64) {
	if math.IsNaN(delta) {
		return
	}
	e.state.Scale = clamp(e.state.Scale+delta, e.cfg.MinScale, e.cfg.MaxScale)
}

// ZoomAt changes the scale by delta while keeping the image point under the
// given screen point fixed. Without known sizes it behaves like ZoomBy.
func (e *Engine) ZoomAt(delta float64, screen orb.Point) {
	if !e.natural.Known() || !e.container.Known() {
		e.ZoomBy(delta)
		return
	}
	anchor := e.ScreenToImage(screen)
	e.ZoomBy(delta)
	moved := e.ImageToScreen(anchor)
	e.PanBy(screen[0]-moved[0], screen[1]-moved[1])
}

// PanBy moves the view by (dx, dy) screen pixels. Panning is unbounded.
func (e *Engine) PanBy(dx, dy float64) {
	if math.IsNaN(dx) || math.IsNaN(dy) || math.IsInf(dx, 0) || math.IsInf(dy, 0) {
		return
	}
	e.state.Pan = orb.Point{e.state.Pan[0] + dx, e.state.Pan[1] + dy}
}

// Reset clears the selection and returns to the fit scale (ResetFit, when a
// fit has been computed) or to identity.
func (e *Engine) Reset() {
	scale := 1.0
	if e.cfg.Reset == ResetFit && e.fitScale > 0 {
		scale = e.fitScale
	}
	e.state = State{Scale: scale}
}

// FitToContainer scales the whole image into the container with the
// configured margin and recenters it. Unknown sizes leave the state alone.
// The selection is kept.
func (e *Engine) FitToContainer(natural, container Size) {
	if !natural.Known() || !container.Known() {
		return
	}
	e.natural = natural
	e.container = container
	s := math.Min(container.W/natural.W, container.H/natural.H) * e.cfg.FitMargin
	e.fitScale = clamp(s, e.cfg.MinScale, e.cfg.MaxScale)
	e.state.Scale = e.fitScale
	e.state.Pan = orb.Point{}
}

// Load records the natural image size and fits it into the container when
// the container size is already known. It reports whether a fit happened.
func (e *Engine) Load(natural Size) bool {
	if !natural.Known() {
		return false
	}
	e.natural = natural
	if !e.container.Known() {
		return false
	}
	e.FitToContainer(natural, e.container)
	return true
}

// Resize records a new container size and refits when it differs from the
// previous one. It reports whether a refit happened.
func (e *Engine) Resize(container Size) bool {
	if !container.Known() || container == e.container {
		return false
	}
	if !e.natural.Known() {
		e.container = container
		return false
	}
	e.FitToContainer(e.natural, container)
	return true
}

// CenterOn pans so that the target's centroid lands on the container center
// and raises the scale to at least FocusScale. A scale already above the
// focus level is kept.
func (e *Engine) CenterOn(target Focusable) {
	e.state.Scale = math.Max(e.state.Scale, e.cfg.FocusScale)
	c := target.Centroid()
	ic := e.natural.Center()
	e.state.Pan = orb.Point{
		-e.state.Scale * (c[0] - ic[0]),
		-e.state.Scale * (c[1] - ic[1]),
	}
}

// Select records id as the selected region.
func (e *Engine) Select(id string) { e.state.SelectedID = id }

// ClearSelection drops the selected region.
func (e *Engine) ClearSelection() { e.state.SelectedID = "" }

// ImageToScreen maps an image-space point to container coordinates.
func (e *Engine) ImageToScreen(p orb.Point) orb.Point {
	cc, ic, s := e.container.Center(), e.natural.Center(), e.state.Scale
	return orb.Point{
		cc[0] + e.state.Pan[0] + s*(p[0]-ic[0]),
		cc[1] + e.state.Pan[1] + s*(p[1]-ic[1]),
	}
}

// ScreenToImage is the inverse of ImageToScreen.
func (e *Engine) ScreenToImage(p orb.Point) orb.Point {
	cc, ic, s := e.container.Center(), e.natural.Center(), e.state.Scale
	return orb.Point{
		ic[0] + (p[0]-cc[0]-e.state.Pan[0])/s,
		ic[1] + (p[1]-cc[1]-e.state.Pan[1])/s,
	}
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
