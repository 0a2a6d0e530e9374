// Package mapview composes the catalog, the viewport engine and the hit-test
// layer into one pannable, zoomable and selectable map.
//
// A View is not safe for concurrent use. Callers that share one across
// goroutines serialize access themselves.
package mapview

import (
	"context"
	"errors"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/hittest"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// Source says where a selection came from.
type Source string

const (
	SourceMap    Source = "map"
	SourceList   Source = "list"
	SourceSearch Source = "search"
	SourceAPI    Source = "api"
	SourceReset  Source = "reset"
	SourceData   Source = "data"
)

// Change is delivered to listeners when the selected id changes.
type Change struct {
	Prev   string `json:"prev"`
	Next   string `json:"next"`
	Source Source `json:"source"`
}

// Snapshot is a value copy of everything a renderer needs.
type Snapshot struct {
	State          viewport.State `json:"state"`
	Transform      string         `json:"transform"`
	LayerStyle     string         `json:"layerStyle"`
	Hovered        string         `json:"hovered,omitempty"`
	Ready          bool           `json:"ready"`
	Failed         bool           `json:"failed"`
	Natural        viewport.Size  `json:"natural"`
	Container      viewport.Size  `json:"container"`
	FitScale       float64        `json:"fitScale"`
	ShowBackground bool           `json:"showBackground"`
	Dragging       bool           `json:"dragging"`
}

// Option configures a View.
type Option func(*View)

// WithLogger sets the logger used for load failures and selection tracing.
func WithLogger(l logging.Logger) Option {
	return func(v *View) {
		if l != nil {
			v.log = l
		}
	}
}

// WithDragThreshold overrides the click/drag threshold in screen pixels.
func WithDragThreshold(px float64) Option {
	return func(v *View) { v.gesture.Threshold = px }
}

// View is the interactive map.
type View struct {
	cat     *catalog.Catalog
	index   *hittest.Index
	engine  *viewport.Engine
	gesture *hittest.Gesture
	gate    Gate
	log     logging.Logger

	hovered        string
	showBackground bool

	listeners map[int]func(Change)
	nextID    int
}

// New builds a view over cat. If the catalog's image carries size hints the
// natural size is known immediately.
func New(cat *catalog.Catalog, cfg viewport.Config, opts ...Option) *View {
	v := &View{
		cat:            cat,
		index:          hittest.NewIndex(cat.All()),
		engine:         viewport.New(cfg),
		gesture:        hittest.NewGesture(),
		log:            logging.Noop(),
		showBackground: true,
		listeners:      make(map[int]func(Change)),
	}
	for _, opt := range opts {
		opt(v)
	}
	if img := cat.Image(); img.HasSize() {
		v.ImageLoaded(viewport.Size{W: float64(img.Width), H: float64(img.Height)})
	}
	return v
}

// Catalog returns the catalog the view is bound to.
func (v *View) Catalog() *catalog.Catalog { return v.cat }

// Engine exposes the viewport engine for read-only coordinate mapping.
func (v *View) Engine() *viewport.Engine { return v.engine }

// SetCatalog swaps the catalog. A selection or hover that no longer exists
// is dropped.
func (v *View) SetCatalog(cat *catalog.Catalog) {
	v.cat = cat
	v.index = hittest.NewIndex(cat.All())
	if _, ok := cat.Get(v.hovered); !ok {
		v.hovered = ""
	}
	prev := v.engine.State().SelectedID
	if prev == "" {
		return
	}
	if _, ok := cat.Get(prev); !ok {
		v.engine.ClearSelection()
		v.emit(Change{Prev: prev, Source: SourceData})
	}
}

// Select applies toggle semantics: selecting the current region clears the
// selection, any other known region replaces it and is centered on. Unknown
// ids are ignored and reported as false.
func (v *View) Select(id string, src Source) bool {
	r, ok := v.cat.Get(id)
	if !ok {
		return false
	}
	prev := v.engine.State().SelectedID
	if prev == id {
		v.engine.ClearSelection()
		v.emit(Change{Prev: prev, Source: src})
		return true
	}

	v.engine.Select(id)
	v.gate.Do(func(viewport.Size) {
		if v.engine.State().SelectedID == id {
			v.engine.CenterOn(r.Shape)
		}
	})
	v.emit(Change{Prev: prev, Next: id, Source: src})
	return true
}

// Deselect clears the selection without touching pan or zoom.
func (v *View) Deselect(src Source) bool {
	prev := v.engine.State().SelectedID
	if prev == "" {
		return false
	}
	v.engine.ClearSelection()
	v.emit(Change{Prev: prev, Source: src})
	return true
}

// Selected returns the selected region, if any.
func (v *View) Selected() (catalog.Region, bool) {
	return v.cat.Get(v.engine.State().SelectedID)
}

// Reset clears the selection and returns to the fit scale or identity.
func (v *View) Reset() {
	prev := v.engine.State().SelectedID
	v.engine.Reset()
	if prev != "" {
		v.emit(Change{Prev: prev, Source: SourceReset})
	}
}

func (v *View) ZoomBy(delta float64) { v.engine.ZoomBy(delta) }

// ZoomAt zooms around a screen point.
func (v *View) ZoomAt(delta float64, screen orb.Point) { v.engine.ZoomAt(delta, screen) }

func (v *View) PanBy(dx, dy float64) { v.engine.PanBy(dx, dy) }

// ImageLoaded opens the ready gate with the natural size, fits the image
// into the container when its size is known, then runs deferred work.
func (v *View) ImageLoaded(natural viewport.Size) bool {
	if v.gate.Ready() || v.gate.Err() != nil || !natural.Known() {
		return false
	}
	v.engine.Load(natural)
	return v.gate.Open(natural)
}

// ImageFailed leaves the natural size unknown for the rest of the view's life.
func (v *View) ImageFailed(ctx context.Context, err error) {
	if v.gate.Ready() || v.gate.Err() != nil {
		return
	}
	if err == nil {
		err = errors.New("reference image failed to load")
	}
	v.gate.Fail(err)
	v.log.Warn(ctx, "reference image unavailable, overlay disabled",
		logging.String("url", v.cat.Image().URL), logging.Err(err))
}

// Resize reports a container size. A genuine change refits and, when a
// region is selected, centers on it again.
func (v *View) Resize(container viewport.Size) bool {
	if !container.Known() {
		return false
	}
	if !v.gate.Ready() {
		v.engine.Resize(container)
		return false
	}
	if !v.engine.Resize(container) {
		return false
	}
	if r, ok := v.Selected(); ok {
		v.engine.CenterOn(r.Shape)
	}
	return true
}

// PointerDown starts a press at a container-relative screen point.
func (v *View) PointerDown(p orb.Point) { v.gesture.Down(p) }

// PointerMove pans by the delta since the previous move. It reports whether
// the view moved.
func (v *View) PointerMove(p orb.Point) bool {
	d, ok := v.gesture.Move(p)
	if !ok || (d[0] == 0 && d[1] == 0) {
		return false
	}
	v.engine.PanBy(d[0], d[1])
	return true
}

// PointerUp ends the press and reports whether it was a click rather than a
// drag. It never selects; front ends without clickable shapes follow a
// click with ClickAt.
func (v *View) PointerUp(p orb.Point) bool { return v.gesture.Up(p) }

// PointerLeave abandons the press.
func (v *View) PointerLeave() { v.gesture.Leave() }

// Dragging reports whether a press is active.
func (v *View) Dragging() bool { return v.gesture.Dragging() }

// ClickRegion is a shape's own click handler. It is ignored during a drag and
// for the click that ends one.
func (v *View) ClickRegion(id string) bool {
	if !v.gesture.ClickAllowed() {
		return false
	}
	return v.Select(id, SourceMap)
}

// ClickAt hit-tests a screen point and selects what is under it.
func (v *View) ClickAt(p orb.Point) bool {
	r, ok := v.RegionAt(p)
	if !ok || !v.gesture.ClickAllowed() {
		return false
	}
	return v.Select(r.ID, SourceMap)
}

// RegionAt returns the region under a screen point. Nothing is hit before
// the natural size is known.
func (v *View) RegionAt(p orb.Point) (catalog.Region, bool) {
	if !v.gate.Ready() || !v.engine.Container().Known() {
		return catalog.Region{}, false
	}
	return v.index.At(v.engine.ScreenToImage(p))
}

// Hover sets the hovered id; unknown ids clear it. It reports a change.
func (v *View) Hover(id string) bool {
	if _, ok := v.cat.Get(id); !ok {
		id = ""
	}
	if id == v.hovered {
		return false
	}
	v.hovered = id
	return true
}

// Hovered returns the hovered region, if any.
func (v *View) Hovered() (catalog.Region, bool) { return v.cat.Get(v.hovered) }

func (v *View) SetShowBackground(show bool) { v.showBackground = show }

// Overlay returns the regions to draw over the image, or nil while the
// natural size is unknown.
func (v *View) Overlay() []catalog.Region {
	if !v.gate.Ready() {
		return nil
	}
	return v.cat.All()
}

// Snapshot returns the current render state.
func (v *View) Snapshot() Snapshot {
	st := v.engine.State()
	natural := v.engine.Natural()
	if v.gate.Ready() {
		natural = v.gate.Size()
	}
	style := "display:none"
	if v.gate.Ready() {
		style = viewport.LayerStyle(natural, st)
	}
	return Snapshot{
		State:          st,
		Transform:      viewport.TransformOf(st),
		LayerStyle:     style,
		Hovered:        v.hovered,
		Ready:          v.gate.Ready(),
		Failed:         v.gate.Err() != nil,
		Natural:        natural,
		Container:      v.engine.Container(),
		FitScale:       v.engine.FitScale(),
		ShowBackground: v.showBackground,
		Dragging:       v.gesture.Dragging(),
	}
}

// OnChange registers fn for selection changes and returns its cancel func.
func (v *View) OnChange(fn func(Change)) (cancel func()) {
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	return func() { delete(v.listeners, id) }
}

func (v *View) emit(c Change) {
	if c.Prev == c.Next {
		return
	}
	for _, fn := range v.listeners {
		fn(c)
	}
}
