// Package viewer contains the Datastar SSE handlers that drive the map
// viewer page. The page reports pointer, wheel, resize and image events;
// every coordinate computation happens here, on the session's map view, and
// the page only applies the signals and fragments it is sent.
package viewer

import (
	"bytes"
	"context"
	"math"
	"net/http"
	"reflect"
	"sync"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/metrics"
	"github.com/joeblew999/plat-topo/internal/search"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/templates"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// CookieName is the session cookie shared by the page and every endpoint.
const CookieName = "topo_session"

// Tag groups the viewer operations in OpenAPI.
const Tag = "viewer"

const (
	wheelStep  = 0.1  // fraction of the current scale per wheel notch
	buttonStep = 0.25 // fraction of the current scale per zoom button
	panStep    = 60.0 // pixels per arrow key
)

// Handler serves the viewer's SSE endpoints and page.
type Handler struct {
	humastar.Handler
	sessions *service.SessionManager
	prefs    *service.PrefsService
	bus      *service.EventBus
	log      logging.Logger
	metrics  *metrics.Collector

	api    huma.API
	once   sync.Once
	routes map[string]string
}

// Option configures a Handler.
type Option func(*Handler)

func WithLogger(l logging.Logger) Option {
	return func(h *Handler) { h.log = l }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(h *Handler) { h.metrics = m }
}

func WithBus(b *service.EventBus) Option {
	return func(h *Handler) { h.bus = b }
}

// NewHandler creates the viewer handler.
func NewHandler(sessions *service.SessionManager, prefs *service.PrefsService, renderer *templates.Renderer, opts ...Option) *Handler {
	h := &Handler{
		Handler:  humastar.Handler{Renderer: renderer},
		sessions: sessions,
		prefs:    prefs,
		log:      logging.Noop(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// ---------------------------------------------------------------------------
// Inputs
// ---------------------------------------------------------------------------

// GetInput is the input of the streaming GET endpoints. Datastar sends the
// page signals of GET requests in the datastar query parameter.
type GetInput struct {
	Session  string `cookie:"topo_session" doc:"Viewer session"`
	Datastar string `query:"datastar" doc:"Page signals (JSON)"`
}

// PostInput is the input of the action endpoints: the session cookie plus
// the page signals as the JSON body.
type PostInput struct {
	Session string `cookie:"topo_session" doc:"Viewer session"`
	RawBody []byte
}

// IDInput targets one sheet.
type IDInput struct {
	PostInput
	ID string `path:"id" doc:"Sheet ID" example:"47"`
}

func (in *PostInput) signals() (humastar.Signals, error) {
	if len(bytes.TrimSpace(in.RawBody)) == 0 {
		return humastar.Signals{}, nil
	}
	si := humastar.SignalsInput{RawBody: in.RawBody}
	return si.MustParse()
}

func (in *GetInput) signals() (humastar.Signals, error) {
	if in.Datastar == "" {
		return humastar.Signals{}, nil
	}
	si := humastar.SignalsInput{RawBody: []byte(in.Datastar)}
	return si.MustParse()
}

func requireSession(id string) error {
	if id == "" {
		return huma.Error400BadRequest("missing " + CookieName + " cookie: reload the viewer page")
	}
	return nil
}

// ---------------------------------------------------------------------------
// Turns
// ---------------------------------------------------------------------------

// part is a bit set of the page regions a turn re-renders.
type part uint

const (
	partViewport part = 1 << iota // transform, selection and hover signals
	partPrefs                     // mode, background, language and theme signals
	partList                      // sidebar rows and list-view cards
	partDetail                    // panel of the selected sheet
	partOverlay                   // SVG shapes over the image
	partRegions                   // options of the region filter

	partAll = partViewport | partPrefs | partList | partDetail | partOverlay | partRegions
)

// turn is one event applied to a session under its lock.
type turn struct {
	ctx    context.Context
	id     string
	view   *mapview.View
	filter *service.ListFilter
	sig    humastar.Signals
	prefs  service.Preferences
	parts  part
	err    string
	ok     string
	reload bool
}

// redraw marks parts for re-rendering.
func (t *turn) redraw(p part) { t.parts |= p }

// fail reports an error to the page through the error signal.
func (t *turn) fail(msg string) { t.err = msg }

// act runs fn on the session under its lock and streams the re-rendered
// parts. Fresh sessions are first rebuilt from the page signals.
func (h *Handler) act(ctx context.Context, session string, sig humastar.Signals, fn func(t *turn)) *huma.StreamResponse {
	return h.Stream(func(sse humastar.SSE) {
		h.apply(ctx, sse, session, sig, fn)
	})
}

func (h *Handler) apply(ctx context.Context, sse humastar.SSE, session string, sig humastar.Signals, fn func(t *turn)) {
	ctx, _ = logging.EnsureRequestID(ctx)
	s, created := h.sessions.Ensure(session)
	t := &turn{ctx: ctx, id: s.ID, sig: sig, prefs: h.prefs.Get(ctx, s.ID)}

	var out rendered
	s.Do(func(v *mapview.View, f *service.ListFilter) {
		t.view, t.filter = v, f
		v.SetShowBackground(t.prefs.ShowBackground)
		if created {
			h.hydrate(t)
			t.redraw(partAll)
		}
		fn(t)
		// Favorites and language come from preferences fn may have changed.
		t.prefs = h.prefs.Get(ctx, s.ID)
		v.SetShowBackground(t.prefs.ShowBackground)
		out = h.render(t)
	})
	out.send(sse)
}

// hydrate rebuilds a session that expired, or that this process never saw,
// from the signals the page still holds.
func (h *Handler) hydrate(t *turn) {
	sig := t.sig
	t.filter.Query = sig.String("q")
	t.filter.Region = sig.String("region")
	t.filter.FavoritesOnly = sig.Bool("favonly")
	if cw, ch, ok := sig.Point("cw", "ch"); ok {
		t.view.Resize(viewport.Size{W: cw, H: ch})
	}
	if nw, nh, ok := sig.Point("nw", "nh"); ok {
		t.view.ImageLoaded(viewport.Size{W: nw, H: nh})
	}
	if id := sig.String("selected"); id != "" {
		t.view.Select(id, mapview.SourceAPI)
	}
	h.log.Debug(t.ctx, "viewer session rebuilt from page signals", logging.Session(t.id))
}

// ---------------------------------------------------------------------------
// Rendering
// ---------------------------------------------------------------------------

// rendered is the output of a turn, built under the session lock and sent
// after it is released.
type rendered struct {
	signals map[string]any
	patches []patch
	reload  bool
}

type patch struct {
	html, selector string
}

func (r rendered) send(sse humastar.SSE) {
	for _, p := range r.patches {
		sse.Patch(p.html, p.selector)
	}
	if len(r.signals) > 0 {
		sse.Signals(r.signals)
	}
	if r.reload {
		sse.Redirect(PagePath)
	}
}

func (h *Handler) render(t *turn) rendered {
	out := rendered{signals: map[string]any{}, reload: t.reload}
	snap := t.view.Snapshot()
	lang := t.prefs.Language

	if t.parts&partViewport != 0 {
		out.signals["layerstyle"] = snap.LayerStyle
		out.signals["selected"] = snap.State.SelectedID
		out.signals["hovered"] = snap.Hovered
		out.signals["ready"] = snap.Ready
		out.signals["failed"] = snap.Failed
		out.signals["scale"] = int(math.Round(snap.State.Scale * 100))
	}
	if t.parts&partPrefs != 0 {
		out.signals["mode"] = t.prefs.ViewMode
		out.signals["bg"] = t.prefs.ShowBackground
		out.signals["lang"] = t.prefs.Language
		out.signals["theme"] = t.prefs.Theme
	}
	if t.parts&partList != 0 {
		items := h.sheetItems(t)
		out.signals["shown"] = len(items)
		out.patches = append(out.patches,
			patch{humastar.RenderList(h.Renderer, "sheet-row", items, templates.Translate(lang, "empty"), templates.Translate(lang, "empty.hint")), "#sheet-list"},
			patch{humastar.RenderList(h.Renderer, "sheet-card", items, templates.Translate(lang, "empty"), templates.Translate(lang, "empty.hint")), "#card-grid"},
		)
	}
	if t.parts&partDetail != 0 {
		out.patches = append(out.patches, patch{h.renderDetail(t), "#detail"})
	}
	if t.parts&partOverlay != 0 && snap.Ready {
		out.patches = append(out.patches, patch{h.renderOverlay(t, snap.Natural), "#overlay"})
	}
	if t.parts&partRegions != 0 {
		out.patches = append(out.patches, patch{h.renderRegions(t), "#region-filter"})
	}
	if t.err != "" {
		out.signals["error"] = t.err
	}
	if t.ok != "" {
		out.signals["success"] = t.ok
	}
	return out
}

// SheetItem is the data of the sheet-row and sheet-card fragments.
type SheetItem struct {
	ID          string
	Label       string
	Title       string
	Href        string
	Favorite    bool
	Lang        string
	SelectURL   string
	LocateURL   string
	FavoriteURL string
	DownloadURL string
}

func (h *Handler) sheetItems(t *turn) []SheetItem {
	cat := t.view.Catalog()
	regions := search.Filter(cat.All(), t.filter.Query, t.filter.Region)
	if t.filter.FavoritesOnly {
		regions = search.OnlyFavorites(regions, t.prefs.IsFavorite)
	}
	items := make([]SheetItem, len(regions))
	for i, r := range regions {
		items[i] = h.sheetItem(r, t.prefs)
	}
	return items
}

func (h *Handler) sheetItem(r catalog.Region, p service.Preferences) SheetItem {
	pd := h.pageRoutes()
	return SheetItem{
		ID:          r.ID,
		Label:       templates.Label(p.Language, r),
		Title:       r.Title(),
		Href:        r.DownloadURL,
		Favorite:    p.IsFavorite(r.ID),
		Lang:        p.Language,
		SelectURL:   pd.Route("viewer-select", r.ID),
		LocateURL:   pd.Route("viewer-locate", r.ID),
		FavoriteURL: pd.Route("viewer-favorite", r.ID),
		DownloadURL: pd.Route("viewer-download", r.ID),
	}
}

// DetailData is the data of the detail fragment. Sheet is nil when nothing
// is selected.
type DetailData struct {
	Sheet       *SheetItem
	Region      string
	Province    string
	Downloads   int
	DeselectURL string
}

func (h *Handler) renderDetail(t *turn) string {
	d := DetailData{DeselectURL: h.pageRoutes().Route("viewer-deselect")}
	if r, ok := t.view.Selected(); ok {
		item := h.sheetItem(r, t.prefs)
		d.Sheet = &item
		d.Region, d.Province = r.Region, r.Province
		d.Downloads = t.prefs.Downloads[r.ID]
	}
	html, err := h.Renderer.Render("detail", d)
	if err != nil {
		h.log.Error(t.ctx, "render detail", logging.Err(err))
	}
	return html
}

// OverlayData is the data of the overlay fragment, in image pixels.
type OverlayData struct {
	W, H       float64
	Shapes     []ShapeData
	UnhoverURL string
}

// ShapeData is one clickable sheet outline.
type ShapeData struct {
	ID       string
	Kind     string
	X, Y     float64
	W, H     float64
	Coords   []float64
	Title    string
	HoverURL string
	ClickURL string
}

func (h *Handler) renderOverlay(t *turn, natural viewport.Size) string {
	pd := h.pageRoutes()
	regions := t.view.Overlay()
	d := OverlayData{W: natural.W, H: natural.H, Shapes: make([]ShapeData, 0, len(regions)), UnhoverURL: pd.Route("viewer-unhover")}
	for _, r := range regions {
		b := r.Shape.Bound()
		d.Shapes = append(d.Shapes, ShapeData{
			ID:       r.ID,
			Kind:     r.Shape.Kind(),
			X:        b.Min[0],
			Y:        b.Min[1],
			W:        b.Max[0] - b.Min[0],
			H:        b.Max[1] - b.Min[1],
			Coords:   r.Shape.Coordinates(),
			Title:    r.Title(),
			HoverURL: pd.Route("viewer-hover", r.ID),
			ClickURL: pd.Route("viewer-click", r.ID),
		})
	}
	html, err := h.Renderer.Render("overlay", d)
	if err != nil {
		h.log.Error(t.ctx, "render overlay", logging.Err(err))
	}
	return html
}

func (h *Handler) renderRegions(t *turn) string {
	names := t.view.Catalog().AdminRegions()
	opts := make([]humastar.SelectOptionData, len(names))
	for i, name := range names {
		opts[i] = humastar.SelectOptionData{Value: name, Label: name, Selected: name == t.filter.Region}
	}
	return h.RenderSelect(templates.Translate(t.prefs.Language, "region.all"), opts)
}

// pageRoutes discovers the viewer routes once all of them are registered.
func (h *Handler) pageRoutes() humastar.PageData {
	h.once.Do(func() {
		h.routes = humastar.BuildPageData(h.api, Tag, nil, nil).Routes
	})
	return humastar.PageData{Routes: h.routes}
}

// ---------------------------------------------------------------------------
// Routes
// ---------------------------------------------------------------------------

type route struct {
	id, method, path, summary string
}

// RegisterRoutes registers the viewer SSE endpoints and the preference
// schema whose signal tags seed the page's signals.
func (h *Handler) RegisterRoutes(api huma.API) {
	h.api = api
	prefsType := reflect.TypeFor[service.Preferences]()
	api.OpenAPI().Components.Schemas.Schema(prefsType, true, prefsType.Name())
	defer humastar.InjectSignals(api, prefsType)

	get := func(id, path, summary string, fn func(context.Context, *GetInput) (*huma.StreamResponse, error)) {
		huma.Register(api, operation(route{id, http.MethodGet, path, summary}), fn)
	}
	post := func(id, path, summary string, fn func(context.Context, *PostInput) (*huma.StreamResponse, error)) {
		huma.Register(api, operation(route{id, http.MethodPost, path, summary}), fn)
	}
	postID := func(id, path, summary string, fn func(context.Context, *IDInput) (*huma.StreamResponse, error)) {
		huma.Register(api, operation(route{id, http.MethodPost, path, summary}), fn)
	}

	get("viewer-state", "/api/v1/viewer/state", "Render the whole viewer", h.State)
	get("viewer-events", "/api/v1/viewer/events", "Stream changes made elsewhere", h.Events)

	postID("viewer-select", "/api/v1/viewer/select/{id}", "Toggle the selection from the list", h.Select)
	postID("viewer-locate", "/api/v1/viewer/locate/{id}", "Show a sheet on the map", h.Locate)
	postID("viewer-click", "/api/v1/viewer/click/{id}", "A shape's own click", h.Click)
	postID("viewer-hover", "/api/v1/viewer/hover/{id}", "Pointer entered a shape", h.Hover)
	post("viewer-unhover", "/api/v1/viewer/unhover", "Pointer left the shapes", h.Unhover)
	post("viewer-deselect", "/api/v1/viewer/deselect", "Close the detail panel", h.Deselect)

	post("viewer-pointer-down", "/api/v1/viewer/pointer/down", "Press at px, py", h.PointerDown)
	post("viewer-pointer-move", "/api/v1/viewer/pointer/move", "Move to px, py", h.PointerMove)
	post("viewer-pointer-up", "/api/v1/viewer/pointer/up", "Release at px, py", h.PointerUp)
	post("viewer-pointer-leave", "/api/v1/viewer/pointer/leave", "Pointer left the map", h.PointerLeave)

	post("viewer-zoom-in", "/api/v1/viewer/zoom/in", "Zoom in", h.ZoomIn)
	post("viewer-zoom-out", "/api/v1/viewer/zoom/out", "Zoom out", h.ZoomOut)
	post("viewer-wheel", "/api/v1/viewer/wheel", "Wheel zoom around px, py by the sign of dz", h.Wheel)
	post("viewer-pan", "/api/v1/viewer/pan", "Pan by dx, dy arrow steps", h.Pan)
	post("viewer-reset", "/api/v1/viewer/reset", "Reset the view", h.Reset)
	post("viewer-resize", "/api/v1/viewer/resize", "Container is cw by ch", h.Resize)
	post("viewer-image-loaded", "/api/v1/viewer/image/loaded", "Image natural size is nw by nh", h.ImageLoaded)
	post("viewer-image-failed", "/api/v1/viewer/image/failed", "Image failed to load", h.ImageFailed)

	post("viewer-search", "/api/v1/viewer/search", "Filter the list by q, region and favonly", h.Search)
	postID("viewer-favorite", "/api/v1/viewer/favorite/{id}", "Toggle a favorite", h.Favorite)
	postID("viewer-download", "/api/v1/viewer/download/{id}", "Record a download", h.Download)
	post("viewer-mode", "/api/v1/viewer/mode", "Switch between map and list", h.Mode)
	post("viewer-background", "/api/v1/viewer/background", "Show or hide the image", h.Background)
	post("viewer-language", "/api/v1/viewer/language", "Switch the label language", h.Language)
	post("viewer-theme", "/api/v1/viewer/theme", "Switch the color theme", h.Theme)
}

func operation(r route) huma.Operation {
	return huma.Operation{
		OperationID: r.id,
		Method:      r.method,
		Path:        r.path,
		Summary:     r.summary,
		Tags:        []string{Tag},
	}
}
