package viewer

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/templates"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// post parses an action request and runs fn as a turn.
func (h *Handler) post(ctx context.Context, in *PostInput, fn func(t *turn)) (*huma.StreamResponse, error) {
	if err := requireSession(in.Session); err != nil {
		return nil, err
	}
	sig, err := in.signals()
	if err != nil {
		return nil, err
	}
	return h.act(ctx, in.Session, sig, fn), nil
}

// State renders the whole viewer. The page calls it from data-init.
func (h *Handler) State(ctx context.Context, in *GetInput) (*huma.StreamResponse, error) {
	if err := requireSession(in.Session); err != nil {
		return nil, err
	}
	sig, err := in.signals()
	if err != nil {
		return nil, err
	}
	return h.act(ctx, in.Session, sig, func(t *turn) { t.redraw(partAll) }), nil
}

// ---------------------------------------------------------------------------
// Selection
// ---------------------------------------------------------------------------

// Select toggles the selection from a list row: a second click on the
// selected row clears it.
func (h *Handler) Select(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if t.view.Snapshot().State.SelectedID == in.ID {
			t.view.Deselect(mapview.SourceList)
		} else if !t.view.Select(in.ID, mapview.SourceList) {
			t.fail(templates.Translate(t.prefs.Language, "unknown") + " : " + in.ID)
			return
		}
		t.redraw(partViewport | partDetail)
	})
}

// Locate switches to the map and centers on a sheet. It never clears the
// selection.
func (h *Handler) Locate(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if t.view.Snapshot().State.SelectedID != in.ID && !t.view.Select(in.ID, mapview.SourceSearch) {
			t.fail(templates.Translate(t.prefs.Language, "unknown") + " : " + in.ID)
			return
		}
		if t.prefs.ViewMode != service.ViewMap {
			if err := h.prefs.SetViewMode(t.ctx, t.id, service.ViewMap); err != nil {
				h.log.Error(t.ctx, "switch to map", logging.Err(err))
			}
		}
		t.redraw(partViewport | partDetail | partPrefs)
	})
}

// Click is a shape's own click or keyboard activation.
func (h *Handler) Click(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if t.view.ClickRegion(in.ID) {
			t.redraw(partViewport | partDetail)
		}
	})
}

func (h *Handler) Hover(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if t.view.Hover(in.ID) {
			t.redraw(partViewport)
		}
	})
}

func (h *Handler) Unhover(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		if t.view.Hover("") {
			t.redraw(partViewport)
		}
	})
}

func (h *Handler) Deselect(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		t.view.Deselect(mapview.SourceList)
		t.redraw(partViewport | partDetail)
	})
}

// ---------------------------------------------------------------------------
// Pointer
// ---------------------------------------------------------------------------

// pointer reads the container-relative pointer position.
func pointer(sig humastar.Signals) (orb.Point, bool) {
	x, y, ok := sig.Point("px", "py")
	return orb.Point{x, y}, ok
}

func (h *Handler) PointerDown(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		if p, ok := pointer(t.sig); ok {
			t.view.PointerDown(p)
		}
	})
}

func (h *Handler) PointerMove(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		if p, ok := pointer(t.sig); ok && t.view.PointerMove(p) {
			t.redraw(partViewport)
		}
	})
}

// PointerUp ends a press. A click selects whatever the hit test finds under
// the pointer; a drag only ends the pan.
func (h *Handler) PointerUp(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		p, ok := pointer(t.sig)
		if !ok {
			t.view.PointerLeave()
			return
		}
		if t.view.PointerUp(p) && t.view.ClickAt(p) {
			t.redraw(partViewport | partDetail)
		}
	})
}

func (h *Handler) PointerLeave(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) { t.view.PointerLeave() })
}

// ---------------------------------------------------------------------------
// Navigation
// ---------------------------------------------------------------------------

func (h *Handler) ZoomIn(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.zoom(ctx, in, 1)
}

func (h *Handler) ZoomOut(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.zoom(ctx, in, -1)
}

func (h *Handler) zoom(ctx context.Context, in *PostInput, sign float64) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		t.view.ZoomBy(sign * buttonStep * t.view.Snapshot().State.Scale)
		t.redraw(partViewport)
	})
}

// Wheel zooms around the pointer. Only the sign of dz is used, so trackpads
// and notched wheels zoom at the same rate.
func (h *Handler) Wheel(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		dz := t.sig.Float("dz")
		p, ok := pointer(t.sig)
		if dz == 0 || !ok {
			return
		}
		step := wheelStep * t.view.Snapshot().State.Scale
		if dz < 0 {
			step = -step
		}
		t.view.ZoomAt(step, p)
		t.redraw(partViewport)
	})
}

// Pan moves by dx, dy arrow-key steps.
func (h *Handler) Pan(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		dx, dy := t.sig.Float("dx"), t.sig.Float("dy")
		if dx == 0 && dy == 0 {
			return
		}
		t.view.PanBy(dx*panStep, dy*panStep)
		t.redraw(partViewport)
	})
}

func (h *Handler) Reset(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		t.view.Reset()
		t.redraw(partViewport | partDetail)
	})
}

// Resize reports the map container size cw by ch.
func (h *Handler) Resize(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		cw, ch, ok := t.sig.Point("cw", "ch")
		if !ok {
			return
		}
		t.view.Resize(viewport.Size{W: cw, H: ch})
		t.redraw(partViewport)
	})
}

// ImageLoaded reports the reference image's natural size nw by nh. The
// overlay is drawn from then on.
func (h *Handler) ImageLoaded(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		nw, nh, ok := t.sig.Point("nw", "nh")
		if !ok {
			t.fail("nw and nh are required")
			return
		}
		if t.view.ImageLoaded(viewport.Size{W: nw, H: nh}) {
			h.metrics.ImageLoad(true)
			t.redraw(partViewport | partOverlay)
		}
	})
}

func (h *Handler) ImageFailed(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		if t.view.Snapshot().Failed {
			return
		}
		t.view.ImageFailed(t.ctx, errors.New("image failed to load in the browser"))
		h.metrics.ImageLoad(false)
		t.fail(templates.Translate(t.prefs.Language, "image.failed"))
		t.redraw(partViewport)
	})
}

// ---------------------------------------------------------------------------
// List
// ---------------------------------------------------------------------------

// Search applies q, region and favonly to the session's list.
func (h *Handler) Search(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		t.filter.Query = t.sig.String("q")
		t.filter.Region = t.sig.String("region")
		t.filter.FavoritesOnly = t.sig.Bool("favonly")
		t.redraw(partList)
	})
}

func (h *Handler) Favorite(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if _, err := h.prefs.ToggleFavorite(t.ctx, t.id, in.ID); err != nil {
			t.fail(err.Error())
			return
		}
		t.redraw(partList | partDetail)
	})
}

// Download counts a download. The link itself opens in the browser.
func (h *Handler) Download(ctx context.Context, in *IDInput) (*huma.StreamResponse, error) {
	return h.post(ctx, &in.PostInput, func(t *turn) {
		if _, err := h.prefs.RecordDownload(t.ctx, t.id, in.ID); err != nil {
			t.fail(err.Error())
			return
		}
		t.redraw(partDetail)
	})
}

// ---------------------------------------------------------------------------
// Preferences
// ---------------------------------------------------------------------------

// Mode switches between the map and the list to the value of $mode.
func (h *Handler) Mode(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		h.setPref(t, h.prefs.SetViewMode(t.ctx, t.id, t.sig.String("mode")))
	})
}

func (h *Handler) Background(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		h.setPref(t, h.prefs.SetShowBackground(t.ctx, t.id, t.sig.Bool("bg")))
	})
}

func (h *Handler) Theme(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		h.setPref(t, h.prefs.SetTheme(t.ctx, t.id, t.sig.String("theme")))
	})
}

// Language reloads the page, whose static labels and direction are rendered
// in the visitor's language.
func (h *Handler) Language(ctx context.Context, in *PostInput) (*huma.StreamResponse, error) {
	return h.post(ctx, in, func(t *turn) {
		err := h.prefs.SetLanguage(t.ctx, t.id, t.sig.String("lang"))
		h.setPref(t, err)
		t.reload = err == nil
	})
}

func (h *Handler) setPref(t *turn, err error) {
	if err != nil {
		t.fail(err.Error())
	}
	t.redraw(partPrefs)
}
