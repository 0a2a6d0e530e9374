package viewer

import (
	"context"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/service"
)

// Events keeps an SSE stream open and re-renders the session when its
// selection or favorites change through another tab or the REST API.
func (h *Handler) Events(ctx context.Context, in *GetInput) (*huma.StreamResponse, error) {
	if err := requireSession(in.Session); err != nil {
		return nil, err
	}
	if h.bus == nil {
		return nil, huma.Error503ServiceUnavailable("change events are disabled")
	}
	sig, err := in.signals()
	if err != nil {
		return nil, err
	}

	return &huma.StreamResponse{
		Body: func(humaCtx huma.Context) {
			sse := humastar.NewSSE(humaCtx)
			ctx := humaCtx.Context()

			ch := h.bus.Subscribe()
			defer h.bus.Unsubscribe(ch)
			h.log.Debug(ctx, "viewer events subscribed", logging.Session(in.Session))

			for {
				select {
				case <-ctx.Done():
					return
				case evt, ok := <-ch:
					if !ok {
						return
					}
					if !evt.For(in.Session) {
						continue
					}
					p := partsFor(evt)
					if p == 0 {
						continue
					}
					h.apply(ctx, sse, in.Session, sig, func(t *turn) { t.redraw(p) })
				}
			}
		},
	}, nil
}

// partsFor maps a change event to the parts it affects.
func partsFor(evt service.Event) part {
	switch evt.Resource {
	case "selection":
		return partViewport | partDetail
	case "favorites":
		return partList | partDetail
	case "prefs":
		return partPrefs | partList
	}
	return 0
}
