package viewer

import (
	"net/http"
	"time"

	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/templates"
)

// PagePath is where the viewer page is served.
const PagePath = "/viewer"

const cookieMaxAge = 365 * 24 * time.Hour

// Page is the data of the viewer page template.
type Page struct {
	humastar.PageData
	Lang     string
	Theme    string
	ImageURL string
	Total    int
	Regions  []humastar.SelectOptionData
}

// ServeHTTP renders the viewer page and issues the session cookie. On a
// first visit the label language follows Accept-Language.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, _ := logging.EnsureRequestID(r.Context())

	var cookie string
	if c, err := r.Cookie(CookieName); err == nil {
		cookie = c.Value
	}
	s, created := h.sessions.Ensure(cookie)
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.ID,
		Path:     "/",
		MaxAge:   int(cookieMaxAge.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	if cookie == "" && created {
		if lang := templates.MatchLanguage(r.Header.Get("Accept-Language")); lang != service.LangFrench {
			if err := h.prefs.SetLanguage(ctx, s.ID, lang); err != nil {
				h.log.Warn(ctx, "initial language", logging.Err(err))
			}
		}
	}

	prefs := h.prefs.Get(ctx, s.ID)
	snap, filter := s.Snapshot()
	cat := h.sessions.Catalog()

	page := Page{
		PageData: humastar.BuildPageData(h.api, Tag, prefs, map[string]any{
			"layerstyle": snap.LayerStyle,
			"selected":   snap.State.SelectedID,
			"hovered":    "",
			"ready":      snap.Ready,
			"failed":     snap.Failed,
			"scale":      100,
			"shown":      cat.Len(),
			"q":          filter.Query,
			"region":     filter.Region,
			"favonly":    filter.FavoritesOnly,
			"error":      "",
			"success":    "",
		}),
		Lang:     prefs.Language,
		Theme:    prefs.Theme,
		ImageURL: cat.Image().URL,
		Total:    cat.Len(),
	}
	for _, name := range cat.AdminRegions() {
		page.Regions = append(page.Regions, humastar.SelectOptionData{Value: name, Label: name, Selected: name == filter.Region})
	}

	html, err := h.Renderer.Render("viewer", page)
	if err != nil {
		h.log.Error(ctx, "render viewer page", logging.Err(err))
		http.Error(w, "viewer unavailable", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, _ = w.Write([]byte(html))
}
