package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"

	"github.com/danielgtaylor/huma/v2/humatest"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/store"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

const visitor = "X-Topo-Visitor: visitor-1"

func newTestAPI(t *testing.T) (humatest.TestAPI, *Services) {
	t.Helper()
	cat, err := catalog.Default()
	if err != nil {
		t.Fatal(err)
	}
	known := func(id string) bool { _, ok := cat.Get(id); return ok }
	svc := &Services{
		Sessions: service.NewSessionManager(cat, viewport.DefaultConfig()),
		Prefs:    service.NewPrefsService(store.NewMemoryStore(), known),
		Viewport: viewport.DefaultConfig(),
	}
	_, api := humatest.New(t)
	RegisterRoutes(api, svc)
	NewInfoHandler(t.TempDir(), false, svc, "memory").RegisterRoutes(api)
	return api, svc
}

func decode[T any](t *testing.T, body string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(body), &v); err != nil {
		t.Fatalf("decode %s: %v", body, err)
	}
	return v
}

func TestHealth(t *testing.T) {
	api, svc := newTestAPI(t)
	resp := api.Get("/health")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	body := decode[HealthBody](t, resp.Body.String())
	if body.Status != "ok" || body.Sheets != svc.Catalog().Len() {
		t.Errorf("health = %+v", body)
	}
}

func TestListSheetsFiltersAndPages(t *testing.T) {
	api, svc := newTestAPI(t)

	all := decode[humastar.PageBody[SheetBody]](t, api.Get("/api/v1/sheets?limit=500").Body.String())
	if all.Total != svc.Catalog().Len() || len(all.Data) != all.Total {
		t.Errorf("all = %d of %d", len(all.Data), all.Total)
	}

	page := decode[humastar.PageBody[SheetBody]](t, api.Get("/api/v1/sheets?offset=2&limit=3").Body.String())
	if len(page.Data) != 3 || page.Data[0].ID != all.Data[2].ID {
		t.Errorf("page = %+v", page)
	}

	found := decode[humastar.PageBody[SheetBody]](t, api.Get("/api/v1/sheets?q=tanger").Body.String())
	if found.Total != 1 || found.Data[0].ID != "1" {
		t.Errorf("q=tanger = %+v", found)
	}

	byNumber := decode[humastar.PageBody[SheetBody]](t, api.Get("/api/v1/sheets?q=2").Body.String())
	for _, s := range byNumber.Data {
		if !strings.Contains(s.ID, "2") && !strings.Contains(strings.ToLower(s.Name), "2") && !strings.Contains(s.LocalizedName, "2") {
			t.Errorf("q=2 matched %+v", s)
		}
	}
}

func TestListSheetsPaginationLinks(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/sheets?offset=0&limit=5")
	body := decode[humastar.PageBody[SheetBody]](t, resp.Body.String())
	if body.Limit != 5 || len(body.Data) != 5 {
		t.Errorf("page = %d items, limit %d", len(body.Data), body.Limit)
	}
}

func TestGetSheet(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Get("/api/v1/sheets/1")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	s := decode[SheetBody](t, resp.Body.String())
	if s.Name != "Tanger" || s.Shape != catalog.KindRect || len(s.Coords) != 4 {
		t.Errorf("sheet = %+v", s)
	}
	if s.Title != "1 : Tanger" {
		t.Errorf("title = %q", s.Title)
	}

	if resp := api.Get("/api/v1/sheets/9999"); resp.Code != http.StatusNotFound {
		t.Errorf("unknown sheet = %d", resp.Code)
	}
}

func TestFavorites(t *testing.T) {
	api, _ := newTestAPI(t)

	if resp := api.Put("/api/v1/favorites/1"); resp.Code != http.StatusBadRequest {
		t.Errorf("no visitor = %d", resp.Code)
	}

	resp := api.Put("/api/v1/favorites/1", visitor)
	fav := decode[FavoritesBody](t, resp.Body.String())
	if !fav.Changed || len(fav.Favorites) != 1 {
		t.Errorf("put = %+v", fav)
	}
	fav = decode[FavoritesBody](t, api.Put("/api/v1/favorites/1", visitor).Body.String())
	if fav.Changed {
		t.Error("second put changed the set")
	}

	if resp := api.Put("/api/v1/favorites/9999", visitor); resp.Code != http.StatusNotFound {
		t.Errorf("unknown favorite = %d", resp.Code)
	}

	only := decode[humastar.PageBody[SheetBody]](t, api.Get("/api/v1/sheets?favorites=true", visitor).Body.String())
	if only.Total != 1 || !only.Data[0].Favorite {
		t.Errorf("favorites filter = %+v", only)
	}
	if resp := api.Get("/api/v1/sheets?favorites=true"); resp.Code != http.StatusBadRequest {
		t.Errorf("favorites without visitor = %d", resp.Code)
	}

	fav = decode[FavoritesBody](t, api.Delete("/api/v1/favorites/1", visitor).Body.String())
	if !fav.Changed || len(fav.Favorites) != 0 {
		t.Errorf("delete = %+v", fav)
	}
}

func TestSheetActionLinks(t *testing.T) {
	api, _ := newTestAPI(t)
	api.Put("/api/v1/favorites/1", visitor)

	actions := SheetBody{ID: "1", Favorite: true}.Actions()
	if actions[0].Rel != "unfavorite" {
		t.Errorf("favorite sheet offers %q", actions[0].Rel)
	}
	if actions := (SheetBody{ID: "1"}).Actions(); actions[0].Rel != "favorite" || actions[0].Method != http.MethodPut {
		t.Errorf("plain sheet offers %+v", actions[0])
	}
}

func TestPrefs(t *testing.T) {
	api, _ := newTestAPI(t)

	p := decode[service.Preferences](t, api.Get("/api/v1/prefs", visitor).Body.String())
	if p.ViewMode != service.ViewList || !p.ShowBackground || p.Language != service.LangFrench {
		t.Errorf("defaults = %+v", p)
	}

	resp := api.Patch("/api/v1/prefs", visitor, map[string]any{"viewMode": "map", "theme": "dark"})
	if resp.Code != http.StatusOK {
		t.Fatalf("patch = %d: %s", resp.Code, resp.Body.String())
	}
	p = decode[service.Preferences](t, resp.Body.String())
	if p.ViewMode != service.ViewMap || p.Theme != service.ThemeDark || !p.ShowBackground {
		t.Errorf("patched = %+v", p)
	}

	if resp := api.Patch("/api/v1/prefs", visitor, map[string]any{"viewMode": "globe"}); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("invalid mode = %d", resp.Code)
	}
}

func TestDownloadSheet(t *testing.T) {
	api, _ := newTestAPI(t)
	resp := api.Post("/api/v1/sheets/1/download", visitor)
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	d := decode[DownloadBody](t, resp.Body.String())
	if d.Count != 1 || !strings.HasPrefix(d.URL, "https://") {
		t.Errorf("download = %+v", d)
	}
	d = decode[DownloadBody](t, api.Post("/api/v1/sheets/1/download", visitor).Body.String())
	if d.Count != 2 {
		t.Errorf("second count = %d", d.Count)
	}
}

func TestExportGeoJSON(t *testing.T) {
	api, svc := newTestAPI(t)
	resp := api.Get("/api/v1/sheets.geojson")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); !strings.HasPrefix(ct, "application/geo+json") {
		t.Errorf("content type = %q", ct)
	}
	fc := decode[struct {
		Type     string `json:"type"`
		Features []struct {
			ID any `json:"id"`
		} `json:"features"`
	}](t, resp.Body.String())
	if fc.Type != "FeatureCollection" || len(fc.Features) != svc.Catalog().Len() {
		t.Errorf("collection = %s with %d features", fc.Type, len(fc.Features))
	}
}

func TestListRegions(t *testing.T) {
	api, svc := newTestAPI(t)
	regions := decode[[]RegionCount](t, api.Get("/api/v1/regions").Body.String())
	total := 0
	for _, r := range regions {
		total += r.Sheets
	}
	if len(regions) == 0 || total > svc.Catalog().Len() {
		t.Errorf("regions = %+v", regions)
	}
}

func TestLocate(t *testing.T) {
	api, _ := newTestAPI(t)

	if resp := api.Get("/api/v1/viewport/locate/1"); resp.Code != http.StatusUnprocessableEntity {
		t.Errorf("without image size = %d", resp.Code)
	}

	resp := api.Get("/api/v1/viewport/locate/1?nw=2000&nh=1000&cw=1000&ch=500")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.Code, resp.Body.String())
	}
	v := decode[ViewportBody](t, resp.Body.String())
	if v.State.SelectedID != "1" || v.State.Scale != viewport.DefaultConfig().FocusScale {
		t.Errorf("state = %+v", v.State)
	}
	if v.FitScale != 0.475 {
		t.Errorf("fit = %v", v.FitScale)
	}
	if !strings.Contains(v.LayerStyle, "width:2000px") || !strings.Contains(v.Transform, "scale(2.5)") {
		t.Errorf("style = %q, transform = %q", v.LayerStyle, v.Transform)
	}

	if resp := api.Get("/api/v1/viewport/locate/9999?nw=2000&nh=1000"); resp.Code != http.StatusNotFound {
		t.Errorf("unknown sheet = %d", resp.Code)
	}
}

func TestHitTest(t *testing.T) {
	api, _ := newTestAPI(t)

	resp := api.Get("/api/v1/hittest?x=400&y=20")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d", resp.Code)
	}
	if s := decode[SheetBody](t, resp.Body.String()); s.ID != "1" {
		t.Errorf("hit = %q", s.ID)
	}
	if resp := api.Get("/api/v1/hittest?x=-5&y=-5"); resp.Code != http.StatusNotFound {
		t.Errorf("miss = %d", resp.Code)
	}
}

func TestInfo(t *testing.T) {
	api, svc := newTestAPI(t)
	info := decode[InfoBody](t, api.Get("/api/v1/info").Body.String())
	if info.Name != "plat-topo" || info.Sheets != svc.Catalog().Len() || info.DB {
		t.Errorf("info = %+v", info)
	}
}
