package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb/geojson"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/humastar"
	"github.com/joeblew999/plat-topo/internal/search"
)

// SheetBody is the JSON form of a map sheet.
type SheetBody struct {
	ID            string     `json:"id" doc:"Sheet number" example:"47"`
	Name          string     `json:"name,omitempty" doc:"Name in Latin script" example:"Rabat"`
	LocalizedName string     `json:"localizedName,omitempty" doc:"Name in Arabic script"`
	Title         string     `json:"title" doc:"Tooltip label" example:"47 : Rabat"`
	Shape         string     `json:"shape" enum:"rect,poly" doc:"Shape kind"`
	Coords        []float64  `json:"coords" doc:"Flat coordinate list in index-image pixels"`
	Centroid      [2]float64 `json:"centroid" doc:"Shape centroid in index-image pixels"`
	DownloadURL   string     `json:"downloadUrl,omitempty" doc:"Where the sheet can be downloaded"`
	Region        string     `json:"region,omitempty" doc:"Administrative region"`
	Province      string     `json:"province,omitempty" doc:"Province"`
	Favorite      bool       `json:"favorite" doc:"Whether the visitor marked the sheet as favorite"`
}

var (
	addFavorite    = humastar.ActionDef{Rel: "favorite", Pattern: "/api/v1/favorites/%s", Method: http.MethodPut, Title: "Add to favorites"}
	removeFavorite = humastar.ActionDef{Rel: "unfavorite", Pattern: "/api/v1/favorites/%s", Method: http.MethodDelete, Title: "Remove from favorites"}
	downloadSheet  = humastar.ActionDef{Rel: "download", Pattern: "/api/v1/sheets/%s/download", Method: http.MethodPost, Title: "Record a download"}
	locateSheet    = humastar.ActionDef{Rel: "locate", Pattern: "/api/v1/viewport/locate/%s", Method: http.MethodGet, Title: "Viewport centered on the sheet"}
)

// SheetRelations ties the resources that take a sheet id back to the sheet.
var SheetRelations = []humastar.Relation{
	{From: "/api/v1/viewport/locate/{id}", To: "/api/v1/sheets/{id}", Rel: "about"},
	{From: "/api/v1/favorites/{id}", To: "/api/v1/sheets/{id}", Rel: "about"},
	{From: "/api/v1/sheets/{id}", To: "/api/v1/regions", Rel: "related"},
	{From: "/api/v1/hittest", To: "/api/v1/sheets/{id}", Rel: "item"},
}

// Actions implements humastar.Actor: the favorite action depends on state.
func (b SheetBody) Actions() []humastar.Action {
	fav := addFavorite
	if b.Favorite {
		fav = removeFavorite
	}
	return humastar.ActionsFor(b.ID, fav, downloadSheet, locateSheet)
}

func sheetBody(r catalog.Region, favorite bool) SheetBody {
	c := r.Shape.Centroid()
	return SheetBody{
		ID:            r.ID,
		Name:          r.Name,
		LocalizedName: r.LocalizedName,
		Title:         r.Title(),
		Shape:         r.Shape.Kind(),
		Coords:        r.Shape.Coordinates(),
		Centroid:      [2]float64{c[0], c[1]},
		DownloadURL:   r.DownloadURL,
		Region:        r.Region,
		Province:      r.Province,
		Favorite:      favorite,
	}
}

type ListSheetsInput struct {
	VisitorInput
	Q         string `query:"q" doc:"Case-insensitive substring of the name, localized name or id"`
	Region    string `query:"region" doc:"Exact administrative region"`
	Favorites bool   `query:"favorites" doc:"Only the visitor's favorites"`
	Offset    int    `query:"offset" minimum:"0" default:"0" doc:"Items to skip"`
	Limit     int    `query:"limit" minimum:"1" maximum:"500" default:"50" doc:"Page size"`
}

type SheetsOutput struct {
	Body humastar.PageBody[SheetBody]
}

type SheetOutput struct {
	Body SheetBody
}

type RegionCount struct {
	Name   string `json:"name" doc:"Administrative region"`
	Sheets int    `json:"sheets" doc:"Number of sheets in the region"`
}

type DownloadBody struct {
	ID    string `json:"id" doc:"Sheet ID"`
	URL   string `json:"url" doc:"Download URL to open"`
	Count int    `json:"count" doc:"Downloads of this sheet by the visitor"`
}

// RegisterSheets registers the catalog routes.
func (h *APIHandler) RegisterSheets(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "list-sheets",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets",
		Summary:     "List and search map sheets",
		Tags:        []string{"sheets"},
	}, h.ListSheets)
	huma.Register(api, huma.Operation{
		OperationID: "get-sheet",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets/{id}",
		Summary:     "Get a map sheet",
		Tags:        []string{"sheets"},
	}, h.GetSheet)
	huma.Register(api, huma.Operation{
		OperationID: "download-sheet",
		Method:      http.MethodPost,
		Path:        "/api/v1/sheets/{id}/download",
		Summary:     "Record a download and return the sheet URL",
		Tags:        []string{"sheets"},
	}, h.DownloadSheet)
	huma.Register(api, huma.Operation{
		OperationID: "export-sheets",
		Method:      http.MethodGet,
		Path:        "/api/v1/sheets.geojson",
		Summary:     "Catalog as GeoJSON in index-image pixels",
		Tags:        []string{"sheets"},
	}, h.ExportSheets)
	huma.Register(api, huma.Operation{
		OperationID: "list-regions",
		Method:      http.MethodGet,
		Path:        "/api/v1/regions",
		Summary:     "Administrative regions with sheet counts",
		Tags:        []string{"sheets"},
	}, h.ListRegions)
}

func (h *APIHandler) ListSheets(ctx context.Context, input *ListSheetsInput) (*SheetsOutput, error) {
	visitor := input.Visitor()
	if input.Favorites && visitor == "" {
		return nil, huma.Error400BadRequest("favorites filter needs a visitor")
	}
	isFav := func(string) bool { return false }
	if visitor != "" {
		prefs := h.svc.Prefs.Get(ctx, visitor)
		isFav = prefs.IsFavorite
	}

	regions := search.Filter(h.svc.Catalog().All(), input.Q, input.Region)
	if input.Favorites {
		regions = search.OnlyFavorites(regions, isFav)
	}
	items := make([]SheetBody, len(regions))
	for i, r := range regions {
		items[i] = sheetBody(r, isFav(r.ID))
	}
	return &SheetsOutput{Body: humastar.Paginate(items, input.Offset, input.Limit)}, nil
}

func (h *APIHandler) GetSheet(ctx context.Context, input *struct {
	IDInput
	VisitorInput
}) (*SheetOutput, error) {
	r, ok := h.svc.Catalog().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("sheet not found")
	}
	fav := false
	if v := input.Visitor(); v != "" {
		fav = h.svc.Prefs.IsFavorite(ctx, v, r.ID)
	}
	return &SheetOutput{Body: sheetBody(r, fav)}, nil
}

func (h *APIHandler) DownloadSheet(ctx context.Context, input *struct {
	IDInput
	VisitorInput
}) (*struct{ Body DownloadBody }, error) {
	visitor, err := input.require()
	if err != nil {
		return nil, err
	}
	r, ok := h.svc.Catalog().Get(input.ID)
	if !ok {
		return nil, huma.Error404NotFound("sheet not found")
	}
	if r.DownloadURL == "" {
		return nil, huma.Error409Conflict("sheet has no download link")
	}
	n, err := h.svc.Prefs.RecordDownload(ctx, visitor, r.ID)
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body DownloadBody }{Body: DownloadBody{ID: r.ID, URL: r.DownloadURL, Count: n}}, nil
}

func (h *APIHandler) ExportSheets(ctx context.Context, input *struct{}) (*struct {
	ContentType string `header:"Content-Type"`
	Body        *geojson.FeatureCollection
}, error) {
	return &struct {
		ContentType string `header:"Content-Type"`
		Body        *geojson.FeatureCollection
	}{ContentType: "application/geo+json", Body: h.svc.Catalog().FeatureCollection()}, nil
}

func (h *APIHandler) ListRegions(ctx context.Context, input *struct{}) (*struct{ Body []RegionCount }, error) {
	cat := h.svc.Catalog()
	counts := map[string]int{}
	for _, r := range cat.All() {
		counts[r.Region]++
	}
	names := cat.AdminRegions()
	out := make([]RegionCount, len(names))
	for i, name := range names {
		out[i] = RegionCount{Name: name, Sheets: counts[name]}
	}
	return &struct{ Body []RegionCount }{Body: out}, nil
}
