package api

import (
	"context"

	"github.com/danielgtaylor/huma/v2"
)

type InfoHandler struct {
	dataDir string
	dbOK    bool
	svc     *Services
	store   string
}

func NewInfoHandler(dataDir string, dbOK bool, svc *Services, storeBackend string) *InfoHandler {
	return &InfoHandler{dataDir: dataDir, dbOK: dbOK, svc: svc, store: storeBackend}
}

func (h *InfoHandler) RegisterRoutes(api huma.API) {
	huma.Get(api, "/api/v1/info", h.GetInfo, huma.OperationTags("health"))
}

type InfoBody struct {
	Name     string   `json:"name" doc:"Service name"`
	Version  string   `json:"version" doc:"Service version"`
	DataDir  string   `json:"data_dir" doc:"Data directory path"`
	DB       bool     `json:"db" doc:"Whether database is available"`
	Store    string   `json:"store" doc:"Preferences backend" enum:"file,redis,memory"`
	Sheets   int      `json:"sheets" doc:"Sheets in the catalog"`
	Sessions int      `json:"sessions" doc:"Live viewer sessions"`
	ImageURL string   `json:"image_url" doc:"Reference index image"`
	Features []string `json:"features" doc:"Available features"`
}

func (h *InfoHandler) GetInfo(ctx context.Context, input *struct{}) (*struct{ Body InfoBody }, error) {
	features := []string{"viewer", "search", "favorites", "geojson", "metrics"}
	if h.dbOK {
		features = append(features, "duckdb")
	}
	body := InfoBody{
		Name:     "plat-topo",
		Version:  Version,
		DataDir:  h.dataDir,
		DB:       h.dbOK,
		Store:    h.store,
		Features: features,
	}
	if h.svc != nil && h.svc.Sessions != nil {
		cat := h.svc.Catalog()
		body.Sheets = cat.Len()
		body.Sessions = h.svc.Sessions.Len()
		body.ImageURL = cat.Image().URL
	}
	return &struct{ Body InfoBody }{Body: body}, nil
}
