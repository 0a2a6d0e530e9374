// Package api defines the Huma API routes and handlers.
package api

import (
	"context"
	"errors"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// Version is reported by /health and /api/v1/info.
const Version = "0.1.0"

// Services holds the service dependencies for API handlers.
type Services struct {
	Sessions *service.SessionManager
	Prefs    *service.PrefsService
	Viewport viewport.Config
}

// Catalog returns the catalog currently served.
func (s *Services) Catalog() *catalog.Catalog {
	return s.Sessions.Catalog()
}

// Types

type IDInput struct {
	ID string `path:"id" doc:"Sheet ID" example:"47"`
}

// VisitorInput identifies the visitor whose preferences are read or written.
// Browsers send the session cookie; scripts can use the header.
type VisitorInput struct {
	Cookie string `cookie:"topo_session" doc:"Viewer session cookie"`
	Header string `header:"X-Topo-Visitor" doc:"Visitor id for non-browser clients"`
}

// Visitor returns the visitor key, or "" when none was sent.
func (v VisitorInput) Visitor() string {
	if v.Header != "" {
		return v.Header
	}
	return v.Cookie
}

func (v VisitorInput) require() (string, error) {
	key := v.Visitor()
	if key == "" {
		return "", huma.Error400BadRequest("visitor required: send the topo_session cookie or the X-Topo-Visitor header")
	}
	return key, nil
}

type MessageBody struct {
	Message string `json:"message" doc:"Result message"`
}

type HealthBody struct {
	Status  string `json:"status" doc:"Health status" example:"ok"`
	Version string `json:"version" doc:"API version" example:"0.1.0"`
	Sheets  int    `json:"sheets" doc:"Number of sheets in the catalog"`
}

// APIHandler holds all REST API handlers.
type APIHandler struct {
	svc *Services
	hit hitCache
}

func NewAPIHandler(svc *Services) *APIHandler {
	return &APIHandler{svc: svc}
}

// RegisterRoutes registers every REST route with Huma.
func RegisterRoutes(api huma.API, svc *Services) *APIHandler {
	h := NewAPIHandler(svc)
	h.RegisterHealth(api)
	h.RegisterSheets(api)
	h.RegisterPrefs(api)
	h.RegisterViewport(api)
	return h
}

// RegisterHealth registers health check routes.
func (h *APIHandler) RegisterHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      "GET",
		Path:        "/health",
		Summary:     "Health check",
		Tags:        []string{"health"},
	}, h.GetHealth)
}

// Handlers

func (h *APIHandler) GetHealth(ctx context.Context, input *struct{}) (*struct{ Body HealthBody }, error) {
	n := 0
	if h.svc != nil && h.svc.Sessions != nil {
		n = h.svc.Catalog().Len()
	}
	return &struct{ Body HealthBody }{Body: HealthBody{Status: "ok", Version: Version, Sheets: n}}, nil
}

// humaError maps service errors to HTTP errors.
func humaError(err error) error {
	switch {
	case errors.Is(err, service.ErrUnknownRegion):
		return huma.Error404NotFound(err.Error())
	case errors.Is(err, service.ErrInvalidPreference):
		return huma.Error422UnprocessableEntity(err.Error())
	default:
		return huma.Error500InternalServerError("request failed", err)
	}
}
