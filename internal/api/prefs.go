package api

import (
	"context"
	"net/http"

	"github.com/danielgtaylor/huma/v2"

	"github.com/joeblew999/plat-topo/internal/service"
)

type PrefsOutput struct {
	Body service.Preferences
}

type FavoritesBody struct {
	Favorites []string `json:"favorites" doc:"Favorite sheet ids in the order they were added"`
	Changed   bool     `json:"changed" doc:"Whether the request changed the set"`
}

// RegisterPrefs registers visitor preference and favorite routes.
func (h *APIHandler) RegisterPrefs(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "get-prefs",
		Method:      http.MethodGet,
		Path:        "/api/v1/prefs",
		Summary:     "Get the visitor's preferences",
		Tags:        []string{"prefs"},
	}, h.GetPrefs)
	huma.Register(api, huma.Operation{
		OperationID: "update-prefs",
		Method:      http.MethodPatch,
		Path:        "/api/v1/prefs",
		Summary:     "Update some of the visitor's preferences",
		Tags:        []string{"prefs"},
	}, h.UpdatePrefs)
	huma.Register(api, huma.Operation{
		OperationID: "list-favorites",
		Method:      http.MethodGet,
		Path:        "/api/v1/favorites",
		Summary:     "List the visitor's favorites",
		Tags:        []string{"prefs"},
	}, h.ListFavorites)
	huma.Register(api, huma.Operation{
		OperationID: "add-favorite",
		Method:      http.MethodPut,
		Path:        "/api/v1/favorites/{id}",
		Summary:     "Mark a sheet as favorite",
		Tags:        []string{"prefs"},
	}, h.PutFavorite)
	huma.Register(api, huma.Operation{
		OperationID: "remove-favorite",
		Method:      http.MethodDelete,
		Path:        "/api/v1/favorites/{id}",
		Summary:     "Remove a sheet from the favorites",
		Tags:        []string{"prefs"},
	}, h.DeleteFavorite)
}

func (h *APIHandler) GetPrefs(ctx context.Context, input *VisitorInput) (*PrefsOutput, error) {
	visitor, err := input.require()
	if err != nil {
		return nil, err
	}
	return &PrefsOutput{Body: h.svc.Prefs.Get(ctx, visitor)}, nil
}

func (h *APIHandler) UpdatePrefs(ctx context.Context, input *struct {
	VisitorInput
	Body service.PrefsPatch
}) (*PrefsOutput, error) {
	visitor, err := input.require()
	if err != nil {
		return nil, err
	}
	if err := h.svc.Prefs.Update(ctx, visitor, input.Body); err != nil {
		return nil, humaError(err)
	}
	return &PrefsOutput{Body: h.svc.Prefs.Get(ctx, visitor)}, nil
}

func (h *APIHandler) ListFavorites(ctx context.Context, input *VisitorInput) (*struct{ Body FavoritesBody }, error) {
	visitor, err := input.require()
	if err != nil {
		return nil, err
	}
	favs := h.svc.Prefs.Get(ctx, visitor).Favorites
	return &struct{ Body FavoritesBody }{Body: FavoritesBody{Favorites: favs}}, nil
}

func (h *APIHandler) PutFavorite(ctx context.Context, input *struct {
	IDInput
	VisitorInput
}) (*struct{ Body FavoritesBody }, error) {
	return h.setFavorite(ctx, input.VisitorInput, input.ID, true)
}

func (h *APIHandler) DeleteFavorite(ctx context.Context, input *struct {
	IDInput
	VisitorInput
}) (*struct{ Body FavoritesBody }, error) {
	return h.setFavorite(ctx, input.VisitorInput, input.ID, false)
}

func (h *APIHandler) setFavorite(ctx context.Context, in VisitorInput, id string, on bool) (*struct{ Body FavoritesBody }, error) {
	visitor, err := in.require()
	if err != nil {
		return nil, err
	}
	changed, err := h.svc.Prefs.SetFavorite(ctx, visitor, id, on)
	if err != nil {
		return nil, humaError(err)
	}
	favs := h.svc.Prefs.Get(ctx, visitor).Favorites
	return &struct{ Body FavoritesBody }{Body: FavoritesBody{Favorites: favs, Changed: changed}}, nil
}
