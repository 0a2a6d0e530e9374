package api

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/danielgtaylor/huma/v2"
	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/hittest"
	"github.com/joeblew999/plat-topo/internal/mapview"
	"github.com/joeblew999/plat-topo/internal/service"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

// ViewportBody is the view produced for a sheet in a container.
type ViewportBody struct {
	State      viewport.State `json:"state" doc:"Pan, scale and selected id"`
	Transform  string         `json:"transform" doc:"CSS transform of the image layer" example:"translate(-120px, 40px) scale(2.5)"`
	LayerStyle string         `json:"layerStyle" doc:"Full CSS of the image layer"`
	FitScale   float64        `json:"fitScale" doc:"Scale that fits the image in the container"`
	Natural    viewport.Size  `json:"natural" doc:"Natural image size used"`
	Container  viewport.Size  `json:"container" doc:"Container size used"`
}

type LocateInput struct {
	IDInput
	NaturalW   float64 `query:"nw" minimum:"0" doc:"Natural image width; defaults to the catalog's size hint"`
	NaturalH   float64 `query:"nh" minimum:"0" doc:"Natural image height; defaults to the catalog's size hint"`
	ContainerW float64 `query:"cw" minimum:"1" default:"1280" doc:"Container width in pixels"`
	ContainerH float64 `query:"ch" minimum:"1" default:"800" doc:"Container height in pixels"`
}

type HitTestInput struct {
	X float64 `query:"x" required:"true" doc:"X in index-image pixels"`
	Y float64 `query:"y" required:"true" doc:"Y in index-image pixels"`
}

// RegisterViewport registers the stateless viewport routes.
func (h *APIHandler) RegisterViewport(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "locate-sheet",
		Method:      http.MethodGet,
		Path:        "/api/v1/viewport/locate/{id}",
		Summary:     "Viewport after fitting the image and selecting a sheet",
		Tags:        []string{"viewport"},
	}, h.Locate)
	huma.Register(api, huma.Operation{
		OperationID: "hit-test",
		Method:      http.MethodGet,
		Path:        "/api/v1/hittest",
		Summary:     "Sheet under a point of the index image",
		Tags:        []string{"viewport"},
	}, h.HitTest)
}

func (h *APIHandler) Locate(ctx context.Context, input *LocateInput) (*struct{ Body ViewportBody }, error) {
	cat := h.svc.Catalog()
	natural := viewport.Size{W: input.NaturalW, H: input.NaturalH}
	if !natural.Known() {
		img := cat.Image()
		if !img.HasSize() {
			return nil, huma.Error422UnprocessableEntity("nw and nh are required: the catalog has no image size")
		}
		natural = viewport.Size{W: float64(img.Width), H: float64(img.Height)}
	}
	body, err := Locate(cat, h.svc.Viewport, input.ID, natural,
		viewport.Size{W: input.ContainerW, H: input.ContainerH})
	if err != nil {
		return nil, humaError(err)
	}
	return &struct{ Body ViewportBody }{Body: body}, nil
}

// Locate runs the same sequence as the viewer: load the image, fit it into
// the container, then select id.
func Locate(cat *catalog.Catalog, cfg viewport.Config, id string, natural, container viewport.Size) (ViewportBody, error) {
	v := mapview.New(cat, cfg)
	v.Resize(container)
	v.ImageLoaded(natural)
	if !v.Select(id, mapview.SourceAPI) {
		return ViewportBody{}, fmt.Errorf("%w: %q", service.ErrUnknownRegion, id)
	}
	snap := v.Snapshot()
	return ViewportBody{
		State:      snap.State,
		Transform:  snap.Transform,
		LayerStyle: snap.LayerStyle,
		FitScale:   snap.FitScale,
		Natural:    snap.Natural,
		Container:  snap.Container,
	}, nil
}

func (h *APIHandler) HitTest(ctx context.Context, input *HitTestInput) (*SheetOutput, error) {
	cat := h.svc.Catalog()
	r, ok := h.hit.index(cat).At(orb.Point{input.X, input.Y})
	if !ok {
		return nil, huma.Error404NotFound("no sheet at this point")
	}
	return &SheetOutput{Body: sheetBody(r, false)}, nil
}

// hitCache keeps one index per catalog so hit tests do not rebuild it.
type hitCache struct {
	mu  sync.Mutex
	cat *catalog.Catalog
	idx *hittest.Index
}

func (c *hitCache) index(cat *catalog.Catalog) *hittest.Index {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cat != cat {
		c.cat, c.idx = cat, hittest.NewIndex(cat.All())
	}
	return c.idx
}
