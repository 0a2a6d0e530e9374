package mapview

import (
	"bytes"
	"context"
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/paulmach/orb"

	"github.com/joeblew999/plat-topo/internal/catalog"
	"github.com/joeblew999/plat-topo/internal/logging"
	"github.com/joeblew999/plat-topo/internal/viewport"
)

var (
	natural   = viewport.Size{W: 800, H: 750}
	container = viewport.Size{W: 1280, H: 640}
)

func testCatalog(t *testing.T, ids ...string) *catalog.Catalog {
	t.Helper()
	if len(ids) == 0 {
		ids = []string{"12", "47", "100"}
	}
	coords := map[string][4]float64{
		"12":  {100, 100, 140, 140},
		"47":  {352, 134, 374, 158},
		"100": {600, 600, 650, 660},
		"7":   {10, 10, 20, 20},
	}
	var regions []catalog.Region
	for _, id := range ids {
		c := coords[id]
		regions = append(regions, catalog.Region{
			ID:    id,
			Name:  "Sheet " + id,
			Shape: catalog.NewRect(c[0], c[1], c[2], c[3]),
		})
	}
	cat, err := catalog.New(catalog.Image{URL: "index.jpg"}, regions)
	if err != nil {
		t.Fatal(err)
	}
	return cat
}

func readyView(t *testing.T) *View {
	t.Helper()
	v := New(testCatalog(t), viewport.DefaultConfig())
	v.Resize(container)
	if !v.ImageLoaded(natural) {
		t.Fatal("image load rejected")
	}
	return v
}

func near(a, b orb.Point) bool {
	return math.Abs(a[0]-b[0]) < 1e-6 && math.Abs(a[1]-b[1]) < 1e-6
}

func recordChanges(v *View) *[]Change {
	var got []Change
	v.OnChange(func(c Change) { got = append(got, c) })
	return &got
}

func TestSelectCentersSheet47(t *testing.T) {
	v := readyView(t)
	if !v.Select("47", SourceSearch) {
		t.Fatal("select rejected")
	}
	snap := v.Snapshot()
	if snap.State.SelectedID != "47" {
		t.Fatalf("selected = %q", snap.State.SelectedID)
	}
	if snap.State.Scale < viewport.DefaultConfig().FocusScale {
		t.Errorf("scale = %g, want >= focus", snap.State.Scale)
	}
	got := v.Engine().ImageToScreen(orb.Point{363, 146})
	if !near(got, container.Center()) {
		t.Errorf("centroid maps to %v, want %v", got, container.Center())
	}
}

func TestToggleAndReplaceNotifyOnce(t *testing.T) {
	v := readyView(t)
	changes := recordChanges(v)

	v.Select("12", SourceMap)
	v.Select("47", SourceList)
	v.Select("47", SourceMap)

	want := []Change{
		{Prev: "", Next: "12", Source: SourceMap},
		{Prev: "12", Next: "47", Source: SourceList},
		{Prev: "47", Next: "", Source: SourceMap},
	}
	if len(*changes) != len(want) {
		t.Fatalf("changes = %+v", *changes)
	}
	for i := range want {
		if (*changes)[i] != want[i] {
			t.Errorf("change %d = %+v, want %+v", i, (*changes)[i], want[i])
		}
	}
	if v.Snapshot().State.SelectedID != "" {
		t.Error("toggle did not clear selection")
	}
}

func TestSelectUnknownIsNoop(t *testing.T) {
	v := readyView(t)
	v.Select("12", SourceMap)
	before := v.Snapshot()
	changes := recordChanges(v)
	if v.Select("9999", SourceSearch) {
		t.Error("unknown id accepted")
	}
	if v.Snapshot() != before || len(*changes) != 0 {
		t.Error("unknown id changed state")
	}
}

func TestDragDoesNotSelect(t *testing.T) {
	v := readyView(t)
	over47 := v.Engine().ImageToScreen(orb.Point{363, 146})

	v.PointerDown(over47)
	if !v.PointerMove(orb.Point{over47[0] + 3, over47[1]}) {
		t.Fatal("move did not pan")
	}
	if v.PointerUp(orb.Point{over47[0] + 3, over47[1]}) {
		t.Error("drag reported as click")
	}
	// The browser's synthetic click on the shape after the drag.
	if v.ClickRegion("47") {
		t.Error("click after drag selected")
	}
	if v.Snapshot().State.SelectedID != "" {
		t.Error("selection changed by drag")
	}
	if !v.ClickRegion("47") {
		t.Error("later genuine click ignored")
	}
}

func TestPointerDragPansIncrementally(t *testing.T) {
	v := readyView(t)
	start := v.Snapshot().State.Pan
	v.PointerDown(orb.Point{10, 10})
	v.PointerMove(orb.Point{15, 10})
	v.PointerMove(orb.Point{20, 12})
	v.PointerUp(orb.Point{20, 12})
	got := v.Snapshot().State.Pan
	if got != (orb.Point{start[0] + 10, start[1] + 2}) {
		t.Errorf("pan = %v", got)
	}
	v.PointerMove(orb.Point{50, 50})
	if v.Snapshot().State.Pan != got {
		t.Error("move after release panned")
	}
}

func TestClickAtHitTests(t *testing.T) {
	v := readyView(t)
	p := v.Engine().ImageToScreen(orb.Point{120, 120})
	v.PointerDown(p)
	if !v.PointerUp(p) {
		t.Fatal("press without move is a click")
	}
	if !v.ClickAt(p) {
		t.Fatal("click on sheet 12 missed")
	}
	if v.Snapshot().State.SelectedID != "12" {
		t.Errorf("selected = %q", v.Snapshot().State.SelectedID)
	}
	if v.ClickAt(orb.Point{1, 1}) {
		t.Error("click on empty map selected something")
	}
}

func TestNothingRendersOrHitsBeforeLoad(t *testing.T) {
	v := New(testCatalog(t), viewport.DefaultConfig())
	v.Resize(container)
	snap := v.Snapshot()
	if snap.Ready || snap.LayerStyle != "display:none" {
		t.Errorf("snapshot before load = %+v", snap)
	}
	if v.Overlay() != nil {
		t.Error("overlay rendered before natural size known")
	}
	if _, ok := v.RegionAt(container.Center()); ok {
		t.Error("hit before load")
	}
}

func TestSelectBeforeLoadCentersOnLoad(t *testing.T) {
	v := New(testCatalog(t), viewport.DefaultConfig())
	v.Resize(container)
	v.Select("12", SourceList)
	v.Select("47", SourceList)
	if v.Snapshot().State.Pan != (orb.Point{}) {
		t.Error("center ran before natural size known")
	}

	v.ImageLoaded(natural)
	got := v.Engine().ImageToScreen(orb.Point{363, 146})
	if !near(got, container.Center()) {
		t.Errorf("deferred center maps to %v", got)
	}
	if len(v.Overlay()) != 3 {
		t.Errorf("overlay = %d regions", len(v.Overlay()))
	}
}

func TestLoadBeforeContainer(t *testing.T) {
	v := New(testCatalog(t), viewport.DefaultConfig())
	v.ImageLoaded(natural)
	v.Select("47", SourceAPI)
	if !v.Resize(container) {
		t.Fatal("first container size should refit")
	}
	got := v.Engine().ImageToScreen(orb.Point{363, 146})
	if !near(got, container.Center()) {
		t.Errorf("centroid maps to %v after resize", got)
	}
}

func TestImageFailedKeepsGateClosed(t *testing.T) {
	var buf bytes.Buffer
	log := logging.New(logging.Config{Output: &buf})
	v := New(testCatalog(t), viewport.DefaultConfig(), WithLogger(log))
	v.Resize(container)
	v.Select("47", SourceList)

	v.ImageFailed(context.Background(), errors.New("404"))
	if v.ImageLoaded(natural) {
		t.Error("gate opened after failure")
	}
	snap := v.Snapshot()
	if snap.Ready || !snap.Failed || v.Overlay() != nil {
		t.Errorf("snapshot = %+v", snap)
	}
	if snap.State.SelectedID != "47" {
		t.Error("selection lost on image failure")
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Errorf("no warning logged: %q", buf.String())
	}
}

func TestResizeRecentersSelection(t *testing.T) {
	v := readyView(t)
	v.Select("47", SourceMap)
	v.ZoomBy(1)

	if v.Resize(container) {
		t.Error("same size refit")
	}
	bigger := viewport.Size{W: 1600, H: 900}
	if !v.Resize(bigger) {
		t.Fatal("genuine resize ignored")
	}
	got := v.Engine().ImageToScreen(orb.Point{363, 146})
	if !near(got, bigger.Center()) {
		t.Errorf("centroid maps to %v, want %v", got, bigger.Center())
	}
}

func TestResetClearsAndFits(t *testing.T) {
	v := readyView(t)
	fit := v.Snapshot().State
	changes := recordChanges(v)
	v.Select("47", SourceMap)
	v.PanBy(30, 30)
	v.Reset()
	if v.Snapshot().State != fit {
		t.Errorf("reset = %+v, want %+v", v.Snapshot().State, fit)
	}
	last := (*changes)[len(*changes)-1]
	if last != (Change{Prev: "47", Source: SourceReset}) {
		t.Errorf("last change = %+v", last)
	}
}

func TestSetCatalogDropsStaleSelection(t *testing.T) {
	v := readyView(t)
	v.Select("47", SourceMap)
	v.Hover("47")
	changes := recordChanges(v)

	v.SetCatalog(testCatalog(t, "7", "12"))
	if v.Snapshot().State.SelectedID != "" || v.Snapshot().Hovered != "" {
		t.Errorf("stale ids kept: %+v", v.Snapshot())
	}
	if len(*changes) != 1 || (*changes)[0].Source != SourceData {
		t.Errorf("changes = %+v", *changes)
	}

	v.Select("12", SourceMap)
	v.SetCatalog(testCatalog(t, "12", "100"))
	if v.Snapshot().State.SelectedID != "12" {
		t.Error("valid selection dropped")
	}
}

func TestHoverIsCosmetic(t *testing.T) {
	v := readyView(t)
	before := v.Snapshot().State
	if !v.Hover("12") || v.Hover("12") {
		t.Error("hover change reporting wrong")
	}
	if v.Snapshot().State != before {
		t.Error("hover changed view state")
	}
	v.Hover("nope")
	if v.Snapshot().Hovered != "" {
		t.Error("unknown hover kept")
	}
}

func TestBackgroundToggleIsPresentationOnly(t *testing.T) {
	v := readyView(t)
	v.Select("47", SourceMap)
	before := v.Snapshot()
	v.SetShowBackground(false)
	after := v.Snapshot()
	if after.ShowBackground {
		t.Error("background still shown")
	}
	after.ShowBackground = true
	if after != before {
		t.Error("background toggle changed geometry")
	}
	p := v.Engine().ImageToScreen(orb.Point{363, 146})
	if r, ok := v.RegionAt(p); !ok || r.ID != "47" {
		t.Error("hit test affected by background toggle")
	}
}

func TestOnChangeCancel(t *testing.T) {
	v := readyView(t)
	n := 0
	cancel := v.OnChange(func(Change) { n++ })
	v.Select("12", SourceMap)
	cancel()
	v.Select("47", SourceMap)
	if n != 1 {
		t.Errorf("listener called %d times", n)
	}
}

func TestSizeHintsOpenGate(t *testing.T) {
	cat, err := catalog.New(catalog.Image{URL: "x.jpg", Width: 800, Height: 750}, testCatalog(t).All())
	if err != nil {
		t.Fatal(err)
	}
	v := New(cat, viewport.DefaultConfig())
	if !v.Snapshot().Ready {
		t.Error("size hints should make the view ready")
	}
}

func TestGate(t *testing.T) {
	var g Gate
	var order []int
	g.Do(func(viewport.Size) { order = append(order, 1) })
	g.Do(func(viewport.Size) { order = append(order, 2) })
	if g.Pending() != 2 || len(order) != 0 {
		t.Fatal("ops ran before open")
	}
	if g.Open(viewport.Size{}) {
		t.Error("opened with unknown size")
	}
	if !g.Open(viewport.Size{W: 1, H: 1}) || g.Open(viewport.Size{W: 2, H: 2}) {
		t.Error("gate should open exactly once")
	}
	g.Do(func(viewport.Size) { order = append(order, 3) })
	if len(order) != 3 || order[0] != 1 || order[2] != 3 {
		t.Errorf("order = %v", order)
	}

	var failed Gate
	failed.Do(func(viewport.Size) { t.Error("ran after failure") })
	failed.Fail(errors.New("x"))
	failed.Do(func(viewport.Size) { t.Error("ran after failure") })
	if failed.Open(viewport.Size{W: 1, H: 1}) || failed.Pending() != 0 {
		t.Error("failed gate reopened")
	}
}
