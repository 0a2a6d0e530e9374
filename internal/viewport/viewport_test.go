package viewport

import (
	"math"
	"math/rand"
	"testing"

	"github.com/paulmach/orb"
)

const eps = 1e-9

func near(a, b float64) bool { return math.Abs(a-b) < 1e-6 }

type point orb.Point

func (p point) Centroid() orb.Point { return orb.Point(p) }

func TestNormalize(t *testing.T) {
	c := Config{MinScale: 5, MaxScale: 1, FocusScale: 20, FitMargin: 3, Reset: "bogus"}.Normalize()
	if c.MinScale != 1 || c.MaxScale != 5 {
		t.Errorf("bounds = [%g, %g], want [1, 5]", c.MinScale, c.MaxScale)
	}
	if c.FocusScale != 5 {
		t.Errorf("focus = %g, want clamped to 5", c.FocusScale)
	}
	if c.FitMargin != DefaultConfig().FitMargin {
		t.Errorf("margin = %g", c.FitMargin)
	}
	if c.Reset != ResetFit {
		t.Errorf("reset = %q", c.Reset)
	}
	if (Config{}).Normalize() != DefaultConfig() {
		t.Error("zero config should normalize to defaults")
	}
}

func TestZoomByClamps(t *testing.T) {
	e := New(DefaultConfig())
	e.ZoomBy(1000)
	if e.State().Scale != 10 {
		t.Errorf("scale = %g, want 10", e.State().Scale)
	}
	e.ZoomBy(-1000)
	if e.State().Scale != 0.1 {
		t.Errorf("scale = %g, want 0.1", e.State().Scale)
	}
	e.ZoomBy(math.NaN())
	if e.State().Scale != 0.1 {
		t.Errorf("NaN changed scale to %g", e.State().Scale)
	}
	e.ZoomBy(math.Inf(1))
	if e.State().Scale != 10 {
		t.Errorf("scale = %g after +Inf", e.State().Scale)
	}
}

func TestZoomBySequencesStayInRange(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	e := New(DefaultConfig())
	for i := 0; i < 10000; i++ {
		e.ZoomBy((rng.Float64() - 0.5) * 40)
		s := e.State().Scale
		if s < 0.1 || s > 10 {
			t.Fatalf("step %d: scale %g out of range", i, s)
		}
	}
}

func TestPanByAccumulates(t *testing.T) {
	e := New(DefaultConfig())
	e.PanBy(10, -5)
	e.PanBy(2.5, 1)
	e.PanBy(1e9, 1e9)
	want := orb.Point{10 + 2.5 + 1e9, -5 + 1 + 1e9}
	if e.State().Pan != want {
		t.Errorf("pan = %v, want %v", e.State().Pan, want)
	}
	e.PanBy(math.NaN(), 3)
	if e.State().Pan != want {
		t.Error("NaN pan should be ignored")
	}
}

func TestFitToContainer(t *testing.T) {
	e := New(DefaultConfig())
	e.PanBy(40, 40)
	e.FitToContainer(Size{W: 800, H: 600}, Size{W: 400, H: 600})
	st := e.State()
	if !near(st.Scale, 0.5*0.95) {
		t.Errorf("scale = %g, want %g", st.Scale, 0.5*0.95)
	}
	if st.Pan != (orb.Point{}) {
		t.Errorf("pan = %v, want origin", st.Pan)
	}
}

func TestFitToContainerIdempotent(t *testing.T) {
	e := New(DefaultConfig())
	natural, container := Size{W: 1024, H: 768}, Size{W: 1280, H: 720}
	e.FitToContainer(natural, container)
	first := e.State()
	e.FitToContainer(natural, container)
	if e.State() != first {
		t.Errorf("second fit drifted: %+v vs %+v", e.State(), first)
	}
}

func TestFitIgnoresUnknownSizes(t *testing.T) {
	e := New(DefaultConfig())
	e.ZoomBy(1)
	e.FitToContainer(Size{}, Size{W: 100, H: 100})
	e.FitToContainer(Size{W: 100, H: 100}, Size{W: 0, H: 100})
	if e.State().Scale != 2 {
		t.Errorf("scale = %g, want unchanged 2", e.State().Scale)
	}
}

func TestResizeOnlyOnChange(t *testing.T) {
	e := New(DefaultConfig())
	if e.Resize(Size{W: 500, H: 500}) {
		t.Error("resize before natural size known should not refit")
	}
	e.FitToContainer(Size{W: 1000, H: 1000}, Size{W: 500, H: 500})
	e.ZoomBy(1)
	e.PanBy(5, 5)
	user := e.State()

	if e.Resize(Size{W: 500, H: 500}) {
		t.Error("same size reported a refit")
	}
	if e.State() != user {
		t.Error("spurious resize disturbed user pan/zoom")
	}

	if !e.Resize(Size{W: 1000, H: 1000}) {
		t.Fatal("genuine resize did not refit")
	}
	if !near(e.State().Scale, 0.95) {
		t.Errorf("scale = %g, want 0.95", e.State().Scale)
	}
}

func TestCenterOnRaisesButNeverLowersScale(t *testing.T) {
	e := New(DefaultConfig())
	e.FitToContainer(Size{W: 800, H: 800}, Size{W: 400, H: 400})
	e.CenterOn(point{100, 100})
	if e.State().Scale != 2.5 {
		t.Errorf("scale = %g, want focus 2.5", e.State().Scale)
	}

	e.ZoomBy(3)
	e.CenterOn(point{200, 200})
	if !near(e.State().Scale, 5.5) {
		t.Errorf("scale = %g, want kept 5.5", e.State().Scale)
	}
}

func TestCenterOnMapsCentroidToContainerCenter(t *testing.T) {
	e := New(DefaultConfig())
	natural := Size{W: 800, H: 750}
	container := Size{W: 1280, H: 640}
	e.FitToContainer(natural, container)

	for _, c := range []orb.Point{{363, 146}, {0, 0}, {800, 750}, {12.5, 700}} {
		e.CenterOn(point(c))
		got := e.ImageToScreen(c)
		want := container.Center()
		if !near(got[0], want[0]) || !near(got[1], want[1]) {
			t.Errorf("centroid %v maps to %v, want %v", c, got, want)
		}
	}
}

func TestScreenImageRoundTrip(t *testing.T) {
	e := New(DefaultConfig())
	e.FitToContainer(Size{W: 800, H: 600}, Size{W: 1000, H: 700})
	e.ZoomBy(1.3)
	e.PanBy(-42, 17)
	for _, p := range []orb.Point{{0, 0}, {400, 300}, {799, 1}, {-50, 900}} {
		back := e.ScreenToImage(e.ImageToScreen(p))
		if math.Abs(back[0]-p[0]) > eps || math.Abs(back[1]-p[1]) > eps {
			t.Errorf("round trip %v -> %v", p, back)
		}
	}
}

func TestZoomAtKeepsAnchor(t *testing.T) {
	e := New(DefaultConfig())
	e.FitToContainer(Size{W: 800, H: 600}, Size{W: 800, H: 600})
	cursor := orb.Point{100, 500}
	before := e.ScreenToImage(cursor)
	e.ZoomAt(1.5, cursor)
	after := e.ScreenToImage(cursor)
	if !near(before[0], after[0]) || !near(before[1], after[1]) {
		t.Errorf("anchor moved from %v to %v", before, after)
	}
}

func TestReset(t *testing.T) {
	e := New(DefaultConfig())
	e.ZoomBy(2)
	e.Select("47")
	e.Reset()
	if e.State() != Identity() {
		t.Errorf("reset before fit = %+v, want identity", e.State())
	}

	e.FitToContainer(Size{W: 200, H: 200}, Size{W: 100, H: 100})
	e.ZoomBy(1)
	e.PanBy(3, 3)
	e.Select("47")
	e.Reset()
	want := State{Scale: e.FitScale()}
	if e.State() != want {
		t.Errorf("reset = %+v, want %+v", e.State(), want)
	}

	id := New(Config{Reset: ResetIdentity})
	id.FitToContainer(Size{W: 200, H: 200}, Size{W: 100, H: 100})
	id.Reset()
	if id.State() != Identity() {
		t.Errorf("identity reset = %+v", id.State())
	}
}

func TestTransformString(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{Identity(), "translate(0px, 0px) scale(1)"},
		{State{Pan: orb.Point{-12.346, 7}, Scale: 2.5}, "translate(-12.35px, 7px) scale(2.5)"},
		{State{Pan: orb.Point{-0.001, 0}, Scale: 0.475}, "translate(0px, 0px) scale(0.475)"},
	}
	for _, tt := range tests {
		if got := TransformOf(tt.s); got != tt.want {
			t.Errorf("TransformOf(%+v) = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestLayerStyleHiddenUntilKnown(t *testing.T) {
	if got := LayerStyle(Size{}, Identity()); got != "display:none" {
		t.Errorf("style = %q", got)
	}
}

func TestLoadBeforeAndAfterContainer(t *testing.T) {
	e := New(DefaultConfig())
	if e.Load(Size{W: 800, H: 600}) {
		t.Error("load without a container should not fit")
	}
	if !e.Resize(Size{W: 400, H: 300}) {
		t.Fatal("first container size after load should fit")
	}
	if !near(e.State().Scale, 0.5*0.95) {
		t.Errorf("scale = %g", e.State().Scale)
	}

	f := New(DefaultConfig())
	f.Resize(Size{W: 400, H: 300})
	if !f.Load(Size{W: 800, H: 600}) {
		t.Fatal("load with a known container should fit")
	}
	if f.State() != e.State() {
		t.Errorf("order dependent result: %+v vs %+v", f.State(), e.State())
	}
	if f.Load(Size{}) {
		t.Error("unknown natural size accepted")
	}
}
