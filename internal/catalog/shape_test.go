package catalog

import (
	"errors"
	"testing"

	"github.com/paulmach/orb"
)

func TestParseShape(t *testing.T) {
	tests := []struct {
		name    string
		kind    string
		coords  []float64
		wantErr bool
	}{
		{"rect", KindRect, []float64{10, 20, 30, 40}, false},
		{"rect too short", KindRect, []float64{10, 20, 30}, true},
		{"rect inverted x", KindRect, []float64{30, 20, 10, 40}, true},
		{"rect zero height", KindRect, []float64{10, 20, 30, 20}, true},
		{"poly square", KindPoly, []float64{0, 0, 10, 0, 10, 10, 0, 10}, false},
		{"poly odd", KindPoly, []float64{0, 0, 10, 0, 10}, true},
		{"poly too few", KindPoly, []float64{0, 0, 10, 0}, true},
		{"unknown", "circle", []float64{1, 1, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseShape(tt.kind, tt.coords)
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidShape) {
				t.Errorf("err = %v, want ErrInvalidShape", err)
			}
		})
	}
}

func TestCentroid(t *testing.T) {
	r, _ := ParseShape(KindRect, []float64{10, 20, 30, 40})
	if got := r.Centroid(); got != (orb.Point{20, 30}) {
		t.Errorf("rect centroid = %v, want (20,30)", got)
	}

	p, _ := ParseShape(KindPoly, []float64{0, 0, 10, 0, 10, 10, 0, 10})
	if got := p.Centroid(); got != (orb.Point{5, 5}) {
		t.Errorf("poly centroid = %v, want (5,5)", got)
	}

	closed, _ := ParseShape(KindPoly, []float64{0, 0, 10, 0, 10, 10, 0, 10, 0, 0})
	if got := closed.Centroid(); got != (orb.Point{5, 5}) {
		t.Errorf("closed poly centroid = %v, want (5,5)", got)
	}
}

func TestContains(t *testing.T) {
	r := NewRect(10, 20, 30, 40)
	for _, p := range []orb.Point{{10, 20}, {20, 30}, {30, 40}} {
		if !r.Contains(p) {
			t.Errorf("rect should contain %v", p)
		}
	}
	for _, p := range []orb.Point{{9.9, 30}, {20, 40.1}} {
		if r.Contains(p) {
			t.Errorf("rect should not contain %v", p)
		}
	}

	// L-shaped polygon: the notch at (15,15) is outside.
	l, _ := ParseShape(KindPoly, []float64{0, 0, 20, 0, 20, 10, 10, 10, 10, 20, 0, 20})
	if !l.Contains(orb.Point{5, 15}) {
		t.Error("L should contain (5,15)")
	}
	if l.Contains(orb.Point{15, 15}) {
		t.Error("L should not contain the notch (15,15)")
	}
}

func TestCoordinatesRoundTrip(t *testing.T) {
	in := []float64{0, 0, 10, 0, 5, 8}
	s, err := ParseShape(KindPoly, in)
	if err != nil {
		t.Fatal(err)
	}
	out := s.Coordinates()
	if len(out) != len(in) {
		t.Fatalf("coords = %v", out)
	}
	for i := range in {
		if in[i] != out[i] {
			t.Fatalf("coords = %v, want %v", out, in)
		}
	}
}
