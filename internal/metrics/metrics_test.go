package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAndGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	c.Selection("map")
	c.Selection("map")
	c.Selection("search")
	c.Favorite(true)
	c.Favorite(false)
	c.Favorite(false)
	c.ImageLoad(false)
	c.Download("47")
	c.SetSessions(3)

	checks := []struct {
		name string
		got  float64
		want float64
	}{
		{"selections map", testutil.ToFloat64(c.Selections.WithLabelValues("map")), 2},
		{"selections search", testutil.ToFloat64(c.Selections.WithLabelValues("search")), 1},
		{"favorites removed", testutil.ToFloat64(c.FavoriteToggles.WithLabelValues("removed")), 2},
		{"image failed", testutil.ToFloat64(c.ImageLoads.WithLabelValues("failed")), 1},
		{"downloads 47", testutil.ToFloat64(c.Downloads.WithLabelValues("47")), 1},
		{"sessions", testutil.ToFloat64(c.ActiveSessions), 3},
	}
	for _, tt := range checks {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNewTwiceReusesCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	a, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	b, err := New(reg)
	if err != nil {
		t.Fatalf("second New: %v", err)
	}
	a.Selection("list")
	if got := testutil.ToFloat64(b.Selections.WithLabelValues("list")); got != 1 {
		t.Errorf("shared counter = %v", got)
	}
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	c.Selection("map")
	c.Favorite(true)
	c.SetSessions(1)
	h := c.Middleware(http.NotFoundHandler())
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("code = %d", rec.Code)
	}
}

func TestHandlerAndMiddleware(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := New(reg)
	if err != nil {
		t.Fatal(err)
	}
	h := c.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/x", nil))

	srv := httptest.NewServer(c.Handler())
	defer srv.Close()
	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), `topo_http_request_duration_seconds_count{code="418",method="POST"} 1`) {
		t.Errorf("histogram missing from exposition:\n%s", body)
	}
}
