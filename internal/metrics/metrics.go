// Package metrics holds the Prometheus collectors for the viewer.
package metrics

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector bundles the viewer metrics. A nil *Collector is valid and
// records nothing.
type Collector struct {
	gatherer prometheus.Gatherer

	Selections      *prometheus.CounterVec
	Downloads       *prometheus.CounterVec
	FavoriteToggles *prometheus.CounterVec
	ImageLoads      *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge
	HTTPDurations   *prometheus.HistogramVec
}

// New registers the collectors on reg, defaulting to the global registry.
func New(reg prometheus.Registerer) (*Collector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	c := &Collector{gatherer: gatherer}
	var err error
	if c.Selections, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topo_selections_total",
		Help: "Sheet selection changes, labeled by where they came from.",
	}, []string{"source"})); err != nil {
		return nil, err
	}
	if c.Downloads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topo_downloads_total",
		Help: "Sheet downloads recorded, labeled by sheet id.",
	}, []string{"sheet"})); err != nil {
		return nil, err
	}
	if c.FavoriteToggles, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topo_favorite_toggles_total",
		Help: "Favorite changes, labeled added or removed.",
	}, []string{"action"})); err != nil {
		return nil, err
	}
	if c.ImageLoads, err = register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "topo_image_loads_total",
		Help: "Reference image load reports from viewers, labeled loaded or failed.",
	}, []string{"outcome"})); err != nil {
		return nil, err
	}
	if c.ActiveSessions, err = register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "topo_sessions_active",
		Help: "Viewer sessions currently held in memory.",
	})); err != nil {
		return nil, err
	}
	if c.HTTPDurations, err = register(reg, prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "topo_http_request_duration_seconds",
		Help:    "HTTP request latency in seconds.",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
	}, []string{"method", "code"})); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Collector) Selection(source string) {
	if c == nil {
		return
	}
	c.Selections.WithLabelValues(source).Inc()
}

func (c *Collector) Download(sheet string) {
	if c == nil {
		return
	}
	c.Downloads.WithLabelValues(sheet).Inc()
}

func (c *Collector) Favorite(added bool) {
	if c == nil {
		return
	}
	action := "removed"
	if added {
		action = "added"
	}
	c.FavoriteToggles.WithLabelValues(action).Inc()
}

func (c *Collector) ImageLoad(ok bool) {
	if c == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "loaded"
	}
	c.ImageLoads.WithLabelValues(outcome).Inc()
}

// SetSessions updates the active session gauge.
func (c *Collector) SetSessions(n int) {
	if c == nil {
		return
	}
	c.ActiveSessions.Set(float64(n))
}

// Handler serves the registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	if c == nil || c.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(c.gatherer, promhttp.HandlerOpts{})
}

// Middleware observes request latency by method and status code.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	if c == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)
		c.HTTPDurations.WithLabelValues(r.Method, strconv.Itoa(sw.code)).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func register[T prometheus.Collector](reg prometheus.Registerer, col T) (T, error) {
	if err := reg.Register(col); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		var zero T
		return zero, fmt.Errorf("register metric: %w", err)
	}
	return col, nil
}
