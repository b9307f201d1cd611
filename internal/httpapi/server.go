// Package httpapi serves the admin HTTP API: signal statistics, metric
// resets, component status and Prometheus metrics.
package httpapi

import (
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/dshills/signals/internal/signal"
)

// Service is the signal registry view the API needs. *signal.Registry
// implements it.
type Service interface {
	Stats() []signal.SignalStats
	ResetMetrics(name string) int
}

// StatusFunc reports the state of one component for GET /status.
type StatusFunc func() any

// Option configures the mux.
type Option func(*server)

// WithGatherer serves /metrics from g. Without it /metrics is not mounted.
func WithGatherer(g prometheus.Gatherer) Option {
	return func(s *server) {
		s.gatherer = g
	}
}

// WithRegisterer registers HTTP request metrics on r.
func WithRegisterer(r prometheus.Registerer) Option {
	return func(s *server) {
		s.registerer = r
	}
}

// WithLogger logs each request at debug level.
func WithLogger(l zerolog.Logger) Option {
	return func(s *server) {
		s.logger = l
	}
}

// WithStatus adds a component to GET /status.
func WithStatus(name string, fn StatusFunc) Option {
	return func(s *server) {
		s.status[name] = fn
	}
}

type server struct {
	svc        Service
	gatherer   prometheus.Gatherer
	registerer prometheus.Registerer
	logger     zerolog.Logger
	status     map[string]StatusFunc
}

// NewMux builds the router.
func NewMux(svc Service, opts ...Option) http.Handler {
	s := &server{
		svc:    svc,
		logger: zerolog.Nop(),
		status: make(map[string]StatusFunc),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLogger)
	if s.registerer != nil {
		r.Use(newRequestMetrics(s.registerer).middleware)
	}
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Content-Type-Options", "nosniff")
			next.ServeHTTP(w, r)
		})
	})

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/signals", s.listSignals)
	r.Get("/signals/{name}", s.getSignal)
	r.Post("/signals/{name}/metrics/reset", s.resetSignal)
	r.Get("/status", s.getStatus)
	if s.gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (s *server) listSignals(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"signals": s.svc.Stats()})
}

func (s *server) getSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	var matched []signal.SignalStats
	for _, st := range s.svc.Stats() {
		if st.Name == name {
			matched = append(matched, st)
		}
	}
	if len(matched) == 0 {
		writeJSONError(w, http.StatusNotFound, "signal not found: "+name)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"signals": matched})
}

func (s *server) resetSignal(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	n := s.svc.ResetMetrics(name)
	if n == 0 {
		writeJSONError(w, http.StatusNotFound, "signal not found: "+name)
		return
	}
	s.logger.Info().Str("signal", name).Int("reset", n).Msg("metrics reset")
	writeJSON(w, http.StatusOK, map[string]any{"signal": name, "reset": n})
}

func (s *server) getStatus(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.status))
	for name := range s.status {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make(map[string]any, len(names))
	for _, name := range names {
		out[name] = s.status[name]()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeJSONError writes a consistent JSON error payload.
func writeJSONError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{
		"error": msg,
		"code":  status,
	})
}
