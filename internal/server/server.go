// Package server exposes the dashboard views over HTTP.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/silver-economy/internal/composite"
	"github.com/sells-group/silver-economy/internal/config"
	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/dataset"
	"github.com/sells-group/silver-economy/internal/filter"
	"github.com/sells-group/silver-economy/internal/geo"
	"github.com/sells-group/silver-economy/internal/region"
	"github.com/sells-group/silver-economy/internal/store"
)

// Server serves dashboard views.
type Server struct {
	svc        *dashboard.Service
	provider   dataset.Provider
	boundaries *geo.Boundaries
	store      store.Store
	defaults   filter.Spec
	cfg        config.ServerConfig
	log        *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithBoundaries enables the choropleth endpoint.
func WithBoundaries(b *geo.Boundaries) Option {
	return func(s *Server) { s.boundaries = b }
}

// WithStore enables the export endpoints.
func WithStore(st store.Store) Option {
	return func(s *Server) { s.store = st }
}

// WithDefaults sets the filter used when a request names none.
func WithDefaults(spec filter.Spec) Option {
	return func(s *Server) { s.defaults = spec.Normalized() }
}

// New creates a Server over a dataset provider.
func New(provider dataset.Provider, svc *dashboard.Service, cfg config.ServerConfig, opts ...Option) *Server {
	s := &Server{
		svc:      svc,
		provider: provider,
		defaults: filter.Defaults(),
		cfg:      cfg,
		log:      zap.L().With(zap.String("component", "server")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	}))
	if s.cfg.RateLimit > 0 {
		r.Use(newClientLimiter(s.cfg.RateLimit, s.cfg.RateBurst).middleware)
	}

	r.Get("/health", s.handleHealth)
	r.Get("/regions", s.handleRegions)
	r.Get("/filters", s.handleFilters)
	r.Get("/views/{view}", s.handleView)
	r.Get("/geo/points", s.handlePoints)
	r.Get("/geo/choropleth", s.handleChoropleth)
	r.Post("/admin/reload", s.handleReload)

	if s.store != nil {
		r.Get("/exports", s.handleListExports)
		r.Post("/exports/{view}", s.handleSaveExport)
		r.Get("/exports/{id}/rows", s.handleExportRows)
	}

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"all":     filter.AllRegions,
		"regions": region.Labels(),
	})
}

// handleFilters returns the reset state and the income selector bound.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	snap, err := s.provider.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"defaults":    s.defaults,
		"reset":       filter.Defaults(),
		"regions":     append([]string{filter.AllRegions}, region.Labels()...),
		"income_max":  filter.IncomeBound(snap.Records),
		"snapshot_id": snap.ID,
	})
}

func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	spec, n, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, err := s.svc.ByName(r.Context(), chi.URLParam(r, "view"), spec, n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}

func (s *Server) handlePoints(w http.ResponseWriter, r *http.Request) {
	spec, _, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	v, err := s.svc.Map(r.Context(), spec)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeGeoJSON(w, geo.Points(v.Rows))
}

// handleChoropleth joins a view's rows to the boundary polygons. The view
// defaults to the composite ranking of every filtered municipality.
func (s *Server) handleChoropleth(w http.ResponseWriter, r *http.Request) {
	if s.boundaries == nil {
		writeJSON(w, http.StatusNotFound, errorBody{Error: "no boundary file configured"})
		return
	}
	spec, n, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	name := r.URL.Query().Get("view")
	if name == "" {
		name = "composite"
		if n == 0 {
			n = -1
		}
	}
	v, err := s.svc.ByName(r.Context(), name, spec, n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	fc, unmatched := geo.Choropleth(v.Rows, s.boundaries)
	if len(unmatched) > 0 {
		s.log.Debug("choropleth rows without boundary", zap.Int("unmatched", len(unmatched)))
	}
	writeGeoJSON(w, fc)
}

func (s *Server) handleReload(w http.ResponseWriter, r *http.Request) {
	snap, err := s.provider.Reload(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleListExports(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	exports, err := s.store.ListExports(r.Context(), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if exports == nil {
		exports = []store.Export{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"exports": exports})
}

func (s *Server) handleSaveExport(w http.ResponseWriter, r *http.Request) {
	spec, n, err := s.parseQuery(r)
	if err != nil {
		s.writeError(w, err)
		return
	}
	view := chi.URLParam(r, "view")
	v, err := s.svc.ByName(r.Context(), view, spec, n)
	if err != nil {
		s.writeError(w, err)
		return
	}
	snap, err := s.provider.Snapshot(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	exp, err := s.store.SaveTable(r.Context(), store.ExportMeta{
		SnapshotID: v.SnapshotID,
		Source:     snap.Source,
		View:       view,
		Filter:     v.Filter,
	}, v.Table)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (s *Server) handleExportRows(w http.ResponseWriter, r *http.Request) {
	rows, err := s.store.ExportRows(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": rows})
}

// parseQuery reads region, min_income and n. Missing values fall back to
// the server defaults.
func (s *Server) parseQuery(r *http.Request) (filter.Spec, int, error) {
	q := r.URL.Query()
	spec := s.defaults

	if q.Has("region") {
		spec.Region = q.Get("region")
	}
	if raw := q.Get("min_income"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return spec, 0, eris.Wrapf(filter.ErrInvalidSpec, "min_income %q is not a number", raw)
		}
		spec.MinIncome = v
	}

	var n int
	if raw := q.Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return spec, 0, eris.Wrapf(filter.ErrInvalidSpec, "n %q is not an integer", raw)
		}
		n = v
	}

	spec = spec.Normalized()
	if err := spec.Validate(); err != nil {
		return spec, 0, err
	}
	return spec, n, nil
}

type errorBody struct {
	Error string `json:"error"`
}

type emptyBody struct {
	Empty  bool   `json:"empty"`
	Notice string `json:"notice"`
}

// writeError maps pipeline errors to responses. Empty results are not
// failures: the renderer shows a "no results" state.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var loadErr *dataset.LoadError
	switch {
	case eris.Is(err, filter.ErrEmptyResult):
		writeJSON(w, http.StatusOK, emptyBody{Empty: true, Notice: "No municipality matches the selected filters."})
	case eris.Is(err, composite.ErrNoScorableRecords):
		writeJSON(w, http.StatusOK, emptyBody{Empty: true, Notice: "No municipality in the selection has all three indicators."})
	case eris.Is(err, filter.ErrInvalidSpec):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
	case eris.Is(err, dashboard.ErrNoCoordinates):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	case errors.As(err, &loadErr):
		s.log.Error("dataset unavailable", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "dataset unavailable"})
	case eris.Is(err, dashboard.ErrUnknownView), eris.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
	default:
		s.log.Error("request failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func writeGeoJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/geo+json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

// requestLogger logs method, path, status and latency of each request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}
