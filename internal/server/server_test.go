package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/silver-economy/internal/config"
	"github.com/sells-group/silver-economy/internal/dashboard"
	"github.com/sells-group/silver-economy/internal/dataset"
	"github.com/sells-group/silver-economy/internal/model"
	"github.com/sells-group/silver-economy/internal/store"
)

func rec(name, code string, aging, income, childless float64) model.MunicipalRecord {
	return model.MunicipalRecord{
		Name:                 name,
		RegionCodeRaw:        code,
		AgingIndex:           model.Float(aging),
		Income60Plus:         model.Float(income),
		ChildlessCoupleRatio: model.Float(childless),
	}
}

func testProvider(hasGeo bool) dataset.Provider {
	recife := rec("Recife", "26", 70, 3100, 0.2)
	recife.Latitude = model.Float(-8.05)
	recife.Longitude = model.Float(-34.9)
	snap := dataset.NewSnapshot(&model.Dataset{
		Source: "dados.csv",
		HasGeo: hasGeo,
		Records: []model.MunicipalRecord{
			rec("Salvador", "29", 10, 100, 0.1),
			rec("Curitiba", "41", 30, 300, 0.3),
			recife,
		},
	}, time.Now())
	return dataset.NewStatic(snap)
}

func testServerConfig() config.ServerConfig {
	return config.ServerConfig{Port: 8080, CORSOrigins: []string{"*"}}
}

func newTestHandler(t *testing.T, p dataset.Provider, cfg config.ServerConfig, opts ...Option) http.Handler {
	t.Helper()
	svc := dashboard.New(p, dashboard.DefaultOptions())
	return New(p, svc, cfg, opts...).Handler()
}

func do(t *testing.T, h http.Handler, method, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestHealth(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode(t, rec)["status"])
}

func TestRegions(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	body := decode(t, do(t, h, http.MethodGet, "/regions"))
	assert.Len(t, body["regions"], 27)
	assert.Equal(t, "ALL", body["all"])
}

func TestFilters(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	rec := do(t, h, http.MethodGet, "/filters")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.InDelta(t, 3100, body["income_max"], 1e-9)
	assert.Len(t, body["regions"], 28)
}

func TestView_Ranking(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	rec := do(t, h, http.MethodGet, "/views/ranking?n=2")
	require.Equal(t, http.StatusOK, rec.Code)

	var v dashboard.View
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v))
	require.Len(t, v.Rows, 2)
	assert.Equal(t, "recife", v.Rows[0].Name)
	assert.Equal(t, "Recife", v.Rows[0].DisplayName)
	assert.Equal(t, "ALL", v.Filter.Region)
}

func TestView_StatusMapping(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())

	tests := []struct {
		name   string
		target string
		status int
		empty  bool
	}{
		{"empty result", "/views/composite?min_income=99999", http.StatusOK, true},
		{"region filter", "/views/overview?region=pr", http.StatusOK, false},
		{"unknown region", "/views/overview?region=XX", http.StatusBadRequest, false},
		{"negative income", "/views/overview?min_income=-5", http.StatusBadRequest, false},
		{"non numeric income", "/views/overview?min_income=abc", http.StatusBadRequest, false},
		{"non numeric n", "/views/ranking?n=ten", http.StatusBadRequest, false},
		{"unknown view", "/views/pyramid", http.StatusNotFound, false},
		{"map without coordinates", "/views/map", http.StatusNotFound, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, http.MethodGet, tt.target)
			assert.Equal(t, tt.status, rec.Code, rec.Body.String())
			if tt.empty {
				body := decode(t, rec)
				assert.Equal(t, true, body["empty"])
				assert.NotEmpty(t, body["notice"])
			}
		})
	}
}

func TestGeoPoints(t *testing.T) {
	h := newTestHandler(t, testProvider(true), testServerConfig())
	rec := do(t, h, http.MethodGet, "/geo/points")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/geo+json", rec.Header().Get("Content-Type"))

	body := decode(t, rec)
	assert.Equal(t, "FeatureCollection", body["type"])
	assert.Len(t, body["features"], 1)
}

func TestChoropleth_NoBoundaries(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	rec := do(t, h, http.MethodGet, "/geo/choropleth")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

type failingProvider struct{}

func (failingProvider) Snapshot(context.Context) (*model.Snapshot, error) {
	return nil, &dataset.LoadError{Source: "dados.csv", Err: eris.New("missing required columns: aging_index")}
}

func (p failingProvider) Reload(ctx context.Context) (*model.Snapshot, error) {
	return p.Snapshot(ctx)
}

func TestLoadFailure(t *testing.T) {
	h := newTestHandler(t, failingProvider{}, testServerConfig())

	for _, target := range []string{"/views/overview", "/filters"} {
		rec := do(t, h, http.MethodGet, target)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, target)
	}
	rec := do(t, h, http.MethodPost, "/admin/reload")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestReload(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	rec := do(t, h, http.MethodPost, "/admin/reload")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.NotEmpty(t, body["id"])
	assert.Equal(t, "dados.csv", body["source"])
}

func TestRateLimit(t *testing.T) {
	cfg := testServerConfig()
	cfg.RateLimit = 0.001
	cfg.RateBurst = 1
	h := newTestHandler(t, testProvider(false), cfg)

	assert.Equal(t, http.StatusOK, do(t, h, http.MethodGet, "/health").Code)
	rec := do(t, h, http.MethodGet, "/health")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "1", rec.Header().Get("Retry-After"))
}

func TestCORS(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "https://painel.example.org")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExports(t *testing.T) {
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "exports.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(context.Background()))

	h := newTestHandler(t, testProvider(false), testServerConfig(), WithStore(st))

	rec := do(t, h, http.MethodPost, "/exports/composite?region=BA")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var exp store.Export
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &exp))
	assert.Equal(t, "composite", exp.View)
	assert.Equal(t, "BA", exp.Filter.Region)
	assert.Equal(t, "dados.csv", exp.Source)

	list := decode(t, do(t, h, http.MethodGet, "/exports"))
	assert.Len(t, list["exports"], 1)

	rows := do(t, h, http.MethodGet, "/exports/"+exp.ID+"/rows")
	require.Equal(t, http.StatusOK, rows.Code)
	assert.True(t, strings.Contains(rows.Body.String(), "salvador"))

	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/exports/missing/rows").Code)
}

func TestExports_DisabledWithoutStore(t *testing.T) {
	h := newTestHandler(t, testProvider(false), testServerConfig())
	assert.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/exports").Code)
}
