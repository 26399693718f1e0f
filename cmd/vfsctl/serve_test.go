package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-vfs/pkg/vfs/config"
)

func newTestOpsServer(t *testing.T, opts ...config.Option) *opsServer {
	t.Helper()
	cfg, err := config.Load(opts...)
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	rt, err := cfg.Build(context.Background(), logger)
	require.NoError(t, err)
	t.Cleanup(rt.Close)
	return newOpsServer(rt, cfg, logger)
}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestOpsRoutes(t *testing.T) {
	s := newTestOpsServer(t, config.WithOnlineProjectID(5))
	h, err := s.Routes()
	require.NoError(t, err)

	t.Run("healthz", func(t *testing.T) {
		assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code)
	})

	t.Run("ready", func(t *testing.T) {
		rec := get(t, h, "/healthz/ready")
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("metrics", func(t *testing.T) {
		get(t, h, "/healthz/ready")
		rec := get(t, h, "/metrics")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `vfs_operations_total{op="store.ping"`)
	})

	t.Run("config", func(t *testing.T) {
		rec := get(t, h, "/ops/config")
		require.Equal(t, http.StatusOK, rec.Code)
		var body map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, "memory", body["database_type"])
		assert.Equal(t, float64(5), body["online_project_id"])
		assert.NotContains(t, rec.Body.String(), "offline_url")
	})

	t.Run("migrations without postgres", func(t *testing.T) {
		rec := get(t, h, "/ops/migrations")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `[]`, rec.Body.String())
	})
}

func TestOpsMigrationsReportStaleSchema(t *testing.T) {
	s := newTestOpsServer(t)
	s.migrations = func() []migrationReport {
		return []migrationReport{
			{Projections: []string{"offline", "backup"}, Version: 1, Latest: 1, Current: true},
			{Projections: []string{"online"}, Error: "connection refused"},
		}
	}
	h, err := s.Routes()
	require.NoError(t, err)

	rec := get(t, h, "/ops/migrations")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var reports []migrationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reports))
	require.Len(t, reports, 2)
	assert.Equal(t, "connection refused", reports[1].Error)
}

func TestOpsRoutesRequireKey(t *testing.T) {
	s := newTestOpsServer(t, config.WithOpsServer(":0", "5e884898da28047151d0e56f8dc6292773603d0d6aabbdd62a11ef721d1542d8"))
	h, err := s.Routes()
	require.NoError(t, err)

	assert.NotEqual(t, http.StatusOK, get(t, h, "/ops/config").Code)
	assert.Equal(t, http.StatusOK, get(t, h, "/healthz").Code, "health stays open")
}
