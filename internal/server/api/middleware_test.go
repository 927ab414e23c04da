package api

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrijs2005/filingapi/internal/logging"
)

func TestRequestLogger_CarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := logging.NewJSONLogger(&buf, slog.LevelDebug)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logContext)
	r.Use(requestLogger(log))
	r.Get("/v1/filing/institutions/{lei}", func(w http.ResponseWriter, r *http.Request) {
		log.Debug(r.Context(), "inside handler")
		w.WriteHeader(http.StatusForbidden)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/filing/institutions/LEI1", nil)
	req.Header.Set(middleware.RequestIDHeader, "req-42")
	r.ServeHTTP(httptest.NewRecorder(), req)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	for _, line := range lines {
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		assert.Equal(t, "req-42", rec["request_id"])
	}

	var access map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[1]), &access))
	assert.Equal(t, "WARN", access["level"])
	assert.Equal(t, float64(http.StatusForbidden), access["status"])
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Get("/v1/filing/institutions/{lei}/filings/{period_code}", func(w http.ResponseWriter, r *http.Request) {
		got = routePattern(r)
	})

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/v1/filing/institutions/LEI1/filings/2024", nil))
	assert.Equal(t, "/v1/filing/institutions/{lei}/filings/{period_code}", got)

	assert.Equal(t, "unmatched", routePattern(httptest.NewRequest(http.MethodGet, "/nowhere", nil)))
}
