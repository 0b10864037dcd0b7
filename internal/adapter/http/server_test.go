package http_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	httpadapter "github.com/couchcryptid/censoc-variation-service/internal/adapter/http"
	"github.com/couchcryptid/censoc-variation-service/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockReports struct {
	report *domain.VariationReport
}

func (m *mockReports) Latest() (domain.VariationReport, bool) {
	if m.report == nil {
		return domain.VariationReport{}, false
	}
	return *m.report, true
}

func newTestServer(readyErr error) *httpadapter.Server {
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, &mockReports{}, slog.Default())
}

func sampleReport() *domain.VariationReport {
	v := 12.5
	return &domain.VariationReport{
		ID:          "rep-1",
		Strata:      domain.StrataSexAgeGroup,
		LeapRule:    "gregorian",
		GeneratedAt: time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC),
		Categories:  2,
		Variations: []domain.PeriodVariation{
			{PeriodObservation: domain.PeriodObservation{Year: 1995, Month: 1, Category: domain.Category{Sex: "female", AgeGroup: "85+"}, WeightedCount: 10}},
			{PeriodObservation: domain.PeriodObservation{Year: 1995, Month: 1, Category: domain.Category{Sex: "male", AgeGroup: "85+"}, WeightedCount: 8}, Variation: &v},
		},
	}
}

func TestHealthzReturns200(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "healthy", body["status"])
}

func TestReadyzReturns200WhenReady(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ready", body["status"])
}

func TestReadyzReturns503WhenNotReady(t *testing.T) {
	srv := newTestServer(fmt.Errorf("not ready yet"))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "not ready", body["status"])
	assert.Equal(t, "not ready yet", body["error"])
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)

	srv.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestVariationsReturns404BeforeFirstReport(t *testing.T) {
	srv := newTestServer(nil)
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/variations", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestVariationsReturnsLatestReport(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockReports{report: sampleReport()}, slog.Default())
	rec := httptest.NewRecorder()

	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/variations", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body domain.VariationReport
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "rep-1", body.ID)
	assert.Equal(t, 2, body.Categories)
	require.Len(t, body.Variations, 2)
	assert.Nil(t, body.Variations[0].Variation)
	require.NotNil(t, body.Variations[1].Variation)
	assert.InDelta(t, 12.5, *body.Variations[1].Variation, 1e-12)
}

func TestVariationsFiltersByCategory(t *testing.T) {
	srv := httpadapter.NewServer(":0", &mockReadiness{}, &mockReports{report: sampleReport()}, slog.Default())

	t.Run("known category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		target := "/v1/variations?category=" + url.QueryEscape("sex=male|age_group=85+")
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var body domain.VariationReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, 1, body.Categories)
		require.Len(t, body.Variations, 1)
		assert.Equal(t, "male", body.Variations[0].Category.Sex)
	})

	t.Run("unknown category", func(t *testing.T) {
		rec := httptest.NewRecorder()
		srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/variations?category=sex%3Dother", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})
}

func TestHandleRegistersExtraRoute(t *testing.T) {
	srv := newTestServer(nil)
	srv.Handle("GET /v1/variations/stream", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/variations/stream", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)

	rec = httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/variations", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
