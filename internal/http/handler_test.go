package http

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	csvstore "go.ngs.io/tidefit/internal/adapter/store/csv"
	"go.ngs.io/tidefit/internal/catalog"
	"go.ngs.io/tidefit/internal/config"
	"go.ngs.io/tidefit/internal/usecase"
)

func testRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	uc := usecase.NewAnalysisUseCase(csvstore.NewStore(t.TempDir()), nil, config.LimitsConfig{
		MaxObservations:     10_000,
		MaxReconstructSteps: 1_000,
		MaxMonteCarlo:       500,
	}, logger)
	return SetupRouter(uc, prometheus.NewRegistry())
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func fitBody() usecase.FitRequest {
	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	n := 73
	times := make([]string, n)
	values := make([]float64, n)
	for i := range times {
		times[i] = start.Add(time.Duration(i) * time.Hour).Format(time.RFC3339)
		values[i] = 1.5 + math.Cos(2*math.Pi*float64(i)/12.42)
	}
	lat := 45.0
	return usecase.FitRequest{
		Times:    times,
		Values:   values,
		Latitude: &lat,
		Options:  usecase.FitOptions{Constituents: []string{"M2"}, ConfInt: "none"},
	}
}

func TestHealthCheck(t *testing.T) {
	w := doJSON(t, testRouter(t), http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["time"])
}

func TestGetConstituents(t *testing.T) {
	w := doJSON(t, testRouter(t), http.MethodGet, "/v1/constituents", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Constituents []ConstituentInfo `json:"constituents"`
		Count        int               `json:"count"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(catalog.Entries), body.Count)
	assert.Len(t, body.Constituents, body.Count)

	names := make(map[string]bool, body.Count)
	for _, c := range body.Constituents {
		names[c.Name] = true
		assert.Positive(t, c.SpeedDegPerHr, "constituent %s", c.Name)
	}
	assert.True(t, names["M2"])
	assert.True(t, names["K1"])
}

func TestFitEndpoint(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/analysis/fit", fitBody())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.FitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Coef)
	assert.Equal(t, 73, resp.Observations)
	assert.Equal(t, []string{"M2"}, resp.Coef.Names)
	assert.InDelta(t, 1.0, resp.Coef.Amplitude[0], 0.1)
}

func TestFitEndpointErrors(t *testing.T) {
	router := testRouter(t)

	// Malformed JSON.
	req := httptest.NewRequest(http.MethodPost, "/v1/analysis/fit", bytes.NewReader([]byte("{")))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Valid JSON, invalid request.
	w = doJSON(t, router, http.MethodPost, "/v1/analysis/fit", usecase.FitRequest{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown stored series maps to 404.
	w = doJSON(t, router, http.MethodPost, "/v1/analysis/fit", usecase.FitRequest{Series: "nope"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	// Robust two-component fits are rejected as unsupported.
	body := fitBody()
	body.Values2 = make([]float64, len(body.Values))
	body.Options.Method = "robust"
	w = doJSON(t, router, http.MethodPost, "/v1/analysis/fit", body)
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code, w.Body.String())
}

func TestReconstructEndpoint(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodPost, "/v1/analysis/fit", fitBody())
	require.Equal(t, http.StatusOK, w.Code)
	var fit usecase.FitResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &fit))

	w = doJSON(t, router, http.MethodPost, "/v1/analysis/reconstruct", usecase.ReconstructRequest{
		Coef:     fit.Coef,
		Start:    "2025-06-01T00:00:00Z",
		End:      "2025-06-01T01:00:00Z",
		Interval: "15m",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp usecase.ReconstructResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Points, 5)
	assert.Equal(t, "2025-06-01T00:00:00Z", resp.Points[0].Time)

	// Missing coefficients is a bad request.
	w = doJSON(t, router, http.MethodPost, "/v1/analysis/reconstruct", usecase.ReconstructRequest{
		Times: []string{"2025-06-01T00:00:00Z"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestIDMiddleware(t *testing.T) {
	router := testRouter(t)

	w := doJSON(t, router, http.MethodGet, "/health", nil)
	assert.NotEmpty(t, w.Header().Get(requestIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, "abc-123", w.Header().Get(requestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	w := doJSON(t, testRouter(t), http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListSeriesEmpty(t *testing.T) {
	w := doJSON(t, testRouter(t), http.MethodGet, "/v1/series", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Series map[string][]string `json:"series"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Empty(t, body.Series["csv"])
	assert.NotContains(t, body.Series, "netcdf")
}
