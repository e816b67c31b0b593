package report

import (
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/config"
	"factorlab/internal/logger"
	"factorlab/internal/tabular"
)

func testHandlers(t *testing.T) (*Handlers, *gin.Engine) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := &config.ResearchConfig{
		Universe:      []string{"IC.CFE"},
		ArtifactsDir:  t.TempDir(),
		MovAveWindows: []int{5},
		Factors:       config.FactorsConfig{AmtWindows: []int{63}},
	}
	store := tabular.NewStore(nil, tabular.NewRegistry(cfg))
	h := NewHandlers(store, cfg, logger.NewNop())
	return h, gin.New()
}

func TestListLabels(t *testing.T) {
	h, router := testHandlers(t)
	router.GET("/api/v1/labels", h.ListLabels)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/labels", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Labels []string `json:"labels"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body.Labels, "AMT063")
	assert.Contains(t, body.Labels, "ic-AMT063-M005")
	assert.Contains(t, body.Labels, "test_return_o")
}

func TestSummaryNotGeneratedYet(t *testing.T) {
	h, router := testHandlers(t)
	router.GET("/api/v1/summaries/ic", h.GetICSummary)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries/ic", nil)
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSummaryServesCSVRows(t *testing.T) {
	h, router := testHandlers(t)
	router.GET("/api/v1/summaries/gp", h.GetGPSummary)

	dir := filepath.Join(h.cfg.ArtifactsDir, "summaries")
	require.NoError(t, os.MkdirAll(dir, 0o755))
	csv := "factor,obs,sharpe\nAMT063-M005,252,1.250000\nSGM021-M005,252,0.700000\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gp_tests_summary.csv"), []byte(csv), 0o644))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/summaries/gp", nil)
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Rows []map[string]string `json:"rows"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Rows, 2)
	assert.Equal(t, "AMT063-M005", body.Rows[0]["factor"])
	assert.Equal(t, "1.250000", body.Rows[0]["sharpe"])
}

func TestJSONSafe(t *testing.T) {
	assert.Equal(t, 0.0, jsonSafe(math.NaN()))
	assert.Equal(t, 0.0, jsonSafe(math.Inf(1)))
	assert.Equal(t, 1.5, jsonSafe(1.5))
}
