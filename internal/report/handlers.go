package report

import (
	"encoding/csv"
	"math"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"

	"factorlab/internal/config"
	"factorlab/internal/errors"
	"factorlab/internal/logger"
	"factorlab/internal/perf"
	"factorlab/internal/tabular"
)

// Handlers reads result tables and summary artifacts. All endpoints
// are read-only.
type Handlers struct {
	store *tabular.Store
	cfg   *config.ResearchConfig
	log   logger.Logger
}

func NewHandlers(store *tabular.Store, cfg *config.ResearchConfig, log logger.Logger) *Handlers {
	return &Handlers{store: store, cfg: cfg, log: log}
}

// Health reports database connectivity.
func (h *Handlers) Health(c *gin.Context) {
	if err := h.store.HealthCheck(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// ListLabels enumerates every result label the registry knows.
func (h *Handlers) ListLabels(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"labels": h.store.Registry().Labels()})
}

type navPoint struct {
	TradeDate string  `json:"trade_date"`
	NetRet    float64 `json:"netret"`
	NAV       float64 `json:"nav"`
}

func (h *Handlers) readSimu(c *gin.Context) ([]tabular.Row, bool) {
	sid := c.Param("sid")
	conds := []tabular.Cond{}
	if bgn := c.Query("bgn"); bgn != "" {
		conds = append(conds, tabular.Cond{Col: "trade_date", Op: ">=", Val: bgn})
	}
	if stp := c.Query("stp"); stp != "" {
		conds = append(conds, tabular.Cond{Col: "trade_date", Op: "<", Val: stp})
	}
	rows, err := h.store.ReadConditions(c.Request.Context(), "simu_"+sid, conds)
	if err != nil {
		h.renderError(c, err)
		return nil, false
	}
	return rows, true
}

// GetNAV returns the net return and NAV series of one simulation.
// Optional bgn/stp query parameters bound the window.
func (h *Handlers) GetNAV(c *gin.Context) {
	rows, ok := h.readSimu(c)
	if !ok {
		return
	}
	points := make([]navPoint, 0, len(rows))
	for _, r := range rows {
		// 值列顺序: rawret, dltwgt, fee, netret, nav
		points = append(points, navPoint{
			TradeDate: r.Keys[0],
			NetRet:    jsonSafe(r.Values[3]),
			NAV:       jsonSafe(r.Values[4]),
		})
	}
	c.JSON(http.StatusOK, gin.H{"sid": c.Param("sid"), "points": points})
}

// GetIndicators evaluates performance indicators over the simulation's
// net return series.
func (h *Handlers) GetIndicators(c *gin.Context) {
	rows, ok := h.readSimu(c)
	if !ok {
		return
	}
	if len(rows) == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "no simulation rows in range"})
		return
	}
	returns := make([]float64, len(rows))
	for i, r := range rows {
		returns[i] = r.Values[3]
	}
	ind := perf.Evaluate(returns)
	c.JSON(http.StatusOK, gin.H{
		"sid":           c.Param("sid"),
		"obs":           len(returns),
		"annual_return": jsonSafe(ind.AnnualReturn),
		"annual_vol":    jsonSafe(ind.AnnualVol),
		"sharpe":        jsonSafe(ind.SharpeRatio),
		"max_drawdown":  jsonSafe(ind.MaxDrawdown),
		"final_nav":     jsonSafe(ind.FinalNAV),
	})
}

func (h *Handlers) GetICSummary(c *gin.Context) {
	h.serveSummary(c, "ic_tests_summary.csv")
}

func (h *Handlers) GetGPSummary(c *gin.Context) {
	h.serveSummary(c, "gp_tests_summary.csv")
}

func (h *Handlers) GetSimuSummary(c *gin.Context) {
	h.serveSummary(c, "simulations_summary.csv")
}

// serveSummary renders a summary CSV artifact as a JSON record list.
// The summary stages own the files; absence means the stage has not
// run yet.
func (h *Handlers) serveSummary(c *gin.Context, name string) {
	path := filepath.Join(h.cfg.ArtifactsDir, "summaries", name)
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			c.JSON(http.StatusNotFound, gin.H{"error": "summary not generated yet", "file": name})
			return
		}
		h.renderError(c, err)
		return
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		h.renderError(c, err)
		return
	}
	if len(records) == 0 {
		c.JSON(http.StatusOK, gin.H{"rows": []gin.H{}})
		return
	}
	header := records[0]
	rows := make([]map[string]string, 0, len(records)-1)
	for _, rec := range records[1:] {
		row := make(map[string]string, len(header))
		for i, col := range header {
			if i < len(rec) {
				row[col] = rec[i]
			}
		}
		rows = append(rows, row)
	}
	c.JSON(http.StatusOK, gin.H{"rows": rows})
}

func (h *Handlers) renderError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	if app, ok := err.(*errors.AppError); ok && app.Code == errors.ErrCodeUnknownLabel {
		status = http.StatusNotFound
	}
	h.log.Error("report request failed", "path", c.FullPath(), "error", err)
	c.JSON(status, gin.H{"error": err.Error()})
}

// jsonSafe maps NaN and infinities to zero; encoding/json rejects them.
func jsonSafe(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}

func requestLogMiddleware(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Info("http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency_ms", time.Since(start).Milliseconds())
	}
}
