package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testYAML = `
app:
  name: factorlab
  env: test
database:
  host: localhost
  port: 5432
  user: factorlab
  password: secret
  dbname: factorlab_test
logging:
  level: debug
research:
  universe: [IC.CFE, IF.CFE, IH.CFE, IM.CFE]
  equity_index: "881001.WI"
  factors:
    amt_windows: [21, 63, 126]
    sgm_windows: [21, 63]
    beta_windows: [21, 63, 126]
    cx_windows:
      CTP: [63, 126]
      CTR: [126]
    top_props: [0.2, 1.0]
  mov_ave_windows: [5, 10]
  signals:
    fixed:
      - sid: S000
        weights:
          SGM021-M005: 1
          CTP063T10-M005: 1
    dynamic:
      - sid: S100
        factors: [SGM021-M005, CTP063T10-M005]
  simulation:
    cost_rate: 0.0005
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "factorlab", cfg.App.Name)
	assert.Equal(t, "localhost", cfg.Database.Host)
	assert.Equal(t, []string{"IC.CFE", "IF.CFE", "IH.CFE", "IM.CFE"}, cfg.Research.Universe)
	assert.Equal(t, []int{21, 63, 126}, cfg.Research.Factors.AmtWindows)
	assert.Equal(t, []int{63, 126}, cfg.Research.Factors.CxWindows["CTP"])
	assert.Equal(t, 0.0005, cfg.Research.Simulation.CostRate)
	require.Len(t, cfg.Research.Signals.Fixed, 1)
	assert.Equal(t, "S000", cfg.Research.Signals.Fixed[0].SID)
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	// Unset fields fall back to defaults.
	assert.Equal(t, "disable", cfg.Database.SSLMode)
	assert.Equal(t, "text", cfg.Logging.Format)
	assert.Equal(t, 1e4, cfg.Research.Factors.MoneyScale)

	dyn := cfg.Research.Signals.Dynamic[0]
	assert.Equal(t, 3, dyn.TrainMonths)
	assert.Equal(t, 1000.0, dyn.RiskAversion)
	assert.Equal(t, 60, dyn.MinModelDays)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("FACTORLAB_DB_HOST", "db.internal")
	t.Setenv("FACTORLAB_DB_PORT", "5433")
	t.Setenv("FACTORLAB_LOG_LEVEL", "warn")

	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.Database.Host)
	assert.Equal(t, 5433, cfg.Database.Port)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestValidateRejectsDuplicateUniverse(t *testing.T) {
	bad := testYAML + `` // copy
	cfg, err := Load(writeConfig(t, bad))
	require.NoError(t, err)
	cfg.Research.Universe = []string{"IC.CFE", "IC.CFE"}
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsEmptySignal(t *testing.T) {
	cfg, err := Load(writeConfig(t, testYAML))
	require.NoError(t, err)
	cfg.Research.Signals.Fixed[0].Weights = nil
	assert.Error(t, cfg.Validate())
}
