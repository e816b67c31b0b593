package tabular

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/config"
)

func testResearchConfig() *config.ResearchConfig {
	return &config.ResearchConfig{
		Universe: []string{"IC.CFE", "IF.CFE"},
		Factors: config.FactorsConfig{
			AmtWindows:    []int{63, 126},
			SgmWindows:    []int{21},
			BetaWindows:   []int{63, 126},
			CxWindows:     map[string][]int{"CTP": {63}},
			TopProps:      []float64{1.0},
			TopPlayerQtys: []int{5},
			SmtWindows:    []int{5},
			SmtLambdas:    []float64{0.2},
		},
		MovAveWindows: []int{5},
		Signals: config.SignalsConfig{
			Fixed: []config.FixedSignalConfig{
				{SID: "S000", Weights: map[string]float64{"AMT063-M005": 1}},
			},
			Dynamic: []config.DynamicSignalConfig{
				{SID: "S100", Factors: []string{"AMT063-M005"}},
			},
		},
	}
}

func TestRegistryTableNames(t *testing.T) {
	r := NewRegistry(testResearchConfig())

	spec, err := r.Lookup("AMT063")
	require.NoError(t, err)
	assert.Equal(t, "factor_amt063", spec.Name)
	assert.Equal(t, []string{"trade_date", "instrument"}, spec.KeyCols)
	assert.Equal(t, []string{"value"}, spec.ValueCols)

	spec, err = r.Lookup("ic-AMT063-M005")
	require.NoError(t, err)
	assert.Equal(t, "ic_amt063_m005", spec.Name)
	assert.Equal(t, []string{"trade_date"}, spec.KeyCols)
	assert.Equal(t, []string{"pearson", "spearman"}, spec.ValueCols)

	spec, err = r.Lookup("gp-CTP063T10")
	require.NoError(t, err)
	assert.Equal(t, "gp_ctp063t10", spec.Name)
	assert.Equal(t, []string{"rl", "rs", "rh"}, spec.ValueCols)

	spec, err = r.Lookup("sig_S000")
	require.NoError(t, err)
	assert.Equal(t, "sig_s000", spec.Name)

	spec, err = r.Lookup("simu_S100")
	require.NoError(t, err)
	assert.Equal(t, []string{"rawret", "dltwgt", "fee", "netret", "nav"}, spec.ValueCols)
}

func TestRegistryUnknownLabel(t *testing.T) {
	r := NewRegistry(testResearchConfig())
	_, err := r.Lookup("NOPE999")
	assert.Error(t, err)
}

func TestRegistryEnumeratesGrid(t *testing.T) {
	r := NewRegistry(testResearchConfig())
	labels := r.Labels()

	// BETA_D 仅对非基准窗口生成
	assert.Contains(t, labels, "BETA063")
	assert.Contains(t, labels, "BETA126")
	assert.Contains(t, labels, "BETA_D126")
	assert.NotContains(t, labels, "BETA_D063")

	assert.Contains(t, labels, "POSHLQ05")
	assert.Contains(t, labels, "POSDSQ05")
	assert.Contains(t, labels, "SMTP005T02")
	assert.Contains(t, labels, "SMTR005T02-M005")
	assert.Contains(t, labels, "test_return_o")
	assert.Contains(t, labels, "test_return_c")
	assert.Contains(t, labels, "gp-SGM021-M005")
}
