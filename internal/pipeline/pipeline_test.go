package pipeline

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/config"
)

func testRunner() *Runner {
	cfg := &config.ResearchConfig{
		Universe:      []string{"IC.CFE", "IF.CFE"},
		MovAveWindows: []int{5, 10},
		Factors: config.FactorsConfig{
			AmtWindows:    []int{63},
			SgmWindows:    []int{21},
			BetaWindows:   []int{63, 126},
			CxWindows:     map[string][]int{"CTP": {63}, "CKP": {21, 63}},
			TopProps:      []float64{0.2, 0.4},
			TopPlayerQtys: []int{5},
			SmtWindows:    []int{5},
			SmtLambdas:    []float64{0.2},
		},
		Signals: config.SignalsConfig{
			Fixed:   []config.FixedSignalConfig{{SID: "s001", Weights: map[string]float64{"AMT063-M005": 1}}},
			Dynamic: []config.DynamicSignalConfig{{SID: "s101", Factors: []string{"AMT063-M005"}}},
		},
	}
	return &Runner{cfg: cfg}
}

func TestFactorTaskEnumeration(t *testing.T) {
	r := testRunner()
	tasks := r.factorTasks("overwrite", "20240102", "20240201")

	labels := make([]string, 0, len(tasks))
	for _, task := range tasks {
		labels = append(labels, task.Label)
	}
	// AMT 1, SGM 1, BETA 2 + 1 diff, CX 3 windows x 2 props, POS 1, SMT 1
	assert.Len(t, labels, 13)
	assert.Contains(t, labels, "AMT063")
	assert.Contains(t, labels, "BETA_D126")
	assert.Contains(t, labels, "CKP021T02")
	assert.Contains(t, labels, "CTP063T04")
	assert.NotContains(t, labels, "BETA_D063")
}

func TestCXFamiliesEnumerateSorted(t *testing.T) {
	r := testRunner()
	tasks := r.factorTasks("overwrite", "20240102", "20240201")

	var cx []string
	for _, task := range tasks {
		if task.Label[0] == 'C' {
			cx = append(cx, task.Label)
		}
	}
	require.Len(t, cx, 6)
	assert.Equal(t, []string{
		"CKP021T02", "CKP021T04", "CKP063T02", "CKP063T04",
		"CTP063T02", "CTP063T04",
	}, cx)
}

func TestAveragedLabelsCrossGrids(t *testing.T) {
	r := testRunner()
	labels := r.averagedLabels()

	// 13 raw task units expand to 17 exposure labels (POS emits four,
	// SMT emits two), each averaged over two windows.
	assert.Len(t, labels, 34)
	assert.Contains(t, labels, "AMT063-M005")
	assert.Contains(t, labels, "POSHLQ05-M010")
	assert.Contains(t, labels, "SMTR005T02-M005")
}

func TestSignalAndSimuTasks(t *testing.T) {
	r := testRunner()

	sig := r.signalTasks("overwrite", "20240102", "20240201")
	require.Len(t, sig, 2)
	assert.Equal(t, "s001", sig[0].Label)
	assert.Equal(t, "s101", sig[1].Label)

	assert.Equal(t, []string{"s001", "s101"}, r.sids())

	simu := r.simuTasks("overwrite", "20240102", "20240201")
	require.Len(t, simu, 2)
}

func TestRunRejectsUnknownStage(t *testing.T) {
	r := testRunner()
	err := r.Run(context.Background(), "nope", "", "overwrite", "20240102", "20240201")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown stage")
}
