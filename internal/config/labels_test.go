package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLabelFormats(t *testing.T) {
	assert.Equal(t, "AMT063", AmtLabel(63))
	assert.Equal(t, "SGM021", SgmLabel(21))
	assert.Equal(t, "SIZE252", SizeLabel(252))
	assert.Equal(t, "BETA063", BetaLabel(63))
	assert.Equal(t, "BETA_D126", BetaDiffLabel(126))
	assert.Equal(t, "CTP063T10", CxLabel("CTP", 63, 1.0))
	assert.Equal(t, "CVR021T03", CxLabel("CVR", 21, 0.3))

	hl, hs, dl, ds := PosLabels(5)
	assert.Equal(t, "POSHLQ05", hl)
	assert.Equal(t, "POSHSQ05", hs)
	assert.Equal(t, "POSDLQ05", dl)
	assert.Equal(t, "POSDSQ05", ds)

	p, r := SmtLabels(5, 0.2)
	assert.Equal(t, "SMTP005T02", p)
	assert.Equal(t, "SMTR005T02", r)

	assert.Equal(t, "AMT063-M005", MALabel("AMT063", 5))
}

func TestFactorLabelsEnumeration(t *testing.T) {
	f := &FactorsConfig{
		AmtWindows:  []int{63},
		BetaWindows: []int{63, 126, 252},
		CxWindows:   map[string][]int{"CSP": {63}, "CTR": {21}},
		TopProps:    []float64{0.3, 1.0},
	}
	labels := FactorLabels(f)

	assert.Contains(t, labels, "AMT063")
	assert.Contains(t, labels, "BETA063")
	assert.Contains(t, labels, "BETA_D126")
	assert.Contains(t, labels, "BETA_D252")
	assert.NotContains(t, labels, "BETA_D063")
	assert.Contains(t, labels, "CSP063T03")
	assert.Contains(t, labels, "CTR021T10")
	assert.IsIncreasing(t, labels)
}
