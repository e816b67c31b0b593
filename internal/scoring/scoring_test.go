package scoring

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"factorlab/internal/stats"
)

func TestBucketWeights(t *testing.T) {
	wl, ws, wh := BucketWeights(4)
	assert.Equal(t, []float64{0.5, 0.5, 0, 0}, wl)
	assert.Equal(t, []float64{0, 0, 0.5, 0.5}, ws)
	assert.Equal(t, []float64{0.25, 0.25, -0.25, -0.25}, wh)

	// odd universe leaves the middle seat flat in every vector
	wl, ws, wh = BucketWeights(5)
	assert.Zero(t, wl[2])
	assert.Zero(t, ws[2])
	assert.Zero(t, wh[2])
	assert.InDelta(t, 1.0, absSum(wl), 1e-12)
	assert.InDelta(t, 1.0, absSum(ws), 1e-12)
	assert.InDelta(t, 1.0, absSum(wh), 1e-12)
}

func TestBucketReturnsFourInstruments(t *testing.T) {
	// exposures A:4 B:3 C:2 D:1 with returns 2% / -1% / 0% / 3%
	exp := []float64{4, 3, 2, 1}
	ret := []float64{0.02, -0.01, 0.00, 0.03}
	wl, ws, wh := BucketWeights(4)

	rl, rs, rh := bucketReturns(exp, ret, wl, ws, wh)
	assert.InDelta(t, 0.005, rl, 1e-12)
	assert.InDelta(t, 0.015, rs, 1e-12)
	// hedge weights abs-sum to one, so the leg spread shows up halved
	assert.InDelta(t, -0.005, rh, 1e-12)
	assert.InDelta(t, (rl-rs)/2, rh, 1e-12)
}

func TestBucketReturnsMissingReturnPoisonsDate(t *testing.T) {
	exp := []float64{4, 3, 2, 1}
	ret := []float64{0.02, math.NaN(), 0.00, 0.03}
	wl, ws, wh := BucketWeights(4)

	rl, rs, rh := bucketReturns(exp, ret, wl, ws, wh)
	assert.True(t, math.IsNaN(rl))
	// the gap sits in the long leg yet the zero-weighted product is
	// still NaN, so every bucket is poisoned
	assert.True(t, math.IsNaN(rs))
	assert.True(t, math.IsNaN(rh))
}

func TestSpearmanPerfectInverseCrossSection(t *testing.T) {
	exp := []float64{1, 2, 3, 4}
	ret := []float64{4, 3, 2, 1}
	assert.InDelta(t, -1.0, stats.Spearman(exp, ret), 1e-12)
}

func TestICStats(t *testing.T) {
	ics := []float64{0.1, -0.1, 0.2, 0.0}
	mean, std, icir, propPos, propNeg := icStats(ics)
	require.False(t, math.IsNaN(icir))
	assert.InDelta(t, 0.05, mean, 1e-12)
	assert.InDelta(t, mean/std*math.Sqrt(252), icir, 1e-12)
	assert.InDelta(t, 0.5, propPos, 1e-12)
	assert.InDelta(t, 0.25, propNeg, 1e-12)
}

func absSum(xs []float64) float64 {
	s := 0.0
	for _, v := range xs {
		s += math.Abs(v)
	}
	return s
}
