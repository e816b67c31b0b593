package testret

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"factorlab/internal/tabular"
)

func bar(ts int, vol, amt float64) tabular.MinuteBar {
	return tabular.MinuteBar{
		TS: ts, Open: 100, High: 101, Low: 99, Close: 100,
		Volume: vol, Amount: amt,
	}
}

func TestScanAVRatioOpen(t *testing.T) {
	bars := []tabular.MinuteBar{
		bar(1, 10, 1000),
		bar(2, 20, 4000),
	}
	r, skipped, ok := scanAVRatio(bars, "o")
	assert.True(t, ok)
	assert.Zero(t, skipped)
	assert.Equal(t, 100.0, r)
}

func TestScanAVRatioClose(t *testing.T) {
	bars := []tabular.MinuteBar{
		bar(1, 10, 1000),
		bar(2, 20, 4000),
	}
	r, skipped, ok := scanAVRatio(bars, "c")
	assert.True(t, ok)
	assert.Zero(t, skipped)
	assert.Equal(t, 200.0, r)
}

func TestScanAVRatioSkipsZeroVolume(t *testing.T) {
	bars := []tabular.MinuteBar{
		bar(1, 0, 0),
		bar(2, 0, 0),
		bar(3, 10, 1500),
		bar(4, 0, 0),
	}
	r, skipped, ok := scanAVRatio(bars, "o")
	assert.True(t, ok)
	assert.Equal(t, 2, skipped)
	assert.Equal(t, 150.0, r)

	r, skipped, ok = scanAVRatio(bars, "c")
	assert.True(t, ok)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 150.0, r)
}

func TestScanAVRatioDropsEmptyBars(t *testing.T) {
	empty := tabular.MinuteBar{
		TS:   1,
		Open: math.NaN(), High: math.NaN(), Low: math.NaN(), Close: math.NaN(),
		Volume: 99, Amount: 99,
	}
	bars := []tabular.MinuteBar{empty, bar(2, 10, 1200)}
	r, _, ok := scanAVRatio(bars, "o")
	assert.True(t, ok)
	assert.Equal(t, 120.0, r)

	_, _, ok = scanAVRatio([]tabular.MinuteBar{empty}, "o")
	assert.False(t, ok)
}

func TestScanAVRatioAllZeroVolume(t *testing.T) {
	bars := []tabular.MinuteBar{bar(1, 0, 0), bar(2, 0, 0)}
	_, _, ok := scanAVRatio(bars, "o")
	assert.False(t, ok)
}

func TestLabel(t *testing.T) {
	assert.Equal(t, "test_return_o", Label("o"))
	assert.Equal(t, "test_return_c", Label("c"))
}
