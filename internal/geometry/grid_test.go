package geometry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridBoxes_Layout(t *testing.T) {
	cfg := GridConfig{Scales: []float64{1}, Aspects: []float64{1}, Stride: 32}

	grid := GridBoxes(64, 96, cfg)

	require.Equal(t, 5, grid.Cols)
	// centers at 16, 48 (rows) x 16, 48, 80 (cols)
	assert.Equal(t, 6, grid.Rows)
	first := grid.Row(0)
	assert.InDelta(t, 0.0, first[0], 0)
	assert.InDelta(t, 0.0, first[1], 0)
	assert.InDelta(t, 0.0, first[2], 0)
	assert.InDelta(t, 95.0, first[3], 1e-9)
	assert.InDelta(t, 63.0, first[4], 1e-9)
}

func TestGridBoxes_LevelsAndAspects(t *testing.T) {
	cfg := GridConfig{Scales: []float64{0.5, 1}, Aspects: []float64{0.5, 2}, Stride: 50}

	grid := GridBoxes(100, 100, cfg)

	// level 0: 50x50 -> 1 center, level 1: 100x100 -> 4 centers; two aspects each.
	assert.Equal(t, 2*1+2*4, grid.Rows)
	levels := map[float64]int{}
	for i := range grid.Rows {
		levels[grid.At(i, 0)]++
		row := grid.Row(i)
		assert.LessOrEqual(t, row[1], row[3])
		assert.LessOrEqual(t, row[2], row[4])
	}
	assert.Equal(t, 2, levels[0])
	assert.Equal(t, 8, levels[1])
}

func TestGridBoxes_NoScales(t *testing.T) {
	grid := GridBoxes(100, 100, GridConfig{})
	assert.Equal(t, 0, grid.Rows)
	assert.Equal(t, 5, grid.Cols)
}
