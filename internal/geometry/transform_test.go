package geometry

import (
	"math"
	"testing"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProjectRegions_SingleScale(t *testing.T) {
	regions := blob.MustFromRows([][]float64{{0, 0, 9, 9}, {10, 20, 500, 400}}, 4)

	projected, levels := ProjectRegions(regions, []float64{0.5})

	assert.Equal(t, []int{0, 0}, levels)
	assert.Equal(t, []float64{0, 0, 4.5, 4.5, 5, 10, 250, 200}, projected.Data)
}

func TestProjectRegions_PicksClosestArea(t *testing.T) {
	// 112x112 box: at scale 2 the area is exactly 224^2.
	regions := blob.MustFromRows([][]float64{{0, 0, 111, 111}, {0, 0, 447, 447}}, 4)

	projected, levels := ProjectRegions(regions, []float64{1, 2, 0.5})

	assert.Equal(t, []int{1, 2}, levels)
	assert.InDelta(t, 222.0, projected.At(0, 2), 1e-12)
	assert.InDelta(t, 223.5, projected.At(1, 2), 1e-12)
}

func TestProjectRegions_TieGoesToFirstLevel(t *testing.T) {
	// Equal scales produce equal distances.
	regions := blob.MustFromRows([][]float64{{0, 0, 49, 49}}, 4)

	_, levels := ProjectRegions(regions, []float64{3, 3, 3})
	assert.Equal(t, []int{0}, levels)
}

func TestProjectRegions_Empty(t *testing.T) {
	projected, levels := ProjectRegions(blob.NewMatrix(0, 4), []float64{1, 2})
	assert.Equal(t, 0, projected.Rows)
	assert.Equal(t, 4, projected.Cols)
	assert.Empty(t, levels)
}

func TestDecodeBoxDeltas_ZeroDeltasReproduceInput(t *testing.T) {
	regions := blob.MustFromRows([][]float64{{10, 20, 50, 80}, {0, 0, 0, 0}}, 4)
	deltas := blob.NewMatrix(2, 8)

	out := DecodeBoxDeltas(regions, deltas, DefaultEps)

	require.Equal(t, 8, out.Cols)
	for i := range regions.Rows {
		for k := range 2 {
			for c := range 4 {
				assert.InDelta(t, regions.At(i, c), out.At(i, 4*k+c), 1e-9)
			}
		}
	}
}

func TestDecodeBoxDeltas_ShiftAndScale(t *testing.T) {
	regions := blob.MustFromRows([][]float64{{0, 0, 10, 10}}, 4)
	// class 0 untouched, class 1 shifted right by half a width and doubled in height.
	deltas := blob.MustFromRows([][]float64{{0, 0, 0, 0, 0.5, 0, 0, math.Log(2)}}, 8)

	out := DecodeBoxDeltas(regions, deltas, 0)

	assert.InDeltaSlice(t, []float64{0, 0, 10, 10}, out.Row(0)[:4], 1e-9)
	assert.InDeltaSlice(t, []float64{5, -5, 15, 15}, out.Row(0)[4:], 1e-9)
}

func TestDecodeBoxDeltas_EmptyKeepsShape(t *testing.T) {
	out := DecodeBoxDeltas(blob.NewMatrix(0, 4), blob.NewMatrix(0, 84), DefaultEps)
	assert.Equal(t, 0, out.Rows)
	assert.Equal(t, 84, out.Cols)
}

func TestClipToImage(t *testing.T) {
	boxes := blob.MustFromRows([][]float64{{-5, -1, 700, 300, 10, 10, 20, 20}}, 8)

	out := ClipToImage(boxes, 240, 320)

	assert.Same(t, boxes, out)
	assert.Equal(t, []float64{0, 0, 319, 239, 10, 10, 20, 20}, out.Data)
}

func TestRescaleByLevel(t *testing.T) {
	boxes := blob.MustFromRows([][]float64{{10, 10, 20, 20}, {10, 10, 20, 20}}, 4)

	RescaleByLevel(boxes, []int{0, 1}, []float64{2, 0.5})

	assert.Equal(t, []float64{5, 5, 10, 10}, boxes.Row(0))
	assert.Equal(t, []float64{20, 20, 40, 40}, boxes.Row(1))
}

func TestTileRegions(t *testing.T) {
	out := TileRegions(blob.MustFromRows([][]float64{{1, 2, 3, 4}}, 4), 3)
	assert.Equal(t, 12, out.Cols)
	assert.Equal(t, []float64{1, 2, 3, 4}, out.Row(0)[8:])
}
