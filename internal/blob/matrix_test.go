package blob

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMatrix_ZeroRowsKeepsColumns(t *testing.T) {
	m := NewMatrix(0, 8)
	assert.Equal(t, 0, m.Rows)
	assert.Equal(t, 8, m.Cols)
	assert.True(t, m.Empty())
	assert.Empty(t, m.Data)
}

func TestFromRows(t *testing.T) {
	m, err := FromRows([][]float64{{1, 2}, {3, 4}}, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Cols)
	assert.InDelta(t, 3.0, m.At(1, 0), 0)

	_, err = FromRows([][]float64{{1, 2}, {3}}, 0)
	require.Error(t, err)

	empty, err := FromRows(nil, 5)
	require.NoError(t, err)
	assert.Equal(t, 5, empty.Cols)
}

func TestNewMatrixFrom_LengthMismatch(t *testing.T) {
	_, err := NewMatrixFrom(2, 2, []float64{1, 2, 3})
	require.Error(t, err)
}

func TestGatherRows(t *testing.T) {
	m := MustFromRows([][]float64{{1, 1}, {2, 2}, {3, 3}}, 2)
	g := m.GatherRows([]int{2, 0, 2})
	assert.Equal(t, []float64{3, 3, 1, 1, 3, 3}, g.Data)

	none := m.GatherRows(nil)
	assert.Equal(t, 0, none.Rows)
	assert.Equal(t, 2, none.Cols)
}

func TestSliceAndSetRows(t *testing.T) {
	m := MustFromRows([][]float64{{1}, {2}, {3}, {4}}, 1)
	s := m.SliceRows(1, 10)
	assert.Equal(t, []float64{2, 3, 4}, s.Data)

	dst := NewMatrix(4, 1)
	require.NoError(t, dst.SetRows(2, MustFromRows([][]float64{{7}, {8}}, 1)))
	assert.Equal(t, []float64{0, 0, 7, 8}, dst.Data)

	require.Error(t, dst.SetRows(3, MustFromRows([][]float64{{7}, {8}}, 1)))
	require.Error(t, dst.SetRows(0, NewMatrix(1, 2)))
}

func TestColumnsAndTile(t *testing.T) {
	m := MustFromRows([][]float64{{0, 1, 2, 3, 4}, {5, 6, 7, 8, 9}}, 5)
	assert.Equal(t, []float64{1, 2, 3, 4, 6, 7, 8, 9}, m.Columns(1, 5).Data)
	assert.Equal(t, []float64{0, 5}, m.Column(0))

	tiled := MustFromRows([][]float64{{1, 2}}, 2).TileCols(3)
	assert.Equal(t, []float64{1, 2, 1, 2, 1, 2}, tiled.Data)
}

func TestHStack(t *testing.T) {
	a := MustFromRows([][]float64{{1}, {2}}, 1)
	b := MustFromRows([][]float64{{3, 4}, {5, 6}}, 2)
	out, err := HStack(a, b)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 3, 4, 2, 5, 6}, out.Data)

	_, err = HStack(a, NewMatrix(3, 1))
	require.Error(t, err)
	_, err = HStack()
	require.Error(t, err)
}

func TestCloneIsDeep(t *testing.T) {
	m := MustFromRows([][]float64{{1, 2}}, 2)
	c := m.Clone()
	c.Set(0, 0, 9)
	assert.InDelta(t, 1.0, m.At(0, 0), 0)
	assert.True(t, SameShape(m, c))
}
