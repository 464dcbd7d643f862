package testutil

import (
	"context"
	"image/color"
	"path/filepath"
	"testing"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetProjectRoot(t *testing.T) {
	root, err := GetProjectRoot()
	require.NoError(t, err)
	assert.NotEmpty(t, root)
	assert.True(t, FileExists(filepath.Join(root, "go.mod")))
}

func TestGetTestDataDir(t *testing.T) {
	assert.Contains(t, GetTestDataDir(t), "testdata")
}

func TestEnsureDir(t *testing.T) {
	testDir := filepath.Join(t.TempDir(), "test", "nested", "dir")

	require.NoError(t, EnsureDir(testDir))
	assert.True(t, DirExists(testDir))
	assert.False(t, DirExists(filepath.Join(testDir, "missing")))
}

func TestGenerateScene(t *testing.T) {
	cfg := DefaultSceneConfig()
	img := GenerateScene(cfg)

	assert.Equal(t, cfg.Size.Width, img.Bounds().Dx())
	assert.Equal(t, cfg.Size.Height, img.Bounds().Dy())
	assert.Equal(t, color.RGBAModel.Convert(cfg.Objects[0].Color), img.At(25, 35))
	assert.Equal(t, color.RGBAModel.Convert(cfg.Background), img.At(0, 0))

	boxes := SceneBoxes(cfg)
	require.Len(t, boxes, 2)
	assert.Equal(t, []float64{20, 30, 119, 129}, boxes[0])
}

func TestWriteScenes(t *testing.T) {
	paths := WriteScenes(t, t.TempDir(), 2)
	require.Len(t, paths, 2)
	for _, p := range paths {
		assert.True(t, FileExists(p))
	}
}

func TestTableOracle_RegionRows(t *testing.T) {
	o := &TableOracle{Probs: Matrix(t, []float64{1, 0}, []float64{0, 1}, []float64{0.5, 0.5})}

	out, err := o.Score(context.Background(), oracle.Input{Regions: blob.NewMatrix(2, 5)})
	require.NoError(t, err)
	assert.Equal(t, 2, out.ClassProbs.Rows)
	assert.Nil(t, out.BoxDeltas)
	assert.Equal(t, 1, o.Calls())
}

func TestTableOracle_PatchBatchesAdvance(t *testing.T) {
	o := &TableOracle{Probs: Matrix(t, []float64{1}, []float64{2}, []float64{3})}

	first, err := o.Score(context.Background(), oracle.Input{Data: blob.Tensor{Shape: []int64{2, 3, 1, 1}}})
	require.NoError(t, err)
	second, err := o.Score(context.Background(), oracle.Input{Data: blob.Tensor{Shape: []int64{1, 3, 1, 1}}})
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 2}, first.ClassProbs.Data)
	assert.Equal(t, []float64{3}, second.ClassProbs.Data)
	assert.Len(t, o.Inputs(), 2)
}

func TestFailingOracle(t *testing.T) {
	_, err := FailingOracle().Score(context.Background(), oracle.Input{})
	assert.ErrorIs(t, err, ErrStubFailure)
}
