package detector

import (
	"context"
	"math"
	"testing"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
	"github.com/MeKo-Tech/rcnneval/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sceneRegions(t *testing.T) *blob.Matrix {
	t.Helper()
	return testutil.Matrix(t,
		[]float64{10, 10, 50, 50},
		[]float64{100, 100, 200, 200},
		[]float64{10, 10, 50, 50},
	)
}

func newDetector(t *testing.T, o oracle.Oracle, mutate func(*Config)) *Detector {
	t.Helper()
	cfg := DefaultConfig()
	cfg.BBoxReg = false
	if mutate != nil {
		mutate(&cfg)
	}
	d, err := New(o, cfg)
	require.NoError(t, err)
	return d
}

func TestNew_Validation(t *testing.T) {
	_, err := New(nil, DefaultConfig())
	require.Error(t, err)

	cfg := DefaultConfig()
	cfg.DedupBoxes = -1
	_, err = New(&testutil.TableOracle{}, cfg)
	require.Error(t, err)

	cfg = DefaultConfig()
	cfg.Batcher.Scales = nil
	_, err = New(&testutil.TableOracle{}, cfg)
	require.Error(t, err)
}

func TestDetect_EmptyRegionsSkipsOracle(t *testing.T) {
	o := &testutil.TableOracle{}
	d := newDetector(t, o, nil)
	img := testutil.GenerateScene(testutil.DefaultSceneConfig())

	res, err := d.Detect(context.Background(), img, blob.NewMatrix(0, 4), 21, 5)
	require.NoError(t, err)

	assert.Equal(t, 0, o.Calls())
	assert.Equal(t, [2]int{0, 21}, [2]int{res.Scores.Rows, res.Scores.Cols})
	assert.Equal(t, 84, res.Boxes.Cols)
	assert.Equal(t, 5, res.SubclassScores.Cols)
	assert.Equal(t, 63, res.Views.Cols)
	assert.Equal(t, 0, res.Len())
}

func TestDetect_ExpandsDuplicates(t *testing.T) {
	o := &testutil.TableOracle{Probs: testutil.Matrix(t,
		[]float64{0.8, 0.2},
		[]float64{0.3, 0.7},
	)}
	d := newDetector(t, o, nil)
	img := testutil.GenerateScene(testutil.DefaultSceneConfig())

	res, err := d.Detect(context.Background(), img, sceneRegions(t), 2, 2)
	require.NoError(t, err)

	require.Equal(t, 1, o.Calls())
	assert.Equal(t, 2, o.Inputs()[0].Regions.Rows, "duplicate region scored once")
	assert.Equal(t, []float64{0.8, 0.2, 0.3, 0.7, 0.8, 0.2}, res.Scores.Data)
	assert.Equal(t, res.Scores.Data, res.SubclassScores.Data, "sub-class scores fall back to class scores")
	assert.Equal(t, []float64{10, 10, 50, 50, 10, 10, 50, 50}, res.Boxes.Row(2))
	assert.Equal(t, 3, res.Views.Rows)
	assert.Equal(t, 6, res.Views.Cols)
}

func TestDetect_NoDedupScoresEveryRow(t *testing.T) {
	o := &testutil.TableOracle{Probs: testutil.Matrix(t,
		[]float64{0.8, 0.2}, []float64{0.3, 0.7}, []float64{0.5, 0.5},
	)}
	d := newDetector(t, o, func(c *Config) { c.DedupBoxes = 0 })

	res, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), sceneRegions(t), 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, o.Inputs()[0].Regions.Rows)
	assert.Equal(t, []float64{0.5, 0.5}, res.Scores.Row(2))
}

// Patch mode keeps one row per distinct region; callers must not expect
// the original region count back.
func TestDetect_PatchModeDoesNotReexpand(t *testing.T) {
	o := &testutil.TableOracle{Probs: testutil.Matrix(t,
		[]float64{0.8, 0.2},
		[]float64{0.3, 0.7},
	)}
	d := newDetector(t, o, func(c *Config) { c.Patch = true })

	res, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), sceneRegions(t), 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scores.Rows)
	assert.Equal(t, 2, res.Boxes.Rows)
	assert.Equal(t, []float64{100, 100, 200, 200, 100, 100, 200, 200}, res.Boxes.Row(1))
}

func TestDetect_RawScoresAndOptionalOutputs(t *testing.T) {
	o := &testutil.TableOracle{
		Scores:   testutil.Matrix(t, []float64{-1, 2}),
		Probs:    testutil.Matrix(t, []float64{0.1, 0.9}),
		Subclass: testutil.Matrix(t, []float64{0.2, 0.3, 0.5}),
		Views:    testutil.Matrix(t, []float64{1, 2, 3, 4, 5, 6}),
	}
	d := newDetector(t, o, func(c *Config) {
		c.RawScores = true
		c.Subclass = true
		c.Viewpoint = true
	})
	regions := testutil.Matrix(t, []float64{10, 10, 50, 50})

	res, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), regions, 2, 3)
	require.NoError(t, err)

	assert.Equal(t, []float64{-1, 2}, res.Scores.Data)
	assert.Equal(t, []float64{0.2, 0.3, 0.5}, res.SubclassScores.Data)
	assert.Equal(t, []float64{1, 2, 3, 4, 5, 6}, res.Views.Data)
}

func TestDetect_BoxRegressionIsClipped(t *testing.T) {
	o := &testutil.TableOracle{
		Probs:  testutil.Matrix(t, []float64{0.1, 0.9}),
		Deltas: testutil.Matrix(t, []float64{0, 0, 0, 0, 0, 0, math.Log(100), math.Log(100)}),
	}
	d := newDetector(t, o, func(c *Config) { c.BBoxReg = true })
	img := testutil.GenerateScene(testutil.DefaultSceneConfig())

	res, err := d.Detect(context.Background(), img, testutil.Matrix(t, []float64{10, 10, 50, 50}), 2, 2)
	require.NoError(t, err)

	assert.InDeltaSlice(t, []float64{10, 10, 50, 50}, res.Boxes.Row(0)[:4], 1e-9)
	assert.Equal(t, []float64{0, 0, 319, 239}, res.Boxes.Row(0)[4:])
}

func TestDetect_MissingOutput(t *testing.T) {
	o := &testutil.TableOracle{Probs: testutil.Matrix(t, []float64{0.1, 0.9})}
	d := newDetector(t, o, func(c *Config) { c.BBoxReg = true })

	_, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()),
		testutil.Matrix(t, []float64{10, 10, 50, 50}), 2, 2)
	require.ErrorIs(t, err, oracle.ErrMissingOutput)
}

func TestDetect_RejectsMisshapedOutputs(t *testing.T) {
	wellFormed := func() oracle.Output {
		return oracle.Output{
			ClassProbs:    blob.NewMatrix(2, 2),
			SubclassProbs: blob.NewMatrix(2, 3),
			BoxDeltas:     blob.NewMatrix(2, 8),
			Views:         blob.NewMatrix(2, 6),
		}
	}
	tests := []struct {
		name   string
		mutate func(*oracle.Output)
		want   string
	}{
		{"delta table one row short", func(o *oracle.Output) { o.BoxDeltas = blob.NewMatrix(1, 8) }, oracle.OutputDeltas},
		{"deltas for one class only", func(o *oracle.Output) { o.BoxDeltas = blob.NewMatrix(2, 4) }, oracle.OutputDeltas},
		{"sub-class table too narrow", func(o *oracle.Output) { o.SubclassProbs = blob.NewMatrix(2, 2) }, oracle.OutputSubclass},
		{"sub-class table one row short", func(o *oracle.Output) { o.SubclassProbs = blob.NewMatrix(1, 3) }, oracle.OutputSubclass},
		{"views for one class only", func(o *oracle.Output) { o.Views = blob.NewMatrix(2, 3) }, oracle.OutputViews},
		{"views one row short", func(o *oracle.Output) { o.Views = blob.NewMatrix(1, 6) }, oracle.OutputViews},
		{"probabilities for three classes", func(o *oracle.Output) { o.ClassProbs = blob.NewMatrix(2, 3) }, oracle.OutputProb},
		{"probabilities one row short", func(o *oracle.Output) { o.ClassProbs = blob.NewMatrix(1, 2) }, oracle.OutputProb},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := oracle.Func(func(context.Context, oracle.Input) (oracle.Output, error) {
				out := wellFormed()
				tt.mutate(&out)
				return out, nil
			})
			d := newDetector(t, o, func(c *Config) {
				c.BBoxReg = true
				c.Subclass = true
				c.Viewpoint = true
				c.DedupBoxes = 0
			})
			regions := testutil.Matrix(t, []float64{10, 10, 50, 50}, []float64{100, 100, 200, 200})

			var err error
			require.NotPanics(t, func() {
				_, err = d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), regions, 2, 3)
			})
			require.ErrorIs(t, err, oracle.ErrOutputShape)
			assert.Contains(t, err.Error(), tt.want)
		})
	}

	t.Run("well formed", func(t *testing.T) {
		o := oracle.Func(func(context.Context, oracle.Input) (oracle.Output, error) { return wellFormed(), nil })
		d := newDetector(t, o, func(c *Config) {
			c.BBoxReg = true
			c.Subclass = true
			c.Viewpoint = true
			c.DedupBoxes = 0
		})
		res, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()),
			testutil.Matrix(t, []float64{10, 10, 50, 50}, []float64{100, 100, 200, 200}), 2, 3)
		require.NoError(t, err)
		assert.Equal(t, 2, res.Len())
	})
}

func TestDetectBatched_RejectsMisshapedChunk(t *testing.T) {
	o := &testutil.TableOracle{
		Probs:  testutil.Matrix(t, []float64{0.1, 0.9}, []float64{0.2, 0.8}),
		Deltas: testutil.Matrix(t, []float64{0, 0, 0, 0}, []float64{0, 0, 0, 0}),
	}
	d := newDetector(t, o, func(c *Config) {
		c.BBoxReg = true
		c.Batcher.PatchSize = 8
		c.Batcher.PatchBatchSize = 1
	})
	regions := testutil.Matrix(t, []float64{10, 10, 50, 50}, []float64{100, 100, 200, 200})

	_, err := d.DetectBatched(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), regions, 2, 2)
	require.ErrorIs(t, err, oracle.ErrOutputShape)
}

func TestDetect_OracleFailureIsFatal(t *testing.T) {
	d := newDetector(t, testutil.FailingOracle(), nil)

	_, err := d.Detect(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), sceneRegions(t), 2, 2)
	require.ErrorIs(t, err, testutil.ErrStubFailure)
}

func TestDetectBatched_AssemblesChunks(t *testing.T) {
	probs := testutil.Matrix(t,
		[]float64{0.9, 0.1}, []float64{0.8, 0.2}, []float64{0.7, 0.3},
		[]float64{0.6, 0.4}, []float64{0.5, 0.5},
	)
	o := &testutil.TableOracle{Probs: probs}
	d := newDetector(t, o, func(c *Config) {
		c.Patch = true
		c.Batcher.PatchSize = 8
		c.Batcher.PatchBatchSize = 2
	})
	regions := testutil.Matrix(t,
		[]float64{10, 10, 50, 50}, []float64{10, 10, 50, 50}, []float64{60, 60, 90, 90},
		[]float64{100, 100, 200, 200}, []float64{0, 0, 300, 200},
	)

	res, err := d.DetectBatched(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), regions, 2, 2)
	require.NoError(t, err)

	assert.Equal(t, 3, o.Calls())
	for i, in := range o.Inputs() {
		assert.Nil(t, in.Regions, "call %d", i)
	}
	assert.Equal(t, []int64{1, 3, 8, 8}, o.Inputs()[2].Data.Shape)
	assert.Equal(t, probs.Data, res.Scores.Data, "no duplicate collapsing in batched mode")
	assert.Equal(t, []float64{0, 0, 300, 200, 0, 0, 300, 200}, res.Boxes.Row(4))
}

func TestDetectBatched_ClipsOnce(t *testing.T) {
	o := &testutil.TableOracle{
		Probs:  testutil.Matrix(t, []float64{0.9}, []float64{0.9}),
		Deltas: testutil.Matrix(t, []float64{0, 0, 5, 5}, []float64{0, 0, 0, 0}),
	}
	d := newDetector(t, o, func(c *Config) {
		c.BBoxReg = true
		c.Batcher.PatchSize = 8
		c.Batcher.PatchBatchSize = 1
	})
	regions := testutil.Matrix(t, []float64{100, 100, 200, 200}, []float64{10, 10, 50, 50})

	res, err := d.DetectBatched(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), regions, 1, 1)
	require.NoError(t, err)

	assert.Equal(t, []float64{0, 0, 319, 239}, res.Boxes.Row(0))
	assert.InDeltaSlice(t, []float64{10, 10, 50, 50}, res.Boxes.Row(1), 1e-9)
}

func TestDetectBatched_Empty(t *testing.T) {
	o := &testutil.TableOracle{}
	d := newDetector(t, o, nil)

	res, err := d.DetectBatched(context.Background(), testutil.GenerateScene(testutil.DefaultSceneConfig()), blob.NewMatrix(0, 4), 3, 4)
	require.NoError(t, err)
	assert.Equal(t, 0, o.Calls())
	assert.Equal(t, 12, res.Boxes.Cols)
}
