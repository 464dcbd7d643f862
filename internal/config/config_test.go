package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		errMsg string
	}{
		{"log level", func(c *Config) { c.LogLevel = "trace" }, "invalid log level"},
		{"nms above one", func(c *Config) { c.Test.NMS = 1.2 }, "test.nms"},
		{"no base scales", func(c *Config) { c.Test.ScalesBase = nil }, "test.scales_base"},
		{"negative scale", func(c *Config) { c.Test.ScalesBase = []float64{1, -2} }, "scales must be positive"},
		{"extrapolation scales", func(c *Config) {
			c.Multiscale, c.Extrapolating = true, true
			c.Test.Scales = nil
		}, "test.scales"},
		{"proposal scales", func(c *Config) {
			c.IsRPN = true
			c.Train.Scales = []float64{}
		}, "train.scales"},
		{"proposal top n", func(c *Config) {
			c.IsRPN = true
			c.Test.RoiNum = 0
		}, "test.roi_num"},
		{"pixel means", func(c *Config) { c.PixelMeans = []float64{1, 2} }, "pixel_means"},
		{"dedup", func(c *Config) { c.DedupBoxes = -0.5 }, "dedup_boxes"},
		{"patch batch", func(c *Config) { c.Test.PatchBatchSize = 0 }, "patch_batch_size"},
		{"grid stride", func(c *Config) { c.Grid.Stride = 0 }, "grid.stride"},
		{"backend", func(c *Config) { c.Oracle.Backend = "triton" }, "invalid oracle backend"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}

func TestToDetectorConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PixelMeans = []float64{1, 2, 3}
	cfg.Test.ScalesBase = []float64{0.5, 1}
	cfg.Test.Scales = []float64{0.25, 0.5, 1, 2}
	cfg.Test.SVM = true
	cfg.Test.BBoxReg = false
	cfg.Test.Subcls = true
	cfg.Test.Viewpoint = true
	cfg.Test.IsPatch = true
	cfg.Test.PatchBatchSize = 64
	cfg.Test.RoiNum = 500
	cfg.Train.Scales = []float64{2}
	cfg.Grid.Stride = 8
	cfg.DedupBoxes = 0

	d := cfg.ToDetectorConfig()
	assert.Equal(t, [3]float64{1, 2, 3}, d.Batcher.PixelMeans)
	assert.Equal(t, []float64{0.5, 1}, d.Batcher.Scales)
	assert.Nil(t, d.Batcher.RegionScales, "extrapolation scales need multiscale and extrapolating")
	assert.Equal(t, 64, d.Batcher.PatchBatchSize)
	assert.True(t, d.RawScores)
	assert.False(t, d.BBoxReg)
	assert.True(t, d.Subclass)
	assert.True(t, d.Viewpoint)
	assert.True(t, d.Patch)
	assert.Zero(t, d.DedupBoxes)
	assert.Equal(t, 500, d.ProposalTopN)
	assert.Equal(t, []float64{2}, d.ProposalScales)
	assert.Equal(t, []float64{2}, d.Grid.Scales)
	assert.InDelta(t, 8, d.Grid.Stride, 0)

	cfg.Multiscale, cfg.Extrapolating = true, true
	d = cfg.ToDetectorConfig()
	assert.Equal(t, []float64{0.25, 0.5, 1, 2}, d.Batcher.RegionScales)
}

func TestToEvalConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.IsRPN = true
	cfg.Test.NMS = 0.4
	cfg.Test.DetThreshold = 0.2
	cfg.OutputDir = "out"
	cfg.ReuseDetections = true

	e := cfg.ToEvalConfig()
	assert.True(t, e.Proposal)
	assert.InDelta(t, 0.4, e.NMS, 0)
	assert.InDelta(t, 0.2, e.DetThreshold, 0)
	assert.Equal(t, "out", e.OutputDir)
	assert.True(t, e.Reuse)
	require.NoError(t, e.Validate())
}
