// Package batcher turns a source image and its candidate regions into the
// blobs consumed by the scoring network: a multi-scale image pyramid with
// level-tagged regions, or a stack of fixed-size per-region patches.
package batcher

import "github.com/MeKo-Tech/rcnneval/internal/geometry"

// DefaultPixelMeans are the BGR channel means subtracted before scoring.
var DefaultPixelMeans = [3]float64{102.9801, 115.9465, 122.7717}

const (
	// DefaultPatchBatchSize bounds how many patches are scored per call.
	DefaultPatchBatchSize = 128
)

// Config holds pyramid and patch settings.
type Config struct {
	PixelMeans     [3]float64 // subtracted per channel, BGR order
	Scales         []float64  // pyramid scales for the image blob
	RegionScales   []float64  // scales used to project regions; defaults to Scales
	PatchSize      int        // side of per-region patches
	PatchBatchSize int        // patches per scoring call
}

// DefaultConfig returns a single-scale pyramid with canonical patches.
func DefaultConfig() Config {
	return Config{
		PixelMeans:     DefaultPixelMeans,
		Scales:         []float64{1.0},
		PatchSize:      geometry.CanonicalSide,
		PatchBatchSize: DefaultPatchBatchSize,
	}
}

func (c Config) regionScales() []float64 {
	if len(c.RegionScales) > 0 {
		return c.RegionScales
	}
	return c.Scales
}

func (c Config) patchSize() int {
	if c.PatchSize > 0 {
		return c.PatchSize
	}
	return geometry.CanonicalSide
}

func (c Config) patchBatchSize() int {
	if c.PatchBatchSize > 0 {
		return c.PatchBatchSize
	}
	return DefaultPatchBatchSize
}
