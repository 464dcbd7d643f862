package batcher

import (
	"image"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
)

// RegionsBlob projects image regions into the pyramid and prepends the level
// index, giving rows of (level, x1, y1, x2, y2).
func RegionsBlob(regions *blob.Matrix, scales []float64) *blob.Matrix {
	projected, levels := geometry.ProjectRegions(regions, scales)
	out := blob.NewMatrix(projected.Rows, projected.Cols+1)
	for i := range projected.Rows {
		row := out.Row(i)
		row[0] = float64(levels[i])
		copy(row[1:], projected.Row(i))
	}
	return out
}

// Blobs is the network input for one region-based scoring call.
type Blobs struct {
	Data         blob.Tensor  // [L, 3, H, W] image pyramid
	Regions      *blob.Matrix // R x 5 level-tagged regions
	ScaleFactors []float64    // one per pyramid level
}

// Build assembles the pyramid and level-tagged regions for one image.
func Build(img image.Image, regions *blob.Matrix, cfg Config) (Blobs, error) {
	data, factors, err := ImagePyramid(img, cfg)
	if err != nil {
		return Blobs{}, err
	}
	return Blobs{
		Data:         data,
		Regions:      RegionsBlob(regions, cfg.regionScales()),
		ScaleFactors: factors,
	}, nil
}
