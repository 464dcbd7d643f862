package batcher

import (
	"image"
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/disintegration/imaging"
)

// Chunk is a half-open range [Start, End) of patch rows.
type Chunk struct {
	Start int
	End   int
}

// Len returns the number of rows in the chunk.
func (c Chunk) Len() int { return c.End - c.Start }

// Chunks splits n items into consecutive chunks of size; the last may be shorter.
func Chunks(n, size int) []Chunk {
	if n <= 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultPatchBatchSize
	}
	count := (n + size - 1) / size
	out := make([]Chunk, 0, count)
	for start := 0; start < n; start += size {
		out = append(out, Chunk{Start: start, End: min(start+size, n)})
	}
	return out
}

// PatchRect returns the crop window for one region. The lower bounds clamp to
// 1 and the upper bounds to the image size, matching how the patch classifier
// was trained.
func PatchRect(region []float64, width, height int) image.Rectangle {
	x1 := int(math.Max(math.Floor(region[0]), 1))
	y1 := int(math.Max(math.Floor(region[1]), 1))
	x2 := int(math.Min(math.Ceil(region[2]), float64(width)))
	y2 := int(math.Min(math.Ceil(region[3]), float64(height)))
	// Not image.Rect: inverted windows must stay empty instead of being swapped.
	return image.Rectangle{Min: image.Pt(x1, y1), Max: image.Pt(x2, y2)}
}

// PatchBlob crops each region out of the image, resizes it to a square patch
// and stacks the patches channel-first into [R, 3, S, S]. Crops with no area
// produce all-zero patches.
func PatchBlob(img image.Image, regions *blob.Matrix, cfg Config) blob.Tensor {
	size := cfg.patchSize()
	plane := size * size
	per := 3 * plane
	out := make([]float32, regions.Rows*per)

	bounds := img.Bounds()
	src := imaging.Clone(img)
	for i := range regions.Rows {
		rect := PatchRect(regions.Row(i), bounds.Dx(), bounds.Dy())
		if rect.Empty() {
			continue
		}
		crop := imaging.Crop(src, rect)
		patch := imaging.Resize(crop, size, size, imaging.Linear)
		fillCHW(out[i*per:(i+1)*per], patch, cfg.PixelMeans)
	}
	return blob.Tensor{Data: out, Shape: []int64{int64(regions.Rows), 3, int64(size), int64(size)}}
}
