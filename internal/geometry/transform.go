// Package geometry implements the box arithmetic of the detection post-processing:
// pyramid projection, delta decoding, clipping and rescaling. Box blocks are laid
// out four columns per class (x1, y1, x2, y2), so every function that walks
// coordinates does so with a stride of four.
package geometry

import (
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"gonum.org/v1/gonum/floats"
)

const (
	// CanonicalSide is the patch side the scoring network was trained on.
	CanonicalSide = 224

	// DefaultEps widens decoded boxes so zero-size inputs stay finite.
	DefaultEps = 1e-14
)

// ProjectRegions projects image regions into the pyramid built from scales.
// Each region is assigned the level whose scaled area is closest to
// CanonicalSide^2; ties go to the first such level. With a single scale every
// region lands on level 0.
func ProjectRegions(regions *blob.Matrix, scales []float64) (*blob.Matrix, []int) {
	levels := make([]int, regions.Rows)
	projected := blob.NewMatrix(regions.Rows, regions.Cols)
	if regions.Rows == 0 || len(scales) == 0 {
		return projected, levels
	}

	if len(scales) > 1 {
		target := float64(CanonicalSide * CanonicalSide)
		diffs := make([]float64, len(scales))
		for i := range regions.Rows {
			r := regions.Row(i)
			width := r[2] - r[0] + 1
			height := r[3] - r[1] + 1
			area := width * height
			for l, s := range scales {
				diffs[l] = math.Abs(area*s*s - target)
			}
			levels[i] = floats.MinIdx(diffs)
		}
	}

	for i := range regions.Rows {
		s := scales[levels[i]]
		src := regions.Row(i)
		dst := projected.Row(i)
		for j, v := range src {
			dst[j] = v * s
		}
	}
	return projected, levels
}

// DecodeBoxDeltas applies per-class regression deltas to regions (N x 4).
// deltas is N x 4K with (dx, dy, dw, dh) interleaved per class; the result has
// the same layout with (x1, y1, x2, y2). Zero regions yield a 0 x 4K matrix.
func DecodeBoxDeltas(regions, deltas *blob.Matrix, eps float64) *blob.Matrix {
	if regions.Rows == 0 {
		return blob.NewMatrix(0, deltas.Cols)
	}

	out := blob.NewMatrix(deltas.Rows, deltas.Cols)
	for i := range regions.Rows {
		r := regions.Row(i)
		width := r[2] - r[0] + eps
		height := r[3] - r[1] + eps
		ctrX := r[0] + 0.5*width
		ctrY := r[1] + 0.5*height

		d := deltas.Row(i)
		o := out.Row(i)
		for k := 0; k+3 < deltas.Cols; k += 4 {
			predCtrX := d[k]*width + ctrX
			predCtrY := d[k+1]*height + ctrY
			predW := math.Exp(d[k+2]) * width
			predH := math.Exp(d[k+3]) * height

			o[k] = predCtrX - 0.5*predW
			o[k+1] = predCtrY - 0.5*predH
			o[k+2] = predCtrX + 0.5*predW
			o[k+3] = predCtrY + 0.5*predH
		}
	}
	return out
}

// ClipToImage clamps every box block of boxes to [0, width-1] x [0, height-1].
// The matrix is modified in place and returned.
func ClipToImage(boxes *blob.Matrix, height, width int) *blob.Matrix {
	maxX := float64(width - 1)
	maxY := float64(height - 1)
	for i := range boxes.Rows {
		row := boxes.Row(i)
		for k := 0; k+3 < boxes.Cols; k += 4 {
			row[k] = math.Max(math.Min(row[k], maxX), 0)
			row[k+1] = math.Max(math.Min(row[k+1], maxY), 0)
			row[k+2] = math.Max(math.Min(row[k+2], maxX), 0)
			row[k+3] = math.Max(math.Min(row[k+3], maxY), 0)
		}
	}
	return boxes
}

// RescaleByLevel divides each row by the scale of its pyramid level, in place.
func RescaleByLevel(boxes *blob.Matrix, levels []int, scales []float64) *blob.Matrix {
	for i := range boxes.Rows {
		s := scales[levels[i]]
		row := boxes.Row(i)
		for j := range row {
			row[j] /= s
		}
	}
	return boxes
}

// TileRegions repeats the N x 4 regions once per class, giving N x 4K.
func TileRegions(regions *blob.Matrix, numClasses int) *blob.Matrix {
	return regions.TileCols(numClasses)
}
