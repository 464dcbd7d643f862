package geometry

import (
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
)

// GridConfig controls dense window generation for proposal mode.
type GridConfig struct {
	Scales  []float64 // pyramid scales the windows are laid out on
	Aspects []float64 // width/height ratios
	Stride  float64   // window spacing in level pixels
}

// DefaultGridConfig returns the window layout used when none is configured.
func DefaultGridConfig() GridConfig {
	return GridConfig{
		Scales:  []float64{0.5, 1.0, 2.0},
		Aspects: []float64{0.5, 1.0, 2.0},
		Stride:  16,
	}
}

// GridBoxes lays canonical-size windows over every pyramid level of an
// height x width image. Rows are (level, x1, y1, x2, y2) in level coordinates.
func GridBoxes(height, width int, cfg GridConfig) *blob.Matrix {
	stride := cfg.Stride
	if stride <= 0 {
		stride = DefaultGridConfig().Stride
	}
	aspects := cfg.Aspects
	if len(aspects) == 0 {
		aspects = []float64{1}
	}

	var rows [][]float64
	for level, s := range cfg.Scales {
		if s <= 0 {
			continue
		}
		levelW := math.Round(float64(width) * s)
		levelH := math.Round(float64(height) * s)
		for _, a := range aspects {
			if a <= 0 {
				continue
			}
			w := CanonicalSide * math.Sqrt(a)
			h := CanonicalSide / math.Sqrt(a)
			for cy := stride / 2; cy < levelH; cy += stride {
				for cx := stride / 2; cx < levelW; cx += stride {
					rows = append(rows, []float64{
						float64(level),
						math.Max(cx-0.5*w, 0),
						math.Max(cy-0.5*h, 0),
						math.Min(cx+0.5*w, levelW-1),
						math.Min(cy+0.5*h, levelH-1),
					})
				}
			}
		}
	}
	return blob.MustFromRows(rows, 5)
}
