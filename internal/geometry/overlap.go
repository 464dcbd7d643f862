package geometry

import "math"

// Box is an axis-aligned rectangle in pixel coordinates.
type Box struct {
	X1, Y1, X2, Y2 float64
}

// BoxFromSlice reads the first four values of v.
func BoxFromSlice(v []float64) Box {
	return Box{X1: v[0], Y1: v[1], X2: v[2], Y2: v[3]}
}

// Degenerate reports whether the box has no positive extent.
func (b Box) Degenerate() bool {
	return b.X2 <= b.X1 || b.Y2 <= b.Y1
}

// Area uses the inclusive pixel convention (x2 - x1 + 1).
func (b Box) Area() float64 {
	return (b.X2 - b.X1 + 1) * (b.Y2 - b.Y1 + 1)
}

// IoU computes intersection over union with the inclusive pixel convention.
func IoU(a, b Box) float64 {
	w := math.Min(a.X2, b.X2) - math.Max(a.X1, b.X1) + 1
	h := math.Min(a.Y2, b.Y2) - math.Max(a.Y1, b.Y1) + 1
	if w <= 0 || h <= 0 {
		return 0
	}
	inter := w * h
	union := a.Area() + b.Area() - inter
	if union <= 0 {
		return 0
	}
	return inter / union
}
