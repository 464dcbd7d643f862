// Package threshold bounds how many detections a class can keep across an
// evaluation pass. Every class owns a min-heap of the best scores seen so far;
// once the heap outgrows the per-class budget, the class threshold ratchets up
// to the smallest score still inside the budget.
package threshold

import (
	"container/heap"
	"log/slog"
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/results"
)

// Unbounded disables the per-class budget.
const Unbounded = math.MaxInt

// scoreHeap is a min-heap of scores.
type scoreHeap []float64

func (h scoreHeap) Len() int           { return len(h) }
func (h scoreHeap) Less(i, j int) bool { return h[i] < h[j] }
func (h scoreHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *scoreHeap) Push(x any)        { *h = append(*h, x.(float64)) }
func (h *scoreHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}

// Controller owns the per-class thresholds of one evaluation pass.
// It is not safe for concurrent use.
type Controller struct {
	thresholds []float64
	heaps      []scoreHeap
	maxPerSet  int
}

// New seeds every class threshold with seed. maxPerSet <= 0 or Unbounded
// disables the ratchet.
func New(numClasses int, seed float64, maxPerSet int) *Controller {
	if maxPerSet <= 0 {
		maxPerSet = Unbounded
	}
	c := &Controller{
		thresholds: make([]float64, numClasses),
		heaps:      make([]scoreHeap, numClasses),
		maxPerSet:  maxPerSet,
	}
	for j := range c.thresholds {
		c.thresholds[j] = seed
	}
	return c
}

// Bounded reports whether the ratchet is active.
func (c *Controller) Bounded() bool { return c.maxPerSet != Unbounded }

// MaxPerSet returns the per-class budget.
func (c *Controller) MaxPerSet() int { return c.maxPerSet }

// Threshold returns the current threshold of class.
func (c *Controller) Threshold(class int) float64 { return c.thresholds[class] }

// Thresholds returns a copy of every class threshold.
func (c *Controller) Thresholds() []float64 {
	return append([]float64(nil), c.thresholds...)
}

// Observe feeds the scores kept for class on one image. When the class has
// now seen more than the budget allows, the lowest scores are dropped and the
// threshold moves to the heap minimum. It reports whether the threshold moved.
func (c *Controller) Observe(class int, scores []float64) bool {
	if !c.Bounded() || len(scores) == 0 {
		return false
	}
	h := &c.heaps[class]
	for _, s := range scores {
		heap.Push(h, s)
	}
	if h.Len() <= c.maxPerSet {
		return false
	}
	for h.Len() > c.maxPerSet {
		heap.Pop(h)
	}
	prev := c.thresholds[class]
	c.thresholds[class] = (*h)[0]
	if c.thresholds[class] == prev {
		return false
	}
	slog.Debug("Raised class threshold", "class", class, "threshold", c.thresholds[class])
	return true
}

// Prune drops, from every stored image, the records scoring below the final
// threshold of their class and returns how many were removed.
func (c *Controller) Prune(t *results.Table) int {
	return t.Filter(func(class int, r results.Record) bool {
		return r.Score >= c.thresholds[class]
	})
}
