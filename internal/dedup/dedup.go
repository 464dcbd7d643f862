// Package dedup collapses region rows that map to the same pyramid cell so the
// network scores each distinct region once.
package dedup

import (
	"errors"
	"fmt"
	"math"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
)

// hashWeights spread up to five quantized columns over disjoint decimal ranges.
var hashWeights = [...]float64{1, 1e3, 1e6, 1e9, 1e12}

// ErrTooManyColumns is returned for blocks wider than the hash supports.
var ErrTooManyColumns = errors.New("dedup hash supports at most 5 columns")

// Index maps a region block onto its distinct rows.
// For every original row i, Forward[Inverse[i]] is a row with the same key.
type Index struct {
	Keys    []float64 // one key per distinct row, first-occurrence order
	Forward []int     // original row of each distinct key's first occurrence
	Inverse []int     // distinct position of every original row
}

// Build hashes each row of block after quantizing its coordinates by
// granularity. A granularity of zero or less disables deduplication and
// returns the identity mapping.
func Build(block *blob.Matrix, granularity float64) (Index, error) {
	n := block.Rows
	if granularity <= 0 {
		return Identity(n), nil
	}
	if block.Cols > len(hashWeights) {
		return Index{}, fmt.Errorf("%w: got %d", ErrTooManyColumns, block.Cols)
	}

	ix := Index{Inverse: make([]int, n)}
	seen := make(map[float64]int, n)
	for i := range n {
		key := Key(block.Row(i), granularity)
		pos, ok := seen[key]
		if !ok {
			pos = len(ix.Forward)
			seen[key] = pos
			ix.Keys = append(ix.Keys, key)
			ix.Forward = append(ix.Forward, i)
		}
		ix.Inverse[i] = pos
	}
	return ix, nil
}

// Key is the fixed-point linear hash of one row.
func Key(row []float64, granularity float64) float64 {
	var key float64
	for j, v := range row {
		key += math.RoundToEven(v*granularity) * hashWeights[j]
	}
	return key
}

// Identity returns the mapping that keeps all n rows.
func Identity(n int) Index {
	ix := Index{Forward: make([]int, n), Inverse: make([]int, n)}
	for i := range n {
		ix.Forward[i] = i
		ix.Inverse[i] = i
	}
	return ix
}

// Len returns the number of distinct rows.
func (ix Index) Len() int { return len(ix.Forward) }

// Collapsed reports whether any rows were merged.
func (ix Index) Collapsed() bool { return len(ix.Forward) < len(ix.Inverse) }

// Unique selects the distinct rows of m (m has the original row count).
func (ix Index) Unique(m *blob.Matrix) *blob.Matrix {
	return m.GatherRows(ix.Forward)
}

// Expand broadcasts m (one row per distinct key) back to the original rows.
func (ix Index) Expand(m *blob.Matrix) *blob.Matrix {
	return m.GatherRows(ix.Inverse)
}
