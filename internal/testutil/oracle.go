package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
)

// ErrStubFailure is returned by FailingOracle.
var ErrStubFailure = errors.New("stub oracle failure")

// TableOracle answers every call with the leading rows of fixed tables, one
// row per scored region or patch. Nil tables are left out of the output.
type TableOracle struct {
	Scores   *blob.Matrix
	Probs    *blob.Matrix
	Subclass *blob.Matrix
	Deltas   *blob.Matrix
	Views    *blob.Matrix

	mu     sync.Mutex
	calls  int
	inputs []oracle.Input
	offset int
}

// Score implements oracle.Oracle. Consecutive patch batches consume
// consecutive rows; region calls always start at row 0.
func (o *TableOracle) Score(_ context.Context, in oracle.Input) (oracle.Output, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	o.inputs = append(o.inputs, in)

	start, n := 0, 0
	switch {
	case in.Regions != nil:
		n = in.Regions.Rows
	case len(in.Data.Shape) > 0:
		start, n = o.offset, int(in.Data.Shape[0])
		o.offset += n
	}

	take := func(m *blob.Matrix) *blob.Matrix {
		if m == nil {
			return nil
		}
		return m.SliceRows(start, start+n)
	}
	return oracle.Output{
		ClassScores:   take(o.Scores),
		ClassProbs:    take(o.Probs),
		SubclassProbs: take(o.Subclass),
		BoxDeltas:     take(o.Deltas),
		Views:         take(o.Views),
	}, nil
}

// Calls returns how many times Score ran.
func (o *TableOracle) Calls() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.calls
}

// Inputs returns every input seen so far.
func (o *TableOracle) Inputs() []oracle.Input {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]oracle.Input(nil), o.inputs...)
}

// FailingOracle always returns ErrStubFailure.
func FailingOracle() oracle.Oracle {
	return oracle.Func(func(context.Context, oracle.Input) (oracle.Output, error) {
		return oracle.Output{}, ErrStubFailure
	})
}

// RegionOracle derives class probabilities from each scored region with fn.
// It is useful when the number of rows reaching the network is not known up
// front, for example after duplicate collapsing.
func RegionOracle(fn func(region []float64) []float64) oracle.Oracle {
	return oracle.Func(func(_ context.Context, in oracle.Input) (oracle.Output, error) {
		if in.Regions == nil || in.Regions.Rows == 0 {
			return oracle.Output{ClassProbs: blob.NewMatrix(0, 0)}, nil
		}
		rows := make([][]float64, in.Regions.Rows)
		for i := range rows {
			rows[i] = fn(in.Regions.Row(i))
		}
		m, err := blob.FromRows(rows, len(rows[0]))
		if err != nil {
			return oracle.Output{}, err
		}
		return oracle.Output{ClassProbs: m}, nil
	})
}

// GridOracle echoes the proposal grid as the scored regions and derives the
// sub-class probabilities of every window with fn.
func GridOracle(numSubclasses int, fn func(window []float64) []float64) oracle.Oracle {
	return oracle.Func(func(_ context.Context, in oracle.Input) (oracle.Output, error) {
		grid := in.Grid
		if grid == nil {
			return oracle.Output{}, errors.New("grid input missing")
		}
		sub := blob.NewMatrix(grid.Rows, numSubclasses)
		for i := range grid.Rows {
			copy(sub.Row(i), fn(grid.Row(i)))
		}
		return oracle.Output{SubclassProbs: sub, Regions: grid.Clone()}, nil
	})
}
