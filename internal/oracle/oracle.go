// Package oracle defines the boundary to the scoring network. The rest of the
// pipeline treats the network as a single batched call that maps an image blob
// plus candidate regions to score, delta and viewpoint tables.
package oracle

import (
	"context"
	"errors"
	"fmt"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
)

// Names of the network blobs, shared by every backend.
const (
	InputData      = "data"
	InputRegions   = "rois"
	InputGrid      = "boxes_grid"
	OutputScore    = "cls_score"
	OutputProb     = "cls_prob"
	OutputSubclass = "subcls_prob"
	OutputDeltas   = "bbox_pred"
	OutputViews    = "view_pred"
	OutputRegions  = "rois_sub"
)

// ErrMissingOutput is returned when a configured mode needs a blob the network did not produce.
var ErrMissingOutput = errors.New("network output missing")

// ErrOutputShape is returned when a blob does not have one row per region and
// the columns the configured class counts call for.
var ErrOutputShape = errors.New("network output has unexpected shape")

// Input is one batch handed to the network.
type Input struct {
	Data    blob.Tensor  // [N, 3, H, W] pyramid levels or patches
	Regions *blob.Matrix // R x 5 (level, x1, y1, x2, y2); nil in patch mode
	Grid    *blob.Matrix // dense windows in proposal mode; nil otherwise
}

// Output holds every table the network may emit. Absent blobs are nil.
type Output struct {
	ClassScores   *blob.Matrix // raw class scores before normalization
	ClassProbs    *blob.Matrix // normalized class probabilities
	SubclassProbs *blob.Matrix // sub-class probabilities
	BoxDeltas     *blob.Matrix // 4 deltas per class
	Views         *blob.Matrix // 3 viewpoint angles per class
	Regions       *blob.Matrix // regions the network actually scored (proposal mode)
}

// Require returns m or an ErrMissingOutput naming the blob.
func Require(name string, m *blob.Matrix) (*blob.Matrix, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingOutput, name)
	}
	return m, nil
}

// RequireShape is Require plus a rows x cols check.
func RequireShape(name string, m *blob.Matrix, rows, cols int) (*blob.Matrix, error) {
	m, err := Require(name, m)
	if err != nil {
		return nil, err
	}
	if m.Rows != rows || m.Cols != cols {
		return nil, fmt.Errorf("%w: %s is %dx%d, want %dx%d", ErrOutputShape, name, m.Rows, m.Cols, rows, cols)
	}
	return m, nil
}

// Oracle scores one batch. Implementations are stateless across calls.
type Oracle interface {
	Score(ctx context.Context, in Input) (Output, error)
}

// Func adapts a plain function to Oracle.
type Func func(ctx context.Context, in Input) (Output, error)

// Score calls f.
func (f Func) Score(ctx context.Context, in Input) (Output, error) { return f(ctx, in) }

// Set assigns a named output table.
func (o *Output) Set(name string, m *blob.Matrix) error {
	switch name {
	case OutputScore:
		o.ClassScores = m
	case OutputProb:
		o.ClassProbs = m
	case OutputSubclass:
		o.SubclassProbs = m
	case OutputDeltas:
		o.BoxDeltas = m
	case OutputViews:
		o.Views = m
	case OutputRegions:
		o.Regions = m
	default:
		return fmt.Errorf("unknown network output %q", name)
	}
	return nil
}

// KnownOutputs lists the blob names Output can hold.
func KnownOutputs() []string {
	return []string{OutputScore, OutputProb, OutputSubclass, OutputDeltas, OutputViews, OutputRegions}
}
