// Package dataset provides the image databases an evaluation runs against:
// the collaborator contract the driver depends on, a registry of known
// dataset names and a YAML manifest implementation with a built-in evaluator.
package dataset

import (
	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/results"
)

// Regions are the candidate boxes of one image. Ground-truth boxes come first
// with their class in GTClasses; proposals carry class 0.
type Regions struct {
	Boxes     *blob.Matrix // R x 4 (x1, y1, x2, y2)
	GTClasses []int        // one per row, 0 for proposals
}

// Dataset is what an evaluation needs from an image database.
type Dataset interface {
	Name() string
	Classes() []string
	NumImages() int
	NumClasses() int
	NumSubclasses() int
	SubclassMapping() []int
	ImagePathAt(i int) string
	Regions(i int) (Regions, error)
	EvaluateDetections(t *results.Table, outputDir string) error
	EvaluateProposals(t *results.Table, outputDir string) error
}
