// Package eval drives one evaluation pass over a dataset: detect and select
// per image, ratchet the class thresholds across the corpus, prune, persist,
// suppress and hand the final table to the dataset evaluator.
package eval

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/MeKo-Tech/rcnneval/internal/threshold"
)

const (
	// DefaultNMS is the IoU above which a lower-scoring box is suppressed.
	DefaultNMS = 0.3
	// DefaultDetThreshold is the per-class score floor in detection mode.
	DefaultDetThreshold = 0.05

	boundedPerImageFactor = 40
	boundedPerImage       = 100
	unboundedPerImage     = 10000
)

// Config holds the settings of one evaluation pass.
type Config struct {
	Proposal     bool    // score a dense window grid instead of dataset regions
	NMS          float64 // IoU threshold of the final suppression
	DetThreshold float64 // class threshold seed and suppression floor
	OutputDir    string  // where detections.gob and the report are written
	Reuse        bool    // load detections.gob instead of recomputing when present
}

// DefaultConfig returns detection mode with the standard floor and NMS.
func DefaultConfig() Config {
	return Config{
		NMS:          DefaultNMS,
		DetThreshold: DefaultDetThreshold,
		OutputDir:    "output",
	}
}

// Validate checks the pass-level settings.
func (c Config) Validate() error {
	if c.OutputDir == "" {
		return errors.New("output directory must be set")
	}
	if c.NMS < 0 || c.NMS > 1 {
		return fmt.Errorf("nms threshold must be within [0,1], got %g", c.NMS)
	}
	return nil
}

// Budgets returns how many detections a class may keep over the whole
// dataset and per image. Only detection passes over VOC-style datasets are
// bounded; everything else keeps up to 10000 per image with no corpus cap.
func Budgets(datasetName string, numImages int, proposal bool) (maxPerSet, maxPerImage int) {
	if !proposal && boundedDataset(datasetName) {
		return boundedPerImageFactor * numImages, boundedPerImage
	}
	return threshold.Unbounded, unboundedPerImage
}

func boundedDataset(name string) bool {
	return strings.Contains(name, "voc") ||
		strings.Contains(name, "pascal") ||
		strings.Contains(name, "objectnet3d")
}

// Seed returns the initial class threshold for the pass.
func (c Config) Seed() float64 {
	if c.Proposal {
		return math.Inf(-1)
	}
	return c.DetThreshold
}
