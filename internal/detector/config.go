package detector

import (
	"errors"
	"fmt"

	"github.com/MeKo-Tech/rcnneval/internal/batcher"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
)

// ErrUnsupportedClassCount is returned when proposal mode is asked to pool
// sub-class scores for a class count it has no mapping convention for.
var ErrUnsupportedClassCount = errors.New("unsupported number of classes for proposal scoring")

// DefaultProposalTopN is the number of windows kept per image in proposal mode.
const DefaultProposalTopN = 2000

// Config selects how raw network outputs are turned into per-region tables.
type Config struct {
	Batcher batcher.Config

	DedupBoxes float64 // quantization for duplicate regions; 0 disables
	Eps        float64 // widening applied when decoding deltas

	RawScores bool // use pre-normalization scores instead of probabilities
	BBoxReg   bool // decode regression deltas instead of repeating the input boxes
	Subclass  bool // read the dedicated sub-class output
	Viewpoint bool // read the viewpoint output
	Patch     bool // regions are scored as independent fixed-size patches

	ProposalTopN   int              // windows kept per image in proposal mode
	ProposalScales []float64        // scales the proposal windows were laid out on
	Grid           geometry.GridConfig
}

// DefaultConfig returns probability scores with box regression enabled.
func DefaultConfig() Config {
	return Config{
		Batcher:        batcher.DefaultConfig(),
		DedupBoxes:     1.0 / 16.0,
		Eps:            geometry.DefaultEps,
		BBoxReg:        true,
		ProposalTopN:   DefaultProposalTopN,
		ProposalScales: []float64{1.0},
		Grid:           geometry.DefaultGridConfig(),
	}
}

func validateConfig(cfg Config) error {
	if cfg.DedupBoxes < 0 {
		return fmt.Errorf("dedup granularity must be >= 0, got %g", cfg.DedupBoxes)
	}
	if len(cfg.Batcher.Scales) == 0 {
		return errors.New("at least one pyramid scale is required")
	}
	for _, s := range cfg.Batcher.Scales {
		if s <= 0 {
			return fmt.Errorf("pyramid scales must be positive, got %g", s)
		}
	}
	return nil
}

// ValidateProposalClassCount rejects class counts proposal scoring cannot pool.
func ValidateProposalClassCount(numClasses int) error {
	switch numClasses {
	case 2, 4, 13, 21:
		return nil
	default:
		return fmt.Errorf("%w: %d (supported: 2, 4, 13, 21)", ErrUnsupportedClassCount, numClasses)
	}
}
