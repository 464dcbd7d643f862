package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/MeKo-Tech/rcnneval/internal/batcher"
	"github.com/MeKo-Tech/rcnneval/internal/detector"
	"github.com/MeKo-Tech/rcnneval/internal/eval"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
)

// Oracle backends.
const (
	BackendONNX   = "onnx"
	BackendReplay = "replay"
)

// Config represents the complete configuration of an evaluation run. It is
// loaded from configuration files, environment variables and command-line flags.
type Config struct {
	// Global settings
	LogLevel string `mapstructure:"log_level" yaml:"log_level" json:"log_level"`
	Verbose  bool   `mapstructure:"verbose" yaml:"verbose" json:"verbose"`

	// Dataset and output
	Dataset         string `mapstructure:"dataset" yaml:"dataset" json:"dataset"`
	DataDir         string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
	OutputDir       string `mapstructure:"output_dir" yaml:"output_dir" json:"output_dir"`
	ReuseDetections bool   `mapstructure:"reuse_detections" yaml:"reuse_detections" json:"reuse_detections"`

	// Scoring mode
	IsRPN         bool      `mapstructure:"is_rpn" yaml:"is_rpn" json:"is_rpn"`
	Multiscale    bool      `mapstructure:"multiscale" yaml:"multiscale" json:"multiscale"`
	Extrapolating bool      `mapstructure:"extrapolating" yaml:"extrapolating" json:"extrapolating"`
	PixelMeans    []float64 `mapstructure:"pixel_means" yaml:"pixel_means" json:"pixel_means"`
	DedupBoxes    float64   `mapstructure:"dedup_boxes" yaml:"dedup_boxes" json:"dedup_boxes"`
	Eps           float64   `mapstructure:"eps" yaml:"eps" json:"eps"`

	Test    TestConfig    `mapstructure:"test" yaml:"test" json:"test"`
	Train   TrainConfig   `mapstructure:"train" yaml:"train" json:"train"`
	Grid    GridConfig    `mapstructure:"grid" yaml:"grid" json:"grid"`
	Oracle  OracleConfig  `mapstructure:"oracle" yaml:"oracle" json:"oracle"`
	Monitor MonitorConfig `mapstructure:"monitor" yaml:"monitor" json:"monitor"`
}

// TestConfig contains inference-time settings.
type TestConfig struct {
	ScalesBase     []float64 `mapstructure:"scales_base" yaml:"scales_base" json:"scales_base"`
	Scales         []float64 `mapstructure:"scales" yaml:"scales" json:"scales"`
	SVM            bool      `mapstructure:"svm" yaml:"svm" json:"svm"`
	BBoxReg        bool      `mapstructure:"bbox_reg" yaml:"bbox_reg" json:"bbox_reg"`
	Subcls         bool      `mapstructure:"subcls" yaml:"subcls" json:"subcls"`
	Viewpoint      bool      `mapstructure:"viewpoint" yaml:"viewpoint" json:"viewpoint"`
	IsPatch        bool      `mapstructure:"is_patch" yaml:"is_patch" json:"is_patch"`
	NMS            float64   `mapstructure:"nms" yaml:"nms" json:"nms"`
	DetThreshold   float64   `mapstructure:"det_threshold" yaml:"det_threshold" json:"det_threshold"`
	RoiNum         int       `mapstructure:"roi_num" yaml:"roi_num" json:"roi_num"`
	PatchBatchSize int       `mapstructure:"patch_batch_size" yaml:"patch_batch_size" json:"patch_batch_size"`
}

// TrainConfig holds the training scales the proposal windows were laid out on.
type TrainConfig struct {
	Scales []float64 `mapstructure:"scales" yaml:"scales" json:"scales"`
}

// GridConfig controls proposal window generation.
type GridConfig struct {
	Stride  float64   `mapstructure:"stride" yaml:"stride" json:"stride"`
	Aspects []float64 `mapstructure:"aspects" yaml:"aspects" json:"aspects"`
}

// OracleConfig selects the scoring backend.
type OracleConfig struct {
	Backend     string `mapstructure:"backend" yaml:"backend" json:"backend"`
	ModelPath   string `mapstructure:"model_path" yaml:"model_path" json:"model_path"`
	LibraryPath string `mapstructure:"library_path" yaml:"library_path" json:"library_path"`
	ReplayPath  string `mapstructure:"replay_path" yaml:"replay_path" json:"replay_path"`
	NumThreads  int    `mapstructure:"num_threads" yaml:"num_threads" json:"num_threads"`
}

// MonitorConfig contains progress reporting settings.
type MonitorConfig struct {
	Addr        string `mapstructure:"addr" yaml:"addr" json:"addr"`
	MetricsFile string `mapstructure:"metrics_file" yaml:"metrics_file" json:"metrics_file"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() Config {
	det := detector.DefaultConfig()
	ev := eval.DefaultConfig()
	grid := geometry.DefaultGridConfig()
	return Config{
		LogLevel:   "info",
		DataDir:    "data",
		OutputDir:  ev.OutputDir,
		PixelMeans: batcher.DefaultPixelMeans[:],
		DedupBoxes: det.DedupBoxes,
		Eps:        det.Eps,
		Test: TestConfig{
			ScalesBase:     []float64{1.0},
			Scales:         []float64{1.0},
			BBoxReg:        det.BBoxReg,
			NMS:            ev.NMS,
			DetThreshold:   ev.DetThreshold,
			RoiNum:         det.ProposalTopN,
			PatchBatchSize: batcher.DefaultPatchBatchSize,
		},
		Train: TrainConfig{Scales: []float64{1.0}},
		Grid: GridConfig{
			Stride:  grid.Stride,
			Aspects: grid.Aspects,
		},
		Oracle: OracleConfig{
			Backend:    BackendONNX,
			NumThreads: 0,
		},
	}
}

// Validate validates the configuration and returns any errors.
func (c *Config) Validate() error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !slices.Contains(validLogLevels, c.LogLevel) {
		return fmt.Errorf("invalid log level: %s (must be one of: %s)", c.LogLevel, strings.Join(validLogLevels, ", "))
	}

	if err := validateThreshold(c.Test.NMS, "test.nms"); err != nil {
		return err
	}
	if err := validateScales(c.Test.ScalesBase, "test.scales_base"); err != nil {
		return err
	}
	if c.Multiscale && c.Extrapolating {
		if err := validateScales(c.Test.Scales, "test.scales"); err != nil {
			return err
		}
	}
	if c.IsRPN {
		if err := validateScales(c.Train.Scales, "train.scales"); err != nil {
			return err
		}
		if c.Test.RoiNum <= 0 {
			return fmt.Errorf("invalid test.roi_num: %d (must be positive)", c.Test.RoiNum)
		}
	}
	if len(c.PixelMeans) != 3 {
		return fmt.Errorf("invalid pixel_means: need 3 values, got %d", len(c.PixelMeans))
	}
	if c.DedupBoxes < 0 {
		return fmt.Errorf("invalid dedup_boxes: %g (must be >= 0)", c.DedupBoxes)
	}
	if c.Test.PatchBatchSize <= 0 {
		return fmt.Errorf("invalid test.patch_batch_size: %d (must be positive)", c.Test.PatchBatchSize)
	}
	if c.Grid.Stride <= 0 {
		return fmt.Errorf("invalid grid.stride: %g (must be positive)", c.Grid.Stride)
	}

	validBackends := []string{BackendONNX, BackendReplay}
	if !slices.Contains(validBackends, c.Oracle.Backend) {
		return fmt.Errorf("invalid oracle backend: %s (must be one of: %s)", c.Oracle.Backend, strings.Join(validBackends, ", "))
	}
	return nil
}

// ToDetectorConfig converts to detector.Config.
func (c *Config) ToDetectorConfig() detector.Config {
	cfg := detector.DefaultConfig()
	cfg.Batcher.PixelMeans = [3]float64{c.PixelMeans[0], c.PixelMeans[1], c.PixelMeans[2]}
	cfg.Batcher.Scales = c.Test.ScalesBase
	if c.Multiscale && c.Extrapolating {
		cfg.Batcher.RegionScales = c.Test.Scales
	}
	cfg.Batcher.PatchBatchSize = c.Test.PatchBatchSize
	cfg.DedupBoxes = c.DedupBoxes
	if c.Eps > 0 {
		cfg.Eps = c.Eps
	}
	cfg.RawScores = c.Test.SVM
	cfg.BBoxReg = c.Test.BBoxReg
	cfg.Subclass = c.Test.Subcls
	cfg.Viewpoint = c.Test.Viewpoint
	cfg.Patch = c.Test.IsPatch
	cfg.ProposalTopN = c.Test.RoiNum
	cfg.ProposalScales = c.Train.Scales
	cfg.Grid = geometry.GridConfig{
		Scales:  c.Train.Scales,
		Aspects: c.Grid.Aspects,
		Stride:  c.Grid.Stride,
	}
	return cfg
}

// ToEvalConfig converts to eval.Config.
func (c *Config) ToEvalConfig() eval.Config {
	return eval.Config{
		Proposal:     c.IsRPN,
		NMS:          c.Test.NMS,
		DetThreshold: c.Test.DetThreshold,
		OutputDir:    c.OutputDir,
		Reuse:        c.ReuseDetections,
	}
}

// validateThreshold validates that a value is between 0.0 and 1.0.
func validateThreshold(value float64, name string) error {
	if value < 0.0 || value > 1.0 {
		return fmt.Errorf("invalid %s: %.2f (must be between 0.0 and 1.0)", name, value)
	}
	return nil
}

// validateScales requires a non-empty list of positive factors.
func validateScales(scales []float64, name string) error {
	if len(scales) == 0 {
		return fmt.Errorf("invalid %s: at least one scale is required", name)
	}
	for _, s := range scales {
		if s <= 0 {
			return fmt.Errorf("invalid %s: %g (scales must be positive)", name, s)
		}
	}
	return nil
}
