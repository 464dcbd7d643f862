package eval

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/MeKo-Tech/rcnneval/internal/common"
	"github.com/MeKo-Tech/rcnneval/internal/dataset"
	"github.com/MeKo-Tech/rcnneval/internal/detector"
	"github.com/MeKo-Tech/rcnneval/internal/results"
	"github.com/MeKo-Tech/rcnneval/internal/selector"
	"github.com/MeKo-Tech/rcnneval/internal/suppress"
	"github.com/MeKo-Tech/rcnneval/internal/threshold"
)

// Mode names reported in summaries.
const (
	ModeDetections = "detections"
	ModeProposals  = "proposals"
)

// ImageLoader reads one dataset image.
type ImageLoader func(path string) (image.Image, error)

// Summary describes a finished pass.
type Summary struct {
	Dataset    string             `json:"dataset"`
	Mode       string             `json:"mode"`
	Images     int                `json:"images"`
	Selected   int                `json:"selected"` // records stored before pruning
	Pruned     int                `json:"pruned"`   // records removed by the final thresholds
	Kept       int                `json:"kept"`     // records surviving suppression
	Thresholds []float64          `json:"-"`        // may hold -Inf in proposal mode
	Reused     bool               `json:"reused"`
	Evaluated  bool               `json:"evaluated"` // the dataset wrote a report this run
	Artifact   string             `json:"artifact"`
	DetectAvg  time.Duration      `json:"detect_avg"`
	MiscAvg    time.Duration      `json:"misc_avg"`
	Memory     common.MemoryStats `json:"-"`
}

// Driver runs evaluation passes. It owns the All-Boxes table and the
// threshold controller for the duration of Run and is not safe for
// concurrent use.
type Driver struct {
	ds       dataset.Dataset
	det      *detector.Detector
	cfg      Config
	load     ImageLoader
	observer Observer
}

// Option customizes a Driver.
type Option func(*Driver)

// WithObserver reports progress to o.
func WithObserver(o Observer) Option {
	return func(d *Driver) {
		if o != nil {
			d.observer = o
		}
	}
}

// WithImageLoader replaces the file-based image loader.
func WithImageLoader(l ImageLoader) Option {
	return func(d *Driver) {
		if l != nil {
			d.load = l
		}
	}
}

// NewDriver creates a driver for ds scored by det.
func NewDriver(ds dataset.Dataset, det *detector.Detector, cfg Config, opts ...Option) (*Driver, error) {
	if ds == nil {
		return nil, errors.New("dataset must not be nil")
	}
	if det == nil {
		return nil, errors.New("detector must not be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid evaluation config: %w", err)
	}
	d := &Driver{
		ds:       ds,
		det:      det,
		cfg:      cfg,
		load:     dataset.LoadImage,
		observer: NoOpObserver{},
	}
	for _, opt := range opts {
		opt(d)
	}
	return d, nil
}

// Run processes every image of the dataset, persists the provisional table
// and forwards the final one to the dataset evaluator. Any detection or
// scoring failure aborts the pass before the artifact is written.
func (d *Driver) Run(ctx context.Context) (Summary, error) {
	sum := Summary{
		Dataset: d.ds.Name(),
		Mode:    ModeDetections,
		Images:  d.ds.NumImages(),
	}
	if d.cfg.Proposal {
		sum.Mode = ModeProposals
		if err := detector.ValidateProposalClassCount(d.ds.NumClasses()); err != nil {
			return sum, err
		}
	}
	if err := os.MkdirAll(d.cfg.OutputDir, 0o755); err != nil {
		return sum, fmt.Errorf("failed to create output directory: %w", err)
	}
	sum.Artifact = filepath.Join(d.cfg.OutputDir, results.ArtifactName)
	d.observer.OnStart(sum.Dataset, sum.Images)

	table := d.reuse(sum.Artifact)
	if table != nil {
		sum.Reused = true
		sum.Selected = table.Count()
	} else {
		var err error
		table, err = d.detectAll(ctx, &sum)
		if err != nil {
			return sum, err
		}
		if err := results.Save(sum.Artifact, table); err != nil {
			return sum, err
		}
	}

	if err := d.evaluate(table, &sum); err != nil {
		return sum, err
	}
	sum.Memory = common.GetMemoryStats()
	slog.Info("Evaluation finished",
		"dataset", sum.Dataset,
		"mode", sum.Mode,
		"selected", sum.Selected,
		"pruned", sum.Pruned,
		"kept", sum.Kept,
		"memory", sum.Memory)
	d.observer.OnComplete(sum)
	return sum, nil
}

// reuse loads a previous artifact. Unreadable or mis-shaped artifacts are
// ignored so the pass recomputes them.
func (d *Driver) reuse(path string) *results.Table {
	if !d.cfg.Reuse {
		return nil
	}
	t, err := results.Load(path, d.ds.NumClasses(), d.ds.NumImages())
	if err != nil {
		slog.Info("Recomputing detections", "artifact", path, "reason", err)
		return nil
	}
	slog.Info("Reusing detections", "artifact", path, "records", t.Count())
	return t
}

func (d *Driver) detectAll(ctx context.Context, sum *Summary) (*results.Table, error) {
	numImages, numClasses := d.ds.NumImages(), d.ds.NumClasses()
	maxPerSet, maxPerImage := Budgets(d.ds.Name(), numImages, d.cfg.Proposal)
	ctrl := threshold.New(numClasses, d.cfg.Seed(), maxPerSet)
	params := selector.Params{
		NumClasses:  numClasses,
		MaxPerImage: maxPerImage,
		Proposal:    d.cfg.Proposal,
		Subclass:    d.det.Config().Subclass,
		Mapping:     d.ds.SubclassMapping(),
	}

	table := results.NewTable(numClasses, numImages)
	detectTimer := common.NewNamedTimer("im_detect")
	miscTimer := common.NewNamedTimer("misc")

	for i := range numImages {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := d.ds.ImagePathAt(i)
		img, err := d.load(path)
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i, err)
		}

		detectTimer.Tic()
		res, gt, err := d.detect(ctx, i, img)
		detectTimer.Toc()
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, path, err)
		}

		miscTimer.Tic()
		sel, err := selector.Select(res, gt, ctrl.Thresholds(), params)
		if err != nil {
			return nil, fmt.Errorf("image %d (%s): %w", i, path, err)
		}
		for j := 1; j < numClasses; j++ {
			table.Put(j, i, sel.PerClass[j])
			if !d.cfg.Proposal && ctrl.Observe(j, sel.Scores(j)) {
				d.observer.OnThreshold(j, ctrl.Threshold(j))
			}
		}
		miscTimer.Toc()

		sum.Selected += sel.Count
		slog.Info("Detected image",
			"image", i+1,
			"total", numImages,
			"detections", sel.Count,
			"detect_avg", detectTimer.AverageTime(),
			"misc_avg", miscTimer.AverageTime())
		d.observer.OnImage(ImageEvent{
			Index:      i,
			Total:      numImages,
			Path:       path,
			Detections: sel.Count,
			DetectTime: detectTimer.Last(),
			MiscTime:   miscTimer.Last(),
		})
	}

	sum.Pruned = ctrl.Prune(table)
	sum.Thresholds = ctrl.Thresholds()
	sum.DetectAvg = detectTimer.AverageTime()
	sum.MiscAvg = miscTimer.AverageTime()
	return table, nil
}

// detect scores one image and returns the ground-truth labels of its rows.
// Proposal passes ignore the dataset regions and carry no labels.
func (d *Driver) detect(ctx context.Context, i int, img image.Image) (detector.Result, []int, error) {
	numClasses, numSubclasses := d.ds.NumClasses(), d.ds.NumSubclasses()
	if d.cfg.Proposal {
		res, err := d.det.DetectProposals(ctx, img, numClasses, numSubclasses, d.ds.SubclassMapping())
		return res, nil, err
	}

	regions, err := d.ds.Regions(i)
	if err != nil {
		return detector.Result{}, nil, err
	}
	var res detector.Result
	if d.det.Config().Patch {
		res, err = d.det.DetectBatched(ctx, img, regions.Boxes, numClasses, numSubclasses)
	} else {
		res, err = d.det.Detect(ctx, img, regions.Boxes, numClasses, numSubclasses)
	}
	return res, regions.GTClasses, err
}

func (d *Driver) evaluate(table *results.Table, sum *Summary) error {
	if d.cfg.Proposal {
		sum.Kept = table.Count()
		if err := d.ds.EvaluateProposals(table, d.cfg.OutputDir); err != nil {
			return fmt.Errorf("proposal evaluation failed: %w", err)
		}
		sum.Evaluated = true
		return nil
	}

	slog.Info("Applying NMS to all detections", "iou", d.cfg.NMS, "floor", d.cfg.DetThreshold)
	final := suppress.Apply(table, d.cfg.NMS, d.cfg.DetThreshold)
	sum.Kept = final.Count()
	if strings.Contains(d.ds.Name(), "objectnet3d") {
		slog.Info("Skipping detection evaluation", "dataset", d.ds.Name())
		return nil
	}
	if err := d.ds.EvaluateDetections(final, d.cfg.OutputDir); err != nil {
		return fmt.Errorf("detection evaluation failed: %w", err)
	}
	sum.Evaluated = true
	return nil
}
