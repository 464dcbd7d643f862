// Package detector turns one scoring call into per-region tables: class
// scores, class-specific boxes, sub-class scores and viewpoints. It owns the
// network batching, duplicate collapsing and output decoding.
package detector

import (
	"context"
	"errors"
	"fmt"
	"image"
	"log/slog"

	"github.com/MeKo-Tech/rcnneval/internal/batcher"
	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"github.com/MeKo-Tech/rcnneval/internal/dedup"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
	"github.com/MeKo-Tech/rcnneval/internal/oracle"
)

// Result holds the per-region tables for one image.
type Result struct {
	Scores         *blob.Matrix // N x K class scores, column 0 is background
	Boxes          *blob.Matrix // N x 4K class-specific boxes
	SubclassScores *blob.Matrix // N x S
	Views          *blob.Matrix // N x 3K viewpoint angles
	Labels         []int        // best non-background class per row, proposal mode only
}

// Len returns the number of rows in the result.
func (r Result) Len() int {
	if r.Scores == nil {
		return 0
	}
	return r.Scores.Rows
}

// EmptyResult returns correctly shaped zero-row tables.
func EmptyResult(numClasses, numSubclasses int) Result {
	return Result{
		Scores:         blob.NewMatrix(0, numClasses),
		Boxes:          blob.NewMatrix(0, 4*numClasses),
		SubclassScores: blob.NewMatrix(0, numSubclasses),
		Views:          blob.NewMatrix(0, 3*numClasses),
	}
}

// Detector scores regions of one image at a time with an injected oracle.
type Detector struct {
	oracle oracle.Oracle
	config Config
}

// New creates a detector.
func New(o oracle.Oracle, config Config) (*Detector, error) {
	if o == nil {
		return nil, errors.New("scoring oracle is nil")
	}
	if err := validateConfig(config); err != nil {
		return nil, err
	}
	if config.Eps == 0 {
		config.Eps = geometry.DefaultEps
	}
	return &Detector{oracle: o, config: config}, nil
}

// Config returns the detector configuration.
func (d *Detector) Config() Config { return d.config }

// Detect scores the regions (N x 4, image coordinates) of img in one call.
//
// With deduplication enabled, regions that land on the same pyramid cell are
// scored once and the tables are broadcast back to N rows. In patch mode the
// broadcast is skipped and the tables stay in network order, one row per
// distinct region.
func (d *Detector) Detect(ctx context.Context, img image.Image, regions *blob.Matrix,
	numClasses, numSubclasses int,
) (Result, error) {
	if regions.Rows == 0 {
		return EmptyResult(numClasses, numSubclasses), nil
	}

	blobs, err := batcher.Build(img, regions, d.config.Batcher)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build network input: %w", err)
	}

	ix, err := dedup.Build(blobs.Regions, d.config.DedupBoxes)
	if err != nil {
		return Result{}, err
	}
	boxes := regions
	if d.config.DedupBoxes > 0 {
		blobs.Regions = ix.Unique(blobs.Regions)
		boxes = ix.Unique(regions)
		if ix.Collapsed() {
			slog.Debug("Collapsed duplicate regions", "regions", regions.Rows, "unique", ix.Len())
		}
	}

	out, err := d.oracle.Score(ctx, oracle.Input{Data: blobs.Data, Regions: blobs.Regions})
	if err != nil {
		return Result{}, fmt.Errorf("scoring failed: %w", err)
	}

	b := img.Bounds()
	res, err := d.decode(out, boxes, numClasses, numSubclasses, b.Dy(), b.Dx(), true)
	if err != nil {
		return Result{}, err
	}

	if d.config.DedupBoxes > 0 && !d.config.Patch {
		res.Scores = ix.Expand(res.Scores)
		res.SubclassScores = ix.Expand(res.SubclassScores)
		res.Boxes = ix.Expand(res.Boxes)
		res.Views = ix.Expand(res.Views)
	}
	return res, nil
}

// decode reads the configured tables out of one network response for the
// given boxes and checks every table has one row per box. Clipping is optional
// so batched callers can clip once at the end.
func (d *Detector) decode(out oracle.Output, boxes *blob.Matrix, numClasses, numSubclasses, height, width int,
	clip bool,
) (Result, error) {
	var res Result
	var err error
	rows := boxes.Rows

	if d.config.RawScores {
		res.Scores, err = oracle.RequireShape(oracle.OutputScore, out.ClassScores, rows, numClasses)
	} else {
		res.Scores, err = oracle.RequireShape(oracle.OutputProb, out.ClassProbs, rows, numClasses)
	}
	if err != nil {
		return Result{}, err
	}

	if d.config.Subclass {
		res.SubclassScores, err = oracle.RequireShape(oracle.OutputSubclass, out.SubclassProbs, rows, numSubclasses)
		if err != nil {
			return Result{}, err
		}
	} else {
		res.SubclassScores = res.Scores
	}

	if d.config.BBoxReg {
		deltas, err := oracle.RequireShape(oracle.OutputDeltas, out.BoxDeltas, rows, 4*numClasses)
		if err != nil {
			return Result{}, err
		}
		res.Boxes = geometry.DecodeBoxDeltas(boxes, deltas, d.config.Eps)
		if clip {
			geometry.ClipToImage(res.Boxes, height, width)
		}
	} else {
		res.Boxes = geometry.TileRegions(boxes, numClasses)
	}

	if d.config.Viewpoint {
		if res.Views, err = oracle.RequireShape(oracle.OutputViews, out.Views, rows, 3*numClasses); err != nil {
			return Result{}, err
		}
	} else {
		res.Views = blob.NewMatrix(rows, 3*numClasses)
	}
	return res, nil
}

// DetectBatched scores regions as independent patches, PatchBatchSize at a
// time, and assembles the chunk outputs into one table per output. Boxes are
// clipped once after every chunk has been written.
func (d *Detector) DetectBatched(ctx context.Context, img image.Image, regions *blob.Matrix,
	numClasses, numSubclasses int,
) (Result, error) {
	if regions.Rows == 0 {
		return EmptyResult(numClasses, numSubclasses), nil
	}

	patches := batcher.PatchBlob(img, regions, d.config.Batcher)
	chunks := batcher.Chunks(regions.Rows, d.config.Batcher.PatchBatchSize)

	var res Result
	for _, c := range chunks {
		out, err := d.oracle.Score(ctx, oracle.Input{Data: patches.SliceBatch(c.Start, c.End)})
		if err != nil {
			return Result{}, fmt.Errorf("scoring patches %d-%d failed: %w", c.Start, c.End, err)
		}
		part, err := d.decode(out, regions.SliceRows(c.Start, c.End), numClasses, numSubclasses, 0, 0, false)
		if err != nil {
			return Result{}, err
		}
		if res.Scores == nil {
			res = Result{
				Scores:         blob.NewMatrix(regions.Rows, part.Scores.Cols),
				Boxes:          blob.NewMatrix(regions.Rows, part.Boxes.Cols),
				SubclassScores: blob.NewMatrix(regions.Rows, part.SubclassScores.Cols),
				Views:          blob.NewMatrix(regions.Rows, part.Views.Cols),
			}
		}
		for _, pair := range [][2]*blob.Matrix{
			{res.Scores, part.Scores},
			{res.Boxes, part.Boxes},
			{res.SubclassScores, part.SubclassScores},
			{res.Views, part.Views},
		} {
			if err := pair[0].SetRows(c.Start, pair[1]); err != nil {
				return Result{}, fmt.Errorf("chunk %d-%d: %w", c.Start, c.End, err)
			}
		}
	}

	if d.config.BBoxReg {
		b := img.Bounds()
		geometry.ClipToImage(res.Boxes, b.Dy(), b.Dx())
	}
	return res, nil
}

// DetectProposals scores a dense window grid laid over the image pyramid and
// keeps the ProposalTopN windows with the best non-background score. Class
// scores are the maximum over the sub-classes mapped to each class. Labels
// hold the winning class of each kept row.
func (d *Detector) DetectProposals(ctx context.Context, img image.Image,
	numClasses, numSubclasses int, mapping []int,
) (Result, error) {
	if err := ValidateProposalClassCount(numClasses); err != nil {
		return Result{}, err
	}

	b := img.Bounds()
	gridCfg := d.config.Grid
	gridCfg.Scales = d.proposalScales()
	grid := geometry.GridBoxes(b.Dy(), b.Dx(), gridCfg)
	if grid.Rows == 0 {
		res := EmptyResult(numClasses, numSubclasses)
		res.Labels = []int{}
		return res, nil
	}

	data, _, err := batcher.ImagePyramid(img, d.config.Batcher)
	if err != nil {
		return Result{}, fmt.Errorf("failed to build network input: %w", err)
	}

	out, err := d.oracle.Score(ctx, oracle.Input{Data: data, Grid: grid})
	if err != nil {
		return Result{}, fmt.Errorf("scoring failed: %w", err)
	}

	sub, err := oracle.Require(oracle.OutputSubclass, out.SubclassProbs)
	if err != nil {
		return Result{}, err
	}
	rois, err := oracle.Require(oracle.OutputRegions, out.Regions)
	if err != nil {
		return Result{}, err
	}
	if rois.Cols != 5 {
		return Result{}, fmt.Errorf("%w: %s is %dx%d, want 5 columns", oracle.ErrOutputShape, oracle.OutputRegions, rois.Rows, rois.Cols)
	}
	if _, err := oracle.RequireShape(oracle.OutputSubclass, sub, rois.Rows, numSubclasses); err != nil {
		return Result{}, err
	}

	var scores *blob.Matrix
	if d.config.Subclass {
		scores = PoolSubclassScores(sub, numClasses, mapping)
	} else {
		scores = sub
	}

	levels := make([]int, rois.Rows)
	for i := range rois.Rows {
		levels[i] = int(rois.At(i, 0))
	}
	boxes := rois.Columns(1, 5)

	var pred *blob.Matrix
	if d.config.BBoxReg {
		deltas, err := oracle.RequireShape(oracle.OutputDeltas, out.BoxDeltas, rois.Rows, 4*scores.Cols)
		if err != nil {
			return Result{}, err
		}
		pred = geometry.DecodeBoxDeltas(boxes, deltas, d.config.Eps)
	} else {
		pred = geometry.TileRegions(boxes, scores.Cols)
	}
	geometry.RescaleByLevel(pred, levels, d.proposalScales())
	geometry.ClipToImage(pred, b.Dy(), b.Dx())

	var views *blob.Matrix
	if d.config.Viewpoint {
		if views, err = oracle.RequireShape(oracle.OutputViews, out.Views, rois.Rows, 3*numClasses); err != nil {
			return Result{}, err
		}
	} else {
		views = blob.NewMatrix(rois.Rows, 3*numClasses)
	}

	best, labels := BestForeground(scores)
	keep := RankDescending(best)
	if n := d.proposalTopN(); len(keep) > n {
		keep = keep[:n]
	}

	kept := make([]int, len(keep))
	for i, k := range keep {
		kept[i] = labels[k]
	}
	slog.Debug("Ranked proposals", "windows", grid.Rows, "scored", rois.Rows, "kept", len(keep))

	return Result{
		Scores:         scores.GatherRows(keep),
		Boxes:          pred.GatherRows(keep),
		SubclassScores: sub.GatherRows(keep),
		Views:          views.GatherRows(keep),
		Labels:         kept,
	}, nil
}

func (d *Detector) proposalScales() []float64 {
	if len(d.config.ProposalScales) > 0 {
		return d.config.ProposalScales
	}
	return []float64{1.0}
}

func (d *Detector) proposalTopN() int {
	if d.config.ProposalTopN > 0 {
		return d.config.ProposalTopN
	}
	return DefaultProposalTopN
}
