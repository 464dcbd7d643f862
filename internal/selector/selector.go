// Package selector turns one image's detector output into per-class
// detection records: threshold, exclude ground truth, cap, assemble.
package selector

import (
	"fmt"

	"github.com/MeKo-Tech/rcnneval/internal/detector"
	"github.com/MeKo-Tech/rcnneval/internal/geometry"
	"github.com/MeKo-Tech/rcnneval/internal/results"
	"gonum.org/v1/gonum/floats"
)

// Params controls per-image selection.
type Params struct {
	// NumClasses is the dataset's class count, background included. Zero
	// takes it from the score table, which in proposal mode without
	// sub-class pooling holds sub-class columns instead.
	NumClasses  int
	MaxPerImage int   // records kept per class and image; <= 0 keeps all
	Proposal    bool  // select by proposal label instead of threshold
	Subclass    bool  // pick the sub-class among those mapped to the class
	Mapping     []int // class of every sub-class
}

// Selection is the outcome for one image.
type Selection struct {
	PerClass [][]results.Record // index 0 (background) is always nil
	Count    int
}

// Scores returns the scores of the records kept for class, best first.
func (s Selection) Scores(class int) []float64 {
	recs := s.PerClass[class]
	out := make([]float64, len(recs))
	for i, r := range recs {
		out[i] = r.Score
	}
	return out
}

// readableClasses returns how many leading classes Select reads from res and
// rejects tables too narrow for them. Proposal labels index score columns, so
// proposal mode reads no further than the score table.
func readableClasses(res detector.Result, numClasses, scoreCols int, proposal bool) (int, error) {
	read := numClasses
	if proposal {
		read = min(numClasses, scoreCols)
	} else if scoreCols < numClasses {
		return 0, fmt.Errorf("have %d score columns for %d classes", scoreCols, numClasses)
	}
	if res.Len() == 0 {
		return read, nil
	}
	if res.Boxes == nil || res.Boxes.Cols < 4*read {
		return 0, fmt.Errorf("box table too narrow for %d classes", read)
	}
	if res.Views == nil || res.Views.Cols < 3*read {
		return 0, fmt.Errorf("view table too narrow for %d classes", read)
	}
	return read, nil
}

// Select picks, for every foreground class, the rows whose score exceeds
// thresholds[class] and that are not ground truth (gtClasses[row] == 0; a
// nil gtClasses marks every row as a candidate). In proposal mode rows are
// picked by their label instead. Survivors are ordered by descending score,
// ties in row order, and capped at MaxPerImage.
func Select(res detector.Result, gtClasses []int, thresholds []float64, p Params) (Selection, error) {
	n := res.Len()
	scoreCols := 0
	if res.Scores != nil {
		scoreCols = res.Scores.Cols
	}
	numClasses := p.NumClasses
	if numClasses <= 0 {
		numClasses = scoreCols
	}
	last, err := readableClasses(res, numClasses, scoreCols, p.Proposal)
	if err != nil {
		return Selection{}, err
	}
	if len(thresholds) < numClasses {
		return Selection{}, fmt.Errorf("have %d thresholds for %d classes", len(thresholds), numClasses)
	}
	if gtClasses != nil && len(gtClasses) != n && !p.Proposal {
		return Selection{}, fmt.Errorf("have %d ground-truth labels for %d regions", len(gtClasses), n)
	}
	if p.Proposal && len(res.Labels) != n {
		return Selection{}, fmt.Errorf("have %d proposal labels for %d regions", len(res.Labels), n)
	}

	sel := Selection{PerClass: make([][]results.Record, numClasses)}
	for j := 1; j < last; j++ {
		var rows []int
		for i := range n {
			if p.Proposal {
				if res.Labels[i] == j {
					rows = append(rows, i)
				}
				continue
			}
			if res.Scores.At(i, j) > thresholds[j] && (gtClasses == nil || gtClasses[i] == 0) {
				rows = append(rows, i)
			}
		}

		scores := make([]float64, len(rows))
		for k, i := range rows {
			scores[k] = res.Scores.At(i, j)
		}
		order := detector.RankDescending(scores)
		if p.MaxPerImage > 0 && len(order) > p.MaxPerImage {
			order = order[:p.MaxPerImage]
		}

		mapped := mappedSubclasses(p, j)
		recs := make([]results.Record, len(order))
		for k, o := range order {
			i := rows[o]
			box := res.Boxes.Row(i)[4*j : 4*j+4]
			view := res.Views.Row(i)[3*j : 3*j+3]
			recs[k] = results.Record{
				Box:      geometry.BoxFromSlice(box),
				Score:    scores[o],
				Subclass: subclassID(res.SubclassScores.Row(i), mapped),
				View:     [3]float64{view[0], view[1], view[2]},
			}
		}
		sel.PerClass[j] = recs
		sel.Count += len(recs)
	}
	return sel, nil
}

// mappedSubclasses lists the sub-classes of class j when per-class
// sub-class selection applies, or nil to search every sub-class.
func mappedSubclasses(p Params, j int) []int {
	if !p.Subclass || p.Proposal {
		return nil
	}
	var idx []int
	for s, c := range p.Mapping {
		if c == j {
			idx = append(idx, s)
		}
	}
	return idx
}

// subclassID returns the best sub-class index among candidates, or over all
// columns when candidates is empty.
func subclassID(row []float64, candidates []int) int {
	if len(row) == 0 {
		return 0
	}
	best := -1
	for _, s := range candidates {
		if s < len(row) && (best < 0 || row[s] > row[best]) {
			best = s
		}
	}
	if best < 0 {
		return floats.MaxIdx(row)
	}
	return best
}
