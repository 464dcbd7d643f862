// Package suppress consolidates the pruned detections with greedy
// non-maximum suppression, one class and image at a time.
package suppress

import (
	"sort"

	"github.com/MeKo-Tech/rcnneval/internal/geometry"
	"github.com/MeKo-Tech/rcnneval/internal/results"
)

// NonMaxSuppression keeps the best record of every group of records that
// overlap by more than iouThreshold. Survivors are returned best first;
// equal scores keep their input order.
func NonMaxSuppression(recs []results.Record, iouThreshold float64) []results.Record {
	if len(recs) == 0 {
		return nil
	}

	indices := sortByScore(recs)
	suppressed := make([]bool, len(recs))
	kept := make([]results.Record, 0, len(recs))

	for pos, a := range indices {
		if suppressed[a] {
			continue
		}
		kept = append(kept, recs[a])

		for _, b := range indices[pos+1:] {
			if suppressed[b] {
				continue
			}
			if geometry.IoU(recs[a].Box, recs[b].Box) > iouThreshold {
				suppressed[b] = true
			}
		}
	}
	return kept
}

// sortByScore returns record indices sorted by descending score.
func sortByScore(recs []results.Record) []int {
	indices := make([]int, len(recs))
	for i := range indices {
		indices[i] = i
	}
	sort.SliceStable(indices, func(i, j int) bool {
		return recs[indices[i]].Score > recs[indices[j]].Score
	})
	return indices
}

// Apply runs suppression over every class and image of t and returns a new
// table. Degenerate boxes and records not scoring above scoreFloor are
// dropped first. The input table is left untouched.
func Apply(t *results.Table, iouThreshold, scoreFloor float64) *results.Table {
	out := results.NewTable(t.NumClasses, t.NumImages)
	for j := range t.NumClasses {
		for i := range t.NumImages {
			recs := t.Get(j, i)
			if len(recs) == 0 {
				continue
			}
			candidates := make([]results.Record, 0, len(recs))
			for _, r := range recs {
				if !r.Box.Degenerate() && r.Score > scoreFloor {
					candidates = append(candidates, r)
				}
			}
			if kept := NonMaxSuppression(candidates, iouThreshold); len(kept) > 0 {
				out.Put(j, i, kept)
			}
		}
	}
	return out
}
