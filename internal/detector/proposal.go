package detector

import (
	"math"
	"sort"

	"github.com/MeKo-Tech/rcnneval/internal/blob"
	"gonum.org/v1/gonum/floats"
)

// PoolSubclassScores max-pools sub-class scores into class scores. Column 0
// copies the background sub-class. With two classes every foreground
// sub-class feeds class 1; otherwise mapping[s] names the class of
// sub-class s. Classes without any mapped sub-class score -Inf.
func PoolSubclassScores(sub *blob.Matrix, numClasses int, mapping []int) *blob.Matrix {
	out := blob.NewMatrix(sub.Rows, numClasses)
	if sub.Rows == 0 || sub.Cols == 0 {
		return out
	}

	members := make([][]int, numClasses)
	if numClasses == 2 {
		for s := 1; s < sub.Cols; s++ {
			members[1] = append(members[1], s)
		}
	} else {
		for s, c := range mapping {
			if s < sub.Cols && c > 0 && c < numClasses {
				members[c] = append(members[c], s)
			}
		}
	}

	for i := range sub.Rows {
		row := sub.Row(i)
		dst := out.Row(i)
		dst[0] = row[0]
		for c := 1; c < numClasses; c++ {
			best := math.Inf(-1)
			for _, s := range members[c] {
				best = math.Max(best, row[s])
			}
			dst[c] = best
		}
	}
	return out
}

// BestForeground returns, per row, the highest non-background score and its
// class index. Ties go to the lowest class.
func BestForeground(scores *blob.Matrix) ([]float64, []int) {
	best := make([]float64, scores.Rows)
	labels := make([]int, scores.Rows)
	if scores.Cols < 2 {
		return best, labels
	}
	for i := range scores.Rows {
		fg := scores.Row(i)[1:]
		k := floats.MaxIdx(fg)
		best[i] = fg[k]
		labels[i] = k + 1
	}
	return best, labels
}

// RankDescending returns the indices of values ordered by decreasing value.
// Equal values keep their original order.
func RankDescending(values []float64) []int {
	order := make([]int, len(values))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return values[order[a]] > values[order[b]]
	})
	return order
}
