// Package results holds the All-Boxes table: per class and image, the
// detection records that survive selection, pruning and suppression.
package results

import (
	"fmt"

	"github.com/MeKo-Tech/rcnneval/internal/geometry"
)

// RecordWidth is the number of values in a flattened record.
const RecordWidth = 9

// Record is one detection: box, score, sub-class id and three viewpoint angles.
type Record struct {
	Box      geometry.Box
	Score    float64
	Subclass int
	View     [3]float64
}

// Row flattens the record as (x1, y1, x2, y2, score, subclass, a, e, t).
func (r Record) Row() []float64 {
	return []float64{
		r.Box.X1, r.Box.Y1, r.Box.X2, r.Box.Y2,
		r.Score, float64(r.Subclass),
		r.View[0], r.View[1], r.View[2],
	}
}

// RecordFromRow is the inverse of Row.
func RecordFromRow(row []float64) (Record, error) {
	if len(row) != RecordWidth {
		return Record{}, fmt.Errorf("record needs %d values, got %d", RecordWidth, len(row))
	}
	return Record{
		Box:      geometry.BoxFromSlice(row),
		Score:    row[4],
		Subclass: int(row[5]),
		View:     [3]float64{row[6], row[7], row[8]},
	}, nil
}
