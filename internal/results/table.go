package results

import (
	"errors"
	"fmt"
)

// ErrShapeMismatch is returned when a table does not have the expected
// class and image dimensions.
var ErrShapeMismatch = errors.New("detections table shape mismatch")

// Table maps (class, image) to detection records. Class 0 is background and
// stays empty.
type Table struct {
	NumClasses int
	NumImages  int
	Boxes      [][][]Record // [class][image]
}

// NewTable allocates an empty table.
func NewTable(numClasses, numImages int) *Table {
	t := &Table{NumClasses: numClasses, NumImages: numImages, Boxes: make([][][]Record, numClasses)}
	for j := range t.Boxes {
		t.Boxes[j] = make([][]Record, numImages)
	}
	return t
}

// Get returns the records of one class and image.
func (t *Table) Get(class, image int) []Record {
	return t.Boxes[class][image]
}

// Put replaces the records of one class and image.
func (t *Table) Put(class, image int, recs []Record) {
	t.Boxes[class][image] = recs
}

// Count returns the number of records across all classes and images.
func (t *Table) Count() int {
	n := 0
	for _, perImage := range t.Boxes {
		for _, recs := range perImage {
			n += len(recs)
		}
	}
	return n
}

// ClassCount returns the number of records stored for one class.
func (t *Table) ClassCount(class int) int {
	n := 0
	for _, recs := range t.Boxes[class] {
		n += len(recs)
	}
	return n
}

// Filter keeps, for every class and image, the records accepted by keep and
// returns how many were dropped.
func (t *Table) Filter(keep func(class int, r Record) bool) int {
	dropped := 0
	for j, perImage := range t.Boxes {
		for i, recs := range perImage {
			kept := recs[:0:0]
			for _, r := range recs {
				if keep(j, r) {
					kept = append(kept, r)
				}
			}
			dropped += len(recs) - len(kept)
			t.Boxes[j][i] = kept
		}
	}
	return dropped
}

// Validate checks that the table has the expected dimensions.
func (t *Table) Validate(numClasses, numImages int) error {
	if t.NumClasses != numClasses || t.NumImages != numImages {
		return fmt.Errorf("%w: have %dx%d, want %dx%d", ErrShapeMismatch,
			t.NumClasses, t.NumImages, numClasses, numImages)
	}
	if len(t.Boxes) != numClasses {
		return fmt.Errorf("%w: %d class rows", ErrShapeMismatch, len(t.Boxes))
	}
	for j, perImage := range t.Boxes {
		if len(perImage) != numImages {
			return fmt.Errorf("%w: class %d has %d images", ErrShapeMismatch, j, len(perImage))
		}
	}
	return nil
}
