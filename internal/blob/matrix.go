// Package blob holds the dense containers passed between the post-processing stages:
// row-major float64 matrices for per-region tables and float32 NCHW tensors for
// network input and output.
package blob

import (
	"errors"
	"fmt"
)

// Matrix is a dense row-major float64 matrix. A matrix with zero rows is valid
// and keeps its column count, so empty results stay correctly shaped.
type Matrix struct {
	Rows int
	Cols int
	Data []float64
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix(rows, cols int) *Matrix {
	if rows < 0 {
		rows = 0
	}
	if cols < 0 {
		cols = 0
	}
	return &Matrix{Rows: rows, Cols: cols, Data: make([]float64, rows*cols)}
}

// NewMatrixFrom wraps data as a rows x cols matrix without copying.
func NewMatrixFrom(rows, cols int, data []float64) (*Matrix, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("invalid matrix shape %dx%d", rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("data length %d does not match shape %dx%d", len(data), rows, cols)
	}
	return &Matrix{Rows: rows, Cols: cols, Data: data}, nil
}

// FromRows builds a matrix from a slice of equally sized rows.
// cols is used when rows is empty.
func FromRows(rows [][]float64, cols int) (*Matrix, error) {
	if len(rows) > 0 {
		cols = len(rows[0])
	}
	m := NewMatrix(len(rows), cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d columns, want %d", i, len(r), cols)
		}
		copy(m.Row(i), r)
	}
	return m, nil
}

// MustFromRows is FromRows for literals in tests and fixtures.
func MustFromRows(rows [][]float64, cols int) *Matrix {
	m, err := FromRows(rows, cols)
	if err != nil {
		panic(err)
	}
	return m
}

// At returns element (i, j).
func (m *Matrix) At(i, j int) float64 { return m.Data[i*m.Cols+j] }

// Set assigns element (i, j).
func (m *Matrix) Set(i, j int, v float64) { m.Data[i*m.Cols+j] = v }

// Row returns row i as a slice aliasing the matrix storage.
func (m *Matrix) Row(i int) []float64 { return m.Data[i*m.Cols : (i+1)*m.Cols] }

// Empty reports whether the matrix has no rows.
func (m *Matrix) Empty() bool { return m == nil || m.Rows == 0 }

// Clone returns a deep copy.
func (m *Matrix) Clone() *Matrix {
	out := &Matrix{Rows: m.Rows, Cols: m.Cols, Data: make([]float64, len(m.Data))}
	copy(out.Data, m.Data)
	return out
}

// GatherRows returns a new matrix made of the rows at idx, in order.
func (m *Matrix) GatherRows(idx []int) *Matrix {
	out := NewMatrix(len(idx), m.Cols)
	for i, r := range idx {
		copy(out.Row(i), m.Row(r))
	}
	return out
}

// SliceRows copies rows [start, end).
func (m *Matrix) SliceRows(start, end int) *Matrix {
	if end > m.Rows {
		end = m.Rows
	}
	if start > end {
		start = end
	}
	out := NewMatrix(end-start, m.Cols)
	copy(out.Data, m.Data[start*m.Cols:end*m.Cols])
	return out
}

// SetRows copies src into m starting at row offset. Column counts must match.
func (m *Matrix) SetRows(offset int, src *Matrix) error {
	if src.Cols != m.Cols {
		return fmt.Errorf("column mismatch: %d vs %d", src.Cols, m.Cols)
	}
	if offset < 0 || offset+src.Rows > m.Rows {
		return fmt.Errorf("rows [%d, %d) out of range for %d rows", offset, offset+src.Rows, m.Rows)
	}
	copy(m.Data[offset*m.Cols:], src.Data)
	return nil
}

// Columns copies the column block [start, end).
func (m *Matrix) Columns(start, end int) *Matrix {
	out := NewMatrix(m.Rows, end-start)
	for i := range m.Rows {
		copy(out.Row(i), m.Row(i)[start:end])
	}
	return out
}

// Column copies column j.
func (m *Matrix) Column(j int) []float64 {
	out := make([]float64, m.Rows)
	for i := range m.Rows {
		out[i] = m.Data[i*m.Cols+j]
	}
	return out
}

// TileCols repeats the matrix k times horizontally.
func (m *Matrix) TileCols(k int) *Matrix {
	out := NewMatrix(m.Rows, m.Cols*k)
	for i := range m.Rows {
		src := m.Row(i)
		dst := out.Row(i)
		for t := range k {
			copy(dst[t*m.Cols:(t+1)*m.Cols], src)
		}
	}
	return out
}

// HStack concatenates matrices with the same row count horizontally.
func HStack(ms ...*Matrix) (*Matrix, error) {
	if len(ms) == 0 {
		return nil, errors.New("nothing to stack")
	}
	rows, cols := ms[0].Rows, 0
	for i, m := range ms {
		if m.Rows != rows {
			return nil, fmt.Errorf("matrix %d has %d rows, want %d", i, m.Rows, rows)
		}
		cols += m.Cols
	}
	out := NewMatrix(rows, cols)
	for r := range rows {
		dst := out.Row(r)
		off := 0
		for _, m := range ms {
			copy(dst[off:off+m.Cols], m.Row(r))
			off += m.Cols
		}
	}
	return out, nil
}

// SameShape reports whether a and b have identical dimensions.
func SameShape(a, b *Matrix) bool {
	return a.Rows == b.Rows && a.Cols == b.Cols
}
