package blob

import (
	"errors"
	"fmt"
)

// Tensor is a float32 tensor exchanged with the scoring network.
// Data layout is row-major, with NCHW for images.
type Tensor struct {
	Data  []float32
	Shape []int64 // e.g., [N, C, H, W]
}

// NewTensor wraps data with the given shape after checking the element count.
func NewTensor(data []float32, shape ...int64) (Tensor, error) {
	if data == nil {
		return Tensor{}, errors.New("nil data")
	}
	n := int64(1)
	for _, d := range shape {
		if d < 0 {
			return Tensor{}, fmt.Errorf("negative dimension in shape %v", shape)
		}
		n *= d
	}
	if int64(len(data)) != n {
		return Tensor{}, fmt.Errorf("unexpected data length: got %d, want %d for shape %v", len(data), n, shape)
	}
	return Tensor{Data: data, Shape: append([]int64(nil), shape...)}, nil
}

// ValidateNCHW ensures a shape is [N, C, H, W] with positive dimensions.
func ValidateNCHW(shape []int64) error {
	if len(shape) != 4 {
		return fmt.Errorf("shape rank %d != 4", len(shape))
	}
	for i, v := range shape {
		if v <= 0 {
			return fmt.Errorf("dimension %d must be > 0, got %d", i, v)
		}
	}
	return nil
}

// VerifyImageTensor checks data length matches the provided NCHW shape.
func VerifyImageTensor(t Tensor) error {
	if err := ValidateNCHW(t.Shape); err != nil {
		return err
	}
	n, c, h, w := t.Shape[0], t.Shape[1], t.Shape[2], t.Shape[3]
	if expected := int(n * c * h * w); len(t.Data) != expected {
		return fmt.Errorf("tensor data length %d != expected %d for shape %v", len(t.Data), expected, t.Shape)
	}
	return nil
}

// SliceBatch copies items [start, end) along the leading axis.
func (t Tensor) SliceBatch(start, end int) Tensor {
	if len(t.Shape) == 0 {
		return Tensor{}
	}
	per := 1
	for _, d := range t.Shape[1:] {
		per *= int(d)
	}
	data := make([]float32, (end-start)*per)
	copy(data, t.Data[start*per:end*per])
	shape := append([]int64{int64(end - start)}, t.Shape[1:]...)
	return Tensor{Data: data, Shape: shape}
}

// ToMatrix flattens every trailing axis into columns, so an [N, K, 1, 1]
// network output becomes an N x K matrix.
func ToMatrix(t Tensor) (*Matrix, error) {
	if len(t.Shape) == 0 {
		return nil, errors.New("tensor has no shape")
	}
	rows := int(t.Shape[0])
	cols := 1
	for _, d := range t.Shape[1:] {
		cols *= int(d)
	}
	if len(t.Data) != rows*cols {
		return nil, fmt.Errorf("tensor data length %d != %d for shape %v", len(t.Data), rows*cols, t.Shape)
	}
	m := NewMatrix(rows, cols)
	for i, v := range t.Data {
		m.Data[i] = float64(v)
	}
	return m, nil
}

// FromMatrix converts m into an [Rows, Cols] float32 tensor.
func FromMatrix(m *Matrix) Tensor {
	data := make([]float32, len(m.Data))
	for i, v := range m.Data {
		data[i] = float32(v)
	}
	return Tensor{Data: data, Shape: []int64{int64(m.Rows), int64(m.Cols)}}
}
