// Package tensor provides a dense, row-major complex128 n-d array with an
// explicit shape. Shape checks happen at construction and at the boundary of
// every operation so that layout errors carry both the observed and the
// expected extents.
package tensor

import (
	"fmt"
	"slices"
)

// Tensor is a row-major complex128 array. The last axis is contiguous.
type Tensor struct {
	shape   []int
	strides []int
	data    []complex128
}

// New allocates a zero-filled tensor with the given shape.
func New(shape ...int) (*Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	return &Tensor{
		shape:   slices.Clone(shape),
		strides: stridesOf(shape),
		data:    make([]complex128, n),
	}, nil
}

// MustNew is New for shapes known to be valid at compile time.
func MustNew(shape ...int) *Tensor {
	t, err := New(shape...)
	if err != nil {
		panic(err)
	}
	return t
}

// FromData wraps data (without copying) as a tensor of the given shape.
func FromData(data []complex128, shape ...int) (*Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if len(data) != n {
		return nil, fmt.Errorf("%w: %d elements for shape %v (want %d)", ErrBadShape, len(data), shape, n)
	}
	return &Tensor{
		shape:   slices.Clone(shape),
		strides: stridesOf(shape),
		data:    data,
	}, nil
}

func volume(shape []int) (int, error) {
	if len(shape) == 0 {
		return 0, fmt.Errorf("%w: empty shape", ErrBadShape)
	}
	n := 1
	for _, d := range shape {
		if d <= 0 {
			return 0, fmt.Errorf("%w: %v", ErrBadShape, shape)
		}
		n *= d
	}
	return n, nil
}

func stridesOf(shape []int) []int {
	strides := make([]int, len(shape))
	s := 1
	for i := len(shape) - 1; i >= 0; i-- {
		strides[i] = s
		s *= shape[i]
	}
	return strides
}

// Shape returns a copy of the tensor extents.
func (t *Tensor) Shape() []int { return slices.Clone(t.shape) }

// Rank is the number of axes.
func (t *Tensor) Rank() int { return len(t.shape) }

// Dim returns the extent of one axis.
func (t *Tensor) Dim(axis int) int { return t.shape[axis] }

// Len is the total number of elements.
func (t *Tensor) Len() int { return len(t.data) }

// Data exposes the backing slice. Writes through it are visible to t.
func (t *Tensor) Data() []complex128 { return t.data }

// Offset converts a full multi-index into a flat offset.
func (t *Tensor) Offset(idx ...int) (int, error) {
	if len(idx) != len(t.shape) {
		return 0, fmt.Errorf("%w: %d indices for rank %d", ErrOutOfRange, len(idx), len(t.shape))
	}
	off := 0
	for i, v := range idx {
		if v < 0 || v >= t.shape[i] {
			return 0, fmt.Errorf("%w: index %v for shape %v", ErrOutOfRange, idx, t.shape)
		}
		off += v * t.strides[i]
	}
	return off, nil
}

// At reads one element. It panics on a bad index, like slice indexing.
func (t *Tensor) At(idx ...int) complex128 {
	off, err := t.Offset(idx...)
	if err != nil {
		panic(err)
	}
	return t.data[off]
}

// Set writes one element. It panics on a bad index, like slice indexing.
func (t *Tensor) Set(v complex128, idx ...int) {
	off, err := t.Offset(idx...)
	if err != nil {
		panic(err)
	}
	t.data[off] = v
}

// Expect reports ErrShapeMismatch unless t has exactly the given shape.
// name labels the operand in the error message.
func (t *Tensor) Expect(name string, shape ...int) error {
	if !slices.Equal(t.shape, shape) {
		return fmt.Errorf("%w: %s has shape %v, want %v", ErrShapeMismatch, name, t.shape, shape)
	}
	return nil
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		shape:   slices.Clone(t.shape),
		strides: slices.Clone(t.strides),
		data:    slices.Clone(t.data),
	}
}

// Index returns the sub-tensor at position i of the leading axis. The result
// shares storage with t.
func (t *Tensor) Index(i int) (*Tensor, error) {
	if len(t.shape) < 2 {
		return nil, fmt.Errorf("%w: cannot index rank-%d tensor", ErrOutOfRange, len(t.shape))
	}
	if i < 0 || i >= t.shape[0] {
		return nil, fmt.Errorf("%w: index %d for leading extent %d", ErrOutOfRange, i, t.shape[0])
	}
	step := t.strides[0]
	return &Tensor{
		shape:   slices.Clone(t.shape[1:]),
		strides: slices.Clone(t.strides[1:]),
		data:    t.data[i*step : (i+1)*step],
	}, nil
}

// Reshape returns a view of t with a new shape of equal volume.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	n, err := volume(shape)
	if err != nil {
		return nil, err
	}
	if n != len(t.data) {
		return nil, fmt.Errorf("%w: cannot reshape %v into %v", ErrShapeMismatch, t.shape, shape)
	}
	return &Tensor{shape: slices.Clone(shape), strides: stridesOf(shape), data: t.data}, nil
}

// Scale multiplies every element by c in place.
func (t *Tensor) Scale(c complex128) {
	for i := range t.data {
		t.data[i] *= c
	}
}

// Roll cyclically shifts t along axis by shift positions and returns a new
// tensor: out[..., (i+shift) mod n, ...] = t[..., i, ...].
func (t *Tensor) Roll(shift, axis int) (*Tensor, error) {
	if axis < 0 || axis >= len(t.shape) {
		return nil, fmt.Errorf("%w: axis %d for rank %d", ErrOutOfRange, axis, len(t.shape))
	}
	n := t.shape[axis]
	shift %= n
	if shift < 0 {
		shift += n
	}
	out := &Tensor{shape: slices.Clone(t.shape), strides: slices.Clone(t.strides), data: make([]complex128, len(t.data))}
	inner := t.strides[axis]
	outer := len(t.data) / (n * inner)
	for o := 0; o < outer; o++ {
		base := o * n * inner
		for i := 0; i < n; i++ {
			j := (i + shift) % n
			copy(out.data[base+j*inner:base+(j+1)*inner], t.data[base+i*inner:base+(i+1)*inner])
		}
	}
	return out, nil
}
