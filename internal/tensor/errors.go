package tensor

import "errors"

var (
	// ErrBadShape is returned when a requested shape has a non-positive extent
	// or does not match the length of the supplied data.
	ErrBadShape = errors.New("tensor: invalid shape")

	// ErrShapeMismatch is returned when two operands (or an operand and an
	// expected layout) disagree on rank or extents.
	ErrShapeMismatch = errors.New("tensor: shape mismatch")

	// ErrOutOfRange indicates an index or axis outside the tensor bounds.
	ErrOutOfRange = errors.New("tensor: index out of range")
)
