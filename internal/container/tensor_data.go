package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"lattice-go/internal/tensor"
)

const (
	TypeComplex64  = 0
	TypeComplex128 = 1
)

// ElementSize returns the payload bytes per element for a tensor type, or 0
// for unknown types.
func ElementSize(t uint32) int {
	switch t {
	case TypeComplex64:
		return 8
	case TypeComplex128:
		return 16
	default:
		return 0
	}
}

func (f FileInfo) TensorByName(name string) (TensorInfo, bool) {
	for i := range f.Tensors {
		if f.Tensors[i].Name == name {
			return f.Tensors[i], true
		}
	}
	return TensorInfo{}, false
}

func TensorElementCount(t TensorInfo) (uint64, error) {
	if len(t.Dimensions) == 0 {
		return 0, fmt.Errorf("tensor %q has no dimensions", t.Name)
	}
	n := uint64(1)
	for _, d := range t.Dimensions {
		if d == 0 {
			return 0, fmt.Errorf("tensor %q has zero-sized dimension", t.Name)
		}
		if n > math.MaxUint64/d {
			return 0, fmt.Errorf("tensor %q element count overflow", t.Name)
		}
		n *= d
	}
	return n, nil
}

// Shape converts the stored dimensions to an int shape.
func (t TensorInfo) Shape() ([]int, error) {
	if _, err := TensorElementCount(t); err != nil {
		return nil, err
	}
	shape := make([]int, len(t.Dimensions))
	for i, d := range t.Dimensions {
		if d > math.MaxInt32 {
			return nil, fmt.Errorf("tensor %q dimension %d too large", t.Name, i)
		}
		shape[i] = int(d)
	}
	return shape, nil
}

// DecodeComplex converts a raw little-endian payload of type typ into dst.
// raw must hold at least len(dst) elements.
func DecodeComplex(dst []complex128, raw []byte, typ uint32) error {
	size := ElementSize(typ)
	if size == 0 {
		return fmt.Errorf("unsupported tensor type: %d", typ)
	}
	if len(raw) < len(dst)*size {
		return fmt.Errorf("short payload: %d bytes for %d elements", len(raw), len(dst))
	}
	switch typ {
	case TypeComplex128:
		for i := range dst {
			re := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i:]))
			im := math.Float64frombits(binary.LittleEndian.Uint64(raw[16*i+8:]))
			dst[i] = complex(re, im)
		}
	case TypeComplex64:
		for i := range dst {
			re := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i:]))
			im := math.Float32frombits(binary.LittleEndian.Uint32(raw[8*i+4:]))
			dst[i] = complex(float64(re), float64(im))
		}
	}
	return nil
}

func encodeComplex(dst []byte, src []complex128, typ uint32) {
	switch typ {
	case TypeComplex128:
		for i, v := range src {
			binary.LittleEndian.PutUint64(dst[16*i:], math.Float64bits(real(v)))
			binary.LittleEndian.PutUint64(dst[16*i+8:], math.Float64bits(imag(v)))
		}
	case TypeComplex64:
		for i, v := range src {
			binary.LittleEndian.PutUint32(dst[8*i:], math.Float32bits(float32(real(v))))
			binary.LittleEndian.PutUint32(dst[8*i+4:], math.Float32bits(float32(imag(v))))
		}
	}
}

// RegionOffset returns the absolute byte offset of element start of tensor t.
func (f FileInfo) RegionOffset(t TensorInfo, start uint64) (int64, error) {
	size := ElementSize(t.Type)
	if size == 0 {
		return 0, fmt.Errorf("tensor %q: unsupported type %d", t.Name, t.Type)
	}
	off := f.TensorDataOffset + t.Offset + start*uint64(size)
	if off > math.MaxInt64 {
		return 0, fmt.Errorf("tensor %q: offset overflow", t.Name)
	}
	return int64(off), nil
}

// ReadRegion reads count consecutive elements of tensor t starting at flat
// element index start and returns the number of payload bytes read.
func ReadRegion(r io.ReaderAt, f FileInfo, t TensorInfo, start uint64, dst []complex128) (int, error) {
	total, err := TensorElementCount(t)
	if err != nil {
		return 0, err
	}
	if start+uint64(len(dst)) > total {
		return 0, fmt.Errorf("tensor %q: region [%d,%d) exceeds %d elements", t.Name, start, start+uint64(len(dst)), total)
	}
	off, err := f.RegionOffset(t, start)
	if err != nil {
		return 0, err
	}
	raw := make([]byte, len(dst)*ElementSize(t.Type))
	n, err := r.ReadAt(raw, off)
	if err != nil && !(err == io.EOF && n == len(raw)) {
		return n, fmt.Errorf("read tensor %q: %w", t.Name, err)
	}
	return n, DecodeComplex(dst, raw, t.Type)
}

// ReadTensor loads a whole tensor from path.
func ReadTensor(path string, f FileInfo, name string) (*tensor.Tensor, error) {
	t, ok := f.TensorByName(name)
	if !ok {
		return nil, fmt.Errorf("tensor not found: %s", name)
	}
	shape, err := t.Shape()
	if err != nil {
		return nil, err
	}
	out, err := tensor.New(shape...)
	if err != nil {
		return nil, fmt.Errorf("tensor %q: %w", name, err)
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if _, err := ReadRegion(file, f, t, 0, out.Data()); err != nil {
		return nil, err
	}
	return out, nil
}
