package elemental

import (
	"context"
	"fmt"
	"os"

	"lattice-go/internal/container"
	"lattice-go/internal/insertion"
	"lattice-go/internal/tensor"
)

// File is a RowSource backed by a container file. Rows are read on demand.
type File struct {
	path    string
	info    container.FileInfo
	ti      container.TensorInfo
	shape   []int
	momenta []insertion.Momentum
	f       *os.File
}

func Open(path string) (*File, error) {
	info, err := container.ReadFileInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read elemental info: %w", err)
	}
	ti, ok := info.TensorByName(TensorName)
	if !ok {
		return nil, fmt.Errorf("%s: tensor %q not found", path, TensorName)
	}
	shape, err := ti.Shape()
	if err != nil {
		return nil, err
	}
	momenta, err := parseMomenta(info.KeyValues[KeyMomenta])
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := validateLayout(shape, len(momenta)); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return &File{path: path, info: info, ti: ti, shape: shape, momenta: momenta, f: f}, nil
}

func (e *File) Close() error {
	if e.f == nil {
		return nil
	}
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *File) Path() string                  { return e.path }
func (e *File) Modes() int                    { return e.shape[3] }
func (e *File) Extent() int                   { return e.shape[2] }
func (e *File) Derivatives() int              { return e.shape[0] }
func (e *File) Momenta() []insertion.Momentum { return append([]insertion.Momentum(nil), e.momenta...) }

func (e *File) Row(ctx context.Context, key Key, usedNe int) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := rowIndex(key, e.shape[0], e.momenta)
	if err != nil {
		return nil, err
	}
	if usedNe <= 0 || usedNe > e.Modes() {
		return nil, fmt.Errorf("%w: %d of %d", ErrModeRange, usedNe, e.Modes())
	}
	lt, ne := e.Extent(), e.Modes()
	count := lt * ne * ne
	full := make([]complex128, count)
	if _, err := container.ReadRegion(e.f, e.info, e.ti, uint64(idx)*uint64(count), full); err != nil {
		return nil, fmt.Errorf("%s: row %+v: %w", e.path, key, err)
	}
	return truncate(full, lt, ne, usedNe)
}

// WriteFile stores a (Nderiv, Nmom, Lt, Ne, Ne) elemental with its momentum
// table as a container.
func WriteFile(path string, data *tensor.Tensor, momenta []insertion.Momentum) error {
	shape := data.Shape()
	if err := validateLayout(shape, len(momenta)); err != nil {
		return err
	}
	w := container.NewWriter()
	if err := w.SetKV("lattice.kind", TensorName); err != nil {
		return err
	}
	if err := w.SetKV("lattice.lt", shape[2]); err != nil {
		return err
	}
	if err := w.SetKV("lattice.ne", shape[3]); err != nil {
		return err
	}
	if err := w.SetKV(KeyMomenta, flattenMomenta(momenta)); err != nil {
		return err
	}
	if err := w.AddTensor(TensorName, container.TypeComplex128, data); err != nil {
		return err
	}
	return w.WriteFile(path)
}
