package perambulator

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"lattice-go/internal/container"
	"lattice-go/internal/tensor"
)

// File serves perambulator blocks from a container file. Blocks are read
// with positioned reads, or sliced from a read-only mapping when enabled.
type File struct {
	path   string
	info   container.FileInfo
	ti     container.TensorInfo
	shape  []int
	f      *os.File
	mapped []byte

	mu   sync.Mutex
	last ReadStats
}

type Option func(*File) error

// WithMmap maps the whole file read-only instead of issuing positioned reads.
func WithMmap(enabled bool) Option {
	return func(p *File) error {
		if !enabled {
			return nil
		}
		b, err := mmapReadOnly(p.f)
		if err != nil {
			return fmt.Errorf("mmap %s: %w", p.path, err)
		}
		p.mapped = b
		return nil
	}
}

func Open(path string, opts ...Option) (*File, error) {
	info, err := container.ReadFileInfo(path)
	if err != nil {
		return nil, fmt.Errorf("read perambulator info: %w", err)
	}
	ti, ok := info.TensorByName(TensorName)
	if !ok {
		return nil, fmt.Errorf("%s: tensor %q not found", path, TensorName)
	}
	shape, err := ti.Shape()
	if err != nil {
		return nil, err
	}
	if err := validateLayout(shape); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	p := &File{path: path, info: info, ti: ti, shape: shape, f: f}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			_ = p.Close()
			return nil, err
		}
	}
	return p, nil
}

func (p *File) Close() error {
	var err error
	if p.mapped != nil {
		err = munmap(p.mapped)
		p.mapped = nil
	}
	if p.f != nil {
		if cerr := p.f.Close(); err == nil {
			err = cerr
		}
		p.f = nil
	}
	return err
}

func (p *File) Path() string              { return p.path }
func (p *File) Info() container.FileInfo { return p.info }
func (p *File) Sources() int              { return p.shape[0] }
func (p *File) Extent() int               { return p.shape[1] }
func (p *File) Modes() int                { return p.shape[4] }

// LastStats reports the statistics of the most recent Block call.
func (p *File) LastStats() ReadStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// Block returns tau for source timeslice t truncated to the leading usedNe
// modes in both mode axes, shape (Lt, 4, 4, usedNe, usedNe).
func (p *File) Block(ctx context.Context, t, usedNe int) (*tensor.Tensor, ReadStats, error) {
	if err := checkRequest(ctx, t, p.Sources(), usedNe, p.Modes()); err != nil {
		return nil, ReadStats{}, err
	}
	lt, ne := p.Extent(), p.Modes()
	count := lt * 16 * ne * ne
	full := make([]complex128, count)

	start := time.Now()
	var n int
	if p.mapped != nil {
		off, err := p.info.RegionOffset(p.ti, uint64(t)*uint64(count))
		if err != nil {
			return nil, ReadStats{}, err
		}
		size := count * container.ElementSize(p.ti.Type)
		if off+int64(size) > int64(len(p.mapped)) {
			return nil, ReadStats{}, fmt.Errorf("%s: block %d beyond mapped file", p.path, t)
		}
		if err := container.DecodeComplex(full, p.mapped[off:off+int64(size)], p.ti.Type); err != nil {
			return nil, ReadStats{}, err
		}
		n = size
	} else {
		var err error
		n, err = container.ReadRegion(p.f, p.info, p.ti, uint64(t)*uint64(count), full)
		if err != nil {
			return nil, ReadStats{}, fmt.Errorf("%s: source %d: %w", p.path, t, err)
		}
	}
	stats := ReadStats{Bytes: int64(n), Elapsed: time.Since(start)}

	p.mu.Lock()
	p.last = stats
	p.mu.Unlock()

	if usedNe == ne {
		block, err := tensor.FromData(full, lt, 4, 4, ne, ne)
		return block, stats, err
	}
	block, err := truncate(full, lt, ne, usedNe)
	return block, stats, err
}

// WriteFile stores a (Lt_src, Lt, 4, 4, Ne, Ne) perambulator as a container.
func WriteFile(path string, data *tensor.Tensor) error {
	shape := data.Shape()
	if err := validateLayout(shape); err != nil {
		return err
	}
	w := container.NewWriter()
	for _, kv := range []struct {
		key   string
		value any
	}{
		{"lattice.kind", TensorName},
		{"lattice.lt", shape[1]},
		{"lattice.ne", shape[4]},
	} {
		if err := w.SetKV(kv.key, kv.value); err != nil {
			return err
		}
	}
	if err := w.AddTensor(TensorName, container.TypeComplex128, data); err != nil {
		return err
	}
	return w.WriteFile(path)
}
