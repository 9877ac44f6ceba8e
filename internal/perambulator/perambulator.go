// Package perambulator provides access to precomputed perambulators: for each
// source timeslice a block tau[τ,s1,s2,m1,m2] over relative sink time τ,
// spin and eigenvector-mode indices.
package perambulator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"lattice-go/internal/kernels"
	"lattice-go/internal/tensor"
)

// TensorName is the container tensor holding the perambulator, with
// dimensions (Lt_src, Lt, 4, 4, Ne, Ne).
const TensorName = "perambulator"

var (
	// ErrSourceRange is returned for a source timeslice outside the stored range.
	ErrSourceRange = errors.New("perambulator: source timeslice out of range")
	// ErrModeRange is returned when more modes are requested than stored.
	ErrModeRange = errors.New("perambulator: mode truncation exceeds stored modes")
	// ErrLayout is returned when the stored tensor does not have the expected rank or spin extents.
	ErrLayout = errors.New("perambulator: unexpected tensor layout")
)

// ReadStats describes the most recent block read.
type ReadStats struct {
	Bytes   int64
	Elapsed time.Duration
}

// MBPerSec is the read throughput in MiB/s, 0 when nothing was timed.
func (s ReadStats) MBPerSec() float64 {
	if s.Elapsed <= 0 {
		return 0
	}
	return float64(s.Bytes) / s.Elapsed.Seconds() / (1024 * 1024)
}

func validateLayout(shape []int) error {
	if len(shape) != 6 || shape[2] != kernels.Ns || shape[3] != kernels.Ns || shape[4] != shape[5] {
		return fmt.Errorf("%w: %v, want (Lt_src, Lt, %d, %d, Ne, Ne)", ErrLayout, shape, kernels.Ns, kernels.Ns)
	}
	return nil
}

// truncate copies the leading usedNe×usedNe modes of a full (Lt,4,4,ne,ne)
// block into a new tensor.
func truncate(full []complex128, lt, ne, usedNe int) (*tensor.Tensor, error) {
	out, err := tensor.New(lt, kernels.Ns, kernels.Ns, usedNe, usedNe)
	if err != nil {
		return nil, err
	}
	dst := out.Data()
	blocks := lt * kernels.Ns * kernels.Ns
	for b := 0; b < blocks; b++ {
		src := full[b*ne*ne:]
		for m1 := 0; m1 < usedNe; m1++ {
			copy(dst[(b*usedNe+m1)*usedNe:(b*usedNe+m1+1)*usedNe], src[m1*ne:m1*ne+usedNe])
		}
	}
	return out, nil
}

func checkRequest(ctx context.Context, t, sources, usedNe, ne int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if t < 0 || t >= sources {
		return fmt.Errorf("%w: %d not in [0,%d)", ErrSourceRange, t, sources)
	}
	if usedNe <= 0 || usedNe > ne {
		return fmt.Errorf("%w: %d of %d", ErrModeRange, usedNe, ne)
	}
	return nil
}

// Memory serves blocks from an in-memory (Lt_src, Lt, 4, 4, Ne, Ne) tensor.
type Memory struct {
	data  *tensor.Tensor
	shape []int
}

func NewMemory(data *tensor.Tensor) (*Memory, error) {
	shape := data.Shape()
	if err := validateLayout(shape); err != nil {
		return nil, err
	}
	return &Memory{data: data, shape: shape}, nil
}

func (m *Memory) Sources() int { return m.shape[0] }
func (m *Memory) Extent() int  { return m.shape[1] }
func (m *Memory) Modes() int   { return m.shape[4] }

func (m *Memory) Block(ctx context.Context, t, usedNe int) (*tensor.Tensor, ReadStats, error) {
	if err := checkRequest(ctx, t, m.Sources(), usedNe, m.Modes()); err != nil {
		return nil, ReadStats{}, err
	}
	start := time.Now()
	full, err := m.data.Index(t)
	if err != nil {
		return nil, ReadStats{}, err
	}
	block, err := truncate(full.Data(), m.Extent(), m.Modes(), usedNe)
	if err != nil {
		return nil, ReadStats{}, err
	}
	return block, ReadStats{Bytes: int64(full.Len()) * 16, Elapsed: time.Since(start)}, nil
}
