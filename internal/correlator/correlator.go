// Package correlator assembles two-point correlation functions from
// perambulator blocks and elemental factors.
//
// For a source timeslice t and relative sink time τ every assembly routine
// evaluates the trace of four square matrices over the fused spin⊗mode index:
//
//	C(τ) = Tr[ τ̄(τ) · V_snk(t+τ) · τ(τ) · V_src(t) ]
//
// where τ(τ) is the perambulator block, τ̄ = γ5·τ†·γ5 its backward
// counterpart, V_snk the sink vertex Σ_x Γ_x ⊗ Φ_x(t+τ) and V_src the source
// vertex Σ_y Γ'_y ⊗ Φ_y(t)†. Contributions are summed over the requested
// source timeslices, averaged and negated.
package correlator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"lattice-go/internal/elemental"
	"lattice-go/internal/insertion"
	"lattice-go/internal/kernels"
	"lattice-go/internal/logging"
	"lattice-go/internal/metrics"
	"lattice-go/internal/perambulator"
	"lattice-go/internal/tensor"
)

var (
	// ErrValidation is returned for precondition violations detected before
	// any data is read.
	ErrValidation = errors.New("correlator: invalid request")
	// ErrModeTruncation is returned when the requested mode truncation cannot
	// be served consistently by both data sources.
	ErrModeTruncation = errors.New("correlator: inconsistent mode truncation")
)

// Perambulator serves (Lt, 4, 4, usedNe, usedNe) blocks per source timeslice.
type Perambulator interface {
	Block(ctx context.Context, t, usedNe int) (*tensor.Tensor, perambulator.ReadStats, error)
	Modes() int
	Extent() int
}

// Elementals projects operators onto the mode basis, one factor per operator.
type Elementals interface {
	Load(ctx context.Context, ops []insertion.Operator, usedNe int) ([]elemental.Factor, error)
	Modes() int
	Extent() int
}

// Backend supplies the dense complex primitives the contraction is built on.
type Backend interface {
	MatMul(dst, a, b []complex128, n int)
	TraceProduct(a, b []complex128, n int) complex128
}

type kernelBackend struct{}

func (kernelBackend) MatMul(dst, a, b []complex128, n int) { kernels.CMatMul(dst, a, b, n) }
func (kernelBackend) TraceProduct(a, b []complex128, n int) complex128 {
	return kernels.TraceProduct(a, b, n)
}

// DefaultBackend returns the backend built on internal/kernels.
func DefaultBackend() Backend { return kernelBackend{} }

// Request carries the parameters shared by all assembly routines.
type Request struct {
	// Timeslices are the source timeslices averaged over, each in [0, Lt).
	Timeslices []int
	// Lt is the temporal extent of the lattice.
	Lt int
	// UsedNe is the mode truncation; 0 selects every stored mode.
	UsedNe int
}

// Engine runs the assembly routines. The zero value is ready to use: it logs
// nowhere, reports no metrics, uses the kernels backend and one worker per
// CPU.
type Engine struct {
	Logger  *slog.Logger
	Metrics metrics.Reporter
	Backend Backend
	// Workers bounds the sink times contracted concurrently. 0 means
	// kernels.DefaultWorkers.
	Workers int
}

func (e *Engine) logger() *slog.Logger {
	if e.Logger == nil {
		return logging.Discard()
	}
	return e.Logger
}

func (e *Engine) reporter() metrics.Reporter {
	if e.Metrics == nil {
		return metrics.Nop{}
	}
	return e.Metrics
}

func (e *Engine) backend() Backend {
	if e.Backend == nil {
		return kernelBackend{}
	}
	return e.Backend
}

func (e *Engine) workers() int {
	if e.Workers > 0 {
		return e.Workers
	}
	return kernels.DefaultWorkers()
}

func validateRequest(req Request, full bool) error {
	if req.Lt <= 0 {
		return fmt.Errorf("%w: Lt must be positive, got %d", ErrValidation, req.Lt)
	}
	if len(req.Timeslices) == 0 {
		return fmt.Errorf("%w: no timeslices", ErrValidation)
	}
	for _, t := range req.Timeslices {
		if t < 0 || t >= req.Lt {
			return fmt.Errorf("%w: timeslice %d not in [0,%d)", ErrValidation, t, req.Lt)
		}
	}
	if !full {
		return nil
	}
	if len(req.Timeslices) != req.Lt {
		return fmt.Errorf("%w: disconnected part needs all %d timeslices, got %d", ErrValidation, req.Lt, len(req.Timeslices))
	}
	seen := make([]bool, req.Lt)
	for _, t := range req.Timeslices {
		if seen[t] {
			return fmt.Errorf("%w: timeslice %d repeated", ErrValidation, t)
		}
		seen[t] = true
	}
	return nil
}

// resolveModes returns the mode truncation used for the whole call.
func resolveModes(usedNe int, pr Perambulator, el Elementals) (int, error) {
	pm, em := pr.Modes(), el.Modes()
	switch {
	case usedNe < 0:
		return 0, fmt.Errorf("%w: usedNe %d", ErrModeTruncation, usedNe)
	case usedNe == 0:
		if pm != em {
			return 0, fmt.Errorf("%w: perambulator has %d modes, elemental %d", ErrModeTruncation, pm, em)
		}
		return pm, nil
	case usedNe > pm || usedNe > em:
		return 0, fmt.Errorf("%w: usedNe %d exceeds available modes (perambulator %d, elemental %d)", ErrModeTruncation, usedNe, pm, em)
	}
	return usedNe, nil
}

func (e *Engine) prepare(req Request, full bool, nops int, pr Perambulator, el Elementals) (int, error) {
	if nops == 0 {
		return 0, fmt.Errorf("%w: no operators", ErrValidation)
	}
	if err := validateRequest(req, full); err != nil {
		return 0, err
	}
	if pr.Extent() != req.Lt {
		return 0, fmt.Errorf("%w: perambulator time extent %d, Lt %d", tensor.ErrShapeMismatch, pr.Extent(), req.Lt)
	}
	if el.Extent() != req.Lt {
		return 0, fmt.Errorf("%w: elemental time extent %d, Lt %d", tensor.ErrShapeMismatch, el.Extent(), req.Lt)
	}
	return resolveModes(req.UsedNe, pr, el)
}

func checkFactors(side string, fs []elemental.Factor, want, lt, ne int) error {
	if len(fs) != want {
		return fmt.Errorf("%w: %d %s factors for %d operators", tensor.ErrShapeMismatch, len(fs), side, want)
	}
	for i, f := range fs {
		if err := f.Modes.Expect(fmt.Sprintf("%s factor %d", side, i), len(f.Spin), lt, ne, ne); err != nil {
			return err
		}
	}
	return nil
}
