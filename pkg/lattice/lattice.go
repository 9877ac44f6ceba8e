// Package lattice computes two-point correlators from perambulator and
// elemental container files.
package lattice

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"lattice-go/internal/correlator"
	"lattice-go/internal/elemental"
	"lattice-go/internal/insertion"
	"lattice-go/internal/perambulator"
	"lattice-go/internal/tensor"
)

// Result modes, also stored as lattice.mode in written results.
const (
	ModeTwopoint  = "twopoint"
	ModeMatrix    = "matrix"
	ModeIsoscalar = "isoscalar"
	ModeMultiMom  = "multi_mom"
)

// Re-exported engine errors for errors.Is.
var (
	ErrValidation     = correlator.ErrValidation
	ErrModeTruncation = correlator.ErrModeTruncation
)

type Insertion struct {
	Gamma      int
	Derivative int
	Momentum   [3]int
}

// Operator is a linear combination of insertions. Nil Coefficients means 1
// for every insertion.
type Operator struct {
	Name         string
	Insertions   []Insertion
	Coefficients []complex128
}

// Row is an insertion evaluated at each momentum of a multi-momentum run.
type Row struct {
	Gamma      int
	Derivative int
}

// Reporter receives throughput and timing observations.
type Reporter interface {
	ObserveRead(bytes int64, elapsed time.Duration)
	ObserveTimeslice(kind string, elapsed time.Duration)
}

type Options struct {
	// Mmap maps the perambulator file read-only instead of issuing reads.
	Mmap    bool
	Workers int
	Logger  *slog.Logger
	Metrics Reporter
	// RunID tags results; a random UUID when empty.
	RunID string
}

type Request struct {
	Timeslices []int
	Lt         int
	UsedNe     int
}

// Result is a correlator array with the metadata needed to interpret it.
type Result struct {
	Mode       string
	RunID      string
	Shape      []int
	Data       []complex128
	Operators  []string
	Momenta    [][3]int
	Timeslices []int
	Lt         int
	UsedNe     int
}

type Info struct {
	ElementalPath    string
	PerambulatorPath string
	Lt               int
	Sources          int
	PerambulatorNe   int
	ElementalNe      int
	Derivatives      int
	Momenta          [][3]int
}

type Session struct {
	peram  *perambulator.File
	elem   *elemental.File
	store  *elemental.Store
	engine *correlator.Engine
	runID  string
}

func Open(ctx context.Context, elementalPath, perambulatorPath string, opts Options) (*Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	peram, err := perambulator.Open(perambulatorPath, perambulator.WithMmap(opts.Mmap))
	if err != nil {
		return nil, fmt.Errorf("open perambulator: %w", err)
	}
	elem, err := elemental.Open(elementalPath)
	if err != nil {
		peram.Close()
		return nil, fmt.Errorf("open elemental: %w", err)
	}
	runID := opts.RunID
	if runID == "" {
		runID = uuid.NewString()
	}
	engine := &correlator.Engine{Logger: opts.Logger, Workers: opts.Workers}
	if opts.Metrics != nil {
		engine.Metrics = opts.Metrics
	}
	return &Session{
		peram:  peram,
		elem:   elem,
		store:  elemental.NewStore(elem),
		engine: engine,
		runID:  runID,
	}, nil
}

func (s *Session) Close() error {
	errP := s.peram.Close()
	errE := s.elem.Close()
	if errP != nil {
		return errP
	}
	return errE
}

func (s *Session) RunID() string { return s.runID }

func (s *Session) Info() Info {
	moms := s.elem.Momenta()
	out := make([][3]int, len(moms))
	for i, p := range moms {
		out[i] = p
	}
	return Info{
		ElementalPath:    s.elem.Path(),
		PerambulatorPath: s.peram.Path(),
		Lt:               s.peram.Extent(),
		Sources:          s.peram.Sources(),
		PerambulatorNe:   s.peram.Modes(),
		ElementalNe:      s.elem.Modes(),
		Derivatives:      s.elem.Derivatives(),
		Momenta:          out,
	}
}

func toOperators(ops []Operator) ([]insertion.Operator, []string, error) {
	out := make([]insertion.Operator, len(ops))
	names := make([]string, len(ops))
	for i, op := range ops {
		parts := make([]insertion.Insertion, len(op.Insertions))
		for j, in := range op.Insertions {
			parts[j] = insertion.Insertion{Gamma: in.Gamma, Derivative: in.Derivative, Momentum: insertion.Momentum(in.Momentum)}
		}
		built, err := insertion.NewOperator(op.Name, parts, op.Coefficients)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		out[i] = built
		names[i] = built.String()
	}
	return out, names, nil
}

func (s *Session) result(mode string, x *tensor.Tensor, names []string, req Request) Result {
	usedNe := req.UsedNe
	if usedNe == 0 {
		usedNe = s.peram.Modes()
	}
	return Result{
		Mode:       mode,
		RunID:      s.runID,
		Shape:      x.Shape(),
		Data:       x.Data(),
		Operators:  names,
		Timeslices: append([]int(nil), req.Timeslices...),
		Lt:         req.Lt,
		UsedNe:     usedNe,
	}
}

func engineRequest(req Request) correlator.Request {
	return correlator.Request{Timeslices: req.Timeslices, Lt: req.Lt, UsedNe: req.UsedNe}
}

type assembleFunc func(context.Context, []insertion.Operator, correlator.Elementals, correlator.Perambulator, correlator.Request) (*tensor.Tensor, error)

func (s *Session) assemble(ctx context.Context, mode string, fn assembleFunc, ops []Operator, req Request) (Result, error) {
	built, names, err := toOperators(ops)
	if err != nil {
		return Result{}, err
	}
	x, err := fn(ctx, built, s.store, s.peram, engineRequest(req))
	if err != nil {
		return Result{}, err
	}
	return s.result(mode, x, names, req), nil
}

// Twopoint returns the (Nop, Lt) diagonal correlators.
func (s *Session) Twopoint(ctx context.Context, ops []Operator, req Request) (Result, error) {
	return s.assemble(ctx, ModeTwopoint, s.engine.Twopoint, ops, req)
}

// TwopointMatrix returns the (Nop, Nop, Lt) correlator matrix.
func (s *Session) TwopointMatrix(ctx context.Context, ops []Operator, req Request) (Result, error) {
	return s.assemble(ctx, ModeMatrix, s.engine.TwopointMatrix, ops, req)
}

// TwopointIsoscalar returns the (Nop, Lt) connected plus disconnected
// correlators. req.Timeslices must list every timeslice once.
func (s *Session) TwopointIsoscalar(ctx context.Context, ops []Operator, req Request) (Result, error) {
	return s.assemble(ctx, ModeIsoscalar, s.engine.TwopointIsoscalar, ops, req)
}

// TwopointMatrixMultiMom returns the (Nmom, Nop, Nop, Lt) correlator
// matrices of rows at each momentum.
func (s *Session) TwopointMatrixMultiMom(ctx context.Context, rows []Row, moms [][3]int, coeffs []complex128, req Request) (Result, error) {
	irows := make([]insertion.Row, len(rows))
	names := make([]string, len(rows))
	for i, r := range rows {
		irows[i] = insertion.NewRow(r.Gamma, r.Derivative)
		names[i] = fmt.Sprintf("g%d.d%d", r.Gamma, r.Derivative)
	}
	imoms := make([]insertion.Momentum, len(moms))
	for i, p := range moms {
		imoms[i] = insertion.Momentum(p)
	}
	x, err := s.engine.TwopointMatrixMultiMom(ctx, irows, imoms, coeffs, s.store, s.peram, engineRequest(req))
	if err != nil {
		return Result{}, err
	}
	res := s.result(ModeMultiMom, x, names, req)
	res.Momenta = append([][3]int(nil), moms...)
	return res, nil
}
