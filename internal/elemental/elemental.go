// Package elemental loads mode-projected operator data. Each stored row is
// the (Lt, Ne, Ne) elemental of one derivative pattern at one momentum; an
// operator's Factor pairs those rows with its gamma structure and
// coefficients.
package elemental

import (
	"context"
	"errors"
	"fmt"

	"lattice-go/internal/gamma"
	"lattice-go/internal/insertion"
	"lattice-go/internal/tensor"
)

// TensorName is the container tensor holding elementals, with dimensions
// (Nderiv, Nmom, Lt, Ne, Ne).
const TensorName = "elemental"

// KeyMomenta lists the stored momenta as a flat int32 array of triples.
const KeyMomenta = "elemental.momenta"

var (
	// ErrUnknownRow is returned for a (derivative, momentum) pair that is not stored.
	ErrUnknownRow = errors.New("elemental: row not stored")
	// ErrModeRange is returned when more modes are requested than stored.
	ErrModeRange = errors.New("elemental: mode truncation exceeds stored modes")
	// ErrLayout is returned for malformed stored data.
	ErrLayout = errors.New("elemental: unexpected layout")
)

// Key identifies one elemental row.
type Key struct {
	Derivative int
	Momentum   insertion.Momentum
}

// RowSource serves elemental rows truncated to usedNe modes, shape
// (Lt, usedNe, usedNe).
type RowSource interface {
	Row(ctx context.Context, key Key, usedNe int) (*tensor.Tensor, error)
	Modes() int
	Extent() int
}

// Factor is the projected form of one operator: Spin[x] is the coefficient
// times the gamma matrix of term x, Modes[x] its (Lt, Ne, Ne) elemental.
type Factor struct {
	Spin  []gamma.Matrix
	Modes *tensor.Tensor
}

// Terms is the number of insertion terms in the factor.
func (f Factor) Terms() int { return len(f.Spin) }

// Store turns operators into factors using a RowSource.
type Store struct {
	src RowSource
}

func NewStore(src RowSource) *Store {
	return &Store{src: src}
}

func (s *Store) Modes() int  { return s.src.Modes() }
func (s *Store) Extent() int { return s.src.Extent() }

// Load returns one factor per operator, in order. Each distinct row is
// fetched once per call no matter how many operators share it.
func (s *Store) Load(ctx context.Context, ops []insertion.Operator, usedNe int) ([]Factor, error) {
	if usedNe <= 0 || usedNe > s.src.Modes() {
		return nil, fmt.Errorf("%w: %d of %d", ErrModeRange, usedNe, s.src.Modes())
	}
	lt := s.src.Extent()
	rows := make(map[Key]*tensor.Tensor)
	out := make([]Factor, len(ops))
	for i, op := range ops {
		n := op.Len()
		modes, err := tensor.New(n, lt, usedNe, usedNe)
		if err != nil {
			return nil, fmt.Errorf("operator %d (%s): %w", i, op.Name(), err)
		}
		spin := make([]gamma.Matrix, n)
		for x := 0; x < n; x++ {
			in, coeff := op.Term(x)
			g, err := gamma.Gamma(in.Gamma)
			if err != nil {
				return nil, fmt.Errorf("operator %d (%s): %w", i, op.Name(), err)
			}
			spin[x] = g.Scale(coeff)

			key := Key{Derivative: in.Derivative, Momentum: in.Momentum}
			row, ok := rows[key]
			if !ok {
				row, err = s.src.Row(ctx, key, usedNe)
				if err != nil {
					return nil, fmt.Errorf("operator %d (%s): %w", i, op.Name(), err)
				}
				if err := row.Expect("elemental row", lt, usedNe, usedNe); err != nil {
					return nil, err
				}
				rows[key] = row
			}
			dst, _ := modes.Index(x)
			copy(dst.Data(), row.Data())
		}
		out[i] = Factor{Spin: spin, Modes: modes}
	}
	return out, nil
}
