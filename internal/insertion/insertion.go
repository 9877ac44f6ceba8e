// Package insertion describes the interpolating operators whose correlators
// are assembled: each operator is a named linear combination of insertions,
// and each insertion pairs a gamma-matrix spin structure with one elemental
// row (a derivative pattern at a lattice momentum).
package insertion

import (
	"errors"
	"fmt"
	"strings"

	"lattice-go/internal/gamma"
)

var (
	// ErrEmptyOperator is returned for operators without insertions.
	ErrEmptyOperator = errors.New("insertion: operator has no insertions")
	// ErrCoefficientCount is returned when insertions and coefficients differ in length.
	ErrCoefficientCount = errors.New("insertion: insertion/coefficient length mismatch")
	// ErrGammaIndex is returned for gamma indices outside the gamma table.
	ErrGammaIndex = errors.New("insertion: invalid gamma index")
)

// Momentum is a lattice momentum in units of 2π/L.
type Momentum [3]int

func (p Momentum) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// Insertion is one gamma ⊗ elemental-row term.
type Insertion struct {
	Gamma      int
	Derivative int
	Momentum   Momentum
}

func (in Insertion) String() string {
	return fmt.Sprintf("g%d.d%d.p%s", in.Gamma, in.Derivative, in.Momentum)
}

// Row is a momentum-parametrised insertion.
type Row func(p Momentum) Insertion

// NewRow returns a Row with fixed gamma and derivative.
func NewRow(gammaIndex, derivative int) Row {
	return func(p Momentum) Insertion {
		return Insertion{Gamma: gammaIndex, Derivative: derivative, Momentum: p}
	}
}

// Operator is an immutable linear combination of insertions.
type Operator struct {
	name   string
	parts  []Insertion
	coeffs []complex128
}

// NewOperator validates and builds an operator. A nil coeffs slice means a
// unit coefficient for every insertion.
func NewOperator(name string, parts []Insertion, coeffs []complex128) (Operator, error) {
	if len(parts) == 0 {
		return Operator{}, fmt.Errorf("%w: %q", ErrEmptyOperator, name)
	}
	if coeffs == nil {
		coeffs = make([]complex128, len(parts))
		for i := range coeffs {
			coeffs[i] = 1
		}
	}
	if len(coeffs) != len(parts) {
		return Operator{}, fmt.Errorf("%w: %q has %d insertions, %d coefficients", ErrCoefficientCount, name, len(parts), len(coeffs))
	}
	for _, p := range parts {
		if _, err := gamma.Gamma(p.Gamma); err != nil {
			return Operator{}, fmt.Errorf("%w: %q uses %d", ErrGammaIndex, name, p.Gamma)
		}
	}
	return Operator{
		name:   name,
		parts:  append([]Insertion(nil), parts...),
		coeffs: append([]complex128(nil), coeffs...),
	}, nil
}

// Single builds a one-term operator.
func Single(name string, in Insertion, coeff complex128) (Operator, error) {
	return NewOperator(name, []Insertion{in}, []complex128{coeff})
}

func (o Operator) Name() string { return o.name }

// Len is the number of insertion terms.
func (o Operator) Len() int { return len(o.parts) }

// Term returns insertion x and its coefficient.
func (o Operator) Term(x int) (Insertion, complex128) {
	return o.parts[x], o.coeffs[x]
}

func (o Operator) String() string {
	var b strings.Builder
	if o.name != "" {
		b.WriteString(o.name)
		b.WriteString("=")
	}
	for i, p := range o.parts {
		if i > 0 {
			b.WriteString("+")
		}
		fmt.Fprintf(&b, "(%g)%s", o.coeffs[i], p)
	}
	return b.String()
}
