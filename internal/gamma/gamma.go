// Package gamma provides the Dirac gamma-matrix table in the DeGrand-Rossi
// basis. Index n in [0,16) selects the product γ1^b0 γ2^b1 γ3^b2 γ4^b3 where
// b0..b3 are the bits of n, so Gamma(15) is γ5 = diag(1,1,-1,-1) and
// Gamma(8) is γ4.
package gamma

import (
	"errors"
	"fmt"
	"math/cmplx"
)

// Ns is the number of spin components.
const Ns = 4

// Frequently used indices.
const (
	Identity = 0
	G4       = 8
	G5       = 15
)

// ErrUnknownIndex is returned for indices outside [0,16).
var ErrUnknownIndex = errors.New("gamma: unknown index")

// Matrix is a 4x4 complex spin matrix, row-major.
type Matrix [Ns][Ns]complex128

var basis = [4]Matrix{
	{ // γ1
		{0, 0, 0, 1i},
		{0, 0, 1i, 0},
		{0, -1i, 0, 0},
		{-1i, 0, 0, 0},
	},
	{ // γ2
		{0, 0, 0, -1},
		{0, 0, 1, 0},
		{0, 1, 0, 0},
		{-1, 0, 0, 0},
	},
	{ // γ3
		{0, 0, 1i, 0},
		{0, 0, 0, -1i},
		{-1i, 0, 0, 0},
		{0, 1i, 0, 0},
	},
	{ // γ4
		{0, 0, 1, 0},
		{0, 0, 0, 1},
		{1, 0, 0, 0},
		{0, 1, 0, 0},
	},
}

var table = buildTable()

func buildTable() [16]Matrix {
	var out [16]Matrix
	for n := 0; n < 16; n++ {
		m := identity()
		for mu := 0; mu < 4; mu++ {
			if n&(1<<mu) != 0 {
				m = Mul(m, basis[mu])
			}
		}
		out[n] = m
	}
	return out
}

func identity() Matrix {
	var m Matrix
	for i := 0; i < Ns; i++ {
		m[i][i] = 1
	}
	return m
}

// Gamma returns the gamma matrix for index n.
func Gamma(n int) (Matrix, error) {
	if n < 0 || n >= len(table) {
		return Matrix{}, fmt.Errorf("%w: %d", ErrUnknownIndex, n)
	}
	return table[n], nil
}

// MustGamma is Gamma for indices known to be valid.
func MustGamma(n int) Matrix {
	m, err := Gamma(n)
	if err != nil {
		panic(err)
	}
	return m
}

// Mul returns a·b.
func Mul(a, b Matrix) Matrix {
	var out Matrix
	for i := 0; i < Ns; i++ {
		for k := 0; k < Ns; k++ {
			if a[i][k] == 0 {
				continue
			}
			for j := 0; j < Ns; j++ {
				out[i][j] += a[i][k] * b[k][j]
			}
		}
	}
	return out
}

// Dagger returns the conjugate transpose.
func (m Matrix) Dagger() Matrix {
	var out Matrix
	for i := 0; i < Ns; i++ {
		for j := 0; j < Ns; j++ {
			out[i][j] = cmplx.Conj(m[j][i])
		}
	}
	return out
}

// Scale returns c·m.
func (m Matrix) Scale(c complex128) Matrix {
	for i := 0; i < Ns; i++ {
		for j := 0; j < Ns; j++ {
			m[i][j] *= c
		}
	}
	return m
}

// Diag returns the diagonal entries.
func (m Matrix) Diag() [Ns]complex128 {
	var d [Ns]complex128
	for i := 0; i < Ns; i++ {
		d[i] = m[i][i]
	}
	return d
}

// Sandwich returns g · m† · g, the source-vertex conjugation used for
// operator-matrix correlators.
func Sandwich(g, m Matrix) Matrix {
	return Mul(Mul(g, m.Dagger()), g)
}
