package kernels

import (
	"math/cmplx"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func randomMatrix(r *rand.Rand, n int) []complex128 {
	m := make([]complex128, n*n)
	for i := range m {
		m[i] = complex(r.Float64()-0.5, r.Float64()-0.5)
	}
	return m
}

func requireClose(t *testing.T, want, got []complex128, tol float64) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		if cmplx.Abs(want[i]-got[i]) > tol {
			t.Fatalf("element %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestCMatMulSmall(t *testing.T) {
	// [1 2] [0 1]   [2 1]
	// [i 0] [1 0] = [0 i]
	a := []complex128{1, 2, 1i, 0}
	b := []complex128{0, 1, 1, 0}
	dst := make([]complex128, 4)
	CMatMul(dst, a, b, 2)
	require.Equal(t, []complex128{2, 1, 0, 1i}, dst)
}

func TestCMatMulVariantsAgree(t *testing.T) {
	r := rand.New(rand.NewSource(3))
	for _, n := range []int{1, 3, 4, 7, 12} {
		a := randomMatrix(r, n)
		b := randomMatrix(r, n)
		want := make([]complex128, n*n)
		got := make([]complex128, n*n)
		cMatMulGeneric(want, a, b, n)
		for i := range got {
			got[i] = 99 // stale content must be overwritten
		}
		cMatMulRows(got, a, b, n)
		requireClose(t, want, got, 1e-12)
	}
}

func TestTraceProductMatchesProduct(t *testing.T) {
	r := rand.New(rand.NewSource(5))
	n := 8
	a := randomMatrix(r, n)
	b := randomMatrix(r, n)
	ab := make([]complex128, n*n)
	CMatMul(ab, a, b, n)
	want := Trace(ab, n)
	got := TraceProduct(a, b, n)
	require.InDelta(t, real(want), real(got), 1e-12)
	require.InDelta(t, imag(want), imag(got), 1e-12)
}

func TestFuseLayout(t *testing.T) {
	ne := 2
	src := make([]complex128, Ns*Ns*ne*ne)
	for i := range src {
		src[i] = complex(float64(i), 0)
	}
	dst := make([]complex128, len(src))
	Fuse(dst, src, ne)

	n := Ns * ne
	for s1 := 0; s1 < Ns; s1++ {
		for s2 := 0; s2 < Ns; s2++ {
			for m1 := 0; m1 < ne; m1++ {
				for m2 := 0; m2 < ne; m2++ {
					want := src[((s1*Ns+s2)*ne+m1)*ne+m2]
					got := dst[(s1*ne+m1)*n+s2*ne+m2]
					require.Equalf(t, want, got, "s=(%d,%d) m=(%d,%d)", s1, s2, m1, m2)
				}
			}
		}
	}
}

func TestBackwardIsInvolution(t *testing.T) {
	r := rand.New(rand.NewSource(11))
	ne := 3
	n := Ns * ne
	src := randomMatrix(r, n)
	g := [Ns]complex128{1, 1, -1, -1}

	once := make([]complex128, n*n)
	twice := make([]complex128, n*n)
	Backward(once, src, g, ne)
	Backward(twice, once, g, ne)
	requireClose(t, src, twice, 0)

	// Entry check: dst[p,q] = g[p]·conj(src[q,p])·g[q].
	p, q := 1, 2*ne+1
	require.Equal(t, -cmplx.Conj(src[q*n+p]), once[p*n+q])
}

func TestAccumulateKron(t *testing.T) {
	ne := 2
	n := Ns * ne
	var spin [Ns][Ns]complex128
	spin[0][1] = 2
	spin[3][3] = 1i
	modes := []complex128{1, 2i, 3, 4}

	plain := make([]complex128, n*n)
	AccumulateKron(plain, &spin, modes, ne, KronPlain)
	require.Equal(t, complex128(2*2i), plain[(0*ne+0)*n+1*ne+1])
	require.Equal(t, complex128(2*3), plain[(0*ne+1)*n+1*ne+0])
	require.Equal(t, complex128(1i*4), plain[(3*ne+1)*n+3*ne+1])
	require.Equal(t, complex128(0), plain[(1*ne+0)*n+0])

	dag := make([]complex128, n*n)
	AccumulateKron(dag, &spin, modes, ne, KronDagger)
	// M†[0][1] = conj(M[1][0]) = 3, M†[1][0] = conj(M[0][1]) = -2i
	require.Equal(t, complex128(2*3), dag[(0*ne+0)*n+1*ne+1])
	require.Equal(t, complex128(2*-2i), dag[(0*ne+1)*n+1*ne+0])

	// Accumulation adds on top of existing content.
	AccumulateKron(dag, &spin, modes, ne, KronDagger)
	require.Equal(t, complex128(12), dag[(0*ne+0)*n+1*ne+1])
}
