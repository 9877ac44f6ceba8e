package kernels

import "math/cmplx"

// Ns is the number of spin components carried by every spin-mode block.
const Ns = 4

// Fuse rewrites a spin-mode block stored as [s1][s2][m1][m2] (the
// perambulator layout) into a square matrix over the fused index
// (s,m) -> s*ne+m, i.e. dst[(s1*ne+m1)*(Ns*ne) + s2*ne+m2].
func Fuse(dst, src []complex128, ne int) {
	n := Ns * ne
	if ne <= 0 || len(dst) < n*n || len(src) < n*n {
		return
	}
	for s1 := 0; s1 < Ns; s1++ {
		for s2 := 0; s2 < Ns; s2++ {
			blk := src[(s1*Ns+s2)*ne*ne:]
			for m1 := 0; m1 < ne; m1++ {
				copy(dst[(s1*ne+m1)*n+s2*ne:(s1*ne+m1)*n+(s2+1)*ne], blk[m1*ne:(m1+1)*ne])
			}
		}
	}
}

// Backward computes dst = G·src†·G on the fused spin-mode index where G is
// the diagonal spin matrix g (acting on the spin part only). With g the
// diagonal of γ5 this is the time-reversed propagator.
func Backward(dst, src []complex128, g [Ns]complex128, ne int) {
	n := Ns * ne
	if ne <= 0 || len(dst) < n*n || len(src) < n*n {
		return
	}
	for p := 0; p < n; p++ {
		gp := g[p/ne]
		for q := 0; q < n; q++ {
			dst[p*n+q] = gp * cmplx.Conj(src[q*n+p]) * g[q/ne]
		}
	}
}

// KronMode selects how the mode matrix enters AccumulateKron.
type KronMode int

const (
	// KronPlain uses the mode matrix as stored.
	KronPlain KronMode = iota
	// KronDagger uses the conjugate transpose of the mode matrix.
	KronDagger
)

// AccumulateKron adds spin⊗modes to the fused ne*Ns square matrix dst:
// dst[(s1*ne+m1),(s2*ne+m2)] += spin[s1][s2]·M[m1][m2] where M is modes or
// its conjugate transpose depending on mode.
func AccumulateKron(dst []complex128, spin *[Ns][Ns]complex128, modes []complex128, ne int, mode KronMode) {
	n := Ns * ne
	if ne <= 0 || len(dst) < n*n || len(modes) < ne*ne {
		return
	}
	for s1 := 0; s1 < Ns; s1++ {
		for s2 := 0; s2 < Ns; s2++ {
			c := spin[s1][s2]
			if c == 0 {
				continue
			}
			for m1 := 0; m1 < ne; m1++ {
				out := dst[(s1*ne+m1)*n+s2*ne : (s1*ne+m1)*n+(s2+1)*ne]
				if mode == KronDagger {
					for m2 := range out {
						out[m2] += c * cmplx.Conj(modes[m2*ne+m1])
					}
					continue
				}
				row := modes[m1*ne : (m1+1)*ne]
				for m2 := range out {
					out[m2] += c * row[m2]
				}
			}
		}
	}
}
