package correlator

import (
	"lattice-go/internal/elemental"
	"lattice-go/internal/gamma"
	"lattice-go/internal/kernels"
)

type spin = [kernels.Ns][kernels.Ns]complex128

// backwardSign is the diagonal of γ5 applied on both sides of τ†.
var backwardSign = gamma.MustGamma(gamma.G5).Diag()

// backward fills fwd with the fused block τ(τ) and bwd with γ5·τ(τ)†·γ5.
// blk is one (4, 4, ne, ne) sink time of a perambulator block.
func backward(fwd, bwd, blk []complex128, ne int) {
	kernels.Fuse(fwd, blk, ne)
	kernels.Backward(bwd, fwd, backwardSign, ne)
}

// sourceSpins returns the spin matrices entering the source vertex: the
// factor's own, or γ4·Γ†·γ4 per term when sandwich is set.
func sourceSpins(f elemental.Factor, sandwich bool) []gamma.Matrix {
	if !sandwich {
		return f.Spin
	}
	g := gamma.MustGamma(gamma.G4)
	out := make([]gamma.Matrix, len(f.Spin))
	for i, s := range f.Spin {
		out[i] = gamma.Sandwich(g, s)
	}
	return out
}

// modeSlice returns Φ_x(time) as a flat ne×ne matrix.
func modeSlice(f elemental.Factor, x, time, ne int) []complex128 {
	lt := f.Modes.Dim(1)
	off := (x*lt + time) * ne * ne
	return f.Modes.Data()[off : off+ne*ne]
}

// sinkVertex fills dst with Σ_x Γ_x ⊗ Φ_x(time).
func sinkVertex(dst []complex128, f elemental.Factor, time, ne int) {
	clear(dst)
	for x := range f.Spin {
		kernels.AccumulateKron(dst, (*spin)(&f.Spin[x]), modeSlice(f, x, time, ne), ne, kernels.KronPlain)
	}
}

// sourceVertex fills dst with Σ_y S_y ⊗ Φ_y(time)†.
func sourceVertex(dst []complex128, f elemental.Factor, spins []gamma.Matrix, time, ne int) {
	clear(dst)
	for y := range spins {
		kernels.AccumulateKron(dst, (*spin)(&spins[y]), modeSlice(f, y, time, ne), ne, kernels.KronDagger)
	}
}
