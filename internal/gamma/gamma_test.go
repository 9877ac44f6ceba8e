package gamma

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGamma5IsDiagonal(t *testing.T) {
	g5 := MustGamma(G5)
	want := Matrix{
		{1, 0, 0, 0},
		{0, 1, 0, 0},
		{0, 0, -1, 0},
		{0, 0, 0, -1},
	}
	require.Equal(t, want, g5)
}

func TestGamma8IsGamma4(t *testing.T) {
	require.Equal(t, basis[3], MustGamma(G4))
	require.Equal(t, identity(), MustGamma(Identity))
}

func TestCliffordAlgebra(t *testing.T) {
	// {γμ, γν} = 2 δμν
	for mu := 0; mu < 4; mu++ {
		for nu := 0; nu < 4; nu++ {
			ab := Mul(basis[mu], basis[nu])
			ba := Mul(basis[nu], basis[mu])
			for i := 0; i < Ns; i++ {
				for j := 0; j < Ns; j++ {
					want := complex128(0)
					if mu == nu && i == j {
						want = 2
					}
					require.Equalf(t, want, ab[i][j]+ba[i][j], "mu=%d nu=%d (%d,%d)", mu, nu, i, j)
				}
			}
		}
	}
}

func TestGammaHermitian(t *testing.T) {
	for mu := 0; mu < 4; mu++ {
		require.Equal(t, basis[mu], basis[mu].Dagger())
	}
}

func TestGammaUnknownIndex(t *testing.T) {
	_, err := Gamma(16)
	require.ErrorIs(t, err, ErrUnknownIndex)
	_, err = Gamma(-1)
	require.ErrorIs(t, err, ErrUnknownIndex)
}

func TestSandwichIdentity(t *testing.T) {
	// γ4 · 1 · γ4 = 1
	require.Equal(t, identity(), Sandwich(MustGamma(G4), identity()))

	// γ4 · γ5† · γ4 = -γ5
	got := Sandwich(MustGamma(G4), MustGamma(G5))
	require.Equal(t, MustGamma(G5).Scale(-1), got)
}
