package elemental

import (
	"context"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lattice-go/internal/gamma"
	"lattice-go/internal/insertion"
	"lattice-go/internal/tensor"
)

var testMomenta = []insertion.Momentum{{0, 0, 0}, {1, 0, 0}, {0, -1, 0}}

func randomElemental(t *testing.T, nderiv, lt, ne int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.New(nderiv, len(testMomenta), lt, ne, ne)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(int64(nderiv*100 + lt*10 + ne)))
	for i := range x.Data() {
		x.Data()[i] = complex(r.NormFloat64(), r.NormFloat64())
	}
	return x
}

// countingSource records how many rows were requested.
type countingSource struct {
	*Memory
	calls int
}

func (c *countingSource) Row(ctx context.Context, key Key, usedNe int) (*tensor.Tensor, error) {
	c.calls++
	return c.Memory.Row(ctx, key, usedNe)
}

func TestMemoryRowTruncates(t *testing.T) {
	data := randomElemental(t, 2, 3, 4)
	m, err := NewMemory(data, testMomenta)
	require.NoError(t, err)
	require.Equal(t, 4, m.Modes())
	require.Equal(t, 3, m.Extent())

	row, err := m.Row(context.Background(), Key{Derivative: 1, Momentum: insertion.Momentum{1, 0, 0}}, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3, 2, 2}, row.Shape())
	for lt := 0; lt < 3; lt++ {
		for a := 0; a < 2; a++ {
			for b := 0; b < 2; b++ {
				require.Equal(t, data.At(1, 1, lt, a, b), row.At(lt, a, b))
			}
		}
	}
}

func TestMemoryRejectsUnknownRows(t *testing.T) {
	m, err := NewMemory(randomElemental(t, 1, 2, 2), testMomenta)
	require.NoError(t, err)

	_, err = m.Row(context.Background(), Key{Derivative: 1}, 2)
	require.ErrorIs(t, err, ErrUnknownRow)

	_, err = m.Row(context.Background(), Key{Momentum: insertion.Momentum{2, 2, 2}}, 2)
	require.ErrorIs(t, err, ErrUnknownRow)

	_, err = m.Row(context.Background(), Key{}, 3)
	require.ErrorIs(t, err, ErrModeRange)

	_, err = NewMemory(randomElemental(t, 1, 2, 2), testMomenta[:2])
	require.ErrorIs(t, err, ErrLayout)
}

func TestStoreLoadBuildsFactors(t *testing.T) {
	data := randomElemental(t, 2, 3, 3)
	m, err := NewMemory(data, testMomenta)
	require.NoError(t, err)
	src := &countingSource{Memory: m}
	store := NewStore(src)

	p := insertion.Momentum{0, -1, 0}
	a, err := insertion.NewOperator("a", []insertion.Insertion{
		{Gamma: gamma.G5, Derivative: 0, Momentum: p},
		{Gamma: gamma.G4, Derivative: 1, Momentum: p},
	}, []complex128{2, 1i})
	require.NoError(t, err)
	b, err := insertion.Single("b", insertion.Insertion{Gamma: gamma.G5, Derivative: 0, Momentum: p}, 1)
	require.NoError(t, err)

	factors, err := store.Load(context.Background(), []insertion.Operator{a, b}, 3)
	require.NoError(t, err)
	require.Len(t, factors, 2)
	require.Equal(t, 2, src.calls, "shared rows are read once per call")

	f := factors[0]
	require.Equal(t, 2, f.Terms())
	require.Equal(t, []int{2, 3, 3, 3}, f.Modes.Shape())
	require.Equal(t, gamma.MustGamma(gamma.G5).Scale(2), f.Spin[0])
	require.Equal(t, gamma.MustGamma(gamma.G4).Scale(1i), f.Spin[1])
	require.Equal(t, data.At(1, 2, 1, 2, 0), f.Modes.At(1, 1, 2, 0))
	require.Equal(t, factors[1].Modes.At(0, 2, 1, 1), f.Modes.At(0, 2, 1, 1))
}

func TestStoreLoadRejectsTruncation(t *testing.T) {
	m, err := NewMemory(randomElemental(t, 1, 2, 2), testMomenta)
	require.NoError(t, err)
	op, err := insertion.Single("x", insertion.Insertion{Gamma: gamma.G5}, 1)
	require.NoError(t, err)

	_, err = NewStore(m).Load(context.Background(), []insertion.Operator{op}, 5)
	require.ErrorIs(t, err, ErrModeRange)
}

func TestFileMatchesMemory(t *testing.T) {
	data := randomElemental(t, 2, 4, 3)
	path := filepath.Join(t.TempDir(), "elemental.lqtf")
	require.NoError(t, WriteFile(path, data, testMomenta))

	f, err := Open(path)
	require.NoError(t, err)
	defer f.Close()
	require.Equal(t, 2, f.Derivatives())
	require.Equal(t, testMomenta, f.Momenta())
	require.Equal(t, 4, f.Extent())

	m, err := NewMemory(data, testMomenta)
	require.NoError(t, err)
	key := Key{Derivative: 1, Momentum: insertion.Momentum{0, -1, 0}}
	want, err := m.Row(context.Background(), key, 2)
	require.NoError(t, err)
	got, err := f.Row(context.Background(), key, 2)
	require.NoError(t, err)
	require.Equal(t, want.Data(), got.Data())
}

func TestOpenRejectsMissingMomenta(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.lqtf")
	require.NoError(t, writeWithoutMomenta(path, randomElemental(t, 1, 2, 2)))

	_, err := Open(path)
	require.ErrorIs(t, err, ErrLayout)
}
