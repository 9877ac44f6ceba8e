package lattice

import (
	"context"
	"math/cmplx"
	"math/rand"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"lattice-go/internal/elemental"
	"lattice-go/internal/insertion"
	"lattice-go/internal/perambulator"
	"lattice-go/internal/tensor"
)

func writeFixture(t *testing.T, lt, ne int) (string, string) {
	t.Helper()
	r := rand.New(rand.NewSource(42))
	fill := func(x *tensor.Tensor) *tensor.Tensor {
		for i := range x.Data() {
			x.Data()[i] = complex(r.NormFloat64(), r.NormFloat64())
		}
		return x
	}
	dir := t.TempDir()
	peramPath := filepath.Join(dir, "perambulator.lqtf")
	elemPath := filepath.Join(dir, "elemental.lqtf")
	require.NoError(t, perambulator.WriteFile(peramPath, fill(tensor.MustNew(lt, lt, 4, 4, ne, ne))))
	require.NoError(t, elemental.WriteFile(elemPath, fill(tensor.MustNew(2, 2, lt, ne, ne)),
		[]insertion.Momentum{{0, 0, 0}, {0, 0, 1}}))
	return elemPath, peramPath
}

func testOperators() []Operator {
	return []Operator{
		{Name: "pi", Insertions: []Insertion{{Gamma: 15}}},
		{Name: "a0", Insertions: []Insertion{{Gamma: 0, Derivative: 1, Momentum: [3]int{0, 0, 1}}, {Gamma: 8}}, Coefficients: []complex128{1, 0.5i}},
	}
}

func requireClose(t *testing.T, want, got []complex128) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		require.LessOrEqual(t, cmplx.Abs(want[i]-got[i]), 1e-9*(1+cmplx.Abs(want[i])), "element %d", i)
	}
}

func TestSessionInfo(t *testing.T) {
	elemPath, peramPath := writeFixture(t, 3, 2)
	s, err := Open(context.Background(), elemPath, peramPath, Options{RunID: "run-1"})
	require.NoError(t, err)
	defer s.Close()

	info := s.Info()
	require.Equal(t, 3, info.Lt)
	require.Equal(t, 3, info.Sources)
	require.Equal(t, 2, info.PerambulatorNe)
	require.Equal(t, 2, info.ElementalNe)
	require.Equal(t, 2, info.Derivatives)
	require.Equal(t, [][3]int{{0, 0, 0}, {0, 0, 1}}, info.Momenta)
	require.Equal(t, "run-1", s.RunID())
}

func TestMmapAndReadAgree(t *testing.T) {
	elemPath, peramPath := writeFixture(t, 3, 2)
	req := Request{Timeslices: []int{0, 1, 2}, Lt: 3}
	ctx := context.Background()

	plain, err := Open(ctx, elemPath, peramPath, Options{})
	require.NoError(t, err)
	defer plain.Close()
	mapped, err := Open(ctx, elemPath, peramPath, Options{Mmap: true, Workers: 3})
	require.NoError(t, err)
	defer mapped.Close()
	require.NotEqual(t, plain.RunID(), mapped.RunID())

	a, err := plain.TwopointMatrix(ctx, testOperators(), req)
	require.NoError(t, err)
	b, err := mapped.TwopointMatrix(ctx, testOperators(), req)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 3}, a.Shape)
	require.Equal(t, a.Data, b.Data)
}

func TestAllModesAndResultRoundTrip(t *testing.T) {
	elemPath, peramPath := writeFixture(t, 3, 2)
	ctx := context.Background()
	s, err := Open(ctx, elemPath, peramPath, Options{RunID: "rt"})
	require.NoError(t, err)
	defer s.Close()
	req := Request{Timeslices: []int{0, 1, 2}, Lt: 3, UsedNe: 1}

	tp, err := s.Twopoint(ctx, testOperators(), req)
	require.NoError(t, err)
	require.Equal(t, []int{2, 3}, tp.Shape)
	require.Equal(t, 1, tp.UsedNe)

	iso, err := s.TwopointIsoscalar(ctx, testOperators(), req)
	require.NoError(t, err)
	require.Equal(t, ModeIsoscalar, iso.Mode)

	mm, err := s.TwopointMatrixMultiMom(ctx, []Row{{Gamma: 15}, {Gamma: 8, Derivative: 1}}, [][3]int{{0, 0, 0}, {0, 0, 1}}, nil, req)
	require.NoError(t, err)
	require.Equal(t, []int{2, 2, 2, 3}, mm.Shape)

	path := filepath.Join(t.TempDir(), "mm.lqtf")
	require.NoError(t, WriteResult(path, mm))
	back, err := ReadResult(path)
	require.NoError(t, err)
	require.Equal(t, ModeMultiMom, back.Mode)
	require.Equal(t, "rt", back.RunID)
	require.Equal(t, mm.Shape, back.Shape)
	require.Equal(t, 3, back.Lt)
	require.Equal(t, 1, back.UsedNe)
	require.Equal(t, []string{"g15.d0", "g8.d1"}, back.Operators)
	require.Equal(t, []int{0, 1, 2}, back.Timeslices)
	require.Equal(t, mm.Momenta, back.Momenta)
	requireClose(t, mm.Data, back.Data)
}

func TestErrorsSurface(t *testing.T) {
	elemPath, peramPath := writeFixture(t, 2, 1)
	ctx := context.Background()
	s, err := Open(ctx, elemPath, peramPath, Options{})
	require.NoError(t, err)
	defer s.Close()

	_, err = s.TwopointIsoscalar(ctx, testOperators(), Request{Timeslices: []int{0}, Lt: 2})
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.Twopoint(ctx, []Operator{{Name: "empty"}}, Request{Timeslices: []int{0}, Lt: 2})
	require.ErrorIs(t, err, ErrValidation)

	_, err = s.Twopoint(ctx, testOperators(), Request{Timeslices: []int{0}, Lt: 2, UsedNe: 2})
	require.ErrorIs(t, err, ErrModeTruncation)

	_, err = Open(ctx, filepath.Join(t.TempDir(), "missing"), peramPath, Options{})
	require.Error(t, err)
}
