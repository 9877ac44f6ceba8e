package perambulator

import (
	"context"
	"math/rand"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"lattice-go/internal/tensor"
)

func randomPerambulator(t *testing.T, nsrc, lt, ne int) *tensor.Tensor {
	t.Helper()
	x, err := tensor.New(nsrc, lt, 4, 4, ne, ne)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(int64(nsrc*100 + lt*10 + ne)))
	for i := range x.Data() {
		x.Data()[i] = complex(r.NormFloat64(), r.NormFloat64())
	}
	return x
}

func TestMemoryBlockTruncates(t *testing.T) {
	data := randomPerambulator(t, 3, 3, 4)
	m, err := NewMemory(data)
	require.NoError(t, err)
	require.Equal(t, 3, m.Sources())
	require.Equal(t, 3, m.Extent())
	require.Equal(t, 4, m.Modes())

	block, stats, err := m.Block(context.Background(), 2, 2)
	require.NoError(t, err)
	require.Equal(t, []int{3, 4, 4, 2, 2}, block.Shape())
	require.Positive(t, stats.Bytes)

	for tau := 0; tau < 3; tau++ {
		for s1 := 0; s1 < 4; s1++ {
			for s2 := 0; s2 < 4; s2++ {
				for a := 0; a < 2; a++ {
					for b := 0; b < 2; b++ {
						require.Equal(t, data.At(2, tau, s1, s2, a, b), block.At(tau, s1, s2, a, b))
					}
				}
			}
		}
	}
}

func TestMemoryRejectsBadRequests(t *testing.T) {
	m, err := NewMemory(randomPerambulator(t, 2, 2, 2))
	require.NoError(t, err)

	_, _, err = m.Block(context.Background(), 2, 2)
	require.ErrorIs(t, err, ErrSourceRange)

	_, _, err = m.Block(context.Background(), 0, 3)
	require.ErrorIs(t, err, ErrModeRange)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err = m.Block(ctx, 0, 2)
	require.ErrorIs(t, err, context.Canceled)

	_, err = NewMemory(tensor.MustNew(2, 2, 3, 4, 2, 2))
	require.ErrorIs(t, err, ErrLayout)
}

func TestFileMatchesMemory(t *testing.T) {
	data := randomPerambulator(t, 4, 4, 3)
	path := filepath.Join(t.TempDir(), "peram.lqtf")
	require.NoError(t, WriteFile(path, data))

	mem, err := NewMemory(data)
	require.NoError(t, err)

	variants := []bool{false}
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		variants = append(variants, true)
	}
	for _, mmap := range variants {
		f, err := Open(path, WithMmap(mmap))
		require.NoError(t, err)
		require.Equal(t, 4, f.Sources())
		require.Equal(t, 4, f.Extent())
		require.Equal(t, 3, f.Modes())

		for _, usedNe := range []int{3, 2} {
			for src := 0; src < 4; src++ {
				got, stats, err := f.Block(context.Background(), src, usedNe)
				require.NoError(t, err)
				want, _, err := mem.Block(context.Background(), src, usedNe)
				require.NoError(t, err)
				require.Equal(t, want.Shape(), got.Shape())
				require.Equal(t, want.Data(), got.Data(), "mmap=%v src=%d usedNe=%d", mmap, src, usedNe)
				require.EqualValues(t, 4*16*9*16, stats.Bytes)
				require.Equal(t, stats, f.LastStats())
			}
		}
		require.NoError(t, f.Close())
	}
}

func TestOpenRejectsMissingTensor(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "nope.lqtf"))
	require.Error(t, err)
}

func TestReadStatsThroughput(t *testing.T) {
	require.Zero(t, ReadStats{Bytes: 10}.MBPerSec())
	s := ReadStats{Bytes: 2 * 1024 * 1024, Elapsed: 1e9}
	require.InDelta(t, 2.0, s.MBPerSec(), 1e-12)
}
