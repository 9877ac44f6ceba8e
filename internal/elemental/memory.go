package elemental

import (
	"context"
	"fmt"

	"lattice-go/internal/insertion"
	"lattice-go/internal/tensor"
)

// Memory is a RowSource over an in-memory (Nderiv, Nmom, Lt, Ne, Ne) tensor.
type Memory struct {
	data    *tensor.Tensor
	momenta []insertion.Momentum
	shape   []int
}

func NewMemory(data *tensor.Tensor, momenta []insertion.Momentum) (*Memory, error) {
	shape := data.Shape()
	if err := validateLayout(shape, len(momenta)); err != nil {
		return nil, err
	}
	return &Memory{data: data, momenta: append([]insertion.Momentum(nil), momenta...), shape: shape}, nil
}

func validateLayout(shape []int, nmom int) error {
	if len(shape) != 5 || shape[3] != shape[4] {
		return fmt.Errorf("%w: %v, want (Nderiv, Nmom, Lt, Ne, Ne)", ErrLayout, shape)
	}
	if shape[1] != nmom {
		return fmt.Errorf("%w: %d momenta listed for %d stored", ErrLayout, nmom, shape[1])
	}
	return nil
}

func (m *Memory) Modes() int  { return m.shape[3] }
func (m *Memory) Extent() int { return m.shape[2] }

func (m *Memory) Row(ctx context.Context, key Key, usedNe int) (*tensor.Tensor, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	idx, err := rowIndex(key, m.shape[0], m.momenta)
	if err != nil {
		return nil, err
	}
	if usedNe <= 0 || usedNe > m.Modes() {
		return nil, fmt.Errorf("%w: %d of %d", ErrModeRange, usedNe, m.Modes())
	}
	lt, ne := m.Extent(), m.Modes()
	full := m.data.Data()[idx*lt*ne*ne : (idx+1)*lt*ne*ne]
	return truncate(full, lt, ne, usedNe)
}

func rowIndex(key Key, nderiv int, momenta []insertion.Momentum) (int, error) {
	if key.Derivative < 0 || key.Derivative >= nderiv {
		return 0, fmt.Errorf("%w: derivative %d of %d", ErrUnknownRow, key.Derivative, nderiv)
	}
	for i, p := range momenta {
		if p == key.Momentum {
			return key.Derivative*len(momenta) + i, nil
		}
	}
	return 0, fmt.Errorf("%w: momentum %s", ErrUnknownRow, key.Momentum)
}

func truncate(full []complex128, lt, ne, usedNe int) (*tensor.Tensor, error) {
	out, err := tensor.New(lt, usedNe, usedNe)
	if err != nil {
		return nil, err
	}
	dst := out.Data()
	for t := 0; t < lt; t++ {
		src := full[t*ne*ne:]
		for m1 := 0; m1 < usedNe; m1++ {
			copy(dst[(t*usedNe+m1)*usedNe:(t*usedNe+m1+1)*usedNe], src[m1*ne:m1*ne+usedNe])
		}
	}
	return out, nil
}

func flattenMomenta(momenta []insertion.Momentum) []int32 {
	out := make([]int32, 0, 3*len(momenta))
	for _, p := range momenta {
		out = append(out, int32(p[0]), int32(p[1]), int32(p[2]))
	}
	return out
}

func parseMomenta(raw any) ([]insertion.Momentum, error) {
	flat, ok := raw.([]int32)
	if !ok || len(flat)%3 != 0 {
		return nil, fmt.Errorf("%w: %s must be an int32 array of triples", ErrLayout, KeyMomenta)
	}
	out := make([]insertion.Momentum, len(flat)/3)
	for i := range out {
		out[i] = insertion.Momentum{int(flat[3*i]), int(flat[3*i+1]), int(flat[3*i+2])}
	}
	return out, nil
}
