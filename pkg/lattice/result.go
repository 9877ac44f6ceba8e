package lattice

import (
	"fmt"

	"lattice-go/internal/container"
	"lattice-go/internal/tensor"
)

// ResultTensor is the container tensor holding a written correlator.
const ResultTensor = "correlator"

// Metadata keys of written results.
const (
	KeyMode       = "lattice.mode"
	KeyRunID      = "lattice.run_id"
	KeyLt         = "lattice.lt"
	KeyUsedNe     = "lattice.used_ne"
	KeyOperators  = "lattice.operators"
	KeyTimeslices = "lattice.timeslices"
	KeyMomenta    = "lattice.momenta"
)

type kvPair struct {
	key   string
	value any
}

// WriteResult stores res as a container with a complex128 correlator tensor.
func WriteResult(path string, res Result) error {
	x, err := tensor.FromData(res.Data, res.Shape...)
	if err != nil {
		return fmt.Errorf("result: %w", err)
	}
	w := container.NewWriter()
	kv := []kvPair{
		{KeyMode, res.Mode},
		{KeyRunID, res.RunID},
		{KeyLt, res.Lt},
		{KeyUsedNe, res.UsedNe},
		{KeyOperators, res.Operators},
		{KeyTimeslices, toInt64s(res.Timeslices)},
	}
	if len(res.Momenta) > 0 {
		flat := make([]int32, 0, 3*len(res.Momenta))
		for _, p := range res.Momenta {
			flat = append(flat, int32(p[0]), int32(p[1]), int32(p[2]))
		}
		kv = append(kv, kvPair{KeyMomenta, flat})
	}
	for _, e := range kv {
		if err := w.SetKV(e.key, e.value); err != nil {
			return err
		}
	}
	if err := w.AddTensor(ResultTensor, container.TypeComplex128, x); err != nil {
		return err
	}
	return w.WriteFile(path)
}

// ReadResult loads a result written by WriteResult.
func ReadResult(path string) (Result, error) {
	info, err := container.ReadFileInfo(path)
	if err != nil {
		return Result{}, err
	}
	x, err := container.ReadTensor(path, info, ResultTensor)
	if err != nil {
		return Result{}, err
	}
	res := Result{Shape: x.Shape(), Data: x.Data()}
	res.Mode, _ = info.String(KeyMode)
	res.RunID, _ = info.String(KeyRunID)
	if v, ok := info.Int(KeyLt); ok {
		res.Lt = int(v)
	}
	if v, ok := info.Int(KeyUsedNe); ok {
		res.UsedNe = int(v)
	}
	if v, ok := info.KeyValues[KeyOperators].([]string); ok {
		res.Operators = v
	}
	if v, ok := info.KeyValues[KeyTimeslices].([]int64); ok {
		res.Timeslices = make([]int, len(v))
		for i, t := range v {
			res.Timeslices[i] = int(t)
		}
	}
	if v, ok := info.KeyValues[KeyMomenta].([]int32); ok && len(v)%3 == 0 {
		res.Momenta = make([][3]int, len(v)/3)
		for i := range res.Momenta {
			res.Momenta[i] = [3]int{int(v[3*i]), int(v[3*i+1]), int(v[3*i+2])}
		}
	}
	return res, nil
}

func toInt64s(v []int) []int64 {
	out := make([]int64, len(v))
	for i, x := range v {
		out[i] = int64(x)
	}
	return out
}
