package correlator

import (
	"context"
	"fmt"

	"lattice-go/internal/elemental"
	"lattice-go/internal/insertion"
	"lattice-go/internal/tensor"
)

// Twopoint returns the (Nop, Lt) correlators ⟨O_i(t+τ) O_i(t)⟩ with the
// source vertex taken as stored.
func (e *Engine) Twopoint(ctx context.Context, ops []insertion.Operator, el Elementals, pr Perambulator, req Request) (*tensor.Tensor, error) {
	ne, err := e.prepare(req, false, len(ops), pr, el)
	if err != nil {
		return nil, err
	}
	factors, err := el.Load(ctx, ops, ne)
	if err != nil {
		return nil, fmt.Errorf("load elementals: %w", err)
	}
	if err := checkFactors("operator", factors, len(ops), req.Lt, ne); err != nil {
		return nil, err
	}
	pairs := make([]pair, len(ops))
	for i := range pairs {
		pairs[i] = pair{src: i, snk: i}
	}
	res, err := e.run(ctx, pr, req.Timeslices, &job{
		kind: "twopoint", lt: req.Lt, ne: ne,
		src: factors, snk: factors, pairs: pairs,
	})
	if err != nil {
		return nil, err
	}
	average(res.connected, len(req.Timeslices))
	return tensor.FromData(res.connected, len(ops), req.Lt)
}

// TwopointMatrix returns the (Nop, Nop, Lt) correlator matrix indexed by
// (source, sink) operator. The source vertex is conjugated as γ4·Γ†·γ4.
func (e *Engine) TwopointMatrix(ctx context.Context, ops []insertion.Operator, el Elementals, pr Perambulator, req Request) (*tensor.Tensor, error) {
	ne, err := e.prepare(req, false, len(ops), pr, el)
	if err != nil {
		return nil, err
	}
	factors, err := el.Load(ctx, ops, ne)
	if err != nil {
		return nil, fmt.Errorf("load elementals: %w", err)
	}
	if err := checkFactors("operator", factors, len(ops), req.Lt, ne); err != nil {
		return nil, err
	}
	nop := len(ops)
	pairs := make([]pair, 0, nop*nop)
	for isrc := 0; isrc < nop; isrc++ {
		for isnk := 0; isnk < nop; isnk++ {
			pairs = append(pairs, pair{src: isrc, snk: isnk})
		}
	}
	res, err := e.run(ctx, pr, req.Timeslices, &job{
		kind: "matrix", lt: req.Lt, ne: ne,
		src: factors, snk: factors, pairs: pairs, sandwich: true,
	})
	if err != nil {
		return nil, err
	}
	average(res.connected, len(req.Timeslices))
	return tensor.FromData(res.connected, nop, nop, req.Lt)
}

// TwopointIsoscalar returns the (Nop, Lt) isoscalar correlators
// -connected + 2·disconnected. Timeslices must cover every t in [0, Lt)
// exactly once.
func (e *Engine) TwopointIsoscalar(ctx context.Context, ops []insertion.Operator, el Elementals, pr Perambulator, req Request) (*tensor.Tensor, error) {
	ne, err := e.prepare(req, true, len(ops), pr, el)
	if err != nil {
		return nil, err
	}
	factors, err := el.Load(ctx, ops, ne)
	if err != nil {
		return nil, fmt.Errorf("load elementals: %w", err)
	}
	if err := checkFactors("operator", factors, len(ops), req.Lt, ne); err != nil {
		return nil, err
	}
	nop, lt := len(ops), req.Lt
	pairs := make([]pair, nop)
	for i := range pairs {
		pairs[i] = pair{src: i, snk: i}
	}
	res, err := e.run(ctx, pr, req.Timeslices, &job{
		kind: "isoscalar", lt: lt, ne: ne,
		src: factors, snk: factors, pairs: pairs, sandwich: true, loops: true,
	})
	if err != nil {
		return nil, err
	}

	out := res.connected
	average(out, len(req.Timeslices))
	for op := 0; op < nop; op++ {
		d, err := disconnected(res.loopSrc[op*lt:(op+1)*lt], res.loopSnk[op*lt:(op+1)*lt])
		if err != nil {
			return nil, err
		}
		for tau, v := range d {
			out[op*lt+tau] += 2 * v
		}
	}
	return tensor.FromData(out, nop, lt)
}

// disconnected averages loopSrc(t1)·loopSnk(t1+τ) over every source t1,
// shifting the sink loop back by t1 so τ is the separation.
func disconnected(loopSrc, loopSnk []complex128) ([]complex128, error) {
	lt := len(loopSrc)
	snk, err := tensor.FromData(loopSnk, lt)
	if err != nil {
		return nil, err
	}
	out := make([]complex128, lt)
	for t1, s := range loopSrc {
		shifted, err := snk.Roll(-t1, 0)
		if err != nil {
			return nil, err
		}
		for tau, v := range shifted.Data() {
			out[tau] += s * v
		}
	}
	n := complex(float64(lt), 0)
	for i := range out {
		out[i] /= n
	}
	return out, nil
}

// TwopointMatrixMultiMom evaluates TwopointMatrix for single-insertion
// operators built from rows at every momentum and returns a
// (Nmom, Nop, Nop, Lt) tensor. coeffs scales each row; nil means 1.
func (e *Engine) TwopointMatrixMultiMom(ctx context.Context, rows []insertion.Row, moms []insertion.Momentum, coeffs []complex128, el Elementals, pr Perambulator, req Request) (*tensor.Tensor, error) {
	nop, nmom := len(rows), len(moms)
	if coeffs == nil {
		coeffs = make([]complex128, nop)
		for i := range coeffs {
			coeffs[i] = 1
		}
	}
	if len(coeffs) != nop {
		return nil, fmt.Errorf("%w: %d insertions, %d coefficients", ErrValidation, nop, len(coeffs))
	}
	if nmom == 0 {
		return nil, fmt.Errorf("%w: no momenta", ErrValidation)
	}
	nterm := nmom * nop
	srcOps := make([]insertion.Operator, 0, nterm*nop)
	snkOps := make([]insertion.Operator, 0, nterm*nop)
	for _, p := range moms {
		for isrc := 0; isrc < nop; isrc++ {
			for isnk := 0; isnk < nop; isnk++ {
				src, err := insertion.Single("", rows[isrc](p), coeffs[isrc])
				if err != nil {
					return nil, fmt.Errorf("%w: %w", ErrValidation, err)
				}
				snk, err := insertion.Single("", rows[isnk](p), coeffs[isnk])
				if err != nil {
					return nil, fmt.Errorf("%w: %w", ErrValidation, err)
				}
				srcOps = append(srcOps, src)
				snkOps = append(snkOps, snk)
			}
		}
	}
	ne, err := e.prepare(req, false, len(srcOps), pr, el)
	if err != nil {
		return nil, err
	}
	srcF, err := el.Load(ctx, srcOps, ne)
	if err != nil {
		return nil, fmt.Errorf("load source elementals: %w", err)
	}
	if err := checkFactors("source", srcF, len(srcOps), req.Lt, ne); err != nil {
		return nil, err
	}
	snkF, err := el.Load(ctx, snkOps, ne)
	if err != nil {
		return nil, fmt.Errorf("load sink elementals: %w", err)
	}
	if err := checkFactors("sink", snkF, len(snkOps), req.Lt, ne); err != nil {
		return nil, err
	}

	// Term (m, isrc, isnk) uses the source factor of (m, isrc) and the sink
	// factor of (m, isnk); keep one vertex per distinct (momentum, row).
	src := make([]elemental.Factor, nterm)
	snk := make([]elemental.Factor, nterm)
	pairs := make([]pair, 0, nterm*nop)
	for m := 0; m < nmom; m++ {
		for isrc := 0; isrc < nop; isrc++ {
			for isnk := 0; isnk < nop; isnk++ {
				k := (m*nop+isrc)*nop + isnk
				src[m*nop+isrc] = srcF[k]
				snk[m*nop+isnk] = snkF[k]
				pairs = append(pairs, pair{src: m*nop + isrc, snk: m*nop + isnk})
			}
		}
	}
	res, err := e.run(ctx, pr, req.Timeslices, &job{
		kind: "multi_mom", lt: req.Lt, ne: ne,
		src: src, snk: snk, pairs: pairs, sandwich: true,
	})
	if err != nil {
		return nil, err
	}
	average(res.connected, len(req.Timeslices))
	flat, err := tensor.FromData(res.connected, nterm*nop, req.Lt)
	if err != nil {
		return nil, err
	}
	return flat.Reshape(nmom, nop, nop, req.Lt)
}
