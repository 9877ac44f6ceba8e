package correlator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"lattice-go/internal/elemental"
	"lattice-go/internal/gamma"
	"lattice-go/internal/kernels"
)

// pair selects one source and one sink factor. The position of a pair in
// job.pairs is its output row.
type pair struct {
	src, snk int
}

type job struct {
	kind     string
	lt, ne   int
	src, snk []elemental.Factor
	pairs    []pair
	// sandwich applies γ4·Γ†·γ4 to the source spin structure.
	sandwich bool
	// loops also records the single-timeslice traces of src[i] and snk[i]
	// needed for disconnected diagrams; requires len(src) == len(snk).
	loops bool
}

type sums struct {
	connected []complex128 // (pairs, lt)
	loopSrc   []complex128 // (src, lt)
	loopSnk   []complex128 // (snk, lt)
}

type workspace struct {
	fwd, bwd, vtx, p, q []complex128
	cache               [][]complex128
	ready               []bool
}

// sourceProduct returns τ(τ)·V_src for source s, caching it for the current
// sink time when shared.
func (ws *workspace) sourceProduct(be Backend, s int, srcV [][]complex128, shared bool, n int) []complex128 {
	if !shared {
		be.MatMul(ws.q, ws.fwd, srcV[s], n)
		return ws.q
	}
	if !ws.ready[s] {
		if ws.cache[s] == nil {
			ws.cache[s] = make([]complex128, n*n)
		}
		be.MatMul(ws.cache[s], ws.fwd, srcV[s], n)
		ws.ready[s] = true
	}
	return ws.cache[s]
}

// run sums the connected contraction, and loops when requested, over every
// source timeslice in ts. Sums are left unnormalised.
func (e *Engine) run(ctx context.Context, pr Perambulator, ts []int, j *job) (*sums, error) {
	n := kernels.Ns * j.ne
	nn := n * n
	lt := j.lt
	res := &sums{connected: make([]complex128, len(j.pairs)*lt)}
	if j.loops {
		if len(j.src) != len(j.snk) {
			return nil, fmt.Errorf("%w: loops need matching source and sink factors", ErrValidation)
		}
		res.loopSrc = make([]complex128, len(j.src)*lt)
		res.loopSnk = make([]complex128, len(j.snk)*lt)
	}

	bySnk := make([][]int, len(j.snk))
	uses := make([]int, len(j.src))
	for i, p := range j.pairs {
		bySnk[p.snk] = append(bySnk[p.snk], i)
		uses[p.src]++
	}
	spins := make([][]gamma.Matrix, len(j.src))
	srcV := make([][]complex128, len(j.src))
	for s, f := range j.src {
		spins[s] = sourceSpins(f, j.sandwich)
		srcV[s] = make([]complex128, nn)
	}

	pool := sync.Pool{New: func() any {
		return &workspace{
			fwd:   make([]complex128, nn),
			bwd:   make([]complex128, nn),
			vtx:   make([]complex128, nn),
			p:     make([]complex128, nn),
			q:     make([]complex128, nn),
			cache: make([][]complex128, len(j.src)),
			ready: make([]bool, len(j.src)),
		}
	}}
	be := e.backend()
	log := e.logger()
	rep := e.reporter()

	for _, t := range ts {
		start := time.Now()
		blk, stats, err := pr.Block(ctx, t, j.ne)
		if err != nil {
			return nil, fmt.Errorf("timeslice %d: %w", t, err)
		}
		if err := blk.Expect("perambulator block", lt, kernels.Ns, kernels.Ns, j.ne, j.ne); err != nil {
			return nil, fmt.Errorf("timeslice %d: %w", t, err)
		}
		rep.ObserveRead(stats.Bytes, stats.Elapsed)

		for s, f := range j.src {
			sourceVertex(srcV[s], f, spins[s], t, j.ne)
		}

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(e.workers())
		for tau := 0; tau < lt; tau++ {
			tau := tau
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				sub, err := blk.Index(tau)
				if err != nil {
					return err
				}
				ws := pool.Get().(*workspace)
				defer pool.Put(ws)
				clear(ws.ready)
				backward(ws.fwd, ws.bwd, sub.Data(), j.ne)

				loops := j.loops && tau == 0
				if loops {
					for s := range srcV {
						res.loopSrc[s*lt+t] = be.TraceProduct(ws.fwd, srcV[s], n)
					}
				}
				for k, f := range j.snk {
					group := bySnk[k]
					if len(group) == 0 && !loops {
						continue
					}
					sinkVertex(ws.vtx, f, (tau+t)%lt, j.ne)
					if loops {
						res.loopSnk[k*lt+t] = be.TraceProduct(ws.fwd, ws.vtx, n)
					}
					if len(group) == 0 {
						continue
					}
					be.MatMul(ws.p, ws.bwd, ws.vtx, n)
					for _, pi := range group {
						s := j.pairs[pi].src
						q := ws.sourceProduct(be, s, srcV, uses[s] > 1, n)
						res.connected[pi*lt+tau] += be.TraceProduct(ws.p, q, n)
					}
				}
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, fmt.Errorf("timeslice %d: %w", t, err)
		}

		elapsed := time.Since(start)
		rep.ObserveTimeslice(j.kind, elapsed)
		log.Info("timeslice done",
			"kind", j.kind,
			"t", t,
			"bytes", stats.Bytes,
			"read_elapsed", stats.Elapsed,
			"mb_per_s", stats.MBPerSec(),
			"elapsed", elapsed,
		)
	}
	return res, nil
}

// average divides by the number of source timeslices and negates.
func average(v []complex128, nt int) {
	d := complex(float64(nt), 0)
	for i := range v {
		v[i] = -(v[i] / d)
	}
}
