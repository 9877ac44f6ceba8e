package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"runtime/pprof"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"lattice-go/internal/config"
	"lattice-go/internal/metrics"
	"lattice-go/pkg/lattice"
)

type runOptions struct {
	configPath      string
	procs           int
	cpuProfile      string
	metricsTextfile string
	output          string
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Compute a correlator described by a YAML run file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCorrelator(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Path to the YAML run file")
	cmd.Flags().IntVar(&opts.procs, "procs", 0, "GOMAXPROCS setting (0 = leave unchanged)")
	cmd.Flags().StringVar(&opts.cpuProfile, "cpuprofile", "", "Write CPU profile to file")
	cmd.Flags().StringVar(&opts.metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file (overrides the run file)")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Result path (overrides the run file)")
	_ = cmd.MarkFlagRequired("config")
	return cmd
}

func runCorrelator(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	run, err := config.Load(opts.configPath)
	if err != nil {
		return err
	}
	if opts.output != "" {
		run.Output = opts.output
	}
	if opts.metricsTextfile != "" {
		run.MetricsTextfile = opts.metricsTextfile
	}
	if opts.procs > 0 {
		runtime.GOMAXPROCS(opts.procs)
	}
	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			return fmt.Errorf("create cpuprofile: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start cpuprofile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	runID := uuid.NewString()
	log, err := root.logger(cmd, run.Log.Level, run.Log.Format)
	if err != nil {
		return err
	}
	log = log.With("run_id", runID)

	reg := prometheus.NewRegistry()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	s, err := lattice.Open(ctx, run.Elemental, run.Perambulator, lattice.Options{
		Mmap:    run.Mmap,
		Workers: run.Workers,
		Logger:  log,
		Metrics: metrics.NewPrometheus(reg),
		RunID:   runID,
	})
	if err != nil {
		return err
	}
	defer s.Close()

	start := time.Now()
	req := lattice.Request{Timeslices: run.AllTimeslices(), Lt: run.Lt, UsedNe: run.UsedNe}
	log.Info("run started", "mode", run.Mode, "lt", run.Lt, "timeslices", len(req.Timeslices), "used_ne", run.UsedNe)
	res, err := compute(ctx, s, run, req)
	if err != nil {
		return err
	}
	if err := lattice.WriteResult(run.Output, res); err != nil {
		return fmt.Errorf("write result: %w", err)
	}
	log.Info("run finished", "output", run.Output, "shape", res.Shape, "elapsed", time.Since(start))

	if run.MetricsTextfile != "" {
		if err := metrics.WriteTextfile(run.MetricsTextfile, reg); err != nil {
			return fmt.Errorf("write metrics: %w", err)
		}
	}
	return nil
}

func compute(ctx context.Context, s *lattice.Session, run *config.Run, req lattice.Request) (lattice.Result, error) {
	if run.Mode == config.ModeMultiMom {
		rows := make([]lattice.Row, len(run.Insertions))
		for i, in := range run.Insertions {
			rows[i] = lattice.Row{Gamma: in.Gamma, Derivative: in.Derivative}
		}
		return s.TwopointMatrixMultiMom(ctx, rows, run.Momenta, run.RowCoefficients(), req)
	}

	ops := make([]lattice.Operator, len(run.Operators))
	for i, op := range run.Operators {
		ins := make([]lattice.Insertion, len(op.Insertions))
		for j, in := range op.Insertions {
			ins[j] = lattice.Insertion{Gamma: in.Gamma, Derivative: in.Derivative, Momentum: in.Momentum}
		}
		ops[i] = lattice.Operator{Name: op.Name, Insertions: ins, Coefficients: op.Coeffs()}
	}
	switch run.Mode {
	case config.ModeMatrix:
		return s.TwopointMatrix(ctx, ops, req)
	case config.ModeIsoscalar:
		return s.TwopointIsoscalar(ctx, ops, req)
	default:
		return s.Twopoint(ctx, ops, req)
	}
}
