package main

import (
	"fmt"
	"math"
	"math/cmplx"
	"math/rand"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"lattice-go/internal/config"
	"lattice-go/internal/elemental"
	"lattice-go/internal/insertion"
	"lattice-go/internal/perambulator"
	"lattice-go/internal/tensor"
)

type synthOptions struct {
	dir  string
	lt   int
	ne   int
	kind string
	seed int64
}

func newSynthCmd(root *rootOptions) *cobra.Command {
	opts := &synthOptions{}
	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write synthetic perambulator and elemental files plus a run file",
		Long: `synth writes perambulator.lqtf, elemental.lqtf and run.yaml into --dir.

Kind "closed" uses a perambulator equal to the identity at zero separation
and elementals e^{2πi t/Lt}·1, whose isoscalar correlator is known in closed
form. Kind "random" fills both files with seeded Gaussian noise.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := root.logger(cmd, "info", "text")
			if err != nil {
				return err
			}
			if err := synth(opts); err != nil {
				return err
			}
			log.Info("synthetic data written", "dir", opts.dir, "kind", opts.kind, "lt", opts.lt, "ne", opts.ne)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.dir, "dir", ".", "Output directory")
	cmd.Flags().IntVar(&opts.lt, "lt", 4, "Temporal extent")
	cmd.Flags().IntVar(&opts.ne, "ne", 2, "Number of eigenvector modes")
	cmd.Flags().StringVar(&opts.kind, "kind", "closed", "Data kind: closed or random")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "Seed for --kind random")
	return cmd
}

func synth(opts *synthOptions) error {
	if opts.lt <= 0 || opts.ne <= 0 {
		return fmt.Errorf("lt and ne must be positive")
	}
	if err := os.MkdirAll(opts.dir, 0o755); err != nil {
		return err
	}
	var (
		peram, elem *tensor.Tensor
		momenta     []insertion.Momentum
		run         config.Run
		err         error
	)
	switch opts.kind {
	case "closed":
		peram, elem, err = closedForm(opts.lt, opts.ne)
		momenta = []insertion.Momentum{{0, 0, 0}}
		run = config.Run{
			Mode: config.ModeIsoscalar,
			Operators: []config.Operator{{
				Name:       "sigma",
				Insertions: []config.Insertion{{Gamma: 0}},
			}},
		}
	case "random":
		peram, elem, err = randomData(opts.lt, opts.ne, opts.seed)
		momenta = []insertion.Momentum{{0, 0, 0}, {0, 0, 1}}
		run = config.Run{
			Mode:       config.ModeMultiMom,
			Insertions: []config.Insertion{{Gamma: 15}, {Gamma: 8, Derivative: 1}},
			Momenta:    [][3]int{{0, 0, 0}, {0, 0, 1}},
		}
	default:
		return fmt.Errorf("unknown kind %q", opts.kind)
	}
	if err != nil {
		return err
	}

	peramPath := filepath.Join(opts.dir, "perambulator.lqtf")
	elemPath := filepath.Join(opts.dir, "elemental.lqtf")
	if err := perambulator.WriteFile(peramPath, peram); err != nil {
		return fmt.Errorf("write perambulator: %w", err)
	}
	if err := elemental.WriteFile(elemPath, elem, momenta); err != nil {
		return fmt.Errorf("write elemental: %w", err)
	}

	run.Elemental = elemPath
	run.Perambulator = peramPath
	run.Lt = opts.lt
	run.Output = filepath.Join(opts.dir, "correlator.lqtf")
	run.Log = config.Log{Level: "info", Format: "text"}
	if err := run.Validate(); err != nil {
		return err
	}
	raw, err := yaml.Marshal(&run)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(opts.dir, "run.yaml"), raw, 0o644)
}

func closedForm(lt, ne int) (*tensor.Tensor, *tensor.Tensor, error) {
	peram, err := tensor.New(lt, lt, 4, 4, ne, ne)
	if err != nil {
		return nil, nil, err
	}
	elem, err := tensor.New(1, 1, lt, ne, ne)
	if err != nil {
		return nil, nil, err
	}
	for t := 0; t < lt; t++ {
		phase := cmplx.Exp(complex(0, 2*math.Pi*float64(t)/float64(lt)))
		for m := 0; m < ne; m++ {
			for s := 0; s < 4; s++ {
				peram.Set(1, t, 0, s, s, m, m)
			}
			elem.Set(phase, 0, 0, t, m, m)
		}
	}
	return peram, elem, nil
}

func randomData(lt, ne int, seed int64) (*tensor.Tensor, *tensor.Tensor, error) {
	r := rand.New(rand.NewSource(seed))
	peram, err := tensor.New(lt, lt, 4, 4, ne, ne)
	if err != nil {
		return nil, nil, err
	}
	elem, err := tensor.New(2, 2, lt, ne, ne)
	if err != nil {
		return nil, nil, err
	}
	for _, x := range []*tensor.Tensor{peram, elem} {
		for i := range x.Data() {
			x.Data()[i] = complex(r.NormFloat64(), r.NormFloat64())
		}
	}
	return peram, elem, nil
}
