// Package config loads YAML run files for the lattice CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"lattice-go/internal/gamma"
)

// ErrInvalid is returned by Validate.
var ErrInvalid = errors.New("config: invalid run file")

// Modes accepted in Run.Mode.
const (
	ModeTwopoint  = "twopoint"
	ModeMatrix    = "matrix"
	ModeIsoscalar = "isoscalar"
	ModeMultiMom  = "multi_mom"
)

// Complex is a YAML complex number: either a plain number or a [re, im] pair.
type Complex complex128

func (c *Complex) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		v, err := strconv.ParseFloat(node.Value, 64)
		if err != nil {
			return fmt.Errorf("line %d: coefficient %q: %w", node.Line, node.Value, err)
		}
		*c = Complex(complex(v, 0))
		return nil
	case yaml.SequenceNode:
		var pair []float64
		if err := node.Decode(&pair); err != nil {
			return err
		}
		if len(pair) != 2 {
			return fmt.Errorf("line %d: complex coefficient needs [re, im], got %d values", node.Line, len(pair))
		}
		*c = Complex(complex(pair[0], pair[1]))
		return nil
	}
	return fmt.Errorf("line %d: coefficient must be a number or [re, im]", node.Line)
}

func (c Complex) MarshalYAML() (any, error) {
	if imag(c) == 0 {
		return real(c), nil
	}
	return []float64{real(c), imag(c)}, nil
}

// Insertion is one gamma ⊗ elemental-row term. Momentum is ignored for the
// momentum-parametrised rows of multi_mom runs.
type Insertion struct {
	Gamma      int    `yaml:"gamma"`
	Derivative int    `yaml:"derivative,omitempty"`
	Momentum   [3]int `yaml:"momentum,omitempty"`
}

type Operator struct {
	Name         string      `yaml:"name,omitempty"`
	Insertions   []Insertion `yaml:"insertions,omitempty"`
	Coefficients []Complex   `yaml:"coefficients,omitempty"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Run describes one correlator computation.
type Run struct {
	Elemental    string `yaml:"elemental"`
	Perambulator string `yaml:"perambulator"`
	Lt           int    `yaml:"lt"`
	// Timeslices to average over; empty means every timeslice.
	Timeslices []int  `yaml:"timeslices,omitempty"`
	UsedNe     int    `yaml:"used_ne,omitempty"`
	Mode       string `yaml:"mode"`

	Operators []Operator `yaml:"operators,omitempty"`

	// multi_mom only.
	Insertions   []Insertion `yaml:"insertions,omitempty"`
	Momenta      [][3]int    `yaml:"momenta,omitempty"`
	Coefficients []Complex   `yaml:"coefficients,omitempty"`

	Output          string `yaml:"output"`
	Log             Log    `yaml:"log,omitempty"`
	MetricsTextfile string `yaml:"metrics_textfile,omitempty"`
	Workers         int    `yaml:"workers,omitempty"`
	Mmap            bool   `yaml:"mmap,omitempty"`
}

// Load reads and validates a run file.
func Load(path string) (*Run, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(raw)
}

// Parse decodes and validates a run file body. Unknown keys are rejected.
func Parse(raw []byte) (*Run, error) {
	var r Run
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&r); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if r.Mode == "" {
		r.Mode = ModeTwopoint
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

func checkGamma(where string, g int) error {
	if _, err := gamma.Gamma(g); err != nil {
		return invalid("%s: gamma %d not in [0,16)", where, g)
	}
	return nil
}

// Validate checks the run the same way the correlator engine checks its
// requests, plus file and mode settings.
func (r *Run) Validate() error {
	if r.Elemental == "" || r.Perambulator == "" {
		return invalid("elemental and perambulator paths are required")
	}
	if r.Output == "" {
		return invalid("output path is required")
	}
	if r.Lt <= 0 {
		return invalid("lt must be positive, got %d", r.Lt)
	}
	if r.UsedNe < 0 {
		return invalid("used_ne must be >= 0, got %d", r.UsedNe)
	}
	if r.Workers < 0 {
		return invalid("workers must be >= 0, got %d", r.Workers)
	}
	seen := make(map[int]bool, len(r.Timeslices))
	for _, t := range r.Timeslices {
		if t < 0 || t >= r.Lt {
			return invalid("timeslice %d not in [0,%d)", t, r.Lt)
		}
		if r.Mode == ModeIsoscalar && seen[t] {
			return invalid("timeslice %d repeated", t)
		}
		seen[t] = true
	}

	switch r.Mode {
	case ModeTwopoint, ModeMatrix, ModeIsoscalar:
		if r.Mode == ModeIsoscalar && len(r.Timeslices) != 0 && len(r.Timeslices) != r.Lt {
			return invalid("isoscalar needs all %d timeslices, got %d", r.Lt, len(r.Timeslices))
		}
		if len(r.Operators) == 0 {
			return invalid("mode %s needs operators", r.Mode)
		}
		for i, op := range r.Operators {
			if len(op.Insertions) == 0 {
				return invalid("operator %d (%s) has no insertions", i, op.Name)
			}
			if len(op.Coefficients) != 0 && len(op.Coefficients) != len(op.Insertions) {
				return invalid("operator %d (%s): %d insertions, %d coefficients", i, op.Name, len(op.Insertions), len(op.Coefficients))
			}
			for _, in := range op.Insertions {
				if err := checkGamma(fmt.Sprintf("operator %d (%s)", i, op.Name), in.Gamma); err != nil {
					return err
				}
			}
		}
	case ModeMultiMom:
		if len(r.Insertions) == 0 || len(r.Momenta) == 0 {
			return invalid("multi_mom needs insertions and momenta")
		}
		if len(r.Coefficients) != 0 && len(r.Coefficients) != len(r.Insertions) {
			return invalid("%d insertions, %d coefficients", len(r.Insertions), len(r.Coefficients))
		}
		for i, in := range r.Insertions {
			if err := checkGamma(fmt.Sprintf("insertion %d", i), in.Gamma); err != nil {
				return err
			}
		}
	default:
		return invalid("unknown mode %q", r.Mode)
	}
	return nil
}

// AllTimeslices returns Timeslices, or every timeslice when none were listed.
func (r *Run) AllTimeslices() []int {
	if len(r.Timeslices) > 0 {
		return append([]int(nil), r.Timeslices...)
	}
	out := make([]int, r.Lt)
	for i := range out {
		out[i] = i
	}
	return out
}

func complexes(cs []Complex) []complex128 {
	if len(cs) == 0 {
		return nil
	}
	out := make([]complex128, len(cs))
	for i, c := range cs {
		out[i] = complex128(c)
	}
	return out
}

// Coeffs returns the operator coefficients, nil when unset.
func (o Operator) Coeffs() []complex128 {
	return complexes(o.Coefficients)
}

// RowCoefficients returns the multi_mom coefficients, nil when unset.
func (r *Run) RowCoefficients() []complex128 {
	return complexes(r.Coefficients)
}
