package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"lattice-go/pkg/lattice"
)

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestSynthRunInspectClosedForm(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "synth", "--dir", dir, "--lt", "4", "--ne", "2")
	require.NoError(t, err)

	prom := filepath.Join(dir, "lattice.prom")
	_, logs, err := execute(t, "run", "--config", filepath.Join(dir, "run.yaml"), "--metrics-textfile", prom, "--log-format", "json")
	require.NoError(t, err)
	require.Equal(t, 4, strings.Count(logs, `"msg":"timeslice done"`))
	require.Contains(t, logs, `"run_id"`)

	res, err := lattice.ReadResult(filepath.Join(dir, "correlator.lqtf"))
	require.NoError(t, err)
	require.Equal(t, lattice.ModeIsoscalar, res.Mode)
	require.Equal(t, []int{1, 4}, res.Shape)
	want := []complex128{120, 128i, -128, -128i}
	for i, w := range want {
		require.InDelta(t, real(w), real(res.Data[i]), 1e-9)
		require.InDelta(t, imag(w), imag(res.Data[i]), 1e-9)
	}

	metrics, err := os.ReadFile(prom)
	require.NoError(t, err)
	require.Contains(t, string(metrics), `lattice_timeslices_total{kind="isoscalar"} 4`)

	out, _, err := execute(t, "inspect", filepath.Join(dir, "correlator.lqtf"), "--kv-prefix", "lattice.")
	require.NoError(t, err)
	require.Contains(t, out, "lattice.mode = isoscalar")
	require.Contains(t, out, "correlator dims=[1 4]")

	out, _, err = execute(t, "inspect", "--header", filepath.Join(dir, "perambulator.lqtf"))
	require.NoError(t, err)
	require.Contains(t, out, "tensors=1")
	require.NotContains(t, out, "kv:")
}

func TestSynthRandomMultiMom(t *testing.T) {
	dir := t.TempDir()
	_, _, err := execute(t, "synth", "--dir", dir, "--kind", "random", "--lt", "3", "--ne", "2", "--seed", "7")
	require.NoError(t, err)

	out := filepath.Join(dir, "mm.lqtf")
	_, _, err = execute(t, "run", "-c", filepath.Join(dir, "run.yaml"), "-o", out, "--log-level", "error")
	require.NoError(t, err)

	res, err := lattice.ReadResult(out)
	require.NoError(t, err)
	require.Equal(t, lattice.ModeMultiMom, res.Mode)
	require.Equal(t, []int{2, 2, 2, 3}, res.Shape)
	require.Equal(t, [][3]int{{0, 0, 0}, {0, 0, 1}}, res.Momenta)
}

func TestRunRequiresConfig(t *testing.T) {
	_, _, err := execute(t, "run")
	require.Error(t, err)

	_, _, err = execute(t, "synth", "--dir", t.TempDir(), "--kind", "bogus")
	require.Error(t, err)
}
