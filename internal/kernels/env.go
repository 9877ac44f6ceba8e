package kernels

import (
	"os"
	"runtime"
	"strconv"
)

func envInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// DefaultWorkers is the worker count used when callers pass 0. It honours
// LATTICE_WORKERS and otherwise follows GOMAXPROCS.
func DefaultWorkers() int {
	w := envInt("LATTICE_WORKERS", 0)
	if w <= 0 {
		w = runtime.GOMAXPROCS(0)
	}
	if w < 1 {
		w = 1
	}
	return w
}
