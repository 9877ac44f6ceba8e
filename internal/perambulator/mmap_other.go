//go:build !unix

package perambulator

import (
	"errors"
	"os"
)

func mmapReadOnly(_ *os.File) ([]byte, error) {
	return nil, errors.New("mmap not supported on this platform")
}

func munmap(_ []byte) error { return nil }
