// Package container reads and writes the binary tensor container used for
// perambulators, elementals and correlator results. A file holds a fixed
// header, typed key/value metadata, a tensor directory and an aligned data
// section of little-endian complex payloads. Tensor dimensions are listed
// outermost first and payloads are row-major.
package container

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
)

// Magic opens every container file.
const Magic = "LQTF"

// Version is the format version written by Writer.
const Version uint32 = 1

var ErrInvalidMagic = errors.New("container: invalid magic")

type Header struct {
	Version     uint32
	TensorCount uint64
	KVCount     uint64
}

func ReadHeader(path string) (Header, error) {
	f, err := os.Open(path)
	if err != nil {
		return Header{}, err
	}
	defer f.Close()

	return DecodeHeader(f)
}

func DecodeHeader(r io.Reader) (Header, error) {
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return Header{}, fmt.Errorf("read magic: %w", err)
	}
	if string(magic[:]) != Magic {
		return Header{}, ErrInvalidMagic
	}

	var h Header
	if err := binary.Read(r, binary.LittleEndian, &h.Version); err != nil {
		return Header{}, fmt.Errorf("read version: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.TensorCount); err != nil {
		return Header{}, fmt.Errorf("read tensor count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &h.KVCount); err != nil {
		return Header{}, fmt.Errorf("read kv count: %w", err)
	}

	return h, nil
}
