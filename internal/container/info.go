package container

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
)

const (
	valueTypeUint8   = 0
	valueTypeInt8    = 1
	valueTypeUint16  = 2
	valueTypeInt16   = 3
	valueTypeUint32  = 4
	valueTypeInt32   = 5
	valueTypeFloat32 = 6
	valueTypeBool    = 7
	valueTypeString  = 8
	valueTypeArray   = 9
	valueTypeUint64  = 10
	valueTypeInt64   = 11
	valueTypeFloat64 = 12
)

// KeyAlignment overrides the default data-section alignment.
const KeyAlignment = "general.alignment"

const defaultAlignment = 32

type TensorInfo struct {
	Name       string
	Dimensions []uint64
	Type       uint32
	Offset     uint64
}

type FileInfo struct {
	Header
	KeyValues        map[string]any
	Tensors          []TensorInfo
	Alignment        uint32
	TensorDataOffset uint64
}

func ReadFileInfo(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, err
	}
	defer f.Close()
	return DecodeFileInfo(f)
}

func DecodeFileInfo(r io.Reader) (FileInfo, error) {
	cr := &countingReader{r: r}
	h, err := DecodeHeader(cr)
	if err != nil {
		return FileInfo{}, err
	}
	if h.Version != Version {
		return FileInfo{}, fmt.Errorf("unsupported container version: %d", h.Version)
	}

	info := FileInfo{
		Header:    h,
		KeyValues: make(map[string]any, h.KVCount),
		Tensors:   make([]TensorInfo, 0, h.TensorCount),
	}

	for i := uint64(0); i < h.KVCount; i++ {
		key, err := readString(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read kv key[%d]: %w", i, err)
		}

		t, err := readUint32(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read kv type[%d]: %w", i, err)
		}

		if t == valueTypeArray {
			parsed, n, err := readArrayValue(cr)
			if err != nil {
				return FileInfo{}, fmt.Errorf("read kv array[%d]: %w", i, err)
			}
			info.KeyValues[key+".count"] = n
			info.KeyValues[key] = parsed
			continue
		}

		v, err := readValueByType(cr, t)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read kv value[%d] type=%d: %w", i, t, err)
		}
		info.KeyValues[key] = v
	}

	for i := uint64(0); i < h.TensorCount; i++ {
		name, err := readString(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read tensor name[%d]: %w", i, err)
		}
		nDims, err := readUint32(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read tensor n_dims[%d]: %w", i, err)
		}
		dims := make([]uint64, nDims)
		for j := uint32(0); j < nDims; j++ {
			dims[j], err = readUint64(cr)
			if err != nil {
				return FileInfo{}, fmt.Errorf("read tensor dim[%d][%d]: %w", i, j, err)
			}
		}
		tType, err := readUint32(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read tensor type[%d]: %w", i, err)
		}
		offset, err := readUint64(cr)
		if err != nil {
			return FileInfo{}, fmt.Errorf("read tensor offset[%d]: %w", i, err)
		}

		info.Tensors = append(info.Tensors, TensorInfo{
			Name:       name,
			Dimensions: dims,
			Type:       tType,
			Offset:     offset,
		})
	}

	info.Alignment = fileAlignment(info.KeyValues)
	info.TensorDataOffset = alignUpUint64(cr.n, uint64(info.Alignment))

	return info, nil
}

type countingReader struct {
	r io.Reader
	n uint64
}

func (r *countingReader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += uint64(n)
	return n, err
}

func fileAlignment(kv map[string]any) uint32 {
	if v, ok := kv[KeyAlignment]; ok {
		switch x := v.(type) {
		case uint32:
			if x > 0 {
				return x
			}
		case uint64:
			if x > 0 && x <= uint64(^uint32(0)) {
				return uint32(x)
			}
		case int32:
			if x > 0 {
				return uint32(x)
			}
		case int64:
			if x > 0 && x <= int64(^uint32(0)) {
				return uint32(x)
			}
		}
	}
	return defaultAlignment
}

func alignUpUint64(v, align uint64) uint64 {
	if align == 0 {
		return v
	}
	rem := v % align
	if rem == 0 {
		return v
	}
	return v + (align - rem)
}

// Int reads an integer-valued key regardless of its stored width.
func (f FileInfo) Int(key string) (int64, bool) {
	switch x := f.KeyValues[key].(type) {
	case uint8:
		return int64(x), true
	case int8:
		return int64(x), true
	case uint16:
		return int64(x), true
	case int16:
		return int64(x), true
	case uint32:
		return int64(x), true
	case int32:
		return int64(x), true
	case uint64:
		if x > math.MaxInt64 {
			return 0, false
		}
		return int64(x), true
	case int64:
		return x, true
	default:
		return 0, false
	}
}

// String reads a string-valued key.
func (f FileInfo) String(key string) (string, bool) {
	s, ok := f.KeyValues[key].(string)
	return s, ok
}

func readValueByType(r io.Reader, valueType uint32) (any, error) {
	switch valueType {
	case valueTypeUint8:
		return readUint8(r)
	case valueTypeInt8:
		return readInt8(r)
	case valueTypeUint16:
		return readUint16(r)
	case valueTypeInt16:
		return readInt16(r)
	case valueTypeUint32:
		return readUint32(r)
	case valueTypeInt32:
		return readInt32(r)
	case valueTypeFloat32:
		return readFloat32(r)
	case valueTypeBool:
		return readBool(r)
	case valueTypeString:
		return readString(r)
	case valueTypeUint64:
		return readUint64(r)
	case valueTypeInt64:
		return readInt64(r)
	case valueTypeFloat64:
		return readFloat64(r)
	default:
		return nil, fmt.Errorf("unsupported value type: %d", valueType)
	}
}

// maxArrayLen bounds metadata arrays; tensor payloads never live in KV space.
const maxArrayLen = 1 << 24

func readArrayValue(r io.Reader) (any, uint64, error) {
	elemType, err := readUint32(r)
	if err != nil {
		return nil, 0, err
	}
	n, err := readUint64(r)
	if err != nil {
		return nil, 0, err
	}
	if n > maxArrayLen {
		return nil, 0, fmt.Errorf("array too large: %d", n)
	}

	switch elemType {
	case valueTypeString:
		out := make([]string, n)
		for i := range out {
			if out[i], err = readString(r); err != nil {
				return nil, 0, err
			}
		}
		return out, n, nil
	case valueTypeInt32:
		out := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, 0, err
		}
		return out, n, nil
	case valueTypeInt64:
		out := make([]int64, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, 0, err
		}
		return out, n, nil
	case valueTypeFloat64:
		out := make([]float64, n)
		if err := binary.Read(r, binary.LittleEndian, out); err != nil {
			return nil, 0, err
		}
		return out, n, nil
	}

	size := valueTypeSize(elemType)
	if size == 0 {
		return nil, 0, fmt.Errorf("unsupported array element type: %d", elemType)
	}
	if _, err := io.CopyN(io.Discard, r, int64(n*uint64(size))); err != nil {
		return nil, 0, err
	}
	return nil, n, nil
}

func valueTypeSize(t uint32) int {
	switch t {
	case valueTypeUint8, valueTypeInt8, valueTypeBool:
		return 1
	case valueTypeUint16, valueTypeInt16:
		return 2
	case valueTypeUint32, valueTypeInt32, valueTypeFloat32:
		return 4
	case valueTypeUint64, valueTypeInt64, valueTypeFloat64:
		return 8
	default:
		return 0
	}
}

func readString(r io.Reader) (string, error) {
	n, err := readUint64(r)
	if err != nil {
		return "", err
	}
	if n > math.MaxInt32 {
		return "", fmt.Errorf("string too large: %d", n)
	}
	buf := make([]byte, int(n))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func readScalar[T any](r io.Reader) (T, error) {
	var v T
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		var zero T
		return zero, err
	}
	return v, nil
}

func readUint8(r io.Reader) (uint8, error)     { return readScalar[uint8](r) }
func readInt8(r io.Reader) (int8, error)       { return readScalar[int8](r) }
func readUint16(r io.Reader) (uint16, error)   { return readScalar[uint16](r) }
func readInt16(r io.Reader) (int16, error)     { return readScalar[int16](r) }
func readUint32(r io.Reader) (uint32, error)   { return readScalar[uint32](r) }
func readInt32(r io.Reader) (int32, error)     { return readScalar[int32](r) }
func readFloat32(r io.Reader) (float32, error) { return readScalar[float32](r) }
func readUint64(r io.Reader) (uint64, error)   { return readScalar[uint64](r) }
func readInt64(r io.Reader) (int64, error)     { return readScalar[int64](r) }
func readFloat64(r io.Reader) (float64, error) { return readScalar[float64](r) }

func readBool(r io.Reader) (bool, error) {
	b, err := readUint8(r)
	if err != nil {
		return false, err
	}
	return b != 0, nil
}
