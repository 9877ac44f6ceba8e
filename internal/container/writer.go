package container

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"lattice-go/internal/tensor"
)

type kvEntry struct {
	key   string
	value any
}

type pendingTensor struct {
	name string
	typ  uint32
	data *tensor.Tensor
}

// Writer assembles a container in memory order: metadata first, then the
// tensor payloads in the order they were added.
type Writer struct {
	alignment uint32
	kv        []kvEntry
	tensors   []pendingTensor
}

func NewWriter() *Writer {
	return &Writer{alignment: defaultAlignment}
}

// SetKV records a metadata value. Supported types: uint8, int8, uint16,
// int16, uint32, int32, uint64, int64, int, float32, float64, bool, string,
// []int32, []int64, []float64, []string. A repeated key overwrites.
func (w *Writer) SetKV(key string, value any) error {
	switch v := value.(type) {
	case int:
		value = int64(v)
	case uint8, int8, uint16, int16, uint32, int32, uint64, int64, float32, float64, bool, string,
		[]int32, []int64, []float64, []string:
	default:
		return fmt.Errorf("unsupported kv type %T for %q", value, key)
	}
	if key == KeyAlignment {
		a, ok := value.(uint32)
		if !ok || a == 0 {
			return fmt.Errorf("%s must be a non-zero uint32", KeyAlignment)
		}
		w.alignment = a
	}
	for i := range w.kv {
		if w.kv[i].key == key {
			w.kv[i].value = value
			return nil
		}
	}
	w.kv = append(w.kv, kvEntry{key: key, value: value})
	return nil
}

// AddTensor schedules t to be written under name with element type typ.
func (w *Writer) AddTensor(name string, typ uint32, t *tensor.Tensor) error {
	if ElementSize(typ) == 0 {
		return fmt.Errorf("unsupported tensor type: %d", typ)
	}
	for _, p := range w.tensors {
		if p.name == name {
			return fmt.Errorf("duplicate tensor %q", name)
		}
	}
	w.tensors = append(w.tensors, pendingTensor{name: name, typ: typ, data: t})
	return nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}

func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	cw := &countingWriter{w: out}
	le := binary.LittleEndian

	if _, err := io.WriteString(cw, Magic); err != nil {
		return cw.n, err
	}
	for _, v := range []any{Version, uint64(len(w.tensors)), uint64(len(w.kv))} {
		if err := binary.Write(cw, le, v); err != nil {
			return cw.n, err
		}
	}
	for _, e := range w.kv {
		if err := writeString(cw, e.key); err != nil {
			return cw.n, err
		}
		if err := writeValue(cw, e.value); err != nil {
			return cw.n, fmt.Errorf("write kv %q: %w", e.key, err)
		}
	}

	offsets := make([]uint64, len(w.tensors))
	var next uint64
	for i, p := range w.tensors {
		next = alignUpUint64(next, uint64(w.alignment))
		offsets[i] = next
		next += uint64(p.data.Len() * ElementSize(p.typ))
	}
	for i, p := range w.tensors {
		if err := writeString(cw, p.name); err != nil {
			return cw.n, err
		}
		shape := p.data.Shape()
		if err := binary.Write(cw, le, uint32(len(shape))); err != nil {
			return cw.n, err
		}
		for _, d := range shape {
			if err := binary.Write(cw, le, uint64(d)); err != nil {
				return cw.n, err
			}
		}
		if err := binary.Write(cw, le, p.typ); err != nil {
			return cw.n, err
		}
		if err := binary.Write(cw, le, offsets[i]); err != nil {
			return cw.n, err
		}
	}

	if err := pad(cw, alignUpUint64(uint64(cw.n), uint64(w.alignment))-uint64(cw.n)); err != nil {
		return cw.n, err
	}
	dataStart := cw.n
	const chunk = 4096
	for i, p := range w.tensors {
		if err := pad(cw, offsets[i]-uint64(cw.n-dataStart)); err != nil {
			return cw.n, err
		}
		size := ElementSize(p.typ)
		buf := make([]byte, chunk*size)
		data := p.data.Data()
		for start := 0; start < len(data); start += chunk {
			end := min(start+chunk, len(data))
			encodeComplex(buf, data[start:end], p.typ)
			if _, err := cw.Write(buf[:(end-start)*size]); err != nil {
				return cw.n, fmt.Errorf("write tensor %q: %w", p.name, err)
			}
		}
	}
	return cw.n, nil
}

// WriteFile writes the container to path, replacing any existing file.
func (w *Writer) WriteFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	bw := bufio.NewWriterSize(f, 1<<20)
	if _, err := w.WriteTo(bw); err != nil {
		_ = f.Close()
		return err
	}
	if err := bw.Flush(); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func pad(w io.Writer, n uint64) error {
	if n == 0 {
		return nil
	}
	_, err := w.Write(make([]byte, n))
	return err
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint64(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func writeValue(w io.Writer, value any) error {
	le := binary.LittleEndian
	writeType := func(t uint32) error { return binary.Write(w, le, t) }
	writeArrayHeader := func(elem uint32, n int) error {
		if err := writeType(valueTypeArray); err != nil {
			return err
		}
		if err := binary.Write(w, le, elem); err != nil {
			return err
		}
		return binary.Write(w, le, uint64(n))
	}

	switch v := value.(type) {
	case string:
		if err := writeType(valueTypeString); err != nil {
			return err
		}
		return writeString(w, v)
	case bool:
		if err := writeType(valueTypeBool); err != nil {
			return err
		}
		var b uint8
		if v {
			b = 1
		}
		return binary.Write(w, le, b)
	case []string:
		if err := writeArrayHeader(valueTypeString, len(v)); err != nil {
			return err
		}
		for _, s := range v {
			if err := writeString(w, s); err != nil {
				return err
			}
		}
		return nil
	case []int32:
		if err := writeArrayHeader(valueTypeInt32, len(v)); err != nil {
			return err
		}
		return binary.Write(w, le, v)
	case []int64:
		if err := writeArrayHeader(valueTypeInt64, len(v)); err != nil {
			return err
		}
		return binary.Write(w, le, v)
	case []float64:
		if err := writeArrayHeader(valueTypeFloat64, len(v)); err != nil {
			return err
		}
		return binary.Write(w, le, v)
	}

	var t uint32
	switch value.(type) {
	case uint8:
		t = valueTypeUint8
	case int8:
		t = valueTypeInt8
	case uint16:
		t = valueTypeUint16
	case int16:
		t = valueTypeInt16
	case uint32:
		t = valueTypeUint32
	case int32:
		t = valueTypeInt32
	case float32:
		t = valueTypeFloat32
	case uint64:
		t = valueTypeUint64
	case int64:
		t = valueTypeInt64
	case float64:
		t = valueTypeFloat64
	default:
		return fmt.Errorf("unsupported kv type %T", value)
	}
	if err := writeType(t); err != nil {
		return err
	}
	return binary.Write(w, le, value)
}
