package container

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestDecodeFileInfo(t *testing.T) {
	buf := bytes.NewBuffer(nil)

	writeRaw(t, buf, "LQTF")
	writeU32(t, buf, 1) // version
	writeU64(t, buf, 2) // tensor count
	writeU64(t, buf, 3) // kv count

	// lattice.kind = "perambulator"
	writeStr(t, buf, "lattice.kind")
	writeU32(t, buf, valueTypeString)
	writeStr(t, buf, "perambulator")

	// lattice.lt = u32(8)
	writeStr(t, buf, "lattice.lt")
	writeU32(t, buf, valueTypeUint32)
	writeU32(t, buf, 8)

	// elemental.momenta = array[i32]
	writeStr(t, buf, "elemental.momenta")
	writeU32(t, buf, valueTypeArray)
	writeU32(t, buf, valueTypeInt32)
	writeU64(t, buf, 3)
	for _, v := range []int32{0, 1, -1} {
		if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
			t.Fatal(err)
		}
	}

	for i := 0; i < 2; i++ {
		writeStr(t, buf, "tensor."+string(rune('a'+i)))
		writeU32(t, buf, 2)              // n_dims
		writeU64(t, buf, uint64(4+i))    // dim0
		writeU64(t, buf, uint64(8+i))    // dim1
		writeU32(t, buf, TypeComplex128) // type
		writeU64(t, buf, uint64(i*1024)) // offset
	}

	info, err := DecodeFileInfo(buf)
	if err != nil {
		t.Fatalf("DecodeFileInfo() error = %v", err)
	}
	if info.TensorCount != 2 || info.KVCount != 3 {
		t.Fatalf("counts = (%d,%d), want (2,3)", info.TensorCount, info.KVCount)
	}
	if got, _ := info.String("lattice.kind"); got != "perambulator" {
		t.Fatalf("lattice.kind = %q, want perambulator", got)
	}
	if got, ok := info.Int("lattice.lt"); !ok || got != 8 {
		t.Fatalf("lattice.lt = %v (%v), want 8", got, ok)
	}
	mom, ok := info.KeyValues["elemental.momenta"].([]int32)
	if !ok || len(mom) != 3 || mom[2] != -1 {
		t.Fatalf("elemental.momenta = %v, want [0 1 -1]", info.KeyValues["elemental.momenta"])
	}
	if got := info.KeyValues["elemental.momenta.count"]; got != uint64(3) {
		t.Fatalf("elemental.momenta.count = %v, want 3", got)
	}
	if len(info.Tensors) != 2 || info.Tensors[1].Name != "tensor.b" {
		t.Fatalf("Tensors = %+v", info.Tensors)
	}
	if info.TensorDataOffset%32 != 0 {
		t.Fatalf("TensorDataOffset = %d, want 32-byte aligned", info.TensorDataOffset)
	}
	shape, err := info.Tensors[1].Shape()
	if err != nil || shape[0] != 5 || shape[1] != 9 {
		t.Fatalf("Shape() = %v, %v; want [5 9]", shape, err)
	}
}

func TestDecodeFileInfoUnsupportedType(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writeRaw(t, buf, "LQTF")
	writeU32(t, buf, 1)
	writeU64(t, buf, 0)
	writeU64(t, buf, 1)

	writeStr(t, buf, "bad.type")
	writeU32(t, buf, 999)

	if _, err := DecodeFileInfo(buf); err == nil {
		t.Fatal("expected error")
	}
}

func TestDecodeFileInfoUnsupportedVersion(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	writeRaw(t, buf, "LQTF")
	writeU32(t, buf, 7)
	writeU64(t, buf, 0)
	writeU64(t, buf, 0)

	if _, err := DecodeFileInfo(buf); err == nil {
		t.Fatal("expected error")
	}
}

func writeStr(t *testing.T, buf *bytes.Buffer, s string) {
	t.Helper()
	writeU64(t, buf, uint64(len(s)))
	writeRaw(t, buf, s)
}

func writeRaw(t *testing.T, buf *bytes.Buffer, s string) {
	t.Helper()
	if _, err := buf.WriteString(s); err != nil {
		t.Fatalf("WriteString() error = %v", err)
	}
}

func writeU32(t *testing.T, buf *bytes.Buffer, v uint32) {
	t.Helper()
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write(u32) error = %v", err)
	}
}

func writeU64(t *testing.T, buf *bytes.Buffer, v uint64) {
	t.Helper()
	if err := binary.Write(buf, binary.LittleEndian, v); err != nil {
		t.Fatalf("binary.Write(u64) error = %v", err)
	}
}
