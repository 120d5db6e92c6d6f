package protocol

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrimitiveBoundaryValues(t *testing.T) {
	w := NewWriter(0)
	w.WriteU8(0)
	w.WriteU8(math.MaxUint8)
	w.WriteI8(math.MinInt8)
	w.WriteI8(math.MaxInt8)
	w.WriteU16(math.MaxUint16)
	w.WriteI16(math.MinInt16)
	w.WriteU32(math.MaxUint32)
	w.WriteI32(math.MinInt32)
	w.WriteI32(math.MaxInt32)
	w.WriteU64(math.MaxUint64)
	w.WriteI64(math.MinInt64)
	w.WriteI64(math.MaxInt64)
	w.WriteF32(math.MaxFloat32)
	w.WriteF32(-math.SmallestNonzeroFloat32)
	w.WriteF64(math.MaxFloat64)
	w.WriteF64(math.Inf(-1))
	w.WriteBool(true)
	w.WriteBool(false)

	r := NewReader(bytes.NewReader(w.Bytes()))

	u8, err := r.ReadU8()
	require.NoError(t, err)
	assert.Equal(t, uint8(0), u8)
	u8, _ = r.ReadU8()
	assert.Equal(t, uint8(math.MaxUint8), u8)

	i8, _ := r.ReadI8()
	assert.Equal(t, int8(math.MinInt8), i8)
	i8, _ = r.ReadI8()
	assert.Equal(t, int8(math.MaxInt8), i8)

	u16, _ := r.ReadU16()
	assert.Equal(t, uint16(math.MaxUint16), u16)
	i16, _ := r.ReadI16()
	assert.Equal(t, int16(math.MinInt16), i16)

	u32, _ := r.ReadU32()
	assert.Equal(t, uint32(math.MaxUint32), u32)
	i32, _ := r.ReadI32()
	assert.Equal(t, int32(math.MinInt32), i32)
	i32, _ = r.ReadI32()
	assert.Equal(t, int32(math.MaxInt32), i32)

	u64, _ := r.ReadU64()
	assert.Equal(t, uint64(math.MaxUint64), u64)
	i64, _ := r.ReadI64()
	assert.Equal(t, int64(math.MinInt64), i64)
	i64, _ = r.ReadI64()
	assert.Equal(t, int64(math.MaxInt64), i64)

	f32, _ := r.ReadF32()
	assert.Equal(t, float32(math.MaxFloat32), f32)
	f32, _ = r.ReadF32()
	assert.Equal(t, float32(-math.SmallestNonzeroFloat32), f32)

	f64, _ := r.ReadF64()
	assert.Equal(t, math.MaxFloat64, f64)
	f64, _ = r.ReadF64()
	assert.True(t, math.IsInf(f64, -1))

	b, _ := r.ReadBool()
	assert.True(t, b)
	b, err = r.ReadBool()
	require.NoError(t, err)
	assert.False(t, b)
}

func TestPrimitiveByteOrder(t *testing.T) {
	w := NewWriter(0)
	w.WriteU32(0x01020304)
	w.WriteI16(-2)
	assert.Equal(t, []byte{0x01, 0x02, 0x03, 0x04, 0xff, 0xfe}, w.Bytes())
}

// TestReadBoolMapping documents that only 0x01 decodes as true.
func TestReadBoolMapping(t *testing.T) {
	testCases := []struct {
		in   byte
		want bool
	}{
		{0x00, false},
		{0x01, true},
		{0x02, false},
		{0xff, false},
	}

	for _, tc := range testCases {
		got, err := NewReader(bytes.NewReader([]byte{tc.in})).ReadBool()
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "byte 0x%02x", tc.in)
	}
}

func TestWriteStringInvalidUTF8(t *testing.T) {
	w := NewWriter(0)
	assert.ErrorIs(t, w.WriteString(string([]byte{0xc3, 0x28})), ErrInvalidUTF8)
	assert.Zero(t, w.Len(), "nothing written on failure")
}

func TestReadStringBoundary(t *testing.T) {
	w := NewWriter(0)
	require.NoError(t, w.WriteString(string(bytes.Repeat([]byte{'a'}, MaxStringLen))))
	s, err := NewReader(bytes.NewReader(w.Bytes())).ReadString()
	require.NoError(t, err)
	assert.Len(t, s, MaxStringLen)
}
