package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"unicode/utf8"
)

// MaxStringLen is the largest string payload, in bytes, accepted on the wire.
const MaxStringLen = math.MaxInt16

// Reader decodes big-endian primitives from a byte stream. It never reads
// past the value being decoded, so it can sit directly on a connection.
type Reader struct {
	r   io.Reader
	buf [8]byte
}

// NewReader wraps r. Callers decoding from a socket should pass a buffered
// reader; Reader itself does no buffering.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

func (r *Reader) fill(n int) ([]byte, error) {
	b := r.buf[:n]
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (r *Reader) ReadU8() (uint8, error) {
	b, err := r.fill(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) ReadI8() (int8, error) {
	v, err := r.ReadU8()
	return int8(v), err
}

func (r *Reader) ReadU16() (uint16, error) {
	b, err := r.fill(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *Reader) ReadI16() (int16, error) {
	v, err := r.ReadU16()
	return int16(v), err
}

func (r *Reader) ReadU32() (uint32, error) {
	b, err := r.fill(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *Reader) ReadI32() (int32, error) {
	v, err := r.ReadU32()
	return int32(v), err
}

func (r *Reader) ReadU64() (uint64, error) {
	b, err := r.fill(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

func (r *Reader) ReadI64() (int64, error) {
	v, err := r.ReadU64()
	return int64(v), err
}

func (r *Reader) ReadF32() (float32, error) {
	v, err := r.ReadU32()
	return math.Float32frombits(v), err
}

func (r *Reader) ReadF64() (float64, error) {
	v, err := r.ReadU64()
	return math.Float64frombits(v), err
}

// ReadBool decodes one byte; only 0x01 is true.
func (r *Reader) ReadBool() (bool, error) {
	v, err := r.ReadU8()
	return v == 1, err
}

// ReadString decodes an i32 length prefix followed by that many UTF-8 bytes.
// The length is checked before any payload byte is consumed.
func (r *Reader) ReadString() (string, error) {
	n, err := r.ReadI32()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", fmt.Errorf("%w: negative string length %d", ErrMalformedField, n)
	}
	if n > MaxStringLen {
		return "", fmt.Errorf("%w: declared %d bytes, limit %d", ErrOversizedString, n, MaxStringLen)
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return "", err
	}
	if !utf8.Valid(b) {
		return "", ErrInvalidUTF8
	}
	return string(b), nil
}

// Writer encodes big-endian primitives into an in-memory frame buffer.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with room for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the encoded bytes. The slice aliases the Writer's buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// Len returns the number of encoded bytes.
func (w *Writer) Len() int { return len(w.buf) }

func (w *Writer) WriteU8(v uint8)   { w.buf = append(w.buf, v) }
func (w *Writer) WriteI8(v int8)    { w.WriteU8(uint8(v)) }
func (w *Writer) WriteU16(v uint16) { w.buf = binary.BigEndian.AppendUint16(w.buf, v) }
func (w *Writer) WriteI16(v int16)  { w.WriteU16(uint16(v)) }
func (w *Writer) WriteU32(v uint32) { w.buf = binary.BigEndian.AppendUint32(w.buf, v) }
func (w *Writer) WriteI32(v int32)  { w.WriteU32(uint32(v)) }
func (w *Writer) WriteU64(v uint64) { w.buf = binary.BigEndian.AppendUint64(w.buf, v) }
func (w *Writer) WriteI64(v int64)  { w.WriteU64(uint64(v)) }
func (w *Writer) WriteF32(v float32) {
	w.WriteU32(math.Float32bits(v))
}
func (w *Writer) WriteF64(v float64) {
	w.WriteU64(math.Float64bits(v))
}

// WriteBool encodes true as 0x01 and false as 0x00.
func (w *Writer) WriteBool(v bool) {
	if v {
		w.WriteU8(0x01)
		return
	}
	w.WriteU8(0x00)
}

// WriteString encodes s with an i32 length prefix. Strings longer than
// MaxStringLen bytes or holding invalid UTF-8 are refused, never truncated.
func (w *Writer) WriteString(s string) error {
	if len(s) > MaxStringLen {
		return fmt.Errorf("%w: %d bytes, limit %d", ErrOversizedString, len(s), MaxStringLen)
	}
	if !utf8.ValidString(s) {
		return ErrInvalidUTF8
	}
	w.WriteI32(int32(len(s)))
	w.buf = append(w.buf, s...)
	return nil
}
