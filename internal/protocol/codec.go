package protocol

import (
	"errors"
	"fmt"
	"io"
)

// Encode serializes a packet into one frame: opcode byte, then each field in
// declaration order.
func Encode(p Packet) ([]byte, error) {
	w := NewWriter(64)
	if err := EncodeTo(w, p); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo appends the frame for p to w.
func EncodeTo(w *Writer, p Packet) error {
	op := p.Opcode()
	if _, ok := catalog[op]; !ok {
		return &UnknownOpcodeError{Opcode: byte(op)}
	}
	w.WriteU8(uint8(op))
	for i, f := range p.fields() {
		if err := writeField(w, f); err != nil {
			return fmt.Errorf("encoding %s field %d: %w", op, i, err)
		}
	}
	return nil
}

// Decode reads exactly one frame from r.
//
// An io.EOF before the opcode byte is returned unwrapped so callers can tell
// a closed stream from a truncated frame; EOF inside a frame is reported as
// ErrMalformedField. Other read errors (deadlines, resets) are wrapped with %w.
func Decode(r io.Reader) (Packet, error) {
	pr := NewReader(r)
	b, err := pr.ReadU8()
	if err != nil {
		return nil, err
	}

	op := Opcode(b)
	e, ok := catalog[op]
	if !ok {
		return nil, &UnknownOpcodeError{Opcode: b}
	}

	p := e.new()
	for i, f := range p.fields() {
		if err := readField(pr, f); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil, fmt.Errorf("%w: %s field %d: %w", ErrMalformedField, e.name, i, io.ErrUnexpectedEOF)
			}
			return nil, fmt.Errorf("decoding %s field %d: %w", e.name, i, err)
		}
	}
	return p, nil
}

// EncodedLen returns the size of p's frame without encoding it.
func EncodedLen(p Packet) int {
	n := 1
	for _, f := range p.fields() {
		switch v := f.(type) {
		case *uint8, *int8, *bool:
			n++
		case *uint16, *int16:
			n += 2
		case *uint32, *int32, *float32:
			n += 4
		case *uint64, *int64, *float64:
			n += 8
		case *string:
			n += 4 + len(*v)
		}
	}
	return n
}

func readField(r *Reader, f any) (err error) {
	switch v := f.(type) {
	case *uint8:
		*v, err = r.ReadU8()
	case *int8:
		*v, err = r.ReadI8()
	case *uint16:
		*v, err = r.ReadU16()
	case *int16:
		*v, err = r.ReadI16()
	case *uint32:
		*v, err = r.ReadU32()
	case *int32:
		*v, err = r.ReadI32()
	case *uint64:
		*v, err = r.ReadU64()
	case *int64:
		*v, err = r.ReadI64()
	case *float32:
		*v, err = r.ReadF32()
	case *float64:
		*v, err = r.ReadF64()
	case *bool:
		*v, err = r.ReadBool()
	case *string:
		*v, err = r.ReadString()
	default:
		err = fmt.Errorf("%w: unsupported field type %T", ErrMalformedField, f)
	}
	return err
}

func writeField(w *Writer, f any) error {
	switch v := f.(type) {
	case *uint8:
		w.WriteU8(*v)
	case *int8:
		w.WriteI8(*v)
	case *uint16:
		w.WriteU16(*v)
	case *int16:
		w.WriteI16(*v)
	case *uint32:
		w.WriteU32(*v)
	case *int32:
		w.WriteI32(*v)
	case *uint64:
		w.WriteU64(*v)
	case *int64:
		w.WriteI64(*v)
	case *float32:
		w.WriteF32(*v)
	case *float64:
		w.WriteF64(*v)
	case *bool:
		w.WriteBool(*v)
	case *string:
		return w.WriteString(*v)
	default:
		return fmt.Errorf("%w: unsupported field type %T", ErrMalformedField, f)
	}
	return nil
}
