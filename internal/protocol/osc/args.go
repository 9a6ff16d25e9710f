package osc

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/exp/constraints"
)

// Arg is one typed argument value. The tag and the encoding come from the
// same value, so a built message can never disagree with its type tag.
type Arg interface {
	Tag() byte
	encodedLen() int
	put(w *writer) error
}

// Int32 is an 'i' argument.
type Int32 int32

// Float32 is an 'f' argument.
type Float32 float32

// String is an 's' argument.
type String string

// Int converts any integer to an Int32 argument, truncating to 32 bits.
func Int[T constraints.Integer](v T) Int32 {
	return Int32(v)
}

func (Int32) Tag() byte             { return TagInt32 }
func (Int32) encodedLen() int       { return 4 }
func (v Int32) put(w *writer) error { return w.putUint32(uint32(v)) }

func (Float32) Tag() byte       { return TagFloat32 }
func (Float32) encodedLen() int { return 4 }
func (v Float32) put(w *writer) error {
	return w.putUint32(math.Float32bits(float32(v)))
}

func (String) Tag() byte         { return TagString }
func (v String) encodedLen() int { return Size(string(v)) }
func (v String) put(w *writer) error {
	if strings.IndexByte(string(v), 0) >= 0 {
		return ErrEmbeddedNUL
	}
	return w.putString(string(v))
}

// Args parses the payload against the type tag.
func (m *Message) Args() ([]Arg, error) {
	if m.TypeTag == "" || m.TypeTag[0] != Sentinel {
		return nil, ErrMissingSentinel
	}
	r := &reader{buf: m.Payload}
	out := make([]Arg, 0, m.Arity())
	for i := 1; i < len(m.TypeTag); i++ {
		field := fmt.Sprintf("argument %d", i)
		switch m.TypeTag[i] {
		case TagInt32:
			v, err := r.uint32(field)
			if err != nil {
				return nil, err
			}
			out = append(out, Int32(int32(v)))
		case TagFloat32:
			v, err := r.uint32(field)
			if err != nil {
				return nil, err
			}
			out = append(out, Float32(math.Float32frombits(v)))
		case TagString:
			v, err := r.string(field)
			if err != nil {
				return nil, err
			}
			out = append(out, String(v))
		default:
			return nil, fmt.Errorf("%w: %q at position %d", ErrUnknownTag, m.TypeTag[i], i)
		}
	}
	return out, nil
}

// Int32At reads a big-endian integer at a fixed payload offset.
func (m *Message) Int32At(offset int) (int32, error) {
	v, err := m.wordAt(offset)
	return int32(v), err
}

// Float32At reads a big-endian float at a fixed payload offset.
func (m *Message) Float32At(offset int) (float32, error) {
	v, err := m.wordAt(offset)
	return math.Float32frombits(v), err
}

func (m *Message) wordAt(offset int) (uint32, error) {
	if offset < 0 || offset > len(m.Payload) {
		return 0, formatErr(offset, nil, "offset outside %d-byte payload", len(m.Payload))
	}
	r := &reader{buf: m.Payload, off: offset}
	return r.uint32("word")
}

// CheckPayload verifies that the payload holds exactly the arguments the
// type tag names, with no trailing bytes.
func (m *Message) CheckPayload() error {
	args, err := m.Args()
	if err != nil {
		return err
	}
	used := 0
	for _, a := range args {
		used += a.encodedLen()
	}
	if used != len(m.Payload) {
		return formatErr(used, nil, "%d trailing payload bytes", len(m.Payload)-used)
	}
	return nil
}
