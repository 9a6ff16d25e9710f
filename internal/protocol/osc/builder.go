package osc

import "fmt"

// NewMessage builds a message from an ordered list of typed arguments,
// computing the type tag and payload together.
func NewMessage(address string, args ...Arg) (*Message, error) {
	if 1+len(args)+1 > TypeTagCap {
		return nil, fmt.Errorf("%w: %d arguments", ErrTypeTagTooLong, len(args))
	}
	tag := make([]byte, 1, 1+len(args))
	tag[0] = Sentinel
	size := 0
	for _, a := range args {
		if a == nil {
			return nil, fmt.Errorf("%w: nil argument", ErrArgType)
		}
		tag = append(tag, a.Tag())
		size += a.encodedLen()
	}
	if size > PayloadCap {
		return nil, fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, size, PayloadCap)
	}

	w := newWriter(size)
	for _, a := range args {
		if err := a.put(w); err != nil {
			return nil, err
		}
	}

	m := &Message{}
	if err := m.SetAddress(address); err != nil {
		return nil, err
	}
	if err := m.SetTypeTag(string(tag)); err != nil {
		return nil, err
	}
	m.Payload = w.buf
	return m, nil
}

// MustMessage is NewMessage for compile-time constant inputs; it panics on
// error because an out-of-bounds constant is a configuration bug.
func MustMessage(address string, args ...Arg) *Message {
	m, err := NewMessage(address, args...)
	if err != nil {
		panic(err)
	}
	return m
}
