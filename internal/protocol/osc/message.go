package osc

import (
	"bytes"
	"fmt"
	"strings"
)

// Fixed capacities of the message model. String capacities include the NUL
// terminator.
const (
	AddressCap = 64
	TypeTagCap = 16
	PayloadCap = 128
)

// MinMessageLen is the smallest framable datagram: an empty address and a
// bare sentinel tag, each padded to one word.
const MinMessageLen = 2 * Align

// Sentinel opens every type tag.
const Sentinel = ','

// Type tag characters.
const (
	TagInt32   byte = 'i'
	TagFloat32 byte = 'f'
	TagString  byte = 's'
)

// Message is one protocol message. It is a value constructed per send or
// receive; Payload holds the already-encoded arguments in TypeTag order.
type Message struct {
	Address string
	TypeTag string
	Payload []byte
}

// SetAddress replaces the address after a capacity check.
func (m *Message) SetAddress(address string) error {
	if err := checkString(address, AddressCap, ErrAddressTooLong); err != nil {
		return err
	}
	m.Address = address
	return nil
}

// SetTypeTag replaces the type tag after sentinel and capacity checks.
func (m *Message) SetTypeTag(tag string) error {
	if err := checkTypeTag(tag); err != nil {
		return err
	}
	m.TypeTag = tag
	return nil
}

// PayloadLen is the number of meaningful payload bytes.
func (m *Message) PayloadLen() int {
	return len(m.Payload)
}

// Arity is the number of arguments declared by the type tag.
func (m *Message) Arity() int {
	if m.TypeTag == "" {
		return 0
	}
	return len(m.TypeTag) - 1
}

// EncodedLen is the exact datagram size Encode produces for m.
func (m *Message) EncodedLen() int {
	return Size(m.Address) + Size(m.TypeTag) + len(m.Payload)
}

// Validate checks the bounds and framing invariants required to encode m.
func (m *Message) Validate() error {
	if m == nil {
		return ErrNilMessage
	}
	if err := checkString(m.Address, AddressCap, ErrAddressTooLong); err != nil {
		return err
	}
	if err := checkTypeTag(m.TypeTag); err != nil {
		return err
	}
	if len(m.Payload) > PayloadCap {
		return fmt.Errorf("%w: %d > %d", ErrPayloadTooLarge, len(m.Payload), PayloadCap)
	}
	if len(m.Payload)%Align != 0 {
		return fmt.Errorf("%w: %d bytes", ErrUnaligned, len(m.Payload))
	}
	return nil
}

// Equal reports whether both messages carry the same address, tag, and
// payload bytes. A nil and an empty payload are equal.
func (m *Message) Equal(o *Message) bool {
	if m == nil || o == nil {
		return m == o
	}
	return m.Address == o.Address && m.TypeTag == o.TypeTag && bytes.Equal(m.Payload, o.Payload)
}

func (m *Message) String() string {
	if m == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%s %s [%d bytes]", m.Address, m.TypeTag, len(m.Payload))
}

func checkString(s string, capacity int, tooLong error) error {
	if len(s)+1 > capacity {
		return fmt.Errorf("%w: %d > %d", tooLong, len(s)+1, capacity)
	}
	if strings.IndexByte(s, 0) >= 0 {
		return ErrEmbeddedNUL
	}
	return nil
}

func checkTypeTag(tag string) error {
	if tag == "" || tag[0] != Sentinel {
		return ErrMissingSentinel
	}
	return checkString(tag, TypeTagCap, ErrTypeTagTooLong)
}

// minPayloadLen is the smallest payload that can satisfy tag: every known
// argument occupies at least one word. Unknown characters are not counted.
func minPayloadLen(tag string) int {
	n := 0
	for i := 1; i < len(tag); i++ {
		switch tag[i] {
		case TagInt32, TagFloat32, TagString:
			n += Align
		}
	}
	return n
}
