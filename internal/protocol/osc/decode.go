package osc

// Decode parses one datagram. It checks structural framing only: argument
// values stay encoded in Payload until a handler reads them.
func Decode(b []byte) (*Message, error) {
	if len(b) == 0 {
		return nil, formatErr(0, nil, "empty datagram")
	}
	if len(b) < MinMessageLen {
		return nil, formatErr(len(b), nil, "datagram shorter than %d bytes", MinMessageLen)
	}

	r := &reader{buf: b}
	address, err := r.string("address")
	if err != nil {
		return nil, err
	}
	if len(address)+1 > AddressCap {
		return nil, formatErr(0, ErrAddressTooLong, "address is %d bytes", len(address)+1)
	}

	tagOffset := r.off
	tag, err := r.string("type tag")
	if err != nil {
		return nil, err
	}
	if tag == "" || tag[0] != Sentinel {
		return nil, formatErr(tagOffset, ErrMissingSentinel, "type tag %q", tag)
	}
	if len(tag)+1 > TypeTagCap {
		return nil, formatErr(tagOffset, ErrTypeTagTooLong, "type tag is %d bytes", len(tag)+1)
	}

	payloadOffset := r.off
	if r.remaining() > PayloadCap {
		return nil, formatErr(payloadOffset, ErrPayloadTooLarge, "payload is %d bytes", r.remaining())
	}
	if r.remaining()%Align != 0 {
		return nil, formatErr(payloadOffset, ErrUnaligned, "payload is %d bytes", r.remaining())
	}
	if need := minPayloadLen(tag); need > r.remaining() {
		return nil, formatErr(payloadOffset, nil, "type tag %q needs at least %d payload bytes, got %d", tag, need, r.remaining())
	}

	return &Message{Address: address, TypeTag: tag, Payload: r.rest()}, nil
}
