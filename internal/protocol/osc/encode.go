package osc

// Encode flattens m into a datagram of exactly m.EncodedLen() bytes.
func Encode(m *Message) ([]byte, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	w := newWriter(m.EncodedLen())
	if err := w.putString(m.Address); err != nil {
		return nil, err
	}
	if err := w.putString(m.TypeTag); err != nil {
		return nil, err
	}
	if err := w.putBytes(m.Payload); err != nil {
		return nil, err
	}
	return w.buf, nil
}

// Append encodes m onto dst and returns the extended slice.
func Append(dst []byte, m *Message) ([]byte, error) {
	b, err := Encode(m)
	if err != nil {
		return dst, err
	}
	return append(dst, b...), nil
}
