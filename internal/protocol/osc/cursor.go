package osc

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// writer fills a fixed-size buffer. Every put checks the remaining space
// before touching the buffer.
type writer struct {
	buf []byte
	off int
}

func newWriter(size int) *writer {
	return &writer{buf: make([]byte, size)}
}

func (w *writer) remaining() int {
	return len(w.buf) - w.off
}

func (w *writer) putString(s string) error {
	n := Size(s)
	if n > w.remaining() {
		return fmt.Errorf("%w: string needs %d bytes, %d left", ErrPayloadTooLarge, n, w.remaining())
	}
	copy(w.buf[w.off:], s)
	// make() zeroed the terminator and padding.
	w.off += n
	return nil
}

func (w *writer) putUint32(v uint32) error {
	if w.remaining() < 4 {
		return fmt.Errorf("%w: word needs 4 bytes, %d left", ErrPayloadTooLarge, w.remaining())
	}
	binary.BigEndian.PutUint32(w.buf[w.off:w.off+4], v)
	w.off += 4
	return nil
}

func (w *writer) putBytes(b []byte) error {
	if len(b) > w.remaining() {
		return fmt.Errorf("%w: %d bytes, %d left", ErrPayloadTooLarge, len(b), w.remaining())
	}
	w.off += copy(w.buf[w.off:], b)
	return nil
}

// reader walks a received buffer. It never indexes past len(buf).
type reader struct {
	buf []byte
	off int
}

func (r *reader) remaining() int {
	return len(r.buf) - r.off
}

// string reads a NUL-terminated run and skips its padding.
func (r *reader) string(field string) (string, error) {
	end := bytes.IndexByte(r.buf[r.off:], 0)
	if end < 0 {
		return "", formatErr(r.off, nil, "%s has no terminator within %d bytes", field, r.remaining())
	}
	s := string(r.buf[r.off : r.off+end])
	n := Size(s)
	if n > r.remaining() {
		return "", formatErr(r.off, nil, "%s padding needs %d bytes, %d left", field, n, r.remaining())
	}
	r.off += n
	return s, nil
}

func (r *reader) uint32(field string) (uint32, error) {
	if r.remaining() < 4 {
		return 0, formatErr(r.off, nil, "%s needs 4 bytes, %d left", field, r.remaining())
	}
	v := binary.BigEndian.Uint32(r.buf[r.off : r.off+4])
	r.off += 4
	return v, nil
}

func (r *reader) rest() []byte {
	out := make([]byte, r.remaining())
	copy(out, r.buf[r.off:])
	r.off = len(r.buf)
	return out
}
