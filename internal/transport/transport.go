package transport

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
)

var (
	ErrWouldBlock           = errors.New("transport: would block")
	ErrClosed               = errors.New("transport: closed")
	ErrAlreadyBound         = errors.New("transport: already bound")
	ErrNotBound             = errors.New("transport: not bound")
	ErrBroadcastDisabled    = errors.New("transport: broadcast not enabled")
	ErrBroadcastUnsupported = errors.New("transport: broadcast unsupported on this platform")
)

// Transport is the datagram collaborator used by the handshake and the
// steady-state loop. Implementations are not safe for concurrent use by
// multiple goroutines except where noted.
type Transport interface {
	// Bind attaches the transport to a local port. Port 0 picks one.
	Bind(port int) error
	// EnableBroadcast grants or revokes permission to send to broadcast
	// addresses.
	EnableBroadcast(on bool) error
	// SetBlocking switches Receive between waiting for a datagram and
	// returning ErrWouldBlock when none is pending.
	SetBlocking(on bool)
	// Send writes one datagram. An unbound transport binds an ephemeral
	// port first.
	Send(peer netip.AddrPort, b []byte) (int, error)
	// Receive reads one datagram into buf. In blocking mode it waits until
	// a datagram arrives or ctx is done.
	Receive(ctx context.Context, buf []byte) (int, netip.AddrPort, error)
	// LocalAddr is the bound address, or the zero value when unbound.
	LocalAddr() netip.AddrPort
	Close() error
}

// Error is a socket-layer failure. It matches its wrapped cause.
type Error struct {
	Op   string
	Addr netip.AddrPort
	Err  error
}

func (e *Error) Error() string {
	if e.Addr.IsValid() {
		return fmt.Sprintf("transport: %s %s: %v", e.Op, e.Addr, e.Err)
	}
	return fmt.Sprintf("transport: %s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func opErr(op string, addr netip.AddrPort, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Addr: addr, Err: err}
}

// IsWouldBlock reports whether err is the steady-state "nothing pending"
// result rather than a failure.
func IsWouldBlock(err error) bool {
	return errors.Is(err, ErrWouldBlock)
}
