//go:build !unix

package transport

import (
	"errors"
	"net"
	"net/netip"
	"os"
	"syscall"
	"time"
)

const pollWindow = time.Millisecond

// The stack allows broadcast by default on these platforms; only revoking
// it is unsupported.
func setBroadcast(_ syscall.RawConn, on bool) error {
	if on {
		return nil
	}
	return ErrBroadcastUnsupported
}

func pollOnce(_ syscall.RawConn, conn *net.UDPConn, buf []byte) (int, netip.AddrPort, error) {
	_ = conn.SetReadDeadline(time.Now().Add(pollWindow))
	defer conn.SetReadDeadline(time.Time{})
	n, from, err := conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
		return 0, netip.AddrPort{}, err
	}
	return n, from, nil
}
