//go:build unix

package transport

import (
	"errors"
	"net"
	"net/netip"
	"syscall"

	"golang.org/x/sys/unix"
)

func setBroadcast(rc syscall.RawConn, on bool) error {
	v := 0
	if on {
		v = 1
	}
	var sockErr error
	if err := rc.Control(func(fd uintptr) {
		sockErr = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_BROADCAST, v)
	}); err != nil {
		return err
	}
	return sockErr
}

// pollOnce performs a single MSG_DONTWAIT receive. A read deadline would
// not work here: the runtime refuses to read once a deadline has passed.
func pollOnce(rc syscall.RawConn, _ *net.UDPConn, buf []byte) (int, netip.AddrPort, error) {
	var (
		n     int
		from  unix.Sockaddr
		rcErr error
	)
	err := rc.Read(func(fd uintptr) bool {
		n, from, rcErr = unix.Recvfrom(int(fd), buf, unix.MSG_DONTWAIT)
		return true
	})
	if err != nil {
		return 0, netip.AddrPort{}, err
	}
	if rcErr != nil {
		if errors.Is(rcErr, unix.EAGAIN) || errors.Is(rcErr, unix.EWOULDBLOCK) || errors.Is(rcErr, unix.EINTR) {
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
		return 0, netip.AddrPort{}, rcErr
	}
	return n, sockaddrToAddrPort(from), nil
}

func sockaddrToAddrPort(sa unix.Sockaddr) netip.AddrPort {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return netip.AddrPortFrom(netip.AddrFrom4(a.Addr), uint16(a.Port))
	case *unix.SockaddrInet6:
		return netip.AddrPortFrom(netip.AddrFrom16(a.Addr), uint16(a.Port))
	default:
		return netip.AddrPort{}
	}
}
