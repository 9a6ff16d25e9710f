package transport

import (
	"context"
	"errors"
	"net"
	"net/netip"
	"os"
	"time"
)

var aLongTimeAgo = time.Unix(1, 0)

// UDP is a Transport over an IPv4 UDP socket.
type UDP struct {
	conn      *net.UDPConn
	blocking  bool
	broadcast bool
	closed    bool
}

// NewUDP returns an unbound, non-blocking UDP transport.
func NewUDP() *UDP {
	return &UDP{}
}

func (u *UDP) Bind(port int) error {
	if u.closed {
		return opErr("bind", netip.AddrPort{}, ErrClosed)
	}
	if u.conn != nil {
		return opErr("bind", u.LocalAddr(), ErrAlreadyBound)
	}
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4zero, Port: port})
	if err != nil {
		return opErr("bind", netip.AddrPortFrom(netip.IPv4Unspecified(), uint16(port)), err)
	}
	u.conn = conn
	// The stack enables SO_BROADCAST on UDP sockets by default; start revoked.
	if err := u.applyBroadcast(u.broadcast); err != nil && !errors.Is(err, ErrBroadcastUnsupported) {
		_ = conn.Close()
		u.conn = nil
		return opErr("bind", netip.AddrPort{}, err)
	}
	return nil
}

func (u *UDP) EnableBroadcast(on bool) error {
	if u.closed {
		return opErr("broadcast", netip.AddrPort{}, ErrClosed)
	}
	if u.conn != nil {
		if err := u.applyBroadcast(on); err != nil {
			return opErr("broadcast", u.LocalAddr(), err)
		}
	}
	u.broadcast = on
	return nil
}

func (u *UDP) applyBroadcast(on bool) error {
	rc, err := u.conn.SyscallConn()
	if err != nil {
		return err
	}
	return setBroadcast(rc, on)
}

func (u *UDP) SetBlocking(on bool) {
	u.blocking = on
}

func (u *UDP) Send(peer netip.AddrPort, b []byte) (int, error) {
	if u.closed {
		return 0, opErr("send", peer, ErrClosed)
	}
	if u.conn == nil {
		if err := u.Bind(0); err != nil {
			return 0, err
		}
	}
	n, err := u.conn.WriteToUDPAddrPort(b, peer)
	if err != nil {
		return n, opErr("send", peer, err)
	}
	return n, nil
}

func (u *UDP) Receive(ctx context.Context, buf []byte) (int, netip.AddrPort, error) {
	if u.closed {
		return 0, netip.AddrPort{}, opErr("receive", netip.AddrPort{}, ErrClosed)
	}
	if u.conn == nil {
		return 0, netip.AddrPort{}, opErr("receive", netip.AddrPort{}, ErrNotBound)
	}
	if !u.blocking {
		rc, err := u.conn.SyscallConn()
		if err != nil {
			return 0, netip.AddrPort{}, opErr("receive", u.LocalAddr(), err)
		}
		n, from, err := pollOnce(rc, u.conn, buf)
		if err != nil {
			if errors.Is(err, ErrWouldBlock) {
				return 0, netip.AddrPort{}, ErrWouldBlock
			}
			return 0, netip.AddrPort{}, opErr("receive", u.LocalAddr(), err)
		}
		return n, unmap(from), nil
	}

	if err := ctx.Err(); err != nil {
		return 0, netip.AddrPort{}, err
	}
	deadline, hasDeadline := ctx.Deadline()
	_ = u.conn.SetReadDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = u.conn.SetReadDeadline(aLongTimeAgo)
	})
	defer func() {
		stop()
		_ = u.conn.SetReadDeadline(time.Time{})
	}()

	n, from, err := u.conn.ReadFromUDPAddrPort(buf)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, netip.AddrPort{}, ctxErr
		}
		if hasDeadline && errors.Is(err, os.ErrDeadlineExceeded) {
			return 0, netip.AddrPort{}, context.DeadlineExceeded
		}
		return 0, netip.AddrPort{}, opErr("receive", u.LocalAddr(), err)
	}
	return n, unmap(from), nil
}

func (u *UDP) LocalAddr() netip.AddrPort {
	if u.conn == nil {
		return netip.AddrPort{}
	}
	addr, ok := u.conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.AddrPort{}
	}
	return unmap(addr.AddrPort())
}

func (u *UDP) Close() error {
	if u.closed {
		return nil
	}
	u.closed = true
	if u.conn == nil {
		return nil
	}
	return u.conn.Close()
}

func unmap(ap netip.AddrPort) netip.AddrPort {
	return netip.AddrPortFrom(ap.Addr().Unmap(), ap.Port())
}
