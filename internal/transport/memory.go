package transport

import (
	"context"
	"fmt"
	"net/netip"
	"sync"
)

const memoryQueueDepth = 64

type datagram struct {
	from    netip.AddrPort
	payload []byte
}

// Network is an in-process datagram fabric for tests and simulations. A
// send to the broadcast address reaches every endpoint bound to the target
// port, mirroring a LAN segment.
type Network struct {
	mu        sync.Mutex
	broadcast netip.Addr
	endpoints map[netip.AddrPort]*Memory
	nextPort  uint16
}

// NewNetwork creates a fabric whose broadcast address is broadcast.
func NewNetwork(broadcast netip.Addr) *Network {
	return &Network{
		broadcast: broadcast,
		endpoints: make(map[netip.AddrPort]*Memory),
		nextPort:  49152,
	}
}

// Endpoint creates an unbound transport for host ip.
func (n *Network) Endpoint(ip netip.Addr) *Memory {
	return &Memory{
		network:  n,
		ip:       ip,
		inbox:    make(chan datagram, memoryQueueDepth),
		closedCh: make(chan struct{}),
	}
}

func (n *Network) bind(m *Memory, port int) (netip.AddrPort, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if port == 0 {
		for {
			candidate := netip.AddrPortFrom(m.ip, n.nextPort)
			n.nextPort++
			if _, taken := n.endpoints[candidate]; !taken {
				port = int(candidate.Port())
				break
			}
		}
	}
	addr := netip.AddrPortFrom(m.ip, uint16(port))
	if _, taken := n.endpoints[addr]; taken {
		return netip.AddrPort{}, fmt.Errorf("address in use: %s", addr)
	}
	n.endpoints[addr] = m
	return addr, nil
}

func (n *Network) unbind(addr netip.AddrPort) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.endpoints, addr)
}

func (n *Network) deliver(from, to netip.AddrPort, b []byte) {
	n.mu.Lock()
	targets := make([]*Memory, 0, 1)
	if to.Addr() == n.broadcast {
		for addr, ep := range n.endpoints {
			if addr.Port() == to.Port() {
				targets = append(targets, ep)
			}
		}
	} else if ep, ok := n.endpoints[to]; ok {
		targets = append(targets, ep)
	}
	n.mu.Unlock()

	for _, ep := range targets {
		payload := append([]byte(nil), b...)
		select {
		case ep.inbox <- datagram{from: from, payload: payload}:
		default:
			// Full queue drops, like a socket receive buffer.
		}
	}
}

// Memory is a Transport endpoint on a Network. Send and Receive may be used
// from different goroutines.
type Memory struct {
	network *Network
	ip      netip.Addr

	mu        sync.Mutex
	addr      netip.AddrPort
	blocking  bool
	broadcast bool
	closed    bool

	inbox     chan datagram
	closedCh  chan struct{}
	closeOnce sync.Once
}

func (m *Memory) Bind(port int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.bindLocked(port)
}

func (m *Memory) bindLocked(port int) error {
	if m.closed {
		return opErr("bind", netip.AddrPort{}, ErrClosed)
	}
	if m.addr.IsValid() {
		return opErr("bind", m.addr, ErrAlreadyBound)
	}
	addr, err := m.network.bind(m, port)
	if err != nil {
		return opErr("bind", netip.AddrPortFrom(m.ip, uint16(port)), err)
	}
	m.addr = addr
	return nil
}

func (m *Memory) EnableBroadcast(on bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return opErr("broadcast", m.addr, ErrClosed)
	}
	m.broadcast = on
	return nil
}

func (m *Memory) SetBlocking(on bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.blocking = on
}

// Blocking reports the current receive mode.
func (m *Memory) Blocking() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.blocking
}

// Broadcast reports whether broadcast sends are currently permitted.
func (m *Memory) Broadcast() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcast
}

func (m *Memory) Send(peer netip.AddrPort, b []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, opErr("send", peer, ErrClosed)
	}
	if peer.Addr() == m.network.broadcast && !m.broadcast {
		m.mu.Unlock()
		return 0, opErr("send", peer, ErrBroadcastDisabled)
	}
	if !m.addr.IsValid() {
		if err := m.bindLocked(0); err != nil {
			m.mu.Unlock()
			return 0, err
		}
	}
	from := m.addr
	m.mu.Unlock()

	m.network.deliver(from, peer, b)
	return len(b), nil
}

func (m *Memory) Receive(ctx context.Context, buf []byte) (int, netip.AddrPort, error) {
	m.mu.Lock()
	closed, bound, blocking := m.closed, m.addr.IsValid(), m.blocking
	m.mu.Unlock()
	if closed {
		return 0, netip.AddrPort{}, opErr("receive", netip.AddrPort{}, ErrClosed)
	}
	if !bound {
		return 0, netip.AddrPort{}, opErr("receive", netip.AddrPort{}, ErrNotBound)
	}

	if !blocking {
		select {
		case d := <-m.inbox:
			return copy(buf, d.payload), d.from, nil
		default:
			return 0, netip.AddrPort{}, ErrWouldBlock
		}
	}

	select {
	case d := <-m.inbox:
		return copy(buf, d.payload), d.from, nil
	case <-ctx.Done():
		return 0, netip.AddrPort{}, ctx.Err()
	case <-m.closedCh:
		return 0, netip.AddrPort{}, opErr("receive", netip.AddrPort{}, ErrClosed)
	}
}

func (m *Memory) LocalAddr() netip.AddrPort {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addr
}

func (m *Memory) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	addr := m.addr
	m.mu.Unlock()

	if addr.IsValid() {
		m.network.unbind(addr)
	}
	m.closeOnce.Do(func() { close(m.closedCh) })
	return nil
}
