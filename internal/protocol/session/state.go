package session

import (
	"net/netip"
	"sync/atomic"
)

// State is a handshake lifecycle position.
type State int32

const (
	StateIdle State = iota
	StateAnnouncing
	StateAwaitingAck
	StateRegistered
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAnnouncing:
		return "announcing"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateRegistered:
		return "registered"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can happen.
func (s State) Terminal() bool {
	return s == StateRegistered || s == StateFailed
}

// Peer holds the controller address. It is published once by the handshake
// and read by anyone afterward.
type Peer struct {
	addr atomic.Pointer[netip.AddrPort]
}

// Load returns the controller address and whether it has been published.
func (p *Peer) Load() (netip.AddrPort, bool) {
	ap := p.addr.Load()
	if ap == nil {
		return netip.AddrPort{}, false
	}
	return *ap, true
}

func (p *Peer) publish(ap netip.AddrPort) bool {
	return p.addr.CompareAndSwap(nil, &ap)
}
