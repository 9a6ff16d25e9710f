package transport

import (
	"fmt"
	"net"
	"net/netip"
)

// OutboundAddr returns the local IPv4 address the host would use to reach
// target. No packet is sent: connecting a UDP socket only selects a route.
func OutboundAddr(target netip.AddrPort) (netip.Addr, error) {
	conn, err := net.DialUDP("udp4", nil, net.UDPAddrFromAddrPort(target))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("transport: route to %s: %w", target, err)
	}
	defer conn.Close()
	local, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return netip.Addr{}, fmt.Errorf("transport: unexpected local address %v", conn.LocalAddr())
	}
	return local.AddrPort().Addr().Unmap(), nil
}
