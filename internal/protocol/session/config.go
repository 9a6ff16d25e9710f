package session

import (
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/danmuck/voicectl/internal/protocol/osc"
)

var (
	ErrNameRequired      = errors.New("session: instrument name required")
	ErrLocalAddrRequired = errors.New("session: local address required")
	ErrInvalidBroadcast  = errors.New("session: invalid broadcast address")
	ErrInvalidDatagram   = errors.New("session: invalid max datagram size")
)

const (
	DefaultRegistrationPath = "/NoticeMe"
	DefaultPort             = 8000
	DefaultMaxDatagram      = 256
)

// BackoffConfig defines re-announce backoff behavior.
type BackoffConfig struct {
	InitialDelay time.Duration
	Multiplier   float64
	MaxDelay     time.Duration
	Jitter       bool
}

// Config defines one handshake run.
type Config struct {
	Name             string
	LocalAddr        netip.Addr
	Broadcast        netip.AddrPort
	AckPort          uint16
	RegistrationPath string
	MaxDatagram      int

	// AckTimeout bounds the acknowledgment wait; zero waits forever.
	AckTimeout time.Duration
	// AckAddress, when set, is the address an acknowledgment must decode
	// to. Other datagrams are skipped. Empty accepts the first datagram.
	AckAddress string
	// AnnounceAttempts above 1 re-announces after an ack timeout.
	AnnounceAttempts int
	Backoff          BackoffConfig
}

// DefaultConfig returns the minimal handshake: first datagram wins, no
// timeout, no retry.
func DefaultConfig() Config {
	return Config{
		Broadcast:        netip.AddrPortFrom(netip.MustParseAddr("192.168.2.255"), DefaultPort),
		AckPort:          DefaultPort + 1,
		RegistrationPath: DefaultRegistrationPath,
		MaxDatagram:      DefaultMaxDatagram,
		AnnounceAttempts: 1,
		Backoff: BackoffConfig{
			InitialDelay: 250 * time.Millisecond,
			Multiplier:   2.0,
			MaxDelay:     5 * time.Second,
			Jitter:       true,
		},
	}
}

// WithDefaults fills zero-valued fields from DefaultConfig.
func (c Config) WithDefaults() Config {
	def := DefaultConfig()
	if !c.Broadcast.IsValid() {
		c.Broadcast = def.Broadcast
	}
	if c.AckPort == 0 {
		c.AckPort = c.Broadcast.Port() + 1
	}
	if strings.TrimSpace(c.RegistrationPath) == "" {
		c.RegistrationPath = def.RegistrationPath
	}
	if c.MaxDatagram <= 0 {
		c.MaxDatagram = def.MaxDatagram
	}
	if c.AnnounceAttempts <= 0 {
		c.AnnounceAttempts = 1
	}
	if c.Backoff.InitialDelay <= 0 {
		c.Backoff = def.Backoff
	}
	return c
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return ErrNameRequired
	}
	if !c.LocalAddr.IsValid() {
		return ErrLocalAddrRequired
	}
	if !c.Broadcast.IsValid() || c.Broadcast.Port() == 0 {
		return fmt.Errorf("%w: %s", ErrInvalidBroadcast, c.Broadcast)
	}
	if c.MaxDatagram < osc.MinMessageLen {
		return fmt.Errorf("%w: %d", ErrInvalidDatagram, c.MaxDatagram)
	}
	// The announce must be buildable; bounds are configuration, not runtime.
	if _, err := RegistrationMessage(c.RegistrationPath, c.Name, c.LocalAddr.String()); err != nil {
		return fmt.Errorf("session: registration message: %w", err)
	}
	return nil
}
