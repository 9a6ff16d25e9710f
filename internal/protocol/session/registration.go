package session

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/danmuck/voicectl/internal/protocol/osc"
)

const (
	registrationTag = ",ss"

	// DefaultAckAddress is what the bundled controller simulator sends back.
	DefaultAckAddress = "/registered"
)

var ErrInvalidRegistration = errors.New("session: invalid registration")

// Registration is the announce payload: who the instrument is and where it
// listens.
type Registration struct {
	Name string
	Addr netip.Addr
}

// RegistrationMessage builds the broadcast announce.
func RegistrationMessage(path, name, addr string) (*osc.Message, error) {
	return osc.NewMessage(path, osc.String(name), osc.String(addr))
}

// ParseRegistration reads an announce on the controller side.
func ParseRegistration(msg *osc.Message, path string) (Registration, error) {
	if msg.Address != path {
		return Registration{}, fmt.Errorf("%w: address %q", ErrInvalidRegistration, msg.Address)
	}
	if msg.TypeTag != registrationTag {
		return Registration{}, fmt.Errorf("%w: type tag %q", ErrInvalidRegistration, msg.TypeTag)
	}
	args, err := msg.Args()
	if err != nil {
		return Registration{}, fmt.Errorf("%w: %w", ErrInvalidRegistration, err)
	}
	name, addr := string(args[0].(osc.String)), string(args[1].(osc.String))
	if name == "" {
		return Registration{}, fmt.Errorf("%w: empty name", ErrInvalidRegistration)
	}
	ip, err := netip.ParseAddr(addr)
	if err != nil {
		return Registration{}, fmt.Errorf("%w: address %q: %w", ErrInvalidRegistration, addr, err)
	}
	return Registration{Name: name, Addr: ip}, nil
}

// AckMessage is the controller's reply to an announce.
func AckMessage(address, name string) (*osc.Message, error) {
	return osc.NewMessage(address, osc.String(name))
}
