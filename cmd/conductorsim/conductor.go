package main

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/protocol/session"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/rs/zerolog/log"
	"gitlab.com/gomidi/midi/v2"
)

// conductor plays the controller side of discovery, then sends a fixed
// phrase of notes to the registered voice.
type conductor struct {
	instrument string
	ackAddress string
	ackDelay   time.Duration
	notes      []int32
	velocity   int32
	interval   time.Duration
	repeat     int
	tr         transport.Transport
}

// awaitRegistration blocks until the expected instrument announces itself.
// Other registrations on the segment are logged and ignored.
func (c *conductor) awaitRegistration(ctx context.Context) (session.Registration, error) {
	c.tr.SetBlocking(true)
	buf := make([]byte, session.DefaultMaxDatagram)
	for {
		n, from, err := c.tr.Receive(ctx, buf)
		if err != nil {
			return session.Registration{}, err
		}
		msg, err := osc.Decode(buf[:n])
		if err != nil {
			log.Warn().Err(err).Str("from", from.String()).Msg("conductorsim dropped malformed datagram")
			continue
		}
		reg, err := session.ParseRegistration(msg, session.DefaultRegistrationPath)
		if err != nil {
			log.Warn().Err(err).Str("addr", msg.Address).Msg("conductorsim ignored datagram")
			continue
		}
		if reg.Name != c.instrument {
			log.Info().Str("name", reg.Name).Stringer("addr", reg.Addr).Msg("conductorsim ignored other instrument")
			continue
		}
		log.Info().Str("name", reg.Name).Stringer("addr", reg.Addr).Msg("conductorsim registration received")
		return reg, nil
	}
}

// acknowledge replies to the registration's advertised address on the
// acknowledgment port and returns that target.
func (c *conductor) acknowledge(ctx context.Context, reg session.Registration, port uint16) (netip.AddrPort, error) {
	if !reg.Addr.Is4() {
		return netip.AddrPort{}, fmt.Errorf("conductorsim: registration addr %s is not IPv4", reg.Addr)
	}
	target := netip.AddrPortFrom(reg.Addr, port+1)

	// The voice binds its ack port only after announcing.
	if err := sleepContext(ctx, c.ackDelay); err != nil {
		return netip.AddrPort{}, err
	}
	ack, err := session.AckMessage(c.ackAddress, reg.Name)
	if err != nil {
		return netip.AddrPort{}, err
	}
	if err := c.send(target, ack); err != nil {
		return netip.AddrPort{}, err
	}
	log.Info().Str("target", target.String()).Msg("conductorsim acknowledged")
	return target, nil
}

// perform sends the phrase repeat times.
func (c *conductor) perform(ctx context.Context, target netip.AddrPort) error {
	for round := 0; round < c.repeat; round++ {
		for _, pitch := range c.notes {
			msg, err := voice.PlayMessage(c.instrument, pitch, c.velocity)
			if err != nil {
				return err
			}
			if err := c.send(target, msg); err != nil {
				return err
			}
			log.Info().
				Str("note", noteName(pitch)).
				Int32("pitch", pitch).
				Int32("velocity", c.velocity).
				Msg("conductorsim play")
			if err := sleepContext(ctx, c.interval); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *conductor) send(target netip.AddrPort, msg *osc.Message) error {
	b, err := osc.Encode(msg)
	if err != nil {
		return err
	}
	_, err = c.tr.Send(target, b)
	return err
}

func noteName(pitch int32) string {
	if pitch < 0 || pitch > 127 {
		return "?"
	}
	return midi.Note(uint8(pitch)).String()
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func isCancel(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
