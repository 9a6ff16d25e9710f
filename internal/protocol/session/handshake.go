package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/netip"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrTransportRequired = errors.New("session: announce and unicast transports required")
	ErrAlreadyStarted    = errors.New("session: handshake already started")
	ErrAckTimeout        = errors.New("session: acknowledgment timeout")
)

// Transition is reported to observers after every state change.
type Transition struct {
	From State
	To   State
	Err  error
}

// Handshake discovers a controller by broadcast and binds the unicast
// transport for steady-state traffic. It runs once.
type Handshake struct {
	cfg      Config
	announce transport.Transport
	unicast  transport.Transport
	rng      *rand.Rand

	state     atomic.Int32
	started   atomic.Bool
	peer      Peer
	obsMu     sync.Mutex
	observers []func(Transition)
}

func NewHandshake(cfg Config, announce, unicast transport.Transport) (*Handshake, error) {
	if announce == nil || unicast == nil {
		return nil, ErrTransportRequired
	}
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Handshake{
		cfg:      cfg,
		announce: announce,
		unicast:  unicast,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}, nil
}

// OnTransition registers an observer. Observers run synchronously on the
// handshake goroutine.
func (h *Handshake) OnTransition(fn func(Transition)) {
	h.obsMu.Lock()
	defer h.obsMu.Unlock()
	h.observers = append(h.observers, fn)
}

func (h *Handshake) State() State {
	return State(h.state.Load())
}

// Controller returns the registered controller address.
func (h *Handshake) Controller() (netip.AddrPort, bool) {
	return h.peer.Load()
}

func (h *Handshake) Config() Config {
	return h.cfg
}

// Run blocks until the handshake reaches a terminal state. Any error is
// fatal for the caller: the instrument cannot operate undiscovered.
func (h *Handshake) Run(ctx context.Context) (netip.AddrPort, error) {
	if !h.started.CompareAndSwap(false, true) {
		return netip.AddrPort{}, ErrAlreadyStarted
	}

	msg, err := RegistrationMessage(h.cfg.RegistrationPath, h.cfg.Name, h.cfg.LocalAddr.String())
	if err != nil {
		return netip.AddrPort{}, h.fail(fmt.Errorf("session: build announce: %w", err))
	}
	datagram, err := osc.Encode(msg)
	if err != nil {
		return netip.AddrPort{}, h.fail(fmt.Errorf("session: encode announce: %w", err))
	}

	bound := false
	for attempt := 1; ; attempt++ {
		h.transition(StateAnnouncing, nil)
		if err := h.announceOnce(datagram); err != nil {
			return netip.AddrPort{}, h.fail(err)
		}
		log.Info().
			Str("name", h.cfg.Name).
			Str("broadcast", h.cfg.Broadcast.String()).
			Int("attempt", attempt).
			Msg("session.Handshake announced")

		h.transition(StateAwaitingAck, nil)
		if !bound {
			if err := h.unicast.Bind(int(h.cfg.AckPort)); err != nil {
				return netip.AddrPort{}, h.fail(err)
			}
			bound = true
		}
		h.unicast.SetBlocking(true)

		from, err := h.awaitAck(ctx)
		if err == nil {
			h.unicast.SetBlocking(false)
			h.peer.publish(from)
			h.transition(StateRegistered, nil)
			log.Info().Str("controller", from.String()).Msg("session.Handshake registered")
			return from, nil
		}
		if !errors.Is(err, ErrAckTimeout) || attempt >= h.cfg.AnnounceAttempts {
			return netip.AddrPort{}, h.fail(err)
		}
		delay := h.cfg.Backoff.Delay(attempt, h.rng)
		log.Warn().Int("attempt", attempt).Dur("retry_in", delay).Msg("session.Handshake ack timeout")
		if err := sleepContext(ctx, delay); err != nil {
			return netip.AddrPort{}, h.fail(err)
		}
	}
}

// announceOnce holds broadcast permission only for the duration of one send.
func (h *Handshake) announceOnce(datagram []byte) (err error) {
	h.announce.SetBlocking(true)
	if err := h.announce.EnableBroadcast(true); err != nil {
		return err
	}
	defer func() {
		revokeErr := h.announce.EnableBroadcast(false)
		h.announce.SetBlocking(false)
		if revokeErr != nil && !errors.Is(revokeErr, transport.ErrBroadcastUnsupported) && err == nil {
			err = revokeErr
		}
	}()
	if _, err := h.announce.Send(h.cfg.Broadcast, datagram); err != nil {
		return err
	}
	return nil
}

func (h *Handshake) awaitAck(ctx context.Context) (netip.AddrPort, error) {
	waitCtx := ctx
	if h.cfg.AckTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, h.cfg.AckTimeout)
		defer cancel()
	}

	buf := make([]byte, h.cfg.MaxDatagram)
	for {
		n, from, err := h.unicast.Receive(waitCtx, buf)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
				return netip.AddrPort{}, ErrAckTimeout
			}
			return netip.AddrPort{}, err
		}
		if h.cfg.AckAddress == "" {
			return from, nil
		}
		msg, err := osc.Decode(buf[:n])
		if err != nil {
			log.Warn().Err(err).Str("from", from.String()).Msg("session.Handshake skipped malformed ack")
			continue
		}
		if msg.Address != h.cfg.AckAddress {
			log.Warn().Str("addr", msg.Address).Str("from", from.String()).Msg("session.Handshake skipped unexpected ack")
			continue
		}
		return from, nil
	}
}

func (h *Handshake) fail(err error) error {
	h.transition(StateFailed, err)
	log.Error().Err(err).Msg("session.Handshake failed")
	return err
}

func (h *Handshake) transition(to State, err error) {
	from := State(h.state.Swap(int32(to)))
	h.obsMu.Lock()
	observers := append([]func(Transition){}, h.observers...)
	h.obsMu.Unlock()
	for _, fn := range observers {
		fn(Transition{From: from, To: to, Err: err})
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
