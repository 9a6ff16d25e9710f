package voice

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/danmuck/voicectl/internal/dispatch"
	"github.com/danmuck/voicectl/internal/observability"
	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/protocol/session"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/rs/zerolog/log"
)

var (
	ErrInvalidSyncInterval = errors.New("voice: invalid sync interval")
	ErrInvalidPollInterval = errors.New("voice: invalid poll interval")
	ErrInvalidSplit        = errors.New("voice: invalid board split")
	ErrBoardRequired       = errors.New("voice: left and right boards required")
	ErrNotRegistered       = errors.New("voice: no controller registered")
)

const DefaultInstrumentName = "pvc_aerophone"

// ServiceConfig configures one voice process.
type ServiceConfig struct {
	Session      session.Config
	SplitLow     int32
	SplitHigh    int32
	SyncInterval time.Duration
	PollInterval time.Duration
	// AdminAddr enables the admin HTTP endpoint when non-empty.
	AdminAddr string
}

func DefaultServiceConfig() ServiceConfig {
	sc := session.DefaultConfig()
	sc.Name = DefaultInstrumentName
	return ServiceConfig{
		Session:      sc,
		SplitLow:     DefaultSplitLow,
		SplitHigh:    DefaultSplitHigh,
		SyncInterval: 7 * time.Millisecond,
		PollInterval: time.Millisecond,
	}
}

func (c ServiceConfig) Validate() error {
	if c.SyncInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidSyncInterval, c.SyncInterval)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("%w: %s", ErrInvalidPollInterval, c.PollInterval)
	}
	if c.SplitLow < 0 || c.SplitHigh < c.SplitLow {
		return fmt.Errorf("%w: low=%d high=%d", ErrInvalidSplit, c.SplitLow, c.SplitHigh)
	}
	// The longest inbound address must fit, or play commands could never
	// be routed.
	if _, err := PlayMessage(strings.TrimSpace(c.Session.Name), 0, 0); err != nil {
		return fmt.Errorf("voice: instrument name %q: %w", c.Session.Name, err)
	}
	return nil
}

// Service runs the voice lifecycle: reset boards, register, then poll.
type Service struct {
	cfg        ServiceConfig
	handshake  *session.Handshake
	unicast    transport.Transport
	dispatcher *dispatch.Dispatcher
	split      *Split
	started    time.Time

	ioMu sync.Mutex
	buf  []byte

	received atomic.Uint64
	dropped  atomic.Uint64
	notes    atomic.Uint64
}

// NewService wires a voice. announce carries the registration broadcast;
// unicast receives the acknowledgment and all steady-state traffic.
func NewService(cfg ServiceConfig, left, right Actuator, announce, unicast transport.Transport) (*Service, error) {
	if left == nil || right == nil {
		return nil, ErrBoardRequired
	}
	cfg.Session = cfg.Session.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	hs, err := session.NewHandshake(cfg.Session, announce, unicast)
	if err != nil {
		return nil, err
	}
	cfg.Session = hs.Config()

	s := &Service{
		cfg:        cfg,
		handshake:  hs,
		unicast:    unicast,
		dispatcher: dispatch.New(cfg.Session.Name),
		split:      &Split{Low: cfg.SplitLow, High: cfg.SplitHigh, Left: left, Right: right},
		started:    time.Now(),
		buf:        make([]byte, cfg.Session.MaxDatagram),
	}
	if err := s.dispatcher.Register(playRoute(s.play)); err != nil {
		return nil, err
	}

	name := cfg.Session.Name
	observability.SetHandshakeState(name, int(session.StateIdle))
	hs.OnTransition(func(tr session.Transition) {
		observability.SetHandshakeState(name, int(tr.To))
		if tr.To == session.StateAnnouncing {
			observability.RecordAnnounce(name)
		}
	})
	return s, nil
}

// Run blocks until ctx is done. A handshake failure is returned and is
// fatal: the voice cannot operate without a controller.
func (s *Service) Run(ctx context.Context) error {
	s.split.Reset()

	// The admin server lives only as long as Run, whichever way Run ends.
	runCtx, cancel := context.WithCancel(ctx)
	adminDone, err := s.startAdmin(runCtx)
	if err != nil {
		cancel()
		return err
	}
	defer func() {
		cancel()
		if adminDone != nil {
			<-adminDone
		}
	}()

	log.Info().
		Str("name", s.cfg.Session.Name).
		Str("local_addr", s.cfg.Session.LocalAddr.String()).
		Msg("voice.Service connected")
	controller, err := s.handshake.Run(runCtx)
	if err != nil {
		return fmt.Errorf("voice: handshake: %w", err)
	}
	log.Info().Msgf("voice.Service controller found at %s, registered as %s", controller, s.cfg.Session.Name)

	return s.serve(runCtx)
}

func (s *Service) startAdmin(ctx context.Context) (<-chan struct{}, error) {
	if strings.TrimSpace(s.cfg.AdminAddr) == "" {
		return nil, nil
	}
	srv, err := observability.ListenAdmin(s.cfg.AdminAddr, observability.NewAdminRouter(s))
	if err != nil {
		return nil, err
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := srv.Serve(ctx); err != nil {
			log.Error().Err(err).Msg("voice.Service admin server stopped")
		}
	}()
	return done, nil
}

// serve is the steady-state loop: poll, dispatch, and sync the boards on
// schedule. It returns nil when ctx ends.
func (s *Service) serve(ctx context.Context) error {
	lastSync := time.Now()
	idle := time.NewTimer(s.cfg.PollInterval)
	defer idle.Stop()

	for {
		if ctx.Err() != nil {
			return nil
		}
		handled, err := s.PollOnce(ctx)
		if err != nil {
			return err
		}

		if now := time.Now(); now.Sub(lastSync) >= s.cfg.SyncInterval {
			s.split.Sync(now.Sub(lastSync))
			lastSync = now
		}

		if handled {
			continue
		}
		idle.Reset(s.cfg.PollInterval)
		select {
		case <-ctx.Done():
			return nil
		case <-idle.C:
		}
	}
}

// PollOnce reads at most one pending datagram and dispatches it. handled
// reports whether a datagram was read, whether or not it was accepted.
// Only a closed transport is returned as an error.
func (s *Service) PollOnce(ctx context.Context) (handled bool, err error) {
	s.ioMu.Lock()
	n, from, err := s.unicast.Receive(ctx, s.buf)
	s.ioMu.Unlock()
	if err != nil {
		if transport.IsWouldBlock(err) {
			return false, nil
		}
		if errors.Is(err, transport.ErrClosed) {
			return false, err
		}
		s.drop(observability.DropTransport)
		log.Warn().Err(err).Msg("voice.Service receive failed")
		return false, nil
	}
	s.handleDatagram(s.buf[:n], from)
	return true, nil
}

func (s *Service) handleDatagram(b []byte, from netip.AddrPort) {
	s.received.Add(1)
	observability.RecordDatagram(s.cfg.Session.Name)

	msg, err := osc.Decode(b)
	if err != nil {
		s.drop(observability.DropMalformed)
		log.Warn().Err(err).Str("from", from.String()).Int("bytes", len(b)).Msg("voice.Service dropped malformed datagram")
		return
	}
	if err := s.dispatcher.Dispatch(msg); err != nil {
		if errors.Is(err, dispatch.ErrRouting) {
			s.drop(observability.DropRouting)
			return
		}
		s.drop(observability.DropHandler)
	}
}

func (s *Service) play(pitch, velocity int32) {
	name, ok := s.split.Deliver(pitch, velocity)
	if !ok {
		return
	}
	s.notes.Add(1)
	observability.RecordNote(s.cfg.Session.Name, name)
}

func (s *Service) drop(reason string) {
	s.dropped.Add(1)
	observability.RecordDrop(s.cfg.Session.Name, reason)
}

// Send encodes msg and unicasts it to the registered controller.
func (s *Service) Send(msg *osc.Message) (int, error) {
	controller, ok := s.handshake.Controller()
	if !ok {
		return 0, ErrNotRegistered
	}
	b, err := osc.Encode(msg)
	if err != nil {
		return 0, err
	}
	s.ioMu.Lock()
	defer s.ioMu.Unlock()
	return s.unicast.Send(controller, b)
}

// Controller returns the registered controller address.
func (s *Service) Controller() (netip.AddrPort, bool) {
	return s.handshake.Controller()
}

func (s *Service) State() session.State {
	return s.handshake.State()
}

func (s *Service) Config() ServiceConfig {
	return s.cfg
}

func (s *Service) Status() observability.Status {
	st := observability.Status{
		Instrument: s.cfg.Session.Name,
		State:      s.handshake.State().String(),
		LocalAddr:  s.cfg.Session.LocalAddr.String(),
		Received:   s.received.Load(),
		Dropped:    s.dropped.Load(),
		Notes:      s.notes.Load(),
		Started:    s.started,
	}
	if controller, ok := s.handshake.Controller(); ok {
		st.Controller = controller.String()
	}
	return st
}
