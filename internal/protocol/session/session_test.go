package session

import (
	"context"
	"errors"
	"net/netip"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/testutil/testlog"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/stretchr/testify/require"
)

var (
	lanBroadcast   = netip.MustParseAddr("192.168.2.255")
	instrumentHost = netip.MustParseAddr("192.168.2.10")
	controllerHost = netip.MustParseAddr("192.168.2.1")
	strayHost      = netip.MustParseAddr("192.168.2.66")
)

type rig struct {
	network  *transport.Network
	announce *transport.Memory
	unicast  *transport.Memory
	cfg      Config
}

func newRig(t *testing.T) *rig {
	t.Helper()
	network := transport.NewNetwork(lanBroadcast)
	cfg := DefaultConfig()
	cfg.Name = "pvc_aerophone"
	cfg.LocalAddr = instrumentHost
	cfg.Broadcast = netip.AddrPortFrom(lanBroadcast, DefaultPort)
	return &rig{
		network:  network,
		announce: network.Endpoint(instrumentHost),
		unicast:  network.Endpoint(instrumentHost),
		cfg:      cfg,
	}
}

// fakeController answers up to answers announces; the rest are ignored.
type fakeController struct {
	listen  *transport.Memory
	reply   *transport.Memory
	answers int
	seen    atomic.Int32
	regs    chan Registration
}

func startController(t *testing.T, r *rig, answers int) *fakeController {
	t.Helper()
	c := &fakeController{
		listen:  r.network.Endpoint(controllerHost),
		reply:   r.network.Endpoint(controllerHost),
		answers: answers,
		regs:    make(chan Registration, 8),
	}
	require.NoError(t, c.listen.Bind(DefaultPort))
	require.NoError(t, c.reply.Bind(0))
	c.listen.SetBlocking(true)

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		buf := make([]byte, DefaultMaxDatagram)
		for {
			n, _, err := c.listen.Receive(ctx, buf)
			if err != nil {
				return
			}
			msg, err := osc.Decode(buf[:n])
			if err != nil {
				continue
			}
			reg, err := ParseRegistration(msg, DefaultRegistrationPath)
			if err != nil {
				continue
			}
			c.regs <- reg
			if int(c.seen.Add(1)) > c.answers {
				continue
			}
			ack, _ := AckMessage(DefaultAckAddress, reg.Name)
			b, _ := osc.Encode(ack)
			_, _ = c.reply.Send(netip.AddrPortFrom(reg.Addr, DefaultPort+1), b)
		}
	}()
	t.Cleanup(func() {
		cancel()
		wg.Wait()
	})
	return c
}

func TestHandshakeRegistersWithFirstResponder(t *testing.T) {
	testlog.Start(t)
	r := newRig(t)
	ctrl := startController(t, r, 1)

	h, err := NewHandshake(r.cfg, r.announce, r.unicast)
	require.NoError(t, err)
	var mu sync.Mutex
	var seen []Transition
	h.OnTransition(func(tr Transition) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, tr)
	})
	require.Equal(t, StateIdle, h.State())
	_, ok := h.Controller()
	require.False(t, ok)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := h.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, ctrl.reply.LocalAddr(), peer)
	require.Equal(t, StateRegistered, h.State())
	got, ok := h.Controller()
	require.True(t, ok)
	require.Equal(t, peer, got)

	reg := <-ctrl.regs
	require.Equal(t, "pvc_aerophone", reg.Name)
	require.Equal(t, instrumentHost, reg.Addr)

	require.False(t, r.announce.Broadcast(), "broadcast must be revoked after announce")
	require.False(t, r.announce.Blocking())
	require.False(t, r.unicast.Blocking(), "steady state polls")
	require.Equal(t, uint16(DefaultPort+1), r.unicast.LocalAddr().Port())

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []Transition{
		{From: StateIdle, To: StateAnnouncing},
		{From: StateAnnouncing, To: StateAwaitingAck},
		{From: StateAwaitingAck, To: StateRegistered},
	}, seen)
}

func TestHandshakeNeverRegistersWithoutAck(t *testing.T) {
	testlog.Start(t)
	r := newRig(t)
	startController(t, r, 0)
	r.cfg.AckTimeout = 30 * time.Millisecond

	h, err := NewHandshake(r.cfg, r.announce, r.unicast)
	require.NoError(t, err)
	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, ErrAckTimeout)
	require.Equal(t, StateFailed, h.State())
	require.True(t, h.State().Terminal())
	_, ok := h.Controller()
	require.False(t, ok)
}

func TestHandshakeReannouncesWithBackoff(t *testing.T) {
	testlog.Start(t)
	r := newRig(t)
	ctrl := startController(t, r, 0)
	r.cfg.AckTimeout = 30 * time.Millisecond
	r.cfg.AnnounceAttempts = 3
	r.cfg.Backoff = BackoffConfig{InitialDelay: time.Millisecond, Multiplier: 1, Jitter: false}

	h, err := NewHandshake(r.cfg, r.announce, r.unicast)
	require.NoError(t, err)

	// Answer the second announce by hand.
	go func() {
		<-ctrl.regs
		reg := <-ctrl.regs
		ack, _ := AckMessage(DefaultAckAddress, reg.Name)
		b, _ := osc.Encode(ack)
		_, _ = ctrl.reply.Send(netip.AddrPortFrom(reg.Addr, DefaultPort+1), b)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := h.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, ctrl.reply.LocalAddr(), peer)
	require.GreaterOrEqual(t, int(ctrl.seen.Load()), 2)
}

func TestHandshakeAckAddressSkipsStrayDatagrams(t *testing.T) {
	testlog.Start(t)
	r := newRig(t)
	r.cfg.AckAddress = DefaultAckAddress
	stray := r.network.Endpoint(strayHost)
	ackPort := netip.AddrPortFrom(instrumentHost, DefaultPort+1)

	listen := r.network.Endpoint(controllerHost)
	require.NoError(t, listen.Bind(DefaultPort))
	listen.SetBlocking(true)
	reply := r.network.Endpoint(controllerHost)

	go func() {
		buf := make([]byte, 256)
		if _, _, err := listen.Receive(context.Background(), buf); err != nil {
			return
		}
		// Wait for the instrument to bind its ack port.
		for !r.unicast.LocalAddr().IsValid() {
			time.Sleep(time.Millisecond)
		}
		_, _ = stray.Send(ackPort, []byte("garbage!"))
		wrong, _ := osc.Encode(osc.MustMessage("/pvc_aerophone/play", osc.Int(36), osc.Int(100)))
		_, _ = stray.Send(ackPort, wrong)
		ack, _ := osc.Encode(osc.MustMessage(DefaultAckAddress, osc.String("pvc_aerophone")))
		_, _ = reply.Send(ackPort, ack)
	}()

	h, err := NewHandshake(r.cfg, r.announce, r.unicast)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	peer, err := h.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, controllerHost, peer.Addr())
}

func TestHandshakeTransportFailuresAreFatal(t *testing.T) {
	testlog.Start(t)

	t.Run("send", func(t *testing.T) {
		r := newRig(t)
		require.NoError(t, r.announce.Close())
		h, err := NewHandshake(r.cfg, r.announce, r.unicast)
		require.NoError(t, err)
		_, err = h.Run(context.Background())
		require.ErrorIs(t, err, transport.ErrClosed)
		require.Equal(t, StateFailed, h.State())
	})

	t.Run("bind", func(t *testing.T) {
		r := newRig(t)
		squatter := r.network.Endpoint(instrumentHost)
		require.NoError(t, squatter.Bind(DefaultPort+1))
		h, err := NewHandshake(r.cfg, r.announce, r.unicast)
		require.NoError(t, err)
		_, err = h.Run(context.Background())
		var te *transport.Error
		require.True(t, errors.As(err, &te))
		require.Equal(t, "bind", te.Op)
		require.Equal(t, StateFailed, h.State())
	})

	t.Run("cancelled", func(t *testing.T) {
		r := newRig(t)
		h, err := NewHandshake(r.cfg, r.announce, r.unicast)
		require.NoError(t, err)
		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		_, err = h.Run(ctx)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.NotErrorIs(t, err, ErrAckTimeout)
		require.Equal(t, StateFailed, h.State())
	})
}

func TestHandshakeRunsOnce(t *testing.T) {
	r := newRig(t)
	r.cfg.AckTimeout = 5 * time.Millisecond
	h, err := NewHandshake(r.cfg, r.announce, r.unicast)
	require.NoError(t, err)
	_, _ = h.Run(context.Background())
	_, err = h.Run(context.Background())
	require.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestNewHandshakeValidatesConfig(t *testing.T) {
	r := newRig(t)
	_, err := NewHandshake(r.cfg, nil, r.unicast)
	require.ErrorIs(t, err, ErrTransportRequired)

	cfg := r.cfg
	cfg.Name = " "
	_, err = NewHandshake(cfg, r.announce, r.unicast)
	require.ErrorIs(t, err, ErrNameRequired)

	cfg = r.cfg
	cfg.LocalAddr = netip.Addr{}
	_, err = NewHandshake(cfg, r.announce, r.unicast)
	require.ErrorIs(t, err, ErrLocalAddrRequired)

	cfg = r.cfg
	cfg.Name = strings.Repeat("n", osc.PayloadCap)
	_, err = NewHandshake(cfg, r.announce, r.unicast)
	require.ErrorIs(t, err, osc.ErrPayloadTooLarge)

	cfg = r.cfg
	cfg.MaxDatagram = 4
	_, err = NewHandshake(cfg, r.announce, r.unicast)
	require.ErrorIs(t, err, ErrInvalidDatagram)
}

func TestConfigWithDefaultsDerivesAckPort(t *testing.T) {
	cfg := Config{Broadcast: netip.MustParseAddrPort("10.0.0.255:9000")}.WithDefaults()
	require.Equal(t, uint16(9001), cfg.AckPort)
	require.Equal(t, DefaultRegistrationPath, cfg.RegistrationPath)
	require.Equal(t, DefaultMaxDatagram, cfg.MaxDatagram)
	require.Equal(t, 1, cfg.AnnounceAttempts)
}

func TestBackoffDelayDeterministicNoJitter(t *testing.T) {
	testlog.Start(t)
	cfg := BackoffConfig{
		InitialDelay: 250 * time.Millisecond,
		Multiplier:   2.0,
		MaxDelay:     5 * time.Second,
	}
	require.Equal(t, 250*time.Millisecond, cfg.Delay(1, nil))
	require.Equal(t, 500*time.Millisecond, cfg.Delay(2, nil))
	require.Equal(t, time.Second, cfg.Delay(3, nil))
	require.Equal(t, 5*time.Second, cfg.Delay(6, nil))

	cfg.Jitter = true
	require.Equal(t, time.Second, cfg.Delay(3, nil))
	require.Zero(t, BackoffConfig{}.Delay(3, nil))
}

func TestParseRegistration(t *testing.T) {
	msg, err := RegistrationMessage(DefaultRegistrationPath, "pvc_aerophone", "10.0.0.5")
	require.NoError(t, err)
	reg, err := ParseRegistration(msg, DefaultRegistrationPath)
	require.NoError(t, err)
	require.Equal(t, Registration{Name: "pvc_aerophone", Addr: netip.MustParseAddr("10.0.0.5")}, reg)

	_, err = ParseRegistration(msg, "/other")
	require.ErrorIs(t, err, ErrInvalidRegistration)

	bad := osc.MustMessage(DefaultRegistrationPath, osc.String("pvc_aerophone"), osc.String("not-an-ip"))
	_, err = ParseRegistration(bad, DefaultRegistrationPath)
	require.ErrorIs(t, err, ErrInvalidRegistration)

	wrongTag := osc.MustMessage(DefaultRegistrationPath, osc.String("pvc_aerophone"))
	_, err = ParseRegistration(wrongTag, DefaultRegistrationPath)
	require.ErrorIs(t, err, ErrInvalidRegistration)
}

func TestStateStrings(t *testing.T) {
	require.Equal(t, "awaiting_ack", StateAwaitingAck.String())
	require.Equal(t, "unknown", State(42).String())
	require.False(t, StateAnnouncing.Terminal())
}
