package config

import (
	"net/netip"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/testutil/testlog"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestVoiceTemplateMatchesDefaults(t *testing.T) {
	testlog.Start(t)
	path := filepath.Join(t.TempDir(), "voice.toml")
	require.NoError(t, WriteTemplate(path, "voice", false))

	cfg, err := LoadVoice(path)
	require.NoError(t, err)
	def := voice.DefaultServiceConfig()
	require.Equal(t, def, cfg)
	require.Equal(t, "pvc_aerophone", cfg.Session.Name)
	require.Equal(t, netip.MustParseAddrPort("192.168.2.255:8000"), cfg.Session.Broadcast)
	require.EqualValues(t, 8001, cfg.Session.AckPort)
	require.Equal(t, 7*time.Millisecond, cfg.SyncInterval)
	require.False(t, cfg.Session.LocalAddr.IsValid())

	require.Error(t, WriteTemplate(path, "voice", false))
	require.NoError(t, WriteTemplate(path, "voice", true))
}

func TestLoadVoiceAcceptsLargestMessageDatagram(t *testing.T) {
	testlog.Start(t)
	cfg, err := LoadVoice(writeConfig(t, `max_datagram = 208`))
	require.NoError(t, err)
	require.Equal(t, osc.AddressCap+osc.TypeTagCap+osc.PayloadCap, cfg.Session.MaxDatagram)
}

func TestKindsShareOneTable(t *testing.T) {
	testlog.Start(t)
	require.Equal(t, []string{"conductor", "voice"}, Kinds())

	dir := t.TempDir()
	for _, kind := range Kinds() {
		p, err := DefaultPath(kind)
		require.NoError(t, err)
		require.Equal(t, "config.toml", filepath.Base(p))

		path := filepath.Join(dir, kind+".toml")
		require.NoError(t, WriteTemplate(path, " "+strings.ToUpper(kind), false))
		require.NoError(t, ValidateFile(kind, path))
	}

	_, err := DefaultPath("orchestra")
	require.ErrorContains(t, err, "conductor, voice")
	require.Error(t, ValidateFile("orchestra", filepath.Join(dir, "voice.toml")))
	require.ErrorIs(t, ValidateFile("voice", filepath.Join(dir, "conductor.toml")), ErrInvalidConfig)
}

func TestParseIPv4(t *testing.T) {
	addr, err := ParseIPv4("local_addr", " 10.0.0.7 ")
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("10.0.0.7"), addr)

	for _, raw := range []string{"", "nope", "::1", "ff02::1"} {
		_, err := ParseIPv4("local_addr", raw)
		require.ErrorIs(t, err, ErrInvalidConfig, raw)
	}
}

func TestLoadVoiceOverrides(t *testing.T) {
	path := writeConfig(t, `
name = "pvc_bass"
local_addr = "10.0.0.7"
broadcast_addr = "10.0.0.255"
port = 9000
ack_timeout = "2s"
ack_address = "/registered"
announce_attempts = 3
sync_interval = "10ms"
admin_addr = "127.0.0.1:7070"
split_low = 40
split_high = 52
`)
	cfg, err := LoadVoice(path)
	require.NoError(t, err)
	require.Equal(t, "pvc_bass", cfg.Session.Name)
	require.Equal(t, netip.MustParseAddr("10.0.0.7"), cfg.Session.LocalAddr)
	require.Equal(t, netip.MustParseAddrPort("10.0.0.255:9000"), cfg.Session.Broadcast)
	require.EqualValues(t, 9001, cfg.Session.AckPort)
	require.Equal(t, 2*time.Second, cfg.Session.AckTimeout)
	require.Equal(t, "/registered", cfg.Session.AckAddress)
	require.Equal(t, 3, cfg.Session.AnnounceAttempts)
	require.Equal(t, 10*time.Millisecond, cfg.SyncInterval)
	require.Equal(t, time.Millisecond, cfg.PollInterval)
	require.Equal(t, "127.0.0.1:7070", cfg.AdminAddr)
	require.EqualValues(t, 40, cfg.SplitLow)
	require.EqualValues(t, 52, cfg.SplitHigh)
}

func TestLoadVoiceRejectsInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown key":         `colour = "blue"`,
		"bad broadcast":       `broadcast_addr = "not-an-ip"`,
		"ipv6 broadcast":      `broadcast_addr = "ff02::1"`,
		"port range":          `port = 65535`,
		"bad duration":        `sync_interval = "soon"`,
		"negative timeout":    `ack_timeout = "-1s"`,
		"retry needs timeout": `announce_attempts = 2`,
		"zero attempts":       `announce_attempts = 0`,
		"empty name":          `name = "  "`,
		"tiny datagram":       `max_datagram = 4`,
		"short datagram":      `max_datagram = 200`,
		"ipv6 local":          `local_addr = "::1"`,
		"inverted split":      "split_low = 60\nsplit_high = 48",
		"relative ack":        `ack_address = "registered"`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadVoice(writeConfig(t, body))
			require.ErrorIs(t, err, ErrInvalidConfig)
		})
	}

	_, err := LoadVoice(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}

func TestEncodeVoiceRoundTrips(t *testing.T) {
	cfg := voice.DefaultServiceConfig()
	cfg.Session.LocalAddr = netip.MustParseAddr("192.168.2.14")
	cfg.Session.AckTimeout = 1500 * time.Millisecond
	cfg.Session.AckAddress = "/registered"
	cfg.AdminAddr = "127.0.0.1:7070"

	out, err := EncodeVoice(cfg)
	require.NoError(t, err)
	got, err := LoadVoice(writeConfig(t, string(out)))
	require.NoError(t, err)
	require.Equal(t, cfg, got)
}

func TestResolveLocalAddr(t *testing.T) {
	cfg := voice.DefaultServiceConfig()
	cfg.Session.LocalAddr = netip.MustParseAddr("192.168.2.14")
	same, err := ResolveLocalAddr(cfg)
	require.NoError(t, err)
	require.Equal(t, cfg, same)

	cfg.Session.LocalAddr = netip.Addr{}
	cfg.Session.Broadcast = netip.MustParseAddrPort("127.0.0.1:8000")
	resolved, err := ResolveLocalAddr(cfg)
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("127.0.0.1"), resolved.Session.LocalAddr)
}

func TestConductorConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conductor.toml")
	require.NoError(t, WriteTemplate(path, "conductor", false))
	cfg, err := LoadConductorConfig(path)
	require.NoError(t, err)
	require.Equal(t, DefaultConductorConfig(), cfg)
	require.Equal(t, 500*time.Millisecond, cfg.NoteInterval())

	cfg, err = LoadConductorConfig(writeConfig(t, "instrument = \"pvc_bass\"\nnotes = [50]\n"))
	require.NoError(t, err)
	require.Equal(t, "pvc_bass", cfg.Instrument)
	require.Equal(t, []int32{50}, cfg.Notes)
	require.Equal(t, 8000, cfg.Port)

	_, err = LoadConductorConfig(writeConfig(t, `listen = "nowhere"`))
	require.ErrorIs(t, err, ErrInvalidConfig)
	_, err = LoadConductorConfig(writeConfig(t, `interval = "often"`))
	require.ErrorIs(t, err, ErrInvalidConfig)

	_, err = Template("orchestra")
	require.Error(t, err)
}
