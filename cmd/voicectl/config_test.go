package main

import (
	"net/netip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/danmuck/voicectl/internal/config"
	"github.com/danmuck/voicectl/internal/testutil/testlog"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"
)

func parseFlags(t *testing.T, args ...string) (*pflag.FlagSet, options) {
	t.Helper()
	var opts options
	fs := pflag.NewFlagSet("voicectl", pflag.ContinueOnError)
	bindFlags(fs, &opts)
	require.NoError(t, fs.Parse(args))
	return fs, opts
}

func TestLoadServiceConfigFlagsOverrideFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice.toml")
	require.NoError(t, config.WriteTemplate(path, "voice", false))

	fs, opts := parseFlags(t,
		"--config", path,
		"--name", "pvc_bass",
		"--local", "127.0.0.1",
		"--broadcast", "127.255.255.255",
		"--port", "9100",
		"--ack-timeout", "3s",
	)
	cfg, err := loadServiceConfig(fs, opts)
	require.NoError(t, err)
	require.Equal(t, "pvc_bass", cfg.Session.Name)
	require.Equal(t, netip.MustParseAddr("127.0.0.1"), cfg.Session.LocalAddr)
	require.Equal(t, netip.MustParseAddrPort("127.255.255.255:9100"), cfg.Session.Broadcast)
	require.EqualValues(t, 9101, cfg.Session.AckPort)
	require.Equal(t, 3*time.Second, cfg.Session.AckTimeout)
	require.Equal(t, 7*time.Millisecond, cfg.SyncInterval)
}

func TestLoadServiceConfigWithoutFile(t *testing.T) {
	fs, opts := parseFlags(t, "--local", "192.168.2.14")
	cfg, err := loadServiceConfig(fs, opts)
	require.NoError(t, err)
	require.Equal(t, "pvc_aerophone", cfg.Session.Name)
	require.Equal(t, netip.MustParseAddrPort("192.168.2.255:8000"), cfg.Session.Broadcast)
	require.EqualValues(t, 8001, cfg.Session.AckPort)
}

func TestLoadServiceConfigRejectsBadFlags(t *testing.T) {
	for _, args := range [][]string{
		{"--local", "nope"},
		{"--broadcast", "nope"},
		{"--local", "::1"},
		{"--broadcast", "ff02::1"},
		{"--port", "70000"},
		{"--name", ""},
	} {
		fs, opts := parseFlags(t, args...)
		_, err := loadServiceConfig(fs, opts)
		require.Error(t, err, args)
	}
}

func TestLoadServiceConfigRejectsIPv6Flags(t *testing.T) {
	testlog.Start(t)
	for _, args := range [][]string{
		{"--local", "fe80::1"},
		{"--broadcast", "ff02::1"},
	} {
		fs, opts := parseFlags(t, args...)
		_, err := loadServiceConfig(fs, opts)
		require.ErrorIs(t, err, config.ErrInvalidConfig, args)
		require.ErrorContains(t, err, "not IPv4", args)
	}
}

func TestRunPrintsEffectiveConfig(t *testing.T) {
	out := filepath.Join(t.TempDir(), "out.toml")
	f, err := os.Create(out)
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = f
	err = run([]string{"--local", "192.168.2.14", "--print-config"})
	os.Stdout = stdout
	require.NoError(t, f.Close())
	require.NoError(t, err)

	cfg, err := config.LoadVoice(out)
	require.NoError(t, err)
	require.Equal(t, netip.MustParseAddr("192.168.2.14"), cfg.Session.LocalAddr)
}
