package main

import (
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/danmuck/voicectl/internal/config"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/spf13/pflag"
)

type options struct {
	configPath  string
	name        string
	localAddr   string
	broadcast   string
	port        int
	ackTimeout  time.Duration
	adminAddr   string
	logLevel    string
	printConfig bool
}

func bindFlags(fs *pflag.FlagSet, o *options) {
	fs.StringVarP(&o.configPath, "config", "c", "", "path to a voice TOML config")
	fs.StringVar(&o.name, "name", "", "instrument name (overrides config)")
	fs.StringVar(&o.localAddr, "local", "", "local IPv4 address advertised at registration")
	fs.StringVar(&o.broadcast, "broadcast", "", "broadcast IPv4 address for discovery")
	fs.IntVar(&o.port, "port", 0, "registration port; acknowledgments arrive on port+1")
	fs.DurationVar(&o.ackTimeout, "ack-timeout", 0, "give up waiting for the controller after this long (0 waits forever)")
	fs.StringVar(&o.adminAddr, "admin", "", "admin HTTP listen address")
	fs.StringVar(&o.logLevel, "log-level", "", "trace|debug|info|warn|error|off")
	fs.BoolVar(&o.printConfig, "print-config", false, "print the effective config and exit")
}

// loadServiceConfig layers defaults, then the config file, then any flag
// the user actually set.
func loadServiceConfig(fs *pflag.FlagSet, o options) (voice.ServiceConfig, error) {
	cfg := voice.DefaultServiceConfig()
	if strings.TrimSpace(o.configPath) != "" {
		loaded, err := config.LoadVoice(o.configPath)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg = loaded
	}

	if fs.Changed("name") {
		cfg.Session.Name = strings.TrimSpace(o.name)
	}
	if fs.Changed("local") {
		addr, err := config.ParseIPv4("--local", o.localAddr)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg.Session.LocalAddr = addr
	}
	broadcast, port := cfg.Session.Broadcast.Addr(), cfg.Session.Broadcast.Port()
	if fs.Changed("broadcast") {
		addr, err := config.ParseIPv4("--broadcast", o.broadcast)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		broadcast = addr
	}
	if fs.Changed("port") {
		if o.port <= 0 || o.port >= 0xffff {
			return voice.ServiceConfig{}, fmt.Errorf("invalid --port %d", o.port)
		}
		port = uint16(o.port)
		cfg.Session.AckPort = port + 1
	}
	cfg.Session.Broadcast = netip.AddrPortFrom(broadcast, port)
	if fs.Changed("ack-timeout") {
		cfg.Session.AckTimeout = o.ackTimeout
	}
	if fs.Changed("admin") {
		cfg.AdminAddr = strings.TrimSpace(o.adminAddr)
	}

	if err := config.ValidateVoice(cfg); err != nil {
		return voice.ServiceConfig{}, err
	}
	return config.ResolveLocalAddr(cfg)
}
