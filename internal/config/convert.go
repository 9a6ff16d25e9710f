package config

import (
	"fmt"

	"github.com/danmuck/voicectl/internal/transport"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/pelletier/go-toml/v2"
)

// ResolveLocalAddr fills an unset local address with the interface the
// host routes the broadcast address through.
func ResolveLocalAddr(cfg voice.ServiceConfig) (voice.ServiceConfig, error) {
	if cfg.Session.LocalAddr.IsValid() {
		return cfg, nil
	}
	addr, err := transport.OutboundAddr(cfg.Session.Broadcast)
	if err != nil {
		return voice.ServiceConfig{}, fmt.Errorf("config: resolve local_addr: %w", err)
	}
	cfg.Session.LocalAddr = addr
	return cfg, nil
}

// VoiceFileFrom is the inverse of LoadVoice, for printing the effective
// configuration.
func VoiceFileFrom(cfg voice.ServiceConfig) VoiceFile {
	f := VoiceFile{
		Name:             cfg.Session.Name,
		BroadcastAddr:    cfg.Session.Broadcast.Addr().String(),
		Port:             int(cfg.Session.Broadcast.Port()),
		MaxDatagram:      cfg.Session.MaxDatagram,
		RegistrationPath: cfg.Session.RegistrationPath,
		AckAddress:       cfg.Session.AckAddress,
		AnnounceAttempts: cfg.Session.AnnounceAttempts,
		SyncInterval:     cfg.SyncInterval.String(),
		PollInterval:     cfg.PollInterval.String(),
		AdminAddr:        cfg.AdminAddr,
		SplitLow:         int(cfg.SplitLow),
		SplitHigh:        int(cfg.SplitHigh),
	}
	if cfg.Session.LocalAddr.IsValid() {
		f.LocalAddr = cfg.Session.LocalAddr.String()
	}
	if cfg.Session.AckTimeout > 0 {
		f.AckTimeout = cfg.Session.AckTimeout.String()
	}
	return f
}

// EncodeVoice renders cfg as a TOML document LoadVoice accepts.
func EncodeVoice(cfg voice.ServiceConfig) ([]byte, error) {
	out, err := toml.Marshal(VoiceFileFrom(cfg))
	if err != nil {
		return nil, fmt.Errorf("config: encode voice: %w", err)
	}
	return out, nil
}
