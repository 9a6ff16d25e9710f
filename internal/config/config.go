package config

import (
	"errors"
	"fmt"
	"net/netip"
	"os"
	"strings"
	"time"

	burnt "github.com/BurntSushi/toml"
	"github.com/danmuck/voicectl/internal/protocol/osc"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/pelletier/go-toml/v2"
)

var ErrInvalidConfig = errors.New("config: invalid")

// VoiceFile is the on-disk shape of a voice config. Durations are strings
// accepted by time.ParseDuration.
type VoiceFile struct {
	Name             string `toml:"name"`
	LocalAddr        string `toml:"local_addr,omitempty"`
	BroadcastAddr    string `toml:"broadcast_addr"`
	Port             int    `toml:"port"`
	MaxDatagram      int    `toml:"max_datagram"`
	RegistrationPath string `toml:"registration_path"`
	AckTimeout       string `toml:"ack_timeout,omitempty"`
	AckAddress       string `toml:"ack_address,omitempty"`
	AnnounceAttempts int    `toml:"announce_attempts"`
	SyncInterval     string `toml:"sync_interval"`
	PollInterval     string `toml:"poll_interval"`
	AdminAddr        string `toml:"admin_addr,omitempty"`
	SplitLow         int    `toml:"split_low"`
	SplitHigh        int    `toml:"split_high"`
}

// LoadVoice overlays the keys present in path onto the voice defaults.
// Absent keys keep their defaults; local_addr may stay unset until
// ResolveLocalAddr.
func LoadVoice(path string) (voice.ServiceConfig, error) {
	cfg := voice.DefaultServiceConfig()

	var raw VoiceFile
	meta, err := burnt.DecodeFile(path, &raw)
	if err != nil {
		return voice.ServiceConfig{}, fmt.Errorf("load voice config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return voice.ServiceConfig{}, fmt.Errorf("%w: unknown key %q", ErrInvalidConfig, undecoded[0].String())
	}

	if meta.IsDefined("name") {
		cfg.Session.Name = strings.TrimSpace(raw.Name)
	}
	if meta.IsDefined("local_addr") {
		addr, err := ParseIPv4("local_addr", raw.LocalAddr)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg.Session.LocalAddr = addr
	}
	port := cfg.Session.Broadcast.Port()
	if meta.IsDefined("port") {
		if raw.Port <= 0 || raw.Port >= 0xffff {
			return voice.ServiceConfig{}, fmt.Errorf("%w: port %d", ErrInvalidConfig, raw.Port)
		}
		port = uint16(raw.Port)
	}
	broadcast := cfg.Session.Broadcast.Addr()
	if meta.IsDefined("broadcast_addr") {
		addr, err := ParseIPv4("broadcast_addr", raw.BroadcastAddr)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		broadcast = addr
	}
	cfg.Session.Broadcast = netip.AddrPortFrom(broadcast, port)
	// The acknowledgment port always follows the registration port.
	cfg.Session.AckPort = port + 1

	if meta.IsDefined("max_datagram") {
		cfg.Session.MaxDatagram = raw.MaxDatagram
	}
	if meta.IsDefined("registration_path") {
		cfg.Session.RegistrationPath = strings.TrimSpace(raw.RegistrationPath)
	}
	if meta.IsDefined("ack_timeout") {
		d, err := parseDuration("ack_timeout", raw.AckTimeout)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg.Session.AckTimeout = d
	}
	if meta.IsDefined("ack_address") {
		cfg.Session.AckAddress = strings.TrimSpace(raw.AckAddress)
	}
	if meta.IsDefined("announce_attempts") {
		cfg.Session.AnnounceAttempts = raw.AnnounceAttempts
	}
	if meta.IsDefined("sync_interval") {
		d, err := parseDuration("sync_interval", raw.SyncInterval)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg.SyncInterval = d
	}
	if meta.IsDefined("poll_interval") {
		d, err := parseDuration("poll_interval", raw.PollInterval)
		if err != nil {
			return voice.ServiceConfig{}, err
		}
		cfg.PollInterval = d
	}
	if meta.IsDefined("admin_addr") {
		cfg.AdminAddr = strings.TrimSpace(raw.AdminAddr)
	}
	if meta.IsDefined("split_low") {
		cfg.SplitLow = int32(raw.SplitLow)
	}
	if meta.IsDefined("split_high") {
		cfg.SplitHigh = int32(raw.SplitHigh)
	}

	if err := ValidateVoice(cfg); err != nil {
		return voice.ServiceConfig{}, err
	}
	return cfg, nil
}

// ValidateVoice checks what can be checked before the local address is
// known.
func ValidateVoice(cfg voice.ServiceConfig) error {
	if strings.TrimSpace(cfg.Session.Name) == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidConfig)
	}
	// A datagram must hold the largest message the codec accepts, or the
	// receive buffer would silently truncate it.
	if limit := osc.AddressCap + osc.TypeTagCap + osc.PayloadCap; cfg.Session.MaxDatagram < limit {
		return fmt.Errorf("%w: max_datagram %d below largest message size %d", ErrInvalidConfig, cfg.Session.MaxDatagram, limit)
	}
	if cfg.Session.AnnounceAttempts < 1 {
		return fmt.Errorf("%w: announce_attempts must be at least 1", ErrInvalidConfig)
	}
	if cfg.Session.AckTimeout < 0 {
		return fmt.Errorf("%w: ack_timeout must not be negative", ErrInvalidConfig)
	}
	if cfg.Session.AnnounceAttempts > 1 && cfg.Session.AckTimeout == 0 {
		return fmt.Errorf("%w: announce_attempts > 1 requires ack_timeout", ErrInvalidConfig)
	}
	if cfg.Session.AckAddress != "" && !strings.HasPrefix(cfg.Session.AckAddress, "/") {
		return fmt.Errorf("%w: ack_address %q must start with '/'", ErrInvalidConfig, cfg.Session.AckAddress)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}

// ConductorConfig drives the controller simulator.
type ConductorConfig struct {
	Listen     string  `toml:"listen"`
	Port       int     `toml:"port"`
	Instrument string  `toml:"instrument"`
	AckAddress string  `toml:"ack_address"`
	Notes      []int32 `toml:"notes"`
	Velocity   int32   `toml:"velocity"`
	Interval   string  `toml:"interval"`
	Repeat     int     `toml:"repeat"`
}

func DefaultConductorConfig() ConductorConfig {
	return ConductorConfig{
		Listen:     "0.0.0.0",
		Port:       8000,
		Instrument: voice.DefaultInstrumentName,
		AckAddress: "/registered",
		Notes:      []int32{36, 40, 43, 48, 52, 55},
		Velocity:   100,
		Interval:   "500ms",
		Repeat:     1,
	}
}

func LoadConductorConfig(path string) (ConductorConfig, error) {
	cfg := DefaultConductorConfig()
	if err := loadToml(path, &cfg); err != nil {
		return ConductorConfig{}, err
	}
	if err := ValidateConductorConfig(cfg); err != nil {
		return ConductorConfig{}, err
	}
	return cfg, nil
}

func ValidateConductorConfig(cfg ConductorConfig) error {
	if strings.TrimSpace(cfg.Instrument) == "" {
		return fmt.Errorf("%w: conductor config missing instrument", ErrInvalidConfig)
	}
	if _, err := netip.ParseAddr(strings.TrimSpace(cfg.Listen)); err != nil {
		return fmt.Errorf("%w: conductor listen %q: %w", ErrInvalidConfig, cfg.Listen, err)
	}
	if cfg.Port <= 0 || cfg.Port >= 0xffff {
		return fmt.Errorf("%w: conductor port %d", ErrInvalidConfig, cfg.Port)
	}
	if _, err := parseDuration("interval", cfg.Interval); err != nil {
		return err
	}
	if cfg.Repeat < 0 {
		return fmt.Errorf("%w: conductor repeat must not be negative", ErrInvalidConfig)
	}
	return nil
}

// NoteInterval is the parsed pause between simulated notes.
func (c ConductorConfig) NoteInterval() time.Duration {
	d, _ := time.ParseDuration(strings.TrimSpace(c.Interval))
	return d
}

func loadToml(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config load failed (%s): %w", path, err)
	}
	if err := toml.Unmarshal(data, out); err != nil {
		return fmt.Errorf("config parse failed (%s): %w", path, err)
	}
	return nil
}

// ParseIPv4 parses raw as the IPv4 address named by key. Errors wrap
// ErrInvalidConfig.
func ParseIPv4(key, raw string) (netip.Addr, error) {
	addr, err := netip.ParseAddr(strings.TrimSpace(raw))
	if err != nil {
		return netip.Addr{}, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, key, err)
	}
	if !addr.Is4() {
		return netip.Addr{}, fmt.Errorf("%w: %s %s is not IPv4", ErrInvalidConfig, key, addr)
	}
	return addr, nil
}

func parseDuration(key, raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: parse %s: %w", ErrInvalidConfig, key, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s must not be negative", ErrInvalidConfig, key)
	}
	return d, nil
}
