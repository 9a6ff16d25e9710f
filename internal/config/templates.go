package config

import (
	"fmt"
	"os"
	"slices"
	"strings"
)

// kind ties a config flavour to its template, its checked-in location and
// the loader that accepts it.
type kind struct {
	template    string
	defaultPath string
	load        func(path string) error
}

var kinds = map[string]kind{
	"voice": {
		template:    voiceTemplate,
		defaultPath: "cmd/voicectl/config.toml",
		load: func(path string) error {
			_, err := LoadVoice(path)
			return err
		},
	},
	"conductor": {
		template:    conductorTemplate,
		defaultPath: "cmd/conductorsim/config.toml",
		load: func(path string) error {
			_, err := LoadConductorConfig(path)
			return err
		},
	},
}

func lookupKind(name string) (kind, error) {
	k, ok := kinds[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return kind{}, fmt.Errorf("unknown config kind %q (want one of %s)", name, strings.Join(Kinds(), ", "))
	}
	return k, nil
}

// Kinds lists the config kinds in sorted order.
func Kinds() []string {
	names := make([]string, 0, len(kinds))
	for name := range kinds {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

func Template(name string) (string, error) {
	k, err := lookupKind(name)
	if err != nil {
		return "", err
	}
	return k.template, nil
}

// DefaultPath is where the binary for name expects its config, relative to
// the repository root.
func DefaultPath(name string) (string, error) {
	k, err := lookupKind(name)
	if err != nil {
		return "", err
	}
	return k.defaultPath, nil
}

// ValidateFile loads path as a config of the given kind and reports the
// first problem found.
func ValidateFile(name, path string) error {
	k, err := lookupKind(name)
	if err != nil {
		return err
	}
	return k.load(path)
}

// WriteTemplate writes the commented template for name to path. An
// existing file is kept unless overwrite is set.
func WriteTemplate(path, name string, overwrite bool) error {
	k, err := lookupKind(name)
	if err != nil {
		return err
	}
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !overwrite {
		flags = os.O_WRONLY | os.O_CREATE | os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o600)
	if err != nil {
		if os.IsExist(err) {
			return fmt.Errorf("config already exists: %s", path)
		}
		return err
	}
	if _, err := f.WriteString(k.template); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

const voiceTemplate = `name = "pvc_aerophone"
# local_addr = "192.168.2.14"
broadcast_addr = "192.168.2.255"
port = 8000
max_datagram = 256
registration_path = "/NoticeMe"

# Empty ack_timeout waits for the controller forever.
ack_timeout = ""
# ack_address = "/registered"
announce_attempts = 1

sync_interval = "7ms"
poll_interval = "1ms"
split_low = 48
split_high = 60

# admin_addr = "127.0.0.1:7070"
`

const conductorTemplate = `listen = "0.0.0.0"
port = 8000
instrument = "pvc_aerophone"
ack_address = "/registered"
notes = [36, 40, 43, 48, 52, 55]
velocity = 100
interval = "500ms"
repeat = 1
`
