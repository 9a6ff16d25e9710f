// conductorsim stands in for the instrument controller: it answers one
// voice's registration broadcast and then plays a short phrase to it.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/danmuck/voicectl/internal/config"
	"github.com/danmuck/voicectl/internal/logging"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "conductorsim: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logging.ConfigureRuntime()

	var (
		configPath string
		logLevel   string
		notes      []int
		ackDelay   time.Duration
	)
	cfg := config.DefaultConductorConfig()
	fs := pflag.NewFlagSet("conductorsim", pflag.ContinueOnError)
	fs.StringVarP(&configPath, "config", "c", "", "path to a conductor TOML config")
	fs.StringVar(&cfg.Instrument, "instrument", cfg.Instrument, "instrument name to answer")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "registration port")
	fs.StringVar(&cfg.AckAddress, "ack-address", cfg.AckAddress, "address of the acknowledgment message")
	fs.IntSliceVar(&notes, "notes", nil, "pitches to play, in order")
	fs.Int32Var(&cfg.Velocity, "velocity", cfg.Velocity, "velocity for every note")
	fs.StringVar(&cfg.Interval, "interval", cfg.Interval, "pause between notes")
	fs.IntVar(&cfg.Repeat, "repeat", cfg.Repeat, "times to play the phrase")
	fs.DurationVar(&ackDelay, "ack-delay", 50*time.Millisecond, "wait before acknowledging so the voice can bind")
	fs.StringVar(&logLevel, "log-level", "", "trace|debug|info|warn|error|off")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if logLevel != "" && !logging.SetLevel(logLevel) {
		return fmt.Errorf("unknown --log-level %q", logLevel)
	}

	if strings.TrimSpace(configPath) != "" {
		loaded, err := config.LoadConductorConfig(configPath)
		if err != nil {
			return err
		}
		// Flags the user set win over the file.
		fs.Visit(func(f *pflag.Flag) {
			switch f.Name {
			case "instrument":
				loaded.Instrument = cfg.Instrument
			case "port":
				loaded.Port = cfg.Port
			case "ack-address":
				loaded.AckAddress = cfg.AckAddress
			case "velocity":
				loaded.Velocity = cfg.Velocity
			case "interval":
				loaded.Interval = cfg.Interval
			case "repeat":
				loaded.Repeat = cfg.Repeat
			}
		})
		cfg = loaded
	}
	if fs.Changed("notes") {
		cfg.Notes = make([]int32, 0, len(notes))
		for _, n := range notes {
			cfg.Notes = append(cfg.Notes, int32(n))
		}
	}
	if err := config.ValidateConductorConfig(cfg); err != nil {
		return err
	}

	tr := transport.NewUDP()
	defer tr.Close()
	if err := tr.Bind(cfg.Port); err != nil {
		return err
	}

	c := &conductor{
		instrument: cfg.Instrument,
		ackAddress: cfg.AckAddress,
		ackDelay:   ackDelay,
		notes:      cfg.Notes,
		velocity:   cfg.Velocity,
		interval:   cfg.NoteInterval(),
		repeat:     cfg.Repeat,
		tr:         tr,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	log.Info().Int("port", cfg.Port).Str("instrument", cfg.Instrument).Msg("conductorsim listening")

	reg, err := c.awaitRegistration(ctx)
	if err != nil {
		if isCancel(err) {
			return nil
		}
		return err
	}
	target, err := c.acknowledge(ctx, reg, uint16(cfg.Port))
	if err != nil {
		return err
	}
	if err := c.perform(ctx, target); err != nil && !isCancel(err) {
		return err
	}
	return nil
}
