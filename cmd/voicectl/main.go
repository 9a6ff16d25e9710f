// voicectl runs one instrument voice: it announces itself on the local
// network, waits for a controller to acknowledge, then plays the notes the
// controller sends.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/danmuck/voicectl/internal/config"
	"github.com/danmuck/voicectl/internal/logging"
	"github.com/danmuck/voicectl/internal/transport"
	"github.com/danmuck/voicectl/internal/voice"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "voicectl: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	logging.ConfigureRuntime()

	var opts options
	fs := pflag.NewFlagSet("voicectl", pflag.ContinueOnError)
	bindFlags(fs, &opts)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if opts.logLevel != "" && !logging.SetLevel(opts.logLevel) {
		return fmt.Errorf("unknown --log-level %q", opts.logLevel)
	}

	cfg, err := loadServiceConfig(fs, opts)
	if err != nil {
		return err
	}
	if opts.printConfig {
		out, err := config.EncodeVoice(cfg)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(out)
		return err
	}

	announce, unicast := transport.NewUDP(), transport.NewUDP()
	defer announce.Close()
	defer unicast.Close()

	svc, err := voice.NewService(
		cfg,
		voice.NewLogBoard(voice.BoardLeft, 0),
		voice.NewLogBoard(voice.BoardRight, 1),
		announce,
		unicast,
	)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	if err := svc.Run(ctx); err != nil {
		return err
	}
	log.Info().Str("name", cfg.Session.Name).Msg("voicectl stopped")
	return nil
}
