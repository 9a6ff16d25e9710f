package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/danmuck/voicectl/internal/config"
	"github.com/spf13/pflag"
)

func run(args []string) error {
	fs := pflag.NewFlagSet("configgen", pflag.ContinueOnError)
	kind := fs.String("kind", "voice", "config kind: "+strings.Join(config.Kinds(), "|"))
	output := fs.String("output", "", "output path for config template")
	check := fs.Bool("validate", false, "validate an existing config file")
	input := fs.String("input", "", "config path for validation (defaults to per-kind cmd path)")
	force := fs.Bool("force", false, "overwrite existing config file")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *check {
		path := *input
		if path == "" {
			p, err := config.DefaultPath(*kind)
			if err != nil {
				return err
			}
			path = p
		}
		if err := config.ValidateFile(*kind, path); err != nil {
			return err
		}
		fmt.Printf("Validated %s config at %s\n", *kind, path)
		return nil
	}

	target := *output
	if target == "" {
		p, err := config.DefaultPath(*kind)
		if err != nil {
			return err
		}
		target = p
	}
	if err := config.WriteTemplate(target, *kind, *force); err != nil {
		return err
	}
	fmt.Printf("Wrote %s config template to %s\n", *kind, target)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "configgen: %v\n", err)
		os.Exit(1)
	}
}
