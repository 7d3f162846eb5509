package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/internal/output"
	"github.com/panbanda/cpd/internal/progress"
	"github.com/panbanda/cpd/pkg/config"
)

// errConfig marks errors that exit with exitConfig.
var errConfig = errors.New("configuration error")

// getPaths returns paths from positional args, defaulting to ["."]
func getPaths(c *cli.Context) []string {
	if c.Args().Len() > 0 {
		return c.Args().Slice()
	}
	return []string{"."}
}

// loadConfig reads --config, or the first config file found, and applies
// the global flags on top of it.
func loadConfig(c *cli.Context) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if path := c.String("config"); path != "" {
		cfg, err = config.Load(path)
	} else {
		cfg, err = config.LoadOrDefault()
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	if c.Bool("no-cache") {
		cfg.Cache.Enabled = false
	}
	if format := c.String("format"); format != "" {
		cfg.Output.Format = format
	}
	if c.Bool("verbose") {
		cfg.Output.Verbose = true
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return cfg, nil
}

func newFormatter(c *cli.Context, cfg *config.Config) (*output.Formatter, error) {
	path := c.String("output")
	colored := cfg.Output.Color && path == "" && !color.NoColor
	return output.NewFormatter(output.ParseFormat(cfg.Output.Format), path, colored)
}

// newProgress returns a progress bar on stderr, or nil when stderr is not
// a terminal.
func newProgress(label string, total int) *progress.Tracker {
	fd := os.Stderr.Fd()
	if !isatty.IsTerminal(fd) && !isatty.IsCygwinTerminal(fd) {
		return nil
	}
	return progress.NewTracker(label, total)
}
