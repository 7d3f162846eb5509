package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/projectdiscovery/gologger"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/pkg/watch"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Detect duplicated code again whenever source files change",
		ArgsUsage: "[path]",
		Flags: append(tuningFlags(),
			&cli.DurationFlag{
				Name:  "debounce",
				Value: 500 * time.Millisecond,
				Usage: "Quiet period before changes trigger a run",
			},
		),
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("%w: watch takes a single directory", errConfig)
	}
	run, err := newDetectRun(c)
	if err != nil {
		return err
	}

	root, err := filepath.Abs(getPaths(c)[0])
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	watcher, err := watch.NewWatcher(root, watch.Options{
		Debounce: c.Duration("debounce"),
		SkipDir:  run.scanner.SkipDir,
		Accept:   run.scanner.Supported,
	})
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run.detect(ctx, c); err != nil {
		return err
	}

	watcher.SetCallback(func(changed []string) {
		for _, p := range changed {
			rel, err := filepath.Rel(root, p)
			if err != nil {
				rel = p
			}
			color.Yellow("File changed: %s", rel)
		}
		// a failed run is reported and the next change retries
		if err := run.detect(ctx, c); err != nil && !errors.Is(err, context.Canceled) {
			gologger.Error().Msgf("%v", err)
		}
	})

	color.Cyan("Watching for changes in %s...", root)
	color.Cyan("Press Ctrl+C to stop")

	if err := watcher.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("\nStopping watch...")
	return nil
}
