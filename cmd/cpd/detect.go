package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/projectdiscovery/gologger"
	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/internal/cache"
	"github.com/panbanda/cpd/internal/output"
	"github.com/panbanda/cpd/internal/progress"
	"github.com/panbanda/cpd/internal/scanner"
	"github.com/panbanda/cpd/pkg/analyzer"
	"github.com/panbanda/cpd/pkg/analyzer/duplicates"
	"github.com/panbanda/cpd/pkg/config"
	"github.com/panbanda/cpd/pkg/source"
)

func detectCmd() *cli.Command {
	return &cli.Command{
		Name:      "detect",
		Aliases:   []string{"dup"},
		Usage:     "Detect duplicated code",
		ArgsUsage: "[path...]",
		Flags: append(tuningFlags(),
			&cli.StringFlag{
				Name:  "ref",
				Usage: "Analyze a git revision of the repository containing the first path instead of the working tree",
			},
		),
		Action: runDetectCmd,
	}
}

// tuningFlags override the duplicates section of the config.
func tuningFlags() []cli.Flag {
	return []cli.Flag{
		&cli.IntFlag{
			Name:  "block-size",
			Usage: "Lines (or statements) per hashed block (default from config, else 10)",
		},
		&cli.IntFlag{
			Name:  "min-tokens",
			Usage: "Shortest clone reported, in tokens (default from config, else 100)",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: "Parallel workers (default 2x CPUs)",
		},
	}
}

// applyDetectFlags overrides the configured detection settings with the
// flags that were set.
func applyDetectFlags(c *cli.Context, cfg *config.Config) error {
	if c.IsSet("block-size") {
		cfg.Duplicates.BlockSize = c.Int("block-size")
	}
	if c.IsSet("min-tokens") {
		cfg.Duplicates.MinTokens = c.Int("min-tokens")
	}
	if c.IsSet("workers") {
		cfg.Duplicates.Workers = c.Int("workers")
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}
	return nil
}

// collectFiles lists the files to analyze and the source to read them from.
func collectFiles(c *cli.Context, scan *scanner.Scanner) ([]string, source.ContentSource, error) {
	paths := getPaths(c)

	if ref := c.String("ref"); ref != "" {
		tree, err := source.OpenRevision(paths[0], ref)
		if err != nil {
			return nil, nil, err
		}
		all, err := tree.Paths()
		if err != nil {
			return nil, nil, err
		}
		return scan.FilterPaths(all), tree, nil
	}

	for i, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid path %s: %w", p, err)
		}
		paths[i] = abs
	}
	files, err := scan.Scan(paths)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to scan: %w", err)
	}
	return files, source.NewFilesystem(), nil
}

// detectRun holds what every analysis of one invocation shares.
type detectRun struct {
	cfg      *config.Config
	scanner  *scanner.Scanner
	analyzer *duplicates.Analyzer
}

func newDetectRun(c *cli.Context) (*detectRun, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	if err := applyDetectFlags(c, cfg); err != nil {
		return nil, err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}

	blockCache, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled)
	if err != nil {
		gologger.Warning().Msgf("block cache disabled: %v", err)
	}

	dup, err := duplicates.New(
		duplicates.WithConfig(cfg.Duplicates),
		duplicates.WithRegistry(reg),
		duplicates.WithCache(blockCache),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errConfig, err)
	}
	return &detectRun{cfg: cfg, scanner: scanner.NewScanner(cfg, reg), analyzer: dup}, nil
}

func runDetectCmd(c *cli.Context) error {
	run, err := newDetectRun(c)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	return run.detect(ctx, c)
}

// detect collects files, analyzes them and writes the report.
func (r *detectRun) detect(ctx context.Context, c *cli.Context) error {
	files, src, err := collectFiles(c, r.scanner)
	if err != nil {
		return err
	}

	formatter, err := newFormatter(c, r.cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	// structured formats still get an (empty) analysis
	if len(files) == 0 && formatter.Format() == output.FormatText {
		formatter.Info("No source files found")
		return nil
	}
	gologger.Debug().Msgf("analyzing %d files", len(files))
	for name, group := range r.scanner.GroupByProfile(files) {
		gologger.Debug().Msgf("  %s: %d files", name, len(group))
	}

	var bar *progress.Tracker
	if len(files) > 0 {
		bar = newProgress("Indexing files...", len(files))
	}
	ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(progressBridge(bar)))
	result, err := r.analyzer.Analyze(ctx, files, src)
	if err != nil {
		bar.FinishError(err)
		return fmt.Errorf("analysis failed: %w", err)
	}
	bar.FinishSuccess()

	for _, f := range result.Failures {
		switch {
		case f.Skipped:
			gologger.Debug().Msgf("skipped %s: %s", f.Path, f.Error)
		case f.Line > 0:
			gologger.Warning().Msgf("%s:%d:%d: %s", f.Path, f.Line, f.Column, f.Error)
		default:
			gologger.Warning().Msgf("%s: %s", f.Path, f.Error)
		}
	}

	if len(result.Groups) == 0 && formatter.Format() == output.FormatText {
		formatter.Success("No duplicated code found in %d files", result.Summary.IndexedFiles)
		return nil
	}
	return formatter.Output(detectReport(result))
}

func phaseLabel(phase analyzer.Phase) string {
	switch phase {
	case analyzer.PhaseIndex:
		return "Indexing files..."
	case analyzer.PhaseDetect:
		return "Detecting clones..."
	default:
		return string(phase)
	}
}

// progressBridge drives bar from analyzer progress, switching its label
// when a new phase starts.
func progressBridge(bar *progress.Tracker) analyzer.ProgressFunc {
	var (
		mu      sync.Mutex
		current analyzer.Phase
	)
	return func(phase analyzer.Phase, _, total int) {
		mu.Lock()
		defer mu.Unlock()
		if phase != current {
			current = phase
			bar.Phase(phaseLabel(phase), total)
		}
		bar.Tick()
	}
}
