package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/internal/cache"
	"github.com/panbanda/cpd/internal/output"
	"github.com/panbanda/cpd/pkg/config"
)

func cacheCmd() *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Inspect or clear the block cache",
		Subcommands: []*cli.Command{
			{
				Name:   "stats",
				Usage:  "Show cache size and entry ages",
				Action: runCacheStatsCmd,
			},
			{
				Name:   "clear",
				Usage:  "Remove every cached entry",
				Action: runCacheClearCmd,
			},
		},
	}
}

// openCache opens the configured cache even when --no-cache is set, since
// these commands act on the cache itself.
func openCache(c *cli.Context) (*config.Config, *cache.Cache, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, nil, err
	}
	bc, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, true)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open cache %s: %w", cfg.Cache.Dir, err)
	}
	return cfg, bc, nil
}

func runCacheStatsCmd(c *cli.Context) error {
	cfg, bc, err := openCache(c)
	if err != nil {
		return err
	}
	stats, err := bc.GetStats()
	if err != nil {
		return fmt.Errorf("failed to read cache: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	rows := [][]string{
		{"Directory", cfg.Cache.Dir},
		{"Entries", strconv.Itoa(stats.Entries)},
		{"Size", fmt.Sprintf("%d bytes", stats.TotalSize)},
		{"Oldest", stats.OldestAge.Round(time.Second).String()},
		{"Newest", stats.NewestAge.Round(time.Second).String()},
	}
	return formatter.Output(output.NewTable("Block Cache", []string{"Field", "Value"}, rows, nil, stats))
}

func runCacheClearCmd(c *cli.Context) error {
	cfg, bc, err := openCache(c)
	if err != nil {
		return err
	}
	if err := bc.Clear(); err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()
	formatter.Success("Cleared %s", cfg.Cache.Dir)
	return nil
}
