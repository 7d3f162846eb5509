package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/internal/output"
)

func languagesCmd() *cli.Command {
	return &cli.Command{
		Name:    "languages",
		Aliases: []string{"langs"},
		Usage:   "List language profiles and the extensions they handle",
		Action:  runLanguagesCmd,
	}
}

type languageInfo struct {
	Name       string   `json:"name"`
	Mode       string   `json:"mode"`
	Rules      int      `json:"rules"`
	Extensions []string `json:"extensions"`
}

func runLanguagesCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	reg, err := cfg.Registry()
	if err != nil {
		return fmt.Errorf("%w: %w", errConfig, err)
	}

	formatter, err := newFormatter(c, cfg)
	if err != nil {
		return err
	}
	defer formatter.Close()

	var (
		rows  [][]string
		infos []languageInfo
	)
	for _, p := range reg.Profiles() {
		mode := "lines"
		if p.Statements {
			mode = "statements"
		}
		infos = append(infos, languageInfo{
			Name:       p.Name,
			Mode:       mode,
			Rules:      len(p.Rules),
			Extensions: p.Extensions,
		})
		rows = append(rows, []string{p.Name, mode, strconv.Itoa(len(p.Rules)), strings.Join(p.Extensions, " ")})
	}

	table := output.NewTable(
		"Language Profiles",
		[]string{"Name", "Mode", "Rules", "Extensions"},
		rows,
		nil,
		infos,
	)
	return formatter.Output(table)
}
