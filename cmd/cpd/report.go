package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/panbanda/cpd/internal/output"
	"github.com/panbanda/cpd/pkg/analyzer/duplicates"
)

// severityLevel buckets a hotspot severity for coloring.
func severityLevel(severity float64) string {
	switch {
	case severity >= 8:
		return "high"
	case severity >= 4:
		return "medium"
	default:
		return "low"
	}
}

// detectReport lays out an analysis for text and markdown. JSON and TOON
// serialize the analysis itself.
func detectReport(result *duplicates.Analysis) *output.Report {
	s := result.Summary

	var rows [][]string
	for i, g := range result.Groups {
		for j, p := range g.All() {
			group, tokens := "", ""
			if j == 0 {
				group = strconv.Itoa(i + 1)
				tokens = strconv.Itoa(g.LengthInUnits)
			}
			rows = append(rows, []string{group, tokens, strconv.Itoa(p.Lines()), p.String()})
		}
	}
	clones := output.NewTable(
		"Duplicated Code",
		[]string{"Group", "Tokens", "Lines", "Location"},
		rows,
		[]string{
			fmt.Sprintf("Groups: %d", s.TotalGroups),
			fmt.Sprintf("P50: %.0f", s.P50Tokens),
			fmt.Sprintf("Lines: %d", s.DuplicatedLines),
			fmt.Sprintf("Duplication: %.1f%% of %d lines in %d files", s.DuplicationRatio*100, s.TotalLines, s.IndexedFiles),
		},
		nil,
	)

	var hotRows [][]string
	for _, h := range s.Hotspots {
		sev := fmt.Sprintf("%.2f", h.Severity)
		hotRows = append(hotRows, []string{
			h.File,
			strconv.Itoa(h.DuplicateLines),
			strconv.Itoa(h.CloneGroupCount),
			output.SeverityColor(severityLevel(h.Severity), sev),
		})
	}
	hotspots := output.NewTable(
		"Hotspots",
		[]string{"File", "Duplicate Lines", "Groups", "Severity"},
		hotRows,
		nil,
		nil,
	)

	overview := &output.Section{
		Title: "Summary",
		Content: strings.Join([]string{
			fmt.Sprintf("Files:     %d indexed, %d from cache, %d skipped, %d failed",
				s.IndexedFiles, s.CachedFiles, s.SkippedFiles, s.FailedFiles),
			fmt.Sprintf("Blocks:    %d (block size %d)", s.TotalBlocks, result.BlockSize),
			fmt.Sprintf("Clones:    %d groups, %d fragments, largest group %d, min %d tokens",
				s.TotalGroups, s.TotalFragments, s.LargestGroupSize, result.MinTokens),
		}, "\n"),
	}

	report := &output.Report{
		Title:    "Copy/Paste Detection",
		Sections: []output.Renderable{overview, clones, hotspots},
		Data:     result,
	}

	if len(result.Failures) > 0 {
		var failRows [][]string
		for _, f := range result.Failures {
			status := "failed"
			if f.Skipped {
				status = "skipped"
			}
			failRows = append(failRows, []string{f.Path, status, f.Error})
		}
		report.Sections = append(report.Sections, output.NewTable(
			"Files Not Analyzed",
			[]string{"File", "Status", "Reason"},
			failRows,
			nil,
			nil,
		))
	}
	return report
}
