package main

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/urfave/cli/v2"

	"github.com/panbanda/cpd/internal/testutil"
	"github.com/panbanda/cpd/pkg/analyzer/duplicates"
)

const dupBody = `func compute(values []int) int {
	total := 0
	for _, v := range values {
		if v > 10 {
			total += v * 2
		} else {
			total -= v
		}
	}
	return total
}
`

func writeFixture(t *testing.T, dir string) {
	t.Helper()
	testutil.WriteFiles(t, dir, map[string]string{
		"a.go": "package a\n\n" + dupBody,
		"b.go": "package b\n\n" + dupBody,
	})
}

func runJSON(t *testing.T, args ...string) *duplicates.Analysis {
	t.Helper()
	out := filepath.Join(t.TempDir(), "out.json")
	full := append([]string{"cpd", "--no-cache", "-f", "json", "-o", out}, args...)
	if err := newApp().Run(full); err != nil {
		t.Fatalf("cpd %v failed: %v", args, err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("failed to read output: %v", err)
	}
	var result duplicates.Analysis
	if err := json.Unmarshal(data, &result); err != nil {
		t.Fatalf("output is not an analysis: %v\n%s", err, data)
	}
	return &result
}

// TestGetPaths verifies path handling from CLI arguments.
func TestGetPaths(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "no args defaults to current dir",
			args:     []string{},
			expected: []string{"."},
		},
		{
			name:     "single path",
			args:     []string{"/foo/bar"},
			expected: []string{"/foo/bar"},
		},
		{
			name:     "multiple paths",
			args:     []string{"/foo", "/bar"},
			expected: []string{"/foo", "/bar"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := &cli.App{
				Action: func(c *cli.Context) error {
					result := getPaths(c)
					if len(result) != len(tt.expected) {
						t.Errorf("getPaths() = %v, want %v", result, tt.expected)
						return nil
					}
					for i := range result {
						if result[i] != tt.expected[i] {
							t.Errorf("getPaths()[%d] = %q, want %q", i, result[i], tt.expected[i])
						}
					}
					return nil
				},
			}
			args := append([]string{"test"}, tt.args...)
			_ = app.Run(args)
		})
	}
}

func TestExitCode(t *testing.T) {
	if got := exitCode(errors.New("boom")); got != exitError {
		t.Errorf("exitCode(plain) = %d, want %d", got, exitError)
	}
	wrapped := errors.Join(errors.New("context"), errConfig)
	if got := exitCode(wrapped); got != exitConfig {
		t.Errorf("exitCode(config) = %d, want %d", got, exitConfig)
	}
}

// TestDetectCommandE2E tests the detect command end-to-end.
func TestDetectCommandE2E(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	t.Chdir(dir)

	result := runJSON(t, "detect", "--block-size", "3", "--min-tokens", "20", dir)

	if len(result.Groups) != 1 {
		t.Fatalf("got %d groups, want 1", len(result.Groups))
	}
	g := result.Groups[0]
	if want := filepath.Join(dir, "a.go"); g.Origin.ResourceID != want {
		t.Errorf("origin = %s, want %s", g.Origin.ResourceID, want)
	}
	if g.Origin.StartLine != 3 || g.Origin.EndLine != 13 {
		t.Errorf("origin lines = %d-%d, want 3-13", g.Origin.StartLine, g.Origin.EndLine)
	}
	if result.BlockSize != 3 || result.MinTokens != 20 {
		t.Errorf("settings = %d/%d, want 3/20", result.BlockSize, result.MinTokens)
	}
	if result.Summary.DuplicatedLines != 22 {
		t.Errorf("duplicated lines = %d, want 22", result.Summary.DuplicatedLines)
	}
}

func TestDetectCommand_TextReport(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	t.Chdir(dir)
	out := filepath.Join(t.TempDir(), "report.txt")

	args := []string{"cpd", "--no-cache", "-o", out, "detect", "--block-size", "3", "--min-tokens", "20", dir}
	if err := newApp().Run(args); err != nil {
		t.Fatalf("detect failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	text := string(data)
	for _, want := range []string{"Copy/Paste Detection", "Summary", "Duplicated Code", "Hotspots", "a.go:3-13"} {
		if !strings.Contains(text, want) {
			t.Errorf("report missing %q:\n%s", want, text)
		}
	}
}

func TestDetectCommand_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	t.Chdir(dir)

	cfg := "[duplicates]\nblock_size = 3\nmin_tokens = 1000\n"
	if err := os.WriteFile(filepath.Join(dir, "cpd.toml"), []byte(cfg), 0644); err != nil {
		t.Fatal(err)
	}

	if result := runJSON(t, "detect", dir); len(result.Groups) != 0 {
		t.Errorf("min_tokens from config not applied: %d groups", len(result.Groups))
	}
	// flags win over the config file
	if result := runJSON(t, "detect", "--min-tokens", "20", dir); len(result.Groups) != 1 {
		t.Errorf("got %d groups, want 1", len(result.Groups))
	}
}

func TestDetectCommand_Ref(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	t.Chdir(dir)

	testutil.CommitAll(t, testutil.InitRepo(t, dir), "initial")

	// the working tree no longer has the clone
	if err := os.WriteFile(filepath.Join(dir, "b.go"), []byte("package b\n"), 0644); err != nil {
		t.Fatal(err)
	}

	result := runJSON(t, "detect", "--block-size", "3", "--min-tokens", "20", dir)
	if len(result.Groups) != 0 {
		t.Errorf("working tree: got %d groups, want 0", len(result.Groups))
	}

	result = runJSON(t, "detect", "--block-size", "3", "--min-tokens", "20", "--ref", "HEAD", dir)
	if len(result.Groups) != 1 {
		t.Fatalf("HEAD: got %d groups, want 1", len(result.Groups))
	}
	if got := result.Groups[0].Parts[0].ResourceID; got != "b.go" {
		t.Errorf("part resource = %q, want b.go", got)
	}
}

func TestDetectCommand_InvalidSettings(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	tests := []struct {
		name string
		args []string
	}{
		{"zero block size", []string{"cpd", "detect", "--block-size", "0", dir}},
		{"unknown format", []string{"cpd", "-f", "yaml", "detect", dir}},
		{"missing config file", []string{"cpd", "-c", filepath.Join(dir, "nope.toml"), "detect", dir}},
		{"watch with two paths", []string{"cpd", "watch", dir, dir}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newApp().Run(tt.args)
			if !errors.Is(err, errConfig) {
				t.Errorf("err = %v, want a configuration error", err)
			}
		})
	}
}

func TestDetectCommand_NoFiles(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	out := filepath.Join(t.TempDir(), "report.txt")

	if err := newApp().Run([]string{"cpd", "--no-cache", "-o", out, "detect", dir}); err != nil {
		t.Fatalf("empty directory should not fail: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != "No source files found" {
		t.Errorf("text output = %q, want the no-files notice", got)
	}

	result := runJSON(t, "detect", dir)
	if len(result.Groups) != 0 || result.Summary.TotalFiles != 0 {
		t.Errorf("json output = %+v, want an empty analysis", result)
	}
}

func TestLanguagesCommand(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	out := filepath.Join(dir, "langs.json")

	if err := newApp().Run([]string{"cpd", "-f", "json", "-o", out, "languages"}); err != nil {
		t.Fatalf("languages failed: %v", err)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var infos []languageInfo
	if err := json.Unmarshal(data, &infos); err != nil {
		t.Fatalf("bad output: %v", err)
	}

	modes := make(map[string]string)
	for _, info := range infos {
		modes[info.Name] = info.Mode
	}
	if modes["generic"] != "lines" {
		t.Errorf("generic mode = %q, want lines", modes["generic"])
	}
	if modes["java"] != "statements" {
		t.Errorf("java mode = %q, want statements", modes["java"])
	}
}

func TestCacheCommand(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	t.Chdir(dir)

	cfg := "[cache]\nenabled = true\ndir = \"cache\"\n"
	testutil.WriteFile(t, filepath.Join(dir, "cpd.toml"), cfg)

	if err := newApp().Run([]string{"cpd", "-f", "json", "-o", filepath.Join(dir, "out.json"), "detect", dir}); err != nil {
		t.Fatalf("detect failed: %v", err)
	}

	stats := filepath.Join(dir, "stats.json")
	if err := newApp().Run([]string{"cpd", "-f", "json", "-o", stats, "cache", "stats"}); err != nil {
		t.Fatalf("cache stats failed: %v", err)
	}
	data, err := os.ReadFile(stats)
	if err != nil {
		t.Fatal(err)
	}
	var got struct {
		Entries int `json:"entries"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("bad output: %v\n%s", err, data)
	}
	if got.Entries != 2 {
		t.Errorf("entries = %d, want 2", got.Entries)
	}

	if err := newApp().Run([]string{"cpd", "cache", "clear"}); err != nil {
		t.Fatalf("cache clear failed: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "cache"))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("cache still has %d entries", len(entries))
	}
}

// TestVersionVariable verifies version variables are defined.
func TestVersionVariable(t *testing.T) {
	if version == "" {
		t.Error("version variable should have a default value")
	}
}
