// Package scanner collects the source files a run indexes.
package scanner

import (
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-git/v5/plumbing/format/gitignore"

	"github.com/panbanda/cpd/pkg/config"
	"github.com/panbanda/cpd/pkg/language"
)

// Scanner finds source files that have a language profile and are not
// excluded by configuration or .gitignore.
type Scanner struct {
	config   *config.Config
	registry *language.Registry
}

// NewScanner creates a new file scanner.
func NewScanner(cfg *config.Config, reg *language.Registry) *Scanner {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	return &Scanner{config: cfg, registry: reg}
}

// findGitRoot finds the root of the git repository by looking for .git directory.
// Returns empty string if not in a git repository.
func findGitRoot(start string) string {
	dir := start
	for {
		if info, err := os.Stat(filepath.Join(dir, ".git")); err == nil && info.IsDir() {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// excluder matches paths relative to base against the configured patterns
// and every .gitignore below base.
type excluder struct {
	base    string
	matcher gitignore.Matcher
}

func (s *Scanner) newExcluder(root string) *excluder {
	var patterns []gitignore.Pattern
	for _, pattern := range s.config.Exclude.Patterns {
		patterns = append(patterns, gitignore.ParsePattern(pattern, nil))
	}

	base := root
	if s.config.Exclude.Gitignore {
		if gitRoot := findGitRoot(root); gitRoot != "" {
			base = gitRoot
		}
		if gitPatterns, err := gitignore.ReadPatterns(osfs.New(base), nil); err == nil {
			patterns = append(patterns, gitPatterns...)
		}
	}

	e := &excluder{base: base}
	if len(patterns) > 0 {
		e.matcher = gitignore.NewMatcher(patterns)
	}
	return e
}

func (e *excluder) match(path string, isDir bool) bool {
	if e.matcher == nil {
		return false
	}
	rel, err := filepath.Rel(e.base, path)
	if err != nil || rel == "." {
		return false
	}
	return e.matcher.Match(strings.Split(rel, string(filepath.Separator)), isDir)
}

// SkipDir reports whether directories named name are never scanned.
func (s *Scanner) SkipDir(name string) bool {
	for _, dir := range s.config.Exclude.Dirs {
		if name == dir {
			return true
		}
	}
	return false
}

// Supported reports whether path has a language profile and is not
// excluded by configured patterns, directories or extensions.
func (s *Scanner) Supported(path string) bool {
	if s.config.ShouldExclude(path) {
		return false
	}
	_, ok := s.registry.ForPath(path)
	return ok
}

// Scan collects files from paths, which may be files or directories. The
// result is sorted and free of duplicates. Explicitly named files are kept
// when they have a profile, even if a pattern would exclude them.
func (s *Scanner) Scan(paths []string) ([]string, error) {
	seen := make(map[string]struct{})
	var out []string
	add := func(p string) {
		p = filepath.Clean(p)
		if _, dup := seen[p]; !dup {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}

	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			if _, ok := s.registry.ForPath(p); ok {
				add(p)
			}
			continue
		}
		files, err := s.ScanDir(p)
		if err != nil {
			return nil, err
		}
		for _, f := range files {
			add(f)
		}
	}

	sort.Strings(out)
	return out, nil
}

// ScanDir recursively scans a directory for source files.
// Symlinks resolving outside root are skipped.
func (s *Scanner) ScanDir(root string) ([]string, error) {
	files := make([]string, 0, 256)

	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	absRoot, err = filepath.EvalSymlinks(absRoot)
	if err != nil {
		return nil, err
	}

	ex := s.newExcluder(absRoot)

	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		abs := filepath.Join(absRoot, rel)

		if d.Type()&fs.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(path)
			if err != nil || !isWithinRoot(resolved, absRoot) {
				return nil
			}
			if info, err := os.Stat(resolved); err != nil || info.IsDir() {
				return nil
			}
		}

		if d.IsDir() {
			if path != root && (s.SkipDir(d.Name()) || ex.match(abs, true)) {
				return filepath.SkipDir
			}
			return nil
		}

		if ex.match(abs, false) || !s.Supported(path) {
			return nil
		}
		files = append(files, path)
		return nil
	})

	return files, walkErr
}

// isWithinRoot checks if a path is contained within the root directory.
func isWithinRoot(path, root string) bool {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	absPath = filepath.Clean(absPath)
	root = filepath.Clean(root)
	return absPath == root || strings.HasPrefix(absPath, root+string(filepath.Separator))
}

// FilterPaths keeps the supported paths of a listing that did not come
// from the filesystem, such as a git tree.
func (s *Scanner) FilterPaths(paths []string) []string {
	var out []string
	for _, p := range paths {
		if !s.Supported(p) {
			continue
		}
		excluded := false
		for _, part := range strings.Split(filepath.Dir(p), string(filepath.Separator)) {
			if s.SkipDir(part) {
				excluded = true
				break
			}
		}
		if !excluded {
			out = append(out, p)
		}
	}
	sort.Strings(out)
	return out
}

// GroupByProfile groups files by the name of their language profile.
func (s *Scanner) GroupByProfile(files []string) map[string][]string {
	groups := make(map[string][]string)
	for _, f := range files {
		if p, ok := s.registry.ForPath(f); ok {
			groups[p.Name] = append(groups[p.Name], f)
		}
	}
	return groups
}
