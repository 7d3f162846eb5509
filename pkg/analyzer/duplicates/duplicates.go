// Package duplicates finds duplicated code across a set of files.
//
// A run has two phases. Indexing reads, tokenizes and chunks every file in
// parallel and inserts each file's blocks into a shared index. Once the index
// is sealed, detection looks up every file's blocks against it in parallel.
package duplicates

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/cpd/internal/cache"
	"github.com/panbanda/cpd/internal/fileproc"
	"github.com/panbanda/cpd/pkg/analyzer"
	"github.com/panbanda/cpd/pkg/block"
	"github.com/panbanda/cpd/pkg/config"
	"github.com/panbanda/cpd/pkg/detector"
	"github.com/panbanda/cpd/pkg/index"
	"github.com/panbanda/cpd/pkg/language"
	"github.com/panbanda/cpd/pkg/lexer"
	"github.com/panbanda/cpd/pkg/source"
	"github.com/panbanda/cpd/pkg/stats"
	"github.com/projectdiscovery/gologger"
)

var (
	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("duplicates: invalid configuration")
	// ErrUnsupported is recorded for files no language profile handles.
	ErrUnsupported = errors.New("duplicates: no language profile for file")
)

const maxHotspots = 10

var _ analyzer.SourceAnalyzer[*Analysis] = (*Analyzer)(nil)

// Analyzer detects duplicated token sequences across files.
type Analyzer struct {
	registry    *language.Registry
	cache       *cache.Cache
	chunker     *block.Chunker
	detector    *detector.Detector
	index       *index.MemoryIndex
	blockSize   int
	minTokens   int
	maxFileSize int64
	workers     int

	// runs share the index
	mu sync.Mutex
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithBlockSize sets the number of lines (or statements) per block.
func WithBlockSize(n int) Option {
	return func(a *Analyzer) {
		a.blockSize = n
	}
}

// WithMinTokens sets the shortest clone, in tokens, that is reported.
func WithMinTokens(n int) Option {
	return func(a *Analyzer) {
		a.minTokens = n
	}
}

// WithConfig sets all duplicate configuration from a config struct.
func WithConfig(cfg config.DuplicateConfig) Option {
	return func(a *Analyzer) {
		a.blockSize = cfg.BlockSize
		a.minTokens = cfg.MinTokens
		a.maxFileSize = cfg.MaxFileSize
		a.workers = cfg.Workers
	}
}

// WithMaxFileSize sets the maximum file size to analyze (0 = no limit).
func WithMaxFileSize(maxSize int64) Option {
	return func(a *Analyzer) {
		a.maxFileSize = maxSize
	}
}

// WithCache reuses the blocks of unchanged files between runs.
func WithCache(c *cache.Cache) Option {
	return func(a *Analyzer) {
		a.cache = c
	}
}

// WithRegistry sets the language profiles files are tokenized with.
func WithRegistry(r *language.Registry) Option {
	return func(a *Analyzer) {
		a.registry = r
	}
}

// WithWorkers bounds the goroutines of each phase (0 = 2x NumCPU).
func WithWorkers(n int) Option {
	return func(a *Analyzer) {
		a.workers = n
	}
}

// New creates an analyzer. Defaults come from config.DefaultDuplicateConfig
// and the built-in language profiles.
func New(opts ...Option) (*Analyzer, error) {
	a := &Analyzer{index: index.NewMemoryIndex()}
	WithConfig(config.DefaultDuplicateConfig())(a)
	for _, opt := range opts {
		opt(a)
	}

	if a.minTokens < 0 {
		return nil, fmt.Errorf("%w: min tokens %d is negative", ErrInvalidConfig, a.minTokens)
	}
	if a.workers < 0 {
		return nil, fmt.Errorf("%w: workers %d is negative", ErrInvalidConfig, a.workers)
	}
	if a.maxFileSize < 0 {
		return nil, fmt.Errorf("%w: max file size %d is negative", ErrInvalidConfig, a.maxFileSize)
	}

	chunker, err := block.NewChunker(a.blockSize)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	a.chunker = chunker

	if a.registry == nil {
		if a.registry, err = language.NewRegistry(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}
	if len(a.registry.Profiles()) == 0 {
		return nil, fmt.Errorf("%w: no language profiles", ErrInvalidConfig)
	}
	if err := a.registry.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	a.detector = detector.New(detector.WithMinTokens(a.minTokens))
	return a, nil
}

// Index returns the index of the last run. It is sealed once Analyze
// returns successfully and must not be modified.
func (a *Analyzer) Index() *index.MemoryIndex {
	return a.index
}

// BlockSize returns the configured block size.
func (a *Analyzer) BlockSize() int {
	return a.blockSize
}

// MinTokens returns the configured minimum clone length.
func (a *Analyzer) MinTokens() int {
	return a.minTokens
}

// IndexFile tokenizes content with the profile matching resourceID and
// returns its blocks. It touches no shared state besides the cache.
func (a *Analyzer) IndexFile(resourceID string, content []byte) ([]block.Block, error) {
	blocks, _, err := a.indexFile(resourceID, content)
	return blocks, err
}

func (a *Analyzer) indexFile(resourceID string, content []byte) ([]block.Block, bool, error) {
	profile, ok := a.registry.ForPath(resourceID)
	if !ok {
		return nil, false, fmt.Errorf("%w: %q", ErrUnsupported, filepath.Ext(resourceID))
	}

	if blocks, ok := a.cache.Blocks(resourceID, profile.Fingerprint(), a.blockSize, content); ok {
		gologger.Debug().Msgf("cache hit for %s", resourceID)
		return blocks, true, nil
	}

	lines, err := profile.Lines(string(content))
	if err != nil {
		return nil, false, err
	}
	blocks := a.chunker.Chunk(resourceID, lines)

	if err := a.cache.PutBlocks(resourceID, profile.Fingerprint(), a.blockSize, content, blocks); err != nil {
		gologger.Debug().Msgf("could not cache blocks of %s: %v", resourceID, err)
	}
	return blocks, false, nil
}

type indexedFile struct {
	path   string
	blocks int
	lines  int
	cached bool
}

type resourceGroups struct {
	path   string
	groups []detector.CloneGroup
}

// Analyze runs duplicate detection over files read from src. Every call
// starts from an empty index, so repeated runs over the same input return
// the same result. Files that cannot be read or tokenized are reported in
// Analysis.Failures and do not stop the run. A cancelled context stops the
// run before detection.
func (a *Analyzer) Analyze(ctx context.Context, files []string, src source.ContentSource) (*Analysis, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	tracker := analyzer.TrackerFromContext(ctx)
	files = slices.Compact(slices.Sorted(slices.Values(files)))

	a.index.Clear()

	analysis := &Analysis{
		Groups:    make([]detector.CloneGroup, 0),
		Resources: make(map[string][]detector.CloneGroup),
		Summary:   NewSummary(),
		BlockSize: a.blockSize,
		MinTokens: a.minTokens,
	}
	analysis.Summary.TotalFiles = len(files)

	start := time.Now()
	tracker.Begin(analyzer.PhaseIndex, len(files))
	indexed, errs := fileproc.MapSourceFiles(ctx, files, src, fileproc.SourceOptions{
		MaxSize:    a.maxFileSize,
		Workers:    a.workers,
		OnProgress: tracker.Tick,
	}, func(path string, content []byte) (indexedFile, error) {
		blocks, cached, err := a.indexFile(path, content)
		if err != nil {
			return indexedFile{}, err
		}
		if err := a.index.InsertResource(path, a.blockSize, blocks); err != nil {
			return indexedFile{}, err
		}
		return indexedFile{path: path, blocks: len(blocks), lines: countLines(content), cached: cached}, nil
	})
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, pe := range errs.Sorted() {
		analysis.Failures = append(analysis.Failures, newFailure(pe))
	}

	a.index.Seal()
	gologger.Debug().Msgf("indexed %d of %d files (%d blocks) in %s",
		len(indexed), len(files), a.index.BlockCount(), time.Since(start).Round(time.Millisecond))

	start = time.Now()
	ids := make([]string, len(indexed))
	for i, f := range indexed {
		ids[i] = f.path
	}
	sort.Strings(ids)

	tracker.Begin(analyzer.PhaseDetect, len(ids))
	results, detectErrs := fileproc.Run(ctx, ids, a.workers, func(path string) (resourceGroups, error) {
		groups, err := a.detector.Detect(a.index, a.index.ByResourceID(path))
		return resourceGroups{path: path, groups: groups}, err
	}, tracker.Tick)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := detectErrs.Join(); err != nil {
		return nil, err
	}

	for _, r := range results {
		analysis.Resources[r.path] = r.groups
	}
	var all []detector.CloneGroup
	for _, id := range ids {
		all = append(all, analysis.Resources[id]...)
	}
	analysis.Groups = detector.Dedupe(all)
	sortGroups(analysis.Groups)
	gologger.Debug().Msgf("found %d clone groups in %s", len(analysis.Groups), time.Since(start).Round(time.Millisecond))

	summarize(analysis, indexed)
	return analysis, nil
}

func newFailure(pe fileproc.FileError) Failure {
	f := Failure{Path: pe.Path, Error: pe.Err.Error()}
	var lexErr *lexer.LexError
	switch {
	case errors.As(pe.Err, &lexErr):
		f.Line, f.Column = lexErr.Line, lexErr.Column
	case errors.Is(pe.Err, fileproc.ErrTooLarge), errors.Is(pe.Err, ErrUnsupported):
		f.Skipped = true
	}
	return f
}

// sortGroups orders run-level groups by origin location, longest first.
func sortGroups(groups []detector.CloneGroup) {
	sort.SliceStable(groups, func(i, j int) bool {
		a, b := groups[i].Origin, groups[j].Origin
		if a.ResourceID != b.ResourceID {
			return a.ResourceID < b.ResourceID
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return groups[i].LengthInUnits > groups[j].LengthInUnits
	})
}

func countLines(content []byte) int {
	if len(content) == 0 {
		return 0
	}
	n := bytes.Count(content, []byte{'\n'})
	if content[len(content)-1] != '\n' {
		n++
	}
	return n
}

// summarize fills the summary. A line covered by several clone parts counts
// once toward its file's duplicated lines.
func summarize(analysis *Analysis, indexed []indexedFile) {
	s := &analysis.Summary
	for _, f := range indexed {
		s.IndexedFiles++
		s.TotalBlocks += f.blocks
		s.TotalLines += f.lines
		if f.cached {
			s.CachedFiles++
		}
	}
	for _, f := range analysis.Failures {
		if f.Skipped {
			s.SkippedFiles++
		} else {
			s.FailedFiles++
		}
	}

	covered := make(map[string]*roaring.Bitmap)
	groupCount := make(map[string]int)
	lengths := make([]float64, 0, len(analysis.Groups))

	for _, g := range analysis.Groups {
		parts := g.All()
		s.TotalFragments += len(parts)
		s.LargestGroupSize = max(s.LargestGroupSize, len(parts))
		lengths = append(lengths, float64(g.LengthInUnits))

		seen := make(map[string]bool, len(parts))
		for _, p := range parts {
			bm, ok := covered[p.ResourceID]
			if !ok {
				bm = roaring.New()
				covered[p.ResourceID] = bm
			}
			bm.AddRange(uint64(p.StartLine), uint64(p.EndLine)+1)
			s.FileOccurrences[p.ResourceID]++
			if !seen[p.ResourceID] {
				seen[p.ResourceID] = true
				groupCount[p.ResourceID]++
			}
		}
	}
	s.TotalGroups = len(analysis.Groups)

	hotspots := make([]Hotspot, 0, len(covered))
	for file, bm := range covered {
		lines := int(bm.GetCardinality())
		s.DuplicatedLines += lines
		hotspots = append(hotspots, Hotspot{
			File:            file,
			DuplicateLines:  lines,
			CloneGroupCount: groupCount[file],
			Severity:        math.Log(float64(lines)+1) * math.Sqrt(float64(groupCount[file])),
		})
	}
	sort.Slice(hotspots, func(i, j int) bool {
		if hotspots[i].Severity != hotspots[j].Severity {
			return hotspots[i].Severity > hotspots[j].Severity
		}
		return hotspots[i].File < hotspots[j].File
	})
	if len(hotspots) > maxHotspots {
		hotspots = hotspots[:maxHotspots]
	}
	s.Hotspots = hotspots

	if s.TotalLines > 0 {
		s.DuplicationRatio = math.Min(float64(s.DuplicatedLines)/float64(s.TotalLines), 1)
	}
	s.AvgTokens = stats.Mean(lengths)
	s.P50Tokens = stats.Percentile(lengths, 50)
	s.P95Tokens = stats.Percentile(lengths, 95)
}
