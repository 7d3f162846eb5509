package duplicates

import (
	"github.com/panbanda/cpd/pkg/detector"
)

// Failure records a file that was not indexed. Skipped files were left out
// on purpose (too large, no language profile); the others failed to read or
// tokenize. Line and Column locate lex failures.
type Failure struct {
	Path    string `json:"path"`
	Error   string `json:"error"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
	Skipped bool   `json:"skipped,omitempty"`
}

// Analysis is the result of one duplicate detection run.
type Analysis struct {
	// Groups holds every clone group of the run once, canonicalized.
	Groups []detector.CloneGroup `json:"groups"`
	// Resources holds the groups found from each resource's point of view.
	Resources map[string][]detector.CloneGroup `json:"-"`
	Failures  []Failure                        `json:"failures,omitempty"`
	Summary   Summary                          `json:"summary"`
	BlockSize int                              `json:"block_size"`
	MinTokens int                              `json:"min_tokens"`
}

// Summary provides aggregate statistics.
type Summary struct {
	TotalFiles       int            `json:"total_files"`
	IndexedFiles     int            `json:"indexed_files"`
	SkippedFiles     int            `json:"skipped_files"`
	FailedFiles      int            `json:"failed_files"`
	CachedFiles      int            `json:"cached_files"`
	TotalBlocks      int            `json:"total_blocks"`
	TotalGroups      int            `json:"total_groups"`
	TotalFragments   int            `json:"total_fragments"`
	LargestGroupSize int            `json:"largest_group_size"`
	DuplicatedLines  int            `json:"duplicated_lines"`
	TotalLines       int            `json:"total_lines"`
	DuplicationRatio float64        `json:"duplication_ratio"`
	AvgTokens        float64        `json:"avg_tokens"`
	P50Tokens        float64        `json:"p50_tokens"`
	P95Tokens        float64        `json:"p95_tokens"`
	FileOccurrences  map[string]int `json:"file_occurrences"`
	Hotspots         []Hotspot      `json:"hotspots,omitempty"`
}

// Hotspot represents a file with high duplication.
type Hotspot struct {
	File            string  `json:"file"`
	DuplicateLines  int     `json:"duplicate_lines"`
	CloneGroupCount int     `json:"clone_group_count"`
	Severity        float64 `json:"severity"`
}

// NewSummary creates an initialized summary.
func NewSummary() Summary {
	return Summary{
		FileOccurrences: make(map[string]int),
	}
}
