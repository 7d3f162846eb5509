// Package analyzer holds what every analysis shares: the analyzer contract
// and progress reporting carried through a context.
package analyzer

import (
	"context"

	"github.com/panbanda/cpd/pkg/source"
)

// SourceAnalyzer analyzes a set of files read from a content source.
type SourceAnalyzer[T any] interface {
	// Analyze processes files and returns the result of one run. The context
	// cancels the run and may carry a Tracker.
	Analyze(ctx context.Context, files []string, src source.ContentSource) (T, error)
}
