package detector

import (
	"errors"
	"fmt"
)

// ErrNotSealed is returned by Detect when indexing has not completed.
var ErrNotSealed = errors.New("detector: index is not sealed")

// ClonePart is one occurrence of a duplicated region.
type ClonePart struct {
	ResourceID string `json:"resource_id"`
	UnitStart  int    `json:"unit_start"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
}

// Lines returns the number of source lines the part spans.
func (p ClonePart) Lines() int {
	return p.EndLine - p.StartLine + 1
}

func (p ClonePart) String() string {
	return fmt.Sprintf("%s:%d-%d", p.ResourceID, p.StartLine, p.EndLine)
}

// CloneGroup is one duplicated region and every place it occurs. Parts
// excludes Origin. LengthInUnits counts tokens, not lines.
type CloneGroup struct {
	Origin        ClonePart   `json:"origin"`
	Parts         []ClonePart `json:"parts"`
	LengthInUnits int         `json:"length_in_units"`
}

// All returns the origin followed by the other parts.
func (g CloneGroup) All() []ClonePart {
	out := make([]ClonePart, 0, len(g.Parts)+1)
	out = append(out, g.Origin)
	return append(out, g.Parts...)
}

// InvariantError reports corrupted block bookkeeping. Detect panics with it;
// it signals a bug in chunking or indexing, not bad input.
type InvariantError struct {
	ResourceID string
	Reason     string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("detector: invariant violated for %s: %s", e.ResourceID, e.Reason)
}
