// Package block groups tokens into source lines and slides a fixed-size
// window over those lines to produce hashed blocks, the unit of duplicate
// comparison.
package block

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/panbanda/cpd/pkg/token"
)

// HashBase is the polynomial base used at both the line and block level.
const HashBase uint64 = 31

// ErrInvalidBlockSize is returned for a non-positive window size.
var ErrInvalidBlockSize = errors.New("block: block size must be positive")

// Hash is an order-sensitive 64-bit content hash. Equal hashes mark
// candidate duplicates; collisions are possible but not verified.
type Hash uint64

func (h Hash) String() string {
	return fmt.Sprintf("%016x", uint64(h))
}

// MarshalText renders the hash as hex so JSON output stays readable.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText parses the hex form produced by MarshalText.
func (h *Hash) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(string(b), 16, 64)
	if err != nil {
		return err
	}
	*h = Hash(v)
	return nil
}

// TokensLine aggregates the tokens of one source line. Units are 1-based
// inclusive indices into the file's token sequence.
type TokensLine struct {
	StartUnit int    `json:"start_unit"`
	EndUnit   int    `json:"end_unit"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Hash      uint64 `json:"hash"`
}

// Block is one window of consecutive TokensLines. Index is the window
// position within its resource.
type Block struct {
	ResourceID string `json:"resource_id"`
	Index      int    `json:"index"`
	StartLine  int    `json:"start_line"`
	EndLine    int    `json:"end_line"`
	StartUnit  int    `json:"start_unit"`
	EndUnit    int    `json:"end_unit"`
	Hash       Hash   `json:"hash"`
}

// Aggregate partitions tokens into one TokensLine per source line that holds
// at least one token. The line hash folds token values left to right as
// h = h*31 + valueHash, seeded at 0.
func Aggregate(tokens []token.Token) []TokensLine {
	var lines []TokensLine
	for i, t := range tokens {
		unit := i + 1
		if n := len(lines); n > 0 && lines[n-1].StartLine == t.Line() {
			last := &lines[n-1]
			last.EndUnit = unit
			last.Hash = last.Hash*HashBase + t.ValueHash()
			continue
		}
		lines = append(lines, TokensLine{
			StartUnit: unit,
			EndUnit:   unit,
			StartLine: t.Line(),
			EndLine:   t.Line(),
			Hash:      t.ValueHash(),
		})
	}
	return lines
}
