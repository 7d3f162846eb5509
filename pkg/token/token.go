// Package token defines the normalized lexical units produced by the lexer
// and the queue that carries them between pipeline stages.
package token

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
)

// Token is an immutable unit of source text: a normalized value and the
// position where it started. Construct with New so the hashes are computed.
type Token struct {
	value     string
	line      int
	column    int
	valueHash uint64
	hash      uint64
}

// New creates a token and precomputes its hashes.
func New(value string, line, column int) Token {
	vh := xxhash.Sum64String(value)

	var pos [16]byte
	binary.LittleEndian.PutUint64(pos[:8], uint64(line))
	binary.LittleEndian.PutUint64(pos[8:], uint64(column))
	d := xxhash.New()
	_, _ = d.WriteString(value)
	_, _ = d.Write(pos[:])

	return Token{
		value:     value,
		line:      line,
		column:    column,
		valueHash: vh,
		hash:      d.Sum64(),
	}
}

// Value returns the normalized text.
func (t Token) Value() string { return t.value }

// Line returns the 1-based source line.
func (t Token) Line() int { return t.line }

// Column returns the 0-based source column.
func (t Token) Column() int { return t.column }

// ValueHash is the hash of the value alone. Line aggregation folds it.
func (t Token) ValueHash() uint64 { return t.valueHash }

// Hash is the structural hash over value, line and column.
func (t Token) Hash() uint64 { return t.hash }

// Equal reports structural equality.
func (t Token) Equal(other Token) bool {
	return t.hash == other.hash &&
		t.line == other.line &&
		t.column == other.column &&
		t.value == other.value
}

func (t Token) String() string {
	return fmt.Sprintf("%q@%d:%d", t.value, t.line, t.column)
}
