// Package statement groups a token queue into statements with sequences of
// token matchers. Statements are an alternative to source lines as the unit
// the block chunker windows over.
package statement

import (
	"errors"
	"strings"

	"github.com/panbanda/cpd/pkg/block"
	"github.com/panbanda/cpd/pkg/token"
)

// ErrNoChannels is returned by Build when no channel was registered.
var ErrNoChannels = errors.New("statement: no channels registered")

// Statement is a run of consecutive tokens.
type Statement struct {
	StartUnit int    `json:"start_unit"`
	EndUnit   int    `json:"end_unit"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	Value     string `json:"value"`
	Hash      uint64 `json:"hash"`
}

// Channel tries its matchers in sequence. If any matcher fails, every token
// consumed so far is pushed back and the channel does not match.
type Channel struct {
	Matchers  []Matcher
	Blackhole bool
}

func (c Channel) consume(q *token.Queue) ([]token.Token, bool) {
	var matched []token.Token
	for _, m := range c.Matchers {
		if !m.Match(q, &matched) {
			q.PushForward(matched)
			return nil, false
		}
	}
	return matched, len(matched) > 0
}

// Chunker splits token queues into statements.
type Chunker struct {
	channels []Channel
}

// Builder assembles a Chunker. As with the lexer, the first registered
// channel that matches wins.
type Builder struct {
	channels []Channel
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder { return &Builder{} }

// Statement registers a channel whose match becomes one statement.
func (b *Builder) Statement(matchers ...Matcher) *Builder {
	b.channels = append(b.channels, Channel{Matchers: matchers})
	return b
}

// Ignore registers a channel whose match is dropped.
func (b *Builder) Ignore(matchers ...Matcher) *Builder {
	b.channels = append(b.channels, Channel{Matchers: matchers, Blackhole: true})
	return b
}

// Build returns the Chunker.
func (b *Builder) Build() (*Chunker, error) {
	if len(b.channels) == 0 {
		return nil, ErrNoChannels
	}
	channels := make([]Channel, len(b.channels))
	copy(channels, b.channels)
	return &Chunker{channels: channels}, nil
}

// Chunk drains q into statements. A token no channel accepts becomes a
// statement of its own. Unit numbers are 1-based positions in q.
func (c *Chunker) Chunk(q *token.Queue) []Statement {
	var out []Statement
	unit := 1
	for q.Len() > 0 {
		toks, blackhole := c.next(q)
		if !blackhole {
			out = append(out, newStatement(toks, unit))
		}
		unit += len(toks)
	}
	return out
}

func (c *Chunker) next(q *token.Queue) ([]token.Token, bool) {
	for _, ch := range c.channels {
		if toks, ok := ch.consume(q); ok {
			return toks, ch.Blackhole
		}
	}
	t, _ := q.Poll()
	return []token.Token{t}, false
}

func newStatement(toks []token.Token, startUnit int) Statement {
	var sb strings.Builder
	var h uint64
	for _, t := range toks {
		sb.WriteString(t.Value())
		h = h*block.HashBase + t.ValueHash()
	}
	return Statement{
		StartUnit: startUnit,
		EndUnit:   startUnit + len(toks) - 1,
		StartLine: toks[0].Line(),
		EndLine:   toks[len(toks)-1].Line(),
		Value:     sb.String(),
		Hash:      h,
	}
}

// ToLines adapts statements to the records the block chunker windows over.
func ToLines(stmts []Statement) []block.TokensLine {
	lines := make([]block.TokensLine, len(stmts))
	for i, s := range stmts {
		lines[i] = block.TokensLine{
			StartUnit: s.StartUnit,
			EndUnit:   s.EndUnit,
			StartLine: s.StartLine,
			EndLine:   s.EndLine,
			Hash:      s.Hash,
		}
	}
	return lines
}
