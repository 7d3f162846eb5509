// Package lexer turns source text into a token queue by running an ordered
// list of channels over the input.
package lexer

import (
	"github.com/panbanda/cpd/pkg/token"
)

// Lexer is an immutable channel dispatcher. Chunk keeps no state between
// calls and is safe for concurrent use.
type Lexer struct {
	channels []Channel
}

// Chunk tokenizes src. At each position the first channel that matches wins.
// When input remains and no channel matches, Chunk returns a *LexError.
func (l *Lexer) Chunk(src string) (*token.Queue, error) {
	r := NewCodeReader(src)
	out := token.NewQueue()

	for !r.EOF() {
		if !l.dispatch(r, out) {
			return nil, &LexError{
				Line:    r.Line(),
				Column:  r.Column(),
				Snippet: r.PeekString(snippetLen),
			}
		}
	}
	return out, nil
}

func (l *Lexer) dispatch(r *CodeReader, out *token.Queue) bool {
	for _, ch := range l.channels {
		if ch.Consume(r, out) {
			return true
		}
	}
	return false
}

// Builder assembles a Lexer from rules in priority order.
//
// Registration order is the precedence contract: at every position the
// first registered rule that matches wins. A narrow Ignore rule registered
// after a broader Token rule that also matches will never fire, so register
// comment and whitespace rules before catch-all token rules.
type Builder struct {
	channels []Channel
	err      error
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{}
}

// Ignore registers a rule whose matches are consumed and discarded.
func (b *Builder) Ignore(pattern string) *Builder {
	if b.err != nil {
		return b
	}
	ch, err := NewIgnoreChannel(pattern)
	if err != nil {
		b.err = err
		return b
	}
	b.channels = append(b.channels, ch)
	return b
}

// Token registers a rule whose matches become tokens with the matched text.
func (b *Builder) Token(pattern string) *Builder {
	return b.TokenNormalized(pattern, "")
}

// TokenNormalized registers a rule whose matches become tokens carrying
// value instead of the matched text.
func (b *Builder) TokenNormalized(pattern, value string) *Builder {
	if b.err != nil {
		return b
	}
	ch, err := NewTokenChannel(pattern, value)
	if err != nil {
		b.err = err
		return b
	}
	b.channels = append(b.channels, ch)
	return b
}

// Channel registers a custom channel.
func (b *Builder) Channel(ch Channel) *Builder {
	if b.err == nil && ch != nil {
		b.channels = append(b.channels, ch)
	}
	return b
}

// Build validates the configuration and returns the Lexer.
func (b *Builder) Build() (*Lexer, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.channels) == 0 {
		return nil, ErrNoChannels
	}
	channels := make([]Channel, len(b.channels))
	copy(channels, b.channels)
	return &Lexer{channels: channels}, nil
}
