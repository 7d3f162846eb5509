package lexer

import (
	"fmt"

	"github.com/dlclark/regexp2"
	"github.com/panbanda/cpd/pkg/token"
)

// Channel is one lexing rule. Consume reports whether it matched at the
// reader's position; a matching channel must advance the reader.
type Channel interface {
	Consume(r *CodeReader, out *token.Queue) bool
}

// regexpChannel matches a pattern anchored at the read position.
type regexpChannel struct {
	pattern string
	re      *regexp2.Regexp
}

func compileAnchored(pattern string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(`\G(?:`+pattern+`)`, regexp2.None)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrInvalidPattern, pattern, err)
	}
	return re, nil
}

// match returns the length in runes of the match at the read position, or 0.
// Empty matches count as no match so the dispatcher always makes progress.
func (c *regexpChannel) match(r *CodeReader) int {
	runes, pos := r.runesFrom()
	m, err := c.re.FindRunesMatchStartingAt(runes, pos)
	if err != nil || m == nil || m.Index != pos {
		return 0
	}
	return m.Length
}

// IgnoreChannel consumes matching text and emits nothing.
type IgnoreChannel struct {
	regexpChannel
}

// NewIgnoreChannel compiles an ignore rule.
func NewIgnoreChannel(pattern string) (*IgnoreChannel, error) {
	re, err := compileAnchored(pattern)
	if err != nil {
		return nil, err
	}
	return &IgnoreChannel{regexpChannel{pattern: pattern, re: re}}, nil
}

// Consume implements Channel.
func (c *IgnoreChannel) Consume(r *CodeReader, _ *token.Queue) bool {
	n := c.match(r)
	if n == 0 {
		return false
	}
	r.Advance(n)
	return true
}

// TokenChannel consumes matching text and emits a token. When normalize is
// set the token carries that value instead of the matched text.
type TokenChannel struct {
	regexpChannel
	normalize string
}

// NewTokenChannel compiles a token rule. An empty normalize keeps the
// matched text.
func NewTokenChannel(pattern, normalize string) (*TokenChannel, error) {
	re, err := compileAnchored(pattern)
	if err != nil {
		return nil, err
	}
	return &TokenChannel{regexpChannel: regexpChannel{pattern: pattern, re: re}, normalize: normalize}, nil
}

// Consume implements Channel.
func (c *TokenChannel) Consume(r *CodeReader, out *token.Queue) bool {
	n := c.match(r)
	if n == 0 {
		return false
	}
	line, col := r.Line(), r.Column()
	text := r.Advance(n)
	if c.normalize != "" {
		text = c.normalize
	}
	out.Add(token.New(text, line, col))
	return true
}
