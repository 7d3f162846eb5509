package lexer

import (
	"errors"
	"fmt"
)

var (
	// ErrNoChannels is returned by Build when no rule was registered.
	ErrNoChannels = errors.New("lexer: no channels registered")
	// ErrInvalidPattern wraps a rule pattern that does not compile.
	ErrInvalidPattern = errors.New("lexer: invalid pattern")
	// ErrLexFailure is the sentinel wrapped by every LexError.
	ErrLexFailure = errors.New("lexer: no channel matched")
)

// snippetLen bounds the offending text carried by a LexError.
const snippetLen = 16

// LexError reports the position where no channel matched.
type LexError struct {
	Line    int
	Column  int
	Snippet string
}

func (e *LexError) Error() string {
	return fmt.Sprintf("lexer: unable to lex at line %d, column %d near %q", e.Line, e.Column, e.Snippet)
}

// Unwrap lets errors.Is match ErrLexFailure.
func (e *LexError) Unwrap() error {
	return ErrLexFailure
}
