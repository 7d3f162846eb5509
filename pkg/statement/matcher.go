package statement

import (
	"github.com/panbanda/cpd/pkg/token"
)

// Matcher consumes tokens from the queue into matched. On failure it may
// leave tokens in matched; the enclosing Channel pushes them back.
type Matcher interface {
	Match(q *token.Queue, matched *[]token.Token) bool
}

type exactMatcher struct{ value string }

// Exact matches a single token with the given value.
func Exact(value string) Matcher { return exactMatcher{value: value} }

func (m exactMatcher) Match(q *token.Queue, matched *[]token.Token) bool {
	if !q.IsNextTokenValue(m.value) {
		return false
	}
	t, _ := q.Poll()
	*matched = append(*matched, t)
	return true
}

type anythingMatcher struct{}

// Anything matches any single token.
func Anything() Matcher { return anythingMatcher{} }

func (anythingMatcher) Match(q *token.Queue, matched *[]token.Token) bool {
	t, ok := q.Poll()
	if !ok {
		return false
	}
	*matched = append(*matched, t)
	return true
}

type upToMatcher struct{ stop map[string]struct{} }

// UpTo consumes tokens through the first one whose value is in values, or
// to the end of the queue when none is left, so an unterminated tail is taken
// in one pass. It fails only on an empty queue.
func UpTo(values ...string) Matcher {
	stop := make(map[string]struct{}, len(values))
	for _, v := range values {
		stop[v] = struct{}{}
	}
	return upToMatcher{stop: stop}
}

func (m upToMatcher) Match(q *token.Queue, matched *[]token.Token) bool {
	if q.Len() == 0 {
		return false
	}
	for {
		t, ok := q.Poll()
		if !ok {
			return true
		}
		*matched = append(*matched, t)
		if _, hit := m.stop[t.Value()]; hit {
			return true
		}
	}
}

type bridgeMatcher struct{ left, right string }

// Bridge matches a balanced pair starting at left and ending at the
// matching right, e.g. Bridge("(", ")").
func Bridge(left, right string) Matcher { return bridgeMatcher{left: left, right: right} }

func (m bridgeMatcher) Match(q *token.Queue, matched *[]token.Token) bool {
	if !q.IsNextTokenValue(m.left) {
		return false
	}
	depth := 0
	for {
		t, ok := q.Poll()
		if !ok {
			return false
		}
		*matched = append(*matched, t)
		switch t.Value() {
		case m.left:
			depth++
		case m.right:
			depth--
		}
		if depth == 0 {
			return true
		}
	}
}

type optMatcher struct{ m Matcher }

// Opt makes m optional: on failure its tokens are pushed back and the match
// still succeeds.
func Opt(m Matcher) Matcher { return optMatcher{m: m} }

func (o optMatcher) Match(q *token.Queue, matched *[]token.Token) bool {
	var local []token.Token
	if o.m.Match(q, &local) {
		*matched = append(*matched, local...)
		return true
	}
	q.PushForward(local)
	return true
}
