package token

// Queue is an ordered, mutable sequence of tokens. Consumers that
// provisionally take tokens can return them with PushForward.
//
// The backing slice is used as a deque: head marks the first live element
// and PushForward reuses the space in front of it when there is room.
type Queue struct {
	buf  []Token
	head int
}

// NewQueue creates a queue holding tokens in order.
func NewQueue(tokens ...Token) *Queue {
	q := &Queue{buf: make([]Token, 0, len(tokens))}
	q.buf = append(q.buf, tokens...)
	return q
}

// Len returns the number of tokens left.
func (q *Queue) Len() int {
	return len(q.buf) - q.head
}

// Add appends a token at the tail.
func (q *Queue) Add(t Token) {
	q.buf = append(q.buf, t)
}

// Peek returns the head without removing it.
func (q *Queue) Peek() (Token, bool) {
	if q.Len() == 0 {
		return Token{}, false
	}
	return q.buf[q.head], true
}

// Poll removes and returns the head.
func (q *Queue) Poll() (Token, bool) {
	if q.Len() == 0 {
		return Token{}, false
	}
	t := q.buf[q.head]
	q.buf[q.head] = Token{}
	q.head++
	if q.head == len(q.buf) {
		q.buf = q.buf[:0]
		q.head = 0
	}
	return t, true
}

// IsNextTokenValue reports whether the head has the given value.
func (q *Queue) IsNextTokenValue(value string) bool {
	t, ok := q.Peek()
	return ok && t.value == value
}

// PushForward reinserts tokens at the front, keeping their order, so the
// next len(tokens) calls to Poll return them as given.
func (q *Queue) PushForward(tokens []Token) {
	n := len(tokens)
	if n == 0 {
		return
	}
	if n <= q.head {
		q.head -= n
		copy(q.buf[q.head:], tokens)
		return
	}
	rest := q.buf[q.head:]
	merged := make([]Token, 0, n+len(rest))
	merged = append(merged, tokens...)
	merged = append(merged, rest...)
	q.buf = merged
	q.head = 0
}

// Tokens returns a copy of the remaining tokens in order.
func (q *Queue) Tokens() []Token {
	out := make([]Token, q.Len())
	copy(out, q.buf[q.head:])
	return out
}
