package lexer

// CodeReader is a cursor over source text that tracks the 1-based line and
// 0-based column of the next unread rune.
type CodeReader struct {
	runes  []rune
	pos    int
	line   int
	column int
}

// NewCodeReader creates a reader positioned at the start of src.
func NewCodeReader(src string) *CodeReader {
	return &CodeReader{
		runes: []rune(src),
		line:  1,
	}
}

// Line returns the line of the next unread rune.
func (r *CodeReader) Line() int { return r.line }

// Column returns the column of the next unread rune.
func (r *CodeReader) Column() int { return r.column }

// Pos returns the rune offset of the next unread rune.
func (r *CodeReader) Pos() int { return r.pos }

// EOF reports whether all input has been consumed.
func (r *CodeReader) EOF() bool { return r.pos >= len(r.runes) }

// Peek returns the next rune without consuming it, or -1 at end of input.
func (r *CodeReader) Peek() rune {
	if r.EOF() {
		return -1
	}
	return r.runes[r.pos]
}

// PeekString returns up to n runes from the read position.
func (r *CodeReader) PeekString(n int) string {
	end := r.pos + n
	if end > len(r.runes) {
		end = len(r.runes)
	}
	return string(r.runes[r.pos:end])
}

// Pop consumes and returns the next rune, or -1 at end of input.
func (r *CodeReader) Pop() rune {
	if r.EOF() {
		return -1
	}
	c := r.runes[r.pos]
	r.pos++
	if c == '\n' {
		r.line++
		r.column = 0
	} else {
		r.column++
	}
	return c
}

// Advance consumes n runes and returns them as a string.
func (r *CodeReader) Advance(n int) string {
	start := r.pos
	for i := 0; i < n && !r.EOF(); i++ {
		r.Pop()
	}
	return string(r.runes[start:r.pos])
}

// Remaining returns the unread input.
func (r *CodeReader) Remaining() string {
	return string(r.runes[r.pos:])
}

// runesFrom exposes the backing runes and read offset to channels so
// patterns can match in place.
func (r *CodeReader) runesFrom() ([]rune, int) {
	return r.runes, r.pos
}
