package language

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/cpd/pkg/lexer"
)

func values(t *testing.T, p *Profile, src string) []string {
	t.Helper()
	lx, err := p.Lexer()
	require.NoError(t, err)
	q, err := lx.Chunk(src)
	require.NoError(t, err)

	var out []string
	for _, tok := range q.Tokens() {
		out = append(out, tok.Value())
	}
	return out
}

func TestNewRegistry_BuiltinsCompile(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	require.NoError(t, r.Validate())

	names := make([]string, 0)
	for _, p := range r.Profiles() {
		names = append(names, p.Name)
	}
	assert.Equal(t, []string{"generic", "java", "python", "ruby"}, names)
	assert.Contains(t, r.Extensions(), ".go")
	assert.Contains(t, r.Extensions(), ".rb")
}

func TestRegistry_ForPath(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	tests := []struct {
		path string
		want string
		ok   bool
	}{
		{"main.go", "generic", true},
		{"src/App.tsx", "generic", true},
		{"Service.java", "java", true},
		{"tool.PY", "python", true},
		{"Rakefile.rake", "ruby", true},
		{"README.md", "", false},
		{"Makefile", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			p, ok := r.ForPath(tt.path)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.want, p.Name)
			}
		})
	}
}

func TestGeneric_NormalizesLiterals(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	p, _ := r.Get("generic")

	got := values(t, p, "x := \"hello\" + 42 // note\n/* block\ncomment */ y := 'c' * 0x1F\n")
	assert.Equal(t, []string{
		"x", ":", "=", "$CHARS", "+", "$NUMBER",
		"y", ":", "=", "$CHARS", "*", "$NUMBER",
	}, got)
}

func TestGeneric_RenamedLiteralsHashEqual(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	p, _ := r.Get("generic")

	a, err := p.Lines("fmt.Println(\"one\", 1)\n")
	require.NoError(t, err)
	b, err := p.Lines("fmt.Println(\"two\", 2)\n")
	require.NoError(t, err)
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Hash, b[0].Hash)
}

func TestPython_CommentsAndStrings(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	p, _ := r.Get("python")

	got := values(t, p, "# header\ndef f(x):\n    \"\"\"doc\n    string\"\"\"\n    return f'{x}' + 3.5\n")
	assert.Equal(t, []string{"def", "f", "(", "x", ")", ":", "$CHARS", "return", "$CHARS", "+", "$NUMBER"}, got)
}

func TestRuby_BlockComment(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	p, _ := r.Get("ruby")

	got := values(t, p, "=begin\nignored\n=end\n@count += 1 # bump\nvalid?\n")
	assert.Equal(t, []string{"@count", "+", "=", "$NUMBER", "valid?"}, got)
}

func TestJava_StatementLines(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)
	p, _ := r.Get("java")

	lines, err := p.Lines("import java.util.List;\nclass A {\n  int x = 1;\n}\n")
	require.NoError(t, err)
	require.Len(t, lines, 3)

	assert.Equal(t, 8, lines[0].StartUnit)
	assert.Equal(t, 2, lines[0].StartLine)
	assert.Equal(t, 3, lines[1].StartLine)
	assert.Equal(t, 4, lines[2].StartLine)
	assert.Equal(t, lines[2].StartUnit, lines[2].EndUnit)
}

func TestRegistry_RegisterOverrides(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	err = r.Register(Definition{
		Name:       "words",
		Extensions: []string{"txt", ".GO"},
		Rules: []Rule{
			{Kind: KindIgnore, Pattern: `\s+`},
			{Kind: KindToken, Pattern: `\w+`},
		},
	})
	require.NoError(t, err)

	p, ok := r.ForPath("notes.txt")
	require.True(t, ok)
	assert.Equal(t, "words", p.Name)

	p, ok = r.ForPath("main.go")
	require.True(t, ok)
	assert.Equal(t, "words", p.Name)

	_, err = p.Lines("a ; b")
	var lexErr *lexer.LexError
	require.ErrorAs(t, err, &lexErr)
	assert.Equal(t, 1, lexErr.Line)
	assert.Equal(t, 2, lexErr.Column)
}

func TestRegistry_ReplaceReleasesExtensions(t *testing.T) {
	r, err := NewRegistry()
	require.NoError(t, err)

	require.NoError(t, r.Register(Definition{
		Name:       "ruby",
		Extensions: []string{".rb"},
		Rules:      []Rule{{Kind: KindToken, Pattern: `\S+`}},
	}))

	_, ok := r.ForPath("tasks.rake")
	assert.False(t, ok)
	_, ok = r.ForPath("app.rb")
	assert.True(t, ok)
}

func TestNewProfile_Errors(t *testing.T) {
	_, err := NewProfile(Definition{Rules: []Rule{{Kind: KindToken, Pattern: "x"}}})
	assert.ErrorIs(t, err, ErrNoName)

	_, err = NewProfile(Definition{Name: "empty"})
	assert.ErrorIs(t, err, ErrNoRules)

	_, err = NewProfile(Definition{Name: "bad", Rules: []Rule{{Kind: "skip", Pattern: "x"}}})
	assert.ErrorIs(t, err, ErrUnknownKind)

	p, err := NewProfile(Definition{Name: "broken", Rules: []Rule{{Kind: KindToken, Pattern: "(unclosed"}}})
	require.NoError(t, err)
	_, err = p.Lexer()
	assert.ErrorIs(t, err, lexer.ErrInvalidPattern)
}

func TestProfile_Fingerprint(t *testing.T) {
	base := Definition{
		Name:       "words",
		Extensions: []string{".txt"},
		Rules: []Rule{
			{Kind: KindIgnore, Pattern: `\s+`},
			{Kind: KindToken, Pattern: `\w+`},
		},
	}
	fp := func(edit func(d *Definition)) string {
		d := base
		d.Rules = append([]Rule(nil), base.Rules...)
		if edit != nil {
			edit(&d)
		}
		p, err := NewProfile(d)
		require.NoError(t, err)
		return p.Fingerprint()
	}

	want := fp(nil)
	assert.NotEmpty(t, want)
	assert.Equal(t, want, fp(nil))
	assert.Equal(t, want, fp(func(d *Definition) { d.Extensions = []string{".md"} }), "extensions only select files")

	changes := map[string]func(d *Definition){
		"pattern":    func(d *Definition) { d.Rules[1].Pattern = `\w` },
		"normalize":  func(d *Definition) { d.Rules[1].Normalize = "$W" },
		"kind":       func(d *Definition) { d.Rules[0].Kind = KindToken },
		"rule order": func(d *Definition) { d.Rules[0], d.Rules[1] = d.Rules[1], d.Rules[0] },
		"statements": func(d *Definition) { d.Statements = true },
		"name":       func(d *Definition) { d.Name = "other" },
	}
	for name, edit := range changes {
		t.Run(name, func(t *testing.T) {
			assert.NotEqual(t, want, fp(edit))
		})
	}
}
