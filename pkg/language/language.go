// Package language maps source files to tokenizer profiles. Built-in
// profiles are embedded as YAML; custom ones come from configuration.
package language

import (
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/zeebo/blake3"
	"gopkg.in/yaml.v3"

	"github.com/panbanda/cpd/pkg/block"
	"github.com/panbanda/cpd/pkg/lexer"
	"github.com/panbanda/cpd/pkg/statement"
)

//go:embed profiles.yaml
var builtinProfiles []byte

// grammarVersion is part of every fingerprint. Bump it when the statement
// grammar or the matchers change the units produced for unchanged rules.
const grammarVersion = 2

// Rule kinds.
const (
	KindIgnore = "ignore"
	KindToken  = "token"
)

var (
	ErrUnknownKind = errors.New("language: unknown rule kind")
	ErrNoName      = errors.New("language: profile has no name")
	ErrNoRules     = errors.New("language: profile has no rules")
)

// Rule is one lexer rule of a profile.
type Rule struct {
	Kind      string `yaml:"kind" koanf:"kind"`
	Pattern   string `yaml:"pattern" koanf:"pattern"`
	Normalize string `yaml:"normalize,omitempty" koanf:"normalize"`
}

// Definition is the serializable form of a profile.
type Definition struct {
	Name       string   `yaml:"name" koanf:"name"`
	Extensions []string `yaml:"extensions" koanf:"extensions"`
	Rules      []Rule   `yaml:"rules" koanf:"rules"`
	// Statements groups tokens into statements instead of source lines.
	Statements bool `yaml:"statements,omitempty" koanf:"statements"`
}

// Profile is a compiled Definition. The lexer is built on first use and
// shared by every caller.
type Profile struct {
	Definition

	fingerprint string

	once  sync.Once
	lexer *lexer.Lexer
	stmts *statement.Chunker
	err   error
}

// NewProfile validates def and returns an unbuilt profile.
func NewProfile(def Definition) (*Profile, error) {
	if def.Name == "" {
		return nil, ErrNoName
	}
	if len(def.Rules) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoRules, def.Name)
	}
	for _, r := range def.Rules {
		if r.Kind != KindIgnore && r.Kind != KindToken {
			return nil, fmt.Errorf("%w: %q in %s", ErrUnknownKind, r.Kind, def.Name)
		}
	}
	exts := make([]string, len(def.Extensions))
	for i, e := range def.Extensions {
		exts[i] = normalizeExt(e)
	}
	def.Extensions = exts
	return &Profile{Definition: def, fingerprint: fingerprint(def)}, nil
}

// fingerprint hashes what decides the units a profile produces. Extensions
// only select files and are left out.
func fingerprint(def Definition) string {
	h := blake3.New()
	field := func(s string) { fmt.Fprintf(h, "%d:%s", len(s), s) }

	fmt.Fprintf(h, "v%d;%t;", grammarVersion, def.Statements)
	field(def.Name)
	for _, r := range def.Rules {
		field(r.Kind)
		field(r.Pattern)
		field(r.Normalize)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Fingerprint identifies the profile's tokenization: two profiles with the
// same fingerprint turn the same source into the same units.
func (p *Profile) Fingerprint() string {
	return p.fingerprint
}

func (p *Profile) build() {
	b := lexer.NewBuilder()
	for _, r := range p.Rules {
		switch r.Kind {
		case KindIgnore:
			b.Ignore(r.Pattern)
		case KindToken:
			b.TokenNormalized(r.Pattern, r.Normalize)
		}
	}
	p.lexer, p.err = b.Build()
	if p.err != nil {
		p.err = fmt.Errorf("profile %s: %w", p.Name, p.err)
		return
	}
	if p.Statements {
		p.stmts, p.err = statementGrammar()
	}
}

// Lexer returns the profile's lexer, compiling it once.
func (p *Profile) Lexer() (*lexer.Lexer, error) {
	p.once.Do(p.build)
	return p.lexer, p.err
}

// Lines tokenizes src and returns the units the block chunker windows
// over: source lines, or statements for statement-based profiles.
func (p *Profile) Lines(src string) ([]block.TokensLine, error) {
	lx, err := p.Lexer()
	if err != nil {
		return nil, err
	}
	q, err := lx.Chunk(src)
	if err != nil {
		return nil, err
	}
	if p.stmts != nil {
		return statement.ToLines(p.stmts.Chunk(q)), nil
	}
	return block.Aggregate(q.Tokens()), nil
}

// statementGrammar splits C-family token streams at ";", "{" and "}".
// Imports and package clauses are dropped; loop and condition headers are
// one statement each.
func statementGrammar() (*statement.Chunker, error) {
	return statement.NewBuilder().
		Ignore(statement.Exact("import"), statement.UpTo(";")).
		Ignore(statement.Exact("package"), statement.UpTo(";")).
		Ignore(statement.Exact("using"), statement.UpTo(";")).
		Statement(statement.Exact("for"), statement.Bridge("(", ")")).
		Statement(statement.Exact("if"), statement.Bridge("(", ")")).
		Statement(statement.Exact("while"), statement.Bridge("(", ")")).
		Statement(statement.Exact("}"), statement.Opt(statement.Exact("else"))).
		Statement(statement.UpTo(";", "{", "}")).
		Build()
}

// Registry resolves file extensions to profiles.
type Registry struct {
	profiles map[string]*Profile
	byExt    map[string]*Profile
}

// NewRegistry returns a registry holding the built-in profiles.
func NewRegistry() (*Registry, error) {
	var defs []Definition
	if err := yaml.Unmarshal(builtinProfiles, &defs); err != nil {
		return nil, fmt.Errorf("parsing built-in profiles: %w", err)
	}

	r := &Registry{
		profiles: make(map[string]*Profile),
		byExt:    make(map[string]*Profile),
	}
	for _, def := range defs {
		if err := r.Register(def); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds def, replacing a profile of the same name. Its extensions
// are taken over from any profile that claimed them before.
func (r *Registry) Register(def Definition) error {
	p, err := NewProfile(def)
	if err != nil {
		return err
	}
	if old, ok := r.profiles[p.Name]; ok {
		for _, ext := range old.Extensions {
			if r.byExt[ext] == old {
				delete(r.byExt, ext)
			}
		}
	}
	r.profiles[p.Name] = p
	for _, ext := range p.Extensions {
		r.byExt[ext] = p
	}
	return nil
}

// ForPath returns the profile for path's extension.
func (r *Registry) ForPath(path string) (*Profile, bool) {
	p, ok := r.byExt[normalizeExt(filepath.Ext(path))]
	return p, ok
}

// Get returns the profile named name.
func (r *Registry) Get(name string) (*Profile, bool) {
	p, ok := r.profiles[name]
	return p, ok
}

// Profiles returns every profile sorted by name.
func (r *Registry) Profiles() []*Profile {
	out := make([]*Profile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Extensions returns every claimed extension, sorted.
func (r *Registry) Extensions() []string {
	out := make([]string, 0, len(r.byExt))
	for ext := range r.byExt {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Validate compiles every profile and joins the failures.
func (r *Registry) Validate() error {
	var errs []error
	for _, p := range r.Profiles() {
		if _, err := p.Lexer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}
