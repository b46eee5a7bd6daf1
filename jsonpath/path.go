// Package jsonpath implements the reference-path subset used by workflow
// machine definitions: paths rooted at "$" made of field, index, wildcard,
// slice and filter segments.
//
// Paths identify variable slots in the machine's document. Two slots are
// related by the prefix relation, and the first segment of a slot is its
// variable root:
//
//	RootOf("$.heap0.items[2]")               // "$.heap0"
//	IsPrefix("$.heap0", "$.heap0.items[2]")  // true
//	ReplacePrefix("$.a.b", "$.a", "$.x.y")   // "$.x.y.b", true
package jsonpath

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Root is the document root marker.
const Root = "$"

// Sentinel errors for path parsing and document access.
var (
	ErrNotReference   = errors.New("not a reference path")
	ErrSyntax         = errors.New("path syntax error")
	ErrPathNotFound   = errors.New("path not found")
	ErrIndefinitePath = errors.New("path is not definite")
	ErrTypeMismatch   = errors.New("type mismatch")
)

// Kind identifies the type of a path segment.
type Kind int

const (
	Field Kind = iota
	Index
	Wildcard
	Filter
	Slice
)

// Segment is one step of a path.
//
// Name is set for Field segments, Index for Index segments and Expr holds the
// raw expression of Filter ("@.price < 10") and Slice ("1:3") segments.
type Segment struct {
	Kind  Kind
	Name  string
	Index int
	Expr  string
}

// String formats the segment in its canonical form.
func (s Segment) String() string {
	switch s.Kind {
	case Field:
		if isIdentifier(s.Name) {
			return "." + s.Name
		}
		return "['" + escapeQuoted(s.Name) + "']"
	case Index:
		return "[" + strconv.Itoa(s.Index) + "]"
	case Wildcard:
		return "[*]"
	case Filter:
		return "[?(" + s.Expr + ")]"
	case Slice:
		return "[" + s.Expr + "]"
	default:
		return ""
	}
}

// Path is a parsed reference path. The root marker is implicit.
type Path []Segment

// String formats the path in its canonical form, rooted at "$".
func (p Path) String() string {
	var b strings.Builder
	b.WriteString(Root)
	for _, seg := range p {
		b.WriteString(seg.String())
	}
	return b.String()
}

// Definite reports whether the path addresses at most one location, i.e. it
// only contains field and index segments.
func (p Path) Definite() bool {
	for _, seg := range p {
		if seg.Kind != Field && seg.Kind != Index {
			return false
		}
	}
	return true
}

// HasFilter reports whether any segment is a filter expression.
func (p Path) HasFilter() bool {
	for _, seg := range p {
		if seg.Kind == Filter {
			return true
		}
	}
	return false
}

// FilterReferences returns the "$"-rooted references used inside the
// path's filter expressions.
func (p Path) FilterReferences() []string {
	var refs []string
	for _, seg := range p {
		if seg.Kind == Filter {
			refs = append(refs, References(seg.Expr)...)
		}
	}
	return refs
}

func (p Path) hasPrefix(prefix Path) bool {
	if len(prefix) > len(p) {
		return false
	}
	for i := range prefix {
		if prefix[i] != p[i] {
			return false
		}
	}
	return true
}

// Parse parses a "$"-rooted path. Context references ("$$...") are rejected.
func Parse(s string) (Path, error) {
	s = strings.TrimSpace(s)
	if !IsReference(s) {
		return nil, fmt.Errorf("%w: %q", ErrNotReference, s)
	}
	p := &parser{src: s, pos: len(Root)}
	return p.parse()
}

// MustParse is like Parse but panics on error. Intended for tests and
// package-level literals.
func MustParse(s string) Path {
	p, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return p
}

// IsReference reports whether s is a "$"-rooted document path.
func IsReference(s string) bool {
	if s == Root {
		return true
	}
	return strings.HasPrefix(s, "$.") || strings.HasPrefix(s, "$[")
}

// IsContextReference reports whether s addresses the context object ("$$").
func IsContextReference(s string) bool {
	return strings.HasPrefix(s, "$$")
}

// Normalize returns the canonical form of a path. Strings that do not parse
// are returned trimmed but otherwise unchanged.
func Normalize(s string) string {
	p, err := Parse(s)
	if err != nil {
		return strings.TrimSpace(s)
	}
	return p.String()
}

// RootOf returns the variable root of a path: the root marker followed by
// the first segment. The document root itself maps to "$".
func RootOf(s string) string {
	p, err := Parse(s)
	if err != nil || len(p) == 0 {
		return Root
	}
	return p[:1].String()
}

// IsPrefix reports whether prefix addresses s or an ancestor of s.
func IsPrefix(prefix, s string) bool {
	pp, err := Parse(prefix)
	if err != nil {
		return false
	}
	sp, err := Parse(s)
	if err != nil {
		return false
	}
	return sp.hasPrefix(pp)
}

// Suffix returns the segments of s that follow prefix.
func Suffix(s, prefix string) (Path, bool) {
	pp, err := Parse(prefix)
	if err != nil {
		return nil, false
	}
	sp, err := Parse(s)
	if err != nil {
		return nil, false
	}
	if !sp.hasPrefix(pp) {
		return nil, false
	}
	return sp[len(pp):], true
}

// ReplacePrefix substitutes the old prefix of s with replacement.
func ReplacePrefix(s, old, replacement string) (string, bool) {
	suffix, ok := Suffix(s, old)
	if !ok {
		return s, false
	}
	rp, err := Parse(replacement)
	if err != nil {
		return s, false
	}
	out := make(Path, 0, len(rp)+len(suffix))
	out = append(out, rp...)
	out = append(out, suffix...)
	return out.String(), true
}

// Join resolves rel, a "$"-rooted path, against base. It is used to compose
// an InputPath with the references evaluated against the selected input.
func Join(base, rel string) (string, error) {
	bp, err := Parse(base)
	if err != nil {
		return "", err
	}
	rp, err := Parse(rel)
	if err != nil {
		return "", err
	}
	out := make(Path, 0, len(bp)+len(rp))
	out = append(out, bp...)
	out = append(out, rp...)
	return out.String(), nil
}

// Append returns base extended by segs.
func Append(base string, segs ...Segment) (string, error) {
	bp, err := Parse(base)
	if err != nil {
		return "", err
	}
	out := make(Path, 0, len(bp)+len(segs))
	out = append(out, bp...)
	out = append(out, segs...)
	return out.String(), nil
}

// Compare orders paths segment by segment; a path sorts before any path it
// is a prefix of.
func Compare(a, b string) int {
	ap, aerr := Parse(a)
	bp, berr := Parse(b)
	if aerr != nil || berr != nil {
		return strings.Compare(a, b)
	}
	for i := 0; i < len(ap) && i < len(bp); i++ {
		if c := strings.Compare(ap[i].String(), bp[i].String()); c != 0 {
			return c
		}
	}
	switch {
	case len(ap) < len(bp):
		return -1
	case len(ap) > len(bp):
		return 1
	default:
		return 0
	}
}

// Escape quotes s for literal use inside a regular expression.
func Escape(s string) string {
	return regexp.QuoteMeta(s)
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s at offset %d in %q", ErrSyntax, fmt.Sprintf(format, args...), p.pos, p.src)
}

func (p *parser) parse() (Path, error) {
	var path Path
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '.':
			p.pos++
			if p.pos < len(p.src) && p.src[p.pos] == '*' {
				p.pos++
				path = append(path, Segment{Kind: Wildcard})
				continue
			}
			start := p.pos
			for p.pos < len(p.src) && p.src[p.pos] != '.' && p.src[p.pos] != '[' {
				p.pos++
			}
			if start == p.pos {
				return nil, p.errorf("empty field name")
			}
			path = append(path, Segment{Kind: Field, Name: p.src[start:p.pos]})
		case '[':
			seg, err := p.bracket()
			if err != nil {
				return nil, err
			}
			path = append(path, seg)
		default:
			return nil, p.errorf("unexpected %q", p.src[p.pos])
		}
	}
	return path, nil
}

func (p *parser) bracket() (Segment, error) {
	p.pos++
	if p.pos >= len(p.src) {
		return Segment{}, p.errorf("unterminated bracket")
	}

	switch c := p.src[p.pos]; {
	case c == '\'' || c == '"':
		end := skipQuoted(p.src, p.pos)
		if end < 0 {
			return Segment{}, p.errorf("unterminated string")
		}
		name := unescapeQuoted(p.src[p.pos+1 : end])
		p.pos = end + 1
		if p.pos >= len(p.src) || p.src[p.pos] != ']' {
			return Segment{}, p.errorf("expected ]")
		}
		p.pos++
		return Segment{Kind: Field, Name: name}, nil

	case c == '?':
		end := matchBracket(p.src, p.pos)
		if end < 0 {
			return Segment{}, p.errorf("unterminated filter")
		}
		expr := strings.TrimSpace(p.src[p.pos+1 : end])
		if strings.HasPrefix(expr, "(") && strings.HasSuffix(expr, ")") {
			expr = strings.TrimSpace(expr[1 : len(expr)-1])
		}
		p.pos = end + 1
		return Segment{Kind: Filter, Expr: expr}, nil

	default:
		end := strings.IndexByte(p.src[p.pos:], ']')
		if end < 0 {
			return Segment{}, p.errorf("unterminated bracket")
		}
		body := strings.TrimSpace(p.src[p.pos : p.pos+end])
		p.pos += end + 1
		switch {
		case body == "*":
			return Segment{Kind: Wildcard}, nil
		case strings.Contains(body, ":"):
			return Segment{Kind: Slice, Expr: body}, nil
		}
		n, err := strconv.Atoi(body)
		if err != nil {
			return Segment{}, p.errorf("invalid index %q", body)
		}
		return Segment{Kind: Index, Index: n}, nil
	}
}

// matchBracket returns the offset of the "]" closing the bracket that was
// opened just before i, honoring nested brackets and quoted strings.
func matchBracket(s string, i int) int {
	depth := 1
	for ; i < len(s); i++ {
		switch s[i] {
		case '\'', '"':
			i = skipQuoted(s, i)
			if i < 0 {
				return -1
			}
		case '[':
			depth++
		case ']':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// skipQuoted returns the offset of the quote closing the string starting at i.
func skipQuoted(s string, i int) int {
	q := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case q:
			return j
		}
	}
	return -1
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
		case i > 0 && (c >= '0' && c <= '9'):
		default:
			return false
		}
	}
	return true
}

func isWordByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9'
}

func escapeQuoted(s string) string {
	return strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s)
}

func unescapeQuoted(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
