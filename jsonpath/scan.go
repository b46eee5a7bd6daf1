package jsonpath

import "strings"

// Token is a "$"-rooted reference found inside a larger expression, such as
// the argument list of an intrinsic call or a filter predicate.
type Token struct {
	Start int
	End   int
	Text  string
}

// Scan finds every "$"-rooted reference in expr. The scan is permissive: it
// skips quoted string literals and context references ("$$...") and stops a
// token at the first byte that cannot continue a path.
func Scan(expr string) []Token {
	var tokens []Token
	for i := 0; i < len(expr); i++ {
		c := expr[i]
		if c == '\'' || c == '"' {
			j := skipQuoted(expr, i)
			if j < 0 {
				break
			}
			i = j
			continue
		}
		if c != '$' {
			continue
		}
		if i+1 < len(expr) && expr[i+1] == '$' {
			i = scanPathEnd(expr, i+2) - 1
			continue
		}
		if i > 0 && isWordByte(expr[i-1]) {
			continue
		}
		end := scanPathEnd(expr, i+1)
		tokens = append(tokens, Token{Start: i, End: end, Text: expr[i:end]})
		i = end - 1
	}
	return tokens
}

func scanPathEnd(s string, i int) int {
	for i < len(s) {
		switch s[i] {
		case '.':
			j := i + 1
			for j < len(s) && (isWordByte(s[j]) || s[j] == '*') {
				j++
			}
			if j == i+1 {
				return i
			}
			i = j
		case '[':
			j := matchBracket(s, i+1)
			if j < 0 {
				return i
			}
			i = j + 1
		default:
			return i
		}
	}
	return i
}

// References returns the normalized "$"-rooted references in expr, in
// order of appearance.
func References(expr string) []string {
	tokens := Scan(expr)
	if len(tokens) == 0 {
		return nil
	}
	refs := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		refs = append(refs, Normalize(tok.Text))
	}
	return refs
}

// ReplaceReference replaces every reference in expr equal to old with
// replacement and reports how many were replaced.
func ReplaceReference(expr, old, replacement string) (string, int) {
	old = Normalize(old)
	tokens := Scan(expr)

	var b strings.Builder
	last, n := 0, 0
	for _, tok := range tokens {
		if Normalize(tok.Text) != old {
			continue
		}
		b.WriteString(expr[last:tok.Start])
		b.WriteString(replacement)
		last = tok.End
		n++
	}
	if n == 0 {
		return expr, 0
	}
	b.WriteString(expr[last:])
	return b.String(), n
}
