// Package textnorm canonicalizes raw text into the token stream shared by the
// ingestion and query paths. Every component that turns text into terms or
// shingles goes through Normalize, so index-time and query-time terms always
// agree.
package textnorm

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// allowedPunct is the punctuation kept by Normalize. Everything else that is
// not a letter, number or whitespace becomes a space.
const allowedPunct = `'-+*/().`

// quoteFolder maps typographic quotes to their ASCII forms.
var quoteFolder = strings.NewReplacer(
	"\u201c", `"`,
	"\u201d", `"`,
	"\u2018", "'",
	"\u2019", "'",
)

// Normalize returns the canonical form of s:
//
//  1. NFKC compatibility composition
//  2. curly quotes folded to straight quotes
//  3. lowercase (followed by a second NFKC pass, lowercasing can decompose)
//  4. runes outside letters, numbers, whitespace and `'-+*/().` become spaces
//  5. whitespace runs collapsed to one ASCII space, ends trimmed
//
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFKC.String(s)
	s = quoteFolder.Replace(s)
	s = norm.NFKC.String(strings.ToLower(s))

	var b strings.Builder
	b.Grow(len(s))
	pendingSpace := false
	for _, r := range s {
		if !keep(r) || unicode.IsSpace(r) {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteRune(r)
	}
	return b.String()
}

// Tokenize normalizes s and splits it on whitespace. Empty tokens never occur.
func Tokenize(s string) []string {
	n := Normalize(s)
	if n == "" {
		return nil
	}
	return strings.Fields(n)
}

// Terms returns the unique tokens of s in first-occurrence order.
func Terms(s string) []string {
	return Unique(Tokenize(s))
}

// TermSet returns the unique tokens of s as a set.
func TermSet(s string) map[string]struct{} {
	toks := Tokenize(s)
	out := make(map[string]struct{}, len(toks))
	for _, t := range toks {
		out[t] = struct{}{}
	}
	return out
}

// Unique drops repeated tokens, keeping the first occurrence.
func Unique(tokens []string) []string {
	if len(tokens) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

func keep(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) || unicode.IsSpace(r) {
		return true
	}
	return strings.ContainsRune(allowedPunct, r)
}
