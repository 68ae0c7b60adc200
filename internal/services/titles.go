package services

import (
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	defaultTitleNew      = "New chat"
	defaultTitleUntitled = "Untitled"

	defaultTitleMaxLen = 60
	autoTitleWords     = 8
)

var (
	whitespaceRE = regexp.MustCompile(`\s+`)
	titleWordRE  = regexp.MustCompile(`[\p{L}]+[\p{N}]*`)
)

// titleStopWords are skipped when deriving a title from a prompt.
var titleStopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "of": {}, "to": {}, "in": {},
	"is": {}, "are": {}, "for": {}, "on": {}, "with": {}, "by": {}, "from": {},
	"at": {}, "as": {}, "that": {}, "this": {}, "it": {}, "be": {}, "was": {}, "were": {},
	"what": {}, "who": {}, "how": {}, "me": {}, "tell": {}, "about": {},
}

// normalizeTitle trims and collapses internal whitespace.
func normalizeTitle(s string) string {
	return whitespaceRE.ReplaceAllString(strings.TrimSpace(s), " ")
}

// clipRunes truncates s to max runes; max <= 0 uses defaultTitleMaxLen.
func clipRunes(s string, max int) string {
	if max <= 0 {
		max = defaultTitleMaxLen
	}
	if utf8.RuneCountInString(s) > max {
		return string([]rune(s)[:max])
	}
	return s
}

// isPlaceholderTitle reports whether a chat still carries a default title.
func isPlaceholderTitle(t string) bool {
	t = strings.ToLower(strings.TrimSpace(t))
	return t == "" || t == strings.ToLower(defaultTitleNew) || t == strings.ToLower(defaultTitleUntitled)
}

// titleFromPrompt title-cases up to autoTitleWords non-stop words of prompt.
func titleFromPrompt(prompt string, tag language.Tag) string {
	if tag == language.Und {
		tag = language.English
	}
	caser := cases.Title(tag)
	out := make([]string, 0, autoTitleWords)
	for _, w := range titleWordRE.FindAllString(strings.ToLower(prompt), -1) {
		if _, skip := titleStopWords[w]; skip {
			continue
		}
		out = append(out, caser.String(w))
		if len(out) == autoTitleWords {
			break
		}
	}
	return strings.Join(out, " ")
}
