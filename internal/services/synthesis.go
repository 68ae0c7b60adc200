package services

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-kb-retrieval/internal/search"
	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

const (
	// shortSentenceTerms is the term-set size at or below which a sentence
	// earns shortSentenceBonus.
	shortSentenceTerms = 20
	shortSentenceBonus = 0.1
	// answerSentences is how many sentences an answer joins.
	answerSentences = 2
	// fallbackSnippetRunes bounds the snippet used when a chunk has no sentence.
	fallbackSnippetRunes = 200
)

var sentenceEnd = regexp.MustCompile(`[.?!]\s+`)

// splitSentences splits after terminal punctuation followed by whitespace.
func splitSentences(text string) []string {
	var out []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		if s := strings.TrimSpace(text[start : loc[0]+1]); s != "" {
			out = append(out, s)
		}
		start = loc[1]
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		out = append(out, s)
	}
	return out
}

type sentence struct {
	text   string
	source string
	score  float64
}

// Synthesize builds a short answer from hits: the best sentence of each hit
// (most query-term overlap, small bonus for short sentences) is ranked by its
// own score plus the hit score, and the top two are joined and cited with the
// source of the best one. It returns "" when hits is empty.
func Synthesize(query string, hits []search.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	qterms := textnorm.TermSet(query)

	picked := make([]sentence, 0, len(hits))
	for _, h := range hits {
		src := h.Title
		if src == "" {
			src = h.ID
		}
		best, bestScore := "", -1.0
		for _, s := range splitSentences(h.Text) {
			terms := textnorm.TermSet(s)
			sc := 0.0
			for t := range qterms {
				if _, ok := terms[t]; ok {
					sc++
				}
			}
			if len(terms) <= shortSentenceTerms {
				sc += shortSentenceBonus
			}
			if sc > bestScore {
				best, bestScore = s, sc
			}
		}
		if best == "" {
			picked = append(picked, sentence{text: snippet(h.Text), source: src, score: h.Score})
			continue
		}
		picked = append(picked, sentence{text: best, source: src, score: bestScore + h.Score})
	}

	sort.SliceStable(picked, func(i, j int) bool { return picked[i].score > picked[j].score })

	n := min(answerSentences, len(picked))
	parts := make([]string, 0, n)
	for _, s := range picked[:n] {
		if s.text != "" {
			parts = append(parts, s.text)
		}
	}
	out := strings.Join(parts, " ")
	if src := picked[0].source; src != "" {
		out += " (source: " + src + ")"
	}
	return out
}

func snippet(text string) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= fallbackSnippetRunes {
		return text
	}
	return strings.TrimSpace(string([]rune(text)[:fallbackSnippetRunes]))
}
