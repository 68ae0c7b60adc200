package matchers

import (
	"strings"
	"unicode/utf8"

	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

const (
	// maxEditDistance bounds fuzzy key matches.
	maxEditDistance = 2
	// minFuzzyRunes is the shortest query considered for reverse containment
	// and fuzzy matching; shorter queries only match exactly or by word.
	minFuzzyRunes = 3
)

// findKey resolves q against sorted keys, trying in order:
//
//  1. exact match of the normalized query
//  2. a key occurring as whole words inside the query (longest key wins)
//  3. the query occurring inside a key (queries of at least minFuzzyRunes)
//  4. the closest key within maxEditDistance edits (queries longer than
//     minFuzzyRunes)
//
// Ties are broken by key order.
func findKey(keys []string, q string) (string, bool) {
	n := textnorm.Normalize(q)
	if n == "" || len(keys) == 0 {
		return "", false
	}
	for _, k := range keys {
		if k == n {
			return k, true
		}
	}

	padded := " " + n + " "
	best := ""
	for _, k := range keys {
		if strings.Contains(padded, " "+k+" ") && len(k) > len(best) {
			best = k
		}
	}
	if best != "" {
		return best, true
	}

	qLen := utf8.RuneCountInString(n)
	if qLen < minFuzzyRunes {
		return "", false
	}
	for _, k := range keys {
		if strings.Contains(k, n) {
			return k, true
		}
	}
	if qLen == minFuzzyRunes {
		return "", false
	}

	bestDist := maxEditDistance + 1
	for _, k := range keys {
		if d := levenshtein(n, k); d < bestDist {
			best, bestDist = k, d
		}
	}
	return best, best != ""
}

// levenshtein returns the rune edit distance between a and b.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min(prev[j]+1, cur[j-1]+1, prev[j-1]+cost)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
