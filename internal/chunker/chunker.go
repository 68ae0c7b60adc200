// Package chunker splits a document's token stream into fixed-size,
// non-overlapping windows with stable identifiers.
package chunker

import (
	"strconv"
	"strings"
)

// DefaultSize is the default number of tokens per chunk.
const DefaultSize = 200

// Piece is one window of a document.
type Piece struct {
	ID      string
	Ordinal int
	Text    string
}

// Split cuts tokens into ceil(len(tokens)/size) windows. The last window may
// be shorter. A non-positive size falls back to DefaultSize.
func Split(title string, tokens []string, size int) []Piece {
	if len(tokens) == 0 {
		return nil
	}
	if size <= 0 {
		size = DefaultSize
	}
	out := make([]Piece, 0, (len(tokens)+size-1)/size)
	for start, ord := 0, 0; start < len(tokens); start, ord = start+size, ord+1 {
		end := start + size
		if end > len(tokens) {
			end = len(tokens)
		}
		out = append(out, Piece{
			ID:      ID(title, ord),
			Ordinal: ord,
			Text:    strings.Join(tokens[start:end], " "),
		})
	}
	return out
}

// ID derives the chunk id from the document title and the zero-based ordinal.
// Whitespace runs in the title become a single underscore, so re-importing the
// same document always produces the same ids.
func ID(title string, ordinal int) string {
	return strings.Join(strings.Fields(title), "_") + "_" + strconv.Itoa(ordinal)
}
