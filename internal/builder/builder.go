// Package builder turns a folder of plain-text and markdown documents into
// importable chunk records with precomputed shingles and MinHash signatures.
package builder

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"

	"github.com/tbourn/go-kb-retrieval/internal/chunker"
	"github.com/tbourn/go-kb-retrieval/internal/domain"
	"github.com/tbourn/go-kb-retrieval/internal/minhash"
	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

// Extensions read by Build. Markdown tables are flattened first.
const (
	ExtText     = ".txt"
	ExtMarkdown = ".md"
)

// Builder chunks documents. The zero value is not usable; call New.
type Builder struct {
	size int
	gen  *minhash.Generator
	log  zerolog.Logger
}

type Option func(*Builder)

// WithChunkSize sets the tokens per chunk (non-positive means chunker.DefaultSize).
func WithChunkSize(n int) Option { return func(b *Builder) { b.size = n } }

// WithGenerator sets the signature generator.
func WithGenerator(g *minhash.Generator) Option {
	return func(b *Builder) {
		if g != nil {
			b.gen = g
		}
	}
}

func WithLogger(l zerolog.Logger) Option { return func(b *Builder) { b.log = l } }

func New(opts ...Option) *Builder {
	b := &Builder{size: chunker.DefaultSize, gen: minhash.New(), log: zerolog.Nop()}
	for _, o := range opts {
		o(b)
	}
	return b
}

// Build reads every .txt and .md file directly under dir, in name order, and
// returns their chunks. Hidden files and subdirectories are ignored.
func (b *Builder) Build(dir string) ([]domain.Chunk, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() && isSource(e.Name()) {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	var out []domain.Chunk
	for _, name := range names {
		chunks, err := b.BuildFile(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		b.log.Info().Str("file", name).Int("chunks", len(chunks)).Msg("processed")
		out = append(out, chunks...)
	}
	return out, nil
}

// BuildFile chunks one document. The title is the file name without its
// extension.
func (b *Builder) BuildFile(path string) ([]domain.Chunk, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := filepath.Ext(path)
	if strings.EqualFold(ext, ExtMarkdown) {
		if raw, err = FlattenMarkdown(raw); err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	title := strings.TrimSuffix(filepath.Base(path), ext)
	return b.Chunks(title, string(raw)), nil
}

// Chunks normalizes text, splits it into windows and attaches shingles and
// a signature to each.
func (b *Builder) Chunks(title, text string) []domain.Chunk {
	pieces := chunker.Split(title, textnorm.Tokenize(text), b.size)
	out := make([]domain.Chunk, 0, len(pieces))
	for _, p := range pieces {
		sh, sig := b.gen.FromText(p.Text)
		out = append(out, domain.Chunk{
			ID:        p.ID,
			Title:     title,
			Text:      p.Text,
			Shingles:  sh,
			Signature: sig,
		})
	}
	return out
}

// FlattenMarkdown rewrites markdown table rows as standalone lines so each
// row reads as one fact. Separator rows (|---|:--:|) are dropped and blank
// runs collapse to a single blank line.
func FlattenMarkdown(src []byte) ([]byte, error) {
	var b bytes.Buffer
	sc := bufio.NewScanner(bytes.NewReader(src))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	blank := true // no leading blank line
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			if !blank {
				b.WriteByte('\n')
				blank = true
			}
			continue
		}
		if strings.HasPrefix(line, "|") && strings.HasSuffix(line, "|") {
			cells := tableCells(line)
			if len(cells) == 0 {
				continue
			}
			line = strings.Join(cells, " ")
		}
		b.WriteString(line)
		b.WriteByte('\n')
		blank = false
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return b.Bytes(), nil
}

// tableCells returns the non-empty cells of a table row, or nil for a
// separator row.
func tableCells(row string) []string {
	cols := strings.Split(strings.Trim(row, "|"), "|")
	cells := make([]string, 0, len(cols))
	sep := true
	for _, c := range cols {
		cell := strings.TrimSpace(c)
		if strings.Trim(cell, ":- ") != "" {
			sep = false
		}
		if cell != "" {
			cells = append(cells, cell)
		}
	}
	if sep {
		return nil
	}
	return cells
}

// WriteJSON encodes chunks as an indented JSON array, the import payload
// format.
func WriteJSON(w io.Writer, chunks []domain.Chunk) error {
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(chunks)
}

// WriteFile writes chunks to path, creating parent directories. The file is
// replaced atomically.
func WriteFile(path string, chunks []domain.Chunk) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".chunks-*.json")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := WriteJSON(tmp, chunks); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func isSource(name string) bool {
	if strings.HasPrefix(name, ".") {
		return false
	}
	switch strings.ToLower(filepath.Ext(name)) {
	case ExtText, ExtMarkdown:
		return true
	}
	return false
}
