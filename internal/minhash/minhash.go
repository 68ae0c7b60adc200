// Package minhash derives character shingles and fixed-length MinHash
// signatures from text, and estimates Jaccard similarity between signatures.
//
// The hash and seeding scheme are part of the on-disk contract: signatures
// computed by the offline builder, by the importer and at query time must be
// produced by the same Generator parameters to be comparable.
package minhash

import (
	"math"
	"sort"
	"unicode/utf16"

	"github.com/tbourn/go-kb-retrieval/internal/textnorm"
)

const (
	// DefaultShingleSize is the default shingle length in runes.
	DefaultShingleSize = 5
	// DefaultChannels is the default signature length.
	DefaultChannels = 128
	// DefaultSeedBase is XORed with the channel index to seed each channel.
	DefaultSeedBase uint32 = 0x9e3779b9
)

// Signature is a vector of per-channel minimum hash values.
type Signature []uint32

// Option configures a Generator.
type Option func(*Generator)

// WithChannels sets the signature length. Non-positive values are ignored.
func WithChannels(k int) Option {
	return func(g *Generator) {
		if k > 0 {
			g.channels = k
		}
	}
}

// WithShingleSize sets the shingle length. Non-positive values are ignored.
func WithShingleSize(k int) Option {
	return func(g *Generator) {
		if k > 0 {
			g.shingleSize = k
		}
	}
}

// WithSeedBase sets the seed base.
func WithSeedBase(seed uint32) Option {
	return func(g *Generator) { g.seedBase = seed }
}

// Generator computes shingles and signatures with fixed parameters.
// A Generator is immutable and safe for concurrent use.
type Generator struct {
	channels    int
	shingleSize int
	seedBase    uint32
}

// New returns a Generator with the defaults overridden by opts.
func New(opts ...Option) *Generator {
	g := &Generator{
		channels:    DefaultChannels,
		shingleSize: DefaultShingleSize,
		seedBase:    DefaultSeedBase,
	}
	for _, o := range opts {
		o(g)
	}
	return g
}

// Channels returns the signature length K.
func (g *Generator) Channels() int { return g.channels }

// ShingleSize returns the shingle length in runes.
func (g *Generator) ShingleSize() int { return g.shingleSize }

// SeedBase returns the seed base.
func (g *Generator) SeedBase() uint32 { return g.seedBase }

// Shingles returns the shingle set of text using the generator's shingle size.
func (g *Generator) Shingles(text string) []string {
	return Shingles(text, g.shingleSize)
}

// Signature computes the MinHash signature of a shingle set. Duplicate
// shingles do not change the result. An empty set yields the all-max
// signature.
func (g *Generator) Signature(shingles []string) Signature {
	sig := make(Signature, g.channels)
	for i := range sig {
		sig[i] = math.MaxUint32
	}
	for _, s := range shingles {
		units := utf16.Encode([]rune(s))
		for i := range sig {
			if h := hashUnits(units, g.seedBase^uint32(i)); h < sig[i] {
				sig[i] = h
			}
		}
	}
	return sig
}

// FromText returns both the shingle set and the signature of text.
func (g *Generator) FromText(text string) ([]string, Signature) {
	sh := g.Shingles(text)
	return sh, g.Signature(sh)
}

// Valid reports whether sig has the generator's length.
func (g *Generator) Valid(sig []uint32) bool {
	return len(sig) == g.channels
}

// Shingles returns every contiguous k-rune substring of the normalized,
// whitespace-collapsed text, deduplicated and sorted. Text shorter than k
// runes has no shingles.
func Shingles(text string, k int) []string {
	if k <= 0 {
		k = DefaultShingleSize
	}
	rs := []rune(textnorm.Normalize(text))
	if len(rs) < k {
		return nil
	}
	seen := make(map[string]struct{}, len(rs))
	out := make([]string, 0, len(rs)-k+1)
	for i := 0; i+k <= len(rs); i++ {
		s := string(rs[i : i+k])
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// Hash32 is the Jenkins one-at-a-time hash of s, taken over its UTF-16 code
// units and started from seed.
func Hash32(s string, seed uint32) uint32 {
	return hashUnits(utf16.Encode([]rune(s)), seed)
}

func hashUnits(units []uint16, seed uint32) uint32 {
	h := seed
	for _, u := range units {
		h += uint32(u)
		h += h << 10
		h ^= h >> 6
	}
	h += h << 3
	h ^= h >> 11
	h += h << 15
	return h
}

// JaccardEstimate returns the fraction of channels on which a and b agree.
// Signatures of different (or zero) length are never similar.
func JaccardEstimate(a, b []uint32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	same := 0
	for i := range a {
		if a[i] == b[i] {
			same++
		}
	}
	return float64(same) / float64(len(a))
}
