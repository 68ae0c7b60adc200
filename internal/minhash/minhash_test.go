package minhash

import (
	"math"
	"reflect"
	"sort"
	"testing"
)

func TestShingles_SortedUnique(t *testing.T) {
	got := Shingles("Abab ab", 3)
	// normalized: "abab ab"
	want := []string{" ab", "aba", "b a", "bab", "ab "}
	sort.Strings(want)
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Shingles = %#v, want %#v", got, want)
	}
	if !sort.StringsAreSorted(got) {
		t.Fatalf("shingles not sorted: %#v", got)
	}
}

func TestShingles_ShortText(t *testing.T) {
	if sh := Shingles("abcd", 5); sh != nil {
		t.Fatalf("expected no shingles, got %#v", sh)
	}
	if sh := Shingles("   ", 5); sh != nil {
		t.Fatalf("expected no shingles for blank text, got %#v", sh)
	}
	// runes, not bytes
	if sh := Shingles("ééééé", 5); len(sh) != 1 {
		t.Fatalf("expected one rune shingle, got %#v", sh)
	}
}

func TestHash32_KnownValues(t *testing.T) {
	// seed 0, empty input stays 0 through the final avalanche
	if h := Hash32("", 0); h != 0 {
		t.Fatalf("Hash32(\"\", 0) = %d, want 0", h)
	}
	// Jenkins one-at-a-time reference value for "a" with zero seed
	if h := Hash32("a", 0); h != 0xca2e9442 {
		t.Fatalf("Hash32(\"a\", 0) = %#x, want 0xca2e9442", h)
	}
	if Hash32("hello", 1) == Hash32("hello", 2) {
		t.Fatalf("different seeds should give different hashes")
	}
}

func TestHash32_UTF16Units(t *testing.T) {
	// astral runes hash as a surrogate pair
	a := Hash32("\U0001F600", 7)
	b := hashUnits([]uint16{0xD83D, 0xDE00}, 7)
	if a != b {
		t.Fatalf("astral rune hashed as %#x, surrogate pair as %#x", a, b)
	}
}

func TestSignature_Deterministic(t *testing.T) {
	g := New()
	text := "The capital of Japan is Tokyo. Tokyo is a large city."
	_, a := g.FromText(text)
	_, b := New().FromText(text)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("signature not deterministic")
	}
	if len(a) != DefaultChannels {
		t.Fatalf("len = %d, want %d", len(a), DefaultChannels)
	}
}

func TestSignature_DuplicateShinglesIgnored(t *testing.T) {
	g := New(WithChannels(16))
	a := g.Signature([]string{"alpha", "beta"})
	b := g.Signature([]string{"beta", "alpha", "alpha"})
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("duplicates or order changed the signature")
	}
}

func TestSignature_EmptyIsAllMax(t *testing.T) {
	sig := New(WithChannels(8)).Signature(nil)
	for i, v := range sig {
		if v != math.MaxUint32 {
			t.Fatalf("channel %d = %d, want max", i, v)
		}
	}
}

func TestOptions(t *testing.T) {
	g := New(WithChannels(0), WithShingleSize(-1), WithSeedBase(42))
	if g.Channels() != DefaultChannels || g.ShingleSize() != DefaultShingleSize {
		t.Fatalf("non-positive options should be ignored: %d %d", g.Channels(), g.ShingleSize())
	}
	if g.SeedBase() != 42 {
		t.Fatalf("seed base = %d", g.SeedBase())
	}
	if !g.Valid(make([]uint32, DefaultChannels)) || g.Valid(make([]uint32, 3)) {
		t.Fatalf("Valid mismatch")
	}
}

func TestJaccardEstimate(t *testing.T) {
	_, sig := New().FromText("some reasonably long sentence about rivers and mountains")
	if got := JaccardEstimate(sig, sig); got != 1 {
		t.Fatalf("self similarity = %v, want 1", got)
	}
	if got := JaccardEstimate(sig, sig[:10]); got != 0 {
		t.Fatalf("length mismatch should be 0, got %v", got)
	}
	if got := JaccardEstimate(nil, nil); got != 0 {
		t.Fatalf("empty signatures should be 0, got %v", got)
	}
	if got := JaccardEstimate([]uint32{1, 2, 3, 4}, []uint32{1, 9, 3, 9}); got != 0.5 {
		t.Fatalf("half match = %v, want 0.5", got)
	}
}

func TestJaccardEstimate_NearDuplicates(t *testing.T) {
	g := New()
	a := "Mount Fuji is the highest mountain in Japan and an active stratovolcano " +
		"located on the island of Honshu near the Pacific coast with a symmetrical cone"
	b := "Mount Fuji is the tallest mountain in Japan and an active stratovolcano " +
		"located on the island of Honshu near the Pacific shore with a symmetrical cone"
	_, sa := g.FromText(a)
	_, sb := g.FromText(b)
	if got := JaccardEstimate(sa, sb); got <= 0.18 {
		t.Fatalf("near duplicates estimate = %v, want > 0.18", got)
	}

	_, sc := g.FromText("completely different words concerning quantum chromodynamics experiments")
	if JaccardEstimate(sa, sc) >= JaccardEstimate(sa, sb) {
		t.Fatalf("unrelated text should be less similar than a near duplicate")
	}
}
