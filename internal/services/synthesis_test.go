package services

import (
	"reflect"
	"strings"
	"testing"

	"github.com/tbourn/go-kb-retrieval/internal/search"
)

func TestSplitSentences(t *testing.T) {
	got := splitSentences("Tokyo is big. Is it old?  Yes!It is.\nEnd")
	want := []string{"Tokyo is big.", "Is it old?", "Yes!It is.", "End"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("splitSentences = %#v, want %#v", got, want)
	}
	if splitSentences("   ") != nil {
		t.Fatalf("blank text should give no sentences")
	}
}

func TestSynthesize_Empty(t *testing.T) {
	if got := Synthesize("anything", nil); got != "" {
		t.Fatalf("Synthesize(nil) = %q", got)
	}
}

func TestSynthesize_PicksOverlappingSentencesAndCites(t *testing.T) {
	hits := []search.Hit{
		{ID: "geo#0", Title: "Geography", Score: 2.0,
			Text: "Japan is an island country. The capital of Japan is Tokyo. It has many volcanoes."},
		{ID: "fuji#0", Title: "Mount Fuji", Score: 1.0,
			Text: "Mount Fuji is the highest mountain in Japan. It is an active volcano."},
	}
	got := Synthesize("capital of japan", hits)
	want := "The capital of Japan is Tokyo. Mount Fuji is the highest mountain in Japan. (source: Geography)"
	if got != want {
		t.Fatalf("Synthesize = %q\nwant        %q", got, want)
	}
}

func TestSynthesize_SingleHitAndIDFallback(t *testing.T) {
	got := Synthesize("water", []search.Hit{{ID: "w#0", Text: "Water boils at 100 degrees."}})
	if got != "Water boils at 100 degrees. (source: w#0)" {
		t.Fatalf("Synthesize = %q", got)
	}
}

func TestSynthesize_NoSentenceUsesSnippet(t *testing.T) {
	got := Synthesize("x", []search.Hit{{ID: "e", Title: "Empty", Text: "   "}})
	if got != " (source: Empty)" {
		t.Fatalf("Synthesize = %q", got)
	}
	long := strings.Repeat("a", 300)
	if s := snippet(long); len(s) != fallbackSnippetRunes {
		t.Fatalf("snippet len = %d", len(s))
	}
}
