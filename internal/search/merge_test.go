package search

import (
	"reflect"
	"testing"
)

func TestMerge_KeepsMaxScorePerID(t *testing.T) {
	got := Merge(0,
		[]Hit{{ID: "x", Score: 5, Title: "lexical"}},
		[]Hit{{ID: "x", Score: 12, Title: "approx"}},
		[]Hit{{ID: "x", Score: 3}},
	)
	if len(got) != 1 || got[0].Score != 12 || got[0].Title != "approx" {
		t.Fatalf("Merge = %+v", got)
	}
}

func TestMerge_OrderAndTruncate(t *testing.T) {
	lex := []Hit{{ID: "b", Score: 2.5}, {ID: "a", Score: 2.5}, {ID: "c", Score: 1}}
	dict := []Hit{{ID: "entity:japan", Score: EntityScore}}
	apx := WithScore([]Hit{{ID: "d", Score: 0.4}}, ApproxScore)

	got := Merge(3, dict, lex, apx)
	want := []string{"entity:japan", "d", "a"}
	if !reflect.DeepEqual(ids(got), want) {
		t.Fatalf("Merge order = %v, want %v", ids(got), want)
	}
	if all := Merge(-1, dict, lex, apx); len(all) != 5 {
		t.Fatalf("topK<=0 should keep all, got %d", len(all))
	}
	if Merge(5) == nil || len(Merge(5)) != 0 {
		t.Fatalf("no lists should give an empty result")
	}
}

func TestWithScore_DoesNotMutateInput(t *testing.T) {
	in := []Hit{{ID: "a", Score: 0.3}}
	out := WithScore(in, ApproxScore)
	if in[0].Score != 0.3 || out[0].Score != ApproxScore {
		t.Fatalf("in=%+v out=%+v", in, out)
	}
}
