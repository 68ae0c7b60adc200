package textnorm

import (
	"reflect"
	"testing"
)

func TestNormalize_Basics(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"", ""},
		{"   ", ""},
		{"Hello,   WORLD!", "hello world"},
		{"The capital of Japan is Tokyo.", "the capital of japan is tokyo."},
		{"don’t “quote” me", "don't quote me"},
		{"a_b•c", "a b c"},
		{"x^2 + (y*3) / 4 - 1", "x 2 + (y*3) / 4 - 1"},
		{"\tline one\r\nline two\n", "line one line two"},
		{"ﬁle ①", "file 1"}, // NFKC ligature and circled digit
		{"Ünïcödé", "ünïcödé"},
	}
	for _, c := range cases {
		if got := Normalize(c.in); got != c.want {
			t.Fatalf("Normalize(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	inputs := []string{
		"The capital of Japan is Tokyo. Tokyo is a large city.",
		"  MIXED case\ttext — with dashes – and “quotes” ‘single’  ",
		"ℌello ﬀ ＦＵＬＬＷＩＤＴＨ ① ² ½",
		"école café İstanbul ΣΊΣΥΦΟΣ",
		"emoji 😀 and symbols © ™ § ¶",
		"tabs\t\tand\nnewlines\r\n",
		"already normalized text",
		"",
	}
	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if once != twice {
			t.Fatalf("Normalize not idempotent for %q: %q != %q", in, once, twice)
		}
	}
}

func TestTokenize_DropsEmpties(t *testing.T) {
	got := Tokenize("  Alpha,, beta   GAMMA!! ")
	want := []string{"alpha", "beta", "gamma"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Tokenize = %#v, want %#v", got, want)
	}
	if toks := Tokenize("$$$ ### !!!"); toks != nil {
		t.Fatalf("expected nil tokens for unmappable input, got %#v", toks)
	}
}

func TestTermsAndTermSet(t *testing.T) {
	got := Terms("tokyo is tokyo and Tokyo is big")
	want := []string{"tokyo", "is", "and", "big"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Terms = %#v, want %#v", got, want)
	}

	set := TermSet("a b a c")
	if len(set) != 3 {
		t.Fatalf("TermSet size = %d, want 3", len(set))
	}
	for _, k := range []string{"a", "b", "c"} {
		if _, ok := set[k]; !ok {
			t.Fatalf("TermSet missing %q", k)
		}
	}

	if Unique(nil) != nil {
		t.Fatalf("Unique(nil) should be nil")
	}
}
