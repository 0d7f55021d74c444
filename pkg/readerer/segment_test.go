package readerer

import (
	"strings"
	"testing"
)

var corpus = []string{
	"",
	" ",
	"word",
	"The cat sat. Cats meow!",
	"  leading and trailing  ",
	"tabs\tand\nnewlines\r\n\r\nparagraphs",
	"\"Quoted,\" she said (quietly).",
	"don't stop the well-known e.g. 3.14 value?",
	"Übergrößenträger café naïve — emdash…",
	"猫が好きです。 犬も好き！",
	"...!!!",
	"a b c",
	"\xffbroken utf8\xfe",
}

func TestTokenizeReconstructs(t *testing.T) {
	for _, s := range corpus {
		var b strings.Builder
		for _, seg := range Tokenize(s) {
			b.WriteString(seg.Text)
		}
		if b.String() != s {
			t.Errorf("reconstruction mismatch for %q: got %q", s, b.String())
		}
	}
}

func TestTokenizeOffsets(t *testing.T) {
	for _, s := range corpus {
		next := 0
		for _, seg := range Tokenize(s) {
			if seg.Start != next {
				t.Fatalf("%q: segment %q starts at %d, want %d", s, seg.Text, seg.Start, next)
			}
			if s[seg.Start:seg.End()] != seg.Text {
				t.Fatalf("%q: offset mismatch for %q", s, seg.Text)
			}
			if seg.Text == "" {
				t.Fatalf("%q: empty segment at %d", s, seg.Start)
			}
			next = seg.End()
		}
	}
}

func TestTokenizeAlternatesKinds(t *testing.T) {
	for _, s := range corpus {
		segs := Tokenize(s)
		for i := 1; i < len(segs); i++ {
			if segs[i].Kind == segs[i-1].Kind {
				t.Fatalf("%q: adjacent segments %q and %q share kind %v", s, segs[i-1].Text, segs[i].Text, segs[i].Kind)
			}
		}
	}
}

func TestTokenizeEmpty(t *testing.T) {
	if segs := Tokenize(""); len(segs) != 0 {
		t.Fatalf("expected no segments, got %v", segs)
	}
}

func TestTokenizeScenario(t *testing.T) {
	text := "The cat sat. Cats meow!"
	segs := Tokenize(text)
	want := []Segment{
		{"The", 0, KindWord},
		{" ", 3, KindSpace},
		{"cat", 4, KindWord},
		{" ", 7, KindSpace},
		{"sat.", 8, KindWord},
		{" ", 12, KindSpace},
		{"Cats", 13, KindWord},
		{" ", 17, KindSpace},
		{"meow!", 18, KindWord},
	}
	if len(segs) != len(want) {
		t.Fatalf("got %d segments, want %d: %v", len(segs), len(want), segs)
	}
	for i := range want {
		if segs[i] != want[i] {
			t.Errorf("segment %d = %+v, want %+v", i, segs[i], want[i])
		}
	}
	if segs[4].CleanWord() != "sat" {
		t.Errorf("CleanWord(sat.) = %q", segs[4].CleanWord())
	}
	if segs[1].Clickable() || !segs[2].Clickable() {
		t.Errorf("whitespace must not be clickable, words must be")
	}
}

func TestCleanWord(t *testing.T) {
	cases := map[string]string{
		"cat":         "cat",
		"cat.":        "cat",
		"(cat),":      "cat",
		"\"Quoted,\"": "Quoted",
		"don't":       "don't",
		"well-known":  "well-known",
		"e.g.":        "e.g",
		"...":         "",
		"[{x}]":       "x",
		"—dash—":      "—dash—",
		"'tis":        "tis",
		"¿qué?":       "¿qué",
	}
	for in, want := range cases {
		if got := CleanWord(in); got != want {
			t.Errorf("CleanWord(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCleanWordOnSpace(t *testing.T) {
	seg := Segment{Text: "  ", Kind: KindSpace}
	if got := seg.CleanWord(); got != "" {
		t.Fatalf("expected empty clean word for whitespace, got %q", got)
	}
}

func TestLonePunctuationStillClickable(t *testing.T) {
	segs := Tokenize("wait ... what")
	if !segs[2].Clickable() {
		t.Fatalf("punctuation-only word should be clickable")
	}
	if segs[2].CleanWord() != "" {
		t.Fatalf("expected empty clean word, got %q", segs[2].CleanWord())
	}
}

func TestWordAt(t *testing.T) {
	segs := Tokenize("The cat sat.")
	cases := []struct {
		offset int
		want   int
	}{
		{0, 0}, {2, 0}, {3, 1}, {4, 2}, {6, 2}, {7, 3}, {11, 4}, {12, -1}, {-1, -1},
	}
	for _, c := range cases {
		if got := WordAt(segs, c.offset); got != c.want {
			t.Errorf("WordAt(%d) = %d, want %d", c.offset, got, c.want)
		}
	}
	if WordAt(nil, 0) != -1 {
		t.Errorf("WordAt on empty segments should be -1")
	}
}

func TestSegmentKindString(t *testing.T) {
	if KindWord.String() != "word" || KindSpace.String() != "space" {
		t.Fatalf("unexpected kind names %q %q", KindWord, KindSpace)
	}
}
