package vocab

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCreateCloze(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		sentence string
		word     string
		want     string
	}{
		{"scenario", "The cat sat. Cats meow!", "cat", "The [...] sat. Cats meow!"},
		{"case insensitive", "Cat and CAT and cat.", "cAt", "[...] and [...] and [...]."},
		{"inside other word", "A category of cats.", "cat", "A category of cats."},
		{"absent", "Nothing to see here.", "zebra", "Nothing to see here."},
		{"empty word", "The cat sat.", "", "The cat sat."},
		{"empty sentence", "", "cat", ""},
		{"regexp metachars", "Is it a+b or c?", "a+b", "Is it [...] or c?"},
		{"parens", "Call f(x) now", "f(x)", "Call [...] now"},
		{"dot not wildcard", "cat cot c.t", "c.t", "cat cot [...]"},
		{"backslash", `path a\b here`, `a\b`, `path [...] here`},
		{"contraction", "Don't you know? don't!", "don't", "[...] you know? [...]!"},
		{"hyphenated", "A well-known fact, well known.", "well-known", "A [...] fact, well known."},
		{"unicode boundary", "Un café, deux cafés.", "café", "Un [...], deux cafés."},
		{"unicode fold", "ÉCOLE et école", "école", "[...] et [...]"},
		{"adjacent punctuation", "(cat)", "cat", "([...])"},
		{"overlapping candidates", "aaa aa", "aa", "aaa [...]"},
		{"underscore is word char", "snake_cat cat", "cat", "snake_cat [...]"},
		{"digits are word chars", "cat9 cat", "cat", "cat9 [...]"},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			assert.Equal(t, c.want, CreateCloze(c.sentence, c.word))
		})
	}
}

func TestCreateCloze_UnchangedWhenAbsent(t *testing.T) {
	t.Parallel()

	sentences := []string{"", "The cat sat.", "Cats meow!", "category", "dog-cat"}
	for _, s := range sentences {
		out := CreateCloze(s, "bird")
		assert.Equal(t, s, out)
	}
}

func TestCreateCloze_NeverPanics(t *testing.T) {
	t.Parallel()

	words := []string{"[", "(", "*", "\\", "?", "^$", "\xff", " ", "{1,2}"}
	for _, w := range words {
		assert.NotPanics(t, func() { CreateCloze("a [ ( * \\ ? ^$ {1,2} b", w) })
	}
}
