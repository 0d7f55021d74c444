package vocab

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ClozePlaceholder replaces the target word in cloze sentences.
const ClozePlaceholder = "[...]"

// CreateCloze masks every whole-word, case-insensitive occurrence of word in
// sentence. "cat" is masked in "The cat sat" but not inside "category" or "Cats".
// The word is matched literally, so regexp metacharacters are harmless.
// An empty word or a word that does not occur leaves sentence unchanged.
func CreateCloze(sentence, word string) string {
	if word == "" || sentence == "" {
		return sentence
	}
	re, err := regexp.Compile(`(?i)` + regexp.QuoteMeta(word))
	if err != nil {
		return sentence
	}

	first, _ := utf8.DecodeRuneInString(word)
	last, _ := utf8.DecodeLastRuneInString(word)
	needStart, needEnd := isWordRune(first), isWordRune(last)

	var b strings.Builder
	copied, pos := 0, 0
	for pos <= len(sentence) {
		loc := re.FindStringIndex(sentence[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if end == start {
			break
		}
		if (needStart && wordBefore(sentence, start)) || (needEnd && wordAfter(sentence, end)) {
			_, size := utf8.DecodeRuneInString(sentence[start:])
			pos = start + size
			continue
		}
		b.WriteString(sentence[copied:start])
		b.WriteString(ClozePlaceholder)
		copied, pos = end, end
	}
	if copied == 0 {
		return sentence
	}
	b.WriteString(sentence[copied:])
	return b.String()
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r)
}

func wordBefore(s string, i int) bool {
	if i == 0 {
		return false
	}
	r, _ := utf8.DecodeLastRuneInString(s[:i])
	return isWordRune(r)
}

func wordAfter(s string, i int) bool {
	if i >= len(s) {
		return false
	}
	r, _ := utf8.DecodeRuneInString(s[i:])
	return isWordRune(r)
}
