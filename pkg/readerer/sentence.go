package readerer

import "strings"

func isTerminator(b byte) bool {
	return b == '.' || b == '!' || b == '?'
}

// SentenceSpan returns the byte range [start, end) of the sentence around
// offset. The range includes the closing terminator when there is one.
// Offsets outside the text are clamped.
//
// Any '.', '!' or '?' ends a sentence, including those inside abbreviations
// and decimal numbers.
func SentenceSpan(text string, offset int) (start, end int) {
	if offset < 0 {
		offset = 0
	}
	if offset > len(text) {
		offset = len(text)
	}

	start = offset
	for start > 0 && !isTerminator(text[start-1]) {
		start--
	}

	end = offset
	for end < len(text) && !isTerminator(text[end]) {
		end++
	}
	if end < len(text) {
		end++
	}
	return start, end
}

// ResolveSentence returns the trimmed sentence of text that contains offset.
// Text without terminators is a single sentence.
func ResolveSentence(text string, offset int) string {
	start, end := SentenceSpan(text, offset)
	return strings.TrimSpace(text[start:end])
}
