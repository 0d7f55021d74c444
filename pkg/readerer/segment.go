package readerer

import (
	"sort"
	"strings"
	"unicode"
)

// SegmentKind tells word-like spans from whitespace.
type SegmentKind int

const (
	KindWord SegmentKind = iota
	KindSpace
	// KindSymbol is punctuation split off by a morpheme segmenter. It is
	// displayed but cannot be selected.
	KindSymbol
)

func (k SegmentKind) String() string {
	switch k {
	case KindSpace:
		return "space"
	case KindSymbol:
		return "symbol"
	}
	return "word"
}

// Punctuation is the fixed set stripped from both ends of a word.
const Punctuation = `.,!?;:"'()[]{}`

// Segment is one contiguous span of the document text.
// Start is a byte offset into the text the segment was produced from.
type Segment struct {
	Text  string
	Start int
	Kind  SegmentKind
}

// End returns the offset one past the last byte of the segment.
func (s Segment) End() int { return s.Start + len(s.Text) }

// Clickable reports whether the segment can be selected by the reader.
// Words that clean to an empty string are still clickable.
func (s Segment) Clickable() bool { return s.Kind == KindWord }

// CleanWord returns the segment text with the leading and trailing run of
// punctuation removed. Punctuation inside the word is kept ("don't", "well-known").
// Only word segments have a clean word.
func (s Segment) CleanWord() string {
	if s.Kind != KindWord {
		return ""
	}
	return CleanWord(s.Text)
}

// CleanWord strips leading and trailing Punctuation from w.
func CleanWord(w string) string {
	return strings.TrimRight(strings.TrimLeft(w, Punctuation), Punctuation)
}

// Segmenter turns document text into segments.
// Implementations must return contiguous segments that rebuild the text exactly.
type Segmenter interface {
	Segment(text string) []Segment
}

// SegmenterFunc adapts a function to the Segmenter interface.
type SegmenterFunc func(text string) []Segment

func (f SegmenterFunc) Segment(text string) []Segment { return f(text) }

// Whitespace is the default segmenter: runs of whitespace alternate with runs
// of everything else.
var Whitespace Segmenter = SegmenterFunc(Tokenize)

// Tokenize splits text into alternating word and whitespace segments.
// Concatenating the Text of the result reproduces text exactly.
func Tokenize(text string) []Segment {
	if text == "" {
		return nil
	}

	var out []Segment
	start := 0
	inSpace := false
	for i, r := range text {
		space := unicode.IsSpace(r)
		if i == 0 {
			inSpace = space
			continue
		}
		if space == inSpace {
			continue
		}
		out = append(out, newSegment(text[start:i], start, inSpace))
		start = i
		inSpace = space
	}
	out = append(out, newSegment(text[start:], start, inSpace))
	return out
}

func newSegment(text string, start int, space bool) Segment {
	kind := KindWord
	if space {
		kind = KindSpace
	}
	return Segment{Text: text, Start: start, Kind: kind}
}

// WordAt returns the index of the segment covering offset, or -1 when the
// offset falls outside all segments. Segments must be sorted by Start.
func WordAt(segments []Segment, offset int) int {
	i := sort.Search(len(segments), func(i int) bool {
		return segments[i].End() > offset
	})
	if i == len(segments) || segments[i].Start > offset {
		return -1
	}
	return i
}
