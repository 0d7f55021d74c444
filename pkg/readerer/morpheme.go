package readerer

import (
	"strings"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"
)

// MorphemeSegmenter splits text without word spacing (Japanese) into
// morphemes so that every word becomes clickable on its own.
type MorphemeSegmenter struct {
	t *tokenizer.Tokenizer
}

// NewMorphemeSegmenter creates a segmenter backed by the IPA dictionary.
func NewMorphemeSegmenter() (*MorphemeSegmenter, error) {
	t, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, err
	}
	return &MorphemeSegmenter{t: t}, nil
}

// Segment splits whitespace runs first, then breaks every word run into
// morphemes. Offsets stay relative to text.
func (m *MorphemeSegmenter) Segment(text string) []Segment {
	var out []Segment
	for _, seg := range Tokenize(text) {
		if seg.Kind == KindSpace {
			out = append(out, seg)
			continue
		}
		out = append(out, m.split(seg)...)
	}
	return out
}

// split maps kagome surfaces back onto the run. Anything the tokenizer skips
// is kept as its own word so the run is always covered.
func (m *MorphemeSegmenter) split(run Segment) []Segment {
	var out []Segment
	cursor := 0
	for _, tok := range m.t.Tokenize(run.Text) {
		if tok.Class == tokenizer.DUMMY || tok.Surface == "" {
			continue
		}
		idx := strings.Index(run.Text[cursor:], tok.Surface)
		if idx < 0 {
			break
		}
		if idx > 0 {
			out = append(out, Segment{Text: run.Text[cursor : cursor+idx], Start: run.Start + cursor, Kind: KindWord})
			cursor += idx
		}
		kind := KindWord
		if isSymbol(tok) {
			kind = KindSymbol
		}
		out = append(out, Segment{Text: tok.Surface, Start: run.Start + cursor, Kind: kind})
		cursor += len(tok.Surface)
	}
	if cursor < len(run.Text) {
		out = append(out, Segment{Text: run.Text[cursor:], Start: run.Start + cursor, Kind: KindWord})
	}
	return out
}

// isSymbol reports whether kagome tagged tok as punctuation (記号).
func isSymbol(tok tokenizer.Token) bool {
	pos := tok.POS()
	return len(pos) > 0 && pos[0] == "記号"
}

// Lemmatizer maps an inflected word to its dictionary form.
type Lemmatizer interface {
	Lemma(word string) string
}

// Lemma returns the dictionary form of word, or word itself when the
// dictionary has none (e.g. "行っ" -> "行く").
func (m *MorphemeSegmenter) Lemma(word string) string {
	tokens := m.t.Tokenize(word)
	if len(tokens) != 1 {
		return word
	}

	// Kagome IPA features:
	// 0: Part of Speech ... 6: Base Form (Lemma) 7: Reading
	features := tokens[0].Features()
	if len(features) > 6 && features[6] != "*" && features[6] != "" {
		return features[6]
	}
	return word
}
