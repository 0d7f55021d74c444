package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/japaniel/readerer/pkg/decoder"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/language"
	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/japaniel/readerer/pkg/vocab"
)

type fakeIngester struct {
	text     string
	language string
	err      error
}

func (f *fakeIngester) IngestFile(ctx context.Context, filename string, data []byte) (*ingest.Result, error) {
	if f.err != nil {
		return nil, f.err
	}
	text := f.text
	if len(data) > 0 {
		text = string(data)
	}
	return &ingest.Result{
		Document: decoder.Document{Title: filename, Format: "PDF", Text: text},
		Language: f.language,
		SourceID: 1,
	}, nil
}

func (f *fakeIngester) IngestURL(ctx context.Context, rawURL string) (*ingest.Result, error) {
	res, err := f.IngestFile(ctx, "article", nil)
	if err != nil {
		return nil, err
	}
	res.Document.URL = rawURL
	res.Document.Format = decoder.ArticleFormat
	return res, nil
}

type fakeLanguage struct {
	mu      sync.Mutex
	defs    map[string]string
	err     error
	calls   []string
	started chan string
	release chan struct{}
}

func (f *fakeLanguage) DetectLanguage(ctx context.Context, sample string) string {
	return language.DefaultLanguage
}

func (f *fakeLanguage) Detect(ctx context.Context, sample string) (string, error) {
	return language.DefaultLanguage, nil
}

func (f *fakeLanguage) LookupDefinition(ctx context.Context, word, lang string) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, word)
	started, release := f.started, f.release
	f.mu.Unlock()

	if started != nil {
		started <- word
	}
	if release != nil {
		select {
		case <-release:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if f.err != nil {
		return "", f.err
	}
	return f.defs[word], nil
}

func (f *fakeLanguage) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

const story = "The cat sat. Cats meow!"

func newLoaded(t *testing.T, lang *fakeLanguage) *Session {
	t.Helper()
	s := New(&fakeIngester{text: story, language: "English"}, lang, Options{})
	_, err := s.LoadFile(context.Background(), "story.pdf", nil)
	require.NoError(t, err)
	return s
}

func TestLoadFile(t *testing.T) {
	s := New(&fakeIngester{text: story, language: "English"}, &fakeLanguage{}, Options{})

	_, err := s.Info()
	assert.ErrorIs(t, err, ErrNoDocument)
	assert.Equal(t, uint64(0), s.Generation())

	info, err := s.LoadFile(context.Background(), "story.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Generation)
	assert.Equal(t, "English", info.Language)
	assert.Equal(t, len(story), info.Length)
	assert.NotEmpty(t, info.ID)

	segs, total, err := s.Segments(0, 0)
	require.NoError(t, err)
	assert.Equal(t, total, len(segs))
	var rebuilt strings.Builder
	for _, seg := range segs {
		rebuilt.WriteString(seg.Text)
	}
	assert.Equal(t, story, rebuilt.String())
}

func TestLoadFileFailureKeepsDocument(t *testing.T) {
	ing := &fakeIngester{text: story, language: "English"}
	s := New(ing, &fakeLanguage{}, Options{})
	_, err := s.LoadFile(context.Background(), "story.pdf", nil)
	require.NoError(t, err)

	ing.err = decoder.ErrUnsupportedFormat
	_, err = s.LoadFile(context.Background(), "story.docx", nil)
	assert.ErrorIs(t, err, decoder.ErrUnsupportedFormat)

	info, err := s.Info()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), info.Generation)
}

func TestSegmentsPaging(t *testing.T) {
	s := newLoaded(t, &fakeLanguage{})

	page, total, err := s.Segments(2, 3)
	require.NoError(t, err)
	assert.Equal(t, 9, total)
	require.Len(t, page, 3)
	assert.Equal(t, "sat.", page[2].Text)

	page, _, err = s.Segments(100, 5)
	require.NoError(t, err)
	assert.Empty(t, page)

	page, total, err = s.Segments(1, math.MaxInt)
	require.NoError(t, err)
	assert.Len(t, page, total-1)
}

func TestLookupAndConfirm(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"cat": "A small feline."}}
	s := newLoaded(t, lang)

	sel, err := s.Lookup(context.Background(), "cat", 4)
	require.NoError(t, err)
	assert.Equal(t, Selection{
		Word:       "cat",
		Sentence:   "The cat sat.",
		Definition: "A small feline.",
		Offset:     4,
		Generation: 1,
		Found:      true,
	}, sel)

	entry, added, err := s.Confirm(sel)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, "cat", entry.Word)
	assert.Equal(t, 1, s.VocabularyCount())

	// Saving again is a no-op.
	_, added, err = s.Confirm(sel)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, s.VocabularyCount())

	file, ok := s.ExportVocabularyCSV()
	require.True(t, ok)
	assert.Equal(t, vocab.ExportFilename, file.Name)
	assert.Equal(t,
		"Word,Definition,Example Sentence,Cloze Sentence\ncat,A small feline.,The cat sat.,The [...] sat.",
		string(file.Body))
}

func TestLookupStripsPunctuation(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"meow": "Cat sound."}}
	s := newLoaded(t, lang)

	sel, err := s.LookupAt(context.Background(), 19)
	require.NoError(t, err)
	assert.Equal(t, "meow", sel.Word)
	assert.Equal(t, "Cats meow!", sel.Sentence)

	_, err = s.LookupAt(context.Background(), 3)
	assert.ErrorIs(t, err, ErrNotClickable)

	_, err = s.Lookup(context.Background(), "?!", 0)
	assert.ErrorIs(t, err, ErrEmptyWord)
}

func TestLookupReusesSavedDefinition(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"cat": "A small feline."}}
	s := newLoaded(t, lang)

	sel, err := s.Lookup(context.Background(), "cat", 4)
	require.NoError(t, err)
	_, _, err = s.Confirm(sel)
	require.NoError(t, err)

	again, err := s.Lookup(context.Background(), "Cats", 14)
	require.NoError(t, err)
	assert.Equal(t, 2, lang.callCount(), "Cats is a different word")
	assert.False(t, again.Saved)

	again, err = s.Lookup(context.Background(), "CAT", 4)
	require.NoError(t, err)
	assert.True(t, again.Saved)
	assert.Equal(t, "A small feline.", again.Definition)
	assert.Equal(t, 2, lang.callCount())
}

func TestLookupFailureUsesPlaceholder(t *testing.T) {
	lang := &fakeLanguage{err: fmt.Errorf("%w: boom", language.ErrDefinitionUnavailable)}
	s := newLoaded(t, lang)

	sel, err := s.Lookup(context.Background(), "cat", 4)
	require.NoError(t, err)
	assert.False(t, sel.Found)
	assert.Equal(t, NoDefinitionText, sel.Definition)

	_, _, err = s.Confirm(sel)
	assert.ErrorIs(t, err, ErrNoDefinition)
	assert.Zero(t, s.VocabularyCount())
}

func TestLookupWithoutAPIKey(t *testing.T) {
	s := newLoaded(t, nil)
	s.lang = language.NewService(nil, nil)

	sel, err := s.Lookup(context.Background(), "cat", 4)
	require.NoError(t, err)
	assert.False(t, sel.Found)
	assert.Equal(t, "API key not configured.", sel.Definition)
}

func TestLoadResetsVocabularyAndInvalidatesSelections(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"cat": "A small feline.", "sat": "Past of sit."}}
	s := newLoaded(t, lang)

	first, err := s.Lookup(context.Background(), "cat", 4)
	require.NoError(t, err)
	_, _, err = s.Confirm(first)
	require.NoError(t, err)
	pending, err := s.Lookup(context.Background(), "sat", 8)
	require.NoError(t, err)

	_, err = s.LoadFile(context.Background(), "other.pdf", []byte("A new text."))
	require.NoError(t, err)
	assert.Zero(t, s.VocabularyCount())

	_, _, err = s.Confirm(pending)
	assert.ErrorIs(t, err, ErrStaleSelection)
	assert.Zero(t, s.VocabularyCount())

	_, ok := s.ExportVocabularyCSV()
	assert.False(t, ok)
}

func TestLookupDiscardedWhenDocumentChanges(t *testing.T) {
	lang := &fakeLanguage{
		defs:    map[string]string{"cat": "A small feline."},
		started: make(chan string, 1),
		release: make(chan struct{}),
	}
	s := newLoaded(t, lang)

	errCh := make(chan error, 1)
	go func() {
		_, err := s.Lookup(context.Background(), "cat", 4)
		errCh <- err
	}()
	<-lang.started

	_, err := s.LoadFile(context.Background(), "other.pdf", []byte("Another text."))
	require.NoError(t, err)
	close(lang.release)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrStaleSelection)
	case <-time.After(time.Second):
		t.Fatal("lookup did not return")
	}
}

func TestNewerLookupSupersedesOlder(t *testing.T) {
	lang := &fakeLanguage{
		defs:    map[string]string{"cat": "A small feline.", "sat": "Past of sit."},
		started: make(chan string, 2),
		release: make(chan struct{}),
	}
	s := newLoaded(t, lang)

	firstErr := make(chan error, 1)
	go func() {
		_, err := s.Lookup(context.Background(), "cat", 4)
		firstErr <- err
	}()
	require.Equal(t, "cat", <-lang.started)

	secondDone := make(chan Selection, 1)
	go func() {
		sel, err := s.Lookup(context.Background(), "sat", 8)
		assert.NoError(t, err)
		secondDone <- sel
	}()
	require.Equal(t, "sat", <-lang.started)

	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, ErrSuperseded)
	case <-time.After(time.Second):
		t.Fatal("first lookup was not canceled")
	}

	close(lang.release)
	select {
	case sel := <-secondDone:
		assert.Equal(t, "Past of sit.", sel.Definition)
	case <-time.After(time.Second):
		t.Fatal("second lookup did not return")
	}
}

func TestRemoveIsExact(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"Cats": "Plural of cat."}}
	s := newLoaded(t, lang)

	sel, err := s.Lookup(context.Background(), "Cats", 13)
	require.NoError(t, err)
	_, _, err = s.Confirm(sel)
	require.NoError(t, err)

	assert.True(t, s.IsSaved("cats"))
	assert.False(t, s.Remove("cats"))
	assert.True(t, s.Remove("Cats"))
	assert.False(t, s.IsSaved("Cats"))
	assert.Zero(t, s.VocabularyCount())
}

func TestJapaneseUsesMorphemes(t *testing.T) {
	calls := 0
	morph := readerer.SegmenterFunc(func(text string) []readerer.Segment {
		calls++
		return readerer.Tokenize(text)
	})
	s := New(&fakeIngester{text: "猫が座った。", language: "Japanese"}, &fakeLanguage{}, Options{Morphemes: morph})
	_, err := s.LoadFile(context.Background(), "neko.epub", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	s = New(&fakeIngester{text: story, language: "English"}, &fakeLanguage{}, Options{Morphemes: morph})
	_, err = s.LoadFile(context.Background(), "story.pdf", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestLoadURL(t *testing.T) {
	s := New(&fakeIngester{text: story, language: "English"}, &fakeLanguage{}, Options{})
	info, err := s.LoadURL(context.Background(), "https://example.com/a")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/a", info.URL)
	assert.Equal(t, decoder.ArticleFormat, info.Format)
}

func TestNoDocument(t *testing.T) {
	s := New(&fakeIngester{}, &fakeLanguage{}, Options{})
	_, err := s.Lookup(context.Background(), "cat", 0)
	assert.True(t, errors.Is(err, ErrNoDocument))
	_, _, err = s.Segments(0, 10)
	assert.ErrorIs(t, err, ErrNoDocument)
	_, _, err = s.Confirm(Selection{Word: "cat", Definition: "x", Found: true})
	assert.ErrorIs(t, err, ErrNoDocument)
}

type lemmaSegmenter struct{}

func (lemmaSegmenter) Segment(text string) []readerer.Segment { return readerer.Tokenize(text) }

func (lemmaSegmenter) Lemma(word string) string {
	if word == "行った" {
		return "行く"
	}
	return word
}

func TestJapaneseLookupUsesLemma(t *testing.T) {
	lang := &fakeLanguage{defs: map[string]string{"行く": "to go"}}
	s := New(&fakeIngester{text: "昨日 行った", language: "Japanese"}, lang, Options{Morphemes: lemmaSegmenter{}})
	_, err := s.LoadFile(context.Background(), "nikki.epub", nil)
	require.NoError(t, err)

	sel, err := s.LookupAt(context.Background(), 8)
	require.NoError(t, err)
	assert.Equal(t, "行った", sel.Word)
	assert.Equal(t, "行く", sel.Lemma)
	assert.Equal(t, "to go", sel.Definition)
	assert.True(t, sel.Found)

	sel, err = s.Lookup(context.Background(), "昨日", 0)
	require.NoError(t, err)
	assert.Empty(t, sel.Lemma)
}

func TestJapanesePunctuationNotLookedUp(t *testing.T) {
	morph, err := readerer.NewMorphemeSegmenter()
	require.NoError(t, err)
	lang := &fakeLanguage{defs: map[string]string{"猫": "cat"}}
	s := New(&fakeIngester{text: "猫が座った。", language: "Japanese"}, lang, Options{Morphemes: morph})
	_, err = s.LoadFile(context.Background(), "neko.epub", nil)
	require.NoError(t, err)

	// 。 starts at byte 15.
	_, err = s.LookupAt(context.Background(), 15)
	assert.ErrorIs(t, err, ErrNotClickable)

	sel, err := s.LookupAt(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, "cat", sel.Definition)

	lang.mu.Lock()
	defer lang.mu.Unlock()
	assert.Equal(t, []string{"猫"}, lang.calls)
}
