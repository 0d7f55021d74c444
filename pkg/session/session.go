// Package session holds the state of one reader: the loaded document, its
// language, the current generation and the vocabulary collected from it.
package session

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/japaniel/readerer/pkg/export"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/language"
	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/japaniel/readerer/pkg/vocab"
)

// NoDefinitionText is shown when the language service cannot define a word.
const NoDefinitionText = "Sorry, I could not find a definition for this word."

var (
	ErrNoDocument     = errors.New("no document loaded")
	ErrEmptyWord      = errors.New("word is empty")
	ErrStaleSelection = errors.New("selection belongs to a previous document")
	ErrSuperseded     = errors.New("lookup superseded by a newer one")
	ErrNoDefinition   = errors.New("selection has no definition to save")
	ErrNotClickable   = errors.New("offset is not on a word")
)

// Ingester loads documents.
type Ingester interface {
	IngestFile(ctx context.Context, filename string, data []byte) (*ingest.Result, error)
	IngestURL(ctx context.Context, rawURL string) (*ingest.Result, error)
}

// Document is the loaded document. It is never mutated once installed.
type Document struct {
	ID         string
	SourceID   int64
	Title      string
	Format     string
	URL        string
	Language   string
	Text       string
	Segments   []readerer.Segment
	Generation uint64
	LoadedAt   time.Time

	lemmas readerer.Lemmatizer
}

// Info summarizes the loaded document.
type Info struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Format     string    `json:"format"`
	URL        string    `json:"url,omitempty"`
	Language   string    `json:"language"`
	Generation uint64    `json:"generation"`
	Length     int       `json:"length"`
	Segments   int       `json:"segments"`
	Vocabulary int       `json:"vocabulary"`
	LoadedAt   time.Time `json:"loadedAt"`
}

// Selection is the result of clicking a word. Clients echo it back to Confirm.
type Selection struct {
	Word string `json:"word"`
	// Lemma is the dictionary form that was defined when it differs from Word.
	Lemma      string `json:"lemma,omitempty"`
	Sentence   string `json:"sentence"`
	Definition string `json:"definition"`
	Offset     int    `json:"offset"`
	Generation uint64 `json:"generation"`
	// Saved is true when the definition comes from the vocabulary.
	Saved bool `json:"saved"`
	// Found is false when Definition is a placeholder.
	Found bool `json:"found"`
}

// Options configures a Session.
type Options struct {
	// Morphemes splits Japanese text into words. nil keeps whitespace segmentation.
	// When it is also a readerer.Lemmatizer, Japanese words are defined in
	// their dictionary form.
	Morphemes readerer.Segmenter
	Logger    *slog.Logger
}

// Session is safe for concurrent use. Long calls run without the lock held.
type Session struct {
	ingester  Ingester
	lang      language.Service
	morphemes readerer.Segmenter
	log       *slog.Logger

	mu           sync.RWMutex
	doc          *Document
	generation   uint64
	vocab        vocab.Store
	lookupSeq    uint64
	cancelLookup context.CancelFunc
}

// New returns an empty session.
func New(ing Ingester, lang language.Service, opts Options) *Session {
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Session{
		ingester:  ing,
		lang:      lang,
		morphemes: opts.Morphemes,
		log:       log.With("component", "session"),
	}
}

// LoadFile decodes an uploaded file and makes it the current document.
func (s *Session) LoadFile(ctx context.Context, filename string, data []byte) (Info, error) {
	res, err := s.ingester.IngestFile(ctx, filename, data)
	if err != nil {
		return Info{}, err
	}
	return s.install(res), nil
}

// LoadURL imports a web article and makes it the current document.
func (s *Session) LoadURL(ctx context.Context, rawURL string) (Info, error) {
	res, err := s.ingester.IngestURL(ctx, rawURL)
	if err != nil {
		return Info{}, err
	}
	return s.install(res), nil
}

// install replaces the document, clears the vocabulary and invalidates every
// selection and lookup made on the previous document.
func (s *Session) install(res *ingest.Result) Info {
	segmenter := readerer.Whitespace
	var lemmas readerer.Lemmatizer
	if s.morphemes != nil && isJapanese(res.Language) {
		segmenter = s.morphemes
		lemmas, _ = s.morphemes.(readerer.Lemmatizer)
	}
	segments := segmenter.Segment(res.Document.Text)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.generation++
	s.doc = &Document{
		ID:         uuid.NewString(),
		SourceID:   res.SourceID,
		Title:      res.Document.Title,
		Format:     res.Document.Format,
		URL:        res.Document.URL,
		Language:   res.Language,
		Text:       res.Document.Text,
		Segments:   segments,
		Generation: s.generation,
		LoadedAt:   time.Now(),
		lemmas:     lemmas,
	}
	s.vocab.Clear()
	if s.cancelLookup != nil {
		s.cancelLookup()
		s.cancelLookup = nil
	}

	s.log.Info("document loaded",
		slog.String("session_id", s.doc.ID),
		slog.Uint64("generation", s.generation),
		slog.String("language", res.Language),
		slog.Int("segments", len(segments)),
	)
	return s.infoLocked()
}

func isJapanese(lang string) bool {
	l := strings.ToLower(strings.TrimSpace(lang))
	return strings.HasPrefix(l, "japanese") || l == "ja" || lang == "日本語"
}

func (s *Session) infoLocked() Info {
	d := s.doc
	return Info{
		ID:         d.ID,
		Title:      d.Title,
		Format:     d.Format,
		URL:        d.URL,
		Language:   d.Language,
		Generation: d.Generation,
		Length:     len(d.Text),
		Segments:   len(d.Segments),
		Vocabulary: s.vocab.Len(),
		LoadedAt:   d.LoadedAt,
	}
}

// Info describes the current document.
func (s *Session) Info() (Info, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return Info{}, ErrNoDocument
	}
	return s.infoLocked(), nil
}

// Document returns the current document.
func (s *Session) Document() (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.doc == nil {
		return nil, ErrNoDocument
	}
	return s.doc, nil
}

// Segments returns up to limit segments starting at index from, and the total
// number of segments. A non-positive limit returns everything after from.
func (s *Session) Segments(from, limit int) ([]readerer.Segment, int, error) {
	doc, err := s.Document()
	if err != nil {
		return nil, 0, err
	}
	total := len(doc.Segments)
	if from < 0 {
		from = 0
	}
	if from > total {
		from = total
	}
	end := total
	if limit > 0 && limit < total-from {
		end = from + limit
	}
	return doc.Segments[from:end], total, nil
}

// LookupAt looks up the word under a byte offset of the document.
func (s *Session) LookupAt(ctx context.Context, offset int) (Selection, error) {
	doc, err := s.Document()
	if err != nil {
		return Selection{}, err
	}
	i := readerer.WordAt(doc.Segments, offset)
	if i < 0 || !doc.Segments[i].Clickable() {
		return Selection{}, ErrNotClickable
	}
	return s.Lookup(ctx, doc.Segments[i].Text, offset)
}

// Lookup resolves the sentence around offset and defines word. A word that is
// already in the vocabulary keeps its saved definition. A newer Lookup cancels
// this one, and loading another document makes its result stale.
func (s *Session) Lookup(ctx context.Context, word string, offset int) (Selection, error) {
	word = readerer.CleanWord(strings.TrimSpace(word))
	if word == "" {
		return Selection{}, ErrEmptyWord
	}

	s.mu.Lock()
	if s.doc == nil {
		s.mu.Unlock()
		return Selection{}, ErrNoDocument
	}
	if s.cancelLookup != nil {
		s.cancelLookup()
	}
	lookupCtx, cancel := context.WithCancel(ctx)
	s.lookupSeq++
	seq := s.lookupSeq
	s.cancelLookup = cancel
	doc := s.doc
	saved, isSaved := s.vocab.Get(word)
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.lookupSeq == seq {
			s.cancelLookup = nil
		}
		s.mu.Unlock()
		cancel()
	}()

	sel := Selection{
		Word:       word,
		Sentence:   readerer.ResolveSentence(doc.Text, offset),
		Offset:     offset,
		Generation: doc.Generation,
	}
	if isSaved {
		sel.Definition = saved.Definition
		sel.Saved, sel.Found = true, true
		return sel, nil
	}

	query := word
	if doc.lemmas != nil {
		if lemma := doc.lemmas.Lemma(word); lemma != word {
			query, sel.Lemma = lemma, lemma
		}
	}
	definition, err := s.lang.LookupDefinition(lookupCtx, query, doc.Language)

	if err := ctx.Err(); err != nil {
		return Selection{}, err
	}
	if s.Generation() != doc.Generation {
		return Selection{}, ErrStaleSelection
	}
	if lookupCtx.Err() != nil {
		return Selection{}, ErrSuperseded
	}

	if err != nil {
		s.log.Warn("definition lookup failed", slog.String("word", word), slog.String("error", err.Error()))
		sel.Definition = NoDefinitionText
		if errors.Is(err, language.ErrNotConfigured) {
			sel.Definition = language.ErrNotConfigured.Error()
		}
		return sel, nil
	}
	sel.Definition = definition
	sel.Found = true
	return sel, nil
}

// Generation returns the current document generation. It is 0 before the first load.
func (s *Session) Generation() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.generation
}

// Confirm saves a selection into the vocabulary. added is false when the
// word was already saved.
func (s *Session) Confirm(sel Selection) (entry vocab.Entry, added bool, err error) {
	word := strings.TrimSpace(sel.Word)
	if word == "" {
		return vocab.Entry{}, false, ErrEmptyWord
	}
	if !sel.Found || strings.TrimSpace(sel.Definition) == "" {
		return vocab.Entry{}, false, ErrNoDefinition
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return vocab.Entry{}, false, ErrNoDocument
	}
	if sel.Generation != s.generation {
		return vocab.Entry{}, false, ErrStaleSelection
	}

	entry = vocab.Entry{
		Word:       word,
		Definition: sel.Definition,
		Sentence:   sel.Sentence,
		AddedAt:    time.Now(),
	}
	if !s.vocab.Add(entry) {
		existing, _ := s.vocab.Get(word)
		return existing, false, nil
	}
	return entry, true, nil
}

// Remove deletes the entry whose word is exactly word.
func (s *Session) Remove(word string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.vocab.Remove(word)
}

// IsSaved reports whether word is in the vocabulary, ignoring case.
func (s *Session) IsSaved(word string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocab.Has(word)
}

// Vocabulary returns the saved entries, most recent first.
func (s *Session) Vocabulary() []vocab.Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocab.List()
}

// VocabularyCount is the number of saved entries.
func (s *Session) VocabularyCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.vocab.Len()
}

// ExportVocabularyCSV returns the flashcard file, or false when the
// vocabulary is empty.
func (s *Session) ExportVocabularyCSV() (*export.File, bool) {
	return vocab.ExportCSV(s.Vocabulary())
}
