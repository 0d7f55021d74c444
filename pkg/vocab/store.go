// Package vocab holds the saved-word collection of a reading session and
// turns it into flashcards.
package vocab

import (
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Entry is one saved word together with the sentence it was read in.
type Entry struct {
	Word       string    `json:"word"`
	Definition string    `json:"definition"`
	Sentence   string    `json:"sentence"`
	AddedAt    time.Time `json:"addedAt"`
}

// Store is an ordered, case-insensitively deduplicated set of entries.
// The most recently added entry comes first.
//
// The zero value is ready to use. A Store is not safe for concurrent use.
type Store struct {
	// entries are kept oldest first; List reverses them.
	entries []Entry
	index   map[string]int
}

// Key lower-cases word for case-insensitive comparison. Only case differs
// between matching words: "Ärger" matches "ärger", "Straße" does not match "STRASSE".
func Key(word string) string {
	return cases.Lower(language.Und).String(word)
}

// Add inserts e unless an entry with the same word (ignoring case) exists.
// It reports whether e was inserted.
func (s *Store) Add(e Entry) bool {
	key := Key(e.Word)
	if _, ok := s.index[key]; ok {
		return false
	}
	if s.index == nil {
		s.index = make(map[string]int)
	}
	if e.AddedAt.IsZero() {
		e.AddedAt = time.Now()
	}
	s.index[key] = len(s.entries)
	s.entries = append(s.entries, e)
	return true
}

// Remove deletes the entry whose word matches exactly. It reports whether an
// entry was removed; removing an unknown word is a no-op.
func (s *Store) Remove(word string) bool {
	pos, ok := s.index[Key(word)]
	if !ok || s.entries[pos].Word != word {
		return false
	}
	delete(s.index, Key(word))
	s.entries = append(s.entries[:pos], s.entries[pos+1:]...)
	for i := pos; i < len(s.entries); i++ {
		s.index[Key(s.entries[i].Word)] = i
	}
	return true
}

// Has reports whether word is saved, ignoring case.
func (s *Store) Has(word string) bool {
	_, ok := s.index[Key(word)]
	return ok
}

// Get returns the entry saved for word, ignoring case.
func (s *Store) Get(word string) (Entry, bool) {
	pos, ok := s.index[Key(word)]
	if !ok {
		return Entry{}, false
	}
	return s.entries[pos], true
}

// List returns a snapshot of all entries, most recent first.
// Later changes to the store do not affect the returned slice.
func (s *Store) List() []Entry {
	out := make([]Entry, len(s.entries))
	for i, e := range s.entries {
		out[len(s.entries)-1-i] = e
	}
	return out
}

// Len returns the number of saved entries.
func (s *Store) Len() int { return len(s.entries) }

// Clear drops every entry.
func (s *Store) Clear() {
	s.entries = nil
	s.index = nil
}
