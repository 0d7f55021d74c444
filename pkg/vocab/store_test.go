package vocab

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AddDeduplicatesIgnoringCase(t *testing.T) {
	t.Parallel()

	var s Store
	first := Entry{Word: "Cat", Definition: "a small feline", Sentence: "The Cat sat."}
	require.True(t, s.Add(first))
	assert.False(t, s.Add(Entry{Word: "cat", Definition: "other"}))
	assert.False(t, s.Add(Entry{Word: "CAT"}))

	list := s.List()
	require.Len(t, list, 1)
	assert.Equal(t, "Cat", list[0].Word)
	assert.Equal(t, "a small feline", list[0].Definition)
}

func TestStore_MostRecentFirst(t *testing.T) {
	t.Parallel()

	var s Store
	for _, w := range []string{"one", "two", "three"} {
		require.True(t, s.Add(Entry{Word: w}))
	}
	list := s.List()
	require.Len(t, list, 3)
	assert.Equal(t, []string{"three", "two", "one"}, words(list))
	assert.Equal(t, 3, s.Len())
}

func TestStore_AddSetsTimestamp(t *testing.T) {
	t.Parallel()

	var s Store
	s.Add(Entry{Word: "now"})
	fixed := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	s.Add(Entry{Word: "fixed", AddedAt: fixed})

	e, ok := s.Get("now")
	require.True(t, ok)
	assert.False(t, e.AddedAt.IsZero())

	e, ok = s.Get("FIXED")
	require.True(t, ok)
	assert.Equal(t, fixed, e.AddedAt)
}

func TestStore_RemoveExactMatch(t *testing.T) {
	t.Parallel()

	var s Store
	s.Add(Entry{Word: "Cat"})
	s.Add(Entry{Word: "dog"})
	s.Add(Entry{Word: "bird"})

	assert.False(t, s.Remove("cat"), "remove is exact-match")
	assert.False(t, s.Remove("missing"))
	assert.True(t, s.Remove("dog"))
	assert.False(t, s.Remove("dog"))

	assert.Equal(t, []string{"bird", "Cat"}, words(s.List()))
	assert.True(t, s.Has("bird"))
	assert.True(t, s.Has("cat"))
	assert.False(t, s.Has("dog"))

	// indexes stay consistent after a removal in the middle
	e, ok := s.Get("BIRD")
	require.True(t, ok)
	assert.Equal(t, "bird", e.Word)
	assert.True(t, s.Remove("Cat"))
	assert.Equal(t, []string{"bird"}, words(s.List()))
}

func TestStore_RemoveOnZeroValue(t *testing.T) {
	t.Parallel()

	var s Store
	assert.False(t, s.Remove("anything"))
	assert.False(t, s.Has("anything"))
	_, ok := s.Get("anything")
	assert.False(t, ok)
	assert.Empty(t, s.List())
}

func TestStore_ListIsSnapshot(t *testing.T) {
	t.Parallel()

	var s Store
	s.Add(Entry{Word: "alpha"})
	s.Add(Entry{Word: "beta"})
	snap := s.List()

	s.Add(Entry{Word: "gamma"})
	s.Remove("alpha")
	snap2 := s.List()
	snap2[0].Word = "mutated"

	assert.Equal(t, []string{"beta", "alpha"}, words(snap))
	assert.Equal(t, []string{"gamma", "beta"}, words(s.List()))
}

func TestStore_Clear(t *testing.T) {
	t.Parallel()

	var s Store
	s.Add(Entry{Word: "alpha"})
	s.Clear()
	assert.Zero(t, s.Len())
	assert.False(t, s.Has("alpha"))
	assert.True(t, s.Add(Entry{Word: "Alpha"}))
}

func TestKey_CaseOnly(t *testing.T) {
	t.Parallel()

	assert.Equal(t, Key("Ärger"), Key("ärger"))
	assert.Equal(t, Key("ΚΑΛΗΜΕΡΑ"), Key("καλημερα"))
	assert.NotEqual(t, Key("straße"), Key("STRASSE"))
	assert.NotEqual(t, Key("cat"), Key("cats"))

	var s Store
	assert.True(t, s.Add(Entry{Word: "Straße"}))
	assert.True(t, s.Add(Entry{Word: "STRASSE"}))
	assert.False(t, s.Add(Entry{Word: "straße"}))
	assert.Equal(t, 2, s.Len())
}

func words(entries []Entry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Word
	}
	return out
}
