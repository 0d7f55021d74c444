package db

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	sq "github.com/Masterminds/squirrel"
)

// DBExecutor is an interface that allows methods to accept either *sql.DB or *sql.Tx
type DBExecutor interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	Query(query string, args ...interface{}) (*sql.Rows, error)
	QueryRow(query string, args ...interface{}) *sql.Row
}

// isUniqueConstraintErr returns true when the error indicates a unique/constraint violation
func isUniqueConstraintErr(err error) bool {
	if err == nil {
		return false
	}
	s := strings.ToLower(err.Error())
	return strings.Contains(s, "unique") || strings.Contains(s, "constraint failed")
}

// PutDefinition inserts or replaces the cached definition for word in language.
// word is expected to be already folded by the caller.
func PutDefinition(db DBExecutor, word, language, definition string) error {
	word = strings.TrimSpace(word)
	if word == "" {
		return fmt.Errorf("word must be non-empty")
	}
	if strings.TrimSpace(definition) == "" {
		return fmt.Errorf("definition must be non-empty")
	}

	query, args, err := sq.Insert("definitions").
		Columns("word", "language", "definition").
		Values(word, language, definition).
		Suffix(`ON CONFLICT(word, language) DO UPDATE SET
			definition = excluded.definition,
			updated_at = CURRENT_TIMESTAMP`).
		ToSql()
	if err != nil {
		return fmt.Errorf("build upsert definition: %w", err)
	}
	if _, err := db.Exec(query, args...); err != nil {
		return fmt.Errorf("upsert definition: %w", err)
	}
	return nil
}

// GetDefinition returns the cached definition for word in language and
// records the hit. ok is false on a cache miss.
func GetDefinition(db DBExecutor, word, language string) (def Definition, ok bool, err error) {
	query, args, err := sq.Select("id", "word", "language", "definition", "hits", "updated_at").
		From("definitions").
		Where(sq.Eq{"word": strings.TrimSpace(word), "language": language}).
		ToSql()
	if err != nil {
		return Definition{}, false, fmt.Errorf("build select definition: %w", err)
	}

	err = db.QueryRow(query, args...).Scan(&def.ID, &def.Word, &def.Language, &def.Definition, &def.Hits, &def.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Definition{}, false, nil
	}
	if err != nil {
		return Definition{}, false, fmt.Errorf("select definition: %w", err)
	}

	if _, err := db.Exec(`UPDATE definitions SET hits = hits + 1 WHERE id = ?`, def.ID); err != nil {
		return Definition{}, false, fmt.Errorf("record definition hit: %w", err)
	}
	def.Hits++
	return def, true, nil
}

// CountDefinitions returns the number of cached definitions for language,
// or for all languages when language is empty.
func CountDefinitions(db DBExecutor, language string) (int, error) {
	b := sq.Select("COUNT(*)").From("definitions")
	if language != "" {
		b = b.Where(sq.Eq{"language": language})
	}
	query, args, err := b.ToSql()
	if err != nil {
		return 0, err
	}
	var n int
	if err := db.QueryRow(query, args...).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}

// CreateOrGetSource returns the id of the source with the same content hash,
// inserting src when none exists.
func CreateOrGetSource(db DBExecutor, src Source) (int64, error) {
	if strings.TrimSpace(src.SourceType) == "" {
		return 0, fmt.Errorf("sourceType must be non-empty")
	}
	if src.ContentHash == "" {
		return 0, fmt.Errorf("content hash must be non-empty")
	}

	const maxRetries = 3

	var id int64
	for attempt := 0; attempt < maxRetries; attempt++ {
		// First, try to find an existing source.
		err := db.QueryRow(`SELECT id FROM sources WHERE content_hash = ?`, src.ContentHash).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, err
		}

		query, args, err := sq.Insert("sources").
			Columns("source_type", "title", "url", "content_hash", "language", "text_length").
			Values(src.SourceType, src.Title, src.URL, src.ContentHash, src.Language, src.TextLength).
			ToSql()
		if err != nil {
			return 0, fmt.Errorf("build insert source: %w", err)
		}
		res, err := db.Exec(query, args...)
		if err != nil {
			// If another concurrent transaction inserted the same source, retry the SELECT.
			if isUniqueConstraintErr(err) {
				continue
			}
			return 0, err
		}
		return res.LastInsertId()
	}

	return 0, fmt.Errorf("could not create or get source after %d retries", maxRetries)
}

// GetSourceByHash returns the source stored for a content hash.
func GetSourceByHash(db DBExecutor, hash string) (Source, bool, error) {
	var src Source
	var title, url, lang sql.NullString
	err := db.QueryRow(
		`SELECT id, source_type, title, url, content_hash, language, text_length, added_at FROM sources WHERE content_hash = ?`,
		hash,
	).Scan(&src.ID, &src.SourceType, &title, &url, &src.ContentHash, &lang, &src.TextLength, &src.AddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Source{}, false, nil
	}
	if err != nil {
		return Source{}, false, err
	}
	src.Title = title.String
	src.URL = url.String
	src.Language = lang.String
	return src, true, nil
}

// UpdateSourceLanguage stores the detected language of a source.
func UpdateSourceLanguage(db DBExecutor, sourceID int64, language string) error {
	if sourceID <= 0 {
		return fmt.Errorf("sourceID must be positive")
	}
	query, args, err := sq.Update("sources").
		Set("language", language).
		Where(sq.Eq{"id": sourceID}).
		ToSql()
	if err != nil {
		return err
	}
	_, err = db.Exec(query, args...)
	return err
}
