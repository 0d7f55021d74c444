package language

import (
	"context"
	"database/sql"
	"log/slog"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/vocab"
)

// CachedService remembers definitions in SQLite, keyed by the folded word and
// the document language. Cache writes go through a BatchWriter.
type CachedService struct {
	next   Service
	conn   *sql.DB
	writer *ingest.BatchWriter
	log    *slog.Logger
}

// NewCachedService wraps next. conn and writer must share the same database.
func NewCachedService(next Service, conn *sql.DB, writer *ingest.BatchWriter, log *slog.Logger) *CachedService {
	if log == nil {
		log = slog.Default()
	}
	return &CachedService{next: next, conn: conn, writer: writer, log: log.With("component", "definition_cache")}
}

func (c *CachedService) DetectLanguage(ctx context.Context, sample string) string {
	return c.next.DetectLanguage(ctx, sample)
}

func (c *CachedService) Detect(ctx context.Context, sample string) (string, error) {
	return c.next.Detect(ctx, sample)
}

func (c *CachedService) LookupDefinition(ctx context.Context, word, language string) (string, error) {
	key := vocab.Key(word)

	cached, ok, err := db.GetDefinition(c.conn, key, language)
	if err != nil {
		// A broken cache must not break lookups.
		c.log.Warn("definition cache read failed", slog.String("word", key), slog.String("error", err.Error()))
	} else if ok {
		c.log.Debug("definition cache hit", slog.String("word", key), slog.Int("hits", cached.Hits))
		return cached.Definition, nil
	}

	definition, err := c.next.LookupDefinition(ctx, word, language)
	if err != nil {
		return "", err
	}

	if err := c.writer.Submit(func(ctx context.Context, tx *sql.Tx) error {
		return db.PutDefinition(tx, key, language, definition)
	}); err != nil {
		c.log.Warn("definition cache write skipped", slog.String("word", key), slog.String("error", err.Error()))
	}
	return definition, nil
}
