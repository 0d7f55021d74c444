package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"
	"unicode/utf8"

	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/decoder"
)

// LanguageDetector names the language of a document. When detection fails it
// still returns the language to read the document in, along with the error.
type LanguageDetector interface {
	Detect(ctx context.Context, sample string) (string, error)
}

// Result is a decoded document ready to be read.
type Result struct {
	Document    decoder.Document
	Language    string
	SourceID    int64
	ContentHash string
	// LanguageCached is true when the language came from an earlier load of the same text.
	LanguageCached bool
	Parts          int
	Elapsed        time.Duration
}

// Ingester decodes uploads and articles, detects their language and records
// their provenance in the source log.
type Ingester struct {
	// DB holds the source log. nil disables it.
	DB       *sql.DB
	Formats  *decoder.Registry
	Fetcher  *decoder.Fetcher
	Detector LanguageDetector
	// Logger is used for informational messages. nil means slog.Default().
	Logger *slog.Logger

	// Concurrency settings
	Workers int

	// PoolFactory allows tests to inject custom worker pool implementations.
	PoolFactory func(workers, queue int) Pool
}

// NewIngester creates a new Ingester for the default formats.
func NewIngester(conn *sql.DB, detector LanguageDetector) *Ingester {
	return &Ingester{
		DB:       conn,
		Formats:  decoder.Default(),
		Fetcher:  decoder.NewFetcher(),
		Detector: detector,
		Workers:  4, // Default worker count
	}
}

func (ig *Ingester) logger() *slog.Logger {
	if ig.Logger != nil {
		return ig.Logger
	}
	return slog.Default()
}

func (ig *Ingester) newPool() Pool {
	if ig.PoolFactory != nil {
		return ig.PoolFactory(ig.Workers, ig.Workers*2)
	}
	return NewWorkerPool(ig.Workers, ig.Workers*2)
}

// IngestFile decodes an uploaded file. Pages and chapters are extracted on the
// worker pool and reassembled in document order.
func (ig *Ingester) IngestFile(ctx context.Context, filename string, data []byte) (*Result, error) {
	start := time.Now()
	f, c, err := ig.Formats.Open(filename, data)
	if err != nil {
		return nil, err
	}

	parts, err := ExtractOrdered(ctx, ig.newPool(), len(c.Parts), func(ctx context.Context, i int) (string, error) {
		return c.Parts[i](ctx)
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, decoder.ErrDecode) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %s: %v", decoder.ErrDecode, f.Name(), err)
	}

	doc := decoder.Assemble(c.Title, f.Name(), parts)
	res, err := ig.finish(ctx, doc, sourceType(f.Name()))
	if err != nil {
		return nil, err
	}
	res.Parts = len(parts)
	res.Elapsed = time.Since(start)
	ig.logDone(res)
	return res, nil
}

// IngestURL imports the main article of a web page.
func (ig *Ingester) IngestURL(ctx context.Context, rawURL string) (*Result, error) {
	start := time.Now()
	fetcher := ig.Fetcher
	if fetcher == nil {
		fetcher = decoder.NewFetcher()
	}
	doc, err := fetcher.FetchArticle(ctx, rawURL)
	if err != nil {
		return nil, err
	}
	res, err := ig.finish(ctx, doc, db.SourceArticle)
	if err != nil {
		return nil, err
	}
	res.Parts = 1
	res.Elapsed = time.Since(start)
	ig.logDone(res)
	return res, nil
}

func (ig *Ingester) finish(ctx context.Context, doc decoder.Document, srcType string) (*Result, error) {
	sum := sha256.Sum256([]byte(doc.Text))
	res := &Result{Document: doc, ContentHash: hex.EncodeToString(sum[:])}

	// Reloading the same text reuses its detected language.
	if ig.DB != nil {
		src, ok, err := db.GetSourceByHash(ig.DB, res.ContentHash)
		if err != nil {
			ig.logger().Warn("source lookup failed", slog.String("error", err.Error()))
		} else if ok {
			res.SourceID = src.ID
			if src.Language != "" {
				res.Language = src.Language
				res.LanguageCached = true
			}
		}
	}
	if res.LanguageCached {
		return res, nil
	}

	var detected bool
	res.Language, detected = ig.detect(ctx, doc.Text)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if ig.DB == nil {
		return res, nil
	}

	// A fallback language is never stored, so the next load detects again.
	stored := ""
	if detected {
		stored = res.Language
	}
	id, err := db.CreateOrGetSource(ig.DB, db.Source{
		SourceType:  srcType,
		Title:       doc.Title,
		URL:         doc.URL,
		ContentHash: res.ContentHash,
		Language:    stored,
		TextLength:  utf8.RuneCountInString(doc.Text),
	})
	if err == nil && detected {
		err = db.UpdateSourceLanguage(ig.DB, id, stored)
	}
	if err != nil {
		// The source log is bookkeeping; the document is still readable.
		ig.logger().Warn("failed to persist source", slog.String("error", err.Error()))
		return res, nil
	}
	res.SourceID = id
	return res, nil
}

// detect reports whether the returned language was actually detected.
func (ig *Ingester) detect(ctx context.Context, text string) (string, bool) {
	if ig.Detector == nil {
		return "", false
	}
	language, err := ig.Detector.Detect(ctx, text)
	if err != nil {
		ig.logger().Warn("language detection failed",
			slog.String("fallback", language), slog.String("error", err.Error()))
		return language, false
	}
	return language, true
}

func (ig *Ingester) logDone(res *Result) {
	ig.logger().Info("document ingested",
		slog.String("title", res.Document.Title),
		slog.String("format", res.Document.Format),
		slog.String("language", res.Language),
		slog.Bool("language_cached", res.LanguageCached),
		slog.Int("parts", res.Parts),
		slog.Int("bytes", len(res.Document.Text)),
		slog.Int64("source_id", res.SourceID),
		slog.Duration("elapsed", res.Elapsed),
	)
}

func sourceType(format string) string {
	switch format {
	case "PDF":
		return db.SourcePDF
	case "EPUB":
		return db.SourceEPUB
	default:
		return format
	}
}
