// Package app wires configuration, the definition cache, the language model
// and the reader session into a runnable service.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/japaniel/readerer/pkg/config"
	"github.com/japaniel/readerer/pkg/db"
	"github.com/japaniel/readerer/pkg/ingest"
	"github.com/japaniel/readerer/pkg/language"
	"github.com/japaniel/readerer/pkg/readerer"
	"github.com/japaniel/readerer/pkg/server"
	"github.com/japaniel/readerer/pkg/session"
)

// App owns every long-lived resource of the reader.
type App struct {
	Config  *config.Config
	Logger  *slog.Logger
	Session *session.Session
	Server  *server.Server

	db     *sql.DB
	writer *ingest.BatchWriter
}

// New builds the reader from cfg. The caller must Close the App.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, Logger: logger}

	completer, err := language.NewCompleter(language.Options{
		Provider:  cfg.LLM.Provider,
		APIKey:    cfg.LLM.APIKey,
		Model:     cfg.LLM.Model,
		BaseURL:   cfg.LLM.BaseURL,
		Timeout:   cfg.LLM.Timeout,
		MaxTokens: cfg.LLM.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if completer == nil {
		logger.Warn("no LLM API key configured; definitions and language detection are unavailable")
	}

	var svc language.Service = language.NewService(completer, logger).WithSampleSize(cfg.Reader.DetectSample)

	if cfg.Cache.Enabled {
		conn, err := db.Open(ctx, cfg.Cache.Path)
		if err != nil {
			return nil, fmt.Errorf("open definition cache: %w", err)
		}
		a.db = conn
		a.writer = ingest.NewBatchWriter(conn, cfg.Cache.BatchSize, cfg.Cache.FlushInterval)
		a.writer.Logger = logger.With("component", "batch_writer")
		svc = language.NewCachedService(svc, conn, a.writer, logger)
	}

	ing := ingest.NewIngester(a.db, svc)
	ing.Workers = cfg.Reader.Workers
	ing.Logger = logger.With("component", "ingest")

	opts := session.Options{Logger: logger}
	if cfg.Reader.JapaneseMorphemes {
		seg, err := readerer.NewMorphemeSegmenter()
		if err != nil {
			logger.Warn("japanese segmentation unavailable", slog.String("error", err.Error()))
		} else {
			opts.Morphemes = seg
		}
	}
	a.Session = session.New(ing, svc, opts)

	srvOpts := server.Options{
		Logger:         logger,
		CORS:           cfg.CORS,
		MaxUploadBytes: cfg.Reader.MaxUploadBytes,
		Version:        readerer.Version(),
		LLMConfigured:  completer != nil,
	}
	if a.db != nil {
		srvOpts.Cache = a.db
	}
	a.Server = server.New(a.Session, srvOpts)

	logger.Info("reader ready",
		slog.String("version", readerer.Version()),
		slog.String("llm_provider", strings.ToLower(cfg.LLM.Provider)),
		slog.Bool("cache", cfg.Cache.Enabled),
		slog.Bool("japanese_morphemes", opts.Morphemes != nil),
	)
	return a, nil
}

// Serve runs the HTTP API on ln until ctx is done, then shuts down gracefully.
func (a *App) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:      a.Server.Handler(),
		ReadTimeout:  a.Config.Server.ReadTimeout,
		WriteTimeout: a.Config.Server.WriteTimeout,
		IdleTimeout:  a.Config.Server.IdleTimeout,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info("http server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	a.Logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.Config.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (a *App) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", a.Config.Server.Addr())
	if err != nil {
		return fmt.Errorf("listen %s: %w", a.Config.Server.Addr(), err)
	}
	return a.Serve(ctx, ln)
}

// Close flushes pending cache writes and closes the database.
func (a *App) Close() error {
	var errs []error
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			errs = append(errs, fmt.Errorf("flush definition cache: %w", err))
		}
		a.Logger.Debug("definition cache closed", slog.Int64("committed", a.writer.Committed()))
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
