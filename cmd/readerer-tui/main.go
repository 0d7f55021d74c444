package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/japaniel/readerer/pkg/app"
	"github.com/japaniel/readerer/pkg/config"
	"github.com/japaniel/readerer/pkg/tui"
)

func main() {
	configFlag := flag.String("config", "", "Path to YAML config (default: $CONFIG_PATH or ./config.yaml)")
	dbFlag := flag.String("db", "", "Path to SQLite definition cache (overrides cache.path)")
	urlFlag := flag.String("url", "", "Article URL to read")
	logFlag := flag.String("log", "", "Write logs to this file (default: discard)")
	outFlag := flag.String("out", ".", "Directory for vocabulary exports")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage:\n")
		fmt.Fprintf(os.Stderr, "  readerer-tui [options] book.epub|paper.pdf\n")
		fmt.Fprintf(os.Stderr, "  readerer-tui [options] -url https://example.com/article\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() == 0 && *urlFlag == "" {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *dbFlag != "" {
		cfg.Cache.Path = *dbFlag
		cfg.Cache.Enabled = true
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	var logOut io.Writer = io.Discard
	if *logFlag != "" {
		f, err := os.OpenFile(*logFlag, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			log.Fatalf("Failed to open log file: %v", err)
		}
		defer f.Close()
		logOut = f
	}
	logger := slog.New(slog.NewTextHandler(logOut, nil))

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start reader: %v", err)
	}
	defer a.Close()

	if *urlFlag != "" {
		fmt.Printf("Fetching %s...\n", *urlFlag)
		if _, err := a.Session.LoadURL(ctx, *urlFlag); err != nil {
			log.Fatalf("Failed to open article: %v", err)
		}
	} else {
		path := flag.Arg(0)
		data, err := os.ReadFile(path)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", path, err)
		}
		fmt.Printf("Opening %s...\n", filepath.Base(path))
		if _, err := a.Session.LoadFile(ctx, filepath.Base(path), data); err != nil {
			log.Fatalf("Failed to open %s: %v", path, err)
		}
	}

	if err := tui.Run(ctx, a.Session, *outFlag); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
