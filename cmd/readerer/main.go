package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"

	"github.com/japaniel/readerer/pkg/app"
	"github.com/japaniel/readerer/pkg/config"
)

func main() {
	configFlag := flag.String("config", "", "Path to YAML config (default: $CONFIG_PATH or ./config.yaml)")
	addrFlag := flag.String("addr", "", "Listen address host:port (overrides server.host/port)")
	dbFlag := flag.String("db", "", "Path to SQLite definition cache (overrides cache.path)")
	urlFlag := flag.String("url", "", "Article URL to open before serving")
	fileFlag := flag.String("file", "", "PDF or EPUB file to open before serving")
	envHelp := flag.Bool("env-help", false, "Print the supported environment variables and exit")
	flag.Parse()

	if *envHelp {
		fmt.Println(config.Usage())
		return
	}

	// Setup context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(*configFlag)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := applyOverrides(cfg, *addrFlag, *dbFlag); err != nil {
		log.Fatalf("Invalid flags: %v", err)
	}

	logger := app.NewLogger(cfg.Log)

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to start reader: %v", err)
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Printf("Warning: shutdown: %v", err)
		}
	}()

	if *fileFlag != "" {
		data, err := os.ReadFile(*fileFlag)
		if err != nil {
			log.Fatalf("Failed to read %s: %v", *fileFlag, err)
		}
		info, err := a.Session.LoadFile(ctx, filepath.Base(*fileFlag), data)
		if err != nil {
			log.Fatalf("Failed to open %s: %v", *fileFlag, err)
		}
		fmt.Printf("Opened %q (%s, %d chars)\n", info.Title, info.Language, info.Length)
	} else if *urlFlag != "" {
		fmt.Printf("Fetching %s...\n", *urlFlag)
		info, err := a.Session.LoadURL(ctx, *urlFlag)
		if err != nil {
			log.Fatalf("Failed to open article: %v", err)
		}
		fmt.Printf("Opened %q (%s, %d chars)\n", info.Title, info.Language, info.Length)
	}

	if err := a.ListenAndServe(ctx); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

// applyOverrides lets command-line flags win over file and environment settings.
func applyOverrides(cfg *config.Config, addr, dbPath string) error {
	if addr != "" {
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return fmt.Errorf("-addr: %w", err)
		}
		p, err := strconv.Atoi(port)
		if err != nil || p < 0 || p > 65535 {
			return fmt.Errorf("-addr: invalid port %q", port)
		}
		cfg.Server.Host, cfg.Server.Port = host, p
	}
	if dbPath != "" {
		cfg.Cache.Path = dbPath
		cfg.Cache.Enabled = true
	}
	return nil
}
