// Package main implements the cpcatalog binary: the computing power
// identifier catalog service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/joho/godotenv"

	"github.com/cpcatalog/cpcatalog/internal/app"
	"github.com/cpcatalog/cpcatalog/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	var (
		configFile  string
		dataDir     string
		httpAddr    string
		envFile     string
		showVersion bool
		showHelp    bool
	)

	flag.StringVar(&configFile, "config", "", "Path to configuration file (YAML or JSON)")
	flag.StringVar(&dataDir, "data-dir", "", "Base directory for all data files")
	flag.StringVar(&httpAddr, "http-addr", "", "HTTP listen address")
	flag.StringVar(&envFile, "env-file", "", "Path to .env file with environment overrides")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.BoolVar(&showHelp, "help", false, "Show help message")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "cpcatalog - Computing Power Identifier Catalog\n\n")
		fmt.Fprintf(os.Stderr, "Usage: cpcatalog [options]\n\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  cpcatalog --data-dir /data/cpcatalog\n")
		fmt.Fprintf(os.Stderr, "  cpcatalog --config /etc/cpcatalog/config.yaml\n")
		fmt.Fprintf(os.Stderr, "\nEnvironment Variables:\n")
		fmt.Fprintf(os.Stderr, "  CPCATALOG_DATA_DIR       Base directory for data files\n")
		fmt.Fprintf(os.Stderr, "  CPCATALOG_HTTP_ADDR      HTTP listen address\n")
		fmt.Fprintf(os.Stderr, "  CPCATALOG_AUTH_TOKENS    Comma-separated accepted tokens\n")
		fmt.Fprintf(os.Stderr, "  CPCATALOG_STORAGE_TYPE   Storage type (local, s3)\n")
		fmt.Fprintf(os.Stderr, "  CPCATALOG_S3_BUCKET      S3 bucket for event archives\n")
	}

	flag.Parse()

	if showHelp {
		flag.Usage()
		os.Exit(0)
	}

	if showVersion {
		fmt.Printf("cpcatalog version %s (commit: %s)\n", version, commit)
		os.Exit(0)
	}

	// Load .env before reading environment overrides. Missing default .env
	// is fine; an explicitly named one must exist.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			log.Fatalf("Failed to load env file %s: %v", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	cfg, err := loadConfig(configFile, dataDir, httpAddr)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	printBanner(cfg)

	application, err := app.New(cfg)
	if err != nil {
		log.Fatalf("Failed to create application: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := application.Start(ctx); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	if err := application.WaitForShutdown(ctx); err != nil {
		log.Printf("Shutdown error: %v", err)
	}

	if err := application.Stop(context.Background()); err != nil {
		log.Printf("Stop error: %v", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration from file, environment, and command line flags.
func loadConfig(configFile, dataDir, httpAddr string) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if configFile != "" {
		cfg, err = config.LoadFromFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	} else {
		cfg = config.DefaultConfig()
	}

	config.LoadFromEnv(cfg)

	// Command line flags take highest priority.
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if httpAddr != "" {
		cfg.HTTP.Addr = httpAddr
	}

	return cfg, nil
}

// printBanner prints the startup banner with configuration summary.
func printBanner(cfg *config.Config) {
	log.Printf("╔═══════════════════════════════════════════════╗")
	log.Printf("║                  CPCATALOG                    ║")
	log.Printf("║    Computing Power Identifier Catalog         ║")
	log.Printf("╚═══════════════════════════════════════════════╝")
	log.Printf("")
	log.Printf("Configuration:")
	log.Printf("  HTTP:     %s", cfg.HTTP.Addr)
	log.Printf("  Data Dir: %s", cfg.DataDir)
	log.Printf("  Storage:  %s", cfg.Storage.Type)
	log.Printf("  Auth:     %v", cfg.Auth.Enabled)
	if cfg.Archive.Enabled {
		log.Printf("  Archive:  every %v", cfg.Archive.Interval)
	}
	log.Printf("")
}
