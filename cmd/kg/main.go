// Package main provides the kg CLI entry point.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/paperkg/internal/config"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/logger/console"
	"github.com/matsen/paperkg/internal/pipeline"
	"github.com/matsen/paperkg/internal/storage"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	configPath  string
	debugLog    bool
	workers     int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// SilenceErrors is set, so cobra's own errors (unknown flags and
		// the like) are printed here.
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "kg",
	Short: "Build a knowledge graph from scientific paper metadata",
	Long: `kg turns extracted paper metadata into a typed knowledge graph.

Stages, each reading the previous stage's file from the output directory:
  ner         organization and project candidates from acknowledgements
  enrich      Wikidata resolution of the candidates
  authors     ORCID disambiguation of paper authors
  similarity  per-topic abstract similarity
  graph       Turtle and JSON graph assembly

Use 'kg run' to run them all with one shared resolver cache.
All commands output JSON by default; use --human for text.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.LoadDotEnv()
		logger.Init(console.New(console.Params{Debug: debugLog}))
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: $KG_CONFIG or ./kg.yml)")
	rootCmd.PersistentFlags().BoolVar(&debugLog, "debug", false, "Log debug messages to stderr")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 0, "Concurrent enrichment workers (overrides config)")
	rootCmd.Version = Version
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig() *config.Config {
	path, explicit := config.Path(configPath)
	cfg, err := config.Load(path, explicit)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	if workers > 0 {
		cfg.Workers = workers
	}
	return cfg
}

// mustOpenDatabase opens the SQLite query database, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(cfg *config.Config) *storage.DB {
	path := cfg.Output(cfg.Files.Database)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		exitWithError(ExitConfigError, "query database not found: %s\n\nRun 'kg index rebuild' to create it.", path)
	}
	db, err := storage.OpenDB(path)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// exitForStage maps a stage error to its exit code and exits.
func exitForStage(stage string, err error) {
	if errors.Is(err, pipeline.ErrMissingInput) {
		exitWithError(ExitConfigError, "%s: %v", stage, err)
	}
	if errors.Is(err, context.Canceled) {
		exitWithError(ExitError, "%s: interrupted", stage)
	}
	exitWithError(ExitDataError, "%s: %v", stage, err)
}
