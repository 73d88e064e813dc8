package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/storage"
)

var indexGraph string

func init() {
	indexRebuildCmd.Flags().StringVar(&indexGraph, "graph", "", "Graph file to load, .json or .ttl (default: the JSON graph output)")
	indexCmd.AddCommand(indexRebuildCmd)
	rootCmd.AddCommand(indexCmd)
}

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Manage the query database",
}

var indexRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the query database from the serialized graph",
	Long: `Rebuild the SQLite query database from the graph written by 'kg graph'.

The database is disposable: it is dropped and recreated from the graph file
on every rebuild.`,
	Args: cobra.NoArgs,
	RunE: runIndexRebuild,
}

// RebuildResult is the response for the index rebuild command.
type RebuildResult struct {
	Status   string         `json:"status"`
	Graph    string         `json:"graph"`
	Database string         `json:"database"`
	Nodes    int            `json:"nodes"`
	ByType   map[string]int `json:"by_type"`
}

func runIndexRebuild(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	src := indexGraph
	if src == "" {
		src = cfg.Output(cfg.Files.GraphJSON)
	}
	if _, err := os.Stat(src); os.IsNotExist(err) {
		exitWithError(ExitConfigError, "graph file not found: %s\n\nRun 'kg graph' to create it.", src)
	}
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		exitWithError(ExitError, "creating output directory: %v", err)
	}

	dbPath := cfg.Output(cfg.Files.Database)
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	defer db.Close()

	n, err := db.RebuildFromFile(src)
	if err != nil {
		exitWithError(ExitDataError, "rebuilding database: %v", err)
	}

	result := RebuildResult{Status: "rebuilt", Graph: src, Database: dbPath, Nodes: n, ByType: map[string]int{}}
	for _, t := range graph.NodeTypes {
		c, err := db.Count(t)
		if err != nil {
			exitWithError(ExitError, "counting %s nodes: %v", t, err)
		}
		result.ByType[string(t)] = c
	}

	if humanOutput {
		outputHuman("Rebuilt %s from %s: %d nodes\n", dbPath, src, n)
		for _, t := range graph.NodeTypes {
			outputHuman("  %-15s %d\n", t, result.ByType[string(t)])
		}
		return nil
	}
	return outputJSON(result)
}
