package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/viz"
)

var (
	vizOutput         string
	vizGraph          string
	vizLayout         string
	vizHideReferences bool
	vizMemberships    bool
	vizStdout         bool
)

func init() {
	vizCmd.Flags().StringVarP(&vizOutput, "output", "o", "", "Output file path (default: the configured visualization file)")
	vizCmd.Flags().BoolVar(&vizStdout, "stdout", false, "Write the HTML to stdout")
	vizCmd.Flags().StringVar(&vizGraph, "graph", "", "Graph file to render, .json or .ttl (default: the JSON graph output)")
	vizCmd.Flags().StringVar(&vizLayout, "layout", "force", "Layout algorithm: force, circle, or grid")
	vizCmd.Flags().BoolVar(&vizHideReferences, "hide-references", false, "Hide cited works that are not corpus papers")
	vizCmd.Flags().BoolVar(&vizMemberships, "memberships", false, "Show TopicBelonging nodes instead of direct paper-topic edges")
	rootCmd.AddCommand(vizCmd)
}

var vizCmd = &cobra.Command{
	Use:   "viz",
	Short: "Generate knowledge graph visualization",
	Long: `Generate an interactive HTML visualization of the knowledge graph.

Node colours follow the node type: papers, persons, organizations, projects
and topics. Topic memberships are drawn as paper-to-topic edges labelled
with their percentage unless --memberships is given.

Examples:
  kg viz
  kg viz --layout circle --output graph.html
  kg viz --stdout --hide-references > graph.html`,
	Args: cobra.NoArgs,
	RunE: runViz,
}

func runViz(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()

	src := vizGraph
	if src == "" {
		src = cfg.Output(cfg.Files.GraphJSON)
	}
	g, orphaned, err := graph.Load(src)
	if err != nil {
		if os.IsNotExist(err) {
			exitWithError(ExitConfigError, "graph file not found: %s\n\nRun 'kg graph' to create it.", src)
		}
		exitWithError(ExitDataError, "reading graph: %v", err)
	}
	for _, o := range orphaned {
		logger.Warn("dropping orphaned edge", "subject", o.Subject, "predicate", o.Predicate, "object", o.Object, "reason", o.Reason)
	}

	buildOpts := viz.DefaultBuildOptions()
	buildOpts.HideReferences = vizHideReferences
	buildOpts.CollapseMemberships = !vizMemberships
	data := viz.BuildGraphData(g, buildOpts)

	// Generate HTML (validates options internally)
	opts := viz.DefaultOptions()
	opts.Layout = vizLayout
	html, err := viz.GenerateHTML(data, opts)
	if err != nil {
		return fmt.Errorf("generating HTML: %w", err)
	}

	if vizStdout {
		fmt.Print(html)
		return nil
	}
	out := vizOutput
	if out == "" {
		out = cfg.Output(cfg.Files.Visualization)
	}
	if err := os.WriteFile(out, []byte(html), 0644); err != nil {
		return fmt.Errorf("writing output file: %w", err)
	}
	if humanOutput {
		outputHuman("Visualization of %d nodes and %d edges written to %s\n", len(data.Nodes), len(data.Edges), out)
		return nil
	}
	return outputJSON(map[string]any{"output": out, "nodes": len(data.Nodes), "edges": len(data.Edges)})
}
