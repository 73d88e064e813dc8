package main

import (
	"context"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/pipeline"
)

var (
	similarityBackend string
	similarityCorpus  bool
	graphBackend      string
	graphNeo4j        bool
	runSkipAuthors    bool
	runNeo4j          bool
)

func init() {
	similarityCmd.Flags().StringVar(&similarityBackend, "backend", "", "Similarity backend: tfidf or embedding (default from config)")
	similarityCmd.Flags().BoolVar(&similarityCorpus, "corpus", false, "Score all pairs of papers into one file instead of per topic")

	graphCmd.Flags().StringVar(&graphBackend, "backend", "", "Similarity files to join: tfidf or embedding (default from config)")
	graphCmd.Flags().BoolVar(&graphNeo4j, "neo4j", false, "Also export the graph to Neo4j")

	runCmd.Flags().BoolVar(&runSkipAuthors, "skip-authors", false, "Skip ORCID author disambiguation")
	runCmd.Flags().BoolVar(&runNeo4j, "neo4j", false, "Also export the graph to Neo4j")

	rootCmd.AddCommand(nerCmd, enrichCmd, authorsCmd, similarityCmd, graphCmd, runCmd)
}

var nerCmd = &cobra.Command{
	Use:   "ner",
	Short: "Extract organization and project candidates",
	Long: `Extract organization and project candidates from each paper's
acknowledgements. Grant codes and funder programmes become projects; model
candidates are kept only when Wikidata classifies them.

When pdf_dir is configured, papers with empty acknowledgements are read
from their local PDF.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("ner", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunNER(ctx)
		}, func(v any) {
			s := v.(pipeline.NERStats)
			outputHuman("Extracted %d organizations and %d projects from %d papers\n", s.Organizations, s.Projects, s.Papers)
			if s.FromPDF > 0 {
				outputHuman("  %d acknowledgements recovered from PDFs\n", s.FromPDF)
			}
			outputHuman("Wrote %s\n", s.Output)
		})
	},
}

var enrichCmd = &cobra.Command{
	Use:   "enrich",
	Short: "Resolve candidates against Wikidata",
	Long: `Resolve every organization and project candidate against Wikidata and
fill the fixed enrichment templates. Each normalized name is looked up at
most once per run, including with --workers > 1.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("enrich", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunEnrich(ctx)
		}, func(v any) {
			s := v.(pipeline.EnrichStats)
			outputHuman("Enriched %d organizations and %d projects from %d papers (%d matched)\n",
				s.Organizations, s.Projects, s.Papers, s.Matched)
			outputHuman("  %d lookups, %d cache hits in %s\n", s.Resolver.Matches, s.Resolver.CacheHits, s.Elapsed)
			outputHuman("Wrote %s\n", s.Output)
		})
	},
}

var authorsCmd = &cobra.Command{
	Use:   "authors",
	Short: "Disambiguate authors against ORCID",
	Long: `Search ORCID for every paper author and accept at most one record per
author by affiliation, work-title keywords or title similarity, depending
on orcid.strategy. ORCID credentials are read from ORCID_CLIENT_ID and
ORCID_CLIENT_SECRET; without them the public API is used anonymously.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStage("authors", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunAuthors(ctx)
		}, func(v any) {
			s := v.(pipeline.AuthorStats)
			outputHuman("Disambiguated %d authors from %d papers (%d with ORCID iD)\n", s.Authors, s.Papers, s.Matched)
			outputHuman("Wrote %s\n", s.Output)
		})
	},
}

var similarityCmd = &cobra.Command{
	Use:   "similarity",
	Short: "Score abstract similarity within each topic",
	Long: `Group papers by main topic and score every pair of abstracts in a group.
One file per topic with at least two papers is written; files from earlier
runs are removed.

Examples:
  kg similarity
  kg similarity --backend embedding
  kg similarity --corpus`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.SimilarityOptions{Backend: similarityBackend, Corpus: similarityCorpus}
		return runStage("similarity", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunSimilarity(ctx, opts)
		}, func(v any) {
			s := v.(pipeline.SimilarityStats)
			if opts.Corpus {
				outputHuman("Scored %d pairs of %d papers with %s\n", s.Pairs, s.Papers, s.Backend)
			} else {
				outputHuman("Scored %d pairs in %d topics of %d papers with %s\n", s.Pairs, s.Topics, s.Papers, s.Backend)
			}
			for _, f := range s.Files {
				outputHuman("  %s\n", f)
			}
		})
	},
}

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Assemble the knowledge graph",
	Long: `Assemble papers, persons, organizations, projects and topics into one
graph and write it as Turtle and JSON. The most enriched paper file present
is used; enriched authors and topic similarity files are joined when present.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.GraphOptions{Backend: graphBackend, Neo4j: graphNeo4j}
		return runStage("graph", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunGraph(ctx, opts)
		}, func(v any) {
			printGraphStats(v.(pipeline.GraphStats))
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run every stage in order",
	Long: `Run ner, enrich, authors, similarity and graph in order with one shared
resolver cache. Similarity is skipped when there is no topic model output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := pipeline.RunOptions{SkipAuthors: runSkipAuthors, Neo4j: runNeo4j}
		return runStage("run", func(ctx context.Context, r *pipeline.Runner) (any, error) {
			return r.RunAll(ctx, opts)
		}, func(v any) {
			s := v.(pipeline.RunStats)
			if s.NER != nil {
				outputHuman("ner:        %d organizations, %d projects\n", s.NER.Organizations, s.NER.Projects)
			}
			if s.Enrich != nil {
				outputHuman("enrich:     %d matched, %d lookups\n", s.Enrich.Matched, s.Enrich.Resolver.Matches)
			}
			if s.Authors != nil {
				outputHuman("authors:    %d authors, %d with ORCID iD\n", s.Authors.Authors, s.Authors.Matched)
			}
			if s.Similarity != nil {
				outputHuman("similarity: %d pairs in %d topics\n", s.Similarity.Pairs, s.Similarity.Topics)
			}
			if s.Graph != nil {
				printGraphStats(*s.Graph)
			}
		})
	},
}

func printGraphStats(s pipeline.GraphStats) {
	outputHuman("Graph from %s\n", s.Input)
	for _, t := range graph.NodeTypes {
		outputHuman("  %-15s %d\n", t, s.Counts.Nodes[t])
	}
	edges := 0
	for _, n := range s.Counts.Edges {
		edges += n
	}
	outputHuman("  %-15s %d\n", "edges", edges)
	if s.Assembly.UnresolvedPairs > 0 {
		outputHuman("  %d similarity records named unknown papers\n", s.Assembly.UnresolvedPairs)
	}
	if s.Neo4j != nil {
		outputHuman("Exported %d nodes and %d relationships to Neo4j\n", s.Neo4j.Nodes, s.Neo4j.Relationships)
	}
	outputHuman("Wrote %s\n", strings.Join(s.Files, ", "))
}

// runStage loads the config, runs one stage under an interruptible
// context and prints its stats.
func runStage(name string, stage func(context.Context, *pipeline.Runner) (any, error), human func(any)) error {
	cfg := mustLoadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	r := pipeline.New(cfg)
	stats, err := stage(ctx, r)
	if cerr := r.Close(context.Background()); cerr != nil {
		exitWithError(ExitError, "closing resolver cache: %v", cerr)
	}
	if err != nil {
		exitForStage(name, err)
	}

	if humanOutput {
		human(stats)
		return nil
	}
	return outputJSON(StatusResponse{Status: "ok", Stage: name, Stats: stats})
}
