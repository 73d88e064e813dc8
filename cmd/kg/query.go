package main

import (
	"github.com/spf13/cobra"

	"github.com/matsen/paperkg/internal/storage"
)

var (
	queryTitle string
	queryTopic string
	queryMin   float64
	queryLimit int
)

func init() {
	querySimilarCmd.Flags().StringVar(&queryTitle, "title", "", "Title of the source paper (required)")
	querySimilarCmd.MarkFlagRequired("title")

	queryTopicCmd.Flags().StringVar(&queryTopic, "name", "", "Topic name (required)")
	queryTopicCmd.Flags().Float64Var(&queryMin, "min", 0, "Minimum membership percentage")
	queryTopicCmd.MarkFlagRequired("name")

	queryPaperCmd.Flags().StringVar(&queryTitle, "title", "", "Title or title words to search for (required)")
	queryPaperCmd.Flags().IntVar(&queryLimit, "limit", 20, "Maximum results")
	queryPaperCmd.MarkFlagRequired("title")

	queryCmd.AddCommand(querySimilarCmd, queryTopicCmd, queryTopicsCmd, queryPaperCmd)
	rootCmd.AddCommand(queryCmd)
}

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query the knowledge graph",
	Long: `Query the SQLite database built by 'kg index rebuild'.

Examples:
  kg query similar --title "Variational phylogenetics"
  kg query topic --name 3 --min 0.4
  kg query topics`,
}

// SimilarResult is the response for query similar.
type SimilarResult struct {
	Title  string             `json:"title"`
	Papers []storage.PaperHit `json:"papers"`
}

var querySimilarCmd = &cobra.Command{
	Use:   "similar",
	Short: "List papers similar to a paper",
	Long: `List the papers linked to the paper with the given title by a similarity
edge, in either direction. The title match ignores case.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg)
		defer db.Close()

		papers, err := db.SimilarPapers(queryTitle)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if papers == nil {
			papers = []storage.PaperHit{}
		}

		if !humanOutput {
			return outputJSON(SimilarResult{Title: queryTitle, Papers: papers})
		}
		if len(papers) == 0 {
			outputHuman("No papers similar to %q\n", queryTitle)
			if near, err := db.FindPapersByTitle(queryTitle, 5); err == nil && len(near) > 0 {
				outputHuman("Did you mean:\n")
				for _, p := range near {
					outputHuman("  %s\n", truncateString(p.Title, TitleMaxLen))
				}
			}
			return nil
		}
		outputHuman("Papers similar to %q:\n", queryTitle)
		for i, p := range papers {
			outputHuman("%d. %s\n", i+1, truncateString(p.Title, TitleMaxLen))
			if p.Filename != "" {
				outputHuman("   %s\n", p.Filename)
			}
		}
		return nil
	},
}

// TopicResult is the response for query topic.
type TopicResult struct {
	Topic  string             `json:"topic"`
	Min    float64            `json:"min"`
	Papers []storage.TopicHit `json:"papers"`
}

var queryTopicCmd = &cobra.Command{
	Use:   "topic",
	Short: "List papers in a topic",
	Long: `List the papers whose membership in the named topic is at least --min,
strongest first.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg)
		defer db.Close()

		hits, err := db.PapersForTopic(queryTopic, queryMin)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if hits == nil {
			hits = []storage.TopicHit{}
		}

		if !humanOutput {
			return outputJSON(TopicResult{Topic: queryTopic, Min: queryMin, Papers: hits})
		}
		if len(hits) == 0 {
			outputHuman("No papers in topic %s at or above %.3f\n", queryTopic, queryMin)
			return nil
		}
		for _, h := range hits {
			outputHuman("[%.3f] %s\n", h.Percentage, truncateString(h.Title, TitleMaxLen))
		}
		return nil
	},
}

var queryTopicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "List topic names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg)
		defer db.Close()

		topics, err := db.ListTopics()
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if topics == nil {
			topics = []string{}
		}
		if !humanOutput {
			return outputJSON(map[string][]string{"topics": topics})
		}
		for _, t := range topics {
			outputHuman("%s\n", t)
		}
		return nil
	},
}

var queryPaperCmd = &cobra.Command{
	Use:   "paper",
	Short: "Find papers by title",
	Long: `Find papers by exact title, falling back to a full-text search over
title words.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := mustLoadConfig()
		db := mustOpenDatabase(cfg)
		defer db.Close()

		papers, err := db.FindPapersByTitle(queryTitle, queryLimit)
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
		if papers == nil {
			papers = []storage.PaperHit{}
		}
		if !humanOutput {
			return outputJSON(papers)
		}
		for _, p := range papers {
			outputHuman("%s  %s\n", p.ID, truncateString(p.Title, TitleMaxLen))
		}
		return nil
	},
}
