package pipeline

import (
	"context"

	"github.com/matsen/paperkg/internal/logger"
)

// RunOptions controls a full pipeline run.
type RunOptions struct {
	SkipAuthors bool
	Neo4j       bool
}

// RunStats collects the stats of every stage that ran.
type RunStats struct {
	NER        *NERStats        `json:"ner,omitempty"`
	Enrich     *EnrichStats     `json:"enrich,omitempty"`
	Authors    *AuthorStats     `json:"authors,omitempty"`
	Similarity *SimilarityStats `json:"similarity,omitempty"`
	Graph      *GraphStats      `json:"graph,omitempty"`
}

// RunAll runs every stage in order with one shared resolver. Similarity is
// skipped when there is no topic-model artifact; the graph is then built
// from whatever similarity files already exist.
func (r *Runner) RunAll(ctx context.Context, opts RunOptions) (RunStats, error) {
	var stats RunStats

	nerStats, err := r.RunNER(ctx)
	if err != nil {
		return stats, err
	}
	stats.NER = &nerStats
	logger.Info("ner done", "papers", nerStats.Papers, "organizations", nerStats.Organizations, "projects", nerStats.Projects)

	enrichStats, err := r.RunEnrich(ctx)
	if err != nil {
		return stats, err
	}
	stats.Enrich = &enrichStats
	logger.Info("enrichment done", "matched", enrichStats.Matched, "lookups", enrichStats.Resolver.Matches)

	if !opts.SkipAuthors {
		authorStats, err := r.RunAuthors(ctx)
		if err != nil {
			return stats, err
		}
		stats.Authors = &authorStats
		logger.Info("authors done", "authors", authorStats.Authors, "matched", authorStats.Matched)
	}

	if topics := r.cfg.Output(r.cfg.Files.Topics); exists(topics) {
		simStats, err := r.RunSimilarity(ctx, SimilarityOptions{})
		if err != nil {
			return stats, err
		}
		stats.Similarity = &simStats
		logger.Info("similarity done", "topics", simStats.Topics, "pairs", simStats.Pairs)
	} else {
		logger.Warn("no topic model output, skipping similarity", "path", topics)
	}

	graphStats, err := r.RunGraph(ctx, GraphOptions{Neo4j: opts.Neo4j})
	if err != nil {
		return stats, err
	}
	stats.Graph = &graphStats
	return stats, nil
}
