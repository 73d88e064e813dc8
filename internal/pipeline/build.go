package pipeline

import (
	"context"
	"fmt"

	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/graphstore"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/person"
	"github.com/matsen/paperkg/internal/similarity"
)

// SimilarityOptions selects the similarity backend and mode.
type SimilarityOptions struct {
	// Backend is "tfidf" or "embedding"; empty uses the configured backend.
	Backend string
	// Corpus scores every pair of papers into one file instead of grouping
	// by topic.
	Corpus bool
}

// SimilarityStats summarizes a similarity run.
type SimilarityStats struct {
	Backend string   `json:"backend"`
	Papers  int      `json:"papers"`
	Topics  int      `json:"topics"`
	Pairs   int      `json:"pairs"`
	Files   []string `json:"files"`
}

func (r *Runner) backend(name string) (similarity.Backend, error) {
	switch name {
	case "tfidf":
		return similarity.TFIDF{}, nil
	case "embedding":
		p, err := r.embeddingProvider()
		if err != nil {
			return nil, err
		}
		return similarity.Embedding{Provider: p}, nil
	}
	return nil, fmt.Errorf("unknown similarity backend %q", name)
}

// RunSimilarity scores abstracts. Topic mode reads the topic-model artifact
// and replaces the backend's per-topic directory; corpus mode reads the
// metadata and writes a single all-pairs file.
func (r *Runner) RunSimilarity(ctx context.Context, opts SimilarityOptions) (SimilarityStats, error) {
	name := opts.Backend
	if name == "" {
		name = r.cfg.Similarity.Backend
	}
	input := r.cfg.Output(r.cfg.Files.Topics)
	if opts.Corpus {
		input = r.cfg.Output(r.cfg.Files.Metadata)
	}
	papers, err := loadPapers("similarity", input)
	if err != nil {
		return SimilarityStats{}, err
	}
	backend, err := r.backend(name)
	if err != nil {
		return SimilarityStats{}, err
	}
	if err := r.outputDir(); err != nil {
		return SimilarityStats{}, err
	}

	stats := SimilarityStats{Backend: backend.Name(), Papers: len(papers)}
	if opts.Corpus {
		pairs, err := similarity.Corpus(ctx, papers, backend)
		if err != nil {
			return stats, err
		}
		out := r.cfg.Output(r.cfg.Files.CorpusSimilarity)
		if err := paper.WriteJSON(out, pairs); err != nil {
			return stats, err
		}
		stats.Pairs = len(pairs)
		stats.Files = []string{out}
		return stats, nil
	}

	results, err := similarity.Cluster(ctx, papers, backend)
	if err != nil {
		return stats, err
	}
	files, err := similarity.WriteTopicFiles(r.cfg.SimilarityDir(name), results)
	if err != nil {
		return stats, err
	}
	stats.Topics = len(results)
	for _, res := range results {
		stats.Pairs += len(res.Pairs)
	}
	stats.Files = files
	return stats, nil
}

// GraphOptions controls the graph stage.
type GraphOptions struct {
	// Backend names the similarity directory joined into the graph; empty
	// uses the configured backend.
	Backend string
	// Neo4j also exports the graph to the configured Neo4j database.
	Neo4j bool
}

// GraphStats summarizes a graph build.
type GraphStats struct {
	Input    string            `json:"input"`
	Assembly graph.Stats       `json:"assembly"`
	Counts   graph.Counts      `json:"counts"`
	Files    []string          `json:"files"`
	Neo4j    *graphstore.Stats `json:"neo4j,omitempty"`
}

// RunGraph assembles the knowledge graph from the most enriched paper
// artifact available, the enriched authors and the per-topic similarity
// files, then writes it as Turtle and JSON.
func (r *Runner) RunGraph(ctx context.Context, opts GraphOptions) (GraphStats, error) {
	input := firstExisting(
		r.cfg.Output(r.cfg.Files.Enriched),
		r.cfg.Output(r.cfg.Files.NER),
		r.cfg.Output(r.cfg.Files.Metadata),
	)
	if input == "" {
		return GraphStats{}, fmt.Errorf("%w: graph stage needs %s", ErrMissingInput, r.cfg.Output(r.cfg.Files.Metadata))
	}
	papers, err := loadPapers("graph", input)
	if err != nil {
		return GraphStats{}, err
	}
	if err := r.outputDir(); err != nil {
		return GraphStats{}, err
	}

	var asmOpts []graph.Option
	if r.ids != nil {
		asmOpts = append(asmOpts, graph.WithIDGenerator(r.ids))
	}
	if authorsPath := r.cfg.Output(r.cfg.Files.Authors); exists(authorsPath) {
		var records []person.Record
		if err := paper.ReadJSON(authorsPath, &records); err != nil {
			return GraphStats{}, err
		}
		asmOpts = append(asmOpts, graph.WithAuthors(records))
	} else {
		logger.Info("no enriched authors, persons carry names only", "path", authorsPath)
	}

	asm := graph.NewAssembler(papers, asmOpts...)
	asm.AddPapers(papers)

	backend := opts.Backend
	if backend == "" {
		backend = r.cfg.Similarity.Backend
	}
	topicFiles, err := similarity.ReadTopicFiles(r.cfg.SimilarityDir(backend))
	if err != nil {
		return GraphStats{}, err
	}
	if len(topicFiles) == 0 {
		logger.Info("no topic similarity files", "dir", r.cfg.SimilarityDir(backend))
	}
	for _, tf := range topicFiles {
		asm.AddTopicSimilarities(tf.Topic, tf.Pairs)
	}

	g := asm.Graph()
	stats := GraphStats{
		Input:    input,
		Assembly: asm.Stats(),
		Counts:   g.Counts(),
	}

	for _, out := range []string{r.cfg.Output(r.cfg.Files.GraphTurtle), r.cfg.Output(r.cfg.Files.GraphJSON)} {
		if err := graph.Save(out, g, r.cfg.Graph.Base); err != nil {
			return stats, err
		}
		stats.Files = append(stats.Files, out)
	}

	if opts.Neo4j {
		st, err := r.export(ctx, g)
		if err != nil {
			return stats, fmt.Errorf("exporting to neo4j: %w", err)
		}
		stats.Neo4j = &st
	}
	return stats, nil
}

func (r *Runner) export(ctx context.Context, g *graph.Graph) (graphstore.Stats, error) {
	driver, owned, err := r.neo4jDriver(ctx)
	if err != nil {
		return graphstore.Stats{}, err
	}
	if owned {
		defer driver.Close(ctx)
	}
	exporter := graphstore.NewExporter(driver,
		graphstore.WithBatchSize(r.cfg.Neo4j.BatchSize),
		graphstore.WithClear(r.cfg.Neo4j.Clear),
	)
	return exporter.Export(ctx, g)
}
