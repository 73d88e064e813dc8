// Package pipeline drives the stages that turn paper metadata into the
// knowledge graph. Each stage reads the previous stage's artifact from the
// output directory and overwrites its own.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/config"
	"github.com/matsen/paperkg/internal/embedding"
	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/graphstore"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/ner"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/person"
)

// ErrMissingInput is returned before any item is processed when a stage's
// required upstream artifact does not exist.
var ErrMissingInput = errors.New("missing required input")

// Runner holds the configuration and the collaborators shared by the stages
// of one run. Collaborators not supplied as options are built from the
// configuration on first use.
type Runner struct {
	cfg *config.Config

	resolver  *authority.Resolver
	cache     authority.Cache
	ownsCache bool
	tagger    ner.Tagger
	directory person.Directory
	provider  embedding.Provider
	neo4j     graphstore.Driver
	ids       graph.IDGenerator
}

// Option configures a Runner.
type Option func(*Runner)

// WithResolver shares an existing resolver instead of building one.
func WithResolver(r *authority.Resolver) Option {
	return func(rn *Runner) {
		rn.resolver = r
	}
}

// WithTagger replaces the configured NER backend.
func WithTagger(t ner.Tagger) Option {
	return func(rn *Runner) {
		rn.tagger = t
	}
}

// WithDirectory replaces the ORCID client used by the authors stage.
func WithDirectory(d person.Directory) Option {
	return func(rn *Runner) {
		rn.directory = d
	}
}

// WithEmbeddingProvider replaces the configured embedding provider.
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(rn *Runner) {
		rn.provider = p
	}
}

// WithNeo4jDriver replaces the Bolt connection used for graph export.
func WithNeo4jDriver(d graphstore.Driver) Option {
	return func(rn *Runner) {
		rn.neo4j = d
	}
}

// WithIDGenerator sets the node id generator used by the graph stage.
func WithIDGenerator(ids graph.IDGenerator) Option {
	return func(rn *Runner) {
		rn.ids = ids
	}
}

// New creates a Runner for cfg.
func New(cfg *config.Config, opts ...Option) *Runner {
	r := &Runner{cfg: cfg}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the run configuration.
func (r *Runner) Config() *config.Config {
	return r.cfg
}

// Close releases the resolver cache if the runner created it.
func (r *Runner) Close(ctx context.Context) error {
	if r.cache == nil || !r.ownsCache {
		return nil
	}
	err := r.cache.Close(ctx)
	r.cache = nil
	return err
}

// requireFile fails with ErrMissingInput when path does not exist.
func requireFile(stage, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s stage needs %s", ErrMissingInput, stage, path)
		}
		return fmt.Errorf("checking %s: %w", path, err)
	}
	return nil
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// loadPapers checks and loads a paper artifact.
func loadPapers(stage, path string) ([]paper.Paper, error) {
	if err := requireFile(stage, path); err != nil {
		return nil, err
	}
	papers, err := paper.Load(path)
	if err != nil {
		return nil, err
	}
	logger.Info("loaded papers", "stage", stage, "path", path, "count", len(papers))
	return papers, nil
}

// firstExisting returns the first path that exists, or "" when none does.
func firstExisting(paths ...string) string {
	for _, p := range paths {
		if exists(p) {
			return p
		}
	}
	return ""
}

func (r *Runner) outputDir() error {
	if err := os.MkdirAll(r.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	return nil
}
