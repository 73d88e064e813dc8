package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/config"
	"github.com/matsen/paperkg/internal/embedding"
	"github.com/matsen/paperkg/internal/graph"
	"github.com/matsen/paperkg/internal/ner"
	"github.com/matsen/paperkg/internal/normalize"
	"github.com/matsen/paperkg/internal/orcid"
	"github.com/matsen/paperkg/internal/paper"
	"github.com/matsen/paperkg/internal/person"
	"github.com/matsen/paperkg/internal/similarity"
)

func strp(s string) *string { return &s }
func intp(i int) *int       { return &i }

// stubTagger tags every known name that occurs in the text as ORG.
type stubTagger struct {
	names []string
}

func (s stubTagger) Tag(_ context.Context, text string) ([]ner.Span, error) {
	var spans []ner.Span
	for _, n := range s.names {
		if strings.Contains(text, n) {
			spans = append(spans, ner.Span{Label: "ORG", Text: n, Score: 1})
		}
	}
	return spans, nil
}

// countingMatcher answers from a table keyed by normalized name.
type countingMatcher struct {
	mu      sync.Mutex
	calls   map[string]int
	lookups map[string]*authority.Lookup
}

func newCountingMatcher() *countingMatcher {
	return &countingMatcher{
		calls: map[string]int{},
		lookups: map[string]*authority.Lookup{
			"fred hutch":   {QID: "Q1", Types: []string{"Q43229"}, Country: strp("Q30")},
			"horizon 2020": {QID: "Q2", Types: []string{"Q722377"}},
		},
	}
}

func (m *countingMatcher) Match(_ context.Context, name string) (*authority.Lookup, error) {
	key := normalize.Key(name)
	m.mu.Lock()
	m.calls[key]++
	m.mu.Unlock()
	if l, ok := m.lookups[key]; ok {
		return l, nil
	}
	return &authority.Lookup{}, nil
}

func (m *countingMatcher) total() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		n += c
	}
	return n
}

type fakeDirectory struct{}

func (fakeDirectory) Search(_ context.Context, given, family string) ([]string, error) {
	if given == "Ada" && family == "Lovelace" {
		return []string{"0000-0002-1825-0097"}, nil
	}
	return nil, nil
}

func (fakeDirectory) Works(context.Context, string) (*orcid.Works, error) {
	return &orcid.Works{Titles: []string{"Tree priors revisited"}, Count: 1}, nil
}

func (fakeDirectory) Educations(context.Context, string) ([]orcid.Affiliation, error) {
	return []orcid.Affiliation{{Institution: strp("University of Washington")}}, nil
}

func (fakeDirectory) Employments(context.Context, string) ([]orcid.Affiliation, error) {
	return []orcid.Affiliation{}, nil
}

func (fakeDirectory) Person(context.Context, string) (*orcid.PersonInfo, error) {
	return &orcid.PersonInfo{}, nil
}

// wordProvider embeds a text as the presence of two marker words.
type wordProvider struct{}

func (wordProvider) Embed(_ context.Context, text string) (embedding.Embedding, error) {
	v := []float32{0, 0}
	text = strings.ToLower(text)
	if strings.Contains(text, "trees") {
		v[0] = 1
	}
	if strings.Contains(text, "viruses") {
		v[1] = 1
	}
	return embedding.Embedding{Vector: v}, nil
}

func (wordProvider) ModelName() string { return "words" }
func (wordProvider) Dimensions() int   { return 2 }

type recordingDriver struct {
	queries []string
}

func (d *recordingDriver) ExecuteQuery(_ context.Context, query string, _ map[string]any) (neo4j.EagerResult, error) {
	d.queries = append(d.queries, query)
	return neo4j.EagerResult{}, nil
}

func (d *recordingDriver) Close(context.Context) error { return nil }

func metadata() []paper.Paper {
	return []paper.Paper{
		{
			Filename: "a.pdf",
			Title:    "Variational phylogenetics",
			Abstract: "Bayesian inference of trees.",
			Authors: []paper.Author{
				{Name: "Ada Lovelace", Affiliation: "University of Washington"},
				{Name: "Plato"},
			},
			Acknowledgements: "We thank Fred Hutch and the Acme Lab. Funded by grant agreement No. 12345 under Horizon 2020.",
		},
		{
			Filename:         "b.pdf",
			Title:            "Tree priors",
			Abstract:         "Priors on trees.",
			Authors:          []paper.Author{{Name: "Ada Lovelace"}},
			Acknowledgements: "Supported by fred hutch.",
		},
	}
}

func withTopics(papers []paper.Paper, topics ...int) []paper.Paper {
	out := append([]paper.Paper{}, papers...)
	for i := range out {
		out[i].MainTopic = intp(topics[i])
	}
	return out
}

type fixture struct {
	cfg     *config.Config
	matcher *countingMatcher
	runner  *Runner
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	cfg := config.Default()
	cfg.OutputDir = t.TempDir()
	cfg.Workers = 2

	m := newCountingMatcher()
	base := []Option{
		WithResolver(authority.NewResolver(m, authority.NewMemoryCache())),
		WithTagger(stubTagger{names: []string{"Fred Hutch", "fred hutch", "Acme Lab"}}),
		WithDirectory(fakeDirectory{}),
		WithIDGenerator(graph.SequentialIDs()),
	}
	r := New(cfg, append(base, opts...)...)
	t.Cleanup(func() { r.Close(context.Background()) })
	return &fixture{cfg: cfg, matcher: m, runner: r}
}

func (f *fixture) write(t *testing.T, name string, papers []paper.Paper) {
	t.Helper()
	require.NoError(t, paper.Write(f.cfg.Output(name), papers))
}

func TestStages_MissingInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.runner.RunNER(ctx)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = f.runner.RunEnrich(ctx)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = f.runner.RunAuthors(ctx)
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = f.runner.RunSimilarity(ctx, SimilarityOptions{})
	assert.ErrorIs(t, err, ErrMissingInput)
	_, err = f.runner.RunGraph(ctx, GraphOptions{})
	assert.ErrorIs(t, err, ErrMissingInput)

	assert.Zero(t, f.matcher.total(), "no lookups before inputs are checked")
}

func TestRunNER(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Metadata, metadata())

	stats, err := f.runner.RunNER(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Papers)
	assert.Equal(t, 2, stats.Organizations)
	assert.Equal(t, 2, stats.Projects)

	papers, err := paper.Load(f.cfg.Output(f.cfg.Files.NER))
	require.NoError(t, err)
	require.Len(t, papers, 2)
	assert.Equal(t, []string{"Fred Hutch"}, papers[0].Organizations)
	assert.Equal(t, []string{"12345", "Horizon 2020"}, papers[0].Projects)
	assert.Equal(t, []string{"fred hutch"}, papers[1].Organizations)

	// The unknown lab is looked up once and discarded; the case variant
	// of Fred Hutch reuses the first lookup.
	assert.Equal(t, 1, f.matcher.calls["fred hutch"])
	assert.Equal(t, 1, f.matcher.calls["acme lab"])
}

func TestRunNER_MissingPDFLeavesTextEmpty(t *testing.T) {
	f := newFixture(t)
	f.cfg.PDFDir = t.TempDir()
	f.write(t, f.cfg.Files.Metadata, []paper.Paper{{Filename: "missing.pdf", Title: "No acknowledgements"}})

	stats, err := f.runner.RunNER(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.FromPDF)
	assert.Zero(t, stats.Organizations+stats.Projects)
}

func TestRunEnrich_SharesResolverWithNER(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Metadata, metadata())
	ctx := context.Background()

	_, err := f.runner.RunNER(ctx)
	require.NoError(t, err)
	stats, err := f.runner.RunEnrich(ctx)
	require.NoError(t, err)

	assert.Equal(t, 2, stats.Organizations)
	assert.Equal(t, 2, stats.Projects)
	assert.Equal(t, 3, stats.Matched, "both Fred Hutch mentions and Horizon 2020")
	// fred hutch, acme lab, 12345, horizon 2020: once each across both stages.
	assert.Equal(t, 4, f.matcher.total())

	papers, err := paper.Load(f.cfg.Output(f.cfg.Files.Enriched))
	require.NoError(t, err)
	require.Len(t, papers[0].EnrichedOrganizations, 1)
	org := papers[0].EnrichedOrganizations[0]
	require.NotNil(t, org.URI)
	assert.Equal(t, "Fred Hutch", org.Name)
	assert.Equal(t, "Q30", *org.Country)

	require.Len(t, papers[0].EnrichedProjects, 2)
	assert.Nil(t, papers[0].EnrichedProjects[0].URI, "grant codes stay unresolved")
	assert.NotNil(t, papers[0].EnrichedProjects[1].URI)

	require.Len(t, papers[1].EnrichedOrganizations, 1)
	assert.Equal(t, org.URI, papers[1].EnrichedOrganizations[0].URI)
}

func TestRunAuthors(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Metadata, metadata())

	stats, err := f.runner.RunAuthors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Authors)

	var records []person.Record
	require.NoError(t, paper.ReadJSON(f.cfg.Output(f.cfg.Files.Authors), &records))
	require.Len(t, records, 3)

	assert.Equal(t, "Ada Lovelace", records[0].FullName)
	assert.Equal(t, "a.pdf", records[0].PaperFilename)
	require.NotNil(t, records[0].ORCID)
	assert.Equal(t, "0000-0002-1825-0097", *records[0].ORCID)

	assert.Equal(t, "Plato", records[1].FullName)
	assert.Nil(t, records[1].ORCID)
	assert.NotNil(t, records[1].Education)
	assert.Empty(t, records[1].Education)

	assert.Equal(t, "b.pdf", records[2].PaperFilename)
}

func TestRunAuthors_UnknownStrategy(t *testing.T) {
	f := newFixture(t)
	f.cfg.ORCID.Strategy = "coin-flip"
	f.write(t, f.cfg.Files.Metadata, metadata())

	_, err := f.runner.RunAuthors(context.Background())
	assert.Error(t, err)
}

func TestRunSimilarity_TopicMode(t *testing.T) {
	f := newFixture(t)
	papers := append(metadata(), paper.Paper{Filename: "c.pdf", Title: "Alone", Abstract: "Viruses."})
	f.write(t, f.cfg.Files.Topics, withTopics(papers, 0, 0, 1))

	// A stale file from an earlier run is removed.
	dir := f.cfg.SimilarityDir("tfidf")
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "topic_9.json"), []byte("[]"), 0644))

	stats, err := f.runner.RunSimilarity(context.Background(), SimilarityOptions{})
	require.NoError(t, err)
	assert.Equal(t, "tfidf", stats.Backend)
	assert.Equal(t, 1, stats.Topics)
	assert.Equal(t, 1, stats.Pairs)
	require.Len(t, stats.Files, 1)
	assert.Equal(t, filepath.Join(dir, "topic_0.json"), stats.Files[0])
	assert.NoFileExists(t, filepath.Join(dir, "topic_9.json"))
}

func TestRunSimilarity_EmbeddingCorpus(t *testing.T) {
	f := newFixture(t, WithEmbeddingProvider(wordProvider{}))
	papers := append(metadata(), paper.Paper{Filename: "c.pdf", Title: "Alone", Abstract: "Viruses."})
	f.write(t, f.cfg.Files.Metadata, papers)

	stats, err := f.runner.RunSimilarity(context.Background(), SimilarityOptions{Backend: "embedding", Corpus: true})
	require.NoError(t, err)
	assert.Equal(t, "embedding:words", stats.Backend)
	assert.Equal(t, 3, stats.Pairs)

	var pairs []similarity.Pair
	require.NoError(t, paper.ReadJSON(f.cfg.Output(f.cfg.Files.CorpusSimilarity), &pairs))
	require.Len(t, pairs, 3)
	assert.Equal(t, similarity.Pair{Paper1: "a.pdf", Paper2: "b.pdf", Similarity: 1}, pairs[0])
	assert.Equal(t, 0.0, pairs[1].Similarity)
}

func TestRunSimilarity_UnknownBackend(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Topics, withTopics(metadata(), 0, 0))

	_, err := f.runner.RunSimilarity(context.Background(), SimilarityOptions{Backend: "bm25"})
	assert.Error(t, err)
}

func TestRunGraph_FromMetadataOnly(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Metadata, metadata())

	stats, err := f.runner.RunGraph(context.Background(), GraphOptions{})
	require.NoError(t, err)
	assert.Equal(t, f.cfg.Output(f.cfg.Files.Metadata), stats.Input)
	assert.Equal(t, 2, stats.Counts.Nodes[graph.TypePaper])
	assert.Equal(t, 2, stats.Counts.Nodes[graph.TypePerson], "Ada is one person across papers")
	assert.Nil(t, stats.Neo4j)

	for _, path := range stats.Files {
		assert.FileExists(t, path)
	}
	g, orphans, err := graph.Load(f.cfg.Output(f.cfg.Files.GraphJSON))
	require.NoError(t, err)
	assert.Empty(t, orphans)
	assert.Len(t, g.Edges(), 3, "one has_author edge per (paper, author)")
}

func TestRunAll(t *testing.T) {
	driver := &recordingDriver{}
	f := newFixture(t, WithNeo4jDriver(driver))
	f.write(t, f.cfg.Files.Metadata, metadata())
	f.write(t, f.cfg.Files.Topics, withTopics(metadata(), 3, 3))

	stats, err := f.runner.RunAll(context.Background(), RunOptions{Neo4j: true})
	require.NoError(t, err)
	require.NotNil(t, stats.NER)
	require.NotNil(t, stats.Enrich)
	require.NotNil(t, stats.Authors)
	require.NotNil(t, stats.Similarity)
	require.NotNil(t, stats.Graph)

	gs := stats.Graph
	assert.Equal(t, f.cfg.Output(f.cfg.Files.Enriched), gs.Input)
	assert.Equal(t, 1, gs.Counts.Nodes[graph.TypeOrganization])
	assert.Equal(t, 2, gs.Counts.Nodes[graph.TypeProject])
	assert.Equal(t, 1, gs.Counts.Nodes[graph.TypeTopic])
	assert.Equal(t, 1, gs.Assembly.SimilarityEdges)
	assert.Equal(t, 1, gs.Assembly.EnrichedPersons, "only the author with an ORCID iD counts")

	require.NotNil(t, gs.Neo4j)
	assert.NotEmpty(t, driver.queries)

	ttl, err := os.ReadFile(f.cfg.Output(f.cfg.Files.GraphTurtle))
	require.NoError(t, err)
	assert.Contains(t, string(ttl), "has_orcid")
	assert.Contains(t, string(ttl), "similar_to")
}

func TestRunAll_SkipsSimilarityWithoutTopics(t *testing.T) {
	f := newFixture(t)
	f.write(t, f.cfg.Files.Metadata, metadata())

	stats, err := f.runner.RunAll(context.Background(), RunOptions{SkipAuthors: true})
	require.NoError(t, err)
	assert.Nil(t, stats.Authors)
	assert.Nil(t, stats.Similarity)
	require.NotNil(t, stats.Graph)
	assert.Zero(t, stats.Graph.Assembly.SimilarityEdges)
}

func TestNewCache(t *testing.T) {
	ctx := context.Background()
	cfg := config.Default()

	c, err := NewCache(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &authority.MemoryCache{}, c)

	mr := miniredis.RunT(t)
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisURL = "redis://" + mr.Addr()
	c, err = NewCache(ctx, cfg)
	require.NoError(t, err)
	assert.IsType(t, &authority.RedisCache{}, c)
	require.NoError(t, c.Close(ctx))

	cfg.Cache.Backend = "disk"
	_, err = NewCache(ctx, cfg)
	assert.Error(t, err)
}

func TestRunner_ResolverBuiltOnceAndClosed(t *testing.T) {
	ctx := context.Background()
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Cache.Backend = "redis"
	cfg.Cache.RedisURL = "redis://" + mr.Addr()

	r := New(cfg)
	a, err := r.Resolver(ctx)
	require.NoError(t, err)
	b, err := r.Resolver(ctx)
	require.NoError(t, err)
	assert.Same(t, a, b)

	require.NoError(t, r.Close(ctx))
	require.NoError(t, r.Close(ctx))
}

func TestEmbeddingProvider_OpenAINeedsKey(t *testing.T) {
	cfg := config.Default()
	cfg.Similarity.Provider = "openai"
	r := New(cfg)

	_, err := r.embeddingProvider()
	assert.True(t, errors.Is(err, ErrMissingInput))

	cfg.Secrets.OpenAIKey = "sk-test"
	p, err := r.embeddingProvider()
	require.NoError(t, err)
	assert.Equal(t, embedding.DefaultOpenAIModel, p.ModelName())
}
