// Package config loads the pipeline configuration from YAML or TOML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

const (
	// DefaultFile is looked up in the working directory when no path is given.
	DefaultFile = "kg.yml"
	// EnvFile names the config path when --config is not set.
	EnvFile = "KG_CONFIG"
)

// Duration is a time.Duration written as "8s", "1h30m" and so on.
type Duration struct {
	time.Duration
}

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Files names every pipeline artifact, relative to OutputDir.
type Files struct {
	Metadata         string `yaml:"metadata" toml:"metadata" json:"metadata"`
	NER              string `yaml:"ner" toml:"ner" json:"ner"`
	Enriched         string `yaml:"enriched" toml:"enriched" json:"enriched"`
	Authors          string `yaml:"authors" toml:"authors" json:"authors"`
	Topics           string `yaml:"topics" toml:"topics" json:"topics"`
	TFIDFDir         string `yaml:"tfidf_dir" toml:"tfidf_dir" json:"tfidf_dir"`
	EmbeddingDir     string `yaml:"embedding_dir" toml:"embedding_dir" json:"embedding_dir"`
	CorpusSimilarity string `yaml:"corpus_similarity" toml:"corpus_similarity" json:"corpus_similarity"`
	GraphTurtle      string `yaml:"graph_turtle" toml:"graph_turtle" json:"graph_turtle"`
	GraphJSON        string `yaml:"graph_json" toml:"graph_json" json:"graph_json"`
	Database         string `yaml:"database" toml:"database" json:"database"`
	Visualization    string `yaml:"visualization" toml:"visualization" json:"visualization"`
}

// NER configures candidate extraction.
type NER struct {
	Backend   string  `yaml:"backend" toml:"backend" json:"backend"` // huggingface or heuristic
	URL       string  `yaml:"url" toml:"url" json:"url"`
	MinLength int     `yaml:"min_length" toml:"min_length" json:"min_length"`
	RateLimit float64 `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
}

// Wikidata configures the authority resolver.
type Wikidata struct {
	Strategy    string   `yaml:"strategy" toml:"strategy" json:"strategy"` // exact or sparql
	BaseURL     string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	Language    string   `yaml:"language" toml:"language" json:"language"`
	UserAgent   string   `yaml:"user_agent" toml:"user_agent" json:"user_agent"`
	SearchLimit int      `yaml:"search_limit" toml:"search_limit" json:"search_limit"`
	RateLimit   float64  `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	Timeout     Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
	// AcceptContainment lets the sparql strategy accept a single item whose
	// label only contains the name.
	AcceptContainment bool `yaml:"accept_containment" toml:"accept_containment" json:"accept_containment"`
}

// Cache configures where resolver lookups are kept during a run.
type Cache struct {
	Backend  string   `yaml:"backend" toml:"backend" json:"backend"` // memory or redis
	RedisURL string   `yaml:"redis_url" toml:"redis_url" json:"redis_url"`
	Prefix   string   `yaml:"prefix" toml:"prefix" json:"prefix"`
	TTL      Duration `yaml:"ttl" toml:"ttl" json:"ttl"`
}

// ORCID configures the person disambiguator.
type ORCID struct {
	Strategy         string  `yaml:"strategy" toml:"strategy" json:"strategy"`
	APIURL           string  `yaml:"api_url" toml:"api_url" json:"api_url"`
	TokenURL         string  `yaml:"token_url" toml:"token_url" json:"token_url"`
	RateLimit        float64 `yaml:"rate_limit" toml:"rate_limit" json:"rate_limit"`
	AffiliationScore int     `yaml:"affiliation_score" toml:"affiliation_score" json:"affiliation_score"`
	KeywordScore     int     `yaml:"keyword_score" toml:"keyword_score" json:"keyword_score"`
	TitleScore       int     `yaml:"title_score" toml:"title_score" json:"title_score"`
	MinKeywordLength int     `yaml:"min_keyword_length" toml:"min_keyword_length" json:"min_keyword_length"`
}

// Similarity configures the similarity clusterer.
type Similarity struct {
	Backend    string `yaml:"backend" toml:"backend" json:"backend"`    // tfidf or embedding
	Provider   string `yaml:"provider" toml:"provider" json:"provider"` // ollama or openai
	Model      string `yaml:"model" toml:"model" json:"model"`
	Dimensions int    `yaml:"dimensions" toml:"dimensions" json:"dimensions"`
	OllamaURL  string `yaml:"ollama_url" toml:"ollama_url" json:"ollama_url"`
	OpenAIURL  string `yaml:"openai_url" toml:"openai_url" json:"openai_url"`
	MaxTokens  int    `yaml:"max_tokens" toml:"max_tokens" json:"max_tokens"`
}

// Graph configures serialization.
type Graph struct {
	Base string `yaml:"base" toml:"base" json:"base"`
}

// Neo4j configures the optional graph export.
type Neo4j struct {
	URI       string `yaml:"uri" toml:"uri" json:"uri"`
	Username  string `yaml:"username" toml:"username" json:"username"`
	Database  string `yaml:"database" toml:"database" json:"database"`
	BatchSize int    `yaml:"batch_size" toml:"batch_size" json:"batch_size"`
	Clear     bool   `yaml:"clear" toml:"clear" json:"clear"`
}

// Config is the whole pipeline configuration.
type Config struct {
	OutputDir string `yaml:"output_dir" toml:"output_dir" json:"output_dir"`
	// PDFDir holds the source PDFs used to recover missing acknowledgements.
	PDFDir  string `yaml:"pdf_dir" toml:"pdf_dir" json:"pdf_dir"`
	Workers int    `yaml:"workers" toml:"workers" json:"workers"`

	Files      Files      `yaml:"files" toml:"files" json:"files"`
	NER        NER        `yaml:"ner" toml:"ner" json:"ner"`
	Wikidata   Wikidata   `yaml:"wikidata" toml:"wikidata" json:"wikidata"`
	Cache      Cache      `yaml:"cache" toml:"cache" json:"cache"`
	ORCID      ORCID      `yaml:"orcid" toml:"orcid" json:"orcid"`
	Similarity Similarity `yaml:"similarity" toml:"similarity" json:"similarity"`
	Graph      Graph      `yaml:"graph" toml:"graph" json:"graph"`
	Neo4j      Neo4j      `yaml:"neo4j" toml:"neo4j" json:"neo4j"`

	// Secrets come from the environment only.
	Secrets Secrets `yaml:"-" toml:"-" json:"-"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		OutputDir: "outputs",
		Workers:   1,
		Files: Files{
			Metadata:         "papers_metadata.json",
			NER:              "papers_metadata_ner.json",
			Enriched:         "papers_metadata_wikidata.json",
			Authors:          "enriched_authors.json",
			Topics:           "papers_with_topics.json",
			TFIDFDir:         "similarities_by_topic",
			EmbeddingDir:     "similarities_semantic_by_topic",
			CorpusSimilarity: "abstract_similarities.json",
			GraphTurtle:      "knowledge_graph.ttl",
			GraphJSON:        "knowledge_graph.json",
			Database:         "knowledge_graph.db",
			Visualization:    "knowledge_graph.html",
		},
		NER: NER{
			Backend:   "huggingface",
			MinLength: 3,
			RateLimit: 2,
		},
		Wikidata: Wikidata{
			Strategy:    "exact",
			Language:    "en",
			SearchLimit: 5,
			RateLimit:   5,
			Timeout:     Duration{8 * time.Second},
		},
		Cache: Cache{
			Backend: "memory",
			Prefix:  "paperkg:authority",
			TTL:     Duration{24 * time.Hour},
		},
		ORCID: ORCID{
			Strategy:         "affiliation-first",
			RateLimit:        8,
			AffiliationScore: 85,
			KeywordScore:     85,
			TitleScore:       70,
			MinKeywordLength: 4,
		},
		Similarity: Similarity{
			Backend:    "tfidf",
			Provider:   "ollama",
			Model:      "all-minilm:l6-v2",
			Dimensions: 384,
			MaxTokens:  8191,
		},
		Graph: Graph{
			Base: "http://www.owl-ontologies.com/base#",
		},
		Neo4j: Neo4j{
			URI:       "bolt://localhost:7687",
			Username:  "neo4j",
			BatchSize: 500,
		},
	}
}

// ErrConfigNotFound is returned when an explicitly requested file is missing.
var ErrConfigNotFound = errors.New("config file not found")

// Path picks the config file: the flag value, then KG_CONFIG, then
// DefaultFile. explicit reports whether the user named the file.
func Path(flag string) (path string, explicit bool) {
	if flag != "" {
		return flag, true
	}
	if env := os.Getenv(EnvFile); env != "" {
		return env, true
	}
	return DefaultFile, false
}

// Load reads the config at path over the defaults and fills secrets from
// the environment. A missing file is an error only when explicit.
func Load(path string, explicit bool) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(ExpandPath(path))
	switch {
	case err == nil:
		if err := decode(path, data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
	case os.IsNotExist(err):
		return nil, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
	default:
		return nil, fmt.Errorf("reading config: %w", err)
	}

	cfg.Secrets = SecretsFromEnv()
	cfg.OutputDir = ExpandPath(cfg.OutputDir)
	cfg.PDFDir = ExpandPath(cfg.PDFDir)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		return toml.Unmarshal(data, cfg)
	case ".yml", ".yaml", "":
		return yaml.Unmarshal(data, cfg)
	default:
		return fmt.Errorf("unsupported config format %q (use .yml, .yaml or .toml)", filepath.Ext(path))
	}
}

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

func oneOf(field, value string, valid ...string) error {
	for _, v := range valid {
		if value == v {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %q (valid: %s)", ErrInvalidConfig, field, value, strings.Join(valid, ", "))
}

func positive(field string, v float64) error {
	if v <= 0 {
		return fmt.Errorf("%w: %s must be positive, got %v", ErrInvalidConfig, field, v)
	}
	return nil
}

// Validate rejects unknown backend and strategy names and non-positive limits.
func (c *Config) Validate() error {
	checks := []error{
		oneOf("ner.backend", c.NER.Backend, "huggingface", "heuristic"),
		oneOf("wikidata.strategy", c.Wikidata.Strategy, "exact", "sparql"),
		oneOf("cache.backend", c.Cache.Backend, "memory", "redis"),
		oneOf("orcid.strategy", c.ORCID.Strategy, "affiliation-first", "keyword-first", "title"),
		oneOf("similarity.backend", c.Similarity.Backend, "tfidf", "embedding"),
		oneOf("similarity.provider", c.Similarity.Provider, "ollama", "openai"),
		positive("workers", float64(c.Workers)),
		positive("ner.min_length", float64(c.NER.MinLength)),
		positive("ner.rate_limit", c.NER.RateLimit),
		positive("wikidata.search_limit", float64(c.Wikidata.SearchLimit)),
		positive("wikidata.rate_limit", c.Wikidata.RateLimit),
		positive("wikidata.timeout", c.Wikidata.Timeout.Seconds()),
		positive("orcid.rate_limit", c.ORCID.RateLimit),
		positive("orcid.min_keyword_length", float64(c.ORCID.MinKeywordLength)),
		positive("neo4j.batch_size", float64(c.Neo4j.BatchSize)),
	}
	for _, score := range []struct {
		field string
		v     int
	}{
		{"orcid.affiliation_score", c.ORCID.AffiliationScore},
		{"orcid.keyword_score", c.ORCID.KeywordScore},
		{"orcid.title_score", c.ORCID.TitleScore},
	} {
		if score.v < 0 || score.v > 100 {
			checks = append(checks, fmt.Errorf("%w: %s must be in [0, 100], got %d", ErrInvalidConfig, score.field, score.v))
		}
	}
	if c.OutputDir == "" {
		checks = append(checks, fmt.Errorf("%w: output_dir is required", ErrInvalidConfig))
	}
	return errors.Join(checks...)
}

// Output returns the path of an artifact under OutputDir.
func (c *Config) Output(name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.OutputDir, name)
}

// SimilarityDir returns the per-topic output directory for a backend.
func (c *Config) SimilarityDir(backend string) string {
	if backend == "embedding" {
		return c.Output(c.Files.EmbeddingDir)
	}
	return c.Output(c.Files.TFIDFDir)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path // Return original if we can't get home directory
	}

	return filepath.Join(home, path[1:])
}
