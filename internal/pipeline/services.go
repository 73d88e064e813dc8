package pipeline

import (
	"context"
	"fmt"

	"github.com/matsen/paperkg/internal/authority"
	"github.com/matsen/paperkg/internal/config"
	"github.com/matsen/paperkg/internal/embedding"
	"github.com/matsen/paperkg/internal/graphstore"
	"github.com/matsen/paperkg/internal/logger"
	"github.com/matsen/paperkg/internal/ner"
	"github.com/matsen/paperkg/internal/orcid"
	"github.com/matsen/paperkg/internal/person"
	"github.com/matsen/paperkg/internal/wikidata"
)

// NewCache opens the resolver cache named by the configuration.
func NewCache(ctx context.Context, cfg *config.Config) (authority.Cache, error) {
	switch cfg.Cache.Backend {
	case "redis":
		c, err := authority.NewRedisCache(ctx, authority.RedisOptions{
			URL:      cfg.Cache.RedisURL,
			Password: cfg.Secrets.RedisPassword,
			TTL:      cfg.Cache.TTL.Duration,
			Prefix:   cfg.Cache.Prefix,
		})
		if err != nil {
			return nil, err
		}
		logger.Debug("using redis resolver cache", "namespace", c.Namespace())
		return c, nil
	case "memory", "":
		return authority.NewMemoryCache(), nil
	}
	return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
}

// NewWikidataClient builds the authority client from the configuration.
func NewWikidataClient(cfg *config.Config) *wikidata.Client {
	opts := []wikidata.ClientOption{
		wikidata.WithRateLimit(cfg.Wikidata.RateLimit),
		wikidata.WithTimeout(cfg.Wikidata.Timeout.Duration),
		wikidata.WithLanguage(cfg.Wikidata.Language),
	}
	if cfg.Wikidata.UserAgent != "" {
		opts = append(opts, wikidata.WithUserAgent(cfg.Wikidata.UserAgent))
	}
	if cfg.Wikidata.BaseURL != "" {
		opts = append(opts, wikidata.WithBaseURL(cfg.Wikidata.BaseURL))
	}
	return wikidata.NewClient(opts...)
}

// NewMatcher builds the configured matching strategy over source.
func NewMatcher(cfg *config.Config, source authority.Source) authority.Matcher {
	if cfg.Wikidata.Strategy == "sparql" {
		types := append(append([]string{}, authority.DefaultOrganizationTypes...), authority.DefaultProjectTypes...)
		return authority.NewSPARQLMatcher(source, types, cfg.Wikidata.SearchLimit,
			authority.WithContainmentMatch(cfg.Wikidata.AcceptContainment))
	}
	return authority.NewExactMatcher(source, cfg.Wikidata.SearchLimit)
}

// Resolver returns the run's resolver, creating it and its cache on first use.
// Every stage of the run shares the same instance.
func (r *Runner) Resolver(ctx context.Context) (*authority.Resolver, error) {
	if r.resolver != nil {
		return r.resolver, nil
	}
	cache, err := NewCache(ctx, r.cfg)
	if err != nil {
		return nil, fmt.Errorf("opening resolver cache: %w", err)
	}
	r.cache = cache
	r.ownsCache = true
	r.resolver = authority.NewResolver(NewMatcher(r.cfg, NewWikidataClient(r.cfg)), cache)
	return r.resolver, nil
}

func (r *Runner) nerTagger() ner.Tagger {
	if r.tagger != nil {
		return r.tagger
	}
	if r.cfg.NER.Backend == "heuristic" {
		return ner.HeuristicTagger{}
	}
	opts := []ner.HuggingFaceOption{
		ner.WithToken(r.cfg.Secrets.HFToken),
		ner.WithRateLimit(r.cfg.NER.RateLimit),
	}
	if r.cfg.NER.URL != "" {
		opts = append(opts, ner.WithURL(r.cfg.NER.URL))
	}
	if r.cfg.Secrets.HFToken == "" {
		logger.Warn("no Hugging Face token set, requests are anonymous", "env", config.EnvHFToken)
	}
	return ner.NewHuggingFaceTagger(opts...)
}

func (r *Runner) orcidDirectory() person.Directory {
	if r.directory != nil {
		return r.directory
	}
	opts := []orcid.ClientOption{
		orcid.WithCredentials(r.cfg.Secrets.ORCIDClientID, r.cfg.Secrets.ORCIDClientSecret),
		orcid.WithRateLimit(r.cfg.ORCID.RateLimit),
	}
	if r.cfg.ORCID.APIURL != "" || r.cfg.ORCID.TokenURL != "" {
		api, token := r.cfg.ORCID.APIURL, r.cfg.ORCID.TokenURL
		if api == "" {
			api = orcid.BaseURL
		}
		if token == "" {
			token = orcid.TokenURL
		}
		opts = append(opts, orcid.WithBaseURL(api, token))
	}
	return orcid.NewClient(opts...)
}

func (r *Runner) embeddingProvider() (embedding.Provider, error) {
	if r.provider != nil {
		return r.provider, nil
	}
	s := r.cfg.Similarity
	switch s.Provider {
	case "openai":
		if r.cfg.Secrets.OpenAIKey == "" {
			return nil, fmt.Errorf("%w: %s is not set", ErrMissingInput, config.EnvOpenAIKey)
		}
		opts := []embedding.OpenAIOption{embedding.WithMaxTokens(s.MaxTokens)}
		// The model and dimension defaults describe the local Ollama encoder.
		if s.Model != "" && s.Model != embedding.DefaultModel {
			opts = append(opts,
				embedding.WithOpenAIModel(s.Model),
				embedding.WithOpenAIDimensions(s.Dimensions),
			)
		}
		return embedding.NewOpenAIProvider(r.cfg.Secrets.OpenAIKey, s.OpenAIURL, opts...), nil
	case "ollama", "":
		opts := []embedding.OllamaOption{
			embedding.WithModel(s.Model),
			embedding.WithDimensions(s.Dimensions),
		}
		if s.OllamaURL != "" {
			opts = append(opts, embedding.WithBaseURL(s.OllamaURL))
		}
		return embedding.NewOllamaProvider(opts...), nil
	}
	return nil, fmt.Errorf("unknown embedding provider %q", s.Provider)
}

func (r *Runner) neo4jDriver(ctx context.Context) (graphstore.Driver, bool, error) {
	if r.neo4j != nil {
		return r.neo4j, false, nil
	}
	n := r.cfg.Neo4j
	d, err := graphstore.NewBoltDriver(ctx, n.URI, n.Username, r.cfg.Secrets.Neo4jPassword, n.Database)
	if err != nil {
		return nil, false, err
	}
	return d, true, nil
}
