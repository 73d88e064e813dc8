package embedding

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
	"github.com/sashabaranov/go-openai"

	"github.com/matsen/paperkg/internal/logger"
)

const (
	// DefaultOpenAIModel is the OpenAI embedding model used by default.
	DefaultOpenAIModel = string(openai.SmallEmbedding3)

	// MaxOpenAITokens is the input limit of the OpenAI embedding models.
	MaxOpenAITokens = 8191

	openAIEncoding = "cl100k_base"
)

// Tokenizer is the subset of a tiktoken encoding used for truncation.
type Tokenizer interface {
	Encode(text string, allowedSpecial, disallowedSpecial []string) []int
	Decode(tokens []int) string
}

// OpenAIProvider generates embeddings with the OpenAI embeddings API.
// Inputs longer than the model's token limit are truncated, not rejected.
type OpenAIProvider struct {
	client     *openai.Client
	model      string
	dimensions int
	maxTokens  int

	tokOnce   sync.Once
	tokenizer Tokenizer
}

// OpenAIOption configures an OpenAIProvider.
type OpenAIOption func(*OpenAIProvider)

// WithOpenAIModel sets the embedding model.
func WithOpenAIModel(model string) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.model = model
	}
}

// WithOpenAIDimensions asks the API for shortened vectors.
func WithOpenAIDimensions(dims int) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.dimensions = dims
	}
}

// WithTokenizer replaces the lazily loaded tiktoken encoding.
func WithTokenizer(t Tokenizer) OpenAIOption {
	return func(p *OpenAIProvider) {
		p.tokenizer = t
	}
}

// WithMaxTokens overrides MaxOpenAITokens.
func WithMaxTokens(n int) OpenAIOption {
	return func(p *OpenAIProvider) {
		if n > 0 {
			p.maxTokens = n
		}
	}
}

// NewOpenAIProvider creates an OpenAI provider. baseURL may be empty.
func NewOpenAIProvider(apiKey, baseURL string, opts ...OpenAIOption) *OpenAIProvider {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	p := &OpenAIProvider{
		client:    openai.NewClientWithConfig(config),
		model:     DefaultOpenAIModel,
		maxTokens: MaxOpenAITokens,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *OpenAIProvider) encoding() Tokenizer {
	p.tokOnce.Do(func() {
		if p.tokenizer != nil {
			return
		}
		enc, err := tiktoken.GetEncoding(openAIEncoding)
		if err != nil {
			logger.Warn("tiktoken encoding unavailable, truncating by characters", "err", err)
			return
		}
		p.tokenizer = enc
	})
	return p.tokenizer
}

// Truncate cuts text to the provider's token budget.
func (p *OpenAIProvider) Truncate(text string) string {
	if enc := p.encoding(); enc != nil {
		tokens := enc.Encode(text, nil, nil)
		if len(tokens) <= p.maxTokens {
			return text
		}
		return enc.Decode(tokens[:p.maxTokens])
	}
	// Roughly four characters per token for English prose.
	limit := p.maxTokens * 4
	if utf8.RuneCountInString(text) <= limit {
		return text
	}
	return string([]rune(text)[:limit])
}

// EmbedBatch embeds texts in one request, preserving order.
func (p *OpenAIProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = p.Truncate(t)
	}
	req := openai.EmbeddingRequest{
		Input:      inputs,
		Model:      openai.EmbeddingModel(p.model),
		Dimensions: p.dimensions,
	}
	resp, err := p.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("openai embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}
	out := make([]Embedding, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("openai returned embedding index %d out of range", d.Index)
		}
		out[d.Index] = Embedding{Vector: d.Embedding}
	}
	return out, nil
}

// Embed generates an embedding for one text.
func (p *OpenAIProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	embs, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return embs[0], nil
}

// ModelName returns the name of the embedding model.
func (p *OpenAIProvider) ModelName() string {
	return p.model
}

// Dimensions returns the requested vector size, 0 for the model default.
func (p *OpenAIProvider) Dimensions() int {
	return p.dimensions
}
