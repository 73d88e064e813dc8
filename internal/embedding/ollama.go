package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"time"
)

// Defaults for a local Ollama server running the MiniLM sentence encoder.
const (
	DefaultOllamaURL  = "http://localhost:11434"
	DefaultModel      = "all-minilm:l6-v2"
	DefaultDimensions = 384
	DefaultTimeout    = 60 * time.Second
)

const (
	embedPath = "/api/embed"
	tagsPath  = "/api/tags"

	// maxErrorBody bounds how much of a failed response ends up in an error.
	maxErrorBody = 512
)

// OllamaProvider embeds text through the /api/embed endpoint of an Ollama
// server. Vectors whose length differs from the expected dimensions are
// rejected.
type OllamaProvider struct {
	endpoint string
	model    string
	dims     int
	hc       *http.Client
}

// OllamaOption configures an OllamaProvider.
type OllamaOption func(*OllamaProvider)

// WithBaseURL sets the server root.
func WithBaseURL(url string) OllamaOption {
	return func(p *OllamaProvider) { p.endpoint = url }
}

// WithModel sets the model name as Ollama knows it.
func WithModel(model string) OllamaOption {
	return func(p *OllamaProvider) { p.model = model }
}

// WithDimensions sets the expected vector length; 0 accepts any length.
func WithDimensions(dims int) OllamaOption {
	return func(p *OllamaProvider) { p.dims = dims }
}

// WithTimeout bounds each request.
func WithTimeout(d time.Duration) OllamaOption {
	return func(p *OllamaProvider) { p.hc.Timeout = d }
}

// NewOllamaProvider returns a provider for DefaultModel on DefaultOllamaURL
// unless options say otherwise.
func NewOllamaProvider(opts ...OllamaOption) *OllamaProvider {
	p := &OllamaProvider{
		endpoint: DefaultOllamaURL,
		model:    DefaultModel,
		dims:     DefaultDimensions,
		hc:       &http.Client{Timeout: DefaultTimeout},
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type pulledModel struct {
	Name string `json:"name"`
}

type tagsResponse struct {
	Models []pulledModel `json:"models"`
}

// call sends in as the JSON body (GET when in is nil) and decodes the
// reply into out.
func (p *OllamaProvider) call(ctx context.Context, path string, in, out any) error {
	method := http.MethodGet
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding %s request: %w", path, err)
		}
		method = http.MethodPost
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, p.endpoint+path, body)
	if err != nil {
		return fmt.Errorf("building %s request: %w", path, err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.hc.Do(req)
	if err != nil {
		return fmt.Errorf("ollama at %s unreachable: %w", p.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("ollama %s: status %d: %s", path, resp.StatusCode, bytes.TrimSpace(snippet))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", path, err)
	}
	return nil
}

// EmbedBatch embeds all texts in a single request.
func (p *OllamaProvider) EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error) {
	var resp embedResponse
	if err := p.call(ctx, embedPath, embedRequest{Model: p.model, Input: texts}, &resp); err != nil {
		return nil, err
	}
	if got := len(resp.Embeddings); got != len(texts) {
		return nil, fmt.Errorf("ollama returned %d embeddings for %d inputs", got, len(texts))
	}

	out := make([]Embedding, 0, len(texts))
	for i, vec := range resp.Embeddings {
		if err := p.checkDims(vec); err != nil {
			return nil, fmt.Errorf("input %d: %w", i, err)
		}
		out = append(out, Embedding{Vector: vec})
	}
	return out, nil
}

func (p *OllamaProvider) checkDims(vec []float32) error {
	if p.dims == 0 || len(vec) == p.dims {
		return nil
	}
	return fmt.Errorf("unexpected embedding dimensions: %s produced %d, expected %d", p.model, len(vec), p.dims)
}

// Embed embeds one text.
func (p *OllamaProvider) Embed(ctx context.Context, text string) (Embedding, error) {
	out, err := p.EmbedBatch(ctx, []string{text})
	if err != nil {
		return Embedding{}, err
	}
	return out[0], nil
}

// ModelName returns the configured model.
func (p *OllamaProvider) ModelName() string { return p.model }

// Dimensions returns the expected vector length.
func (p *OllamaProvider) Dimensions() int { return p.dims }

// HasModel reports whether the model is pulled on the server. An unreachable
// server is an error rather than false.
func (p *OllamaProvider) HasModel(ctx context.Context) (bool, error) {
	var tags tagsResponse
	if err := p.call(ctx, tagsPath, nil, &tags); err != nil {
		return false, err
	}
	return slices.ContainsFunc(tags.Models, func(m pulledModel) bool { return m.Name == p.model }), nil
}
