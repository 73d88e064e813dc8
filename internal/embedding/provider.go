// Package embedding turns paper text into dense vectors.
package embedding

import (
	"context"
	"fmt"
)

// Embedding is a dense vector for one text.
type Embedding struct {
	Vector []float32
}

// Dimensions returns the length of the vector.
func (e Embedding) Dimensions() int {
	return len(e.Vector)
}

// Provider generates embeddings from text.
type Provider interface {
	// Embed generates an embedding for the given text.
	Embed(ctx context.Context, text string) (Embedding, error)

	// ModelName returns the name of the embedding model.
	ModelName() string

	// Dimensions returns the expected vector dimensions, 0 if unknown.
	Dimensions() int
}

// BatchProvider embeds several texts in one request.
type BatchProvider interface {
	Provider
	EmbedBatch(ctx context.Context, texts []string) ([]Embedding, error)
}

// EmbedAll embeds texts in order, batching when the provider supports it.
// Empty texts get a zero-length embedding without a request.
func EmbedAll(ctx context.Context, p Provider, texts []string) ([]Embedding, error) {
	out := make([]Embedding, len(texts))
	var (
		pending []string
		slots   []int
	)
	for i, t := range texts {
		if t == "" {
			continue
		}
		pending = append(pending, t)
		slots = append(slots, i)
	}
	if len(pending) == 0 {
		return out, nil
	}

	if bp, ok := p.(BatchProvider); ok {
		embs, err := bp.EmbedBatch(ctx, pending)
		if err != nil {
			return nil, err
		}
		if len(embs) != len(pending) {
			return nil, fmt.Errorf("%s returned %d embeddings for %d texts", p.ModelName(), len(embs), len(pending))
		}
		for k, i := range slots {
			out[i] = embs[k]
		}
		return out, nil
	}

	for k, i := range slots {
		emb, err := p.Embed(ctx, pending[k])
		if err != nil {
			return nil, fmt.Errorf("embedding text %d: %w", i, err)
		}
		out[i] = emb
	}
	return out, nil
}
