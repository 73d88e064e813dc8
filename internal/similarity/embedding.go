package similarity

import (
	"context"
	"fmt"

	"github.com/matsen/paperkg/internal/embedding"
	"github.com/matsen/paperkg/internal/semantic"
)

// Embedding scores texts by the cosine of sentence embeddings.
type Embedding struct {
	Provider embedding.Provider
}

// Name identifies the backend.
func (e Embedding) Name() string { return "embedding:" + e.Provider.ModelName() }

// Matrix embeds texts and returns their pairwise cosine similarity. Empty
// texts get a zero vector and score 0 against everything.
func (e Embedding) Matrix(ctx context.Context, texts []string) ([][]float64, error) {
	embs, err := embedding.EmbedAll(ctx, e.Provider, texts)
	if err != nil {
		return nil, fmt.Errorf("embedding texts: %w", err)
	}
	vecs := make([][]float32, len(embs))
	dims := 0
	for i, emb := range embs {
		vecs[i] = emb.Vector
		dims = max(dims, len(emb.Vector))
	}
	for i := range vecs {
		if len(vecs[i]) == 0 {
			vecs[i] = make([]float32, dims)
		}
	}
	return semantic.Matrix(vecs), nil
}
