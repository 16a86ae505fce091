package retrieval

import (
	"context"
	"fmt"
)

// Chunk is a retrieved passage of course material with its similarity score.
type Chunk struct {
	ID     string
	Source string
	Text   string
	Score  float32
}

// Retriever combines embedding and vector search to find relevant course
// material for a query.
type Retriever struct {
	embedder *Embedder
	store    VectorStore
}

// NewRetriever creates a Retriever backed by the given Embedder and VectorStore.
func NewRetriever(embedder *Embedder, store VectorStore) *Retriever {
	return &Retriever{embedder: embedder, store: store}
}

// Retrieve embeds the query and returns the top-K most similar chunks,
// ordered by score descending. An empty corpus yields an empty result, not
// an error; the caller decides how to degrade.
func (r *Retriever) Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error) {
	vec, err := r.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, err
	}

	scored, err := r.store.Search(vec, topK)
	if err != nil {
		return nil, fmt.Errorf("searching vectors: %w", err)
	}

	chunks := make([]Chunk, len(scored))
	for i, s := range scored {
		chunks[i] = Chunk{
			ID:     s.ID,
			Source: s.Source,
			Text:   s.Text,
			Score:  s.Score,
		}
	}
	return chunks, nil
}
