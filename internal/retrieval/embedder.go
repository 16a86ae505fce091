package retrieval

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// TextEmbedder produces embedding vectors for texts, in input order.
// Implemented by provider.Client.
type TextEmbedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

const defaultBatchSize = 16

// Embedder wraps a TextEmbedder and splits large inputs into bounded batches
// embedded concurrently.
type Embedder struct {
	client    TextEmbedder
	batchSize int
}

// NewEmbedder creates an Embedder. If batchSize <= 0, the default (16) is used.
func NewEmbedder(client TextEmbedder, batchSize int) *Embedder {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Embedder{client: client, batchSize: batchSize}
}

// EmbedQuery returns the embedding vector for a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.client.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("expected 1 embedding, got %d", len(vecs))
	}
	return vecs[0], nil
}

// EmbedAll returns embedding vectors for all texts, batched and embedded
// concurrently. Returns nil (not error) for empty input.
func (e *Embedder) EmbedAll(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	results := make([][]float32, len(texts))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(4) // Bound concurrency to avoid overwhelming the provider.

	for start := 0; start < len(texts); start += e.batchSize {
		start := start
		end := start + e.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			vecs, err := e.client.Embed(gCtx, texts[start:end])
			if err != nil {
				return fmt.Errorf("embedding batch %d-%d: %w", start, end, err)
			}
			copy(results[start:], vecs)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
