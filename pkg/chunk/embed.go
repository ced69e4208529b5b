package chunk

import (
	"context"
	"fmt"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"

	"golang.org/x/sync/errgroup"
)

const embedMaxTries = 2

// Embedder attaches vector embeddings to chunks via the AI backend. It
// owns no storage; persisting embedded chunks is the writer's concern.
type Embedder struct {
	client        ai.PaperAIClient
	maxConcurrent int
}

// NewEmbedder creates an Embedder. maxConcurrent bounds parallel
// embedding requests when the backend has no batch fast path.
func NewEmbedder(client ai.PaperAIClient, maxConcurrent int) *Embedder {
	if maxConcurrent <= 0 {
		maxConcurrent = 4
	}
	return &Embedder{client: client, maxConcurrent: maxConcurrent}
}

// EmbedChunks fills in the Embedding field of every chunk in place.
// Backends implementing ai.EmbeddingBatcher get all texts in one request;
// others are called per chunk with bounded concurrency.
func (e *Embedder) EmbedChunks(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	if batcher, ok := e.client.(ai.EmbeddingBatcher); ok {
		inputs := make([][]byte, len(chunks))
		for i := range chunks {
			inputs[i] = []byte(chunks[i].Text)
		}
		return util.RetryErrWithContext(ctx, embedMaxTries, func(ctx context.Context) error {
			vectors, err := batcher.GenerateEmbeddings(ctx, inputs)
			if err != nil {
				return err
			}
			if len(vectors) != len(chunks) {
				return fmt.Errorf("embedding backend returned %d vectors for %d chunks", len(vectors), len(chunks))
			}
			for i := range chunks {
				chunks[i].Embedding = vectors[i]
			}
			return nil
		})
	}

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(e.maxConcurrent)

	for i := range chunks {
		eg.Go(func() error {
			vector, err := util.RetryWithContext(gCtx, embedMaxTries, func(ctx context.Context) ([]float32, error) {
				return e.client.GenerateEmbedding(ctx, []byte(chunks[i].Text))
			})
			if err != nil {
				return err
			}
			chunks[i].Embedding = vector
			return nil
		})
	}

	return eg.Wait()
}
