package pgx

import (
	"context"

	"github.com/pgvector/pgvector-go"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/store"
)

// SaveChunks upserts a batch of embedded chunks inside a single
// transaction per batch window.
func (s *DocDBStore) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	logger.Debug("[Store][SaveChunks] Bulk upserting chunks", "chunks", len(chunks))

	return store.ChunkRange(len(chunks), 500, func(start, end int) error {
		tx, err := s.conn.Begin(ctx)
		if err != nil {
			return err
		}
		defer tx.Rollback(ctx)

		for _, chunk := range chunks[start:end] {
			_, err := tx.Exec(ctx, `
				INSERT INTO chunks (id, document_id, idx, sentence_start, sentence_end, body, embedding)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT (id) DO UPDATE SET
					body = excluded.body,
					embedding = excluded.embedding`,
				chunk.ID, chunk.DocumentID, chunk.Index, chunk.Start, chunk.End,
				util.SanitizePostgresText(chunk.Text), pgvector.NewVector(chunk.Embedding),
			)
			if err != nil {
				return err
			}
		}

		return tx.Commit(ctx)
	})
}

// SearchSimilar returns the chunks nearest to the query embedding by
// cosine distance.
func (s *DocDBStore) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]common.Chunk, error) {
	if limit <= 0 {
		limit = 8
	}

	rows, err := s.conn.Query(ctx, `
		SELECT id, document_id, idx, sentence_start, sentence_end, body
		FROM chunks
		ORDER BY embedding <=> $1
		LIMIT $2`,
		pgvector.NewVector(embedding), limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chunks []common.Chunk
	for rows.Next() {
		var c common.Chunk
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Start, &c.End, &c.Text); err != nil {
			return nil, err
		}
		chunks = append(chunks, c)
	}
	return chunks, rows.Err()
}

// DeleteChunks removes every chunk of a document.
func (s *DocDBStore) DeleteChunks(ctx context.Context, docID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, docID)
	return err
}
