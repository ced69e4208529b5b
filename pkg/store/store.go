package store

import (
	"context"
	"errors"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/reconcile"
)

// ErrNotFound is returned when a requested document or citation does not
// exist in the document store.
var ErrNotFound = errors.New("not found")

// GraphStore persists the knowledge graph. ApplyDelta commits a
// reconciled delta in a single transaction, writing entities before the
// relationships that reference them so the graph never holds a dangling
// edge, not even transiently.
type GraphStore interface {
	ApplyDelta(ctx context.Context, delta *reconcile.GraphDelta) error

	// Snapshot returns the current graph state for reconciliation.
	Snapshot(ctx context.Context) (reconcile.GraphState, error)

	FindEntities(ctx context.Context, name string, entityType string) ([]common.Entity, error)
	EntitiesForDocument(ctx context.Context, docID string) ([]common.Entity, error)
	RelationshipsForDocument(ctx context.Context, docID string) ([]common.Relationship, error)

	// Neighborhood returns the entities and relationships within one hop
	// of the given entity ids.
	Neighborhood(ctx context.Context, entityIDs []string) ([]common.Entity, []common.Relationship, error)

	DeleteDocument(ctx context.Context, docID string) error
}

// VectorStore persists chunk embeddings and serves similarity search.
type VectorStore interface {
	SaveChunks(ctx context.Context, chunks []common.Chunk) error
	SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]common.Chunk, error)
	DeleteChunks(ctx context.Context, docID string) error
}

// DocumentStore persists documents, their processing state and their
// citation records.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc common.Document) error
	GetDocument(ctx context.Context, docID string) (common.Document, error)
	ListDocuments(ctx context.Context) ([]common.Document, error)
	SetStatus(ctx context.Context, docID string, status common.DocumentStatus) error
	MarkFailed(ctx context.Context, docID string, stage string, reason string) error
	SetDeltaChecksum(ctx context.Context, docID string, checksum string) error
	DeleteDocument(ctx context.Context, docID string) error

	SaveCitation(ctx context.Context, c common.Citation) error
	GetCitation(ctx context.Context, docID string) (common.Citation, error)
}

// ChunkRange calls fn over [start, end) windows of at most chunkSize
// elements, stopping on the first error.
func ChunkRange(total, chunkSize int, fn func(start, end int) error) error {
	if total <= 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = total
	}
	for start := 0; start < total; start += chunkSize {
		end := min(start+chunkSize, total)
		if err := fn(start, end); err != nil {
			return err
		}
	}
	return nil
}

// DedupeStrings drops empty and repeated values, preserving order.
func DedupeStrings(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, v := range in {
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
