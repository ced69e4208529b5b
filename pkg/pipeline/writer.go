package pipeline

import (
	"context"
	"time"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/reconcile"
	"github.com/papergraph/papergraph/pkg/store"
)

// Writer commits a reconciled delta and the document's chunk vectors in
// order: graph first, vectors second. The two stores are independent, so
// instead of a distributed transaction the writer relies on ordered
// commit plus a resumable status. A vector failure after a successful
// graph commit leaves the document in stored-graph-only, from which only
// the vector write is retried.
type Writer struct {
	graph   store.GraphStore
	vectors store.VectorStore
	docs    store.DocumentStore

	maxTries  int
	baseDelay time.Duration
}

func NewWriter(graph store.GraphStore, vectors store.VectorStore, docs store.DocumentStore) *Writer {
	return &Writer{
		graph:     graph,
		vectors:   vectors,
		docs:      docs,
		maxTries:  3,
		baseDelay: 500 * time.Millisecond,
	}
}

// Commit applies the delta to the graph store, records its checksum, and
// upserts the chunk vectors. A delta whose checksum matches the one
// already recorded for the document skips the graph write, which makes
// reprocessing a committed document a no-op.
//
// Cancellation is honored up to the first store write. Once the graph
// commit starts the remaining writes run on a detached context, because
// stopping between the stores is exactly the inconsistency the ordering
// exists to avoid.
func (w *Writer) Commit(ctx context.Context, delta *reconcile.GraphDelta, chunks []common.Chunk) error {
	docID := delta.DocumentID
	checksum := delta.Checksum()

	doc, err := w.docs.GetDocument(ctx, docID)
	if err != nil {
		return err
	}

	if doc.DeltaChecksum == checksum && doc.Status == common.StatusStored {
		logger.Debug("[Writer] Delta already committed, skipping", "doc", docID, "checksum", checksum)
		return nil
	}

	graphDone := doc.DeltaChecksum == checksum && doc.Status == common.StatusStoredGraphOnly

	if err := ctx.Err(); err != nil {
		return err
	}
	commitCtx := context.WithoutCancel(ctx)

	if !graphDone {
		err := util.RetryBackoffWithContext(commitCtx, w.maxTries, w.baseDelay, func(ctx context.Context) error {
			return w.graph.ApplyDelta(ctx, delta)
		})
		if err != nil {
			commitErr := &common.StoreCommitFailureError{Store: "graph", Err: err}
			if ferr := w.docs.MarkFailed(commitCtx, docID, common.StageGraphCommit, commitErr.Error()); ferr != nil {
				logger.Error("failed to record graph commit failure", "doc", docID, "err", ferr)
			}
			return commitErr
		}
		if err := w.docs.SetDeltaChecksum(commitCtx, docID, checksum); err != nil {
			return err
		}
	}

	err = util.RetryBackoffWithContext(commitCtx, w.maxTries, w.baseDelay, func(ctx context.Context) error {
		// a changed document re-chunks under different ids, so rows from
		// the previous parse must go before the upsert
		if err := w.vectors.DeleteChunks(ctx, docID); err != nil {
			return err
		}
		return w.vectors.SaveChunks(ctx, chunks)
	})
	if err != nil {
		commitErr := &common.StoreCommitFailureError{Store: "vector", Err: err}
		logger.Warn("graph committed but vector write failed, marking for vector-only retry",
			"doc", docID, "err", err)
		if serr := w.docs.SetStatus(commitCtx, docID, common.StatusStoredGraphOnly); serr != nil {
			logger.Error("failed to record stored-graph-only status", "doc", docID, "err", serr)
		}
		return commitErr
	}

	return w.docs.SetStatus(commitCtx, docID, common.StatusStored)
}
