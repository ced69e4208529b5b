package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/reconcile"
)

func testDelta(docID string) *reconcile.GraphDelta {
	return &reconcile.GraphDelta{
		DocumentID: docID,
		CreateEntities: []common.Entity{
			{ID: "ent1", Name: "Jane Smith", Type: "person", Confidence: 0.9,
				Provenance: []common.Provenance{{DocumentID: docID}}},
		},
	}
}

func testWriter(graph *fakeGraph, vectors *fakeVectors, docs *fakeDocs) *Writer {
	w := NewWriter(graph, vectors, docs)
	w.maxTries = 2
	w.baseDelay = time.Millisecond
	return w
}

func TestCommitGraphBeforeVectors(t *testing.T) {
	var calls []string
	graph := &fakeGraph{calls: &calls}
	vectors := &fakeVectors{calls: &calls}
	docs := newFakeDocs(common.Document{ID: "doc1", Status: common.StatusReconciling})

	w := testWriter(graph, vectors, docs)
	chunks := []common.Chunk{{ID: "c1", DocumentID: "doc1", Text: "body"}}

	if err := w.Commit(context.Background(), testDelta("doc1"), chunks); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if len(calls) != 2 || calls[0] != "graph" || calls[1] != "vectors" {
		t.Errorf("call order = %v, want [graph vectors]", calls)
	}

	doc, _ := docs.GetDocument(context.Background(), "doc1")
	if doc.Status != common.StatusStored {
		t.Errorf("status = %q, want stored", doc.Status)
	}
	if doc.DeltaChecksum == "" {
		t.Error("delta checksum not recorded")
	}
}

func TestCommitMatchingChecksumIsNoOp(t *testing.T) {
	delta := testDelta("doc1")
	graph := &fakeGraph{}
	vectors := &fakeVectors{}
	docs := newFakeDocs(common.Document{
		ID:            "doc1",
		Status:        common.StatusStored,
		DeltaChecksum: delta.Checksum(),
	})

	w := testWriter(graph, vectors, docs)
	if err := w.Commit(context.Background(), delta, nil); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if len(graph.deltas) != 0 {
		t.Errorf("graph writes = %d, want 0", len(graph.deltas))
	}
	if len(vectors.saved) != 0 {
		t.Errorf("vector writes = %d, want 0", len(vectors.saved))
	}
}

func TestCommitGraphFailure(t *testing.T) {
	graph := &fakeGraph{applyErr: errors.New("neo4j down")}
	vectors := &fakeVectors{}
	docs := newFakeDocs(common.Document{ID: "doc1", Status: common.StatusReconciling})

	w := testWriter(graph, vectors, docs)
	err := w.Commit(context.Background(), testDelta("doc1"), nil)

	var commitErr *common.StoreCommitFailureError
	if !errors.As(err, &commitErr) || commitErr.Store != "graph" {
		t.Fatalf("error = %v, want graph StoreCommitFailureError", err)
	}
	if len(vectors.saved) != 0 {
		t.Error("vectors written despite graph failure")
	}

	doc, _ := docs.GetDocument(context.Background(), "doc1")
	if doc.Status != common.StatusFailed || doc.FailedStage != common.StageGraphCommit {
		t.Errorf("doc = %+v, want failed at graph-commit", doc)
	}
}

func TestCommitVectorFailureLeavesGraphOnly(t *testing.T) {
	graph := &fakeGraph{}
	vectors := &fakeVectors{saveErr: errors.New("pg down")}
	docs := newFakeDocs(common.Document{ID: "doc1", Status: common.StatusReconciling})

	w := testWriter(graph, vectors, docs)
	delta := testDelta("doc1")
	err := w.Commit(context.Background(), delta, []common.Chunk{{ID: "c1"}})

	var commitErr *common.StoreCommitFailureError
	if !errors.As(err, &commitErr) || commitErr.Store != "vector" {
		t.Fatalf("error = %v, want vector StoreCommitFailureError", err)
	}
	if len(graph.deltas) != 1 {
		t.Errorf("graph writes = %d, want 1", len(graph.deltas))
	}

	doc, _ := docs.GetDocument(context.Background(), "doc1")
	if doc.Status != common.StatusStoredGraphOnly {
		t.Errorf("status = %q, want stored-graph-only", doc.Status)
	}
	if doc.DeltaChecksum != delta.Checksum() {
		t.Error("checksum not recorded before vector write")
	}
}

func TestCommitResumesVectorOnly(t *testing.T) {
	delta := testDelta("doc1")
	graph := &fakeGraph{}
	vectors := &fakeVectors{}
	docs := newFakeDocs(common.Document{
		ID:            "doc1",
		Status:        common.StatusStoredGraphOnly,
		DeltaChecksum: delta.Checksum(),
	})

	w := testWriter(graph, vectors, docs)
	chunks := []common.Chunk{{ID: "c1", DocumentID: "doc1"}}
	if err := w.Commit(context.Background(), delta, chunks); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}

	if len(graph.deltas) != 0 {
		t.Errorf("graph writes = %d, want 0 on vector-only resume", len(graph.deltas))
	}
	if len(vectors.saved) != 1 {
		t.Errorf("vector writes = %d, want 1", len(vectors.saved))
	}

	doc, _ := docs.GetDocument(context.Background(), "doc1")
	if doc.Status != common.StatusStored {
		t.Errorf("status = %q, want stored", doc.Status)
	}
}

func TestCommitRefusesCancelBeforeFirstWrite(t *testing.T) {
	graph := &fakeGraph{}
	vectors := &fakeVectors{}
	docs := newFakeDocs(common.Document{ID: "doc1", Status: common.StatusReconciling})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	w := testWriter(graph, vectors, docs)
	err := w.Commit(ctx, testDelta("doc1"), nil)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("error = %v, want context.Canceled", err)
	}
	if len(graph.deltas) != 0 {
		t.Error("graph written after cancellation")
	}
}
