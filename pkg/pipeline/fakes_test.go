package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/parser"
	"github.com/papergraph/papergraph/pkg/reconcile"
	"github.com/papergraph/papergraph/pkg/store"
)

type fakeGraph struct {
	mu       sync.Mutex
	state    reconcile.GraphState
	deltas   []*reconcile.GraphDelta
	applyErr error
	deleted  []string
	calls    *[]string
}

func (g *fakeGraph) record(call string) {
	if g.calls != nil {
		*g.calls = append(*g.calls, call)
	}
}

func (g *fakeGraph) ApplyDelta(ctx context.Context, delta *reconcile.GraphDelta) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.applyErr != nil {
		return g.applyErr
	}
	g.record("graph")
	g.deltas = append(g.deltas, delta)
	return nil
}

func (g *fakeGraph) Snapshot(ctx context.Context) (reconcile.GraphState, error) {
	return g.state, nil
}

func (g *fakeGraph) FindEntities(ctx context.Context, name string, entityType string) ([]common.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) EntitiesForDocument(ctx context.Context, docID string) ([]common.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) RelationshipsForDocument(ctx context.Context, docID string) ([]common.Relationship, error) {
	return nil, nil
}

func (g *fakeGraph) Neighborhood(ctx context.Context, entityIDs []string) ([]common.Entity, []common.Relationship, error) {
	return nil, nil, nil
}

func (g *fakeGraph) DeleteDocument(ctx context.Context, docID string) error {
	g.deleted = append(g.deleted, docID)
	return nil
}

// fakeVectors keys rows by chunk id, like the real store's upsert.
type fakeVectors struct {
	mu      sync.Mutex
	saved   map[string]common.Chunk
	saveErr error
	deleted []string
	calls   *[]string
}

func (v *fakeVectors) SaveChunks(ctx context.Context, chunks []common.Chunk) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.saveErr != nil {
		return v.saveErr
	}
	if v.calls != nil {
		*v.calls = append(*v.calls, "vectors")
	}
	if v.saved == nil {
		v.saved = make(map[string]common.Chunk)
	}
	for _, c := range chunks {
		v.saved[c.ID] = c
	}
	return nil
}

func (v *fakeVectors) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]common.Chunk, error) {
	return nil, nil
}

func (v *fakeVectors) DeleteChunks(ctx context.Context, docID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.deleted = append(v.deleted, docID)
	for id, c := range v.saved {
		if c.DocumentID == docID {
			delete(v.saved, id)
		}
	}
	return nil
}

type failedStage struct {
	stage  string
	reason string
}

type fakeDocs struct {
	mu        sync.Mutex
	docs      map[string]common.Document
	citations map[string]common.Citation
	statuses  []common.DocumentStatus
	failures  []failedStage
}

func newFakeDocs(docs ...common.Document) *fakeDocs {
	f := &fakeDocs{
		docs:      make(map[string]common.Document),
		citations: make(map[string]common.Citation),
	}
	for _, d := range docs {
		f.docs[d.ID] = d
	}
	return f
}

func (d *fakeDocs) CreateDocument(ctx context.Context, doc common.Document) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.docs[doc.ID] = doc
	return nil
}

func (d *fakeDocs) GetDocument(ctx context.Context, docID string) (common.Document, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc, ok := d.docs[docID]
	if !ok {
		return common.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (d *fakeDocs) ListDocuments(ctx context.Context) ([]common.Document, error) {
	return nil, nil
}

func (d *fakeDocs) SetStatus(ctx context.Context, docID string, status common.DocumentStatus) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs[docID]
	doc.Status = status
	doc.FailedStage = ""
	doc.FailureReason = ""
	d.docs[docID] = doc
	d.statuses = append(d.statuses, status)
	return nil
}

func (d *fakeDocs) MarkFailed(ctx context.Context, docID string, stage string, reason string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs[docID]
	doc.Status = common.StatusFailed
	doc.FailedStage = stage
	doc.FailureReason = reason
	d.docs[docID] = doc
	d.failures = append(d.failures, failedStage{stage: stage, reason: reason})
	return nil
}

func (d *fakeDocs) SetDeltaChecksum(ctx context.Context, docID string, checksum string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	doc := d.docs[docID]
	doc.DeltaChecksum = checksum
	d.docs[docID] = doc
	return nil
}

func (d *fakeDocs) DeleteDocument(ctx context.Context, docID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.docs, docID)
	return nil
}

func (d *fakeDocs) SaveCitation(ctx context.Context, c common.Citation) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.citations[c.DocumentID] = c
	return nil
}

func (d *fakeDocs) GetCitation(ctx context.Context, docID string) (common.Citation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	c, ok := d.citations[docID]
	if !ok {
		return common.Citation{}, store.ErrNotFound
	}
	return c, nil
}

type fakeParser struct {
	result *parser.Result
	err    error
}

func (p *fakeParser) ParseDocument(ctx context.Context, docID string, pdf []byte) (*parser.Result, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.result, nil
}

// fakeAI answers every schema-constrained call with the same canned
// extraction payload and embeds everything as a unit vector.
type fakeAI struct {
	ai.PaperAIClient

	extraction map[string]any
	formatErr  error
}

func (f *fakeAI) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if f.formatErr != nil {
		return f.formatErr
	}
	raw, err := json.Marshal(f.extraction)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	return "answer", nil
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	if len(input) == 0 {
		return nil, errors.New("empty input")
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeAI) ResetMetrics() {}

func (f *fakeAI) GetMetrics() ai.ModelMetrics { return ai.ModelMetrics{} }
