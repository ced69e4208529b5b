package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/reconcile"
	"github.com/papergraph/papergraph/pkg/store"
)

type fakeGraph struct {
	entitiesByDoc map[string][]common.Entity
	neighborhood  []common.Relationship
}

func (g *fakeGraph) ApplyDelta(ctx context.Context, delta *reconcile.GraphDelta) error { return nil }

func (g *fakeGraph) Snapshot(ctx context.Context) (reconcile.GraphState, error) {
	return reconcile.GraphState{}, nil
}

func (g *fakeGraph) FindEntities(ctx context.Context, name string, entityType string) ([]common.Entity, error) {
	return nil, nil
}

func (g *fakeGraph) EntitiesForDocument(ctx context.Context, docID string) ([]common.Entity, error) {
	return g.entitiesByDoc[docID], nil
}

func (g *fakeGraph) RelationshipsForDocument(ctx context.Context, docID string) ([]common.Relationship, error) {
	return nil, nil
}

func (g *fakeGraph) Neighborhood(ctx context.Context, entityIDs []string) ([]common.Entity, []common.Relationship, error) {
	var entities []common.Entity
	for _, list := range g.entitiesByDoc {
		entities = append(entities, list...)
	}
	return entities, g.neighborhood, nil
}

func (g *fakeGraph) DeleteDocument(ctx context.Context, docID string) error { return nil }

type fakeVectors struct {
	chunks []common.Chunk
}

func (v *fakeVectors) SaveChunks(ctx context.Context, chunks []common.Chunk) error { return nil }

func (v *fakeVectors) SearchSimilar(ctx context.Context, embedding []float32, limit int) ([]common.Chunk, error) {
	if limit < len(v.chunks) {
		return v.chunks[:limit], nil
	}
	return v.chunks, nil
}

func (v *fakeVectors) DeleteChunks(ctx context.Context, docID string) error { return nil }

type fakeDocs struct {
	docs      map[string]common.Document
	citations map[string]common.Citation
}

func (d *fakeDocs) CreateDocument(ctx context.Context, doc common.Document) error { return nil }

func (d *fakeDocs) GetDocument(ctx context.Context, docID string) (common.Document, error) {
	doc, ok := d.docs[docID]
	if !ok {
		return common.Document{}, store.ErrNotFound
	}
	return doc, nil
}

func (d *fakeDocs) ListDocuments(ctx context.Context) ([]common.Document, error) { return nil, nil }

func (d *fakeDocs) SetStatus(ctx context.Context, docID string, status common.DocumentStatus) error {
	return nil
}

func (d *fakeDocs) MarkFailed(ctx context.Context, docID string, stage string, reason string) error {
	return nil
}

func (d *fakeDocs) SetDeltaChecksum(ctx context.Context, docID string, checksum string) error {
	return nil
}

func (d *fakeDocs) DeleteDocument(ctx context.Context, docID string) error { return nil }

func (d *fakeDocs) SaveCitation(ctx context.Context, c common.Citation) error { return nil }

func (d *fakeDocs) GetCitation(ctx context.Context, docID string) (common.Citation, error) {
	c, ok := d.citations[docID]
	if !ok {
		return common.Citation{}, store.ErrNotFound
	}
	return c, nil
}

type fakeAI struct {
	ai.PaperAIClient

	prompts []string
}

func (f *fakeAI) GenerateEmbedding(ctx context.Context, input []byte) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (f *fakeAI) GenerateCompletion(ctx context.Context, prompt string, opts ...ai.GenerateOption) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return "Method X was developed by Jane Smith [doc:doc1].", nil
}

func TestAskComposesContext(t *testing.T) {
	graph := &fakeGraph{
		entitiesByDoc: map[string][]common.Entity{
			"doc1": {
				{ID: "ent1", Name: "Jane Smith", Type: "person"},
				{ID: "ent2", Name: "Method X", Type: "method"},
			},
		},
		neighborhood: []common.Relationship{
			{ID: "rel1", SourceID: "ent1", TargetID: "ent2", Type: "DEVELOPED"},
		},
	}
	vectors := &fakeVectors{chunks: []common.Chunk{
		{ID: "c1", DocumentID: "doc1", Text: "Jane Smith developed Method X at Acme Lab."},
	}}
	aiClient := &fakeAI{}

	svc := New(aiClient, graph, vectors, &fakeDocs{})

	answer, err := svc.Ask(context.Background(), "Who developed Method X?", 4)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}

	if !reflect.DeepEqual(answer.Documents, []string{"doc1"}) {
		t.Errorf("documents = %v, want [doc1]", answer.Documents)
	}
	if answer.Text == "" {
		t.Error("empty answer text")
	}

	if len(aiClient.prompts) != 1 {
		t.Fatalf("completions = %d, want 1", len(aiClient.prompts))
	}
	prompt := aiClient.prompts[0]
	for _, want := range []string{
		"Who developed Method X?",
		"Jane Smith -[DEVELOPED]-> Method X",
		"[doc:doc1]",
		"Jane Smith developed Method X at Acme Lab.",
	} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestAskEmptyQuestion(t *testing.T) {
	svc := New(&fakeAI{}, &fakeGraph{}, &fakeVectors{}, &fakeDocs{})
	if _, err := svc.Ask(context.Background(), "   ", 4); err == nil {
		t.Error("Ask() accepted an empty question")
	}
}

func TestCitationForDocument(t *testing.T) {
	docs := &fakeDocs{citations: map[string]common.Citation{
		"doc1": {
			DocumentID: "doc1",
			Title:      "Graph Extraction From Papers",
			Authors:    []string{"Jane Smith"},
			Year:       2024,
		},
	}}
	svc := New(&fakeAI{}, &fakeGraph{}, &fakeVectors{}, docs)

	got, err := svc.CitationForDocument(context.Background(), "doc1", "apa")
	if err != nil {
		t.Fatalf("CitationForDocument() error = %v", err)
	}
	if !strings.Contains(got, "Smith") || !strings.Contains(got, "2024") {
		t.Errorf("citation = %q", got)
	}

	if _, err := svc.CitationForDocument(context.Background(), "missing", "apa"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("error = %v, want ErrNotFound", err)
	}
}

func TestDocumentStatusReportsFailureStage(t *testing.T) {
	docs := &fakeDocs{docs: map[string]common.Document{
		"doc1": {
			ID:            "doc1",
			Status:        common.StatusFailed,
			FailedStage:   common.StageExtraction,
			FailureReason: "malformed output",
		},
	}}
	svc := New(&fakeAI{}, &fakeGraph{}, &fakeVectors{}, docs)

	doc, err := svc.DocumentStatus(context.Background(), "doc1")
	if err != nil {
		t.Fatalf("DocumentStatus() error = %v", err)
	}
	if doc.FailedStage != common.StageExtraction {
		t.Errorf("failed stage = %q, want extraction", doc.FailedStage)
	}
}
