package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"
)

// fakeClient replays canned responses for GenerateCompletionWithFormat.
// Each call consumes one element of responses; a nil element means the
// call fails, as malformed output unless failWith overrides it.
type fakeClient struct {
	ai.PaperAIClient

	responses []*extractResponse
	failWith  error
	calls     int
}

func (f *fakeClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	idx := f.calls
	f.calls++
	if idx >= len(f.responses) || f.responses[idx] == nil {
		if f.failWith != nil {
			return f.failWith
		}
		return fmt.Errorf("%w: unmarshal failed after repair", ai.ErrMalformedOutput)
	}
	raw, err := json.Marshal(f.responses[idx])
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}

func paperTemplate(t *testing.T) Template {
	t.Helper()
	tpl, err := LookupTemplate(DefaultTemplateKey)
	if err != nil {
		t.Fatalf("LookupTemplate() error = %v", err)
	}
	return tpl
}

func testChunk() common.Chunk {
	return common.Chunk{
		ID:         "chunk1",
		DocumentID: "doc1",
		Text:       "Jane Smith developed Method X at Acme Lab.",
	}
}

func TestFromChunkValidResponse(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{{
		Entities: []extractEntity{
			{ID: "e1", Name: "Jane Smith", Type: "person", Confidence: 0.95,
				Properties: []extractProperty{{Key: "affiliation", Value: "Acme Lab"}}},
			{ID: "e2", Name: "Method X", Type: "method", Confidence: 0.9},
			{ID: "e3", Name: "Acme Lab", Type: "organization", Confidence: 0.85},
		},
		Relationships: []extractRelationship{
			{Source: "e1", Target: "e2", Type: "DEVELOPED", Context: "Jane Smith developed Method X", Confidence: 0.9},
			{Source: "e1", Target: "e3", Type: "WORKS_AT", Confidence: 0.8},
		},
		Metadata: extractMetadata{EntityCount: 3, RelationshipCount: 2},
	}}}

	res, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if err != nil {
		t.Fatalf("FromChunk() error = %v", err)
	}

	if len(res.Entities) != 3 {
		t.Fatalf("entities = %d, want 3", len(res.Entities))
	}
	if len(res.Relationships) != 2 {
		t.Fatalf("relationships = %d, want 2", len(res.Relationships))
	}

	jane := res.Entities[0]
	if jane.Name != "Jane Smith" || jane.Type != "person" {
		t.Errorf("entity = %+v", jane)
	}
	if jane.Props["affiliation"] != "Acme Lab" {
		t.Errorf("props = %v", jane.Props)
	}
	if jane.ID == "" {
		t.Error("entity has no assigned id")
	}
	if len(jane.Provenance) != 1 || jane.Provenance[0].DocumentID != "doc1" || jane.Provenance[0].ChunkID != "chunk1" {
		t.Errorf("provenance = %v", jane.Provenance)
	}

	dev := res.Relationships[0]
	if dev.SourceID != jane.ID {
		t.Errorf("relationship source = %q, want %q", dev.SourceID, jane.ID)
	}
	if dev.TargetID != res.Entities[1].ID {
		t.Errorf("relationship target = %q, want %q", dev.TargetID, res.Entities[1].ID)
	}
	if dev.Type != "DEVELOPED" {
		t.Errorf("relationship type = %q", dev.Type)
	}
}

func TestFromChunkVocabularyClosure(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{{
		Entities: []extractEntity{
			{ID: "e1", Name: "Quantum Annealing", Type: "algorithm", Confidence: 0.9},
			{ID: "e2", Name: "D-Wave", Type: "organization", Confidence: 0.9},
		},
		Relationships: []extractRelationship{
			{Source: "e2", Target: "e1", Type: "COMMERCIALIZES", Confidence: 0.8},
		},
	}}}

	res, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if err != nil {
		t.Fatalf("FromChunk() error = %v", err)
	}

	if res.Entities[0].Type != CatchAllEntityType {
		t.Errorf("entity type = %q, want %q", res.Entities[0].Type, CatchAllEntityType)
	}
	if res.Relationships[0].Type != CatchAllRelationshipType {
		t.Errorf("relationship type = %q, want %q", res.Relationships[0].Type, CatchAllRelationshipType)
	}
}

func TestFromChunkDropsUnresolvedRelationship(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{{
		Entities: []extractEntity{
			{ID: "e1", Name: "Jane Smith", Type: "person", Confidence: 0.9},
		},
		Relationships: []extractRelationship{
			{Source: "e1", Target: "e99", Type: "WORKS_AT", Confidence: 0.9},
		},
	}}}

	res, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if err != nil {
		t.Fatalf("FromChunk() error = %v", err)
	}
	if len(res.Relationships) != 0 {
		t.Errorf("relationships = %d, want 0 (dangling reference dropped)", len(res.Relationships))
	}
	if len(res.Entities) != 1 {
		t.Errorf("entities = %d, want 1", len(res.Entities))
	}
}

func TestFromChunkLowConfidenceSideList(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{{
		Entities: []extractEntity{
			{ID: "e1", Name: "Jane Smith", Type: "person", Confidence: 0.9},
			{ID: "e2", Name: "Maybe Lab", Type: "organization", Confidence: 0.1},
		},
		Relationships: []extractRelationship{
			{Source: "e1", Target: "e2", Type: "WORKS_AT", Confidence: 0.1},
		},
	}}}

	res, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if err != nil {
		t.Fatalf("FromChunk() error = %v", err)
	}

	if len(res.Entities) != 1 {
		t.Errorf("accepted entities = %d, want 1", len(res.Entities))
	}
	if len(res.LowConfidenceEntities) != 1 {
		t.Errorf("low-confidence entities = %d, want 1", len(res.LowConfidenceEntities))
	}
	// the edge anchors to the low-confidence entity and is itself below
	// threshold, so it lands in the side list instead of vanishing
	if len(res.LowConfidenceRelationships) != 1 {
		t.Errorf("low-confidence relationships = %d, want 1", len(res.LowConfidenceRelationships))
	}
}

func TestFromChunkCorrectiveRetry(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{
		nil,
		{Entities: []extractEntity{{ID: "e1", Name: "Jane Smith", Type: "person", Confidence: 0.9}}},
	}}

	res, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if err != nil {
		t.Fatalf("FromChunk() error = %v", err)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want 2", client.calls)
	}
	if len(res.Entities) != 1 {
		t.Errorf("entities = %d, want 1", len(res.Entities))
	}
}

func TestFromChunkMalformedTwice(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{nil, nil}}

	_, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())

	var malformed *common.ExtractionMalformedError
	if !errors.As(err, &malformed) {
		t.Fatalf("error = %v, want ExtractionMalformedError", err)
	}
	if malformed.DocumentID != "doc1" {
		t.Errorf("document id = %q, want doc1", malformed.DocumentID)
	}
	if client.calls != 2 {
		t.Errorf("calls = %d, want exactly 2 (one corrective retry)", client.calls)
	}
}

func TestFromChunkTransportErrorNotRetried(t *testing.T) {
	transport := errors.New("connection refused")
	client := &fakeClient{responses: []*extractResponse{nil}, failWith: transport}

	_, err := FromChunk(context.Background(), client, paperTemplate(t), testChunk())
	if !errors.Is(err, transport) {
		t.Fatalf("error = %v, want the transport error unchanged", err)
	}

	var malformed *common.ExtractionMalformedError
	if errors.As(err, &malformed) {
		t.Error("transport failure classified as malformed output")
	}
	if client.calls != 1 {
		t.Errorf("calls = %d, want 1 (no corrective retry for transport failures)", client.calls)
	}
}

func TestFromChunksMergesResults(t *testing.T) {
	client := &fakeClient{responses: []*extractResponse{
		{Entities: []extractEntity{{ID: "e1", Name: "Jane Smith", Type: "person", Confidence: 0.9}}},
		{Entities: []extractEntity{{ID: "e1", Name: "Acme Lab", Type: "organization", Confidence: 0.9}}},
	}}

	chunks := []common.Chunk{
		{ID: "c1", DocumentID: "doc1", Text: "first"},
		{ID: "c2", DocumentID: "doc1", Text: "second"},
	}

	t.Setenv("EXTRACT_MAX_CONCURRENT", "1")
	res, err := FromChunks(context.Background(), client, paperTemplate(t), chunks)
	if err != nil {
		t.Fatalf("FromChunks() error = %v", err)
	}
	if len(res.Entities) != 2 {
		t.Errorf("entities = %d, want 2", len(res.Entities))
	}
}
