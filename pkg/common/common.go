package common

import "time"

// DocumentStatus tracks where a document is in the processing pipeline.
// Transitions are monotonic: a document never moves backwards except
// through an explicit retry, which resets it to StatusPending.
type DocumentStatus string

const (
	StatusPending     DocumentStatus = "pending"
	StatusParsing     DocumentStatus = "parsing"
	StatusExtracting  DocumentStatus = "extracting"
	StatusReconciling DocumentStatus = "reconciling"
	StatusStored      DocumentStatus = "stored"

	// StatusStoredGraphOnly marks a document whose graph delta committed but
	// whose chunk vectors did not. Such documents are eligible for a
	// vector-only retry that skips extraction entirely.
	StatusStoredGraphOnly DocumentStatus = "stored-graph-only"

	StatusFailed DocumentStatus = "failed"
)

// Stage names recorded alongside a failed status so that consumers can
// distinguish "no entities because extraction failed" from "nothing found".
const (
	StageParsing     = "parsing"
	StageExtraction  = "extraction"
	StageReconcile   = "reconcile"
	StageGraphCommit = "graph-commit"
	StageVectorStore = "vector-store"
)

// Document represents one ingested paper and its processing state.
type Document struct {
	ID            string         `json:"id"`
	SourceURI     string         `json:"source_uri"`
	Title         string         `json:"title"`
	Status        DocumentStatus `json:"status"`
	FailedStage   string         `json:"failed_stage,omitempty"`
	FailureReason string         `json:"failure_reason,omitempty"`
	DeltaChecksum string         `json:"delta_checksum,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Citation holds the bibliographic record extracted for a document.
// Confidence is in [0,1]; once it clears the configured acceptance
// threshold the record is only overwritten by a higher-confidence
// re-extraction.
type Citation struct {
	DocumentID string   `json:"document_id"`
	Title      string   `json:"title"`
	Authors    []string `json:"authors"`
	Journal    string   `json:"journal"`
	Year       int      `json:"year"`
	DOI        string   `json:"doi"`
	Confidence float64  `json:"confidence"`
}

// Provenance links an entity or relationship back to the document (and
// optionally the chunk) that evidenced it. Every entity and relationship
// carries at least one provenance record; orphan nodes are a defect.
type Provenance struct {
	DocumentID string `json:"document_id"`
	ChunkID    string `json:"chunk_id,omitempty"`
	Excerpt    string `json:"excerpt,omitempty"`
}

// Entity represents a node in the knowledge graph: a person, organization,
// concept, technology or similar real-world thing. Entities are shared
// across documents: a later document mentioning the same thing references
// the existing node instead of creating a duplicate.
type Entity struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Type       string            `json:"type"`
	Props      map[string]string `json:"props,omitempty"`
	Confidence float64           `json:"confidence"`
	Provenance []Provenance      `json:"provenance"`
}

// Relationship represents a typed, directed edge between two entities.
// Identity is the (SourceID, Type, TargetID) triple; additional evidence
// for the same triple is unioned into Provenance rather than duplicated.
type Relationship struct {
	ID         string       `json:"id"`
	SourceID   string       `json:"source_id"`
	TargetID   string       `json:"target_id"`
	Type       string       `json:"type"`
	Context    string       `json:"context,omitempty"`
	Confidence float64      `json:"confidence"`
	Provenance []Provenance `json:"provenance"`
}

// Chunk is a bounded text segment of a document, the unit of vector
// embedding and retrieval. Start/End are sentence indices into the
// document's sentence sequence, in document order.
type Chunk struct {
	ID         string    `json:"id"`
	DocumentID string    `json:"document_id"`
	Index      int       `json:"index"`
	Start      int       `json:"start"`
	End        int       `json:"end"`
	Text       string    `json:"text"`
	Embedding  []float32 `json:"-"`
}

// ClampConfidence forces a confidence score into [0,1].
func ClampConfidence(c float64) float64 {
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}
