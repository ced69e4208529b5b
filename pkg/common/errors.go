package common

import (
	"errors"
	"fmt"
)

// ParseFailureError indicates the document-parsing service produced unusable
// output. The document is left in a retryable failed state at the parsing
// stage; the pipeline never guesses content.
type ParseFailureError struct {
	DocumentID string
	Reason     string
}

func (e *ParseFailureError) Error() string {
	return fmt.Sprintf("parse failure for document %s: %s", e.DocumentID, e.Reason)
}

// ExtractionMalformedError indicates the model output was not structurally
// valid even after one corrective retry. No entities are fabricated; the
// document fails at the extraction stage.
type ExtractionMalformedError struct {
	DocumentID string
	Raw        string
	Err        error
}

func (e *ExtractionMalformedError) Error() string {
	return fmt.Sprintf("malformed extraction output for document %s: %v", e.DocumentID, e.Err)
}

func (e *ExtractionMalformedError) Unwrap() error { return e.Err }

// ReconciliationConflict records an ambiguous merge candidate. It is logged
// for manual review and never auto-resolved; processing continues with the
// non-conflicting subset of the delta.
type ReconciliationConflict struct {
	CandidateName string
	CandidateType string
	MatchedIDs    []string
}

func (e *ReconciliationConflict) Error() string {
	return fmt.Sprintf("ambiguous merge for %q (%s): %d candidates", e.CandidateName, e.CandidateType, len(e.MatchedIDs))
}

// StoreCommitFailureError indicates the graph or vector store rejected a
// write after retries were exhausted.
type StoreCommitFailureError struct {
	Store string
	Err   error
}

func (e *StoreCommitFailureError) Error() string {
	return fmt.Sprintf("%s store commit failed: %v", e.Store, e.Err)
}

func (e *StoreCommitFailureError) Unwrap() error { return e.Err }

// ErrDanglingReference marks a relationship whose source or target never
// resolved to an entity. Such relationships are dropped with a warning, not
// propagated as a hard failure. The graph never contains dangling edges.
var ErrDanglingReference = errors.New("relationship references unresolved entity")
