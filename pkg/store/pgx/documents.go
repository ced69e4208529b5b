package pgx

import (
	"context"
	"errors"
	"fmt"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/store"
)

const documentColumns = `id, source_uri, title, status,
	coalesce(failed_stage, ''), coalesce(failure_reason, ''), coalesce(delta_checksum, ''),
	created_at, updated_at`

func scanDocument(row pgxv5.Row) (common.Document, error) {
	var doc common.Document
	err := row.Scan(
		&doc.ID, &doc.SourceURI, &doc.Title, &doc.Status,
		&doc.FailedStage, &doc.FailureReason, &doc.DeltaChecksum,
		&doc.CreatedAt, &doc.UpdatedAt,
	)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return doc, store.ErrNotFound
	}
	return doc, err
}

func (s *DocDBStore) CreateDocument(ctx context.Context, doc common.Document) error {
	if doc.Status == "" {
		doc.Status = common.StatusPending
	}
	_, err := s.conn.Exec(ctx, `
		INSERT INTO documents (id, source_uri, title, status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			source_uri = excluded.source_uri,
			title = excluded.title,
			updated_at = now()`,
		doc.ID, doc.SourceURI, doc.Title, doc.Status,
	)
	return err
}

func (s *DocDBStore) GetDocument(ctx context.Context, docID string) (common.Document, error) {
	row := s.conn.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents WHERE id = $1`, docID)
	return scanDocument(row)
}

func (s *DocDBStore) ListDocuments(ctx context.Context) ([]common.Document, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT `+documentColumns+` FROM documents ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []common.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, rows.Err()
}

// SetStatus moves a document to the given stage and clears any recorded
// failure.
func (s *DocDBStore) SetStatus(ctx context.Context, docID string, status common.DocumentStatus) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents
		SET status = $2, failed_stage = NULL, failure_reason = NULL, updated_at = now()
		WHERE id = $1`,
		docID, status,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	logger.Debug("[Store][SetStatus] Document status updated", "doc", docID, "status", status)
	return nil
}

// MarkFailed records the stage the document failed in and why, so a query
// for the document can tell "nothing extracted" apart from "extraction
// never ran".
func (s *DocDBStore) MarkFailed(ctx context.Context, docID string, stage string, reason string) error {
	tag, err := s.conn.Exec(ctx, `
		UPDATE documents
		SET status = $2, failed_stage = $3, failure_reason = $4, updated_at = now()
		WHERE id = $1`,
		docID, common.StatusFailed, stage, reason,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("document %s: %w", docID, store.ErrNotFound)
	}
	return nil
}

// SetDeltaChecksum records the digest of the last committed graph delta.
func (s *DocDBStore) SetDeltaChecksum(ctx context.Context, docID string, checksum string) error {
	_, err := s.conn.Exec(ctx, `
		UPDATE documents SET delta_checksum = $2, updated_at = now() WHERE id = $1`,
		docID, checksum,
	)
	return err
}

// DeleteDocument removes the document row; citations and chunks go with
// it through their foreign keys.
func (s *DocDBStore) DeleteDocument(ctx context.Context, docID string) error {
	_, err := s.conn.Exec(ctx, `DELETE FROM documents WHERE id = $1`, docID)
	return err
}
