package pgx

import (
	"context"
	"errors"

	pgxv5 "github.com/jackc/pgx/v5"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/store"
)

// SaveCitation upserts the citation record for a document. Whether a
// candidate should replace the stored record is decided by the caller
// before writing.
func (s *DocDBStore) SaveCitation(ctx context.Context, c common.Citation) error {
	_, err := s.conn.Exec(ctx, `
		INSERT INTO citations (document_id, title, authors, journal, year, doi, confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (document_id) DO UPDATE SET
			title = excluded.title,
			authors = excluded.authors,
			journal = excluded.journal,
			year = excluded.year,
			doi = excluded.doi,
			confidence = excluded.confidence`,
		c.DocumentID, c.Title, c.Authors, c.Journal, c.Year, c.DOI, c.Confidence,
	)
	return err
}

func (s *DocDBStore) GetCitation(ctx context.Context, docID string) (common.Citation, error) {
	var c common.Citation
	err := s.conn.QueryRow(ctx, `
		SELECT document_id, title, authors, journal, year, doi, confidence
		FROM citations WHERE document_id = $1`, docID,
	).Scan(&c.DocumentID, &c.Title, &c.Authors, &c.Journal, &c.Year, &c.DOI, &c.Confidence)
	if errors.Is(err, pgxv5.ErrNoRows) {
		return c, store.ErrNotFound
	}
	return c, err
}
