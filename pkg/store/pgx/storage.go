package pgx

import (
	"context"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// DocDBStore implements store.DocumentStore and store.VectorStore on
// PostgreSQL. Chunk embeddings live in a pgvector column so similarity
// search runs in the same database as the document records.
type DocDBStore struct {
	conn pgxIConn
}

// NewDocDBStoreWithConnection wraps an existing connection or pool. The
// connection must have pgvector types registered.
func NewDocDBStoreWithConnection(conn pgxIConn) *DocDBStore {
	return &DocDBStore{conn: conn}
}
