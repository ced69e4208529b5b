package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/papergraph/papergraph/internal/util"
)

// GraphDBStore implements store.GraphStore on top of a Neo4j database.
// Entities are nodes labeled Entity, relationships are RELATED edges with
// the semantic type held in a property so edge types stay free-form.
type GraphDBStore struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewFromEnv builds a store from NEO4J_URI, NEO4J_USER, NEO4J_PASSWORD
// and NEO4J_DATABASE, verifying connectivity before returning.
func NewFromEnv(ctx context.Context) (*GraphDBStore, error) {
	uri := util.GetEnv("NEO4J_URI")

	user := util.GetEnvString("NEO4J_USER", "neo4j")
	password := util.GetEnv("NEO4J_PASSWORD")
	database := util.GetEnvString("NEO4J_DATABASE", "")

	timeoutSec := int(util.GetEnvNumeric("NEO4J_TIMEOUT_SECONDS", 10))
	maxPool := int(util.GetEnvNumeric("NEO4J_MAX_POOL_SIZE", 50))

	auth := neo4j.BasicAuth(user, password, "")
	driver, err := neo4j.NewDriverWithContext(uri, auth, func(cfg *neo4j.Config) {
		cfg.MaxConnectionPoolSize = maxPool
		cfg.SocketConnectTimeout = time.Duration(timeoutSec) * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, time.Duration(timeoutSec)*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}

	s := &GraphDBStore{driver: driver, database: database}
	if err := s.ensureConstraints(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, err
	}
	return s, nil
}

// NewWithDriver wraps an existing driver without connectivity checks.
func NewWithDriver(driver neo4j.DriverWithContext, database string) *GraphDBStore {
	return &GraphDBStore{driver: driver, database: database}
}

func (s *GraphDBStore) session(ctx context.Context, mode neo4j.AccessMode) neo4j.SessionWithContext {
	return s.driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: s.database,
	})
}

func (s *GraphDBStore) ensureConstraints(ctx context.Context) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	stmts := []string{
		`CREATE CONSTRAINT entity_id_unique IF NOT EXISTS FOR (e:Entity) REQUIRE e.id IS UNIQUE`,
		`CREATE INDEX entity_canonical IF NOT EXISTS FOR (e:Entity) ON (e.canonical, e.type)`,
	}
	for _, q := range stmts {
		res, err := session.Run(ctx, q, nil)
		if err != nil {
			return fmt.Errorf("neo4j: schema init: %w", err)
		}
		if _, err := res.Consume(ctx); err != nil {
			return fmt.Errorf("neo4j: schema init: %w", err)
		}
	}
	return nil
}

// Close releases the underlying driver.
func (s *GraphDBStore) Close(ctx context.Context) error {
	if s == nil || s.driver == nil {
		return nil
	}
	err := s.driver.Close(ctx)
	s.driver = nil
	return err
}
