package neo4j

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/reconcile"
)

const createEntitiesCypher = `
UNWIND $rows AS row
MERGE (e:Entity {id: row.id})
SET e.name = row.name,
    e.type = row.type,
    e.canonical = row.canonical,
    e.confidence = row.confidence,
    e.provenance = row.provenance,
    e.doc_ids = row.doc_ids
SET e += row.props
`

const mergeEntitiesCypher = `
UNWIND $rows AS row
MATCH (e:Entity {id: row.id})
SET e.confidence = CASE WHEN row.confidence > e.confidence THEN row.confidence ELSE e.confidence END,
    e.provenance = coalesce(e.provenance, []) + row.provenance,
    e.doc_ids = reduce(acc = [], d IN coalesce(e.doc_ids, []) + row.doc_ids |
        CASE WHEN d IN acc THEN acc ELSE acc + d END)
SET e += row.props
`

const createRelationshipsCypher = `
UNWIND $rows AS row
MATCH (s:Entity {id: row.source_id})
MATCH (t:Entity {id: row.target_id})
MERGE (s)-[r:RELATED {id: row.id}]->(t)
SET r.type = row.type,
    r.context = row.context,
    r.confidence = row.confidence,
    r.provenance = row.provenance,
    r.doc_ids = row.doc_ids
`

const mergeRelationshipsCypher = `
UNWIND $rows AS row
MATCH (:Entity)-[r:RELATED {id: row.id}]->(:Entity)
SET r.confidence = CASE WHEN row.confidence > r.confidence THEN row.confidence ELSE r.confidence END,
    r.provenance = coalesce(r.provenance, []) + row.provenance,
    r.doc_ids = reduce(acc = [], d IN coalesce(r.doc_ids, []) + row.doc_ids |
        CASE WHEN d IN acc THEN acc ELSE acc + d END)
`

// ApplyDelta commits a reconciled delta in one write transaction. Entity
// statements run before relationship statements so every edge finds both
// endpoints inside the same transaction.
func (s *GraphDBStore) ApplyDelta(ctx context.Context, delta *reconcile.GraphDelta) error {
	if delta == nil || delta.Empty() {
		return nil
	}

	logger.Debug("[Graph][ApplyDelta] Committing delta",
		"doc", delta.DocumentID,
		"create_entities", len(delta.CreateEntities),
		"merge_entities", len(delta.MergeEntities),
		"create_relationships", len(delta.CreateRelationships),
		"merge_relationships", len(delta.MergeRelationships),
	)

	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(delta.CreateEntities) > 0 {
			rows := make([]map[string]any, 0, len(delta.CreateEntities))
			for _, e := range delta.CreateEntities {
				rows = append(rows, entityRow(e))
			}
			if err := runBatch(ctx, tx, createEntitiesCypher, rows); err != nil {
				return nil, fmt.Errorf("create entities: %w", err)
			}
		}

		if len(delta.MergeEntities) > 0 {
			rows := make([]map[string]any, 0, len(delta.MergeEntities))
			for _, m := range delta.MergeEntities {
				rows = append(rows, entityMergeRow(m))
			}
			if err := runBatch(ctx, tx, mergeEntitiesCypher, rows); err != nil {
				return nil, fmt.Errorf("merge entities: %w", err)
			}
		}

		if len(delta.CreateRelationships) > 0 {
			rows := make([]map[string]any, 0, len(delta.CreateRelationships))
			for _, r := range delta.CreateRelationships {
				rows = append(rows, relationshipRow(r))
			}
			if err := runBatch(ctx, tx, createRelationshipsCypher, rows); err != nil {
				return nil, fmt.Errorf("create relationships: %w", err)
			}
		}

		if len(delta.MergeRelationships) > 0 {
			rows := make([]map[string]any, 0, len(delta.MergeRelationships))
			for _, m := range delta.MergeRelationships {
				rows = append(rows, relationshipMergeRow(m))
			}
			if err := runBatch(ctx, tx, mergeRelationshipsCypher, rows); err != nil {
				return nil, fmt.Errorf("merge relationships: %w", err)
			}
		}

		return nil, nil
	})
	return err
}

func runBatch(ctx context.Context, tx neo4j.ManagedTransaction, cypher string, rows []map[string]any) error {
	res, err := tx.Run(ctx, cypher, map[string]any{"rows": rows})
	if err != nil {
		return err
	}
	_, err = res.Consume(ctx)
	return err
}

// DeleteDocument removes the document's provenance from the graph and
// deletes the entities and relationships that lose their last evidence.
// Shared entities evidenced by other documents survive.
func (s *GraphDBStore) DeleteDocument(ctx context.Context, docID string) error {
	session := s.session(ctx, neo4j.AccessModeWrite)
	defer session.Close(ctx)

	needle := fmt.Sprintf("%q:%q", "document_id", docID)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		stmts := []string{
			`MATCH (:Entity)-[r:RELATED]->(:Entity) WHERE $doc IN r.doc_ids
			 SET r.doc_ids = [d IN r.doc_ids WHERE d <> $doc],
			     r.provenance = [p IN r.provenance WHERE NOT p CONTAINS $needle]`,
			`MATCH (:Entity)-[r:RELATED]->(:Entity) WHERE size(r.doc_ids) = 0 DELETE r`,
			`MATCH (e:Entity) WHERE $doc IN e.doc_ids
			 SET e.doc_ids = [d IN e.doc_ids WHERE d <> $doc],
			     e.provenance = [p IN e.provenance WHERE NOT p CONTAINS $needle]`,
			`MATCH (e:Entity) WHERE size(e.doc_ids) = 0 DETACH DELETE e`,
		}
		params := map[string]any{"doc": docID, "needle": needle}
		for _, q := range stmts {
			res, err := tx.Run(ctx, q, params)
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		return nil, nil
	})
	return err
}
