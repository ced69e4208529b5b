package neo4j

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/reconcile"
)

func (s *GraphDBStore) readEntities(ctx context.Context, cypher string, params map[string]any) ([]common.Entity, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		entities := make([]common.Entity, 0, len(records))
		for _, record := range records {
			raw, ok := record.Get("e")
			if !ok {
				continue
			}
			node, ok := raw.(dbtype.Node)
			if !ok {
				continue
			}
			entities = append(entities, nodeToEntity(node))
		}
		return entities, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]common.Entity), nil
}

func (s *GraphDBStore) readRelationships(ctx context.Context, cypher string, params map[string]any) ([]common.Relationship, error) {
	session := s.session(ctx, neo4j.AccessModeRead)
	defer session.Close(ctx)

	out, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, cypher, params)
		if err != nil {
			return nil, err
		}
		records, err := res.Collect(ctx)
		if err != nil {
			return nil, err
		}
		rels := make([]common.Relationship, 0, len(records))
		for _, record := range records {
			raw, ok := record.Get("r")
			if !ok {
				continue
			}
			edge, ok := raw.(dbtype.Relationship)
			if !ok {
				continue
			}
			sourceID, _ := record.Get("source_id")
			targetID, _ := record.Get("target_id")
			src, _ := sourceID.(string)
			tgt, _ := targetID.(string)
			rels = append(rels, edgeToRelationship(edge, src, tgt))
		}
		return rels, nil
	})
	if err != nil {
		return nil, err
	}
	return out.([]common.Relationship), nil
}

// Snapshot loads every entity and relationship for reconciliation.
func (s *GraphDBStore) Snapshot(ctx context.Context) (reconcile.GraphState, error) {
	entities, err := s.readEntities(ctx, `MATCH (e:Entity) RETURN e`, nil)
	if err != nil {
		return reconcile.GraphState{}, err
	}
	rels, err := s.readRelationships(ctx,
		`MATCH (src:Entity)-[r:RELATED]->(tgt:Entity)
		 RETURN r, src.id AS source_id, tgt.id AS target_id`, nil)
	if err != nil {
		return reconcile.GraphState{}, err
	}
	return reconcile.GraphState{Entities: entities, Relationships: rels}, nil
}

// FindEntities matches entities by canonical name, optionally narrowed to
// a type. An empty name matches every entity of the type.
func (s *GraphDBStore) FindEntities(ctx context.Context, name string, entityType string) ([]common.Entity, error) {
	return s.readEntities(ctx,
		`MATCH (e:Entity)
		 WHERE ($canonical = '' OR e.canonical = $canonical)
		   AND ($type = '' OR toLower(e.type) = toLower($type))
		 RETURN e`,
		map[string]any{
			"canonical": reconcile.NormalizeName(name),
			"type":      entityType,
		})
}

// EntitiesForDocument returns the entities evidenced by the document.
func (s *GraphDBStore) EntitiesForDocument(ctx context.Context, docID string) ([]common.Entity, error) {
	return s.readEntities(ctx,
		`MATCH (e:Entity) WHERE $doc IN e.doc_ids RETURN e`,
		map[string]any{"doc": docID})
}

// RelationshipsForDocument returns the relationships evidenced by the
// document.
func (s *GraphDBStore) RelationshipsForDocument(ctx context.Context, docID string) ([]common.Relationship, error) {
	return s.readRelationships(ctx,
		`MATCH (src:Entity)-[r:RELATED]->(tgt:Entity)
		 WHERE $doc IN r.doc_ids
		 RETURN r, src.id AS source_id, tgt.id AS target_id`,
		map[string]any{"doc": docID})
}

// Neighborhood returns the given entities, their one-hop neighbors and
// the relationships between them.
func (s *GraphDBStore) Neighborhood(ctx context.Context, entityIDs []string) ([]common.Entity, []common.Relationship, error) {
	if len(entityIDs) == 0 {
		return nil, nil, nil
	}

	entities, err := s.readEntities(ctx,
		`MATCH (seed:Entity) WHERE seed.id IN $ids
		 OPTIONAL MATCH (seed)-[:RELATED]-(n:Entity)
		 WITH collect(seed) + collect(n) AS nodes
		 UNWIND nodes AS e
		 WITH DISTINCT e WHERE e IS NOT NULL
		 RETURN e`,
		map[string]any{"ids": entityIDs})
	if err != nil {
		return nil, nil, err
	}

	rels, err := s.readRelationships(ctx,
		`MATCH (src:Entity)-[r:RELATED]->(tgt:Entity)
		 WHERE src.id IN $ids OR tgt.id IN $ids
		 RETURN r, src.id AS source_id, tgt.id AS target_id`,
		map[string]any{"ids": entityIDs})
	if err != nil {
		return nil, nil, err
	}

	return entities, rels, nil
}
