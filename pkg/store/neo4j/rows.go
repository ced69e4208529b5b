package neo4j

import (
	"encoding/json"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/reconcile"
	"github.com/papergraph/papergraph/pkg/store"
)

// Domain properties of an entity are flattened onto the node with this
// prefix so they never collide with the bookkeeping properties.
const propPrefix = "p_"

func encodeProvenance(provs []common.Provenance) []string {
	out := make([]string, 0, len(provs))
	for _, p := range provs {
		raw, err := json.Marshal(p)
		if err != nil {
			continue
		}
		out = append(out, string(raw))
	}
	return out
}

func decodeProvenance(raw any) []common.Provenance {
	items, ok := raw.([]any)
	if !ok {
		return nil
	}
	out := make([]common.Provenance, 0, len(items))
	for _, item := range items {
		s, ok := item.(string)
		if !ok {
			continue
		}
		var p common.Provenance
		if err := json.Unmarshal([]byte(s), &p); err != nil {
			logger.Warn("skipping unreadable provenance record", "err", err)
			continue
		}
		out = append(out, p)
	}
	return out
}

func provenanceDocIDs(provs []common.Provenance) []string {
	ids := make([]string, 0, len(provs))
	for _, p := range provs {
		ids = append(ids, p.DocumentID)
	}
	return store.DedupeStrings(ids)
}

func entityRow(e common.Entity) map[string]any {
	props := make(map[string]any, len(e.Props))
	for k, v := range e.Props {
		props[propPrefix+k] = v
	}
	return map[string]any{
		"id":         e.ID,
		"name":       e.Name,
		"type":       e.Type,
		"canonical":  reconcile.NormalizeName(e.Name),
		"confidence": e.Confidence,
		"provenance": encodeProvenance(e.Provenance),
		"doc_ids":    provenanceDocIDs(e.Provenance),
		"props":      props,
	}
}

func entityMergeRow(m reconcile.EntityMerge) map[string]any {
	props := make(map[string]any, len(m.Props))
	for k, v := range m.Props {
		props[propPrefix+k] = v
	}
	return map[string]any{
		"id":         m.ID,
		"confidence": m.Confidence,
		"provenance": encodeProvenance(m.Provenance),
		"doc_ids":    provenanceDocIDs(m.Provenance),
		"props":      props,
	}
}

func relationshipRow(r common.Relationship) map[string]any {
	return map[string]any{
		"id":         r.ID,
		"source_id":  r.SourceID,
		"target_id":  r.TargetID,
		"type":       r.Type,
		"context":    r.Context,
		"confidence": r.Confidence,
		"provenance": encodeProvenance(r.Provenance),
		"doc_ids":    provenanceDocIDs(r.Provenance),
	}
}

func relationshipMergeRow(m reconcile.RelationshipMerge) map[string]any {
	return map[string]any{
		"id":         m.ID,
		"confidence": m.Confidence,
		"provenance": encodeProvenance(m.Provenance),
		"doc_ids":    provenanceDocIDs(m.Provenance),
	}
}

func stringProp(props map[string]any, key string) string {
	if v, ok := props[key].(string); ok {
		return v
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func nodeToEntity(node dbtype.Node) common.Entity {
	e := common.Entity{
		ID:         stringProp(node.Props, "id"),
		Name:       stringProp(node.Props, "name"),
		Type:       stringProp(node.Props, "type"),
		Confidence: floatProp(node.Props, "confidence"),
		Provenance: decodeProvenance(node.Props["provenance"]),
	}
	for k, v := range node.Props {
		if !strings.HasPrefix(k, propPrefix) {
			continue
		}
		s, ok := v.(string)
		if !ok {
			continue
		}
		if e.Props == nil {
			e.Props = make(map[string]string)
		}
		e.Props[strings.TrimPrefix(k, propPrefix)] = s
	}
	return e
}

func edgeToRelationship(edge dbtype.Relationship, sourceID, targetID string) common.Relationship {
	return common.Relationship{
		ID:         stringProp(edge.Props, "id"),
		SourceID:   sourceID,
		TargetID:   targetID,
		Type:       stringProp(edge.Props, "type"),
		Context:    stringProp(edge.Props, "context"),
		Confidence: floatProp(edge.Props, "confidence"),
		Provenance: decodeProvenance(edge.Props["provenance"]),
	}
}
