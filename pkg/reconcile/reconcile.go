package reconcile

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"

	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
)

// GraphState is the reconciliation engine's view of the current graph:
// the entities and relationships the delta is matched against. It is a
// snapshot, not a live handle, so Reconcile stays pure and a delta can be
// audited before commit.
type GraphState struct {
	Entities      []common.Entity
	Relationships []common.Relationship
}

// EntityMerge describes additions to an existing graph entity.
type EntityMerge struct {
	ID         string
	Provenance []common.Provenance
	// Props holds only keys the existing entity is missing or has empty.
	Props      map[string]string
	Confidence float64
}

// RelationshipMerge describes additional evidence for an existing edge.
type RelationshipMerge struct {
	ID         string
	Provenance []common.Provenance
	Confidence float64
}

// GraphDelta is the output of reconciliation: what to create and what to
// merge, plus the conflicts and dangling references that were skipped.
type GraphDelta struct {
	DocumentID string

	CreateEntities      []common.Entity
	MergeEntities       []EntityMerge
	CreateRelationships []common.Relationship
	MergeRelationships  []RelationshipMerge

	Conflicts       []common.ReconciliationConflict
	DroppedDangling int
}

// Empty reports whether the delta contains no writes.
func (d *GraphDelta) Empty() bool {
	return len(d.CreateEntities) == 0 && len(d.MergeEntities) == 0 &&
		len(d.CreateRelationships) == 0 && len(d.MergeRelationships) == 0
}

// Checksum returns a stable digest of the delta's write set. The writer
// records it per document so re-running an already-committed delta is
// detected as a no-op.
func (d *GraphDelta) Checksum() string {
	lines := make([]string, 0,
		len(d.CreateEntities)+len(d.MergeEntities)+len(d.CreateRelationships)+len(d.MergeRelationships))

	for _, e := range d.CreateEntities {
		lines = append(lines, "ce|"+matchKey(e.Name, e.Type))
	}
	for _, m := range d.MergeEntities {
		lines = append(lines, "me|"+m.ID)
	}
	for _, r := range d.CreateRelationships {
		lines = append(lines, "cr|"+r.SourceID+"|"+r.Type+"|"+r.TargetID)
	}
	for _, m := range d.MergeRelationships {
		lines = append(lines, "mr|"+m.ID)
	}
	sort.Strings(lines)

	h := sha256.New()
	h.Write([]byte(d.DocumentID))
	h.Write([]byte{0})
	h.Write([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(h.Sum(nil))
}

// Reconcile merges extracted candidates into the current graph state and
// returns the resulting delta. It never touches storage.
//
// Matching policy: same type plus equal canonical names, or fuzzy
// similarity at or above the threshold. A candidate matching more than
// one distinct existing entity is an ambiguous merge: it is recorded as a
// conflict and skipped, and processing continues with the rest.
func Reconcile(
	docID string,
	candidates []common.Entity,
	candidateRels []common.Relationship,
	state GraphState,
	threshold float64,
) *GraphDelta {
	delta := &GraphDelta{DocumentID: docID}

	// candidate id -> final graph id; absent means skipped
	resolved := make(map[string]string, len(candidates))

	merged := mergeCandidates(candidates, candidateRels, threshold)

	pendingMerges := make(map[string]*EntityMerge)
	baselineConf := make(map[string]float64)

	for _, cand := range merged {
		matches := matchExisting(cand, state.Entities, threshold)

		switch len(matches) {
		case 0:
			resolved[cand.ID] = cand.ID
			delta.CreateEntities = append(delta.CreateEntities, cand)

		case 1:
			existing := matches[0]
			resolved[cand.ID] = existing.ID

			m, ok := pendingMerges[existing.ID]
			if !ok {
				m = &EntityMerge{ID: existing.ID, Confidence: existing.Confidence}
				pendingMerges[existing.ID] = m
				baselineConf[existing.ID] = existing.Confidence
			}
			m.Provenance = unionProvenance(m.Provenance, diffProvenance(existing.Provenance, cand.Provenance))
			if cand.Confidence > m.Confidence {
				m.Confidence = cand.Confidence
			}
			for k, v := range cand.Props {
				if v == "" {
					continue
				}
				if existing.Props[k] != "" {
					continue
				}
				if m.Props == nil {
					m.Props = make(map[string]string)
				}
				m.Props[k] = v
			}

		default:
			ids := make([]string, len(matches))
			for i, e := range matches {
				ids[i] = e.ID
			}
			conflict := common.ReconciliationConflict{
				CandidateName: cand.Name,
				CandidateType: cand.Type,
				MatchedIDs:    ids,
			}
			delta.Conflicts = append(delta.Conflicts, conflict)
			logger.Warn("ambiguous entity merge skipped, flagged for review",
				"doc", docID, "name", cand.Name, "type", cand.Type, "matches", len(ids))
		}
	}

	mergeIDs := make([]string, 0, len(pendingMerges))
	for id := range pendingMerges {
		mergeIDs = append(mergeIDs, id)
	}
	sort.Strings(mergeIDs)
	for _, id := range mergeIDs {
		m := pendingMerges[id]
		// a merge adding no provenance, no props and no confidence gain is
		// a no-op; dropping it keeps reprocessing idempotent
		if len(m.Provenance) == 0 && len(m.Props) == 0 && m.Confidence == baselineConf[id] {
			continue
		}
		delta.MergeEntities = append(delta.MergeEntities, *m)
	}

	reconcileRelationships(delta, candidateRels, state, resolved)

	return delta
}

// mergeCandidates collapses duplicates within the candidate batch itself
// before any comparison against the graph. Relationship endpoints are
// redirected to the surviving candidate via resolved.
func mergeCandidates(
	candidates []common.Entity,
	candidateRels []common.Relationship,
	threshold float64,
) []common.Entity {
	var merged []common.Entity

	for _, cand := range candidates {
		foundIdx := -1
		for i := range merged {
			if SameEntity(cand.Name, cand.Type, merged[i].Name, merged[i].Type, threshold) {
				foundIdx = i
				break
			}
		}

		if foundIdx < 0 {
			merged = append(merged, cand)
			continue
		}

		keep := &merged[foundIdx]
		keep.Provenance = unionProvenance(keep.Provenance, cand.Provenance)
		if cand.Confidence > keep.Confidence {
			keep.Confidence = cand.Confidence
		}
		for k, v := range cand.Props {
			if v == "" || keep.Props[k] != "" {
				continue
			}
			if keep.Props == nil {
				keep.Props = make(map[string]string)
			}
			keep.Props[k] = v
		}

		// redirect edges that referenced the collapsed candidate
		for i := range candidateRels {
			if candidateRels[i].SourceID == cand.ID {
				candidateRels[i].SourceID = keep.ID
			}
			if candidateRels[i].TargetID == cand.ID {
				candidateRels[i].TargetID = keep.ID
			}
		}
	}

	return merged
}

// matchExisting returns the distinct existing entities the candidate
// matches under the policy.
func matchExisting(cand common.Entity, existing []common.Entity, threshold float64) []common.Entity {
	var matches []common.Entity
	for _, e := range existing {
		if SameEntity(cand.Name, cand.Type, e.Name, e.Type, threshold) {
			matches = append(matches, e)
		}
	}
	return matches
}

func tripleKey(sourceID, typ, targetID string) string {
	return fmt.Sprintf("%s|%s|%s", sourceID, typ, targetID)
}

func reconcileRelationships(
	delta *GraphDelta,
	candidateRels []common.Relationship,
	state GraphState,
	resolved map[string]string,
) {
	existingByTriple := make(map[string]common.Relationship, len(state.Relationships))
	for _, r := range state.Relationships {
		existingByTriple[tripleKey(r.SourceID, r.Type, r.TargetID)] = r
	}

	pendingMerges := make(map[string]*RelationshipMerge)
	baselineConf := make(map[string]float64)
	pendingCreates := make(map[string]int)

	for _, rel := range candidateRels {
		sourceID, sourceOK := resolved[rel.SourceID]
		targetID, targetOK := resolved[rel.TargetID]
		if !sourceOK || !targetOK {
			delta.DroppedDangling++
			logger.Warn("dropping relationship with unresolved endpoint",
				"doc", delta.DocumentID, "type", rel.Type,
				"error", common.ErrDanglingReference)
			continue
		}
		if sourceID == targetID {
			delta.DroppedDangling++
			continue
		}

		key := tripleKey(sourceID, rel.Type, targetID)

		if existing, ok := existingByTriple[key]; ok {
			m, started := pendingMerges[existing.ID]
			if !started {
				m = &RelationshipMerge{ID: existing.ID, Confidence: existing.Confidence}
				pendingMerges[existing.ID] = m
				baselineConf[existing.ID] = existing.Confidence
			}
			m.Provenance = unionProvenance(m.Provenance, diffProvenance(existing.Provenance, rel.Provenance))
			if rel.Confidence > m.Confidence {
				m.Confidence = rel.Confidence
			}
			continue
		}

		if idx, ok := pendingCreates[key]; ok {
			keep := &delta.CreateRelationships[idx]
			keep.Provenance = unionProvenance(keep.Provenance, rel.Provenance)
			if rel.Confidence > keep.Confidence {
				keep.Confidence = rel.Confidence
			}
			continue
		}

		rel.SourceID = sourceID
		rel.TargetID = targetID
		pendingCreates[key] = len(delta.CreateRelationships)
		delta.CreateRelationships = append(delta.CreateRelationships, rel)
	}

	mergeIDs := make([]string, 0, len(pendingMerges))
	for id := range pendingMerges {
		mergeIDs = append(mergeIDs, id)
	}
	sort.Strings(mergeIDs)
	for _, id := range mergeIDs {
		m := pendingMerges[id]
		if len(m.Provenance) == 0 && m.Confidence == baselineConf[id] {
			continue
		}
		delta.MergeRelationships = append(delta.MergeRelationships, *m)
	}
}

func provKey(p common.Provenance) string {
	return p.DocumentID + "|" + p.ChunkID
}

// unionProvenance appends records from add that base does not already
// contain, keyed by (document, chunk).
func unionProvenance(base []common.Provenance, add []common.Provenance) []common.Provenance {
	seen := make(map[string]bool, len(base))
	for _, p := range base {
		seen[provKey(p)] = true
	}
	for _, p := range add {
		if !seen[provKey(p)] {
			seen[provKey(p)] = true
			base = append(base, p)
		}
	}
	return base
}

// diffProvenance returns the records in add that existing lacks.
func diffProvenance(existing []common.Provenance, add []common.Provenance) []common.Provenance {
	seen := make(map[string]bool, len(existing))
	for _, p := range existing {
		seen[provKey(p)] = true
	}
	var out []common.Provenance
	for _, p := range add {
		if !seen[provKey(p)] {
			seen[provKey(p)] = true
			out = append(out, p)
		}
	}
	return out
}
