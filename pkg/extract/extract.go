package extract

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"golang.org/x/sync/errgroup"
)

type extractProperty struct {
	Key   string `json:"key" jsonschema_description:"Property name, e.g. affiliation, field, version"`
	Value string `json:"value" jsonschema_description:"Property value as stated in the text"`
}

type extractEntity struct {
	ID         string            `json:"id" jsonschema_description:"Short local identifier unique within this response, e.g. e1"`
	Name       string            `json:"name" jsonschema_description:"Canonical name of the entity as written in the text"`
	Type       string            `json:"type" jsonschema_description:"One of the provided entity types"`
	Properties []extractProperty `json:"properties" jsonschema_description:"Explicit attributes of the entity stated in the text"`
	Confidence float64           `json:"confidence" jsonschema_description:"Certainty in [0,1] that this is a real, correctly typed entity"`
}

type extractRelationship struct {
	Source     string  `json:"source" jsonschema_description:"Local id of the source entity"`
	Target     string  `json:"target" jsonschema_description:"Local id of the target entity"`
	Type       string  `json:"type" jsonschema_description:"One of the provided relationship types"`
	Context    string  `json:"context" jsonschema_description:"Sentence fragment that evidences the relationship"`
	Confidence float64 `json:"confidence" jsonschema_description:"Certainty in [0,1]"`
}

type extractMetadata struct {
	EntityCount       int `json:"entity_count" jsonschema_description:"Total number of entities extracted"`
	RelationshipCount int `json:"relationship_count" jsonschema_description:"Total number of relationships extracted"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the passage"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the passage"`
	Metadata      extractMetadata       `json:"metadata" jsonschema_description:"Summary counts for the extraction"`
}

// Result carries the validated candidates from one extraction call.
// Accepted candidates cleared the template's confidence threshold;
// the rest are retained in the low-confidence lists for audit, never
// silently dropped.
type Result struct {
	Entities      []common.Entity
	Relationships []common.Relationship

	LowConfidenceEntities      []common.Entity
	LowConfidenceRelationships []common.Relationship
}

func (r *Result) merge(other *Result) {
	r.Entities = append(r.Entities, other.Entities...)
	r.Relationships = append(r.Relationships, other.Relationships...)
	r.LowConfidenceEntities = append(r.LowConfidenceEntities, other.LowConfidenceEntities...)
	r.LowConfidenceRelationships = append(r.LowConfidenceRelationships, other.LowConfidenceRelationships...)
}

const excerptLimit = 200

// FromChunk extracts entity and relationship candidates from one chunk.
// On malformed model output it retries once with a corrective instruction;
// a second malformed response surfaces ExtractionMalformedError and
// fabricates nothing. Transport failures pass through unchanged so the
// caller's retry machinery can handle them.
func FromChunk(
	ctx context.Context,
	client ai.PaperAIClient,
	tpl Template,
	chunk common.Chunk,
) (*Result, error) {
	systemPrompt := tpl.SystemPrompt()
	opts := []ai.GenerateOption{
		ai.WithSystemPrompts(systemPrompt),
		ai.WithTemperature(tpl.Temperature),
	}

	var res extractResponse
	err := client.GenerateCompletionWithFormat(
		ctx,
		"extract_entities_and_relationships",
		"Extract entities and relationships from a scientific paper passage.",
		chunk.Text,
		&res,
		opts...,
	)
	if err != nil {
		if !errors.Is(err, ai.ErrMalformedOutput) {
			return nil, err
		}
		logger.Warn("extraction output invalid, retrying with corrective instruction",
			"doc", chunk.DocumentID, "chunk", chunk.ID, "error", err)

		res = extractResponse{}
		retryOpts := []ai.GenerateOption{
			ai.WithSystemPrompts(systemPrompt, ai.ExtractRepairPrompt),
			ai.WithTemperature(tpl.Temperature),
		}
		err = client.GenerateCompletionWithFormat(
			ctx,
			"extract_entities_and_relationships",
			"Extract entities and relationships from a scientific paper passage.",
			chunk.Text,
			&res,
			retryOpts...,
		)
		if err != nil {
			if !errors.Is(err, ai.ErrMalformedOutput) {
				return nil, err
			}
			return nil, &common.ExtractionMalformedError{
				DocumentID: chunk.DocumentID,
				Err:        err,
			}
		}
	}

	return validate(res, tpl, chunk)
}

// validate turns the raw response into typed candidates: local ids are
// resolved, vocabulary closure is enforced, confidences are clamped, and
// candidates below the threshold move to the low-confidence lists.
func validate(res extractResponse, tpl Template, chunk common.Chunk) (*Result, error) {
	out := &Result{}

	prov := common.Provenance{
		DocumentID: chunk.DocumentID,
		ChunkID:    chunk.ID,
	}

	// local id -> assigned candidate id
	idMap := make(map[string]string, len(res.Entities))

	for _, cand := range res.Entities {
		name := strings.TrimSpace(cand.Name)
		if name == "" {
			logger.Warn("dropping entity candidate without name", "doc", chunk.DocumentID, "chunk", chunk.ID)
			continue
		}

		typ := strings.ToLower(strings.TrimSpace(cand.Type))
		if !tpl.HasEntityType(typ) {
			logger.Debug("entity type outside vocabulary, remapping",
				"doc", chunk.DocumentID, "name", name, "type", typ, "mapped", CatchAllEntityType)
			typ = CatchAllEntityType
		}

		eID, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate entity id: %w", err)
		}

		localID := strings.TrimSpace(cand.ID)
		if localID != "" {
			if _, dup := idMap[localID]; dup {
				logger.Warn("duplicate local entity id in response", "doc", chunk.DocumentID, "local_id", localID)
			} else {
				idMap[localID] = eID
			}
		}

		var props map[string]string
		if len(cand.Properties) > 0 {
			props = make(map[string]string, len(cand.Properties))
			for _, p := range cand.Properties {
				if k := strings.TrimSpace(p.Key); k != "" {
					props[k] = p.Value
				}
			}
		}

		entity := common.Entity{
			ID:         eID,
			Name:       name,
			Type:       typ,
			Props:      props,
			Confidence: common.ClampConfidence(cand.Confidence),
			Provenance: []common.Provenance{prov},
		}

		if entity.Confidence < tpl.ConfidenceThreshold {
			out.LowConfidenceEntities = append(out.LowConfidenceEntities, entity)
		} else {
			out.Entities = append(out.Entities, entity)
		}
	}

	// relationships resolve against the full candidate set, accepted or
	// not, so a low-confidence entity still anchors its edges
	for _, cand := range res.Relationships {
		sourceID, sourceOK := idMap[strings.TrimSpace(cand.Source)]
		targetID, targetOK := idMap[strings.TrimSpace(cand.Target)]
		if !sourceOK || !targetOK {
			logger.Warn("dropping relationship with unresolved local id",
				"doc", chunk.DocumentID, "source", cand.Source, "target", cand.Target,
				"error", common.ErrDanglingReference)
			continue
		}

		typ := strings.ToUpper(strings.TrimSpace(cand.Type))
		if !tpl.HasRelationshipType(typ) {
			logger.Debug("relationship type outside vocabulary, remapping",
				"doc", chunk.DocumentID, "type", typ, "mapped", CatchAllRelationshipType)
			typ = CatchAllRelationshipType
		}

		rID, err := gonanoid.New()
		if err != nil {
			return nil, fmt.Errorf("failed to generate relationship id: %w", err)
		}

		relProv := prov
		relProv.Excerpt = truncateExcerpt(cand.Context)

		rel := common.Relationship{
			ID:         rID,
			SourceID:   sourceID,
			TargetID:   targetID,
			Type:       typ,
			Context:    strings.TrimSpace(cand.Context),
			Confidence: common.ClampConfidence(cand.Confidence),
			Provenance: []common.Provenance{relProv},
		}

		if rel.Confidence < tpl.ConfidenceThreshold {
			out.LowConfidenceRelationships = append(out.LowConfidenceRelationships, rel)
		} else {
			out.Relationships = append(out.Relationships, rel)
		}
	}

	if res.Metadata.EntityCount != len(res.Entities) || res.Metadata.RelationshipCount != len(res.Relationships) {
		logger.Debug("extraction metadata counts disagree with payload",
			"doc", chunk.DocumentID,
			"reported_entities", res.Metadata.EntityCount, "got_entities", len(res.Entities),
			"reported_relationships", res.Metadata.RelationshipCount, "got_relationships", len(res.Relationships))
	}

	return out, nil
}

func truncateExcerpt(s string) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= excerptLimit {
		return s
	}
	return string(runes[:excerptLimit])
}

// FromChunks runs extraction over all chunks of a document with bounded
// concurrency and merges the per-chunk results. The first hard failure
// cancels the remaining chunks.
func FromChunks(
	ctx context.Context,
	client ai.PaperAIClient,
	tpl Template,
	chunks []common.Chunk,
) (*Result, error) {
	if len(chunks) == 0 {
		return &Result{}, nil
	}

	results := make([]*Result, len(chunks))

	eg, gCtx := errgroup.WithContext(ctx)
	eg.SetLimit(int(util.GetEnvNumeric("EXTRACT_MAX_CONCURRENT", 4)))

	for i := range chunks {
		eg.Go(func() error {
			res, err := FromChunk(gCtx, client, tpl, chunks[i])
			if err != nil {
				return err
			}
			results[i] = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}

	merged := &Result{}
	for _, res := range results {
		merged.merge(res)
	}
	return merged, nil
}
