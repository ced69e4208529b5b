package query

import (
	"context"
	"fmt"
	"strings"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/citation"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/store"
)

// Service is the read-only review surface over the stores. It never
// mutates the graph; every write path stays in the pipeline.
type Service struct {
	aiClient ai.PaperAIClient
	graph    store.GraphStore
	vectors  store.VectorStore
	docs     store.DocumentStore
}

func New(aiClient ai.PaperAIClient, graph store.GraphStore, vectors store.VectorStore, docs store.DocumentStore) *Service {
	return &Service{aiClient: aiClient, graph: graph, vectors: vectors, docs: docs}
}

// DocumentStatus returns the document's processing state, including the
// failed stage when processing stopped early, so "no entities" can be
// told apart from "extraction never ran".
func (s *Service) DocumentStatus(ctx context.Context, docID string) (common.Document, error) {
	return s.docs.GetDocument(ctx, docID)
}

// ListDocuments returns every document with its processing state.
func (s *Service) ListDocuments(ctx context.Context) ([]common.Document, error) {
	return s.docs.ListDocuments(ctx)
}

func (s *Service) EntitiesForDocument(ctx context.Context, docID string) ([]common.Entity, error) {
	return s.graph.EntitiesForDocument(ctx, docID)
}

func (s *Service) RelationshipsForDocument(ctx context.Context, docID string) ([]common.Relationship, error) {
	return s.graph.RelationshipsForDocument(ctx, docID)
}

// CitationForDocument renders the document's citation record in the
// requested style.
func (s *Service) CitationForDocument(ctx context.Context, docID string, style string) (string, error) {
	record, err := s.docs.GetCitation(ctx, docID)
	if err != nil {
		return "", err
	}
	return citation.Format(record, citation.Style(style))
}

// Answer is the response to an Ask call, with the document ids that
// supplied the retrieved context.
type Answer struct {
	Text      string   `json:"text"`
	Documents []string `json:"documents"`
}

// Ask answers a free-form question over the corpus: the question is
// embedded, the nearest chunks are retrieved, the graph neighborhood of
// the entities those documents evidence is collected, and the model
// composes an answer from both.
func (s *Service) Ask(ctx context.Context, question string, topK int) (*Answer, error) {
	if strings.TrimSpace(question) == "" {
		return nil, fmt.Errorf("empty question")
	}
	if topK <= 0 {
		topK = int(util.GetEnvNumeric("QUERY_TOP_K", 8))
	}

	embedding, err := s.aiClient.GenerateEmbedding(ctx, []byte(question))
	if err != nil {
		return nil, err
	}

	chunks, err := s.vectors.SearchSimilar(ctx, embedding, topK)
	if err != nil {
		return nil, err
	}

	docIDs := make([]string, 0, len(chunks))
	for _, c := range chunks {
		docIDs = append(docIDs, c.DocumentID)
	}
	docIDs = store.DedupeStrings(docIDs)

	entities, relationships, err := s.graphContext(ctx, docIDs)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(ai.AnswerPrompt,
		question,
		formatGraphContext(entities, relationships),
		formatChunkContext(chunks),
	)

	text, err := s.aiClient.GenerateCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}

	logger.Debug("[Query][Ask] Answered",
		"chunks", len(chunks), "entities", len(entities), "relationships", len(relationships))

	return &Answer{Text: text, Documents: docIDs}, nil
}

// graphContext collects the entities evidenced by the given documents
// plus their one-hop neighborhood.
func (s *Service) graphContext(ctx context.Context, docIDs []string) ([]common.Entity, []common.Relationship, error) {
	seedIDs := make([]string, 0)
	for _, docID := range docIDs {
		entities, err := s.graph.EntitiesForDocument(ctx, docID)
		if err != nil {
			return nil, nil, err
		}
		for _, e := range entities {
			seedIDs = append(seedIDs, e.ID)
		}
	}
	seedIDs = store.DedupeStrings(seedIDs)
	if len(seedIDs) == 0 {
		return nil, nil, nil
	}
	return s.graph.Neighborhood(ctx, seedIDs)
}

func formatGraphContext(entities []common.Entity, relationships []common.Relationship) string {
	if len(entities) == 0 {
		return "(no graph context found)"
	}

	byID := make(map[string]common.Entity, len(entities))
	var sb strings.Builder
	sb.WriteString("Entities:\n")
	for _, e := range entities {
		byID[e.ID] = e
		fmt.Fprintf(&sb, "- %s (%s)", e.Name, e.Type)
		for k, v := range e.Props {
			fmt.Fprintf(&sb, "; %s: %s", k, v)
		}
		sb.WriteString("\n")
	}

	if len(relationships) > 0 {
		sb.WriteString("Relationships:\n")
		for _, r := range relationships {
			source := byID[r.SourceID].Name
			target := byID[r.TargetID].Name
			if source == "" || target == "" {
				continue
			}
			fmt.Fprintf(&sb, "- %s -[%s]-> %s", source, r.Type, target)
			if r.Context != "" {
				fmt.Fprintf(&sb, " (%s)", r.Context)
			}
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

func formatChunkContext(chunks []common.Chunk) string {
	if len(chunks) == 0 {
		return "(no passages found)"
	}
	var sb strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&sb, "[doc:%s]\n%s\n\n", c.DocumentID, c.Text)
	}
	return sb.String()
}
