package pipeline

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"
	"github.com/papergraph/papergraph/pkg/chunk"
	"github.com/papergraph/papergraph/pkg/citation"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/extract"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/parser"
	"github.com/papergraph/papergraph/pkg/reconcile"
	"github.com/papergraph/papergraph/pkg/store"
)

// Pipeline drives one document through parse, citation, chunk+embed,
// extract, reconcile and commit. Reconciliation and commit are serialized
// behind a mutex so concurrent documents never race on the same graph;
// everything before that point runs concurrently.
type Pipeline struct {
	aiClient ai.PaperAIClient
	parser   parser.Service
	graph    store.GraphStore
	vectors  store.VectorStore
	docs     store.DocumentStore
	writer   *Writer

	template  extract.Template
	maxTokens int

	reconcileMu sync.Mutex
}

type Params struct {
	AIClient ai.PaperAIClient
	Parser   parser.Service
	Graph    store.GraphStore
	Vectors  store.VectorStore
	Docs     store.DocumentStore

	// TemplateKey selects the extraction template; empty means the
	// default paper template.
	TemplateKey string
	// MaxTokens bounds chunk size; zero means the default.
	MaxTokens int
}

func New(params Params) (*Pipeline, error) {
	key := params.TemplateKey
	if key == "" {
		key = util.GetEnvString("EXTRACT_TEMPLATE", extract.DefaultTemplateKey)
	}
	tpl, err := extract.LookupTemplate(key)
	if err != nil {
		return nil, err
	}

	maxTokens := params.MaxTokens
	if maxTokens <= 0 {
		maxTokens = int(util.GetEnvNumeric("CHUNK_MAX_TOKENS", chunk.DefaultMaxTokens))
	}

	return &Pipeline{
		aiClient:  params.AIClient,
		parser:    params.Parser,
		graph:     params.Graph,
		vectors:   params.Vectors,
		docs:      params.Docs,
		writer:    NewWriter(params.Graph, params.Vectors, params.Docs),
		template:  tpl,
		maxTokens: maxTokens,
	}, nil
}

// Process runs the full pipeline for one document. The document row must
// already exist; pdf holds the raw document bytes.
func (p *Pipeline) Process(ctx context.Context, docID string, pdf []byte) error {
	doc, err := p.docs.GetDocument(ctx, docID)
	if err != nil {
		return err
	}
	vectorOnly := doc.Status == common.StatusStoredGraphOnly

	if err := p.docs.SetStatus(ctx, docID, common.StatusParsing); err != nil {
		return err
	}

	parsed, err := p.parser.ParseDocument(ctx, docID, pdf)
	if err != nil {
		return p.fail(ctx, docID, common.StageParsing, err)
	}

	chunks, err := chunk.Split(docID, parsed.Text, p.maxTokens)
	if err != nil {
		return p.fail(ctx, docID, common.StageParsing, err)
	}

	if err := p.docs.SetStatus(ctx, docID, common.StatusExtracting); err != nil {
		return err
	}

	// citation, embedding and extraction are independent of each other
	var extracted *extract.Result
	eg, gCtx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		return p.saveCitation(gCtx, docID, parsed)
	})

	eg.Go(func() error {
		embedder := chunk.NewEmbedder(p.aiClient, 0)
		return embedder.EmbedChunks(gCtx, chunks)
	})

	if !vectorOnly {
		eg.Go(func() error {
			res, err := extract.FromChunks(gCtx, p.aiClient, p.template, chunks)
			if err != nil {
				return err
			}
			extracted = res
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return p.fail(ctx, docID, common.StageExtraction, err)
	}

	if vectorOnly {
		logger.Info("[Pipeline] Resuming vector-only commit", "doc", docID)
		extracted = &extract.Result{}
	}

	if err := p.docs.SetStatus(ctx, docID, common.StatusReconciling); err != nil {
		return err
	}

	p.reconcileMu.Lock()
	defer p.reconcileMu.Unlock()

	state, err := p.graph.Snapshot(ctx)
	if err != nil {
		return p.fail(ctx, docID, common.StageReconcile, err)
	}

	delta := reconcile.Reconcile(
		docID,
		extracted.Entities,
		extracted.Relationships,
		state,
		reconcile.SimilarityThreshold(),
	)

	logger.Info("[Pipeline] Reconciled document",
		"doc", docID,
		"create_entities", len(delta.CreateEntities),
		"merge_entities", len(delta.MergeEntities),
		"create_relationships", len(delta.CreateRelationships),
		"merge_relationships", len(delta.MergeRelationships),
		"conflicts", len(delta.Conflicts),
		"dropped_dangling", delta.DroppedDangling,
	)

	return p.writer.Commit(ctx, delta, chunks)
}

// Delete removes a document everywhere: its provenance and orphaned
// entities from the graph, its chunks from the vector store, and finally
// the document row itself.
func (p *Pipeline) Delete(ctx context.Context, docID string) error {
	p.reconcileMu.Lock()
	defer p.reconcileMu.Unlock()

	if err := p.graph.DeleteDocument(ctx, docID); err != nil {
		return err
	}
	if err := p.vectors.DeleteChunks(ctx, docID); err != nil {
		return err
	}
	return p.docs.DeleteDocument(ctx, docID)
}

// saveCitation parses the bibliographic record and stores it unless a
// settled record with equal or higher confidence already exists.
func (p *Pipeline) saveCitation(ctx context.Context, docID string, parsed *parser.Result) error {
	cit := citation.Parse(docID, parsed.Text, parsed.Biblio)

	existing, err := p.docs.GetCitation(ctx, docID)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return p.docs.SaveCitation(ctx, cit)
	case err != nil:
		return err
	}

	if citation.ShouldReplace(existing, cit) {
		return p.docs.SaveCitation(ctx, cit)
	}
	logger.Debug("[Pipeline] Keeping existing citation record",
		"doc", docID, "existing_confidence", existing.Confidence, "candidate_confidence", cit.Confidence)
	return nil
}

func (p *Pipeline) fail(ctx context.Context, docID string, stage string, err error) error {
	if ctx.Err() != nil {
		// cancellation is not a document failure; leave the status for a
		// clean retry
		return err
	}
	if merr := p.docs.MarkFailed(ctx, docID, stage, err.Error()); merr != nil {
		logger.Error("failed to record document failure", "doc", docID, "stage", stage, "err", merr)
	}
	return err
}
