package parser

import (
	"context"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
)

// BiblioRecord holds structured bibliographic fields returned by the
// document-parsing service. All fields are optional; the citation parser
// treats present fields as its highest-confidence strategy.
type BiblioRecord struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors"`
	Journal string   `json:"journal"`
	Year    int      `json:"year"`
	DOI     string   `json:"doi"`
}

// Result is the output of parsing one document.
type Result struct {
	Text   string
	Biblio *BiblioRecord
}

// Service converts a PDF into raw text plus optional structured
// bibliographic fields. Implementations may call out to an external
// parsing service or extract text locally.
type Service interface {
	ParseDocument(ctx context.Context, docID string, pdf []byte) (*Result, error)
}

// Parser is the default Service. It prefers the remote parsing service
// when one is configured and falls back to local text extraction when the
// remote call fails or no service is set.
type Parser struct {
	remote Service
	local  Service
}

// New builds a Parser from the PARSER_SERVICE_URL environment variable.
// Without a configured URL only local extraction is used.
func New() *Parser {
	p := &Parser{local: &LocalPDFParser{}}
	if base := util.GetEnvString("PARSER_SERVICE_URL", ""); base != "" {
		p.remote = NewServiceClient(base, util.GetEnvString("PARSER_SERVICE_KEY", ""))
	}
	return p
}

// ParseDocument extracts text from the given PDF. A remote failure is
// logged and falls through to local extraction; only when every strategy
// fails does the document surface a parse failure.
func (p *Parser) ParseDocument(ctx context.Context, docID string, pdf []byte) (*Result, error) {
	if len(pdf) == 0 {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: "empty document"}
	}

	if p.remote != nil {
		res, err := p.remote.ParseDocument(ctx, docID, pdf)
		if err == nil {
			return res, nil
		}
		logger.Warn("remote parse failed, falling back to local extraction", "doc", docID, "error", err)
	}

	return p.local.ParseDocument(ctx, docID, pdf)
}
