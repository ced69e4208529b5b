package parser

import (
	"bytes"
	"context"
	"regexp"
	"strings"

	"github.com/papergraph/papergraph/pkg/common"

	"github.com/ledongthuc/pdf"
)

var collapseNewlines = regexp.MustCompile(`\n{3,}`)

// LocalPDFParser extracts text directly from the PDF content stream.
// It yields no structured bibliographic fields, so citation extraction
// falls back to text heuristics for locally parsed documents.
type LocalPDFParser struct{}

// ParseDocument extracts plain text page by page. Pages that fail to
// decode are skipped; the document only fails when no page yields text.
func (p *LocalPDFParser) ParseDocument(ctx context.Context, docID string, input []byte) (*Result, error) {
	reader, err := pdf.NewReader(bytes.NewReader(input), int64(len(input)))
	if err != nil {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: "unreadable pdf: " + err.Error()}
	}

	var sb strings.Builder
	totalPages := reader.NumPage()
	for i := 1; i <= totalPages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}

		sb.WriteString(text)
		sb.WriteString("\n\n")
	}

	out := strings.TrimSpace(collapseNewlines.ReplaceAllString(sb.String(), "\n\n"))
	if out == "" {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: "no extractable text"}
	}

	return &Result{Text: out}, nil
}
