package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	awss3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/papergraph/papergraph/internal/storage"
	"github.com/papergraph/papergraph/pkg/common"
	"github.com/papergraph/papergraph/pkg/logger"
	"github.com/papergraph/papergraph/pkg/pipeline"
	"github.com/papergraph/papergraph/pkg/store"
)

// IngestMsg asks the worker to process one document. FileKey points at
// the uploaded PDF in the object store.
type IngestMsg struct {
	DocumentID string `json:"document_id"`
	FileKey    string `json:"file_key"`
	Title      string `json:"title,omitempty"`
}

// DeleteMsg asks the worker to remove a document and its graph evidence.
type DeleteMsg struct {
	DocumentID string `json:"document_id"`
}

// ProcessIngestMessage fetches the document's PDF and runs the full
// pipeline for it. The document row is created on first sight so a
// status is queryable from the moment the message is picked up.
func ProcessIngestMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	p *pipeline.Pipeline,
	docs store.DocumentStore,
	msg string,
) error {
	data := new(IngestMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid ingest message: %w", err)
	}
	if data.FileKey == "" {
		return fmt.Errorf("ingest message missing file_key")
	}
	if data.DocumentID == "" {
		data.DocumentID = uuid.NewString()
		logger.Debug("[Queue] Assigned document id", "doc", data.DocumentID)
	}

	logger.Info("[Queue] Ingesting document", "doc", data.DocumentID, "key", data.FileKey)

	if _, err := docs.GetDocument(ctx, data.DocumentID); errors.Is(err, store.ErrNotFound) {
		err = docs.CreateDocument(ctx, common.Document{
			ID:        data.DocumentID,
			SourceURI: data.FileKey,
			Title:     data.Title,
			Status:    common.StatusPending,
		})
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	pdf, err := storage.GetFile(ctx, s3Client, data.FileKey)
	if err != nil {
		return err
	}

	return p.Process(ctx, data.DocumentID, pdf)
}

// ProcessDeleteMessage removes the document from both stores and drops
// its uploaded file.
func ProcessDeleteMessage(
	ctx context.Context,
	s3Client *awss3.Client,
	p *pipeline.Pipeline,
	docs store.DocumentStore,
	msg string,
) error {
	data := new(DeleteMsg)
	if err := json.Unmarshal([]byte(msg), data); err != nil {
		return fmt.Errorf("invalid delete message: %w", err)
	}
	if data.DocumentID == "" {
		return fmt.Errorf("delete message missing document_id")
	}

	logger.Info("[Queue] Deleting document", "doc", data.DocumentID)

	doc, err := docs.GetDocument(ctx, data.DocumentID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}

	if err := p.Delete(ctx, data.DocumentID); err != nil {
		return err
	}

	if doc.SourceURI != "" {
		if err := storage.DeleteFile(ctx, s3Client, doc.SourceURI); err != nil {
			logger.Warn("[Queue] Failed to delete uploaded file", "doc", data.DocumentID, "err", err)
		}
	}
	return nil
}
