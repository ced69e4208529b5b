package parser

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/papergraph/papergraph/pkg/common"
)

// ServiceClient talks to the external document-parsing service over HTTP.
// The service accepts a PDF upload and returns extracted raw text plus
// optional structured bibliographic fields.
type ServiceClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewServiceClient creates a client for the parsing service at baseURL.
func NewServiceClient(baseURL string, apiKey string) *ServiceClient {
	return &ServiceClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 5 * time.Minute,
		},
	}
}

type serviceResponse struct {
	Text   string        `json:"text"`
	Biblio *BiblioRecord `json:"biblio"`
}

// ParseDocument uploads the PDF and decodes the service response. Any
// transport error, non-2xx status, or empty text body is a parse failure.
func (c *ServiceClient) ParseDocument(ctx context.Context, docID string, pdf []byte) (*Result, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", docID+".pdf")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(pdf); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/parse", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: err.Error()}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &common.ParseFailureError{
			DocumentID: docID,
			Reason:     fmt.Sprintf("parsing service returned %d: %s", resp.StatusCode, snippet),
		}
	}

	var decoded serviceResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: "invalid service response: " + err.Error()}
	}
	if strings.TrimSpace(decoded.Text) == "" {
		return nil, &common.ParseFailureError{DocumentID: docID, Reason: "parsing service returned no text"}
	}

	return &Result{Text: decoded.Text, Biblio: decoded.Biblio}, nil
}
