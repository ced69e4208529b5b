package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// PaperOllamaClient implements the ai.PaperAIClient interface using Ollama as
// the backend. It supports text generation, schema-constrained generation,
// and embeddings via locally-hosted models.
type PaperOllamaClient struct {
	extractionModel string
	answerModel     string
	embeddingModel  string

	reqLock    *semaphore.Weighted
	timeoutMin int

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL    *url.URL
	apiKey     string
	httpClient *http.Client

	Client *api.Client
}

// NewPaperOllamaClientParams contains configuration options for creating a new PaperOllamaClient.
type NewPaperOllamaClientParams struct {
	ExtractionModel string
	AnswerModel     string
	EmbeddingModel  string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewPaperOllamaClient creates a new Ollama-based AI client with the specified
// configuration. It connects to the Ollama server at the given BaseURL (or the
// default if empty) and uses the configured models for the different operations.
func NewPaperOllamaClient(
	params NewPaperOllamaClientParams,
) (*PaperOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: map[string]string{
				"Authorization": "Bearer " + params.ApiKey,
			},
			rt: http.DefaultTransport,
		},
	}

	cli := api.NewClient(u, httpClient)

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 4
	}
	sem := semaphore.NewWeighted(maxReq)

	return &PaperOllamaClient{
		extractionModel: params.ExtractionModel,
		answerModel:     params.AnswerModel,
		embeddingModel:  params.EmbeddingModel,

		reqLock:    sem,
		timeoutMin: int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL:    u,
		apiKey:     params.ApiKey,
		httpClient: httpClient,

		Client: cli,
	}, nil
}
