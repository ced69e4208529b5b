package openai

import (
	"sync"

	"github.com/papergraph/papergraph/internal/util"
	"github.com/papergraph/papergraph/pkg/ai"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"golang.org/x/sync/semaphore"
)

// PaperOpenAIClient implements ai.PaperAIClient against any OpenAI-compatible
// endpoint. It holds separate clients for chat/completion and embedding so
// the two can point at different deployments.
//
// A PaperOpenAIClient should be created using NewPaperOpenAIClient.
type PaperOpenAIClient struct {
	extractionModel string
	answerModel     string
	embeddingModel  string

	chatURL      string
	chatKey      string
	embeddingURL string
	embeddingKey string

	timeoutMin    int
	embeddingLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	ChatClient      *openai.Client
	EmbeddingClient *openai.Client
}

// NewPaperOpenAIClientParams defines the configuration parameters for
// creating a new PaperOpenAIClient.
//
// ExtractionModel is used for schema-constrained extraction calls,
// AnswerModel for free-text completions, EmbeddingModel for embeddings.
// The URL/Key pairs configure the respective API endpoints.
type NewPaperOpenAIClientParams struct {
	ExtractionModel string
	AnswerModel     string
	EmbeddingModel  string

	ChatURL      string
	ChatKey      string
	EmbeddingURL string
	EmbeddingKey string

	MaxConcurrentEmbeddings int64
}

// NewPaperOpenAIClient creates and returns a new PaperOpenAIClient configured
// with the provided parameters.
//
// Example:
//
//	client := openai.NewPaperOpenAIClient(openai.NewPaperOpenAIClientParams{
//		ExtractionModel: "gpt-4o-mini",
//		AnswerModel:     "gpt-4o-mini",
//		EmbeddingModel:  "text-embedding-3-small",
//		ChatKey:         os.Getenv("OPENAI_API_KEY"),
//		EmbeddingKey:    os.Getenv("OPENAI_API_KEY"),
//	})
func NewPaperOpenAIClient(params NewPaperOpenAIClientParams) *PaperOpenAIClient {
	chatClient := newOpenaiClient(params.ChatURL, params.ChatKey)
	embedClient := newOpenaiClient(params.EmbeddingURL, params.EmbeddingKey)

	maxEmbed := params.MaxConcurrentEmbeddings
	if maxEmbed <= 0 {
		maxEmbed = 8
	}

	return &PaperOpenAIClient{
		extractionModel: params.ExtractionModel,
		answerModel:     params.AnswerModel,
		embeddingModel:  params.EmbeddingModel,

		chatURL:      params.ChatURL,
		chatKey:      params.ChatKey,
		embeddingURL: params.EmbeddingURL,
		embeddingKey: params.EmbeddingKey,

		timeoutMin:    int(util.GetEnvNumeric("AI_TIMEOUT_MIN", 5)),
		embeddingLock: semaphore.NewWeighted(maxEmbed),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		ChatClient:      chatClient,
		EmbeddingClient: embedClient,
	}
}

func newOpenaiClient(baseURL string, apiKey string) *openai.Client {
	if apiKey == "" {
		return nil
	}
	options := []option.RequestOption{
		option.WithAPIKey(apiKey),
	}

	if baseURL != "" {
		options = append(options, option.WithBaseURL(baseURL))
	}

	client := openai.NewClient(options...)

	return &client
}

func (c *PaperOpenAIClient) modifyMetrics(delta ai.ModelMetrics) {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics.InputTokens += delta.InputTokens
	c.metrics.OutputTokens += delta.OutputTokens
	c.metrics.TotalTokens += delta.TotalTokens
	c.metrics.DurationMs += delta.DurationMs
}

// ResetMetrics clears the accumulated usage metrics.
func (c *PaperOpenAIClient) ResetMetrics() {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	c.metrics = ai.ModelMetrics{}
}

// GetMetrics returns a snapshot of the accumulated usage metrics.
func (c *PaperOpenAIClient) GetMetrics() ai.ModelMetrics {
	c.metricsLock.Lock()
	defer c.metricsLock.Unlock()
	return c.metrics
}
