package gemini

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"docqa/internal/settings"
)

const (
	defaultEmbeddingModel  = "gemini-embedding-001"
	defaultGenerationModel = "gemini-1.5-flash"
)

// DynamicClient is the embedding/generation model adapter. The API key and
// model names are resolved from settings on every call, so a key rotated at
// runtime takes effect without a restart.
type DynamicClient struct {
	settingsSvc *settings.Service
	client      *genai.Client
	currentKey  string
	mu          sync.RWMutex
	clientOpts  []option.ClientOption
}

func NewDynamicClient(svc *settings.Service, opts ...option.ClientOption) *DynamicClient {
	return &DynamicClient{
		settingsSvc: svc,
		clientOpts:  opts,
	}
}

func (c *DynamicClient) Embed(ctx context.Context, text string) ([]float32, error) {
	s, err := c.settingsSvc.Get(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get settings: %w", err)
	}

	if s.GeminiAPIKey == "" {
		return nil, fmt.Errorf("gemini api key not configured")
	}

	client, err := c.getClient(ctx, s.GeminiAPIKey)
	if err != nil {
		return nil, err
	}

	modelName := s.EmbeddingModel
	if modelName == "" {
		modelName = defaultEmbeddingModel
	}

	model := client.EmbeddingModel(modelName)
	res, err := model.EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, err
	}

	if res.Embedding == nil || len(res.Embedding.Values) == 0 {
		return nil, fmt.Errorf("empty embedding received")
	}

	return res.Embedding.Values, nil
}

// Generate performs one single-shot model invocation. No retries: the
// caller's failure path owns what happens when this errors.
func (c *DynamicClient) Generate(ctx context.Context, prompt string) (string, error) {
	s, err := c.settingsSvc.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to get settings: %w", err)
	}

	if s.GeminiAPIKey == "" {
		return "", fmt.Errorf("gemini api key not configured")
	}

	client, err := c.getClient(ctx, s.GeminiAPIKey)
	if err != nil {
		return "", err
	}

	modelName := s.GenerationModel
	if modelName == "" {
		modelName = defaultGenerationModel
	}

	model := client.GenerativeModel(modelName)
	res, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", err
	}

	return flattenResponse(res), nil
}

func flattenResponse(res *genai.GenerateContentResponse) string {
	if res == nil || len(res.Candidates) == 0 || res.Candidates[0].Content == nil {
		return ""
	}
	var out string
	for _, part := range res.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			out += string(txt)
		}
	}
	return out
}

func (c *DynamicClient) getClient(ctx context.Context, key string) (*genai.Client, error) {
	c.mu.RLock()
	if c.client != nil && c.currentKey == key {
		defer c.mu.RUnlock()
		return c.client, nil
	}
	c.mu.RUnlock()

	c.mu.Lock()
	defer c.mu.Unlock()

	// Double check
	if c.client != nil && c.currentKey == key {
		return c.client, nil
	}

	if c.client != nil {
		if err := c.client.Close(); err != nil {
			slog.Warn("failed to close previous genai client", "error", err)
		}
	}

	opts := append(c.clientOpts, option.WithAPIKey(key))
	client, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return nil, err
	}

	c.client = client
	c.currentKey = key
	return client, nil
}
