package vision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/googleai"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/raphaelgruber/mealchat-go/internal/config"
	"github.com/raphaelgruber/mealchat-go/internal/metrics"
)

// describePrompt is the fixed instruction sent with every image. The
// two-line answer shape is load-bearing: ParseDescription depends on it.
const describePrompt = `Look at this image of a meal or food.
1. List the foods you see in a short comma-separated list. Only list food items, nothing else. Example: chicken, rice, broccoli.
2. On the next line, estimate the total calories for the whole meal and write exactly: Estimated total calories: N
where N is a single number (e.g. 450 or 650). Base the estimate on typical portion sizes for the foods shown.`

// Client sends normalized meal photos to a multimodal model. A client
// without a credential is valid: Describe answers "no result" instead of
// calling out.
type Client struct {
	model     llms.Model
	modelName string
	timeout   time.Duration
	logger    *slog.Logger
	metrics   *metrics.Collector
}

// NewClient creates a vision client for the configured provider.
func NewClient(ctx context.Context, cfg config.Config, logger *slog.Logger, collector *metrics.Collector) (*Client, error) {
	if logger == nil {
		logger = slog.Default()
	}

	c := &Client{
		modelName: cfg.VisionModel,
		timeout:   cfg.VisionTimeout,
		logger:    logger,
		metrics:   collector,
	}

	switch cfg.VisionProvider {
	case config.ProviderGoogleAI:
		if cfg.GeminiAPIKey == "" {
			// Not a configuration error: the pipeline degrades to the
			// "couldn't analyze" fallback message per request.
			logger.Warn("no Gemini API key configured, vision inference disabled")
			return c, nil
		}
		model, err := googleai.New(ctx,
			googleai.WithAPIKey(cfg.GeminiAPIKey),
			googleai.WithDefaultModel(cfg.VisionModel),
		)
		if err != nil {
			return nil, fmt.Errorf("create googleai model: %w", err)
		}
		c.model = model

	case config.ProviderOllama:
		model, err := ollama.New(
			ollama.WithModel(cfg.VisionModel),
			ollama.WithServerURL(cfg.OllamaHost),
		)
		if err != nil {
			return nil, fmt.Errorf("create ollama model: %w", err)
		}
		c.model = model

	default:
		return nil, fmt.Errorf("unsupported vision provider: %s", cfg.VisionProvider)
	}

	return c, nil
}

// Model returns the configured model name.
func (c *Client) Model() string {
	return c.modelName
}

// Describe submits one inference request: the fixed instruction plus the
// image as inline JPEG. Returns the raw model text and true, or "", false
// for every failure mode: missing credential, transport error, blocked or
// empty response. Failures are logged for operators, never propagated.
func (c *Client) Describe(ctx context.Context, imageJPEG []byte) (string, bool) {
	if c.model == nil {
		c.logger.Warn("vision describe skipped: no credential")
		return "", false
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	content := llms.MessageContent{
		Role: llms.ChatMessageTypeHuman,
		Parts: []llms.ContentPart{
			llms.TextPart(describePrompt),
			llms.BinaryPart("image/jpeg", imageJPEG),
		},
	}

	start := time.Now()
	resp, err := c.model.GenerateContent(ctx, []llms.MessageContent{content})
	if err != nil {
		c.metrics.RecordFailure(metrics.OpVisionInfer, time.Since(start))
		c.logger.Warn("vision inference failed", "model", c.modelName, "error", err)
		return "", false
	}
	c.metrics.Record(metrics.OpVisionInfer, time.Since(start))

	if len(resp.Choices) == 0 {
		c.logger.Warn("vision inference returned no candidates", "model", c.modelName)
		return "", false
	}
	text := strings.TrimSpace(resp.Choices[0].Content)
	if text == "" {
		c.logger.Warn("vision inference returned no text",
			"model", c.modelName,
			"stop_reason", resp.Choices[0].StopReason,
		)
		return "", false
	}

	return text, true
}
