package oracle

import (
	"context"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/orchd/internal/config"
)

// Client is an Oracle backed by an OpenAI-compatible chat endpoint via
// langchaingo. It works against OpenAI itself or local servers (Ollama,
// vLLM, TEI-style gateways) that speak the same protocol.
type Client struct {
	model   llms.Model
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient builds an oracle client from config.
func NewClient(cfg config.OracleConfig, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required for oracle client")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("oracle model is required")
	}

	opts := []openai.Option{
		openai.WithModel(cfg.Model),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	if cfg.APIKey.IsSet() {
		opts = append(opts, openai.WithToken(cfg.APIKey.Value()))
	}

	model, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &Client{
		model:   model,
		limiter: limiter,
		logger:  logger.Named("oracle"),
	}, nil
}

// Generate implements Oracle. Channel failures are wrapped in
// ErrUnavailable so callers can distinguish a dead channel from a
// malformed reply.
func (c *Client) Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, userPrompt),
	}

	resp, err := c.model.GenerateContent(ctx, messages)
	if err != nil {
		c.logger.Warn("oracle call failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUnavailable)
	}
	return resp.Choices[0].Content, nil
}
