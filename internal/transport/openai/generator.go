package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/kailas-cloud/ragdex/internal/domain"
	"github.com/kailas-cloud/ragdex/internal/metrics"
)

const systemPrompt = "You are a helpful assistant. Answer the question using only the provided context. " +
	"If the context does not contain the answer, say so explicitly."

// Generator produces answer text via the OpenAI-compatible chat completions API.
type Generator struct {
	client       *openai.Client
	defaultModel string
	provider     string
	logger       *zap.Logger
}

// GeneratorConfig holds the generation provider settings.
type GeneratorConfig struct {
	APIKey   string
	BaseURL  string
	Model    string
	Provider string
	Logger   *zap.Logger
}

// NewGenerator creates an OpenAI-compatible generation provider.
func NewGenerator(cfg *GeneratorConfig) *Generator {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{
		client:       openai.NewClientWithConfig(clientCfg),
		defaultModel: cfg.Model,
		provider:     cfg.Provider,
		logger:       logger,
	}
}

// Generate implements domain.Generator. The retrieved context parts are
// numbered and prepended to the user question in one user message.
func (g *Generator) Generate(
	ctx context.Context, prompt string, contexts []string, opts domain.GenerationOptions,
) (string, error) {
	model := opts.Model
	if model == "" {
		model = g.defaultModel
	}

	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: buildUserMessage(prompt, contexts)},
		},
	}

	start := time.Now()

	resp, err := g.client.CreateChatCompletion(ctx, req)
	if err != nil {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, model, "error").Inc()
		return "", parseAPIError("generation", err)
	}
	if len(resp.Choices) == 0 {
		metrics.GenerationRequestsTotal.WithLabelValues(g.provider, model, "error").Inc()
		return "", fmt.Errorf("empty generation response: %w", domain.ErrProvider)
	}

	metrics.GenerationRequestsTotal.WithLabelValues(g.provider, model, "success").Inc()
	metrics.GenerationRequestDuration.WithLabelValues(g.provider, model).Observe(time.Since(start).Seconds())

	g.logger.Debug("generation completed",
		zap.String("model", model),
		zap.Int("contexts", len(contexts)),
		zap.Int("completion_tokens", resp.Usage.CompletionTokens),
	)
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

func buildUserMessage(prompt string, contexts []string) string {
	var b strings.Builder
	b.WriteString("Context:\n")
	for i, c := range contexts {
		fmt.Fprintf(&b, "[%d] %s\n\n", i+1, c)
	}
	b.WriteString("Question: ")
	b.WriteString(prompt)
	return b.String()
}
