package domain

import "context"

// GenerationOptions tune a single generation call.
type GenerationOptions struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// Generator produces grounded answer text from a prompt plus retrieved context parts.
type Generator interface {
	Generate(ctx context.Context, prompt string, contexts []string, opts GenerationOptions) (string, error)
}
