package llm

import "context"

type GenerationParams struct {
	Temperature *float32 `json:"temperature"`
	TopP        *float32 `json:"top_p"`
	MaxTokens   *int     `json:"max_tokens"`
	Stop        []string `json:"stop"`

	// System overrides the default system prompt for this call. Each
	// analyst carries its own persona.
	System string `json:"system,omitempty"`
}

// Client defines the standard interface for any LLM backend.
type Client interface {
	Generate(ctx context.Context, prompt string, params GenerationParams) (string, error)
}
