package reasoning

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/harrisonrobin/taskplan/pkg/config"
)

// NewOpenAIGenerator builds an OpenAI-compatible chat model from the llm
// section of the configuration.
func NewOpenAIGenerator(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required (set llm.api_key or OPENAI_API_KEY)")
	}
	cm, err := openai.NewChatModel(ctx, &openai.ChatModelConfig{
		Model:   cfg.Model,
		APIKey:  cfg.APIKey,
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("create chat model: %w", err)
	}
	return cm, nil
}
