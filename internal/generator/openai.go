package generator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	openai "github.com/sashabaranov/go-openai"
	"github.com/scamshield-labs/scamshield/internal/domain"
	"github.com/scamshield-labs/scamshield/internal/game"
)

// OpenAIConfig configures the OpenAI-compatible backend. BaseURL may point at
// any compatible endpoint, including a local llama server.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
}

// OpenAIGenerator streams assistant turns from an OpenAI-compatible chat
// completion endpoint.
type OpenAIGenerator struct {
	client *openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAIGenerator creates the streaming backend.
func NewOpenAIGenerator(cfg OpenAIConfig, logger *slog.Logger) (*OpenAIGenerator, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai generator: API key not set")
	}
	if logger == nil {
		logger = slog.Default()
	}

	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
		logger.Warn("OPENAI_MODEL not set, defaulting", "model", model)
	}

	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}

	logger.Info("Initializing dialogue generator", "backend", "openai", "model", model, "base_url", clientCfg.BaseURL)
	return &OpenAIGenerator{
		client: openai.NewClientWithConfig(clientCfg),
		model:  model,
		logger: logger,
	}, nil
}

// Stream yields the next adversarial turn chunk by chunk.
func (g *OpenAIGenerator) Stream(ctx context.Context, history []domain.Turn, profile game.Profile) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		messages := make([]openai.ChatCompletionMessage, 0, len(history)+1)
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: BuildSystemPrompt(profile),
		})
		for i := range history {
			messages = append(messages, openai.ChatCompletionMessage{
				Role:    chatRole(&history[i]),
				Content: history[i].RawText,
			})
		}

		stream, err := g.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
			Model:    g.model,
			Messages: messages,
			Stream:   true,
		})
		if err != nil {
			g.logger.Error("chat completion stream failed to start", "error", err)
			yield("", fmt.Errorf("start completion stream: %w", err))
			return
		}
		defer func() {
			if closeErr := stream.Close(); closeErr != nil {
				g.logger.Debug("failed to close completion stream", "error", closeErr)
			}
		}()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				yield("", fmt.Errorf("receive completion chunk: %w", err))
				return
			}
			if len(resp.Choices) == 0 {
				continue
			}
			delta := resp.Choices[0].Delta.Content
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}
