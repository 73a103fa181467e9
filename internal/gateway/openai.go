// Package gateway adapts the OpenAI chat completions API to the
// assistant's Completer interface.
package gateway

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/cfpd-planning/intake-assistant/internal/domain"
)

// OpenAI is a thin client wrapper. It carries no conversation state;
// every call sends the full message list it is given.
type OpenAI struct {
	client openai.Client
	model  string
	logger *slog.Logger
}

// NewOpenAI creates a gateway for the given API key and model name.
func NewOpenAI(apiKey, model string, logger *slog.Logger) *OpenAI {
	if logger == nil {
		logger = slog.Default()
	}
	return &OpenAI{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
		logger: logger,
	}
}

// Complete sends the ordered message list and returns the first choice's
// content. Unknown roles are forwarded as user messages rather than
// dropped, so a malformed history still reaches the model intact.
func (o *OpenAI) Complete(ctx context.Context, messages []domain.Message, temperature float64) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(o.model),
		Messages:    make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)),
		Temperature: openai.Float(temperature),
	}
	for _, m := range messages {
		switch m.Role {
		case domain.RoleSystem:
			params.Messages = append(params.Messages, openai.SystemMessage(m.Content))
		case domain.RoleAssistant:
			params.Messages = append(params.Messages, openai.AssistantMessage(m.Content))
		default:
			params.Messages = append(params.Messages, openai.UserMessage(m.Content))
		}
	}

	resp, err := o.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("chat completion: empty response from model %s", o.model)
	}

	o.logger.Debug("chat completion", "model", o.model, "messages", len(messages), "temperature", temperature)
	return resp.Choices[0].Message.Content, nil
}
