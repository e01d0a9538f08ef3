package llmrouter

import (
	"context"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicProvider is the real backend: one Anthropic model reachable
// over the anthropic-sdk-go client. Confidence isn't part of the Messages
// API, so it's derived from the stop reason — a refusal or truncated
// response scores below the default handoff threshold, so the orchestrator
// records a handoff for that turn and, once such turns repeat, sends the
// fallback message instead of the reply.
type AnthropicProvider struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	name      string
}

// NewAnthropicProvider builds an AnthropicProvider for one named chain
// entry (e.g. "anthropic_large", "anthropic_small") backed by a specific
// model.
func NewAnthropicProvider(name, apiKey, model string, maxTokens int64) *AnthropicProvider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &AnthropicProvider{client: client, model: anthropic.Model(model), maxTokens: maxTokens, name: name}
}

// Name satisfies Provider.
func (p *AnthropicProvider) Name() string { return p.name }

// Complete satisfies Provider.
func (p *AnthropicProvider) Complete(ctx context.Context, req CompletionRequest) (CompletionResponse, error) {
	body := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserContent))},
	}
	if req.SystemPrompt != "" {
		body.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := p.client.Messages.New(ctx, body)
	if err != nil {
		return CompletionResponse{}, &RetryableError{Err: err, Retryable: isRetryableAnthropicError(err)}
	}

	var parts []string
	for _, block := range msg.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok && text.Text != "" {
			parts = append(parts, text.Text)
		}
	}

	return CompletionResponse{
		Text:       strings.Join(parts, "\n"),
		Confidence: confidenceFromStopReason(string(msg.StopReason)),
		TokensUsed: int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
	}, nil
}

func confidenceFromStopReason(reason string) float64 {
	switch reason {
	case "end_turn", "tool_use":
		return 0.9
	case "max_tokens":
		return 0.5
	default:
		return 0.3
	}
}

// isRetryableAnthropicError treats 5xx, 429 and non-API errors as worth
// retrying before failing this provider over; any other 4xx is not retried.
func isRetryableAnthropicError(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= 500 || apiErr.StatusCode == 429
	}
	return true
}
