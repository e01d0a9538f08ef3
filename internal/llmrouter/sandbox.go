package llmrouter

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// SandboxProvider is a deterministic, no-external-call Provider: it
// echoes a canned acknowledgment referencing the user's input instead of
// calling a real model, so agent-package tests and local development
// never require an API key. Its confidence is fixed comfortably above
// the default handoff threshold.
type SandboxProvider struct {
	name string
	log  zerolog.Logger
}

// NewSandboxProvider builds a SandboxProvider under the given chain name.
func NewSandboxProvider(name string, log zerolog.Logger) *SandboxProvider {
	return &SandboxProvider{name: name, log: log}
}

// Name satisfies Provider.
func (p *SandboxProvider) Name() string { return p.name }

// Complete satisfies Provider.
func (p *SandboxProvider) Complete(_ context.Context, req CompletionRequest) (CompletionResponse, error) {
	p.log.Debug().Str("provider", p.name).Msg("llm sandbox: completing turn")
	return CompletionResponse{
		Text:       fmt.Sprintf("Thanks for your message — let me help with that: %s", req.UserContent),
		Confidence: 0.75,
		TokensUsed: len(req.UserContent) / 4,
	}, nil
}
