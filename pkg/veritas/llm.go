package veritas

import (
	"context"
	"errors"
	"fmt"
)

// LLM sentinel errors.
var (
	// ErrLLMProviderNotFound reports a lookup for an unregistered provider.
	ErrLLMProviderNotFound = errors.New("llm provider not found")
	// ErrLLMEmptyResponse reports a completed generation with no text.
	ErrLLMEmptyResponse = errors.New("llm returned empty response")
)

// ChatRole identifies who authored a chat message.
type ChatRole string

const (
	// ChatRoleSystem is the instruction role.
	ChatRoleSystem ChatRole = "system"
	// ChatRoleUser is the end-user role.
	ChatRoleUser ChatRole = "user"
	// ChatRoleAssistant is the model role.
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of model input.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// GenerateRequest asks a provider for a single completed response.
type GenerateRequest struct {
	// Model is the provider-specific model identifier.
	Model string
	// Messages is the ordered conversation, system message first.
	Messages []ChatMessage
	// Temperature controls sampling. Always sent, including zero.
	Temperature float64
	// MaxOutputTokens caps the response length. Zero means provider default.
	MaxOutputTokens int
	// Metadata is attached to the provider request when supported.
	Metadata map[string]string
}

// Validate checks the request before it reaches a provider.
func (r GenerateRequest) Validate() error {
	if r.Model == "" {
		return fmt.Errorf("generate request: missing model")
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("generate request: no messages")
	}
	for i, m := range r.Messages {
		switch m.Role {
		case ChatRoleSystem, ChatRoleUser, ChatRoleAssistant:
		default:
			return fmt.Errorf("generate request: message %d has unknown role %q", i, m.Role)
		}
		if m.Content == "" {
			return fmt.Errorf("generate request: message %d is empty", i)
		}
	}
	if r.Temperature < 0 || r.Temperature > 2 {
		return fmt.Errorf("generate request: temperature %v out of range", r.Temperature)
	}
	if r.MaxOutputTokens < 0 {
		return fmt.Errorf("generate request: max output tokens must not be negative")
	}
	return nil
}

// GenerateResult is a completed provider response.
type GenerateResult struct {
	// Text is the full response text.
	Text string
}

// LLMProvider is a single language model backend.
type LLMProvider interface {
	// Name returns the provider identifier used in configuration.
	Name() string
	// Generate produces one complete response.
	Generate(ctx context.Context, req GenerateRequest) (GenerateResult, error)
}

// LLMRegistry resolves providers by name.
type LLMRegistry interface {
	// Provider returns the provider registered under name.
	Provider(name string) (LLMProvider, error)
}
