package llm

import (
	"context"
	"errors"
	"testing"

	"veritas/pkg/veritas"
)

func TestRegistryResolvesProviderByName(t *testing.T) {
	t.Parallel()

	openaiStub := stubProvider{name: "openai"}
	geminiStub := stubProvider{name: "gemini"}

	registry, err := NewRegistry(openaiStub, geminiStub)
	if err != nil {
		t.Fatalf("new registry failed: %v", err)
	}

	resolved, err := registry.Provider("gemini")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if resolved.Name() != "gemini" {
		t.Fatalf("provider = %s, want gemini", resolved.Name())
	}

	if _, err := registry.Provider("anthropic"); !errors.Is(err, veritas.ErrLLMProviderNotFound) {
		t.Fatalf("error = %v, want ErrLLMProviderNotFound", err)
	}
	if _, err := registry.Provider("  "); !errors.Is(err, veritas.ErrLLMProviderNotFound) {
		t.Fatalf("error = %v, want ErrLLMProviderNotFound", err)
	}
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewRegistry(); err == nil {
		t.Fatal("expected error for empty registry")
	}
	if _, err := NewRegistry(nil); err == nil {
		t.Fatal("expected error for nil provider")
	}
	if _, err := NewRegistry(stubProvider{name: ""}); err == nil {
		t.Fatal("expected error for empty provider name")
	}
	if _, err := NewRegistry(stubProvider{name: "openai"}, stubProvider{name: "openai"}); err == nil {
		t.Fatal("expected error for duplicate provider name")
	}
}

type stubProvider struct {
	name string
}

func (p stubProvider) Name() string {
	return p.name
}

func (p stubProvider) Generate(context.Context, veritas.GenerateRequest) (veritas.GenerateResult, error) {
	return veritas.GenerateResult{Text: "ok"}, nil
}
