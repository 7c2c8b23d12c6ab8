package gemini

import (
	"context"
	"errors"
	"strings"
	"testing"

	"veritas/pkg/veritas"

	"google.golang.org/genai"
)

func TestNewGeminiProviderConfigValidation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name             string
		cfg              ProviderConfig
		wantErrSubstring string
	}{
		{
			name: "missing api key",
			cfg: ProviderConfig{
				APIKey: "   ",
			},
			wantErrSubstring: "missing api_key",
		},
		{
			name: "invalid base url",
			cfg: ProviderConfig{
				APIKey:  "key",
				BaseURL: "not a url",
			},
			wantErrSubstring: "parse base_url",
		},
		{
			name: "invalid api version",
			cfg: ProviderConfig{
				APIKey:     "key",
				APIVersion: "v1 beta",
			},
			wantErrSubstring: "invalid api_version",
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			_, err := New(testCase.cfg)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), testCase.wantErrSubstring) {
				t.Fatalf("error = %v, want substring %q", err, testCase.wantErrSubstring)
			}
		})
	}
}

func TestGeminiProviderGenerate(t *testing.T) {
	t.Parallel()

	stub := &geminiModelsClientStub{
		response: newTextResponse("Verdict: False"),
	}
	provider := &Provider{models: stub}

	result, err := provider.Generate(context.Background(), veritas.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []veritas.ChatMessage{
			{Role: veritas.ChatRoleSystem, Content: "You are a fact checker."},
			{Role: veritas.ChatRoleUser, Content: "Claim: the sky is green"},
		},
		Temperature:     0,
		MaxOutputTokens: 600,
	})
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if result.Text != "Verdict: False" {
		t.Fatalf("text = %q, want Verdict: False", result.Text)
	}

	if stub.lastModel != "gemini-2.0-flash" {
		t.Fatalf("model = %s, want gemini-2.0-flash", stub.lastModel)
	}
	if stub.lastConfig == nil {
		t.Fatal("expected generation config")
	}
	if stub.lastConfig.Temperature == nil || *stub.lastConfig.Temperature != 0 {
		t.Fatalf("temperature = %v, want explicit zero", stub.lastConfig.Temperature)
	}
	if stub.lastConfig.MaxOutputTokens != 600 {
		t.Fatalf("max output tokens = %d, want 600", stub.lastConfig.MaxOutputTokens)
	}
	if stub.lastConfig.SystemInstruction == nil {
		t.Fatal("expected system instruction")
	}
	if len(stub.lastContents) != 1 {
		t.Fatalf("contents = %d, want 1 non-system message", len(stub.lastContents))
	}
	if stub.lastContents[0].Role != string(genai.RoleUser) {
		t.Fatalf("role = %s, want user", stub.lastContents[0].Role)
	}
}

func TestGeminiProviderGenerateRejectsSystemOnlyInput(t *testing.T) {
	t.Parallel()

	provider := &Provider{models: &geminiModelsClientStub{}}

	_, err := provider.Generate(context.Background(), veritas.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []veritas.ChatMessage{
			{Role: veritas.ChatRoleSystem, Content: "instructions only"},
		},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "missing non-system messages") {
		t.Fatalf("error = %v, want missing non-system messages", err)
	}
}

func TestGeminiProviderGenerateEmptyResponse(t *testing.T) {
	t.Parallel()

	provider := &Provider{
		models: &geminiModelsClientStub{response: &genai.GenerateContentResponse{}},
	}

	_, err := provider.Generate(context.Background(), veritas.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []veritas.ChatMessage{
			{Role: veritas.ChatRoleUser, Content: "claim"},
		},
	})
	if !errors.Is(err, veritas.ErrLLMEmptyResponse) {
		t.Fatalf("error = %v, want ErrLLMEmptyResponse", err)
	}
}

func TestGeminiProviderGenerateRequestFailure(t *testing.T) {
	t.Parallel()

	requestErr := errors.New("api unavailable")
	provider := &Provider{models: &geminiModelsClientStub{err: requestErr}}

	_, err := provider.Generate(context.Background(), veritas.GenerateRequest{
		Model: "gemini-2.0-flash",
		Messages: []veritas.ChatMessage{
			{Role: veritas.ChatRoleUser, Content: "claim"},
		},
	})
	if !errors.Is(err, requestErr) {
		t.Fatalf("error = %v, want wrapped request error", err)
	}
}

type geminiModelsClientStub struct {
	response     *genai.GenerateContentResponse
	err          error
	lastModel    string
	lastContents []*genai.Content
	lastConfig   *genai.GenerateContentConfig
}

func (s *geminiModelsClientStub) GenerateContent(
	_ context.Context,
	model string,
	contents []*genai.Content,
	config *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	s.lastModel = model
	s.lastContents = contents
	s.lastConfig = config
	if s.err != nil {
		return nil, s.err
	}

	return s.response, nil
}

func newTextResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{
				Content: &genai.Content{
					Parts: []*genai.Part{
						{Text: text},
					},
				},
			},
		},
	}
}
