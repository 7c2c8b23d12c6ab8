package factcheck

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"veritas/pkg/veritas"
)

const (
	defaultModel            = "gpt-4o-mini"
	defaultMaxInputRunes    = 500
	defaultMaxEvidenceChars = 6000
	defaultSearchResults    = 5
	defaultCooldown         = 5 * time.Second
	defaultCheckTimeout     = 40 * time.Second
	defaultHandlerTimeout   = 45 * time.Second
)

// Config configures factcheck module behavior.
type Config struct {
	// Provider identifies which LLM provider to resolve from the registry.
	Provider string
	// Model identifies which provider model adjudicates claims.
	Model string
	// SearchDepth selects the evidence search mode.
	SearchDepth veritas.SearchDepth
	// SearchMaxResults caps retrieved documents per claim.
	SearchMaxResults int
	// SearchIncludeAnswer asks the provider for a synthesized summary.
	SearchIncludeAnswer bool
	// MaxInputRunes caps accepted claim length, measured in runes.
	MaxInputRunes int
	// MaxEvidenceChars caps the joined evidence text passed to the model.
	MaxEvidenceChars int
	// Cooldown is the minimum interval between requests from one user.
	Cooldown time.Duration
	// CheckTimeout bounds one full claim check, retrieval included.
	CheckTimeout time.Duration
	// HandlerTimeout bounds one bus handler invocation. It must exceed
	// CheckTimeout so the timeout reply can still be delivered.
	HandlerTimeout time.Duration
}

type fileConfig struct {
	Provider            string `json:"provider"`
	Model               string `json:"model"`
	SearchDepth         string `json:"search_depth"`
	SearchMaxResults    int    `json:"search_max_results"`
	SearchIncludeAnswer *bool  `json:"search_include_answer"`
	MaxInputRunes       int    `json:"max_input_runes"`
	MaxEvidenceChars    int    `json:"max_evidence_chars"`
	Cooldown            string `json:"cooldown"`
	CheckTimeout        string `json:"check_timeout"`
	HandlerTimeout      string `json:"handler_timeout"`
}

// DefaultConfig returns the built-in factcheck defaults for one provider.
func DefaultConfig(provider string) Config {
	return Config{
		Provider:            strings.TrimSpace(provider),
		Model:               defaultModel,
		SearchDepth:         veritas.SearchDepthAdvanced,
		SearchMaxResults:    defaultSearchResults,
		SearchIncludeAnswer: true,
		MaxInputRunes:       defaultMaxInputRunes,
		MaxEvidenceChars:    defaultMaxEvidenceChars,
		Cooldown:            defaultCooldown,
		CheckTimeout:        defaultCheckTimeout,
		HandlerTimeout:      defaultHandlerTimeout,
	}
}

// ParseConfig decodes raw JSON module configuration over the defaults.
func ParseConfig(raw json.RawMessage) (Config, error) {
	var parsed fileConfig
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &parsed); err != nil {
			return Config{}, fmt.Errorf("parse factcheck config: %w", err)
		}
	}

	cfg := DefaultConfig(parsed.Provider)

	if model := strings.TrimSpace(parsed.Model); model != "" {
		cfg.Model = model
	}
	if depth := strings.TrimSpace(parsed.SearchDepth); depth != "" {
		cfg.SearchDepth = veritas.SearchDepth(depth)
	}
	if parsed.SearchMaxResults > 0 {
		cfg.SearchMaxResults = parsed.SearchMaxResults
	}
	if parsed.SearchIncludeAnswer != nil {
		cfg.SearchIncludeAnswer = *parsed.SearchIncludeAnswer
	}
	if parsed.MaxInputRunes > 0 {
		cfg.MaxInputRunes = parsed.MaxInputRunes
	}
	if parsed.MaxEvidenceChars > 0 {
		cfg.MaxEvidenceChars = parsed.MaxEvidenceChars
	}

	durations := []struct {
		name   string
		raw    string
		target *time.Duration
	}{
		{"cooldown", parsed.Cooldown, &cfg.Cooldown},
		{"check_timeout", parsed.CheckTimeout, &cfg.CheckTimeout},
		{"handler_timeout", parsed.HandlerTimeout, &cfg.HandlerTimeout},
	}
	for _, entry := range durations {
		trimmed := strings.TrimSpace(entry.raw)
		if trimmed == "" {
			continue
		}
		value, err := time.ParseDuration(trimmed)
		if err != nil {
			return Config{}, fmt.Errorf("parse factcheck config %s: %w", entry.name, err)
		}
		if value <= 0 {
			return Config{}, fmt.Errorf("parse factcheck config %s: must be > 0", entry.name)
		}
		*entry.target = value
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks factcheck config coherence.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Provider) == "" {
		return fmt.Errorf("validate factcheck config: provider is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return fmt.Errorf("validate factcheck config: model is required")
	}
	switch cfg.SearchDepth {
	case veritas.SearchDepthBasic, veritas.SearchDepthAdvanced:
	default:
		return fmt.Errorf("validate factcheck config: unknown search_depth %q", cfg.SearchDepth)
	}
	if cfg.SearchMaxResults <= 0 {
		return fmt.Errorf("validate factcheck config: search_max_results must be > 0")
	}
	if cfg.MaxInputRunes <= 0 {
		return fmt.Errorf("validate factcheck config: max_input_runes must be > 0")
	}
	if cfg.MaxEvidenceChars <= 0 {
		return fmt.Errorf("validate factcheck config: max_evidence_chars must be > 0")
	}
	if cfg.Cooldown <= 0 {
		return fmt.Errorf("validate factcheck config: cooldown must be > 0")
	}
	if cfg.CheckTimeout <= 0 {
		return fmt.Errorf("validate factcheck config: check_timeout must be > 0")
	}
	if cfg.HandlerTimeout <= cfg.CheckTimeout {
		return fmt.Errorf("validate factcheck config: handler_timeout must exceed check_timeout")
	}
	return nil
}
