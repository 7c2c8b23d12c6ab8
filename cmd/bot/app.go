package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"veritas/internal/driver/telegram"
	"veritas/internal/kernel"
	"veritas/modules/factcheck"
	"veritas/modules/start"
	"veritas/pkg/llm"
	"veritas/pkg/llm/providers/gemini"
	"veritas/pkg/llm/providers/openai"
	"veritas/pkg/search/tavily"
	"veritas/pkg/veritas"
)

const (
	envConfigFile           = "VERITAS_CONFIG_FILE"
	defaultConfigFilePath   = "config/bot.json"
	alternateConfigFilePath = "bin/config/bot.json"
	telegramDriverName      = "telegram"

	defaultModuleHookTimeout   = 5 * time.Second
	defaultShutdownTimeout     = 10 * time.Second
	defaultSubscriptionQueue   = 256
	defaultSubscriptionWorkers = 2
)

type appConfig struct {
	logLevel slog.Level

	moduleHookTimeout   time.Duration
	shutdownTimeout     time.Duration
	subscriptionQueue   int
	subscriptionWorkers int

	telegram  json.RawMessage
	llm       fileLLMConfig
	search    fileSearchConfig
	factcheck json.RawMessage
}

type fileConfig struct {
	LogLevel  string           `json:"log_level"`
	Kernel    fileKernelConfig `json:"kernel"`
	Telegram  json.RawMessage  `json:"telegram"`
	LLM       fileLLMConfig    `json:"llm"`
	Search    fileSearchConfig `json:"search"`
	Factcheck json.RawMessage  `json:"factcheck"`
}

type fileKernelConfig struct {
	ModuleHookTimeout   string `json:"module_hook_timeout"`
	ShutdownTimeout     string `json:"shutdown_timeout"`
	SubscriptionQueue   *int   `json:"subscription_queue"`
	SubscriptionWorkers *int   `json:"subscription_workers"`
}

type fileLLMConfig struct {
	OpenAI *fileOpenAIConfig `json:"openai"`
	Gemini *fileGeminiConfig `json:"gemini"`
}

type fileOpenAIConfig struct {
	APIKey       string `json:"api_key"`
	BaseURL      string `json:"base_url"`
	Organization string `json:"organization"`
	Project      string `json:"project"`
	MaxRetries   *int   `json:"max_retries"`
}

type fileGeminiConfig struct {
	APIKey     string `json:"api_key"`
	BaseURL    string `json:"base_url"`
	APIVersion string `json:"api_version"`
}

type fileSearchConfig struct {
	APIKey  string `json:"api_key"`
	BaseURL string `json:"base_url"`
}

func run() error {
	configFile, err := resolveConfigFilePath()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	cfg, err := loadConfigFile(configFile)
	if err != nil {
		return fmt.Errorf("load config file %s: %w", configFile, err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel}))

	runtime, err := buildRuntime(context.Background(), logger, cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("starting bot")
	if err := runtime.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run kernel: %w", err)
	}

	return nil
}

func resolveConfigFilePath() (string, error) {
	if configFile := strings.TrimSpace(os.Getenv(envConfigFile)); configFile != "" {
		return configFile, nil
	}

	candidates := []string{defaultConfigFilePath, alternateConfigFilePath}
	for _, candidate := range candidates {
		info, err := os.Stat(candidate)
		if err == nil {
			if info.IsDir() {
				return "", fmt.Errorf("config file %s is a directory", candidate)
			}
			return candidate, nil
		}
		if !errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("stat config file %s: %w", candidate, err)
		}
	}

	return "", fmt.Errorf(
		"config file not found; create %s or %s, or set %s",
		defaultConfigFilePath,
		alternateConfigFilePath,
		envConfigFile,
	)
}

func loadConfigFile(path string) (appConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return appConfig{}, fmt.Errorf("read: %w", err)
	}

	return parseAppConfig(data)
}

func parseAppConfig(data []byte) (appConfig, error) {
	var parsed fileConfig
	if err := json.Unmarshal(data, &parsed); err != nil {
		return appConfig{}, fmt.Errorf("parse: %w", err)
	}

	cfg := appConfig{
		logLevel:            slog.LevelInfo,
		moduleHookTimeout:   defaultModuleHookTimeout,
		shutdownTimeout:     defaultShutdownTimeout,
		subscriptionQueue:   defaultSubscriptionQueue,
		subscriptionWorkers: defaultSubscriptionWorkers,
		telegram:            append(json.RawMessage(nil), parsed.Telegram...),
		llm:                 parsed.LLM,
		search:              parsed.Search,
		factcheck:           append(json.RawMessage(nil), parsed.Factcheck...),
	}

	if rawLevel := strings.TrimSpace(parsed.LogLevel); rawLevel != "" {
		level, err := parseLogLevel(rawLevel)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse log_level: %w", err)
		}
		cfg.logLevel = level
	}

	if rawTimeout := strings.TrimSpace(parsed.Kernel.ModuleHookTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse kernel.module_hook_timeout: %w", err)
		}
		if timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.module_hook_timeout: must be > 0")
		}
		cfg.moduleHookTimeout = timeout
	}
	if rawTimeout := strings.TrimSpace(parsed.Kernel.ShutdownTimeout); rawTimeout != "" {
		timeout, err := time.ParseDuration(rawTimeout)
		if err != nil {
			return appConfig{}, fmt.Errorf("parse kernel.shutdown_timeout: %w", err)
		}
		if timeout <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.shutdown_timeout: must be > 0")
		}
		cfg.shutdownTimeout = timeout
	}
	if parsed.Kernel.SubscriptionQueue != nil {
		if *parsed.Kernel.SubscriptionQueue <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.subscription_queue: must be > 0")
		}
		cfg.subscriptionQueue = *parsed.Kernel.SubscriptionQueue
	}
	if parsed.Kernel.SubscriptionWorkers != nil {
		if *parsed.Kernel.SubscriptionWorkers <= 0 {
			return appConfig{}, fmt.Errorf("parse kernel.subscription_workers: must be > 0")
		}
		cfg.subscriptionWorkers = *parsed.Kernel.SubscriptionWorkers
	}

	if len(cfg.telegram) == 0 {
		return appConfig{}, fmt.Errorf("telegram driver config is required")
	}
	if cfg.llm.OpenAI == nil && cfg.llm.Gemini == nil {
		return appConfig{}, fmt.Errorf("at least one llm provider is required")
	}
	if strings.TrimSpace(cfg.search.APIKey) == "" {
		return appConfig{}, fmt.Errorf("search.api_key is required")
	}

	return cfg, nil
}

func parseLogLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("unsupported level %q", raw)
	}
}

// buildRuntime assembles the kernel with the telegram driver, shared
// services, and both bot modules registered.
func buildRuntime(ctx context.Context, logger *slog.Logger, cfg appConfig) (*kernel.Kernel, error) {
	runtime := kernel.New(
		kernel.WithLogger(logger),
		kernel.WithModuleHookTimeout(cfg.moduleHookTimeout),
		kernel.WithShutdownTimeout(cfg.shutdownTimeout),
		kernel.WithDefaultSubscriptionQueue(cfg.subscriptionQueue),
		kernel.WithDefaultSubscriptionWorkers(cfg.subscriptionWorkers),
	)

	telegramDriver, dispatcher, err := telegram.BuildRuntimeFromConfig(telegramDriverName, logger, cfg.telegram)
	if err != nil {
		return nil, fmt.Errorf("build telegram driver: %w", err)
	}
	if err := runtime.RegisterDriver(telegramDriver); err != nil {
		return nil, fmt.Errorf("register telegram driver: %w", err)
	}

	registry, err := buildLLMRegistry(cfg.llm)
	if err != nil {
		return nil, err
	}
	searchClient, err := buildSearchClient(cfg.search)
	if err != nil {
		return nil, err
	}

	if err := runtime.RegisterService(veritas.ServiceOutbound, dispatcher); err != nil {
		return nil, fmt.Errorf("register outbound service: %w", err)
	}
	if err := runtime.RegisterService(veritas.ServiceLLM, registry); err != nil {
		return nil, fmt.Errorf("register llm service: %w", err)
	}
	if err := runtime.RegisterService(veritas.ServiceSearch, searchClient); err != nil {
		return nil, fmt.Errorf("register search service: %w", err)
	}

	factcheckConfig, err := factcheck.ParseConfig(cfg.factcheck)
	if err != nil {
		return nil, err
	}
	factcheckModule, err := factcheck.New(factcheckConfig)
	if err != nil {
		return nil, err
	}
	if err := runtime.RegisterModule(ctx, factcheckModule); err != nil {
		return nil, fmt.Errorf("register factcheck module: %w", err)
	}
	if err := runtime.RegisterModule(ctx, start.New()); err != nil {
		return nil, fmt.Errorf("register start module: %w", err)
	}

	return runtime, nil
}

func buildLLMRegistry(cfg fileLLMConfig) (veritas.LLMRegistry, error) {
	providers := make([]veritas.LLMProvider, 0, 2)

	if cfg.OpenAI != nil {
		provider, err := openai.New(openai.ProviderConfig{
			APIKey:       cfg.OpenAI.APIKey,
			BaseURL:      cfg.OpenAI.BaseURL,
			Organization: cfg.OpenAI.Organization,
			Project:      cfg.OpenAI.Project,
			MaxRetries:   cfg.OpenAI.MaxRetries,
		})
		if err != nil {
			return nil, fmt.Errorf("build openai provider: %w", err)
		}
		providers = append(providers, provider)
	}
	if cfg.Gemini != nil {
		provider, err := gemini.New(gemini.ProviderConfig{
			APIKey:     cfg.Gemini.APIKey,
			BaseURL:    cfg.Gemini.BaseURL,
			APIVersion: cfg.Gemini.APIVersion,
		})
		if err != nil {
			return nil, fmt.Errorf("build gemini provider: %w", err)
		}
		providers = append(providers, provider)
	}

	registry, err := llm.NewRegistry(providers...)
	if err != nil {
		return nil, fmt.Errorf("build llm registry: %w", err)
	}

	return registry, nil
}

func buildSearchClient(cfg fileSearchConfig) (veritas.SearchClient, error) {
	options := make([]tavily.ClientOption, 0, 1)
	if strings.TrimSpace(cfg.BaseURL) != "" {
		options = append(options, tavily.WithBaseURL(cfg.BaseURL))
	}

	client, err := tavily.NewClient(cfg.APIKey, options...)
	if err != nil {
		return nil, fmt.Errorf("build search client: %w", err)
	}

	return client, nil
}
