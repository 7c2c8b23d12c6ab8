package factcheck

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"veritas/pkg/veritas"
)

const (
	placeholderMessage = "News-checking... Please wait."
	timeoutMessage     = "Request timed out. Please try again."
	failureMessage     = "AI processing failed. Please try again later."
	unexpectedMessage  = "Error processing request."

	rejectEmptyClaim = "Please send a valid claim."
	rejectRateLimit  = "Please wait before sending another request."

	subscriptionQueue   = 64
	subscriptionWorkers = 4
)

// Module answers incoming chat messages with fact-check verdicts.
type Module struct {
	cfg Config

	dispatcher   veritas.OutboundDispatcher
	orchestrator *Orchestrator
	limiter      *cooldownLimiter
	logger       *slog.Logger
}

// New creates one factcheck module instance.
func New(cfg Config) (*Module, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("new factcheck module: %w", err)
	}
	return &Module{
		cfg:     cfg,
		limiter: newCooldownLimiter(cfg.Cooldown, nil),
		logger:  slog.Default(),
	}, nil
}

// Info returns registration metadata.
func (m *Module) Info() veritas.ModuleInfo {
	return veritas.ModuleInfo{
		Name:        "factcheck",
		Description: "verifies claims against live web evidence",
	}
}

// Capabilities lists the facilities the module needs.
func (m *Module) Capabilities() []veritas.Capability {
	return []veritas.Capability{
		veritas.CapabilityOutbound,
		veritas.CapabilityLLM,
		veritas.CapabilitySearch,
	}
}

// OnRegister resolves services and subscribes to message events.
func (m *Module) OnRegister(_ context.Context, rt veritas.ModuleRuntime) error {
	m.logger = rt.Logger()

	dispatcher, err := veritas.ResolveService[veritas.OutboundDispatcher](rt, veritas.ServiceOutbound)
	if err != nil {
		return fmt.Errorf("factcheck resolve outbound dispatcher: %w", err)
	}

	registry, err := veritas.ResolveService[veritas.LLMRegistry](rt, veritas.ServiceLLM)
	if err != nil {
		return fmt.Errorf("factcheck resolve llm registry: %w", err)
	}
	provider, err := registry.Provider(m.cfg.Provider)
	if err != nil {
		return fmt.Errorf("factcheck resolve provider %s: %w", m.cfg.Provider, err)
	}

	search, err := veritas.ResolveService[veritas.SearchClient](rt, veritas.ServiceSearch)
	if err != nil {
		return fmt.Errorf("factcheck resolve search client: %w", err)
	}

	retriever := NewRetriever(search, m.cfg, m.logger)
	orchestrator, err := NewOrchestrator(m.cfg, provider, retriever, m.logger)
	if err != nil {
		return fmt.Errorf("factcheck build orchestrator: %w", err)
	}

	m.dispatcher = dispatcher
	m.orchestrator = orchestrator

	if _, err := rt.Subscribe(veritas.SubscriptionSpec{
		Name: "factcheck-messages",
		Filter: veritas.EventFilter{
			Kinds: []veritas.EventKind{veritas.EventKindMessageCreated},
		},
		Handler:        m.handleMessage,
		QueueSize:      subscriptionQueue,
		Workers:        subscriptionWorkers,
		Overflow:       veritas.OverflowDropOldest,
		HandlerTimeout: m.cfg.HandlerTimeout,
	}); err != nil {
		return fmt.Errorf("factcheck subscribe: %w", err)
	}

	return nil
}

// OnStart starts the module lifecycle.
func (m *Module) OnStart(_ context.Context) error {
	return nil
}

// OnShutdown stops the module lifecycle.
func (m *Module) OnShutdown(_ context.Context) error {
	return nil
}

func (m *Module) handleMessage(ctx context.Context, event *veritas.Event) error {
	if event == nil || event.Message == nil {
		return nil
	}
	if event.Kind != veritas.EventKindMessageCreated {
		return nil
	}
	if event.Actor.IsBot {
		return nil
	}

	claim := strings.TrimSpace(event.Message.Text)
	if strings.HasPrefix(claim, "/") {
		// Commands belong to other modules.
		return nil
	}

	if claim == "" {
		return m.reply(ctx, event, rejectEmptyClaim)
	}
	if utf8.RuneCountInString(claim) > m.cfg.MaxInputRunes {
		return m.reply(ctx, event, fmt.Sprintf("Message too long (max %d characters).", m.cfg.MaxInputRunes))
	}
	if !m.limiter.Allow(event.Actor.ID) {
		return m.reply(ctx, event, rejectRateLimit)
	}

	if _, err := m.dispatcher.Dispatch(ctx, veritas.OutboundRequest{
		Kind:         veritas.OutboundKindSendTyping,
		Conversation: event.Conversation,
	}); err != nil {
		m.logger.DebugContext(ctx, "typing indicator failed", "error", err)
	}

	placeholder, err := m.dispatcher.Dispatch(ctx, veritas.OutboundRequest{
		Kind:         veritas.OutboundKindSendMessage,
		Conversation: event.Conversation,
		Text:         placeholderMessage,
	})
	if err != nil {
		return fmt.Errorf("factcheck send placeholder: %w", err)
	}

	checkCtx, cancel := context.WithTimeout(ctx, m.cfg.CheckTimeout)
	defer cancel()

	verdict, err := m.orchestrator.Check(checkCtx, claim, event.Actor.ID)
	switch {
	case err == nil:
		return m.deliverVerdict(ctx, event, placeholder.MessageID, verdict)
	case errors.Is(err, context.Canceled) && ctx.Err() != nil:
		// Kernel shutdown, not a per-request outcome.
		return err
	case errors.Is(err, context.DeadlineExceeded):
		return m.edit(ctx, event, placeholder.MessageID, timeoutMessage, nil)
	case errors.Is(err, ErrVerdictGeneration):
		return m.edit(ctx, event, placeholder.MessageID, failureMessage, nil)
	default:
		m.logger.ErrorContext(ctx, "claim check failed", "error", err)
		return m.edit(ctx, event, placeholder.MessageID, unexpectedMessage, nil)
	}
}

// deliverVerdict replaces the placeholder with the rendered verdict. Markup
// is converted to plain text plus formatting entities before dispatch.
func (m *Module) deliverVerdict(ctx context.Context, event *veritas.Event, messageID, verdict string) error {
	text, entities := veritas.RenderBoldMarkup(verdict)
	return m.edit(ctx, event, messageID, text, entities)
}

func (m *Module) edit(ctx context.Context, event *veritas.Event, messageID, text string, entities []veritas.TextEntity) error {
	if _, err := m.dispatcher.Dispatch(ctx, veritas.OutboundRequest{
		Kind:               veritas.OutboundKindEditMessage,
		Conversation:       event.Conversation,
		MessageID:          messageID,
		Text:               text,
		Entities:           entities,
		DisableLinkPreview: true,
	}); err != nil {
		return fmt.Errorf("factcheck edit reply: %w", err)
	}
	return nil
}

func (m *Module) reply(ctx context.Context, event *veritas.Event, text string) error {
	if _, err := m.dispatcher.Dispatch(ctx, veritas.OutboundRequest{
		Kind:         veritas.OutboundKindSendMessage,
		Conversation: event.Conversation,
		Text:         text,
	}); err != nil {
		return fmt.Errorf("factcheck send reply: %w", err)
	}
	return nil
}

var _ veritas.Module = (*Module)(nil)
