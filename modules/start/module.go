package start

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"veritas/pkg/veritas"
)

const startCommand = "/start"

const greetingMarkup = "<b>Welcome to Fact-Checking Bot</b>\n\n" +
	"Send any claim and I will verify it using live web search."

// Module replies with the bot greeting when it receives a /start command.
type Module struct {
	dispatcher veritas.OutboundDispatcher
	logger     *slog.Logger
}

// New creates a start module with default configuration.
func New() *Module {
	return &Module{logger: slog.Default()}
}

// Info returns registration metadata.
func (m *Module) Info() veritas.ModuleInfo {
	return veritas.ModuleInfo{
		Name:        "start",
		Description: "greets users on /start",
	}
}

// Capabilities lists the facilities the module needs.
func (m *Module) Capabilities() []veritas.Capability {
	return []veritas.Capability{veritas.CapabilityOutbound}
}

// OnRegister resolves dependencies and subscribes to message events.
func (m *Module) OnRegister(_ context.Context, rt veritas.ModuleRuntime) error {
	m.logger = rt.Logger()

	dispatcher, err := veritas.ResolveService[veritas.OutboundDispatcher](rt, veritas.ServiceOutbound)
	if err != nil {
		return fmt.Errorf("start resolve outbound dispatcher: %w", err)
	}
	m.dispatcher = dispatcher

	if _, err := rt.Subscribe(veritas.SubscriptionSpec{
		Name: "start-commands",
		Filter: veritas.EventFilter{
			Kinds: []veritas.EventKind{veritas.EventKindMessageCreated},
		},
		Handler:   m.handleMessage,
		QueueSize: 16,
		Workers:   1,
		Overflow:  veritas.OverflowDropOldest,
	}); err != nil {
		return fmt.Errorf("start subscribe: %w", err)
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
	if !isStartCommand(event.Message.Text) {
		return nil
	}
	if m.dispatcher == nil {
		return fmt.Errorf("start handle message: outbound dispatcher not configured")
	}

	text, entities := veritas.RenderBoldMarkup(greetingMarkup)
	if _, err := m.dispatcher.Dispatch(ctx, veritas.OutboundRequest{
		Kind:         veritas.OutboundKindSendMessage,
		Conversation: event.Conversation,
		Text:         text,
		Entities:     entities,
	}); err != nil {
		return fmt.Errorf("start send greeting: %w", err)
	}

	return nil
}

// isStartCommand matches /start and its bot-addressed form /start@botname.
func isStartCommand(text string) bool {
	fields := strings.Fields(strings.TrimSpace(text))
	if len(fields) == 0 {
		return false
	}
	command := fields[0]
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}
	return command == startCommand
}

var _ veritas.Module = (*Module)(nil)
