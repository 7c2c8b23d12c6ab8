package veritas

import (
	"context"
	"fmt"
)

// OutboundKind identifies an outbound request type.
type OutboundKind string

const (
	// OutboundKindSendMessage sends a new message to a conversation.
	OutboundKindSendMessage OutboundKind = "send_message"
	// OutboundKindEditMessage replaces the text of a previously sent message.
	OutboundKindEditMessage OutboundKind = "edit_message"
	// OutboundKindSendTyping shows a transient typing indicator.
	OutboundKindSendTyping OutboundKind = "send_typing"
)

// OutboundRequest is a neutral request for a driver to act on its platform.
type OutboundRequest struct {
	// Kind selects the action.
	Kind OutboundKind
	// Conversation identifies the destination.
	Conversation Conversation
	// MessageID identifies the target message for edits.
	MessageID string
	// ReplyToID makes the sent message a reply when non-empty.
	ReplyToID string
	// Text is the plain message body for send and edit.
	Text string
	// Entities describes formatted ranges inside Text.
	Entities []TextEntity
	// DisableLinkPreview suppresses platform link previews.
	DisableLinkPreview bool
}

// OutboundResult reports what the driver produced.
type OutboundResult struct {
	// MessageID identifies the sent message, for later edits.
	MessageID string
}

// Validate checks the request for structural problems.
func (r OutboundRequest) Validate() error {
	if r.Conversation.ID == "" {
		return fmt.Errorf("%w: missing conversation id", ErrInvalidOutbound)
	}
	switch r.Kind {
	case OutboundKindSendMessage:
		if r.Text == "" {
			return fmt.Errorf("%w: send requires text", ErrInvalidOutbound)
		}
	case OutboundKindEditMessage:
		if r.MessageID == "" {
			return fmt.Errorf("%w: edit requires message id", ErrInvalidOutbound)
		}
		if r.Text == "" {
			return fmt.Errorf("%w: edit requires text", ErrInvalidOutbound)
		}
	case OutboundKindSendTyping:
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidOutbound, r.Kind)
	}
	if err := ValidateTextEntities(r.Text, r.Entities); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidOutbound, err)
	}
	return nil
}

// OutboundDispatcher delivers outbound requests to the platform driver.
type OutboundDispatcher interface {
	// Dispatch performs the request and returns what the platform produced.
	Dispatch(ctx context.Context, req OutboundRequest) (OutboundResult, error)
}
