package veritas

import (
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestOutboundRequestValidate(t *testing.T) {
	t.Parallel()

	conv := Conversation{ID: "1001", Type: ConversationTypePrivate}

	testCases := []struct {
		name    string
		req     OutboundRequest
		wantErr bool
	}{
		{
			name: "valid send",
			req: OutboundRequest{
				Kind:         OutboundKindSendMessage,
				Conversation: conv,
				Text:         "hello",
			},
		},
		{
			name: "valid edit",
			req: OutboundRequest{
				Kind:         OutboundKindEditMessage,
				Conversation: conv,
				MessageID:    "7",
				Text:         "updated",
			},
		},
		{
			name: "valid typing",
			req: OutboundRequest{
				Kind:         OutboundKindSendTyping,
				Conversation: conv,
			},
		},
		{
			name: "send without text",
			req: OutboundRequest{
				Kind:         OutboundKindSendMessage,
				Conversation: conv,
			},
			wantErr: true,
		},
		{
			name: "edit without message id",
			req: OutboundRequest{
				Kind:         OutboundKindEditMessage,
				Conversation: conv,
				Text:         "updated",
			},
			wantErr: true,
		},
		{
			name: "missing conversation",
			req: OutboundRequest{
				Kind: OutboundKindSendMessage,
				Text: "hello",
			},
			wantErr: true,
		},
		{
			name: "unknown kind",
			req: OutboundRequest{
				Kind:         "delete_message",
				Conversation: conv,
			},
			wantErr: true,
		},
		{
			name: "entity outside text",
			req: OutboundRequest{
				Kind:         OutboundKindSendMessage,
				Conversation: conv,
				Text:         "hi",
				Entities: []TextEntity{
					{Type: TextEntityBold, Offset: 0, Length: 10},
				},
			},
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.req.Validate()
			if (err != nil) != tc.wantErr {
				t.Fatalf("err = %v, wantErr = %v", err, tc.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOutbound) {
				t.Fatalf("err = %v, want ErrInvalidOutbound", err)
			}
		})
	}
}

func TestOutboundErrorRetryable(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		class OutboundErrorClass
		want  bool
	}{
		{OutboundErrorRateLimited, true},
		{OutboundErrorUnavailable, true},
		{OutboundErrorNotModified, false},
		{OutboundErrorBadRequest, false},
		{OutboundErrorUnknown, false},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(string(tc.class), func(t *testing.T) {
			t.Parallel()

			oe := &OutboundError{Class: tc.class}
			if got := oe.Retryable(); got != tc.want {
				t.Fatalf("Retryable = %v, want %v", got, tc.want)
			}
		})
	}
}

func TestAsOutboundError(t *testing.T) {
	t.Parallel()

	inner := &OutboundError{
		Class:      OutboundErrorRateLimited,
		RetryAfter: 3 * time.Second,
		Err:        errors.New("flood wait"),
	}
	wrapped := fmt.Errorf("dispatch: %w", inner)

	got, ok := AsOutboundError(wrapped)
	if !ok {
		t.Fatal("expected OutboundError in chain")
	}
	if got.Class != OutboundErrorRateLimited {
		t.Fatalf("class = %q, want %q", got.Class, OutboundErrorRateLimited)
	}
	if got.RetryAfter != 3*time.Second {
		t.Fatalf("retry after = %v, want 3s", got.RetryAfter)
	}

	if _, ok := AsOutboundError(errors.New("plain")); ok {
		t.Fatal("plain error should not match")
	}
}
