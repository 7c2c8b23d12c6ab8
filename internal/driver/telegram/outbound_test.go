package telegram

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"veritas/pkg/veritas"

	"github.com/gotd/td/tg"
)

func TestOutboundDispatcherSendMessage(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		request     veritas.OutboundRequest
		rpcErr      error
		wantErr     bool
		wantMessage string
	}{
		{
			name: "successful send",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindSendMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				Text: "News-checking... Please wait.",
			},
			wantMessage: "901",
		},
		{
			name: "successful send with entities",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindSendMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				Text: "Verdict: True",
				Entities: []veritas.TextEntity{
					{Type: veritas.TextEntityBold, Offset: 0, Length: 8},
				},
			},
			wantMessage: "901",
		},
		{
			name: "successful reply",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindSendMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				ReplyToID: "17",
				Text:      "Verdict: False",
			},
			wantMessage: "901",
		},
		{
			name: "invalid request",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindSendMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
			},
			wantErr: true,
		},
		{
			name: "rpc failure",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindSendMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				Text: "pong",
			},
			rpcErr:  errors.New("send failed"),
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			cache := NewPeerCache()
			cache.RememberConversation(
				ChatRef{ID: "42", Type: veritas.ConversationTypePrivate},
				&tg.InputPeerUser{UserID: 42},
			)

			rpc := &stubOutboundRPC{sendID: 901, sendErr: testCase.rpcErr}
			dispatcher, err := newOutboundDispatcherWithRPC(rpc, cache)
			if err != nil {
				t.Fatalf("new dispatcher failed: %v", err)
			}

			result, err := dispatcher.Dispatch(context.Background(), testCase.request)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.MessageID != testCase.wantMessage {
				t.Fatalf("message id = %s, want %s", result.MessageID, testCase.wantMessage)
			}
			if rpc.sendCalls != 1 {
				t.Fatalf("send calls = %d, want 1", rpc.sendCalls)
			}
			if len(rpc.lastSendRequest.Entities) != len(testCase.request.Entities) {
				t.Fatalf(
					"entity len = %d, want %d",
					len(rpc.lastSendRequest.Entities),
					len(testCase.request.Entities),
				)
			}
		})
	}
}

func TestOutboundDispatcherEditMessage(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "42", Type: veritas.ConversationTypePrivate},
		&tg.InputPeerUser{UserID: 42},
	)

	tests := []struct {
		name    string
		request veritas.OutboundRequest
		wantErr bool
	}{
		{
			name: "successful edit with entities",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindEditMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				MessageID: "10",
				Text:      "Verdict: True",
				Entities: []veritas.TextEntity{
					{Type: veritas.TextEntityBold, Offset: 0, Length: 8},
				},
			},
		},
		{
			name: "invalid message id",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindEditMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				MessageID: "bad",
				Text:      "updated",
			},
			wantErr: true,
		},
		{
			name: "missing text",
			request: veritas.OutboundRequest{
				Kind: veritas.OutboundKindEditMessage,
				Conversation: veritas.Conversation{
					ID:   "42",
					Type: veritas.ConversationTypePrivate,
				},
				MessageID: "10",
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			rpc := &stubOutboundRPC{}
			dispatcher, err := newOutboundDispatcherWithRPC(rpc, cache)
			if err != nil {
				t.Fatalf("new dispatcher failed: %v", err)
			}

			result, err := dispatcher.Dispatch(context.Background(), testCase.request)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.MessageID != testCase.request.MessageID {
				t.Fatalf("message id = %s, want %s", result.MessageID, testCase.request.MessageID)
			}
			if rpc.editCalls != 1 {
				t.Fatalf("edit calls = %d, want 1", rpc.editCalls)
			}
			if rpc.lastEditID != 10 {
				t.Fatalf("edit id = %d, want 10", rpc.lastEditID)
			}
		})
	}
}

func TestOutboundDispatcherSendTyping(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "42", Type: veritas.ConversationTypePrivate},
		&tg.InputPeerUser{UserID: 42},
	)

	rpc := &stubOutboundRPC{}
	dispatcher, err := newOutboundDispatcherWithRPC(rpc, cache)
	if err != nil {
		t.Fatalf("new dispatcher failed: %v", err)
	}

	_, err = dispatcher.Dispatch(context.Background(), veritas.OutboundRequest{
		Kind: veritas.OutboundKindSendTyping,
		Conversation: veritas.Conversation{
			ID:   "42",
			Type: veritas.ConversationTypePrivate,
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rpc.typingCalls != 1 {
		t.Fatalf("typing calls = %d, want 1", rpc.typingCalls)
	}
}

func TestOutboundDispatcherUnknownConversation(t *testing.T) {
	t.Parallel()

	rpc := &stubOutboundRPC{}
	dispatcher, err := newOutboundDispatcherWithRPC(rpc, NewPeerCache())
	if err != nil {
		t.Fatalf("new dispatcher failed: %v", err)
	}

	_, err = dispatcher.Dispatch(context.Background(), veritas.OutboundRequest{
		Kind: veritas.OutboundKindSendMessage,
		Conversation: veritas.Conversation{
			ID:   "404",
			Type: veritas.ConversationTypePrivate,
		},
		Text: "pong",
	})
	if err == nil {
		t.Fatal("expected error for unresolved peer")
	}
	if rpc.sendCalls != 0 {
		t.Fatalf("send calls = %d, want 0", rpc.sendCalls)
	}
}

func TestMapOutboundTextEntities(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name         string
		text         string
		entities     []veritas.TextEntity
		wantErr      bool
		wantLen      int
		wantTypeName string
		wantOffset   int
		wantLength   int
	}{
		{
			name: "empty entities",
			text: "hello",
		},
		{
			name: "maps bold",
			text: "hello",
			entities: []veritas.TextEntity{
				{Type: veritas.TextEntityBold, Offset: 0, Length: 5},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityBold",
			wantOffset:   0,
			wantLength:   5,
		},
		{
			name: "maps utf16 offsets",
			text: "a😀b",
			entities: []veritas.TextEntity{
				{Type: veritas.TextEntityBold, Offset: 2, Length: 1},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityBold",
			wantOffset:   3,
			wantLength:   1,
		},
		{
			name: "surrogate pair length",
			text: "a😀b",
			entities: []veritas.TextEntity{
				{Type: veritas.TextEntityBold, Offset: 1, Length: 1},
			},
			wantLen:      1,
			wantTypeName: "*tg.MessageEntityBold",
			wantOffset:   1,
			wantLength:   2,
		},
		{
			name: "invalid range fails",
			text: "hello",
			entities: []veritas.TextEntity{
				{Type: veritas.TextEntityBold, Offset: 0, Length: 6},
			},
			wantErr: true,
		},
		{
			name: "unsupported type fails",
			text: "hello",
			entities: []veritas.TextEntity{
				{Type: "fancy", Offset: 0, Length: 5},
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			converted, err := mapOutboundTextEntities(testCase.text, testCase.entities)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(converted) != testCase.wantLen {
				t.Fatalf("converted len = %d, want %d", len(converted), testCase.wantLen)
			}
			if len(converted) == 0 {
				return
			}

			if gotType := typeName(converted[0]); gotType != testCase.wantTypeName {
				t.Fatalf("type = %s, want %s", gotType, testCase.wantTypeName)
			}
			if converted[0].GetOffset() != testCase.wantOffset {
				t.Fatalf("offset = %d, want %d", converted[0].GetOffset(), testCase.wantOffset)
			}
			if converted[0].GetLength() != testCase.wantLength {
				t.Fatalf("length = %d, want %d", converted[0].GetLength(), testCase.wantLength)
			}
		})
	}
}

func TestParseMessageID(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		raw     string
		want    int
		wantErr bool
	}{
		{name: "valid id", raw: "17", want: 17},
		{name: "padded id", raw: " 17 ", want: 17},
		{name: "not a number", raw: "abc", wantErr: true},
		{name: "zero", raw: "0", wantErr: true},
		{name: "negative", raw: "-5", wantErr: true},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			got, err := parseMessageID(testCase.raw)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				if !errors.Is(err, veritas.ErrInvalidOutbound) {
					t.Fatalf("error = %v, want ErrInvalidOutbound", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != testCase.want {
				t.Fatalf("id = %d, want %d", got, testCase.want)
			}
		})
	}
}

type stubOutboundRPC struct {
	sendID          int
	sendErr         error
	lastSendRequest veritas.OutboundRequest
	lastEditID      int
	sendCalls       int
	editCalls       int
	typingCalls     int
}

func (s *stubOutboundRPC) SendText(
	_ context.Context,
	_ tg.InputPeerClass,
	request veritas.OutboundRequest,
) (int, error) {
	s.sendCalls++
	s.lastSendRequest = request
	if s.sendErr != nil {
		return 0, s.sendErr
	}

	return s.sendID, nil
}

func (s *stubOutboundRPC) EditText(
	_ context.Context,
	_ tg.InputPeerClass,
	messageID int,
	_ veritas.OutboundRequest,
) error {
	s.editCalls++
	s.lastEditID = messageID
	return nil
}

func (s *stubOutboundRPC) SendTyping(_ context.Context, _ tg.InputPeerClass) error {
	s.typingCalls++
	return nil
}

func typeName(value any) string {
	return fmt.Sprintf("%T", value)
}
