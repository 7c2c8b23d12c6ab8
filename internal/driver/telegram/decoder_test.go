package telegram

import (
	"context"
	"testing"
	"time"

	"veritas/pkg/veritas"
)

func TestDefaultDecoderDecodeMessageUpdate(t *testing.T) {
	t.Parallel()

	decoder := NewDefaultDecoder()
	occurredAt := time.Unix(1_700_000_000, 0).UTC()

	update := Update{
		ID:         "tg:message.created:100:777",
		Type:       UpdateTypeMessage,
		OccurredAt: occurredAt,
		Chat: ChatRef{
			ID:    "100",
			Title: "Fact Check Lab",
			Type:  veritas.ConversationTypeGroup,
		},
		Actor: ActorRef{
			ID:          "42",
			Username:    "alice",
			DisplayName: "Alice",
		},
		Message: &MessagePayload{
			ID:        "777",
			ReplyToID: "776",
			Text:      "The moon is made of cheese",
		},
	}

	event, err := decoder.Decode(context.Background(), update)
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if event.Kind != veritas.EventKindMessageCreated {
		t.Fatalf("kind = %s, want %s", event.Kind, veritas.EventKindMessageCreated)
	}
	if event.Platform != veritas.PlatformTelegram {
		t.Fatalf("platform = %s, want %s", event.Platform, veritas.PlatformTelegram)
	}
	if !event.OccurredAt.Equal(occurredAt) {
		t.Fatalf("occurred_at = %v, want %v", event.OccurredAt, occurredAt)
	}
	if event.Conversation.ID != "100" || event.Conversation.Title != "Fact Check Lab" {
		t.Fatalf("conversation = %+v, want id 100 title Fact Check Lab", event.Conversation)
	}
	if event.Actor.ID != "42" || event.Actor.Username != "alice" {
		t.Fatalf("actor = %+v, want id 42 username alice", event.Actor)
	}
	if event.Message == nil {
		t.Fatal("expected message payload")
	}
	if event.Message.ID != "777" || event.Message.ReplyToID != "776" {
		t.Fatalf("message = %+v, want id 777 reply 776", event.Message)
	}
	if event.Message.Text != "The moon is made of cheese" {
		t.Fatalf("text = %q", event.Message.Text)
	}
}

func TestDefaultDecoderFillsMissingOccurredAt(t *testing.T) {
	t.Parallel()

	decoder := NewDefaultDecoder()
	before := time.Now().UTC()

	event, err := decoder.Decode(context.Background(), Update{
		ID:   "tg:message.created:100:778",
		Type: UpdateTypeMessage,
		Chat: ChatRef{
			ID:   "100",
			Type: veritas.ConversationTypePrivate,
		},
		Actor:   ActorRef{ID: "42"},
		Message: &MessagePayload{ID: "778", Text: "hello"},
	})
	if err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	if event.OccurredAt.Before(before) {
		t.Fatalf("occurred_at = %v, want not before %v", event.OccurredAt, before)
	}
}

func TestDefaultDecoderRejectsInvalidUpdates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		update Update
	}{
		{
			name: "unsupported type",
			update: Update{
				ID:   "tg:unknown:100",
				Type: UpdateType("reaction"),
				Chat: ChatRef{ID: "100", Type: veritas.ConversationTypePrivate},
			},
		},
		{
			name: "message update without payload",
			update: Update{
				ID:    "tg:message.created:100",
				Type:  UpdateTypeMessage,
				Chat:  ChatRef{ID: "100", Type: veritas.ConversationTypePrivate},
				Actor: ActorRef{ID: "42"},
			},
		},
		{
			name: "message update without chat",
			update: Update{
				ID:      "tg:message.created::779",
				Type:    UpdateTypeMessage,
				Actor:   ActorRef{ID: "42"},
				Message: &MessagePayload{ID: "779", Text: "hello"},
			},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			decoder := NewDefaultDecoder()
			if _, err := decoder.Decode(context.Background(), testCase.update); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}
