package telegram

import (
	"testing"

	"veritas/pkg/veritas"

	"github.com/gotd/td/tg"
)

func TestPeerCacheRememberEnvelopeAndResolve(t *testing.T) {
	t.Parallel()

	user := &tg.User{ID: 7}
	user.SetAccessHash(77)

	cache := NewPeerCache()
	cache.RememberEnvelope(gotdUpdateEnvelope{
		usersByID: map[int64]*tg.User{
			7: user,
		},
		chatsByID: map[int64]gotdChatInfo{
			10: {
				kind:      veritas.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChat{ChatID: 10},
			},
			20: {
				kind:      veritas.ConversationTypeGroup,
				inputPeer: &tg.InputPeerChannel{ChannelID: 20, AccessHash: 2020},
			},
			30: {
				kind:      veritas.ConversationTypeChannel,
				inputPeer: &tg.InputPeerChannel{ChannelID: 30, AccessHash: 3030},
			},
		},
	})

	tests := []struct {
		name         string
		conversation veritas.Conversation
		wantType     string
		wantErr      bool
	}{
		{
			name: "resolve private user",
			conversation: veritas.Conversation{
				ID:   "7",
				Type: veritas.ConversationTypePrivate,
			},
			wantType: "*tg.InputPeerUser",
		},
		{
			name: "resolve group chat",
			conversation: veritas.Conversation{
				ID:   "10",
				Type: veritas.ConversationTypeGroup,
			},
			wantType: "*tg.InputPeerChat",
		},
		{
			name: "resolve megagroup channel as group",
			conversation: veritas.Conversation{
				ID:   "20",
				Type: veritas.ConversationTypeGroup,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "resolve group fallback from channel key",
			conversation: veritas.Conversation{
				ID:   "20",
				Type: veritas.ConversationTypeChannel,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "resolve channel",
			conversation: veritas.Conversation{
				ID:   "30",
				Type: veritas.ConversationTypeChannel,
			},
			wantType: "*tg.InputPeerChannel",
		},
		{
			name: "unknown conversation",
			conversation: veritas.Conversation{
				ID:   "999",
				Type: veritas.ConversationTypeGroup,
			},
			wantErr: true,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			peer, err := cache.Resolve(testCase.conversation)
			if testCase.wantErr {
				if err == nil {
					t.Fatal("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if gotType := typeName(peer); gotType != testCase.wantType {
				t.Fatalf("peer type = %s, want %s", gotType, testCase.wantType)
			}
		})
	}
}

func TestPeerCacheRememberConversation(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "55", Type: veritas.ConversationTypePrivate},
		&tg.InputPeerUser{UserID: 55, AccessHash: 5555},
	)

	peer, err := cache.Resolve(veritas.Conversation{
		ID:   "55",
		Type: veritas.ConversationTypePrivate,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	userPeer, ok := peer.(*tg.InputPeerUser)
	if !ok {
		t.Fatalf("peer type = %s, want *tg.InputPeerUser", typeName(peer))
	}
	if userPeer.UserID != 55 || userPeer.AccessHash != 5555 {
		t.Fatalf("peer = %+v, want UserID 55 AccessHash 5555", userPeer)
	}
}

func TestPeerCacheResolveReturnsClone(t *testing.T) {
	t.Parallel()

	cache := NewPeerCache()
	cache.RememberConversation(
		ChatRef{ID: "55", Type: veritas.ConversationTypePrivate},
		&tg.InputPeerUser{UserID: 55, AccessHash: 5555},
	)

	first, err := cache.Resolve(veritas.Conversation{ID: "55", Type: veritas.ConversationTypePrivate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	first.(*tg.InputPeerUser).AccessHash = 1

	second, err := cache.Resolve(veritas.Conversation{ID: "55", Type: veritas.ConversationTypePrivate})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.(*tg.InputPeerUser).AccessHash != 5555 {
		t.Fatal("resolved peer must not share state with previous callers")
	}
}
