package telegram

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"veritas/pkg/veritas"

	"github.com/gotd/td/crypto"
	gotdtelegram "github.com/gotd/td/telegram"
	"github.com/gotd/td/telegram/message/unpack"
	"github.com/gotd/td/tg"
)

const defaultOutboundTimeout = 3 * time.Second

// OutboundOption mutates outbound dispatcher configuration.
type OutboundOption func(*outboundConfig)

// WithOutboundTimeout configures a timeout bound for each outbound RPC call.
func WithOutboundTimeout(timeout time.Duration) OutboundOption {
	return func(cfg *outboundConfig) {
		if timeout > 0 {
			cfg.rpcTimeout = timeout
		}
	}
}

// WithOutboundLogger configures structured logging for outbound operations.
func WithOutboundLogger(logger *slog.Logger) OutboundOption {
	return func(cfg *outboundConfig) {
		cfg.logger = logger
	}
}

// OutboundDispatcher adapts neutral outbound requests to Telegram RPC calls.
type OutboundDispatcher struct {
	cfg      outboundConfig
	peers    *PeerCache
	telegram outboundRPC
}

type outboundConfig struct {
	rpcTimeout time.Duration
	logger     *slog.Logger
}

// NewOutboundDispatcher creates a Telegram outbound dispatcher using gotd
// client APIs.
func NewOutboundDispatcher(
	client *gotdtelegram.Client,
	peers *PeerCache,
	options ...OutboundOption,
) (*OutboundDispatcher, error) {
	if client == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil client")
	}

	return newOutboundDispatcherWithRPC(newGotdOutboundRPC(client), peers, options...)
}

func newOutboundDispatcherWithRPC(
	rpc outboundRPC,
	peers *PeerCache,
	options ...OutboundOption,
) (*OutboundDispatcher, error) {
	if rpc == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil rpc adapter")
	}
	if peers == nil {
		return nil, fmt.Errorf("new telegram outbound dispatcher: nil peer cache")
	}

	cfg := outboundConfig{
		rpcTimeout: defaultOutboundTimeout,
	}
	for _, option := range options {
		option(&cfg)
	}

	return &OutboundDispatcher{
		cfg:      cfg,
		peers:    peers,
		telegram: rpc,
	}, nil
}

// Dispatch performs one outbound request against Telegram.
func (d *OutboundDispatcher) Dispatch(
	ctx context.Context,
	req veritas.OutboundRequest,
) (veritas.OutboundResult, error) {
	if err := req.Validate(); err != nil {
		return veritas.OutboundResult{}, fmt.Errorf("dispatch validate: %w", err)
	}

	peer, err := d.peers.Resolve(req.Conversation)
	if err != nil {
		return veritas.OutboundResult{}, fmt.Errorf("dispatch resolve peer: %w", err)
	}

	rpcCtx, cancel := d.withTimeout(ctx)
	defer cancel()

	switch req.Kind {
	case veritas.OutboundKindSendMessage:
		id, err := d.telegram.SendText(rpcCtx, peer, req)
		if err != nil {
			return veritas.OutboundResult{}, fmt.Errorf(
				"send message to %s: %w", req.Conversation.ID, mapTelegramOutboundError(err),
			)
		}
		d.logOutbound(ctx, "send_message",
			"conversation", req.Conversation.ID,
			"message_id", id,
			"reply_to_message_id", req.ReplyToID,
		)

		return veritas.OutboundResult{MessageID: strconv.Itoa(id)}, nil
	case veritas.OutboundKindEditMessage:
		messageID, err := parseMessageID(req.MessageID)
		if err != nil {
			return veritas.OutboundResult{}, fmt.Errorf("edit message parse id %s: %w", req.MessageID, err)
		}
		if err := d.telegram.EditText(rpcCtx, peer, messageID, req); err != nil {
			return veritas.OutboundResult{}, fmt.Errorf(
				"edit message %s: %w", req.MessageID, mapTelegramOutboundError(err),
			)
		}
		d.logOutbound(ctx, "edit_message",
			"conversation", req.Conversation.ID,
			"message_id", req.MessageID,
		)

		return veritas.OutboundResult{MessageID: req.MessageID}, nil
	case veritas.OutboundKindSendTyping:
		if err := d.telegram.SendTyping(rpcCtx, peer); err != nil {
			return veritas.OutboundResult{}, fmt.Errorf(
				"send typing to %s: %w", req.Conversation.ID, mapTelegramOutboundError(err),
			)
		}

		return veritas.OutboundResult{}, nil
	default:
		return veritas.OutboundResult{}, fmt.Errorf("%w: kind %q", veritas.ErrInvalidOutbound, req.Kind)
	}
}

func (d *OutboundDispatcher) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if d.cfg.rpcTimeout <= 0 {
		return ctx, func() {}
	}

	return context.WithTimeout(ctx, d.cfg.rpcTimeout)
}

func (d *OutboundDispatcher) logOutbound(ctx context.Context, operation string, attrs ...any) {
	if d.cfg.logger == nil {
		return
	}

	values := make([]any, 0, 2+len(attrs))
	values = append(values, "operation", operation, "platform", veritas.PlatformTelegram)
	values = append(values, attrs...)
	d.cfg.logger.InfoContext(ctx, "telegram outbound operation", values...)
}

func parseMessageID(raw string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid message id: %w", veritas.ErrInvalidOutbound, err)
	}
	if value <= 0 {
		return 0, fmt.Errorf("%w: invalid message id", veritas.ErrInvalidOutbound)
	}

	return value, nil
}

// mapOutboundTextEntities converts neutral rune-offset entities into Telegram
// UTF-16 code unit offsets.
func mapOutboundTextEntities(text string, entities []veritas.TextEntity) ([]tg.MessageEntityClass, error) {
	if len(entities) == 0 {
		return nil, nil
	}

	utf16Offsets := buildUTF16Offsets(text)
	converted := make([]tg.MessageEntityClass, 0, len(entities))
	for index, entity := range entities {
		start := entity.Offset
		end := entity.Offset + entity.Length
		if start < 0 || end < start || end >= len(utf16Offsets) {
			return nil, fmt.Errorf(
				"entity[%d] invalid range [%d,%d) for text runes %d",
				index,
				start,
				end,
				len(utf16Offsets)-1,
			)
		}

		offsetUTF16 := utf16Offsets[start]
		lengthUTF16 := utf16Offsets[end] - utf16Offsets[start]
		telegramEntity, err := convertOutboundTextEntity(entity, offsetUTF16, lengthUTF16)
		if err != nil {
			return nil, fmt.Errorf("entity[%d] convert: %w", index, err)
		}
		converted = append(converted, telegramEntity)
	}

	return converted, nil
}

func convertOutboundTextEntity(
	entity veritas.TextEntity,
	offset int,
	length int,
) (tg.MessageEntityClass, error) {
	switch entity.Type {
	case veritas.TextEntityBold:
		return &tg.MessageEntityBold{Offset: offset, Length: length}, nil
	default:
		return nil, fmt.Errorf("%w: unsupported text entity type %q", veritas.ErrInvalidOutbound, entity.Type)
	}
}

func buildUTF16Offsets(text string) []int {
	offsets := make([]int, 1, len(text)+1)
	current := 0
	for _, value := range text {
		current += utf16RuneLength(value)
		offsets = append(offsets, current)
	}

	return offsets
}

func utf16RuneLength(value rune) int {
	if value >= 0x10000 && value <= 0x10FFFF {
		return 2
	}

	return 1
}

type outboundRPC interface {
	SendText(ctx context.Context, peer tg.InputPeerClass, req veritas.OutboundRequest) (int, error)
	EditText(ctx context.Context, peer tg.InputPeerClass, messageID int, req veritas.OutboundRequest) error
	SendTyping(ctx context.Context, peer tg.InputPeerClass) error
}

type gotdOutboundRPC struct {
	raw  *tg.Client
	rand io.Reader
}

func newGotdOutboundRPC(client *gotdtelegram.Client) gotdOutboundRPC {
	return gotdOutboundRPC{
		raw:  client.API(),
		rand: crypto.DefaultRand(),
	}
}

func (r gotdOutboundRPC) SendText(
	ctx context.Context,
	peer tg.InputPeerClass,
	req veritas.OutboundRequest,
) (int, error) {
	entities, err := mapOutboundTextEntities(req.Text, req.Entities)
	if err != nil {
		return 0, fmt.Errorf("map outbound entities: %w", err)
	}

	sendRequest := &tg.MessagesSendMessageRequest{
		Peer:      peer,
		Message:   req.Text,
		NoWebpage: req.DisableLinkPreview,
		Entities:  entities,
	}
	if req.ReplyToID != "" {
		replyID, err := parseMessageID(req.ReplyToID)
		if err != nil {
			return 0, fmt.Errorf("send text parse reply id %s: %w", req.ReplyToID, err)
		}
		sendRequest.ReplyTo = &tg.InputReplyToMessage{
			ReplyToMsgID: replyID,
		}
	}

	randomID, err := crypto.RandInt64(r.rand)
	if err != nil {
		return 0, fmt.Errorf("send text random id: %w", err)
	}
	sendRequest.RandomID = randomID

	updates, err := r.raw.MessagesSendMessage(ctx, sendRequest)
	if err != nil {
		return 0, fmt.Errorf("send text: %w", err)
	}

	messageID, err := unpack.MessageID(updates, nil)
	if err != nil {
		return 0, fmt.Errorf("extract sent message id: %w", err)
	}

	return messageID, nil
}

func (r gotdOutboundRPC) EditText(
	ctx context.Context,
	peer tg.InputPeerClass,
	messageID int,
	req veritas.OutboundRequest,
) error {
	entities, err := mapOutboundTextEntities(req.Text, req.Entities)
	if err != nil {
		return fmt.Errorf("map outbound entities: %w", err)
	}

	_, err = r.raw.MessagesEditMessage(ctx, &tg.MessagesEditMessageRequest{
		Peer:      peer,
		ID:        messageID,
		Message:   req.Text,
		NoWebpage: req.DisableLinkPreview,
		Entities:  entities,
	})
	if err != nil {
		return fmt.Errorf("edit text: %w", err)
	}

	return nil
}

func (r gotdOutboundRPC) SendTyping(ctx context.Context, peer tg.InputPeerClass) error {
	_, err := r.raw.MessagesSetTyping(ctx, &tg.MessagesSetTypingRequest{
		Peer:   peer,
		Action: &tg.SendMessageTypingAction{},
	})
	if err != nil {
		return fmt.Errorf("set typing: %w", err)
	}

	return nil
}
