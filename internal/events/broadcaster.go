package events

import (
	"context"
	"fmt"
	"strings"

	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

// ChannelPrefixConversation prefixes the pub/sub channel of a conversation group.
const ChannelPrefixConversation = "channel:conversation:"

// Broadcaster delivers an envelope to every connection joined to a
// conversation group. Delivery is fire-and-forget.
type Broadcaster interface {
	GroupSend(ctx context.Context, conversationID uuid.UUID, env Envelope) error
}

// Publisher publishes raw payloads to a named channel.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) error
}

// Subscriber streams payloads from channels matching the given patterns.
type Subscriber interface {
	Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error
}

func ConversationChannel(conversationID uuid.UUID) string {
	return ChannelPrefixConversation + conversationID.String()
}

// ConversationFromChannel extracts the conversation id from a channel name.
func ConversationFromChannel(channel string) (uuid.UUID, bool) {
	if !strings.HasPrefix(channel, ChannelPrefixConversation) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(channel, ChannelPrefixConversation))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// PubSubBroadcaster publishes group sends so every node's bridge can relay
// them to its local sockets.
type PubSubBroadcaster struct {
	publisher Publisher
}

func NewPubSubBroadcaster(publisher Publisher) *PubSubBroadcaster {
	return &PubSubBroadcaster{publisher: publisher}
}

func (b *PubSubBroadcaster) GroupSend(ctx context.Context, conversationID uuid.UUID, env Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	if err := b.publisher.Publish(ctx, ConversationChannel(conversationID), payload); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrTransportUnavailable, err)
	}
	return nil
}
