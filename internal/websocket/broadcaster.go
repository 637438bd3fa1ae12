package websocket

import (
	"context"

	"workchat/internal/events"

	"github.com/google/uuid"
)

// HubBroadcaster delivers group sends straight to this node's sockets.
type HubBroadcaster struct {
	hub *Hub
}

func NewHubBroadcaster(hub *Hub) *HubBroadcaster {
	return &HubBroadcaster{hub: hub}
}

func (b *HubBroadcaster) GroupSend(_ context.Context, conversationID uuid.UUID, env events.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return err
	}
	b.hub.Broadcast(events.ConversationChannel(conversationID), payload)
	return nil
}
