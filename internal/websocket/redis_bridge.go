package websocket

import (
	"context"
	"errors"
	"time"

	"workchat/internal/events"
	"workchat/pkg/logger"
)

// RedisBridge relays conversation group sends published by any node to
// the sockets connected to this one. Hub channel names match the pub/sub
// channel names, so payloads pass through untouched.
type RedisBridge struct {
	subscriber events.Subscriber
	hub        *Hub
	log        *logger.Logger
}

func NewRedisBridge(subscriber events.Subscriber, hub *Hub, l *logger.Logger) *RedisBridge {
	return &RedisBridge{subscriber: subscriber, hub: hub, log: logger.OrNop(l)}
}

// Run subscribes until ctx is done, resubscribing after connection failures.
func (b *RedisBridge) Run(ctx context.Context) {
	pattern := []string{events.ChannelPrefixConversation + "*"}
	backoff := time.Second

	for {
		err := b.subscriber.Subscribe(ctx, pattern, func(channel string, payload []byte) {
			b.hub.Broadcast(channel, payload)
		})
		if ctx.Err() != nil {
			return
		}
		if err != nil && !errors.Is(err, context.Canceled) {
			b.log.Warnf("redis bridge subscription dropped: %s", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		if backoff < 30*time.Second {
			backoff *= 2
		}
	}
}
