package redis

import (
	"context"

	"github.com/redis/go-redis/v9"
)

type Subscriber struct {
	client redis.UniversalClient
}

func NewSubscriber(client redis.UniversalClient) *Subscriber {
	return &Subscriber{client: client}
}

// Subscribe pattern-subscribes to channels and calls handler for every
// message until ctx is cancelled or the connection fails.
func (s *Subscriber) Subscribe(ctx context.Context, channels []string, handler func(channel string, payload []byte)) error {
	sub := s.client.PSubscribe(ctx, channels...)
	defer sub.Close()

	// subscription confirmation
	if _, err := sub.Receive(ctx); err != nil {
		return err
	}

	for {
		msg, err := sub.ReceiveMessage(ctx)
		if err != nil {
			return err
		}
		handler(msg.Channel, []byte(msg.Payload))
	}
}
