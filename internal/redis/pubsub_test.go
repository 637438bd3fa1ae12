package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
)

func TestPublishReachesSubscriber(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan string, 1)
	go func() {
		_ = NewSubscriber(client).Subscribe(ctx, []string{"channel:conversation:*"}, func(channel string, payload []byte) {
			got <- channel + "|" + string(payload)
		})
	}()

	pub := NewPublisher(client)
	deadline := time.After(2 * time.Second)
	for {
		_ = pub.Publish(ctx, "channel:conversation:abc", []byte("hello"))
		select {
		case msg := <-got:
			if msg != "channel:conversation:abc|hello" {
				t.Fatalf("unexpected message %q", msg)
			}
			return
		case <-deadline:
			t.Fatal("subscriber never received the message")
		case <-time.After(20 * time.Millisecond):
		}
	}
}
