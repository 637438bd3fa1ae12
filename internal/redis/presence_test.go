package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	apperrors "workchat/pkg/errors"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

func newTestPresence(t *testing.T) (*PresenceStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewPresenceStore(client, time.Minute), mr
}

func TestPresenceViewing(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()
	user, conv, other := uuid.New(), uuid.New(), uuid.New()

	if err := p.MarkOnline(ctx, user, conv); err != nil {
		t.Fatalf("mark online: %v", err)
	}

	online, err := p.IsOnline(ctx, user)
	if err != nil || !online {
		t.Fatalf("expected online, got %v err=%v", online, err)
	}
	viewing, _ := p.IsViewing(ctx, user, conv)
	if !viewing {
		t.Fatal("expected viewing the open conversation")
	}
	viewing, _ = p.IsViewing(ctx, user, other)
	if viewing {
		t.Fatal("should not be viewing another conversation")
	}

	if err := p.MarkOffline(ctx, user); err != nil {
		t.Fatal(err)
	}
	viewing, _ = p.IsViewing(ctx, user, conv)
	if viewing {
		t.Fatal("offline user cannot be viewing")
	}
}

func TestPresenceExpires(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	_ = p.TrackConnection(ctx, user, conv, "c1")
	mr.FastForward(30 * time.Second)
	_ = p.Refresh(ctx, user, conv, "c1")
	mr.FastForward(45 * time.Second)

	if online, _ := p.IsOnline(ctx, user); !online {
		t.Fatal("refresh should slide the expiry")
	}

	mr.FastForward(2 * time.Minute)
	if online, _ := p.IsOnline(ctx, user); online {
		t.Fatal("presence should expire without refresh")
	}
}

func TestBatchIsViewing(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()
	conv := uuid.New()

	users := []uuid.UUID{uuid.New(), uuid.New(), uuid.New(), uuid.New()}
	_ = p.MarkOnline(ctx, users[0], conv)
	_ = p.MarkOnline(ctx, users[2], conv)
	_ = p.MarkOnline(ctx, users[3], uuid.New())

	got, err := p.BatchIsViewing(ctx, users, conv)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != users[0] || got[1] != users[2] {
		t.Fatalf("unexpected viewers %v", got)
	}
}

func TestRemoveConnectionKeepsOtherDevices(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()
	user, convA, convB := uuid.New(), uuid.New(), uuid.New()

	_ = p.TrackConnection(ctx, user, convA, "phone")
	_ = p.TrackConnection(ctx, user, convB, "laptop")

	remaining, err := p.RemoveConnection(ctx, user, "laptop")
	if err != nil {
		t.Fatal(err)
	}
	if remaining != 1 {
		t.Fatalf("expected one connection left, got %d", remaining)
	}
	if viewing, _ := p.IsViewing(ctx, user, convA); !viewing {
		t.Fatal("surviving device should restore its open conversation")
	}

	remaining, _ = p.RemoveConnection(ctx, user, "phone")
	if remaining != 0 {
		t.Fatalf("expected no connections, got %d", remaining)
	}
	if online, _ := p.IsOnline(ctx, user); online {
		t.Fatal("user should be offline after last socket closes")
	}
}

func TestPresenceUnavailable(t *testing.T) {
	p, mr := newTestPresence(t)
	mr.Close()

	if _, err := p.IsOnline(context.Background(), uuid.New()); !errors.Is(err, apperrors.ErrPresenceUnavailable) {
		t.Fatalf("err = %v, want presence unavailable", err)
	}
}

func TestRefreshRestoresVanishedKeys(t *testing.T) {
	p, mr := newTestPresence(t)
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	if err := p.TrackConnection(ctx, user, conv, "c1"); err != nil {
		t.Fatal(err)
	}
	mr.FlushAll()
	if viewing, _ := p.IsViewing(ctx, user, conv); viewing {
		t.Fatal("flushed presence should read as offline")
	}

	if err := p.Refresh(ctx, user, conv, "c1"); err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if viewing, _ := p.IsViewing(ctx, user, conv); !viewing {
		t.Fatal("heartbeat should restore presence")
	}
	if remaining, _ := p.RemoveConnection(ctx, user, "c1"); remaining != 0 {
		t.Fatalf("restored socket not tracked, remaining = %d", remaining)
	}
}

func TestRefreshKeepsOpenConversation(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()
	user, convA, convB := uuid.New(), uuid.New(), uuid.New()

	_ = p.TrackConnection(ctx, user, convA, "phone")
	_ = p.TrackConnection(ctx, user, convB, "laptop")

	if err := p.Refresh(ctx, user, convA, "phone"); err != nil {
		t.Fatal(err)
	}
	if viewing, _ := p.IsViewing(ctx, user, convB); !viewing {
		t.Fatal("a heartbeat must not move the open conversation")
	}
}

func TestRemoveConnectionKeepsCurrentConversation(t *testing.T) {
	p, _ := newTestPresence(t)
	ctx := context.Background()
	user, convA, convB := uuid.New(), uuid.New(), uuid.New()

	_ = p.TrackConnection(ctx, user, convA, "phone")
	_ = p.TrackConnection(ctx, user, convB, "laptop")
	_ = p.TrackConnection(ctx, user, convB, "tablet")

	if _, err := p.RemoveConnection(ctx, user, "tablet"); err != nil {
		t.Fatal(err)
	}
	if viewing, _ := p.IsViewing(ctx, user, convB); !viewing {
		t.Fatal("another socket still has the open conversation")
	}
}
