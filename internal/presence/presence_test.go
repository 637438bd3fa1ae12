package presence

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestMemoryExpiry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	_ = m.MarkOnline(ctx, user, conv)
	if ok, _ := m.IsViewing(ctx, user, conv); !ok {
		t.Fatal("expected viewing")
	}

	now = now.Add(2 * time.Minute)
	if ok, _ := m.IsOnline(ctx, user); ok {
		t.Fatal("expected expiry")
	}
}

func TestMemoryConnections(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()
	user, a, b := uuid.New(), uuid.New(), uuid.New()

	_ = m.TrackConnection(ctx, user, a, "c1")
	_ = m.TrackConnection(ctx, user, b, "c2")
	if ok, _ := m.IsViewing(ctx, user, b); !ok {
		t.Fatal("last connection wins the open conversation")
	}

	n, _ := m.RemoveConnection(ctx, user, "c2")
	if n != 1 {
		t.Fatalf("expected 1 remaining, got %d", n)
	}
	if ok, _ := m.IsViewing(ctx, user, a); !ok {
		t.Fatal("remaining socket should own the open conversation")
	}

	_, _ = m.RemoveConnection(ctx, user, "c1")
	if ok, _ := m.IsOnline(ctx, user); ok {
		t.Fatal("expected offline")
	}
}

func TestMemoryRefreshRestoresLapsedEntry(t *testing.T) {
	m := NewMemory(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	m.SetClock(func() time.Time { return now })
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	_ = m.TrackConnection(ctx, user, conv, "c1")
	now = now.Add(2 * time.Minute)
	if ok, _ := m.IsOnline(ctx, user); ok {
		t.Fatal("expected expiry")
	}

	_ = m.Refresh(ctx, user, conv, "c1")
	if ok, _ := m.IsViewing(ctx, user, conv); !ok {
		t.Fatal("heartbeat should restore presence")
	}
	if n, _ := m.RemoveConnection(ctx, user, "c1"); n != 0 {
		t.Fatalf("remaining = %d", n)
	}
}

func TestMemoryConcurrentConnections(t *testing.T) {
	m := NewMemory(time.Minute)
	ctx := context.Background()
	user, conv := uuid.New(), uuid.New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			for j := 0; j < 500; j++ {
				_ = m.TrackConnection(ctx, user, conv, id)
				_ = m.Refresh(ctx, user, conv, id)
				_, _ = m.RemoveConnection(ctx, user, id)
			}
		}(i)
	}
	wg.Wait()

	if ok, _ := m.IsOnline(ctx, user); ok {
		t.Fatal("every socket closed, user should be offline")
	}
}

type brokenStore struct{ Memory }

var errDown = errors.New("connection refused")

func (*brokenStore) IsOnline(context.Context, uuid.UUID) (bool, error) { return false, errDown }
func (*brokenStore) IsViewing(context.Context, uuid.UUID, uuid.UUID) (bool, error) {
	return true, errDown
}
func (*brokenStore) BatchIsViewing(context.Context, []uuid.UUID, uuid.UUID) ([]uuid.UUID, error) {
	return []uuid.UUID{uuid.New()}, errDown
}

func TestSafeTreatsErrorsAsOffline(t *testing.T) {
	s := NewSafe(&brokenStore{}, nil)
	ctx := context.Background()

	if s.IsOnline(ctx, uuid.New()) {
		t.Fatal("error must read as offline")
	}
	if s.IsViewing(ctx, uuid.New(), uuid.New()) {
		t.Fatal("error must read as not viewing")
	}
	if got := s.BatchIsViewing(ctx, []uuid.UUID{uuid.New()}, uuid.New()); len(got) != 0 {
		t.Fatalf("error must yield no viewers, got %v", got)
	}
}
