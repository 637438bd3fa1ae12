package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

func seedDM(t *testing.T, s *Store, company, a, b uuid.UUID) conversation.Conversation {
	t.Helper()
	ctx := context.Background()
	c := &conversation.Conversation{CompanyID: company}
	if err := s.Conversations().Create(ctx, c); err != nil {
		t.Fatalf("create conversation: %v", err)
	}
	for _, u := range []uuid.UUID{a, b} {
		p := &conversation.Participant{ConversationID: c.ID, UserID: u, Role: conversation.RoleMember}
		if err := s.Participants().Add(ctx, p); err != nil {
			t.Fatalf("add participant: %v", err)
		}
	}
	return *c
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	var id uuid.UUID
	err := s.WithTx(ctx, func(tx repository.Store) error {
		c := &conversation.Conversation{CompanyID: uuid.New()}
		if err := tx.Conversations().Create(ctx, c); err != nil {
			return err
		}
		id = c.ID
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	if _, err := s.Conversations().GetByID(ctx, id); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected rolled back conversation, got %v", err)
	}
}

func TestWithTxCommits(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	var id uuid.UUID
	err := s.WithTx(ctx, func(tx repository.Store) error {
		c := &conversation.Conversation{CompanyID: uuid.New()}
		if err := tx.Conversations().Create(ctx, c); err != nil {
			return err
		}
		id = c.ID
		// nested calls join the outer transaction
		return tx.WithTx(ctx, func(inner repository.Store) error {
			return inner.Participants().Add(ctx, &conversation.Participant{ConversationID: id, UserID: uuid.New()})
		})
	})
	if err != nil {
		t.Fatalf("tx: %v", err)
	}
	n, _ := s.Participants().Count(ctx, id)
	if n != 1 {
		t.Fatalf("expected 1 participant, got %d", n)
	}
}

func TestMarkReadIsIdempotent(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	u := uuid.New()

	first, err := s.Reads().MarkRead(ctx, "m1", u, time.Now())
	if err != nil || !first {
		t.Fatalf("first mark: first=%v err=%v", first, err)
	}
	again, err := s.Reads().MarkRead(ctx, "m1", u, time.Now())
	if err != nil || again {
		t.Fatalf("second mark: first=%v err=%v", again, err)
	}
	readers, _ := s.Reads().ReadersOf(ctx, "m1")
	if len(readers) != 1 || readers[0] != u {
		t.Fatalf("unexpected readers %v", readers)
	}
}

func TestListSinceAppliesFloor(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv := uuid.New()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		m := &message.Message{ID: id, ConversationID: conv, Kind: message.KindText, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := s.Messages().Create(ctx, m); err != nil {
			t.Fatal(err)
		}
	}

	got, _ := s.Messages().ListSince(ctx, conv, base.Add(time.Minute))
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Fatalf("unexpected window %+v", got)
	}
}

func TestFindDirectMatchesLeftMembers(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	company, a, b := uuid.New(), uuid.New(), uuid.New()
	dm := seedDM(t, s, company, a, b)

	if err := s.Participants().MarkLeft(ctx, dm.ID, b, time.Now()); err != nil {
		t.Fatal(err)
	}
	got, err := s.Conversations().FindDirect(ctx, company, b, a)
	if err != nil {
		t.Fatalf("find direct: %v", err)
	}
	if got.ID != dm.ID {
		t.Fatalf("expected %s, got %s", dm.ID, got.ID)
	}
	if _, err := s.Conversations().FindDirect(ctx, uuid.New(), a, b); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("expected not found across tenants, got %v", err)
	}

	list, _ := s.Conversations().ListForUser(ctx, company, b)
	if len(list) != 0 {
		t.Fatalf("left member should not list the dm, got %d", len(list))
	}
}

func TestDeleteCascades(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	company, a, b := uuid.New(), uuid.New(), uuid.New()
	dm := seedDM(t, s, company, a, b)

	m := &message.Message{ID: "m", ConversationID: dm.ID, Kind: message.KindText}
	_ = s.Messages().Create(ctx, m)
	_, _ = s.Reads().MarkRead(ctx, "m", b, time.Now())

	if err := s.Conversations().Delete(ctx, dm.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Messages().GetByID(ctx, "m"); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("message survived delete: %v", err)
	}
	if ok, _ := s.Reads().IsRead(ctx, "m", b); ok {
		t.Fatal("read mark survived delete")
	}
	if n, _ := s.Participants().Count(ctx, dm.ID); n != 0 {
		t.Fatalf("participants survived delete: %d", n)
	}
}

func TestCountUnreadSkipsOwnAndRead(t *testing.T) {
	s := NewStore()
	ctx := context.Background()
	conv, me, peer := uuid.New(), uuid.New(), uuid.New()
	base := time.Now().UTC()

	msgs := []message.Message{
		{ID: "1", ConversationID: conv, SenderID: uuid.NullUUID{UUID: peer, Valid: true}, CreatedAt: base},
		{ID: "2", ConversationID: conv, SenderID: uuid.NullUUID{UUID: me, Valid: true}, CreatedAt: base.Add(time.Second)},
		{ID: "3", ConversationID: conv, SenderID: uuid.NullUUID{UUID: peer, Valid: true}, CreatedAt: base.Add(2 * time.Second)},
	}
	for i := range msgs {
		_ = s.Messages().Create(ctx, &msgs[i])
	}
	_, _ = s.Reads().MarkRead(ctx, "1", me, base)

	n, err := s.Messages().CountUnread(ctx, conv, me, base)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("expected 1 unread, got %d", n)
	}
}
