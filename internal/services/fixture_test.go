package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"workchat/internal/audit"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/events"
	"workchat/internal/presence"
	"workchat/internal/repository/memory"

	"github.com/google/uuid"
)

// stepClock advances one second on every reading so stored times are
// strictly ordered.
type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type fixture struct {
	ctx       context.Context
	company   uuid.UUID
	store     *memory.Store
	presence  *presence.Memory
	broadcast *events.Recorder
	audit     *audit.Recorder
	convs     *ConversationService
	invites   *InvitationService
	messages  *MessageService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		ctx:       context.Background(),
		company:   uuid.New(),
		store:     memory.NewStore(),
		presence:  presence.NewMemory(time.Minute),
		broadcast: events.NewRecorder(),
		audit:     &audit.Recorder{},
	}
	clk := &stepClock{t: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}

	reader := presence.NewSafe(f.presence, nil)
	dispatcher := NewDispatcher(NewReadTracker(f.store.Reads()), reader, f.broadcast, nil)

	f.convs = NewConversationService(f.store, f.audit, nil)
	f.convs.now = clk.Now
	f.invites = NewInvitationService(f.store, f.audit)
	f.invites.now = clk.Now
	f.messages = NewMessageService(f.store, dispatcher, reader, f.audit, nil)
	f.messages.now = clk.Now
	return f
}

func (f *fixture) user(t *testing.T, name string) user.Principal {
	t.Helper()
	return f.userIn(t, name, f.company)
}

func (f *fixture) userIn(t *testing.T, name string, company uuid.UUID) user.Principal {
	t.Helper()
	u := user.User{
		ID:          uuid.New(),
		CompanyID:   company,
		Username:    name,
		DisplayName: name,
		IsActive:    true,
	}
	if err := f.store.Users().Create(f.ctx, &u); err != nil {
		t.Fatalf("create user %s: %v", name, err)
	}
	return user.Principal{UserID: u.ID, CompanyID: company}
}

func (f *fixture) send(t *testing.T, p user.Principal, conversationID uuid.UUID, text string) MessageView {
	t.Helper()
	v, err := f.messages.Create(f.ctx, p, conversationID, CreateMessageInput{
		Kind: message.KindText,
		Body: message.Body{Text: text},
	})
	if err != nil {
		t.Fatalf("send %q: %v", text, err)
	}
	return v
}

func (f *fixture) list(t *testing.T, p user.Principal, conversationID uuid.UUID) []MessageView {
	t.Helper()
	views, err := f.messages.List(f.ctx, p, conversationID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	return views
}

func (f *fixture) view(t *testing.T, p user.Principal, conversationID uuid.UUID) {
	t.Helper()
	if err := f.presence.MarkOnline(f.ctx, p.UserID, conversationID); err != nil {
		t.Fatalf("mark online: %v", err)
	}
}

func texts(views []MessageView) []string {
	out := make([]string, 0, len(views))
	for _, v := range views {
		out = append(out, message.DecodeBody(v.Message.Body).Text)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
