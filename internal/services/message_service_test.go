package services

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/events"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
)

func TestReadTrackerFirstReadWins(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	m := f.send(t, a, dm.ID, "hi").Message

	tracker := NewReadTracker(f.store.Reads())
	first, err := tracker.MarkRead(f.ctx, m, b.UserID, m.CreatedAt)
	if err != nil || !first {
		t.Fatalf("first mark = %v, %v", first, err)
	}
	again, err := tracker.MarkRead(f.ctx, m, b.UserID, m.CreatedAt)
	if err != nil || again {
		t.Fatalf("second mark = %v, %v", again, err)
	}
	self, err := tracker.MarkRead(f.ctx, m, a.UserID, m.CreatedAt)
	if err != nil || self {
		t.Fatalf("sender mark = %v, %v", self, err)
	}

	readers, err := tracker.ReadersOf(f.ctx, m.ID)
	if err != nil {
		t.Fatalf("readers: %v", err)
	}
	if len(readers) != 1 || readers[0] != b.UserID {
		t.Fatalf("readers = %v, want only b", readers)
	}
}

func TestDirectDeliveryRequiresPartnerViewing(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}

	// b is online but looking at another conversation
	f.view(t, b, uuid.New())
	sent := f.send(t, a, dm.ID, "unseen")
	if len(sent.Readers) != 0 {
		t.Fatalf("readers = %v, want none", sent.Readers)
	}
	if n := len(f.broadcast.Sent()); n != 0 {
		t.Fatalf("pushes = %d, want 0", n)
	}
	read, err := f.store.Reads().IsRead(f.ctx, sent.Message.ID, b.UserID)
	if err != nil || read {
		t.Fatalf("is read = %v, %v", read, err)
	}
	if got := texts(f.list(t, a, dm.ID)); !equalStrings(got, []string{"unseen"}) {
		t.Fatalf("durable listing = %v", got)
	}

	f.view(t, b, dm.ID)
	seen := f.send(t, a, dm.ID, "seen")
	if len(seen.Readers) != 1 || seen.Readers[0] != b.UserID {
		t.Fatalf("readers = %v, want b", seen.Readers)
	}
	if n := f.broadcast.Count(events.TypeChatMessage); n != 1 {
		t.Fatalf("message pushes = %d, want 1", n)
	}
	pushed := f.broadcast.Sent()[0]
	if pushed.ConversationID != dm.ID {
		t.Fatalf("pushed to %s, want %s", pushed.ConversationID, dm.ID)
	}
}

func TestGroupPushesOnceForViewers(t *testing.T) {
	f := newFixture(t)
	owner := f.user(t, "owner")
	group, err := f.convs.CreateGroup(f.ctx, owner, "launch", "")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	var members [4]uuid.UUID
	for i := range members {
		p := f.user(t, "member")
		members[i] = p.UserID
		if _, err := f.convs.AddParticipant(f.ctx, owner, group.ID, p.UserID, conversation.RoleMember); err != nil {
			t.Fatalf("add member: %v", err)
		}
	}

	quiet := f.send(t, owner, group.ID, "nobody here")
	if len(quiet.Readers) != 0 || len(f.broadcast.Sent()) != 0 {
		t.Fatalf("expected no push without viewers, got %d readers %d pushes", len(quiet.Readers), len(f.broadcast.Sent()))
	}

	for _, id := range members[:2] {
		if err := f.presence.MarkOnline(f.ctx, id, group.ID); err != nil {
			t.Fatal(err)
		}
	}
	if err := f.presence.MarkOnline(f.ctx, members[2], uuid.New()); err != nil {
		t.Fatal(err)
	}

	sent := f.send(t, owner, group.ID, "standup")
	readers, err := f.store.Reads().ReadersOf(f.ctx, sent.Message.ID)
	if err != nil {
		t.Fatalf("readers: %v", err)
	}
	if len(readers) != 2 || len(sent.Readers) != 2 {
		t.Fatalf("read rows = %d, returned readers = %d, want 2", len(readers), len(sent.Readers))
	}
	if n := f.broadcast.Count(events.TypeChatMessage); n != 1 {
		t.Fatalf("group pushes = %d, want exactly 1", n)
	}
}

func TestPushFailureKeepsMessage(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	f.view(t, b, dm.ID)
	f.broadcast.Err = apperrors.ErrTransportUnavailable

	sent := f.send(t, a, dm.ID, "still stored")
	if _, err := f.store.Messages().GetByID(f.ctx, sent.Message.ID); err != nil {
		t.Fatalf("message not durable: %v", err)
	}
}

func TestRevivedPartnerStartsFromRevivingMessage(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	f.send(t, a, dm.ID, "before")
	if err := f.convs.Leave(f.ctx, b, dm.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	f.send(t, a, dm.ID, "while away")

	part, err := f.store.Participants().Get(f.ctx, dm.ID, b.UserID)
	if err != nil {
		t.Fatalf("participant: %v", err)
	}
	if !part.IsActive() {
		t.Fatal("partner was not revived")
	}
	all, err := f.store.Messages().ListSince(f.ctx, dm.ID, part.JoinedAt.AddDate(-1, 0, 0))
	if err != nil {
		t.Fatal(err)
	}
	reviving := all[len(all)-1]
	if !part.JoinedAt.Equal(reviving.CreatedAt) {
		t.Fatalf("joined_at = %v, want %v", part.JoinedAt, reviving.CreatedAt)
	}

	if got := texts(f.list(t, b, dm.ID)); !equalStrings(got, []string{"while away"}) {
		t.Fatalf("revived partner sees %v", got)
	}
}

func TestReviveNeverExceedsDirectCapacity(t *testing.T) {
	f := newFixture(t)
	a, b, c := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	stray := conversation.Participant{
		ConversationID: dm.ID,
		UserID:         c.UserID,
		Role:           conversation.RoleMember,
		JoinedAt:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
		LeftAt:         sql.NullTime{Time: time.Date(2030, 1, 2, 0, 0, 0, 0, time.UTC), Valid: true},
	}
	if err := f.store.Participants().Add(f.ctx, &stray); err != nil {
		t.Fatalf("stray row: %v", err)
	}
	if err := f.convs.Leave(f.ctx, b, dm.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}

	f.send(t, a, dm.ID, "hello?")

	active, err := f.store.Participants().CountActive(f.ctx, dm.ID)
	if err != nil || active != conversation.DirectCapacity {
		t.Fatalf("active = %d, %v", active, err)
	}
}

func TestRejoinMovesVisibilityFloor(t *testing.T) {
	f := newFixture(t)
	owner, b := f.user(t, "owner"), f.user(t, "b")
	group, err := f.convs.CreateGroup(f.ctx, owner, "ops", "")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	f.send(t, owner, group.ID, "before b")

	if _, err := f.convs.AddParticipant(f.ctx, owner, group.ID, b.UserID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}
	f.send(t, owner, group.ID, "first stay")
	if got := texts(f.list(t, b, group.ID)); !equalStrings(got, []string{"first stay"}) {
		t.Fatalf("after join b sees %v", got)
	}

	if err := f.convs.Leave(f.ctx, b, group.ID); err != nil {
		t.Fatalf("leave: %v", err)
	}
	f.send(t, owner, group.ID, "while away")
	if _, err := f.messages.List(f.ctx, b, group.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("left member listing err = %v, want forbidden", err)
	}

	if _, err := f.convs.AddParticipant(f.ctx, owner, group.ID, b.UserID, ""); err != nil {
		t.Fatalf("re-add: %v", err)
	}
	f.send(t, owner, group.ID, "second stay")
	if got := texts(f.list(t, b, group.ID)); !equalStrings(got, []string{"second stay"}) {
		t.Fatalf("after rejoin b sees %v", got)
	}
}

func TestUnreadThenReadReceipt(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	f.view(t, a, dm.ID)

	hi := f.send(t, a, dm.ID, "hi")
	if n := f.broadcast.Count(events.TypeChatMessage); n != 0 {
		t.Fatalf("message pushes = %d, want 0", n)
	}
	unread, err := f.messages.UnreadCount(f.ctx, b, dm.ID)
	if err != nil || unread != 1 {
		t.Fatalf("unread = %d, %v; want 1", unread, err)
	}

	views := f.list(t, b, dm.ID)
	if len(views) != 1 || len(views[0].Readers) != 1 || views[0].Readers[0] != b.UserID {
		t.Fatalf("listing = %+v", views)
	}
	unread, err = f.messages.UnreadCount(f.ctx, b, dm.ID)
	if err != nil || unread != 0 {
		t.Fatalf("unread after list = %d, %v; want 0", unread, err)
	}

	if n := f.broadcast.Count(events.TypeChatRead); n != 1 {
		t.Fatalf("read events = %d, want 1", n)
	}
	env := f.broadcast.Sent()[0].Envelope
	if env.MessageID != hi.Message.ID || env.ReaderID != b.UserID.String() {
		t.Fatalf("read event = %+v", env)
	}

	// Listing again does not repeat the receipt.
	f.list(t, b, dm.ID)
	if n := f.broadcast.Count(events.TypeChatRead); n != 1 {
		t.Fatalf("read events after second list = %d, want 1", n)
	}
}

func TestListingClearsSystemMessages(t *testing.T) {
	f := newFixture(t)
	owner, b := f.user(t, "owner"), f.user(t, "b")
	group, err := f.convs.CreateGroup(f.ctx, owner, "team", "")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	if _, err := f.convs.AddParticipant(f.ctx, owner, group.ID, b.UserID, ""); err != nil {
		t.Fatalf("add: %v", err)
	}

	body, err := message.Body{Text: "welcome"}.Encode()
	if err != nil {
		t.Fatal(err)
	}
	welcome := message.Message{
		ID:             uuid.Must(uuid.NewV7()).String(),
		ConversationID: group.ID,
		Kind:           message.KindSystem,
		Body:           body,
		CreatedAt:      time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := f.store.Messages().Create(f.ctx, &welcome); err != nil {
		t.Fatalf("system message: %v", err)
	}

	if n, err := f.messages.UnreadCount(f.ctx, b, group.ID); err != nil || n != 1 {
		t.Fatalf("unread before listing = %d, %v", n, err)
	}
	f.list(t, b, group.ID)
	if n, err := f.messages.UnreadCount(f.ctx, b, group.ID); err != nil || n != 0 {
		t.Fatalf("unread after listing = %d, %v", n, err)
	}
	if n := f.broadcast.Count(events.TypeChatRead); n != 0 {
		t.Fatalf("read events for a system message = %d", n)
	}
}

func TestReadReceiptSkippedWhenSenderOffline(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	f.send(t, a, dm.ID, "hi")
	f.list(t, b, dm.ID)
	if n := f.broadcast.Count(events.TypeChatRead); n != 0 {
		t.Fatalf("read events = %d, want 0", n)
	}
}

func TestCreateMessageRejects(t *testing.T) {
	f := newFixture(t)
	a, b, outsider := f.user(t, "a"), f.user(t, "b"), f.user(t, "c")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	other, err := f.convs.CreateGroup(f.ctx, a, "other", "")
	if err != nil {
		t.Fatalf("group: %v", err)
	}
	foreign := f.send(t, a, other.ID, "elsewhere")
	text := func(s string) message.Body { return message.Body{Text: s} }

	cases := []struct {
		name   string
		sender user.Principal
		conv   uuid.UUID
		in     CreateMessageInput
		want   error
	}{
		{"empty text", a, dm.ID, CreateMessageInput{Kind: message.KindText, Body: text("  ")}, apperrors.ErrValidation},
		{"system kind", a, dm.ID, CreateMessageInput{Kind: message.KindSystem, Body: text("x")}, apperrors.ErrValidation},
		{"file outside company", a, dm.ID, CreateMessageInput{
			Kind: message.KindFile,
			Body: message.Body{File: &message.FileMeta{Key: "uploads/" + uuid.NewString() + "/x.png"}},
		}, apperrors.ErrValidation},
		{"reply across conversations", a, dm.ID, CreateMessageInput{Kind: message.KindText, Body: text("re"), ReplyTo: foreign.Message.ID}, apperrors.ErrValidation},
		{"unknown conversation", a, uuid.New(), CreateMessageInput{Kind: message.KindText, Body: text("x")}, apperrors.ErrNotFound},
		{"not a participant", outsider, dm.ID, CreateMessageInput{Kind: message.KindText, Body: text("x")}, apperrors.ErrForbidden},
		{"anonymous", user.Anonymous, dm.ID, CreateMessageInput{Kind: message.KindText, Body: text("x")}, apperrors.ErrUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.messages.Create(f.ctx, tc.sender, tc.conv, tc.in)
			if !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestReplyAndFileMessages(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	first := f.send(t, a, dm.ID, "question")

	reply, err := f.messages.Create(f.ctx, b, dm.ID, CreateMessageInput{
		Kind:    message.KindText,
		Body:    message.Body{Text: "answer"},
		ReplyTo: first.Message.ID,
	})
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if !reply.Message.ReplyToID.Valid || reply.Message.ReplyToID.String != first.Message.ID {
		t.Fatalf("reply_to = %+v", reply.Message.ReplyToID)
	}

	key := UploadPrefix(a.CompanyID) + a.UserID.String() + "/f/report.pdf"
	file, err := f.messages.Create(f.ctx, a, dm.ID, CreateMessageInput{
		Kind: message.KindFile,
		Body: message.Body{File: &message.FileMeta{Key: key, Name: "report.pdf", Size: 10}},
	})
	if err != nil {
		t.Fatalf("file message: %v", err)
	}
	if got := message.DecodeBody(file.Message.Body); got.File == nil || got.File.Key != key {
		t.Fatalf("stored body = %+v", got)
	}
}

func TestEditAndDeleteAreSenderOnly(t *testing.T) {
	f := newFixture(t)
	a, b := f.user(t, "a"), f.user(t, "b")
	dm, err := f.convs.FindOrCreateDirect(f.ctx, a, b.UserID)
	if err != nil {
		t.Fatalf("dm: %v", err)
	}
	m := f.send(t, a, dm.ID, "draft").Message

	if _, err := f.messages.Edit(f.ctx, b, dm.ID, m.ID, message.Body{Text: "hijack"}); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("edit by other err = %v", err)
	}
	edited, err := f.messages.Edit(f.ctx, a, dm.ID, m.ID, message.Body{Text: "final"})
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Message.EditedAt.Valid || message.DecodeBody(edited.Message.Body).Text != "final" {
		t.Fatalf("edited = %+v", edited.Message)
	}

	if _, err := f.messages.Delete(f.ctx, b, dm.ID, m.ID); !errors.Is(err, apperrors.ErrForbidden) {
		t.Fatalf("delete by other err = %v", err)
	}
	deleted, err := f.messages.Delete(f.ctx, a, dm.ID, m.ID)
	if err != nil {
		t.Fatalf("delete: %v", err)
	}
	if !deleted.Message.IsDeleted() {
		t.Fatal("deleted_at not set")
	}
	if _, err := f.messages.Edit(f.ctx, a, dm.ID, m.ID, message.Body{Text: "again"}); !errors.Is(err, apperrors.ErrValidation) {
		t.Fatalf("edit after delete err = %v", err)
	}

	unread, err := f.messages.UnreadCount(f.ctx, b, dm.ID)
	if err != nil || unread != 0 {
		t.Fatalf("deleted message still unread: %d, %v", unread, err)
	}
}
