// Package memory is an in-process Store used by tests and the
// single-node development mode.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"workchat/internal/domain/conversation"
	"workchat/internal/domain/message"
	"workchat/internal/domain/user"
	"workchat/internal/repository"
	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
	"gorm.io/datatypes"
)

type locker interface {
	Lock()
	Unlock()
}

type noLock struct{}

func (noLock) Lock()   {}
func (noLock) Unlock() {}

type partKey struct {
	conv uuid.UUID
	user uuid.UUID
}

type readKey struct {
	msg  string
	user uuid.UUID
}

type tables struct {
	users         map[uuid.UUID]user.User
	conversations map[uuid.UUID]conversation.Conversation
	participants  map[partKey]conversation.Participant
	invitations   map[partKey]conversation.Invitation
	messages      map[string]message.Message
	reads         map[readKey]message.MessageRead
}

func newTables() *tables {
	return &tables{
		users:         make(map[uuid.UUID]user.User),
		conversations: make(map[uuid.UUID]conversation.Conversation),
		participants:  make(map[partKey]conversation.Participant),
		invitations:   make(map[partKey]conversation.Invitation),
		messages:      make(map[string]message.Message),
		reads:         make(map[readKey]message.MessageRead),
	}
}

func (t *tables) clone() *tables {
	c := newTables()
	for k, v := range t.users {
		c.users[k] = v
	}
	for k, v := range t.conversations {
		c.conversations[k] = v
	}
	for k, v := range t.participants {
		c.participants[k] = v
	}
	for k, v := range t.invitations {
		c.invitations[k] = v
	}
	for k, v := range t.messages {
		c.messages[k] = v
	}
	for k, v := range t.reads {
		c.reads[k] = v
	}
	return c
}

// Store keeps every table in maps guarded by one mutex. WithTx runs
// against a copy and swaps it in on success.
type Store struct {
	mu   locker
	root *sync.Mutex
	t    *tables
}

func NewStore() *Store {
	mu := &sync.Mutex{}
	return &Store{mu: mu, root: mu, t: newTables()}
}

func (s *Store) Users() repository.UserRepository                 { return userRepo{s} }
func (s *Store) Conversations() repository.ConversationRepository { return conversationRepo{s} }
func (s *Store) Participants() repository.ParticipantRepository   { return participantRepo{s} }
func (s *Store) Messages() repository.MessageRepository           { return messageRepo{s} }
func (s *Store) Reads() repository.MessageReadRepository          { return readRepo{s} }
func (s *Store) Invitations() repository.InvitationRepository     { return invitationRepo{s} }

func (s *Store) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.root == nil {
		// Already inside a transaction; nested calls join it.
		return fn(s)
	}
	s.root.Lock()
	defer s.root.Unlock()

	tx := &Store{mu: noLock{}, t: s.t.clone()}
	if err := fn(tx); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.t = tx.t
	return nil
}

type userRepo struct{ s *Store }

func (r userRepo) Create(_ context.Context, u *user.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.users[u.ID]; ok {
		return apperrors.ErrAlreadyExists
	}
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	now := time.Now().UTC()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	r.s.t.users[u.ID] = *u
	return nil
}

func (r userRepo) GetByID(_ context.Context, id uuid.UUID) (user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.t.users[id]
	if !ok {
		return user.User{}, apperrors.NotFound("user")
	}
	return u, nil
}

func (r userRepo) GetByIDs(_ context.Context, ids []uuid.UUID) ([]user.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []user.User
	for _, id := range ids {
		if u, ok := r.s.t.users[id]; ok {
			out = append(out, u)
		}
	}
	return out, nil
}

type conversationRepo struct{ s *Store }

func (r conversationRepo) withParticipants(c conversation.Conversation) conversation.Conversation {
	c.Participants = nil
	for k, p := range r.s.t.participants {
		if k.conv == c.ID {
			c.Participants = append(c.Participants, p)
		}
	}
	sort.Slice(c.Participants, func(i, j int) bool {
		return c.Participants[i].JoinedAt.Before(c.Participants[j].JoinedAt)
	})
	return c
}

func (r conversationRepo) Create(_ context.Context, c *conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if _, ok := r.s.t.conversations[c.ID]; ok {
		return apperrors.ErrAlreadyExists
	}
	now := time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	if c.UpdatedAt.IsZero() {
		c.UpdatedAt = c.CreatedAt
	}
	stored := *c
	stored.Participants = nil
	r.s.t.conversations[c.ID] = stored
	return nil
}

func (r conversationRepo) GetByID(_ context.Context, id uuid.UUID) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.t.conversations[id]
	if !ok {
		return conversation.Conversation{}, apperrors.NotFound("conversation")
	}
	return r.withParticipants(c), nil
}

func (r conversationRepo) Update(_ context.Context, c conversation.Conversation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.t.conversations[c.ID]
	if !ok {
		return apperrors.NotFound("conversation")
	}
	cur.Title = c.Title
	cur.IconKey = c.IconKey
	cur.UpdatedAt = c.UpdatedAt
	r.s.t.conversations[c.ID] = cur
	return nil
}

func (r conversationRepo) Touch(_ context.Context, id uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.t.conversations[id]
	if !ok {
		return apperrors.NotFound("conversation")
	}
	cur.UpdatedAt = at
	r.s.t.conversations[id] = cur
	return nil
}

func (r conversationRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.conversations[id]; !ok {
		return apperrors.NotFound("conversation")
	}
	for mid, m := range r.s.t.messages {
		if m.ConversationID != id {
			continue
		}
		for k := range r.s.t.reads {
			if k.msg == mid {
				delete(r.s.t.reads, k)
			}
		}
		delete(r.s.t.messages, mid)
	}
	for k := range r.s.t.invitations {
		if k.conv == id {
			delete(r.s.t.invitations, k)
		}
	}
	for k := range r.s.t.participants {
		if k.conv == id {
			delete(r.s.t.participants, k)
		}
	}
	delete(r.s.t.conversations, id)
	return nil
}

// LockDirectPair is a no-op: WithTx already runs one transaction at a time.
func (conversationRepo) LockDirectPair(context.Context, uuid.UUID, uuid.UUID) error { return nil }

func (r conversationRepo) FindDirect(_ context.Context, companyID, userA, userB uuid.UUID) (conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var found *conversation.Conversation
	for id, c := range r.s.t.conversations {
		if c.IsGroup || c.CompanyID != companyID {
			continue
		}
		_, okA := r.s.t.participants[partKey{id, userA}]
		_, okB := r.s.t.participants[partKey{id, userB}]
		if !okA || !okB {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt) {
			cc := c
			found = &cc
		}
	}
	if found == nil {
		return conversation.Conversation{}, apperrors.NotFound("conversation")
	}
	return r.withParticipants(*found), nil
}

func (r conversationRepo) ListForUser(_ context.Context, companyID, userID uuid.UUID) ([]conversation.Conversation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []conversation.Conversation
	for id, c := range r.s.t.conversations {
		if c.CompanyID != companyID {
			continue
		}
		p, ok := r.s.t.participants[partKey{id, userID}]
		if !ok || !p.IsActive() {
			continue
		}
		out = append(out, r.withParticipants(c))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out, nil
}

type participantRepo struct{ s *Store }

func (r participantRepo) Add(_ context.Context, p *conversation.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{p.ConversationID, p.UserID}
	if _, ok := r.s.t.participants[k]; ok {
		return apperrors.ErrAlreadyExists
	}
	if p.JoinedAt.IsZero() {
		p.JoinedAt = time.Now().UTC()
	}
	r.s.t.participants[k] = *p
	return nil
}

func (r participantRepo) Get(_ context.Context, conversationID, userID uuid.UUID) (conversation.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.t.participants[partKey{conversationID, userID}]
	if !ok {
		return conversation.Participant{}, apperrors.NotFound("participant")
	}
	return p, nil
}

func (r participantRepo) List(_ context.Context, conversationID uuid.UUID) ([]conversation.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []conversation.Participant
	for k, p := range r.s.t.participants {
		if k.conv == conversationID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (r participantRepo) CountActive(_ context.Context, conversationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, p := range r.s.t.participants {
		if k.conv == conversationID && p.IsActive() {
			n++
		}
	}
	return n, nil
}

func (r participantRepo) Count(_ context.Context, conversationID uuid.UUID) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k := range r.s.t.participants {
		if k.conv == conversationID {
			n++
		}
	}
	return n, nil
}

func (r participantRepo) Reactivate(_ context.Context, conversationID, userID uuid.UUID, joinedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{conversationID, userID}
	p, ok := r.s.t.participants[k]
	if !ok {
		return apperrors.NotFound("participant")
	}
	p.LeftAt.Valid = false
	p.LeftAt.Time = time.Time{}
	p.JoinedAt = joinedAt
	r.s.t.participants[k] = p
	return nil
}

func (r participantRepo) MarkLeft(_ context.Context, conversationID, userID uuid.UUID, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{conversationID, userID}
	p, ok := r.s.t.participants[k]
	if !ok || !p.IsActive() {
		return apperrors.NotFound("participant")
	}
	p.LeftAt.Time = at
	p.LeftAt.Valid = true
	r.s.t.participants[k] = p
	return nil
}

func (r participantRepo) Delete(_ context.Context, conversationID, userID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{conversationID, userID}
	if _, ok := r.s.t.participants[k]; !ok {
		return apperrors.NotFound("participant")
	}
	delete(r.s.t.participants, k)
	return nil
}

type messageRepo struct{ s *Store }

func (r messageRepo) Create(_ context.Context, m *message.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.t.messages[m.ID]; ok {
		return apperrors.ErrAlreadyExists
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	r.s.t.messages[m.ID] = *m
	return nil
}

func (r messageRepo) GetByID(_ context.Context, id string) (message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.t.messages[id]
	if !ok {
		return message.Message{}, apperrors.NotFound("message")
	}
	return m, nil
}

func sortMessages(ms []message.Message) {
	sort.Slice(ms, func(i, j int) bool {
		if ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].ID < ms[j].ID
		}
		return ms[i].CreatedAt.Before(ms[j].CreatedAt)
	})
}

func (r messageRepo) ListSince(_ context.Context, conversationID uuid.UUID, floor time.Time) ([]message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []message.Message
	for _, m := range r.s.t.messages {
		if m.ConversationID == conversationID && !m.CreatedAt.Before(floor) {
			out = append(out, m)
		}
	}
	sortMessages(out)
	return out, nil
}

func (r messageRepo) Latest(_ context.Context, conversationID uuid.UUID) (message.Message, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []message.Message
	for _, m := range r.s.t.messages {
		if m.ConversationID == conversationID {
			all = append(all, m)
		}
	}
	if len(all) == 0 {
		return message.Message{}, apperrors.NotFound("message")
	}
	sortMessages(all)
	return all[len(all)-1], nil
}

func (r messageRepo) MarkEdited(_ context.Context, id string, body datatypes.JSON, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.t.messages[id]
	if !ok || m.IsDeleted() {
		return apperrors.NotFound("message")
	}
	m.Body = body
	m.EditedAt.Time = at
	m.EditedAt.Valid = true
	r.s.t.messages[id] = m
	return nil
}

func (r messageRepo) MarkDeleted(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, ok := r.s.t.messages[id]
	if !ok || m.IsDeleted() {
		return apperrors.NotFound("message")
	}
	m.DeletedAt.Time = at
	m.DeletedAt.Valid = true
	r.s.t.messages[id] = m
	return nil
}

func (r messageRepo) CountUnread(_ context.Context, conversationID, userID uuid.UUID, floor time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, m := range r.s.t.messages {
		if m.ConversationID != conversationID || m.CreatedAt.Before(floor) || m.IsDeleted() || m.SentBy(userID) {
			continue
		}
		if _, read := r.s.t.reads[readKey{id, userID}]; read {
			continue
		}
		n++
	}
	return n, nil
}

type readRepo struct{ s *Store }

func (r readRepo) MarkRead(_ context.Context, messageID string, userID uuid.UUID, at time.Time) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := readKey{messageID, userID}
	if _, ok := r.s.t.reads[k]; ok {
		return false, nil
	}
	r.s.t.reads[k] = message.MessageRead{MessageID: messageID, UserID: userID, ReadAt: at}
	return true, nil
}

func (r readRepo) IsRead(_ context.Context, messageID string, userID uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	_, ok := r.s.t.reads[readKey{messageID, userID}]
	return ok, nil
}

func (r readRepo) readers(messageID string) []uuid.UUID {
	var rows []message.MessageRead
	for k, rd := range r.s.t.reads {
		if k.msg == messageID {
			rows = append(rows, rd)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].ReadAt.Before(rows[j].ReadAt) })
	out := make([]uuid.UUID, 0, len(rows))
	for _, rd := range rows {
		out = append(out, rd.UserID)
	}
	return out
}

func (r readRepo) ReadersOf(_ context.Context, messageID string) ([]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.readers(messageID), nil
}

func (r readRepo) ReadersOfMany(_ context.Context, messageIDs []string) (map[string][]uuid.UUID, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make(map[string][]uuid.UUID, len(messageIDs))
	for _, id := range messageIDs {
		if rs := r.readers(id); len(rs) > 0 {
			out[id] = rs
		}
	}
	return out, nil
}

type invitationRepo struct{ s *Store }

func (r invitationRepo) Create(_ context.Context, inv *conversation.Invitation) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{inv.ConversationID, inv.InviteeID}
	if _, ok := r.s.t.invitations[k]; ok {
		return apperrors.ErrAlreadyExists
	}
	if inv.InvitedAt.IsZero() {
		inv.InvitedAt = time.Now().UTC()
	}
	r.s.t.invitations[k] = *inv
	return nil
}

func (r invitationRepo) Get(_ context.Context, conversationID, inviteeID uuid.UUID) (conversation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	inv, ok := r.s.t.invitations[partKey{conversationID, inviteeID}]
	if !ok {
		return conversation.Invitation{}, apperrors.NotFound("invitation")
	}
	return inv, nil
}

func (r invitationRepo) ListPendingForUser(_ context.Context, inviteeID uuid.UUID) ([]conversation.Invitation, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []conversation.Invitation
	for k, inv := range r.s.t.invitations {
		if k.user == inviteeID && !inv.IsParticipated {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].InvitedAt.After(out[j].InvitedAt) })
	return out, nil
}

func (r invitationRepo) MarkParticipated(_ context.Context, conversationID, inviteeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{conversationID, inviteeID}
	inv, ok := r.s.t.invitations[k]
	if !ok {
		return apperrors.NotFound("invitation")
	}
	inv.IsParticipated = true
	r.s.t.invitations[k] = inv
	return nil
}

func (r invitationRepo) Delete(_ context.Context, conversationID, inviteeID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	k := partKey{conversationID, inviteeID}
	if _, ok := r.s.t.invitations[k]; !ok {
		return apperrors.NotFound("invitation")
	}
	delete(r.s.t.invitations, k)
	return nil
}
