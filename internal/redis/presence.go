package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	apperrors "workchat/pkg/errors"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// Redis key prefixes for presence
const (
	onlineKeyPrefix      = "online_user:"  // present while the user holds a live socket
	chatOpenKeyPrefix    = "chat_open:"    // conversation id the user has open
	connectionsKeyPrefix = "connections:"  // hash of socket id -> conversation id
)

// DefaultPresenceTTL is the sliding expiry applied to every presence key.
const DefaultPresenceTTL = 300 * time.Second

// PresenceStore records who is connected and which conversation they are viewing.
// Keys expire on their own, so a crashed node leaves nothing permanent behind.
type PresenceStore struct {
	client goredis.UniversalClient
	ttl    time.Duration
}

func NewPresenceStore(client goredis.UniversalClient, ttl time.Duration) *PresenceStore {
	if ttl <= 0 {
		ttl = DefaultPresenceTTL
	}
	return &PresenceStore{
		client: client,
		ttl:    ttl,
	}
}

// unavailable tags a Redis failure so callers can tell presence outages apart.
func unavailable(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %v", apperrors.ErrPresenceUnavailable, err)
}

func onlineKey(userID uuid.UUID) string {
	return onlineKeyPrefix + userID.String()
}

func chatOpenKey(userID uuid.UUID) string {
	return chatOpenKeyPrefix + userID.String()
}

func connectionsKey(userID uuid.UUID) string {
	return connectionsKeyPrefix + userID.String()
}

// MarkOnline sets the online flag and the open conversation.
func (p *PresenceStore) MarkOnline(ctx context.Context, userID, conversationID uuid.UUID) error {
	pipe := p.client.Pipeline()
	pipe.Set(ctx, onlineKey(userID), "1", p.ttl)
	pipe.Set(ctx, chatOpenKey(userID), conversationID.String(), p.ttl)
	_, err := pipe.Exec(ctx)
	return unavailable(err)
}

// MarkOffline clears both presence keys immediately.
func (p *PresenceStore) MarkOffline(ctx context.Context, userID uuid.UUID) error {
	return unavailable(p.client.Del(ctx, onlineKey(userID), chatOpenKey(userID), connectionsKey(userID)).Err())
}

// Refresh is the socket heartbeat. It slides every key and recreates any
// that vanished; a chat_open key that still exists keeps its value.
func (p *PresenceStore) Refresh(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error {
	return unavailable(refreshScript.Run(ctx, p.client, p.keys(userID), clientID, conversationID.String(), p.ttl.Milliseconds()).Err())
}

func (p *PresenceStore) IsOnline(ctx context.Context, userID uuid.UUID) (bool, error) {
	n, err := p.client.Exists(ctx, onlineKey(userID)).Result()
	if err != nil {
		return false, unavailable(err)
	}
	return n > 0, nil
}

// IsViewing is true iff the user is online and has conversationID open.
func (p *PresenceStore) IsViewing(ctx context.Context, userID, conversationID uuid.UUID) (bool, error) {
	viewing, err := p.BatchIsViewing(ctx, []uuid.UUID{userID}, conversationID)
	if err != nil {
		return false, err
	}
	return len(viewing) == 1, nil
}

// BatchIsViewing returns the subset of userIDs viewing conversationID, in input order.
func (p *PresenceStore) BatchIsViewing(ctx context.Context, userIDs []uuid.UUID, conversationID uuid.UUID) ([]uuid.UUID, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}

	pipe := p.client.Pipeline()
	online := make([]*goredis.IntCmd, len(userIDs))
	open := make([]*goredis.StringCmd, len(userIDs))
	for i, id := range userIDs {
		online[i] = pipe.Exists(ctx, onlineKey(id))
		open[i] = pipe.Get(ctx, chatOpenKey(id))
	}
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, goredis.Nil) {
		return nil, unavailable(err)
	}

	want := conversationID.String()
	var viewing []uuid.UUID
	for i, id := range userIDs {
		if online[i].Val() == 0 {
			continue
		}
		if open[i].Val() == want {
			viewing = append(viewing, id)
		}
	}
	return viewing, nil
}

// KEYS: online, chat_open, connections. ARGV: client id, conversation id, ttl ms.
var trackScript = goredis.NewScript(`
	redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
	redis.call('PEXPIRE', KEYS[3], ARGV[3])
	redis.call('SET', KEYS[1], '1', 'PX', ARGV[3])
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3])
	return 1
`)

var refreshScript = goredis.NewScript(`
	redis.call('HSET', KEYS[3], ARGV[1], ARGV[2])
	redis.call('PEXPIRE', KEYS[3], ARGV[3])
	redis.call('SET', KEYS[1], '1', 'PX', ARGV[3])
	if not redis.call('SET', KEYS[2], ARGV[2], 'PX', ARGV[3], 'NX') then
		redis.call('PEXPIRE', KEYS[2], ARGV[3])
	end
	return 1
`)

// KEYS: online, chat_open, connections. ARGV: client id, ttl ms.
var removeScript = goredis.NewScript(`
	redis.call('HDEL', KEYS[3], ARGV[1])
	local remaining = redis.call('HVALS', KEYS[3])
	if #remaining == 0 then
		redis.call('DEL', KEYS[1], KEYS[2], KEYS[3])
		return 0
	end
	local open = redis.call('GET', KEYS[2])
	for _, conv in ipairs(remaining) do
		if conv == open then
			redis.call('PEXPIRE', KEYS[2], ARGV[2])
			return #remaining
		end
	end
	redis.call('SET', KEYS[2], remaining[1], 'PX', ARGV[2])
	return #remaining
`)

func (p *PresenceStore) keys(userID uuid.UUID) []string {
	return []string{onlineKey(userID), chatOpenKey(userID), connectionsKey(userID)}
}

// TrackConnection registers one socket of a user and marks them online viewing conversationID.
func (p *PresenceStore) TrackConnection(ctx context.Context, userID, conversationID uuid.UUID, clientID string) error {
	return unavailable(trackScript.Run(ctx, p.client, p.keys(userID), clientID, conversationID.String(), p.ttl.Milliseconds()).Err())
}

// RemoveConnection drops one socket. The user goes offline only when no
// sockets remain; otherwise chat_open falls back to a surviving socket's conversation.
func (p *PresenceStore) RemoveConnection(ctx context.Context, userID uuid.UUID, clientID string) (int64, error) {
	n, err := removeScript.Run(ctx, p.client, p.keys(userID), clientID, p.ttl.Milliseconds()).Int64()
	return n, unavailable(err)
}
