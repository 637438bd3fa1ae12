package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// RateLimitConfig contains configuration for rate limiting
type RateLimitConfig struct {
	MessageLimit  int           // Max messages per window
	MessageWindow time.Duration // Message rate limit window
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MessageLimit:  60,
		MessageWindow: 60 * time.Second,
	}
}

// RateLimiter handles rate limiting using Redis
type RateLimiter struct {
	client goredis.UniversalClient
	config RateLimitConfig
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	Remaining int
	ResetIn   time.Duration
	Limit     int
}

func NewRateLimiter(client goredis.UniversalClient, config RateLimitConfig) *RateLimiter {
	if config.MessageLimit <= 0 || config.MessageWindow <= 0 {
		config = DefaultRateLimitConfig()
	}
	return &RateLimiter{
		client: client,
		config: config,
	}
}

// fixed window counter; the window starts at the first hit
var limitScript = goredis.NewScript(`
	local key = KEYS[1]
	local limit = tonumber(ARGV[1])
	local window = tonumber(ARGV[2])

	local current = tonumber(redis.call('GET', key) or '0')
	if current >= limit then
		local ttl = redis.call('TTL', key)
		if ttl < 0 then
			ttl = window
		end
		return {0, 0, ttl}
	end

	current = redis.call('INCR', key)
	if current == 1 then
		redis.call('EXPIRE', key, window)
	end
	local ttl = redis.call('TTL', key)
	if ttl < 0 then
		ttl = window
	end
	return {1, limit - current, ttl}
`)

// AllowMessage checks and consumes one unit of a user's message quota.
func (r *RateLimiter) AllowMessage(ctx context.Context, userID string) (*RateLimitResult, error) {
	key := fmt.Sprintf("ratelimit:%s:messages", userID)
	return r.checkLimit(ctx, key, r.config.MessageLimit, r.config.MessageWindow)
}

func (r *RateLimiter) checkLimit(ctx context.Context, key string, limit int, window time.Duration) (*RateLimitResult, error) {
	result, err := limitScript.Run(ctx, r.client, []string{key}, limit, int(window.Seconds())).Result()
	if err != nil {
		return nil, fmt.Errorf("rate limit check failed: %w", err)
	}

	values, ok := result.([]interface{})
	if !ok || len(values) < 3 {
		return nil, fmt.Errorf("unexpected rate limit result format")
	}

	allowed, _ := values[0].(int64)
	remaining, _ := values[1].(int64)
	ttl, _ := values[2].(int64)

	return &RateLimitResult{
		Allowed:   allowed == 1,
		Remaining: int(remaining),
		ResetIn:   time.Duration(ttl) * time.Second,
		Limit:     limit,
	}, nil
}

// ResetUser clears a user's message counter.
func (r *RateLimiter) ResetUser(ctx context.Context, userID string) error {
	return r.client.Del(ctx, fmt.Sprintf("ratelimit:%s:messages", userID)).Err()
}
