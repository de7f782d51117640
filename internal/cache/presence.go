package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// PresenceCache tracks which agents currently have an open working
// session. Marks carry a TTL so a crashed instance cannot leave an
// agent online forever; every write is best-effort from the caller's
// point of view.
type PresenceCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewPresenceCache wraps a redis client with the configured mark TTL.
func NewPresenceCache(client *redis.Client, ttl time.Duration) *PresenceCache {
	return &PresenceCache{client: client, ttl: ttl}
}

func presenceKey(agentID string) string {
	return "presence:agent:" + agentID
}

// MarkOnline stores a presence mark for the agent.
func (p *PresenceCache) MarkOnline(ctx context.Context, agentID string) error {
	if p == nil || p.client == nil {
		return errors.New("presence cache not configured")
	}
	return p.client.Set(ctx, presenceKey(agentID), time.Now().Unix(), p.ttl).Err()
}

// MarkOffline removes the agent's presence mark.
func (p *PresenceCache) MarkOffline(ctx context.Context, agentID string) error {
	if p == nil || p.client == nil {
		return errors.New("presence cache not configured")
	}
	return p.client.Del(ctx, presenceKey(agentID)).Err()
}

// IsOnline reports whether a presence mark exists for the agent.
func (p *PresenceCache) IsOnline(ctx context.Context, agentID string) (bool, error) {
	if p == nil || p.client == nil {
		return false, errors.New("presence cache not configured")
	}
	if err := p.client.Get(ctx, presenceKey(agentID)).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}
