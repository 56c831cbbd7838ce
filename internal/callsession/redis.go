package callsession

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// callKeyPrefix namespaces session keys in a shared Redis instance.
	callKeyPrefix = "call:"

	// defaultRedisTTL bounds session retention when no TTL is configured.
	defaultRedisTTL = time.Hour
)

// Compile-time assertion that RedisStore satisfies the Store interface.
var _ Store = (*RedisStore)(nil)

// RedisStore is a Store backed by Redis, for deployments where webhook and
// media-stream traffic land on different processes. Sessions are stored as
// JSON under "call:<id>" with a key TTL, so Redis itself handles eviction;
// the TTL is refreshed on every Set, which keeps live calls from expiring
// mid-conversation.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore wraps an existing Redis client. A non-positive ttl falls
// back to one hour.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = defaultRedisTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// NewRedisStoreFromURL connects to the Redis instance at url
// (e.g. "redis://localhost:6379/0") and returns a store over it.
func NewRedisStoreFromURL(url string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("callsession: parse redis url: %w", err)
	}
	return NewRedisStore(redis.NewClient(opts), ttl), nil
}

// Get implements [Store.Get].
func (s *RedisStore) Get(ctx context.Context, callID string) (*Session, error) {
	val, err := s.client.Get(ctx, callKeyPrefix+callID).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("callsession: redis get %q: %w", callID, err)
	}

	var session Session
	if err := json.Unmarshal([]byte(val), &session); err != nil {
		return nil, fmt.Errorf("callsession: decode session %q: %w", callID, err)
	}
	return &session, nil
}

// Set implements [Store.Set].
func (s *RedisStore) Set(ctx context.Context, session *Session) error {
	if session == nil || session.CallID == "" {
		return nil
	}
	val, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("callsession: encode session %q: %w", session.CallID, err)
	}
	if err := s.client.Set(ctx, callKeyPrefix+session.CallID, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("callsession: redis set %q: %w", session.CallID, err)
	}
	return nil
}

// Delete implements [Store.Delete].
func (s *RedisStore) Delete(ctx context.Context, callID string) error {
	if err := s.client.Del(ctx, callKeyPrefix+callID).Err(); err != nil {
		return fmt.Errorf("callsession: redis del %q: %w", callID, err)
	}
	return nil
}

// GetAll implements [Store.GetAll]. It scans the call keyspace and decodes
// each session; entries expiring mid-scan are skipped. Unmarshalled values
// are fresh copies, so the snapshot is isolated from later writes.
func (s *RedisStore) GetAll(ctx context.Context) (map[string]*Session, error) {
	sessions := make(map[string]*Session)

	iter := s.client.Scan(ctx, 0, callKeyPrefix+"*", 0).Iterator()
	for iter.Next(ctx) {
		val, err := s.client.Get(ctx, iter.Val()).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("callsession: redis get %q: %w", iter.Val(), err)
		}

		var session Session
		if err := json.Unmarshal([]byte(val), &session); err != nil {
			return nil, fmt.Errorf("callsession: decode %q: %w", iter.Val(), err)
		}
		sessions[session.CallID] = &session
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("callsession: redis scan: %w", err)
	}
	return sessions, nil
}

// Ping implements [Store.Ping].
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("callsession: redis ping: %w", err)
	}
	return nil
}

// Close implements [Store.Close].
func (s *RedisStore) Close() error {
	return s.client.Close()
}
