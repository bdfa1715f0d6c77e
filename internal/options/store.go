package options

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Store caches fetched option sets by key. The key format is
// "<prefix>:<sourceId>:<scope>".
type Store interface {
	// Get returns the cached records for key. found is false on a miss or
	// an expired entry.
	Get(ctx context.Context, key string) (records []Record, found bool, err error)
	// Set caches records under key for ttl.
	Set(ctx context.Context, key string, records []Record, ttl time.Duration) error
	// Invalidate drops every entry whose key starts with prefix.
	Invalidate(ctx context.Context, prefix string) error
	// HealthCheck reports whether the store is reachable.
	HealthCheck(ctx context.Context) error
}

// CacheKey builds the standard option cache key.
func CacheKey(prefix, sourceID, scope string) string {
	return fmt.Sprintf("%s:%s:%s", prefix, sourceID, scope)
}

// --- MemoryStore ---

// MemoryStore is an in-process Store with TTL and a soft entry limit.
// Suitable for tests and single-instance deployments.
type MemoryStore struct {
	maxEntries int

	mu      sync.RWMutex
	entries map[string]memEntry
}

type memEntry struct {
	records   []Record
	expiresAt time.Time
}

// NewMemoryStore creates a memory store. maxEntries <= 0 means 1000.
func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = 1000
	}
	return &MemoryStore{
		maxEntries: maxEntries,
		entries:    make(map[string]memEntry),
	}
}

// Get returns the cached records for key.
func (s *MemoryStore) Get(_ context.Context, key string) ([]Record, bool, error) {
	s.mu.RLock()
	entry, exists := s.entries[key]
	s.mu.RUnlock()

	if !exists {
		return nil, false, nil
	}
	if time.Now().After(entry.expiresAt) {
		s.mu.Lock()
		delete(s.entries, key)
		s.mu.Unlock()
		return nil, false, nil
	}
	return entry.records, true, nil
}

// Set stores records with TTL. Expired entries are evicted once the store
// reaches its limit.
func (s *MemoryStore) Set(_ context.Context, key string, records []Record, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) >= s.maxEntries {
		s.evictExpired()
	}
	s.entries[key] = memEntry{records: records, expiresAt: time.Now().Add(ttl)}
	return nil
}

// evictExpired removes expired entries. Must be called with mu held.
func (s *MemoryStore) evictExpired() {
	now := time.Now()
	for k, v := range s.entries {
		if now.After(v.expiresAt) {
			delete(s.entries, k)
		}
	}
}

// Invalidate drops all entries under prefix.
func (s *MemoryStore) Invalidate(_ context.Context, prefix string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for k := range s.entries {
		if strings.HasPrefix(k, prefix) {
			delete(s.entries, k)
		}
	}
	return nil
}

// HealthCheck always succeeds.
func (s *MemoryStore) HealthCheck(context.Context) error { return nil }

// Len returns the number of entries (including expired ones). For testing.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}

// --- RedisStore ---

// RedisStore is a Redis-backed Store. Records are stored as JSON.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// Get looks up cached records in Redis.
func (s *RedisStore) Get(ctx context.Context, key string) ([]Record, bool, error) {
	raw, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get %q: %w", key, err)
	}

	var records []Record
	if err := json.Unmarshal(raw, &records); err != nil {
		return nil, false, fmt.Errorf("unmarshal option records %q: %w", key, err)
	}
	return records, true, nil
}

// Set saves records in Redis with TTL.
func (s *RedisStore) Set(ctx context.Context, key string, records []Record, ttl time.Duration) error {
	data, err := json.Marshal(records)
	if err != nil {
		return fmt.Errorf("marshal option records: %w", err)
	}
	if err := s.client.Set(ctx, key, data, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// Invalidate deletes every key under prefix using SCAN.
func (s *RedisStore) Invalidate(ctx context.Context, prefix string) error {
	iter := s.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	if len(keys) == 0 {
		return nil
	}
	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", prefix, err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
