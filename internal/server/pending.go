package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/fitlink/internal/extract"
	"github.com/redis/go-redis/v9"
)

// PendingStore parks extracted grants keyed by the OAuth state nonce so
// the app can poll for them when it was foregrounded by means other than
// a deep link. Entries are single-consumer: Take removes what it returns.
type PendingStore interface {
	// Park stores a grant under the state nonce for at most ttl.
	Park(ctx context.Context, state string, g extract.Grant, ttl time.Duration) error
	// Take returns and removes the grant parked under state, or nil when
	// nothing usable is parked.
	Take(ctx context.Context, state string) (*extract.Grant, error)
	// Kind names the backing store for health reporting.
	Kind() string
}

type pendingEntry struct {
	grant     extract.Grant
	expiresAt time.Time
}

// MemoryStore is the default in-process PendingStore. Expiry is lazy:
// entries are checked on Take, not reaped by a timer.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]pendingEntry
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]pendingEntry)}
}

func (m *MemoryStore) Park(ctx context.Context, state string, g extract.Grant, ttl time.Duration) error {
	if state == "" {
		return fmt.Errorf("state nonce must not be empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[state] = pendingEntry{grant: g, expiresAt: time.Now().Add(ttl)}
	return nil
}

func (m *MemoryStore) Take(ctx context.Context, state string) (*extract.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, ok := m.entries[state]
	if !ok {
		return nil, nil
	}
	delete(m.entries, state)

	if time.Now().After(entry.expiresAt) {
		return nil, nil
	}

	g := entry.grant
	return &g, nil
}

func (m *MemoryStore) Kind() string { return "memory" }

// RedisStore is a PendingStore over Redis, for bridge deployments with
// more than one instance behind the redirect host.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to Redis at addr and verifies the connection.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis connection failed: %w", err)
	}

	return &RedisStore{client: client}, nil
}

func pendingKey(state string) string {
	return "fitlink:pending:" + state
}

func (r *RedisStore) Park(ctx context.Context, state string, g extract.Grant, ttl time.Duration) error {
	if state == "" {
		return fmt.Errorf("state nonce must not be empty")
	}

	payload, err := json.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal grant: %w", err)
	}

	return r.client.Set(ctx, pendingKey(state), payload, ttl).Err()
}

func (r *RedisStore) Take(ctx context.Context, state string) (*extract.Grant, error) {
	payload, err := r.client.GetDel(ctx, pendingKey(state)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis read failed: %w", err)
	}

	var g extract.Grant
	if err := json.Unmarshal([]byte(payload), &g); err != nil {
		return nil, fmt.Errorf("failed to unmarshal grant: %w", err)
	}

	return &g, nil
}

func (r *RedisStore) Kind() string { return "redis" }

// Close releases the underlying Redis connection.
func (r *RedisStore) Close() error { return r.client.Close() }
