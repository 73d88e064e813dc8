package authority

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lookup is the cached outcome of matching one normalized name against the
// authority. A zero QID records a miss, an ambiguous match or a failed call;
// all three are final for the run.
type Lookup struct {
	// Name is the cleaned spelling of the first name looked up under this
	// key. Every template filled from the lookup carries it.
	Name      string   `json:"name,omitempty"`
	QID       string   `json:"qid,omitempty"`
	Types     []string `json:"types,omitempty"`
	Label     *string  `json:"label,omitempty"`
	Country   *string  `json:"country,omitempty"`
	Website   *string  `json:"website,omitempty"`
	StartDate *string  `json:"start_date,omitempty"`
	EndDate   *string  `json:"end_date,omitempty"`
	Funder    *string  `json:"funder,omitempty"`
	Founder   *string  `json:"founder,omitempty"`
}

// Matched reports whether the lookup found a single authority record.
func (l *Lookup) Matched() bool {
	return l != nil && l.QID != ""
}

// Cache stores lookups for the lifetime of one run.
type Cache interface {
	Get(ctx context.Context, key string) (*Lookup, bool, error)
	Set(ctx context.Context, key string, l *Lookup) error
	Len(ctx context.Context) (int, error)
	Close(ctx context.Context) error
}

// MemoryCache is a process-local Cache guarded by a mutex.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*Lookup
}

// NewMemoryCache creates an empty in-memory cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*Lookup)}
}

func (m *MemoryCache) Get(_ context.Context, key string) (*Lookup, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	l, ok := m.entries[key]
	return l, ok, nil
}

func (m *MemoryCache) Set(_ context.Context, key string, l *Lookup) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = l
	return nil
}

func (m *MemoryCache) Len(context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

// Close discards every entry.
func (m *MemoryCache) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = make(map[string]*Lookup)
	return nil
}

// RedisOptions configures a RedisCache.
type RedisOptions struct {
	// URL is the Redis connection string (e.g., "redis://localhost:6379/0").
	URL      string
	Password string
	TLS      *tls.Config

	// TTL bounds how long entries survive a run that never reaches Close.
	TTL time.Duration

	// Prefix is prepended to every key; a fresh run id is appended to it.
	Prefix         string
	ConnectTimeout time.Duration
}

// RedisCache keeps one run's lookups in Redis instead of process memory.
// Every cache allocates its own namespace, which Close deletes, so entries
// are shared only by the workers holding the same *RedisCache and never
// between separate caches or processes.
type RedisCache struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewRedisCache connects to Redis and allocates a fresh run namespace.
func NewRedisCache(ctx context.Context, opts RedisOptions) (*RedisCache, error) {
	if opts.URL == "" {
		opts.URL = "redis://localhost:6379"
	}
	if opts.ConnectTimeout == 0 {
		opts.ConnectTimeout = 5 * time.Second
	}
	if opts.TTL == 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.Prefix == "" {
		opts.Prefix = "paperkg:authority"
	}

	redisOpts, err := redis.ParseURL(opts.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	if opts.Password != "" {
		redisOpts.Password = opts.Password
	}
	redisOpts.TLSConfig = opts.TLS
	redisOpts.DialTimeout = opts.ConnectTimeout

	client := redis.NewClient(redisOpts)

	pingCtx, cancel := context.WithTimeout(ctx, opts.ConnectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisCache{
		client:    client,
		namespace: opts.Prefix + ":" + uuid.NewString() + ":",
		ttl:       opts.TTL,
	}, nil
}

// Namespace returns the key prefix of this run.
func (r *RedisCache) Namespace() string {
	return r.namespace
}

func (r *RedisCache) Get(ctx context.Context, key string) (*Lookup, bool, error) {
	data, err := r.client.Get(ctx, r.namespace+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("redis get: %w", err)
	}
	var l Lookup
	if err := json.Unmarshal(data, &l); err != nil {
		return nil, false, fmt.Errorf("decoding cached lookup: %w", err)
	}
	return &l, true, nil
}

func (r *RedisCache) Set(ctx context.Context, key string, l *Lookup) error {
	data, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("encoding lookup: %w", err)
	}
	if err := r.client.Set(ctx, r.namespace+key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *RedisCache) keys(ctx context.Context) ([]string, error) {
	var (
		all    []string
		cursor uint64
	)
	for {
		keys, next, err := r.client.Scan(ctx, cursor, r.namespace+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("redis scan: %w", err)
		}
		all = append(all, keys...)
		if next == 0 {
			return all, nil
		}
		cursor = next
	}
}

func (r *RedisCache) Len(ctx context.Context) (int, error) {
	keys, err := r.keys(ctx)
	return len(keys), err
}

// Close deletes the run namespace and closes the connection.
func (r *RedisCache) Close(ctx context.Context) error {
	keys, err := r.keys(ctx)
	if err == nil && len(keys) > 0 {
		err = r.client.Del(ctx, keys...).Err()
	}
	if cerr := r.client.Close(); err == nil {
		err = cerr
	}
	return err
}
