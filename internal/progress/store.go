package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"speech-coach-service/internal/models"
)

// UpdateFunc computes the next progress record from the stored one.
type UpdateFunc func(prev models.UserProgress) models.UserProgress

// Store persists progress records keyed by user. Users without a record
// read as the zero value.
type Store interface {
	Name() string
	Get(ctx context.Context, userID string) (models.UserProgress, error)
	Update(ctx context.Context, userID string, fn UpdateFunc) (models.UserProgress, error)
}

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]models.UserProgress
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{records: make(map[string]models.UserProgress)}
}

// Name returns "memory".
func (s *MemoryStore) Name() string { return "memory" }

// Get returns the record of userID.
func (s *MemoryStore) Get(ctx context.Context, userID string) (models.UserProgress, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[userID], nil
}

// Update applies fn atomically.
func (s *MemoryStore) Update(ctx context.Context, userID string, fn UpdateFunc) (models.UserProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := fn(s.records[userID])
	s.records[userID] = next
	return next, nil
}

const (
	keyPrefix      = "speechcoach:progress:"
	maxTxnAttempts = 5
)

// RedisStore keeps one JSON document per user in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

// DialRedis connects to Redis and verifies the connection.
func DialRedis(ctx context.Context, address, password string, db int) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return &RedisStore{client: client}, nil
}

// Key returns the Redis key holding userID's record.
func Key(userID string) string {
	return keyPrefix + userID
}

// Name returns "redis".
func (s *RedisStore) Name() string { return "redis" }

// Get returns the record of userID.
func (s *RedisStore) Get(ctx context.Context, userID string) (models.UserProgress, error) {
	return load(ctx, s.client, Key(userID))
}

// Update applies fn in an optimistic transaction, retrying when another
// writer changed the record concurrently.
func (s *RedisStore) Update(ctx context.Context, userID string, fn UpdateFunc) (models.UserProgress, error) {
	key := Key(userID)
	var next models.UserProgress

	txf := func(tx *redis.Tx) error {
		prev, err := load(ctx, tx, key)
		if err != nil {
			return err
		}
		next = fn(prev)
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("failed to encode progress: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		return err
	}

	for i := 0; i < maxTxnAttempts; i++ {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return models.UserProgress{}, fmt.Errorf("failed to update progress: %w", err)
		}
		return next, nil
	}
	return models.UserProgress{}, fmt.Errorf("failed to update progress: %w", redis.TxFailedErr)
}

// Ping checks connectivity.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func load(ctx context.Context, c getter, key string) (models.UserProgress, error) {
	var p models.UserProgress
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return p, nil
	}
	if err != nil {
		return p, fmt.Errorf("failed to read progress: %w", err)
	}
	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("failed to decode progress: %w", err)
	}
	return p, nil
}
