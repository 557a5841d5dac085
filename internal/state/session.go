package state

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// SessionStore is session-scoped key-value storage. Values are opaque bytes.
type SessionStore interface {
	// Get returns nil without error when the key does not exist
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Remove(ctx context.Context, key string) error
	// Update applies fn to the current value and stores the result atomically
	// with respect to other updates of the same key. fn receives nil for a
	// missing key and may return nil to leave the value untouched. fn can be
	// called more than once.
	Update(ctx context.Context, key string, fn UpdateFunc) error
}

type UpdateFunc func(current []byte) ([]byte, error)

var ErrUpdateConflict = errors.New("session value kept changing during update")

const maxUpdateAttempts = 50

type redisSessionStore struct {
	redisClient *redis.Client
	keyPrefix   string
	ttl         time.Duration
}

// NewRedisSessionStore keeps every key alive for ttl after its last read or write
func NewRedisSessionStore(redisClient *redis.Client, keyPrefix string, ttl time.Duration) SessionStore {
	return &redisSessionStore{
		redisClient: redisClient,
		keyPrefix:   keyPrefix + "session:",
		ttl:         ttl,
	}
}

func (s *redisSessionStore) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := s.redisClient.GetEx(ctx, s.keyPrefix+key, s.ttl).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil // Nothing stored for this session yet
		}
		return nil, fmt.Errorf("failed to get session key %s: %w", key, err)
	}
	return val, nil
}

func (s *redisSessionStore) Set(ctx context.Context, key string, value []byte) error {
	if err := s.redisClient.Set(ctx, s.keyPrefix+key, value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set session key %s: %w", key, err)
	}
	return nil
}

func (s *redisSessionStore) Remove(ctx context.Context, key string) error {
	if err := s.redisClient.Del(ctx, s.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to remove session key %s: %w", key, err)
	}
	return nil
}

// Update runs fn inside a WATCH/MULTI transaction and starts over when
// another client touched the key in between
func (s *redisSessionStore) Update(ctx context.Context, key string, fn UpdateFunc) error {
	fullKey := s.keyPrefix + key

	txf := func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, fullKey).Bytes()
		if err != nil {
			if err != redis.Nil {
				return err
			}
			current = nil
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			return nil
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, fullKey, next, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 1; attempt <= maxUpdateAttempts; attempt++ {
		err := s.redisClient.Watch(ctx, txf, fullKey)
		if err == nil {
			return nil
		}
		if !errors.Is(err, redis.TxFailedErr) {
			return fmt.Errorf("failed to update session key %s: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("failed to update session key %s: %w", key, ctx.Err())
		case <-time.After(time.Duration(attempt) * time.Millisecond):
		}
	}

	return fmt.Errorf("%w: %s", ErrUpdateConflict, key)
}
