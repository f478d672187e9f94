package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jo-hoe/signtracker/internal/inspection"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "signtracker:session:"

// RedisStore keeps sessions as JSON values that expire after the idle ttl.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(address string, ttl time.Duration) (*RedisStore, error) {
	if address == "" {
		return nil, errors.New("redis session store requires an address")
	}
	client := redis.NewClient(&redis.Options{Addr: address})
	return &RedisStore{client: client, ttl: ttl}, nil
}

func (r *RedisStore) Get(ctx context.Context, id string) (*inspection.Session, error) {
	data, err := r.client.Get(ctx, keyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", id, err)
	}

	var s inspection.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", id, err)
	}
	return &s, nil
}

func (r *RedisStore) Save(ctx context.Context, s *inspection.Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to encode session %s: %w", s.ID, err)
	}
	if err := r.client.Set(ctx, keyPrefix+s.ID, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to store session %s: %w", s.ID, err)
	}
	return nil
}

func (r *RedisStore) Delete(ctx context.Context, id string) error {
	return r.client.Del(ctx, keyPrefix+id).Err()
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
