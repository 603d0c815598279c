package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisLedger stores identities as members of a single set.
type RedisLedger struct {
	client *redis.Client
	key    string
}

func NewRedisLedger(ctx context.Context, addr, password string, db int, key string) (*RedisLedger, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("unable to ping redis: %w", err)
	}
	return &RedisLedger{client: client, key: key}, nil
}

func (s *RedisLedger) Contains(ctx context.Context, identity string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, s.key, identity).Result()
	if err != nil {
		return false, fmt.Errorf("ledger lookup failed: %w", err)
	}
	return ok, nil
}

func (s *RedisLedger) Append(ctx context.Context, identity string) error {
	_, err := s.InsertIfAbsent(ctx, identity)
	return err
}

// InsertIfAbsent relies on SADD reporting how many members were new.
func (s *RedisLedger) InsertIfAbsent(ctx context.Context, identity string) (bool, error) {
	if identity == "" {
		return false, ErrEmptyIdentity
	}
	added, err := s.client.SAdd(ctx, s.key, identity).Result()
	if err != nil {
		return false, fmt.Errorf("ledger insert failed: %w", err)
	}
	return added == 1, nil
}

func (s *RedisLedger) Close() error {
	return s.client.Close()
}
