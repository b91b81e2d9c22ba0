package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/joao-fontenele/cartflow/internal/domain"
)

// RedisStore keeps each profile's snapshot as a JSON string under
// StorageKey(profileID), with no expiry.
type RedisStore struct {
	client *redis.Client
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Load(ctx context.Context, profileID string) (*domain.CartState, error) {
	data, err := s.client.Get(ctx, StorageKey(profileID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", profileID, err)
	}
	return decodeState(data)
}

func (s *RedisStore) Save(ctx context.Context, profileID string, state domain.CartState) error {
	data, err := encodeState(state)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, StorageKey(profileID), data, 0).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", profileID, err)
	}
	return nil
}
