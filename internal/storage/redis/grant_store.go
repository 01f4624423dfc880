package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/offmode/brickd/internal/storage"
	"github.com/redis/go-redis/v9"
)

const grantIndexKey = "brickd:grants"

// GrantStore implements storage.GrantStore on Redis. Records carry no Redis
// TTL: expiry is always recomputed from the stored grant timestamp, and the
// cleanup job handles storage hygiene, exactly as with the bolt backend.
type GrantStore struct {
	client *redis.Client
}

func (s *GrantStore) Get(ctx context.Context, identifier string) (*storage.UnlockGrant, error) {
	data, err := s.client.Get(ctx, grantKey(identifier)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get grant: %w", err)
	}

	var grant storage.UnlockGrant
	if err := json.Unmarshal(data, &grant); err != nil {
		return nil, fmt.Errorf("unmarshal grant: %w", err)
	}
	return &grant, nil
}

func (s *GrantStore) List(ctx context.Context) ([]storage.UnlockGrant, error) {
	identifiers, err := s.client.SMembers(ctx, grantIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list grants: %w", err)
	}

	grants := make([]storage.UnlockGrant, 0, len(identifiers))
	for _, identifier := range identifiers {
		grant, err := s.Get(ctx, identifier)
		if errors.Is(err, storage.ErrNotFound) {
			// Index entry outlived its record; drop it.
			_ = s.client.SRem(ctx, grantIndexKey, identifier).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		grants = append(grants, *grant)
	}
	return grants, nil
}

func (s *GrantStore) Upsert(ctx context.Context, grant storage.UnlockGrant) error {
	data, err := json.Marshal(grant)
	if err != nil {
		return fmt.Errorf("marshal grant: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, grantKey(grant.Identifier), data, 0)
	pipe.SAdd(ctx, grantIndexKey, grant.Identifier)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("upsert grant: %w", err)
	}
	return nil
}

func (s *GrantStore) Delete(ctx context.Context, identifier string) error {
	deleted, err := s.client.Del(ctx, grantKey(identifier)).Result()
	if err != nil {
		return fmt.Errorf("delete grant: %w", err)
	}
	_ = s.client.SRem(ctx, grantIndexKey, identifier).Err()
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}
