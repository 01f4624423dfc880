package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/offmode/brickd/internal/storage"
	"github.com/redis/go-redis/v9"
)

const countdownIndexKey = "brickd:countdowns"

// CountdownStore implements storage.CountdownStore on Redis.
type CountdownStore struct {
	client *redis.Client
}

func (s *CountdownStore) Get(ctx context.Context, sessionID string) (*storage.Countdown, error) {
	data, err := s.client.Get(ctx, countdownKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get countdown: %w", err)
	}

	var countdown storage.Countdown
	if err := json.Unmarshal(data, &countdown); err != nil {
		return nil, fmt.Errorf("unmarshal countdown: %w", err)
	}
	return &countdown, nil
}

func (s *CountdownStore) List(ctx context.Context) ([]storage.Countdown, error) {
	sessionIDs, err := s.client.SMembers(ctx, countdownIndexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("list countdowns: %w", err)
	}

	countdowns := make([]storage.Countdown, 0, len(sessionIDs))
	for _, sessionID := range sessionIDs {
		countdown, err := s.Get(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			_ = s.client.SRem(ctx, countdownIndexKey, sessionID).Err()
			continue
		}
		if err != nil {
			return nil, err
		}
		countdowns = append(countdowns, *countdown)
	}
	return countdowns, nil
}

func (s *CountdownStore) Set(ctx context.Context, countdown storage.Countdown) error {
	data, err := json.Marshal(countdown)
	if err != nil {
		return fmt.Errorf("marshal countdown: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, countdownKey(countdown.SessionID), data, 0)
	pipe.SAdd(ctx, countdownIndexKey, countdown.SessionID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("set countdown: %w", err)
	}
	return nil
}

func (s *CountdownStore) Delete(ctx context.Context, sessionID string) error {
	deleted, err := s.client.Del(ctx, countdownKey(sessionID)).Result()
	if err != nil {
		return fmt.Errorf("delete countdown: %w", err)
	}
	_ = s.client.SRem(ctx, countdownIndexKey, sessionID).Err()
	if deleted == 0 {
		return storage.ErrNotFound
	}
	return nil
}
