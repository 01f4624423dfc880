package bolt

import (
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type countdownStore struct {
	db *bbolt.DB
}

func (s *countdownStore) Get(ctx context.Context, sessionID string) (*storage.Countdown, error) {
	return getBucketValue[storage.Countdown](ctx, s.db, bucketCountdowns, sessionID)
}

func (s *countdownStore) List(ctx context.Context) ([]storage.Countdown, error) {
	return listBucket[storage.Countdown](ctx, s.db, bucketCountdowns)
}

func (s *countdownStore) Set(ctx context.Context, countdown storage.Countdown) error {
	return putBucketValue(ctx, s.db, bucketCountdowns, countdown.SessionID, countdown)
}

func (s *countdownStore) Delete(ctx context.Context, sessionID string) error {
	return deleteBucketValue(ctx, s.db, bucketCountdowns, sessionID)
}
