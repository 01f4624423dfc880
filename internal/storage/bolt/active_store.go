package bolt

import (
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type activeStore struct {
	db *bbolt.DB
}

func (s *activeStore) Get(ctx context.Context) (*storage.ActiveSession, error) {
	return getBucketValue[storage.ActiveSession](ctx, s.db, bucketActive, activeKey)
}

func (s *activeStore) Set(ctx context.Context, active storage.ActiveSession) error {
	return putBucketValue(ctx, s.db, bucketActive, activeKey, active)
}

func (s *activeStore) Clear(ctx context.Context) error {
	err := deleteBucketValue(ctx, s.db, bucketActive, activeKey)
	if err == storage.ErrNotFound {
		return nil
	}
	return err
}
