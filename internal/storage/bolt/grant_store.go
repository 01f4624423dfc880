package bolt

import (
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type grantStore struct {
	db *bbolt.DB
}

func (s *grantStore) Get(ctx context.Context, identifier string) (*storage.UnlockGrant, error) {
	return getBucketValue[storage.UnlockGrant](ctx, s.db, bucketGrants, identifier)
}

func (s *grantStore) List(ctx context.Context) ([]storage.UnlockGrant, error) {
	return listBucket[storage.UnlockGrant](ctx, s.db, bucketGrants)
}

func (s *grantStore) Upsert(ctx context.Context, grant storage.UnlockGrant) error {
	return putBucketValue(ctx, s.db, bucketGrants, grant.Identifier, grant)
}

func (s *grantStore) Delete(ctx context.Context, identifier string) error {
	return deleteBucketValue(ctx, s.db, bucketGrants, identifier)
}
