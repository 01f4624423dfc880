package bolt

import (
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type essentialStore struct {
	db *bbolt.DB
}

func (s *essentialStore) Get(ctx context.Context, identifier string) (*storage.EssentialApp, error) {
	return getBucketValue[storage.EssentialApp](ctx, s.db, bucketEssential, identifier)
}

func (s *essentialStore) List(ctx context.Context) ([]storage.EssentialApp, error) {
	return listBucket[storage.EssentialApp](ctx, s.db, bucketEssential)
}

func (s *essentialStore) Upsert(ctx context.Context, app storage.EssentialApp) error {
	return putBucketValue(ctx, s.db, bucketEssential, app.Identifier, app)
}

func (s *essentialStore) Delete(ctx context.Context, identifier string) error {
	return deleteBucketValue(ctx, s.db, bucketEssential, identifier)
}
