package bolt

import (
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type sessionStore struct {
	db *bbolt.DB
}

func (s *sessionStore) Get(ctx context.Context, id string) (*storage.Session, error) {
	return getBucketValue[storage.Session](ctx, s.db, bucketSessions, id)
}

func (s *sessionStore) List(ctx context.Context) ([]storage.Session, error) {
	return listBucket[storage.Session](ctx, s.db, bucketSessions)
}

func (s *sessionStore) ListEnabled(ctx context.Context) ([]storage.Session, error) {
	sessions, err := s.List(ctx)
	if err != nil {
		return nil, err
	}
	enabled := sessions[:0]
	for _, session := range sessions {
		if session.Enabled {
			enabled = append(enabled, session)
		}
	}
	return enabled, nil
}

func (s *sessionStore) Upsert(ctx context.Context, session storage.Session) error {
	return putBucketValue(ctx, s.db, bucketSessions, session.ID, session)
}

func (s *sessionStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketSessions, id)
}
