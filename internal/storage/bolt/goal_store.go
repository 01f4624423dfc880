package bolt

import (
	"bytes"
	"context"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type goalStore struct {
	db *bbolt.DB
}

func (s *goalStore) Get(ctx context.Context, id string) (*storage.Goal, error) {
	return getBucketValue[storage.Goal](ctx, s.db, bucketGoals, id)
}

func (s *goalStore) List(ctx context.Context) ([]storage.Goal, error) {
	return listBucket[storage.Goal](ctx, s.db, bucketGoals)
}

func (s *goalStore) Upsert(ctx context.Context, goal storage.Goal) error {
	return putBucketValue(ctx, s.db, bucketGoals, goal.ID, goal)
}

func (s *goalStore) Delete(ctx context.Context, id string) error {
	return deleteBucketValue(ctx, s.db, bucketGoals, id)
}

func goalItemPrefix(goalID string) string {
	return goalID + "/"
}

func goalItemKey(goalID, identifier string) string {
	return goalItemPrefix(goalID) + identifier
}

func (s *goalStore) ListItems(ctx context.Context, goalID string) ([]storage.GoalItem, error) {
	prefix := []byte(goalItemPrefix(goalID))
	items := make([]storage.GoalItem, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketGoalItems))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var item storage.GoalItem
			if err := unmarshal(v, &item); err != nil {
				return err
			}
			items = append(items, item)
		}
		return nil
	})
	return items, err
}

func (s *goalStore) AddItem(ctx context.Context, item storage.GoalItem) error {
	return putBucketValue(ctx, s.db, bucketGoalItems, goalItemKey(item.GoalID, item.Identifier), item)
}

func (s *goalStore) DeleteItems(ctx context.Context, goalID string) error {
	prefix := []byte(goalItemPrefix(goalID))
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketGoalItems))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
			if err := c.Delete(); err != nil {
				return err
			}
		}
		return nil
	})
}
