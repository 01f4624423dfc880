package bolt

import (
	"context"
	"fmt"
	"time"

	"github.com/offmode/brickd/internal/storage"
	"go.etcd.io/bbolt"
)

type logStore struct {
	db *bbolt.DB
}

func (s *logStore) Get(ctx context.Context, id string) (*storage.LogEntry, error) {
	return getBucketValue[storage.LogEntry](ctx, s.db, bucketLogs, id)
}

func (s *logStore) Append(ctx context.Context, entry storage.LogEntry) error {
	if entry.ID == "" {
		return fmt.Errorf("log entry id is empty")
	}
	return putBucketValue(ctx, s.db, bucketLogs, entry.ID, entry)
}

func (s *logStore) Update(ctx context.Context, entry storage.LogEntry) error {
	data, err := marshal(entry)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b := tx.Bucket([]byte(bucketLogs))
		if b == nil {
			return storage.ErrNotFound
		}
		if b.Get([]byte(entry.ID)) == nil {
			return storage.ErrNotFound
		}
		return b.Put([]byte(entry.ID), data)
	})
}

func (s *logStore) Query(ctx context.Context, filter storage.LogEntryFilter) ([]storage.LogEntry, error) {
	entries := make([]storage.LogEntry, 0)
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLogs))
		if b == nil {
			return nil
		}
		return b.ForEach(func(_, v []byte) error {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if filter.Limit > 0 && len(entries) >= filter.Limit {
				return nil
			}
			var entry storage.LogEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			if !matchesFilter(&entry, filter) {
				return nil
			}
			entries = append(entries, entry)
			return nil
		})
	})
	return entries, err
}

func matchesFilter(entry *storage.LogEntry, filter storage.LogEntryFilter) bool {
	if filter.SessionID != "" && entry.SessionID != filter.SessionID {
		return false
	}
	if filter.Status != "" && entry.Status != filter.Status {
		return false
	}
	if filter.StartTime != nil && entry.StartedAt.Before(*filter.StartTime) {
		return false
	}
	if filter.EndTime != nil && entry.StartedAt.After(*filter.EndTime) {
		return false
	}
	return true
}

func (s *logStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int, error) {
	deleted := 0
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(bucketLogs))
		if b == nil {
			return nil
		}
		c := b.Cursor()
		for k, v := c.First(); k != nil; k, v = c.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			var entry storage.LogEntry
			if err := unmarshal(v, &entry); err != nil {
				return err
			}
			// Open entries are never pruned regardless of age.
			if entry.Status == storage.StatusOngoing || !entry.StartedAt.Before(cutoff) {
				continue
			}
			if err := c.Delete(); err != nil {
				return err
			}
			deleted++
		}
		return nil
	})
	return deleted, err
}
