// Package redis implements the grant and countdown stores on Redis. These
// are the short-lived records; the rest of the state stays in the bolt file.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds Redis connection settings.
type Config struct {
	Addr        string
	Password    string
	DB          int
	DialTimeout time.Duration
	ReadTimeout time.Duration
}

// Store provides Redis-backed stores for grants and countdowns.
type Store struct {
	client *redis.Client
}

// Open creates a new Redis-backed storage instance and verifies connectivity.
func Open(cfg Config) (*Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.DialTimeout,
		ReadTimeout: cfg.ReadTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Store{client: client}, nil
}

// NewFromClient wraps an existing client. Used by tests with miniredis.
func NewFromClient(client *redis.Client) *Store {
	return &Store{client: client}
}

// Close closes the underlying connection.
func (s *Store) Close() error {
	return s.client.Close()
}

// Grants returns the Redis-backed unlock grant store.
func (s *Store) Grants() *GrantStore { return &GrantStore{client: s.client} }

// Countdowns returns the Redis-backed countdown store.
func (s *Store) Countdowns() *CountdownStore { return &CountdownStore{client: s.client} }

func grantKey(identifier string) string {
	return "brickd:grant:" + identifier
}

func countdownKey(sessionID string) string {
	return "brickd:countdown:" + sessionID
}
