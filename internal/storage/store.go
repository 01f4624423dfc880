package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a record is missing from storage.
var ErrNotFound = errors.New("storage: record not found")

// Store represents the root storage interface.
type Store interface {
	Close() error
	Sessions() SessionStore
	Active() ActiveStore
	Logs() LogStore
	Essential() EssentialStore
	Grants() GrantStore
	Goals() GoalStore
	Countdowns() CountdownStore
}

// SessionStore manages session definitions.
type SessionStore interface {
	Get(ctx context.Context, id string) (*Session, error)
	List(ctx context.Context) ([]Session, error)
	ListEnabled(ctx context.Context) ([]Session, error)
	Upsert(ctx context.Context, session Session) error
	Delete(ctx context.Context, id string) error
}

// ActiveStore manages the single active-session runtime record.
type ActiveStore interface {
	Get(ctx context.Context) (*ActiveSession, error)
	Set(ctx context.Context, active ActiveSession) error
	Clear(ctx context.Context) error
}

// LogEntryFilter defines criteria for querying session log entries.
type LogEntryFilter struct {
	SessionID string
	Status    CompletionStatus
	StartTime *time.Time
	EndTime   *time.Time
	Limit     int
}

// LogStore manages per-window audit log entries.
type LogStore interface {
	Get(ctx context.Context, id string) (*LogEntry, error)
	Append(ctx context.Context, entry LogEntry) error
	Update(ctx context.Context, entry LogEntry) error
	Query(ctx context.Context, filter LogEntryFilter) ([]LogEntry, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// EssentialStore manages the always-allowed identifier registry.
type EssentialStore interface {
	Get(ctx context.Context, identifier string) (*EssentialApp, error)
	List(ctx context.Context) ([]EssentialApp, error)
	Upsert(ctx context.Context, app EssentialApp) error
	Delete(ctx context.Context, identifier string) error
}

// GrantStore manages temporary unlock grants, keyed by identifier.
type GrantStore interface {
	Get(ctx context.Context, identifier string) (*UnlockGrant, error)
	List(ctx context.Context) ([]UnlockGrant, error)
	Upsert(ctx context.Context, grant UnlockGrant) error
	Delete(ctx context.Context, identifier string) error
}

// GoalStore manages goals and their append-only items. It deliberately has
// no item-removal operation; the ledger layer refuses the request before it
// could ever reach storage.
type GoalStore interface {
	Get(ctx context.Context, id string) (*Goal, error)
	List(ctx context.Context) ([]Goal, error)
	Upsert(ctx context.Context, goal Goal) error
	Delete(ctx context.Context, id string) error
	ListItems(ctx context.Context, goalID string) ([]GoalItem, error)
	AddItem(ctx context.Context, item GoalItem) error
	DeleteItems(ctx context.Context, goalID string) error
}

// CountdownStore manages persisted timed-wait challenge state, keyed by
// session identifier.
type CountdownStore interface {
	Get(ctx context.Context, sessionID string) (*Countdown, error)
	List(ctx context.Context) ([]Countdown, error)
	Set(ctx context.Context, countdown Countdown) error
	Delete(ctx context.Context, sessionID string) error
}
