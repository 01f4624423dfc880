// Package lock implements commitment locks: a time-boxed guard on a
// session's definition, liftable only by retyping the exact phrase chosen
// when locking.
package lock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/storage"
)

// MinPhraseLength is the shortest accepted phrase after trimming.
const MinPhraseLength = 10

var (
	// ErrLocked is returned when an edit or delete hits a locked session.
	ErrLocked = errors.New("lock: session is locked")

	// ErrWrongPhrase is returned when the typed phrase is not an exact,
	// case-sensitive match of the stored one.
	ErrWrongPhrase = errors.New("lock: phrase does not match")

	// ErrPhraseTooShort is returned when the phrase fails the length check.
	ErrPhraseTooShort = fmt.Errorf("lock: phrase must be at least %d characters", MinPhraseLength)

	// ErrNotLocked is returned when unlocking a session with no lock.
	ErrNotLocked = errors.New("lock: session is not locked")
)

// Manager applies and lifts commitment locks on stored sessions.
type Manager struct {
	sessions storage.SessionStore
	clock    clock.Clock
	logger   zerolog.Logger
}

// NewManager creates a lock manager.
func NewManager(sessions storage.SessionStore, clk clock.Clock, logger zerolog.Logger) *Manager {
	return &Manager{
		sessions: sessions,
		clock:    clk,
		logger:   logger.With().Str("component", "lock").Logger(),
	}
}

// Lock protects a session for durationDays, gated by the phrase. The phrase
// is kept verbatim; comparison at unlock is case-sensitive.
func (m *Manager) Lock(ctx context.Context, sessionID string, durationDays int, phrase string) error {
	if len(strings.TrimSpace(phrase)) < MinPhraseLength {
		return ErrPhraseTooShort
	}
	if durationDays <= 0 {
		return fmt.Errorf("lock duration must be positive, got %d days", durationDays)
	}

	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	now := m.clock.Now()
	session.Lock = &storage.LockState{
		Phrase:    phrase,
		ExpiresAt: now.Add(time.Duration(durationDays) * 24 * time.Hour),
	}
	session.UpdatedAt = now
	if err := m.sessions.Upsert(ctx, *session); err != nil {
		return fmt.Errorf("persist lock: %w", err)
	}

	m.logger.Info().
		Str("session_id", sessionID).
		Int("days", durationDays).
		Time("expires_at", session.Lock.ExpiresAt).
		Msg("Commitment lock applied")
	return nil
}

// Unlock lifts the lock if typedPhrase matches exactly. An expired lock is
// cleared without requiring the phrase.
func (m *Manager) Unlock(ctx context.Context, sessionID string, typedPhrase string) error {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.Lock == nil {
		return ErrNotLocked
	}

	now := m.clock.Now()
	if !session.Lock.ExpiresAt.After(now) {
		return m.clear(ctx, session, "expired")
	}

	if session.Lock.Phrase != typedPhrase {
		return ErrWrongPhrase
	}
	return m.clear(ctx, session, "phrase match")
}

// Guard returns ErrLocked when the session is under a live lock. Edit and
// delete paths call this before mutating anything.
func (m *Manager) Guard(ctx context.Context, sessionID string) error {
	session, err := m.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if session.Locked(m.clock.Now()) {
		return ErrLocked
	}
	return nil
}

// ClearExpired removes lapsed locks. Run at process start and by the
// periodic sweep.
func (m *Manager) ClearExpired(ctx context.Context) (int, error) {
	sessions, err := m.sessions.List(ctx)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	cleared := 0
	for _, session := range sessions {
		if session.Lock == nil || session.Lock.ExpiresAt.After(now) {
			continue
		}
		if err := m.clear(ctx, &session, "expired"); err != nil {
			return cleared, err
		}
		cleared++
	}
	return cleared, nil
}

func (m *Manager) clear(ctx context.Context, session *storage.Session, reason string) error {
	session.Lock = nil
	session.UpdatedAt = m.clock.Now()
	if err := m.sessions.Upsert(ctx, *session); err != nil {
		return fmt.Errorf("persist unlock: %w", err)
	}
	m.logger.Info().
		Str("session_id", session.ID).
		Str("reason", reason).
		Msg("Commitment lock cleared")
	return nil
}
