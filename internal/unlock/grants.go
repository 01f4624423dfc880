// Package unlock manages temporary per-identifier unlock grants. A live
// grant suppresses enforcement for its identifier even while a session is
// enforced; expiry is derived from elapsed time, never a timer callback.
package unlock

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/storage"
)

// Manager provides grant, extend and lazy-expiry operations over a grant store.
type Manager struct {
	grants storage.GrantStore
	clock  clock.Clock
	logger zerolog.Logger
}

// NewManager creates a grant manager.
func NewManager(grants storage.GrantStore, clk clock.Clock, logger zerolog.Logger) *Manager {
	return &Manager{
		grants: grants,
		clock:  clk,
		logger: logger.With().Str("component", "unlock").Logger(),
	}
}

// Grant creates or replaces a grant for the identifier, starting now.
func (m *Manager) Grant(ctx context.Context, identifier string, minutes int) error {
	if identifier == "" {
		return fmt.Errorf("grant identifier is empty")
	}
	if minutes <= 0 {
		return fmt.Errorf("grant duration must be positive, got %d", minutes)
	}

	grant := storage.UnlockGrant{
		Identifier:      identifier,
		GrantedAt:       m.clock.Now(),
		DurationMinutes: minutes,
	}
	if err := m.grants.Upsert(ctx, grant); err != nil {
		return fmt.Errorf("persist grant: %w", err)
	}

	m.logger.Info().
		Str("identifier", identifier).
		Int("minutes", minutes).
		Msg("Temporary unlock granted")
	return nil
}

// Extend adds extra minutes to an existing grant without resetting its start
// time, so repeated extensions compound.
func (m *Manager) Extend(ctx context.Context, identifier string, extraMinutes int) error {
	if extraMinutes <= 0 {
		return fmt.Errorf("extension must be positive, got %d", extraMinutes)
	}

	grant, err := m.grants.Get(ctx, identifier)
	if err != nil {
		return fmt.Errorf("load grant: %w", err)
	}

	grant.DurationMinutes += extraMinutes
	if err := m.grants.Upsert(ctx, *grant); err != nil {
		return fmt.Errorf("persist grant: %w", err)
	}

	m.logger.Info().
		Str("identifier", identifier).
		Int("extra_minutes", extraMinutes).
		Int("total_minutes", grant.DurationMinutes).
		Msg("Temporary unlock extended")
	return nil
}

// Active reports whether a live grant exists for the identifier. Expired
// grants are deleted opportunistically; correctness never depends on the
// deletion happening.
func (m *Manager) Active(ctx context.Context, identifier string) bool {
	grant, err := m.grants.Get(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		m.logger.Error().Err(err).Str("identifier", identifier).Msg("Failed to load grant")
		return false
	}

	if grant.ActiveAt(m.clock.Now()) {
		return true
	}

	if err := m.grants.Delete(ctx, identifier); err != nil && !errors.Is(err, storage.ErrNotFound) {
		m.logger.Warn().Err(err).Str("identifier", identifier).Msg("Failed to delete expired grant")
	}
	return false
}

// Revoke removes a grant before its natural expiry.
func (m *Manager) Revoke(ctx context.Context, identifier string) error {
	return m.grants.Delete(ctx, identifier)
}

// List returns all grants still live at the current instant.
func (m *Manager) List(ctx context.Context) ([]storage.UnlockGrant, error) {
	grants, err := m.grants.List(ctx)
	if err != nil {
		return nil, err
	}
	now := m.clock.Now()
	live := grants[:0]
	for _, grant := range grants {
		if grant.ActiveAt(now) {
			live = append(live, grant)
		}
	}
	return live, nil
}

// SweepExpired deletes lapsed grants. Called by the cleanup job for storage
// hygiene only.
func (m *Manager) SweepExpired(ctx context.Context) (int, error) {
	grants, err := m.grants.List(ctx)
	if err != nil {
		return 0, err
	}

	now := m.clock.Now()
	deleted := 0
	for _, grant := range grants {
		if grant.ActiveAt(now) {
			continue
		}
		if err := m.grants.Delete(ctx, grant.Identifier); err != nil && !errors.Is(err, storage.ErrNotFound) {
			return deleted, err
		}
		deleted++
	}
	return deleted, nil
}
