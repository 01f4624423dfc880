// Package goal implements long-term commitments: append-only sets of
// restricted identifiers that cannot be weakened until the goal runs out.
package goal

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/storage"
)

var (
	// ErrCommitmentViolation is returned by any attempt to remove an item
	// from a goal. Removal is unsupported on purpose, not unimplemented.
	ErrCommitmentViolation = errors.New("goal: removing a committed item is not supported")

	// ErrGoalExpired is returned when adding to a goal past its end time.
	ErrGoalExpired = errors.New("goal: goal has expired")

	// ErrGoalInactive is returned when adding to a completed goal.
	ErrGoalInactive = errors.New("goal: goal is not active")

	// ErrGoalActive is returned when deleting a goal before it completes.
	ErrGoalActive = errors.New("goal: active goal cannot be deleted")

	// ErrDuplicateItem is returned when an identifier is already committed
	// within the same goal.
	ErrDuplicateItem = errors.New("goal: identifier already committed")

	// ErrEmptyGoal is returned when creating a goal with no items.
	ErrEmptyGoal = errors.New("goal: at least one item is required")
)

// Item is the caller-facing shape of a commitment entry.
type Item struct {
	Name       string
	Kind       storage.SessionKind
	Identifier string
}

// Ledger manages goals and their append-only items.
type Ledger struct {
	goals  storage.GoalStore
	clock  clock.Clock
	logger zerolog.Logger
}

// NewLedger creates a goal ledger.
func NewLedger(goals storage.GoalStore, clk clock.Clock, logger zerolog.Logger) *Ledger {
	return &Ledger{
		goals:  goals,
		clock:  clk,
		logger: logger.With().Str("component", "goal").Logger(),
	}
}

// Create starts a new goal running for durationDays with the initial items.
func (l *Ledger) Create(ctx context.Context, durationDays int, items []Item) (*storage.Goal, error) {
	if len(items) == 0 {
		return nil, ErrEmptyGoal
	}
	if durationDays <= 0 {
		return nil, fmt.Errorf("goal duration must be positive, got %d days", durationDays)
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		if item.Identifier == "" {
			return nil, fmt.Errorf("goal item identifier is empty")
		}
		if seen[item.Identifier] {
			return nil, ErrDuplicateItem
		}
		seen[item.Identifier] = true
	}

	now := l.clock.Now()
	goal := storage.Goal{
		ID:           uuid.NewString(),
		DurationDays: durationDays,
		StartedAt:    now,
		EndsAt:       now.AddDate(0, 0, durationDays),
		Active:       true,
	}
	if err := l.goals.Upsert(ctx, goal); err != nil {
		return nil, fmt.Errorf("persist goal: %w", err)
	}

	for _, item := range items {
		record := storage.GoalItem{
			GoalID:     goal.ID,
			Name:       item.Name,
			Kind:       item.Kind,
			Identifier: item.Identifier,
			AddedAt:    now,
		}
		if err := l.goals.AddItem(ctx, record); err != nil {
			return nil, fmt.Errorf("persist goal item: %w", err)
		}
	}

	l.logger.Info().
		Str("goal_id", goal.ID).
		Int("days", durationDays).
		Int("items", len(items)).
		Msg("Goal created")
	return &goal, nil
}

// AddItem appends a new identifier to an active, unexpired goal.
func (l *Ledger) AddItem(ctx context.Context, goalID string, item Item) error {
	if item.Identifier == "" {
		return fmt.Errorf("goal item identifier is empty")
	}

	goal, err := l.goals.Get(ctx, goalID)
	if err != nil {
		return fmt.Errorf("load goal: %w", err)
	}
	if !goal.Active {
		return ErrGoalInactive
	}

	now := l.clock.Now()
	if !now.Before(goal.EndsAt) {
		return ErrGoalExpired
	}

	existing, err := l.goals.ListItems(ctx, goalID)
	if err != nil {
		return fmt.Errorf("list goal items: %w", err)
	}
	for _, it := range existing {
		if it.Identifier == item.Identifier {
			return ErrDuplicateItem
		}
	}

	record := storage.GoalItem{
		GoalID:     goalID,
		Name:       item.Name,
		Kind:       item.Kind,
		Identifier: item.Identifier,
		AddedAt:    now,
	}
	if err := l.goals.AddItem(ctx, record); err != nil {
		return fmt.Errorf("persist goal item: %w", err)
	}

	l.logger.Info().
		Str("goal_id", goalID).
		Str("identifier", item.Identifier).
		Msg("Goal item added")
	return nil
}

// RemoveItem always fails. Retracting a commitment is the one operation this
// system refuses to support, even for expired or inactive goals.
func (l *Ledger) RemoveItem(_ context.Context, _ string, _ string) error {
	return ErrCommitmentViolation
}

// CheckExpiry marks every active goal whose end time has passed as completed.
// Run on each tick; the transition is idempotent.
func (l *Ledger) CheckExpiry(ctx context.Context) (int, error) {
	goals, err := l.goals.List(ctx)
	if err != nil {
		return 0, err
	}

	now := l.clock.Now()
	completed := 0
	for _, goal := range goals {
		if !goal.Active || goal.EndsAt.After(now) {
			continue
		}
		goal.Active = false
		completedAt := now
		goal.CompletedAt = &completedAt
		if err := l.goals.Upsert(ctx, goal); err != nil {
			return completed, fmt.Errorf("persist goal completion: %w", err)
		}
		completed++
		l.logger.Info().Str("goal_id", goal.ID).Msg("Goal completed")
	}
	return completed, nil
}

// Delete removes a goal and its items, allowed only after completion.
func (l *Ledger) Delete(ctx context.Context, goalID string) error {
	goal, err := l.goals.Get(ctx, goalID)
	if err != nil {
		return fmt.Errorf("load goal: %w", err)
	}
	if goal.Active {
		return ErrGoalActive
	}
	if err := l.goals.DeleteItems(ctx, goalID); err != nil {
		return fmt.Errorf("delete goal items: %w", err)
	}
	if err := l.goals.Delete(ctx, goalID); err != nil {
		return fmt.Errorf("delete goal: %w", err)
	}
	return nil
}

// Get returns a goal with its items.
func (l *Ledger) Get(ctx context.Context, goalID string) (*storage.Goal, []storage.GoalItem, error) {
	goal, err := l.goals.Get(ctx, goalID)
	if err != nil {
		return nil, nil, err
	}
	items, err := l.goals.ListItems(ctx, goalID)
	if err != nil {
		return nil, nil, err
	}
	return goal, items, nil
}

// List returns all goals.
func (l *Ledger) List(ctx context.Context) ([]storage.Goal, error) {
	return l.goals.List(ctx)
}

// ActiveItems returns the items committed by goals still running at now.
// The engine folds these into its per-tick enforcement set.
func (l *Ledger) ActiveItems(ctx context.Context, now time.Time) ([]storage.GoalItem, error) {
	goals, err := l.goals.List(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]storage.GoalItem, 0)
	for _, goal := range goals {
		if !goal.Active || !goal.EndsAt.After(now) {
			continue
		}
		goalItems, err := l.goals.ListItems(ctx, goal.ID)
		if err != nil {
			return nil, err
		}
		items = append(items, goalItems...)
	}
	return items, nil
}
