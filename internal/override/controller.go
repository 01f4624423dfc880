// Package override runs the emergency-override challenges. A timed-wait
// countdown is persisted so restarting the process does not reset the clock;
// repeated-action progress is deliberately volatile, a restart starts the
// tapping over.
package override

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/storage"
)

var (
	// ErrChallengeIncomplete means the user has not yet earned the override.
	ErrChallengeIncomplete = errors.New("override: challenge not complete")

	// ErrNoCountdown means Remaining or RequestOverride was called for a
	// timed-wait session whose countdown was never begun.
	ErrNoCountdown = errors.New("override: no countdown in progress")

	// ErrCountdownRunning rejects a second BeginCountdown for the same session.
	ErrCountdownRunning = errors.New("override: countdown already running")
)

// Progress reports how far along a challenge is.
type Progress struct {
	Kind      storage.ChallengeKind `json:"kind"`
	Remaining time.Duration         `json:"remaining,omitempty"`
	Confirmed int                   `json:"confirmed,omitempty"`
	Required  int                   `json:"required,omitempty"`
	Complete  bool                  `json:"complete"`
}

// Controller gates engine.Override behind the session's challenge.
type Controller struct {
	engine     *engine.Engine
	countdowns storage.CountdownStore
	clock      clock.Clock
	logger     zerolog.Logger

	mu        sync.Mutex
	confirmed map[string]int
}

// NewController creates the challenge controller.
func NewController(eng *engine.Engine, countdowns storage.CountdownStore, clk clock.Clock, logger zerolog.Logger) *Controller {
	return &Controller{
		engine:     eng,
		countdowns: countdowns,
		clock:      clk,
		logger:     logger.With().Str("component", "override").Logger(),
		confirmed:  make(map[string]int),
	}
}

// BeginCountdown starts the timed wait for a TIMED_WAIT session. The record
// is persisted immediately; the wait keeps running across restarts.
func (c *Controller) BeginCountdown(ctx context.Context, sessionID string) (*Progress, error) {
	session, err := c.engine.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Challenge.Kind != storage.ChallengeTimedWait {
		return nil, fmt.Errorf("override: session %s does not use a timed wait", sessionID)
	}

	if _, err := c.countdowns.Get(ctx, sessionID); err == nil {
		return nil, ErrCountdownRunning
	} else if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load countdown: %w", err)
	}

	now := c.clock.Now()
	countdown := storage.Countdown{
		SessionID:    sessionID,
		StartedAt:    now,
		TotalMinutes: session.Challenge.Param,
	}
	if err := c.countdowns.Set(ctx, countdown); err != nil {
		return nil, fmt.Errorf("persist countdown: %w", err)
	}

	c.logger.Info().
		Str("session_id", sessionID).
		Int("minutes", countdown.TotalMinutes).
		Msg("Override countdown started")
	return &Progress{
		Kind:      storage.ChallengeTimedWait,
		Remaining: countdown.Remaining(now),
	}, nil
}

// CancelCountdown abandons a running timed wait.
func (c *Controller) CancelCountdown(ctx context.Context, sessionID string) error {
	if _, err := c.countdowns.Get(ctx, sessionID); errors.Is(err, storage.ErrNotFound) {
		return ErrNoCountdown
	} else if err != nil {
		return fmt.Errorf("load countdown: %w", err)
	}
	return c.countdowns.Delete(ctx, sessionID)
}

// ConfirmAction records one confirmation toward a REPEATED_ACTION challenge
// and returns the running tally. Progress lives only in memory.
func (c *Controller) ConfirmAction(ctx context.Context, sessionID string) (*Progress, error) {
	session, err := c.engine.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if session.Challenge.Kind != storage.ChallengeRepeatedAction {
		return nil, fmt.Errorf("override: session %s does not use a repeated action", sessionID)
	}

	c.mu.Lock()
	c.confirmed[sessionID]++
	confirmed := c.confirmed[sessionID]
	c.mu.Unlock()

	return &Progress{
		Kind:      storage.ChallengeRepeatedAction,
		Confirmed: confirmed,
		Required:  session.Challenge.Param,
		Complete:  confirmed >= session.Challenge.Param,
	}, nil
}

// Status reports current challenge progress without advancing it.
func (c *Controller) Status(ctx context.Context, sessionID string) (*Progress, error) {
	session, err := c.engine.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}

	switch session.Challenge.Kind {
	case storage.ChallengeTimedWait:
		countdown, err := c.countdowns.Get(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrNoCountdown
		}
		if err != nil {
			return nil, fmt.Errorf("load countdown: %w", err)
		}
		remaining := countdown.Remaining(c.clock.Now())
		return &Progress{
			Kind:      storage.ChallengeTimedWait,
			Remaining: remaining,
			Complete:  remaining == 0,
		}, nil

	case storage.ChallengeRepeatedAction:
		c.mu.Lock()
		confirmed := c.confirmed[sessionID]
		c.mu.Unlock()
		return &Progress{
			Kind:      storage.ChallengeRepeatedAction,
			Confirmed: confirmed,
			Required:  session.Challenge.Param,
			Complete:  confirmed >= session.Challenge.Param,
		}, nil

	default:
		return nil, fmt.Errorf("override: unknown challenge kind %q", session.Challenge.Kind)
	}
}

// RequestOverride executes the override once the session's challenge is
// satisfied. On success the challenge state is reset.
func (c *Controller) RequestOverride(ctx context.Context, sessionID, reason string) error {
	session, err := c.engine.GetSession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	switch session.Challenge.Kind {
	case storage.ChallengeTimedWait:
		countdown, err := c.countdowns.Get(ctx, sessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return ErrNoCountdown
		}
		if err != nil {
			return fmt.Errorf("load countdown: %w", err)
		}
		if countdown.Remaining(c.clock.Now()) > 0 {
			return ErrChallengeIncomplete
		}
		if err := c.engine.Override(ctx, sessionID, reason); err != nil {
			return err
		}
		if err := c.countdowns.Delete(ctx, sessionID); err != nil {
			c.logger.Error().Err(err).Str("session_id", sessionID).Msg("Failed to clear spent countdown")
		}

	case storage.ChallengeRepeatedAction:
		c.mu.Lock()
		confirmed := c.confirmed[sessionID]
		c.mu.Unlock()
		if confirmed < session.Challenge.Param {
			return ErrChallengeIncomplete
		}
		if err := c.engine.Override(ctx, sessionID, reason); err != nil {
			return err
		}
		c.mu.Lock()
		delete(c.confirmed, sessionID)
		c.mu.Unlock()

	default:
		return fmt.Errorf("override: unknown challenge kind %q", session.Challenge.Kind)
	}

	c.logger.Info().
		Str("session_id", sessionID).
		Str("challenge", string(session.Challenge.Kind)).
		Msg("Emergency override executed")
	return nil
}

// SweepStale drops countdowns whose session is no longer enforced, so an
// abandoned wait does not linger as a pre-paid override for the next window.
func (c *Controller) SweepStale(ctx context.Context) (int, error) {
	countdowns, err := c.countdowns.List(ctx)
	if err != nil {
		return 0, fmt.Errorf("list countdowns: %w", err)
	}

	current := c.engine.Current()
	removed := 0
	for _, countdown := range countdowns {
		if current != nil && current.SessionID == countdown.SessionID {
			continue
		}
		if err := c.countdowns.Delete(ctx, countdown.SessionID); err != nil {
			return removed, fmt.Errorf("delete countdown %s: %w", countdown.SessionID, err)
		}
		removed++
	}
	if removed > 0 {
		c.logger.Debug().Int("removed", removed).Msg("Swept stale countdowns")
	}
	return removed, nil
}
