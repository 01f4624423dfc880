// Package engine implements the session state machine: it owns the single
// active-session record, derives enforcement decisions on each tick, and
// persists every transition before advancing in-memory state.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/metrics"
	"github.com/offmode/brickd/internal/schedule"
	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/unlock"
)

const accessedCacheSize = 512

// Config holds engine tunables.
type Config struct {
	// CooldownMinutes suppresses re-arming of a recurring schedule after
	// an emergency override.
	CooldownMinutes int

	// OverrideGrantMinutes is the default unlock grant issued alongside a
	// successful override so the next tick does not re-block immediately.
	OverrideGrantMinutes int

	// RepeatedActionCount is the challenge applied to sessions created
	// without one: tap-to-confirm that many times.
	RepeatedActionCount int
}

// Engine coordinates schedules, grants, exemptions and goals into
// enforcement decisions.
type Engine struct {
	sessions  storage.SessionStore
	active    storage.ActiveStore
	logs      storage.LogStore
	essential *essential.Registry
	grants    *unlock.Manager
	goals     *goal.Ledger
	locks     *lock.Manager
	clock     clock.Clock
	sink      Sink
	cfg       Config
	logger    zerolog.Logger

	mu      sync.Mutex
	current *storage.ActiveSession
	// accessed dedupes audit writes of identifiers seen during the current
	// window; it is never consulted for enforcement decisions.
	accessed *lru.Cache[string, struct{}]
	last     map[string]Decision
}

// New creates the engine and recovers runtime state from storage. A session
// whose window lapsed while the process was down is completed on the first
// tick, never replayed.
func New(
	store storage.Store,
	registry *essential.Registry,
	grants *unlock.Manager,
	goals *goal.Ledger,
	locks *lock.Manager,
	clk clock.Clock,
	sink Sink,
	cfg Config,
	logger zerolog.Logger,
) (*Engine, error) {
	if cfg.CooldownMinutes <= 0 {
		cfg.CooldownMinutes = 10
	}
	if cfg.OverrideGrantMinutes < 0 {
		cfg.OverrideGrantMinutes = 0
	}
	if cfg.RepeatedActionCount <= 0 {
		cfg.RepeatedActionCount = 500
	}
	if sink == nil {
		sink = NopSink{}
	}

	accessed, err := lru.New[string, struct{}](accessedCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create access cache: %w", err)
	}

	e := &Engine{
		sessions:  store.Sessions(),
		active:    store.Active(),
		logs:      store.Logs(),
		essential: registry,
		grants:    grants,
		goals:     goals,
		locks:     locks,
		clock:     clk,
		sink:      sink,
		cfg:       cfg,
		logger:    logger.With().Str("component", "engine").Logger(),
		accessed:  accessed,
		last:      make(map[string]Decision),
	}

	ctx := context.Background()
	if err := e.recover(ctx); err != nil {
		return nil, err
	}
	if _, err := locks.ClearExpired(ctx); err != nil {
		return nil, fmt.Errorf("clear expired locks: %w", err)
	}
	return e, nil
}

func (e *Engine) recover(ctx context.Context) error {
	active, err := e.active.Get(ctx)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("load active session: %w", err)
	}

	if _, err := e.sessions.Get(ctx, active.SessionID); errors.Is(err, storage.ErrNotFound) {
		// The definition vanished out from under the runtime record.
		e.logger.Warn().Str("session_id", active.SessionID).Msg("Active record references missing session, clearing")
		e.closeOrphanedEntry(ctx, active.LogEntryID)
		return e.active.Clear(ctx)
	} else if err != nil {
		return fmt.Errorf("load session %s: %w", active.SessionID, err)
	}

	e.current = active
	metrics.EnforcementActive.Set(1)
	e.logger.Info().
		Str("session_id", active.SessionID).
		Time("window_end", active.WindowEnd).
		Msg("Recovered enforced session")
	return nil
}

func (e *Engine) closeOrphanedEntry(ctx context.Context, entryID string) {
	entry, err := e.logs.Get(ctx, entryID)
	if err != nil {
		return
	}
	now := e.clock.Now()
	entry.EndedAt = &now
	entry.ActualSeconds = int64(now.Sub(entry.StartedAt).Seconds())
	entry.Status = storage.StatusInterrupted
	if err := e.logs.Update(ctx, *entry); err != nil {
		e.logger.Error().Err(err).Str("entry_id", entryID).Msg("Failed to close orphaned log entry")
	}
}

// CreateSession validates and persists a new session definition. The engine
// never allows a session without an escape hatch, so AllowOverride is forced
// on.
func (e *Engine) CreateSession(ctx context.Context, session storage.Session) (*storage.Session, error) {
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	session.AllowOverride = true
	if session.Challenge.Kind == "" {
		session.Challenge = storage.ChallengeConfig{
			Kind:  storage.ChallengeRepeatedAction,
			Param: e.cfg.RepeatedActionCount,
		}
	}
	if err := validateSession(&session); err != nil {
		return nil, err
	}

	now := e.clock.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	if err := e.sessions.Upsert(ctx, session); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}
	e.logger.Info().
		Str("session_id", session.ID).
		Str("kind", string(session.Kind)).
		Msg("Session created")
	return &session, nil
}

// UpdateSession replaces the definition fields of a stored session. Runtime
// fields (lock, counters, cooldown) are preserved; a locked session rejects
// the edit outright.
func (e *Engine) UpdateSession(ctx context.Context, session storage.Session) error {
	if err := e.locks.Guard(ctx, session.ID); err != nil {
		return err
	}
	existing, err := e.sessions.Get(ctx, session.ID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	session.AllowOverride = true
	if err := validateSession(&session); err != nil {
		return err
	}

	session.Lock = existing.Lock
	session.CancelledUntil = existing.CancelledUntil
	session.CompletedCount = existing.CompletedCount
	session.OverrideCount = existing.OverrideCount
	session.LastCompletedAt = existing.LastCompletedAt
	session.CreatedAt = existing.CreatedAt
	session.UpdatedAt = e.clock.Now()

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.SessionID == session.ID && !session.Enabled {
		return ErrSessionEnforced
	}
	if err := e.sessions.Upsert(ctx, session); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// DeleteSession removes a session definition. It refuses while the session
// is locked or currently enforced.
func (e *Engine) DeleteSession(ctx context.Context, sessionID string) error {
	if err := e.locks.Guard(ctx, sessionID); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current != nil && e.current.SessionID == sessionID {
		return ErrSessionEnforced
	}
	return e.sessions.Delete(ctx, sessionID)
}

// GetSession returns a stored session definition.
func (e *Engine) GetSession(ctx context.Context, sessionID string) (*storage.Session, error) {
	return e.sessions.Get(ctx, sessionID)
}

// ListSessions returns all stored session definitions.
func (e *Engine) ListSessions(ctx context.Context) ([]storage.Session, error) {
	return e.sessions.List(ctx)
}

// Current returns a copy of the active runtime record, or nil when nothing
// is enforced.
func (e *Engine) Current() *storage.ActiveSession {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.current == nil {
		return nil
	}
	current := *e.current
	return &current
}

// StartSession begins enforcement of a session by explicit user action.
// Duration sessions start immediately; a recurring session may be started
// manually only while inside its scheduled window.
func (e *Engine) StartSession(ctx context.Context, sessionID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}
	if !session.Enabled {
		return &ValidationError{Field: "enabled", Reason: "session is disabled"}
	}

	now := e.clock.Now()
	if e.current != nil {
		return ErrAlreadyActive
	}
	if session.CancelledUntil.After(now) {
		return ErrOnCooldown
	}

	var windowStart, windowEnd time.Time
	switch session.Kind {
	case storage.KindDuration:
		windowStart = now
		windowEnd = now.Add(time.Duration(session.Duration.Minutes) * time.Minute)
	case storage.KindRecurring:
		spec := session.Window
		if !spec.Days.ActiveOn(now) || !spec.Window.Contains(now) {
			return &ValidationError{Field: "window", Reason: "not inside the scheduled window"}
		}
		windowStart = spec.Window.StartOn(now)
		windowEnd = spec.Window.EndAfter(now)
	default:
		return &ValidationError{Field: "kind", Reason: "unknown session kind"}
	}

	return e.openLocked(ctx, session, windowStart, windowEnd, now)
}

// openLocked persists the active record and the opening log entry. On
// partial failure nothing is observed: the in-memory state only advances
// after both writes succeed.
func (e *Engine) openLocked(ctx context.Context, session *storage.Session, windowStart, windowEnd, now time.Time) error {
	entry := storage.LogEntry{
		ID:               newLogEntryID(now),
		SessionID:        session.ID,
		StartedAt:        now,
		ScheduledSeconds: int64(windowEnd.Sub(windowStart).Seconds()),
		Status:           storage.StatusOngoing,
	}
	if err := e.logs.Append(ctx, entry); err != nil {
		return fmt.Errorf("open log entry: %w", err)
	}

	active := storage.ActiveSession{
		SessionID:   session.ID,
		Enforced:    true,
		WindowStart: windowStart,
		WindowEnd:   windowEnd,
		LogEntryID:  entry.ID,
	}
	if err := e.active.Set(ctx, active); err != nil {
		e.closeOrphanedEntry(ctx, entry.ID)
		return fmt.Errorf("persist active session: %w", err)
	}

	e.current = &active
	e.accessed.Purge()
	metrics.SessionsStarted.WithLabelValues(string(session.Kind)).Inc()
	metrics.EnforcementActive.Set(1)
	e.logger.Info().
		Str("session_id", session.ID).
		Time("window_start", windowStart).
		Time("window_end", windowEnd).
		Msg("Enforcement started")
	return nil
}

// completeLocked closes the open log entry, updates session counters and
// clears the active record. Any persistence failure leaves the in-memory
// state unchanged so the next tick retries the same transition.
func (e *Engine) completeLocked(ctx context.Context, now time.Time, status storage.CompletionStatus, reason string) error {
	current := e.current

	entry, err := e.logs.Get(ctx, current.LogEntryID)
	if err != nil {
		return fmt.Errorf("load open log entry: %w", err)
	}

	end := now
	if status == storage.StatusCompleted && now.After(current.WindowEnd) {
		// Lapsed while the process was down: close at the lawful end.
		end = current.WindowEnd
	}
	entry.EndedAt = &end
	entry.ActualSeconds = int64(end.Sub(entry.StartedAt).Seconds())
	entry.Status = status
	if status == storage.StatusOverridden {
		entry.OverrideReason = reason
		overrideAt := now
		entry.OverrideAt = &overrideAt
	}
	if err := e.logs.Update(ctx, *entry); err != nil {
		return fmt.Errorf("close log entry: %w", err)
	}

	session, err := e.sessions.Get(ctx, current.SessionID)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("load session: %w", err)
	}
	if session != nil {
		switch status {
		case storage.StatusCompleted:
			session.CompletedCount++
			completedAt := end
			session.LastCompletedAt = &completedAt
		case storage.StatusOverridden:
			session.OverrideCount++
			session.CancelledUntil = now.Add(time.Duration(e.cfg.CooldownMinutes) * time.Minute)
		}
		session.UpdatedAt = now
		if err := e.sessions.Upsert(ctx, *session); err != nil {
			return fmt.Errorf("persist session counters: %w", err)
		}
	}

	if err := e.active.Clear(ctx); err != nil {
		return fmt.Errorf("clear active session: %w", err)
	}

	e.current = nil
	e.accessed.Purge()
	metrics.SessionsCompleted.WithLabelValues(string(status)).Inc()
	metrics.EnforcementActive.Set(0)
	e.logger.Info().
		Str("session_id", current.SessionID).
		Str("status", string(status)).
		Msg("Enforcement ended")
	return nil
}

// Override executes an emergency override of the currently enforced session.
// Challenge verification happens in the override controller; by the time
// this runs the user has earned the exit.
func (e *Engine) Override(ctx context.Context, sessionID, reason string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || e.current.SessionID != sessionID {
		return ErrNotEnforced
	}

	session, err := e.sessions.Get(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("load session: %w", err)
	}

	now := e.clock.Now()
	if err := e.completeLocked(ctx, now, storage.StatusOverridden, reason); err != nil {
		return err
	}

	if e.cfg.OverrideGrantMinutes > 0 {
		identifiers := session.Identifiers
		if session.Scope == storage.ScopeDevice {
			identifiers = []string{DeviceIdentifier}
		}
		for _, identifier := range identifiers {
			if err := e.grants.Grant(ctx, identifier, e.cfg.OverrideGrantMinutes); err != nil {
				e.logger.Error().Err(err).Str("identifier", identifier).Msg("Failed to issue post-override grant")
				continue
			}
			metrics.GrantsIssued.Inc()
		}
	}

	metrics.OverridesTotal.WithLabelValues(string(session.Challenge.Kind)).Inc()
	return nil
}

// EvaluateTick is the periodic decision pass. It is idempotent: evaluating
// twice at the same instant, or after an arbitrary suspension, produces the
// decisions a continuous evaluation would have. A tick that cannot take the
// engine lock skips rather than stall.
func (e *Engine) EvaluateTick(ctx context.Context, now time.Time) ([]Decision, error) {
	if !e.mu.TryLock() {
		metrics.TicksSkipped.Inc()
		return nil, ErrTickBusy
	}
	defer e.mu.Unlock()
	metrics.TicksTotal.Inc()

	var sweepErr error
	if _, err := e.goals.CheckExpiry(ctx); err != nil {
		sweepErr = fmt.Errorf("goal expiry sweep: %w", err)
		e.logger.Error().Err(err).Msg("Goal expiry sweep failed")
	}

	if err := e.reconcileLocked(ctx, now); err != nil {
		return nil, err
	}

	decisions, err := e.decisionsLocked(ctx, now)
	if err != nil {
		return nil, err
	}
	e.publishLocked(decisions)
	return decisions, sweepErr
}

// Decisions returns the decision set computed by the most recent tick,
// sorted for stable output.
func (e *Engine) Decisions() []Decision {
	e.mu.Lock()
	defer e.mu.Unlock()

	decisions := make([]Decision, 0, len(e.last))
	for _, d := range e.last {
		decisions = append(decisions, d)
	}
	sort.Slice(decisions, func(i, j int) bool { return decisions[i].key() < decisions[j].key() })
	return decisions
}

// reconcileLocked moves the active record to where a continuous evaluation
// would have left it at now.
func (e *Engine) reconcileLocked(ctx context.Context, now time.Time) error {
	if e.current != nil {
		session, err := e.sessions.Get(ctx, e.current.SessionID)
		if errors.Is(err, storage.ErrNotFound) {
			return e.completeLocked(ctx, now, storage.StatusInterrupted, "")
		}
		if err != nil {
			return fmt.Errorf("load session: %w", err)
		}
		if !session.Enabled {
			return e.completeLocked(ctx, now, storage.StatusInterrupted, "")
		}
		if !now.Before(e.current.WindowEnd) {
			return e.completeLocked(ctx, now, storage.StatusCompleted, "")
		}
		return nil
	}

	// Nothing enforced: look for a recurring window covering this instant.
	sessions, err := e.sessions.ListEnabled(ctx)
	if err != nil {
		return fmt.Errorf("list sessions: %w", err)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })

	for i := range sessions {
		session := &sessions[i]
		if session.Kind != storage.KindRecurring || session.Window == nil {
			continue
		}
		spec := session.Window
		if !spec.Window.Valid() || spec.Days.Validate() != nil {
			continue
		}
		if !spec.Days.ActiveOn(now) || !spec.Window.Contains(now) {
			continue
		}
		if session.CancelledUntil.After(now) {
			continue
		}
		return e.openLocked(ctx, session, spec.Window.StartOn(now), spec.Window.EndAfter(now), now)
	}
	return nil
}

// decisionsLocked derives the per-identifier enforcement set. Exemptions and
// grants are re-checked on every pass, never cached across a window.
func (e *Engine) decisionsLocked(ctx context.Context, now time.Time) ([]Decision, error) {
	decisions := make([]Decision, 0)
	decided := make(map[string]bool)

	if e.current != nil {
		session, err := e.sessions.Get(ctx, e.current.SessionID)
		if err != nil {
			return nil, fmt.Errorf("load session: %w", err)
		}
		challenge := session.Challenge

		switch session.Scope {
		case storage.ScopeDevice:
			blocked := !e.grants.Active(ctx, DeviceIdentifier)
			device := Decision{
				Scope:     storage.ScopeDevice,
				Blocked:   blocked,
				SessionID: session.ID,
			}
			if blocked {
				device.Challenge = &challenge
			}
			decisions = append(decisions, device)
			decided[device.key()] = true

			// Per-identifier allow overlays punch holes in the device
			// block for essentials and live grants.
			apps, err := e.essential.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("list essential apps: %w", err)
			}
			for _, app := range apps {
				if !e.essential.IsExempt(ctx, app.Identifier, session.Kind) {
					continue
				}
				d := Decision{
					Scope:      storage.ScopeIdentifiers,
					Identifier: app.Identifier,
					Blocked:    false,
					SessionID:  session.ID,
				}
				if !decided[d.key()] {
					decisions = append(decisions, d)
					decided[d.key()] = true
				}
			}
			grants, err := e.grants.List(ctx)
			if err != nil {
				return nil, fmt.Errorf("list grants: %w", err)
			}
			for _, grant := range grants {
				if grant.Identifier == DeviceIdentifier {
					continue
				}
				d := Decision{
					Scope:      storage.ScopeIdentifiers,
					Identifier: grant.Identifier,
					Blocked:    false,
					SessionID:  session.ID,
				}
				if !decided[d.key()] {
					decisions = append(decisions, d)
					decided[d.key()] = true
				}
			}

		case storage.ScopeIdentifiers:
			for _, identifier := range session.Identifiers {
				blocked := !e.essential.IsExempt(ctx, identifier, session.Kind) &&
					!e.grants.Active(ctx, identifier)
				d := Decision{
					Scope:      storage.ScopeIdentifiers,
					Identifier: identifier,
					Blocked:    blocked,
					SessionID:  session.ID,
				}
				if blocked {
					d.Challenge = &challenge
				}
				if !decided[d.key()] {
					decisions = append(decisions, d)
					decided[d.key()] = true
				}
			}
		}
	}

	// Goal commitments enforce independently of the active session.
	items, err := e.goals.ActiveItems(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("list goal items: %w", err)
	}
	for _, item := range items {
		blocked := !e.essential.IsExempt(ctx, item.Identifier, item.Kind) &&
			!e.grants.Active(ctx, item.Identifier)
		d := Decision{
			Scope:      storage.ScopeIdentifiers,
			Identifier: item.Identifier,
			Blocked:    blocked,
			GoalID:     item.GoalID,
		}
		if !decided[d.key()] {
			decisions = append(decisions, d)
			decided[d.key()] = true
		}
	}

	return decisions, nil
}

// publishLocked pushes changed decisions to the sink.
func (e *Engine) publishLocked(decisions []Decision) {
	next := make(map[string]Decision, len(decisions))
	for _, d := range decisions {
		next[d.key()] = d
	}

	for key, d := range next {
		prev, seen := e.last[key]
		if (!seen && d.Blocked) || (seen && prev.Blocked != d.Blocked) {
			e.sink.OnEnforcementChanged(d)
			metrics.DecisionChanges.WithLabelValues(strconv.FormatBool(d.Blocked)).Inc()
		}
	}
	for key, prev := range e.last {
		if _, ok := next[key]; ok {
			continue
		}
		if prev.Blocked {
			cleared := prev
			cleared.Blocked = false
			cleared.Challenge = nil
			e.sink.OnEnforcementChanged(cleared)
			metrics.DecisionChanges.WithLabelValues("false").Inc()
		}
	}
	e.last = next
}

// RecordAccess notes that an identifier was used during the current window.
// The accessed set is a write-only analytics trail on the log entry.
func (e *Engine) RecordAccess(ctx context.Context, identifier string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil || identifier == "" {
		return nil
	}
	cacheKey := e.current.LogEntryID + "|" + identifier
	if _, seen := e.accessed.Get(cacheKey); seen {
		return nil
	}

	entry, err := e.logs.Get(ctx, e.current.LogEntryID)
	if err != nil {
		return fmt.Errorf("load open log entry: %w", err)
	}
	entry.Accessed = append(entry.Accessed, identifier)
	if err := e.logs.Update(ctx, *entry); err != nil {
		return fmt.Errorf("record access: %w", err)
	}
	e.accessed.Add(cacheKey, struct{}{})
	return nil
}

// RecordBypassAttempt counts a blocked access attempt on the open log entry.
func (e *Engine) RecordBypassAttempt(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.current == nil {
		return nil
	}
	entry, err := e.logs.Get(ctx, e.current.LogEntryID)
	if err != nil {
		return fmt.Errorf("load open log entry: %w", err)
	}
	entry.BypassAttempts++
	if err := e.logs.Update(ctx, *entry); err != nil {
		return fmt.Errorf("record bypass attempt: %w", err)
	}
	metrics.BypassAttempts.Inc()
	return nil
}

func newLogEntryID(ts time.Time) string {
	return fmt.Sprintf("%020d-%s", ts.UnixNano(), uuid.NewString()[:8])
}

func validateSession(session *storage.Session) error {
	switch session.Kind {
	case storage.KindDuration:
		if session.Duration == nil {
			return &ValidationError{Field: "duration", Reason: "required for duration sessions"}
		}
		if session.Window != nil {
			return &ValidationError{Field: "window", Reason: "not allowed on duration sessions"}
		}
		if session.Duration.Minutes < schedule.MinWindowMinutes {
			return &ValidationError{
				Field:  "duration.minutes",
				Reason: fmt.Sprintf("must be at least %d", schedule.MinWindowMinutes),
			}
		}
	case storage.KindRecurring:
		if session.Window == nil {
			return &ValidationError{Field: "window", Reason: "required for recurring sessions"}
		}
		if session.Duration != nil {
			return &ValidationError{Field: "duration", Reason: "not allowed on recurring sessions"}
		}
		if err := session.Window.Window.Validate(); err != nil {
			return &ValidationError{Field: "window", Reason: err.Error()}
		}
		if err := session.Window.Days.Validate(); err != nil {
			return &ValidationError{Field: "window.days", Reason: err.Error()}
		}
	default:
		return &ValidationError{Field: "kind", Reason: "must be DURATION or RECURRING_WINDOW"}
	}

	switch session.Scope {
	case storage.ScopeDevice:
	case storage.ScopeIdentifiers:
		if len(session.Identifiers) == 0 {
			return &ValidationError{Field: "identifiers", Reason: "required for identifier-scoped sessions"}
		}
	default:
		return &ValidationError{Field: "scope", Reason: "must be DEVICE or IDENTIFIERS"}
	}

	switch session.Challenge.Kind {
	case storage.ChallengeTimedWait, storage.ChallengeRepeatedAction:
		if session.Challenge.Param <= 0 {
			return &ValidationError{Field: "challenge.param", Reason: "must be positive"}
		}
	default:
		return &ValidationError{Field: "challenge.kind", Reason: "must be TIMED_WAIT or REPEATED_ACTION"}
	}

	return nil
}
