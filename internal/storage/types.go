package storage

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/offmode/brickd/internal/schedule"
)

// SessionKind distinguishes one-shot duration sessions from recurring
// scheduled windows.
type SessionKind string

const (
	KindDuration  SessionKind = "DURATION"
	KindRecurring SessionKind = "RECURRING_WINDOW"
)

// UnmarshalJSON implements json.Unmarshaler to normalize the kind to uppercase.
func (k *SessionKind) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}

	normalized := SessionKind(strings.ToUpper(s))
	switch normalized {
	case KindDuration, KindRecurring:
		*k = normalized
		return nil
	default:
		return fmt.Errorf("invalid session kind: %s (must be DURATION or RECURRING_WINDOW)", s)
	}
}

// MarshalJSON implements json.Marshaler to ensure uppercase output.
func (k SessionKind) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(k))
}

// ScopeKind describes what a session restricts.
type ScopeKind string

const (
	ScopeDevice      ScopeKind = "DEVICE"
	ScopeIdentifiers ScopeKind = "IDENTIFIERS"
)

// ChallengeKind selects the emergency-override challenge.
type ChallengeKind string

const (
	ChallengeTimedWait      ChallengeKind = "TIMED_WAIT"
	ChallengeRepeatedAction ChallengeKind = "REPEATED_ACTION"
)

// ChallengeConfig configures the override challenge of a session. Param is
// minutes for TIMED_WAIT and a confirmation count for REPEATED_ACTION.
type ChallengeConfig struct {
	Kind  ChallengeKind `json:"kind"`
	Param int           `json:"param"`
}

// DurationSpec is present only on DURATION sessions.
type DurationSpec struct {
	Minutes int `json:"minutes"`
}

// WindowSpec is present only on RECURRING_WINDOW sessions.
type WindowSpec struct {
	Window schedule.Window `json:"window"`
	Days   schedule.DaySet `json:"days"`
}

// LockState is the commitment-lock portion of a session. Phrase is stored
// verbatim: the lock is a deterrent against the device owner, not a secret
// kept from an adversary.
type LockState struct {
	Phrase    string    `json:"phrase"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is a named restriction definition. Exactly one of Duration or
// Window is set, matching Kind.
type Session struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Kind        SessionKind   `json:"kind"`
	Duration    *DurationSpec `json:"duration,omitempty"`
	Window      *WindowSpec   `json:"window,omitempty"`
	Scope       ScopeKind     `json:"scope"`
	Identifiers []string      `json:"identifiers,omitempty"`

	Enabled       bool            `json:"enabled"`
	Challenge     ChallengeConfig `json:"challenge"`
	AllowOverride bool            `json:"allow_override"`

	Lock *LockState `json:"lock,omitempty"`

	// CancelledUntil suppresses automatic (re-)arming after an emergency
	// override until the cooldown elapses.
	CancelledUntil time.Time `json:"cancelled_until,omitempty"`

	CompletedCount  int        `json:"completed_count"`
	OverrideCount   int        `json:"override_count"`
	LastCompletedAt *time.Time `json:"last_completed_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Locked reports whether the commitment lock is in force at now.
func (s *Session) Locked(now time.Time) bool {
	return s.Lock != nil && s.Lock.ExpiresAt.After(now)
}

// ActiveSession is the single runtime record for the session currently being
// enforced. At most one exists system-wide; the engine, not the store,
// guarantees that.
type ActiveSession struct {
	SessionID   string    `json:"session_id"`
	Enforced    bool      `json:"enforced"`
	WindowStart time.Time `json:"window_start"`
	WindowEnd   time.Time `json:"window_end"`
	LogEntryID  string    `json:"log_entry_id"`
}

// CompletionStatus records how an enforcement window ended.
type CompletionStatus string

const (
	StatusOngoing     CompletionStatus = "ONGOING"
	StatusCompleted   CompletionStatus = "COMPLETED"
	StatusOverridden  CompletionStatus = "EMERGENCY_OVERRIDE"
	StatusInterrupted CompletionStatus = "INTERRUPTED"
)

// LogEntry is the immutable audit record of one enforcement window. The
// accessed-identifier set and bypass counter are a write-only analytics
// trail; nothing in the engine reads them back.
type LogEntry struct {
	ID               string           `json:"id"`
	SessionID        string           `json:"session_id"`
	StartedAt        time.Time        `json:"started_at"`
	EndedAt          *time.Time       `json:"ended_at,omitempty"`
	ScheduledSeconds int64            `json:"scheduled_seconds"`
	ActualSeconds    int64            `json:"actual_seconds"`
	Status           CompletionStatus `json:"status"`
	OverrideReason   string           `json:"override_reason,omitempty"`
	OverrideAt       *time.Time       `json:"override_at,omitempty"`
	BypassAttempts   int              `json:"bypass_attempts"`
	Accessed         []string         `json:"accessed,omitempty"`
}

// EssentialApp is an always-allowed identifier, optionally scoped to
// specific session kinds. An empty AllowedKinds set exempts under every kind.
type EssentialApp struct {
	Identifier    string        `json:"identifier"`
	DisplayName   string        `json:"display_name"`
	SystemDefined bool          `json:"system_defined"`
	AllowedKinds  []SessionKind `json:"allowed_kinds,omitempty"`
}

// UnlockGrant is a time-boxed per-identifier exemption, orthogonal to
// session state. Expiry is always re-derived from GrantedAt, never from a
// running timer.
type UnlockGrant struct {
	Identifier      string    `json:"identifier"`
	GrantedAt       time.Time `json:"granted_at"`
	DurationMinutes int       `json:"duration_minutes"`
}

// ExpiresAt returns the instant the grant lapses.
func (g *UnlockGrant) ExpiresAt() time.Time {
	return g.GrantedAt.Add(time.Duration(g.DurationMinutes) * time.Minute)
}

// ActiveAt reports whether the grant is live at now.
func (g *UnlockGrant) ActiveAt(now time.Time) bool {
	return now.Before(g.ExpiresAt())
}

// Goal is a long-term, append-only commitment.
type Goal struct {
	ID           string     `json:"id"`
	DurationDays int        `json:"duration_days"`
	StartedAt    time.Time  `json:"started_at"`
	EndsAt       time.Time  `json:"ends_at"`
	Active       bool       `json:"active"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// GoalItem is one committed identifier inside a goal. Items can be added
// while the goal is active but never removed.
type GoalItem struct {
	GoalID     string      `json:"goal_id"`
	Name       string      `json:"name"`
	Kind       SessionKind `json:"kind"`
	Identifier string      `json:"identifier"`
	AddedAt    time.Time   `json:"added_at"`
}

// Countdown is the persisted state of a timed-wait override challenge.
// Remaining time is always recomputed from StartedAt so the countdown
// survives process restarts.
type Countdown struct {
	SessionID    string    `json:"session_id"`
	StartedAt    time.Time `json:"started_at"`
	TotalMinutes int       `json:"total_minutes"`
}

// Remaining returns how much wait is left at now, floored at zero.
func (c *Countdown) Remaining(now time.Time) time.Duration {
	remaining := time.Duration(c.TotalMinutes)*time.Minute - now.Sub(c.StartedAt)
	if remaining < 0 {
		return 0
	}
	return remaining
}
