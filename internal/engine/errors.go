package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrAlreadyActive is returned by StartSession while another session
	// holds the active record.
	ErrAlreadyActive = errors.New("engine: another session is already enforced")

	// ErrOnCooldown is returned while a session's post-override cooldown
	// suppresses (re-)arming.
	ErrOnCooldown = errors.New("engine: session is on post-override cooldown")

	// ErrNotEnforced is returned when an operation requires the session to
	// be the currently enforced one.
	ErrNotEnforced = errors.New("engine: session is not currently enforced")

	// ErrSessionEnforced is returned when deleting or disabling the session
	// that is currently enforced.
	ErrSessionEnforced = errors.New("engine: session is currently enforced")

	// ErrTickBusy is returned when an evaluation tick cannot acquire the
	// engine lock. The caller skips and retries on the next cycle.
	ErrTickBusy = errors.New("engine: evaluation already in progress")
)

// ValidationError rejects a malformed session definition before any state
// is mutated.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("engine: invalid session: %s %s", e.Field, e.Reason)
}
