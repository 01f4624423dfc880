package engine

import "github.com/offmode/brickd/internal/storage"

// DeviceIdentifier is the grant identifier that suppresses whole-device
// enforcement, used for the post-override breathing room on device-scope
// sessions.
const DeviceIdentifier = "*"

// Decision is one enforcement instruction for the external blocking overlay.
// Device-scope decisions have an empty Identifier.
type Decision struct {
	Scope      storage.ScopeKind        `json:"scope"`
	Identifier string                   `json:"identifier,omitempty"`
	Blocked    bool                     `json:"blocked"`
	SessionID  string                   `json:"session_id,omitempty"`
	GoalID     string                   `json:"goal_id,omitempty"`
	Challenge  *storage.ChallengeConfig `json:"challenge,omitempty"`
}

// key identifies the decision target for change diffing.
func (d Decision) key() string {
	if d.Scope == storage.ScopeDevice {
		return "device"
	}
	return "id:" + d.Identifier
}

// Sink receives enforcement changes. It is the boundary to the external
// overlay/blocking consumer; only changed decisions are pushed.
type Sink interface {
	OnEnforcementChanged(decision Decision)
}

// SinkFunc adapts a function to the Sink interface.
type SinkFunc func(Decision)

// OnEnforcementChanged calls f(decision).
func (f SinkFunc) OnEnforcementChanged(decision Decision) { f(decision) }

// NopSink discards all enforcement changes.
type NopSink struct{}

// OnEnforcementChanged does nothing.
func (NopSink) OnEnforcementChanged(Decision) {}
