// Package essential maintains the always-allowed identifier registry.
// Exemptions are evaluated per tick so edits take effect immediately on any
// running session.
package essential

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/storage"
)

// ErrSystemDefined is returned on attempts to delete a built-in entry.
var ErrSystemDefined = errors.New("essential: system-defined entry cannot be removed")

// Registry manages essential-app entries.
type Registry struct {
	apps   storage.EssentialStore
	logger zerolog.Logger
}

// NewRegistry creates a registry over the given store.
func NewRegistry(apps storage.EssentialStore, logger zerolog.Logger) *Registry {
	return &Registry{
		apps:   apps,
		logger: logger.With().Str("component", "essential").Logger(),
	}
}

// systemDefaults are installed on first open. The device must never lose the
// ability to place a call or read the time, whatever session is enforced.
var systemDefaults = []storage.EssentialApp{
	{Identifier: "com.android.dialer", DisplayName: "Phone", SystemDefined: true},
	{Identifier: "com.android.mms", DisplayName: "Messages", SystemDefined: true},
	{Identifier: "com.android.deskclock", DisplayName: "Clock", SystemDefined: true},
	{Identifier: "com.android.settings", DisplayName: "Settings", SystemDefined: true},
}

// Seed installs the system-defined entries that are missing. Existing
// entries, including user-edited kind scopes, are left untouched.
func (r *Registry) Seed(ctx context.Context) error {
	for _, app := range systemDefaults {
		_, err := r.apps.Get(ctx, app.Identifier)
		if err == nil {
			continue
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("check essential %s: %w", app.Identifier, err)
		}
		if err := r.apps.Upsert(ctx, app); err != nil {
			return fmt.Errorf("seed essential %s: %w", app.Identifier, err)
		}
	}
	r.logger.Debug().Int("count", len(systemDefaults)).Msg("System essential apps ensured")
	return nil
}

// IsExempt reports whether the identifier is exempt from enforcement under
// the given session kind. An entry with no kind scoping exempts under every
// kind.
func (r *Registry) IsExempt(ctx context.Context, identifier string, kind storage.SessionKind) bool {
	app, err := r.apps.Get(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		return false
	}
	if err != nil {
		r.logger.Error().Err(err).Str("identifier", identifier).Msg("Failed to load essential entry")
		return false
	}

	if len(app.AllowedKinds) == 0 {
		return true
	}
	for _, k := range app.AllowedKinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Add upserts a user-defined entry.
func (r *Registry) Add(ctx context.Context, app storage.EssentialApp) error {
	if app.Identifier == "" {
		return fmt.Errorf("essential identifier is empty")
	}
	app.SystemDefined = false
	return r.apps.Upsert(ctx, app)
}

// Remove deletes an entry; system-defined entries are refused.
func (r *Registry) Remove(ctx context.Context, identifier string) error {
	app, err := r.apps.Get(ctx, identifier)
	if err != nil {
		return err
	}
	if app.SystemDefined {
		return ErrSystemDefined
	}
	return r.apps.Delete(ctx, identifier)
}

// List returns all registry entries.
func (r *Registry) List(ctx context.Context) ([]storage.EssentialApp, error) {
	return r.apps.List(ctx)
}
