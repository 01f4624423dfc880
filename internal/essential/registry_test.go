package essential

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/storage/bolt"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	store, err := bolt.Open(filepath.Join(t.TempDir(), "essential.bolt"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewRegistry(store.Essential(), zerolog.Nop())
}

func TestSeedAndSystemProtection(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if err := r.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}
	// Seeding twice is a no-op.
	if err := r.Seed(ctx); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	apps, err := r.List(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(apps) != len(systemDefaults) {
		t.Errorf("seeded %d entries, want %d", len(apps), len(systemDefaults))
	}

	err = r.Remove(ctx, "com.android.dialer")
	if !errors.Is(err, ErrSystemDefined) {
		t.Errorf("removing system entry: err = %v, want ErrSystemDefined", err)
	}
}

func TestIsExempt(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	entries := []storage.EssentialApp{
		{Identifier: "com.phone", DisplayName: "Phone"},
		{Identifier: "com.podcasts", DisplayName: "Podcasts",
			AllowedKinds: []storage.SessionKind{storage.KindDuration}},
	}
	for _, app := range entries {
		if err := r.Add(ctx, app); err != nil {
			t.Fatalf("add %s: %v", app.Identifier, err)
		}
	}

	tests := []struct {
		name       string
		identifier string
		kind       storage.SessionKind
		want       bool
	}{
		{"unscoped entry, duration session", "com.phone", storage.KindDuration, true},
		{"unscoped entry, recurring session", "com.phone", storage.KindRecurring, true},
		{"scoped entry, matching kind", "com.podcasts", storage.KindDuration, true},
		{"scoped entry, other kind", "com.podcasts", storage.KindRecurring, false},
		{"unknown identifier", "com.unknown", storage.KindDuration, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := r.IsExempt(ctx, tt.identifier, tt.kind); got != tt.want {
				t.Errorf("IsExempt(%s, %s) = %v, want %v", tt.identifier, tt.kind, got, tt.want)
			}
		})
	}
}

func TestRegistryEditTakesEffectImmediately(t *testing.T) {
	r := newTestRegistry(t)
	ctx := context.Background()

	if r.IsExempt(ctx, "com.notes", storage.KindDuration) {
		t.Fatal("entry should not exist yet")
	}
	if err := r.Add(ctx, storage.EssentialApp{Identifier: "com.notes"}); err != nil {
		t.Fatalf("add: %v", err)
	}
	if !r.IsExempt(ctx, "com.notes", storage.KindDuration) {
		t.Error("exemption should apply on the very next check")
	}
	if err := r.Remove(ctx, "com.notes"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if r.IsExempt(ctx, "com.notes", storage.KindDuration) {
		t.Error("removal should apply on the very next check")
	}
}
