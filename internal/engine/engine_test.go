package engine

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/schedule"
	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/storage/bolt"
	"github.com/offmode/brickd/internal/unlock"
)

type recordingSink struct {
	mu      sync.Mutex
	changes []Decision
}

func (s *recordingSink) OnEnforcementChanged(d Decision) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.changes = append(s.changes, d)
}

func (s *recordingSink) drain() []Decision {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.changes
	s.changes = nil
	return out
}

type testFixture struct {
	engine *Engine
	store  *bolt.Store
	clk    *clock.Test
	sink   *recordingSink
	path   string
}

func newFixture(t *testing.T, at time.Time) *testFixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "brickd.db")
	store, err := bolt.Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	clk := clock.NewTest(at)
	sink := &recordingSink{}
	eng, err := buildEngine(store, clk, sink)
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	return &testFixture{engine: eng, store: store, clk: clk, sink: sink, path: path}
}

func buildEngine(store storage.Store, clk clock.Clock, sink Sink) (*Engine, error) {
	logger := zerolog.Nop()
	registry := essential.NewRegistry(store.Essential(), logger)
	grants := unlock.NewManager(store.Grants(), clk, logger)
	goals := goal.NewLedger(store.Goals(), clk, logger)
	locks := lock.NewManager(store.Sessions(), clk, logger)
	cfg := Config{CooldownMinutes: 10, OverrideGrantMinutes: 5}
	return New(store, registry, grants, goals, locks, clk, sink, cfg, logger)
}

// reopen tears down the engine view and builds a fresh one over the same
// database, simulating a process restart.
func (f *testFixture) reopen(t *testing.T) {
	t.Helper()
	eng, err := buildEngine(f.store, f.clk, f.sink)
	if err != nil {
		t.Fatalf("rebuild engine: %v", err)
	}
	f.engine = eng
}

func (f *testFixture) tick(t *testing.T) []Decision {
	t.Helper()
	decisions, err := f.engine.EvaluateTick(context.Background(), f.clk.Now())
	if err != nil {
		t.Fatalf("tick: %v", err)
	}
	return decisions
}

func durationSession(id string, minutes int, identifiers ...string) storage.Session {
	s := storage.Session{
		ID:       id,
		Name:     id,
		Kind:     storage.KindDuration,
		Duration: &storage.DurationSpec{Minutes: minutes},
		Scope:    storage.ScopeDevice,
		Enabled:  true,
		Challenge: storage.ChallengeConfig{
			Kind:  storage.ChallengeTimedWait,
			Param: 10,
		},
	}
	if len(identifiers) > 0 {
		s.Scope = storage.ScopeIdentifiers
		s.Identifiers = identifiers
	}
	return s
}

func recurringSession(id string, window schedule.Window, days schedule.DaySet, identifiers ...string) storage.Session {
	s := storage.Session{
		ID:      id,
		Name:    id,
		Kind:    storage.KindRecurring,
		Window:  &storage.WindowSpec{Window: window, Days: days},
		Scope:   storage.ScopeDevice,
		Enabled: true,
		Challenge: storage.ChallengeConfig{
			Kind:  storage.ChallengeRepeatedAction,
			Param: 500,
		},
	}
	if len(identifiers) > 0 {
		s.Scope = storage.ScopeIdentifiers
		s.Identifiers = identifiers
	}
	return s
}

// Tuesday noon.
var baseTime = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)

func TestCreateSessionValidation(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	tests := []struct {
		name    string
		mutate  func(*storage.Session)
		wantErr bool
	}{
		{"valid duration", func(s *storage.Session) {}, false},
		{"missing duration spec", func(s *storage.Session) { s.Duration = nil }, true},
		{"both specs set", func(s *storage.Session) {
			s.Window = &storage.WindowSpec{
				Window: schedule.Window{StartHour: 9, EndHour: 17},
				Days:   schedule.EveryDay(),
			}
		}, true},
		{"too short", func(s *storage.Session) { s.Duration.Minutes = 4 }, true},
		{"exactly minimum", func(s *storage.Session) { s.Duration.Minutes = 5 }, false},
		{"identifier scope without identifiers", func(s *storage.Session) {
			s.Scope = storage.ScopeIdentifiers
			s.Identifiers = nil
		}, true},
		{"unknown challenge", func(s *storage.Session) { s.Challenge.Kind = "CAPTCHA" }, true},
		{"non-positive challenge param", func(s *storage.Session) { s.Challenge.Param = 0 }, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			s := durationSession("", 30)
			tc.mutate(&s)
			_, err := f.engine.CreateSession(ctx, s)
			if tc.wantErr {
				var verr *ValidationError
				if !errors.As(err, &verr) {
					t.Fatalf("want ValidationError, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestCreateSessionDefaultChallenge(t *testing.T) {
	f := newFixture(t, baseTime)
	s := durationSession("", 30)
	s.Challenge = storage.ChallengeConfig{}

	created, err := f.engine.CreateSession(context.Background(), s)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if created.Challenge.Kind != storage.ChallengeRepeatedAction {
		t.Fatalf("challenge kind = %s", created.Challenge.Kind)
	}
	if created.Challenge.Param != 500 {
		t.Fatalf("challenge param = %d, want 500", created.Challenge.Param)
	}
}

func TestCreateSessionForcesOverride(t *testing.T) {
	f := newFixture(t, baseTime)
	s := durationSession("", 30)
	s.AllowOverride = false

	created, err := f.engine.CreateSession(context.Background(), s)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !created.AllowOverride {
		t.Fatal("AllowOverride must be forced on")
	}
	if created.ID == "" {
		t.Fatal("expected generated ID")
	}
}

func TestStartDurationSession(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, err := f.engine.CreateSession(ctx, durationSession("", 30))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	current := f.engine.Current()
	if current == nil {
		t.Fatal("expected active session")
	}
	if got, want := current.WindowEnd, baseTime.Add(30*time.Minute); !got.Equal(want) {
		t.Fatalf("window end = %v, want %v", got, want)
	}

	entry, err := f.store.Logs().Get(ctx, current.LogEntryID)
	if err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Status != storage.StatusOngoing {
		t.Fatalf("entry status = %s, want ONGOING", entry.Status)
	}
	if entry.ScheduledSeconds != 30*60 {
		t.Fatalf("scheduled seconds = %d, want 1800", entry.ScheduledSeconds)
	}
}

func TestSingleActiveSession(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	a, _ := f.engine.CreateSession(ctx, durationSession("", 30))
	b, _ := f.engine.CreateSession(ctx, durationSession("", 60))

	if err := f.engine.StartSession(ctx, a.ID); err != nil {
		t.Fatalf("start a: %v", err)
	}
	if err := f.engine.StartSession(ctx, b.ID); !errors.Is(err, ErrAlreadyActive) {
		t.Fatalf("start b while a active: got %v, want ErrAlreadyActive", err)
	}

	// A completes; B may start.
	f.clk.Advance(31 * time.Minute)
	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("session a should have completed")
	}
	if err := f.engine.StartSession(ctx, b.ID); err != nil {
		t.Fatalf("start b after a completed: %v", err)
	}
}

func TestDurationCompletion(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 30))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	entryID := f.engine.Current().LogEntryID

	f.clk.Advance(29 * time.Minute)
	f.tick(t)
	if f.engine.Current() == nil {
		t.Fatal("still inside the window, must remain enforced")
	}

	f.clk.Advance(1 * time.Minute)
	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("window elapsed, must have completed")
	}

	entry, err := f.store.Logs().Get(ctx, entryID)
	if err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Status != storage.StatusCompleted {
		t.Fatalf("entry status = %s, want COMPLETED", entry.Status)
	}
	if entry.ActualSeconds != 30*60 {
		t.Fatalf("actual seconds = %d, want 1800", entry.ActualSeconds)
	}

	session, _ := f.engine.GetSession(ctx, created.ID)
	if session.CompletedCount != 1 {
		t.Fatalf("completed count = %d, want 1", session.CompletedCount)
	}
	if session.LastCompletedAt == nil {
		t.Fatal("expected LastCompletedAt")
	}
}

func TestRecurringWindowSchedule(t *testing.T) {
	// 23:00 to 06:00 every day, evaluated across midnight.
	f := newFixture(t, time.Date(2024, 3, 5, 22, 0, 0, 0, time.UTC))
	ctx := context.Background()

	window := schedule.Window{StartHour: 23, EndHour: 6}
	created, err := f.engine.CreateSession(ctx, recurringSession("", window, schedule.EveryDay()))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("22:00 is outside the window")
	}

	f.clk.Advance(90 * time.Minute) // Tuesday 23:30
	f.tick(t)
	current := f.engine.Current()
	if current == nil {
		t.Fatal("23:30 is inside the window")
	}
	if current.SessionID != created.ID {
		t.Fatalf("active session = %s, want %s", current.SessionID, created.ID)
	}
	wantEnd := time.Date(2024, 3, 6, 6, 0, 0, 0, time.UTC)
	if !current.WindowEnd.Equal(wantEnd) {
		t.Fatalf("window end = %v, want %v", current.WindowEnd, wantEnd)
	}

	f.clk.Advance(3 * time.Hour) // Wednesday 02:30
	f.tick(t)
	if f.engine.Current() == nil {
		t.Fatal("02:30 is still inside the wrapped window")
	}

	f.clk.Advance(210 * time.Minute) // Wednesday 06:00, end-exclusive
	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("06:00 is outside the window")
	}

	entries, err := f.store.Logs().Query(ctx, storage.LogEntryFilter{SessionID: created.ID})
	if err != nil {
		t.Fatalf("query entries: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("want one log entry, got %d", len(entries))
	}
	if entries[0].Status != storage.StatusCompleted {
		t.Fatalf("entry status = %s, want COMPLETED", entries[0].Status)
	}
}

func TestRecurringDayAtEntry(t *testing.T) {
	// Tuesday-only wrap window: Wednesday 00:30 is day 3, no entry.
	f := newFixture(t, time.Date(2024, 3, 6, 0, 30, 0, 0, time.UTC))
	ctx := context.Background()

	window := schedule.Window{StartHour: 23, EndHour: 6}
	if _, err := f.engine.CreateSession(ctx, recurringSession("", window, schedule.DaySet{2})); err != nil {
		t.Fatalf("create: %v", err)
	}

	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("Wednesday is not in the day set")
	}
}

func TestManualStartRecurringOutsideWindow(t *testing.T) {
	f := newFixture(t, baseTime) // Tuesday noon
	ctx := context.Background()

	window := schedule.Window{StartHour: 23, EndHour: 6}
	created, _ := f.engine.CreateSession(ctx, recurringSession("", window, schedule.EveryDay()))

	err := f.engine.StartSession(ctx, created.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("manual start outside window: got %v, want ValidationError", err)
	}
}

func TestLapsedWindowCompletedNotReplayed(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 30))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	entryID := f.engine.Current().LogEntryID
	windowEnd := f.engine.Current().WindowEnd

	// Process dies, device sleeps for six hours.
	f.clk.Advance(6 * time.Hour)
	f.reopen(t)
	f.tick(t)

	if f.engine.Current() != nil {
		t.Fatal("lapsed session must not be enforced after restart")
	}
	entry, err := f.store.Logs().Get(ctx, entryID)
	if err != nil {
		t.Fatalf("load entry: %v", err)
	}
	if entry.Status != storage.StatusCompleted {
		t.Fatalf("entry status = %s, want COMPLETED", entry.Status)
	}
	if entry.EndedAt == nil || !entry.EndedAt.Equal(windowEnd) {
		t.Fatalf("ended at = %v, want lawful window end %v", entry.EndedAt, windowEnd)
	}
}

func TestCrashRecoveryMidWindow(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.clk.Advance(10 * time.Minute)
	f.reopen(t)

	current := f.engine.Current()
	if current == nil {
		t.Fatal("mid-window session must survive restart")
	}
	if current.SessionID != created.ID {
		t.Fatalf("recovered session = %s, want %s", current.SessionID, created.ID)
	}
	f.tick(t)
	if f.engine.Current() == nil {
		t.Fatal("still inside the window after restart")
	}
}

func TestOverride(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60, "com.example.social"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	entryID := f.engine.Current().LogEntryID

	if err := f.engine.Override(ctx, created.ID, "urgent call"); err != nil {
		t.Fatalf("override: %v", err)
	}
	if f.engine.Current() != nil {
		t.Fatal("override must end enforcement")
	}

	entry, _ := f.store.Logs().Get(ctx, entryID)
	if entry.Status != storage.StatusOverridden {
		t.Fatalf("entry status = %s, want EMERGENCY_OVERRIDE", entry.Status)
	}
	if entry.OverrideReason != "urgent call" {
		t.Fatalf("override reason = %q", entry.OverrideReason)
	}

	session, _ := f.engine.GetSession(ctx, created.ID)
	if session.OverrideCount != 1 {
		t.Fatalf("override count = %d, want 1", session.OverrideCount)
	}
	if !session.CancelledUntil.Equal(baseTime.Add(10 * time.Minute)) {
		t.Fatalf("cooldown until = %v", session.CancelledUntil)
	}

	// Post-override grant covers the session identifiers.
	grants, err := f.store.Grants().List(ctx)
	if err != nil {
		t.Fatalf("list grants: %v", err)
	}
	if len(grants) != 1 || grants[0].Identifier != "com.example.social" {
		t.Fatalf("grants = %+v, want one for com.example.social", grants)
	}
	if grants[0].DurationMinutes != 5 {
		t.Fatalf("grant minutes = %d, want 5", grants[0].DurationMinutes)
	}
}

func TestOverrideCooldownBlocksRestart(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.engine.Override(ctx, created.ID, "test"); err != nil {
		t.Fatalf("override: %v", err)
	}

	if err := f.engine.StartSession(ctx, created.ID); !errors.Is(err, ErrOnCooldown) {
		t.Fatalf("start during cooldown: got %v, want ErrOnCooldown", err)
	}

	f.clk.Advance(11 * time.Minute)
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start after cooldown: %v", err)
	}
}

func TestOverrideCooldownSuppressesRecurringRearm(t *testing.T) {
	f := newFixture(t, time.Date(2024, 3, 5, 23, 30, 0, 0, time.UTC))
	ctx := context.Background()

	window := schedule.Window{StartHour: 23, EndHour: 6}
	created, _ := f.engine.CreateSession(ctx, recurringSession("", window, schedule.EveryDay()))

	f.tick(t)
	if f.engine.Current() == nil {
		t.Fatal("expected enforcement at 23:30")
	}
	if err := f.engine.Override(ctx, created.ID, "test"); err != nil {
		t.Fatalf("override: %v", err)
	}

	// Still inside the window but cooling down.
	f.clk.Advance(5 * time.Minute)
	f.tick(t)
	if f.engine.Current() != nil {
		t.Fatal("cooldown must suppress re-arming")
	}

	f.clk.Advance(6 * time.Minute)
	f.tick(t)
	if f.engine.Current() == nil {
		t.Fatal("cooldown elapsed inside the window, must re-arm")
	}
}

func TestOverrideWrongSession(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.Override(ctx, created.ID, "nothing running"); !errors.Is(err, ErrNotEnforced) {
		t.Fatalf("override idle: got %v, want ErrNotEnforced", err)
	}
}

func TestDecisionsIdentifierScope(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60, "com.example.a", "com.example.b"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	decisions := f.tick(t)
	byID := map[string]Decision{}
	for _, d := range decisions {
		byID[d.Identifier] = d
	}
	for _, id := range []string{"com.example.a", "com.example.b"} {
		d, ok := byID[id]
		if !ok || !d.Blocked {
			t.Fatalf("identifier %s: decision %+v, want blocked", id, d)
		}
		if d.Challenge == nil || d.Challenge.Kind != storage.ChallengeTimedWait {
			t.Fatalf("identifier %s: challenge %+v", id, d.Challenge)
		}
	}
}

func TestDecisionsDeviceScopeOverlays(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	registry := essential.NewRegistry(f.store.Essential(), zerolog.Nop())
	if err := registry.Seed(ctx); err != nil {
		t.Fatalf("seed: %v", err)
	}

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	decisions := f.tick(t)
	var device *Decision
	allows := map[string]bool{}
	for i := range decisions {
		d := decisions[i]
		if d.Scope == storage.ScopeDevice {
			device = &decisions[i]
			continue
		}
		if !d.Blocked {
			allows[d.Identifier] = true
		}
	}
	if device == nil || !device.Blocked {
		t.Fatalf("expected a blocked device decision, got %+v", decisions)
	}
	if !allows["com.android.dialer"] {
		t.Fatal("seeded essential must carry an allow overlay under a device block")
	}
}

func TestEssentialExemption(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	registry := essential.NewRegistry(f.store.Essential(), zerolog.Nop())
	if err := registry.Add(ctx, storage.EssentialApp{
		Identifier:  "com.example.maps",
		DisplayName: "Maps",
	}); err != nil {
		t.Fatalf("add essential: %v", err)
	}

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60, "com.example.maps", "com.example.social"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	decisions := f.tick(t)
	byID := map[string]Decision{}
	for _, d := range decisions {
		byID[d.Identifier] = d
	}
	if byID["com.example.maps"].Blocked {
		t.Fatal("essential identifier must not be blocked")
	}
	if !byID["com.example.social"].Blocked {
		t.Fatal("non-essential identifier must be blocked")
	}
}

func TestGrantSuppressesBlock(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 120, "com.example.social"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	grants := unlock.NewManager(f.store.Grants(), f.clk, zerolog.Nop())
	if err := grants.Grant(ctx, "com.example.social", 15); err != nil {
		t.Fatalf("grant: %v", err)
	}

	decisions := f.tick(t)
	if len(decisions) != 1 || decisions[0].Blocked {
		t.Fatalf("granted identifier must be allowed, got %+v", decisions)
	}

	// Grant lapses, block resumes without any timer firing.
	f.clk.Advance(16 * time.Minute)
	decisions = f.tick(t)
	if len(decisions) != 1 || !decisions[0].Blocked {
		t.Fatalf("expired grant must restore the block, got %+v", decisions)
	}
}

func TestGoalItemsEnforcedWithoutSession(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	goals := goal.NewLedger(f.store.Goals(), f.clk, zerolog.Nop())
	if _, err := goals.Create(ctx, 7, []goal.Item{
		{Name: "Social", Kind: storage.KindDuration, Identifier: "com.example.social"},
	}); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	decisions := f.tick(t)
	if len(decisions) != 1 {
		t.Fatalf("want one goal decision, got %+v", decisions)
	}
	d := decisions[0]
	if !d.Blocked || d.GoalID == "" || d.SessionID != "" {
		t.Fatalf("goal decision = %+v", d)
	}

	// The goal lapses after its horizon.
	f.clk.Advance(8 * 24 * time.Hour)
	decisions = f.tick(t)
	if len(decisions) != 0 {
		t.Fatalf("expired goal must stop enforcing, got %+v", decisions)
	}
}

func TestSessionDecisionWinsOverGoal(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	goals := goal.NewLedger(f.store.Goals(), f.clk, zerolog.Nop())
	if _, err := goals.Create(ctx, 7, []goal.Item{
		{Name: "Social", Kind: storage.KindDuration, Identifier: "com.example.social"},
	}); err != nil {
		t.Fatalf("create goal: %v", err)
	}

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60, "com.example.social"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	decisions := f.tick(t)
	if len(decisions) != 1 {
		t.Fatalf("want one deduped decision, got %+v", decisions)
	}
	if decisions[0].SessionID != created.ID {
		t.Fatalf("session decision must take precedence, got %+v", decisions[0])
	}
}

func TestSinkReceivesOnlyChanges(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 30, "com.example.social"))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	f.tick(t)
	changes := f.sink.drain()
	if len(changes) != 1 || !changes[0].Blocked {
		t.Fatalf("first tick: changes = %+v, want one block", changes)
	}

	// Steady state: no new pushes.
	f.clk.Advance(time.Minute)
	f.tick(t)
	if changes := f.sink.drain(); len(changes) != 0 {
		t.Fatalf("steady state pushed %+v", changes)
	}

	// Completion clears the block.
	f.clk.Advance(30 * time.Minute)
	f.tick(t)
	changes = f.sink.drain()
	if len(changes) != 1 || changes[0].Blocked {
		t.Fatalf("completion: changes = %+v, want one unblock", changes)
	}
	if changes[0].Identifier != "com.example.social" {
		t.Fatalf("unblock identifier = %q", changes[0].Identifier)
	}
}

func TestRecordAccessDedupe(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	entryID := f.engine.Current().LogEntryID

	for i := 0; i < 3; i++ {
		if err := f.engine.RecordAccess(ctx, "com.example.social"); err != nil {
			t.Fatalf("record access: %v", err)
		}
	}
	if err := f.engine.RecordAccess(ctx, "com.example.news"); err != nil {
		t.Fatalf("record access: %v", err)
	}

	entry, _ := f.store.Logs().Get(ctx, entryID)
	if len(entry.Accessed) != 2 {
		t.Fatalf("accessed = %v, want two deduped identifiers", entry.Accessed)
	}
}

func TestRecordBypassAttempt(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	// No-op while idle.
	if err := f.engine.RecordBypassAttempt(ctx); err != nil {
		t.Fatalf("idle bypass: %v", err)
	}

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	entryID := f.engine.Current().LogEntryID

	for i := 0; i < 4; i++ {
		if err := f.engine.RecordBypassAttempt(ctx); err != nil {
			t.Fatalf("bypass: %v", err)
		}
	}
	entry, _ := f.store.Logs().Get(ctx, entryID)
	if entry.BypassAttempts != 4 {
		t.Fatalf("bypass attempts = %d, want 4", entry.BypassAttempts)
	}
}

func TestDeleteEnforcedSessionRejected(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := f.engine.DeleteSession(ctx, created.ID); !errors.Is(err, ErrSessionEnforced) {
		t.Fatalf("delete enforced: got %v, want ErrSessionEnforced", err)
	}

	f.clk.Advance(61 * time.Minute)
	f.tick(t)
	if err := f.engine.DeleteSession(ctx, created.ID); err != nil {
		t.Fatalf("delete after completion: %v", err)
	}
}

func TestLockedSessionRejectsEdits(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	locks := lock.NewManager(f.store.Sessions(), f.clk, zerolog.Nop())
	if err := locks.Lock(ctx, created.ID, 7, "do not touch this"); err != nil {
		t.Fatalf("lock: %v", err)
	}

	if err := f.engine.DeleteSession(ctx, created.ID); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("delete locked: got %v, want ErrLocked", err)
	}
	updated := *created
	updated.Name = "renamed"
	if err := f.engine.UpdateSession(ctx, updated); !errors.Is(err, lock.ErrLocked) {
		t.Fatalf("update locked: got %v, want ErrLocked", err)
	}

	// The lock lapses on its own.
	f.clk.Advance(8 * 24 * time.Hour)
	if err := f.engine.DeleteSession(ctx, created.ID); err != nil {
		t.Fatalf("delete after lock expiry: %v", err)
	}
}

func TestUpdatePreservesRuntimeFields(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	f.clk.Advance(61 * time.Minute)
	f.tick(t)

	updated := *created
	updated.Name = "renamed"
	updated.CompletedCount = 99
	if err := f.engine.UpdateSession(ctx, updated); err != nil {
		t.Fatalf("update: %v", err)
	}

	stored, _ := f.engine.GetSession(ctx, created.ID)
	if stored.Name != "renamed" {
		t.Fatalf("name = %q", stored.Name)
	}
	if stored.CompletedCount != 1 {
		t.Fatalf("completed count = %d, counters must not be client-writable", stored.CompletedCount)
	}
}

func TestDisableEnforcedSessionRejected(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	if err := f.engine.StartSession(ctx, created.ID); err != nil {
		t.Fatalf("start: %v", err)
	}

	updated := *created
	updated.Enabled = false
	if err := f.engine.UpdateSession(ctx, updated); !errors.Is(err, ErrSessionEnforced) {
		t.Fatalf("disable enforced: got %v, want ErrSessionEnforced", err)
	}
}

func TestStartDisabledSession(t *testing.T) {
	f := newFixture(t, baseTime)
	ctx := context.Background()

	created, _ := f.engine.CreateSession(ctx, durationSession("", 60))
	updated := *created
	updated.Enabled = false
	if err := f.engine.UpdateSession(ctx, updated); err != nil {
		t.Fatalf("disable: %v", err)
	}

	err := f.engine.StartSession(ctx, created.ID)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("start disabled: got %v, want ValidationError", err)
	}
}
