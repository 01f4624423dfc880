package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/config"
	"github.com/offmode/brickd/internal/engine"
	"github.com/offmode/brickd/internal/essential"
	"github.com/offmode/brickd/internal/goal"
	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/storage/bolt"
	redisstore "github.com/offmode/brickd/internal/storage/redis"
)

var (
	checkDay  string
	checkTime string
)

var checkCmd = &cobra.Command{
	Use:   "check [flags] IDENTIFIER",
	Short: "Check the enforcement decision for an identifier",
	Long: `Check whether brickd would block a given app or site identifier,
optionally at a different day and time than now. Use "*" for a
device-wide check.`,
	Example: `  brickd -c config.yaml check com.example.social
  brickd check --day tuesday --time 23:30 com.example.social
  brickd check "*"`,
	Args: cobra.ExactArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVar(&checkDay, "day", "", "Day of week (monday, tuesday, etc.) - defaults to current day")
	checkCmd.Flags().StringVar(&checkTime, "time", "", "Time of day (HH:MM) - defaults to current time")
	rootCmd.AddCommand(checkCmd)
}

// checkResult is the outcome of a read-only evaluation at one instant.
type checkResult struct {
	Blocked   bool
	Session   *storage.Session
	Enforced  bool // a live active record covers the instant
	GoalID    string
	Reason    string
	Challenge *storage.ChallengeConfig
}

func runCheck(cmd *cobra.Command, args []string) error {
	identifier := args[0]

	// Parse time (if provided)
	var checkDateTime time.Time
	var err error
	if checkDay != "" || checkTime != "" {
		checkDateTime, err = parseCheckTime(checkDay, checkTime)
		if err != nil {
			return fmt.Errorf("invalid time specification: %w", err)
		}
	} else {
		checkDateTime = time.Now()
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	store, err := bolt.Open(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer store.Close()

	grantStore := store.Grants()
	if cfg.Storage.Type == "redis" {
		rstore, err := redisstore.Open(redisstore.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
		})
		if err != nil {
			return fmt.Errorf("failed to open redis: %w", err)
		}
		defer rstore.Close()
		grantStore = rstore.Grants()
	}

	result, err := evaluateAt(context.Background(), store, grantStore, logger, identifier, checkDateTime)
	if err != nil {
		return fmt.Errorf("failed to evaluate: %w", err)
	}

	printCheckResult(identifier, checkDateTime, result)
	return nil
}

// evaluateAt answers the same question the engine answers every tick, but
// read-only and at an arbitrary instant: no records are opened, closed or
// lazily expired.
func evaluateAt(ctx context.Context, store *bolt.Store, grantStore storage.GrantStore, logger zerolog.Logger, identifier string, at time.Time) (*checkResult, error) {
	registry := essential.NewRegistry(store.Essential(), logger)

	session, enforced, err := sessionAt(ctx, store, at)
	if err != nil {
		return nil, err
	}

	if session != nil {
		covered := session.Scope == storage.ScopeDevice
		if !covered {
			for _, id := range session.Identifiers {
				if id == identifier {
					covered = true
					break
				}
			}
		}
		if covered && identifier != engine.DeviceIdentifier {
			if registry.IsExempt(ctx, identifier, session.Kind) {
				return &checkResult{Session: session, Enforced: enforced, Reason: "essential app exemption"}, nil
			}
			live, err := grantActiveAt(ctx, grantStore, identifier, at)
			if err != nil {
				return nil, err
			}
			if live {
				return &checkResult{Session: session, Enforced: enforced, Reason: "temporary unlock grant"}, nil
			}
		}
		if covered {
			if identifier == engine.DeviceIdentifier {
				live, err := grantActiveAt(ctx, grantStore, engine.DeviceIdentifier, at)
				if err != nil {
					return nil, err
				}
				if live {
					return &checkResult{Session: session, Enforced: enforced, Reason: "temporary unlock grant"}, nil
				}
			}
			challenge := session.Challenge
			return &checkResult{
				Blocked:   true,
				Session:   session,
				Enforced:  enforced,
				Challenge: &challenge,
			}, nil
		}
	}

	// Goal commitments apply with or without a session.
	ledger := goal.NewLedger(store.Goals(), clock.NewTest(at), logger)
	items, err := ledger.ActiveItems(ctx, at)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		if item.Identifier != identifier {
			continue
		}
		if registry.IsExempt(ctx, identifier, item.Kind) {
			return &checkResult{Session: session, Enforced: enforced, GoalID: item.GoalID, Reason: "essential app exemption"}, nil
		}
		live, err := grantActiveAt(ctx, grantStore, identifier, at)
		if err != nil {
			return nil, err
		}
		if live {
			return &checkResult{Session: session, Enforced: enforced, GoalID: item.GoalID, Reason: "temporary unlock grant"}, nil
		}
		return &checkResult{Blocked: true, Session: session, Enforced: enforced, GoalID: item.GoalID}, nil
	}

	return &checkResult{Session: session, Enforced: enforced}, nil
}

// sessionAt returns the session governing the instant: the live active record
// if it covers it, otherwise the recurring session that would arm then.
func sessionAt(ctx context.Context, store *bolt.Store, at time.Time) (*storage.Session, bool, error) {
	active, err := store.Active().Get(ctx)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return nil, false, err
	}
	if active != nil && !at.Before(active.WindowStart) && at.Before(active.WindowEnd) {
		session, err := store.Sessions().Get(ctx, active.SessionID)
		if err == nil {
			return session, true, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return nil, false, err
		}
	}

	sessions, err := store.Sessions().ListEnabled(ctx)
	if err != nil {
		return nil, false, err
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].ID < sessions[j].ID })
	for i := range sessions {
		s := &sessions[i]
		if s.Kind != storage.KindRecurring || s.Window == nil {
			continue
		}
		if !s.Window.Days.ActiveOn(at) || !s.Window.Window.Contains(at) {
			continue
		}
		if s.CancelledUntil.After(at) {
			continue
		}
		return s, false, nil
	}
	return nil, false, nil
}

func grantActiveAt(ctx context.Context, grants storage.GrantStore, identifier string, at time.Time) (bool, error) {
	grant, err := grants.Get(ctx, identifier)
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return grant.ActiveAt(at), nil
}

// printCheckResult prints the check result with colors
func printCheckResult(identifier string, at time.Time, result *checkResult) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)
	yellow := color.New(color.FgYellow)

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	cyan.Println("ENFORCEMENT CHECK")
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()

	if identifier == engine.DeviceIdentifier {
		fmt.Printf("Identifier: %s (device-wide)\n", identifier)
	} else {
		fmt.Printf("Identifier: %s\n", identifier)
	}
	fmt.Printf("Check Time: %s (%s)\n", at.Format("2006-01-02 15:04"), at.Weekday())
	fmt.Println()

	cyan.Print("Decision:   ")
	if result.Blocked {
		red.Println("BLOCKED")
		fmt.Println("            → Access will be denied")
	} else {
		green.Println("ALLOWED")
		fmt.Println("            → Access will not be restricted")
	}

	if result.Reason != "" {
		fmt.Printf("Reason:     %s\n", result.Reason)
	}

	if result.Session != nil {
		fmt.Printf("Session:    %s (%s, %s)\n", result.Session.Name, result.Session.ID, result.Session.Kind)
		if result.Enforced {
			yellow.Println("Status:     currently enforced")
		} else {
			fmt.Println("Status:     would arm at this instant")
		}
	}

	if result.GoalID != "" {
		fmt.Printf("Goal:       %s\n", result.GoalID)
	}

	if result.Blocked && result.Challenge != nil {
		switch result.Challenge.Kind {
		case storage.ChallengeTimedWait:
			fmt.Printf("Override:   timed wait, %d minutes\n", result.Challenge.Param)
		case storage.ChallengeRepeatedAction:
			fmt.Printf("Override:   repeated action, %d confirmations\n", result.Challenge.Param)
		}
	}

	fmt.Println()
	cyan.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
}

// parseCheckTime parses day and time flags into a time.Time
func parseCheckTime(dayStr, timeStr string) (time.Time, error) {
	now := time.Now()

	// Parse time (HH:MM)
	hour := now.Hour()
	minute := now.Minute()

	if timeStr != "" {
		parts := strings.Split(timeStr, ":")
		if len(parts) != 2 {
			return time.Time{}, fmt.Errorf("time must be in HH:MM format")
		}

		var err error
		_, err = fmt.Sscanf(timeStr, "%d:%d", &hour, &minute)
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid time format: %s", timeStr)
		}

		if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
			return time.Time{}, fmt.Errorf("invalid time: hour must be 0-23, minute must be 0-59")
		}
	}

	// Parse day of week
	targetDay := now.Weekday()
	if dayStr != "" {
		dayStr = strings.ToLower(dayStr)
		switch dayStr {
		case "sunday", "sun":
			targetDay = time.Sunday
		case "monday", "mon":
			targetDay = time.Monday
		case "tuesday", "tue":
			targetDay = time.Tuesday
		case "wednesday", "wed":
			targetDay = time.Wednesday
		case "thursday", "thu":
			targetDay = time.Thursday
		case "friday", "fri":
			targetDay = time.Friday
		case "saturday", "sat":
			targetDay = time.Saturday
		default:
			return time.Time{}, fmt.Errorf("invalid day: %s", dayStr)
		}
	}

	// Calculate target date
	daysUntilTarget := int(targetDay - now.Weekday())
	if daysUntilTarget < 0 {
		daysUntilTarget += 7
	}

	targetDate := now.AddDate(0, 0, daysUntilTarget)
	result := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), hour, minute, 0, 0, now.Location())

	return result, nil
}
