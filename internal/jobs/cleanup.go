// Package jobs holds the background maintenance workers.
package jobs

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/offmode/brickd/internal/clock"
	"github.com/offmode/brickd/internal/lock"
	"github.com/offmode/brickd/internal/metrics"
	"github.com/offmode/brickd/internal/override"
	"github.com/offmode/brickd/internal/storage"
	"github.com/offmode/brickd/internal/unlock"
)

// CleanupJob prunes records that have outlived their purpose: aged log
// entries, expired unlock grants, lapsed commitment locks and abandoned
// override countdowns.
type CleanupJob struct {
	logs          storage.LogStore
	grants        *unlock.Manager
	locks         *lock.Manager
	controller    *override.Controller
	clock         clock.Clock
	retentionDays int
	interval      time.Duration
	logger        zerolog.Logger
	done          chan struct{}
}

func NewCleanupJob(
	logs storage.LogStore,
	grants *unlock.Manager,
	locks *lock.Manager,
	controller *override.Controller,
	clk clock.Clock,
	retentionDays int,
	interval time.Duration,
	logger zerolog.Logger,
) *CleanupJob {
	return &CleanupJob{
		logs:          logs,
		grants:        grants,
		locks:         locks,
		controller:    controller,
		clock:         clk,
		retentionDays: retentionDays,
		interval:      interval,
		logger:        logger.With().Str("component", "cleanup").Logger(),
		done:          make(chan struct{}),
	}
}

func (j *CleanupJob) Start() {
	go j.run()
	j.logger.Info().Dur("interval", j.interval).Msg("Cleanup job started")
}

func (j *CleanupJob) Stop() {
	close(j.done)
	j.logger.Info().Msg("Cleanup job stopped")
}

func (j *CleanupJob) run() {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	j.RunOnce()

	for {
		select {
		case <-j.done:
			return
		case <-ticker.C:
			j.RunOnce()
		}
	}
}

// RunOnce executes a single cleanup pass.
func (j *CleanupJob) RunOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if j.retentionDays > 0 {
		cutoff := j.clock.Now().AddDate(0, 0, -j.retentionDays)
		j.prune(ctx, "log entries", func(ctx context.Context) (int, error) {
			return j.logs.DeleteBefore(ctx, cutoff)
		})
	}
	j.prune(ctx, "unlock grants", j.grants.SweepExpired)
	j.prune(ctx, "commitment locks", j.locks.ClearExpired)
	j.prune(ctx, "override countdowns", j.controller.SweepStale)
}

func (j *CleanupJob) prune(ctx context.Context, name string, fn func(context.Context) (int, error)) {
	count, err := fn(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msgf("Failed to clean up %s", name)
		return
	}
	if count > 0 {
		metrics.RecordsPruned.WithLabelValues(name).Add(float64(count))
		j.logger.Info().Int("count", count).Msgf("Cleaned up %s", name)
	}
}
