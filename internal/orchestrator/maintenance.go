package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"asynccalc/internal/models"
)

// Recover puts calculations interrupted by a previous run back into the registry. It
// must complete before the processor starts consuming. Every stored calculation created
// before startedAt that is still pending or in progress is reset to pending and restored
// in creation order.
func Recover(ctx context.Context, repo Repository, registry *Registry, startedAt time.Time, logger zerolog.Logger) (int, error) {
	log := logger.With().Str("component", "recovery").Logger()

	reset, err := repo.ResetNonFinalToPending(ctx, startedAt, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("reset interrupted calculations: %w", err)
	}

	pending, err := repo.List(ctx,
		models.CalculationFilter{Statuses: []models.CalculationState{models.StatePending}, CreatedBefore: startedAt},
		models.Pagination{})
	if err != nil {
		return 0, fmt.Errorf("list interrupted calculations: %w", err)
	}

	restored := 0
	for _, calc := range pending {
		if err := registry.Restore(calc); err != nil {
			if errors.Is(err, models.ErrConflict) {
				continue
			}
			return restored, fmt.Errorf("restore calculation %s: %w", calc.ID, err)
		}
		restored++
	}

	log.Info().Int64("reset", reset).Int("restored", restored).Msg("recovery finished")
	return restored, nil
}

// Cleaner periodically deletes calculations older than the retention window.
type Cleaner struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	log       zerolog.Logger
	now       func() time.Time
}

func NewCleaner(repo Repository, retention, interval time.Duration, logger zerolog.Logger) *Cleaner {
	return &Cleaner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		log:       logger.With().Str("component", "cleanup").Logger(),
		now:       time.Now,
	}
}

// Run cleans once immediately and then every interval until ctx is done. Failed passes
// are logged and retried on the next tick.
func (c *Cleaner) Run(ctx context.Context) error {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		if _, err := c.CleanOnce(ctx); err != nil && ctx.Err() == nil {
			c.log.Error().Err(err).Msg("cleanup failed")
		}
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// CleanOnce deletes everything created before now minus the retention window.
func (c *Cleaner) CleanOnce(ctx context.Context) (int64, error) {
	cutoff := c.now().UTC().Add(-c.retention)
	deleted, err := c.repo.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		return 0, fmt.Errorf("delete calculations older than %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if deleted > 0 {
		c.log.Info().Int64("deleted", deleted).Time("cutoff", cutoff).Msg("old calculations deleted")
	}
	return deleted, nil
}
