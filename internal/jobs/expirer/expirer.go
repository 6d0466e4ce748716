// Package expirer sweeps pending pairs whose answer window ran out.
package expirer

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

type pendingExpirer interface {
	ExpirePending(ctx context.Context, asOf time.Time) (int64, error)
}

type Job struct {
	store    pendingExpirer
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(store pendingExpirer, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		store:    store,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run performs one sweep.
func (j *Job) Run(ctx context.Context) error {
	if j.store == nil {
		return nil
	}

	expired, err := j.store.ExpirePending(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire pending matches: %w", err)
	}
	if expired > 0 {
		j.logger.Info("expired pending matches", zap.Int64("count", expired))
	}

	return nil
}

// Start sweeps on the configured interval until the context ends.
func (j *Job) Start(ctx context.Context) {
	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Warn("pending match sweep failed", zap.Error(err))
			}
		}
	}
}
