package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"

	"chamada/internal/config"
)

// Refresher is anything that can reload itself from the backend.
type Refresher interface {
	FetchAll(ctx context.Context) error
}

// StartRefreshJob refetches every target on each tick until ctx is done.
// Each tick gets its own timeout; a target that fails is logged and retried
// on the next tick. The returned channel closes when the job stops.
func StartRefreshJob(ctx context.Context, cfg config.Config, logger *zap.Logger, targets ...Refresher) <-chan struct{} {
	done := make(chan struct{})
	if logger == nil {
		logger = zap.NewNop()
	}
	if len(targets) == 0 {
		logger.Info("refresh job disabled: nothing to refresh")
		close(done)
		return done
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = 30 * time.Second
	}
	timeout := cfg.RefreshTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer close(done)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				tickCtx, cancel := context.WithTimeout(ctx, timeout)
				for _, target := range targets {
					if err := target.FetchAll(tickCtx); err != nil {
						logger.Warn("refresh job error", zap.Error(err))
					}
				}
				cancel()
			}
		}
	}()
	return done
}
