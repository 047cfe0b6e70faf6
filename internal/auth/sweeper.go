package auth

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-staff-records/internal/metrics"
)

// DefaultSweepInterval is how often expired blacklist entries are pruned.
const DefaultSweepInterval = 15 * time.Minute

// StartSweeper prunes bl every interval until ctx is cancelled. Failures
// and panics are logged and never stop the loop. The returned channel is
// closed when the goroutine exits.
func StartSweeper(ctx context.Context, bl Blacklist, interval time.Duration, logger *zap.SugaredLogger, m *metrics.Registry) <-chan struct{} {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepOnce(ctx, bl, logger, m)
			}
		}
	}()
	return done
}

func sweepOnce(ctx context.Context, bl Blacklist, logger *zap.SugaredLogger, m *metrics.Registry) {
	defer func() {
		if p := recover(); p != nil {
			m.BlacklistError("sweep")
			logger.Errorw("blacklist sweep panicked", "panic", p)
		}
	}()
	n, err := bl.Sweep(ctx)
	if err != nil {
		m.BlacklistError("sweep")
		logger.Warnw("blacklist sweep failed", "err", err)
		return
	}
	m.ObserveSweep(n)
	if n > 0 {
		logger.Debugw("blacklist swept", "removed", n)
	}
}
