package session

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Sweeper runs SweepExpired on an interval for the lifetime of the server
// process. Sweeping is capacity hygiene only; authorization never depends
// on it because the active predicate already excludes expired rows.
type Sweeper struct {
	svc       *Service
	interval  time.Duration
	retention time.Duration
	logger    zerolog.Logger
	stop      chan struct{}
	done      chan struct{}
}

func NewSweeper(svc *Service, interval, retention time.Duration, logger zerolog.Logger) *Sweeper {
	return &Sweeper{
		svc:       svc,
		interval:  interval,
		retention: retention,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine.
func (w *Sweeper) Start(ctx context.Context) {
	go func() {
		defer close(w.done)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				if _, err := w.svc.SweepExpired(ctx, w.retention); err != nil {
					w.logger.Error().Err(err).Msg("session sweep failed")
				}
			case <-w.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop halts the loop and waits for a sweep in flight to finish.
func (w *Sweeper) Stop() {
	close(w.stop)
	<-w.done
}
