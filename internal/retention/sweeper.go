// Package retention runs the request-log sweeper: a background loop that
// periodically deletes request_logs rows past the configured retention
// window (spec §3/§9).
package retention

import (
	"context"
	"time"

	"github.com/relaymesh/geminigate/internal/conf"
	"github.com/relaymesh/geminigate/internal/log"
)

// Store is the subset of storage.RequestLogStore the sweeper needs.
type Store interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Sweeper ticks at cfg.Retention.SweepInterval and deletes rows older than
// cfg.Retention.Days. Start/Stop are fx.Lifecycle hooks, grounded on the
// teacher's gc.Worker Start/Stop shape.
type Sweeper struct {
	store  Store
	cfg    conf.Retention
	stop   chan struct{}
	done   chan struct{}
}

func New(store Store, cfg conf.Retention) *Sweeper {
	return &Sweeper{store: store, cfg: cfg, stop: make(chan struct{}), done: make(chan struct{})}
}

func (s *Sweeper) Start(ctx context.Context) error {
	if s.cfg.Days <= 0 || s.cfg.SweepInterval <= 0 {
		log.Info(ctx, "retention sweeper disabled", log.Any("days", s.cfg.Days), log.Any("interval", s.cfg.SweepInterval))
		close(s.done)

		return nil
	}

	go s.run()

	log.Info(ctx, "retention sweeper started", log.Any("days", s.cfg.Days), log.Any("interval", s.cfg.SweepInterval))

	return nil
}

func (s *Sweeper) Stop(ctx context.Context) error {
	close(s.stop)
	<-s.done

	return nil
}

func (s *Sweeper) run() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.sweep()
		}
	}
}

func (s *Sweeper) sweep() {
	ctx := context.Background()
	cutoff := time.Now().AddDate(0, 0, -s.cfg.Days)

	if _, err := s.store.DeleteOlderThan(ctx, cutoff); err != nil {
		log.Error(ctx, "retention sweep failed", log.Cause(err))
	}
}
