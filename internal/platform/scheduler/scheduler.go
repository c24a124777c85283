package scheduler

import (
	"context"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/ticglobal/tokenledger/internal/app/service/distribution"
	subsvc "github.com/ticglobal/tokenledger/internal/app/service/subscription"
	"github.com/ticglobal/tokenledger/pkg/config"
)

// Scheduler periodically expires overdue subscriptions and runs the
// daily distribution. The interval can be short: both jobs are
// idempotent per day, so frequent runs only pick up stragglers.
type Scheduler struct {
	cfg  *config.Config
	log  *zap.SugaredLogger
	dist *distribution.Service
	subs *subsvc.Service
}

func New(cfg *config.Config, log *zap.SugaredLogger, dist *distribution.Service, subs *subsvc.Service) *Scheduler {
	return &Scheduler{cfg: cfg, log: log, dist: dist, subs: subs}
}

func (s *Scheduler) RunOnce(ctx context.Context) {
	expired, err := s.subs.ExpireOverdue(ctx, time.Now())
	if err != nil {
		s.log.Warnw("expiry sweep failed", "error", err)
	} else if expired > 0 {
		s.log.Infow("expired overdue subscriptions", "count", expired)
	}

	res, err := s.dist.Run(ctx, &distribution.RunRequest{})
	if err != nil {
		s.log.Warnw("scheduled distribution failed", "error", err)
		return
	}
	if res.Created > 0 || res.Failed > 0 {
		s.log.Infow("scheduled distribution finished",
			"date", res.Date,
			"created", res.Created,
			"skipped_existing", res.SkippedExisting,
			"failed", res.Failed)
	}
}

func (s *Scheduler) RunForever(ctx context.Context) {
	interval := s.cfg.Scheduler.Interval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		s.RunOnce(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func start(lc fx.Lifecycle, cfg *config.Config, sched *Scheduler) {
	if !cfg.Scheduler.Enabled {
		return
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(start),
)
