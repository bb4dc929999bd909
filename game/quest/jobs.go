package quest

import (
	"context"
	"time"

	"github.com/kasuganosora/questd/config"
	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/scheduler"
	"go.uber.org/zap"
)

const (
	// startupBackfillDelay lets the HTTP server come up before the first
	// backfill competes for the database.
	startupBackfillDelay = 5 * time.Second

	lockKeyPrefix = "quest:lock:"
)

// Schedule registers the lifecycle jobs: one cron per period boundary, a
// periodic sweep, a periodic backfill and a one-shot backfill at startup.
// With a shared cache every job runs under a lease, so replicas that fire
// on the same tick do the work once.
func (svc *Service) Schedule(s *scheduler.Scheduler, cfg config.QuestConfig) error {
	crons := map[model.Period]string{
		model.PeriodDaily:   cfg.DailyCron,
		model.PeriodWeekly:  cfg.WeeklyCron,
		model.PeriodMonthly: cfg.MonthlyCron,
	}
	for _, p := range model.AllPeriods {
		period := p
		name := "quest_generate_" + string(p)
		if err := s.AddCron(name, crons[p], svc.exclusive(name, cfg.JobLockTTL, func(ctx context.Context) {
			if _, err := svc.GenerateForAllPlayers(ctx, period); err != nil {
				svc.logger.Error("scheduled quest generation failed",
					zap.String("period", string(period)), zap.Error(err))
			}
		})); err != nil {
			return err
		}
	}

	if cfg.SweepInterval > 0 {
		s.AddTicker("quest_sweep", cfg.SweepInterval, svc.exclusive("quest_sweep", cfg.JobLockTTL, svc.runSweep))
	}
	if cfg.BackfillInterval > 0 {
		s.AddTicker("quest_backfill", cfg.BackfillInterval, svc.exclusive("quest_backfill", cfg.JobLockTTL, svc.runBackfill))
	}
	s.AddDelay("quest_backfill_startup", startupBackfillDelay, svc.exclusive("quest_backfill", cfg.JobLockTTL, svc.runBackfill))
	return nil
}

// exclusive runs fn only while this instance holds the job's lease.
// Without a cache or a TTL it runs fn directly.
func (svc *Service) exclusive(job string, ttl time.Duration, fn scheduler.TaskFn) scheduler.TaskFn {
	return func(ctx context.Context) {
		if svc.cache == nil || ttl <= 0 {
			fn(ctx)
			return
		}
		key := lockKeyPrefix + job
		ok, err := svc.cache.SetNX(ctx, key, svc.instance, ttl)
		if err != nil {
			svc.logger.Warn("job lease unavailable, skipping run", zap.String("job", job), zap.Error(err))
			return
		}
		if !ok {
			svc.logger.Debug("job running elsewhere", zap.String("job", job))
			return
		}
		defer func() {
			if _, err := svc.cache.DelIfValue(context.WithoutCancel(ctx), key, svc.instance); err != nil {
				svc.logger.Warn("job lease release failed", zap.String("job", job), zap.Error(err))
			}
		}()
		fn(ctx)
	}
}

func (svc *Service) runSweep(ctx context.Context) {
	if _, err := svc.Sweep(ctx); err != nil {
		svc.logger.Error("scheduled quest sweep failed", zap.Error(err))
	}
}

func (svc *Service) runBackfill(ctx context.Context) {
	if _, err := svc.BackfillMissing(ctx); err != nil {
		svc.logger.Error("scheduled quest backfill failed", zap.Error(err))
	}
}
