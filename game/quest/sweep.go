package quest

import (
	"context"
	"fmt"
	"time"

	"github.com/kasuganosora/questd/model"
	"go.uber.org/zap"
)

// SweepSummary reports one expiry sweep.
type SweepSummary struct {
	DeletedExpired  int64         `json:"deleted_expired"`
	DeletedSets     int64         `json:"deleted_sets"`
	DeletedOrphans  int64         `json:"deleted_orphans"`
	Regenerated     int           `json:"regenerated"`
	AffectedPlayers int           `json:"affected_players"`
	Errors          []PlayerError `json:"errors,omitempty"`
	Duration        time.Duration `json:"duration_ns"`
}

type playerPeriod struct {
	PlayerID int64
	Period   model.Period
}

// Sweep removes expired unfinished rows, drops quests nothing references
// and regenerates every player and period left without active quests.
// Expired rows that were completed and claimed are kept as history.
func (svc *Service) Sweep(ctx context.Context) (*SweepSummary, error) {
	began := time.Now()
	now := svc.now()
	sum := &SweepSummary{}

	expired, err := svc.store.ExpiredForSweep(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("select expired: %w", err)
	}
	affected := make(map[int64]struct{})
	ids := make([]int64, len(expired))
	for i, pq := range expired {
		ids[i] = pq.ID
		affected[pq.PlayerID] = struct{}{}
	}
	if len(ids) > 0 {
		if sum.DeletedExpired, err = svc.store.DeletePlayerQuests(ctx, ids); err != nil {
			return nil, fmt.Errorf("delete expired: %w", err)
		}
	}
	sum.AffectedPlayers = len(affected)

	if sum.DeletedSets, err = svc.store.DeleteExpiredSets(ctx, now); err != nil {
		return nil, fmt.Errorf("delete expired sets: %w", err)
	}
	if sum.DeletedOrphans, err = svc.store.DeleteOrphanQuests(ctx); err != nil {
		return nil, fmt.Errorf("delete orphan quests: %w", err)
	}

	players, err := svc.roster.ListPlayers(ctx)
	if err != nil {
		return nil, fmt.Errorf("list players: %w", err)
	}
	counts, err := svc.store.ActiveCounts(ctx, now)
	if err != nil {
		return nil, fmt.Errorf("count active: %w", err)
	}
	active := make(map[playerPeriod]int64, len(counts))
	for _, c := range counts {
		active[playerPeriod{c.PlayerID, c.Period}] = c.N
	}

	for _, p := range model.AllPeriods {
		var empty []int64
		for _, pl := range players {
			if active[playerPeriod{pl.ID, p}] == 0 {
				empty = append(empty, pl.ID)
			}
		}
		errs := svc.fanOut(ctx, empty, func(ctx context.Context, playerID int64) error {
			_, err := svc.ForceGenerate(ctx, playerID, p)
			return err
		})
		sum.Regenerated += len(empty) - len(errs)
		sum.Errors = append(sum.Errors, errs...)
	}

	svc.invalidateStats(ctx, model.AllPeriods...)
	sum.Duration = time.Since(began)
	svc.recordRun(ctx, "sweep", sum)
	svc.logger.Info("quest sweep finished",
		zap.Int64("deleted_expired", sum.DeletedExpired),
		zap.Int64("deleted_orphans", sum.DeletedOrphans),
		zap.Int("regenerated", sum.Regenerated),
		zap.Int("affected_players", sum.AffectedPlayers),
		zap.Int("errors", len(sum.Errors)),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}
