package quest

import (
	"context"
	"errors"

	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/plugin/hook"
	"go.uber.org/zap"
)

// RecordProgress adds amount to every live, unfinished quest of the player
// that tracks kind. Progress is capped at the quest target. It returns the
// rows it touched.
func (svc *Service) RecordProgress(ctx context.Context, playerID int64, kind model.ObjectiveKind, amount int) ([]model.PlayerQuest, error) {
	if amount <= 0 {
		return nil, ErrInvalidAmount
	}
	ok, err := svc.store.PlayerExists(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrPlayerNotFound
	}

	ids, err := svc.store.ProgressCandidates(ctx, playerID, kind, svc.now())
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.PlayerQuest{}, nil
	}

	rows, completed, err := svc.store.AddProgress(ctx, ids, amount)
	if err != nil {
		return nil, err
	}
	if len(completed) > 0 {
		svc.invalidateStats(ctx, model.AllPeriods...)
	}
	done := make(map[int64]bool, len(completed))
	for _, id := range completed {
		done[id] = true
	}
	for i := range rows {
		if done[rows[i].ID] {
			_, _ = svc.hooks.Trigger(ctx, hook.OnQuestComplete, &rows[i])
		}
	}

	svc.logger.Debug("quest progress recorded",
		zap.Int64("player_id", playerID),
		zap.String("objective", string(kind)),
		zap.Int("amount", amount),
		zap.Int("rows", len(rows)),
		zap.Int("completed", len(completed)))
	return rows, nil
}

// ClaimResult is the reward paid out by Claim.
type ClaimResult struct {
	PlayerQuest *model.PlayerQuest `json:"player_quest"`
	RewardExp   int                `json:"reward_exp"`
	RewardCoins int                `json:"reward_coins"`
}

// Claim pays out a completed quest once.
func (svc *Service) Claim(ctx context.Context, playerID, playerQuestID int64) (*ClaimResult, error) {
	pq, err := svc.store.GetPlayerQuest(ctx, playerID, playerQuestID)
	if err != nil {
		return nil, err
	}
	now := svc.now()
	switch {
	case pq.IsClaimed:
		return nil, ErrAlreadyClaimed
	case now.After(pq.ExpiresAt):
		return nil, ErrQuestExpired
	case !pq.IsCompleted:
		return nil, ErrNotCompleted
	}

	if _, err := svc.hooks.Trigger(ctx, hook.BeforeQuestClaim, pq); errors.Is(err, hook.ErrInterrupt) {
		return nil, ErrClaimRejected
	}

	ok, err := svc.store.MarkClaimed(ctx, pq.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrAlreadyClaimed
	}
	pq.IsClaimed = true
	pq.ClaimedAt = &now
	svc.invalidateStats(ctx, pq.Period)

	svc.logger.Info("quest reward claimed",
		zap.Int64("player_id", playerID),
		zap.Int64("player_quest_id", pq.ID),
		zap.Int("exp", pq.Quest.RewardExp),
		zap.Int("coins", pq.Quest.RewardCoins))
	res := &ClaimResult{PlayerQuest: pq, RewardExp: pq.Quest.RewardExp, RewardCoins: pq.Quest.RewardCoins}
	_, _ = svc.hooks.Trigger(ctx, hook.AfterQuestClaim, res)
	return res, nil
}
