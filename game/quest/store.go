package quest

import (
	"context"
	"errors"
	"time"

	"github.com/kasuganosora/questd/model"
	"gorm.io/gorm"
)

// deleteChunk keeps IN lists under SQLite's bound-variable limit.
const deleteChunk = 500

// Store is the gorm persistence layer for quests and player quests.
type Store struct {
	db *gorm.DB
}

// NewStore creates a Store.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// window is one period window for one player.
type window struct {
	PlayerID int64
	Period   model.Period
	Start    time.Time
	Expires  time.Time
}

// PlayerExists reports whether a player row exists.
func (s *Store) PlayerExists(ctx context.Context, playerID int64) (bool, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.Player{}).
		Where("id = ?", playerID).Limit(1).Pluck("id", &ids).Error
	return len(ids) > 0, err
}

// HasSetInWindow reports whether the player already holds a set whose
// expiration falls inside the window.
func (s *Store) HasSetInWindow(ctx context.Context, w window) (bool, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Where("player_id = ? AND period = ? AND expires_at BETWEEN ? AND ?", w.PlayerID, w.Period, w.Start, w.Expires).
		Limit(1).Pluck("id", &ids).Error
	return len(ids) > 0, err
}

// CreateSet persists specs as one quest set in a single transaction.
// With replace set, the player's current rows for the period are deleted
// first in the same transaction. Without it, a committed set for the same
// window makes the call fail with errSetExists.
func (s *Store) CreateSet(ctx context.Context, w window, specs []Spec, replace bool) ([]model.PlayerQuest, error) {
	rows := make([]model.PlayerQuest, 0, len(specs))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if replace {
			if err := tx.Where("player_id = ? AND period = ? AND expires_at >= ?", w.PlayerID, w.Period, w.Start).
				Delete(&model.PlayerQuest{}).Error; err != nil {
				return err
			}
			if err := tx.Where("player_id = ? AND period = ? AND expires_at >= ?", w.PlayerID, w.Period, w.Start).
				Delete(&model.QuestSet{}).Error; err != nil {
				return err
			}
		}

		set := &model.QuestSet{PlayerID: w.PlayerID, Period: w.Period, WindowStart: w.Start, ExpiresAt: w.Expires}
		if err := tx.Create(set).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return errSetExists
			}
			return err
		}

		for _, spec := range specs {
			q := spec.Quest()
			if err := tx.Create(q).Error; err != nil {
				return err
			}
			pq := model.PlayerQuest{
				PlayerID:  w.PlayerID,
				QuestID:   q.ID,
				ExpiresAt: w.Expires,
				Period:    w.Period,
			}
			if err := tx.Create(&pq).Error; err != nil {
				return err
			}
			pq.Quest = q
			rows = append(rows, pq)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// ActiveQuests returns the player's unexpired rows for the period.
func (s *Store) ActiveQuests(ctx context.Context, playerID int64, p model.Period, now time.Time) ([]model.PlayerQuest, error) {
	var rows []model.PlayerQuest
	err := s.db.WithContext(ctx).Preload("Quest").
		Where("player_id = ? AND period = ? AND expires_at >= ?", playerID, p, now).
		Order("id").Find(&rows).Error
	return rows, err
}

// PlayersWithSet returns the distinct players holding a set that expires
// inside [start, expires].
func (s *Store) PlayersWithSet(ctx context.Context, p model.Period, start, expires time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Where("period = ? AND expires_at BETWEEN ? AND ?", p, start, expires).
		Group("player_id").Pluck("player_id", &ids).Error
	return ids, err
}

// activeCount is one (player, period) bucket of unexpired rows.
type activeCount struct {
	PlayerID int64
	Period   model.Period
	N        int64
}

// ActiveCounts counts unexpired rows per player and period.
func (s *Store) ActiveCounts(ctx context.Context, now time.Time) ([]activeCount, error) {
	var out []activeCount
	err := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Select("player_id, period, COUNT(*) AS n").
		Where("expires_at >= ?", now).
		Group("player_id, period").
		Scan(&out).Error
	return out, err
}

// ExpiredForSweep selects expired rows that were never completed, or
// completed but never claimed.
func (s *Store) ExpiredForSweep(ctx context.Context, now time.Time) ([]model.PlayerQuest, error) {
	var rows []model.PlayerQuest
	err := s.db.WithContext(ctx).Select("id, player_id").
		Where("expires_at < ?", now).
		Where(s.db.Where("is_completed = ?", false).Or("is_completed = ? AND is_claimed = ?", true, false)).
		Find(&rows).Error
	return rows, err
}

// DeletePlayerQuests deletes rows by id and returns how many went.
func (s *Store) DeletePlayerQuests(ctx context.Context, ids []int64) (int64, error) {
	var total int64
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for lo := 0; lo < len(ids); lo += deleteChunk {
			hi := min(lo+deleteChunk, len(ids))
			res := tx.Where("id IN ?", ids[lo:hi]).Delete(&model.PlayerQuest{})
			if res.Error != nil {
				return res.Error
			}
			total += res.RowsAffected
		}
		return nil
	})
	return total, err
}

// DeleteExpiredSets drops set guards whose window has closed.
func (s *Store) DeleteExpiredSets(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at < ?", now).Delete(&model.QuestSet{})
	return res.RowsAffected, res.Error
}

// DeleteOrphanQuests deletes quests no player quest references.
func (s *Store) DeleteOrphanQuests(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).
		Where("NOT EXISTS (SELECT 1 FROM player_quests WHERE player_quests.quest_id = quests.id)").
		Delete(&model.Quest{})
	return res.RowsAffected, res.Error
}

// windowStats is the raw aggregate behind PeriodStats.
type windowStats struct {
	Players   int64
	Total     int64
	Completed int64
	Claimed   int64
}

// Stats aggregates rows whose expiration falls inside [start, expires].
func (s *Store) Stats(ctx context.Context, p model.Period, start, expires time.Time) (windowStats, error) {
	var ws windowStats
	err := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Select(`COUNT(DISTINCT player_id) AS players,
			COUNT(*) AS total,
			COALESCE(SUM(CASE WHEN is_completed = ? THEN 1 ELSE 0 END), 0) AS completed,
			COALESCE(SUM(CASE WHEN is_claimed = ? THEN 1 ELSE 0 END), 0) AS claimed`, true, true).
		Where("period = ? AND expires_at BETWEEN ? AND ?", p, start, expires).
		Scan(&ws).Error
	return ws, err
}

// ---- quest records ----

// QuestFilter narrows ListQuests.
type QuestFilter struct {
	Period model.Period
	Limit  int
	Offset int
}

// ListQuests returns quest records, newest first.
func (s *Store) ListQuests(ctx context.Context, f QuestFilter) ([]model.Quest, error) {
	q := s.db.WithContext(ctx).Order("id DESC")
	if f.Period != "" {
		q = q.Where("period = ?", f.Period)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}
	if f.Offset > 0 {
		q = q.Offset(f.Offset)
	}
	var out []model.Quest
	err := q.Find(&out).Error
	return out, err
}

// GetQuest loads one quest record.
func (s *Store) GetQuest(ctx context.Context, id int64) (*model.Quest, error) {
	var q model.Quest
	if err := s.db.WithContext(ctx).First(&q, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrQuestNotFound
		}
		return nil, err
	}
	return &q, nil
}

// CreateQuest inserts a quest record.
func (s *Store) CreateQuest(ctx context.Context, q *model.Quest) error {
	return s.db.WithContext(ctx).Create(q).Error
}

// UpdateQuest overwrites the editable fields of a quest record.
func (s *Store) UpdateQuest(ctx context.Context, q *model.Quest) error {
	db := s.db.WithContext(ctx)
	var n int64
	if err := db.Model(&model.Quest{}).Where("id = ?", q.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrQuestNotFound
	}
	// RowsAffected is 0 on MySQL when nothing changed, so it is not checked.
	return db.Model(&model.Quest{}).Where("id = ?", q.ID).
		Select("title", "description", "objective_kind", "target_value", "reward_exp", "reward_coins", "period").
		Updates(q).Error
}

// DeleteQuest removes a quest record and every assignment of it. Set
// guards left without any rows are removed with it so the next
// generation run does not skip the affected players.
func (s *Store) DeleteQuest(ctx context.Context, id int64) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var players []int64
		if err := tx.Model(&model.PlayerQuest{}).Where("quest_id = ?", id).
			Distinct().Pluck("player_id", &players).Error; err != nil {
			return err
		}
		if err := tx.Where("quest_id = ?", id).Delete(&model.PlayerQuest{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&model.Quest{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrQuestNotFound
		}
		if len(players) == 0 {
			return nil
		}
		return tx.Where("player_id IN ? AND "+setIsEmpty, players).Delete(&model.QuestSet{}).Error
	})
}

// setIsEmpty matches quest_sets rows with no player quest left in their window.
const setIsEmpty = `NOT EXISTS (SELECT 1 FROM player_quests
	WHERE player_quests.player_id = quest_sets.player_id
	AND player_quests.period = quest_sets.period
	AND player_quests.expires_at = quest_sets.expires_at)`

// ClearStaleSet removes the window's set guard if no player quest remains
// in it. It reports whether a guard was removed.
func (s *Store) ClearStaleSet(ctx context.Context, w window) (bool, error) {
	res := s.db.WithContext(ctx).
		Where("player_id = ? AND period = ? AND window_start = ? AND "+setIsEmpty, w.PlayerID, w.Period, w.Start).
		Delete(&model.QuestSet{})
	return res.RowsAffected > 0, res.Error
}

// ---- progress ----

// ProgressCandidates returns the ids of the player's live, incomplete rows
// whose quest counts the given objective.
func (s *Store) ProgressCandidates(ctx context.Context, playerID int64, kind model.ObjectiveKind, now time.Time) ([]int64, error) {
	var ids []int64
	err := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Where("player_id = ? AND expires_at >= ? AND is_completed = ?", playerID, now, false).
		Where("quest_id IN (?)", s.db.Model(&model.Quest{}).Select("id").Where("objective_kind = ?", kind)).
		Order("id").Pluck("id", &ids).Error
	return ids, err
}

// targetOf selects the target of a player_quests row's quest.
const targetOf = "(SELECT target_value FROM quests WHERE quests.id = player_quests.quest_id)"

// AddProgress adds amount to the incomplete rows among ids, capped at each
// quest's target, and marks the rows that reach it completed. The increment
// runs in SQL so concurrent calls never lose an update. It returns the rows
// after the update and the ids this call completed; a row is reported
// completed by exactly one call.
func (s *Store) AddProgress(ctx context.Context, ids []int64, amount int) ([]model.PlayerQuest, []int64, error) {
	var (
		rows      []model.PlayerQuest
		completed []int64
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.PlayerQuest{}).
			Where("id IN ? AND is_completed = ?", ids, false).
			Update("current_value", gorm.Expr(
				"CASE WHEN current_value + ? >= "+targetOf+" THEN "+targetOf+" ELSE current_value + ? END",
				amount, amount)).Error; err != nil {
			return err
		}
		for _, id := range ids {
			res := tx.Model(&model.PlayerQuest{}).
				Where("id = ? AND is_completed = ? AND current_value >= "+targetOf, id, false).
				Update("is_completed", true)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 1 {
				completed = append(completed, id)
			}
		}
		return tx.Preload("Quest").Where("id IN ?", ids).Order("id").Find(&rows).Error
	})
	if err != nil {
		return nil, nil, err
	}
	return rows, completed, nil
}

// GetPlayerQuest loads one of the player's rows with its quest.
func (s *Store) GetPlayerQuest(ctx context.Context, playerID, id int64) (*model.PlayerQuest, error) {
	var pq model.PlayerQuest
	err := s.db.WithContext(ctx).Preload("Quest").
		Where("id = ? AND player_id = ?", id, playerID).First(&pq).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlayerQuestNotFound
		}
		return nil, err
	}
	return &pq, nil
}

// MarkClaimed flips is_claimed only if it is still false, so a reward
// cannot be paid twice.
func (s *Store) MarkClaimed(ctx context.Context, id int64, at time.Time) (bool, error) {
	res := s.db.WithContext(ctx).Model(&model.PlayerQuest{}).
		Where("id = ? AND is_completed = ? AND is_claimed = ?", id, true, false).
		Updates(map[string]interface{}{"is_claimed": true, "claimed_at": at})
	return res.RowsAffected > 0, res.Error
}
