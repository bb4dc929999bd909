package model

import "time"

// Period is the reset cadence of a quest set.
type Period string

const (
	PeriodDaily   Period = "daily"
	PeriodWeekly  Period = "weekly"
	PeriodMonthly Period = "monthly"
)

// AllPeriods lists every supported period in reset order.
var AllPeriods = []Period{PeriodDaily, PeriodWeekly, PeriodMonthly}

// ObjectiveKind is the gameplay action a quest counts.
type ObjectiveKind string

const (
	ObjectiveDefeatEnemy          ObjectiveKind = "defeat_enemy"
	ObjectiveSolveChallenge       ObjectiveKind = "solve_challenge"
	ObjectiveBuyPotion            ObjectiveKind = "buy_potion"
	ObjectiveUsePotion            ObjectiveKind = "use_potion"
	ObjectiveCompleteLesson       ObjectiveKind = "complete_lesson"
	ObjectiveEarnExp              ObjectiveKind = "earn_exp"
	ObjectivePerfectLevel         ObjectiveKind = "perfect_level"
	ObjectiveDefeatBoss           ObjectiveKind = "defeat_boss"
	ObjectiveLoginDays            ObjectiveKind = "login_days"
	ObjectiveReachLevel           ObjectiveKind = "reach_level"
	ObjectiveUnlockCharacter      ObjectiveKind = "unlock_character"
	ObjectiveSpendCoins           ObjectiveKind = "spend_coins"
	ObjectiveSolveChallengeNoHint ObjectiveKind = "solve_challenge_no_hint"
	ObjectiveDefeatEnemyFullHP    ObjectiveKind = "defeat_enemy_full_hp"
)

var objectiveKinds = map[ObjectiveKind]struct{}{
	ObjectiveDefeatEnemy: {}, ObjectiveSolveChallenge: {}, ObjectiveBuyPotion: {},
	ObjectiveUsePotion: {}, ObjectiveCompleteLesson: {}, ObjectiveEarnExp: {},
	ObjectivePerfectLevel: {}, ObjectiveDefeatBoss: {}, ObjectiveLoginDays: {},
	ObjectiveReachLevel: {}, ObjectiveUnlockCharacter: {}, ObjectiveSpendCoins: {},
	ObjectiveSolveChallengeNoHint: {}, ObjectiveDefeatEnemyFullHP: {},
}

// Valid reports whether k is a known objective kind.
func (k ObjectiveKind) Valid() bool {
	_, ok := objectiveKinds[k]
	return ok
}

// Quest is one generated (or admin-authored) quest instance.
// Generated quests are never shared between players.
type Quest struct {
	ID            int64         `gorm:"primaryKey;autoIncrement" json:"id"`
	Title         string        `gorm:"size:128;not null" json:"title"`
	Description   string        `gorm:"size:255" json:"description"`
	ObjectiveKind ObjectiveKind `gorm:"size:32;not null" json:"objective_kind"`
	TargetValue   int           `gorm:"not null" json:"target_value"`
	RewardExp     int           `gorm:"default:0" json:"reward_exp"`
	RewardCoins   int           `gorm:"default:0" json:"reward_coins"`
	Period        Period        `gorm:"size:16;index;not null" json:"period"`
	CreatedAt     time.Time     `gorm:"autoCreateTime" json:"created_at"`
}

// PlayerQuest assigns a Quest to a player for one period window.
type PlayerQuest struct {
	ID           int64      `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID     int64      `gorm:"index:idx_pq_player_period;not null" json:"player_id"`
	QuestID      int64      `gorm:"index;not null" json:"quest_id"`
	Quest        *Quest     `gorm:"foreignKey:QuestID" json:"quest,omitempty"`
	CurrentValue int        `gorm:"default:0" json:"current_value"`
	IsCompleted  bool       `gorm:"default:false" json:"is_completed"`
	IsClaimed    bool       `gorm:"default:false" json:"is_claimed"`
	ExpiresAt    time.Time  `gorm:"index:idx_pq_player_period;not null" json:"expires_at"`
	Period       Period     `gorm:"size:16;index:idx_pq_player_period;not null" json:"period"`
	ClaimedAt    *time.Time `json:"claimed_at"`
	CreatedAt    time.Time  `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt    time.Time  `gorm:"autoUpdateTime" json:"updated_at"`
}

// QuestSet marks one generated batch. The unique index stops two concurrent
// generations from both committing a set for the same window.
type QuestSet struct {
	ID          int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	PlayerID    int64     `gorm:"uniqueIndex:uq_quest_set_window;not null" json:"player_id"`
	Period      Period    `gorm:"size:16;uniqueIndex:uq_quest_set_window;not null" json:"period"`
	WindowStart time.Time `gorm:"uniqueIndex:uq_quest_set_window;not null" json:"window_start"`
	ExpiresAt   time.Time `gorm:"index;not null" json:"expires_at"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}
