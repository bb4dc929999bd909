package quest

import (
	"fmt"
	"strings"

	"github.com/kasuganosora/questd/model"
)

// Placeholder is substituted with the drawn target value.
const Placeholder = "{count}"

// Template is one quest archetype the generator can draw.
type Template struct {
	ObjectiveKind       model.ObjectiveKind
	TitleTemplate       string
	DescriptionTemplate string
	MinTarget           int
	MaxTarget           int
	BaseExpReward       int
	BaseCoinReward      int
	EligiblePeriods     []model.Period
}

// EligibleFor reports whether the template may be drawn for p.
func (t Template) EligibleFor(p model.Period) bool {
	for _, ep := range t.EligiblePeriods {
		if ep == p {
			return true
		}
	}
	return false
}

func (t Template) validate() error {
	switch {
	case t.MinTarget < 1:
		return fmt.Errorf("%w: %s min_target %d < 1", ErrInvalidTemplate, t.ObjectiveKind, t.MinTarget)
	case t.MaxTarget < t.MinTarget:
		return fmt.Errorf("%w: %s max_target %d < min_target %d", ErrInvalidTemplate, t.ObjectiveKind, t.MaxTarget, t.MinTarget)
	case len(t.EligiblePeriods) == 0:
		return fmt.Errorf("%w: %s has no eligible periods", ErrInvalidTemplate, t.ObjectiveKind)
	case !strings.Contains(t.TitleTemplate, Placeholder) || !strings.Contains(t.DescriptionTemplate, Placeholder):
		return fmt.Errorf("%w: %s missing %s placeholder", ErrInvalidTemplate, t.ObjectiveKind, Placeholder)
	}
	return nil
}

// Catalog is an ordered, read-only list of templates.
type Catalog []Template

// TemplatesFor returns the templates eligible for p, in catalog order.
func (c Catalog) TemplatesFor(p model.Period) []Template {
	var out []Template
	for _, t := range c {
		if t.EligibleFor(p) {
			out = append(out, t)
		}
	}
	return out
}

// Validate checks every entry and that each period has something to draw.
func (c Catalog) Validate() error {
	for _, t := range c {
		if err := t.validate(); err != nil {
			return err
		}
	}
	for _, p := range model.AllPeriods {
		if len(c.TemplatesFor(p)) == 0 {
			return fmt.Errorf("%w: %s", ErrNoTemplates, p)
		}
	}
	return nil
}

var (
	dailyOnly     = []model.Period{model.PeriodDaily}
	dailyWeekly   = []model.Period{model.PeriodDaily, model.PeriodWeekly}
	weeklyMonthly = []model.Period{model.PeriodWeekly, model.PeriodMonthly}
	monthlyOnly   = []model.Period{model.PeriodMonthly}
	everyPeriod   = []model.Period{model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly}
)

// DefaultCatalog is the built-in template table. Rewards are quoted at
// MinTarget difficulty for a daily set.
var DefaultCatalog = Catalog{
	// Tier 1: short daily chores.
	{model.ObjectiveDefeatEnemy, "Defeat {count} enemies", "Win {count} battles against any enemy.", 3, 10, 30, 10, everyPeriod},
	{model.ObjectiveSolveChallenge, "Solve {count} challenges", "Answer {count} challenges correctly.", 5, 15, 40, 15, everyPeriod},
	{model.ObjectiveBuyPotion, "Buy {count} potions", "Purchase {count} potions from the shop.", 1, 3, 15, 5, dailyWeekly},
	{model.ObjectiveUsePotion, "Use {count} potions", "Drink {count} potions during battle.", 1, 3, 15, 5, dailyWeekly},
	{model.ObjectiveCompleteLesson, "Complete {count} lessons", "Finish {count} lessons from start to end.", 1, 3, 50, 20, everyPeriod},
	{model.ObjectiveEarnExp, "Earn {count} EXP", "Collect {count} experience points.", 100, 300, 25, 10, dailyWeekly},
	{model.ObjectiveSpendCoins, "Spend {count} coins", "Spend {count} coins in the shop.", 50, 150, 20, 5, dailyWeekly},
	{model.ObjectiveDefeatEnemyFullHP, "Flawless x{count}", "Defeat {count} enemies without losing any HP.", 1, 3, 45, 15, dailyOnly},

	// Tier 2: weekly goals.
	{model.ObjectivePerfectLevel, "Perfect {count} levels", "Clear {count} levels without a single mistake.", 1, 5, 80, 30, weeklyMonthly},
	{model.ObjectiveDefeatBoss, "Defeat {count} bosses", "Beat {count} boss encounters.", 1, 3, 120, 50, weeklyMonthly},
	{model.ObjectiveLoginDays, "Log in {count} days", "Open the game on {count} different days.", 3, 7, 60, 25, weeklyMonthly},
	{model.ObjectiveSolveChallengeNoHint, "No hints x{count}", "Solve {count} challenges without using a hint.", 5, 20, 70, 25, everyPeriod},
	{model.ObjectiveDefeatEnemy, "Monster hunter: {count}", "Defeat {count} enemies this week.", 30, 60, 150, 50, weeklyMonthly},
	{model.ObjectiveCompleteLesson, "Study streak: {count}", "Complete {count} lessons this week.", 5, 10, 160, 60, weeklyMonthly},
	{model.ObjectiveEarnExp, "Grind {count} EXP", "Collect {count} experience points this week.", 1000, 2500, 140, 50, weeklyMonthly},

	// Tier 3: monthly milestones.
	{model.ObjectiveReachLevel, "Reach level {count}", "Raise your character to level {count}.", 5, 20, 300, 120, monthlyOnly},
	{model.ObjectiveUnlockCharacter, "Unlock {count} characters", "Unlock {count} new playable characters.", 1, 2, 400, 150, monthlyOnly},
	{model.ObjectiveDefeatBoss, "Boss slayer: {count}", "Beat {count} bosses this month.", 10, 20, 500, 200, monthlyOnly},
	{model.ObjectiveLoginDays, "Loyal learner: {count} days", "Log in on {count} days this month.", 15, 25, 350, 140, monthlyOnly},
	{model.ObjectiveSpendCoins, "Big spender: {count}", "Spend {count} coins this month.", 1000, 3000, 250, 80, monthlyOnly},
}
