package quest

import (
	"fmt"
	"time"

	"github.com/kasuganosora/questd/model"
)

// ParsePeriod validates a period token from the API boundary.
func ParsePeriod(s string) (model.Period, error) {
	switch p := model.Period(s); p {
	case model.PeriodDaily, model.PeriodWeekly, model.PeriodMonthly:
		return p, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidPeriod, s)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// StartOf returns the first instant of the period window containing now.
// Weeks start on Monday; Sunday is treated as the 7th day.
func StartOf(p model.Period, now time.Time) time.Time {
	switch p {
	case model.PeriodWeekly:
		back := int(now.Weekday()) - 1
		if now.Weekday() == time.Sunday {
			back = 6
		}
		return startOfDay(now.AddDate(0, 0, -back))
	case model.PeriodMonthly:
		return time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	default:
		return startOfDay(now)
	}
}

// ExpirationOf returns the last millisecond of the period window.
//
// Weekly windows end on the upcoming Sunday. On a Sunday this rolls to the
// following Sunday (7 - 0 days ahead), so a set generated on Sunday lives
// for 8 days.
func ExpirationOf(p model.Period, now time.Time) time.Time {
	switch p {
	case model.PeriodWeekly:
		daysUntilSunday := 7 - int(now.Weekday())
		return endOfDay(now.AddDate(0, 0, daysUntilSunday))
	case model.PeriodMonthly:
		// Day 0 of next month is the last day of this one.
		last := time.Date(now.Year(), now.Month()+1, 0, 0, 0, 0, 0, now.Location())
		return endOfDay(last)
	default:
		return endOfDay(now)
	}
}

// QuestCount is how many quests one set holds for the period.
func QuestCount(p model.Period) int {
	switch p {
	case model.PeriodWeekly:
		return 10
	case model.PeriodMonthly:
		return 7
	default:
		return 15
	}
}

// Multiplier scales rewards by period length.
func Multiplier(p model.Period) float64 {
	switch p {
	case model.PeriodWeekly:
		return 1.2
	case model.PeriodMonthly:
		return 1.5
	default:
		return 1.0
	}
}
