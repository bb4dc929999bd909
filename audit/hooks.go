package audit

import (
	"context"

	"github.com/kasuganosora/questd/game/quest"
	mw "github.com/kasuganosora/questd/middleware"
	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/plugin/hook"
)

const hookName = "audit"

// Observe records quest completions and reward claims as audit entries.
func (svc *Service) Observe(hc *hook.Center) {
	hc.Register(hook.OnQuestComplete, 100, hookName, func(ctx context.Context, _ string, d interface{}) (interface{}, error) {
		if pq, ok := d.(*model.PlayerQuest); ok {
			svc.Log(Entry{
				TraceID:  mw.TraceIDFrom(ctx),
				PlayerID: &pq.PlayerID,
				Action:   "quest.complete",
				Response: map[string]interface{}{"player_quest_id": pq.ID, "period": pq.Period},
			})
		}
		return d, nil
	})
	hc.Register(hook.AfterQuestClaim, 100, hookName, func(ctx context.Context, _ string, d interface{}) (interface{}, error) {
		if res, ok := d.(*quest.ClaimResult); ok {
			svc.Log(Entry{
				TraceID:  mw.TraceIDFrom(ctx),
				PlayerID: &res.PlayerQuest.PlayerID,
				Action:   "quest.claim",
				Response: res,
			})
		}
		return d, nil
	})
}
