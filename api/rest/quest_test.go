package rest_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/kasuganosora/questd/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validQuest() map[string]interface{} {
	return map[string]interface{}{
		"title":          "Defeat 5 enemies",
		"description":    "Win 5 battles.",
		"objective_kind": "defeat_enemy",
		"target_value":   5,
		"reward_exp":     50,
		"reward_coins":   15,
		"period":         "daily",
	}
}

func TestQuestCRUD(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodPost, "/api/quests", validQuest(), false)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created model.Quest
	decode(t, w, &created)
	require.Positive(t, created.ID)
	assert.Equal(t, model.ObjectiveDefeatEnemy, created.ObjectiveKind)

	path := fmt.Sprintf("/api/quests/%d", created.ID)
	w = e.do(http.MethodGet, path, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var got model.Quest
	decode(t, w, &got)
	assert.Equal(t, "Defeat 5 enemies", got.Title)

	upd := validQuest()
	upd["title"] = "Defeat 8 enemies"
	upd["target_value"] = 8
	upd["period"] = "weekly"
	w = e.do(http.MethodPut, path, upd, false)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	decode(t, w, &got)
	assert.Equal(t, "Defeat 8 enemies", got.Title)
	assert.Equal(t, 8, got.TargetValue)
	assert.Equal(t, model.PeriodWeekly, got.Period)

	w = e.do(http.MethodPut, path, upd, false)
	require.Equal(t, http.StatusOK, w.Code, "unchanged update: %s", w.Body.String())

	w = e.do(http.MethodGet, "/api/quests?period=weekly", nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Quests []model.Quest `json:"quests"`
		Count  int           `json:"count"`
	}
	decode(t, w, &list)
	assert.Equal(t, 1, list.Count)

	w = e.do(http.MethodGet, "/api/quests?period=daily", nil, false)
	decode(t, w, &list)
	assert.Equal(t, 0, list.Count)

	w = e.do(http.MethodDelete, path, nil, false)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(http.MethodGet, path, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodDelete, path, nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestQuest_Validation(t *testing.T) {
	e := newEnv(t)

	w := e.do(http.MethodGet, "/api/quests/abc", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = e.do(http.MethodGet, "/api/quests/999", nil, false)
	assert.Equal(t, http.StatusNotFound, w.Code)
	w = e.do(http.MethodGet, "/api/quests?period=yearly", nil, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	for name, mutate := range map[string]func(map[string]interface{}){
		"bad period":    func(m map[string]interface{}) { m["period"] = "hourly" },
		"bad objective": func(m map[string]interface{}) { m["objective_kind"] = "fly" },
		"zero target":   func(m map[string]interface{}) { m["target_value"] = 0 },
		"no title":      func(m map[string]interface{}) { delete(m, "title") },
		"negative exp":  func(m map[string]interface{}) { m["reward_exp"] = -1 },
	} {
		body := validQuest()
		mutate(body)
		w := e.do(http.MethodPost, "/api/quests", body, false)
		assert.Equal(t, http.StatusBadRequest, w.Code, name)
	}

	w = e.do(http.MethodPut, "/api/quests/12345", validQuest(), false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
