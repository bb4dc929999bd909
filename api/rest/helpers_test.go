package rest_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/api/rest"
	"github.com/kasuganosora/questd/audit"
	"github.com/kasuganosora/questd/game/quest"
	"github.com/kasuganosora/questd/scheduler"
	"github.com/kasuganosora/questd/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const testAdminKey = "test-admin-key"

func init() {
	gin.SetMode(gin.TestMode)
}

func nopLogger() *zap.Logger { return zap.NewNop() }

type env struct {
	r     *gin.Engine
	db    *gorm.DB
	svc   *quest.Service
	audit *audit.Service
	sched *scheduler.Scheduler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	db := testutil.SetupTestDB(t)
	c, ps := testutil.SetupTestCache(t)
	svc, err := quest.NewService(db, quest.Options{Cache: c, PubSub: ps}, nopLogger())
	require.NoError(t, err)

	sched := scheduler.New(nopLogger())
	t.Cleanup(sched.Stop)
	auditSvc := audit.New(db, nopLogger())
	t.Cleanup(func() { auditSvc.Stop(context.Background()) })

	r := gin.New()
	rest.Register(r, rest.Handlers{
		Quests:   rest.NewQuestHandler(svc.Store(), nopLogger()),
		Players:  rest.NewPlayerHandler(svc, nopLogger()),
		Admin:    rest.NewAdminHandler(svc, sched, auditSvc, nopLogger()),
		AdminKey: testAdminKey,
	})
	return &env{r: r, db: db, svc: svc, audit: auditSvc, sched: sched}
}

func (e *env) do(method, path string, body interface{}, admin bool) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set("X-Admin-Key", testAdminKey)
	}
	w := httptest.NewRecorder()
	e.r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v), w.Body.String())
}
