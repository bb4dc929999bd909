package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	apirest "github.com/kasuganosora/questd/api/rest"
	"github.com/kasuganosora/questd/api/sse"
	"github.com/kasuganosora/questd/audit"
	"github.com/kasuganosora/questd/cache"
	"github.com/kasuganosora/questd/config"
	"github.com/kasuganosora/questd/game/quest"
	mw "github.com/kasuganosora/questd/middleware"
	"github.com/kasuganosora/questd/scheduler"
	"github.com/kasuganosora/questd/testutil"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// AdminKey is the admin key every TestServer is started with.
const AdminKey = "integration-admin-key"

// TestServer wraps a real HTTP server with the quest engine wired together.
type TestServer struct {
	DB     *gorm.DB
	Cache  cache.Cache
	PubSub cache.PubSub
	Quests *quest.Service
	Sched  *scheduler.Scheduler
	Audit  *audit.Service
	Server *httptest.Server
	URL    string // http://127.0.0.1:<port>

	cancel context.CancelFunc
}

// NewTestServer creates a fully wired server for integration testing.
// It mirrors the dependency wiring in main.go, with the scheduler left empty
// so lifecycle jobs only run when a test triggers them.
func NewTestServer(t *testing.T) *TestServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	// ---- Infrastructure ----
	db := testutil.SetupTestDB(t)
	c, pubsub := testutil.SetupTestCache(t)
	logger := zap.NewNop()

	sec := config.SecurityConfig{
		RateLimitRPS:   1000,
		RateLimitBurst: 2000,
	}

	// ---- Services ----
	auditSvc := audit.New(db, logger)
	questSvc, err := quest.NewService(db, quest.Options{Cache: c, PubSub: pubsub}, logger)
	require.NoError(t, err)
	auditSvc.Observe(questSvc.Hooks())
	sched := scheduler.New(logger)

	// ---- Gin HTTP Server ----
	ctx, cancel := context.WithCancel(context.Background())
	r := gin.New()
	r.Use(mw.TraceID(), mw.Logger(logger, "/health"), mw.Recovery(logger))
	r.Use(mw.RateLimit(ctx, rate.Limit(sec.RateLimitRPS), sec.RateLimitBurst))

	apirest.Register(r, apirest.Handlers{
		Quests:   apirest.NewQuestHandler(questSvc.Store(), logger),
		Players:  apirest.NewPlayerHandler(questSvc, logger),
		Admin:    apirest.NewAdminHandler(questSvc, sched, auditSvc, logger),
		Events:   sse.NewHandler(pubsub, questSvc.Store(), logger),
		AdminKey: AdminKey,
	})

	server := httptest.NewServer(r)
	ts := &TestServer{
		DB:     db,
		Cache:  c,
		PubSub: pubsub,
		Quests: questSvc,
		Sched:  sched,
		Audit:  auditSvc,
		Server: server,
		URL:    server.URL,
		cancel: cancel,
	}
	t.Cleanup(ts.Close)
	return ts
}

// Close shuts down the server and background workers. Safe to call twice.
func (ts *TestServer) Close() {
	ts.Server.Close()
	ts.Sched.Stop()
	ts.Audit.Stop(context.Background())
	ts.cancel()
}

// --- HTTP helpers ---

func (ts *TestServer) do(t *testing.T, method, path string, body interface{}, admin bool) *http.Response {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if admin {
		req.Header.Set(mw.AdminKeyHeader, AdminKey)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	return resp
}

// Get sends a GET request.
func (ts *TestServer) Get(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, false)
}

// PostJSON sends a POST request with a JSON body.
func (ts *TestServer) PostJSON(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, false)
}

// AdminGet sends a GET request carrying the admin key.
func (ts *TestServer) AdminGet(t *testing.T, path string) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodGet, path, nil, true)
}

// AdminPost sends a POST request carrying the admin key.
func (ts *TestServer) AdminPost(t *testing.T, path string, body interface{}) *http.Response {
	t.Helper()
	return ts.do(t, http.MethodPost, path, body, true)
}

// ReadJSON reads and decodes a JSON response body into the given target.
func ReadJSON(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, target), "body: %s", string(data))
}

// --- SSE client ---

// Event is one decoded server-sent event.
type Event struct {
	Name string
	Data string
}

// EventStream reads events from an open SSE response in the background.
type EventStream struct {
	resp   *http.Response
	events chan Event
}

// OpenEvents connects to a player's event stream and waits for the
// connected event.
func (ts *TestServer) OpenEvents(t *testing.T, playerID int64) *EventStream {
	t.Helper()
	resp := ts.Get(t, fmt.Sprintf("/api/players/%d/events", playerID))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	es := &EventStream{resp: resp, events: make(chan Event, 16)}
	go es.readLoop()
	t.Cleanup(func() { resp.Body.Close() })

	ev := es.Next(t, 2*time.Second)
	require.Equal(t, "connected", ev.Name)
	return es
}

func (es *EventStream) readLoop() {
	defer close(es.events)
	sc := bufio.NewScanner(es.resp.Body)
	var cur Event
	for sc.Scan() {
		line := sc.Text()
		switch {
		case line == "":
			if cur.Name != "" {
				es.events <- cur
			}
			cur = Event{}
		case strings.HasPrefix(line, "event: "):
			cur.Name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			cur.Data = strings.TrimPrefix(line, "data: ")
		}
	}
}

// Next returns the next named event or fails the test after timeout.
func (es *EventStream) Next(t *testing.T, timeout time.Duration) Event {
	t.Helper()
	select {
	case ev, ok := <-es.events:
		require.True(t, ok, "event stream closed")
		return ev
	case <-time.After(timeout):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}
