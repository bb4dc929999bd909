package sse

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/kasuganosora/questd/game/quest"
	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setup(t *testing.T) (*httptest.Server, *quest.Service, int64) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	p := testutil.SeedPlayers(t, db, "ann")[0]
	c, ps := testutil.SetupTestCache(t)
	svc, err := quest.NewService(db, quest.Options{Cache: c, PubSub: ps}, zap.NewNop())
	require.NoError(t, err)

	h := NewHandler(ps, svc.Store(), zap.NewNop())
	h.keepalive = 50 * time.Millisecond
	r := gin.New()
	r.GET("/api/players/:id/events", h.ServeSSE)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, svc, p.ID
}

// readEvent returns the next "event:" name and its data line.
func readEvent(t *testing.T, rd *bufio.Reader) (string, string) {
	t.Helper()
	var name, data string
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		line = strings.TrimRight(line, "\n")
		switch {
		case strings.HasPrefix(line, "event: "):
			name = strings.TrimPrefix(line, "event: ")
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		case line == "" && name != "":
			return name, data
		}
	}
}

func TestServeSSE_StreamsRefreshEvents(t *testing.T) {
	srv, svc, playerID := setup(t)
	url := fmt.Sprintf("%s/api/players/%d/events", srv.URL, playerID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	rd := bufio.NewReader(resp.Body)
	name, _ := readEvent(t, rd)
	require.Equal(t, "connected", name)

	_, err = svc.ForceGenerate(ctx, playerID, model.PeriodMonthly)
	require.NoError(t, err)

	name, data := readEvent(t, rd)
	require.Equal(t, "quest_refresh", name)
	var ev quest.RefreshEvent
	require.NoError(t, json.Unmarshal([]byte(data), &ev))
	assert.Equal(t, playerID, ev.PlayerID)
	assert.Equal(t, model.PeriodMonthly, ev.Period)
}

func TestServeSSE_Keepalive(t *testing.T) {
	srv, _, playerID := setup(t)
	url := fmt.Sprintf("%s/api/players/%d/events", srv.URL, playerID)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	rd := bufio.NewReader(resp.Body)
	for {
		line, err := rd.ReadString('\n')
		require.NoError(t, err)
		if strings.HasPrefix(line, ": keepalive") {
			return
		}
	}
}

func TestServeSSE_BadRequests(t *testing.T) {
	srv, _, _ := setup(t)

	resp, err := http.Get(srv.URL + "/api/players/abc/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/players/99/events")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
