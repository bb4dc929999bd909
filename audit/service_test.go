package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/kasuganosora/questd/model"
	"github.com/kasuganosora/questd/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func nop() *zap.Logger { return zap.NewNop() }

func TestLog_EnqueuedAndFlushed(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	playerID := int64(7)
	svc.Log(Entry{
		TraceID:  "trace-123",
		PlayerID: &playerID,
		Action:   "quest.refresh",
		Request:  map[string]string{"period": "weekly"},
		Response: map[string]int{"count": 10},
		IP:       "127.0.0.1",
		Duration: 42 * time.Millisecond,
	})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "trace-123", logs[0].TraceID)
	require.NotNil(t, logs[0].PlayerID)
	assert.Equal(t, int64(7), *logs[0].PlayerID)
	assert.Equal(t, "quest.refresh", logs[0].Action)
	assert.JSONEq(t, `{"period":"weekly"}`, string(logs[0].Request))
	assert.JSONEq(t, `{"count":10}`, string(logs[0].Response))
	assert.Equal(t, "127.0.0.1", logs[0].IP)
	assert.Equal(t, 42, logs[0].DurationMs)
	assert.Empty(t, logs[0].Error)
}

func TestLog_RecordsError(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{Action: "quest.generate", Err: errors.New("roster down")})
	svc.Stop(context.Background())

	var logs []model.AuditLog
	require.NoError(t, db.Find(&logs).Error)
	require.Len(t, logs, 1)
	assert.Equal(t, "roster down", logs[0].Error)
	assert.Nil(t, logs[0].PlayerID)
}

func TestLog_BatchFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < 250; i++ {
		svc.Log(Entry{Action: "batch"})
	}
	svc.Stop(context.Background())

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.Equal(t, int64(250), count)
}

func TestLog_TimerFlush(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	defer svc.Stop(context.Background())

	svc.Log(Entry{Action: "timer"})

	assert.Eventually(t, func() bool {
		var count int64
		db.Model(&model.AuditLog{}).Count(&count)
		return count == 1
	}, 3*time.Second, 100*time.Millisecond)
}

func TestRecent_NewestFirstAndFiltered(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	svc.Log(Entry{Action: "quest.generate", TraceID: "a"})
	svc.Log(Entry{Action: "quest.cleanup", TraceID: "b"})
	svc.Log(Entry{Action: "quest.generate", TraceID: "c"})
	svc.Stop(context.Background())

	all, err := svc.Recent(context.Background(), "", 10)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "c", all[0].TraceID)

	gen, err := svc.Recent(context.Background(), "quest.generate", 0)
	require.NoError(t, err)
	require.Len(t, gen, 2)
	assert.Equal(t, "c", gen[0].TraceID)
	assert.Equal(t, "a", gen[1].TraceID)
}

func TestStop_Idempotent(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())
	svc.Stop(context.Background())
	svc.Stop(context.Background())
}

func TestLog_DropsWhenFull(t *testing.T) {
	db := testutil.SetupTestDB(t)
	svc := New(db, nop())

	for i := 0; i < queueSize+50; i++ {
		svc.Log(Entry{Action: "flood"})
	}
	svc.Stop(context.Background())

	var count int64
	require.NoError(t, db.Model(&model.AuditLog{}).Count(&count).Error)
	assert.LessOrEqual(t, count, int64(queueSize+50))
	assert.Positive(t, count)
}
