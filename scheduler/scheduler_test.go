package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNop() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func TestAddTicker_Fires(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("tick", 20*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(120 * time.Millisecond)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&count), int32(3))
}

func TestAddTicker_Replaces(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count1, count2 int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count1, 1) })
	time.Sleep(30 * time.Millisecond)
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count2, 1) })
	time.Sleep(80 * time.Millisecond)

	// Old ticker should have stopped, new one should be running
	snap1 := atomic.LoadInt32(&count1)
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&count1), "old ticker must stop after replacement")
	assert.Positive(t, atomic.LoadInt32(&count2))
}

func TestAddDelay_FiresOnce(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("once", 30*time.Millisecond, func(context.Context) {
		atomic.AddInt32(&count, 1)
	})

	time.Sleep(100 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&count))
}

func TestAddDelay_ReplacesCancelsOld(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	// Schedule with long delay, then replace immediately
	s.AddDelay("d", 500*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	s.AddDelay("d", 30*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 10) })
	time.Sleep(100 * time.Millisecond)
	// Only the second delay should have fired (value 10), not both
	v := atomic.LoadInt32(&count)
	assert.Equal(t, int32(10), v)
}

func TestRemove_Ticker(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddTicker("task", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Remove("task")
	snap := atomic.LoadInt32(&count)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap, atomic.LoadInt32(&count), "ticker must stop after Remove")
}

func TestRemove_Delay(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.AddDelay("d", 100*time.Millisecond, func(context.Context) { atomic.AddInt32(&count, 1) })
	s.Remove("d")
	time.Sleep(150 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&count))
}

func TestRemove_NonExistent(t *testing.T) {
	s := New(newNop())
	defer s.Stop()
	// Must not panic
	s.Remove("nope")
}

func TestStop_StopsAllTickers(t *testing.T) {
	s := New(newNop())

	var c1, c2 int32
	s.AddTicker("a", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&c1, 1) })
	s.AddTicker("b", 20*time.Millisecond, func(context.Context) { atomic.AddInt32(&c2, 1) })
	time.Sleep(50 * time.Millisecond)
	s.Stop()
	// Give goroutines time to observe the stop signal before snapping counts.
	time.Sleep(30 * time.Millisecond)
	snap1, snap2 := atomic.LoadInt32(&c1), atomic.LoadInt32(&c2)
	time.Sleep(60 * time.Millisecond)
	assert.Equal(t, snap1, atomic.LoadInt32(&c1))
	assert.Equal(t, snap2, atomic.LoadInt32(&c2))
}

func TestStop_Idempotent(t *testing.T) {
	s := New(newNop())
	s.Stop()
	s.Stop() // must not panic on double-stop
}

func TestJobs_SortedSnapshot(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	require.Empty(t, s.Jobs())
	s.AddTicker("sweep", time.Hour, func(context.Context) {})
	require.NoError(t, s.AddCron("daily", "0 0 * * *", func(context.Context) {}))
	s.AddDelay("backfill", time.Hour, func(context.Context) {})

	jobs := s.Jobs()
	require.Len(t, jobs, 3)
	assert.Equal(t, "backfill", jobs[0].Name)
	assert.Equal(t, KindDelay, jobs[0].Kind)
	assert.Equal(t, "daily", jobs[1].Name)
	assert.Equal(t, KindCron, jobs[1].Kind)
	assert.Equal(t, "0 0 * * *", jobs[1].Schedule)
	assert.Equal(t, "sweep", jobs[2].Name)
	assert.Equal(t, KindInterval, jobs[2].Kind)
	assert.Equal(t, "1h0m0s", jobs[2].Schedule)
}

func TestJobs_AfterRemove(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	s.AddTicker("x", time.Hour, func(context.Context) {})
	s.AddTicker("y", time.Hour, func(context.Context) {})
	s.Remove("x")
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, "y", jobs[0].Name)
}

func TestAddDelay_DropsOutOfJobsAfterFiring(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	s.AddDelay("once", 10*time.Millisecond, func(context.Context) {})
	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, s.Jobs())
}

func TestAddCron_InvalidSpec(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	assert.Error(t, s.AddCron("bad", "every monday", func(context.Context) {}))
	assert.Error(t, s.AddCron("bad", "0 0 * *", func(context.Context) {}))
	assert.Empty(t, s.Jobs())
}

func TestNew_ClockIsUTC(t *testing.T) {
	s := New(newNop())
	defer s.Stop()
	assert.Equal(t, time.UTC, s.now().Location())

	require.NoError(t, s.AddCron("daily", "0 0 * * *", func(context.Context) {}))
	next := s.Jobs()[0].NextRun
	assert.Equal(t, time.UTC, next.Location())
	assert.Equal(t, 0, next.Hour())
}

func TestAddCron_NextRun(t *testing.T) {
	s := New(newNop())
	defer s.Stop()
	s.now = func() time.Time { return time.Date(2026, time.October, 21, 14, 30, 0, 0, time.UTC) }

	require.NoError(t, s.AddCron("weekly", "0 0 * * 1", func(context.Context) {}))
	require.NoError(t, s.AddCron("monthly", "0 0 1 * *", func(context.Context) {}))

	jobs := s.Jobs()
	require.Len(t, jobs, 2)
	assert.Equal(t, time.Date(2026, time.November, 1, 0, 0, 0, 0, time.UTC), jobs[0].NextRun)
	assert.Equal(t, time.Date(2026, time.October, 26, 0, 0, 0, 0, time.UTC), jobs[1].NextRun)
}

// stepSchedule is a sub-second cron.Schedule for tests.
type stepSchedule time.Duration

func (d stepSchedule) Next(t time.Time) time.Time { return t.Add(time.Duration(d)) }

func TestCronLoop_FiresAndCounts(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var count int32
	s.addSchedule("fast", KindCron, "test", stepSchedule(20*time.Millisecond), func(context.Context) {
		atomic.AddInt32(&count, 1)
	})
	time.Sleep(120 * time.Millisecond)

	n := atomic.LoadInt32(&count)
	assert.GreaterOrEqual(t, n, int32(3))
	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.GreaterOrEqual(t, jobs[0].Runs, int64(3))
	assert.False(t, jobs[0].LastRun.IsZero())
}

func TestStop_CancelsTaskContext(t *testing.T) {
	s := New(newNop())

	done := make(chan struct{})
	s.AddDelay("wait", time.Millisecond, func(ctx context.Context) {
		<-ctx.Done()
		close(done)
	})
	time.Sleep(20 * time.Millisecond)
	s.Stop()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("task context was not cancelled")
	}
}

func TestTicker_PanicRecovery(t *testing.T) {
	s := New(newNop())
	defer s.Stop()

	var after int32
	s.AddTicker("panic", 20*time.Millisecond, func(context.Context) {
		panic("oops")
	})
	// After the panic the ticker goroutine should keep running
	time.Sleep(80 * time.Millisecond)
	atomic.StoreInt32(&after, 1)
	assert.Equal(t, int32(1), after) // test itself didn't crash

	jobs := s.Jobs()
	require.Len(t, jobs, 1)
	assert.GreaterOrEqual(t, jobs[0].Panics, int64(2))
}
