package hook

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pass(_ context.Context, _ string, d interface{}) (interface{}, error) { return d, nil }

func TestTrigger_NoHandlers(t *testing.T) {
	c := NewCenter()
	out, err := c.Trigger(context.Background(), OnQuestComplete, 42)
	require.NoError(t, err)
	assert.Equal(t, 42, out)
}

func TestTrigger_NilCenter(t *testing.T) {
	var c *Center
	out, err := c.Trigger(context.Background(), OnQuestComplete, "x")
	require.NoError(t, err)
	assert.Equal(t, "x", out)
}

func TestTrigger_DataPassThrough(t *testing.T) {
	c := NewCenter()
	c.Register("ev", 0, "double", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d.(int) * 2, nil
	})
	c.Register("ev", 1, "addTen", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d.(int) + 10, nil
	})
	out, err := c.Trigger(context.Background(), "ev", 5)
	require.NoError(t, err)
	assert.Equal(t, 20, out)
}

func TestTrigger_PriorityOrder(t *testing.T) {
	c := NewCenter()
	var order []string
	record := func(tag string) Fn {
		return func(_ context.Context, _ string, d interface{}) (interface{}, error) {
			order = append(order, tag)
			return d, nil
		}
	}
	c.Register("ev", 10, "high", record("high"))
	c.Register("ev", 1, "low", record("low"))
	c.Register("ev", 5, "mid-a", record("mid-a"))
	c.Register("ev", 5, "mid-b", record("mid-b"))
	_, _ = c.Trigger(context.Background(), "ev", nil)
	assert.Equal(t, []string{"low", "mid-a", "mid-b", "high"}, order)
}

func TestTrigger_InterruptStops(t *testing.T) {
	c := NewCenter()
	var secondCalled bool
	c.Register(BeforeQuestClaim, 0, "veto", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d, ErrInterrupt
	})
	c.Register(BeforeQuestClaim, 1, "second", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		secondCalled = true
		return d, nil
	})
	_, err := c.Trigger(context.Background(), BeforeQuestClaim, nil)
	assert.ErrorIs(t, err, ErrInterrupt)
	assert.False(t, secondCalled)
}

func TestTrigger_OtherErrorsSkipped(t *testing.T) {
	c := NewCenter()
	c.Register("ev", 0, "broken", func(_ context.Context, _ string, _ interface{}) (interface{}, error) {
		return "garbage", errors.New("boom")
	})
	c.Register("ev", 1, "upper", func(_ context.Context, _ string, d interface{}) (interface{}, error) {
		return d.(string) + "!", nil
	})
	out, err := c.Trigger(context.Background(), "ev", "ok")
	require.NoError(t, err)
	assert.Equal(t, "ok!", out)
}

func TestUnregister_OnlyNamed(t *testing.T) {
	c := NewCenter()
	c.Register("ev", 0, "h1", pass)
	c.Register("ev", 1, "h2", pass)
	c.Unregister("ev", "h1")
	assert.Equal(t, 1, c.Len("ev"))
}

func TestUnregisterAll(t *testing.T) {
	c := NewCenter()
	c.Register(OnQuestComplete, 0, "audit", pass)
	c.Register(AfterQuestClaim, 0, "audit", pass)
	c.Register(AfterQuestClaim, 1, "other", pass)
	c.UnregisterAll("audit")
	assert.Zero(t, c.Len(OnQuestComplete))
	assert.Equal(t, 1, c.Len(AfterQuestClaim))
}
