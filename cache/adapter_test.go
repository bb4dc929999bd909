package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewCache_LocalFallback(t *testing.T) {
	c, err := NewCache(CacheConfig{})
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", "v", time.Minute))
	v, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "v", v)

	_, err = c.Get(ctx, "missing")
	assert.True(t, IsNotFound(err))
	assert.False(t, IsNotFound(errors.New("boom")))
}

func TestNewPubSub_LocalAdapter(t *testing.T) {
	ps, err := NewPubSub(CacheConfig{LocalPubSubBuf: 4})
	require.NoError(t, err)

	ctx := context.Background()
	ch, cancel, err := ps.Subscribe(ctx, "quest:player:7")
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, ps.Publish(ctx, "quest:player:7", `{"period":"daily"}`))
	select {
	case msg := <-ch:
		assert.Equal(t, "quest:player:7", msg.Channel)
		assert.Equal(t, `{"period":"daily"}`, msg.Payload)
	case <-time.After(200 * time.Millisecond):
		t.Fatal("timeout waiting for message")
	}
}
