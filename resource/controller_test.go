package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Tracking(t *testing.T) {
	c := NewController(Config{}) // no hard limit

	require.NoError(t, c.AcquireMemory(context.Background(), 1024))
	assert.Equal(t, int64(1024), c.MemoryUsage())

	c.ReleaseMemory(1024)
	assert.Equal(t, int64(0), c.MemoryUsage())
}

func TestController_HardLimit(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 1024})

	assert.True(t, c.TryAcquireMemory(512))
	assert.True(t, c.TryAcquireMemory(512))
	assert.False(t, c.TryAcquireMemory(1), "limit exhausted")

	c.ReleaseMemory(512)
	assert.True(t, c.TryAcquireMemory(512))
}

func TestController_AcquireBlocksUntilCancel(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	require.NoError(t, c.AcquireMemory(context.Background(), 100))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.AcquireMemory(ctx, 50)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int64(100), c.MemoryUsage())
}

func TestController_NilSafe(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.AcquireMemory(context.Background(), 10))
	assert.True(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
}
