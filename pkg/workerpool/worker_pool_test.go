package workerpool

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolRunsAllTasks(t *testing.T) {
	pool := New(Config{Workers: 4, QueueSize: 8}, nil)
	var processed int64

	go func() {
		for i := 0; i < 20; i++ {
			pool.Inbox() <- Task{
				ID: "t",
				Execute: func(ctx context.Context) error {
					atomic.AddInt64(&processed, 1)
					return nil
				},
			}
		}
		close(pool.Inbox())
	}()

	err := pool.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(20), processed)
	assert.Equal(t, int64(20), pool.Stats().Completed)
}

func TestPoolPropagatesWorkerError(t *testing.T) {
	pool := New(Config{Workers: 2, QueueSize: 4}, nil)
	boom := errors.New("boom")

	go func() {
		pool.Inbox() <- Task{ID: "bad", Execute: func(ctx context.Context) error { return boom }}
	}()

	err := pool.Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
}
