package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	testingclock "k8s.io/utils/clock/testing"
)

func newTestQueue(t *testing.T) (*ExecutionQueue, *testingclock.FakeClock) {
	clk := testingclock.NewFakeClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	q := NewExecutionQueue(clk, DefaultIntervals(), logr.Discard())
	t.Cleanup(q.Close)
	return q, clk
}

func TestExecutionQueue_PacesCallsOfTheSameCategory(t *testing.T) {
	q, clk := newTestQueue(t)
	ctx := context.Background()

	var calls []time.Time
	for i := 0; i < 5; i++ {
		err := q.Do(ctx, Creation, func(ctx context.Context) error {
			calls = append(calls, clk.Now())
			return nil
		})
		require.NoError(t, err)
	}

	require.Len(t, calls, 5)
	for i := 1; i < len(calls); i++ {
		assert.GreaterOrEqual(t, calls[i].Sub(calls[i-1]), 200*time.Millisecond)
	}
	assert.Equal(t, 4*200*time.Millisecond, q.Suspended(Creation))
	assert.Equal(t, 5, q.Issued(Creation))
}

func TestExecutionQueue_CategoriesArePacedIndependently(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	noop := func(ctx context.Context) error { return nil }

	require.NoError(t, q.Do(ctx, Deletion, noop))
	require.NoError(t, q.Do(ctx, Emoji, noop))
	require.NoError(t, q.Do(ctx, Deletion, noop))
	require.NoError(t, q.Do(ctx, Emoji, noop))

	assert.Equal(t, 100*time.Millisecond, q.Suspended(Deletion))
	assert.Equal(t, 300*time.Millisecond, q.Suspended(Emoji))
}

func TestExecutionQueue_PacesFailedCallsToo(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	failure := errors.New("rate limited")

	err := q.Do(ctx, Emoji, func(ctx context.Context) error { return failure })
	assert.ErrorIs(t, err, failure)
	require.NoError(t, q.Do(ctx, Emoji, func(ctx context.Context) error { return nil }))

	assert.Equal(t, 300*time.Millisecond, q.Suspended(Emoji))
}

func TestExecutionQueue_UnpacedCallsAreNeverDelayed(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Do(ctx, Unpaced, func(ctx context.Context) error { return nil }))
	}
	assert.Zero(t, q.Suspended(Unpaced))
	assert.Equal(t, 3, q.Issued(Unpaced))
}

func TestExecutionQueue_NeverRunsTasksConcurrently(t *testing.T) {
	q, _ := newTestQueue(t)
	ctx := context.Background()

	var mutex sync.Mutex
	running, maxRunning := 0, 0
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = q.Do(ctx, Unpaced, func(ctx context.Context) error {
				mutex.Lock()
				running++
				if running > maxRunning {
					maxRunning = running
				}
				mutex.Unlock()
				time.Sleep(time.Millisecond)
				mutex.Lock()
				running--
				mutex.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxRunning)
}

func TestExecutionQueue_DoAfterClose(t *testing.T) {
	q, _ := newTestQueue(t)
	q.Close()
	err := q.Do(context.Background(), Creation, func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrClosed)
}
