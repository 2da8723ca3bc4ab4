package async

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_Success(t *testing.T) {
	var count atomic.Int32

	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(_ context.Context) error {
			count.Add(1)
			return nil
		}}
	}

	results := Run(context.Background(), tasks, 2)

	require.Len(t, results, 3)
	assert.Equal(t, int32(3), count.Load())
	assert.NoError(t, Errors(results))
}

func TestRun_EmptyTasks(t *testing.T) {
	assert.Empty(t, Run(context.Background(), nil, 4))
	assert.Empty(t, Run(context.Background(), []Task{}, 4))
}

func TestRun_ResultsKeepInputOrder(t *testing.T) {
	tasks := []Task{
		{Name: "slow", Func: func(_ context.Context) error {
			time.Sleep(30 * time.Millisecond)
			return nil
		}},
		{Name: "fast", Func: func(_ context.Context) error { return nil }},
		{Name: "failing", Func: func(_ context.Context) error { return errors.New("boom") }},
	}

	results := Run(context.Background(), tasks, 3)

	require.Len(t, results, 3)
	assert.Equal(t, "slow", results[0].Name)
	assert.NoError(t, results[0].Err)
	assert.Equal(t, "fast", results[1].Name)
	assert.NoError(t, results[1].Err)
	assert.Equal(t, "failing", results[2].Name)
	assert.EqualError(t, results[2].Err, "boom")
}

func TestRun_FailureIsolation(t *testing.T) {
	var completed atomic.Int32
	tasks := []Task{
		{Name: "fast-fail", Func: func(_ context.Context) error {
			return errors.New("fast fail")
		}},
		{Name: "slow-success-1", Func: func(_ context.Context) error {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
		{Name: "slow-success-2", Func: func(_ context.Context) error {
			time.Sleep(20 * time.Millisecond)
			completed.Add(1)
			return nil
		}},
	}

	results := Run(context.Background(), tasks, 1)

	assert.Equal(t, int32(2), completed.Load())
	assert.Error(t, results[0].Err)
	assert.NoError(t, results[1].Err)
	assert.NoError(t, results[2].Err)
}

func TestRun_PanicIsRecovered(t *testing.T) {
	tasks := []Task{
		{Name: "panics", Func: func(_ context.Context) error { panic("unexpected") }},
		{Name: "ok", Func: func(_ context.Context) error { return nil }},
	}

	results := Run(context.Background(), tasks, 2)

	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "panicked")
	assert.NoError(t, results[1].Err)
}

func TestRun_NilFunc(t *testing.T) {
	results := Run(context.Background(), []Task{{Name: "empty"}}, 1)
	require.Error(t, results[0].Err)
	assert.Contains(t, results[0].Err.Error(), "empty")
}

func TestRun_RespectsLimit(t *testing.T) {
	var maxConcurrent atomic.Int32
	var current atomic.Int32

	tasks := make([]Task, 6)
	for i := range tasks {
		tasks[i] = Task{
			Name: "task",
			Func: func(_ context.Context) error {
				c := current.Add(1)
				for {
					old := maxConcurrent.Load()
					if c <= old || maxConcurrent.CompareAndSwap(old, c) {
						break
					}
				}
				time.Sleep(20 * time.Millisecond)
				current.Add(-1)
				return nil
			},
		}
	}

	Run(context.Background(), tasks, 2)

	assert.LessOrEqual(t, maxConcurrent.Load(), int32(2))
	assert.Positive(t, maxConcurrent.Load())
}

func TestRun_ZeroLimitIsSequential(t *testing.T) {
	var current, maxSeen atomic.Int32
	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(_ context.Context) error {
			c := current.Add(1)
			if c > maxSeen.Load() {
				maxSeen.Store(c)
			}
			time.Sleep(5 * time.Millisecond)
			current.Add(-1)
			return nil
		}}
	}

	Run(context.Background(), tasks, 0)

	assert.Equal(t, int32(1), maxSeen.Load())
}

func TestRun_CancelledContextReportsUnstartedTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var executed atomic.Int32
	tasks := make([]Task, 3)
	for i := range tasks {
		tasks[i] = Task{Name: "task", Func: func(ctx context.Context) error {
			executed.Add(1)
			return ctx.Err()
		}}
	}

	results := Run(ctx, tasks, 1)

	require.Len(t, results, 3)
	for _, r := range results {
		assert.ErrorIs(t, r.Err, context.Canceled)
		assert.Equal(t, "task", r.Name)
	}
	assert.Equal(t, int32(0), executed.Load())
}

func TestRun_CancelDuringRunSkipsRemainingTasks(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var executed atomic.Int32
	tasks := []Task{
		{Name: "first", Func: func(context.Context) error {
			executed.Add(1)
			cancel()
			return nil
		}},
		{Name: "second", Func: func(context.Context) error { executed.Add(1); return nil }},
		{Name: "third", Func: func(context.Context) error { executed.Add(1); return nil }},
	}

	results := Run(ctx, tasks, 1)

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, context.Canceled)
	assert.ErrorIs(t, results[2].Err, context.Canceled)
	assert.Equal(t, int32(1), executed.Load())
}

func TestErrors_IncludesTaskNames(t *testing.T) {
	err1 := errors.New("error 1")
	err2 := errors.New("error 2")

	err := Errors([]Result{
		{Name: "web-1", Err: err1},
		{Name: "web-2"},
		{Name: "web-3", Err: err2},
	})

	require.Error(t, err)
	assert.ErrorIs(t, err, err1)
	assert.ErrorIs(t, err, err2)
	assert.True(t, strings.Contains(err.Error(), "web-1"))
	assert.False(t, strings.Contains(err.Error(), "web-2"))
}
