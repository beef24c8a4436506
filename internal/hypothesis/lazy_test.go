package hypothesis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLazy_concurrentCallersBuildOnce(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (int, error) {
		builds.Add(1)
		<-release
		return 42, nil
	})

	const callers = 50
	var wg sync.WaitGroup
	results := make([]int, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = l.Get(context.Background())
		}()
	}
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), builds.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, 42, results[i])
	}
}

func TestLazy_errorIsNotCached(t *testing.T) {
	var builds atomic.Int32
	boom := errors.New("boom")
	l := NewLazy(func(ctx context.Context) (string, error) {
		if builds.Add(1) == 1 {
			return "", boom
		}
		return "ok", nil
	})

	_, err := l.Get(context.Background())
	assert.ErrorIs(t, err, boom)
	_, ok := l.Peek()
	assert.False(t, ok)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	v, err = l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", v)
	assert.Equal(t, int32(2), builds.Load())
}

func TestLazy_waiterHonoursContextButBuildCompletes(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	var buildCtxErr atomic.Value
	l := NewLazy(func(ctx context.Context) (int, error) {
		builds.Add(1)
		<-release
		buildCtxErr.Store(ctx.Err() == nil)
		return 7, nil
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := l.Get(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 7, v)
	assert.Equal(t, int32(1), builds.Load())
	assert.Equal(t, true, buildCtxErr.Load())
}

func TestLazy_resetRebuilds(t *testing.T) {
	var builds atomic.Int32
	l := NewLazy(func(ctx context.Context) (int32, error) {
		return builds.Add(1), nil
	})
	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	l.Reset()
	_, ok := l.Peek()
	assert.False(t, ok)

	v, err = l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestLazy_resetDuringBuildDiscardsResult(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	l := NewLazy(func(ctx context.Context) (int32, error) {
		n := builds.Add(1)
		if n == 1 {
			<-release
		}
		return n, nil
	})

	done := make(chan int32)
	go func() {
		v, _ := l.Get(context.Background())
		done <- v
	}()
	require.Eventually(t, func() bool { return builds.Load() == 1 }, time.Second, time.Millisecond)
	l.Reset()
	close(release)
	assert.Equal(t, int32(1), <-done)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
}

func TestLazy_panicBecomesError(t *testing.T) {
	l := NewLazy(func(ctx context.Context) (int, error) {
		panic("bad input")
	})
	_, err := l.Get(context.Background())
	assert.ErrorContains(t, err, "bad input")
}

func TestLazy_replacedValueIsRetiredAfterRebuild(t *testing.T) {
	var builds atomic.Int32
	fail := atomic.Bool{}
	var retired []int32
	l := NewLazy(func(ctx context.Context) (int32, error) {
		if fail.Load() {
			return 0, errors.New("boom")
		}
		return builds.Add(1), nil
	}).WithRetire(func(v int32) { retired = append(retired, v) })

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), v)

	l.Reset()
	fail.Store(true)
	_, err = l.Get(context.Background())
	require.Error(t, err)
	assert.Empty(t, retired, "a failed rebuild keeps the replaced value alive")

	fail.Store(false)
	v, err = l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	assert.Equal(t, []int32{1}, retired)
}

func TestLazy_staleBuildIsRetired(t *testing.T) {
	var builds atomic.Int32
	release := make(chan struct{})
	var mu sync.Mutex
	var retired []int32
	l := NewLazy(func(ctx context.Context) (int32, error) {
		n := builds.Add(1)
		if n == 1 {
			<-release
		}
		return n, nil
	}).WithRetire(func(v int32) {
		mu.Lock()
		retired = append(retired, v)
		mu.Unlock()
	})

	done := make(chan int32)
	go func() {
		v, _ := l.Get(context.Background())
		done <- v
	}()
	require.Eventually(t, func() bool { return builds.Load() == 1 }, time.Second, time.Millisecond)
	l.Reset()
	close(release)
	assert.Equal(t, int32(1), <-done)

	v, err := l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(2), v)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int32{1}, retired)
}

func TestLazy_close(t *testing.T) {
	var builds atomic.Int32
	var retired []int32
	l := NewLazy(func(ctx context.Context) (int32, error) {
		return builds.Add(1), nil
	}).WithRetire(func(v int32) { retired = append(retired, v) })

	_, err := l.Get(context.Background())
	require.NoError(t, err)
	l.Reset()
	_, err = l.Get(context.Background())
	require.NoError(t, err)
	l.Reset()
	_, err = l.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int32{1, 2}, retired)

	cur, ok := l.Close()
	require.True(t, ok)
	assert.Equal(t, int32(3), cur)
	assert.Equal(t, []int32{1, 2}, retired)

	_, err = l.Get(context.Background())
	assert.ErrorIs(t, err, ErrClosed)
	_, ok = l.Close()
	assert.False(t, ok)
}
