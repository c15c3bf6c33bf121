package coalesce

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

func waitIdle(t *testing.T, s *Scheduler) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Wait(ctx))
}

func TestScheduler_SingleInvalidateRunsOnce(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) error {
		runs.Add(1)
		return nil
	})
	defer s.Close()

	s.Invalidate()
	waitIdle(t, s)

	assert.Equal(t, int32(1), runs.Load())
	assert.Equal(t, uint64(1), s.Stats().Runs)
}

func TestScheduler_InvalidationsWhileRunningCoalesce(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	s := New(func(context.Context) error {
		n := runs.Add(1)
		started <- struct{}{}
		if n == 1 {
			<-release
		}
		return nil
	})
	defer s.Close()

	s.Invalidate()
	<-started

	for range 25 {
		s.Invalidate()
	}
	close(release)
	waitIdle(t, s)

	assert.Equal(t, int32(2), runs.Load())
	stats := s.Stats()
	assert.Equal(t, uint64(2), stats.Runs)
	assert.Equal(t, uint64(24), stats.Coalesced)
}

func TestScheduler_NeverRunsConcurrently(t *testing.T) {
	var active, maxActive atomic.Int32
	s := New(func(context.Context) error {
		n := active.Add(1)
		for {
			m := maxActive.Load()
			if n <= m || maxActive.CompareAndSwap(m, n) {
				break
			}
		}
		time.Sleep(time.Millisecond)
		active.Add(-1)
		return nil
	})
	defer s.Close()

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 50 {
				s.Invalidate()
			}
		}()
	}
	wg.Wait()
	waitIdle(t, s)

	assert.Equal(t, int32(1), maxActive.Load())
}

func TestScheduler_FollowUpObservesLatestState(t *testing.T) {
	var published atomic.Int64
	var observed []int64
	var mu sync.Mutex
	started := make(chan struct{}, 10)
	release := make(chan struct{})

	s := New(func(context.Context) error {
		mu.Lock()
		first := len(observed) == 0
		observed = append(observed, published.Load())
		mu.Unlock()
		started <- struct{}{}
		if first {
			<-release
		}
		return nil
	})
	defer s.Close()

	published.Store(1)
	s.Invalidate()
	<-started

	for i := int64(2); i <= 5; i++ {
		published.Store(i)
		s.Invalidate()
	}
	close(release)
	waitIdle(t, s)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []int64{1, 5}, observed)
}

func TestScheduler_FailureDoesNotStopFutureRuns(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) error {
		if runs.Add(1) == 1 {
			return errors.New("backend down")
		}
		return nil
	})
	defer s.Close()

	s.Invalidate()
	waitIdle(t, s)
	s.Invalidate()
	waitIdle(t, s)

	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, uint64(1), s.Stats().Failures)
}

func TestScheduler_PanicIsRecovered(t *testing.T) {
	var runs atomic.Int32
	s := New(func(context.Context) error {
		if runs.Add(1) == 1 {
			panic("boom")
		}
		return nil
	})
	defer s.Close()

	s.Invalidate()
	waitIdle(t, s)
	s.Invalidate()
	waitIdle(t, s)

	assert.Equal(t, int32(2), runs.Load())
	assert.Equal(t, uint64(1), s.Stats().Failures)
}

func TestScheduler_CloseCancelsJobAndDropsPending(t *testing.T) {
	var runs atomic.Int32
	started := make(chan struct{})
	s := New(func(ctx context.Context) error {
		runs.Add(1)
		close(started)
		<-ctx.Done()
		return ctx.Err()
	})

	s.Invalidate()
	<-started
	s.Invalidate()

	s.Close()
	s.Invalidate()

	assert.Equal(t, int32(1), runs.Load())
	waitIdle(t, s)
}

func TestScheduler_WaitHonorsContext(t *testing.T) {
	release := make(chan struct{})
	s := New(func(context.Context) error {
		<-release
		return nil
	})
	defer s.Close()
	defer close(release)

	s.Invalidate()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, s.Wait(ctx), context.DeadlineExceeded)
}
