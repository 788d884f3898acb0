package paging

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

// source serves ints 0..total-1 in pages and counts requests.
type source struct {
	mu    sync.Mutex
	total int
	calls []int
	fail  map[int]error

	gate    chan struct{}
	started chan int
}

func (s *source) fetch(ctx context.Context, page, pageSize int) (Page[int], error) {
	s.mu.Lock()
	s.calls = append(s.calls, page)
	err := s.fail[page]
	total := s.total
	gate, started := s.gate, s.started
	s.mu.Unlock()

	if started != nil {
		started <- page
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return Page[int]{}, ctx.Err()
		}
	}
	if err != nil {
		return Page[int]{}, err
	}
	var items []int
	for i := (page - 1) * pageSize; i < page*pageSize && i < total; i++ {
		items = append(items, i)
	}
	return Page[int]{Items: items, Total: total}, nil
}

func (s *source) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

func TestController_LoadsAllPages(t *testing.T) {
	src := &source{total: 25}
	c := New(src.fetch, 9)
	ctx := context.Background()

	require.NoError(t, c.Load(ctx))
	snap := c.Snapshot()
	assert.Len(t, snap.Items, 9)
	assert.Equal(t, 25, snap.Total)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, StateReady, snap.State)

	added, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, c.Items(), 18)

	added, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Len(t, c.Items(), 25)
	assert.False(t, c.HasMore())

	added, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 3, src.callCount())

	items := c.Items()
	for i, v := range items {
		assert.Equal(t, i, v)
	}
}

func TestController_FirstLoadFailure(t *testing.T) {
	boom := errors.New("boom")
	src := &source{total: 5, fail: map[int]error{1: boom}}
	c := New(src.fetch, 2)
	ctx := context.Background()

	require.ErrorIs(t, c.Load(ctx), boom)
	snap := c.Snapshot()
	assert.Equal(t, StateError, snap.State)
	assert.Empty(t, snap.Items)
	assert.ErrorIs(t, snap.Err, boom)

	added, err := c.LoadMore(ctx)
	assert.NoError(t, err)
	assert.False(t, added)

	src.mu.Lock()
	delete(src.fail, 1)
	src.mu.Unlock()
	require.NoError(t, c.Load(ctx))
	assert.Len(t, c.Items(), 2)
}

func TestController_LoadMoreFailureKeepsItemsAndRetriesSamePage(t *testing.T) {
	boom := errors.New("boom")
	src := &source{total: 25, fail: map[int]error{2: boom}}
	c := New(src.fetch, 9)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	added, err := c.LoadMore(ctx)
	require.ErrorIs(t, err, boom)
	assert.False(t, added)
	snap := c.Snapshot()
	assert.Len(t, snap.Items, 9)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, StateReady, snap.State)
	assert.ErrorIs(t, snap.Err, boom)

	src.mu.Lock()
	delete(src.fail, 2)
	src.mu.Unlock()

	added, err = c.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, 2, c.Snapshot().Page)
	assert.NoError(t, c.Snapshot().Err)
	assert.Equal(t, []int{1, 2, 2}, src.calls)
}

func TestController_SingleInFlight(t *testing.T) {
	src := &source{total: 25}
	c := New(src.fetch, 9)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	src.mu.Lock()
	src.gate = make(chan struct{})
	src.started = make(chan int, 4)
	src.mu.Unlock()

	var wg sync.WaitGroup
	var appended atomic.Int32
	wg.Add(1)
	go func() {
		defer wg.Done()
		if ok, _ := c.LoadMore(ctx); ok {
			appended.Add(1)
		}
	}()
	assert.Equal(t, 2, <-src.started)
	assert.Equal(t, StateLoadingMore, c.Snapshot().State)

	for i := 0; i < 5; i++ {
		added, err := c.LoadMore(ctx)
		require.NoError(t, err)
		assert.False(t, added)
	}
	close(src.gate)
	wg.Wait()

	assert.Equal(t, int32(1), appended.Load())
	assert.Equal(t, 2, src.callCount())
	assert.Len(t, c.Items(), 18)
}

func TestController_CloseDiscardsLateResult(t *testing.T) {
	src := &source{total: 25}
	c := New(src.fetch, 9)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	var changes atomic.Int32
	c.OnChange(func(Snapshot[int]) { changes.Add(1) })

	src.mu.Lock()
	src.gate = make(chan struct{})
	src.started = make(chan int, 1)
	src.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		added, err := c.LoadMore(ctx)
		assert.NoError(t, err)
		assert.False(t, added)
	}()
	<-src.started
	before := changes.Load()
	c.Close()
	close(src.gate)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("LoadMore did not return")
	}
	snap := c.Snapshot()
	assert.Len(t, snap.Items, 9)
	assert.Equal(t, 1, snap.Page)
	assert.Equal(t, before, changes.Load())

	_, err := c.LoadMore(ctx)
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, c.Load(ctx), ErrClosed)
}

func TestController_ReloadSupersedesInFlight(t *testing.T) {
	src := &source{total: 25}
	c := New(src.fetch, 9)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	src.mu.Lock()
	src.gate = make(chan struct{})
	src.started = make(chan int, 2)
	src.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.LoadMore(ctx)
	}()
	<-src.started

	reloaded := make(chan error, 1)
	go func() { reloaded <- c.Reload(ctx) }()
	assert.Equal(t, 1, <-src.started)
	close(src.gate)
	<-done
	require.NoError(t, <-reloaded)

	snap := c.Snapshot()
	assert.Equal(t, 1, snap.Page)
	assert.Len(t, snap.Items, 9)
}

func TestController_ClampsToLatestTotal(t *testing.T) {
	total := 20
	fetch := func(_ context.Context, page, size int) (Page[int], error) {
		items := make([]int, size)
		return Page[int]{Items: items, Total: total}, nil
	}
	c := New(fetch, 9)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	total = 12
	added, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.True(t, added)
	snap := c.Snapshot()
	assert.Len(t, snap.Items, 12)
	assert.Equal(t, 12, snap.Total)
	assert.False(t, snap.HasMore())
}

func TestController_NegativeTotalClampsToZero(t *testing.T) {
	total := -1
	fetch := func(_ context.Context, page, size int) (Page[int], error) {
		return Page[int]{Items: []int{1, 2}, Total: total}, nil
	}
	c := New(fetch, 2)
	ctx := context.Background()

	require.NotPanics(t, func() { require.NoError(t, c.Load(ctx)) })
	snap := c.Snapshot()
	assert.Empty(t, snap.Items)
	assert.Equal(t, 0, snap.Total)
	assert.Equal(t, StateReady, snap.State)
	assert.False(t, snap.HasMore())

	total = 6
	require.NoError(t, c.Reload(ctx))
	assert.Len(t, c.Items(), 2)
	assert.True(t, c.HasMore())

	total = -5
	added, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, c.Items())
	assert.Equal(t, 0, c.Snapshot().Total)
}

func TestController_EmptyPageEndsList(t *testing.T) {
	fetch := func(_ context.Context, page, size int) (Page[int], error) {
		if page > 1 {
			return Page[int]{Total: 30}, nil
		}
		return Page[int]{Items: make([]int, size), Total: 30}, nil
	}
	c := New(fetch, 10)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))

	added, err := c.LoadMore(ctx)
	require.NoError(t, err)
	assert.False(t, added)
	assert.False(t, c.HasMore())
	assert.Equal(t, 10, c.Snapshot().Total)
}

func TestController_OnChangeSequence(t *testing.T) {
	src := &source{total: 3}
	c := New(src.fetch, 2)
	var states []State
	c.OnChange(func(s Snapshot[int]) { states = append(states, s.State) })

	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	_, err := c.LoadMore(ctx)
	require.NoError(t, err)

	assert.Equal(t, []State{StateLoadingFirst, StateReady, StateLoadingMore, StateReady}, states)
}

func TestController_LoadIsIdempotentWhenReady(t *testing.T) {
	src := &source{total: 3}
	c := New(src.fetch, 2)
	ctx := context.Background()
	require.NoError(t, c.Load(ctx))
	require.NoError(t, c.Load(ctx))
	assert.Equal(t, 1, src.callCount())

	require.NoError(t, c.Reload(ctx))
	assert.Equal(t, 2, src.callCount())
}
