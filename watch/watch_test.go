package watch_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/providers/mem"
	"github.com/nimbusfs/vfs/watch"
)

// watchCounting wraps a mem provider to count provider.Watch invocations
// and disposals of the disposables it hands back.
type watchCounting struct {
	*mem.Provider
	mu       sync.Mutex
	calls    int
	disposed int
	gate     chan struct{}
}

func (w *watchCounting) Watch(ctx context.Context, resource fs.Resource, opts fs.WatchOptions) (fs.Disposable, error) {
	w.mu.Lock()
	w.calls++
	w.mu.Unlock()
	if w.gate != nil {
		<-w.gate
	}
	return fs.NewDisposableFunc(func() {
		w.mu.Lock()
		w.disposed++
		w.mu.Unlock()
	}), nil
}

func (w *watchCounting) counts() (int, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls, w.disposed
}

func TestWatchSharesOneUnderlyingSubscription(t *testing.T) {
	p := &watchCounting{Provider: mem.New()}
	m := watch.New()
	ctx := context.Background()
	resource := fs.NewResource("mem", "/w")
	opts := fs.WatchOptions{Recursive: true}

	h1, err := m.Watch(ctx, p, resource, opts)
	require.NoError(t, err)
	h2, err := m.Watch(ctx, p, resource, opts)
	require.NoError(t, err)
	assert.NotEqual(t, h1.ID(), h2.ID())

	calls, disposed := p.counts()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, disposed)

	h1.Dispose()
	_, disposed = p.counts()
	assert.Equal(t, 0, disposed)

	h2.Dispose()
	calls, disposed = p.counts()
	assert.Equal(t, 1, calls)
	assert.Equal(t, 1, disposed)
	assert.Equal(t, 0, m.ActiveCount())
}

func TestWatchDistinctOptionsGetDistinctSubscriptions(t *testing.T) {
	p := &watchCounting{Provider: mem.New()}
	m := watch.New()
	ctx := context.Background()
	resource := fs.NewResource("mem", "/w")

	_, err := m.Watch(ctx, p, resource, fs.WatchOptions{Recursive: true})
	require.NoError(t, err)
	_, err = m.Watch(ctx, p, resource, fs.WatchOptions{Recursive: false})
	require.NoError(t, err)
	_, err = m.Watch(ctx, p, resource, fs.WatchOptions{Recursive: true, Excludes: []string{"*.tmp"}})
	require.NoError(t, err)

	calls, _ := p.counts()
	assert.Equal(t, 3, calls)
	assert.Equal(t, 3, m.ActiveCount())
}

func TestHandleDisposeIsIdempotent(t *testing.T) {
	p := &watchCounting{Provider: mem.New()}
	m := watch.New()
	ctx := context.Background()
	resource := fs.NewResource("mem", "/w")
	opts := fs.WatchOptions{Recursive: true}

	h1, err := m.Watch(ctx, p, resource, opts)
	require.NoError(t, err)
	h2, err := m.Watch(ctx, p, resource, opts)
	require.NoError(t, err)

	// Disposing the same handle twice must decrement the refcount once,
	// leaving h2's subscription alive.
	h1.Dispose()
	h1.Dispose()
	_, disposed := p.counts()
	assert.Equal(t, 0, disposed)
	assert.Equal(t, 1, m.ActiveCount())

	h2.Dispose()
	_, disposed = p.counts()
	assert.Equal(t, 1, disposed)
}

func TestMultiplexerDisposeTearsDownEverything(t *testing.T) {
	p := &watchCounting{Provider: mem.New()}
	m := watch.New()
	ctx := context.Background()

	_, err := m.Watch(ctx, p, fs.NewResource("mem", "/a"), fs.WatchOptions{})
	require.NoError(t, err)
	_, err = m.Watch(ctx, p, fs.NewResource("mem", "/b"), fs.WatchOptions{})
	require.NoError(t, err)

	m.Dispose()
	_, disposed := p.counts()
	assert.Equal(t, 2, disposed)
	assert.Equal(t, 0, m.ActiveCount())

	_, err = m.Watch(ctx, p, fs.NewResource("mem", "/c"), fs.WatchOptions{})
	assert.Error(t, err)
}

func TestDisposeWhileSubscriptionStartsUp(t *testing.T) {
	gate := make(chan struct{})
	p := &watchCounting{Provider: mem.New(), gate: gate}
	m := watch.New()
	ctx := context.Background()
	resource := fs.NewResource("mem", "/w")
	opts := fs.WatchOptions{Recursive: true}

	watchErr := make(chan error)
	go func() {
		_, err := m.Watch(ctx, p, resource, opts)
		watchErr <- err
	}()

	// Wait for the in-flight provider.Watch, then tear the multiplexer down
	// before the subscription has resolved. The late-arriving disposable
	// must still be disposed.
	require.Eventually(t, func() bool {
		calls, _ := p.counts()
		return calls == 1
	}, time.Second, time.Millisecond)

	m.Dispose()
	close(gate)
	require.NoError(t, <-watchErr)

	require.Eventually(t, func() bool {
		_, disposed := p.counts()
		return disposed == 1
	}, time.Second, time.Millisecond)
}
