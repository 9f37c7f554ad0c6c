// Package watch implements the watcher multiplexer: it reference-counts
// watch subscriptions per (provider, canonical resource key, recursive,
// excludes) and disposes the underlying provider watch exactly once, when
// the last handle sharing that key is disposed.
package watch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/nimbusfs/vfs/fs"
)

// Multiplexer owns the active-watchers table.
type Multiplexer struct {
	mu     sync.Mutex
	active map[string]*subscription
	closed bool
}

// subscription is one active (provider, key, recursive, excludes) watch.
// startup is asynchronous: disposable is nil until the underlying
// provider.Watch call resolves. If every handle disposes before that
// happens, pendingDispose records that the eventual disposable must still
// be torn down the moment it arrives.
type subscription struct {
	mu             sync.Mutex
	count          int
	disposable     fs.Disposable
	pendingDispose bool
}

// New constructs an empty Multiplexer.
func New() *Multiplexer {
	return &Multiplexer{active: make(map[string]*subscription)}
}

// Handle is returned by Watch; disposing it decrements the refcount for
// its key exactly once, however many times Dispose is called.
type Handle struct {
	id   string
	key  string
	once sync.Once
	mux  *Multiplexer
}

// ID is a unique identifier for this watch call, for correlating logs and
// events with a specific Watch invocation. It plays no role in the
// refcount/dedup logic, which remains keyed purely on (provider, resource,
// recursive, excludes).
func (h *Handle) ID() string { return h.id }

// Dispose decrements the refcount for h's key, tearing down the
// underlying provider subscription when it reaches zero.
func (h *Handle) Dispose() {
	h.once.Do(func() {
		h.mux.release(h.key)
	})
}

func composeKey(caps fs.Capability, resource fs.Resource, opts fs.WatchOptions) string {
	excludes := append([]string(nil), opts.Excludes...)
	return fmt.Sprintf("%s|%v|%s", fs.CanonicalKey(caps, resource), opts.Recursive, strings.Join(excludes, ","))
}

// Watch returns a Handle for (provider, resource, opts). If an entry
// already exists for the composed key, its refcount is incremented and
// the provider is not called again; otherwise provider.Watch is invoked
// once.
func (m *Multiplexer) Watch(ctx context.Context, provider fs.Provider, resource fs.Resource, opts fs.WatchOptions) (*Handle, error) {
	key := composeKey(provider.Capabilities(), resource, opts)

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil, fs.NewError(fs.CodeUnknown, resource, "watcher multiplexer disposed", nil)
	}
	sub, exists := m.active[key]
	if exists {
		sub.mu.Lock()
		sub.count++
		sub.mu.Unlock()
		m.mu.Unlock()
		return &Handle{id: uuid.NewString(), key: key, mux: m}, nil
	}
	sub = &subscription{count: 1}
	m.active[key] = sub
	m.mu.Unlock()

	disposable, err := provider.Watch(ctx, resource, opts)

	sub.mu.Lock()
	if err != nil {
		sub.mu.Unlock()
		m.mu.Lock()
		delete(m.active, key)
		m.mu.Unlock()
		return nil, err
	}
	if sub.pendingDispose {
		// Every handle sharing this key disposed while provider.Watch was
		// still in flight; tear the now-arrived subscription down
		// immediately instead of leaking it.
		sub.mu.Unlock()
		disposable.Dispose()
		return &Handle{id: uuid.NewString(), key: key, mux: m}, nil
	}
	sub.disposable = disposable
	sub.mu.Unlock()

	return &Handle{id: uuid.NewString(), key: key, mux: m}, nil
}

func (m *Multiplexer) release(key string) {
	m.mu.Lock()
	sub, ok := m.active[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	sub.mu.Lock()
	sub.count--
	remaining := sub.count
	sub.mu.Unlock()
	if remaining > 0 {
		m.mu.Unlock()
		return
	}
	delete(m.active, key)
	m.mu.Unlock()

	sub.mu.Lock()
	d := sub.disposable
	if d == nil {
		sub.pendingDispose = true
		sub.mu.Unlock()
		return
	}
	sub.mu.Unlock()
	d.Dispose()
}

// ActiveCount reports how many distinct keys are currently subscribed, for
// metrics.
func (m *Multiplexer) ActiveCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.active)
}

// Dispose tears down every active watcher and clears the table.
func (m *Multiplexer) Dispose() {
	m.mu.Lock()
	m.closed = true
	subs := make([]*subscription, 0, len(m.active))
	for _, s := range m.active {
		subs = append(subs, s)
	}
	m.active = make(map[string]*subscription)
	m.mu.Unlock()

	for _, s := range subs {
		s.mu.Lock()
		d := s.disposable
		if d == nil {
			// provider.Watch is still in flight for this entry; the Watch
			// call that started it tears the disposable down on arrival.
			s.pendingDispose = true
		}
		s.mu.Unlock()
		if d != nil {
			d.Dispose()
		}
	}
}
