// Package registry implements the provider registry: scheme -> provider
// binding, lazy activation, and re-emission of a provider's own events
// through the service's event bus.
package registry

import (
	"context"
	"sync"

	"github.com/nimbusfs/vfs/fs"
)

// ActivationListener is joined by Activate before it decides whether a
// provider is now registered. Listeners that need to lazily construct and
// register a provider do so from within this callback and return once
// registration is complete (or return an error to abort activation).
type ActivationListener func(ctx context.Context, scheme string) error

// Registration is the handle returned by Register. Disposing it
// unregisters the provider and tears down its event re-subscriptions.
type Registration struct {
	r      *Registry
	scheme string
	subs   []fs.Disposable
	once   sync.Once
}

// Dispose unregisters the provider and tears down its subscriptions.
func (h *Registration) Dispose() {
	h.once.Do(func() {
		h.r.unregister(h.scheme)
		for _, s := range h.subs {
			s.Dispose()
		}
	})
}

// Registry maps scheme to provider and mediates activation.
type Registry struct {
	mu            sync.RWMutex
	providers     map[string]fs.Provider
	registrations map[string]*Registration
	listeners     []ActivationListener

	OnDidChangeRegistrations *fs.Emitter[RegistrationEvent]
	OnWillActivate           *fs.Emitter[string]
	OnDidChangeCapabilities  *fs.Emitter[string]
	OnFileChanges            *fs.Emitter[[]fs.FileChangeEvent]
	OnError                  *fs.Emitter[error]
}

// RegistrationEvent reports a provider joining or leaving the registry.
type RegistrationEvent struct {
	Scheme   string
	Added    bool
	Provider fs.Provider
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		providers:                make(map[string]fs.Provider),
		registrations:            make(map[string]*Registration),
		OnDidChangeRegistrations: fs.NewEmitter[RegistrationEvent](),
		OnWillActivate:           fs.NewEmitter[string](),
		OnDidChangeCapabilities:  fs.NewEmitter[string](),
		OnFileChanges:            fs.NewEmitter[[]fs.FileChangeEvent](),
		OnError:                  fs.NewEmitter[error](),
	}
}

// OnWillActivateFileSystemProvider registers a listener joined by every
// Activate call, so a late-arriving consumer can lazily construct and
// register a provider the moment its scheme is first addressed.
func (r *Registry) OnWillActivateFileSystemProvider(fn ActivationListener) {
	r.mu.Lock()
	r.listeners = append(r.listeners, fn)
	r.mu.Unlock()
}

// Register binds provider to scheme. It fails if scheme is already bound.
func (r *Registry) Register(scheme string, provider fs.Provider) (*Registration, error) {
	r.mu.Lock()
	if _, exists := r.providers[scheme]; exists {
		r.mu.Unlock()
		return nil, fs.NewError(fs.CodeUnknown, fs.NewResource(scheme, "/"), "scheme already registered", nil)
	}
	r.providers[scheme] = provider
	r.mu.Unlock()

	h := &Registration{r: r, scheme: scheme}
	h.subs = append(h.subs, provider.OnDidChangeFile().On(func(events []fs.FileChangeEvent) {
		r.OnFileChanges.Emit(events)
	}))
	h.subs = append(h.subs, provider.OnDidChangeCapabilities().On(func(struct{}) {
		r.OnDidChangeCapabilities.Emit(scheme)
	}))
	if ep, ok := provider.(fs.ErrorReportingProvider); ok {
		h.subs = append(h.subs, ep.OnDidErrorOccur().On(func(err error) {
			r.OnError.Emit(err)
		}))
	}

	r.mu.Lock()
	r.registrations[scheme] = h
	r.mu.Unlock()

	r.OnDidChangeRegistrations.Emit(RegistrationEvent{Scheme: scheme, Added: true, Provider: provider})
	return h, nil
}

func (r *Registry) unregister(scheme string) {
	r.mu.Lock()
	provider, ok := r.providers[scheme]
	if ok {
		delete(r.providers, scheme)
	}
	delete(r.registrations, scheme)
	r.mu.Unlock()
	if ok {
		r.OnDidChangeRegistrations.Emit(RegistrationEvent{Scheme: scheme, Added: false, Provider: provider})
	}
}

// Activate fires OnWillActivateFileSystemProvider and awaits every
// listener. Listeners run sequentially on the calling goroutine; a listener
// that needs to do async work should use ctx to bound it.
func (r *Registry) Activate(ctx context.Context, scheme string) error {
	r.OnWillActivate.Emit(scheme)
	r.mu.RLock()
	listeners := append([]ActivationListener(nil), r.listeners...)
	r.mu.RUnlock()
	for _, l := range listeners {
		if err := l(ctx, scheme); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the provider bound to scheme without activating it.
func (r *Registry) Lookup(scheme string) (fs.Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[scheme]
	return p, ok
}

// WithProvider activates resource.Scheme and returns its provider, or
// CodeFileInvalidPath / CodeNoProvider on failure.
func (r *Registry) WithProvider(ctx context.Context, resource fs.Resource) (fs.Provider, error) {
	if !resource.IsAbsolute() {
		return nil, fs.NewError(fs.CodeFileInvalidPath, resource, "resource path must be absolute", nil)
	}
	if err := r.Activate(ctx, resource.Scheme); err != nil {
		return nil, err
	}
	p, ok := r.Lookup(resource.Scheme)
	if !ok {
		return nil, fs.NewError(fs.CodeNoProvider, resource, "no provider registered for scheme", nil)
	}
	return p, nil
}

// HasCapability reports whether the provider registered for scheme has bit
// set, or false if no provider is registered (without activating).
func (r *Registry) HasCapability(scheme string, bit fs.Capability) bool {
	p, ok := r.Lookup(scheme)
	if !ok {
		return false
	}
	return p.Capabilities().Has(bit)
}

// CanHandleResource reports whether a provider is registered for
// resource.Scheme (without activating).
func (r *Registry) CanHandleResource(resource fs.Resource) bool {
	_, ok := r.Lookup(resource.Scheme)
	return ok
}

// Dispose unregisters every provider, tearing down each one's event
// re-subscriptions, and clears the registry.
func (r *Registry) Dispose() {
	r.mu.Lock()
	handles := make([]*Registration, 0, len(r.registrations))
	for _, h := range r.registrations {
		handles = append(handles, h)
	}
	r.mu.Unlock()
	for _, h := range handles {
		h.Dispose()
	}
}
