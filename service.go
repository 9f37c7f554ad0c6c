// Package vfs is the root of the virtual filesystem core: a
// scheme-addressed façade over pluggable providers. Service composes the
// registry, write-queue table, stat resolver, read/write pipelines, the
// move/copy engine, delete+mkdirp, and the watcher multiplexer into the
// single public contract consumers depend on.
package vfs

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/vfsconfig"
	"github.com/nimbusfs/vfs/internal/vfsmetrics"
	"github.com/nimbusfs/vfs/movecopy"
	"github.com/nimbusfs/vfs/ops"
	"github.com/nimbusfs/vfs/readpipe"
	"github.com/nimbusfs/vfs/registry"
	"github.com/nimbusfs/vfs/resolvepkg"
	"github.com/nimbusfs/vfs/watch"
	"github.com/nimbusfs/vfs/writepipe"
	"github.com/nimbusfs/vfs/writequeue"
)

// Service is the VFS entry point. A zero Service is not usable; construct
// one with New.
type Service struct {
	registry *registry.Registry
	queue    *writequeue.Table
	resolver *resolvepkg.Resolver
	reader   *readpipe.Pipeline
	writer   *writepipe.Pipeline
	mover    *movecopy.Engine
	watcher  *watch.Multiplexer
	metrics  *vfsmetrics.Metrics
	opt      vfsconfig.Options

	OnAfterOperation *fs.Emitter[fs.OperationEvent]
}

// New constructs a Service. Pass prometheus.NewRegistry() in tests to avoid
// colliding with other registrations in the same process; pass nil to skip
// metrics entirely.
func New(opt vfsconfig.Options, metricsReg prometheus.Registerer) *Service {
	reg := registry.New()
	queue := writequeue.New()

	lookup := reg.WithProvider

	s := &Service{
		registry:         reg,
		queue:            queue,
		watcher:          watch.New(),
		opt:              opt,
		OnAfterOperation: fs.NewEmitter[fs.OperationEvent](),
	}
	if metricsReg != nil {
		s.metrics = vfsmetrics.New(metricsReg)
	}

	s.resolver = resolvepkg.New(lookup, opt.ResolveConcurrency)
	s.reader = readpipe.New(lookup, s.statFn, opt)
	s.writer = writepipe.New(lookup, ops.Mkdirp, s.resolveMetadata, queue, opt)
	s.mover = movecopy.New(lookup, queue)

	return s
}

// RegistrationEvent re-exports registry.RegistrationEvent for callers that
// don't want to import the registry package directly.
type RegistrationEvent = registry.RegistrationEvent

// OnDidChangeFileSystemProviderRegistrations fires when a provider joins or
// leaves the registry.
func (s *Service) OnDidChangeFileSystemProviderRegistrations() *fs.Emitter[RegistrationEvent] {
	return s.registry.OnDidChangeRegistrations
}

// OnWillActivateFileSystemProvider notifies, purely for observation, every
// time a scheme is about to be activated.
func (s *Service) OnWillActivateFileSystemProvider() *fs.Emitter[string] {
	return s.registry.OnWillActivate
}

// OnDidChangeFileSystemProviderCapabilities fires with the scheme whose
// provider's Capabilities() bitset has changed.
func (s *Service) OnDidChangeFileSystemProviderCapabilities() *fs.Emitter[string] {
	return s.registry.OnDidChangeCapabilities
}

// OnFileChanges re-emits every registered provider's own file-change batches.
func (s *Service) OnFileChanges() *fs.Emitter[[]fs.FileChangeEvent] {
	return s.registry.OnFileChanges
}

// OnError re-emits operation-unattached errors a provider reports.
func (s *Service) OnError() *fs.Emitter[error] {
	return s.registry.OnError
}

// JoinActivation registers fn to be awaited by every Activate call,
// mirroring the service contract's "activation-join" hook: a listener can
// lazily construct and register a provider the moment its scheme is first
// addressed.
func (s *Service) JoinActivation(fn registry.ActivationListener) {
	s.registry.OnWillActivateFileSystemProvider(fn)
}

// RegisterProvider binds provider to scheme.
func (s *Service) RegisterProvider(scheme string, provider fs.Provider) (*registry.Registration, error) {
	return s.registry.Register(scheme, provider)
}

// ActivateProvider fires the activation-join hook for scheme.
func (s *Service) ActivateProvider(ctx context.Context, scheme string) error {
	return s.registry.Activate(ctx, scheme)
}

// CanHandleResource reports whether a provider is registered for the
// resource's scheme.
func (s *Service) CanHandleResource(resource fs.Resource) bool {
	return s.registry.CanHandleResource(resource)
}

// HasCapability reports whether scheme's registered provider has bit set.
func (s *Service) HasCapability(scheme string, bit fs.Capability) bool {
	return s.registry.HasCapability(scheme, bit)
}

func (s *Service) statFn(ctx context.Context, resource fs.Resource) (fs.FileStat, error) {
	provider, err := s.registry.WithProvider(ctx, resource)
	if err != nil {
		return fs.FileStat{}, err
	}
	stat, err := provider.Stat(ctx, resource)
	if err != nil {
		return fs.FileStat{}, fs.FromProviderError(resource, err)
	}
	return stat, nil
}

func (s *Service) resolveMetadata(ctx context.Context, resource fs.Resource) (fs.FileStat, error) {
	return s.resolver.Resolve(ctx, resource, fs.ResolveOptions{ResolveMetadata: true})
}

// Resolve returns the FileStat tree rooted at resource.
func (s *Service) Resolve(ctx context.Context, resource fs.Resource, opts fs.ResolveOptions) (fs.FileStat, error) {
	start := time.Now()
	stat, err := s.resolver.Resolve(ctx, resource, opts)
	s.observe("resolve", err, start)
	return stat, err
}

// ResolveAll runs Resolve independently for each of entries.
func (s *Service) ResolveAll(ctx context.Context, entries []fs.Resource, opts fs.ResolveOptions) []resolvepkg.ResolveResult {
	start := time.Now()
	results := s.resolver.ResolveAll(ctx, entries, opts)
	s.observe("resolveAll", nil, start)
	return results
}

// Exists reports whether resource can be stat'd.
func (s *Service) Exists(ctx context.Context, resource fs.Resource) bool {
	return s.resolver.Exists(ctx, resource)
}

// ReadFile performs the whole-file read pipeline.
func (s *Service) ReadFile(ctx context.Context, resource fs.Resource, opts fs.ReadOptions) (readpipe.Result, error) {
	start := time.Now()
	result, err := s.reader.ReadFile(ctx, resource, opts)
	s.observe("readFile", err, start)
	return result, err
}

// ReadFileStream performs the streamed read pipeline.
func (s *Service) ReadFileStream(ctx context.Context, resource fs.Resource, opts fs.ReadOptions) (readpipe.StreamResult, error) {
	start := time.Now()
	result, err := s.reader.ReadFileStream(ctx, resource, opts)
	s.observe("readFileStream", err, start)
	return result, err
}

// WriteFile performs the write pipeline and fires onAfterOperation(WRITE).
func (s *Service) WriteFile(ctx context.Context, resource fs.Resource, input fs.Input, opts fs.WriteOptions) (fs.FileStat, error) {
	start := time.Now()
	stat, err := s.writer.WriteFile(ctx, resource, input, opts)
	s.observe("writeFile", err, start)
	if err != nil {
		return fs.FileStat{}, err
	}
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationWrite, Stat: stat})
	return stat, nil
}

// CreateFile performs createFile: a conflict check ahead of WriteFile, and
// fires onAfterOperation(CREATE) instead of WRITE.
func (s *Service) CreateFile(ctx context.Context, resource fs.Resource, input fs.Input, opts fs.WriteOptions) (fs.FileStat, error) {
	start := time.Now()
	stat, err := s.writer.CreateFile(ctx, resource, input, opts, s.Exists)
	s.observe("createFile", err, start)
	if err != nil {
		return fs.FileStat{}, err
	}
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationCreate, Stat: stat})
	return stat, nil
}

// Move performs move/copy's move entry point and always fires
// onAfterOperation(MOVE), regardless of whether the underlying execution
// resolved to a rename or a cross-provider copy-then-delete.
func (s *Service) Move(ctx context.Context, source, target fs.Resource, overwrite bool) (fs.FileStat, error) {
	start := time.Now()
	stat, err := s.mover.Move(ctx, source, target, overwrite)
	s.observe("move", err, start)
	if err != nil {
		return fs.FileStat{}, err
	}
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationMove, Stat: stat})
	return stat, nil
}

// Copy performs move/copy's copy entry point and fires
// onAfterOperation(COPY).
func (s *Service) Copy(ctx context.Context, source, target fs.Resource, overwrite bool) (fs.FileStat, error) {
	start := time.Now()
	stat, err := s.mover.Copy(ctx, source, target, overwrite)
	s.observe("copy", err, start)
	if err != nil {
		return fs.FileStat{}, err
	}
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationCopy, Stat: stat})
	return stat, nil
}

// Del performs delete and fires onAfterOperation(DELETE).
func (s *Service) Del(ctx context.Context, resource fs.Resource, opts fs.DeleteOptions) error {
	start := time.Now()
	provider, err := s.registry.WithProvider(ctx, resource)
	if err != nil {
		s.observe("del", err, start)
		return err
	}
	if err := ops.Delete(ctx, provider, resource, opts); err != nil {
		s.observe("del", err, start)
		return err
	}
	s.observe("del", nil, start)
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationDelete, Stat: fs.FileStat{Resource: resource}})
	return nil
}

// CreateFolder performs createFolder and fires onAfterOperation(CREATE)
// with the freshly resolved directory stat.
func (s *Service) CreateFolder(ctx context.Context, resource fs.Resource) (fs.FileStat, error) {
	start := time.Now()
	provider, err := s.registry.WithProvider(ctx, resource)
	if err != nil {
		s.observe("createFolder", err, start)
		return fs.FileStat{}, err
	}
	if err := ops.CreateFolder(ctx, provider, resource); err != nil {
		s.observe("createFolder", err, start)
		return fs.FileStat{}, err
	}
	stat, err := s.resolveMetadata(ctx, resource)
	s.observe("createFolder", err, start)
	if err != nil {
		return fs.FileStat{}, err
	}
	s.OnAfterOperation.Emit(fs.OperationEvent{Operation: fs.OperationCreate, Stat: stat})
	return stat, nil
}

// Watch subscribes to changes under resource, multiplexing against any
// other active watch sharing the same (provider, canonical key, recursive,
// excludes).
func (s *Service) Watch(ctx context.Context, resource fs.Resource, opts fs.WatchOptions) (*watch.Handle, error) {
	provider, err := s.registry.WithProvider(ctx, resource)
	if err != nil {
		return nil, err
	}
	if s.metrics != nil {
		defer func() { s.metrics.ActiveWatchers.Set(float64(s.watcher.ActiveCount())) }()
	}
	return s.watcher.Watch(ctx, provider, resource, opts)
}

// Dispose tears down every active watcher, disposes every registered
// provider's subscriptions, and clears the registry.
func (s *Service) Dispose() {
	s.watcher.Dispose()
	s.registry.Dispose()
}

func (s *Service) observe(op string, err error, start time.Time) {
	if s.metrics == nil {
		return
	}
	s.metrics.Observe(op, err, start)
	s.metrics.WriteQueueDepth.Set(float64(s.queue.Depth()))
}
