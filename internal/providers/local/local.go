// Package local implements a disk-backed filesystem provider rooted at a
// single directory. It exposes only positional open/read/write/close (no
// unbuffered whole-file read/write), so cross-provider copies against it
// always exercise the positional side of the byte pipe, and change
// notification is driven by a real fsnotify watch on the host filesystem.
package local

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/vfslog"
)

// Provider is a disk-backed fs.Provider rooted at Root.
type Provider struct {
	Root string

	mu           sync.Mutex
	caps         fs.Capability
	onChangeFile *fs.Emitter[[]fs.FileChangeEvent]
	onChangeCaps *fs.Emitter[struct{}]
	onError      *fs.Emitter[error]

	handles    map[fs.Handle]*os.File
	nextHandle fs.Handle
	hmu        sync.Mutex
}

// New constructs a provider rooted at root. The directory must already
// exist.
func New(root string) *Provider {
	return &Provider{
		Root:         filepath.Clean(root),
		caps:         fs.FileOpenReadWriteClose | fs.PathCaseSensitive,
		onChangeFile: fs.NewEmitter[[]fs.FileChangeEvent](),
		onChangeCaps: fs.NewEmitter[struct{}](),
		onError:      fs.NewEmitter[error](),
		handles:      make(map[fs.Handle]*os.File),
	}
}

// Capabilities reports the provider's current capability bitset.
func (p *Provider) Capabilities() fs.Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}

// OnDidChangeFile returns the provider's file-change emitter.
func (p *Provider) OnDidChangeFile() *fs.Emitter[[]fs.FileChangeEvent] { return p.onChangeFile }

// OnDidChangeCapabilities returns the provider's capability-change emitter.
func (p *Provider) OnDidChangeCapabilities() *fs.Emitter[struct{}] { return p.onChangeCaps }

// OnDidErrorOccur implements fs.ErrorReportingProvider, surfacing a failed
// fsnotify watch loop.
func (p *Provider) OnDidErrorOccur() *fs.Emitter[error] { return p.onError }

func (p *Provider) nativePath(resource fs.Resource) string {
	return filepath.Join(p.Root, filepath.FromSlash(strings.TrimPrefix(resource.Path, "/")))
}

func mapOSError(err error) error {
	if err == nil {
		return nil
	}
	if os.IsNotExist(err) {
		return fs.ErrFileNotFound
	}
	return err
}

// Stat implements fs.Provider.
func (p *Provider) Stat(ctx context.Context, resource fs.Resource) (fs.FileStat, error) {
	info, err := os.Stat(p.nativePath(resource))
	if err != nil {
		return fs.FileStat{}, mapOSError(err)
	}
	return fs.FileStat{
		Resource:    resource,
		Name:        resource.Basename(),
		IsFile:      !info.IsDir(),
		IsDirectory: info.IsDir(),
		MTime:       info.ModTime(),
		CTime:       info.ModTime(),
		Size:        info.Size(),
		ETag:        fs.ComputeETag(info.ModTime(), info.Size()),
	}, nil
}

// ReadDir implements fs.Provider.
func (p *Provider) ReadDir(ctx context.Context, resource fs.Resource) ([]fs.DirEntry, error) {
	entries, err := os.ReadDir(p.nativePath(resource))
	if err != nil {
		return nil, mapOSError(err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })
	out := make([]fs.DirEntry, len(entries))
	for i, e := range entries {
		out[i] = fs.DirEntry{
			Name:           e.Name(),
			IsFile:         !e.IsDir(),
			IsDirectory:    e.IsDir(),
			IsSymbolicLink: e.Type()&os.ModeSymlink != 0,
		}
	}
	return out, nil
}

// Mkdir implements fs.Provider.
func (p *Provider) Mkdir(ctx context.Context, resource fs.Resource) error {
	err := os.Mkdir(p.nativePath(resource), 0o755)
	if err != nil && os.IsExist(err) {
		return nil
	}
	return mapOSError(err)
}

// Delete implements fs.Provider. opts.UseTrash is rejected at the
// Capabilities level (this provider never reports fs.Trash), so only a
// hard delete path is implemented here.
func (p *Provider) Delete(ctx context.Context, resource fs.Resource, opts fs.DeleteOptions) error {
	path := p.nativePath(resource)
	var err error
	if opts.Recursive {
		err = os.RemoveAll(path)
	} else {
		err = os.Remove(path)
	}
	return mapOSError(err)
}

// Rename implements fs.Provider.
func (p *Provider) Rename(ctx context.Context, source, target fs.Resource, opts fs.RenameOptions) error {
	targetPath := p.nativePath(target)
	if !opts.Overwrite {
		if _, err := os.Stat(targetPath); err == nil {
			return fs.NewError(fs.CodeFileMoveConflict, target, "target exists", nil)
		}
	}
	return mapOSError(os.Rename(p.nativePath(source), targetPath))
}

// Open implements fs.PositionalProvider.
func (p *Provider) Open(ctx context.Context, resource fs.Resource, opts fs.OpenOptions) (fs.Handle, error) {
	flags := os.O_RDWR
	if opts.Create {
		flags |= os.O_CREATE
	}
	f, err := os.OpenFile(p.nativePath(resource), flags, 0o644)
	if err != nil {
		return 0, mapOSError(err)
	}
	p.hmu.Lock()
	p.nextHandle++
	h := p.nextHandle
	p.handles[h] = f
	p.hmu.Unlock()
	return h, nil
}

// ReadHandle implements fs.PositionalProvider.
func (p *Provider) ReadHandle(ctx context.Context, h fs.Handle, position int64, buf []byte) (int, error) {
	f, err := p.fileFor(h)
	if err != nil {
		return 0, err
	}
	n, err := f.ReadAt(buf, position)
	if err != nil && errors.Is(err, io.EOF) {
		if n > 0 {
			return n, nil
		}
		return 0, nil
	}
	return n, err
}

// WriteHandle implements fs.PositionalProvider.
func (p *Provider) WriteHandle(ctx context.Context, h fs.Handle, position int64, buf []byte) (int, error) {
	f, err := p.fileFor(h)
	if err != nil {
		return 0, err
	}
	return f.WriteAt(buf, position)
}

// CloseHandle implements fs.PositionalProvider.
func (p *Provider) CloseHandle(ctx context.Context, h fs.Handle) error {
	p.hmu.Lock()
	f, ok := p.handles[h]
	delete(p.handles, h)
	p.hmu.Unlock()
	if !ok {
		return nil
	}
	return f.Close()
}

func (p *Provider) fileFor(h fs.Handle) (*os.File, error) {
	p.hmu.Lock()
	f, ok := p.handles[h]
	p.hmu.Unlock()
	if !ok {
		return nil, fs.NewError(fs.CodeUnknown, fs.Resource{}, "unknown handle", nil)
	}
	return f, nil
}

// Watch implements fs.Provider using a real fsnotify watch on the native
// directory tree under resource. A failed Add is reported through
// OnDidErrorOccur rather than failing Watch itself, matching a provider
// whose watch subscription can die asynchronously after startup.
func (p *Provider) Watch(ctx context.Context, resource fs.Resource, opts fs.WatchOptions) (fs.Disposable, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create fsnotify watcher")
	}

	root := p.nativePath(resource)
	dirs := []string{root}
	if opts.Recursive {
		dirs = p.collectDirs(root)
	}
	for _, d := range dirs {
		if err := watcher.Add(d); err != nil {
			vfslog.Errorf(resource, "watch add %s: %v", d, err)
			p.onError.Emit(errors.Wrapf(err, "watch add %s", d))
		}
	}

	done := make(chan struct{})
	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if excluded(event.Name, opts.Excludes) {
					continue
				}
				p.onChangeFile.Emit([]fs.FileChangeEvent{{
					Type:     changeTypeFor(event.Op),
					Resource: resource.WithPath(p.resourcePath(event.Name)),
				}})
			case watchErr, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.onError.Emit(watchErr)
			case <-done:
				return
			}
		}
	}()

	return fs.NewDisposableFunc(func() {
		close(done)
		watcher.Close()
	}), nil
}

func (p *Provider) collectDirs(root string) []string {
	var dirs []string
	_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			dirs = append(dirs, path)
		}
		return nil
	})
	return dirs
}

func (p *Provider) resourcePath(native string) string {
	rel, err := filepath.Rel(p.Root, native)
	if err != nil {
		return native
	}
	return "/" + filepath.ToSlash(rel)
}

func excluded(native string, patterns []string) bool {
	for _, pattern := range patterns {
		if matched, _ := filepath.Match(pattern, filepath.Base(native)); matched {
			return true
		}
	}
	return false
}

func changeTypeFor(op fsnotify.Op) fs.ChangeType {
	switch {
	case op&fsnotify.Create != 0:
		return fs.ChangeAdded
	case op&fsnotify.Remove != 0, op&fsnotify.Rename != 0:
		return fs.ChangeDeleted
	default:
		return fs.ChangeUpdated
	}
}
