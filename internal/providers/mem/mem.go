// Package mem implements an in-memory filesystem provider exposing
// unbuffered and positional read/write, native folder copy, trash, and
// watch. It has no provider-native streaming read (FileReadStream). It exists to exercise the VFS core's pipelines
// against a provider that never has to fall back to the byte pipe on its
// own, and to stand in for one side of every cross-provider permutation in
// tests.
package mem

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/nimbusfs/vfs/fs"
)

// node is one file or directory in the tree. Directories carry children;
// files carry data. A node is replaced wholesale on write, never mutated
// in place, so a concurrently held *node from a prior Stat is a consistent
// snapshot.
type node struct {
	isDir    bool
	data     []byte
	mtime    time.Time
	children map[string]*node
	trashed  bool
}

// Provider is an in-memory fs.Provider. The zero value is not usable; use
// New.
type Provider struct {
	mu   sync.Mutex
	root *node

	caps         fs.Capability
	onChangeFile *fs.Emitter[[]fs.FileChangeEvent]
	onChangeCaps *fs.Emitter[struct{}]

	watchers map[string][]chan fs.FileChangeEvent
	wmu      sync.Mutex

	handles    map[fs.Handle]*node
	nextHandle fs.Handle
	hmu        sync.Mutex
}

// New constructs an empty in-memory provider with every capability bit
// except FileReadStream and Readonly set.
func New() *Provider {
	return &Provider{
		root: &node{isDir: true, children: make(map[string]*node), mtime: time.Now()},
		caps: fs.FileReadWrite | fs.FileOpenReadWriteClose | fs.FileFolderCopy |
			fs.Trash | fs.PathCaseSensitive,
		onChangeFile: fs.NewEmitter[[]fs.FileChangeEvent](),
		onChangeCaps: fs.NewEmitter[struct{}](),
		watchers:     make(map[string][]chan fs.FileChangeEvent),
		handles:      make(map[fs.Handle]*node),
	}
}

// Capabilities reports the provider's current capability bitset.
func (p *Provider) Capabilities() fs.Capability {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.caps
}

// SetReadonly toggles the Readonly bit and fires OnDidChangeCapabilities,
// for tests exercising the readonly-write-rejection path.
func (p *Provider) SetReadonly(readonly bool) {
	p.mu.Lock()
	if readonly {
		p.caps |= fs.Readonly
	} else {
		p.caps &^= fs.Readonly
	}
	p.mu.Unlock()
	p.onChangeCaps.Emit(struct{}{})
}

// OnDidChangeFile returns the provider's file-change emitter.
func (p *Provider) OnDidChangeFile() *fs.Emitter[[]fs.FileChangeEvent] { return p.onChangeFile }

// OnDidChangeCapabilities returns the provider's capability-change emitter.
func (p *Provider) OnDidChangeCapabilities() *fs.Emitter[struct{}] { return p.onChangeCaps }

func segments(path string) []string {
	path = strings.Trim(path, "/")
	if path == "" {
		return nil
	}
	return strings.Split(path, "/")
}

// lookup returns the node at path and its parent, or nil if absent.
func (p *Provider) lookup(path string) (n *node, parent *node, name string) {
	segs := segments(path)
	cur := p.root
	var prev *node
	var last string
	for i, seg := range segs {
		prev = cur
		last = seg
		if cur == nil || !cur.isDir {
			return nil, nil, ""
		}
		next, ok := cur.children[seg]
		if !ok {
			if i < len(segs)-1 {
				return nil, nil, ""
			}
			return nil, prev, last
		}
		cur = next
	}
	if cur == p.root {
		return cur, nil, ""
	}
	return cur, prev, last
}

func statFromNode(resource fs.Resource, n *node) fs.FileStat {
	name := resource.Basename()
	size := int64(len(n.data))
	return fs.FileStat{
		Resource:    resource,
		Name:        name,
		IsFile:      !n.isDir,
		IsDirectory: n.isDir,
		MTime:       n.mtime,
		CTime:       n.mtime,
		Size:        size,
		ETag:        fs.ComputeETag(n.mtime, size),
	}
}

// Stat implements fs.Provider.
func (p *Provider) Stat(ctx context.Context, resource fs.Resource) (fs.FileStat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _, _ := p.lookup(resource.Path)
	if n == nil || n.trashed {
		return fs.FileStat{}, fs.ErrFileNotFound
	}
	return statFromNode(resource, n), nil
}

// ReadDir implements fs.Provider.
func (p *Provider) ReadDir(ctx context.Context, resource fs.Resource) ([]fs.DirEntry, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _, _ := p.lookup(resource.Path)
	if n == nil || n.trashed {
		return nil, fs.ErrFileNotFound
	}
	if !n.isDir {
		return nil, fs.NewError(fs.CodeFileNotDirectory, resource, "not a directory", nil)
	}
	names := make([]string, 0, len(n.children))
	for name, child := range n.children {
		if child.trashed {
			continue
		}
		names = append(names, name)
	}
	sort.Strings(names)
	entries := make([]fs.DirEntry, len(names))
	for i, name := range names {
		child := n.children[name]
		entries[i] = fs.DirEntry{Name: name, IsFile: !child.isDir, IsDirectory: child.isDir}
	}
	return entries, nil
}

// Mkdir implements fs.Provider.
func (p *Provider) Mkdir(ctx context.Context, resource fs.Resource) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, parent, name := p.lookup(resource.Path)
	if n != nil && !n.trashed {
		if n.isDir {
			return nil
		}
		return fs.NewError(fs.CodeFileNotDirectory, resource, "exists and is not a directory", nil)
	}
	if parent == nil || !parent.isDir {
		return fs.ErrFileNotFound
	}
	parent.children[name] = &node{isDir: true, children: make(map[string]*node), mtime: time.Now()}
	p.notify(resource, fs.ChangeAdded)
	return nil
}

// Delete implements fs.Provider.
func (p *Provider) Delete(ctx context.Context, resource fs.Resource, opts fs.DeleteOptions) error {
	p.mu.Lock()
	n, parent, name := p.lookup(resource.Path)
	if n == nil || n.trashed || parent == nil {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	if opts.UseTrash {
		n.trashed = true
	} else {
		delete(parent.children, name)
	}
	p.mu.Unlock()
	p.notify(resource, fs.ChangeDeleted)
	return nil
}

// Rename implements fs.Provider.
func (p *Provider) Rename(ctx context.Context, source, target fs.Resource, opts fs.RenameOptions) error {
	p.mu.Lock()
	n, srcParent, srcName := p.lookup(source.Path)
	if n == nil || n.trashed || srcParent == nil {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	existing, tgtParent, tgtName := p.lookup(target.Path)
	if tgtParent == nil {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	if existing != nil && !existing.trashed && !opts.Overwrite {
		p.mu.Unlock()
		return fs.NewError(fs.CodeFileMoveConflict, target, "target exists", nil)
	}
	delete(srcParent.children, srcName)
	tgtParent.children[tgtName] = n
	p.mu.Unlock()
	p.notify(source, fs.ChangeDeleted)
	p.notify(target, fs.ChangeAdded)
	return nil
}

// Copy implements fs.FolderCopyProvider, copying a file or whole subtree
// natively within the in-memory tree.
func (p *Provider) Copy(ctx context.Context, source, target fs.Resource, opts fs.CopyOptions) error {
	p.mu.Lock()
	n, _, _ := p.lookup(source.Path)
	if n == nil || n.trashed {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	existing, tgtParent, tgtName := p.lookup(target.Path)
	if tgtParent == nil {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	if existing != nil && !existing.trashed && !opts.Overwrite {
		p.mu.Unlock()
		return fs.NewError(fs.CodeFileMoveConflict, target, "target exists", nil)
	}
	tgtParent.children[tgtName] = cloneNode(n)
	p.mu.Unlock()
	p.notify(target, fs.ChangeAdded)
	return nil
}

func cloneNode(n *node) *node {
	if !n.isDir {
		data := append([]byte(nil), n.data...)
		return &node{data: data, mtime: n.mtime}
	}
	children := make(map[string]*node, len(n.children))
	for name, child := range n.children {
		if child.trashed {
			continue
		}
		children[name] = cloneNode(child)
	}
	return &node{isDir: true, children: children, mtime: n.mtime}
}

// ReadFile implements fs.UnbufferedProvider.
func (p *Provider) ReadFile(ctx context.Context, resource fs.Resource) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	n, _, _ := p.lookup(resource.Path)
	if n == nil || n.trashed {
		return nil, fs.ErrFileNotFound
	}
	if n.isDir {
		return nil, fs.NewError(fs.CodeFileIsDirectory, resource, "cannot read a directory", nil)
	}
	return append([]byte(nil), n.data...), nil
}

// WriteFile implements fs.UnbufferedProvider.
func (p *Provider) WriteFile(ctx context.Context, resource fs.Resource, data []byte, opts fs.WriteOptions) error {
	p.mu.Lock()
	n, parent, name := p.lookup(resource.Path)
	if parent == nil {
		p.mu.Unlock()
		return fs.ErrFileNotFound
	}
	if n != nil && n.isDir && !n.trashed {
		p.mu.Unlock()
		return fs.NewError(fs.CodeFileIsDirectory, resource, "cannot write a directory", nil)
	}
	changeType := fs.ChangeAdded
	if n != nil && !n.trashed {
		changeType = fs.ChangeUpdated
	}
	parent.children[name] = &node{data: append([]byte(nil), data...), mtime: time.Now()}
	p.mu.Unlock()
	p.notify(resource, changeType)
	return nil
}

// Open implements fs.PositionalProvider.
func (p *Provider) Open(ctx context.Context, resource fs.Resource, opts fs.OpenOptions) (fs.Handle, error) {
	p.mu.Lock()
	n, parent, name := p.lookup(resource.Path)
	if n == nil || n.trashed {
		if !opts.Create || parent == nil {
			p.mu.Unlock()
			return 0, fs.ErrFileNotFound
		}
		n = &node{mtime: time.Now()}
		parent.children[name] = n
	}
	if n.isDir {
		p.mu.Unlock()
		return 0, fs.NewError(fs.CodeFileIsDirectory, resource, "cannot open a directory", nil)
	}
	p.mu.Unlock()

	p.hmu.Lock()
	p.nextHandle++
	h := p.nextHandle
	p.handles[h] = n
	p.hmu.Unlock()
	return h, nil
}

// ReadHandle implements fs.PositionalProvider.
func (p *Provider) ReadHandle(ctx context.Context, h fs.Handle, position int64, buf []byte) (int, error) {
	p.hmu.Lock()
	n, ok := p.handles[h]
	p.hmu.Unlock()
	if !ok {
		return 0, fs.NewError(fs.CodeUnknown, fs.Resource{}, "unknown handle", nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if position >= int64(len(n.data)) {
		return 0, nil
	}
	return copy(buf, n.data[position:]), nil
}

// WriteHandle implements fs.PositionalProvider.
func (p *Provider) WriteHandle(ctx context.Context, h fs.Handle, position int64, buf []byte) (int, error) {
	p.hmu.Lock()
	n, ok := p.handles[h]
	p.hmu.Unlock()
	if !ok {
		return 0, fs.NewError(fs.CodeUnknown, fs.Resource{}, "unknown handle", nil)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	end := position + int64(len(buf))
	if end > int64(len(n.data)) {
		grown := make([]byte, end)
		copy(grown, n.data)
		n.data = grown
	}
	copy(n.data[position:end], buf)
	n.mtime = time.Now()
	return len(buf), nil
}

// CloseHandle implements fs.PositionalProvider.
func (p *Provider) CloseHandle(ctx context.Context, h fs.Handle) error {
	p.hmu.Lock()
	delete(p.handles, h)
	p.hmu.Unlock()
	return nil
}

// Watch implements fs.Provider. It registers a channel keyed on the
// resource's literal path and fans file-change notifications from any
// mutation under that path into the channel, re-emitting them as batches
// on OnDidChangeFile.
func (p *Provider) Watch(ctx context.Context, resource fs.Resource, opts fs.WatchOptions) (fs.Disposable, error) {
	key := resource.Path
	ch := make(chan fs.FileChangeEvent, 16)

	p.wmu.Lock()
	p.watchers[key] = append(p.watchers[key], ch)
	p.wmu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case ev, ok := <-ch:
				if !ok {
					return
				}
				p.onChangeFile.Emit([]fs.FileChangeEvent{ev})
			case <-done:
				return
			}
		}
	}()

	return fs.NewDisposableFunc(func() {
		close(done)
		p.wmu.Lock()
		list := p.watchers[key]
		for i, c := range list {
			if c == ch {
				p.watchers[key] = append(list[:i], list[i+1:]...)
				break
			}
		}
		p.wmu.Unlock()
	}), nil
}

func (p *Provider) notify(resource fs.Resource, changeType fs.ChangeType) {
	p.wmu.Lock()
	defer p.wmu.Unlock()
	for key, list := range p.watchers {
		if !strings.HasPrefix(resource.Path, key) {
			continue
		}
		for _, ch := range list {
			select {
			case ch <- fs.FileChangeEvent{Type: changeType, Resource: resource}:
			default:
			}
		}
	}
}
