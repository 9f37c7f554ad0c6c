// Package readpipe implements the read pipeline: selecting unbuffered,
// streamed, or positional-buffered reads per the provider's capability
// set, enforcing etag/size preconditions, and wrapping the result into a
// typed byte stream with unified error mapping.
package readpipe

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/vfsconfig"
)

// ProviderLookup activates and returns the provider for a resource.
type ProviderLookup func(ctx context.Context, resource fs.Resource) (fs.Provider, error)

// StatFn fetches the current stat for a resource, used for precondition
// validation.
type StatFn func(ctx context.Context, resource fs.Resource) (fs.FileStat, error)

// Pipeline implements readFile / readFileStream.
type Pipeline struct {
	lookup ProviderLookup
	stat   StatFn
	opt    vfsconfig.Options
}

// New constructs a read Pipeline.
func New(lookup ProviderLookup, stat StatFn, opt vfsconfig.Options) *Pipeline {
	return &Pipeline{lookup: lookup, stat: stat, opt: opt}
}

// Result is the outcome of a read: the resource's stat plus the bytes (for
// ReadFile) that were read.
type Result struct {
	Stat  fs.FileStat
	Value []byte
}

// StreamResult is the outcome of ReadFileStream: the resource's stat plus
// a ByteStream the caller drains.
type StreamResult struct {
	Stat  fs.FileStat
	Value fs.ByteStream
}

// validate applies the etag/directory/limits preconditions shared by
// ReadFile and ReadFileStream.
func validate(resource fs.Resource, stat fs.FileStat, opts fs.ReadOptions) error {
	if stat.IsDirectory {
		return fs.NewError(fs.CodeFileIsDirectory, resource, "cannot read a directory", nil)
	}
	if opts.ETag != "" && opts.ETag != fs.ETagDisabled && opts.ETag == stat.ETag {
		return fs.NewError(fs.CodeFileNotModifiedSince, resource, "etag matches current stat", nil)
	}
	if opts.Limits.Memory != nil && stat.Size > *opts.Limits.Memory {
		return fs.NewError(fs.CodeFileExceedsMemoryLimit, resource, "file exceeds memory limit", nil)
	}
	if opts.Limits.Size != nil && stat.Size > *opts.Limits.Size {
		return fs.NewError(fs.CodeFileTooLarge, resource, "file exceeds size limit", nil)
	}
	return nil
}

// runValidation fetches stat and validates it. If opts.ETag is set (and
// not ETagDisabled), this must complete before the read begins; otherwise
// callers may race it against the read itself (see ReadFile/ReadFileStream).
func (p *Pipeline) runValidation(ctx context.Context, resource fs.Resource, opts fs.ReadOptions) (fs.FileStat, error) {
	stat, err := p.stat(ctx, resource)
	if err != nil {
		return fs.FileStat{}, fs.FromProviderError(resource, err)
	}
	if err := validate(resource, stat, opts); err != nil {
		return fs.FileStat{}, err
	}
	return stat, nil
}

func sliceRange(data []byte, opts fs.ReadOptions) []byte {
	start := int64(0)
	if opts.Position != nil {
		start = *opts.Position
	}
	if start > int64(len(data)) {
		start = int64(len(data))
	}
	end := int64(len(data))
	if opts.Length != nil {
		if want := start + *opts.Length; want < end {
			end = want
		}
	}
	if opts.Length != nil && *opts.Length == 0 {
		return []byte{}
	}
	return data[start:end]
}

// ReadFile performs the whole-file read, selecting unbuffered, streamed
// (drained to completion), or positional-buffered per the selection
// matrix.
func (p *Pipeline) ReadFile(ctx context.Context, resource fs.Resource, opts fs.ReadOptions) (Result, error) {
	provider, err := p.lookup(ctx, resource)
	if err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	strict := opts.ETag != "" && opts.ETag != fs.ETagDisabled
	if strict {
		// An etag precondition must be settled before any bytes move.
		stat, err := p.runValidation(ctx, resource, opts)
		if err != nil {
			return Result{}, err
		}
		data, err := p.readBytes(ctx, provider, resource, opts)
		if err != nil {
			return Result{}, fs.FromProviderError(resource, err)
		}
		return Result{Stat: wholeFileSize(stat, data, opts), Value: data}, nil
	}

	// No etag precondition: run the stat validation concurrently with the
	// read itself. A validation failure cancels the operation context so the
	// in-flight read aborts promptly. The validation error wins over the
	// read's own when both fail (reading a directory surfaces
	// FILE_IS_DIRECTORY, not whatever raw error the provider's read path
	// happened to produce first).
	var (
		stat fs.FileStat
		data []byte
		verr error
		rerr error
		wg   sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		stat, verr = p.runValidation(ctx, resource, opts)
		if verr != nil {
			cancel()
		}
	}()
	go func() {
		defer wg.Done()
		data, rerr = p.readBytes(ctx, provider, resource, opts)
		if rerr != nil {
			cancel()
		}
	}()
	wg.Wait()
	if verr != nil {
		return Result{}, verr
	}
	if rerr != nil {
		return Result{}, fs.FromProviderError(resource, rerr)
	}

	return Result{Stat: wholeFileSize(stat, data, opts), Value: data}, nil
}

// wholeFileSize refreshes stat.Size from the bytes actually read, but only
// for a whole-file read: a ranged read returns just the requested slice,
// and overwriting the stat with the slice length would misreport the file's
// real size.
func wholeFileSize(stat fs.FileStat, data []byte, opts fs.ReadOptions) fs.FileStat {
	if opts.Position == nil && opts.Length == nil {
		stat.Size = int64(len(data))
	}
	return stat
}

// readBytes dispatches to the selection matrix and returns the full (or,
// on the unbuffered and positional paths, range-restricted) byte payload.
func (p *Pipeline) readBytes(ctx context.Context, provider fs.Provider, resource fs.Resource, opts fs.ReadOptions) ([]byte, error) {
	caps := provider.Capabilities()
	unbuffered, hasUnbuffered := fs.AsUnbuffered(provider)
	hasUnbuffered = hasUnbuffered && fs.HasUnbufferedReadWrite(caps)
	streaming, hasStream := fs.AsStreaming(provider)
	hasStream = hasStream && fs.HasReadStream(caps)
	_, hasPositional := fs.AsPositional(provider)
	hasPositional = hasPositional && fs.HasPositionalIO(caps)

	// First match wins: unbuffered only when it is the sole read capability
	// or the caller asked for it; otherwise a native stream, then the
	// positional read loop.
	switch {
	case hasUnbuffered && ((!hasStream && !hasPositional) || opts.PreferUnbuffered):
		data, err := unbuffered.ReadFile(ctx, resource)
		if err != nil {
			return nil, err
		}
		return sliceRange(data, opts), nil
	case hasStream:
		stream, err := streaming.OpenReadStream(ctx, resource, opts)
		if err != nil {
			return nil, err
		}
		defer stream.Close()
		return io.ReadAll(stream)
	case hasPositional:
		return p.readPositional(ctx, provider, resource, opts)
	default:
		return nil, fs.NewError(fs.CodeUnknown, resource, "provider exposes no readable capability", nil)
	}
}

// readPositional drives the open/read-loop/close path at p.opt.ChunkSize
// granularity.
func (p *Pipeline) readPositional(ctx context.Context, provider fs.Provider, resource fs.Resource, opts fs.ReadOptions) ([]byte, error) {
	positional, _ := fs.AsPositional(provider)
	handle, err := positional.Open(ctx, resource, fs.OpenOptions{})
	if err != nil {
		return nil, err
	}
	defer positional.CloseHandle(ctx, handle)

	var pos int64
	if opts.Position != nil {
		pos = *opts.Position
	}

	var out bytes.Buffer
	buf := make([]byte, p.opt.ChunkSize)
	remaining := int64(-1)
	if opts.Length != nil {
		remaining = *opts.Length
	}
	for remaining != 0 {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		chunk := buf
		if remaining >= 0 && remaining < int64(len(chunk)) {
			chunk = buf[:remaining]
		}
		n, err := positional.ReadHandle(ctx, handle, pos, chunk)
		if n > 0 {
			out.Write(chunk[:n])
			pos += int64(n)
			if remaining > 0 {
				remaining -= int64(n)
			}
		}
		if err != nil {
			if err == io.EOF {
				break
			}
			return nil, err
		}
		if n == 0 {
			break
		}
	}
	return out.Bytes(), nil
}

// ReadFileStream performs the streamed read, selecting a provider-native
// stream when available and otherwise adapting unbuffered or positional
// reads into one.
func (p *Pipeline) ReadFileStream(ctx context.Context, resource fs.Resource, opts fs.ReadOptions) (StreamResult, error) {
	provider, err := p.lookup(ctx, resource)
	if err != nil {
		return StreamResult{}, err
	}

	ctx, cancel := context.WithCancel(ctx)

	strict := opts.ETag != "" && opts.ETag != fs.ETagDisabled
	var stat fs.FileStat
	if strict {
		stat, err = p.runValidation(ctx, resource, opts)
		if err != nil {
			cancel()
			return StreamResult{}, err
		}
	} else {
		stat, err = p.stat(ctx, resource)
		if err != nil {
			cancel()
			return StreamResult{}, fs.FromProviderError(resource, err)
		}
		if err := validate(resource, stat, opts); err != nil {
			cancel()
			return StreamResult{}, err
		}
	}

	if streaming, ok := fs.AsStreaming(provider); ok && fs.HasReadStream(provider.Capabilities()) {
		stream, err := streaming.OpenReadStream(ctx, resource, opts)
		if err != nil {
			cancel()
			return StreamResult{}, fs.FromProviderError(resource, err)
		}
		return StreamResult{Stat: stat, Value: &cancelOnClose{ReadCloser: stream, cancel: cancel}}, nil
	}

	data, err := p.readBytes(ctx, provider, resource, opts)
	if err != nil {
		cancel()
		return StreamResult{}, fs.FromProviderError(resource, err)
	}
	return StreamResult{Stat: stat, Value: &cancelOnClose{ReadCloser: io.NopCloser(bytes.NewReader(data)), cancel: cancel}}, nil
}

// cancelOnClose cancels the read's operation-scoped context the moment the
// stream is closed, whether normally or because the caller aborted early.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	defer c.cancel()
	return c.ReadCloser.Close()
}
