// Package writepipe implements the write pipeline: validation, auto-create
// of parent directories, selection between unbuffered and
// positional-buffered writes, and coalescing of small readable/stream
// inputs into one unbuffered write. Every buffered write and coalesced
// unbuffered write goes through the write queue for the resource's
// canonical key.
package writepipe

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/internal/vfsconfig"
	"github.com/nimbusfs/vfs/writequeue"
)

// ProviderLookup activates and returns the provider for a resource.
type ProviderLookup func(ctx context.Context, resource fs.Resource) (fs.Provider, error)

// Mkdirp creates every missing ancestor directory of resource.
type Mkdirp func(ctx context.Context, provider fs.Provider, directory fs.Resource) error

// ResolveFn re-resolves a resource with full metadata after a successful
// write, so the pipeline can return the fresh stat.
type ResolveFn func(ctx context.Context, resource fs.Resource) (fs.FileStat, error)

// Pipeline implements writeFile / createFile.
type Pipeline struct {
	lookup  ProviderLookup
	mkdirp  Mkdirp
	resolve ResolveFn
	queue   *writequeue.Table
	opt     vfsconfig.Options
}

// New constructs a write Pipeline.
func New(lookup ProviderLookup, mkdirp Mkdirp, resolve ResolveFn, queue *writequeue.Table, opt vfsconfig.Options) *Pipeline {
	return &Pipeline{lookup: lookup, mkdirp: mkdirp, resolve: resolve, queue: queue, opt: opt}
}

// validateTarget applies the directory and dirty-write-guard preconditions
// against the resource's current stat, if any (a FileNotFound stat error
// is not itself a failure here; it just means the file doesn't exist yet).
func validateTarget(resource fs.Resource, current fs.FileStat, exists bool, opts fs.WriteOptions) error {
	if !exists {
		return nil
	}
	if current.IsDirectory {
		return fs.NewError(fs.CodeFileIsDirectory, resource, "cannot write a directory", nil)
	}
	if opts.MTime != nil && opts.ETag != "" {
		if current.MTime.After(*opts.MTime) {
			recomputed := fs.ComputeETag(*opts.MTime, current.Size)
			if recomputed != opts.ETag {
				return fs.NewError(fs.CodeFileModifiedSince, resource, "resource modified since caller's mtime/etag", nil)
			}
		}
	}
	return nil
}

// WriteFile performs the full write pipeline for resource.
func (p *Pipeline) WriteFile(ctx context.Context, resource fs.Resource, input fs.Input, opts fs.WriteOptions) (fs.FileStat, error) {
	provider, err := p.lookup(ctx, resource)
	if err != nil {
		return fs.FileStat{}, err
	}
	caps := provider.Capabilities()
	if fs.IsReadonly(caps) {
		return fs.FileStat{}, fs.NewError(fs.CodeFilePermissionDenied, resource, "provider is readonly", nil)
	}

	current, statErr := provider.Stat(ctx, resource)
	exists := statErr == nil
	if statErr != nil && !isNotFound(statErr) {
		return fs.FileStat{}, fs.FromProviderError(resource, statErr)
	}
	if err := validateTarget(resource, current, exists, opts); err != nil {
		return fs.FileStat{}, err
	}

	if !exists {
		if err := p.mkdirp(ctx, provider, resource.Dirname()); err != nil {
			return fs.FileStat{}, err
		}
	}

	input = p.coalesce(ctx, provider, input)

	key := fs.CanonicalKey(caps, resource)
	var writeErr error
	p.queue.Submit(key, func() {
		writeErr = p.dispatch(ctx, provider, resource, input)
	})
	if writeErr != nil {
		return fs.FileStat{}, fs.FromProviderError(resource, writeErr)
	}

	return p.resolve(ctx, resource)
}

// coalesce eagerly pulls up to opt.CoalesceChunks chunks from a
// Readable/Stream input when the provider supports unbuffered writes. If
// the input exhausts within that budget, it is folded into a single
// InputBytes so the dispatch step can issue one unbuffered WriteFile
// instead of falling through to the positional path.
func (p *Pipeline) coalesce(ctx context.Context, provider fs.Provider, input fs.Input) fs.Input {
	if input.Kind == fs.InputBytes {
		return input
	}
	if !fs.HasUnbufferedReadWrite(provider.Capabilities()) {
		return input
	}

	var chunks [][]byte
	exhausted := false

	switch input.Kind {
	case fs.InputReadable:
		for i := 0; i < p.opt.CoalesceChunks; i++ {
			chunk, ok := input.Readable.Read()
			if !ok {
				exhausted = true
				break
			}
			chunks = append(chunks, chunk)
		}
		if !exhausted {
			// Couldn't tell within budget; put the already-pulled chunks
			// back in front of the remaining Readable.
			return fs.ReadableInput(prependReadable(chunks, input.Readable))
		}
	case fs.InputStream:
		buf := make([]byte, p.opt.ChunkSize)
		for i := 0; i < p.opt.CoalesceChunks; i++ {
			n, err := input.Stream.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				chunks = append(chunks, chunk)
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					// A mid-stream failure must reach the dispatch step as a
					// failure, not get folded into a short successful write.
					return fs.StreamInput(prependStream(chunks, errorStream{err: err}))
				}
				exhausted = true
				break
			}
		}
		if !exhausted {
			return fs.StreamInput(prependStream(chunks, input.Stream))
		}
	default:
		return input
	}

	total := 0
	for _, c := range chunks {
		total += len(c)
	}
	out := make([]byte, 0, total)
	for _, c := range chunks {
		out = append(out, c...)
	}
	return fs.BytesInput(out)
}

// dispatch writes the (possibly coalesced) input via the unbuffered path
// if the provider supports it and either the input is already raw bytes or
// the provider has no positional I/O (the input is then drained to bytes
// first), or via the positional open/write-loop/close path otherwise.
func (p *Pipeline) dispatch(ctx context.Context, provider fs.Provider, resource fs.Resource, input fs.Input) error {
	caps := provider.Capabilities()
	unbuffered, hasUnbuffered := fs.AsUnbuffered(provider)
	hasUnbuffered = hasUnbuffered && fs.HasUnbufferedReadWrite(caps)
	if (hasUnbuffered && input.Kind == fs.InputBytes) || (hasUnbuffered && !fs.HasPositionalIO(caps)) {
		data, err := drainToBytes(input, p.opt.ChunkSize)
		if err != nil {
			return err
		}
		return unbuffered.WriteFile(ctx, resource, data, fs.WriteOptions{Create: true, Overwrite: true})
	}

	positional, ok := fs.AsPositional(provider)
	if !ok || !fs.HasPositionalIO(caps) {
		return fs.NewError(fs.CodeUnknown, resource, "provider exposes no writable capability", nil)
	}
	handle, err := positional.Open(ctx, resource, fs.OpenOptions{Create: true})
	if err != nil {
		return err
	}
	defer positional.CloseHandle(ctx, handle)
	return writeLoop(ctx, positional, handle, input, p.opt.ChunkSize, p.opt.BackpressureTick)
}

// writeLoop drives chunks from input into positional WriteHandle calls,
// handling short writes by re-issuing the remainder of the current chunk
// before pulling the next one.
func writeLoop(ctx context.Context, positional fs.PositionalProvider, handle fs.Handle, input fs.Input, chunkSize int, tick time.Duration) error {
	var posInFile int64

	writeChunk := func(chunk []byte) error {
		posInBuffer := 0
		for posInBuffer < len(chunk) {
			n, err := positional.WriteHandle(ctx, handle, posInFile, chunk[posInBuffer:])
			if err != nil {
				return err
			}
			posInBuffer += n
			posInFile += int64(n)
		}
		return nil
	}

	switch input.Kind {
	case fs.InputBytes:
		for off := 0; off < len(input.Bytes); off += chunkSize {
			end := off + chunkSize
			if end > len(input.Bytes) {
				end = len(input.Bytes)
			}
			if err := writeChunk(input.Bytes[off:end]); err != nil {
				return err
			}
		}
		return nil
	case fs.InputReadable:
		for {
			chunk, ok := input.Readable.Read()
			if !ok {
				return input.Readable.Err()
			}
			if err := writeChunk(chunk); err != nil {
				return err
			}
		}
	case fs.InputStream:
		buf := make([]byte, chunkSize)
		for {
			n, err := input.Stream.Read(buf)
			if n > 0 {
				if werr := writeChunk(buf[:n]); werr != nil {
					return werr
				}
				if tick > 0 {
					// Deliberate yield between pausing the push-stream for
					// the positional write and resuming it, so a
					// synchronous Resume can't re-enter the handler
					// mid-frame.
					select {
					case <-time.After(tick):
					case <-ctx.Done():
						return ctx.Err()
					}
				}
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return nil
				}
				return err
			}
		}
	default:
		return nil
	}
}

// CreateFile implements createFile: a conflict check ahead of WriteFile.
func (p *Pipeline) CreateFile(ctx context.Context, resource fs.Resource, input fs.Input, opts fs.WriteOptions, exists func(context.Context, fs.Resource) bool) (fs.FileStat, error) {
	if !opts.Overwrite && exists(ctx, resource) {
		return fs.FileStat{}, fs.NewError(fs.CodeFileModifiedSince, resource, "resource already exists and overwrite was not requested", nil)
	}
	return p.WriteFile(ctx, resource, input, opts)
}

func isNotFound(err error) bool {
	return errors.Is(err, fs.ErrFileNotFound)
}

func drainToBytes(input fs.Input, chunkSize int) ([]byte, error) {
	switch input.Kind {
	case fs.InputBytes:
		return input.Bytes, nil
	case fs.InputReadable:
		var out []byte
		for {
			chunk, ok := input.Readable.Read()
			if !ok {
				return out, input.Readable.Err()
			}
			out = append(out, chunk...)
		}
	case fs.InputStream:
		buf := make([]byte, chunkSize)
		var out []byte
		for {
			n, err := input.Stream.Read(buf)
			if n > 0 {
				out = append(out, buf[:n]...)
			}
			if err != nil {
				if errors.Is(err, io.EOF) {
					return out, nil
				}
				return out, err
			}
		}
	default:
		return nil, nil
	}
}

// prependReadable builds a Readable that yields already-pulled chunks
// first, then falls through to rest.
func prependReadable(chunks [][]byte, rest fs.Readable) fs.Readable {
	return &chainReadable{prefix: chunks, rest: rest}
}

type chainReadable struct {
	prefix [][]byte
	i      int
	rest   fs.Readable
}

func (c *chainReadable) Read() ([]byte, bool) {
	if c.i < len(c.prefix) {
		chunk := c.prefix[c.i]
		c.i++
		return chunk, true
	}
	return c.rest.Read()
}

func (c *chainReadable) Err() error { return c.rest.Err() }

// prependStream builds a ByteStream that yields already-pulled chunks
// first, then falls through to rest.
func prependStream(chunks [][]byte, rest fs.ByteStream) fs.ByteStream {
	return &chainStream{prefix: chunks, rest: rest}
}

type chainStream struct {
	prefix [][]byte
	off    int
	rest   fs.ByteStream
}

func (c *chainStream) Read(p []byte) (int, error) {
	for c.off < len(c.prefix) {
		if len(c.prefix[c.off]) == 0 {
			c.off++
			continue
		}
		n := copy(p, c.prefix[c.off])
		c.prefix[c.off] = c.prefix[c.off][n:]
		return n, nil
	}
	return c.rest.Read(p)
}

func (c *chainStream) Close() error { return c.rest.Close() }

// errorStream replays a stream error that surfaced during coalescing, after
// the already-pulled prefix chunks have been yielded.
type errorStream struct {
	err error
}

func (e errorStream) Read([]byte) (int, error) { return 0, e.err }

func (e errorStream) Close() error { return nil }
