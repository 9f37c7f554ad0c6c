package movecopy

import (
	"context"
	"io"

	"github.com/pkg/errors"

	"github.com/nimbusfs/vfs/fs"
)

// ChunkSize is the reusable buffer size for the positional-to-positional
// byte pipe.
const ChunkSize = fs.ChunkSize

// copyFile dispatches a single-file cross-provider copy to one of the four
// byte-pipe variants, selected by the capability of (source, target).
// Every variant that opens target handles goes through the write queue for
// the target's canonical key and guarantees Close on every exit path.
func (e *Engine) copyFile(ctx context.Context, srcProvider fs.Provider, source fs.Resource, tgtProvider fs.Provider, target fs.Resource) error {
	srcCaps := srcProvider.Capabilities()
	tgtCaps := tgtProvider.Capabilities()
	srcPositional, srcHasPositional := fs.AsPositional(srcProvider)
	srcHasPositional = srcHasPositional && fs.HasPositionalIO(srcCaps)
	tgtPositional, tgtHasPositional := fs.AsPositional(tgtProvider)
	tgtHasPositional = tgtHasPositional && fs.HasPositionalIO(tgtCaps)
	srcUnbuffered, srcHasUnbuffered := fs.AsUnbuffered(srcProvider)
	srcHasUnbuffered = srcHasUnbuffered && fs.HasUnbufferedReadWrite(srcCaps)
	tgtUnbuffered, tgtHasUnbuffered := fs.AsUnbuffered(tgtProvider)
	tgtHasUnbuffered = tgtHasUnbuffered && fs.HasUnbufferedReadWrite(tgtCaps)

	switch {
	case srcHasPositional && tgtHasPositional:
		return e.pipePositionalToPositional(ctx, srcPositional, source, tgtPositional, target)

	case srcHasPositional && tgtHasUnbuffered:
		data, err := readPositionalWhole(ctx, srcPositional, source)
		if err != nil {
			return fs.FromProviderError(source, err)
		}
		key := fs.CanonicalKey(tgtProvider.Capabilities(), target)
		var writeErr error
		e.queue.Submit(key, func() {
			writeErr = tgtUnbuffered.WriteFile(ctx, target, data, fs.WriteOptions{Create: true, Overwrite: true})
		})
		if writeErr != nil {
			return fs.FromProviderError(target, writeErr)
		}
		return nil

	case srcHasUnbuffered && tgtHasPositional:
		data, err := srcUnbuffered.ReadFile(ctx, source)
		if err != nil {
			return fs.FromProviderError(source, err)
		}
		return e.writePositionalBuffer(ctx, tgtPositional, target, data)

	case srcHasUnbuffered && tgtHasUnbuffered:
		data, err := srcUnbuffered.ReadFile(ctx, source)
		if err != nil {
			return fs.FromProviderError(source, err)
		}
		key := fs.CanonicalKey(tgtProvider.Capabilities(), target)
		var writeErr error
		e.queue.Submit(key, func() {
			writeErr = tgtUnbuffered.WriteFile(ctx, target, data, fs.WriteOptions{Create: true, Overwrite: true})
		})
		if writeErr != nil {
			return fs.FromProviderError(target, writeErr)
		}
		return nil

	default:
		return fs.NewError(fs.CodeUnknown, source, "no compatible byte-pipe variant for this (source, target) capability pair", nil)
	}
}

// pipePositionalToPositional streams source into target through a reusable
// 64 KiB buffer, both sides positional. It terminates the read loop the
// moment a read returns 0 bytes.
func (e *Engine) pipePositionalToPositional(ctx context.Context, src fs.PositionalProvider, source fs.Resource, tgt fs.PositionalProvider, target fs.Resource) error {
	srcHandle, err := src.Open(ctx, source, fs.OpenOptions{})
	if err != nil {
		return fs.FromProviderError(source, err)
	}
	defer src.CloseHandle(ctx, srcHandle)

	key := fs.CanonicalKey(targetCapabilitiesOf(tgt), target)
	var pipeErr error
	e.queue.Submit(key, func() {
		pipeErr = func() error {
			tgtHandle, err := tgt.Open(ctx, target, fs.OpenOptions{Create: true})
			if err != nil {
				return err
			}
			defer tgt.CloseHandle(ctx, tgtHandle)

			buf := make([]byte, ChunkSize)
			var readPos, writePos int64
			for {
				n, rerr := src.ReadHandle(ctx, srcHandle, readPos, buf)
				if n > 0 {
					readPos += int64(n)
					if werr := doWriteBuffer(ctx, tgt, tgtHandle, &writePos, buf[:n]); werr != nil {
						return werr
					}
				}
				if n == 0 {
					return nil
				}
				if rerr != nil {
					if errors.Is(rerr, io.EOF) {
						return nil
					}
					return rerr
				}
			}
		}()
	})
	if pipeErr != nil {
		return fs.FromProviderError(target, pipeErr)
	}
	return nil
}

// doWriteBuffer writes chunk to handle at *posInFile, re-entering with
// updated offsets to handle short writes until the whole chunk lands.
func doWriteBuffer(ctx context.Context, provider fs.PositionalProvider, handle fs.Handle, posInFile *int64, chunk []byte) error {
	off := 0
	for off < len(chunk) {
		n, err := provider.WriteHandle(ctx, handle, *posInFile, chunk[off:])
		if err != nil {
			return err
		}
		if n == 0 {
			return errors.New("positional write returned 0 bytes written")
		}
		off += n
		*posInFile += int64(n)
	}
	return nil
}

// readPositionalWhole drains a positional provider's resource into one
// buffer via a read loop, used by the positional->unbuffered byte pipe.
func readPositionalWhole(ctx context.Context, provider fs.PositionalProvider, resource fs.Resource) ([]byte, error) {
	handle, err := provider.Open(ctx, resource, fs.OpenOptions{})
	if err != nil {
		return nil, err
	}
	defer provider.CloseHandle(ctx, handle)

	var out []byte
	buf := make([]byte, ChunkSize)
	var pos int64
	for {
		n, err := provider.ReadHandle(ctx, handle, pos, buf)
		if n > 0 {
			out = append(out, buf[:n]...)
			pos += int64(n)
		}
		if n == 0 {
			return out, nil
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return out, err
		}
	}
}

// writePositionalBuffer writes data to a positional provider through the
// write queue for target's canonical key, using doWriteBuffer chunk by
// chunk.
func (e *Engine) writePositionalBuffer(ctx context.Context, provider fs.PositionalProvider, target fs.Resource, data []byte) error {
	key := fs.CanonicalKey(targetCapabilitiesOf(provider), target)
	var writeErr error
	e.queue.Submit(key, func() {
		writeErr = func() error {
			handle, err := provider.Open(ctx, target, fs.OpenOptions{Create: true})
			if err != nil {
				return err
			}
			defer provider.CloseHandle(ctx, handle)
			var pos int64
			for off := 0; off < len(data); off += ChunkSize {
				end := off + ChunkSize
				if end > len(data) {
					end = len(data)
				}
				if err := doWriteBuffer(ctx, provider, handle, &pos, data[off:end]); err != nil {
					return err
				}
			}
			return nil
		}()
	})
	if writeErr != nil {
		return fs.FromProviderError(target, writeErr)
	}
	return nil
}

// targetCapabilitiesOf recovers the owning Provider's capability bitset
// from a PositionalProvider value when the concrete type also implements
// fs.Provider, which holds for every real provider since PositionalProvider
// is always an optional facet of one.
func targetCapabilitiesOf(p fs.PositionalProvider) fs.Capability {
	if provider, ok := p.(fs.Provider); ok {
		return provider.Capabilities()
	}
	return 0
}
