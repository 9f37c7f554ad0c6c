package fs

import "context"

// Handle is the numeric file handle returned by a positional Open call.
type Handle uint64

// Provider is the contract every filesystem backend must satisfy. It
// covers the operations every backend can be expected to support
// unconditionally; richer behaviors (unbuffered read/write, positional
// I/O, native streaming, native folder copy) are declared through the
// optional interfaces below and gated by the Capabilities() bitset.
//
// A Provider's method set is re-queried on every call; nothing in this
// package assumes a capability bit, once read, stays true.
type Provider interface {
	// Capabilities reports the provider's current capability bitset. It
	// may change at any time; OnDidChangeCapabilities fires when it does.
	Capabilities() Capability

	// OnDidChangeFile is the emitter of batched file-change notifications.
	OnDidChangeFile() *Emitter[[]FileChangeEvent]
	// OnDidChangeCapabilities is the emitter fired when Capabilities()'s
	// return value would differ from the last observation.
	OnDidChangeCapabilities() *Emitter[struct{}]

	Stat(ctx context.Context, resource Resource) (FileStat, error)
	ReadDir(ctx context.Context, resource Resource) ([]DirEntry, error)
	Mkdir(ctx context.Context, resource Resource) error
	Delete(ctx context.Context, resource Resource, opts DeleteOptions) error
	Rename(ctx context.Context, source, target Resource, opts RenameOptions) error
	Watch(ctx context.Context, resource Resource, opts WatchOptions) (Disposable, error)
}

// ErrorReportingProvider is implemented by providers that can surface
// asynchronous, operation-unattached errors (e.g. a watch subscription
// dying in the background).
type ErrorReportingProvider interface {
	OnDidErrorOccur() *Emitter[error]
}

// UnbufferedProvider is the optional FileReadWrite capability: whole-file
// read and write without a handle.
type UnbufferedProvider interface {
	ReadFile(ctx context.Context, resource Resource) ([]byte, error)
	WriteFile(ctx context.Context, resource Resource, data []byte, opts WriteOptions) error
}

// PositionalProvider is the optional FileOpenReadWriteClose capability:
// open/read/write/close against a numeric handle with explicit offsets.
type PositionalProvider interface {
	Open(ctx context.Context, resource Resource, opts OpenOptions) (Handle, error)
	ReadHandle(ctx context.Context, h Handle, position int64, buf []byte) (int, error)
	WriteHandle(ctx context.Context, h Handle, position int64, buf []byte) (int, error)
	CloseHandle(ctx context.Context, h Handle) error
}

// StreamingProvider is the optional FileReadStream capability: a
// provider-native streaming read that pushes chunks as a ByteStream.
type StreamingProvider interface {
	OpenReadStream(ctx context.Context, resource Resource, opts ReadOptions) (ByteStream, error)
}

// FolderCopyProvider is the optional FileFolderCopy capability: an
// intra-provider native copy of a file or a whole folder subtree.
type FolderCopyProvider interface {
	Copy(ctx context.Context, source, target Resource, opts CopyOptions) error
}

// AsUnbuffered type-asserts p against UnbufferedProvider.
func AsUnbuffered(p Provider) (UnbufferedProvider, bool) { u, ok := p.(UnbufferedProvider); return u, ok }

// AsPositional type-asserts p against PositionalProvider.
func AsPositional(p Provider) (PositionalProvider, bool) { v, ok := p.(PositionalProvider); return v, ok }

// AsStreaming type-asserts p against StreamingProvider.
func AsStreaming(p Provider) (StreamingProvider, bool) { v, ok := p.(StreamingProvider); return v, ok }

// AsFolderCopy type-asserts p against FolderCopyProvider.
func AsFolderCopy(p Provider) (FolderCopyProvider, bool) { v, ok := p.(FolderCopyProvider); return v, ok }
