package fs

import "time"

// FileStat is an immutable snapshot of a resource's metadata. Type flags
// are independent bits: a resource may be IsFile and IsSymbolicLink at
// once.
type FileStat struct {
	Resource       Resource
	Name           string
	IsFile         bool
	IsDirectory    bool
	IsSymbolicLink bool
	MTime          time.Time
	CTime          time.Time
	Size           int64
	ETag           ETag
	// Children is nil for files, and for directories resolved without
	// ResolveMetadata may contain entries with only Name/IsFile/IsDirectory
	// populated (a "type"-only child, per ResolveOptions.ResolveMetadata).
	Children []FileStat
}

// DirEntry is one entry returned by a provider's ReadDir, before it has
// been turned into a full FileStat.
type DirEntry struct {
	Name           string
	IsFile         bool
	IsDirectory    bool
	IsSymbolicLink bool
}

// ResolveOptions configures the stat resolver's tree-walking behavior.
type ResolveOptions struct {
	// ResolveTo lists extra resources whose ancestor chain must be
	// recursively expanded even if they fall outside the requested root's
	// "naturally interesting" subtree.
	ResolveTo []Resource
	// ResolveSingleChildDescendants expands a directory whose parent's
	// ReadDir returned exactly one entry, even if the trie has no interest
	// in it.
	ResolveSingleChildDescendants bool
	// ResolveMetadata requires every descendant to carry full metadata
	// (mtime/size/etag), which costs one Stat call per child; otherwise
	// children may carry only their type bits.
	ResolveMetadata bool
}

// ReadOptions configures readFile / readFileStream.
type ReadOptions struct {
	// Position and Length, if non-nil, restrict the read to a byte range.
	Position *int64
	Length   *int64
	// ETag, if set and not ETagDisabled, is checked against the current
	// stat before (or, if unset, concurrently with) reading.
	ETag ETag
	// Limits bound the read by total size or available memory.
	Limits ReadLimits
	// PreferUnbuffered asks the selection matrix to prefer an unbuffered
	// whole-file read when the provider supports one, even if it also
	// supports streaming.
	PreferUnbuffered bool
}

// ReadLimits bounds a read operation.
type ReadLimits struct {
	Size   *int64
	Memory *int64
}

// WriteOptions configures writeFile / createFile.
type WriteOptions struct {
	Overwrite bool
	Create    bool
	// MTime and ETag, given together, drive the dirty-write guard: the
	// write fails with CodeFileModifiedSince if the on-disk mtime has
	// advanced past MTime AND the etag recomputed from (MTime, current
	// size) differs from ETag.
	MTime *time.Time
	ETag  ETag
}

// DeleteOptions configures del.
type DeleteOptions struct {
	Recursive bool
	UseTrash  bool
}

// RenameOptions configures a same-provider rename (the native move path).
type RenameOptions struct {
	Overwrite bool
}

// CopyOptions configures a same-provider native copy.
type CopyOptions struct {
	Overwrite bool
}

// OpenOptions configures a positional Open call.
type OpenOptions struct {
	Create bool
}

// WatchOptions configures watch.
type WatchOptions struct {
	Recursive bool
	Excludes  []string
}
