// Package movecopy implements the move/copy engine: validation shared by
// move and copy, selection of native rename/copy or one of the four
// cross-provider byte-pipe variants, and folder recursion.
package movecopy

import (
	"context"

	"github.com/nimbusfs/vfs/fs"
	"github.com/nimbusfs/vfs/ops"
	"github.com/nimbusfs/vfs/writequeue"
)

// ProviderLookup activates and returns the provider for a resource.
type ProviderLookup func(ctx context.Context, resource fs.Resource) (fs.Provider, error)

// Mode distinguishes the two top-level entry points; it also doubles as
// the event the caller should fire, except that a cross-provider move is
// executed internally as copy-then-delete and must still report MOVE at
// the top level. See DESIGN.md for the reasoning behind preserving that
// behavior rather than reporting the copy-then-delete as COPY.
type Mode int

// The two engine modes.
const (
	ModeMove Mode = iota
	ModeCopy
)

// Engine implements move / copy.
type Engine struct {
	lookup ProviderLookup
	queue  *writequeue.Table
}

// New constructs a move/copy Engine.
func New(lookup ProviderLookup, queue *writequeue.Table) *Engine {
	return &Engine{lookup: lookup, queue: queue}
}

// Move performs the top-level move entry point and always reports MOVE,
// regardless of whether the underlying execution resolved to a rename or
// a copy-then-delete.
func (e *Engine) Move(ctx context.Context, source, target fs.Resource, overwrite bool) (fs.FileStat, error) {
	srcProvider, err := e.lookup(ctx, source)
	if err != nil {
		return fs.FileStat{}, err
	}
	tgtProvider, err := e.lookup(ctx, target)
	if err != nil {
		return fs.FileStat{}, err
	}
	_, err = e.doMoveCopy(ctx, srcProvider, source, tgtProvider, target, ModeMove, overwrite)
	if err != nil {
		return fs.FileStat{}, err
	}
	stat, err := tgtProvider.Stat(ctx, target)
	if err != nil {
		return fs.FileStat{}, fs.FromProviderError(target, err)
	}
	return stat, nil
}

// Copy performs the top-level copy entry point. It returns only the
// target's stat; the mode doMoveCopy executed is not passed back (it is
// always ModeCopy, since Copy never falls back to a rename).
func (e *Engine) Copy(ctx context.Context, source, target fs.Resource, overwrite bool) (fs.FileStat, error) {
	srcProvider, err := e.lookup(ctx, source)
	if err != nil {
		return fs.FileStat{}, err
	}
	tgtProvider, err := e.lookup(ctx, target)
	if err != nil {
		return fs.FileStat{}, err
	}
	_, err = e.doMoveCopy(ctx, srcProvider, source, tgtProvider, target, ModeCopy, overwrite)
	if err != nil {
		return fs.FileStat{}, err
	}
	stat, err := tgtProvider.Stat(ctx, target)
	if err != nil {
		return fs.FileStat{}, fs.FromProviderError(target, err)
	}
	return stat, nil
}

func sameProvider(a, b fs.Provider) bool {
	// Providers are compared by identity: two distinct registrations for
	// the same scheme are never the "same provider" even if they happen
	// to point at equivalent backing stores.
	return a == b
}

// validation is the outcome of doValidateMoveCopy: whether the operation
// is a no-op, whether source and target differ only by case on a
// case-insensitive same provider, and whether the target must be deleted
// first.
type validation struct {
	noop              bool
	differsOnlyByCase bool
	mustDeleteTarget  bool
}

func (e *Engine) doValidateMoveCopy(ctx context.Context, srcProvider fs.Provider, source fs.Resource, tgtProvider fs.Provider, target fs.Resource, mode Mode, overwrite bool) (validation, error) {
	if source.Equal(target) {
		return validation{noop: true}, nil
	}

	same := sameProvider(srcProvider, tgtProvider)
	var differsOnlyByCase bool
	if same {
		caps := srcProvider.Capabilities()
		if !fs.IsCaseSensitive(caps) {
			differsOnlyByCase = fs.CanonicalKey(caps, source) == fs.CanonicalKey(caps, target) && source.String() != target.String()
		}
		if mode == ModeCopy && differsOnlyByCase {
			return validation{}, fs.NewError(fs.CodeUnknown, target, "cannot copy onto self with different case", nil)
		}
		if !differsOnlyByCase && target.IsAncestorOrEqual(source) {
			return validation{}, fs.NewError(fs.CodeUnknown, target, "target is an ancestor of (or equal to) source", nil)
		}
	}

	targetExists := statExists(ctx, tgtProvider, target)
	if targetExists && !differsOnlyByCase {
		if !overwrite {
			return validation{}, fs.NewError(fs.CodeFileMoveConflict, target, "target exists and overwrite was not requested", nil)
		}
		if same && source.IsAncestorOrEqual(target) {
			return validation{}, fs.NewError(fs.CodeUnknown, target, "overwriting target would delete source", nil)
		}
		return validation{mustDeleteTarget: true}, nil
	}

	return validation{}, nil
}

func statExists(ctx context.Context, provider fs.Provider, resource fs.Resource) bool {
	_, err := provider.Stat(ctx, resource)
	return err == nil
}

// doMoveCopy is the shared execution path for Move and Copy. It returns
// the mode actually executed (ModeMove only for a same-provider rename;
// every cross-provider move executes as ModeCopy followed by a source
// delete).
func (e *Engine) doMoveCopy(ctx context.Context, srcProvider fs.Provider, source fs.Resource, tgtProvider fs.Provider, target fs.Resource, mode Mode, overwrite bool) (Mode, error) {
	v, err := e.doValidateMoveCopy(ctx, srcProvider, source, tgtProvider, target, mode, overwrite)
	if err != nil {
		return mode, err
	}
	if v.noop {
		return mode, nil
	}

	if v.mustDeleteTarget {
		if err := ops.Delete(ctx, tgtProvider, target, fs.DeleteOptions{Recursive: true}); err != nil {
			return mode, err
		}
	}
	if err := ops.Mkdirp(ctx, tgtProvider, target.Dirname()); err != nil {
		return mode, err
	}

	same := sameProvider(srcProvider, tgtProvider)
	folderCopy, hasNativeCopy := fs.AsFolderCopy(srcProvider)
	hasNativeCopy = hasNativeCopy && fs.HasFolderCopy(srcProvider.Capabilities())

	switch {
	case mode == ModeCopy && same && hasNativeCopy:
		if err := folderCopy.Copy(ctx, source, target, fs.CopyOptions{Overwrite: overwrite}); err != nil {
			return mode, fs.FromProviderError(source, err)
		}
		return ModeCopy, nil

	case mode == ModeCopy:
		if err := e.copyAny(ctx, srcProvider, source, tgtProvider, target); err != nil {
			return mode, err
		}
		return ModeCopy, nil

	case mode == ModeMove && same:
		if err := srcProvider.Rename(ctx, source, target, fs.RenameOptions{Overwrite: overwrite}); err != nil {
			return mode, fs.FromProviderError(source, err)
		}
		return ModeMove, nil

	default: // ModeMove, cross-provider: copy then delete source.
		if _, err := e.doMoveCopy(ctx, srcProvider, source, tgtProvider, target, ModeCopy, overwrite); err != nil {
			return mode, err
		}
		if err := ops.Delete(ctx, srcProvider, source, fs.DeleteOptions{Recursive: true}); err != nil {
			return mode, err
		}
		return ModeCopy, nil
	}
}

// copyAny copies source to target across providers (or within one
// provider lacking FileFolderCopy), recursing into folders and
// dispatching each file through the byte pipe.
func (e *Engine) copyAny(ctx context.Context, srcProvider fs.Provider, source fs.Resource, tgtProvider fs.Provider, target fs.Resource) error {
	stat, err := srcProvider.Stat(ctx, source)
	if err != nil {
		return fs.FromProviderError(source, err)
	}

	if !stat.IsDirectory {
		return e.copyFile(ctx, srcProvider, source, tgtProvider, target)
	}

	if err := tgtProvider.Mkdir(ctx, target); err != nil {
		if !statExists(ctx, tgtProvider, target) {
			return fs.FromProviderError(target, err)
		}
	}

	entries, err := srcProvider.ReadDir(ctx, source)
	if err != nil {
		return fs.FromProviderError(source, err)
	}
	for _, entry := range entries {
		childSource := source.Join(entry.Name)
		childTarget := target.Join(entry.Name)
		if entry.IsDirectory {
			if err := e.copyAny(ctx, srcProvider, childSource, tgtProvider, childTarget); err != nil {
				return err
			}
			continue
		}
		if err := e.copyFile(ctx, srcProvider, childSource, tgtProvider, childTarget); err != nil {
			return err
		}
	}
	return nil
}
